package domain

// LocationRule assigns a score to every location whose name contains Pattern.
type LocationRule struct {
	Pattern string `json:"pattern" mapstructure:"pattern"`
	Score   int    `json:"score" mapstructure:"score"`
}

// ItemRule assigns a score to every item named in Items.
type ItemRule struct {
	Items []string `json:"items" mapstructure:"items"`
	Score int      `json:"score" mapstructure:"score"`
}

// CriticalityConfig is owned by the configuration collaborator and only read here.
type CriticalityConfig struct {
	LocationRules []LocationRule `json:"location_rules" mapstructure:"location_rules"`
	ItemRules     []ItemRule     `json:"item_rules" mapstructure:"item_rules"`
	DefaultScore  int            `json:"default_score" mapstructure:"default_score"`
}

// DefaultCriticalityConfig mirrors the stock configuration shipped with the dashboard.
func DefaultCriticalityConfig() CriticalityConfig {
	return CriticalityConfig{
		LocationRules: []LocationRule{
			{Pattern: "Emergency Unit", Score: 10},
		},
		ItemRules: []ItemRule{
			{Items: []string{"Paracetamol", "Insulin", "Syringes", "Bandages", "Masks", "Gloves"}, Score: 7},
			{Items: []string{"Rice"}, Score: 5},
		},
		DefaultScore: 3,
	}
}
