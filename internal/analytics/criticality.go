package analytics

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

// CriticalityScorer applies the collaborator's criticality rules.
type CriticalityScorer struct {
	cfg domain.CriticalityConfig
}

func NewCriticalityScorer(cfg domain.CriticalityConfig) *CriticalityScorer {
	return &CriticalityScorer{cfg: cfg}
}

func (s *CriticalityScorer) Config() domain.CriticalityConfig { return s.cfg }

// Score is the maximum of the default and every matching rule. Location
// patterns match as substrings, items by exact name.
func (s *CriticalityScorer) Score(location, item string) int {
	score := s.cfg.DefaultScore
	for _, rule := range s.cfg.LocationRules {
		if rule.Pattern != "" && strings.Contains(location, rule.Pattern) && rule.Score > score {
			score = rule.Score
		}
	}
	for _, rule := range s.cfg.ItemRules {
		for _, name := range rule.Items {
			if name == item && rule.Score > score {
				score = rule.Score
			}
		}
	}
	return score
}

// Rank decorates a recommendation with criticality and the weighted
// score. PriorityScore is left untouched.
func (s *CriticalityScorer) Rank(rec domain.ReorderRecommendation) domain.RankedRecommendation {
	crit := s.Score(rec.Location, rec.Item)
	return domain.RankedRecommendation{
		ReorderRecommendation: rec,
		Criticality:           crit,
		WeightedPriorityScore: WeightedPriorityScore(rec.LeadTimeDays, rec.AvgDailyUsage, rec.ClosingStock, crit),
	}
}

// WeightedPriorityScore = lead*2 + avg*1.5 + criticality - closing*0.5.
func WeightedPriorityScore(leadTimeDays int, avgUsage float64, closing int64, criticality int) float64 {
	return priorityBase(leadTimeDays, avgUsage, closing).
		Add(decimal.NewFromInt(int64(criticality))).
		Round(2).
		InexactFloat64()
}
