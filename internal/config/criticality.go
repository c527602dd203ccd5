package config

import (
	"fmt"

	"github.com/spf13/viper"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

// LoadCriticality returns the built-in criticality rules, or the rules in
// path when it is set. A file that sets no default_score keeps the built-in one.
func LoadCriticality(path string) (domain.CriticalityConfig, error) {
	defaults := domain.DefaultCriticalityConfig()
	if path == "" {
		return defaults, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return defaults, fmt.Errorf("read criticality config %s: %w", path, err)
	}

	var cfg domain.CriticalityConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return defaults, fmt.Errorf("decode criticality config %s: %w", path, err)
	}
	if cfg.DefaultScore == 0 {
		cfg.DefaultScore = defaults.DefaultScore
	}
	return cfg, nil
}
