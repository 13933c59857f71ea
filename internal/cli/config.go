package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/driftwood-games/houserules/internal/engine"
	"github.com/driftwood-games/houserules/internal/query"
	"github.com/driftwood-games/houserules/internal/rule"
	"github.com/driftwood-games/houserules/internal/store"
)

// Config holds the engine settings the CLI exposes. Precedence is
// environment (HOUSERULES_ prefix) over config file over defaults.
type Config struct {
	MaxRulesPerSession   int
	MaxRulesPerPlayer    int
	MaxHistoryPerSession int
	CacheTTL             time.Duration
	MaxCacheSize         int
	ActivationDelay      time.Duration
}

// LoadConfig reads configuration from the optional file path plus the
// environment. Defaults match the engine's built-in limits.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("engine.max_rules_per_session", rule.MaxRulesPerSession)
	v.SetDefault("engine.max_rules_per_player", rule.MaxRulesPerPlayer)
	v.SetDefault("engine.max_history_per_session", rule.MaxHistoryPerSession)
	v.SetDefault("engine.cache_ttl", query.DefaultCacheTTL.String())
	v.SetDefault("engine.max_cache_size", query.DefaultMaxCacheSize)
	v.SetDefault("engine.activation_delay", "100ms")

	v.SetEnvPrefix("HOUSERULES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		MaxRulesPerSession:   v.GetInt("engine.max_rules_per_session"),
		MaxRulesPerPlayer:    v.GetInt("engine.max_rules_per_player"),
		MaxHistoryPerSession: v.GetInt("engine.max_history_per_session"),
		CacheTTL:             v.GetDuration("engine.cache_ttl"),
		MaxCacheSize:         v.GetInt("engine.max_cache_size"),
		ActivationDelay:      v.GetDuration("engine.activation_delay"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxRulesPerSession <= 0 {
		return fmt.Errorf("max_rules_per_session must be positive, got %d", c.MaxRulesPerSession)
	}
	if c.MaxRulesPerPlayer <= 0 {
		return fmt.Errorf("max_rules_per_player must be positive, got %d", c.MaxRulesPerPlayer)
	}
	if c.MaxHistoryPerSession <= 0 {
		return fmt.Errorf("max_history_per_session must be positive, got %d", c.MaxHistoryPerSession)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive, got %v", c.CacheTTL)
	}
	if c.MaxCacheSize <= 0 {
		return fmt.Errorf("max_cache_size must be positive, got %d", c.MaxCacheSize)
	}
	if c.ActivationDelay <= 0 {
		return fmt.Errorf("activation_delay must be positive, got %v", c.ActivationDelay)
	}
	return nil
}

// EngineOptions converts the config into engine construction options.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		Limits: store.Limits{
			MaxRulesPerSession:   c.MaxRulesPerSession,
			MaxRulesPerPlayer:    c.MaxRulesPerPlayer,
			MaxHistoryPerSession: c.MaxHistoryPerSession,
		},
		CacheTTL:        c.CacheTTL,
		MaxCacheSize:    c.MaxCacheSize,
		ActivationDelay: c.ActivationDelay,
	}
}
