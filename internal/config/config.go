// Package config provides configuration loading for cohortd.
package config

import (
	"fmt"
	"math"
	"time"
)

// Config is the full cohortd configuration tree.
type Config struct {
	DataDir   string          `koanf:"data_dir"`
	Logging   LoggingConfig   `koanf:"logging"`
	Cache     CacheConfig     `koanf:"cache"`
	Traits    TraitsConfig    `koanf:"traits"`
	Cluster   ClusterConfig   `koanf:"cluster"`
	Archetype ArchetypeConfig `koanf:"archetype"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CacheConfig controls the cohort TTL cache.
type CacheConfig struct {
	TTL Duration `koanf:"ttl"`
}

// TraitsConfig controls trait extraction eligibility and normalization.
type TraitsConfig struct {
	MinInteractions           int      `koanf:"min_interactions"`
	MaxNewCapabilitiesPerWeek float64  `koanf:"max_new_capabilities_per_week"`
	MaxInteractionsPerWeek    float64  `koanf:"max_interactions_per_week"`
	FollowUpWindow            Duration `koanf:"follow_up_window"`
}

// ClusterConfig controls the k-means engine. Weights apply in trait
// dimension order and must sum to 1.
type ClusterConfig struct {
	Weights              []float64 `koanf:"weights"`
	MinK                 int       `koanf:"min_k"`
	MaxK                 int       `koanf:"max_k"`
	MaxIterations        int       `koanf:"max_iterations"`
	ConvergenceThreshold float64   `koanf:"convergence_threshold"`
}

// ArchetypeConfig controls archetype labeling.
type ArchetypeConfig struct {
	DominanceMargin float64 `koanf:"dominance_margin"`
}

// Default returns the hardcoded configuration defaults.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			TTL: Duration(5 * time.Minute),
		},
		Traits: TraitsConfig{
			MinInteractions:           3,
			MaxNewCapabilitiesPerWeek: 5.0,
			MaxInteractionsPerWeek:    50.0,
			FollowUpWindow:            Duration(24 * time.Hour),
		},
		Cluster: ClusterConfig{
			Weights:              []float64{0.25, 0.20, 0.20, 0.20, 0.15},
			MinK:                 3,
			MaxK:                 5,
			MaxIterations:        10,
			ConvergenceThreshold: 0.01,
		},
		Archetype: ArchetypeConfig{
			DominanceMargin: 0.15,
		},
	}
}

// Validate checks cross-field invariants after loading.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	if c.Cache.TTL.Duration() <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if c.Traits.MinInteractions < 1 {
		return fmt.Errorf("traits.min_interactions must be >= 1")
	}
	if len(c.Cluster.Weights) != 5 {
		return fmt.Errorf("cluster.weights must have 5 entries, got %d", len(c.Cluster.Weights))
	}
	sum := 0.0
	for _, w := range c.Cluster.Weights {
		if w < 0 {
			return fmt.Errorf("cluster.weights must be non-negative")
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("cluster.weights must sum to 1, got %f", sum)
	}
	if c.Cluster.MinK < 2 || c.Cluster.MaxK < c.Cluster.MinK {
		return fmt.Errorf("cluster k range [%d,%d] is invalid", c.Cluster.MinK, c.Cluster.MaxK)
	}
	if c.Archetype.DominanceMargin < 0 {
		return fmt.Errorf("archetype.dominance_margin cannot be negative")
	}
	return nil
}
