package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces cohortd environment variables.
const envPrefix = "COHORTD_"

// configSections are the top-level keys an environment variable can target.
var configSections = map[string]bool{
	"logging":   true,
	"cache":     true,
	"traits":    true,
	"cluster":   true,
	"archetype": true,
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (COHORTD_CACHE_TTL, COHORTD_LOGGING_LEVEL, ...)
//  2. YAML config file, when configPath names an existing file
//  3. Hardcoded defaults
//
// Environment variables strip the COHORTD_ prefix and map the first
// underscore segment to a config section:
//
//	COHORTD_CACHE_TTL               -> cache.ttl
//	COHORTD_TRAITS_MIN_INTERACTIONS -> traits.min_interactions
//	COHORTD_DATA_DIR                -> data_dir
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// transformEnvKey maps COHORTD_SECTION_FIELD_NAME to section.field_name.
// Keys whose first segment is not a known section stay flat (data_dir).
func transformEnvKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	section, rest, found := strings.Cut(key, "_")
	if found && configSections[section] {
		return section + "." + rest
	}
	return key
}
