package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_DefaultsWithoutFileOrEnv(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_YAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data_dir: /var/lib/cohortd
logging:
  level: debug
cache:
  ttl: 90s
traits:
  min_interactions: 5
cluster:
  weights: [0.4, 0.2, 0.2, 0.1, 0.1]
archetype:
  dominance_margin: 0.2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/cohortd", cfg.DataDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL.Duration())
	assert.Equal(t, 5, cfg.Traits.MinInteractions)
	assert.Equal(t, []float64{0.4, 0.2, 0.2, 0.1, 0.1}, cfg.Cluster.Weights)
	assert.Equal(t, 0.2, cfg.Archetype.DominanceMargin)

	// Untouched fields keep defaults.
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 3, cfg.Cluster.MinK)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  ttl: 90s\n"), 0o600))

	t.Setenv("COHORTD_CACHE_TTL", "2m")
	t.Setenv("COHORTD_LOGGING_LEVEL", "warn")
	t.Setenv("COHORTD_DATA_DIR", "/tmp/cohortd-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL.Duration())
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/tmp/cohortd-test", cfg.DataDir)
}

func TestLoad_RejectsInvalidWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cluster:\n  weights: [1, 1, 1, 1, 1]\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1")
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestTransformEnvKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"COHORTD_CACHE_TTL", "cache.ttl"},
		{"COHORTD_LOGGING_LEVEL", "logging.level"},
		{"COHORTD_TRAITS_MIN_INTERACTIONS", "traits.min_interactions"},
		{"COHORTD_CLUSTER_MAX_ITERATIONS", "cluster.max_iterations"},
		{"COHORTD_ARCHETYPE_DOMINANCE_MARGIN", "archetype.dominance_margin"},
		{"COHORTD_DATA_DIR", "data_dir"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, transformEnvKey(tt.in), tt.in)
	}
}

func TestDuration_TextRoundTrip(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("5m")))
	assert.Equal(t, 5*time.Minute, d.Duration())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "5m0s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("-5m")))
	assert.Error(t, d.UnmarshalText([]byte("forever")))
}
