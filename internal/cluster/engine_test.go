package cluster

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/cohortd/internal/traits"
)

// testPopulation builds three well-separated behavioral groups of four
// users each, with slight within-group jitter.
func testPopulation() map[string]traits.Vector {
	population := make(map[string]traits.Vector)
	prototypes := []traits.Vector{
		{LearningVelocity: 0.9, DomainAffinity: 0.1, InteractionFrequency: 0.2, FeedbackResponsiveness: 0.3, RetentionStrength: 0.1},
		{LearningVelocity: 0.1, DomainAffinity: 0.9, InteractionFrequency: 0.2, FeedbackResponsiveness: 0.3, RetentionStrength: 0.2},
		{LearningVelocity: 0.2, DomainAffinity: 0.1, InteractionFrequency: 0.9, FeedbackResponsiveness: 0.2, RetentionStrength: 0.8},
	}
	for g, proto := range prototypes {
		for i := 0; i < 4; i++ {
			dims := proto.Dimensions()
			for d := range dims {
				dims[d] += float64(i) * 0.01
				if dims[d] > 1 {
					dims[d] = 1
				}
			}
			population[fmt.Sprintf("group%d-user%d", g, i)] = traits.FromDimensions(dims)
		}
	}
	return population
}

func seededEngine(t *testing.T, seed int64) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Seed = seed
	e, err := NewEngine(cfg, nil)
	require.NoError(t, err)
	return e
}

func TestDefaultWeights_Valid(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())
}

func TestWeightsValidate_RejectsBadSum(t *testing.T) {
	w := Weights{0.5, 0.5, 0.5, 0, 0}
	assert.ErrorIs(t, w.Validate(), ErrInvalidWeights)
}

func TestWeightsValidate_RejectsNegative(t *testing.T) {
	w := Weights{-0.2, 0.4, 0.4, 0.2, 0.2}
	assert.ErrorIs(t, w.Validate(), ErrInvalidWeights)
}

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinK = 1
	_, err := NewEngine(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_k")
}

func TestCluster_PopulationTooSmall(t *testing.T) {
	e := seededEngine(t, 1)

	small := map[string]traits.Vector{}
	for i := 0; i < 5; i++ {
		small[fmt.Sprintf("user%d", i)] = traits.Vector{LearningVelocity: float64(i) / 10}
	}

	_, err := e.Cluster(small)
	assert.ErrorIs(t, err, ErrPopulationTooSmall)
}

func TestCluster_PartitionsPopulation(t *testing.T) {
	e := seededEngine(t, 42)
	population := testPopulation()

	result, err := e.Cluster(population)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.K, 3)
	assert.LessOrEqual(t, result.K, 5)
	assert.Len(t, result.Centroids, result.K)

	// Every user assigned exactly once, to a valid cluster index.
	assert.Len(t, result.Assignments, len(population))
	for userID, c := range result.Assignments {
		assert.Contains(t, population, userID)
		assert.GreaterOrEqual(t, c, 0)
		assert.Less(t, c, result.K)
	}
}

func TestCluster_CentroidsAreMemberMeans(t *testing.T) {
	e := seededEngine(t, 42)
	population := testPopulation()

	result, err := e.Cluster(population)
	require.NoError(t, err)

	sums := make([][5]float64, result.K)
	counts := make([]int, result.K)
	for userID, c := range result.Assignments {
		dims := population[userID].Dimensions()
		counts[c]++
		for d := range dims {
			sums[c][d] += dims[d]
		}
	}

	for c := 0; c < result.K; c++ {
		if counts[c] == 0 {
			continue
		}
		centroid := result.Centroids[c].Dimensions()
		for d := range centroid {
			assert.InDelta(t, sums[c][d]/float64(counts[c]), centroid[d], 1e-9,
				"cluster %d dimension %d", c, d)
		}
	}
}

func TestCluster_DeterministicWithSeed(t *testing.T) {
	population := testPopulation()

	first, err := seededEngine(t, 7).Cluster(population)
	require.NoError(t, err)
	second, err := seededEngine(t, 7).Cluster(population)
	require.NoError(t, err)

	assert.Equal(t, first.K, second.K)
	assert.Equal(t, first.Assignments, second.Assignments)
	assert.Equal(t, first.Centroids, second.Centroids)
	assert.Equal(t, first.Score, second.Score)
}

func TestCluster_ClustersDoNotMixSeparatedGroups(t *testing.T) {
	e := seededEngine(t, 42)

	result, err := e.Cluster(testPopulation())
	require.NoError(t, err)

	// A cluster may split one tight group when a larger k wins, but it must
	// never span two distant groups.
	groupOf := func(userID string) string { return userID[:6] }
	clusterGroup := make(map[int]string)
	for userID, c := range result.Assignments {
		if prev, ok := clusterGroup[c]; ok {
			assert.Equal(t, prev, groupOf(userID),
				"cluster %d mixes groups %s and %s", c, prev, groupOf(userID))
			continue
		}
		clusterGroup[c] = groupOf(userID)
	}
}

func TestCluster_IterationCapIsNotAnError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 3
	cfg.MaxIterations = 1
	cfg.ConvergenceThreshold = 1e-12
	e, err := NewEngine(cfg, nil)
	require.NoError(t, err)

	result, err := e.Cluster(testPopulation())
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Len(t, result.Assignments, 12)
}
