package cohort

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cohortd/internal/archetype"
	"github.com/fyrsmithlabs/cohortd/internal/cluster"
	"github.com/fyrsmithlabs/cohortd/internal/traits"
)

// Service runs cohort discovery and serves cohort queries.
//
// Discovery is a synchronous batch pipeline: trait extraction, weighted
// k-means clustering, archetype labeling, then an atomic generation swap in
// the store. The service does not serialize concurrent Discover calls
// against the same store; callers must ensure single-flight discovery.
type Service struct {
	extractor *traits.Extractor
	engine    *cluster.Engine
	labeler   *archetype.Labeler
	store     Store
	cache     *Cache
	logger    *zap.Logger
	metrics   *Metrics

	// now is the clock used for generation timestamps.
	now func() time.Time
}

// NewService wires the discovery pipeline.
func NewService(extractor *traits.Extractor, engine *cluster.Engine, labeler *archetype.Labeler, store Store, cache *Cache, logger *zap.Logger) (*Service, error) {
	if extractor == nil {
		return nil, fmt.Errorf("trait extractor is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("cluster engine is required")
	}
	if labeler == nil {
		return nil, fmt.Errorf("archetype labeler is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		extractor: extractor,
		engine:    engine,
		labeler:   labeler,
		store:     store,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// SetMetrics attaches Prometheus metrics. Optional.
func (s *Service) SetMetrics(m *Metrics) {
	s.metrics = m
}

// Discover builds and persists a new cohort generation from the full
// user-to-history map.
//
// Ineligible users are excluded and recorded in the generation metadata's
// skip list. The previous generation stays queryable until the new one is
// swapped in; on any error it remains the current generation.
func (s *Service) Discover(ctx context.Context, histories map[string][]traits.Event) (*Generation, error) {
	start := s.now()

	gen, err := s.discover(histories)
	if s.metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		s.metrics.DiscoveryRunsTotal.WithLabelValues(result).Inc()
		s.metrics.DiscoveryDuration.Observe(s.now().Sub(start).Seconds())
		if err == nil {
			s.metrics.DiscoveryCohortCount.Set(float64(len(gen.Cohorts)))
		}
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Replace(gen)
	}

	s.logger.Info("cohort discovery complete",
		zap.Int("population", len(histories)),
		zap.Int("eligible", len(histories)-len(gen.Metadata.Skipped)),
		zap.Int("cohorts", len(gen.Cohorts)),
		zap.Duration("elapsed", s.now().Sub(start)))
	return gen, nil
}

func (s *Service) discover(histories map[string][]traits.Event) (*Generation, error) {
	vectors, skipped, err := s.extractor.ExtractAll(histories)
	if err != nil {
		return nil, fmt.Errorf("extracting traits: %w", err)
	}

	result, err := s.engine.Cluster(vectors)
	if err != nil {
		return nil, fmt.Errorf("clustering population: %w", err)
	}

	createdAt := s.now().UTC()
	members := make([][]string, result.K)
	for userID, c := range result.Assignments {
		members[c] = append(members[c], userID)
	}

	cohorts := make([]Cohort, 0, result.K)
	for c := 0; c < result.K; c++ {
		if len(members[c]) == 0 {
			// Only reachable when the configured k range exceeds the
			// population; the generation carries populated cohorts only.
			continue
		}
		sort.Strings(members[c])
		cohorts = append(cohorts, Cohort{
			ID:        uuid.NewString(),
			Archetype: s.labeler.Label(result.Centroids[c]),
			Centroid:  result.Centroids[c],
			MemberIDs: members[c],
			Size:      len(members[c]),
			CreatedAt: createdAt,
		})
	}

	gen := &Generation{
		Metadata: Metadata{
			GeneratedAt: createdAt,
			CohortCount: len(cohorts),
			Dimensions:  traits.DimensionNames(),
			Score:       result.Score,
			Skipped:     skipped,
		},
		Cohorts: cohorts,
	}

	if err := s.store.SaveGeneration(gen); err != nil {
		return nil, err
	}
	return gen, nil
}

// GetCohortByUser returns the user's cohort in the current generation.
//
// Store failures and unknown users both report absent; callers fall back
// to non-personalized behavior.
func (s *Service) GetCohortByUser(ctx context.Context, userID string) (*Cohort, bool) {
	c, err := s.store.LookupUserCohort(userID)
	if err != nil {
		if !errors.Is(err, ErrNoGeneration) {
			s.logger.Debug("user cohort lookup failed",
				zap.String("user_id", userID),
				zap.Error(err))
		}
		return nil, false
	}
	return c, true
}

// GetCohort returns one cohort by id via the TTL cache when one is
// attached, falling back to the store otherwise.
func (s *Service) GetCohort(ctx context.Context, cohortID string) (*Cohort, bool) {
	if s.cache != nil {
		return s.cache.Get(cohortID)
	}
	gen, err := s.store.LoadLatest()
	if err != nil {
		return nil, false
	}
	for i := range gen.Cohorts {
		if gen.Cohorts[i].ID == cohortID {
			return &gen.Cohorts[i], true
		}
	}
	return nil, false
}

// GetAllCohorts returns every cohort in the current generation. A missing
// or unreadable generation yields an empty slice, not an error.
func (s *Service) GetAllCohorts(ctx context.Context) []Cohort {
	gen, err := s.store.LoadLatest()
	if err != nil {
		if !errors.Is(err, ErrNoGeneration) {
			s.logger.Warn("loading cohort generation failed, serving empty", zap.Error(err))
		}
		return nil
	}
	return gen.Cohorts
}
