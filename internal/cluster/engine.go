package cluster

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cohortd/internal/traits"
)

// Common errors for clustering.
var (
	ErrPopulationTooSmall = errors.New("population too small for clustering")
	ErrInvalidWeights     = errors.New("dimension weights must be non-negative and sum to 1")
)

const (
	// DefaultMinK and DefaultMaxK bound the candidate cluster counts.
	DefaultMinK = 3
	DefaultMaxK = 5

	// DefaultMaxIterations caps the assign/recompute loop per candidate k.
	DefaultMaxIterations = 10

	// DefaultConvergenceThreshold is the total weighted centroid movement
	// below which a run is considered converged.
	DefaultConvergenceThreshold = 0.01

	// weightSumTolerance allows for floating-point drift when validating
	// that weights sum to 1.
	weightSumTolerance = 1e-9
)

// Weights assigns one weight per trait dimension, in traits.DimensionNames
// order. Weights must be non-negative and sum to 1.
type Weights [5]float64

// DefaultWeights returns the production dimension weighting.
func DefaultWeights() Weights {
	return Weights{0.25, 0.20, 0.20, 0.20, 0.15}
}

// Validate checks the weight invariants.
func (w Weights) Validate() error {
	sum := 0.0
	for _, v := range w {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidWeights
		}
		sum += v
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("%w: sum is %f", ErrInvalidWeights, sum)
	}
	return nil
}

// Config tunes one clustering run. Weights are fixed for the duration of a
// run; changing them between runs is a deployment decision.
type Config struct {
	Weights              Weights `koanf:"weights"`
	MinK                 int     `koanf:"min_k"`
	MaxK                 int     `koanf:"max_k"`
	MaxIterations        int     `koanf:"max_iterations"`
	ConvergenceThreshold float64 `koanf:"convergence_threshold"`

	// Seed makes k-means++ initialization reproducible when non-zero.
	// Zero selects time-derived randomness.
	Seed int64 `koanf:"seed"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Weights:              DefaultWeights(),
		MinK:                 DefaultMinK,
		MaxK:                 DefaultMaxK,
		MaxIterations:        DefaultMaxIterations,
		ConvergenceThreshold: DefaultConvergenceThreshold,
	}
}

// Validate checks config invariants.
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.MinK < 2 {
		return fmt.Errorf("min_k must be >= 2, got %d", c.MinK)
	}
	if c.MaxK < c.MinK {
		return fmt.Errorf("max_k (%d) must be >= min_k (%d)", c.MaxK, c.MinK)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be >= 1, got %d", c.MaxIterations)
	}
	if c.ConvergenceThreshold <= 0 {
		return fmt.Errorf("convergence_threshold must be positive")
	}
	return nil
}

// Result is the best partition found across all candidate cluster counts.
type Result struct {
	// K is the selected cluster count.
	K int

	// Assignments maps each user to a cluster index in [0, K).
	Assignments map[string]int

	// Centroids holds the mean trait vector per cluster index.
	Centroids []traits.Vector

	// Score is the selection score of the winning partition: average
	// intra-cluster weighted distance divided by K. Lower is better.
	Score float64

	// Iterations is the number of assign/recompute passes the winning run
	// took. Converged reports whether it stabilized before the cap.
	Iterations int
	Converged  bool
}

// Engine runs weighted k-means with automatic cluster-count selection.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine creates a clustering engine.
func NewEngine(cfg Config, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cluster config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

// Cluster partitions the population into the best-scoring cohort count in
// [MinK, MaxK].
//
// The population must have at least 2*MinK members; smaller populations
// fail with ErrPopulationTooSmall. Ties between equally-scoring candidate
// counts break toward the smaller k.
func (e *Engine) Cluster(vectors map[string]traits.Vector) (*Result, error) {
	if len(vectors) < 2*e.cfg.MinK {
		return nil, fmt.Errorf("%w: have %d users, need %d",
			ErrPopulationTooSmall, len(vectors), 2*e.cfg.MinK)
	}

	// Fixed user ordering makes seeded runs reproducible regardless of map
	// iteration order.
	userIDs := make([]string, 0, len(vectors))
	for id := range vectors {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)

	points := make([][5]float64, len(userIDs))
	for i, id := range userIDs {
		points[i] = vectors[id].Dimensions()
	}

	seed := e.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	var best *Result
	for k := e.cfg.MinK; k <= e.cfg.MaxK; k++ {
		run := e.runKMeans(points, k, rng)
		e.logger.Debug("candidate clustering scored",
			zap.Int("k", k),
			zap.Float64("score", run.score),
			zap.Int("iterations", run.iterations),
			zap.Bool("converged", run.converged))

		// Strict less-than breaks ties toward the smaller k.
		if best == nil || run.score < best.Score {
			best = &Result{
				K:           k,
				Assignments: assignmentMap(userIDs, run.assignments),
				Centroids:   toVectors(run.centroids),
				Score:       run.score,
				Iterations:  run.iterations,
				Converged:   run.converged,
			}
		}
	}

	e.logger.Info("clustering complete",
		zap.Int("population", len(vectors)),
		zap.Int("k", best.K),
		zap.Float64("score", best.Score))
	return best, nil
}

type kmeansRun struct {
	assignments []int
	centroids   [][5]float64
	score       float64
	iterations  int
	converged   bool
}

func (e *Engine) runKMeans(points [][5]float64, k int, rng *rand.Rand) kmeansRun {
	centroids := e.initPlusPlus(points, k, rng)
	assignments := make([]int, len(points))
	for i := range assignments {
		assignments[i] = -1
	}

	run := kmeansRun{}
	for iter := 1; iter <= e.cfg.MaxIterations; iter++ {
		run.iterations = iter

		changed := false
		for i, p := range points {
			c := e.nearest(p, centroids)
			if c != assignments[i] {
				assignments[i] = c
				changed = true
			}
		}
		if e.repairEmptyClusters(points, assignments, centroids, k) {
			changed = true
		}

		next := recomputeCentroids(points, assignments, centroids)
		movement := 0.0
		for c := range centroids {
			movement += e.distance(centroids[c], next[c])
		}
		centroids = next

		if !changed || movement < e.cfg.ConvergenceThreshold {
			run.converged = true
			break
		}
	}

	run.assignments = assignments
	run.centroids = centroids
	run.score = e.score(points, assignments, centroids, k)
	return run
}

// initPlusPlus seeds k centroids with the k-means++ strategy: the first is
// chosen uniformly, each subsequent one with probability proportional to
// squared distance from the nearest centroid already chosen.
func (e *Engine) initPlusPlus(points [][5]float64, k int, rng *rand.Rand) [][5]float64 {
	centroids := make([][5]float64, 0, k)
	centroids = append(centroids, points[rng.Intn(len(points))])

	dists := make([]float64, len(points))
	for len(centroids) < k {
		total := 0.0
		for i, p := range points {
			d := math.MaxFloat64
			for _, c := range centroids {
				if dc := e.distance(p, c); dc < d {
					d = dc
				}
			}
			dists[i] = d
			total += d
		}

		if total == 0 {
			// All remaining points coincide with a centroid; any pick works.
			centroids = append(centroids, points[rng.Intn(len(points))])
			continue
		}

		target := rng.Float64() * total
		acc := 0.0
		chosen := len(points) - 1
		for i, d := range dists {
			acc += d
			if acc >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, points[chosen])
	}
	return centroids
}

// repairEmptyClusters reassigns the point farthest from its centroid into
// each empty cluster, so every cluster stays populated whenever the
// population is at least k. Reports whether any assignment changed.
func (e *Engine) repairEmptyClusters(points [][5]float64, assignments []int, centroids [][5]float64, k int) bool {
	counts := make([]int, k)
	for _, c := range assignments {
		counts[c]++
	}

	changed := false
	for c := 0; c < k; c++ {
		if counts[c] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, p := range points {
			if counts[assignments[i]] <= 1 {
				continue
			}
			if d := e.distance(p, centroids[assignments[i]]); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			continue
		}
		counts[assignments[far]]--
		assignments[far] = c
		counts[c] = 1
		centroids[c] = points[far]
		changed = true
	}
	return changed
}

func (e *Engine) nearest(p [5]float64, centroids [][5]float64) int {
	best := 0
	bestDist := math.MaxFloat64
	for c, centroid := range centroids {
		if d := e.distance(p, centroid); d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

// distance is the weighted squared distance across the five dimensions.
func (e *Engine) distance(a, b [5]float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += e.cfg.Weights[i] * d * d
	}
	return sum
}

// recomputeCentroids averages each cluster's members. A cluster that lost
// all members keeps its previous centroid rather than collapsing to zero.
func recomputeCentroids(points [][5]float64, assignments []int, prev [][5]float64) [][5]float64 {
	next := make([][5]float64, len(prev))
	counts := make([]int, len(prev))
	for i, p := range points {
		c := assignments[i]
		counts[c]++
		for d := range p {
			next[c][d] += p[d]
		}
	}
	for c := range next {
		if counts[c] == 0 {
			next[c] = prev[c]
			continue
		}
		for d := range next[c] {
			next[c][d] /= float64(counts[c])
		}
	}
	return next
}

// score is the average intra-cluster weighted distance normalized by k.
func (e *Engine) score(points [][5]float64, assignments []int, centroids [][5]float64, k int) float64 {
	total := 0.0
	for i, p := range points {
		total += e.distance(p, centroids[assignments[i]])
	}
	avg := total / float64(len(points))
	return avg / float64(k)
}

func assignmentMap(userIDs []string, assignments []int) map[string]int {
	m := make(map[string]int, len(userIDs))
	for i, id := range userIDs {
		m[id] = assignments[i]
	}
	return m
}

func toVectors(centroids [][5]float64) []traits.Vector {
	out := make([]traits.Vector, len(centroids))
	for i, c := range centroids {
		out[i] = traits.FromDimensions(c)
	}
	return out
}
