// Package archetype maps cluster centroids to human-readable behavioral
// archetypes with fixed baseline ROI expectations.
package archetype

import (
	"fmt"

	"github.com/fyrsmithlabs/cohortd/internal/traits"
)

// Archetype is a human-readable behavioral label.
type Archetype string

const (
	FastLearner      Archetype = "Fast Learner"
	Specialist       Archetype = "Specialist"
	PowerUser        Archetype = "Power User"
	LongTermRetainer Archetype = "Long-term Retainer"
	Generalist       Archetype = "Generalist"
)

// DefaultDominanceMargin is how far (relative to the runner-up dimension) a
// dimension must stand out before its archetype applies. The margin is a
// heuristic; it is a named configuration value rather than an inline
// constant so deployments can tune it.
const DefaultDominanceMargin = 0.15

// baselines holds the fixed expected ROI multiplier per archetype.
var baselines = map[Archetype]float64{
	FastLearner:      1.8,
	Specialist:       1.6,
	PowerUser:        1.4,
	LongTermRetainer: 1.5,
	Generalist:       1.0,
}

// dimensionArchetypes maps trait-dimension index (traits.DimensionNames
// order) to the archetype it signals. Feedback responsiveness has no
// dedicated archetype; a centroid dominated by it labels Generalist.
var dimensionArchetypes = [5]Archetype{
	FastLearner,      // learning_velocity
	Specialist,       // domain_affinity
	PowerUser,        // interaction_frequency
	"",               // feedback_responsiveness
	LongTermRetainer, // retention_strength
}

// BaselineROI returns the fixed expected ROI multiplier for an archetype.
// Unknown archetypes fall back to the Generalist baseline.
func BaselineROI(a Archetype) float64 {
	if b, ok := baselines[a]; ok {
		return b
	}
	return baselines[Generalist]
}

// Valid reports whether a is a known archetype.
func Valid(a Archetype) bool {
	_, ok := baselines[a]
	return ok
}

// Labeler classifies centroids by their dominant trait dimension.
type Labeler struct {
	margin float64
}

// NewLabeler creates a labeler with the given dominance margin. The margin
// is relative: the top dimension must exceed the runner-up by more than
// margin times the runner-up's magnitude.
func NewLabeler(margin float64) (*Labeler, error) {
	if margin < 0 {
		return nil, fmt.Errorf("dominance margin cannot be negative: %f", margin)
	}
	return &Labeler{margin: margin}, nil
}

// Label returns the archetype for a centroid.
//
// The centroid's largest dimension wins when it clears the dominance margin
// over the second largest; otherwise, or when the dominant dimension has no
// dedicated archetype, the cohort is a Generalist.
func (l *Labeler) Label(centroid traits.Vector) Archetype {
	dims := centroid.Dimensions()

	top, second := 0, -1
	for i := 1; i < len(dims); i++ {
		if dims[i] > dims[top] {
			second = top
			top = i
		} else if second < 0 || dims[i] > dims[second] {
			second = i
		}
	}

	a := dimensionArchetypes[top]
	if a == "" {
		return Generalist
	}
	if dims[top] <= dims[second]*(1+l.margin) {
		return Generalist
	}
	return a
}
