package traits

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Common errors for trait extraction.
var (
	ErrInsufficientData = errors.New("insufficient interaction history for trait extraction")
	ErrEmptyUserID      = errors.New("user ID cannot be empty")
)

// EventType classifies a single interaction event.
type EventType string

const (
	// EventCapabilityUsed records the activation of a capability by name.
	EventCapabilityUsed EventType = "capability_used"

	// EventSession records the start of a user session.
	EventSession EventType = "session"

	// EventMessage records one message sent within a session.
	EventMessage EventType = "message"

	// EventSuggestionShown records a suggestion presented to the user.
	EventSuggestionShown EventType = "suggestion_shown"

	// EventSuggestionAccepted records the user acting on a suggestion.
	EventSuggestionAccepted EventType = "suggestion_accepted"
)

// Event is one timestamped interaction in a user's history.
//
// Capability is set for capability_used events (the capability name).
// Domain is the topic tag attached to the interaction, when known.
// SuggestionID links suggestion_shown and suggestion_accepted pairs.
type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	Type         EventType `json:"type"`
	Capability   string    `json:"capability,omitempty"`
	Domain       string    `json:"domain,omitempty"`
	SuggestionID string    `json:"suggestion_id,omitempty"`
}

// Vector is a user's normalized behavioral profile. Every dimension is a
// finite value in [0,1].
type Vector struct {
	LearningVelocity       float64 `json:"learning_velocity"`
	DomainAffinity         float64 `json:"domain_affinity"`
	InteractionFrequency   float64 `json:"interaction_frequency"`
	FeedbackResponsiveness float64 `json:"feedback_responsiveness"`
	RetentionStrength      float64 `json:"retention_strength"`
}

// Dimensions returns the vector as a fixed-order slice. The order matches
// DimensionNames and is the order clustering weights apply in.
func (v Vector) Dimensions() [5]float64 {
	return [5]float64{
		v.LearningVelocity,
		v.DomainAffinity,
		v.InteractionFrequency,
		v.FeedbackResponsiveness,
		v.RetentionStrength,
	}
}

// FromDimensions builds a Vector from a fixed-order dimension array.
func FromDimensions(d [5]float64) Vector {
	return Vector{
		LearningVelocity:       d[0],
		DomainAffinity:         d[1],
		InteractionFrequency:   d[2],
		FeedbackResponsiveness: d[3],
		RetentionStrength:      d[4],
	}
}

// DimensionNames lists the trait dimensions in canonical order.
func DimensionNames() []string {
	return []string{
		"learning_velocity",
		"domain_affinity",
		"interaction_frequency",
		"feedback_responsiveness",
		"retention_strength",
	}
}

// Validate rejects vectors with out-of-range or non-finite dimensions.
func (v Vector) Validate() error {
	for i, d := range v.Dimensions() {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return fmt.Errorf("dimension %s is not finite", DimensionNames()[i])
		}
		if d < 0 || d > 1 {
			return fmt.Errorf("dimension %s out of range [0,1]: %f", DimensionNames()[i], d)
		}
	}
	return nil
}

// SkippedUser records a user excluded from extraction and why.
type SkippedUser struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}
