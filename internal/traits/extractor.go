package traits

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMinInteractions is the minimum history length for extraction.
	// Users below this are excluded rather than given fabricated traits.
	DefaultMinInteractions = 3

	// DefaultMaxNewCapabilitiesPerWeek is the empirical population ceiling
	// used to normalize learning velocity.
	DefaultMaxNewCapabilitiesPerWeek = 5.0

	// DefaultMaxInteractionsPerWeek is the population ceiling used to
	// normalize interaction frequency.
	DefaultMaxInteractionsPerWeek = 50.0

	// DefaultFollowUpWindow bounds how long after a suggestion is shown an
	// acceptance still counts as responsive.
	DefaultFollowUpWindow = 24 * time.Hour
)

// ExtractorConfig tunes normalization ceilings and eligibility.
type ExtractorConfig struct {
	MinInteractions           int           `koanf:"min_interactions"`
	MaxNewCapabilitiesPerWeek float64       `koanf:"max_new_capabilities_per_week"`
	MaxInteractionsPerWeek    float64       `koanf:"max_interactions_per_week"`
	FollowUpWindow            time.Duration `koanf:"follow_up_window"`
}

// DefaultExtractorConfig returns production defaults.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		MinInteractions:           DefaultMinInteractions,
		MaxNewCapabilitiesPerWeek: DefaultMaxNewCapabilitiesPerWeek,
		MaxInteractionsPerWeek:    DefaultMaxInteractionsPerWeek,
		FollowUpWindow:            DefaultFollowUpWindow,
	}
}

// Validate checks config invariants.
func (c ExtractorConfig) Validate() error {
	if c.MinInteractions < 1 {
		return fmt.Errorf("min_interactions must be >= 1, got %d", c.MinInteractions)
	}
	if c.MaxNewCapabilitiesPerWeek <= 0 {
		return fmt.Errorf("max_new_capabilities_per_week must be positive")
	}
	if c.MaxInteractionsPerWeek <= 0 {
		return fmt.Errorf("max_interactions_per_week must be positive")
	}
	if c.FollowUpWindow <= 0 {
		return fmt.Errorf("follow_up_window must be positive")
	}
	return nil
}

// Extractor computes trait vectors from interaction histories.
type Extractor struct {
	cfg    ExtractorConfig
	logger *zap.Logger
}

// NewExtractor creates an extractor with the given config.
func NewExtractor(cfg ExtractorConfig, logger *zap.Logger) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid extractor config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg, logger: logger}, nil
}

// Extract computes one user's trait vector.
//
// Returns ErrInsufficientData when the history is shorter than the
// configured minimum. Events are sorted by timestamp before analysis; the
// caller does not need to pre-sort.
func (e *Extractor) Extract(userID string, events []Event) (Vector, error) {
	if userID == "" {
		return Vector{}, ErrEmptyUserID
	}
	if len(events) < e.cfg.MinInteractions {
		return Vector{}, fmt.Errorf("user %s has %d events, need %d: %w",
			userID, len(events), e.cfg.MinInteractions, ErrInsufficientData)
	}

	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	weeks := historySpanWeeks(sorted)

	v := Vector{
		LearningVelocity:       e.learningVelocity(sorted, weeks),
		DomainAffinity:         domainAffinity(sorted),
		InteractionFrequency:   e.interactionFrequency(sorted, weeks),
		FeedbackResponsiveness: e.feedbackResponsiveness(sorted),
		RetentionStrength:      retentionStrength(sorted),
	}
	if err := v.Validate(); err != nil {
		return Vector{}, fmt.Errorf("trait vector for user %s: %w", userID, err)
	}
	return v, nil
}

// ExtractAll computes vectors for every eligible user in the population.
//
// Ineligible users are returned in the skip list with a reason, never
// silently defaulted. The skip list order is not defined.
func (e *Extractor) ExtractAll(histories map[string][]Event) (map[string]Vector, []SkippedUser, error) {
	vectors := make(map[string]Vector, len(histories))
	var skipped []SkippedUser

	for userID, events := range histories {
		v, err := e.Extract(userID, events)
		if err != nil {
			skipped = append(skipped, SkippedUser{UserID: userID, Reason: err.Error()})
			e.logger.Debug("user skipped during trait extraction",
				zap.String("user_id", userID),
				zap.Int("event_count", len(events)))
			continue
		}
		vectors[userID] = v
	}

	e.logger.Info("trait extraction complete",
		zap.Int("eligible", len(vectors)),
		zap.Int("skipped", len(skipped)))
	return vectors, skipped, nil
}

// historySpanWeeks returns the history span in weeks, floored at one week
// so short histories do not produce inflated per-week rates.
func historySpanWeeks(sorted []Event) float64 {
	span := sorted[len(sorted)-1].Timestamp.Sub(sorted[0].Timestamp)
	weeks := span.Hours() / (24 * 7)
	if weeks < 1 {
		weeks = 1
	}
	return weeks
}

func (e *Extractor) learningVelocity(sorted []Event, weeks float64) float64 {
	distinct := make(map[string]struct{})
	for _, ev := range sorted {
		if ev.Type == EventCapabilityUsed && ev.Capability != "" {
			distinct[ev.Capability] = struct{}{}
		}
	}
	rate := float64(len(distinct)) / weeks
	return clamp01(rate / e.cfg.MaxNewCapabilitiesPerWeek)
}

// domainAffinity is the share of domain-tagged interactions falling in the
// user's single most common domain. Untagged histories score zero.
func domainAffinity(sorted []Event) float64 {
	counts := make(map[string]int)
	total := 0
	for _, ev := range sorted {
		if ev.Domain != "" {
			counts[ev.Domain]++
			total++
		}
	}
	if total == 0 {
		return 0
	}
	top := 0
	for _, n := range counts {
		if n > top {
			top = n
		}
	}
	return clamp01(float64(top) / float64(total))
}

func (e *Extractor) interactionFrequency(sorted []Event, weeks float64) float64 {
	n := 0
	for _, ev := range sorted {
		if ev.Type == EventSession || ev.Type == EventMessage {
			n++
		}
	}
	rate := float64(n) / weeks
	return clamp01(rate / e.cfg.MaxInteractionsPerWeek)
}

// feedbackResponsiveness is the fraction of shown suggestions accepted
// within the follow-up window. Users never shown a suggestion score zero.
func (e *Extractor) feedbackResponsiveness(sorted []Event) float64 {
	shownAt := make(map[string]time.Time)
	shown := 0
	accepted := 0
	for _, ev := range sorted {
		switch ev.Type {
		case EventSuggestionShown:
			if ev.SuggestionID != "" {
				if _, dup := shownAt[ev.SuggestionID]; !dup {
					shownAt[ev.SuggestionID] = ev.Timestamp
					shown++
				}
			}
		case EventSuggestionAccepted:
			t, ok := shownAt[ev.SuggestionID]
			if ok && ev.Timestamp.Sub(t) <= e.cfg.FollowUpWindow {
				accepted++
				delete(shownAt, ev.SuggestionID)
			}
		}
	}
	if shown == 0 {
		return 0
	}
	return clamp01(float64(accepted) / float64(shown))
}

// retentionStrength is the share of adopted capabilities re-used in a later
// session. Session boundaries come from session events; capability uses
// before the first session event belong to session zero.
func retentionStrength(sorted []Event) float64 {
	session := 0
	firstUse := make(map[string]int)
	retained := make(map[string]struct{})
	for _, ev := range sorted {
		switch ev.Type {
		case EventSession:
			session++
		case EventCapabilityUsed:
			if ev.Capability == "" {
				continue
			}
			if first, ok := firstUse[ev.Capability]; ok {
				if session > first {
					retained[ev.Capability] = struct{}{}
				}
			} else {
				firstUse[ev.Capability] = session
			}
		}
	}
	if len(firstUse) == 0 {
		return 0
	}
	return clamp01(float64(len(retained)) / float64(len(firstUse)))
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
