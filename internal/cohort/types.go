package cohort

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/cohortd/internal/archetype"
	"github.com/fyrsmithlabs/cohortd/internal/traits"
)

// Common errors for cohort persistence.
var (
	ErrStorageUnavailable = errors.New("cohort storage unavailable")
	ErrNoGeneration       = errors.New("no cohort generation persisted")
	ErrUserNotFound       = errors.New("user not assigned to any cohort")
	ErrInvalidGeneration  = errors.New("invalid cohort generation")
)

// Cohort is one behavioral group within a generation.
type Cohort struct {
	ID        string              `json:"id"`
	Archetype archetype.Archetype `json:"archetype"`
	Centroid  traits.Vector       `json:"centroid"`
	MemberIDs []string            `json:"member_ids"`
	Size      int                 `json:"size"`
	CreatedAt time.Time           `json:"created_at"`
}

// Validate checks per-cohort invariants.
func (c *Cohort) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: cohort has empty id", ErrInvalidGeneration)
	}
	if !archetype.Valid(c.Archetype) {
		return fmt.Errorf("%w: cohort %s has unknown archetype %q", ErrInvalidGeneration, c.ID, c.Archetype)
	}
	if c.Size != len(c.MemberIDs) {
		return fmt.Errorf("%w: cohort %s size %d does not match %d members",
			ErrInvalidGeneration, c.ID, c.Size, len(c.MemberIDs))
	}
	if c.Size == 0 {
		return fmt.Errorf("%w: cohort %s has no members", ErrInvalidGeneration, c.ID)
	}
	seen := make(map[string]struct{}, len(c.MemberIDs))
	for _, id := range c.MemberIDs {
		if id == "" {
			return fmt.Errorf("%w: cohort %s has empty member id", ErrInvalidGeneration, c.ID)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: cohort %s lists member %s twice", ErrInvalidGeneration, c.ID, id)
		}
		seen[id] = struct{}{}
	}
	if err := c.Centroid.Validate(); err != nil {
		return fmt.Errorf("%w: cohort %s centroid: %v", ErrInvalidGeneration, c.ID, err)
	}
	return nil
}

// Metadata describes one persisted generation.
type Metadata struct {
	GeneratedAt time.Time            `json:"generated_at"`
	CohortCount int                  `json:"cohort_count"`
	Dimensions  []string             `json:"dimensions"`
	Score       float64              `json:"score"`
	Skipped     []traits.SkippedUser `json:"skipped_users,omitempty"`
}

// Generation is one complete discovery output: metadata plus the cohorts
// that partition the eligible population.
type Generation struct {
	Metadata Metadata `json:"metadata"`
	Cohorts  []Cohort `json:"cohorts"`
}

// Validate checks generation-wide invariants: cohort count bounds, per-
// cohort validity, and the partition property (no user in two cohorts).
func (g *Generation) Validate() error {
	if len(g.Cohorts) < 3 || len(g.Cohorts) > 5 {
		return fmt.Errorf("%w: cohort count %d outside [3,5]", ErrInvalidGeneration, len(g.Cohorts))
	}
	if g.Metadata.CohortCount != len(g.Cohorts) {
		return fmt.Errorf("%w: metadata cohort count %d does not match %d cohorts",
			ErrInvalidGeneration, g.Metadata.CohortCount, len(g.Cohorts))
	}
	assigned := make(map[string]string)
	for i := range g.Cohorts {
		c := &g.Cohorts[i]
		if err := c.Validate(); err != nil {
			return err
		}
		for _, member := range c.MemberIDs {
			if other, dup := assigned[member]; dup {
				return fmt.Errorf("%w: user %s appears in cohorts %s and %s",
					ErrInvalidGeneration, member, other, c.ID)
			}
			assigned[member] = c.ID
		}
	}
	return nil
}

// CohortByUser scans the generation for the cohort containing userID.
func (g *Generation) CohortByUser(userID string) (*Cohort, bool) {
	for i := range g.Cohorts {
		for _, member := range g.Cohorts[i].MemberIDs {
			if member == userID {
				return &g.Cohorts[i], true
			}
		}
	}
	return nil, false
}

// Store abstracts durable generation persistence.
type Store interface {
	SaveGeneration(gen *Generation) error
	LoadLatest() (*Generation, error)
	LookupUserCohort(userID string) (*Cohort, error)
}
