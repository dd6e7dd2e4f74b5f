package roi

import (
	"errors"
	"time"

	"github.com/fyrsmithlabs/cohortd/internal/archetype"
)

// Common errors for ROI tracking.
var (
	ErrInvalidMetric = errors.New("capabilities added and cost must be positive")
	ErrEmptyCohortID = errors.New("cohort ID cannot be empty")
	ErrEmptyWorkflow = errors.New("workflow ID cannot be empty")
)

// Outcome is the raw result of one completed workflow, supplied by the
// workflow-completion collaborator.
type Outcome struct {
	WorkflowID        string              `json:"workflow_id"`
	Archetype         archetype.Archetype `json:"archetype"`
	CapabilitiesAdded int                 `json:"capabilities_added"`
	Cost              float64             `json:"cost"`
	Duration          time.Duration       `json:"duration"`
	CompletionRate    float64             `json:"completion_rate"`
}

// Record is one immutable line in the ROI log: the outcome plus derived
// metrics computed at append time.
type Record struct {
	Timestamp         time.Time           `json:"timestamp"`
	CohortID          string              `json:"cohort_id"`
	Archetype         archetype.Archetype `json:"archetype"`
	WorkflowID        string              `json:"workflow_id"`
	CapabilitiesAdded int                 `json:"capabilities_added"`
	Cost              float64             `json:"cost"`
	Duration          time.Duration       `json:"duration"`
	CompletionRate    float64             `json:"completion_rate"`
	CostPerCapability float64             `json:"cost_per_capability"`
	ROIMultiplier     float64             `json:"roi_multiplier"`
	EstimatedROI      float64             `json:"estimated_roi"`
	ROIAchieved       float64             `json:"roi_achieved"`
}

// Direction labels the trend of a trajectory.
type Direction string

const (
	DirectionImproving Direction = "improving"
	DirectionDegrading Direction = "degrading"
	DirectionStable    Direction = "stable"
)

// Aggregates summarizes a set of records.
type Aggregates struct {
	AverageROIAchieved       float64 `json:"average_roi_achieved"`
	AverageCostPerCapability float64 `json:"average_cost_per_capability"`
	TotalCapabilities        int     `json:"total_capabilities"`
	TotalCost                float64 `json:"total_cost"`
}

// Trajectory is the per-cohort trend view: the most recent records in
// chronological order plus trend direction and aggregate stats.
type Trajectory struct {
	CohortID      string     `json:"cohort_id"`
	Records       []Record   `json:"records"`
	Direction     Direction  `json:"direction"`
	PercentChange float64    `json:"percent_change"`
	Aggregates    Aggregates `json:"aggregates"`
}

// CohortSummary aggregates one cohort's full history for comparison.
type CohortSummary struct {
	CohortID    string     `json:"cohort_id"`
	RecordCount int        `json:"record_count"`
	Aggregates  Aggregates `json:"aggregates"`
}

// Comparison is the cross-cohort view: per-cohort summaries plus a global
// aggregate over every record.
type Comparison struct {
	Cohorts map[string]CohortSummary `json:"cohorts"`
	Global  CohortSummary            `json:"global"`
}
