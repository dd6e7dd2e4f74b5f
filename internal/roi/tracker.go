package roi

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cohortd/internal/archetype"
)

const (
	// trajectoryFile is the append-only log name inside the data directory.
	trajectoryFile = "roi_trajectory.jsonl"

	// TrendNoiseThreshold is the relative change below which a trajectory
	// counts as stable rather than improving or degrading.
	TrendNoiseThreshold = 0.02

	// DefaultTrajectoryLimit bounds GetTrajectory when the caller passes a
	// non-positive limit.
	DefaultTrajectoryLimit = 50

	// maxLineSize bounds a single log line during scanning.
	maxLineSize = 1 << 20
)

// Tracker appends workflow outcomes to the ROI log and serves trend and
// aggregate queries over it.
//
// Appends are serialized by a process-level mutex so concurrent outcome
// reports cannot interleave lines. Reads tolerate malformed lines by
// skipping them.
type Tracker struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger

	// now is the clock used for record timestamps; tests swap it.
	now func() time.Time

	metrics *Metrics
}

// NewTracker creates a tracker logging under dataDir.
func NewTracker(dataDir string, logger *zap.Logger) (*Tracker, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Tracker{
		path:   filepath.Join(dataDir, trajectoryFile),
		logger: logger,
		now:    time.Now,
	}, nil
}

// SetClock replaces the tracker's time source. Intended for tests.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// SetMetrics attaches Prometheus metrics. Optional.
func (t *Tracker) SetMetrics(m *Metrics) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics = m
}

// TrackOutcome validates an outcome, derives its ROI metrics, and appends
// one immutable record.
//
// CapabilitiesAdded and Cost must both be positive; otherwise the call
// fails with ErrInvalidMetric and nothing is written. The estimated ROI is
// the archetype's fixed baseline.
func (t *Tracker) TrackOutcome(cohortID string, outcome Outcome) (*Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cohortID == "" {
		return nil, ErrEmptyCohortID
	}
	if outcome.WorkflowID == "" {
		return nil, ErrEmptyWorkflow
	}
	if outcome.CapabilitiesAdded <= 0 || outcome.Cost <= 0 {
		if t.metrics != nil {
			t.metrics.RejectedTotal.Inc()
		}
		return nil, fmt.Errorf("%w: capabilities_added=%d cost=%f",
			ErrInvalidMetric, outcome.CapabilitiesAdded, outcome.Cost)
	}

	estimated := archetype.BaselineROI(outcome.Archetype)
	multiplier := float64(outcome.CapabilitiesAdded) / outcome.Cost
	record := Record{
		Timestamp:         t.now().UTC(),
		CohortID:          cohortID,
		Archetype:         outcome.Archetype,
		WorkflowID:        outcome.WorkflowID,
		CapabilitiesAdded: outcome.CapabilitiesAdded,
		Cost:              outcome.Cost,
		Duration:          outcome.Duration,
		CompletionRate:    outcome.CompletionRate,
		CostPerCapability: outcome.Cost / float64(outcome.CapabilitiesAdded),
		ROIMultiplier:     multiplier,
		EstimatedROI:      estimated,
		ROIAchieved:       multiplier / estimated,
	}

	if err := t.append(record); err != nil {
		return nil, err
	}
	if t.metrics != nil {
		t.metrics.RecordsTotal.Inc()
	}

	t.logger.Debug("ROI outcome recorded",
		zap.String("cohort_id", cohortID),
		zap.String("workflow_id", outcome.WorkflowID),
		zap.Float64("roi_achieved", record.ROIAchieved))
	return &record, nil
}

// append writes one record as a single JSONL line. Caller holds the mutex.
func (t *Tracker) append(record Record) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling ROI record: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening ROI log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("appending ROI record: %w", err)
	}
	return nil
}

// GetTrajectory returns the most recent limit records for a cohort in
// chronological order, with trend direction, percent change, and
// aggregates.
//
// No history yields an empty, stable trajectory.
func (t *Tracker) GetTrajectory(cohortID string, limit int) (*Trajectory, error) {
	if cohortID == "" {
		return nil, ErrEmptyCohortID
	}
	if limit <= 0 {
		limit = DefaultTrajectoryLimit
	}

	all, err := t.readRecords()
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, r := range all {
		if r.CohortID == cohortID {
			records = append(records, r)
		}
	}
	if len(records) > limit {
		records = records[len(records)-limit:]
	}

	direction, change := trend(records)
	return &Trajectory{
		CohortID:      cohortID,
		Records:       records,
		Direction:     direction,
		PercentChange: change,
		Aggregates:    aggregate(records),
	}, nil
}

// CompareAll groups the full log by cohort and returns per-cohort
// summaries plus a global one.
func (t *Tracker) CompareAll() (*Comparison, error) {
	all, err := t.readRecords()
	if err != nil {
		return nil, err
	}

	byCohort := make(map[string][]Record)
	for _, r := range all {
		byCohort[r.CohortID] = append(byCohort[r.CohortID], r)
	}

	cohorts := make(map[string]CohortSummary, len(byCohort))
	for id, records := range byCohort {
		cohorts[id] = CohortSummary{
			CohortID:    id,
			RecordCount: len(records),
			Aggregates:  aggregate(records),
		}
	}

	return &Comparison{
		Cohorts: cohorts,
		Global: CohortSummary{
			RecordCount: len(all),
			Aggregates:  aggregate(all),
		},
	}, nil
}

// valid reports whether a decoded log line carries the fields every
// appended record is guaranteed to have. Lines that parse as JSON but
// decode to defaulted records (null, {}, truncated writes) fail here.
func (r *Record) valid() bool {
	return r.CohortID != "" &&
		r.WorkflowID != "" &&
		r.CapabilitiesAdded > 0 &&
		r.Cost > 0
}

// readRecords loads the full log in append order. A missing file is no
// history; malformed or incomplete lines are skipped with a warning.
func (t *Tracker) readRecords() ([]Record, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ROI log: %w", err)
	}
	defer f.Close()

	var records []Record
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(line, &r); err != nil || !r.valid() {
			skipped++
			continue
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ROI log: %w", err)
	}

	if skipped > 0 {
		t.logger.Warn("skipped malformed ROI log lines",
			zap.Int("skipped", skipped),
			zap.String("path", t.path))
	}
	return records, nil
}

// trend compares first and last ROI achieved in the window. Changes within
// TrendNoiseThreshold either way count as stable.
func trend(records []Record) (Direction, float64) {
	if len(records) < 2 {
		return DirectionStable, 0
	}
	first := records[0].ROIAchieved
	last := records[len(records)-1].ROIAchieved
	if first == 0 {
		return DirectionStable, 0
	}

	change := (last - first) / first
	switch {
	case change > TrendNoiseThreshold:
		return DirectionImproving, change * 100
	case change < -TrendNoiseThreshold:
		return DirectionDegrading, change * 100
	default:
		return DirectionStable, change * 100
	}
}

func aggregate(records []Record) Aggregates {
	if len(records) == 0 {
		return Aggregates{}
	}
	agg := Aggregates{}
	for _, r := range records {
		agg.AverageROIAchieved += r.ROIAchieved
		agg.AverageCostPerCapability += r.CostPerCapability
		agg.TotalCapabilities += r.CapabilitiesAdded
		agg.TotalCost += r.Cost
	}
	n := float64(len(records))
	agg.AverageROIAchieved /= n
	agg.AverageCostPerCapability /= n
	return agg
}
