package roi

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/cohortd/internal/archetype"
)

func newTestTracker(t *testing.T) (*Tracker, string) {
	t.Helper()
	dir := t.TempDir()
	tracker, err := NewTracker(dir, nil)
	require.NoError(t, err)

	// Monotonic fake clock so records order deterministically.
	var mu sync.Mutex
	cur := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tracker.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	})
	return tracker, dir
}

func TestTrackOutcome_DerivedMetrics(t *testing.T) {
	tracker, _ := newTestTracker(t)

	record, err := tracker.TrackOutcome("cohort-1", Outcome{
		WorkflowID:        "wf-1",
		Archetype:         archetype.Specialist,
		CapabilitiesAdded: 12,
		Cost:              4,
		Duration:          90 * time.Minute,
		CompletionRate:    0.95,
	})
	require.NoError(t, err)

	assert.InDelta(t, 3.0, record.ROIMultiplier, 1e-9)
	assert.InDelta(t, 1.6, record.EstimatedROI, 1e-9)
	assert.InDelta(t, 1.875, record.ROIAchieved, 1e-9)
	assert.InDelta(t, 1.0/3.0, record.CostPerCapability, 1e-9)
	assert.Equal(t, "cohort-1", record.CohortID)
	assert.False(t, record.Timestamp.IsZero())
}

func TestTrackOutcome_InvalidMetrics(t *testing.T) {
	tracker, dir := newTestTracker(t)

	tests := []struct {
		name    string
		outcome Outcome
	}{
		{"zero capabilities", Outcome{WorkflowID: "wf", CapabilitiesAdded: 0, Cost: 5}},
		{"negative capabilities", Outcome{WorkflowID: "wf", CapabilitiesAdded: -3, Cost: 5}},
		{"zero cost", Outcome{WorkflowID: "wf", CapabilitiesAdded: 5, Cost: 0}},
		{"negative cost", Outcome{WorkflowID: "wf", CapabilitiesAdded: 5, Cost: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tracker.TrackOutcome("cohort-1", tt.outcome)
			assert.ErrorIs(t, err, ErrInvalidMetric)
		})
	}

	// No record was written.
	_, err := os.Stat(filepath.Join(dir, trajectoryFile))
	assert.True(t, os.IsNotExist(err))
}

func TestTrackOutcome_RequiresIDs(t *testing.T) {
	tracker, _ := newTestTracker(t)

	_, err := tracker.TrackOutcome("", Outcome{WorkflowID: "wf", CapabilitiesAdded: 1, Cost: 1})
	assert.ErrorIs(t, err, ErrEmptyCohortID)

	_, err = tracker.TrackOutcome("cohort-1", Outcome{CapabilitiesAdded: 1, Cost: 1})
	assert.ErrorIs(t, err, ErrEmptyWorkflow)
}

// trackSequence appends outcomes whose ROI-achieved values (Generalist
// baseline 1.0) follow the given capability/cost pairs.
func trackSequence(t *testing.T, tracker *Tracker, cohortID string, pairs [][2]float64) {
	t.Helper()
	for i, p := range pairs {
		_, err := tracker.TrackOutcome(cohortID, Outcome{
			WorkflowID:        fmt.Sprintf("wf-%d", i),
			Archetype:         archetype.Generalist,
			CapabilitiesAdded: int(p[0]),
			Cost:              p[1],
			CompletionRate:    1.0,
		})
		require.NoError(t, err)
	}
}

func TestGetTrajectory_ImprovingTrend(t *testing.T) {
	tracker, _ := newTestTracker(t)

	// ROI achieved: 1.20 1.25 1.35 1.45 1.50 1.56 1.55 1.60
	trackSequence(t, tracker, "cohort-1", [][2]float64{
		{12, 10}, {10, 8}, {27, 20}, {29, 20}, {15, 10}, {39, 25}, {31, 20}, {16, 10},
	})

	trajectory, err := tracker.GetTrajectory("cohort-1", 20)
	require.NoError(t, err)

	require.Len(t, trajectory.Records, 8)
	assert.Equal(t, DirectionImproving, trajectory.Direction)
	assert.InDelta(t, 33.3, trajectory.PercentChange, 0.1)

	// Chronological order.
	for i := 1; i < len(trajectory.Records); i++ {
		assert.True(t, trajectory.Records[i].Timestamp.After(trajectory.Records[i-1].Timestamp))
	}
}

func TestGetTrajectory_DegradingTrend(t *testing.T) {
	tracker, _ := newTestTracker(t)

	trackSequence(t, tracker, "cohort-1", [][2]float64{{16, 10}, {15, 10}, {12, 10}})

	trajectory, err := tracker.GetTrajectory("cohort-1", 10)
	require.NoError(t, err)
	assert.Equal(t, DirectionDegrading, trajectory.Direction)
	assert.InDelta(t, -25.0, trajectory.PercentChange, 0.1)
}

func TestGetTrajectory_StableWithinNoise(t *testing.T) {
	tracker, _ := newTestTracker(t)

	// 1.00 -> 1.01 is inside the 2% noise threshold.
	trackSequence(t, tracker, "cohort-1", [][2]float64{{100, 100}, {101, 100}})

	trajectory, err := tracker.GetTrajectory("cohort-1", 10)
	require.NoError(t, err)
	assert.Equal(t, DirectionStable, trajectory.Direction)
	assert.InDelta(t, 1.0, trajectory.PercentChange, 0.01)
}

func TestGetTrajectory_NoHistory(t *testing.T) {
	tracker, _ := newTestTracker(t)

	trajectory, err := tracker.GetTrajectory("cohort-1", 10)
	require.NoError(t, err)
	assert.Empty(t, trajectory.Records)
	assert.Equal(t, DirectionStable, trajectory.Direction)
	assert.Zero(t, trajectory.PercentChange)
	assert.Zero(t, trajectory.Aggregates)
}

func TestGetTrajectory_LimitKeepsMostRecent(t *testing.T) {
	tracker, _ := newTestTracker(t)

	trackSequence(t, tracker, "cohort-1", [][2]float64{
		{10, 10}, {20, 10}, {30, 10}, {40, 10}, {50, 10},
	})

	trajectory, err := tracker.GetTrajectory("cohort-1", 2)
	require.NoError(t, err)
	require.Len(t, trajectory.Records, 2)
	assert.Equal(t, "wf-3", trajectory.Records[0].WorkflowID)
	assert.Equal(t, "wf-4", trajectory.Records[1].WorkflowID)
}

func TestGetTrajectory_FiltersByCohort(t *testing.T) {
	tracker, _ := newTestTracker(t)

	trackSequence(t, tracker, "cohort-1", [][2]float64{{10, 10}, {20, 10}})
	trackSequence(t, tracker, "cohort-2", [][2]float64{{30, 10}})

	trajectory, err := tracker.GetTrajectory("cohort-2", 10)
	require.NoError(t, err)
	require.Len(t, trajectory.Records, 1)
	assert.Equal(t, "cohort-2", trajectory.Records[0].CohortID)
}

func TestGetTrajectory_SkipsMalformedLines(t *testing.T) {
	tracker, dir := newTestTracker(t)

	trackSequence(t, tracker, "cohort-1", [][2]float64{{10, 10}})

	logPath := filepath.Join(dir, trajectoryFile)
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("{truncated garbage\nnot json at all\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	trackSequence(t, tracker, "cohort-1", [][2]float64{{20, 10}})

	trajectory, err := tracker.GetTrajectory("cohort-1", 10)
	require.NoError(t, err)
	assert.Len(t, trajectory.Records, 2)
}

func TestReadRecords_SkipsIncompleteRecords(t *testing.T) {
	tracker, dir := newTestTracker(t)

	// ROI achieved 2.0.
	trackSequence(t, tracker, "cohort-1", [][2]float64{{10, 5}})

	// Valid JSON lines that decode to defaulted records must not count as
	// history: they would surface an empty cohort id and drag the global
	// averages toward zero.
	logPath := filepath.Join(dir, trajectoryFile)
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("null\n{}\n" +
		`{"cohort_id":"cohort-1","workflow_id":"wf-x","capabilities_added":0,"cost":5}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	comparison, err := tracker.CompareAll()
	require.NoError(t, err)
	require.Len(t, comparison.Cohorts, 1)
	assert.NotContains(t, comparison.Cohorts, "")
	assert.Equal(t, 1, comparison.Global.RecordCount)
	assert.InDelta(t, 2.0, comparison.Global.Aggregates.AverageROIAchieved, 1e-9)

	trajectory, err := tracker.GetTrajectory("cohort-1", 10)
	require.NoError(t, err)
	assert.Len(t, trajectory.Records, 1)
}

func TestGetTrajectory_Aggregates(t *testing.T) {
	tracker, _ := newTestTracker(t)

	// ROI achieved 2.0 and 4.0; cost/capability 0.5 and 0.25.
	trackSequence(t, tracker, "cohort-1", [][2]float64{{10, 5}, {20, 5}})

	trajectory, err := tracker.GetTrajectory("cohort-1", 10)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, trajectory.Aggregates.AverageROIAchieved, 1e-9)
	assert.InDelta(t, 0.375, trajectory.Aggregates.AverageCostPerCapability, 1e-9)
	assert.Equal(t, 30, trajectory.Aggregates.TotalCapabilities)
	assert.InDelta(t, 10.0, trajectory.Aggregates.TotalCost, 1e-9)
}

func TestCompareAll(t *testing.T) {
	tracker, _ := newTestTracker(t)

	trackSequence(t, tracker, "cohort-a", [][2]float64{{10, 5}, {20, 5}})
	trackSequence(t, tracker, "cohort-b", [][2]float64{{12, 10}})
	trackSequence(t, tracker, "cohort-c", [][2]float64{{16, 10}})

	comparison, err := tracker.CompareAll()
	require.NoError(t, err)
	require.Len(t, comparison.Cohorts, 3)

	a := comparison.Cohorts["cohort-a"]
	assert.Equal(t, 2, a.RecordCount)
	assert.InDelta(t, 3.0, a.Aggregates.AverageROIAchieved, 1e-9)
	assert.Equal(t, 30, a.Aggregates.TotalCapabilities)
	assert.InDelta(t, 10.0, a.Aggregates.TotalCost, 1e-9)

	b := comparison.Cohorts["cohort-b"]
	assert.Equal(t, 1, b.RecordCount)
	assert.InDelta(t, 1.2, b.Aggregates.AverageROIAchieved, 1e-9)

	global := comparison.Global
	assert.Equal(t, 4, global.RecordCount)
	assert.Equal(t, 58, global.Aggregates.TotalCapabilities)
	assert.InDelta(t, 30.0, global.Aggregates.TotalCost, 1e-9)
	assert.InDelta(t, (2.0+4.0+1.2+1.6)/4, global.Aggregates.AverageROIAchieved, 1e-9)
}

func TestCompareAll_EmptyLog(t *testing.T) {
	tracker, _ := newTestTracker(t)

	comparison, err := tracker.CompareAll()
	require.NoError(t, err)
	assert.Empty(t, comparison.Cohorts)
	assert.Zero(t, comparison.Global.RecordCount)
}

func TestTrackOutcome_ConcurrentAppends(t *testing.T) {
	tracker, _ := newTestTracker(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, err := tracker.TrackOutcome("cohort-1", Outcome{
					WorkflowID:        fmt.Sprintf("wf-%d-%d", i, j),
					Archetype:         archetype.PowerUser,
					CapabilitiesAdded: 5,
					Cost:              2,
				})
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	trajectory, err := tracker.GetTrajectory("cohort-1", 200)
	require.NoError(t, err)
	assert.Len(t, trajectory.Records, 80)
}
