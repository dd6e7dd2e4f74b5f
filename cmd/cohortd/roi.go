package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/cohortd/internal/archetype"
	"github.com/fyrsmithlabs/cohortd/internal/roi"
)

var (
	trackWorkflow       string
	trackArchetype      string
	trackCapabilities   int
	trackCost           float64
	trackDuration       time.Duration
	trackCompletionRate float64

	trajectoryLimit int
)

var trackCmd = &cobra.Command{
	Use:   "track <cohort-id>",
	Short: "Record one workflow outcome for a cohort",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrack,
}

var trajectoryCmd = &cobra.Command{
	Use:   "trajectory <cohort-id>",
	Short: "Show a cohort's ROI trajectory and trend",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrajectory,
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare ROI across all cohorts",
	Args:  cobra.NoArgs,
	RunE:  runCompare,
}

func init() {
	trackCmd.Flags().StringVar(&trackWorkflow, "workflow", "", "workflow id (required)")
	trackCmd.Flags().StringVar(&trackArchetype, "archetype", string(archetype.Generalist), "cohort archetype")
	trackCmd.Flags().IntVar(&trackCapabilities, "capabilities", 0, "capabilities added (required, > 0)")
	trackCmd.Flags().Float64Var(&trackCost, "cost", 0, "training cost (required, > 0)")
	trackCmd.Flags().DurationVar(&trackDuration, "duration", 0, "workflow duration")
	trackCmd.Flags().Float64Var(&trackCompletionRate, "completion-rate", 1.0, "workflow completion rate")
	trackCmd.MarkFlagRequired("workflow")

	trajectoryCmd.Flags().IntVar(&trajectoryLimit, "limit", roi.DefaultTrajectoryLimit, "max records to analyze")
}

func runTrack(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return fail(err)
	}
	defer a.logger.Sync()

	record, err := a.tracker.TrackOutcome(args[0], roi.Outcome{
		WorkflowID:        trackWorkflow,
		Archetype:         archetype.Archetype(trackArchetype),
		CapabilitiesAdded: trackCapabilities,
		Cost:              trackCost,
		Duration:          trackDuration,
		CompletionRate:    trackCompletionRate,
	})
	if err != nil {
		return fail(err)
	}

	fmt.Printf("Recorded outcome %s: roi_multiplier=%.3f roi_achieved=%.3f\n",
		record.WorkflowID, record.ROIMultiplier, record.ROIAchieved)
	return nil
}

func runTrajectory(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return fail(err)
	}
	defer a.logger.Sync()

	trajectory, err := a.tracker.GetTrajectory(args[0], trajectoryLimit)
	if err != nil {
		return fail(err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(trajectory)
}

func runCompare(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return fail(err)
	}
	defer a.logger.Sync()

	comparison, err := a.tracker.CompareAll()
	if err != nil {
		return fail(err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(comparison)
}
