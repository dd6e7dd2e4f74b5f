package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cohortsCmd = &cobra.Command{
	Use:   "cohorts",
	Short: "List the current cohort generation",
	Args:  cobra.NoArgs,
	RunE:  runCohorts,
}

func runCohorts(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return fail(err)
	}
	defer a.logger.Sync()

	cohorts := a.service.GetAllCohorts(cmd.Context())
	if len(cohorts) == 0 {
		fmt.Println("No cohort generation persisted yet. Run `cohortd discover` first.")
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(cohorts)
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <user-id>",
	Short: "Find the cohort a user belongs to",
	Args:  cobra.ExactArgs(1),
	RunE:  runLookup,
}

func runLookup(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return fail(err)
	}
	defer a.logger.Sync()

	c, ok := a.service.GetCohortByUser(cmd.Context(), args[0])
	if !ok {
		fmt.Printf("User %s is not assigned to any cohort.\n", args[0])
		return nil
	}

	fmt.Printf("User %s belongs to cohort %s (%s, %d members)\n",
		args[0], c.ID, c.Archetype, c.Size)
	return nil
}
