package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/cohortd/internal/traits"
)

// clusterSeed makes a discovery run reproducible when non-zero.
var clusterSeed int64

var discoverCmd = &cobra.Command{
	Use:   "discover <histories.json>",
	Short: "Run cohort discovery over a user interaction history file",
	Long: `Run one cohort discovery pass.

The input file maps user ids to ordered interaction event lists:

  {
    "user-1": [
      {"timestamp": "2026-08-01T10:00:00Z", "type": "session"},
      {"timestamp": "2026-08-01T10:01:00Z", "type": "capability_used",
       "capability": "search", "domain": "research"}
    ]
  }

The previous cohort generation is atomically replaced on success. Run with
--seed for a reproducible partition.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().Int64Var(&clusterSeed, "seed", 0, "clustering seed (0 for random)")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fail(fmt.Errorf("reading history file: %w", err))
	}

	var histories map[string][]traits.Event
	if err := json.Unmarshal(data, &histories); err != nil {
		return fail(fmt.Errorf("parsing history file: %w", err))
	}

	a, err := newApp()
	if err != nil {
		return fail(err)
	}
	defer a.logger.Sync()

	gen, err := a.service.Discover(cmd.Context(), histories)
	if err != nil {
		return fail(err)
	}

	fmt.Printf("Discovered %d cohorts from %d users (%d skipped):\n",
		len(gen.Cohorts), len(histories), len(gen.Metadata.Skipped))
	for _, c := range gen.Cohorts {
		fmt.Printf("  %s  %-20s %d members\n", c.ID, c.Archetype, c.Size)
	}
	return nil
}
