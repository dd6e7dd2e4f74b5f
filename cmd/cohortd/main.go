// Package main implements the cohortd CLI for running cohort discovery and
// querying cohorts and ROI trajectories.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cohortd/internal/archetype"
	"github.com/fyrsmithlabs/cohortd/internal/cluster"
	"github.com/fyrsmithlabs/cohortd/internal/cohort"
	"github.com/fyrsmithlabs/cohortd/internal/config"
	"github.com/fyrsmithlabs/cohortd/internal/logging"
	"github.com/fyrsmithlabs/cohortd/internal/roi"
	"github.com/fyrsmithlabs/cohortd/internal/traits"
)

var (
	// configPath is the optional YAML config file.
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cohortd",
	Short: "Behavioral cohort discovery and ROI trajectory tracking",
	Long: `cohortd groups users into behavioral cohorts from interaction history
and tracks outcome quality (ROI) per cohort over time.

Discovery is a synchronous batch run: supply the full user interaction
history and the previous cohort generation is atomically replaced.`,
	Version: version,
	// fail already reports runtime errors on stderr.
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(cohortsCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(trajectoryCmd)
	rootCmd.AddCommand(compareCmd)
}

// app bundles the wired components behind each subcommand.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *cohort.Service
	tracker *roi.Tracker
}

// newApp loads config and wires the discovery pipeline and ROI tracker.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	extractor, err := traits.NewExtractor(traits.ExtractorConfig{
		MinInteractions:           cfg.Traits.MinInteractions,
		MaxNewCapabilitiesPerWeek: cfg.Traits.MaxNewCapabilitiesPerWeek,
		MaxInteractionsPerWeek:    cfg.Traits.MaxInteractionsPerWeek,
		FollowUpWindow:            cfg.Traits.FollowUpWindow.Duration(),
	}, logger)
	if err != nil {
		return nil, err
	}

	clusterCfg := cluster.DefaultConfig()
	copy(clusterCfg.Weights[:], cfg.Cluster.Weights)
	clusterCfg.MinK = cfg.Cluster.MinK
	clusterCfg.MaxK = cfg.Cluster.MaxK
	clusterCfg.MaxIterations = cfg.Cluster.MaxIterations
	clusterCfg.ConvergenceThreshold = cfg.Cluster.ConvergenceThreshold
	clusterCfg.Seed = clusterSeed

	engine, err := cluster.NewEngine(clusterCfg, logger)
	if err != nil {
		return nil, err
	}

	labeler, err := archetype.NewLabeler(cfg.Archetype.DominanceMargin)
	if err != nil {
		return nil, err
	}

	store, err := cohort.NewFileStore(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}

	cache, err := cohort.NewCache(store, cfg.Cache.TTL.Duration(), logger)
	if err != nil {
		return nil, err
	}
	cache.SetMetrics(cohort.NewMetrics())
	if err := cache.Warm(); err != nil {
		return nil, err
	}

	service, err := cohort.NewService(extractor, engine, labeler, store, cache, logger)
	if err != nil {
		return nil, err
	}
	service.SetMetrics(cohort.NewMetrics())

	tracker, err := roi.NewTracker(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}
	tracker.SetMetrics(roi.NewMetrics())

	return &app{
		cfg:     cfg,
		logger:  logger,
		service: service,
		tracker: tracker,
	}, nil
}

func fail(err error) error {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return err
}
