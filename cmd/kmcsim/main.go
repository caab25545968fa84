package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/kmcsim/internal/config"
)

var (
	dataDir     string
	logLevel    string
	metricsFile string
	// Run overrides; zero values keep the model file's settings.
	seed               uint64
	endTime            float64
	sampleDt           float64
	scheduler          string
	rngName            string
	replicates         int
	checkpointInterval float64
	// Output path for exports; empty means stdout.
	outFile string
	// Column shown by plot.
	column string
	// Simulated time per frame in live mode.
	liveStep float64
)

// main registers the commands and exits with status 1 on error.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "kmcsim",
		Short:        "stochastic reaction-diffusion simulator",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger(logLevel)
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".kmcsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write prometheus metrics to this textfile")

	runCmd := &cobra.Command{
		Use:   "run [preset|model.yaml]",
		Short: "run simulation",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().IntVar(&replicates, "replicates", 0, "independent replicates")
	runCmd.Flags().Float64Var(&checkpointInterval, "checkpoint-interval", 0, "simulated time between checkpoints")

	resumeCmd := &cobra.Command{
		Use:   "resume [run_id]",
		Short: "continue a run from its latest checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  resumeRun,
	}
	resumeCmd.Flags().Float64Var(&endTime, "end", 0, "new end time")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&column, "column", "", "plot only this column, e.g. cyt/A")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run counts to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file")

	checkpointsCmd := &cobra.Command{
		Use:   "checkpoints [run_id]",
		Short: "list the checkpoints of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  listCheckpoints,
	}

	benchCmd := &cobra.Command{
		Use:   "bench [preset|model.yaml]",
		Short: "compare schedulers on a model",
		Args:  cobra.ExactArgs(1),
		RunE:  benchModel,
	}
	benchCmd.Flags().Float64Var(&endTime, "end", 0, "end time")
	benchCmd.Flags().Uint64Var(&seed, "seed", 0, "random seed")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in models",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	describeCmd := &cobra.Command{
		Use:   "describe [preset|model.yaml]",
		Short: "print a model in reaction notation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0])
			if err != nil {
				return err
			}
			return describe(cmd.OutOrStdout(), cfg)
		},
	}

	liveCmd := &cobra.Command{
		Use:   "live [preset|model.yaml]",
		Short: "run simulation with live visualization",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	addRunFlags(liveCmd)
	liveCmd.Flags().Float64Var(&liveStep, "step", 0, "simulated time per frame (default sample_dt)")

	rootCmd.AddCommand(runCmd, resumeCmd, listCmd, plotCmd, exportCSVCmd, exportJSONCmd,
		checkpointsCmd, benchCmd, presetsCmd, describeCmd, liveCmd)
	return rootCmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().Float64Var(&endTime, "end", 0, "end time in seconds")
	cmd.Flags().Float64Var(&sampleDt, "dt", 0, "sample interval in seconds")
	cmd.Flags().StringVar(&scheduler, "scheduler", "", "scheduler (direct|tree)")
	cmd.Flags().StringVar(&rngName, "rng", "", "random source (mt19937|pcg|chacha8)")
}

func setupLogger(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}

// loadConfig resolves a preset name or a model file path.
func loadConfig(arg string) (*config.Config, error) {
	if cfg := config.GetPreset(arg); cfg != nil {
		return cfg, nil
	}
	if strings.HasSuffix(arg, ".yaml") || strings.HasSuffix(arg, ".yml") {
		cfg, err := config.Load(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("unknown preset: %s (available: %v)", arg, config.ListPresets())
}

// applyOverrides copies flags the user set onto cfg.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Solver.Seed = seed
	}
	if flags.Changed("end") {
		cfg.Solver.EndTime = endTime
	}
	if flags.Changed("dt") {
		cfg.Solver.SampleDt = sampleDt
	}
	if flags.Changed("scheduler") {
		cfg.Solver.Scheduler = scheduler
	}
	if flags.Changed("rng") {
		cfg.Solver.RNG = rngName
	}
	if flags.Changed("replicates") {
		cfg.Solver.Replicates = replicates
	}
	if flags.Changed("checkpoint-interval") {
		cfg.Solver.CheckpointInterval = checkpointInterval
	}
}
