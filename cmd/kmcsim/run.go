package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/kmcsim/internal/checkpoint"
	"github.com/san-kum/kmcsim/internal/config"
	"github.com/san-kum/kmcsim/internal/experiment"
	"github.com/san-kum/kmcsim/internal/metrics"
	"github.com/san-kum/kmcsim/internal/sim"
	"github.com/san-kum/kmcsim/internal/storage"
	"github.com/san-kum/kmcsim/internal/viz"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}
	applyOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID := storage.NewRunID()
	if err := st.Begin(runID, cfg, ""); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run id: %s\n", runID)
	fmt.Fprintf(out, "running %s (%d replicate(s), scheduler %s)...\n",
		cfg.Name, cfg.Solver.Replicates, cfg.Solver.Scheduler)
	start := time.Now()
	result, err := execute(ctx, cfg, runID, nil)
	if err != nil {
		return interrupted(out, runID, err)
	}
	elapsed := time.Since(start)

	if err := st.SaveAs(runID, cfg, result, ""); err != nil {
		return err
	}
	printSummary(out, runID, elapsed, result)
	return nil
}

// interrupted points at resume when err is a cancellation.
func interrupted(w io.Writer, runID string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintf(w, "interrupted; continue with: kmcsim resume %s\n", runID)
	}
	return err
}

// execute runs cfg under runID, writing checkpoints and metrics when
// configured. A single replicate may start from a checkpoint.
func execute(ctx context.Context, cfg *config.Config, runID string, from *checkpoint.Entry) (*experiment.Result, error) {
	log := slog.Default().With("run", runID)

	var collector *metrics.Collector
	if metricsFile != "" {
		collector = metrics.NewCollector(runID)
		defer func() {
			if err := collector.WriteTextfile(metricsFile); err != nil {
				log.Error("failed to write metrics", "path", metricsFile, "err", err)
			}
		}()
	}
	observe := func(rep int, s *sim.Solver, _ float64, _ []float64) {
		if collector != nil {
			collector.Observe(rep, s)
		}
	}

	if cfg.Solver.Replicates > 1 {
		if cfg.Solver.CheckpointInterval > 0 {
			log.Warn("checkpoints are only written for single-replicate runs")
		}
		en := experiment.NewEnsemble(cfg, log)
		en.AddObserver(observe)
		results, err := en.Run(ctx)
		if err != nil {
			return nil, err
		}
		return experiment.Mean(results)
	}

	exp := experiment.New(cfg, log)
	if err := exp.Setup(cfg.Solver.Seed, nil); err != nil {
		return nil, err
	}
	exp.AddObserver(observe)

	if cfg.Solver.CheckpointInterval > 0 || from != nil {
		cs, err := checkpoint.Open(storage.New(dataDir).CheckpointPath())
		if err != nil {
			return nil, err
		}
		defer cs.Close()
		// The last checkpoint of an interrupted run is written after ctx
		// is done.
		saveCtx := context.WithoutCancel(ctx)
		exp.SetCheckpointSink(func(cp *sim.Checkpoint, rngState []byte) error {
			e, err := checkpoint.NewEntry(runID, cp, rngState)
			if err != nil {
				return err
			}
			if _, err := cs.Save(saveCtx, e); err != nil {
				return err
			}
			log.Debug("checkpoint saved", "time", cp.Time, "steps", cp.NSteps)
			return nil
		})
	}

	if from == nil {
		return exp.Run(ctx)
	}
	cp, err := from.Checkpoint()
	if err != nil {
		return nil, err
	}
	return exp.Resume(ctx, cp, from.RNGState)
}

func printSummary(w io.Writer, runID string, elapsed time.Duration, result *experiment.Result) {
	fmt.Fprintf(w, "completed %s in %v\n", runID, elapsed)
	fmt.Fprintf(w, "events: %d\n", result.Steps)
	fmt.Fprintf(w, "samples: %d\n", len(result.Times))
	if len(result.Samples) > 0 {
		fmt.Fprintln(w, "\nfinal counts:")
		last := result.Samples[len(result.Samples)-1]
		for i, col := range result.Columns {
			if last[i] != 0 {
				fmt.Fprintf(w, "  %s: %g\n", col, last[i])
			}
		}
	}
	fmt.Fprintln(w, "\nmetrics:")
	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %.6g\n", name, result.Metrics[name])
	}
}

func resumeRun(cmd *cobra.Command, args []string) error {
	prevID := args[0]
	st := storage.New(dataDir)
	cfg, err := st.LoadConfig(prevID)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("end") {
		cfg.Solver.EndTime = endTime
	}
	if cfg.Solver.Replicates > 1 {
		return fmt.Errorf("run %s has %d replicates; only single-replicate runs can be resumed", prevID, cfg.Solver.Replicates)
	}

	cs, err := checkpoint.Open(st.CheckpointPath())
	if err != nil {
		return err
	}
	entry, err := cs.Latest(cmd.Context(), prevID)
	cs.Close()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	runID := storage.NewRunID()
	if err := st.Begin(runID, cfg, prevID); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run id: %s\n", runID)
	fmt.Fprintf(out, "resuming %s from t=%g (%d events)...\n", prevID, entry.Time, entry.Steps)
	start := time.Now()
	result, err := execute(ctx, cfg, runID, &entry)
	if err != nil {
		return interrupted(out, runID, err)
	}
	if err := st.SaveAs(runID, cfg, result, prevID); err != nil {
		return err
	}
	printSummary(out, runID, time.Since(start), result)
	return nil
}

func benchModel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}
	applyOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "benchmarking %s to t=%g\n\n", cfg.Name, cfg.Solver.EndTime)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCHEDULER\tEVENTS\tTIME\tEVENTS/SEC\tRESYNCS")

	registry := experiment.NewRegistry()
	for _, name := range registry.ListSchedulers() {
		c := cfg.Clone()
		c.Solver.Scheduler = name
		exp := experiment.New(c, slog.Default())
		if err := exp.Setup(c.Solver.Seed, []metrics.Metric{}); err != nil {
			return err
		}
		s := exp.Solver()

		start := time.Now()
		if err := s.RunContext(cmd.Context(), c.Solver.EndTime); err != nil {
			return err
		}
		elapsed := time.Since(start)
		rate := float64(s.NSteps()) / elapsed.Seconds()
		fmt.Fprintf(w, "%s\t%d\t%v\t%.0f\t%d\n", name, s.NSteps(), elapsed.Round(time.Microsecond), rate, s.Resyncs())
	}
	return w.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}
	applyOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The TUI owns the terminal; keep logs out of it.
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	exp := experiment.New(cfg, log)
	if err := exp.Setup(cfg.Solver.Seed, nil); err != nil {
		return err
	}
	step := liveStep
	if step <= 0 {
		step = cfg.Solver.SampleDt
	}

	p := tea.NewProgram(viz.NewModel(exp.Solver(), cfg.Name, step, cfg.Solver.EndTime), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(viz.Model); ok && m.Err() != nil {
		return m.Err()
	}
	return nil
}
