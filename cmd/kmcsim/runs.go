package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/kmcsim/internal/checkpoint"
	"github.com/san-kum/kmcsim/internal/config"
	"github.com/san-kum/kmcsim/internal/storage"
)

const maxPlots = 6

var errNoSamples = errors.New("no data to plot")

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tEND\tSCHED\tREPS\tEVENTS")
	for _, run := range runs {
		events := strconv.FormatUint(run.Steps, 10)
		if !run.Complete {
			events = "incomplete"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%gs\t%s\t%d\t%s\n",
			run.ID,
			run.Model,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.EndTime,
			run.Scheduler,
			run.Replicates,
			events,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	res, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}
	if len(res.Samples) < 2 {
		return errNoSamples
	}

	cols := make([]int, 0, len(res.Columns))
	for i, name := range res.Columns {
		switch {
		case column != "" && name == column:
			cols = append(cols, i)
		case column == "" && !allZero(res.Samples, i):
			cols = append(cols, i)
		}
	}
	if len(cols) == 0 {
		if column != "" {
			return fmt.Errorf("unknown column %q (available: %v)", column, res.Columns)
		}
		return errNoSamples
	}
	if len(cols) > maxPlots {
		cols = cols[:maxPlots]
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run: %s\n", meta.ID)
	fmt.Fprintf(out, "model: %s\n", meta.Model)
	fmt.Fprintf(out, "samples: %d (dt %g s)\n\n", len(res.Times), meta.SampleDt)
	for _, c := range cols {
		data := make([]float64, len(res.Samples))
		for i, row := range res.Samples {
			data[i] = row[c]
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(res.Columns[c]+" vs time"),
		)
		fmt.Fprintln(out, graph)
		fmt.Fprintln(out)
	}
	return nil
}

func allZero(samples [][]float64, col int) bool {
	for _, row := range samples {
		if row[col] != 0 {
			return false
		}
	}
	return true
}

// output returns the export destination and a function closing it.
func output(cmd *cobra.Command) (io.Writer, func() error, error) {
	if outFile == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(outFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	w, closeFn, err := output(cmd)
	if err != nil {
		return err
	}
	if err := storage.New(dataDir).ExportCSV(args[0], w); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func exportJSON(cmd *cobra.Command, args []string) error {
	w, closeFn, err := output(cmd)
	if err != nil {
		return err
	}
	if err := storage.New(dataDir).ExportJSON(args[0], w); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func listCheckpoints(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	if _, err := st.Load(args[0]); err != nil {
		return err
	}
	cs, err := checkpoint.Open(st.CheckpointPath())
	if err != nil {
		return err
	}
	defer cs.Close()

	entries, err := cs.List(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "no checkpoints found")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSIM TIME\tEVENTS\tSAVED")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%g\t%d\t%s\n", e.ID, e.Time, e.Steps, e.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSPECIES\tGEOMETRY\tSCHEDULER")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		geometry := "well-mixed"
		if cfg.Geometry.Mesh != nil {
			geometry = fmt.Sprintf("mesh (%d tets)", len(cfg.Geometry.Mesh.Tets))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, joinOr(cfg.Species, ", ", "-"), geometry, cfg.Solver.Scheduler)
	}
	return w.Flush()
}
