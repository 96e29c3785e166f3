package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/born-ml/nerfloss/internal/config"
	"github.com/born-ml/nerfloss/internal/parallel"
	"github.com/born-ml/nerfloss/internal/raybatch"
)

type evalFlags struct {
	config  string
	workers int
}

func newEvalCommand() *cobra.Command {
	var f evalFlags
	cmd := &cobra.Command{
		Use:   "eval [flags] BATCH...",
		Short: "Evaluate the configured losses on ray batches",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, f, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.config, "config", "c", "", "YAML loss configuration (defaults when empty)")
	flags.IntVar(&f.workers, "workers", 0, "batches evaluated concurrently (0 = GOMAXPROCS)")
	return cmd
}

func loadConfig(path string) (*config.LossConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runEval(cmd *cobra.Command, f evalFlags, paths []string) error {
	cfg, err := loadConfig(f.config)
	if err != nil {
		return err
	}

	batches := make([]*raybatch.Batch, len(paths))
	for i, path := range paths {
		b, _, err := raybatch.Load(path)
		if err != nil {
			return err
		}
		klog.V(1).Infof("loaded %s: %d rays, %d levels", path, b.Rays(), b.Levels())
		batches[i] = b
	}

	pcfg := parallel.DefaultConfig()
	if f.workers > 0 {
		pcfg = pcfg.WithWorkers(f.workers)
	}
	reports, err := raybatch.EvaluateAll(batches, cfg, pcfg)

	out := cmd.OutOrStdout()
	for i, report := range reports {
		if report == nil {
			continue
		}
		fmt.Fprintf(out, "%s\n", paths[i])
		if werr := writeReport(out, report); werr != nil {
			return werr
		}
	}
	if len(paths) > 1 {
		fmt.Fprintln(out, "mean over batches")
		if werr := writeSummary(out, raybatch.Summarize(reports)); werr != nil {
			return werr
		}
	}
	return err
}

func writeReport(out io.Writer, r *raybatch.Report) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "component\tloss\tweighted\t")
	for _, name := range r.Names() {
		fmt.Fprintf(tw, "%s\t%.6g\t%.6g\t\n", name, r.Components[name], r.Weighted[name])
	}
	fmt.Fprintf(tw, "total\t\t%.6g\t\n", r.Total)
	if err := tw.Flush(); err != nil {
		return err
	}

	if r.DepthError.Count > 0 {
		fmt.Fprintf(out, "depth error over %d rays: mean %.4g, std %.4g, rmse %.4g\n",
			r.DepthError.Count, r.DepthError.Mean, r.DepthError.StdDev, r.DepthError.RMSE)
	}
	if r.Images > 0 {
		pairs := lo.Map(lo.Zip2(r.Scale, r.Shift), func(p lo.Tuple2[float64, float64], _ int) string {
			return fmt.Sprintf("(%.4g, %.4g)", p.A, p.B)
		})
		fmt.Fprintf(out, "ssi scale/shift per image: %v\n", pairs)
	}
	fmt.Fprintln(out)
	return nil
}

func writeSummary(out io.Writer, summary map[string]float64) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	for _, name := range slices.Sorted(maps.Keys(summary)) {
		fmt.Fprintf(tw, "%s\t%.6g\t\n", name, summary[name])
	}
	return tw.Flush()
}
