package main

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/born-ml/nerfloss/internal/raybatch"
)

type synthFlags struct {
	out  string
	seed int64
	opts raybatch.Options
}

func newSynthCommand() *cobra.Command {
	f := synthFlags{opts: raybatch.DefaultOptions()}
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic ray batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSynth(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.out, "out", "o", "batch.safetensors", "output file")
	flags.Int64Var(&f.seed, "seed", 1, "random seed")
	addOptionFlags(cmd, &f.opts)
	return cmd
}

// addOptionFlags binds the synthesis options to flags of cmd.
func addOptionFlags(cmd *cobra.Command, opts *raybatch.Options) {
	flags := cmd.Flags()
	flags.IntVar(&opts.Rays, "rays", opts.Rays, "number of rays")
	flags.IntSliceVar(&opts.Samples, "samples", opts.Samples, "samples per level, proposal levels first")
	flags.Float64Var(&opts.Near, "near", opts.Near, "near plane")
	flags.Float64Var(&opts.Far, "far", opts.Far, "far plane")
	flags.IntVar(&opts.Images, "images", opts.Images, "number of monocular depth maps, 0 to skip")
	flags.IntVar(&opts.Height, "height", opts.Height, "depth map height")
	flags.IntVar(&opts.Width, "width", opts.Width, "depth map width")
	flags.Float64Var(&opts.InvalidFraction, "invalid-fraction", opts.InvalidFraction,
		"fraction of rays and pixels without ground truth")
}

func runSynth(cmd *cobra.Command, f synthFlags) error {
	b, err := raybatch.Synthesize(rand.New(rand.NewSource(f.seed)), f.opts)
	if err != nil {
		return err
	}
	meta := map[string]string{
		"seed":    strconv.FormatInt(f.seed, 10),
		"version": version,
	}
	if err := raybatch.Save(f.out, b, meta); err != nil {
		return err
	}
	klog.V(1).Infof("wrote %d tensors to %s", len(b.Names()), f.out)
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rays, %d levels to %s\n", b.Rays(), b.Levels(), f.out)
	return nil
}
