package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/born-ml/nerfloss/internal/raybatch"
)

type fitFlags struct {
	steps    int
	lr       float64
	logEvery int
	seed     int64
	out      string
	opts     raybatch.Options
}

func newFitCommand() *cobra.Command {
	f := fitFlags{opts: raybatch.DefaultOptions()}
	cmd := &cobra.Command{
		Use:   "fit [flags] [BATCH]",
		Short: "Fit proposal densities to the finest level with the interlevel loss",
		Long: "Fit trains free density logits on the intervals of level 0 with Adam so that\n" +
			"their weights bound the weights of the last level. Without BATCH a synthetic\n" +
			"batch is generated from the synthesis flags.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(cmd, f, args)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&f.steps, "steps", 200, "optimization steps")
	flags.Float64Var(&f.lr, "lr", 0.05, "Adam learning rate")
	flags.IntVar(&f.logEvery, "log-every", 20, "log the loss every N steps")
	flags.Int64Var(&f.seed, "seed", 1, "random seed for the synthetic batch")
	flags.StringVarP(&f.out, "out", "o", "", "write the batch with the fitted weights_0 to this file")
	addOptionFlags(cmd, &f.opts)
	return cmd
}

func runFit(cmd *cobra.Command, f fitFlags, args []string) error {
	var b *raybatch.Batch
	if len(args) == 1 {
		loaded, _, err := raybatch.Load(args[0])
		if err != nil {
			return err
		}
		b = loaded
	} else {
		synth, err := raybatch.Synthesize(rand.New(rand.NewSource(f.seed)), f.opts)
		if err != nil {
			return err
		}
		b = synth
	}

	res, err := raybatch.FitProposal(b, raybatch.FitOptions{
		Steps: f.steps,
		LR:    f.lr,
		Log: func(step int, loss float64) {
			if f.logEvery > 0 && step%f.logEvery == 0 {
				klog.Infof("step %d: interlevel loss %.6g", step, loss)
			}
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "interlevel loss %.6g -> %.6g after %d steps\n", res.Initial, res.Final, f.steps)
	if f.out == "" {
		return nil
	}

	b.Set(raybatch.WeightsName(0), res.Weights)
	b.Set("proposal_logits", res.Logits)
	if err := raybatch.Save(f.out, b, map[string]string{"version": version, "fit_steps": fmt.Sprint(f.steps)}); err != nil {
		return err
	}
	klog.V(1).Infof("wrote fitted batch to %s", f.out)
	return nil
}
