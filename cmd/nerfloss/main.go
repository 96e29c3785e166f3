// Package main provides the nerfloss CLI: it synthesizes ray batches,
// evaluates the configured losses on them and fits a proposal level to show
// the interlevel loss trains.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

const version = "v0.1.0-dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "nerfloss",
		Short:        "Volumetric rendering losses for NeRF training",
		SilenceUsage: true,
	}

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	root.PersistentFlags().AddGoFlagSet(klogFlags)

	root.AddCommand(
		newVersionCommand(),
		newSynthCommand(),
		newEvalCommand(),
		newFitCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nerfloss %s\n", version)
		},
	}
}
