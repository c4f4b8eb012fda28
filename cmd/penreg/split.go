package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/penreg/dataset"
	"github.com/YuminosukeSato/penreg/pkg/errors"
)

func newSplitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Show how the dataset would be split into train and test",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			return a.runSplit(cmd)
		},
	}
	addDataFlags(cmd.Flags())
	return cmd
}

func (a *app) runSplit(cmd *cobra.Command) error {
	cfg := a.cfg
	if cfg.Data.Path == "" {
		return errors.NewValidationError("data.path", "an input file is required", "")
	}
	ds, err := dataset.LoadCSV(cfg.Data.Path, cfg.LoadOptions())
	if err != nil {
		return err
	}
	sp, err := dataset.StratifiedSplit(ds, cfg.Data.Target, cfg.SplitOptions())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "source\t%s\n", cfg.Data.Path)
	fmt.Fprintf(tw, "fingerprint\t%016x\n", ds.Fingerprint())
	fmt.Fprintf(tw, "rows\t%d\n", ds.NumRows())
	fmt.Fprintf(tw, "train\t%d\n", sp.Train.NumRows())
	fmt.Fprintf(tw, "test\t%d\n", sp.Test.NumRows())
	fmt.Fprintf(tw, "strata\t%d\n", sp.Strata)
	fmt.Fprintf(tw, "seed\t%d\n", cfg.Split.Seed)
	return tw.Flush()
}
