package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/defectlab/pkg/config"
	"github.com/Sumatoshi-tech/defectlab/pkg/dataset"
	"github.com/Sumatoshi-tech/defectlab/pkg/mining"
	"github.com/Sumatoshi-tech/defectlab/pkg/observability"
	"github.com/Sumatoshi-tech/defectlab/pkg/report"
)

func newRunCommand(a *app) *cobra.Command {
	var (
		mf    mineFlags
		chart bool
		top   int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Mine the dataset and evaluate it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			override := func(cfg *config.Config) {
				mf.apply(cmd, cfg)

				if cmd.Flags().Changed("chart") {
					cfg.Output.Chart = chart
				}

				if cmd.Flags().Changed("top") {
					cfg.Output.Top = top
				}
			}

			s, err := a.openSession(cmd, observability.ModeRun, true, override)
			if err != nil {
				return err
			}

			return closeWith(s, a.runAll(cmd.Context(), s))
		},
	}

	mf.register(cmd)
	cmd.Flags().BoolVar(&chart, "chart", false, "Also write an HTML chart of the results")
	cmd.Flags().IntVar(&top, "top", 0, "Configurations shown in the summary")

	return cmd
}

// runAll mines, writes the dataset and evaluates the mined rows without
// reading them back.
func (a *app) runAll(ctx context.Context, s *session) error {
	var (
		ds    *dataset.Dataset
		stats mining.Stats
	)

	err := a.withOutputLock(s.cfg.Output.Dir, func() error {
		var err error

		ds, stats, err = a.mine(ctx, s)
		if err != nil {
			return err
		}

		return a.writeDataset(s, ds, stats)
	})
	if err != nil {
		return err
	}

	err = report.WriteMining(s.out, ds, stats, s.reportOptions(a.globals.noColor))
	if err != nil {
		return err
	}

	return a.evaluateAndWrite(ctx, s, ds.Project, ds.Rows())
}
