package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/defectlab/pkg/config"
	"github.com/Sumatoshi-tech/defectlab/pkg/dataset"
	"github.com/Sumatoshi-tech/defectlab/pkg/evaluate"
	"github.com/Sumatoshi-tech/defectlab/pkg/export"
	"github.com/Sumatoshi-tech/defectlab/pkg/observability"
	"github.com/Sumatoshi-tech/defectlab/pkg/report"
	"github.com/Sumatoshi-tech/defectlab/pkg/snapshot"
)

// ErrNoProject is returned when evaluate cannot tell which project a dataset
// belongs to.
var ErrNoProject = errors.New("project name required: set project.name, --project or name the dataset <project>_dataset.csv")

type evaluateFlags struct {
	project  string
	dataset  string
	snapshot string
	out      string
	workers  int
	top      int
	chart    bool
}

func (f *evaluateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.project, "project", "p", "", "Project name")
	cmd.Flags().StringVarP(&f.dataset, "dataset", "d", "", "Dataset CSV (default: <out>/<project>_dataset.csv)")
	cmd.Flags().StringVar(&f.snapshot, "snapshot", "", "Read the dataset from a binary snapshot instead of CSV")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Output directory")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Concurrently evaluated cells (default: number of CPUs)")
	cmd.Flags().IntVar(&f.top, "top", 0, "Configurations shown in the summary")
	cmd.Flags().BoolVar(&f.chart, "chart", false, "Also write an HTML chart of the results")
}

func (f *evaluateFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if f.project != "" {
		cfg.Project.Name = f.project
	}

	if f.out != "" {
		cfg.Output.Dir = f.out
	}

	if cmd.Flags().Changed("workers") {
		cfg.Evaluation.Workers = f.workers
	}

	if cmd.Flags().Changed("top") {
		cfg.Output.Top = f.top
	}

	if cmd.Flags().Changed("chart") {
		cfg.Output.Chart = f.chart
	}
}

func newEvaluateCommand(a *app) *cobra.Command {
	var flags evaluateFlags

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Walk-forward evaluation of a mined dataset",
		Long: `Evaluate every classifier configuration of the grid release by release:
each release is tested on a model trained with all earlier releases.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openSession(cmd, observability.ModeEvaluate, false, func(cfg *config.Config) { flags.apply(cmd, cfg) })
			if err != nil {
				return err
			}

			return closeWith(s, a.runEvaluate(cmd.Context(), s, flags))
		},
	}

	flags.register(cmd)

	return cmd
}

func (a *app) runEvaluate(ctx context.Context, s *session, flags evaluateFlags) error {
	project, rows, err := loadRows(s.cfg, flags)
	if err != nil {
		return err
	}

	s.logger.Info("dataset loaded", "project", project, "rows", len(rows))

	return a.evaluateAndWrite(ctx, s, project, rows)
}

// loadRows reads the dataset from a snapshot, an explicit CSV or the CSV the
// mine command writes into the output directory.
func loadRows(cfg *config.Config, flags evaluateFlags) (string, []dataset.Row, error) {
	project := cfg.Project.Name

	if flags.snapshot != "" {
		snap, err := snapshot.Load(flags.snapshot)
		if err != nil {
			return "", nil, err
		}

		if project == "" {
			project = snap.Dataset.Project
		}

		return project, snap.Dataset.Rows(), nil
	}

	path := flags.dataset
	if path == "" {
		if project == "" {
			return "", nil, ErrNoProject
		}

		path = export.Paths{Dir: cfg.Output.Dir, Project: project}.Dataset()
	}

	if project == "" {
		project = strings.TrimSuffix(filepath.Base(path), export.DatasetSuffix)
		if project == filepath.Base(path) || project == "" {
			return "", nil, ErrNoProject
		}
	}

	var rows []dataset.Row

	err := export.ReadFile(path, func(r io.Reader) error {
		var readErr error

		rows, readErr = export.ReadDataset(r)

		return readErr
	})
	if err != nil {
		return "", nil, err
	}

	return project, rows, nil
}

// evaluateAndWrite evaluates rows and writes the results CSV, the summary
// and, when enabled, the chart.
func (a *app) evaluateAndWrite(ctx context.Context, s *session, project string, rows []dataset.Row) error {
	res, err := a.evaluateRows(ctx, s, project, rows)
	if err != nil {
		return err
	}

	paths := export.Paths{Dir: s.cfg.Output.Dir, Project: project}

	err = a.withOutputLock(s.cfg.Output.Dir, func() error {
		err := export.WriteFile(paths.Results(), func(w io.Writer) error { return export.WriteResults(w, res) })
		if err != nil {
			return err
		}

		if s.cfg.Output.Chart {
			err = export.WriteFile(paths.Chart(), func(w io.Writer) error { return report.WriteChart(w, res) })
			if err != nil {
				return err
			}

			s.logger.Info("chart written", "path", paths.Chart())
		}

		s.logger.Info("results written", "path", paths.Results(), "rows", len(res.Rows), "failed", res.Failed)

		return nil
	})
	if err != nil {
		return err
	}

	return report.WriteEvaluation(s.out, res, s.reportOptions(a.globals.noColor))
}

func (a *app) evaluateRows(ctx context.Context, s *session, project string, rows []dataset.Row) (*evaluate.Results, error) {
	opts, err := s.cfg.EvaluateOptions(project)
	if err != nil {
		return nil, err
	}

	metrics, err := observability.NewEvaluationMetrics(s.providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("create evaluation metrics: %w", err)
	}

	evaluator := evaluate.NewEvaluator(opts,
		evaluate.WithLogger(s.logger),
		evaluate.WithTracer(s.providers.Tracer),
		evaluate.WithMetrics(metrics),
		evaluate.WithProgress(cellLogger(s)),
	)

	return evaluator.Run(ctx, rows)
}

// cellLogger logs failed cells and every tenth of the run at debug level.
func cellLogger(s *session) evaluate.ProgressFunc {
	const steps = 10

	return func(e evaluate.Event) {
		if e.Status == evaluate.StatusFailed {
			s.logger.Warn("cell failed", "configuration", e.Configuration.String(), "ordinal", e.Ordinal)
		}

		if e.Total >= steps && e.Done%(e.Total/steps) != 0 && e.Done != e.Total {
			return
		}

		s.logger.Debug("evaluation progress", "done", e.Done, "total", e.Total)
	}
}
