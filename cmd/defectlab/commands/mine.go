package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/defectlab/pkg/config"
	"github.com/Sumatoshi-tech/defectlab/pkg/dataset"
	"github.com/Sumatoshi-tech/defectlab/pkg/export"
	"github.com/Sumatoshi-tech/defectlab/pkg/mining"
	"github.com/Sumatoshi-tech/defectlab/pkg/observability"
	"github.com/Sumatoshi-tech/defectlab/pkg/report"
	"github.com/Sumatoshi-tech/defectlab/pkg/snapshot"
	"github.com/Sumatoshi-tech/defectlab/pkg/version"
)

// mineFlags override the project and output sections of the configuration.
type mineFlags struct {
	project  string
	repo     string
	out      string
	snapshot bool
	noFilter bool
}

func (f *mineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.project, "project", "p", "", "Project name, also the Jira project key")
	cmd.Flags().StringVarP(&f.repo, "repo", "r", "", "Path to the local git clone")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Output directory")
	cmd.Flags().BoolVar(&f.snapshot, "snapshot", false, "Also write a binary dataset snapshot")
	cmd.Flags().BoolVar(&f.noFilter, "no-filter", false, "Keep every release, skipping the consistency filter")
}

func (f *mineFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if f.project != "" {
		cfg.Project.Name = f.project
	}

	if f.repo != "" {
		cfg.Project.Repository = f.repo
	}

	if f.out != "" {
		cfg.Output.Dir = f.out
	}

	if cmd.Flags().Changed("snapshot") {
		cfg.Output.Snapshot = f.snapshot
	}

	if f.noFilter {
		cfg.Mining.Filter.Enabled = false
	}
}

func newMineCommand(a *app) *cobra.Command {
	var flags mineFlags

	cmd := &cobra.Command{
		Use:   "mine",
		Short: "Build the labeled class dataset of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openSession(cmd, observability.ModeMine, true, func(cfg *config.Config) { flags.apply(cmd, cfg) })
			if err != nil {
				return err
			}

			return closeWith(s, a.runMine(cmd.Context(), s))
		},
	}

	flags.register(cmd)

	return cmd
}

func (a *app) runMine(ctx context.Context, s *session) error {
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

	return report.WriteMining(s.out, ds, stats, s.reportOptions(a.globals.noColor))
}

// mine runs the mining engine against the configured repository and tracker.
func (a *app) mine(ctx context.Context, s *session) (*dataset.Dataset, mining.Stats, error) {
	opts, err := s.cfg.MiningOptions()
	if err != nil {
		return nil, mining.Stats{}, err
	}

	repo, err := a.deps.OpenRepository(s.cfg.Project.Repository)
	if err != nil {
		return nil, mining.Stats{}, fmt.Errorf("open repository %s: %w", s.cfg.Project.Repository, err)
	}
	defer repo.Free()

	trk, err := a.deps.NewTracker(s.cfg, s.logger)
	if err != nil {
		return nil, mining.Stats{}, fmt.Errorf("create tracker: %w", err)
	}

	metrics, err := observability.NewMiningMetrics(s.providers.Meter)
	if err != nil {
		return nil, mining.Stats{}, fmt.Errorf("create mining metrics: %w", err)
	}

	engine := mining.NewEngine(repo, trk, opts,
		mining.WithLogger(s.logger),
		mining.WithTracer(s.providers.Tracer),
		mining.WithMetrics(metrics),
		mining.WithProgress(phaseLogger(s)),
	)

	return engine.Run(ctx)
}

// phaseLogger logs each mining phase once, when it starts.
func phaseLogger(s *session) mining.ProgressFunc {
	var current mining.Phase

	return func(e mining.Event) {
		if e.Phase == current {
			return
		}

		current = e.Phase
		s.logger.Info("mining phase", "phase", string(e.Phase), "items", e.Total)
	}
}

// writeDataset writes the dataset CSV, its ARFF form, the run manifest and,
// when enabled, the binary snapshot.
func (a *app) writeDataset(s *session, ds *dataset.Dataset, stats mining.Stats) error {
	paths := export.Paths{Dir: s.cfg.Output.Dir, Project: ds.Project}
	rows := ds.Rows()

	err := export.WriteFile(paths.Dataset(), func(w io.Writer) error { return export.WriteDataset(w, rows) })
	if err != nil {
		return err
	}

	err = export.WriteFile(paths.ARFF(), func(w io.Writer) error { return export.WriteARFF(w, ds.Project, rows) })
	if err != nil {
		return err
	}

	created := a.deps.Now()
	files := map[string]string{"dataset": paths.Dataset(), "arff": paths.ARFF()}

	if s.cfg.Output.Snapshot {
		err = snapshot.Save(paths.Snapshot(), snapshot.New(ds, stats, s.runID, created))
		if err != nil {
			return err
		}

		files["snapshot"] = paths.Snapshot()
	}

	manifest := export.NewManifest(ds, stats, created)
	manifest.RunID = s.runID
	manifest.Version = version.Version
	manifest.Files = files

	err = export.WriteFile(paths.Manifest(), manifest.Write)
	if err != nil {
		return err
	}

	s.logger.Info("dataset written", "dir", s.cfg.Output.Dir, "rows", len(rows), "releases", ds.NumReleases())

	return nil
}

// closeWith closes the session and joins its error with the command's.
func closeWith(s *session, err error) error {
	closeErr := s.Close()
	if err != nil {
		return err
	}

	return closeErr
}
