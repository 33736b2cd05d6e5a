// Package commands implements the defectlab CLI commands.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/defectlab/pkg/config"
	"github.com/Sumatoshi-tech/defectlab/pkg/export"
	"github.com/Sumatoshi-tech/defectlab/pkg/gitlib"
	"github.com/Sumatoshi-tech/defectlab/pkg/mining"
	"github.com/Sumatoshi-tech/defectlab/pkg/tracker"
	"github.com/Sumatoshi-tech/defectlab/pkg/version"
)

// Repository is an open repository the mining engine reads from.
type Repository interface {
	mining.Repository
	Free()
}

// Deps are the external systems the commands talk to.
type Deps struct {
	OpenRepository func(path string) (Repository, error)
	NewTracker     func(cfg *config.Config, logger *slog.Logger) (mining.Tracker, error)
	Now            func() time.Time
	NewRunID       func() string
	// Lock takes the output directory lock and returns its release.
	Lock func(dir string) (func() error, error)
}

// DefaultDeps opens libgit2 repositories and real tracker clients.
func DefaultDeps() Deps {
	return Deps{
		OpenRepository: func(path string) (Repository, error) {
			repo, err := gitlib.OpenRepository(path)
			if err != nil {
				return nil, err
			}

			return repo, nil
		},
		NewTracker: newTracker,
		Now:        time.Now,
		NewRunID:   uuid.NewString,
		Lock:       export.Lock,
	}
}

// globals are the flags shared by every command.
type globals struct {
	configPath  string
	logLevel    string
	logJSON     bool
	metricsAddr string
	noColor     bool
}

// app carries state shared by the subcommands of one invocation.
type app struct {
	deps    Deps
	globals globals
}

// withOutputLock runs fn holding the output directory lock. A failed release
// is reported alongside the error of fn.
func (a *app) withOutputLock(dir string, fn func() error) error {
	unlock, err := a.deps.Lock(dir)
	if err != nil {
		return err
	}

	err = fn()

	return errors.Join(err, unlock())
}

// NewRootCommand builds the defectlab command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommandWithDeps(DefaultDeps())
}

func newRootCommandWithDeps(deps Deps) *cobra.Command {
	a := &app{deps: deps}

	root := &cobra.Command{
		Use:   "defectlab",
		Short: "Mine defect datasets from project history and evaluate defect predictors",
		Long: `defectlab builds a class-level defect dataset from a git repository and an
issue tracker, then evaluates classifier configurations release by release.

Commands:
  mine      Build the dataset
  evaluate  Walk-forward evaluation of an existing dataset
  run       Mine and evaluate in one go`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.globals.configPath, "config", "c", "", "Config file (default: defectlab.yaml in ., ./config, /etc/defectlab)")
	flags.StringVar(&a.globals.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&a.globals.logJSON, "log-json", false, "Emit JSON logs")
	flags.StringVar(&a.globals.metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address during the run")
	flags.BoolVar(&a.globals.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		newMineCommand(a),
		newEvaluateCommand(a),
		newRunCommand(a),
		newVersionCommand(),
	)

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func newTracker(cfg *config.Config, logger *slog.Logger) (mining.Tracker, error) {
	t := cfg.Tracker

	switch t.Kind {
	case config.TrackerGitHub:
		baseURL := t.URL
		if baseURL == config.DefaultTrackerURL {
			baseURL = ""
		}

		gh, err := tracker.NewGitHub(tracker.GitHubOptions{
			Owner:         t.Owner,
			Repo:          t.Repo,
			Token:         t.Token,
			BaseURL:       baseURL,
			BugLabel:      t.BugLabel,
			AffectsPrefix: t.AffectsPrefix,
			RateLimit:     t.RateLimit,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}

		return gh, nil
	case config.TrackerJira:
		key := t.Key
		if key == "" {
			key = cfg.Project.Name
		}

		return tracker.NewJira(tracker.JiraOptions{
			BaseURL:   t.URL,
			Project:   key,
			Token:     t.Token,
			PageSize:  t.PageSize,
			RateLimit: t.RateLimit,
			Logger:    logger,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", config.ErrInvalidTracker, t.Kind)
	}
}
