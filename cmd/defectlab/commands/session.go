package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/defectlab/pkg/config"
	"github.com/Sumatoshi-tech/defectlab/pkg/observability"
	"github.com/Sumatoshi-tech/defectlab/pkg/report"
	"github.com/Sumatoshi-tech/defectlab/pkg/version"
)

// session is the configured runtime of one command invocation.
type session struct {
	cfg       *config.Config
	runID     string
	providers observability.Providers
	logger    *slog.Logger
	diag      *observability.DiagnosticsServer
	out       io.Writer
}

// openSession loads configuration, applies flag overrides and starts
// telemetry. The caller must Close the session.
func (a *app) openSession(cmd *cobra.Command, mode observability.AppMode, requireProject bool, override func(*config.Config)) (*session, error) {
	cfg, err := config.LoadConfig(a.globals.configPath)
	if err != nil {
		return nil, err
	}

	a.applyGlobals(cmd, cfg)

	if override != nil {
		override(cfg)
	}

	err = cfg.Validate(requireProject)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	runID := a.deps.NewRunID()

	ocfg, err := cfg.ObservabilityConfig(mode, version.Version, runID)
	if err != nil {
		return nil, err
	}

	ocfg.LogOutput = cmd.ErrOrStderr()
	applyOTLPEnv(&ocfg)

	providers, err := observability.Init(ocfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	s := &session{
		cfg:       cfg,
		runID:     runID,
		providers: providers,
		logger:    providers.Logger,
		out:       cmd.OutOrStdout(),
	}

	if cfg.Observability.MetricsAddr != "" {
		s.diag, err = observability.NewDiagnosticsServer(cmd.Context(), cfg.Observability.MetricsAddr, providers.MetricsHandler, s.logger)
		if err != nil {
			return nil, errors.Join(err, providers.Shutdown(context.Background()))
		}

		s.logger.Info("diagnostics server listening", "addr", s.diag.Addr())
	}

	return s, nil
}

func (a *app) applyGlobals(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("log-level") {
		cfg.Logging.Level = a.globals.logLevel
	}

	if flags.Changed("log-json") {
		cfg.Logging.Format = config.LogFormatText
		if a.globals.logJSON {
			cfg.Logging.Format = config.LogFormatJSON
		}
	}

	if flags.Changed("metrics-addr") {
		cfg.Observability.MetricsAddr = a.globals.metricsAddr
	}
}

// applyOTLPEnv honours the standard OpenTelemetry exporter variables when the
// configuration leaves the endpoint unset.
func applyOTLPEnv(cfg *observability.Config) {
	if cfg.OTLPEndpoint != "" {
		return
	}

	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
}

func (s *session) reportOptions(noColor bool) report.Options {
	return report.Options{Top: s.cfg.Output.Top, NoColor: noColor}
}

// Close stops the diagnostics server and flushes telemetry.
func (s *session) Close() error {
	ctx := context.Background()

	var errs []error

	if s.diag != nil {
		errs = append(errs, s.diag.Close(ctx))
	}

	errs = append(errs, s.providers.Shutdown(ctx))

	return errors.Join(errs...)
}
