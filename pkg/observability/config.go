// Package observability provides OpenTelemetry tracing, metrics and
// structured logging for the defectlab commands.
package observability

import (
	"io"
	"log/slog"
)

// AppMode identifies the command a process was started for.
type AppMode string

const (
	// ModeMine mines a dataset.
	ModeMine AppMode = "mine"
	// ModeEvaluate runs the walk-forward evaluation of an existing dataset.
	ModeEvaluate AppMode = "evaluate"
	// ModeRun mines and evaluates in one process.
	ModeRun AppMode = "run"
)

const (
	defaultServiceName        = "defectlab"
	defaultShutdownTimeoutSec = 5
)

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the semantic version of the running binary.
	ServiceVersion string

	// Environment is the deployment environment, e.g. "ci" or "dev".
	Environment string

	// Mode identifies how the binary was launched.
	Mode AppMode

	// RunID is attached to every log record and to the resource when set.
	RunID string

	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// Empty disables OTLP export.
	OTLPEndpoint string

	// OTLPHeaders are additional gRPC metadata headers for the OTLP exporter.
	OTLPHeaders map[string]string

	// OTLPInsecure disables TLS for the OTLP gRPC connection.
	OTLPInsecure bool

	// SampleRatio is the trace sampling ratio. Zero samples every root span.
	SampleRatio float64

	// Prometheus registers a pull exporter and exposes it as Providers.MetricsHandler.
	Prometheus bool

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// LogJSON enables JSON-formatted log output.
	LogJSON bool

	// LogOutput receives log records. Defaults to stderr.
	LogOutput io.Writer

	// ShutdownTimeoutSec is the maximum seconds to wait for flush on shutdown.
	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config for zero-config startup.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeRun,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
