// Package observability wires OpenTelemetry tracing and metrics, Prometheus
// exposition and slog logging for the fixedtree CLI and its containers.
package observability

import "log/slog"

// AppMode tells telemetry backends how the binary was launched.
type AppMode string

// Launch modes.
const (
	ModeCLI   AppMode = "cli"   // one-shot commands: dump, validate, diff, inspect
	ModeBench AppMode = "bench" // measuring runs: bench, plot, replay
)

const (
	defaultServiceName        = "fixedtree"
	defaultShutdownTimeoutSec = 5
)

// Config selects where telemetry goes and how much of it is kept.
//
// An empty OTLPEndpoint turns tracing and OTLP metrics into no-ops; logs
// are always written.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Mode           AppMode

	OTLPEndpoint string            // host:port of an OTLP gRPC collector
	OTLPHeaders  map[string]string // gRPC metadata sent with every export
	OTLPInsecure bool

	// DebugTrace samples every span and logs span attributes the filter drops.
	DebugTrace  bool
	SampleRatio float64

	LogLevel slog.Level
	LogJSON  bool

	// ShutdownTimeoutSec bounds the final flush; zero means the default.
	ShutdownTimeoutSec int
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
