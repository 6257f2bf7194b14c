package observability

import (
	"strconv"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Environment variables read when choosing a sampler.
const (
	EnvTracesSampler    = "OTEL_TRACES_SAMPLER"
	EnvTracesSamplerArg = "OTEL_TRACES_SAMPLER_ARG"
)

// samplerFactories maps OTEL_TRACES_SAMPLER values to samplers. The ratio
// comes from OTEL_TRACES_SAMPLER_ARG and is ignored by the fixed samplers.
var samplerFactories = map[string]func(ratio float64) sdktrace.Sampler{
	"always_on":  func(float64) sdktrace.Sampler { return sdktrace.AlwaysSample() },
	"always_off": func(float64) sdktrace.Sampler { return sdktrace.NeverSample() },
	"traceidratio": func(ratio float64) sdktrace.Sampler {
		return sdktrace.TraceIDRatioBased(ratio)
	},
	"parentbased_always_on": func(float64) sdktrace.Sampler {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	},
	"parentbased_always_off": func(float64) sdktrace.Sampler {
		return sdktrace.ParentBased(sdktrace.NeverSample())
	},
	"parentbased_traceidratio": func(ratio float64) sdktrace.Sampler {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	},
}

// chooseSampler picks, in order: always-on for DebugTrace, the sampler named
// in the environment, the configured ratio, then parent-based always-on.
// Unknown sampler names fall through to the configured ratio.
func chooseSampler(cfg Config, getenv func(string) string) sdktrace.Sampler {
	if cfg.DebugTrace {
		return sdktrace.AlwaysSample()
	}

	if factory, ok := samplerFactories[getenv(EnvTracesSampler)]; ok {
		return factory(samplerRatio(getenv(EnvTracesSamplerArg)))
	}

	if cfg.SampleRatio > 0 {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	}

	return sdktrace.ParentBased(sdktrace.AlwaysSample())
}

// samplerRatio parses a ratio argument, defaulting to 1 when it is missing
// or outside [0, 1].
func samplerRatio(arg string) float64 {
	ratio, err := strconv.ParseFloat(arg, 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return 1
	}

	return ratio
}
