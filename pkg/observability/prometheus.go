package observability

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Prometheus pairs an OTel MeterProvider with a private Prometheus registry.
// Instruments created from Meter are gathered by the registry.
type Prometheus struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider
}

// NewPrometheus creates a Prometheus-backed meter provider. Each call uses an
// independent registry so collectors never conflict.
func NewPrometheus() (*Prometheus, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &Prometheus{
		registry: registry,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
	}, nil
}

// Meter returns the named meter of the backing provider.
func (p *Prometheus) Meter() metric.Meter {
	return p.provider.Meter(InstrumentationName)
}

// Handler returns an [http.Handler] serving the scrape endpoint.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// WriteText writes every gathered metric family to w in the Prometheus text
// exposition format.
func (p *Prometheus) WriteText(w io.Writer) error {
	families, err := p.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	encoder := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))

	for _, family := range families {
		encodeErr := encoder.Encode(family)
		if encodeErr != nil {
			return fmt.Errorf("encode %s: %w", family.GetName(), encodeErr)
		}
	}

	return nil
}

// Shutdown releases the meter provider.
func (p *Prometheus) Shutdown(ctx context.Context) error {
	err := p.provider.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown prometheus provider: %w", err)
	}

	return nil
}
