package instrumentation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Provider wires the OpenTelemetry SDK behind calsec's instruments: a
// meter provider feeding the tool, OAuth flow, and notification metrics,
// and a tracer provider for tool and Google API spans. A disabled
// provider still hands out a no-op Metrics recorder, so callers never
// branch on whether instrumentation is configured.
type Provider struct {
	cfg     Config
	meters  *metric.MeterProvider
	tracers *sdktrace.TracerProvider
	metrics *Metrics
	prom    *prometheus.Exporter
}

// NewProvider assembles the meter and tracer pipelines for the given
// configuration and installs them as the process-wide OTel defaults.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{cfg: cfg, metrics: &Metrics{}}, nil
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	p := &Provider{cfg: cfg}

	reader, prom, err := newMetricReader(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p.prom = prom
	p.meters = metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(reader),
	)

	p.tracers, err = newTracerProvider(ctx, cfg, res)
	if err != nil {
		if shutdownErr := p.meters.Shutdown(ctx); shutdownErr != nil {
			err = errors.Join(err, shutdownErr)
		}
		return nil, err
	}

	otel.SetMeterProvider(p.meters)
	otel.SetTracerProvider(p.tracers)

	p.metrics, err = NewMetrics(p.meters.Meter(cfg.ServiceName), cfg.DetailedLabels)
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metrics recorder: %w", err)
	}

	return p, nil
}

// newResource describes this calsec instance: service identity plus pod
// metadata when running in Kubernetes. The instance id falls back to the
// hostname, which inside a pod is the pod name.
func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}

	instanceID := cfg.ServiceInstanceID
	if instanceID == "" {
		instanceID, _ = os.Hostname()
	}
	if instanceID != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(instanceID))
	}
	if cfg.K8sNamespace != "" {
		attrs = append(attrs, semconv.K8SNamespaceName(cfg.K8sNamespace))
	}
	if cfg.K8sPodName != "" {
		attrs = append(attrs, semconv.K8SPodName(cfg.K8sPodName))
	}

	return resource.New(ctx, resource.WithAttributes(attrs...))
}

// newMetricReader builds the metric pipeline for the configured exporter.
// The prometheus exporter doubles as the reader and is returned alongside
// so the provider can report scrape availability to the metrics server.
func newMetricReader(ctx context.Context, cfg Config) (metric.Reader, *prometheus.Exporter, error) {
	switch cfg.MetricsExporter {
	case ExporterPrometheus:
		exp, err := prometheus.New()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		return exp, exp, nil

	case ExporterOTLP:
		if cfg.OTLPEndpoint == "" {
			return nil, nil, fmt.Errorf("OTLP endpoint is required for the otlp metrics exporter; set OTEL_EXPORTER_OTLP_ENDPOINT or use the prometheus exporter")
		}
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint),
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		return metric.NewPeriodicReader(exp), nil, nil

	case ExporterStdout:
		slog.Warn("stdout metrics exporter enabled, intended for local development only",
			"component", "instrumentation",
		)
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
		return metric.NewPeriodicReader(exp), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported metrics exporter: %s", cfg.MetricsExporter)
	}
}

// newTracerProvider builds the trace pipeline. ExporterNone yields a
// provider that samples nothing, so span helpers stay cheap no-ops.
func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	if cfg.TracingExporter == ExporterNone {
		return sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.NeverSample()),
		), nil
	}

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch cfg.TracingExporter {
	case ExporterOTLP:
		if cfg.OTLPEndpoint == "" {
			return nil, fmt.Errorf("OTLP endpoint is required for the otlp tracing exporter")
		}
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		}
		if cfg.OTLPInsecure {
			// Spans carry chat user ids and calendar operation names.
			slog.Warn("OTLP insecure transport enabled, spans are sent unencrypted",
				"component", "instrumentation",
				"endpoint", cfg.OTLPEndpoint,
			)
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, opts...)

	case ExporterStdout:
		slog.Warn("stdout traces exporter enabled, intended for local development only",
			"component", "instrumentation",
		)
		exporter, err = stdouttrace.New()

	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.TracingExporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s trace exporter: %w", cfg.TracingExporter, err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(cfg.TraceSamplingRate),
		)),
	), nil
}

// Metrics returns the recorder for calsec's domain metrics. Never nil;
// on a disabled provider every recorder method is a no-op.
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// Tracer returns a tracer for creating spans, a no-op tracer when
// instrumentation is disabled.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p.tracers == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return p.tracers.Tracer(name)
}

// PrometheusEnabled reports whether the prometheus exporter backs the
// metric pipeline, i.e. whether a scrape endpoint makes sense.
func (p *Provider) PrometheusEnabled() bool {
	return p.prom != nil
}

// Shutdown flushes and stops both pipelines.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.meters != nil {
		if err := p.meters.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if p.tracers != nil {
		if err := p.tracers.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Enabled reports whether the SDK pipelines were built.
func (p *Provider) Enabled() bool {
	return p.meters != nil
}
