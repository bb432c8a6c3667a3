// Package tracing exports pipeline stage spans over OTLP gRPC. It is
// fully disabled unless configured; the disabled provider hands out
// no-op tracers.
package tracing

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/yamlr/yamlr/internal/logging"
)

// Config holds tracing configuration.
type Config struct {
	Enabled     bool
	Endpoint    string // OTLP gRPC endpoint, e.g. "collector:4317"
	TLSCAPath   string // CA certificate for TLS verification (optional)
	TLSInsecure bool   // skip certificate verification
}

// Provider owns the tracer provider lifecycle for one run.
type Provider struct {
	provider *sdktrace.TracerProvider
	logger   *logging.Logger
	enabled  bool
}

// NewProvider builds the provider. With tracing disabled it returns a
// provider whose tracers are no-ops.
func NewProvider(cfg Config) (*Provider, error) {
	logger := logging.GetLogger("tracing")

	if !cfg.Enabled {
		return &Provider{logger: logger}, nil
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("tracing enabled but endpoint not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var dialOptions []grpc.DialOption
	var otlpOptions []otlptracegrpc.Option

	switch {
	case cfg.TLSInsecure:
		creds := credentials.NewTLS(&tls.Config{
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS12,
		})
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(creds))
		logger.Info("tracing TLS certificate verification disabled")
	case cfg.TLSCAPath != "":
		caCert, err := os.ReadFile(cfg.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("reading tracing CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no usable certificate in %s", cfg.TLSCAPath)
		}
		creds := credentials.NewTLS(&tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12})
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(creds))
	default:
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
		otlpOptions = append(otlpOptions, otlptracegrpc.WithInsecure())
	}

	otlpOptions = append(otlpOptions,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(dialOptions...),
	)
	exporter, err := otlptracegrpc.New(ctx, otlpOptions...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName("yamlr"),
		semconv.ServiceVersion("0.1.0"),
	))
	if err != nil {
		return nil, fmt.Errorf("creating tracing resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	logger.Info("tracing initialized, exporting to %s", cfg.Endpoint)

	return &Provider{provider: provider, logger: logger, enabled: true}, nil
}

// Tracer returns a named tracer.
func (p *Provider) Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p.enabled
}

// Shutdown flushes buffered spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.enabled {
		return nil
	}
	if err := p.provider.Shutdown(ctx); err != nil {
		p.logger.Error("shutting down tracer provider: %v", err)
		return err
	}
	return nil
}
