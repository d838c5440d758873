// Package telemetry wires the OpenTelemetry providers and the slog
// fanout used by every command.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	sloglogrus "github.com/samber/slog-logrus/v2"
	slogmulti "github.com/samber/slog-multi"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	logglobal "go.opentelemetry.io/otel/log/global"
	logsdk "go.opentelemetry.io/otel/sdk/log"
	metricsdk "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"golang.org/x/sync/errgroup"
)

type Client struct {
	log *slog.Logger

	tracerProvider *tracesdk.TracerProvider
	metricProvider *metricsdk.MeterProvider
	loggerProvider *logsdk.LoggerProvider
}

func setEnvIfNotSet(key, value string) {
	if _, ok := os.LookupEnv(key); !ok {
		os.Setenv(key, value)
	}
}

// Setup initializes metrics, traces and logs. With an endpoint the otlp
// http exporters ship directly there; without one the standard OTEL_*
// environment variables decide, defaulting to no export. A prometheus
// reader is always registered so the metrics endpoint can serve scrapes.
func Setup(ctx context.Context, appName, endpoint string) (*Client, error) {
	client := &Client{
		log: slog.With("component", "telemetry"),
	}
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(cause error) {
		client.log.ErrorContext(ctx, "otel error", "error", cause.Error())
	}))

	hostName, _ := os.Hostname()
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(appName),
			semconv.HostName(hostName),
			semconv.ServiceInstanceID(uuid.NewString()),
		),
	)
	if err != nil {
		return nil, err
	}

	promExporter, err := prometheus.New(prometheus.WithNamespace(appName))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prometheus exporter: %w", err)
	}

	if endpoint != "" {
		err = client.setupOTLP(ctx, r, promExporter, endpoint)
	} else {
		err = client.setupAuto(ctx, r, promExporter)
	}
	if err != nil {
		return nil, err
	}

	slog.SetDefault(slog.New(slogmulti.Fanout(
		sloglogrus.Option{Level: slog.LevelDebug, Logger: logrus.StandardLogger()}.NewLogrusHandler(),
		otelslog.NewHandler("", otelslog.WithLoggerProvider(client.loggerProvider)),
	)))
	client.log = slog.With("component", "telemetry")
	client.log.InfoContext(ctx, "telemetry initialized")

	return client, nil
}

func (client *Client) setupOTLP(ctx context.Context, r *resource.Resource, prom metricsdk.Reader, endpoint string) error {
	metricExporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(endpoint),
		otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{Enabled: false}),
	)
	if err != nil {
		return err
	}
	client.metricProvider = metricsdk.NewMeterProvider(
		metricsdk.WithResource(r),
		metricsdk.WithReader(metricsdk.NewPeriodicReader(metricExporter)),
		metricsdk.WithReader(prom),
	)
	otel.SetMeterProvider(client.metricProvider)

	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{Enabled: false}),
	)
	if err != nil {
		return err
	}
	client.tracerProvider = tracesdk.NewTracerProvider(
		tracesdk.WithResource(r),
		tracesdk.WithBatcher(traceExporter, tracesdk.WithExportTimeout(time.Second)),
	)
	otel.SetTracerProvider(client.tracerProvider)

	logExporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(endpoint),
		otlploghttp.WithRetry(otlploghttp.RetryConfig{Enabled: false}),
	)
	if err != nil {
		return err
	}
	client.loggerProvider = logsdk.NewLoggerProvider(
		logsdk.WithResource(r),
		logsdk.WithProcessor(logsdk.NewBatchProcessor(logExporter, logsdk.WithExportInterval(time.Second))),
	)
	logglobal.SetLoggerProvider(client.loggerProvider)

	return nil
}

func (client *Client) setupAuto(ctx context.Context, r *resource.Resource, prom metricsdk.Reader) error {
	// The otlp-to-localhost default of the otel SDK helps nobody, no
	// export is the sane default.
	setEnvIfNotSet("OTEL_TRACES_EXPORTER", "none")
	setEnvIfNotSet("OTEL_LOGS_EXPORTER", "none")
	setEnvIfNotSet("OTEL_METRICS_EXPORTER", "none")

	metricExporter, err := autoexport.NewMetricReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize metric exporter: %w", err)
	}
	client.metricProvider = metricsdk.NewMeterProvider(
		metricsdk.WithResource(r),
		metricsdk.WithReader(prom),
		metricsdk.WithReader(metricExporter),
	)
	otel.SetMeterProvider(client.metricProvider)

	spanExporter, err := autoexport.NewSpanExporter(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize trace exporter: %w", err)
	}
	client.tracerProvider = tracesdk.NewTracerProvider(
		tracesdk.WithResource(r),
		tracesdk.WithBatcher(spanExporter),
	)
	otel.SetTracerProvider(client.tracerProvider)

	logsExporter, err := autoexport.NewLogExporter(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize log exporter: %w", err)
	}
	client.loggerProvider = logsdk.NewLoggerProvider(
		logsdk.WithResource(r),
		logsdk.WithProcessor(logsdk.NewBatchProcessor(logsExporter)),
	)
	logglobal.SetLoggerProvider(client.loggerProvider)

	return nil
}

func (client *Client) Flush(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if client.metricProvider != nil {
		g.Go(func() error { return client.metricProvider.ForceFlush(ctx) })
	}
	if client.loggerProvider != nil {
		g.Go(func() error { return client.loggerProvider.ForceFlush(ctx) })
	}
	if client.tracerProvider != nil {
		g.Go(func() error { return client.tracerProvider.ForceFlush(ctx) })
	}
	return g.Wait()
}

func (client *Client) Shutdown(ctx context.Context) {
	if client.metricProvider != nil {
		if err := client.metricProvider.Shutdown(ctx); err != nil {
			client.log.ErrorContext(ctx, "error shutting down metric provider", "error", err.Error())
		}
	}
	if client.tracerProvider != nil {
		if err := client.tracerProvider.Shutdown(ctx); err != nil {
			client.log.ErrorContext(ctx, "error shutting down tracer provider", "error", err.Error())
		}
	}
	if client.loggerProvider != nil {
		if err := client.loggerProvider.Shutdown(ctx); err != nil {
			client.log.ErrorContext(ctx, "error shutting down logger provider", "error", err.Error())
		}
	}
}
