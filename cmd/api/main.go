package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"formsync-server/cmd/config"
	"formsync-server/internal/control_plane/communication/airtable"
	"formsync-server/internal/control_plane/httpapi"
	"formsync-server/internal/control_plane/persistence"
	"formsync-server/internal/control_plane/usecases"
	"formsync-server/internal/infra/cache"
	"formsync-server/internal/infra/httpserver"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

var (
	logLevelMapping = map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
)

func main() {
	configDir := pflag.String("config-dir", "", "additional directory to search for the server config file")
	pflag.Parse()
	if *configDir != "" {
		config.AddConfigPath(*configDir)
	}

	cfg := config.LoadConfig()

	level := logLevelMapping[cfg.General.LogLevel]
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true, Level: level, ReplaceAttr: slogReplaceAttr})
	slog.SetDefault(slog.New(handler))
	slog.Info("🚀 formsync is initializing")

	shutdownOtel := startOTel()

	formCache := buildFormCache(cfg)
	fetcher := airtable.NewClient(airtable.Config{
		BaseURL:     cfg.AirTable.BaseURL,
		AccessToken: cfg.AirTable.AccessToken,
	})

	forms := usecases.NewFormService()
	provisionSources(cfg, fetcher, formCache, forms)

	authenticator := usecases.NewWebhookAuthenticator(forms)

	httpServer := httpserver.NewServer(
		cfg.Server.Addr,
		httpapi.NewFormController(forms),
		httpapi.NewWebhookController(authenticator),
	)

	go httpServer.Run()
	slog.Info("http server started", slog.String("addr", cfg.Server.Addr))

	signalChannel := make(chan os.Signal, 2)
	signal.Notify(signalChannel, os.Interrupt, syscall.SIGTERM)

	<-signalChannel
	if err := shutdownOtel(); err != nil {
		slog.Error("shutting down otel providers failed", slog.Any("error", err))
	}
	httpServer.Shutdown()
	slog.Info("good bye!!!")
	os.Exit(0)
}

// buildFormCache selects the snapshot store backend from configuration. The
// in-process backend is the default; Redis is for multi-instance setups.
func buildFormCache(cfg config.AppConfig) usecases.FormCacheService {
	var backend cache.Cache
	switch cfg.Cache.Backend {
	case "redis":
		redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			slog.Error("connecting to redis failed", slog.Any("error", err))
			panic(err)
		}
		backend = redisCache
	default:
		ristrettoCache, err := cache.New(nil)
		if err != nil {
			panic(err)
		}
		backend = ristrettoCache
	}

	formCache, err := persistence.NewCacheBackedFormCacheService(&persistence.CacheBackedFormCacheConfig{
		Cache:      backend,
		KeyPrefix:  cfg.Cache.KeyPrefix,
		DefaultTTL: cfg.Cache.TTL,
	})
	if err != nil {
		panic(err)
	}
	return formCache
}

func provisionSources(cfg config.AppConfig, fetcher usecases.SchemaFetcher, formCache usecases.FormCacheService, forms *usecases.SimpleFormService) {
	for _, source := range cfg.Sources {
		id := source.ID
		if id == "" {
			id = uuid.NewString()
		}

		var provider usecases.FormProvider
		switch source.Type {
		case "airtable":
			provider = usecases.NewAirTableProvider(usecases.AirTableProviderConfig{
				ID:            id,
				Name:          source.Name,
				BaseID:        source.BaseID,
				TableID:       source.TableID,
				ViewID:        source.ViewID,
				WebhookID:     source.WebhookID,
				WebhookSecret: source.WebhookSecret,
				StaleTime:     source.StaleTime,
			}, fetcher, formCache)
		case "yaml":
			yamlProvider, err := usecases.NewYamlProvider(usecases.YamlProviderConfig{
				ID:           id,
				Name:         source.Name,
				Endpoint:     source.Endpoint,
				ResourcePath: source.ResourcePath,
			})
			if err != nil {
				slog.Error("provisioning yaml source failed",
					slog.String("source_name", source.Name),
					slog.Any("error", err))
				panic(err)
			}
			provider = yamlProvider
		default:
			slog.Error("unknown source type",
				slog.String("source_name", source.Name),
				slog.String("source_type", source.Type))
			continue
		}

		if err := forms.Add(provider); err != nil {
			slog.Error("registering form provider failed",
				slog.String("source_name", source.Name),
				slog.Any("error", err))
			panic(err)
		}
	}
}

func slogReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		source := a.Value.Any().(*slog.Source)
		source.File = filepath.Base(source.File)
		return slog.Any(a.Key, source)
	}
	return a
}

type ShutdownFunc func() error

const (
	_defaultEndpoint = "localhost:4317"
	_collectPeriod   = 30 * time.Second
	_collectTimeout  = 35 * time.Second
	_minimumInterval = time.Minute
)

var (
	_histogramBuckets = []float64{5, 10, 25, 50, 75, 100, 250, 500, 750, 1000, 2500, 5000, 7500, 10000, 25000, 50000, 100000}
)

func startOTel() ShutdownFunc {
	slog.Info("starting OTel providers")
	shutdown, err := otelStart(context.Background())
	if err != nil {
		panic(err)
	}

	return shutdown
}

func otelStart(ctx context.Context) (ShutdownFunc, error) {
	metricsShutdownFunc, err := startMetricsProvider(ctx)
	if err != nil {
		return nil, err
	}

	traceShutdownFunc, err := startTraceProvider(ctx)
	if err != nil {
		return nil, err
	}

	return func() error {
		if err := metricsShutdownFunc(); err != nil {
			return err
		}
		if err := traceShutdownFunc(); err != nil {
			return err
		}
		return nil
	}, nil
}

func startTraceProvider(ctx context.Context) (ShutdownFunc, error) {
	exp, err := newTraceExporter(ctx)
	if err != nil {
		return nil, err
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("formsync-server"),
		)),
	)
	otel.SetTracerProvider(tp)

	return func() error {
		return tp.Shutdown(ctx)
	}, nil
}

func newTraceExporter(ctx context.Context) (trace.SpanExporter, error) {
	endpoint := _defaultEndpoint
	if value, ok := os.LookupEnv("FORMSYNC_SERVER_OTELCOL_ENDPOINT"); ok {
		endpoint = value
	}

	return otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
}

func startMetricsProvider(ctx context.Context) (ShutdownFunc, error) {
	exp, err := newMetricExporter(ctx)
	if err != nil {
		return nil, err
	}

	mp := newMeterProvider(exp)
	otel.SetMeterProvider(mp)

	err = runtime.Start(runtime.WithMinimumReadMemStatsInterval(_minimumInterval))
	if err != nil {
		return nil, err
	}

	return func() error {
		return mp.Shutdown(ctx)
	}, nil
}

func newMetricExporter(ctx context.Context) (metric.Exporter, error) {
	endpoint := _defaultEndpoint
	if value, ok := os.LookupEnv("FORMSYNC_SERVER_OTELCOL_ENDPOINT"); ok {
		endpoint = value
	}

	return otlpmetricgrpc.New(
		ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
}

func newMeterProvider(metricExporter metric.Exporter) *metric.MeterProvider {
	return metric.NewMeterProvider(
		metric.WithReader(
			metric.NewPeriodicReader(
				metricExporter,
				metric.WithTimeout(_collectTimeout),
				metric.WithInterval(_collectPeriod))),
		metric.WithView(metric.NewView(
			metric.Instrument{
				Name: "*",
				Kind: metric.InstrumentKindHistogram,
			},
			metric.Stream{
				Aggregation: metric.AggregationExplicitBucketHistogram{
					Boundaries: _histogramBuckets,
				},
			},
		)),
	)
}
