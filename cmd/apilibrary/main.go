package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/apilibrary/apilibrary/pkg/async"
	"github.com/apilibrary/apilibrary/pkg/blob"
	"github.com/apilibrary/apilibrary/pkg/config"
	"github.com/apilibrary/apilibrary/pkg/engine"
	"github.com/apilibrary/apilibrary/pkg/export"
	"github.com/apilibrary/apilibrary/pkg/maven"
	"github.com/apilibrary/apilibrary/pkg/observability"
	"github.com/apilibrary/apilibrary/pkg/registry"
)

func main() {
	configPath := flag.String("config", "", "Path to an optional YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.ParseLogLevel(cfg.Observability.LogLevel), os.Stdout)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Observability.OTelEnabled {
		providers, err := observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			logger.WithError(err).Error("failed to initialize tracing")
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := providers.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Warn("tracing shutdown failed")
			}
		}()
	}

	reg, err := buildRegistry(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize registry")
		os.Exit(1)
	}
	defer reg.Close()

	backing, err := buildBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize blob store")
		os.Exit(1)
	}
	store := blob.NewInstrumentedStore(backing, metrics.BlobOperationsTotal)

	synth := maven.NewSynthesizer(store, cfg.Engine.MavenDir)
	eng := engine.NewEngine(reg, store, synth, logger, metrics, engine.Config{
		GroupPrefix: cfg.Engine.GroupPrefix,
		SeedVersion: cfg.Engine.SeedVersion,
		ImagePrefix: cfg.Engine.ImagePrefix,
	})

	exporter := export.NewExporter(reg, store, logger, metrics, export.Config{
		BaseDir:      cfg.Engine.MavenDir,
		OutputKey:    cfg.Export.OutputKey,
		BoundaryTerm: cfg.Export.BoundaryTerm,
	})

	runExport := func(ctx context.Context) {
		if _, err := exporter.Export(ctx); err != nil {
			logger.WithError(err).Error("catalog export failed")
		}
	}
	if cfg.Export.RedisURL != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Export.RedisURL,
			Password: cfg.Export.RedisPassword,
			DB:       cfg.Export.RedisDB,
		})
		defer client.Close()
		cached := export.NewCachedExporter(exporter,
			export.NewSnapshotCache(client, "", cfg.Export.CacheTTL))
		runExport = func(ctx context.Context) {
			if _, err := cached.Export(ctx); err != nil {
				logger.WithError(err).Error("catalog export failed")
			}
		}
		logger.WithField("addr", cfg.Export.RedisURL).Info("snapshot cache enabled")
	}

	// Every successful catalog mutation refreshes the export. Bursts of
	// mutations coalesce into at most one queued re-export.
	exportTrigger := async.NewCoalescer("catalog export", 2*time.Minute, logger, func(ctx context.Context) error {
		runExport(ctx)
		return nil
	})
	eng.OnChange(func(context.Context) { exportTrigger.Trigger(ctx) })

	var scheduler *cron.Cron
	if cfg.Export.Schedule != "" {
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(cfg.Export.Schedule, func() { runExport(ctx) }); err != nil {
			logger.WithError(err).Error("invalid export schedule")
			os.Exit(1)
		}
		scheduler.Start()
		logger.WithField("schedule", cfg.Export.Schedule).Info("scheduled exports enabled")
	}

	// Publish a snapshot at startup so the read path has one immediately.
	runExport(ctx)

	var metricsServer *http.Server
	if cfg.Observability.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + cfg.Server.MetricsPort,
			Handler: mux,
		}
		go func() {
			logger.WithField("port", cfg.Server.MetricsPort).Info("metrics listener started")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("metrics listener failed")
			}
		}()
	}

	logger.WithFields(map[string]interface{}{
		"registry": cfg.Registry.Type,
		"blob":     cfg.Blob.Type,
	}).Info("apilibrary started")

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("metrics listener shutdown failed")
		}
	}
}

func buildRegistry(cfg *config.Config, logger *observability.Logger) (registry.Registry, error) {
	var reg registry.Registry
	switch cfg.Registry.Type {
	case "postgres":
		sqlReg, err := registry.NewSQLRegistry(cfg.Registry.SQL())
		if err != nil {
			return nil, err
		}
		reg = sqlReg
		logger.Info("postgres registry initialized")
	default:
		reg = registry.NewMemoryRegistry()
		logger.Info("in-memory registry initialized")
	}

	if cfg.Registry.CacheSize > 0 {
		cached, err := registry.NewCachedRegistry(reg, cfg.Registry.CacheSize)
		if err != nil {
			return nil, err
		}
		logger.WithField("size", cfg.Registry.CacheSize).Info("registry record cache enabled")
		return cached, nil
	}
	return reg, nil
}

func buildBlobStore(ctx context.Context, cfg *config.Config, logger *observability.Logger) (blob.Store, error) {
	switch cfg.Blob.Type {
	case "s3":
		store, err := blob.NewS3Store(ctx, cfg.Blob.S3())
		if err != nil {
			return nil, err
		}
		logger.WithField("bucket", cfg.Blob.S3Bucket).Info("s3 blob store initialized")
		return store, nil
	case "memory":
		logger.Info("in-memory blob store initialized")
		return blob.NewMemoryStore(), nil
	default:
		if err := os.MkdirAll(cfg.Blob.FilesystemRoot, 0o755); err != nil {
			return nil, err
		}
		store, err := blob.NewFileSystemStore(cfg.Blob.FilesystemRoot)
		if err != nil {
			return nil, err
		}
		logger.WithField("root", cfg.Blob.FilesystemRoot).Info("filesystem blob store initialized")
		return store, nil
	}
}
