// Command admitd serves the admission advisor over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/admit/internal/adapters/catalog"
	"github.com/okian/admit/internal/adapters/http/api"
	"github.com/okian/admit/internal/adapters/http/swagger"
	app "github.com/okian/admit/internal/app"
	"github.com/okian/admit/internal/config"
	"github.com/okian/admit/internal/domain/model"
	"github.com/okian/admit/internal/domain/safety"
	"github.com/okian/admit/pkg/logger"
	"github.com/okian/admit/pkg/metrics"
	"github.com/okian/admit/pkg/tracing"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 35 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// logger isn't configured yet
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithLevel(cfg.LogLevel), logger.WithFormat(cfg.LogFormat)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "admitd stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

// run wires the store, the advisor and the HTTP server, and blocks until ctx
// is cancelled or the server fails.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get().Named("admitd")

	if cfg.TracingEnabled {
		shutdown, err := tracing.Setup(ctx)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	store, err := catalog.Open(ctx, catalog.Config{
		Driver:   cfg.StoreDriver,
		DSN:      cfg.StoreDSN,
		Database: cfg.StoreDatabase,
		Fixture:  cfg.CatalogFixture,
	})
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}

	svc := app.New(append(serviceOptions(cfg), app.WithStore(store))...)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close(ctx)
		return fmt.Errorf("start advisor: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	srv := newHTTPServer(cfg, newHandler(ctx, cfg, svc))

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// serviceOptions maps configuration onto advisor options.
func serviceOptions(cfg *config.Config) []app.Option {
	return []app.Option{
		app.WithLogger(logger.Named("advisor")),
		app.WithFieldModel(cfg.FieldModel, cfg.FieldModelPath),
		app.WithAdmissionModel(cfg.AdmissionModel, cfg.AdmissionModelPath),
		app.WithStrictModels(cfg.StrictModels),
		app.WithCacheTTL(cfg.CacheTTL()),
		app.WithTopK(cfg.DefaultTopK),
		app.WithMaxInstitutions(cfg.MaxInstitutions),
		app.WithSuitableInstitutions(cfg.SuitableInstitutions),
		app.WithSharpenGamma(cfg.SharpenGamma),
		app.WithSafetyThresholds(safety.Thresholds{Safe: cfg.SafeThreshold, Consider: cfg.ConsiderThreshold}),
		app.WithRecencyWeighting(cfg.RecencyWeighting),
		app.WithResolver(cfg.ResolverThreshold, cfg.ResolverMinTokenLen),
		app.WithQualifiers(cfg.QualifierPhrases),
		app.WithPriorityTable(model.PriorityTable{
			Area:   cfg.AreaBonus,
			Object: cfg.ObjectBonus,
			Cap:    cfg.PriorityCap,
		}),
		app.WithBatchLimits(cfg.BatchConcurrency, cfg.BatchMaxItems),
	}
}

// newHandler builds the API router with the docs mounted.
func newHandler(ctx context.Context, cfg *config.Config, advisor api.Advisor) http.Handler {
	return api.NewServer(advisor,
		api.WithCORSOrigins(cfg.CORSOrigins),
		api.WithMount(swagger.Mount(ctx)),
	).Handler()
}

func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
