package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/madraim/shopdesk/internal/domain/order"
	"github.com/madraim/shopdesk/internal/domain/selection"
	"github.com/madraim/shopdesk/internal/handler"
	"github.com/madraim/shopdesk/internal/rates"
	"github.com/madraim/shopdesk/internal/settings"
	"github.com/madraim/shopdesk/internal/storage/postgres"
	"github.com/madraim/shopdesk/pkg/health"
	"github.com/madraim/shopdesk/pkg/httpmiddleware"
	"github.com/madraim/shopdesk/pkg/mutgate"
)

// Run creates all dependencies, starts the HTTP server and the rate
// refresher, and handles graceful shutdown. It is the single wiring point
// for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Exchange rate collaborator: periodic refresh into the cache; the
	// service starts serving before the first rate arrives and degrades
	// pricing until it does.
	rateClient := rates.NewClient(cfg.Rate.ServiceURL)
	rateCache := rates.NewCache(rateClient, cfg.Rate.Interval, lg.Named("rates"))

	// Health check service.
	healthSvc := health.New()
	healthSvc.Add(health.Readiness, "postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.Add(health.Readiness, "schema", 5*time.Second, func(ctx context.Context) error {
		return postgres.CheckSchema(ctx, pool)
	})
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Add(health.Liveness, "gc-pause", time.Second, health.GCMaxPauseCheck(10*time.Second))
	// Stale rate is tolerated (catalog serves without prices), so it is
	// diagnostic only and never flips readiness.
	healthSvc.Add(health.Diagnostic, "exchange-rate", time.Second,
		health.StalenessCheck(cfg.Rate.StaleAfter, rateCache.FetchedAt))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	selectionRepo := postgres.NewSelectionRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	settingsRepo := postgres.NewSettingsRepository(pool)
	expenseRepo := postgres.NewExpenseRepository(pool)

	// Domain services. One shared gate: the store has no transactions, so
	// a single mutation per instance may be in flight.
	gate := &mutgate.Gate{}
	settingsSource := settings.NewSource(settingsRepo, rateCache)
	selectionService := selection.NewService(selectionRepo)
	orderService := order.NewService(
		productRepo, customerRepo, selectionRepo, orderRepo,
		settingsSource, gate, lg.Named("orders"),
	)

	// Telemetry instruments for the conversion flow.
	tracer := m.TracerProvider().Tracer("shopdesk")
	meter := m.MeterProvider().Meter("shopdesk")
	conversions, err := meter.Int64Counter("shopdesk.selection.conversions")
	if err != nil {
		return errors.Wrap(err, "create conversion counter")
	}

	// HTTP routes: health endpoints + API.
	h := handler.New(
		productRepo, customerRepo, expenseRepo,
		selectionService, orderService,
		settingsRepo, settingsSource, rateCache, gate,
		tracer, conversions,
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.HandleFunc("/healthz", healthSvc.ReportEndpoint)
	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", h.Routes()))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(
			otelhttp.NewHandler(mux, "shopdesk-api",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rateCache.Run(gctx)
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	<-shutdownDone
	return nil
}
