// Package app wires the war room service together and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agrilog/warroom/internal/analytics"
	"github.com/agrilog/warroom/internal/broadcast"
	"github.com/agrilog/warroom/internal/config"
	"github.com/agrilog/warroom/internal/incident"
	incidentmemory "github.com/agrilog/warroom/internal/incident/memory"
	incidentpg "github.com/agrilog/warroom/internal/incident/postgres"
	"github.com/agrilog/warroom/internal/pkg/httputil"
	pkgmetrics "github.com/agrilog/warroom/internal/pkg/metrics"
	"github.com/agrilog/warroom/internal/pkg/postgres"
	"github.com/agrilog/warroom/internal/telemetry"
	"github.com/agrilog/warroom/internal/version"
	"github.com/agrilog/warroom/internal/warroom"
)

// App holds the assembled service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pool      *pgxpool.Pool
	repo      incident.Repository
	broker    broadcast.Broker
	sink      incident.AnalyticsSink
	closeSink func() error

	registry   *warroom.Registry
	dispatcher *warroom.Dispatcher
	emitter    *telemetry.Emitter

	server        *http.Server
	metricsServer *http.Server
}

// New builds the application. Store and broker connectivity is verified
// up front: the service refuses to start if either is unreachable.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	a := &App{cfg: cfg, logger: logger}

	if err := a.setupStore(ctx); err != nil {
		return nil, fmt.Errorf("setup store: %w", err)
	}
	if err := a.setupBroker(ctx); err != nil {
		return nil, fmt.Errorf("setup broker: %w", err)
	}
	a.setupAnalytics()

	svc := incident.NewService(a.repo, a.broker, a.sink)

	a.registry = warroom.NewRegistry()
	a.dispatcher = warroom.NewDispatcher(a.broker, a.registry, cfg.Live.Room)
	if err := a.dispatcher.Start(); err != nil {
		return nil, fmt.Errorf("start dispatcher: %w", err)
	}

	if cfg.Telemetry.Enabled {
		a.emitter = telemetry.NewEmitter(a.broker, cfg.Telemetry.Interval)
		a.emitter.Start(ctx)
	}

	router := a.setupRouter(svc)

	a.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	a.metricsServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	return a, nil
}

func (a *App) setupStore(ctx context.Context) error {
	switch a.cfg.Store.Driver {
	case "memory":
		a.logger.Warn("using in-memory incident store, events will not survive restarts")
		a.repo = incidentmemory.NewRepository()
		return nil
	case "postgres":
		connectCtx, cancel := context.WithTimeout(ctx, a.cfg.Database.ConnectTimeout)
		defer cancel()

		pool, err := postgres.Connect(connectCtx, postgres.Config{
			URL:             a.cfg.Database.URL,
			MaxOpenConns:    a.cfg.Database.MaxOpenConns,
			MaxIdleConns:    a.cfg.Database.MaxIdleConns,
			ConnMaxLifetime: a.cfg.Database.ConnMaxLifetime,
			ConnectAttempts: a.cfg.Database.ConnectAttempts,
		})
		if err != nil {
			return err
		}

		if a.cfg.Database.MigrationsPath != "" {
			if err := postgres.Migrate(a.cfg.Database.URL, a.cfg.Database.MigrationsPath); err != nil {
				pool.Close()
				return fmt.Errorf("run migrations: %w", err)
			}
		}

		pkgmetrics.RecordDBPoolMetrics(pool)

		a.pool = pool
		a.repo = incidentpg.NewRepository(pool)
		return nil
	default:
		return fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
}

func (a *App) setupBroker(ctx context.Context) error {
	switch a.cfg.Broadcast.Driver {
	case "memory":
		a.broker = broadcast.NewMemoryBroker()
		return nil
	case "redis":
		broker, err := broadcast.NewRedisBroker(ctx,
			a.cfg.Broadcast.RedisAddr, a.cfg.Broadcast.RedisPassword, a.cfg.Broadcast.RedisDB)
		if err != nil {
			return err
		}
		a.broker = broker
		return nil
	default:
		return fmt.Errorf("unknown broadcast driver %q", a.cfg.Broadcast.Driver)
	}
}

func (a *App) setupAnalytics() {
	if !a.cfg.Analytics.Enabled {
		a.sink = analytics.NewNoopSink()
		a.closeSink = func() error { return nil }
		return
	}
	sink := analytics.NewKafkaSink(analytics.KafkaConfig{
		Brokers:      a.cfg.Analytics.Brokers,
		Topic:        a.cfg.Analytics.Topic,
		BatchTimeout: a.cfg.Analytics.BatchTimeout,
	})
	a.sink = sink
	a.closeSink = sink.Close
}

func (a *App) setupRouter(svc *incident.Service) chi.Router {
	r := chi.NewRouter()

	r.Use(httputil.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.Recoverer)
	r.Use(httputil.CORSMiddleware(a.cfg.CORS.AllowedOrigins))

	r.Get("/health", a.handleHealth)
	r.Get("/version", a.handleVersion)

	incidentHandler := incident.NewHandler(svc)
	ingestLimiter := httputil.RateLimitMiddleware(a.cfg.Ingest.RateLimit, a.cfg.Ingest.Burst)
	r.Route("/api", func(r chi.Router) {
		incidentHandler.RegisterRoutes(r, ingestLimiter)
	})

	liveHandler := warroom.NewHandler(warroom.HandlerConfig{
		Room:           a.cfg.Live.Room,
		SessionBuffer:  a.cfg.Live.SessionBuffer,
		AllowedOrigins: a.cfg.CORS.AllowedOrigins,
	}, a.registry)
	r.Route("/live", liveHandler.RegisterRoutes)

	return r
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"store": "ok", "broker": "ok"}
	healthy := true

	if err := a.repo.Ping(ctx); err != nil {
		checks["store"] = err.Error()
		healthy = false
	}
	if err := a.broker.Ping(ctx); err != nil {
		checks["broker"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	httputil.JSON(w, status, map[string]any{"status": state, "checks": checks})
}

func (a *App) handleVersion(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"git_commit": version.GitCommit,
		"build_date": version.BuildDate,
	})
}

// Router exposes the main router, for serving through a test listener.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Run starts both HTTP servers and blocks until one of them fails.
func (a *App) Run() error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("metrics server listening", "addr", a.metricsServer.Addr)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	go func() {
		a.logger.Info("server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: %w", err)
		}
	}()

	return <-errCh
}

// Shutdown stops the servers and background workers and releases
// store and broker connections.
func (a *App) Shutdown(ctx context.Context) error {
	var wg sync.WaitGroup
	var serverErr, metricsErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		serverErr = a.server.Shutdown(ctx)
	}()
	go func() {
		defer wg.Done()
		metricsErr = a.metricsServer.Shutdown(ctx)
	}()
	wg.Wait()

	if a.emitter != nil {
		a.emitter.Stop()
	}
	a.dispatcher.Stop()

	var errs []error
	if serverErr != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", serverErr))
	}
	if metricsErr != nil {
		errs = append(errs, fmt.Errorf("metrics server shutdown: %w", metricsErr))
	}
	if err := a.closeSink(); err != nil {
		errs = append(errs, fmt.Errorf("close analytics sink: %w", err))
	}
	if err := a.broker.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close broker: %w", err))
	}
	if a.pool != nil {
		a.pool.Close()
	}

	return errors.Join(errs...)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
