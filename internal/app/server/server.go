package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wink/internal/domain/audit"
	"wink/internal/domain/auth"
	"wink/internal/domain/gar"
	"wink/internal/domain/notifications"
	"wink/internal/domain/reports"
	"wink/internal/domain/retention"
	"wink/internal/domain/stats"
	"wink/internal/domain/tasks"
	"wink/internal/domain/users"
	"wink/internal/platform/config"
	cryptoutil "wink/internal/platform/crypto"
	"wink/internal/platform/db"
	"wink/internal/platform/email"
	"wink/internal/platform/jobs"
	"wink/internal/platform/logging"
	"wink/internal/platform/metrics"
	"wink/internal/transport/http/api"
	analyticshandler "wink/internal/transport/http/handlers/analytics"
	audithandler "wink/internal/transport/http/handlers/audit"
	authhandler "wink/internal/transport/http/handlers/auth"
	jobshandler "wink/internal/transport/http/handlers/jobs"
	notificationshandler "wink/internal/transport/http/handlers/notifications"
	reportshandler "wink/internal/transport/http/handlers/reports"
	statshandler "wink/internal/transport/http/handlers/stats"
	taskshandler "wink/internal/transport/http/handlers/tasks"
	usershandler "wink/internal/transport/http/handlers/users"
	"wink/internal/transport/http/middleware"
)

const shutdownTimeout = 15 * time.Second

// setupLogging is replaced in tests.
var setupLogging = logging.Setup

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Router  http.Handler
	Jobs    *jobs.Service
	Metrics *metrics.Collector
}

// New connects to the database, applies migrations and seed data when
// enabled, and builds the HTTP router. Scheduled jobs are registered but
// not started; Run starts them.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	trustedProxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	cryptoSvc, err := cryptoutil.New(cfg.DataEncryptionKey)
	if err != nil {
		pool.Close()
		return nil, err
	}

	collector := metrics.New()
	mailer := email.New(cfg)

	authStore := auth.NewStore(pool)
	authService := auth.NewService(authStore, cfg.JWTSecret, cfg.JWTTTL, cryptoSvc)
	auditService := audit.New(audit.NewStore(pool))
	notificationService := notifications.New(notifications.NewStore(pool), mailer, cfg.EmailFrom, cfg.EmailEnabled)
	userService := users.NewService(users.NewStore(pool), mailer, users.Options{
		CorporateDomain: cfg.CorporateEmailDomain,
		BaseURL:         cfg.BaseURL,
		MailFrom:        cfg.EmailFrom,
	})

	garStore := gar.NewStore(pool)
	weightService := gar.NewWeightService(garStore, cfg.GARRejectNegativeWeights)
	calculator := gar.NewCalculator(garStore, weightService, gar.Options{
		QualityDivisor: cfg.GARQualityDivisor,
		Recorder:       collector,
	})
	statsService := stats.NewService(stats.NewStore(pool), garStore, calculator)
	taskService := tasks.NewService(tasks.NewStore(pool), notificationService, statsService)
	reportService := reports.NewService(reports.NewStore(pool), calculator, weightService)

	jobService := jobs.New(jobs.NewStore(pool), collector)
	retentionService := retention.NewService(retention.NewStore(pool),
		retention.DefaultPolicy(cfg.NotificationRetention, cfg.JobRunRetention))
	registered := map[string]jobs.RunFunc{
		jobs.JobStatsRebuild: statsService.Rebuild,
		jobs.JobGARSnapshot:  statsService.SnapshotAll,
		jobs.JobRetention:    retentionService.Run,
	}
	schedules := map[string]string{
		jobs.JobStatsRebuild: cfg.StatsRebuildSchedule,
		jobs.JobGARSnapshot:  cfg.GARSnapshotSchedule,
		jobs.JobRetention:    cfg.RetentionSchedule,
	}
	for jobType, spec := range schedules {
		if err := jobService.Schedule(spec, jobType, registered[jobType]); err != nil {
			pool.Close()
			return nil, err
		}
	}

	authHandler := authhandler.NewHandler(authService, userService, mailer, cfg.EmailFrom, cfg.BaseURL)
	usersHandler := usershandler.NewHandler(userService, authStore, auditService)
	usersHandler.ExposeTokens = !cfg.IsProduction() && !cfg.EmailEnabled
	tasksHandler := taskshandler.NewHandler(taskService, authStore, auditService, middleware.NewIdempotencyStore(pool, middleware.IdempotencyTTL))
	analyticsHandler := analyticshandler.NewHandler(calculator, weightService, userService, authStore, auditService)
	statsHandler := statshandler.NewHandler(statsService, authStore)
	notificationsHandler := notificationshandler.NewHandler(notificationService)
	auditHandler := audithandler.NewHandler(auditService, authStore)
	reportsHandler := reportshandler.NewHandler(reportService, authStore)
	jobsHandler := jobshandler.NewHandler(jobService, registered, authStore)

	router := chi.NewRouter()
	router.Use(middleware.ClientIP(trustedProxies))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret, authStore))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r)
		usersHandler.RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			authHandler.RegisterProtectedRoutes(r)
			usersHandler.RegisterRoutes(r)
			tasksHandler.RegisterRoutes(r)
			analyticsHandler.RegisterRoutes(r)
			statsHandler.RegisterRoutes(r)
			notificationsHandler.RegisterRoutes(r)
			auditHandler.RegisterRoutes(r)
			reportsHandler.RegisterRoutes(r)
			jobsHandler.RegisterRoutes(r)
		})
	})

	return &App{Config: cfg, DB: pool, Router: router, Jobs: jobService, Metrics: collector}, nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

// Run is the process entry point: it serves until SIGINT or SIGTERM and
// then drains in-flight requests. The exit status is set only after the log
// file has been closed.
func Run() {
	if err := run(config.Load()); err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	logCloser := setupLogging(cfg)
	defer closeQuietly(logCloser)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "err", err)
		return err
	}
	defer app.Close()

	app.Jobs.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("wink server listening", "addr", cfg.Addr, "env", cfg.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "err", err)
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("graceful shutdown failed", "err", err)
		}
	}
	return nil
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Warn("close failed", "err", err)
	}
}
