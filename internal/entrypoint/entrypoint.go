// Package entrypoint wires the service together with fx.
package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/nutrinani/nutrinani/internal/audit"
	"github.com/nutrinani/nutrinani/internal/auth"
	"github.com/nutrinani/nutrinani/internal/config"
	"github.com/nutrinani/nutrinani/internal/database"
	auditRepo "github.com/nutrinani/nutrinani/internal/database/audit"
	http_controllers "github.com/nutrinani/nutrinani/internal/http"
	"github.com/nutrinani/nutrinani/internal/logging"
	"github.com/nutrinani/nutrinani/internal/metrics"
	"github.com/nutrinani/nutrinani/internal/scheduler"
	"github.com/nutrinani/nutrinani/internal/tasks"
)

// Version is the application version reported by /health.
type Version string

// NewApp builds the fx application serving the auth facade.
func NewApp(cfg *config.Config, version string) *fx.App {
	return fx.New(Options(cfg, version))
}

// Options is the application's dependency graph.
func Options(cfg *config.Config, version string) fx.Option {
	return fx.Options(
		fx.Supply(cfg, Version(version)),
		fx.Provide(
			NewLogger,
			NewDatabase,
			NewAuditService,
			NewMetrics,
			NewAuthenticator,
			NewSignInLimiter,
			NewBrowserSessions,
			NewRouter,
			NewHTTPServer,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Invoke(
			StartTasks,
			func(*http.Server) {},
		),
		fx.StopTimeout(shutdownTimeout(cfg)),
	)
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func Run(cfg *config.Config, version string) error {
	app := NewApp(cfg, version)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	<-app.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()
	return app.Stop(stopCtx)
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.Global.ShutdownTimeoutInSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second
}

func NewLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
	return log, nil
}

func NewDatabase(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*database.Database, error) {
	db, err := database.NewDatabase(cfg.Database.Path, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			log.Info("closing database")
			return db.Close()
		},
	})
	return db, nil
}

func NewAuditService(db *database.Database, log *zap.Logger) *audit.Service {
	return audit.NewService(auditRepo.NewRepository(db.DB), log)
}

type MetricsResult struct {
	fx.Out

	Collector *metrics.Collector
	Gatherer  prometheus.Gatherer
}

func NewMetrics() MetricsResult {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return MetricsResult{Collector: metrics.NewCollector(reg), Gatherer: reg}
}

func NewAuthenticator(lc fx.Lifecycle, cfg *config.Config, db *database.Database, log *zap.Logger, auditSvc *audit.Service, collector *metrics.Collector) (auth.Authenticator, error) {
	facade, err := NewFacade(context.Background(), cfg, db, log, auditSvc, collector)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			auditSvc.Wait()
			return facade.Close()
		},
	})
	return facade.Auth, nil
}

func NewSignInLimiter(cfg *config.Config) *auth.SignInLimiter {
	return auth.NewSignInLimiter(auth.RateLimitConfig{
		MaxAttempts: cfg.Auth.MaxSignInAttempts,
		Window:      cfg.Auth.SignInWindow,
	})
}

// NewBrowserSessions keeps browser cookie sessions in the main database.
func NewBrowserSessions(lc fx.Lifecycle, cfg *config.Config, db *database.Database) (*auth.BrowserSessions, error) {
	sqlDB, err := db.SQL()
	if err != nil {
		return nil, err
	}
	store := sqlite3store.New(sqlDB)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			store.StopCleanup()
			return nil
		},
	})
	return auth.NewBrowserSessions(store, cfg.Auth), nil
}

type routerIn struct {
	fx.In

	Config        *config.Config
	Version       Version
	Logger        *zap.Logger
	Database      *database.Database
	Authenticator auth.Authenticator
	Limiter       *auth.SignInLimiter
	Sessions      *auth.BrowserSessions
	Metrics       *metrics.Collector
	Gatherer      prometheus.Gatherer
}

func NewRouter(in routerIn) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	return http_controllers.NewRouter(http_controllers.RouterConfig{
		Authenticator: in.Authenticator,
		SignInLimiter: in.Limiter,
		Sessions:      in.Sessions,
		Database:      in.Database,
		Logger:        in.Logger,
		AuthConfig:    in.Config.Auth,
		APIBaseURL:    in.Config.API.BaseURL,
		Metrics:       in.Metrics,
		Gatherer:      in.Gatherer,
		Version:       string(in.Version),
	})
}

func NewHTTPServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, router *gin.Engine, log *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting server", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("listen failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server")
			return srv.Shutdown(ctx)
		},
	})
	return srv
}

// StartTasks runs the task queue and the audit retention schedule when enabled.
func StartTasks(lc fx.Lifecycle, cfg *config.Config, auditSvc *audit.Service, log *zap.Logger) error {
	if !cfg.Tasks.Enabled {
		log.Info("task queue disabled, auth events are kept indefinitely")
		return nil
	}

	taskClient, err := tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg.Tasks), log)
	if err != nil {
		return fmt.Errorf("failed to initialize task queue: %w", err)
	}
	taskClient.Register(tasks.NewCleanupAuthEventsQueue(auditSvc, log))

	cleanup := scheduler.NewAuditCleanupScheduler(taskClient, cfg.Audit.CleanupSchedule, cfg.Audit.RetentionDays, log)

	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go taskClient.Start(ctx)
			return cleanup.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			cleanup.Stop()
			taskClient.Stop(ctx)
			if cancel != nil {
				cancel()
			}
			return taskClient.Close()
		},
	})
	return nil
}
