package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"law_timeline_app_go/config"
	"law_timeline_app_go/db"
	"law_timeline_app_go/handlers"
	"law_timeline_app_go/middleware"
	"law_timeline_app_go/models"
	"law_timeline_app_go/services"
	"law_timeline_app_go/services/i18n"
	"law_timeline_app_go/services/jobs"

	"github.com/juju/loggo"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var logger = loggo.GetLogger("lawtimeline")

func main() {
	// Load configuration
	cfg := config.Load()
	if err := loggo.ConfigureLoggers("<root>=" + cfg.LogLevel); err != nil {
		logger.Warningf("invalid LOG_LEVEL %q: %v", cfg.LogLevel, err)
	}

	// Initialize database
	if err := db.Initialize(cfg); err != nil {
		logger.Criticalf("failed to initialize database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	if err := db.AutoMigrate(models.All()...); err != nil {
		logger.Criticalf("failed to run migrations: %v", err)
		os.Exit(1)
	}

	if err := i18n.Load(); err != nil {
		logger.Criticalf("failed to load translations: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := services.NewMetricsCollector()
	prometheus.MustRegister(metrics)
	timeline := services.InitializeTimeline(ctx, db.DB, cfg, metrics)

	// Reminder dispatch and outbox retries
	dispatcher := jobs.NewReminderDispatcher(timeline, cfg)
	scheduler, err := jobs.StartScheduler(dispatcher, timeline, cfg.ReminderDispatchSchedule, time.UTC)
	if err != nil {
		logger.Criticalf("failed to start scheduler: %v", err)
		os.Exit(1)
	}
	defer func() { <-scheduler.Stop().Done() }()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(echomiddleware.RequestLogger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.BodyLimit(bodyLimit(cfg.MaxUploadBytes)))

	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Timeline API (authenticated upstream, actor resolved here)
	api := e.Group("/api")
	api.Use(middleware.Locale())
	api.Use(middleware.RequireActor(db.DB))
	uploads := middleware.NewUploadRateLimiter(cfg.UploadRateLimit, time.Minute)
	handlers.RegisterTimelineRoutes(api, uploads.Middleware())

	// Start server
	go func() {
		logger.Infof("server starting on port %s", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			logger.Criticalf("server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// bodyLimit leaves room for multipart framing around the largest document
func bodyLimit(maxUploadBytes int64) string {
	const framing = 1 << 20
	return strconv.FormatInt(maxUploadBytes+framing, 10)
}
