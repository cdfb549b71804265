package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"SignalFlow/internal/delivery"
	pkgch "SignalFlow/pkg/clickhouse"
	"SignalFlow/pkg/config"
	xhttp "SignalFlow/pkg/http"
	pkgkafka "SignalFlow/pkg/kafka"
	applogger "SignalFlow/pkg/logger"
	pkgqueue "SignalFlow/pkg/queue"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	queue       *pkgqueue.RedisQueue
	chClient    *pkgch.Client
	redisClient *redis.Client
	producer    *pkgkafka.Producer
	hub         *delivery.WebSocketHub
	handlers    []xhttp.Handler
	httpServer  *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	q *pkgqueue.RedisQueue,
	chClient *pkgch.Client,
	redisClient *redis.Client,
	producer *pkgkafka.Producer,
	hub *delivery.WebSocketHub,
	handlers ...xhttp.Handler,
) *App {
	return &App{
		cfg:         cfg,
		logger:      l,
		queue:       q,
		chClient:    chClient,
		redisClient: redisClient,
		producer:    producer,
		hub:         hub,
		handlers:    handlers,
	}
}

// RegisterRoutes registers all API handlers plus the signal stream socket.
func (a *App) RegisterRoutes(e *echo.Echo) {
	for _, h := range a.handlers {
		h.RegisterRoutes(e)
	}
	if a.hub != nil {
		e.GET("/ws", func(c echo.Context) error {
			return a.hub.Handle(c.Response(), c.Request())
		})
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			a.logger.Error("queue start error", applogger.Error(err))
			return err
		}
		a.queue.StartRetryProcessor()
		a.logger.Info("queue started")
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			a.logger.Warn("queue stop error", applogger.Error(err))
		}
	}

	if a.hub != nil {
		a.hub.Close()
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("redis close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
