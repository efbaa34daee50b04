package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mid "RegimeLab/internal/middleware"
	"RegimeLab/internal/usecase"
	pkgch "RegimeLab/pkg/clickhouse"
	"RegimeLab/pkg/config"
	xhttp "RegimeLab/pkg/http"
	applogger "RegimeLab/pkg/logger"
	pkgqueue "RegimeLab/pkg/queue"
)

// App encapsulates the entire application lifecycle. In batch mode it runs
// one detection and exits; in serve mode it keeps the latest detection warm
// behind the HTTP API.
type App struct {
	cfg         *config.Config
	l           *applogger.Logger
	uc          *usecase.DetectUsecase
	guard       *mid.RunGuard
	queue       *pkgqueue.RedisQueue
	chClient    *pkgch.Client
	router      *usecase.ArtifactRouter
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	uc *usecase.DetectUsecase,
	guard *mid.RunGuard,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:      cfg,
		l:        l,
		uc:       uc,
		guard:    guard,
		chClient: chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetQueue allows DI to inject the async refit queue.
func (a *App) SetQueue(q *pkgqueue.RedisQueue) { a.queue = q }

// SetRouter allows DI to inject the artifact router for closing at exit.
func (a *App) SetRouter(r *usecase.ArtifactRouter) { a.router = r }

// Run starts the application. Batch mode returns when the run finishes;
// serve mode blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.cfg.Mode == "batch" {
		return a.runBatch(ctx)
	}
	return a.runServe(ctx)
}

// runBatch executes one detection run and releases all resources.
func (a *App) runBatch(ctx context.Context) error {
	a.l.Info("batch run starting", applogger.String("symbol", a.cfg.Data.Symbol))

	_, err := a.uc.RunOnce(ctx, false)
	a.closeResources()
	if err != nil {
		a.l.Error("batch run failed", applogger.Error(err))
		return err
	}

	a.l.Info("batch run complete")
	return nil
}

func (a *App) runServe(ctx context.Context) error {
	// Initial detection in the background so the API comes up immediately.
	go func() {
		if _, err := a.uc.RunOnce(ctx, false); err != nil {
			a.l.Error("initial detection error", applogger.Error(err))
		}
	}()

	// Start async refit queue if configured
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return fmt.Errorf("queue start: %w", err)
		}
		a.queue.StartRetryProcessor()
		a.l.Info("refit queue started")

		// Route repeated errors through the queue as counted digests
		a.l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "log.errors",
			Publisher:      a.queue,
		})
	}

	// Start refit guard worker
	a.guard.Start(ctx)

	// Setup Echo HTTP server using pkg/http and register routes via handler
	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(a.l, 500*time.Millisecond),
	)
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.guard.Stop()

	// Flush pending error digests while the queue is still up
	a.l.RemoveCollector()

	if a.queue != nil {
		stopCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		if err := a.queue.Stop(stopCtx); err != nil {
			a.l.Warn("queue stop error", applogger.Error(err))
		}
		cancel()
	}

	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
		cancel()
	}

	a.closeResources()
	a.l.Info("shutdown complete")
	return nil
}

// closeResources closes the artifact sinks and infrastructure clients.
func (a *App) closeResources() {
	if a.router != nil {
		a.router.Close()
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
}
