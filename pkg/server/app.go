package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DemandCast/internal/handler/ws"
	"DemandCast/internal/usecase"
	"DemandCast/pkg/config"
	xhttp "DemandCast/pkg/http"
	applogger "DemandCast/pkg/logger"
	"DemandCast/pkg/otel"
	"DemandCast/pkg/queue"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	httpServer *xhttp.Server
	hub        *ws.Hub
	queue      queue.Server
	scheduler  *usecase.ForecastScheduler
	tracer     *sdktrace.TracerProvider
	closers    []closer
}

type AppOption func(*App)

// WithHub runs the websocket hub alongside the server.
func WithHub(h *ws.Hub) AppOption {
	return func(a *App) { a.hub = h }
}

// WithQueue starts the queue workers before the HTTP server.
func WithQueue(q queue.Server) AppOption {
	return func(a *App) { a.queue = q }
}

func WithScheduler(s *usecase.ForecastScheduler) AppOption {
	return func(a *App) { a.scheduler = s }
}

func WithTracer(tp *sdktrace.TracerProvider) AppOption {
	return func(a *App) { a.tracer = tp }
}

// WithCloser registers a resource released on shutdown, in reverse order.
func WithCloser(name string, fn func() error) AppOption {
	return func(a *App) { a.closers = append(a.closers, closer{name: name, fn: fn}) }
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server, opts ...AppOption) *App {
	a := &App{cfg: cfg, logger: l, httpServer: httpServer}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.hub != nil {
		go a.hub.Run(runCtx)
	}

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			a.logger.Error("queue start error", applogger.Error(err))
			a.shutdown()
			return err
		}
	}

	if a.scheduler != nil {
		a.scheduler.Start(runCtx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		cancel()
		a.shutdown()
		return err
	}

	a.logger.Info("demandcast started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("storage", a.cfg.Storage.Driver),
		applogger.Int("port", a.cfg.Server.Port))

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	cancel()
	a.shutdown()
	return nil
}

// shutdown gracefully stops all services.
func (a *App) shutdown() {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.logger.Warn("queue stop error", applogger.Error(err))
		}
	}

	if err := otel.Shutdown(ctx, a.tracer); err != nil {
		a.logger.Warn("tracer shutdown error", applogger.Error(err))
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
}
