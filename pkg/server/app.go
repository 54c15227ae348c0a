package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SearchInsight/internal/middleware"
	"SearchInsight/internal/usecase"
	"SearchInsight/pkg/config"
	xhttp "SearchInsight/pkg/http"
	applogger "SearchInsight/pkg/logger"
	"SearchInsight/pkg/queue"
)

// Closer releases an infrastructure resource on shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// Components holds everything the App starts and stops. Collector, Jobs and
// Processor may be nil.
type Components struct {
	HTTP      *xhttp.Server
	Collector *usecase.SnapshotCollector
	Pipeline  *middleware.SnapshotPipeline
	Jobs      *queue.RedisQueue
	Processor *usecase.SnapshotProcessor
	Closers   []Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	l   *applogger.Logger
	c   Components
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	return &App{cfg: cfg, l: l, c: c}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	l := a.l

	if a.c.Jobs != nil {
		if err := a.c.Jobs.Start(ctx); err != nil {
			return err
		}
		l.Info("job queue started")
	}

	if a.c.Pipeline != nil {
		a.c.Pipeline.Start(ctx)
	}

	if a.c.Collector != nil {
		if err := a.c.Collector.Start(ctx); err != nil {
			l.Error("collector start error", applogger.Error(err))
		} else {
			l.Info("collector started",
				applogger.Strings("sites", a.cfg.SearchConsole.Sites),
				applogger.Duration("interval", a.cfg.Collector.Interval),
				applogger.String("dispatch", a.cfg.Collector.Dispatch))
		}
	}

	if err := a.c.HTTP.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		a.shutdown()
		return err
	}
	l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	<-ctx.Done()
	l.Info("shutdown signal received")
	a.shutdown()
	return nil
}

func (a *App) shutdown() {
	l := a.l
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.c.HTTP.Stop(ctx); err != nil {
		l.Warn("http server stop error", applogger.Error(err))
	}
	if a.c.Collector != nil {
		a.c.Collector.Stop()
	}
	if a.c.Pipeline != nil {
		a.c.Pipeline.Stop()
		if n := a.c.Pipeline.Buffered(); n > 0 {
			l.Warn("snapshots left unprocessed", applogger.Int("count", n))
		}
	}
	if a.c.Jobs != nil {
		if err := a.c.Jobs.Stop(ctx); err != nil {
			l.Warn("job queue stop error", applogger.Error(err))
		}
	}
	if a.c.Processor != nil {
		a.c.Processor.Close()
	}
	for _, c := range a.c.Closers {
		if err := c.Close(); err != nil {
			l.Warn("close error", applogger.String("resource", c.Name), applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
}
