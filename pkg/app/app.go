package app

import (
	"io"
	"log/slog"

	"github.com/amirasaad/fxrate/pkg/config"
	"github.com/amirasaad/fxrate/pkg/exchange/service"
	"github.com/prometheus/client_golang/prometheus"
)

// Deps contains everything the HTTP layer and the process lifecycle need.
type Deps struct {
	Logger  *slog.Logger
	Manager *service.Manager
	// Gatherer backs the /metrics endpoint.
	Gatherer prometheus.Gatherer
	// Closers are released on shutdown, in order.
	Closers []io.Closer
}

type App struct {
	Deps   *Deps
	Config *config.App
}

func New(deps *Deps, cfg *config.App) *App {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	return &App{Deps: deps, Config: cfg}
}

// Close stops the sources and releases every closer.
func (a *App) Close() error {
	if a.Deps.Manager != nil {
		a.Deps.Manager.Stop()
	}
	var first error
	for _, c := range a.Deps.Closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
