package initializer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/amirasaad/fxrate/infra/cache"
	"github.com/amirasaad/fxrate/infra/metrics"
	"github.com/amirasaad/fxrate/infra/provider"
	"github.com/amirasaad/fxrate/pkg/app"
	"github.com/amirasaad/fxrate/pkg/config"
	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/service"
	"github.com/amirasaad/fxrate/pkg/exchange/source"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// InitializeDependencies builds the logger, the metrics registry and the
// source manager with every enabled source registered.
func InitializeDependencies(cfg *config.App) (*app.Deps, error) {
	return initialize(context.Background(), cfg, setupLogger(cfg.Log))
}

func initialize(ctx context.Context, cfg *config.App, logger *slog.Logger) (
	deps *app.Deps,
	err error,
) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewSourceMetrics(registry)

	supported, err := parseCodes(cfg.Sources.Supported)
	if err != nil {
		return nil, fmt.Errorf("invalid SOURCES_SUPPORTED: %w", err)
	}

	defaults := []source.Option{
		source.WithInterval(cfg.Sources.RefreshInterval),
		source.WithColdStartTimeout(cfg.Sources.ColdStartTimeout),
		source.WithQueryTimeout(cfg.Sources.QueryTimeout),
		source.WithRecorder(recorder),
	}
	manager := service.New(logger, service.WithSourceDefaults(defaults...))
	built := &app.Deps{Logger: logger, Manager: manager, Gatherer: registry}
	defer func() {
		if err != nil {
			closeAll(built.Closers, logger)
		}
	}()

	httpOpts := provider.HTTPOptions{
		Timeout:   cfg.Sources.HTTPTimeout,
		UserAgent: cfg.Sources.UserAgent,
		OnSkip:    recorder.RecordSkip,
	}
	var bulkOpts []source.Option
	if len(supported) > 0 {
		bulkOpts = append(bulkOpts, source.WithSupported(supported...))
	}

	if cfg.SourceEnabled(provider.ICBCName) {
		icbc := provider.NewICBC(cfg.ICBC.URL, nil, httpOpts, logger)
		if _, err := manager.Register(provider.ICBCName, icbc, bulkOpts...); err != nil {
			return nil, err
		}
	}

	if cfg.SourceEnabled(provider.ExchangeRateAPIName) {
		base, err := currency.Parse(cfg.ExchangeRateApi.Base)
		if err != nil {
			return nil, fmt.Errorf("invalid EXCHANGERATE_BASE: %w", err)
		}
		api := provider.NewExchangeRateAPI(
			cfg.ExchangeRateApi.ApiUrl,
			cfg.ExchangeRateApi.ApiKey,
			base,
			httpOpts,
			logger,
		)
		if _, err := manager.Register(provider.ExchangeRateAPIName, api, bulkOpts...); err != nil {
			return nil, err
		}
	}

	if cfg.SourceEnabled(provider.VisaName) {
		codes, err := parseCodes(cfg.Visa.Currencies)
		if err != nil {
			return nil, fmt.Errorf("invalid VISA_CURRENCIES: %w", err)
		}
		pairCache, closer, err := newPairCache(cfg, logger)
		if err != nil {
			return nil, err
		}
		if closer != nil {
			built.Closers = append(built.Closers, closer)
		}
		visa := provider.NewVisa(cfg.Visa.URL, codes, httpOpts, logger)
		if _, err := manager.RegisterPair(provider.VisaName, visa, source.WithPairCache(pairCache)); err != nil {
			return nil, err
		}
	}

	if cfg.SourceEnabled(provider.StaticName) {
		fixture, err := provider.NewStaticFromFixture("")
		if err != nil {
			return nil, fmt.Errorf("failed to load fixture quotes: %w", err)
		}
		if _, err := manager.RegisterStatic(ctx, provider.StaticName, fixture); err != nil {
			return nil, err
		}
	}

	logger.Info("Dependencies initialized",
		"sources", len(manager.ListSources()),
		"pair_cache", cfg.PairCache.Backend,
	)
	return built, nil
}

// closeAll releases what a failed initialization already opened.
func closeAll(closers []io.Closer, logger *slog.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn("Failed to close dependency", "error", err)
		}
	}
}

// newPairCache picks the pair cache backend. The closer is nil for the
// in-memory backend.
func newPairCache(cfg *config.App, logger *slog.Logger) (source.PairCache, io.Closer, error) {
	switch cfg.PairCache.Backend {
	case "", "memory":
		return source.NewMemoryPairCache(cfg.PairCache.Size, cfg.PairCache.TTL), nil, nil
	case "redis":
		c, err := cache.NewRedisPairCache(cfg.Redis, cfg.PairCache.TTL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Redis pair cache: %w", err)
		}
		return c, c, nil
	default:
		return nil, nil, fmt.Errorf("unknown pair cache backend %q", cfg.PairCache.Backend)
	}
}

func parseCodes(raw []string) ([]currency.Code, error) {
	codes := make([]currency.Code, 0, len(raw))
	for _, s := range raw {
		c, err := currency.Parse(s)
		if err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, nil
}
