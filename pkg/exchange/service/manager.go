// Package service is the source orchestrator: it owns every registered
// source, schedules bulk refreshes and answers queries by source name.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/amirasaad/fxrate/pkg/exchange/source"
)

// SourceInfo describes a registered source.
type SourceInfo struct {
	Name          string        `json:"name"`
	Status        core.Status   `json:"status"`
	AbleToListAll bool          `json:"ableToListAll"`
	LastRefreshAt time.Time     `json:"lastRefreshAt"`
	Interval      time.Duration `json:"interval"`
}

// Manager owns the registered sources and answers queries against them.
// Sources never share state; a failure in one does not affect the others.
type Manager struct {
	base     *slog.Logger
	logger   *slog.Logger
	defaults []source.Option

	mu      sync.RWMutex
	sources map[string]source.Source
	order   []string

	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithSourceDefaults applies opts to every source registered afterwards,
// before the per-source options.
func WithSourceDefaults(opts ...source.Option) Option {
	return func(m *Manager) {
		m.defaults = append(m.defaults, opts...)
	}
}

// New creates an empty Manager.
func New(logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		base:    logger,
		logger:  logger.With("component", "manager"),
		sources: make(map[string]source.Source),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a bulk source. It starts pending with an empty graph and
// is scheduled right away if the Manager is already running.
func (m *Manager) Register(name string, fetcher source.Fetcher, opts ...source.Option) (*source.Bulk, error) {
	s := source.NewBulk(name, fetcher, m.sourceOptions(opts)...)
	if err := m.add(s); err != nil {
		return nil, err
	}
	return s, nil
}

// RegisterPair adds an on-demand pair source.
func (m *Manager) RegisterPair(name string, fetcher source.PairFetcher, opts ...source.Option) (*source.Pair, error) {
	s := source.NewPair(name, fetcher, m.sourceOptions(opts)...)
	if err := m.add(s); err != nil {
		return nil, err
	}
	return s, nil
}

// RegisterStatic adds a bulk source and refreshes it once so it is ready
// before the first query. It is never scheduled.
func (m *Manager) RegisterStatic(ctx context.Context, name string, fetcher source.Fetcher, opts ...source.Option) (*source.Bulk, error) {
	opts = append(opts, source.WithInterval(0))
	s := source.NewBulk(name, fetcher, m.sourceOptions(opts)...)
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	if err := m.add(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Manager) sourceOptions(opts []source.Option) []source.Option {
	all := make([]source.Option, 0, len(m.defaults)+len(opts)+1)
	all = append(all, source.WithLogger(m.base))
	all = append(all, m.defaults...)
	return append(all, opts...)
}

func (m *Manager) add(s source.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sources[s.Name()]; exists {
		return fmt.Errorf("%w: %s", core.ErrSourceExists, s.Name())
	}
	m.sources[s.Name()] = s
	m.order = append(m.order, s.Name())
	m.logger.Info("Source registered",
		"source", s.Name(),
		"able_to_list_all", s.AbleToListAll(),
		"interval", s.Interval(),
	)

	if m.started {
		m.schedule(s)
	}
	return nil
}

// Start schedules every bulk source at its own interval. It does not
// refresh anything itself: pending sources warm up on their first query.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.runCtx, m.cancel = context.WithCancel(ctx)
	m.started = true
	for _, name := range m.order {
		m.schedule(m.sources[name])
	}
	m.logger.Info("Manager started", "sources", len(m.order))
}

// schedule must be called with mu held.
func (m *Manager) schedule(s source.Source) {
	b, ok := s.(*source.Bulk)
	if !ok || b.Interval() <= 0 {
		return
	}
	ctx := m.runCtx
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		b.Run(ctx)
	}()
}

// Stop cancels every scheduled refresh and waits for them to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.cancel()
	m.started = false
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("Manager stopped")
}

// Refresh refreshes one bulk source now.
func (m *Manager) Refresh(ctx context.Context, name string) error {
	s, err := m.source(name)
	if err != nil {
		return err
	}
	b, ok := s.(*source.Bulk)
	if !ok {
		return fmt.Errorf("%w: %s refreshes on demand", core.ErrCapabilityUnsupported, name)
	}
	return b.Refresh(ctx)
}

// ListSources describes every source in registration order.
func (m *Manager) ListSources() []SourceInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SourceInfo, 0, len(m.order))
	for _, name := range m.order {
		s := m.sources[name]
		out = append(out, SourceInfo{
			Name:          s.Name(),
			Status:        s.Status(),
			AbleToListAll: s.AbleToListAll(),
			LastRefreshAt: s.LastRefreshAt(),
			Interval:      s.Interval(),
		})
	}
	return out
}

// NextRefreshIn reports how long until the source's next scheduled
// refresh. It is false for sources that are not scheduled or not yet
// refreshed.
func (m *Manager) NextRefreshIn(name string) (time.Duration, bool) {
	s, err := m.source(name)
	if err != nil || s.Interval() <= 0 {
		return 0, false
	}
	last := s.LastRefreshAt()
	if last.IsZero() {
		return 0, false
	}
	left := time.Until(last.Add(s.Interval()))
	if left < 0 {
		left = 0
	}
	return left, true
}

func (m *Manager) source(name string) (source.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSourceNotFound, name)
	}
	return s, nil
}
