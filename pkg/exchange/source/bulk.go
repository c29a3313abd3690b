package source

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/amirasaad/fxrate/pkg/exchange/graph"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Bulk is a source whose adapter publishes every quote it has in one
// fetch. Each successful refresh ingests into a clone of the current graph
// and publishes the clone atomically, so readers never see a partial batch.
type Bulk struct {
	name      string
	fetcher   Fetcher
	opts      options
	supported map[currency.Code]struct{}
	logger    *slog.Logger

	snapshot    atomic.Pointer[graph.Graph]
	ready       atomic.Bool
	lastRefresh atomic.Pointer[time.Time]

	refreshMu sync.Mutex
	cold      singleflight.Group
}

// NewBulk creates a pending bulk source with an empty graph.
func NewBulk(name string, fetcher Fetcher, opts ...Option) *Bulk {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &Bulk{
		name:      name,
		fetcher:   fetcher,
		opts:      o,
		supported: codeSet(o.supported),
		logger:    o.logger.With("component", "source", "source", name),
	}
	s.snapshot.Store(graph.New())
	o.recorder.SetStatus(name, core.StatusPending)
	return s
}

func (s *Bulk) Name() string { return s.name }

func (s *Bulk) AbleToListAll() bool { return true }

func (s *Bulk) Interval() time.Duration { return s.opts.interval }

func (s *Bulk) Status() core.Status {
	if s.ready.Load() {
		return core.StatusReady
	}
	return core.StatusPending
}

// LastRefreshAt returns the time of the last successful refresh, zero
// while pending.
func (s *Bulk) LastRefreshAt() time.Time {
	if t := s.lastRefresh.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// Snapshot returns the currently published graph without triggering a
// refresh.
func (s *Bulk) Snapshot() *graph.Graph {
	return s.snapshot.Load()
}

// Refresh fetches a new batch and publishes it. On failure the published
// graph and status are left untouched and a *core.FetchError is returned.
// Refreshes of the same source never overlap.
func (s *Bulk) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	log := s.logger.With("run_id", uuid.NewString())
	start := time.Now()

	quotes, err := s.fetcher.Fetch(ctx)
	if err == nil {
		err = ctx.Err()
	}
	took := time.Since(start)
	s.opts.recorder.ObserveRefresh(s.name, took, err)
	if err != nil {
		log.Error("Refresh failed", "error", err, "took", took)
		return &core.FetchError{Source: s.name, Err: err}
	}

	quotes = s.filter(quotes)
	next := s.snapshot.Load().Clone()
	report := graph.IngestBatch(next, quotes, log)
	s.opts.recorder.ObserveIngest(s.name, report)

	now := time.Now().UTC()
	s.snapshot.Store(next)
	s.lastRefresh.Store(&now)
	if !s.ready.Swap(true) {
		s.opts.recorder.SetStatus(s.name, core.StatusReady)
	}

	log.Info("Refresh complete",
		"quotes", len(quotes),
		"applied", report.Applied,
		"stale", report.Stale,
		"rejected", report.Rejected,
		"currencies", next.Len(),
		"took", took,
	)
	return nil
}

// Run refreshes the source every interval until ctx is done. It returns
// immediately when the source has no interval.
func (s *Bulk) Run(ctx context.Context) {
	if s.opts.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.opts.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// the error is already logged and the stale graph keeps serving
			_ = s.Refresh(ctx)
		}
	}
}

// Resolve returns the published graph. A pending source is refreshed
// synchronously first; concurrent cold queries share one fetch bounded by
// the cold start timeout.
func (s *Bulk) Resolve(ctx context.Context, _, _ currency.Code) (*graph.Graph, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	return s.snapshot.Load(), nil
}

// Currencies lists every currency of the published graph in sorted order.
func (s *Bulk) Currencies(ctx context.Context) ([]currency.Code, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	codes := s.snapshot.Load().Currencies()
	currency.Sort(codes)
	return codes, nil
}

func (s *Bulk) ensureReady(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}

	timeout := s.opts.coldStartTimeout
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := s.cold.DoChan("cold-start", func() (any, error) {
		if s.ready.Load() {
			return nil, nil
		}
		s.logger.Info("Cold start refresh", "timeout", timeout)
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return nil, s.Refresh(fetchCtx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-waitCtx.Done():
		err := waitCtx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("Cold start timed out", "timeout", timeout)
		}
		return &core.FetchError{Source: s.name, Err: err}
	}
}

func (s *Bulk) filter(quotes []core.Quote) []core.Quote {
	if s.supported == nil {
		return quotes
	}
	kept := quotes[:0:0]
	for _, q := range quotes {
		_, from := s.supported[currency.Normalize(q.From)]
		_, to := s.supported[currency.Normalize(q.To)]
		if from || to {
			kept = append(kept, q)
		}
	}
	return kept
}
