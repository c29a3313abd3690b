package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/amirasaad/fxrate/pkg/exchange/graph"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

var decimalOne = decimal.NewFromInt(1)

// Pair is a source that cannot list all of its rates. Each query fetches
// the requested pair live on a cache miss and answers from the cached
// quote until it expires.
type Pair struct {
	name      string
	fetcher   PairFetcher
	opts      options
	cache     PairCache
	supported map[currency.Code]struct{}
	logger    *slog.Logger

	lastFetch atomic.Pointer[time.Time]
	inflight  singleflight.Group
}

// NewPair creates a pair source. Without WithSupported the fetcher's own
// currency list is used.
func NewPair(name string, fetcher PairFetcher, opts ...Option) *Pair {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.cache == nil {
		o.cache = NewMemoryPairCache(o.cacheSize, o.cacheTTL)
	}
	if len(o.supported) == 0 {
		o.supported = fetcher.Currencies()
	}
	o.recorder.SetStatus(name, core.StatusReady)
	return &Pair{
		name:      name,
		fetcher:   fetcher,
		opts:      o,
		cache:     o.cache,
		supported: codeSet(o.supported),
		logger:    o.logger.With("component", "source", "source", name),
	}
}

func (s *Pair) Name() string { return s.name }

func (s *Pair) AbleToListAll() bool { return false }

// Status is always ready: there is nothing to load before the first query.
func (s *Pair) Status() core.Status { return core.StatusReady }

func (s *Pair) Interval() time.Duration { return 0 }

// LastRefreshAt returns the time of the last live fetch.
func (s *Pair) LastRefreshAt() time.Time {
	if t := s.lastFetch.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// Currencies returns the supported list, sorted.
func (s *Pair) Currencies(context.Context) ([]currency.Code, error) {
	codes := make([]currency.Code, 0, len(s.supported))
	for c := range s.supported {
		codes = append(codes, c)
	}
	currency.Sort(codes)
	return codes, nil
}

// Resolve returns a graph holding just the from → to pair, fetching it
// when the cache has no live entry. CNH is requested upstream as CNY but
// answered under the code the caller asked for.
func (s *Pair) Resolve(ctx context.Context, from, to currency.Code) (*graph.Graph, error) {
	from, to = currency.Normalize(from), currency.Normalize(to)
	upFrom, upTo := upstreamCode(from), upstreamCode(to)
	for _, c := range []currency.Code{upFrom, upTo} {
		if _, ok := s.supported[c]; !ok {
			return nil, fmt.Errorf("%w: %s is not supported by %s", core.ErrUnknownCurrency, c, s.name)
		}
	}

	g := graph.New()
	g.AddCurrency(from)
	g.AddCurrency(to)
	if from == to {
		return g, nil
	}
	if upFrom == upTo {
		// CNH against CNY is the same upstream currency
		one := core.Quote{From: from, To: to, Unit: decimalOne, Middle: core.Rate(decimalOne), UpdatedAt: graph.Epoch}
		if err := g.Ingest(one); err != nil {
			return nil, err
		}
		return g, nil
	}

	q, err := s.quote(ctx, upFrom, upTo)
	if err != nil {
		return nil, err
	}
	q.From, q.To = from, to
	if err := g.Ingest(q); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Pair) quote(ctx context.Context, from, to currency.Code) (core.Quote, error) {
	key := PairKey{From: from, To: to}
	log := s.logger.With("pair", key.String())

	q, ok, err := s.cache.Get(ctx, from, to)
	if err != nil {
		log.Warn("Pair cache read failed", "error", err)
	}
	if ok {
		s.opts.recorder.ObservePairCache(s.name, true)
		return q, nil
	}
	s.opts.recorder.ObservePairCache(s.name, false)

	waitCtx, cancel := context.WithTimeout(ctx, s.opts.queryTimeout)
	defer cancel()

	ch := s.inflight.DoChan(key.String(), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.queryTimeout)
		defer cancel()

		start := time.Now()
		q, err := s.fetcher.FetchPair(fetchCtx, from, to)
		s.opts.recorder.ObserveRefresh(s.name, time.Since(start), err)
		if err != nil {
			log.Error("Pair fetch failed", "error", err)
			return core.Quote{}, &core.FetchError{Source: s.name, Err: err}
		}
		now := time.Now().UTC()
		s.lastFetch.Store(&now)

		if err := s.cache.Set(fetchCtx, from, to, q); err != nil {
			log.Warn("Pair cache write failed", "error", err)
		}
		log.Debug("Pair fetched", "updated_at", q.UpdatedAt)
		return q, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return core.Quote{}, res.Err
		}
		return res.Val.(core.Quote), nil
	case <-waitCtx.Done():
		return core.Quote{}, &core.FetchError{Source: s.name, Err: waitCtx.Err()}
	}
}

func upstreamCode(c currency.Code) currency.Code {
	if c == currency.CNH {
		return currency.CNY
	}
	return c
}
