// Package source holds the two kinds of rate sources the service answers
// from: bulk sources that publish a whole graph per refresh, and pair
// sources that fetch one currency pair on demand behind a TTL cache.
package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/amirasaad/fxrate/pkg/exchange/graph"
)

const (
	DefaultColdStartTimeout = 10 * time.Second
	DefaultPairCacheTTL     = 30 * time.Minute
	DefaultPairCacheSize    = 500
	DefaultQueryTimeout     = 10 * time.Second
)

// Fetcher returns the full batch of quotes a bulk adapter currently publishes.
type Fetcher interface {
	Fetch(ctx context.Context) ([]core.Quote, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) ([]core.Quote, error)

func (f FetcherFunc) Fetch(ctx context.Context) ([]core.Quote, error) {
	return f(ctx)
}

// PairFetcher fetches a single quote from → to. Currencies lists the codes
// the adapter can be asked about.
type PairFetcher interface {
	FetchPair(ctx context.Context, from, to currency.Code) (core.Quote, error)
	Currencies() []currency.Code
}

// Source is the read side every registered source offers to the service.
type Source interface {
	Name() string
	AbleToListAll() bool
	Status() core.Status
	LastRefreshAt() time.Time
	// Interval is the scheduled refresh period, zero when not scheduled.
	Interval() time.Duration
	// Resolve returns a graph able to answer from → to. It may block on
	// I/O for a cold source; the returned graph must not be mutated.
	Resolve(ctx context.Context, from, to currency.Code) (*graph.Graph, error)
	Currencies(ctx context.Context) ([]currency.Code, error)
}

// Recorder receives source instrumentation.
type Recorder interface {
	ObserveRefresh(source string, took time.Duration, err error)
	ObserveIngest(source string, report graph.IngestReport)
	ObservePairCache(source string, hit bool)
	SetStatus(source string, status core.Status)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRefresh(string, time.Duration, error) {}
func (nopRecorder) ObserveIngest(string, graph.IngestReport)   {}
func (nopRecorder) ObservePairCache(string, bool)              {}
func (nopRecorder) SetStatus(string, core.Status)              {}

type options struct {
	interval         time.Duration
	coldStartTimeout time.Duration
	queryTimeout     time.Duration
	supported        []currency.Code
	cache            PairCache
	cacheTTL         time.Duration
	cacheSize        int
	logger           *slog.Logger
	recorder         Recorder
}

func defaultOptions() options {
	return options{
		coldStartTimeout: DefaultColdStartTimeout,
		queryTimeout:     DefaultQueryTimeout,
		cacheTTL:         DefaultPairCacheTTL,
		cacheSize:        DefaultPairCacheSize,
		logger:           slog.Default(),
		recorder:         nopRecorder{},
	}
}

// Option configures a source.
type Option func(*options)

// WithInterval sets the scheduled refresh period of a bulk source. Zero
// disables scheduling.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		o.interval = d
	}
}

// WithColdStartTimeout bounds the synchronous refresh a query performs on a
// pending bulk source.
func WithColdStartTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.coldStartTimeout = d
		}
	}
}

// WithQueryTimeout bounds a live pair fetch.
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.queryTimeout = d
		}
	}
}

// WithSupported restricts a source to the given currencies. A bulk source
// keeps only quotes touching one of them; a pair source rejects any other.
func WithSupported(codes ...currency.Code) Option {
	return func(o *options) {
		o.supported = codes
	}
}

// WithPairCache replaces the in-memory pair cache.
func WithPairCache(c PairCache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithPairCacheTTL sets the lifetime of the default in-memory pair cache.
func WithPairCacheTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.cacheTTL = d
		}
	}
}

// WithPairCacheSize sets the capacity of the default in-memory pair cache.
func WithPairCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

func codeSet(codes []currency.Code) map[currency.Code]struct{} {
	if len(codes) == 0 {
		return nil
	}
	set := make(map[currency.Code]struct{}, len(codes))
	for _, c := range codes {
		set[currency.Normalize(c)] = struct{}{}
	}
	return set
}
