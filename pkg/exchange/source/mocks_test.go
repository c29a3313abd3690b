package source

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/amirasaad/fxrate/pkg/exchange/graph"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

var (
	t0 = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	t1 = t0.Add(30 * time.Minute)
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func middleQuote(from, to currency.Code, middle string, at time.Time) core.Quote {
	return core.Quote{
		From:      from,
		To:        to,
		Unit:      decimal.NewFromInt(1),
		Middle:    core.Rate(decimal.RequireFromString(middle)),
		UpdatedAt: at,
	}
}

// MockFetcher is a mock implementation of Fetcher
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context) ([]core.Quote, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]core.Quote), args.Error(1)
}

// MockPairFetcher is a mock implementation of PairFetcher
type MockPairFetcher struct {
	mock.Mock
	codes []currency.Code
}

func (m *MockPairFetcher) FetchPair(ctx context.Context, from, to currency.Code) (core.Quote, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(core.Quote), args.Error(1)
}

func (m *MockPairFetcher) Currencies() []currency.Code {
	return m.codes
}

// recorder keeps every observation for assertions.
type recorder struct {
	mu       sync.Mutex
	refresh  []error
	ingest   []graph.IngestReport
	hits     int
	misses   int
	statuses []core.Status
}

func (r *recorder) ObserveRefresh(_ string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refresh = append(r.refresh, err)
}

func (r *recorder) ObserveIngest(_ string, report graph.IngestReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingest = append(r.ingest, report)
}

func (r *recorder) ObservePairCache(_ string, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func (r *recorder) SetStatus(_ string, status core.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}
