package provider

import (
	"context"

	"github.com/amirasaad/fxrate/internal/fixtures/quotes"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/amirasaad/fxrate/pkg/exchange/source"
)

// StaticName is the registration name of the fixture source.
const StaticName = "fixture"

// Static serves a fixed set of quotes. It backs local runs and tests that
// must not reach the network.
type Static struct {
	quotes []core.Quote
}

func NewStatic(qs []core.Quote) *Static {
	return &Static{quotes: qs}
}

// NewStaticFromFixture loads quotes from a CSV file, or the embedded
// fixture when path is empty.
func NewStaticFromFixture(path string) (*Static, error) {
	qs, err := quotes.Load(path)
	if err != nil {
		return nil, err
	}
	return NewStatic(qs), nil
}

// Fetch implements source.Fetcher.
func (p *Static) Fetch(ctx context.Context) ([]core.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]core.Quote(nil), p.quotes...), nil
}

var _ source.Fetcher = (*Static)(nil)
