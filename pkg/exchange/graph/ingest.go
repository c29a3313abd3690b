package graph

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/shopspring/decimal"
)

// IngestReport summarizes a batch ingestion.
type IngestReport struct {
	Applied  int
	Stale    int
	Rejected int
}

// Ingest merges one quote into the graph. A quote older than the stored
// edge for the same pair is ignored. It returns an error wrapping
// core.ErrInvalidQuote when the quote carries no usable rate.
func (g *Graph) Ingest(q core.Quote) error {
	_, err := g.ingest(q)
	return err
}

// IngestBatch ingests every quote, logging and skipping the ones that are
// rejected. It never aborts the batch.
func IngestBatch(g *Graph, quotes []core.Quote, logger *slog.Logger) IngestReport {
	var report IngestReport
	for _, q := range quotes {
		applied, err := g.ingest(q)
		switch {
		case err != nil:
			report.Rejected++
			if logger != nil {
				logger.Warn("Skipping quote",
					"from", q.From,
					"to", q.To,
					"updated_at", q.UpdatedAt,
					"error", err,
				)
			}
		case applied:
			report.Applied++
		default:
			report.Stale++
		}
	}
	return report
}

type sideRates struct {
	cash  *big.Rat
	remit *big.Rat
}

func (s sideRates) empty() bool {
	return s.cash == nil && s.remit == nil
}

func (g *Graph) ingest(q core.Quote) (bool, error) {
	from := currency.Normalize(q.From)
	to := currency.Normalize(q.To)
	if !from.Valid() || !to.Valid() {
		return false, fmt.Errorf("%w: bad currency pair %q/%q", core.ErrInvalidQuote, q.From, q.To)
	}
	if from == to {
		return false, fmt.Errorf("%w: %s quoted against itself", core.ErrInvalidQuote, from)
	}
	if !q.Unit.IsPositive() {
		return false, fmt.Errorf("%w: unit must be positive, got %s", core.ErrInvalidQuote, q.Unit)
	}

	if e := g.edge(from, to); e != nil && e.UpdatedAt.After(q.UpdatedAt) {
		return false, nil
	}

	buy, sell, middle, err := synthesize(q)
	if err != nil {
		return false, err
	}

	unit := q.Unit.Rat()
	perUnit := func(r *big.Rat) *big.Rat {
		return new(big.Rat).Quo(r, unit)
	}
	reciprocal := func(r *big.Rat) *big.Rat {
		return new(big.Rat).Quo(unit, r)
	}

	forward := g.upsertEdge(from, to)
	forward.Middle = perUnit(middle)
	if buy.cash != nil {
		forward.Cash = perUnit(buy.cash)
	}
	if buy.remit != nil {
		forward.Remit = perUnit(buy.remit)
	}
	forward.UpdatedAt = q.UpdatedAt

	backward := g.upsertEdge(to, from)
	backward.Middle = reciprocal(middle)
	if sell.cash != nil {
		backward.Cash = reciprocal(sell.cash)
	}
	if sell.remit != nil {
		backward.Remit = reciprocal(sell.remit)
	}
	backward.UpdatedAt = q.UpdatedAt

	return true, nil
}

// synthesize fills in missing sides and the middle rate. The middle
// estimate is the mean of the smallest and largest defined side rates.
func synthesize(q core.Quote) (buy, sell sideRates, middle *big.Rat, err error) {
	buy = toSideRates(q.Buy)
	sell = toSideRates(q.Sell)
	middle = toRat(q.Middle)

	switch {
	case buy.empty() && sell.empty():
		if middle == nil {
			return buy, sell, nil, fmt.Errorf("%w: %s/%s has no buy, sell or middle rate", core.ErrInvalidQuote, q.From, q.To)
		}
		buy = sideRates{cash: middle, remit: middle}
		sell = buy
	case buy.empty():
		buy = sell
	case sell.empty():
		sell = buy
	}

	if middle == nil {
		var lo, hi *big.Rat
		for _, r := range []*big.Rat{buy.cash, buy.remit, sell.cash, sell.remit} {
			if r == nil {
				continue
			}
			if lo == nil || r.Cmp(lo) < 0 {
				lo = r
			}
			if hi == nil || r.Cmp(hi) > 0 {
				hi = r
			}
		}
		middle = new(big.Rat).Add(lo, hi)
		middle.Quo(middle, big.NewRat(2, 1))
	}
	return buy, sell, middle, nil
}

func toSideRates(s *core.Side) sideRates {
	if s == nil {
		return sideRates{}
	}
	return sideRates{cash: toRat(s.Cash), remit: toRat(s.Remit)}
}

// toRat treats absent, zero and negative values as missing.
func toRat(n decimal.NullDecimal) *big.Rat {
	if !n.Valid || !n.Decimal.IsPositive() {
		return nil
	}
	return n.Decimal.Rat()
}
