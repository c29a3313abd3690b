package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/amirasaad/fxrate/pkg/exchange/graph"
	"github.com/shopspring/decimal"
)

const (
	DefaultAmount    = 100
	DefaultPrecision = 5
	// MaxPrecision bounds the places a caller may ask for.
	MaxPrecision = 32
	// unroundedPlaces is used when the caller asks for no rounding.
	unroundedPlaces = 16
)

// ConvertOptions shapes a conversion answer. Rounding happens only when
// the exact result is turned into a decimal.
type ConvertOptions struct {
	Amount decimal.Decimal
	// FeesPct is a markup percentage applied to the converted amount.
	FeesPct decimal.Decimal
	// Precision is the number of decimal places; negative means unrounded.
	Precision int32
	// Reverse treats Amount as expressed in the target currency.
	Reverse bool
}

// DefaultConvertOptions returns amount 100, no fees and 5 places.
func DefaultConvertOptions() ConvertOptions {
	return ConvertOptions{
		Amount:    decimal.NewFromInt(DefaultAmount),
		Precision: DefaultPrecision,
	}
}

func (o ConvertOptions) validate() error {
	if o.Amount.IsNegative() {
		return fmt.Errorf("%w: %s is negative", core.ErrInvalidAmount, o.Amount)
	}
	if o.FeesPct.LessThanOrEqual(decimal.NewFromInt(-100)) {
		return fmt.Errorf("%w: fees of %s%% leave nothing", core.ErrInvalidAmount, o.FeesPct)
	}
	if o.Precision > MaxPrecision {
		return fmt.Errorf("%w: precision %d exceeds %d", core.ErrInvalidAmount, o.Precision, MaxPrecision)
	}
	return nil
}

// RateDetail is the answer for one pair across every rate kind. A nil kind
// means some hop on the path does not quote it. Provided is false when no
// path exists, in which case every kind is zero and Updated is the epoch.
type RateDetail struct {
	Cash     *decimal.Decimal `json:"cash"`
	Remit    *decimal.Decimal `json:"remit"`
	Middle   *decimal.Decimal `json:"middle"`
	Provided bool             `json:"provided"`
	Updated  time.Time        `json:"updated"`
}

func notProvided() RateDetail {
	zero := decimal.Zero
	return RateDetail{Cash: &zero, Remit: &zero, Middle: &zero, Updated: graph.Epoch}
}

// ListCurrencies lists every currency the source can answer for, sorted.
func (m *Manager) ListCurrencies(ctx context.Context, name string) ([]currency.Code, error) {
	s, err := m.source(name)
	if err != nil {
		return nil, err
	}
	return s.Currencies(ctx)
}

// ListRatesFrom answers GetRateDetail from one currency to every currency
// of the source. Sources that cannot list all their rates refuse it.
func (m *Manager) ListRatesFrom(
	ctx context.Context,
	name string,
	from currency.Code,
	opts ConvertOptions,
) (map[currency.Code]RateDetail, error) {
	s, err := m.source(name)
	if err != nil {
		return nil, err
	}
	if !s.AbleToListAll() {
		return nil, fmt.Errorf("%w: %s cannot list all rates", core.ErrCapabilityUnsupported, name)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	g, err := s.Resolve(ctx, from, from)
	if err != nil {
		return nil, err
	}
	if !g.Has(from) {
		return nil, fmt.Errorf("%w: %s is not quoted by %s", core.ErrUnknownCurrency, from, name)
	}

	codes := g.Currencies()
	out := make(map[currency.Code]RateDetail, len(codes))
	for _, to := range codes {
		d, err := detail(g, from, to, opts)
		if err != nil {
			return nil, err
		}
		out[to] = d
	}
	return out, nil
}

// GetRateDetail converts opts.Amount from → to with every rate kind.
func (m *Manager) GetRateDetail(
	ctx context.Context,
	name string,
	from, to currency.Code,
	opts ConvertOptions,
) (RateDetail, error) {
	if err := opts.validate(); err != nil {
		return RateDetail{}, err
	}
	g, err := m.resolve(ctx, name, from, to)
	if err != nil {
		return RateDetail{}, err
	}
	return detail(g, from, to, opts)
}

// ConvertAmount converts opts.Amount from → to with one rate kind.
func (m *Manager) ConvertAmount(
	ctx context.Context,
	name string,
	from, to currency.Code,
	kind core.Kind,
	opts ConvertOptions,
) (decimal.Decimal, error) {
	if _, err := core.ParseKind(string(kind)); err != nil {
		return decimal.Zero, err
	}
	if err := opts.validate(); err != nil {
		return decimal.Zero, err
	}
	g, err := m.resolve(ctx, name, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	r, err := convert(g, from, to, kind, opts)
	if err != nil {
		return decimal.Zero, err
	}
	return round(r, opts.Precision), nil
}

// GetLastUpdated returns the oldest update time along the from → to path,
// in UTC.
func (m *Manager) GetLastUpdated(ctx context.Context, name string, from, to currency.Code) (time.Time, error) {
	g, err := m.resolve(ctx, name, from, to)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := g.LastUpdated(from, to)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

func (m *Manager) resolve(ctx context.Context, name string, from, to currency.Code) (*graph.Graph, error) {
	s, err := m.source(name)
	if err != nil {
		return nil, err
	}
	return s.Resolve(ctx, from, to)
}

func detail(g *graph.Graph, from, to currency.Code, opts ConvertOptions) (RateDetail, error) {
	updated, err := g.LastUpdated(from, to)
	if errors.Is(err, core.ErrPathNotFound) {
		return notProvided(), nil
	}
	if err != nil {
		return RateDetail{}, err
	}

	d := RateDetail{Provided: true, Updated: updated.UTC()}
	for _, kind := range core.Kinds {
		r, err := convert(g, from, to, kind, opts)
		if errors.Is(err, core.ErrRateKindUnsupported) {
			continue
		}
		if err != nil {
			return RateDetail{}, err
		}
		v := round(r, opts.Precision)
		switch kind {
		case core.Cash:
			d.Cash = &v
		case core.Remit:
			d.Remit = &v
		case core.Middle:
			d.Middle = &v
		}
	}
	return d, nil
}

func convert(g *graph.Graph, from, to currency.Code, kind core.Kind, opts ConvertOptions) (*big.Rat, error) {
	r, err := g.Convert(from, to, kind, opts.Amount.Rat(), opts.Reverse)
	if err != nil {
		return nil, err
	}
	if !opts.FeesPct.IsZero() {
		factor := new(big.Rat).Quo(opts.FeesPct.Rat(), big.NewRat(100, 1))
		factor.Add(factor, big.NewRat(1, 1))
		r.Mul(r, factor)
	}
	return r, nil
}

// round turns an exact result into a decimal with the given places,
// rounding half away from zero.
func round(r *big.Rat, precision int32) decimal.Decimal {
	if precision < 0 {
		precision = unroundedPlaces
	}
	num := decimal.NewFromBigInt(r.Num(), 0)
	den := decimal.NewFromBigInt(r.Denom(), 0)
	return num.DivRound(den, precision)
}
