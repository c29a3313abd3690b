package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/shopspring/decimal"
)

// Kind selects which rate of an edge a conversion uses.
type Kind string

const (
	Cash   Kind = "cash"
	Remit  Kind = "remit"
	Middle Kind = "middle"
)

// Kinds lists every rate kind in presentation order.
var Kinds = []Kind{Cash, Remit, Middle}

// ParseKind parses a rate kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case Cash, Remit, Middle:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (k Kind) String() string {
	return string(k)
}

// Side is one bank-centric side of a quote. Missing fields are not Valid.
type Side struct {
	Cash  decimal.NullDecimal `json:"cash"`
	Remit decimal.NullDecimal `json:"remit"`
}

// Quote is one normalized record produced by a source adapter.
type Quote struct {
	From      currency.Code       `json:"from"`
	To        currency.Code       `json:"to"`
	Unit      decimal.Decimal     `json:"unit"`
	UpdatedAt time.Time           `json:"updated_at"`
	Buy       *Side               `json:"buy,omitempty"`
	Sell      *Side               `json:"sell,omitempty"`
	Middle    decimal.NullDecimal `json:"middle"`
}

// Status is the lifecycle state of a source.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
)

// Rate builds a present optional rate value.
func Rate(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// RateFromString builds a present optional rate value from its decimal text.
// Empty text yields an absent value.
func RateFromString(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return Rate(d), nil
}
