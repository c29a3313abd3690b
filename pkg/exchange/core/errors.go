package core

import (
	"errors"
	"fmt"

	"github.com/amirasaad/fxrate/pkg/currency"
)

// Common errors for exchange operations
var (
	// ErrUnknownCurrency indicates an upstream code that could not be mapped,
	// or a code a pair-only source does not support
	ErrUnknownCurrency = currency.ErrUnknown

	// ErrInvalidQuote indicates a quote without any usable rate field
	ErrInvalidQuote = errors.New("invalid quote")

	// ErrPathNotFound indicates that no conversion route exists between two currencies
	ErrPathNotFound = errors.New("conversion path not found")

	// ErrRateKindUnsupported indicates that a hop lacks the requested rate kind
	ErrRateKindUnsupported = errors.New("rate kind unsupported")

	// ErrSourceFetchFailed indicates that an adapter failed to fetch quotes
	ErrSourceFetchFailed = errors.New("source fetch failed")

	// ErrCapabilityUnsupported indicates an operation a source cannot answer
	ErrCapabilityUnsupported = errors.New("capability unsupported")

	// ErrSourceNotFound indicates that no source is registered under a name
	ErrSourceNotFound = errors.New("source not found")

	// ErrSourceExists indicates a second registration under the same name
	ErrSourceExists = errors.New("source already registered")

	// ErrInvalidAmount indicates that an invalid amount was provided
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidKind indicates a rate kind other than cash, remit or middle
	ErrInvalidKind = errors.New("invalid rate kind")
)

// PathNotFoundError names the endpoints of a failed path search.
type PathNotFoundError struct {
	From currency.Code
	To   currency.Code
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("no conversion path from %s to %s", e.From, e.To)
}

func (e *PathNotFoundError) Is(target error) bool {
	return target == ErrPathNotFound
}

// RateKindError names the hop that lacks a rate kind.
type RateKindError struct {
	From currency.Code
	To   currency.Code
	Kind Kind
}

func (e *RateKindError) Error() string {
	return fmt.Sprintf("hop %s->%s has no %s rate", e.From, e.To, e.Kind)
}

func (e *RateKindError) Is(target error) bool {
	return target == ErrRateKindUnsupported
}

// FetchError represents an error from a source adapter
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return "source " + e.Source + ": fetch failed: " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrSourceFetchFailed
}

// IsFetchError checks if an error is a FetchError
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
