// Package currency defines currency codes and the alias rules applied at
// every graph lookup boundary.
package currency

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Code represents a currency code (e.g., "USD", "CNH").
type Code string

// Common currency codes
const (
	USD Code = "USD" // US Dollar
	EUR Code = "EUR" // Euro
	JPY Code = "JPY" // Japanese Yen
	GBP Code = "GBP" // British Pound
	HKD Code = "HKD" // Hong Kong Dollar
	CNY Code = "CNY" // Chinese Yuan
	CNH Code = "CNH" // Offshore Chinese Yuan
	RMB Code = "RMB" // Synonym of CNY, never stored
)

var (
	// ErrInvalidCode is returned when a string cannot be a currency code.
	ErrInvalidCode = errors.New("invalid currency code")

	// ErrUnknown is returned when a code is well formed but not known to
	// the table or source being asked.
	ErrUnknown = errors.New("unknown currency")
)

var codePattern = regexp.MustCompile(`^[A-Z]{3,4}$`)

// String returns the code as a string.
func (c Code) String() string {
	return string(c)
}

// Valid reports whether the code has the shape of a currency code.
func (c Code) Valid() bool {
	return codePattern.MatchString(string(c))
}

// Normalize resolves pure synonyms. RMB is always CNY.
func Normalize(c Code) Code {
	if c == RMB {
		return CNY
	}
	return c
}

// Parse upper-cases, trims and normalizes s.
func Parse(s string) (Code, error) {
	c := Code(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, s)
	}
	return Normalize(c), nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Code {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Fallback returns the code to try when c is not present in a graph.
// Only CNY has a fallback (CNH).
func Fallback(c Code) (Code, bool) {
	if c == CNY {
		return CNH, true
	}
	return "", false
}
