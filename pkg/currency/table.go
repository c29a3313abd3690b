package currency

import (
	"fmt"
	"sort"
	"strings"
)

// Table maps the raw currency names an upstream uses to currency codes.
// Adapters use it to drop records they cannot map instead of letting them
// reach ingestion.
type Table struct {
	entries map[string]Code
}

// NewTable builds a table from raw name → code pairs. Codes are normalized.
func NewTable(entries map[string]Code) *Table {
	t := &Table{entries: make(map[string]Code, len(entries))}
	for raw, code := range entries {
		t.entries[key(raw)] = Normalize(code)
	}
	return t
}

// Lookup maps a raw name to a code. When the raw value is not an explicit
// entry but already is a well-formed code that the table knows as a target,
// it is accepted as-is.
func (t *Table) Lookup(raw string) (Code, error) {
	if t == nil {
		return Parse(raw)
	}
	if c, ok := t.entries[key(raw)]; ok {
		return c, nil
	}
	c, err := Parse(raw)
	if err == nil && t.hasTarget(c) {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknown, raw)
}

// Codes returns the distinct target codes, sorted.
func (t *Table) Codes() []Code {
	seen := make(map[Code]struct{}, len(t.entries))
	out := make([]Code, 0, len(t.entries))
	for _, c := range t.entries {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	Sort(out)
	return out
}

func (t *Table) hasTarget(c Code) bool {
	for _, v := range t.entries {
		if v == c {
			return true
		}
	}
	return false
}

// IdentityTable builds a table where every code maps to itself.
func IdentityTable(codes ...Code) *Table {
	entries := make(map[string]Code, len(codes))
	for _, c := range codes {
		entries[string(c)] = c
	}
	return NewTable(entries)
}

// Sort orders codes lexicographically in place.
func Sort(codes []Code) {
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
}

func key(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
