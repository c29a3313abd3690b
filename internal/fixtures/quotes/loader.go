package quotes

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/shopspring/decimal"
)

//go:embed quotes.csv
var quotesCSV string

const columns = 9

// Load reads fixture quotes from a CSV file or, when path is empty, from
// the embedded fixture.
func Load(path string) ([]core.Quote, error) {
	var r io.Reader

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		r = f
	} else {
		r = strings.NewReader(quotesCSV)
	}

	return parse(r)
}

func parse(r io.Reader) ([]core.Quote, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	if len(records[0]) < columns {
		return nil, fmt.Errorf("invalid CSV format: expected at least %d columns, got %d", columns, len(records[0]))
	}

	out := make([]core.Quote, 0, len(records)-1)
	for i, rec := range records[1:] {
		q, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, q)
	}
	return out, nil
}

func parseRecord(rec []string) (core.Quote, error) {
	from, err := currency.Parse(rec[0])
	if err != nil {
		return core.Quote{}, err
	}
	to, err := currency.Parse(rec[1])
	if err != nil {
		return core.Quote{}, err
	}
	unit, err := decimal.NewFromString(strings.TrimSpace(rec[2]))
	if err != nil {
		return core.Quote{}, fmt.Errorf("unit: %w", err)
	}
	updated, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[8]))
	if err != nil {
		return core.Quote{}, fmt.Errorf("updated_at: %w", err)
	}

	var rates [5]decimal.NullDecimal
	for i := range rates {
		if rates[i], err = core.RateFromString(rec[3+i]); err != nil {
			return core.Quote{}, fmt.Errorf("column %d: %w", 4+i, err)
		}
	}

	q := core.Quote{From: from, To: to, Unit: unit, Middle: rates[4], UpdatedAt: updated}
	if rates[0].Valid || rates[1].Valid {
		q.Buy = &core.Side{Cash: rates[0], Remit: rates[1]}
	}
	if rates[2].Valid || rates[3].Valid {
		q.Sell = &core.Side{Cash: rates[2], Remit: rates[3]}
	}
	return q, nil
}
