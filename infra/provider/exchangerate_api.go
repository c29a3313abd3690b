package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/amirasaad/fxrate/pkg/exchange/source"
	"github.com/shopspring/decimal"
)

// ExchangeRateAPIName is the registration name of the exchangerate-api source.
const ExchangeRateAPIName = "exchangerate"

// exchangeRateAPIResponse covers both the keyless v4 endpoint and the v6
// endpoint used with an API key.
// See: https://www.exchangerate-api.com/docs/standard-requests
type exchangeRateAPIResponse struct {
	// v4
	Base            string               `json:"base"`
	TimeLastUpdated int64                `json:"time_last_updated"`
	Rates           map[string]rateField `json:"rates"`

	// v6
	Result             string               `json:"result"`
	TimeLastUpdateUnix int64                `json:"time_last_update_unix"`
	BaseCode           string               `json:"base_code"`
	ConversionRates    map[string]rateField `json:"conversion_rates"`
	ErrorType          string               `json:"error-type,omitempty"`
}

// ExchangeRateAPI fetches every rate against one base currency from
// exchangerate-api.com. Only middle rates are published.
type ExchangeRateAPI struct {
	apiKey  string
	baseURL string
	base    currency.Code
	client  *http.Client
	skip    func(reason string)
	logger  *slog.Logger
}

// NewExchangeRateAPI creates the adapter. With an API key the v6 layout
// {url}/{key}/latest/{base} is used, otherwise {url}/{base}.
func NewExchangeRateAPI(
	baseURL, apiKey string,
	base currency.Code,
	opts HTTPOptions,
	logger *slog.Logger,
) *ExchangeRateAPI {
	if logger == nil {
		logger = slog.Default()
	}
	if base == "" {
		base = currency.USD
	}
	return &ExchangeRateAPI{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		base:    currency.Normalize(base),
		client:  opts.client(),
		skip:    opts.skipper(ExchangeRateAPIName),
		logger:  logger.With("component", "provider", "provider", ExchangeRateAPIName),
	}
}

func (p *ExchangeRateAPI) url() string {
	if p.apiKey != "" {
		return fmt.Sprintf("%s/%s/latest/%s", p.baseURL, p.apiKey, p.base)
	}
	return fmt.Sprintf("%s/%s", p.baseURL, p.base)
}

// Fetch implements source.Fetcher.
func (p *ExchangeRateAPI) Fetch(ctx context.Context) ([]core.Quote, error) {
	var resp exchangeRateAPIResponse
	if err := getJSON(ctx, p.client, p.url(), nil, &resp); err != nil {
		return nil, err
	}

	rates, updatedUnix := resp.Rates, resp.TimeLastUpdated
	if resp.Result != "" {
		if resp.Result != "success" {
			return nil, fmt.Errorf("API returned result=%s error=%s", resp.Result, resp.ErrorType)
		}
		rates, updatedUnix = resp.ConversionRates, resp.TimeLastUpdateUnix
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("API returned no rates for %s", p.base)
	}

	updated := time.Unix(updatedUnix, 0).UTC()
	if updatedUnix == 0 {
		updated = time.Now().UTC()
	}

	// upstream maps are unordered; sort so graph edge order is stable
	raws := make([]string, 0, len(rates))
	for raw := range rates {
		raws = append(raws, raw)
	}
	sort.Strings(raws)

	quotes := make([]core.Quote, 0, len(rates))
	for _, raw := range raws {
		rate := rates[raw]
		to, err := currency.Parse(raw)
		if err != nil {
			p.logger.Warn("Skipping rate with unknown currency", "currency", raw, "error", err)
			p.skip("unknown_currency")
			continue
		}
		if to == p.base {
			continue
		}
		quotes = append(quotes, core.Quote{
			From:      p.base,
			To:        to,
			Unit:      decimal.NewFromInt(1),
			Middle:    rate.NullDecimal,
			UpdatedAt: updated,
		})
	}
	p.logger.Debug("Fetched exchangerate-api rates", "base", p.base, "quotes", len(quotes))
	return quotes, nil
}

var _ source.Fetcher = (*ExchangeRateAPI)(nil)
