package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/amirasaad/fxrate/pkg/exchange/source"
	"github.com/shopspring/decimal"
)

// ICBCName is the registration name of the ICBC source.
const ICBCName = "icbc"

// icbcZone is the offset ICBC publishes its timestamps in.
var icbcZone = time.FixedZone("UTC+8", 8*60*60)

// icbcUnit is the amount of foreign currency every ICBC rate is quoted for.
var icbcUnit = decimal.NewFromInt(100)

type icbcResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    []icbcEntry `json:"data"`
}

type icbcEntry struct {
	CurrencyENName string    `json:"currencyENName"`
	ForeignBuy     rateField `json:"foreignBuy"`
	CashBuy        rateField `json:"cashBuy"`
	ForeignSell    rateField `json:"foreignSell"`
	CashSell       rateField `json:"cashSell"`
	Reference      rateField `json:"reference"`
	PublishDate    string    `json:"publishDate"`
	PublishTime    string    `json:"publishTime"`
}

// ICBC fetches the latest ICBC board rates. Every record quotes 100 units
// of a foreign currency in CNY.
type ICBC struct {
	url       string
	userAgent string
	client    *http.Client
	codes     *currency.Table
	skip      func(reason string)
	logger    *slog.Logger
}

// NewICBC creates an ICBC adapter. A nil table accepts any well-formed code.
func NewICBC(url string, codes *currency.Table, opts HTTPOptions, logger *slog.Logger) *ICBC {
	if logger == nil {
		logger = slog.Default()
	}
	return &ICBC{
		url:       url,
		userAgent: opts.UserAgent,
		client:    opts.client(),
		codes:     codes,
		skip:      opts.skipper(ICBCName),
		logger:    logger.With("component", "provider", "provider", ICBCName),
	}
}

// Fetch implements source.Fetcher.
func (p *ICBC) Fetch(ctx context.Context) ([]core.Quote, error) {
	var resp icbcResponse
	headers := map[string]string{}
	if p.userAgent != "" {
		headers["User-Agent"] = p.userAgent
	}
	if err := getJSON(ctx, p.client, p.url, headers, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("ICBC returned code %d: %s", resp.Code, resp.Message)
	}

	quotes := make([]core.Quote, 0, len(resp.Data))
	for _, e := range resp.Data {
		from, err := p.codes.Lookup(e.CurrencyENName)
		if err != nil {
			p.logger.Warn("Skipping record with unknown currency", "currency", e.CurrencyENName, "error", err)
			p.skip("unknown_currency")
			continue
		}
		updated, err := time.ParseInLocation("2006-01-02 15:04:05", e.PublishDate+" "+e.PublishTime, icbcZone)
		if err != nil {
			p.logger.Warn("Skipping record with bad publish time",
				"currency", from,
				"date", e.PublishDate,
				"time", e.PublishTime,
				"error", err,
			)
			p.skip("bad_timestamp")
			continue
		}
		quotes = append(quotes, core.Quote{
			From: from,
			To:   currency.CNY,
			Unit: icbcUnit,
			Buy: &core.Side{
				Remit: e.ForeignBuy.NullDecimal,
				Cash:  e.CashBuy.NullDecimal,
			},
			Sell: &core.Side{
				Remit: e.ForeignSell.NullDecimal,
				Cash:  e.CashSell.NullDecimal,
			},
			Middle:    e.Reference.NullDecimal,
			UpdatedAt: updated,
		})
	}
	p.logger.Debug("Fetched ICBC rates", "records", len(resp.Data), "quotes", len(quotes))
	return quotes, nil
}

var _ source.Fetcher = (*ICBC)(nil)
