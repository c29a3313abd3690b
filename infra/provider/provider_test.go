package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/amirasaad/fxrate/pkg/exchange/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type skipCounter struct {
	mu      sync.Mutex
	reasons []string
}

func (s *skipCounter) onSkip(provider, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reasons = append(s.reasons, provider+":"+reason)
}

func serveJSON(t *testing.T, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const icbcBody = `{
  "code": 0,
  "message": "success",
  "data": [
    {"currencyENName": "USD", "foreignBuy": "700.00", "cashBuy": "695.00",
     "foreignSell": "715.00", "cashSell": "718.00", "reference": "707.50",
     "publishDate": "2025-03-01", "publishTime": "16:00:00"},
    {"currencyENName": "JPY", "foreignBuy": "--", "cashBuy": "",
     "foreignSell": null, "cashSell": "", "reference": 4.85,
     "publishDate": "2025-03-01", "publishTime": "16:00:00"},
    {"currencyENName": "Bitcoin", "foreignBuy": "1", "cashBuy": "1",
     "foreignSell": "1", "cashSell": "1", "reference": "1",
     "publishDate": "2025-03-01", "publishTime": "16:00:00"}
  ]
}`

func TestICBC_Fetch(t *testing.T) {
	var gotUA string
	srv := serveJSON(t, icbcBody, func(r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	})
	skips := &skipCounter{}
	table := currency.IdentityTable(currency.USD, currency.JPY, currency.EUR)

	p := NewICBC(srv.URL, table, HTTPOptions{UserAgent: "fxrate-test", OnSkip: skips.onSkip}, quietLogger())
	qs, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "fxrate-test", gotUA)
	assert.Equal(t, []string{"icbc:unknown_currency"}, skips.reasons)

	usd := qs[0]
	assert.Equal(t, currency.USD, usd.From)
	assert.Equal(t, currency.CNY, usd.To)
	assert.Equal(t, "100", usd.Unit.String())
	assert.True(t, usd.UpdatedAt.Equal(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)))

	jpy := qs[1]
	assert.False(t, jpy.Buy.Remit.Valid, "placeholder decodes as absent")
	assert.False(t, jpy.Buy.Cash.Valid)
	assert.False(t, jpy.Sell.Remit.Valid)
	assert.Equal(t, "4.85", jpy.Middle.Decimal.String())

	g := graph.New()
	report := graph.IngestBatch(g, qs, quietLogger())
	assert.Equal(t, 2, report.Applied)

	e, ok := g.Edge(currency.USD, currency.CNY)
	require.True(t, ok)
	assert.Zero(t, e.Remit.Cmp(big.NewRat(7, 1)))
	assert.Zero(t, e.Cash.Cmp(big.NewRat(139, 20)))

	e, ok = g.Edge(currency.JPY, currency.CNY)
	require.True(t, ok)
	assert.Zero(t, e.Cash.Cmp(big.NewRat(485, 10000)), "cash synthesized from middle")
}

func TestICBC_PartialBatch(t *testing.T) {
	known := []string{"USD", "EUR", "GBP", "JPY", "HKD", "AUD", "CAD"}
	var rows []string
	for i := 0; i < 50; i++ {
		name := known[i%len(known)]
		if i == 25 {
			name = "XXX1"
		}
		rows = append(rows, fmt.Sprintf(
			`{"currencyENName": %q, "reference": "%d.00", "publishDate": "2025-03-01", "publishTime": "16:%02d:00"}`,
			name, 100+i, i,
		))
	}
	srv := serveJSON(t, `{"code":0,"data":[`+strings.Join(rows, ",")+`]}`, nil)

	table := currency.IdentityTable("USD", "EUR", "GBP", "JPY", "HKD", "AUD", "CAD")
	skips := &skipCounter{}
	p := NewICBC(srv.URL, table, HTTPOptions{OnSkip: skips.onSkip}, quietLogger())

	qs, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, qs, 49)
	assert.Len(t, skips.reasons, 1)

	g := graph.New()
	report := graph.IngestBatch(g, qs, quietLogger())
	assert.Equal(t, 49, report.Applied)
}

func TestICBC_Errors(t *testing.T) {
	t.Run("non-zero code", func(t *testing.T) {
		srv := serveJSON(t, `{"code": 500, "message": "busy"}`, nil)
		_, err := NewICBC(srv.URL, nil, HTTPOptions{}, quietLogger()).Fetch(context.Background())
		require.ErrorContains(t, err, "ICBC returned code 500")
	})

	t.Run("http status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "maintenance", http.StatusBadGateway)
		}))
		defer srv.Close()
		_, err := NewICBC(srv.URL, nil, HTTPOptions{}, quietLogger()).Fetch(context.Background())
		require.ErrorContains(t, err, "API returned status 502")
	})

	t.Run("bad json", func(t *testing.T) {
		srv := serveJSON(t, `<html>`, nil)
		_, err := NewICBC(srv.URL, nil, HTTPOptions{}, quietLogger()).Fetch(context.Background())
		require.ErrorContains(t, err, "failed to decode response")
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := NewICBC(srv.URL, nil, HTTPOptions{}, quietLogger()).Fetch(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestExchangeRateAPI_V4(t *testing.T) {
	var path string
	srv := serveJSON(t, `{
		"base": "USD",
		"date": "2025-03-01",
		"time_last_updated": 1740787200,
		"rates": {"USD": 1, "EUR": 0.92, "JPY": 150.1, "CNY": "7.2", "X1": 3}
	}`, func(r *http.Request) {
		path = r.URL.Path
	})
	skips := &skipCounter{}

	p := NewExchangeRateAPI(srv.URL+"/v4/latest/", "", currency.USD, HTTPOptions{OnSkip: skips.onSkip}, quietLogger())
	qs, err := p.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/v4/latest/USD", path)
	require.Len(t, qs, 3)
	assert.Equal(t, []currency.Code{currency.CNY, currency.EUR, currency.JPY},
		[]currency.Code{qs[0].To, qs[1].To, qs[2].To}, "sorted by code")
	for _, q := range qs {
		assert.Equal(t, currency.USD, q.From)
		assert.Nil(t, q.Buy)
		assert.True(t, q.Middle.Valid)
		assert.Equal(t, time.Unix(1740787200, 0).UTC(), q.UpdatedAt)
	}
	assert.Equal(t, []string{"exchangerate:unknown_currency"}, skips.reasons)
}

func TestExchangeRateAPI_V6(t *testing.T) {
	var path string
	srv := serveJSON(t, `{
		"result": "success",
		"time_last_update_unix": 1740787200,
		"base_code": "EUR",
		"conversion_rates": {"EUR": 1, "USD": 1.08}
	}`, func(r *http.Request) {
		path = r.URL.Path
	})

	p := NewExchangeRateAPI(srv.URL+"/v6", "secret", currency.EUR, HTTPOptions{}, quietLogger())
	qs, err := p.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/v6/secret/latest/EUR", path)
	require.Len(t, qs, 1)
	assert.Equal(t, currency.EUR, qs[0].From)
	assert.Equal(t, currency.USD, qs[0].To)
	assert.Equal(t, "1.08", qs[0].Middle.Decimal.String())
}

func TestExchangeRateAPI_Errors(t *testing.T) {
	srv := serveJSON(t, `{"result": "error", "error-type": "invalid-key"}`, nil)
	_, err := NewExchangeRateAPI(srv.URL, "bad", "", HTTPOptions{}, quietLogger()).Fetch(context.Background())
	require.ErrorContains(t, err, "invalid-key")

	empty := serveJSON(t, `{"base": "USD", "rates": {}}`, nil)
	_, err = NewExchangeRateAPI(empty.URL, "", "", HTTPOptions{}, quietLogger()).Fetch(context.Background())
	require.ErrorContains(t, err, "no rates")
}

func TestVisa_FetchPair(t *testing.T) {
	var query map[string]string
	srv := serveJSON(t, `{"originalValues": {"fxRateVisa": "0.9215", "lastUpdatedVisaRate": 1740787200}}`,
		func(r *http.Request) {
			query = map[string]string{}
			for k := range r.URL.Query() {
				query[k] = r.URL.Query().Get(k)
			}
			assert.NotEmpty(t, r.Header.Get("Referer"))
		})

	p := NewVisa(srv.URL, []currency.Code{currency.USD, currency.EUR}, HTTPOptions{}, quietLogger())
	p.now = func() time.Time { return time.Date(2025, 3, 1, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*60*60)) }

	q, err := p.FetchPair(context.Background(), currency.USD, currency.EUR)
	require.NoError(t, err)

	assert.Equal(t, "EUR", query["fromCurr"])
	assert.Equal(t, "USD", query["toCurr"])
	assert.Equal(t, "03/02/2025", query["exchangedate"], "dates are UTC")
	assert.Equal(t, "1", query["amount"])
	assert.Equal(t, "0", query["fee"])

	assert.Equal(t, currency.USD, q.From)
	assert.Equal(t, currency.EUR, q.To)
	assert.Equal(t, "0.9215", q.Middle.Decimal.String())
	assert.Equal(t, time.Unix(1740787200, 0).UTC(), q.UpdatedAt)
	assert.Equal(t, []currency.Code{currency.USD, currency.EUR}, p.Currencies())
}

func TestVisa_NoRate(t *testing.T) {
	srv := serveJSON(t, `{"originalValues": {"fxRateVisa": 0, "lastUpdatedVisaRate": 1740787200}}`, nil)
	p := NewVisa(srv.URL, nil, HTTPOptions{}, quietLogger())

	_, err := p.FetchPair(context.Background(), currency.USD, currency.EUR)
	require.ErrorIs(t, err, core.ErrInvalidQuote)
}

func TestStatic(t *testing.T) {
	p, err := NewStaticFromFixture("")
	require.NoError(t, err)

	first, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, first)
	first[0].From = "XXX"

	second, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, currency.USD, second[0].From, "callers get their own copy")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Fetch(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRateField(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
		want  string
	}{
		{in: `"7.15"`, valid: true, want: "7.15"},
		{in: `7.15`, valid: true, want: "7.15"},
		{in: `""`},
		{in: `null`},
		{in: `"--"`},
		{in: `"-"`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var r rateField
			require.NoError(t, r.UnmarshalJSON([]byte(tt.in)))
			assert.Equal(t, tt.valid, r.Valid)
			if tt.valid {
				assert.Equal(t, tt.want, r.Decimal.String())
			}
		})
	}

	var r rateField
	require.Error(t, r.UnmarshalJSON([]byte(`"n/a"`)))
}
