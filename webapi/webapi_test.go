package webapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirasaad/fxrate/infra/metrics"
	"github.com/amirasaad/fxrate/infra/provider"
	"github.com/amirasaad/fxrate/pkg/app"
	"github.com/amirasaad/fxrate/pkg/config"
	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/amirasaad/fxrate/pkg/exchange/graph"
	"github.com/amirasaad/fxrate/pkg/exchange/service"
	"github.com/amirasaad/fxrate/pkg/exchange/source"
	"github.com/amirasaad/fxrate/webapi"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type pairFetcher struct{}

func (pairFetcher) FetchPair(_ context.Context, from, to currency.Code) (core.Quote, error) {
	return core.Quote{
		From:      from,
		To:        to,
		Unit:      decimal.NewFromInt(1),
		Middle:    core.Rate(decimal.RequireFromString("0.92")),
		UpdatedAt: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (pairFetcher) Currencies() []currency.Code {
	return []currency.Code{currency.USD, currency.EUR}
}

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Title   string          `json:"title"`
	Data    json.RawMessage `json:"data"`
}

type WebAPITestSuite struct {
	suite.Suite
	app *fiber.App
}

func TestWebAPITestSuite(t *testing.T) {
	suite.Run(t, new(WebAPITestSuite))
}

func (s *WebAPITestSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := prometheus.NewRegistry()
	mgr := service.New(logger, service.WithSourceDefaults(
		source.WithRecorder(metrics.NewSourceMetrics(registry)),
		source.WithColdStartTimeout(time.Second),
	))

	fixture, err := provider.NewStaticFromFixture("")
	s.Require().NoError(err)
	_, err = mgr.RegisterStatic(context.Background(), "fixture", fixture)
	s.Require().NoError(err)

	_, err = mgr.Register("hourly", fixture, source.WithInterval(time.Hour))
	s.Require().NoError(err)

	_, err = mgr.Register("broken", source.FetcherFunc(func(context.Context) ([]core.Quote, error) {
		return nil, errors.New("upstream down")
	}))
	s.Require().NoError(err)

	_, err = mgr.RegisterPair("visa", pairFetcher{})
	s.Require().NoError(err)

	cfg := &config.App{
		Env:       "test",
		Version:   "1.2.3",
		RateLimit: &config.RateLimit{MaxRequests: 1000, Window: time.Minute},
	}
	s.app = webapi.SetupApp(app.New(&app.Deps{
		Logger:   logger,
		Manager:  mgr,
		Gatherer: registry,
	}, cfg))
}

func (s *WebAPITestSuite) get(path string) (*http.Response, envelope) {
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = resp.Body.Close() })

	var body envelope
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	_ = json.Unmarshal(raw, &body)
	return resp, body
}

func (s *WebAPITestSuite) TestRootAndInfo() {
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	s.Require().NoError(err)
	defer resp.Body.Close() //nolint: errcheck
	raw, _ := io.ReadAll(resp.Body)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.Contains(string(raw), "/info")

	resp, body := s.get("/info")
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.True(body.Success)
	var info struct {
		Version string               `json:"version"`
		Sources []service.SourceInfo `json:"sources"`
	}
	s.Require().NoError(json.Unmarshal(body.Data, &info))
	s.Equal("1.2.3", info.Version)
	s.Len(info.Sources, 4)
	s.Equal("fixture", info.Sources[0].Name)
	s.Equal(core.StatusReady, info.Sources[0].Status)
	s.Equal(core.StatusPending, info.Sources[1].Status)
}

func (s *WebAPITestSuite) TestListCurrencies() {
	resp, body := s.get("/fixture")
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.Equal("no-store", resp.Header.Get(fiber.HeaderCacheControl))

	var data webapi.SourceCurrencies
	s.Require().NoError(json.Unmarshal(body.Data, &data))
	s.Equal("fixture", data.Source)
	s.Contains(data.Currencies, currency.USD)
	s.Contains(data.Currencies, currency.CNY)
	s.IsIncreasing(data.Currencies)

	resp, body = s.get("/visa")
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.Require().NoError(json.Unmarshal(body.Data, &data))
	s.Equal([]currency.Code{currency.EUR, currency.USD}, data.Currencies)
}

func (s *WebAPITestSuite) TestUnknownSource() {
	resp, body := s.get("/nowhere")
	s.Equal(fiber.StatusNotFound, resp.StatusCode)
	s.Equal("application/problem+json", resp.Header.Get(fiber.HeaderContentType))
	s.False(body.Success)
	s.Contains(body.Error, "nowhere")
}

func (s *WebAPITestSuite) TestColdStartCacheControl() {
	resp, _ := s.get("/hourly/USD/CNY")
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.Equal("public, max-age=3600", resp.Header.Get(fiber.HeaderCacheControl))
}

func (s *WebAPITestSuite) TestFetchFailure() {
	resp, body := s.get("/broken/USD/CNY")
	s.Equal(fiber.StatusServiceUnavailable, resp.StatusCode)
	s.False(body.Success)
	s.Equal("no-store", resp.Header.Get(fiber.HeaderCacheControl))
}

func (s *WebAPITestSuite) TestListRatesFrom() {
	resp, body := s.get("/fixture/USD")
	s.Equal(fiber.StatusOK, resp.StatusCode)

	var data webapi.RatesFrom
	s.Require().NoError(json.Unmarshal(body.Data, &data))
	s.Equal(currency.USD, data.From)
	cny, ok := data.Rates[currency.CNY]
	s.Require().True(ok)
	s.True(cny.Provided)
	s.Equal("707.5", cny.Middle.String())

	resp, _ = s.get("/visa/USD")
	s.Equal(fiber.StatusForbidden, resp.StatusCode)

	resp, _ = s.get("/fixture/XAU")
	s.Equal(fiber.StatusNotFound, resp.StatusCode)

	resp, _ = s.get("/fixture/U1")
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
}

func (s *WebAPITestSuite) TestGetRateDetail() {
	resp, body := s.get("/fixture/usd/CNY")
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.Equal("Sat, 01 Mar 2025 08:00:00 GMT", resp.Header.Get(fiber.HeaderDate))

	var data webapi.PairDetail
	s.Require().NoError(json.Unmarshal(body.Data, &data))
	s.Equal(currency.USD, data.From)
	s.True(data.Provided)
	s.Equal("695", data.Cash.String())
	s.Equal("700", data.Remit.String())
	s.Equal("707.5", data.Middle.String())

	_, body = s.get("/fixture/CHF/CNY")
	s.Require().NoError(json.Unmarshal(body.Data, &data))
	s.Nil(data.Cash)
	s.Equal("790.2", data.Remit.String())

	resp, body = s.get("/fixture/USD/XAU")
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.Require().NoError(json.Unmarshal(body.Data, &data))
	s.False(data.Provided)
	s.True(data.Middle.IsZero())

	resp, _ = s.get("/fixture/USD/CNY?amount=-5")
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = s.get("/fixture/USD/CNY?precision=1.5")
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
}

func (s *WebAPITestSuite) TestConvertAmount() {
	resp, body := s.get("/fixture/USD/CNY/cash/10?fees=1")
	s.Equal(fiber.StatusOK, resp.StatusCode)
	var data webapi.Conversion
	s.Require().NoError(json.Unmarshal(body.Data, &data))
	s.Equal("70.195", data.Result.String())
	s.Equal(core.Cash, data.Kind)

	_, body = s.get("/fixture/CNY/USD/middle/707.5?reverse=false")
	s.Require().NoError(json.Unmarshal(body.Data, &data))
	s.Equal("100", data.Result.String())

	_, body = s.get("/fixture/USD/CNY/middle/100?reverse=true")
	s.Require().NoError(json.Unmarshal(body.Data, &data))
	s.Equal("14.13428", data.Result.String())

	_, body = s.get("/fixture/USD/CNY/middle/100?reverse")
	s.Require().NoError(json.Unmarshal(body.Data, &data))
	s.True(data.Reverse)
	s.Equal("14.13428", data.Result.String(), "bare reverse flag")

	resp, body = s.get("/fixture/USD/USD/middle/5")
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.Require().NoError(json.Unmarshal(body.Data, &data))
	s.Equal("5", data.Result.String())
	date, err := http.ParseTime(resp.Header.Get(fiber.HeaderDate))
	s.Require().NoError(err)
	s.True(date.After(graph.Epoch), "same currency keeps the response time")

	resp, _ = s.get("/fixture/USD/CNY/middle/1?precision=2000000000")
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = s.get("/fixture/USD?precision=33")
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)

	_, body = s.get("/fixture/USD/CNY/remit")
	s.Require().NoError(json.Unmarshal(body.Data, &data))
	s.Equal("700", data.Result.String(), "amount defaults to 100")

	resp, _ = s.get("/fixture/USD/CNY/bogus/1")
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = s.get("/fixture/CHF/CNY/cash/1")
	s.Equal(fiber.StatusNotFound, resp.StatusCode)

	resp, _ = s.get("/fixture/USD/CNY/cash/abc")
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
}

func (s *WebAPITestSuite) TestPairSource() {
	resp, body := s.get("/visa/USD/EUR/middle/50")
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.Equal("no-store", resp.Header.Get(fiber.HeaderCacheControl))
	var data webapi.Conversion
	s.Require().NoError(json.Unmarshal(body.Data, &data))
	s.Equal("46", data.Result.String())

	resp, _ = s.get("/visa/USD/GBP")
	s.Equal(fiber.StatusNotFound, resp.StatusCode)
}

func (s *WebAPITestSuite) TestMetrics() {
	s.get("/hourly/USD/CNY")

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Require().NoError(err)
	defer resp.Body.Close() //nolint: errcheck
	raw, _ := io.ReadAll(resp.Body)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.Contains(string(raw), `fxrate_source_refresh_total{result="success",source="hourly"} 1`)
}

func TestRateLimit(t *testing.T) {
	cfg := &config.App{RateLimit: &config.RateLimit{MaxRequests: 5, Window: time.Second}}
	a := webapi.SetupApp(app.New(&app.Deps{Manager: service.New(nil)}, cfg))

	for i := range [6]int{} {
		resp, err := a.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		want := fiber.StatusOK
		if i == 5 {
			want = fiber.StatusTooManyRequests
		}
		if resp.StatusCode != want {
			t.Fatalf("request %d: expected %d, got %d", i+1, want, resp.StatusCode)
		}
	}
}
