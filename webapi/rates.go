package webapi

import (
	"fmt"
	"math"
	"time"

	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/amirasaad/fxrate/pkg/exchange/graph"
	"github.com/amirasaad/fxrate/pkg/exchange/service"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// SourceCurrencies is the body of GET /:source.
type SourceCurrencies struct {
	Source     string          `json:"source"`
	Currencies []currency.Code `json:"currencies"`
}

// RatesFrom is the body of GET /:source/:from.
type RatesFrom struct {
	Source string                                `json:"source"`
	From   currency.Code                         `json:"from"`
	Rates  map[currency.Code]service.RateDetail `json:"rates"`
}

// PairDetail is the body of GET /:source/:from/:to.
type PairDetail struct {
	Source string        `json:"source"`
	From   currency.Code `json:"from"`
	To     currency.Code `json:"to"`
	service.RateDetail
}

// Conversion is the body of GET /:source/:from/:to/:kind/:amount?.
type Conversion struct {
	Source  string          `json:"source"`
	From    currency.Code   `json:"from"`
	To      currency.Code   `json:"to"`
	Kind    core.Kind       `json:"kind"`
	Amount  decimal.Decimal `json:"amount"`
	FeesPct decimal.Decimal `json:"fees"`
	Reverse bool            `json:"reverse"`
	Result  decimal.Decimal `json:"result"`
	Updated time.Time       `json:"updated"`
}

// Routes registers the rate endpoints. They come last because :source
// matches any first path segment.
func Routes(app *fiber.App, mgr *service.Manager) {
	app.Get("/:source", ListCurrencies(mgr))
	app.Get("/:source/:from", ListRatesFrom(mgr))
	app.Get("/:source/:from/:to", GetRateDetail(mgr))
	app.Get("/:source/:from/:to/:kind/:amount?", ConvertAmount(mgr))
}

// ListCurrencies returns a Fiber handler listing the currencies of a source.
func ListCurrencies(mgr *service.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("source")
		codes, err := mgr.ListCurrencies(c.UserContext(), name)
		if err != nil {
			return ProblemDetailsJSON(c, "Failed to list currencies", err)
		}
		setCacheControl(c, mgr, name)
		return SuccessResponseJSON(c, fiber.StatusOK, "Currencies fetched successfully",
			SourceCurrencies{Source: name, Currencies: codes})
	}
}

// ListRatesFrom returns a Fiber handler answering every rate from one
// currency. Pair sources answer 403.
func ListRatesFrom(mgr *service.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("source")
		from, _, err := pairParams(c)
		if err != nil {
			return ProblemDetailsJSON(c, "Invalid currency", err)
		}
		opts, err := convertOptions(c)
		if err != nil {
			return ProblemDetailsJSON(c, "Invalid query parameters", err)
		}
		rates, err := mgr.ListRatesFrom(c.UserContext(), name, from, opts)
		if err != nil {
			return ProblemDetailsJSON(c, "Failed to list rates", err)
		}
		setCacheControl(c, mgr, name)
		return SuccessResponseJSON(c, fiber.StatusOK, "Rates fetched successfully",
			RatesFrom{Source: name, From: from, Rates: rates})
	}
}

// GetRateDetail returns a Fiber handler answering one pair with every
// rate kind. The Date header carries the rate's update time.
func GetRateDetail(mgr *service.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("source")
		from, to, err := pairParams(c)
		if err != nil {
			return ProblemDetailsJSON(c, "Invalid currency", err)
		}
		opts, err := convertOptions(c)
		if err != nil {
			return ProblemDetailsJSON(c, "Invalid query parameters", err)
		}
		d, err := mgr.GetRateDetail(c.UserContext(), name, from, to, opts)
		if err != nil {
			return ProblemDetailsJSON(c, "Failed to get rate", err)
		}
		if d.Provided {
			c.Set(fiber.HeaderDate, httpDate(d.Updated))
		}
		setCacheControl(c, mgr, name)
		return SuccessResponseJSON(c, fiber.StatusOK, "Rate fetched successfully",
			PairDetail{Source: name, From: from, To: to, RateDetail: d})
	}
}

// ConvertAmount returns a Fiber handler converting an amount with one
// rate kind.
func ConvertAmount(mgr *service.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("source")
		from, to, err := pairParams(c)
		if err != nil {
			return ProblemDetailsJSON(c, "Invalid currency", err)
		}
		kind, err := core.ParseKind(c.Params("kind"))
		if err != nil {
			return ProblemDetailsJSON(c, "Invalid rate kind", err)
		}
		opts, err := convertOptions(c)
		if err != nil {
			return ProblemDetailsJSON(c, "Invalid amount", err)
		}

		ctx := c.UserContext()
		result, err := mgr.ConvertAmount(ctx, name, from, to, kind, opts)
		if err != nil {
			return ProblemDetailsJSON(c, "Failed to convert amount", err)
		}
		updated, err := mgr.GetLastUpdated(ctx, name, from, to)
		if err != nil {
			return ProblemDetailsJSON(c, "Failed to convert amount", err)
		}
		if updated.After(graph.Epoch) {
			c.Set(fiber.HeaderDate, httpDate(updated))
		}
		setCacheControl(c, mgr, name)
		return SuccessResponseJSON(c, fiber.StatusOK, "Amount converted successfully", Conversion{
			Source:  name,
			From:    from,
			To:      to,
			Kind:    kind,
			Amount:  opts.Amount,
			FeesPct: opts.FeesPct,
			Reverse: opts.Reverse,
			Result:  result,
			Updated: updated,
		})
	}
}

// setCacheControl lets clients cache an answer until the source's next
// scheduled refresh.
func setCacheControl(c *fiber.Ctx, mgr *service.Manager, name string) {
	left, ok := mgr.NextRefreshIn(name)
	if !ok {
		c.Set(fiber.HeaderCacheControl, "no-store")
		return
	}
	c.Set(fiber.HeaderCacheControl, fmt.Sprintf("public, max-age=%d", int64(math.Ceil(left.Seconds()))))
}
