package webapi

import (
	"fmt"
	"strconv"

	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/amirasaad/fxrate/pkg/exchange/service"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// ConvertQuery holds the optional query parameters shared by the rate
// endpoints.
type ConvertQuery struct {
	Amount    string `query:"amount" validate:"omitempty,numeric"`
	Fees      string `query:"fees" validate:"omitempty,numeric"`
	Precision string `query:"precision" validate:"omitempty,numeric"`
	Reverse   string `query:"reverse" validate:"omitempty,boolean"`
}

// PairParams are the path parameters naming a currency pair.
type PairParams struct {
	From string `params:"from" validate:"required,alpha,min=3,max=4"`
	To   string `params:"to" validate:"omitempty,alpha,min=3,max=4"`
}

// convertOptions parses the query string on top of the defaults. A path
// amount, when present, wins over the amount query parameter.
func convertOptions(c *fiber.Ctx) (service.ConvertOptions, error) {
	opts := service.DefaultConvertOptions()

	var q ConvertQuery
	if err := c.QueryParser(&q); err != nil {
		return opts, fmt.Errorf("%w: %v", core.ErrInvalidAmount, err)
	}
	if amount := c.Params("amount"); amount != "" {
		q.Amount = amount
	}
	if err := validate.Struct(q); err != nil {
		return opts, fmt.Errorf("%w: %v", core.ErrInvalidAmount, err)
	}

	if q.Amount != "" {
		d, err := decimal.NewFromString(q.Amount)
		if err != nil {
			return opts, fmt.Errorf("%w: amount: %v", core.ErrInvalidAmount, err)
		}
		opts.Amount = d
	}
	if q.Fees != "" {
		d, err := decimal.NewFromString(q.Fees)
		if err != nil {
			return opts, fmt.Errorf("%w: fees: %v", core.ErrInvalidAmount, err)
		}
		opts.FeesPct = d
	}
	if q.Precision != "" {
		p, err := strconv.ParseInt(q.Precision, 10, 32)
		if err != nil {
			return opts, fmt.Errorf("%w: precision: %v", core.ErrInvalidAmount, err)
		}
		opts.Precision = int32(p)
	}
	switch {
	case q.Reverse != "":
		opts.Reverse, _ = strconv.ParseBool(q.Reverse)
	case c.Context().QueryArgs().Has("reverse"):
		// A bare ?reverse asks for the reverse direction.
		opts.Reverse = true
	}
	return opts, nil
}

// pairParams validates and parses :from and, when routed, :to.
func pairParams(c *fiber.Ctx) (from, to currency.Code, err error) {
	var p PairParams
	if err = c.ParamsParser(&p); err != nil {
		return "", "", fmt.Errorf("%w: %v", currency.ErrInvalidCode, err)
	}
	if err = validate.Struct(p); err != nil {
		return "", "", fmt.Errorf("%w: %v", currency.ErrInvalidCode, err)
	}
	if from, err = currency.Parse(p.From); err != nil {
		return "", "", err
	}
	if p.To == "" {
		return from, "", nil
	}
	if to, err = currency.Parse(p.To); err != nil {
		return "", "", err
	}
	return from, to, nil
}
