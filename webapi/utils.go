package webapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/gofiber/fiber/v2"
)

// Response defines the standard API response structure for success cases.
type Response struct {
	Status  int    `json:"status"`         // HTTP status code
	Message string `json:"message"`        // Human-readable explanation
	Success bool   `json:"success"`        // Always true
	Error   string `json:"error"`          // Always empty
	Data    any    `json:"data,omitempty"` // Response data
}

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs. Success
// and Error are extension members kept for clients of the plain JSON body.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`     // A URI reference that identifies the problem type
	Title    string `json:"title"`              // Short, human-readable summary
	Status   int    `json:"status"`             // HTTP status code
	Detail   string `json:"detail,omitempty"`   // Human-readable explanation
	Instance string `json:"instance,omitempty"` // URI reference that identifies the specific occurrence
	Errors   any    `json:"errors,omitempty"`   // Optional: additional error details
	Success  bool   `json:"success"`
	Error    string `json:"error"`
}

// SuccessResponseJSON writes data in the standard envelope.
func SuccessResponseJSON(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{
		Status:  status,
		Message: message,
		Success: true,
		Data:    data,
	})
}

// ErrorResponseJSON returns a response following RFC 9457 Problem Details
func ErrorResponseJSON(
	c *fiber.Ctx,
	status int,
	title string,
	detail any,
) error {
	pd := ProblemDetails{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Error:  title,
	}
	if detail != nil {
		if s, ok := detail.(string); ok {
			pd.Detail = s
			pd.Error = s
		} else {
			pd.Errors = detail
		}
	}
	pd.Instance = c.OriginalURL()
	c.Set(fiber.HeaderCacheControl, "no-store")

	// JSON sets the content type, so it goes first.
	err := c.Status(status).JSON(pd)
	c.Set(fiber.HeaderContentType, "application/problem+json")
	return err
}

// ProblemDetailsJSON maps err to its status code and writes it as problem
// details.
func ProblemDetailsJSON(c *fiber.Ctx, title string, err error) error {
	return ErrorResponseJSON(c, ErrorToStatusCode(err), title, err.Error())
}

// ErrorToStatusCode maps domain errors to appropriate HTTP status codes.
func ErrorToStatusCode(err error) int {
	var fe *fiber.Error
	switch {
	case errors.Is(err, core.ErrSourceNotFound),
		errors.Is(err, core.ErrPathNotFound),
		errors.Is(err, core.ErrUnknownCurrency),
		errors.Is(err, core.ErrRateKindUnsupported):
		return fiber.StatusNotFound
	case errors.Is(err, core.ErrCapabilityUnsupported):
		return fiber.StatusForbidden
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, currency.ErrInvalidCode):
		return fiber.StatusBadRequest
	case errors.Is(err, core.ErrSourceFetchFailed):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &fe):
		return fe.Code
	default:
		return fiber.StatusInternalServerError
	}
}

// httpDate formats t for the Date header.
func httpDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}
