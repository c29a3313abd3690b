// Package provider holds the upstream rate adapters. Each one turns an
// upstream payload into core quotes and nothing more.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/shopspring/decimal"
)

// maxErrorBody caps how much of an upstream error body ends up in an error.
const maxErrorBody = 512

// HTTPOptions are shared by every HTTP adapter.
type HTTPOptions struct {
	Client    *http.Client
	Timeout   time.Duration
	UserAgent string
	// OnSkip is told about every upstream record an adapter drops.
	OnSkip func(provider, reason string)
}

func (o HTTPOptions) skipper(provider string) func(reason string) {
	if o.OnSkip == nil {
		return func(string) {}
	}
	return func(reason string) { o.OnSkip(provider, reason) }
}

func (o HTTPOptions) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func getJSON(
	ctx context.Context,
	client *http.Client,
	url string,
	headers map[string]string,
	out any,
) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// rateField accepts a rate sent as a JSON number or string. Empty strings,
// null and placeholders such as "--" decode as absent.
type rateField struct {
	decimal.NullDecimal
}

func (r *rateField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		r.NullDecimal = decimal.NullDecimal{}
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" || strings.Trim(s, "-") == "" {
		r.NullDecimal = decimal.NullDecimal{}
		return nil
	}
	v, err := core.RateFromString(s)
	if err != nil {
		return fmt.Errorf("invalid rate %s: %w", b, err)
	}
	r.NullDecimal = v
	return nil
}
