// Package provider fetches historical candles and real-time quotes from
// external market data APIs.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"rsi-tracker/internal/model"
)

// Provider is a single market data source.
type Provider interface {
	// Name identifies the provider in logs and diagnostics.
	Name() string

	// Historical fetches up to limit candles for the symbol at the given
	// timeframe, oldest first.
	Historical(ctx context.Context, symbol, timeframe string, limit int) (model.Series, error)

	// Quote fetches the current market quote for the symbol.
	Quote(ctx context.Context, symbol string) (model.Quote, error)
}

// Yahoo rejects requests with Go's default user agent.
const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const maxResponseBytes = 10 << 20

// getJSON performs a GET and decodes the JSON body into v. The body is
// decoded regardless of HTTP status because the APIs put their error
// details in the body; on an undecodable body the status is surfaced.
func getJSON(ctx context.Context, client *http.Client, rawURL string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("status %d: decode: %w", resp.StatusCode, err)
	}
	return nil
}
