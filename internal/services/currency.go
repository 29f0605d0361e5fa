package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CurrencyRates fetches the daily exchange-rate document.
type CurrencyRates struct {
	url        string
	httpClient *http.Client
}

func NewCurrencyRates(url string) *CurrencyRates {
	return &CurrencyRates{
		url:        url,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Fetch returns the provider document unchanged.
func (c *CurrencyRates) Fetch(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("currency rates returned status %d", resp.StatusCode)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("currency rates returned invalid JSON")
	}
	return body, nil
}
