// Package price fetches the Bitcoin quote backing the !btc command from the
// CoinMarketCap API. The lookup is stateless: no caching, no retries.
package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// bitcoinID is CoinMarketCap's fixed id for BTC.
const bitcoinID = "1"

// Client calls the CoinMarketCap quotes endpoint. BaseURL is overridable for tests.
type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return "https://pro-api.coinmarketcap.com"
}

// BTCQuote returns the current BTC price in TRY.
func (c *Client) BTCQuote(ctx context.Context) (float64, error) {
	if c.APIKey == "" {
		return 0, errors.New("missing CoinMarketCap API key")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+"/v1/cryptocurrency/quotes/latest", nil)
	if err != nil {
		return 0, err
	}
	q := req.URL.Query()
	q.Set("id", bitcoinID)
	q.Set("convert", "TRY")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("X-CMC_PRO_API_KEY", c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http().Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("coinmarketcap quote failed: %s: %s", resp.Status, string(b))
	}

	var body struct {
		Data map[string]struct {
			Quote map[string]struct {
				Price float64 `json:"price"`
			} `json:"quote"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	entry, ok := body.Data[bitcoinID]
	if !ok {
		return 0, errors.New("quote response missing BTC entry")
	}
	quote, ok := entry.Quote["TRY"]
	if !ok {
		return 0, errors.New("quote response missing TRY conversion")
	}
	return quote.Price, nil
}

var turkishPrinter = message.NewPrinter(language.Turkish)

// FormatTRY renders a price the way Turkish viewers expect it,
// e.g. ₺2.845.123,57 (dot grouping, comma decimals).
func FormatTRY(v float64) string {
	return turkishPrinter.Sprintf("₺%v", number.Decimal(v,
		number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}
