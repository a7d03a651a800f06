package price

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBTCQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/cryptocurrency/quotes/latest" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-CMC_PRO_API_KEY") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("convert") != "TRY" {
			t.Errorf("convert = %q, want TRY", r.URL.Query().Get("convert"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"1":{"quote":{"TRY":{"price":2845123.57}}}}}`))
	}))
	defer srv.Close()

	c := &Client{APIKey: "test-key", BaseURL: srv.URL}
	got, err := c.BTCQuote(context.Background())
	if err != nil {
		t.Fatalf("BTCQuote: %v", err)
	}
	if got != 2845123.57 {
		t.Errorf("BTCQuote = %v, want 2845123.57", got)
	}
}

func TestBTCQuoteMissingKey(t *testing.T) {
	c := &Client{}
	if _, err := c.BTCQuote(context.Background()); err == nil {
		t.Error("BTCQuote without API key should fail")
	}
}

func TestBTCQuoteUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := &Client{APIKey: "k", BaseURL: srv.URL}
	if _, err := c.BTCQuote(context.Background()); err == nil {
		t.Error("non-200 response should surface as error")
	}
}

func TestFormatTRY(t *testing.T) {
	got := FormatTRY(2845123.57)
	if !strings.HasPrefix(got, "₺") {
		t.Errorf("FormatTRY = %q, want lira prefix", got)
	}
	// Turkish grouping: dots for thousands, comma for decimals.
	if !strings.Contains(got, "2.845.123,57") {
		t.Errorf("FormatTRY = %q, want Turkish separators", got)
	}
}
