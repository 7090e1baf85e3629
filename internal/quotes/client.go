// Package quotes is the HTTP client for the external level-1 tick feed.
// The market engine and the user engine's liquidation passes are the only
// callers; neither retries a failed fetch, they requeue or skip instead.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hyu9999/paper-trading-1/internal/domain"
)

// Client fetches level-1 quotes from a configured base URL.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
}

// New builds a Client. timeout bounds every individual GetTicks call via
// context.WithTimeout, independent of any deadline already on the caller's
// context.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: timeout,
		http:    &http.Client{},
	}
}

var _ domain.QuoteProvider = (*Client)(nil)

type tickResponse struct {
	Current   string `json:"current"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	LastClose string `json:"lastClose"`
	Bid       []struct {
		Price  string `json:"price"`
		Volume int64  `json:"volume"`
	} `json:"bid"`
	Ask []struct {
		Price  string `json:"price"`
		Volume int64  `json:"volume"`
	} `json:"ask"`
	Timestamp time.Time `json:"timestamp"`
}

// GetTicks fetches the current level-1 snapshot for stockCode, a
// concatenation of symbol and exchange (e.g. "600000.SH").
func (c *Client) GetTicks(ctx context.Context, stockCode string) (*domain.Quotes, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := fmt.Sprintf("%s/ticks/%s", c.baseURL, url.PathEscape(stockCode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, domain.ErrGetQuotesFailed(stockCode, err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.ErrGetQuotesFailed(stockCode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrEntityNotFound("quotes", stockCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.ErrGetQuotesFailed(stockCode, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var tr tickResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, domain.ErrGetQuotesFailed(stockCode, err)
	}
	return tr.toDomain(stockCode)
}

func (tr tickResponse) toDomain(stockCode string) (*domain.Quotes, error) {
	q := &domain.Quotes{StockCode: stockCode, Timestamp: tr.Timestamp}
	var err error
	if q.Current, err = parseDecimal(tr.Current); err != nil {
		return nil, domain.ErrGetQuotesFailed(stockCode, err)
	}
	if q.Open, err = parseDecimal(tr.Open); err != nil {
		return nil, domain.ErrGetQuotesFailed(stockCode, err)
	}
	if q.High, err = parseDecimal(tr.High); err != nil {
		return nil, domain.ErrGetQuotesFailed(stockCode, err)
	}
	if q.Low, err = parseDecimal(tr.Low); err != nil {
		return nil, domain.ErrGetQuotesFailed(stockCode, err)
	}
	if q.LastClose, err = parseDecimal(tr.LastClose); err != nil {
		return nil, domain.ErrGetQuotesFailed(stockCode, err)
	}
	for i := 0; i < 5 && i < len(tr.Bid); i++ {
		price, err := parseDecimal(tr.Bid[i].Price)
		if err != nil {
			return nil, domain.ErrGetQuotesFailed(stockCode, err)
		}
		q.Bid[i] = domain.PriceLevel{Price: price, Volume: tr.Bid[i].Volume}
	}
	for i := 0; i < 5 && i < len(tr.Ask); i++ {
		price, err := parseDecimal(tr.Ask[i].Price)
		if err != nil {
			return nil, domain.ErrGetQuotesFailed(stockCode, err)
		}
		q.Ask[i] = domain.PriceLevel{Price: price, Volume: tr.Ask[i].Volume}
	}
	return q, nil
}
