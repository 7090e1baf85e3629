package quotes

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/hyu9999/paper-trading-1/internal/domain"
)

// streamTick is tickResponse plus the stock code the HTTP path instead
// derives from the request URL; a push message has to carry it inline.
type streamTick struct {
	StockCode string `json:"stockCode"`
	tickResponse
}

// StreamClient supplements Client with a push feed: when the upstream
// quote provider exposes a streaming endpoint, ticks arrive over a
// websocket and are cached in memory, so GetTicks returns the latest
// pushed value without a blocking HTTP round trip. Any symbol the stream
// hasn't delivered yet, or whose cached tick has gone stale, falls back to
// Client's HTTP polling.
type StreamClient struct {
	*Client
	wsURL string
	ttl   time.Duration

	mu   sync.RWMutex
	last map[string]cachedTick
}

type cachedTick struct {
	quotes    *domain.Quotes
	fetchedAt time.Time
}

// NewStreamClient wraps c with a push feed dialed at wsURL. ttl bounds how
// long a pushed tick is trusted before GetTicks falls back to polling.
func NewStreamClient(c *Client, wsURL string, ttl time.Duration) *StreamClient {
	return &StreamClient{Client: c, wsURL: wsURL, ttl: ttl, last: make(map[string]cachedTick)}
}

var _ domain.QuoteProvider = (*StreamClient)(nil)

// Run dials the streaming endpoint and applies incoming ticks until ctx is
// canceled, reconnecting after a short backoff on any dial or read error.
func (s *StreamClient) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if err := s.streamOnce(ctx); err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	}
}

func (s *StreamClient) streamOnce(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, s.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var tick streamTick
		if err := json.Unmarshal(data, &tick); err != nil {
			continue
		}
		q, err := tick.tickResponse.toDomain(tick.StockCode)
		if err != nil {
			continue
		}
		s.mu.Lock()
		s.last[tick.StockCode] = cachedTick{quotes: q, fetchedAt: time.Now()}
		s.mu.Unlock()
	}
}

// GetTicks returns the latest pushed tick for stockCode if one has arrived
// within ttl, otherwise defers to the HTTP client.
func (s *StreamClient) GetTicks(ctx context.Context, stockCode string) (*domain.Quotes, error) {
	s.mu.RLock()
	cached, ok := s.last[stockCode]
	s.mu.RUnlock()
	if ok && time.Since(cached.fetchedAt) < s.ttl {
		return cached.quotes, nil
	}
	return s.Client.GetTicks(ctx, stockCode)
}
