package marketengine

import (
	"context"
	"sync"

	"github.com/hyu9999/paper-trading-1/internal/domain"
)

type memUserRepo struct{ mu sync.Mutex }

func (r *memUserRepo) Create(context.Context, *domain.User) error    { return nil }
func (r *memUserRepo) GetByID(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrEntityNotFound("user", "")
}
func (r *memUserRepo) Update(context.Context, *domain.User) error { return nil }
func (r *memUserRepo) ListActive(context.Context) ([]*domain.User, error) { return nil, nil }

type memPositionRepo struct{}

func (r *memPositionRepo) Upsert(context.Context, *domain.Position) error { return nil }
func (r *memPositionRepo) Get(context.Context, string, string, domain.Exchange) (*domain.Position, error) {
	return nil, domain.ErrEntityNotFound("position", "")
}
func (r *memPositionRepo) ListByUser(context.Context, string) ([]*domain.Position, error) { return nil, nil }
func (r *memPositionRepo) Delete(context.Context, string, string, domain.Exchange) error  { return nil }

type memUserCache struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUserCache() *memUserCache { return &memUserCache{users: make(map[string]*domain.User)} }

func (c *memUserCache) Set(_ context.Context, u *domain.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *u
	c.users[u.ID] = &cp
	return nil
}

func (c *memUserCache) Get(_ context.Context, id string) (*domain.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.users[id]
	if !ok {
		return nil, domain.ErrEntityNotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (c *memUserCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, id)
	return nil
}

func (c *memUserCache) Keys(context.Context) ([]string, error) { return nil, nil }
func (c *memUserCache) IsReload(context.Context) (bool, error) { return false, nil }
func (c *memUserCache) ClearReload(context.Context) error      { return nil }
func (c *memUserCache) SetReload(context.Context) error        { return nil }

type memPositionCache struct {
	mu        sync.Mutex
	positions map[string]*domain.Position
}

func newMemPositionCache() *memPositionCache {
	return &memPositionCache{positions: make(map[string]*domain.Position)}
}

func (c *memPositionCache) Set(_ context.Context, p *domain.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *p
	c.positions[p.Key()] = &cp
	return nil
}

func (c *memPositionCache) Get(_ context.Context, user, symbol string, exchange domain.Exchange) (*domain.Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := (&domain.Position{User: user, Symbol: symbol, Exchange: exchange}).Key()
	p, ok := c.positions[key]
	if !ok {
		return nil, domain.ErrEntityNotFound("position", key)
	}
	cp := *p
	return &cp, nil
}

func (c *memPositionCache) Delete(_ context.Context, user, symbol string, exchange domain.Exchange) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := (&domain.Position{User: user, Symbol: symbol, Exchange: exchange}).Key()
	delete(c.positions, key)
	return nil
}

func (c *memPositionCache) ListByUser(_ context.Context, user string) ([]*domain.Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*domain.Position
	for _, p := range c.positions {
		if p.User == user {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (c *memPositionCache) ListAll(_ context.Context) ([]*domain.Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*domain.Position
	for _, p := range c.positions {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

type fakeQuoteProvider struct {
	mu     sync.Mutex
	quotes map[string]*domain.Quotes
}

func newFakeQuoteProvider() *fakeQuoteProvider {
	return &fakeQuoteProvider{quotes: make(map[string]*domain.Quotes)}
}

func (q *fakeQuoteProvider) set(stockCode string, quotes *domain.Quotes) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.quotes[stockCode] = quotes
}

func (q *fakeQuoteProvider) GetTicks(_ context.Context, stockCode string) (*domain.Quotes, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	quote, ok := q.quotes[stockCode]
	if !ok {
		return nil, domain.ErrGetQuotesFailed(stockCode, nil)
	}
	return quote, nil
}
