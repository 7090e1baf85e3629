package userengine

import (
	"context"
	"sync"

	"github.com/hyu9999/paper-trading-1/internal/domain"
)

// The fakes in this file back both this package's own tests and are
// intentionally unexported so they never leak into production builds.

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUserRepo() *memUserRepo { return &memUserRepo{users: make(map[string]*domain.User)} }

func (r *memUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrEntityNotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) Update(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return domain.ErrEntityNotFound("user", u.ID)
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) ListActive(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.User
	for _, u := range r.users {
		if u.Status == domain.UserStatusActivated {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memPositionRepo struct {
	mu        sync.Mutex
	positions map[string]*domain.Position
}

func newMemPositionRepo() *memPositionRepo {
	return &memPositionRepo{positions: make(map[string]*domain.Position)}
}

func (r *memPositionRepo) Upsert(_ context.Context, p *domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.positions[p.Key()] = &cp
	return nil
}

func (r *memPositionRepo) Get(_ context.Context, user, symbol string, exchange domain.Exchange) (*domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := (&domain.Position{User: user, Symbol: symbol, Exchange: exchange}).Key()
	p, ok := r.positions[key]
	if !ok {
		return nil, domain.ErrEntityNotFound("position", key)
	}
	cp := *p
	return &cp, nil
}

func (r *memPositionRepo) ListByUser(_ context.Context, user string) ([]*domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Position
	for _, p := range r.positions {
		if p.User == user {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memPositionRepo) Delete(_ context.Context, user, symbol string, exchange domain.Exchange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := (&domain.Position{User: user, Symbol: symbol, Exchange: exchange}).Key()
	delete(r.positions, key)
	return nil
}

type memUserCache struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	reload bool
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

func (c *memUserCache) Keys(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for id := range c.users {
		out = append(out, id)
	}
	return out, nil
}

func (c *memUserCache) IsReload(_ context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reload, nil
}

func (c *memUserCache) ClearReload(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reload = false
	return nil
}

func (c *memUserCache) SetReload(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reload = true
	return nil
}

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
