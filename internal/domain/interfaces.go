package domain

import (
	"context"
	"time"
)

// UserRepository is the durable store's view of User. Implemented by
// internal/repository against Postgres.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	Update(ctx context.Context, u *User) error
	ListActive(ctx context.Context) ([]*User, error)
}

// PositionRepository is the durable store's view of Position.
type PositionRepository interface {
	Upsert(ctx context.Context, p *Position) error
	Get(ctx context.Context, user, symbol string, exchange Exchange) (*Position, error)
	ListByUser(ctx context.Context, user string) ([]*Position, error)
	Delete(ctx context.Context, user, symbol string, exchange Exchange) error
}

// OrderRepository is the durable store's view of Order.
type OrderRepository interface {
	Create(ctx context.Context, o *Order) error
	GetByEntrustID(ctx context.Context, entrustID string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	UpdateStatus(ctx context.Context, entrustID string, status OrderStatus) error
	ClearFrozen(ctx context.Context, entrustID string) error
	ListByUser(ctx context.Context, user string, statuses []OrderStatus, start, end *time.Time) ([]*Order, error)
	ListOpenOrdersForDate(ctx context.Context, date time.Time) ([]*Order, error)
}

// StatementRepository is the durable store's view of Statement.
type StatementRepository interface {
	Create(ctx context.Context, s *Statement) error
	ListByUser(ctx context.Context, user string) ([]*Statement, error)
}

// UserAssetsRecordRepository is the durable store's view of
// UserAssetsRecord, one row per (user, date).
type UserAssetsRecordRepository interface {
	Upsert(ctx context.Context, r *UserAssetsRecord) error
	ListByUser(ctx context.Context, user string) ([]*UserAssetsRecord, error)
}

// JobRunRepository is the durable store's view of JobRun, the scheduler's
// audit trail of cron trigger firings.
type JobRunRepository interface {
	Create(ctx context.Context, run *JobRun) error
	ListByJob(ctx context.Context, jobName string, limit int) ([]*JobRun, error)
}

// UserCache is the fast store's view of User, authoritative for
// AvailableCash during the trading session.
type UserCache interface {
	Set(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	Delete(ctx context.Context, id string) error
	Keys(ctx context.Context) ([]string, error)
	IsReload(ctx context.Context) (bool, error)
	ClearReload(ctx context.Context) error
	SetReload(ctx context.Context) error
}

// PositionCache is the fast store's view of Position, authoritative for
// AvailableVolume during the trading session.
type PositionCache interface {
	Set(ctx context.Context, p *Position) error
	Get(ctx context.Context, user, symbol string, exchange Exchange) (*Position, error)
	Delete(ctx context.Context, user, symbol string, exchange Exchange) error
	ListByUser(ctx context.Context, user string) ([]*Position, error)
	ListAll(ctx context.Context) ([]*Position, error)
}

// QuoteProvider is the external level-1 tick feed consumed by the market
// engine and the user engine's liquidation passes.
type QuoteProvider interface {
	GetTicks(ctx context.Context, stockCode string) (*Quotes, error)
}
