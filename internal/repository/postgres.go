// Package repository implements the durable, source-of-truth store for
// users, positions, orders, statements, and daily asset snapshots, backed
// by Postgres via database/sql and github.com/lib/pq. Every method takes a
// context.Context so callers (the engines, the scheduler) can bound how
// long a stalled connection is allowed to block them.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hyu9999/paper-trading-1/internal/domain"
)

// Open opens a Postgres connection pool for dsn and verifies it with a
// ping.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: open: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("repository: ping: %w", err)
	}
	return db, nil
}

// UserRepository is the Postgres-backed domain.UserRepository.
type UserRepository struct {
	db *sql.DB
}

var _ domain.UserRepository = (*UserRepository)(nil)

// NewUserRepository wraps db as a domain.UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository { return &UserRepository{db: db} }

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	const q = `
		INSERT INTO users (id, capital, cash, available_cash, securities, assets, commission, tax_rate, slippage, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(ctx, q,
		u.ID, u.Capital, u.Cash, u.AvailableCash, u.Securities, u.Assets,
		u.Commission, u.TaxRate, u.Slippage, u.Status, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const q = `
		SELECT id, capital, cash, available_cash, securities, assets, commission, tax_rate, slippage, status, created_at, updated_at
		FROM users WHERE id = $1`
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&u.ID, &u.Capital, &u.Cash, &u.AvailableCash, &u.Securities, &u.Assets,
		&u.Commission, &u.TaxRate, &u.Slippage, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrEntityNotFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	const q = `
		UPDATE users SET capital=$2, cash=$3, available_cash=$4, securities=$5, assets=$6,
			commission=$7, tax_rate=$8, slippage=$9, status=$10, updated_at=$11
		WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q,
		u.ID, u.Capital, u.Cash, u.AvailableCash, u.Securities, u.Assets,
		u.Commission, u.TaxRate, u.Slippage, u.Status, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrEntityNotFound("user", u.ID)
	}
	return nil
}

func (r *UserRepository) ListActive(ctx context.Context) ([]*domain.User, error) {
	const q = `
		SELECT id, capital, cash, available_cash, securities, assets, commission, tax_rate, slippage, status, created_at, updated_at
		FROM users WHERE status = $1`
	rows, err := r.db.QueryContext(ctx, q, domain.UserStatusActivated)
	if err != nil {
		return nil, fmt.Errorf("repository: list active users: %w", err)
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		u := &domain.User{}
		if err := rows.Scan(&u.ID, &u.Capital, &u.Cash, &u.AvailableCash, &u.Securities, &u.Assets,
			&u.Commission, &u.TaxRate, &u.Slippage, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repository: scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// PositionRepository is the Postgres-backed domain.PositionRepository.
type PositionRepository struct {
	db *sql.DB
}

var _ domain.PositionRepository = (*PositionRepository)(nil)

// NewPositionRepository wraps db as a domain.PositionRepository.
func NewPositionRepository(db *sql.DB) *PositionRepository { return &PositionRepository{db: db} }

func (r *PositionRepository) Upsert(ctx context.Context, p *domain.Position) error {
	const q = `
		INSERT INTO positions (user_id, symbol, exchange, volume, available_volume, cost, current_price, profit, first_buy_date, last_sell_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, symbol, exchange) DO UPDATE SET
			volume = EXCLUDED.volume,
			available_volume = EXCLUDED.available_volume,
			cost = EXCLUDED.cost,
			current_price = EXCLUDED.current_price,
			profit = EXCLUDED.profit,
			last_sell_date = EXCLUDED.last_sell_date`
	_, err := r.db.ExecContext(ctx, q,
		p.User, p.Symbol, p.Exchange, p.Volume, p.AvailableVolume, p.Cost, p.CurrentPrice, p.Profit, p.FirstBuyDate, p.LastSellDate)
	if err != nil {
		return fmt.Errorf("repository: upsert position: %w", err)
	}
	return nil
}

func (r *PositionRepository) Get(ctx context.Context, user, symbol string, exchange domain.Exchange) (*domain.Position, error) {
	const q = `
		SELECT user_id, symbol, exchange, volume, available_volume, cost, current_price, profit, first_buy_date, last_sell_date
		FROM positions WHERE user_id=$1 AND symbol=$2 AND exchange=$3`
	p := &domain.Position{}
	err := r.db.QueryRowContext(ctx, q, user, symbol, exchange).Scan(
		&p.User, &p.Symbol, &p.Exchange, &p.Volume, &p.AvailableVolume, &p.Cost, &p.CurrentPrice, &p.Profit, &p.FirstBuyDate, &p.LastSellDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrEntityNotFound("position", p.Key())
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get position: %w", err)
	}
	return p, nil
}

func (r *PositionRepository) ListByUser(ctx context.Context, user string) ([]*domain.Position, error) {
	const q = `
		SELECT user_id, symbol, exchange, volume, available_volume, cost, current_price, profit, first_buy_date, last_sell_date
		FROM positions WHERE user_id=$1`
	rows, err := r.db.QueryContext(ctx, q, user)
	if err != nil {
		return nil, fmt.Errorf("repository: list positions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Position
	for rows.Next() {
		p := &domain.Position{}
		if err := rows.Scan(&p.User, &p.Symbol, &p.Exchange, &p.Volume, &p.AvailableVolume, &p.Cost, &p.CurrentPrice, &p.Profit, &p.FirstBuyDate, &p.LastSellDate); err != nil {
			return nil, fmt.Errorf("repository: scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PositionRepository) Delete(ctx context.Context, user, symbol string, exchange domain.Exchange) error {
	const q = `DELETE FROM positions WHERE user_id=$1 AND symbol=$2 AND exchange=$3`
	_, err := r.db.ExecContext(ctx, q, user, symbol, exchange)
	if err != nil {
		return fmt.Errorf("repository: delete position: %w", err)
	}
	return nil
}

// OrderRepository is the Postgres-backed domain.OrderRepository.
type OrderRepository struct {
	db *sql.DB
}

var _ domain.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository wraps db as a domain.OrderRepository.
func NewOrderRepository(db *sql.DB) *OrderRepository { return &OrderRepository{db: db} }

func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	const q = `
		INSERT INTO orders (id, entrust_id, user_id, symbol, exchange, volume, price, price_type, order_type, trade_type,
			status, traded_volume, sold_price, deal_time, frozen_amount, frozen_stock_volume, order_date, canceled_entrust_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`
	_, err := r.db.ExecContext(ctx, q,
		o.ID, o.EntrustID, o.User, o.Symbol, o.Exchange, o.Volume, o.Price, o.PriceType, o.OrderType, o.TradeType,
		o.Status, o.TradedVolume, o.SoldPrice, o.DealTime, o.FrozenAmount, o.FrozenStockVolume, o.OrderDate, o.CanceledEntrustID)
	if err != nil {
		return fmt.Errorf("repository: create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetByEntrustID(ctx context.Context, entrustID string) (*domain.Order, error) {
	const q = `
		SELECT id, entrust_id, user_id, symbol, exchange, volume, price, price_type, order_type, trade_type,
			status, traded_volume, sold_price, deal_time, frozen_amount, frozen_stock_volume, order_date, canceled_entrust_id
		FROM orders WHERE entrust_id=$1`
	o := &domain.Order{}
	err := r.db.QueryRowContext(ctx, q, entrustID).Scan(
		&o.ID, &o.EntrustID, &o.User, &o.Symbol, &o.Exchange, &o.Volume, &o.Price, &o.PriceType, &o.OrderType, &o.TradeType,
		&o.Status, &o.TradedVolume, &o.SoldPrice, &o.DealTime, &o.FrozenAmount, &o.FrozenStockVolume, &o.OrderDate, &o.CanceledEntrustID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound(entrustID)
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get order: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	const q = `
		UPDATE orders SET status=$2, traded_volume=$3, sold_price=$4, deal_time=$5,
			frozen_amount=$6, frozen_stock_volume=$7
		WHERE entrust_id=$1`
	res, err := r.db.ExecContext(ctx, q, o.EntrustID, o.Status, o.TradedVolume, o.SoldPrice, o.DealTime, o.FrozenAmount, o.FrozenStockVolume)
	if err != nil {
		return fmt.Errorf("repository: update order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrOrderNotFound(o.EntrustID)
	}
	return nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, entrustID string, status domain.OrderStatus) error {
	const q = `UPDATE orders SET status=$2 WHERE entrust_id=$1`
	res, err := r.db.ExecContext(ctx, q, entrustID, status)
	if err != nil {
		return fmt.Errorf("repository: update order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrOrderNotFound(entrustID)
	}
	return nil
}

func (r *OrderRepository) ClearFrozen(ctx context.Context, entrustID string) error {
	const q = `UPDATE orders SET frozen_amount=0, frozen_stock_volume=0 WHERE entrust_id=$1`
	_, err := r.db.ExecContext(ctx, q, entrustID)
	if err != nil {
		return fmt.Errorf("repository: clear frozen: %w", err)
	}
	return nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, user string, statuses []domain.OrderStatus, start, end *time.Time) ([]*domain.Order, error) {
	q := `
		SELECT id, entrust_id, user_id, symbol, exchange, volume, price, price_type, order_type, trade_type,
			status, traded_volume, sold_price, deal_time, frozen_amount, frozen_stock_volume, order_date, canceled_entrust_id
		FROM orders WHERE user_id=$1`
	args := []any{user}
	if len(statuses) > 0 {
		q += fmt.Sprintf(" AND status = ANY($%d)", len(args)+1)
		args = append(args, pq.Array(pqStatusArray(statuses)))
	}
	if start != nil {
		q += fmt.Sprintf(" AND order_date >= $%d", len(args)+1)
		args = append(args, *start)
	}
	if end != nil {
		q += fmt.Sprintf(" AND order_date <= $%d", len(args)+1)
		args = append(args, *end)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: list orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (r *OrderRepository) ListOpenOrdersForDate(ctx context.Context, date time.Time) ([]*domain.Order, error) {
	const q = `
		SELECT id, entrust_id, user_id, symbol, exchange, volume, price, price_type, order_type, trade_type,
			status, traded_volume, sold_price, deal_time, frozen_amount, frozen_stock_volume, order_date, canceled_entrust_id
		FROM orders WHERE order_date::date = $1::date AND status = ANY($2)`
	openStatuses := []domain.OrderStatus{domain.OrderStatusSubmitting, domain.OrderStatusNotDone, domain.OrderStatusPartFinished}
	rows, err := r.db.QueryContext(ctx, q, date, pq.Array(pqStatusArray(openStatuses)))
	if err != nil {
		return nil, fmt.Errorf("repository: list open orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

func scanOrders(rows *sql.Rows) ([]*domain.Order, error) {
	var out []*domain.Order
	for rows.Next() {
		o := &domain.Order{}
		if err := rows.Scan(
			&o.ID, &o.EntrustID, &o.User, &o.Symbol, &o.Exchange, &o.Volume, &o.Price, &o.PriceType, &o.OrderType, &o.TradeType,
			&o.Status, &o.TradedVolume, &o.SoldPrice, &o.DealTime, &o.FrozenAmount, &o.FrozenStockVolume, &o.OrderDate, &o.CanceledEntrustID); err != nil {
			return nil, fmt.Errorf("repository: scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func pqStatusArray(statuses []domain.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// StatementRepository is the Postgres-backed domain.StatementRepository.
type StatementRepository struct {
	db *sql.DB
}

var _ domain.StatementRepository = (*StatementRepository)(nil)

// NewStatementRepository wraps db as a domain.StatementRepository.
func NewStatementRepository(db *sql.DB) *StatementRepository { return &StatementRepository{db: db} }

func (r *StatementRepository) Create(ctx context.Context, s *domain.Statement) error {
	const q = `
		INSERT INTO statements (id, entrust_id, user_id, symbol, exchange, trade_category, volume, sold_price, amount, commission, tax, total, deal_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.EntrustID, s.User, s.Symbol, s.Exchange, s.TradeCategory, s.Volume, s.SoldPrice, s.Amount, s.Commission, s.Tax, s.Total, s.DealTime)
	if err != nil {
		return fmt.Errorf("repository: create statement: %w", err)
	}
	return nil
}

func (r *StatementRepository) ListByUser(ctx context.Context, user string) ([]*domain.Statement, error) {
	const q = `
		SELECT id, entrust_id, user_id, symbol, exchange, trade_category, volume, sold_price, amount, commission, tax, total, deal_time
		FROM statements WHERE user_id=$1 ORDER BY deal_time DESC`
	rows, err := r.db.QueryContext(ctx, q, user)
	if err != nil {
		return nil, fmt.Errorf("repository: list statements: %w", err)
	}
	defer rows.Close()

	var out []*domain.Statement
	for rows.Next() {
		s := &domain.Statement{}
		if err := rows.Scan(&s.ID, &s.EntrustID, &s.User, &s.Symbol, &s.Exchange, &s.TradeCategory, &s.Volume, &s.SoldPrice, &s.Amount, &s.Commission, &s.Tax, &s.Total, &s.DealTime); err != nil {
			return nil, fmt.Errorf("repository: scan statement: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UserAssetsRecordRepository is the Postgres-backed
// domain.UserAssetsRecordRepository.
type UserAssetsRecordRepository struct {
	db *sql.DB
}

var _ domain.UserAssetsRecordRepository = (*UserAssetsRecordRepository)(nil)

// NewUserAssetsRecordRepository wraps db as a domain.UserAssetsRecordRepository.
func NewUserAssetsRecordRepository(db *sql.DB) *UserAssetsRecordRepository {
	return &UserAssetsRecordRepository{db: db}
}

func (r *UserAssetsRecordRepository) Upsert(ctx context.Context, rec *domain.UserAssetsRecord) error {
	const q = `
		INSERT INTO user_assets_records (id, user_id, date, assets, cash, securities)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (user_id, date) DO UPDATE SET
			assets = EXCLUDED.assets, cash = EXCLUDED.cash, securities = EXCLUDED.securities`
	_, err := r.db.ExecContext(ctx, q, rec.ID, rec.User, rec.Date, rec.Assets, rec.Cash, rec.Securities)
	if err != nil {
		return fmt.Errorf("repository: upsert assets record: %w", err)
	}
	return nil
}

func (r *UserAssetsRecordRepository) ListByUser(ctx context.Context, user string) ([]*domain.UserAssetsRecord, error) {
	const q = `SELECT id, user_id, date, assets, cash, securities FROM user_assets_records WHERE user_id=$1 ORDER BY date DESC`
	rows, err := r.db.QueryContext(ctx, q, user)
	if err != nil {
		return nil, fmt.Errorf("repository: list assets records: %w", err)
	}
	defer rows.Close()

	var out []*domain.UserAssetsRecord
	for rows.Next() {
		rec := &domain.UserAssetsRecord{}
		if err := rows.Scan(&rec.ID, &rec.User, &rec.Date, &rec.Assets, &rec.Cash, &rec.Securities); err != nil {
			return nil, fmt.Errorf("repository: scan assets record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// jobRunsSchema creates the audit table JobRunRepository writes to. Postgres
// migrations for the rest of this schema are managed outside this module;
// job_runs is created here since nothing else owns it.
const jobRunsSchema = `
CREATE TABLE IF NOT EXISTS job_runs (
	id SERIAL PRIMARY KEY,
	job_name TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	detail TEXT
);

CREATE INDEX IF NOT EXISTS idx_job_runs_job_name ON job_runs(job_name, started_at DESC);
`

// JobRunRepository is the Postgres-backed domain.JobRunRepository. It backs
// the scheduler's audit trail: one row per cron trigger firing.
type JobRunRepository struct {
	db *sql.DB
}

var _ domain.JobRunRepository = (*JobRunRepository)(nil)

// NewJobRunRepository wraps db as a domain.JobRunRepository and ensures its
// table exists.
func NewJobRunRepository(db *sql.DB) (*JobRunRepository, error) {
	if _, err := db.Exec(jobRunsSchema); err != nil {
		return nil, fmt.Errorf("repository: init job_runs schema: %w", err)
	}
	return &JobRunRepository{db: db}, nil
}

func (r *JobRunRepository) Create(ctx context.Context, run *domain.JobRun) error {
	const q = `
		INSERT INTO job_runs (job_name, started_at, finished_at, status, detail)
		VALUES ($1,$2,$3,$4,$5)`
	_, err := r.db.ExecContext(ctx, q, run.JobName, run.StartedAt, run.FinishedAt, run.Status, run.Detail)
	if err != nil {
		return fmt.Errorf("repository: create job run: %w", err)
	}
	return nil
}

func (r *JobRunRepository) ListByJob(ctx context.Context, jobName string, limit int) ([]*domain.JobRun, error) {
	const q = `
		SELECT job_name, started_at, finished_at, status, detail
		FROM job_runs WHERE job_name=$1 ORDER BY started_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, jobName, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: list job runs: %w", err)
	}
	defer rows.Close()

	var out []*domain.JobRun
	for rows.Next() {
		run := &domain.JobRun{}
		var detail sql.NullString
		if err := rows.Scan(&run.JobName, &run.StartedAt, &run.FinishedAt, &run.Status, &detail); err != nil {
			return nil, fmt.Errorf("repository: scan job run: %w", err)
		}
		run.Detail = detail.String
		out = append(out, run)
	}
	return out, rows.Err()
}
