// Package mainengine is the front door for order submission. It wires the
// event bus's persistence handlers, validates and stamps incoming orders,
// hands them to the market engine, and drives the end-of-day refusal
// sweep and the order-reload-at-startup pass.
package mainengine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hyu9999/paper-trading-1/internal/bus"
	"github.com/hyu9999/paper-trading-1/internal/domain"
	"github.com/hyu9999/paper-trading-1/internal/marketengine"
	"github.com/hyu9999/paper-trading-1/internal/userengine"
)

// Engine is the top-level coordinator: order intake, persistence-event
// wiring, and the market-close/startup lifecycle hooks.
type Engine struct {
	log zerolog.Logger

	bus     *bus.Bus
	market  *marketengine.Engine
	users   *userengine.Engine

	orderRepo     domain.OrderRepository
	statementRepo domain.StatementRepository
	assetsRepo    domain.UserAssetsRecordRepository
	userRepo      domain.UserRepository
	userCache     domain.UserCache
}

// New constructs a main engine and registers its event handlers on b.
func New(log zerolog.Logger, b *bus.Bus, market *marketengine.Engine, users *userengine.Engine,
	orderRepo domain.OrderRepository, statementRepo domain.StatementRepository,
	assetsRepo domain.UserAssetsRecordRepository, userRepo domain.UserRepository, userCache domain.UserCache) *Engine {
	e := &Engine{
		log:           log.With().Str("component", "mainengine").Logger(),
		bus:           b,
		market:        market,
		users:         users,
		orderRepo:     orderRepo,
		statementRepo: statementRepo,
		assetsRepo:    assetsRepo,
		userRepo:      userRepo,
		userCache:     userCache,
	}
	e.registerEvents()
	return e
}

func (e *Engine) registerEvents() {
	e.bus.Register(bus.KindOrderCreate, e.onOrderCreate)
	e.bus.Register(bus.KindOrderUpdate, e.onOrderUpdate)
	e.bus.Register(bus.KindOrderUpdateStatus, e.onOrderUpdateStatus)
	e.bus.Register(bus.KindOrderUpdateFrozen, e.onOrderUpdateFrozen)
	e.bus.Register(bus.KindStatementCreate, e.onStatementCreate)
	e.bus.Register(bus.KindMarketClose, e.onMarketClose)
}

func (e *Engine) onOrderCreate(ctx context.Context, ev bus.Event) error {
	p := ev.Payload.(bus.OrderCreatePayload)
	return e.orderRepo.Create(ctx, p.Order)
}

func (e *Engine) onOrderUpdate(ctx context.Context, ev bus.Event) error {
	p := ev.Payload.(bus.OrderUpdatePayload)
	return e.orderRepo.Update(ctx, p.Order)
}

func (e *Engine) onOrderUpdateStatus(ctx context.Context, ev bus.Event) error {
	p := ev.Payload.(bus.OrderUpdateStatusPayload)
	return e.orderRepo.UpdateStatus(ctx, p.EntrustID, p.Status)
}

func (e *Engine) onOrderUpdateFrozen(ctx context.Context, ev bus.Event) error {
	p := ev.Payload.(bus.OrderUpdateFrozenPayload)
	return e.orderRepo.ClearFrozen(ctx, p.EntrustID)
}

func (e *Engine) onStatementCreate(ctx context.Context, ev bus.Event) error {
	p := ev.Payload.(bus.StatementCreatePayload)
	amount := p.SecuritiesDiff
	category := domain.TradeCategoryBuy
	if p.Order.OrderType == domain.OrderTypeSell {
		category = domain.TradeCategorySell
	} else {
		amount = amount.Neg()
	}
	stmt := &domain.Statement{
		ID:            uuid.NewString(),
		EntrustID:     p.Order.EntrustID,
		User:          p.Order.User,
		Symbol:        p.Order.Symbol,
		Exchange:      p.Order.Exchange,
		TradeCategory: category,
		Volume:        p.Order.TradedVolume,
		SoldPrice:     p.Order.SoldPrice,
		Amount:        amount,
		Commission:    p.Costs.Commission,
		Tax:           p.Costs.Tax,
		Total:         p.Costs.Total,
		DealTime:      *p.Order.DealTime,
	}
	return e.statementRepo.Create(ctx, stmt)
}

func (e *Engine) onMarketClose(ctx context.Context, ev bus.Event) error {
	p := ev.Payload.(bus.MarketClosePayload)
	orders, err := e.orderRepo.ListOpenOrdersForDate(ctx, p.Date)
	if err != nil {
		return err
	}
	for _, o := range orders {
		o.Status = domain.OrderStatusRejected
		if err := e.orderRepo.Update(ctx, o); err != nil {
			e.log.Error().Str("entrustId", o.EntrustID).Err(err).Msg("market close reject failed")
			continue
		}
		if err := e.users.Unfreeze(ctx, o); err != nil {
			e.log.Error().Str("entrustId", o.EntrustID).Err(err).Msg("market close unfreeze failed")
		}
	}
	return nil
}

// OnOrderArrived is the synchronous entry point the REST façade calls for
// a new order. It validates funds/position availability, stamps a fresh
// entrust-id, persists the creation event, and enqueues the order onto the
// market engine.
func (e *Engine) OnOrderArrived(ctx context.Context, order *domain.Order, user *domain.User) (*domain.Order, error) {
	if user.Status == domain.UserStatusTerminated {
		return nil, domain.ErrUserTerminated(user.ID)
	}
	if order.Price.IsZero() {
		order.PriceType = domain.PriceTypeMarket
	} else {
		order.PriceType = domain.PriceTypeLimit
	}
	order.EntrustID = uuid.NewString()
	order.ID = uuid.NewString()
	order.OrderDate = time.Now()
	order.Status = domain.OrderStatusSubmitting

	frozen, err := e.users.PreTradeValidate(ctx, order)
	if err != nil {
		return nil, err
	}
	switch order.OrderType {
	case domain.OrderTypeBuy:
		order.FrozenAmount = frozen
	case domain.OrderTypeSell:
		order.FrozenStockVolume = order.Volume
	}

	e.bus.Put(ctx, bus.Event{Kind: bus.KindOrderCreate, Payload: bus.OrderCreatePayload{Order: order}})

	if err := e.market.Put(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// CancelOrder submits a cancel for entrustID on behalf of userID.
func (e *Engine) CancelOrder(ctx context.Context, entrustID, userID string) error {
	existing, err := e.orderRepo.GetByEntrustID(ctx, entrustID)
	if err != nil {
		return err
	}
	if existing.User != userID {
		return domain.ErrOrderNotFound(entrustID)
	}
	if !existing.Status.Open() {
		return domain.ErrCancelOrderFailed(entrustID)
	}
	e.market.PutCancel(ctx, entrustID, userID)
	return nil
}

// GetOrder fetches one order by its entrust-id.
func (e *Engine) GetOrder(ctx context.Context, entrustID string) (*domain.Order, error) {
	return e.orderRepo.GetByEntrustID(ctx, entrustID)
}

// ListOrders lists userID's orders, optionally filtered by status and date
// range.
func (e *Engine) ListOrders(ctx context.Context, userID string, statuses []domain.OrderStatus, start, end *time.Time) ([]*domain.Order, error) {
	return e.orderRepo.ListByUser(ctx, userID, statuses, start, end)
}

// LoadEntrustOrders reloads today's still-open orders onto the market
// engine. Called once at startup so a restart does not lose in-flight
// orders.
func (e *Engine) LoadEntrustOrders(ctx context.Context) error {
	orders, err := e.orderRepo.ListOpenOrdersForDate(ctx, time.Now())
	if err != nil {
		return err
	}
	for _, o := range orders {
		if err := e.market.Put(ctx, o); err != nil {
			e.log.Error().Str("entrustId", o.EntrustID).Err(err).Msg("reload order failed")
		}
	}
	return nil
}

// TriggerMarketClose runs the end-of-day pipeline: reject unfilled orders,
// liquidate every active user's positions and profit, snapshot assets, and
// flush the cache back to the durable store. Invoked by the scheduler.
func (e *Engine) TriggerMarketClose(ctx context.Context) error {
	e.bus.Put(ctx, bus.Event{Kind: bus.KindMarketClose, Payload: bus.MarketClosePayload{Date: time.Now()}})

	ids, err := e.userCache.Keys(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := e.users.LiquidateUserPosition(ctx, id, true); err != nil {
			e.log.Error().Str("user", id).Err(err).Msg("liquidate position failed")
			continue
		}
		if err := e.users.LiquidateUserProfit(ctx, id, true); err != nil {
			e.log.Error().Str("user", id).Err(err).Msg("liquidate profit failed")
			continue
		}
		if err := e.snapshotUserAssets(ctx, id); err != nil {
			e.log.Error().Str("user", id).Err(err).Msg("snapshot assets failed")
		}
	}
	return e.users.FlushCacheToDB(ctx)
}

func (e *Engine) snapshotUserAssets(ctx context.Context, userID string) error {
	user, err := e.userCache.Get(ctx, userID)
	if err != nil {
		return err
	}
	rec := &domain.UserAssetsRecord{
		ID:         uuid.NewString(),
		User:       userID,
		Date:       time.Now(),
		Assets:     user.Assets,
		Cash:       user.Cash,
		Securities: user.Securities,
	}
	return e.assetsRepo.Upsert(ctx, rec)
}

// Startup runs the startup reconciliation pass (cache reload if needed,
// then re-enqueue any open orders) and starts the event bus and market
// engine workers.
func (e *Engine) Startup(ctx context.Context) error {
	if err := e.users.LoadDBDataToCache(ctx); err != nil {
		return err
	}
	e.bus.Startup(ctx)
	e.market.Startup(ctx)
	return e.LoadEntrustOrders(ctx)
}

// Shutdown stops the market engine and event bus workers in order.
func (e *Engine) Shutdown(ctx context.Context) {
	e.market.Shutdown(ctx)
	e.bus.Shutdown()
}
