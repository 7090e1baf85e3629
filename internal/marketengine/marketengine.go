// Package marketengine is the matching core: it gates order intake by
// trading-hours, holds open orders in an entrust queue, and runs a single
// matchmaking worker that resolves each order against the external quote
// provider's current top-of-book. Fills settle through the user engine;
// lifecycle transitions are announced on the event bus for the main
// engine to persist.
package marketengine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hyu9999/paper-trading-1/internal/bus"
	"github.com/hyu9999/paper-trading-1/internal/domain"
	"github.com/hyu9999/paper-trading-1/internal/entrustqueue"
	"github.com/hyu9999/paper-trading-1/internal/money"
	"github.com/hyu9999/paper-trading-1/internal/userengine"
)

// Session is the two-interval daily trading schedule for a single
// exchange's market.
type Session struct {
	Location *time.Location
	Periods  [][2]time.Duration // offsets from local midnight
}

// NewChinaASession builds the standard A-share session: 09:30-11:30 and
// 13:00-15:00 in the given timezone.
func NewChinaASession(loc *time.Location) Session {
	return Session{
		Location: loc,
		Periods: [][2]time.Duration{
			{9*time.Hour + 30*time.Minute, 11*time.Hour + 30*time.Minute},
			{13 * time.Hour, 15 * time.Hour},
		},
	}
}

// IsTradingTime reports whether now falls inside any configured period.
func (s Session) IsTradingTime(now time.Time) bool {
	local := now.In(s.Location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.Location)
	offset := local.Sub(midnight)
	for _, p := range s.Periods {
		if offset >= p[0] && offset <= p[1] {
			return true
		}
	}
	return false
}

// Engine is the matching core for one exchange market.
type Engine struct {
	log      zerolog.Logger
	session  Session
	quotes   domain.QuoteProvider
	users    *userengine.Engine
	bus      *bus.Bus
	queue    *entrustqueue.Queue

	shutdown chan struct{}
}

// New constructs a market engine bound to one trading session.
func New(log zerolog.Logger, session Session, quotes domain.QuoteProvider, users *userengine.Engine, b *bus.Bus) *Engine {
	return &Engine{
		log:      log.With().Str("component", "marketengine").Logger(),
		session:  session,
		quotes:   quotes,
		users:    users,
		bus:      b,
		queue:    entrustqueue.New(),
		shutdown: make(chan struct{}),
	}
}

// Startup spawns the matchmaking worker.
func (e *Engine) Startup(ctx context.Context) {
	go e.matchmaking(ctx)
}

// Shutdown posts a sentinel that stops the matchmaking worker on its next
// iteration, then persists whatever orders never made it back to Take
// before the worker exited: the busy-spin requeue of an unfilled order
// appends it behind the sentinel, so it would otherwise be abandoned in
// the queue and lost along with the process.
func (e *Engine) Shutdown(ctx context.Context) {
	e.queue.Put(entrustqueue.EventKey, &domain.Order{OrderType: "EXIT_ENGINE"})
	<-e.shutdown

	for _, stranded := range e.queue.Snapshot() {
		if stranded.OrderType != domain.OrderTypeBuy && stranded.OrderType != domain.OrderTypeSell {
			continue
		}
		e.bus.Put(ctx, bus.Event{Kind: bus.KindOrderUpdateStatus, Payload: bus.OrderUpdateStatusPayload{
			EntrustID: stranded.EntrustID, Status: domain.OrderStatusNotDone,
		}})
	}
}

// Put validates and enqueues order for matching. It is the only entry
// point new orders take into this engine.
func (e *Engine) Put(ctx context.Context, order *domain.Order) error {
	if !order.Exchange.Valid() {
		return domain.ErrInvalidExchange(string(order.Exchange))
	}
	e.bus.Put(ctx, bus.Event{Kind: bus.KindOrderUpdateStatus, Payload: bus.OrderUpdateStatusPayload{
		EntrustID: order.EntrustID, Status: domain.OrderStatusNotDone,
	}})
	e.queue.Put(order.EntrustID, order)
	return nil
}

// PutCancel enqueues a cancel request targeting entrustID. The original
// order's key is suffixed so the cancel never collides with it while both
// may be momentarily queued.
func (e *Engine) PutCancel(ctx context.Context, entrustID, targetUser string) {
	cancel := &domain.Order{
		EntrustID:         uuid.NewString(),
		User:              targetUser,
		OrderType:         domain.OrderTypeCancel,
		CanceledEntrustID: entrustID,
	}
	e.queue.Put(entrustID+entrustqueue.CancelSuffix, cancel)
}

func (e *Engine) matchmaking(ctx context.Context) {
	defer close(e.shutdown)
	for {
		key, order := e.queue.Take()
		if key == entrustqueue.EventKey {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch order.OrderType {
		case domain.OrderTypeCancel:
			e.handleCancel(ctx, order)
		case domain.OrderTypeLiquidation:
			continue
		default:
			e.handleTrade(ctx, order)
		}
	}
}

func (e *Engine) handleCancel(ctx context.Context, cancel *domain.Order) {
	target, ok := e.queue.Delete(cancel.CanceledEntrustID)
	if !ok {
		e.log.Info().Str("entrustId", cancel.CanceledEntrustID).Msg("cancel target already processed")
		return
	}
	e.bus.Put(ctx, bus.Event{Kind: bus.KindOrderUpdateStatus, Payload: bus.OrderUpdateStatusPayload{
		EntrustID: target.EntrustID, Status: domain.OrderStatusCanceled,
	}})
	if err := e.users.Unfreeze(ctx, target); err != nil {
		e.log.Error().Str("entrustId", target.EntrustID).Err(err).Msg("unfreeze on cancel failed")
	}
}

func (e *Engine) handleTrade(ctx context.Context, order *domain.Order) {
	if !e.session.IsTradingTime(time.Now()) {
		e.queue.Put(order.EntrustID, order)
		return
	}

	stockCode := order.Symbol + "." + string(order.Exchange)
	q, err := e.quotes.GetTicks(ctx, stockCode)
	if err != nil {
		e.log.Warn().Str("entrustId", order.EntrustID).Err(err).Msg("quote fetch failed, dropping order")
		return
	}

	switch order.OrderType {
	case domain.OrderTypeBuy:
		e.matchBuy(ctx, order, q)
	case domain.OrderTypeSell:
		e.matchSell(ctx, order, q)
	}
}

func (e *Engine) matchBuy(ctx context.Context, order *domain.Order, q *domain.Quotes) {
	ask1 := q.Ask1()
	if ask1.IsZero() {
		e.queue.Put(order.EntrustID, order)
		return
	}
	if order.IsMarket() {
		e.fill(ctx, order, ask1)
		return
	}
	if order.Price.GreaterThanOrEqual(ask1) {
		e.fill(ctx, order, ask1)
		return
	}
	e.queue.Put(order.EntrustID, order)
}

func (e *Engine) matchSell(ctx context.Context, order *domain.Order, q *domain.Quotes) {
	bid1 := q.Bid1()
	if bid1.IsZero() {
		e.queue.Put(order.EntrustID, order)
		return
	}
	if order.IsMarket() {
		e.fill(ctx, order, bid1)
		return
	}
	if order.Price.LessThanOrEqual(bid1) {
		e.fill(ctx, order, bid1)
		return
	}
	e.queue.Put(order.EntrustID, order)
}

func (e *Engine) fill(ctx context.Context, order *domain.Order, price money.Decimal) {
	now := time.Now()
	order.SoldPrice = price
	order.TradedVolume = order.Volume
	order.DealTime = &now

	var (
		securitiesDiff money.Decimal
		costs          domain.Costs
		err            error
	)
	switch order.OrderType {
	case domain.OrderTypeBuy:
		securitiesDiff, costs, err = e.users.CreatePosition(ctx, order)
	case domain.OrderTypeSell:
		securitiesDiff, costs, err = e.users.ReducePosition(ctx, order)
	}
	if err != nil {
		e.log.Error().Str("entrustId", order.EntrustID).Err(err).Msg("settlement failed")
		return
	}

	if order.TradedVolume >= order.Volume {
		order.Status = domain.OrderStatusAllFinished
	} else {
		order.Status = domain.OrderStatusPartFinished
	}

	e.bus.Put(ctx, bus.Event{Kind: bus.KindOrderUpdate, Payload: bus.OrderUpdatePayload{Order: order}})
	e.bus.Put(ctx, bus.Event{Kind: bus.KindStatementCreate, Payload: bus.StatementCreatePayload{
		Order: order, SecuritiesDiff: securitiesDiff, Costs: costs,
	}})
}
