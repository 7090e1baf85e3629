// Package userengine is the only writer of user financial state and
// position state in the hot path. It owns pre-trade fund/position
// freezing, post-trade position create/reduce, user-asset bookkeeping, and
// the end-of-day liquidation passes. All monetary arithmetic uses
// money.Decimal (github.com/shopspring/decimal) so repeated settlement
// never drifts.
package userengine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hyu9999/paper-trading-1/internal/bus"
	"github.com/hyu9999/paper-trading-1/internal/domain"
	"github.com/hyu9999/paper-trading-1/internal/money"
)

// Engine implements the pre-trade validation, position mutation, and
// liquidation operations described for the user/position engine.
type Engine struct {
	log zerolog.Logger

	userRepo  domain.UserRepository
	posRepo   domain.PositionRepository
	userCache domain.UserCache
	posCache  domain.PositionCache
	quotes    domain.QuoteProvider
	bus       *bus.Bus

	// keyLocks serializes the read-modify-write freeze/unfreeze sequence
	// per user so concurrent order submissions cannot both observe the
	// same AvailableCash/AvailableVolume and both succeed.
	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// New constructs a user engine.
func New(log zerolog.Logger, userRepo domain.UserRepository, posRepo domain.PositionRepository,
	userCache domain.UserCache, posCache domain.PositionCache, quotes domain.QuoteProvider, b *bus.Bus) *Engine {
	return &Engine{
		log:       log.With().Str("component", "userengine").Logger(),
		userRepo:  userRepo,
		posRepo:   posRepo,
		userCache: userCache,
		posCache:  posCache,
		quotes:    quotes,
		bus:       b,
		keyLocks:  make(map[string]*sync.Mutex),
	}
}

func (e *Engine) lockFor(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.keyLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		e.keyLocks[userID] = l
	}
	return l
}

// PreTradeValidate freezes the funds (buy) or shares (sell) an order
// requires, atomically, returning the amount frozen. On failure nothing is
// mutated.
func (e *Engine) PreTradeValidate(ctx context.Context, order *domain.Order) (money.Decimal, error) {
	lock := e.lockFor(order.User)
	lock.Lock()
	defer lock.Unlock()

	switch order.OrderType {
	case domain.OrderTypeBuy:
		return e.validateBuy(ctx, order)
	case domain.OrderTypeSell:
		return e.validateSell(ctx, order)
	default:
		return money.Zero, nil
	}
}

func (e *Engine) validateBuy(ctx context.Context, order *domain.Order) (money.Decimal, error) {
	user, err := e.userCache.Get(ctx, order.User)
	if err != nil {
		return money.Zero, err
	}
	volume := money.FromInt(order.Volume)
	one := money.FromInt(1)
	cashNeeds := volume.Mul(order.Price).Mul(one.Add(user.Commission))
	if user.AvailableCash.LessThan(cashNeeds) {
		return money.Zero, domain.ErrInsufficientFunds(cashNeeds.String(), user.AvailableCash.String())
	}
	user.AvailableCash = user.AvailableCash.Sub(cashNeeds)
	if err := e.userCache.Set(ctx, user); err != nil {
		return money.Zero, err
	}
	return cashNeeds, nil
}

func (e *Engine) validateSell(ctx context.Context, order *domain.Order) (money.Decimal, error) {
	pos, err := e.posCache.Get(ctx, order.User, order.Symbol, order.Exchange)
	if err != nil {
		return money.Zero, domain.ErrNoPositionsAvailable(order.Symbol)
	}
	if pos.AvailableVolume < order.Volume {
		return money.Zero, domain.ErrNotEnoughAvailablePositions(order.Symbol, order.Volume, pos.AvailableVolume)
	}
	pos.AvailableVolume -= order.Volume
	if err := e.posCache.Set(ctx, pos); err != nil {
		return money.Zero, err
	}
	return money.FromInt(order.Volume), nil
}

// Unfreeze releases an order's frozen reservation back to the owning
// user's available cash or the owning position's available volume. Called
// on cancellation and on the end-of-day rejection sweep.
func (e *Engine) Unfreeze(ctx context.Context, order *domain.Order) error {
	lock := e.lockFor(order.User)
	lock.Lock()
	defer lock.Unlock()

	if order.FrozenAmount.GreaterThan(money.Zero) {
		user, err := e.userCache.Get(ctx, order.User)
		if err != nil {
			return err
		}
		user.AvailableCash = user.AvailableCash.Add(order.FrozenAmount)
		if err := e.userCache.Set(ctx, user); err != nil {
			return err
		}
	}
	if order.FrozenStockVolume > 0 {
		pos, err := e.posCache.Get(ctx, order.User, order.Symbol, order.Exchange)
		if err != nil {
			return err
		}
		pos.AvailableVolume += order.FrozenStockVolume
		if err := e.posCache.Set(ctx, pos); err != nil {
			return err
		}
	}
	e.bus.Put(ctx, bus.Event{Kind: bus.KindOrderUpdateFrozen, Payload: bus.OrderUpdateFrozenPayload{EntrustID: order.EntrustID}})
	return nil
}

// CreatePosition applies a buy fill: it creates or grows the user's
// position, computes the average cost basis, and settles cash via
// UpdateUser. It returns the gross securities amount traded and the fee
// breakdown, for the statement the caller will emit.
func (e *Engine) CreatePosition(ctx context.Context, order *domain.Order) (money.Decimal, domain.Costs, error) {
	lock := e.lockFor(order.User)
	lock.Lock()
	defer lock.Unlock()

	user, err := e.userCache.Get(ctx, order.User)
	if err != nil {
		return money.Zero, domain.Costs{}, err
	}
	q, err := e.quotes.GetTicks(ctx, order.Symbol+"."+string(order.Exchange))
	if err != nil {
		return money.Zero, domain.Costs{}, err
	}

	tradedVolume := money.FromInt(order.TradedVolume)
	securitiesOrder := tradedVolume.Mul(order.SoldPrice)
	commission := securitiesOrder.Mul(user.Commission)
	amount := securitiesOrder.Add(commission)

	pos, err := e.posCache.Get(ctx, order.User, order.Symbol, order.Exchange)
	now := time.Now()
	isNew := err != nil
	if isNew {
		available := int64(0)
		if order.TradeType == domain.TradeTypeT0 {
			available = order.TradedVolume
		}
		pos = &domain.Position{
			User:         order.User,
			Symbol:       order.Symbol,
			Exchange:     order.Exchange,
			Volume:       order.TradedVolume,
			AvailableVolume: available,
			Cost:         amount.Div(tradedVolume),
			CurrentPrice: q.Current,
			FirstBuyDate: now,
		}
		pos.Profit = q.Current.Sub(order.SoldPrice).Mul(tradedVolume).Sub(commission)
	} else {
		oldVolume := money.FromInt(pos.Volume)
		newVolumeInt := pos.Volume + order.TradedVolume
		newVolume := money.FromInt(newVolumeInt)
		pos.Cost = oldVolume.Mul(pos.Cost).Add(amount).Div(newVolume)
		if order.TradeType == domain.TradeTypeT0 {
			pos.AvailableVolume += order.TradedVolume
		}
		pos.Volume = newVolumeInt
		pos.CurrentPrice = q.Current
		pos.Profit = q.Current.Sub(pos.Cost).Mul(newVolume)
	}

	if err := e.posCache.Set(ctx, pos); err != nil {
		return money.Zero, domain.Costs{}, err
	}
	if isNew {
		e.bus.Put(ctx, bus.Event{Kind: bus.KindPositionCreate, Payload: bus.PositionCreatePayload{Position: pos}})
	} else {
		e.bus.Put(ctx, bus.Event{Kind: bus.KindPositionUpdate, Payload: bus.PositionUpdatePayload{Position: pos}})
	}

	securitiesDiff := tradedVolume.Mul(q.Current)
	costs := domain.Costs{Commission: commission, Tax: money.Zero, Total: commission}
	if err := e.updateUser(ctx, user, order, amount, securitiesDiff); err != nil {
		return money.Zero, domain.Costs{}, err
	}
	return securitiesOrder, costs, nil
}

// ReducePosition applies a sell fill: it shrinks or closes the user's
// position, computes realized cost/profit, and settles cash via
// UpdateUser.
func (e *Engine) ReducePosition(ctx context.Context, order *domain.Order) (money.Decimal, domain.Costs, error) {
	lock := e.lockFor(order.User)
	lock.Lock()
	defer lock.Unlock()

	user, err := e.userCache.Get(ctx, order.User)
	if err != nil {
		return money.Zero, domain.Costs{}, err
	}
	q, err := e.quotes.GetTicks(ctx, order.Symbol+"."+string(order.Exchange))
	if err != nil {
		return money.Zero, domain.Costs{}, err
	}
	pos, err := e.posCache.Get(ctx, order.User, order.Symbol, order.Exchange)
	if err != nil {
		return money.Zero, domain.Costs{}, err
	}

	tradedVolume := money.FromInt(order.TradedVolume)
	securitiesOrder := tradedVolume.Mul(order.SoldPrice)
	commission := securitiesOrder.Mul(user.Commission)
	tax := securitiesOrder.Mul(user.TaxRate)
	oldSpent := money.FromInt(pos.Volume).Mul(pos.Cost)

	newVolume := pos.Volume - order.TradedVolume
	if newVolume == 0 {
		pos.Cost = oldSpent.Add(commission).Add(tax).Div(tradedVolume)
		pos.Profit = q.Current.Sub(pos.Cost).Mul(tradedVolume)
		pos.AvailableVolume = 0
		pos.Volume = 0
	} else {
		pos.AvailableVolume = pos.AvailableVolume + order.FrozenStockVolume - order.TradedVolume
		numerator := oldSpent.Add(commission).Add(tax).Sub(order.SoldPrice.Mul(tradedVolume))
		pos.Cost = numerator.Div(money.FromInt(newVolume))
		pos.Profit = q.Current.Sub(pos.Cost).Mul(money.FromInt(newVolume))
		pos.Volume = newVolume
	}
	now := time.Now()
	pos.LastSellDate = &now
	pos.CurrentPrice = q.Current

	// A position that sells down to zero volume stays in the cache, zeroed
	// out, until the next liquidation pass actually deletes it; the fill
	// path only ever updates.
	if err := e.posCache.Set(ctx, pos); err != nil {
		return money.Zero, domain.Costs{}, err
	}
	e.bus.Put(ctx, bus.Event{Kind: bus.KindPositionUpdate, Payload: bus.PositionUpdatePayload{Position: pos}})

	amount := securitiesOrder.Sub(commission).Sub(tax)
	costs := domain.Costs{Commission: commission, Tax: tax, Total: commission.Add(tax)}
	if err := e.updateUser(ctx, user, order, amount, securitiesOrder); err != nil {
		return money.Zero, domain.Costs{}, err
	}
	return securitiesOrder, costs, nil
}

// updateUser applies the cash-side settlement of a fill and emits the
// asset-update event. Caller must already hold the per-user lock.
func (e *Engine) updateUser(ctx context.Context, user *domain.User, order *domain.Order, amount, securitiesDiff money.Decimal) error {
	switch order.OrderType {
	case domain.OrderTypeBuy:
		user.Cash = user.Cash.Sub(amount)
		user.AvailableCash = user.AvailableCash.Add(order.FrozenAmount.Sub(amount))
		user.Securities = user.Securities.Add(securitiesDiff)
	case domain.OrderTypeSell:
		user.Cash = user.Cash.Add(amount)
		user.AvailableCash = user.AvailableCash.Add(amount)
		user.Securities = user.Securities.Sub(securitiesDiff)
		if user.Securities.LessThan(money.Zero) {
			user.Securities = money.Zero
		}
	}
	user.Assets = user.Cash.Add(user.Securities)
	if err := e.userCache.Set(ctx, user); err != nil {
		return err
	}
	e.bus.Put(ctx, bus.Event{Kind: bus.KindUserUpdateAssets, Payload: bus.UserUpdateAssetsPayload{User: user}})
	return nil
}

// ListPositions returns userID's cached positions, as served by GET
// /position/.
func (e *Engine) ListPositions(ctx context.Context, userID string) ([]*domain.Position, error) {
	return e.posCache.ListByUser(ctx, userID)
}

// LiquidateUserPosition refreshes CurrentPrice/Profit for every position of
// user. When refreshVolume is true (market close), it also releases T+1
// locks by setting AvailableVolume to Volume, and deletes positions that
// have dropped to zero volume.
func (e *Engine) LiquidateUserPosition(ctx context.Context, userID string, refreshVolume bool) error {
	positions, err := e.posCache.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, pos := range positions {
		q, err := e.quotes.GetTicks(ctx, pos.Symbol+"."+string(pos.Exchange))
		if err != nil {
			e.log.Warn().Str("user", userID).Str("symbol", pos.Symbol).Err(err).Msg("liquidation quote fetch failed")
			continue
		}
		pos.CurrentPrice = q.Current
		pos.Profit = q.Current.Sub(pos.Cost).Mul(money.FromInt(pos.Volume))
		if refreshVolume {
			pos.AvailableVolume = pos.Volume
		}
		if refreshVolume && pos.Volume == 0 {
			if err := e.posCache.Delete(ctx, pos.User, pos.Symbol, pos.Exchange); err != nil {
				return err
			}
			e.bus.Put(ctx, bus.Event{Kind: bus.KindPositionClear, Payload: bus.PositionClearPayload{User: pos.User, Symbol: pos.Symbol, Exchange: pos.Exchange}})
			continue
		}
		if err := e.posCache.Set(ctx, pos); err != nil {
			return err
		}
	}
	return nil
}

// LiquidateUserProfit recomputes a user's Securities and Assets from its
// current position marks. When refreshFrozen is true (market close), it
// also resets AvailableCash to Cash, clearing any stale freeze.
func (e *Engine) LiquidateUserProfit(ctx context.Context, userID string, refreshFrozen bool) error {
	user, err := e.userCache.Get(ctx, userID)
	if err != nil {
		return err
	}
	positions, err := e.posCache.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	securities := money.Zero
	for _, pos := range positions {
		securities = securities.Add(pos.CurrentPrice.Mul(money.FromInt(pos.Volume)))
	}
	user.Securities = securities
	user.Assets = user.Cash.Add(securities)
	if refreshFrozen {
		user.AvailableCash = user.Cash
	}
	return e.userCache.Set(ctx, user)
}

// UpdateUserAssetsRecord upserts today's snapshot row for userID. Not
// implemented here: the caller (main engine's market-close trigger) has
// the durable repository handle and performs the write; this package only
// computes the numbers via LiquidateUserProfit.

// LoadDBDataToCache performs the startup reconciliation pass: if the cache
// reports it needs a reload, every active user and its positions are
// copied from the durable store into the cache, and the reload flag is
// cleared.
func (e *Engine) LoadDBDataToCache(ctx context.Context) error {
	reload, err := e.userCache.IsReload(ctx)
	if err != nil {
		return err
	}
	if !reload {
		return nil
	}
	users, err := e.userRepo.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if err := e.userCache.Set(ctx, u); err != nil {
			return err
		}
		positions, err := e.posRepo.ListByUser(ctx, u.ID)
		if err != nil {
			return err
		}
		for _, p := range positions {
			if err := e.posCache.Set(ctx, p); err != nil {
				return err
			}
		}
	}
	return e.userCache.ClearReload(ctx)
}

// FlushCacheToDB performs the shutdown reconciliation pass: every cached
// user and position is written back to the durable store, and the reload
// flag is set so the next startup knows the cache is cold.
func (e *Engine) FlushCacheToDB(ctx context.Context) error {
	ids, err := e.userCache.Keys(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		u, err := e.userCache.Get(ctx, id)
		if err != nil {
			continue
		}
		if err := e.userRepo.Update(ctx, u); err != nil {
			e.log.Error().Str("user", id).Err(err).Msg("flush user to db failed")
		}
		cached, err := e.posCache.ListByUser(ctx, id)
		if err != nil {
			continue
		}
		inCache := make(map[string]struct{}, len(cached))
		for _, p := range cached {
			inCache[p.Key()] = struct{}{}
			if err := e.posRepo.Upsert(ctx, p); err != nil {
				e.log.Error().Str("user", id).Str("symbol", p.Symbol).Err(err).Msg("flush position to db failed")
			}
		}

		durable, err := e.posRepo.ListByUser(ctx, id)
		if err != nil {
			e.log.Error().Str("user", id).Err(err).Msg("list durable positions for flush failed")
			continue
		}
		for _, p := range durable {
			if _, ok := inCache[p.Key()]; ok {
				continue
			}
			if err := e.posRepo.Delete(ctx, p.User, p.Symbol, p.Exchange); err != nil {
				e.log.Error().Str("user", id).Str("symbol", p.Symbol).Err(err).Msg("delete stale durable position failed")
			}
		}
	}
	return e.userCache.SetReload(ctx)
}
