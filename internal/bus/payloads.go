package bus

import (
	"time"

	"github.com/hyu9999/paper-trading-1/internal/domain"
	"github.com/hyu9999/paper-trading-1/internal/money"
)

// OrderCreatePayload carries a freshly allocated order for persistence.
type OrderCreatePayload struct {
	Order *domain.Order
}

// OrderUpdatePayload carries the full post-fill order fields to persist.
type OrderUpdatePayload struct {
	Order *domain.Order
}

// OrderUpdateStatusPayload carries a lifecycle transition keyed by
// entrust-id.
type OrderUpdateStatusPayload struct {
	EntrustID string
	Status    domain.OrderStatus
}

// OrderUpdateFrozenPayload signals that an order's frozen reservation has
// been released and should be cleared in the durable record.
type OrderUpdateFrozenPayload struct {
	EntrustID string
}

// StatementCreatePayload carries the data needed to write one statement
// row for a fill.
type StatementCreatePayload struct {
	Order          *domain.Order
	SecuritiesDiff money.Decimal
	Costs          domain.Costs
}

// UserUpdateAssetsPayload signals that a user's cash/securities/assets
// triple has changed and should be persisted.
type UserUpdateAssetsPayload struct {
	User *domain.User
}

// PositionCreatePayload signals a brand new position row.
type PositionCreatePayload struct {
	Position *domain.Position
}

// PositionUpdatePayload signals an existing position row changed.
type PositionUpdatePayload struct {
	Position *domain.Position
}

// PositionClearPayload signals a position dropped to zero volume and
// should be deleted.
type PositionClearPayload struct {
	User     string
	Symbol   string
	Exchange domain.Exchange
}

// MarketClosePayload fires once per trading day at session end.
type MarketClosePayload struct {
	Date time.Time
}

// MarketOpenPayload fires once per trading day at session start.
type MarketOpenPayload struct {
	Date time.Time
}

// LogPayload is a generic structured log line routed through the bus so
// handlers can be observed the same way order events are.
type LogPayload struct {
	Level   string
	Message string
}
