package domain

import (
	"time"

	"github.com/hyu9999/paper-trading-1/internal/money"
)

// User is a paper-trading account. Cash and securities are kept in
// fixed-point decimal to avoid drift across repeated settlement.
type User struct {
	ID            string        `json:"id"`
	Capital       money.Decimal `json:"capital"`
	Cash          money.Decimal `json:"cash"`
	AvailableCash money.Decimal `json:"availableCash"`
	Securities    money.Decimal `json:"securities"`
	Assets        money.Decimal `json:"assets"`
	Commission    money.Decimal `json:"commission"`
	TaxRate       money.Decimal `json:"taxRate"`
	Slippage      money.Decimal `json:"slippage"`
	Status        UserStatus    `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Position is one user's holding in a single (symbol, exchange).
type Position struct {
	User            string        `json:"user"`
	Symbol          string        `json:"symbol"`
	Exchange        Exchange      `json:"exchange"`
	Volume          int64         `json:"volume"`
	AvailableVolume int64         `json:"availableVolume"`
	Cost            money.Decimal `json:"cost"`
	CurrentPrice    money.Decimal `json:"currentPrice"`
	Profit          money.Decimal `json:"profit"`
	FirstBuyDate    time.Time     `json:"firstBuyDate"`
	LastSellDate    *time.Time    `json:"lastSellDate,omitempty"`
}

// Key is the composite identity used across caches and repositories.
func (p Position) Key() string {
	return p.User + ":" + p.Symbol + ":" + string(p.Exchange)
}

// Order is a single order submission and its lifecycle state.
type Order struct {
	ID                string        `json:"id"`
	EntrustID         string        `json:"entrustId"`
	User              string        `json:"user"`
	Symbol            string        `json:"symbol"`
	Exchange          Exchange      `json:"exchange"`
	Volume            int64         `json:"volume"`
	Price             money.Decimal `json:"price"`
	PriceType         PriceType     `json:"priceType"`
	OrderType         OrderType     `json:"orderType"`
	TradeType         TradeType     `json:"tradeType"`
	Status            OrderStatus   `json:"status"`
	TradedVolume      int64         `json:"tradedVolume"`
	SoldPrice         money.Decimal `json:"soldPrice"`
	DealTime          *time.Time    `json:"dealTime,omitempty"`
	FrozenAmount      money.Decimal `json:"frozenAmount"`
	FrozenStockVolume int64         `json:"frozenStockVolume"`
	OrderDate         time.Time     `json:"orderDate"`
	CanceledEntrustID string        `json:"canceledEntrustId,omitempty"`
}

// IsMarket reports whether the order fills at the current top-of-book
// instead of a caller-supplied limit price.
func (o Order) IsMarket() bool {
	return o.PriceType == PriceTypeMarket
}

// Costs breaks down the fees charged against a single fill.
type Costs struct {
	Commission money.Decimal `json:"commission"`
	Tax        money.Decimal `json:"tax"`
	Total      money.Decimal `json:"total"`
}

// Statement is an immutable trade record, one per terminal filled order.
type Statement struct {
	ID            string        `json:"id"`
	EntrustID     string        `json:"entrustId"`
	User          string        `json:"user"`
	Symbol        string        `json:"symbol"`
	Exchange      Exchange      `json:"exchange"`
	TradeCategory TradeCategory `json:"tradeCategory"`
	Volume        int64         `json:"volume"`
	SoldPrice     money.Decimal `json:"soldPrice"`
	Amount        money.Decimal `json:"amount"`
	Commission    money.Decimal `json:"commission"`
	Tax           money.Decimal `json:"tax"`
	Total         money.Decimal `json:"total"`
	DealTime      time.Time     `json:"dealTime"`
}

// UserAssetsRecord is a daily snapshot of one user's asset composition.
type UserAssetsRecord struct {
	ID         string        `json:"id"`
	User       string        `json:"user"`
	Date       time.Time     `json:"date"`
	Assets     money.Decimal `json:"assets"`
	Cash       money.Decimal `json:"cash"`
	Securities money.Decimal `json:"securities"`
}

// PriceLevel is one rung of the order book (price, volume at that price).
type PriceLevel struct {
	Price  money.Decimal `json:"price"`
	Volume int64         `json:"volume"`
}

// Quotes is a level-1 snapshot for one symbol, as delivered by the
// external quote provider.
type Quotes struct {
	StockCode string        `json:"stockCode"`
	Current   money.Decimal `json:"current"`
	Open      money.Decimal `json:"open"`
	High      money.Decimal `json:"high"`
	Low       money.Decimal `json:"low"`
	LastClose money.Decimal `json:"lastClose"`
	Bid       [5]PriceLevel `json:"bid"`
	Ask       [5]PriceLevel `json:"ask"`
	Timestamp time.Time     `json:"timestamp"`
}

// Bid1 returns the best bid price, or zero if the book has no bids (lower
// price-limit condition).
func (q Quotes) Bid1() money.Decimal { return q.Bid[0].Price }

// Ask1 returns the best ask price, or zero if the book has no asks (upper
// price-limit condition).
func (q Quotes) Ask1() money.Decimal { return q.Ask[0].Price }

// AuthCredential backs password-based login; not touched by the core
// engine, only by the REST façade's auth handlers.
type AuthCredential struct {
	UserID       string    `json:"userId"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// JobRun records one firing of a scheduler trigger for audit purposes.
type JobRun struct {
	JobName    string    `json:"jobName"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
}
