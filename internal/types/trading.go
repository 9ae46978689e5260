package types

import (
	"time"

	"gorm.io/gorm"
)

// Order sides as delivered by the ingestion layer.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Trade directions.
const (
	SideLong  = "LONG"
	SideShort = "SHORT"
)

// Trade statuses.
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// Order is a single normalized broker execution. Orders are created by the
// ingestion layer and never mutated afterwards, except for the UsedInTrade and
// TradeID linkage fields which are owned by the reconciliation engine.
type Order struct {
	gorm.Model     `json:"-"`
	OrderID        string    `gorm:"uniqueIndex" json:"order_id"`
	UserID         string    `gorm:"index" json:"user_id"`
	AccountKey     string    `json:"account_key"`
	Symbol         string    `json:"symbol"`
	Side           string    `json:"side"` // BUY or SELL
	Quantity       float64   `json:"quantity"`
	Price          float64   `json:"price"`
	ExecutedAt     time.Time `json:"executed_at"`
	ImportSequence int64     `json:"import_sequence"`
	Commission     float64   `json:"commission"`
	Fees           float64   `json:"fees"`
	ImportBatchID  string    `gorm:"index" json:"import_batch_id"`
	UsedInTrade    bool      `json:"used_in_trade"`
	TradeID        *string   `json:"trade_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Trade is one reconstructed round-trip position, built from the orders that
// opened and closed it. A trade stays OPEN until its position returns to flat.
//
// EntryOrderID is the id of the first entry order and, together with Symbol and
// AccountKey, forms the deterministic key used to match trades across rebuilds
// so user annotations survive recomputation.
//
// OrderIDs holds the ids of every constituent order as a JSON array. An order
// that flips a position belongs to two trades, so the single TradeID pointer on
// the order cannot recover constituency on its own.
type Trade struct {
	gorm.Model       `json:"-"`
	TradeRef         string     `gorm:"uniqueIndex" json:"trade_ref"`
	UserID           string     `gorm:"index" json:"user_id"`
	Symbol           string     `json:"symbol"`
	AccountKey       string     `json:"account_key"`
	Side             string     `json:"side"` // LONG or SHORT
	EntryPrice       float64    `json:"entry_price"`
	ExitPrice        *float64   `json:"exit_price,omitempty"`
	Quantity         float64    `json:"quantity"`
	Pnl              float64    `json:"pnl"`
	Commission       float64    `json:"commission"`
	Fees             float64    `json:"fees"`
	Status           string     `json:"status"` // OPEN or CLOSED
	OpenedAt         time.Time  `json:"opened_at"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
	HoldingPeriodSec int64      `json:"holding_period_sec"`
	MarketSession    string     `json:"market_session"`
	EntryOrderID     string     `json:"entry_order_id"`
	OrderIDs         string     `json:"order_ids"`        // JSON array of order ids
	ImportBatchIDs   string     `json:"import_batch_ids"` // JSON array of batch ids
	Notes            string     `json:"notes"`
	Tags             string     `json:"tags"` // JSON array, user supplied
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
