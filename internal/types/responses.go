package types

import "time"

// RebuildResponse is returned by the full and incremental rebuild endpoints.
type RebuildResponse struct {
	UserID        string       `json:"user_id"`
	ImportBatchID string       `json:"import_batch_id,omitempty"`
	Trades        []Trade      `json:"trades"`
	Diagnostics   []Diagnostic `json:"diagnostics,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

// Diagnostic records one order that was skipped during matching.
type Diagnostic struct {
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	Symbol     string `json:"symbol"`
	AccountKey string `json:"account_key"`
	Reason     string `json:"reason"`
}

// DeletionValidationResponse is the result of a deletion pre-check.
type DeletionValidationResponse struct {
	CanDelete        bool     `json:"can_delete"`
	SharedOrderCount int      `json:"shared_order_count"`
	AffectedTrades   []string `json:"affected_trades,omitempty"`
}

// DeletionResponse reports what an executed deletion removed. OrdersDeleted
// counts the orders whose trade linkage was cleared; the order rows themselves
// are kept.
type DeletionResponse struct {
	TradesDeleted int `json:"trades_deleted"`
	OrdersDeleted int `json:"orders_deleted"`
}

// ImportResponse is returned after a batch of normalized orders is ingested.
type ImportResponse struct {
	ImportBatchID string    `json:"import_batch_id"`
	OrdersCreated int       `json:"orders_created"`
	Timestamp     time.Time `json:"timestamp"`
}
