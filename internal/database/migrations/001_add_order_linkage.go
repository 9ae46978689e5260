package migrations

import (
	"gorm.io/gorm"
)

// AddOrderLinkageIndexes creates the indexes the matching and rebuild paths
// query orders by.
func AddOrderLinkageIndexes(db *gorm.DB) error {
	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Composite index for per-group replays
		`CREATE INDEX IF NOT EXISTS idx_orders_user_group
		 ON orders(user_id, symbol, account_key)`,

		// Index for incremental rebuild batch lookups
		`CREATE INDEX IF NOT EXISTS idx_orders_user_batch
		 ON orders(user_id, import_batch_id)`,

		// Composite index matching the chronological replay sort
		`CREATE INDEX IF NOT EXISTS idx_orders_replay_order
		 ON orders(user_id, executed_at, import_sequence)`,

		// Index for linkage resets and integrity checks
		`CREATE INDEX IF NOT EXISTS idx_orders_trade_id
		 ON orders(trade_id)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
