package migrations

import (
	"gorm.io/gorm"
)

// AddTradeKeyIndexes creates the indexes used to replace trades per group and
// match trades across rebuilds by their deterministic key.
func AddTradeKeyIndexes(db *gorm.DB) error {
	indexes := []string{
		// Composite index for group-scoped replacement
		`CREATE INDEX IF NOT EXISTS idx_trades_user_group
		 ON trades(user_id, symbol, account_key)`,

		// Index for status filtering (open-position lookups)
		`CREATE INDEX IF NOT EXISTS idx_trades_user_status
		 ON trades(user_id, status)`,

		// Index for the annotation carry-over key
		`CREATE INDEX IF NOT EXISTS idx_trades_entry_order
		 ON trades(entry_order_id)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
