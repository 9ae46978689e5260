package integrity

import (
	"fmt"

	"github.com/PettyFoot/stonks-two-sub010/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GetTradesByRefs returns the user's trades matching the given refs. Every
// ref must resolve; a missing one yields gorm.ErrRecordNotFound.
func (d *Database) GetTradesByRefs(userID string, tradeRefs []string) ([]types.Trade, error) {
	var trades []types.Trade
	if err := d.db.Where("user_id = ? AND trade_ref IN ?", userID, tradeRefs).
		Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", err)
	}
	if len(trades) != len(tradeRefs) {
		return nil, gorm.ErrRecordNotFound
	}
	return trades, nil
}

// GetRemainingTrades returns all of the user's trades outside the given set.
func (d *Database) GetRemainingTrades(userID string, excludeRefs []string) ([]types.Trade, error) {
	var trades []types.Trade
	if err := d.db.Where("user_id = ? AND trade_ref NOT IN ?", userID, excludeRefs).
		Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch remaining trades: %w", err)
	}
	return trades, nil
}

// DeleteTradesAndUnlink removes the trade rows and clears the linkage on
// their constituent orders in one transaction.
func (d *Database) DeleteTradesAndUnlink(userID string, tradeRefs, orderIDs []string) (int, int, error) {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return 0, 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// Hard delete; the unique trade_ref index must be reusable by a later
	// rebuild.
	res := tx.Unscoped().Where("user_id = ? AND trade_ref IN ?", userID, tradeRefs).Delete(&types.Trade{})
	if res.Error != nil {
		tx.Rollback()
		return 0, 0, fmt.Errorf("failed to delete trades: %w", res.Error)
	}
	tradesDeleted := int(res.RowsAffected)

	ordersDeleted := 0
	if len(orderIDs) > 0 {
		res = tx.Model(&types.Order{}).
			Where("user_id = ? AND order_id IN ?", userID, orderIDs).
			Updates(map[string]interface{}{"used_in_trade": false, "trade_id": nil})
		if res.Error != nil {
			tx.Rollback()
			return 0, 0, fmt.Errorf("failed to unlink orders: %w", res.Error)
		}
		ordersDeleted = int(res.RowsAffected)
	}

	if err := tx.Commit().Error; err != nil {
		return 0, 0, err
	}
	return tradesDeleted, ordersDeleted, nil
}
