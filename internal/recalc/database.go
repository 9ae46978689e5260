package recalc

import (
	"fmt"

	"github.com/PettyFoot/stonks-two-sub010/internal/matching"
	"github.com/PettyFoot/stonks-two-sub010/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GetOrdersByUser returns every order of the user, chronologically sorted.
func (d *Database) GetOrdersByUser(userID string) ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Where("user_id = ?", userID).
		Order("executed_at ASC, import_sequence ASC").
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch orders: %w", err)
	}
	return orders, nil
}

// GetOrdersByGroup returns the full order history of one (symbol, accountKey)
// group, not just the latest batch: backfilled history can reorder
// chronologically, so incremental rebuilds always replay the whole group.
func (d *Database) GetOrdersByGroup(userID, symbol, accountKey string) ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Where("user_id = ? AND symbol = ? AND account_key = ?", userID, symbol, accountKey).
		Order("executed_at ASC, import_sequence ASC").
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch group orders: %w", err)
	}
	return orders, nil
}

// GetOrdersByBatch returns the orders ingested in one import batch.
func (d *Database) GetOrdersByBatch(userID, batchID string) ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Where("user_id = ? AND import_batch_id = ?", userID, batchID).
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch batch orders: %w", err)
	}
	return orders, nil
}

// GetTradesByUser returns all computed trades for the user.
func (d *Database) GetTradesByUser(userID string) ([]types.Trade, error) {
	var trades []types.Trade
	if err := d.db.Where("user_id = ?", userID).
		Order("opened_at ASC").
		Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", err)
	}
	return trades, nil
}

// GetTradesByGroups returns the user's trades belonging to the given groups.
func (d *Database) GetTradesByGroups(userID string, groups []matching.Group) ([]types.Trade, error) {
	var trades []types.Trade
	for _, g := range groups {
		var groupTrades []types.Trade
		if err := d.db.Where("user_id = ? AND symbol = ? AND account_key = ?", userID, g.Symbol, g.AccountKey).
			Order("opened_at ASC").
			Find(&groupTrades).Error; err != nil {
			return nil, fmt.Errorf("failed to fetch group trades: %w", err)
		}
		trades = append(trades, groupTrades...)
	}
	return trades, nil
}

// UpdateTradeAnnotations sets the user-editable fields on one trade and
// returns the updated row.
func (d *Database) UpdateTradeAnnotations(userID, tradeRef, notes, tags string) (*types.Trade, error) {
	result := d.db.Model(&types.Trade{}).
		Where("user_id = ? AND trade_ref = ?", userID, tradeRef).
		Updates(map[string]interface{}{"notes": notes, "tags": tags})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update annotations: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	var trade types.Trade
	if err := d.db.Where("user_id = ? AND trade_ref = ?", userID, tradeRef).First(&trade).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch updated trade: %w", err)
	}
	return &trade, nil
}

// ReplaceTradesForUser swaps the user's entire trade set in one transaction:
// old trades out, new trades in, order linkage rewritten. Either all of it
// commits or none of it does.
func (d *Database) ReplaceTradesForUser(userID string, trades []types.Trade, links map[string]string) error {
	return d.replace(userID, nil, trades, links)
}

// ReplaceTradesForGroups swaps only the given groups' trades and their orders'
// linkage; rows of untouched groups are never written.
func (d *Database) ReplaceTradesForGroups(userID string, groups []matching.Group, trades []types.Trade, links map[string]string) error {
	return d.replace(userID, groups, trades, links)
}

func (d *Database) replace(userID string, groups []matching.Group, trades []types.Trade, links map[string]string) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// Trade rows are rebuild output, not user data, so they are hard deleted:
	// a soft delete would leave the unique trade_ref index occupied by the
	// previous generation.
	if groups == nil {
		if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&types.Trade{}).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to delete trades: %w", err)
		}
		if err := tx.Model(&types.Order{}).Where("user_id = ?", userID).
			Updates(map[string]interface{}{"used_in_trade": false, "trade_id": nil}).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to reset order linkage: %w", err)
		}
	} else {
		for _, g := range groups {
			if err := tx.Unscoped().
				Where("user_id = ? AND symbol = ? AND account_key = ?", userID, g.Symbol, g.AccountKey).
				Delete(&types.Trade{}).Error; err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to delete group trades: %w", err)
			}
			if err := tx.Model(&types.Order{}).
				Where("user_id = ? AND symbol = ? AND account_key = ?", userID, g.Symbol, g.AccountKey).
				Updates(map[string]interface{}{"used_in_trade": false, "trade_id": nil}).Error; err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to reset group order linkage: %w", err)
			}
		}
	}

	for i := range trades {
		if err := tx.Create(&trades[i]).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to create trade %s: %w", trades[i].TradeRef, err)
		}
	}

	for orderID, tradeRef := range links {
		if err := tx.Model(&types.Order{}).Where("order_id = ?", orderID).
			Updates(map[string]interface{}{"used_in_trade": true, "trade_id": tradeRef}).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to link order %s: %w", orderID, err)
		}
	}

	return tx.Commit().Error
}
