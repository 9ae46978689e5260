package orders

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

// CreateBatch persists one import batch of orders atomically.
func (d *Database) CreateBatch(batch []types.Order) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for i := range batch {
		if err := tx.Create(&batch[i]).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to create order %s: %w", batch[i].OrderID, err)
		}
	}

	return tx.Commit().Error
}

// GetOrdersByUser returns all of a user's orders in chronological order.
func (d *Database) GetOrdersByUser(userID string) ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Where("user_id = ?", userID).
		Order("executed_at ASC, import_sequence ASC").
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch orders: %w", err)
	}
	return orders, nil
}

// GetOrdersByBatch returns the orders ingested in one import batch.
func (d *Database) GetOrdersByBatch(userID, batchID string) ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Where("user_id = ? AND import_batch_id = ?", userID, batchID).
		Order("executed_at ASC, import_sequence ASC").
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch batch orders: %w", err)
	}
	return orders, nil
}

// MaxImportSequence returns the highest import sequence assigned to the user's
// orders so far, 0 when none exist.
func (d *Database) MaxImportSequence(userID string) (int64, error) {
	var max int64
	if err := d.db.Model(&types.Order{}).
		Where("user_id = ?", userID).
		Select("COALESCE(MAX(import_sequence), 0)").
		Scan(&max).Error; err != nil {
		return 0, fmt.Errorf("failed to fetch max import sequence: %w", err)
	}
	return max, nil
}
