package database

import (
	"fmt"

	"github.com/PettyFoot/stonks-two-sub010/internal/database/migrations"
	"github.com/PettyFoot/stonks-two-sub010/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate schemas
	if err := db.AutoMigrate(
		&types.Order{},
		&types.Trade{},
	); err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddOrderLinkageIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.AddTradeKeyIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
