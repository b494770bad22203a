package database

import (
	"fmt"

	"github.com/ksred/fundledger/internal/database/migrations"
	"github.com/ksred/fundledger/internal/fees"
	"github.com/ksred/fundledger/internal/operating"
	"github.com/ksred/fundledger/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	if path == "" {
		path = "fundledger.db"
	}

	// TranslateError turns the driver's unique-constraint failures into
	// gorm.ErrDuplicatedKey so the engines can map race losers to their
	// typed business errors.
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddFeeLedgerLink(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&types.Investor{},
		&types.Portfolio{},
		&types.LedgerEntry{},
		&operating.DailyOperatingResult{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// NewTestDatabase returns an isolated in-memory database for tests.
func NewTestDatabase() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	// A pooled connection would see a different empty memory database.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&types.Investor{},
		&types.Portfolio{},
		&types.LedgerEntry{},
		&operating.DailyOperatingResult{},
		&fees.TradingFee{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
