package operating

import (
	"errors"

	"github.com/ksred/fundledger/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// DB exposes the underlying gorm handle for transaction scoping
func (d *Database) DB() *gorm.DB {
	return d.db
}

func (d *Database) GetResultByDate(date string) (*DailyOperatingResult, error) {
	var result DailyOperatingResult
	if err := d.db.Where("date = ?", date).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (d *Database) ListResults() ([]DailyOperatingResult, error) {
	var results []DailyOperatingResult
	if err := d.db.Order("date DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// activeInvestors returns the engine's candidate set, read through the
// caller's transaction so apply sees the same snapshot as its writes.
func activeInvestors(tx *gorm.DB) ([]types.Investor, error) {
	var investors []types.Investor
	err := tx.Where("status = ?", types.InvestorActive).
		Order("created_at ASC").
		Find(&investors).Error
	if err != nil {
		return nil, err
	}
	return investors, nil
}
