package investor

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

func (d *Database) CreateInvestor(investor *types.Investor) error {
	return d.db.Create(investor).Error
}

func (d *Database) GetInvestor(investorID string) (*types.Investor, error) {
	var investor types.Investor
	if err := d.db.Where("investor_id = ?", investorID).First(&investor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &investor, nil
}

func (d *Database) UpdateInvestor(investor *types.Investor) error {
	return d.db.Save(investor).Error
}

func (d *Database) ListInvestors() ([]types.Investor, error) {
	var investors []types.Investor
	if err := d.db.Order("created_at ASC").Find(&investors).Error; err != nil {
		return nil, err
	}
	return investors, nil
}
