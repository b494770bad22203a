package fees

import (
	"errors"
	"time"

	"github.com/ksred/fundledger/internal/types"
	"github.com/shopspring/decimal"
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

func (d *Database) GetFee(feeID string) (*TradingFee, error) {
	var fee TradingFee
	if err := d.db.Where("fee_id = ?", feeID).First(&fee).Error; err != nil {
		return nil, err
	}
	return &fee, nil
}

// liveFee returns the unvoided fee covering the exact period, if any.
// Takes the gorm handle directly so apply can read through its own
// transaction.
func liveFee(tx *gorm.DB, investorID, periodStart, periodEnd string) (*TradingFee, error) {
	var fee TradingFee
	err := tx.Where("investor_id = ? AND period_start = ? AND period_end = ? AND voided_at IS NULL",
		investorID, periodStart, periodEnd).
		First(&fee).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &fee, nil
}

func (d *Database) ListInvestorFees(investorID string) ([]TradingFee, error) {
	var fees []TradingFee
	err := d.db.Where("investor_id = ?", investorID).
		Order("period_start DESC, id DESC").
		Find(&fees).Error
	if err != nil {
		return nil, err
	}
	return fees, nil
}

// OperatingResultEntries returns the completed OPERATING_RESULT
// entries effective within [from, to).
func (d *Database) OperatingResultEntries(investorID string, from, to time.Time) ([]types.LedgerEntry, error) {
	var entries []types.LedgerEntry
	err := d.db.Where(
		"investor_id = ? AND entry_type = ? AND status = ? AND effective_at >= ? AND effective_at < ?",
		investorID, types.EntryOperatingResult, types.EntryCompleted, from, to).
		Order("effective_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// GetEntryByID fetches the ledger entry a fee claims to have created.
func (d *Database) GetEntryByID(entryID string) (*types.LedgerEntry, error) {
	var entry types.LedgerEntry
	if err := d.db.Where("entry_id = ?", entryID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// FindMatchingFeeEntry looks for a TRADING_FEE entry of the given
// amount within the tolerance window around appliedAt. Legacy fallback
// for fee rows recorded before LedgerEntryID existed.
func (d *Database) FindMatchingFeeEntry(investorID string, amount decimal.Decimal, appliedAt time.Time, tolerance time.Duration) (*types.LedgerEntry, error) {
	var entry types.LedgerEntry
	err := d.db.Where(
		"investor_id = ? AND entry_type = ? AND amount = ? AND effective_at BETWEEN ? AND ?",
		investorID, types.EntryTradingFee, amount,
		appliedAt.Add(-tolerance), appliedAt.Add(tolerance)).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}
