package ledger

import (
	"errors"
	"time"

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

// GetOrCreatePortfolio returns the investor's portfolio, creating an
// empty one on first use. Portfolios are created lazily on the first
// ledger operation rather than with the investor.
func GetOrCreatePortfolio(tx *gorm.DB, investorID string) (*types.Portfolio, error) {
	var portfolio types.Portfolio
	err := tx.Where("investor_id = ?", investorID).First(&portfolio).Error
	if err == nil {
		return &portfolio, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	portfolio = types.Portfolio{
		InvestorID: investorID,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := tx.Create(&portfolio).Error; err != nil {
		return nil, err
	}
	return &portfolio, nil
}

func (d *Database) GetPortfolio(investorID string) (*types.Portfolio, error) {
	var portfolio types.Portfolio
	if err := d.db.Where("investor_id = ?", investorID).First(&portfolio).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &portfolio, nil
}

// CompletedEntries returns all completed entries for an investor in
// fold order: effective timestamp first, insertion order as tiebreak.
func CompletedEntries(tx *gorm.DB, investorID string) ([]types.LedgerEntry, error) {
	var entries []types.LedgerEntry
	err := tx.Where("investor_id = ? AND status = ?", investorID, types.EntryCompleted).
		Order("effective_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CompletedEntriesAsOf returns completed entries effective at or before
// the cutoff, in fold order.
func CompletedEntriesAsOf(tx *gorm.DB, investorID string, cutoff time.Time) ([]types.LedgerEntry, error) {
	var entries []types.LedgerEntry
	err := tx.Where("investor_id = ? AND status = ? AND effective_at <= ?",
		investorID, types.EntryCompleted, cutoff).
		Order("effective_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (d *Database) GetEntry(entryID string) (*types.LedgerEntry, error) {
	var entry types.LedgerEntry
	if err := d.db.Where("entry_id = ?", entryID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (d *Database) GetInvestorEntries(investorID string) ([]types.LedgerEntry, error) {
	var entries []types.LedgerEntry
	err := d.db.Where("investor_id = ?", investorID).
		Order("effective_at DESC, id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (d *Database) GetPendingEntriesDue(now time.Time) ([]types.LedgerEntry, error) {
	var entries []types.LedgerEntry
	err := d.db.Where("status = ? AND effective_at <= ?", types.EntryPending, now).
		Order("effective_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
