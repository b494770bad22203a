package ledger

import (
	"testing"
	"time"

	"github.com/ksred/fundledger/internal/types"
	"github.com/ksred/fundledger/pkg/money"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&types.Investor{}, &types.Portfolio{}, &types.LedgerEntry{}))
	return db
}

func TestProcessPendingEntries(t *testing.T) {
	db := openTestDB(t)
	processor := NewProcessor(NewDatabase(db))

	require.NoError(t, db.Create(&types.Investor{
		InvestorID: "INV_pend",
		Status:     types.InvestorActive,
	}).Error)

	// One due, one still in the future
	require.NoError(t, db.Create(&types.LedgerEntry{
		EntryID:     "LED_due",
		InvestorID:  "INV_pend",
		EntryType:   types.EntryDeposit,
		Amount:      money.MustFromString("300"),
		Status:      types.EntryPending,
		EffectiveAt: time.Now().Add(-time.Hour),
	}).Error)
	require.NoError(t, db.Create(&types.LedgerEntry{
		EntryID:     "LED_later",
		InvestorID:  "INV_pend",
		EntryType:   types.EntryDeposit,
		Amount:      money.MustFromString("700"),
		Status:      types.EntryPending,
		EffectiveAt: time.Now().Add(48 * time.Hour),
	}).Error)

	require.NoError(t, processor.processPendingEntries())

	var due, later types.LedgerEntry
	require.NoError(t, db.Where("entry_id = ?", "LED_due").First(&due).Error)
	require.NoError(t, db.Where("entry_id = ?", "LED_later").First(&later).Error)

	require.Equal(t, types.EntryCompleted, due.Status)
	require.True(t, due.NewBalance.Equal(money.MustFromString("300")))
	require.Equal(t, types.EntryPending, later.Status)

	var portfolio types.Portfolio
	require.NoError(t, db.Where("investor_id = ?", "INV_pend").First(&portfolio).Error)
	require.True(t, portfolio.CurrentBalance.Equal(money.MustFromString("300")))
}

func TestProcessPendingEntriesNoWork(t *testing.T) {
	db := openTestDB(t)
	processor := NewProcessor(NewDatabase(db))

	require.NoError(t, processor.processPendingEntries())
}
