package returns_test

import (
	"testing"
	"time"

	"github.com/ksred/fundledger/internal/database"
	"github.com/ksred/fundledger/internal/returns"
	"github.com/ksred/fundledger/internal/types"
	"github.com/ksred/fundledger/pkg/money"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*returns.Service, *gorm.DB) {
	t.Helper()

	db, err := database.NewTestDatabase()
	require.NoError(t, err)

	return returns.NewService(db), db
}

func seedInvestor(t *testing.T, db *gorm.DB, id string) {
	t.Helper()

	require.NoError(t, db.Create(&types.Investor{
		InvestorID:          id,
		Status:              types.InvestorActive,
		TradingFeeFrequency: "MONTHLY",
	}).Error)
}

func seedEntry(t *testing.T, db *gorm.DB, investorID, entryType, amount, effective string) {
	t.Helper()

	at, err := time.ParseInLocation("2006-01-02", effective, time.Local)
	require.NoError(t, err)

	require.NoError(t, db.Create(&types.LedgerEntry{
		EntryID:     "LED_" + investorID + "_" + effective + "_" + entryType,
		InvestorID:  investorID,
		EntryType:   entryType,
		Amount:      money.MustFromString(amount),
		Status:      types.EntryCompleted,
		EffectiveAt: at,
	}).Error)
}

func day(s string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		panic(err)
	}
	return d
}

// Two 10% sub-periods around a mid-window deposit chain-link to 21%,
// even though the simple return on invested capital would differ.
func TestComputeChainLinksAroundDeposit(t *testing.T) {
	service, db := newTestService(t)
	seedInvestor(t, db, "INV_twr")

	seedEntry(t, db, "INV_twr", types.EntryDeposit, "1000", "2025-01-01")
	seedEntry(t, db, "INV_twr", types.EntryOperatingResult, "100", "2025-01-10")
	seedEntry(t, db, "INV_twr", types.EntryDeposit, "1100", "2025-01-15")
	seedEntry(t, db, "INV_twr", types.EntryOperatingResult, "220", "2025-01-20")

	resp, err := service.Compute("INV_twr", time.Time{}, day("2025-01-31"))
	require.NoError(t, err)

	require.True(t, resp.TWRPercent.Equal(money.MustFromString("21")),
		"twr = %s", resp.TWRPercent)
	require.True(t, resp.PnlUSD.Equal(money.MustFromString("320")))

	require.NotNil(t, resp.EffectiveStartAt)
	require.True(t, resp.EffectiveStartAt.Equal(day("2025-01-01")))

	require.Len(t, resp.SubPeriods, 3)
	require.True(t, resp.SubPeriods[1].ReturnPercent.Equal(money.MustFromString("10")))
	require.True(t, resp.SubPeriods[2].ReturnPercent.Equal(money.MustFromString("10")))
}

func TestComputeWithdrawalCashflow(t *testing.T) {
	service, db := newTestService(t)
	seedInvestor(t, db, "INV_wd")

	seedEntry(t, db, "INV_wd", types.EntryDeposit, "1000", "2025-02-01")
	seedEntry(t, db, "INV_wd", types.EntryOperatingResult, "100", "2025-02-10")
	seedEntry(t, db, "INV_wd", types.EntryWithdrawal, "550", "2025-02-15")
	seedEntry(t, db, "INV_wd", types.EntryOperatingResult, "55", "2025-02-20")

	resp, err := service.Compute("INV_wd", time.Time{}, day("2025-02-28"))
	require.NoError(t, err)

	// 10% before and after the withdrawal chain-link to 21%
	require.True(t, resp.TWRPercent.Equal(money.MustFromString("21")),
		"twr = %s", resp.TWRPercent)
	// PnL is the raw operating gain, unaffected by the cash flows
	require.True(t, resp.PnlUSD.Equal(money.MustFromString("155")))
}

func TestComputeWindow(t *testing.T) {
	service, db := newTestService(t)
	seedInvestor(t, db, "INV_win")

	seedEntry(t, db, "INV_win", types.EntryDeposit, "1000", "2025-03-01")
	seedEntry(t, db, "INV_win", types.EntryOperatingResult, "100", "2025-03-10")
	seedEntry(t, db, "INV_win", types.EntryOperatingResult, "110", "2025-03-20")

	// Only the first gain falls inside the window
	resp, err := service.Compute("INV_win", time.Time{}, day("2025-03-15"))
	require.NoError(t, err)
	require.True(t, resp.TWRPercent.Equal(money.MustFromString("10")))
	require.True(t, resp.PnlUSD.Equal(money.MustFromString("100")))

	// A later window starts from the carried-in balance
	resp, err = service.Compute("INV_win", day("2025-03-15"), day("2025-03-31"))
	require.NoError(t, err)
	require.True(t, resp.TWRPercent.Equal(money.MustFromString("10")))
	require.True(t, resp.PnlUSD.Equal(money.MustFromString("110")))
}

func TestComputeFlatPortfolio(t *testing.T) {
	service, db := newTestService(t)
	seedInvestor(t, db, "INV_flat")

	seedEntry(t, db, "INV_flat", types.EntryDeposit, "1000", "2025-04-01")

	resp, err := service.Compute("INV_flat", time.Time{}, time.Time{})
	require.NoError(t, err)

	require.True(t, resp.TWRPercent.IsZero())
	require.True(t, resp.PnlUSD.IsZero())
}

func TestComputeEmptyLedger(t *testing.T) {
	service, db := newTestService(t)
	seedInvestor(t, db, "INV_empty")

	resp, err := service.Compute("INV_empty", time.Time{}, time.Time{})
	require.NoError(t, err)

	require.Nil(t, resp.EffectiveStartAt)
	require.True(t, resp.TWRPercent.IsZero())
	require.Empty(t, resp.SubPeriods)
}

func TestComputeUnknownInvestor(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Compute("INV_ghost", time.Time{}, time.Time{})
	require.ErrorIs(t, err, types.ErrInvestorNotFound)
}

func TestComputePendingEntriesExcluded(t *testing.T) {
	service, db := newTestService(t)
	seedInvestor(t, db, "INV_pend")

	seedEntry(t, db, "INV_pend", types.EntryDeposit, "1000", "2025-05-01")
	seedEntry(t, db, "INV_pend", types.EntryOperatingResult, "100", "2025-05-10")

	require.NoError(t, db.Create(&types.LedgerEntry{
		EntryID:     "LED_pending",
		InvestorID:  "INV_pend",
		EntryType:   types.EntryDeposit,
		Amount:      money.MustFromString("5000"),
		Status:      types.EntryPending,
		EffectiveAt: day("2025-05-15"),
	}).Error)

	resp, err := service.Compute("INV_pend", time.Time{}, day("2025-05-31"))
	require.NoError(t, err)

	require.True(t, resp.TWRPercent.Equal(money.MustFromString("10")))
	require.True(t, resp.PnlUSD.Equal(money.MustFromString("100")))
}
