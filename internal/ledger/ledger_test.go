package ledger_test

import (
	"testing"
	"time"

	"github.com/ksred/fundledger/internal/database"
	"github.com/ksred/fundledger/internal/ledger"
	"github.com/ksred/fundledger/internal/types"
	"github.com/ksred/fundledger/pkg/money"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*ledger.Service, *gorm.DB) {
	t.Helper()

	db, err := database.NewTestDatabase()
	require.NoError(t, err)

	return ledger.NewService(db), db
}

func seedInvestor(t *testing.T, db *gorm.DB, id string) {
	t.Helper()

	err := db.Create(&types.Investor{
		InvestorID:          id,
		Name:                "Test Investor",
		Email:               id + "@example.com",
		Status:              types.InvestorActive,
		TradingFeeFrequency: "MONTHLY",
		TradingFeePercent:   money.MustFromString("30"),
	}).Error
	require.NoError(t, err)
}

func TestDeposit(t *testing.T) {
	service, db := newTestService(t)
	seedInvestor(t, db, "INV_dep")

	resp, err := service.Deposit("INV_dep", money.MustFromString("1000"), time.Time{}, "admin", "")
	require.NoError(t, err)

	require.Equal(t, types.EntryCompleted, resp.Entry.Status)
	require.True(t, resp.Entry.PreviousBalance.IsZero())
	require.True(t, resp.Entry.NewBalance.Equal(money.MustFromString("1000")))

	require.True(t, resp.Portfolio.CurrentBalance.Equal(money.MustFromString("1000")))
	require.True(t, resp.Portfolio.TotalInvested.Equal(money.MustFromString("1000")))
	require.True(t, resp.Portfolio.AccumulatedReturnUSD.IsZero())
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	service, db := newTestService(t)
	seedInvestor(t, db, "INV_neg")

	_, err := service.Deposit("INV_neg", money.MustFromString("-10"), time.Time{}, "admin", "")
	require.ErrorIs(t, err, types.ErrInvalidAmount)

	_, err = service.Deposit("INV_neg", money.MustFromString("0"), time.Time{}, "admin", "")
	require.ErrorIs(t, err, types.ErrInvalidAmount)
}

func TestDepositUnknownInvestor(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Deposit("INV_nope", money.MustFromString("100"), time.Time{}, "admin", "")
	require.ErrorIs(t, err, types.ErrInvestorNotFound)
}

func TestDepositInactiveInvestor(t *testing.T) {
	service, db := newTestService(t)
	seedInvestor(t, db, "INV_off")
	require.NoError(t, db.Model(&types.Investor{}).
		Where("investor_id = ?", "INV_off").
		Update("status", types.InvestorInactive).Error)

	_, err := service.Deposit("INV_off", money.MustFromString("100"), time.Time{}, "admin", "")
	require.ErrorIs(t, err, types.ErrInvestorNotFound)
}

func TestFutureDepositStaysPending(t *testing.T) {
	service, db := newTestService(t)
	seedInvestor(t, db, "INV_fut")

	resp, err := service.Deposit("INV_fut", money.MustFromString("500"), time.Now().AddDate(0, 0, 2), "admin", "")
	require.NoError(t, err)
	require.Equal(t, types.EntryPending, resp.Entry.Status)

	// Pending entries stay out of the fold
	require.True(t, resp.Portfolio.CurrentBalance.IsZero())
}

func TestFutureWithdrawalRejected(t *testing.T) {
	service, db := newTestService(t)
	seedInvestor(t, db, "INV_fw")

	_, err := service.Deposit("INV_fw", money.MustFromString("1000"), time.Time{}, "admin", "")
	require.NoError(t, err)

	_, err = service.Withdraw("INV_fw", money.MustFromString("100"), time.Now().AddDate(0, 0, 1), "admin", "")
	require.ErrorIs(t, err, types.ErrInvalidDate)
}

func TestWithdraw(t *testing.T) {
	service, db := newTestService(t)
	seedInvestor(t, db, "INV_wd")

	_, err := service.Deposit("INV_wd", money.MustFromString("1000"), time.Time{}, "admin", "")
	require.NoError(t, err)

	resp, err := service.Withdraw("INV_wd", money.MustFromString("400"), time.Time{}, "admin", "")
	require.NoError(t, err)

	require.True(t, resp.Entry.NewBalance.Equal(money.MustFromString("600")))
	require.True(t, resp.Portfolio.CurrentBalance.Equal(money.MustFromString("600")))
	require.True(t, resp.Portfolio.TotalInvested.Equal(money.MustFromString("600")))
	require.True(t, resp.Portfolio.AccumulatedReturnUSD.IsZero())
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	service, db := newTestService(t)
	seedInvestor(t, db, "INV_ins")

	_, err := service.Deposit("INV_ins", money.MustFromString("100"), time.Time{}, "admin", "")
	require.NoError(t, err)

	_, err = service.Withdraw("INV_ins", money.MustFromString("500"), time.Time{}, "admin", "")

	var insufficientErr *types.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficientErr)
	require.True(t, insufficientErr.Balance.Equal(money.MustFromString("100")))
	require.True(t, insufficientErr.Requested.Equal(money.MustFromString("500")))

	// The failed withdrawal must leave no trace
	portfolio, err := service.GetPortfolio("INV_ins")
	require.NoError(t, err)
	require.True(t, portfolio.CurrentBalance.Equal(money.MustFromString("100")))
}

func TestBackdatedWithdrawalCannotOverdrawChain(t *testing.T) {
	service, db := newTestService(t)
	seedInvestor(t, db, "INV_chain")

	_, err := service.Deposit("INV_chain", money.MustFromString("100"), time.Now().AddDate(0, 0, -10), "admin", "")
	require.NoError(t, err)
	_, err = service.ApplyReferralCommission("INV_chain", money.MustFromString("50"), time.Now().AddDate(0, 0, -5), "admin", "")
	require.NoError(t, err)

	// 120 fits the final balance of 150 but not the chain at the
	// backdated position, where only the 100 deposit exists yet
	_, err = service.Withdraw("INV_chain", money.MustFromString("120"), time.Now().AddDate(0, 0, -9), "admin", "")

	var insufficientErr *types.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficientErr)
	require.True(t, insufficientErr.Balance.Equal(money.MustFromString("100")))
	require.True(t, insufficientErr.Requested.Equal(money.MustFromString("120")))

	// Rolled back: no withdrawal row, every stored balance non-negative
	var entries []types.LedgerEntry
	require.NoError(t, db.Where("investor_id = ?", "INV_chain").
		Order("effective_at ASC, id ASC").Find(&entries).Error)
	require.Len(t, entries, 2)
	for i := range entries {
		require.False(t, entries[i].NewBalance.IsNegative())
	}

	portfolio, err := service.GetPortfolio("INV_chain")
	require.NoError(t, err)
	require.True(t, portfolio.CurrentBalance.Equal(money.MustFromString("150")))

	// A backdated withdrawal the chain can absorb still goes through
	resp, err := service.Withdraw("INV_chain", money.MustFromString("80"), time.Now().AddDate(0, 0, -9), "admin", "")
	require.NoError(t, err)
	require.True(t, resp.Entry.PreviousBalance.Equal(money.MustFromString("100")))
	require.True(t, resp.Entry.NewBalance.Equal(money.MustFromString("20")))
	require.True(t, resp.Portfolio.CurrentBalance.Equal(money.MustFromString("70")))
}

func TestBackdatedCommissionRestitchesChain(t *testing.T) {
	service, db := newTestService(t)
	seedInvestor(t, db, "INV_back")

	day1 := time.Now().AddDate(0, 0, -10)
	day2 := time.Now().AddDate(0, 0, -5)
	day3 := time.Now().AddDate(0, 0, -2)

	_, err := service.Deposit("INV_back", money.MustFromString("1000"), day1, "admin", "")
	require.NoError(t, err)
	_, err = service.Deposit("INV_back", money.MustFromString("500"), day3, "admin", "")
	require.NoError(t, err)

	// Backdated between the two deposits
	resp, err := service.ApplyReferralCommission("INV_back", money.MustFromString("50"), day2, "admin", "referral")
	require.NoError(t, err)

	require.True(t, resp.Entry.PreviousBalance.Equal(money.MustFromString("1000")))
	require.True(t, resp.Entry.NewBalance.Equal(money.MustFromString("1050")))

	var entries []types.LedgerEntry
	require.NoError(t, db.Where("investor_id = ?", "INV_back").
		Order("effective_at ASC, id ASC").Find(&entries).Error)
	require.Len(t, entries, 3)

	// The later deposit's chain was rewritten around the insertion
	require.Equal(t, types.EntryDeposit, entries[2].EntryType)
	require.True(t, entries[2].PreviousBalance.Equal(money.MustFromString("1050")))
	require.True(t, entries[2].NewBalance.Equal(money.MustFromString("1550")))

	require.True(t, resp.Portfolio.CurrentBalance.Equal(money.MustFromString("1550")))
	require.True(t, resp.Portfolio.TotalInvested.Equal(money.MustFromString("1500")))
	require.True(t, resp.Portfolio.AccumulatedReturnUSD.Equal(money.MustFromString("50")))
	require.True(t, resp.Portfolio.AccumulatedReturnPercent.Equal(money.MustFromString("3.3333")))
}

func TestRecalculateIdempotent(t *testing.T) {
	service, db := newTestService(t)
	seedInvestor(t, db, "INV_idem")

	_, err := service.Deposit("INV_idem", money.MustFromString("1000"), time.Now().AddDate(0, 0, -3), "admin", "")
	require.NoError(t, err)
	_, err = service.Withdraw("INV_idem", money.MustFromString("250"), time.Time{}, "admin", "")
	require.NoError(t, err)

	first, err := ledger.Recalculate(db, "INV_idem")
	require.NoError(t, err)
	second, err := ledger.Recalculate(db, "INV_idem")
	require.NoError(t, err)

	require.True(t, first.CurrentBalance.Equal(second.CurrentBalance))
	require.True(t, first.TotalInvested.Equal(second.TotalInvested))
	require.True(t, first.AccumulatedReturnUSD.Equal(second.AccumulatedReturnUSD))
	require.True(t, second.CurrentBalance.Equal(money.MustFromString("750")))
}

func TestFold(t *testing.T) {
	entries := []types.LedgerEntry{
		{EntryType: types.EntryDeposit, Amount: money.MustFromString("1000")},
		{EntryType: types.EntryOperatingResult, Amount: money.MustFromString("10")},
		{EntryType: types.EntryTradingFee, Amount: money.MustFromString("3")},
		{EntryType: types.EntryTradingFeeAdjustment, Amount: money.MustFromString("1")},
		{EntryType: types.EntryWithdrawal, Amount: money.MustFromString("200")},
	}

	snap := ledger.Fold(entries)
	require.True(t, snap.Balance.Equal(money.MustFromString("808")))
	require.True(t, snap.TotalInvested.Equal(money.MustFromString("800")))
	require.True(t, snap.ReturnUSD.Equal(money.MustFromString("8")))
	require.True(t, snap.ReturnPercent.Equal(money.MustFromString("1")))
}

func TestFoldInvestedFlooredAtZero(t *testing.T) {
	// Withdrawing accumulated returns can push withdrawals past deposits;
	// total invested never goes negative.
	entries := []types.LedgerEntry{
		{EntryType: types.EntryDeposit, Amount: money.MustFromString("100")},
		{EntryType: types.EntryOperatingResult, Amount: money.MustFromString("50")},
		{EntryType: types.EntryWithdrawal, Amount: money.MustFromString("120")},
	}

	snap := ledger.Fold(entries)
	require.True(t, snap.Balance.Equal(money.MustFromString("30")))
	require.True(t, snap.TotalInvested.IsZero())
	require.True(t, snap.ReturnUSD.Equal(money.MustFromString("30")))
}
