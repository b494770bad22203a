package ledger

import (
	"fmt"

	"github.com/ksred/fundledger/internal/types"
	"github.com/ksred/fundledger/pkg/money"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Snapshot is the result of folding an investor's completed entries.
type Snapshot struct {
	Balance       decimal.Decimal
	TotalInvested decimal.Decimal
	ReturnUSD     decimal.Decimal
	ReturnPercent decimal.Decimal
}

// Fold replays entries in order and returns the resulting snapshot.
// Entries must already be sorted by (effective timestamp, insertion
// order). The stored previous/new balances on the entries are not
// consulted: the fold is the ground truth.
func Fold(entries []types.LedgerEntry) Snapshot {
	balance := decimal.Zero
	deposits := decimal.Zero
	withdrawals := decimal.Zero

	for i := range entries {
		balance = money.Round2(balance.Add(entries[i].SignedAmount()))
		switch entries[i].EntryType {
		case types.EntryDeposit:
			deposits = deposits.Add(entries[i].Amount.Abs())
		case types.EntryWithdrawal:
			withdrawals = withdrawals.Add(entries[i].Amount.Abs())
		}
	}

	invested := money.Round2(deposits.Sub(withdrawals))
	if invested.IsNegative() {
		invested = decimal.Zero
	}
	returnUSD := money.Round2(balance.Sub(invested))

	return Snapshot{
		Balance:       balance,
		TotalInvested: invested,
		ReturnUSD:     returnUSD,
		ReturnPercent: money.PercentOf(returnUSD, invested),
	}
}

// Balance folds entries down to the running balance only.
func Balance(entries []types.LedgerEntry) decimal.Decimal {
	balance := decimal.Zero
	for i := range entries {
		balance = money.Round2(balance.Add(entries[i].SignedAmount()))
	}
	return balance
}

// Recalculate replays the investor's completed entries in (effective
// timestamp, insertion order), rewriting each entry's previous/new
// balance to re-stitch the chain, then updates the portfolio snapshot.
// The replayed balances are validated before any row is written: a
// backdated debit that would drive an intermediate balance negative
// returns InsufficientBalanceError, failing the caller's transaction
// instead of persisting a broken chain.
// It is idempotent and is the canonical repair after any backdated
// insertion. Must run inside the caller's transaction so the rewrite
// and the portfolio update commit together.
func Recalculate(tx *gorm.DB, investorID string) (*types.Portfolio, error) {
	entries, err := CompletedEntries(tx, investorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	running := decimal.Zero
	previous := make([]decimal.Decimal, len(entries))
	balances := make([]decimal.Decimal, len(entries))
	for i := range entries {
		previous[i] = running
		running = money.Round2(running.Add(entries[i].SignedAmount()))
		if running.IsNegative() {
			return nil, &types.InsufficientBalanceError{
				Balance:   previous[i],
				Requested: entries[i].SignedAmount().Neg(),
			}
		}
		balances[i] = running
	}

	for i := range entries {
		if entries[i].PreviousBalance.Equal(previous[i]) && entries[i].NewBalance.Equal(balances[i]) {
			continue
		}
		err := tx.Model(&types.LedgerEntry{}).
			Where("id = ?", entries[i].ID).
			Updates(map[string]interface{}{
				"previous_balance": previous[i],
				"new_balance":      balances[i],
			}).Error
		if err != nil {
			return nil, fmt.Errorf("failed to re-stitch entry %s: %w", entries[i].EntryID, err)
		}
	}

	snapshot := Fold(entries)

	portfolio, err := GetOrCreatePortfolio(tx, investorID)
	if err != nil {
		return nil, err
	}

	portfolio.CurrentBalance = snapshot.Balance
	portfolio.TotalInvested = snapshot.TotalInvested
	portfolio.AccumulatedReturnUSD = snapshot.ReturnUSD
	portfolio.AccumulatedReturnPercent = snapshot.ReturnPercent
	if err := tx.Save(portfolio).Error; err != nil {
		return nil, fmt.Errorf("failed to update portfolio: %w", err)
	}

	return portfolio, nil
}
