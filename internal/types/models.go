package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Investor statuses
const (
	InvestorActive   = "ACTIVE"
	InvestorInactive = "INACTIVE"
)

// Ledger entry types
const (
	EntryDeposit              = "DEPOSIT"
	EntryWithdrawal           = "WITHDRAWAL"
	EntryOperatingResult      = "OPERATING_RESULT"
	EntryTradingFee           = "TRADING_FEE"
	EntryTradingFeeAdjustment = "TRADING_FEE_ADJUSTMENT"
	EntryReferralCommission   = "REFERRAL_COMMISSION"
)

// Ledger entry statuses. Only COMPLETED entries participate in balance
// folds and engine computations.
const (
	EntryPending   = "PENDING"
	EntryCompleted = "COMPLETED"
)

type Investor struct {
	gorm.Model          `json:"-"`
	InvestorID          string          `gorm:"uniqueIndex" json:"investor_id"`
	Name                string          `json:"name"`
	Email               string          `json:"email"`
	Status              string          `json:"status"` // ACTIVE or INACTIVE
	TradingFeeFrequency string          `json:"trading_fee_frequency"` // MONTHLY, QUARTERLY, SEMESTRAL, ANNUAL
	TradingFeePercent   decimal.Decimal `gorm:"type:decimal(10,4)" json:"trading_fee_percent"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Portfolio is the running snapshot for one investor, kept in lock-step
// with the ledger. current_balance must always equal the fold of the
// investor's completed ledger entries.
type Portfolio struct {
	gorm.Model               `json:"-"`
	InvestorID               string          `gorm:"uniqueIndex" json:"investor_id"`
	CurrentBalance           decimal.Decimal `gorm:"type:decimal(20,2)" json:"current_balance"`
	TotalInvested            decimal.Decimal `gorm:"type:decimal(20,2)" json:"total_invested"`
	AccumulatedReturnUSD     decimal.Decimal `gorm:"type:decimal(20,2)" json:"accumulated_return_usd"`
	AccumulatedReturnPercent decimal.Decimal `gorm:"type:decimal(10,4)" json:"accumulated_return_percent"`
	CreatedAt                time.Time       `json:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at"`
}

// LedgerEntry is one immutable balance-affecting event. Amount is stored
// as a magnitude for WITHDRAWAL and TRADING_FEE entries and interpreted
// as a debit by type; TRADING_FEE_ADJUSTMENT and OPERATING_RESULT amounts
// are signed. EffectiveAt is the financial timestamp of the event, not
// the insertion time. Backdated entries are legal and the recalculator
// re-stitches the balance chain around them.
type LedgerEntry struct {
	gorm.Model      `json:"-"`
	EntryID         string          `gorm:"uniqueIndex" json:"entry_id"`
	InvestorID      string          `gorm:"index" json:"investor_id"`
	EntryType       string          `json:"entry_type"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,2)" json:"amount"`
	PreviousBalance decimal.Decimal `gorm:"type:decimal(20,2)" json:"previous_balance"`
	NewBalance      decimal.Decimal `gorm:"type:decimal(20,2)" json:"new_balance"`
	Status          string          `json:"status"` // PENDING or COMPLETED
	EffectiveAt     time.Time       `gorm:"index" json:"effective_at"`
	Notes           string          `json:"notes,omitempty"`
	CreatedBy       string          `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// SignedAmount returns the entry's effect on the balance: negative for
// withdrawals and trading fees, the stored (possibly signed) amount for
// everything else.
func (e *LedgerEntry) SignedAmount() decimal.Decimal {
	switch e.EntryType {
	case EntryWithdrawal, EntryTradingFee:
		return e.Amount.Abs().Neg()
	default:
		return e.Amount
	}
}
