package fees

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TradingFee is one periodic performance fee. A fee is live while
// VoidedAt is null; voiding sets VoidSeq to the row id so the unique
// index over (investor, period, void_seq) keeps exactly one live fee
// per period while letting voided ones accumulate. LedgerEntryID links
// the fee to the TRADING_FEE entry it debited.
type TradingFee struct {
	gorm.Model    `json:"-"`
	FeeID         string          `gorm:"uniqueIndex" json:"fee_id"`
	InvestorID    string          `gorm:"index;uniqueIndex:idx_live_fee_period" json:"investor_id"`
	PeriodStart   string          `gorm:"uniqueIndex:idx_live_fee_period" json:"period_start"` // YYYY-MM-DD
	PeriodEnd     string          `gorm:"uniqueIndex:idx_live_fee_period" json:"period_end"`   // YYYY-MM-DD
	VoidSeq       uint            `gorm:"uniqueIndex:idx_live_fee_period;default:0" json:"-"`
	ProfitAmount  decimal.Decimal `gorm:"type:decimal(20,2)" json:"profit_amount"`
	FeePercentage decimal.Decimal `gorm:"type:decimal(10,4)" json:"fee_percentage"`
	FeeAmount     decimal.Decimal `gorm:"type:decimal(20,2)" json:"fee_amount"`
	LedgerEntryID string          `json:"ledger_entry_id,omitempty"`
	AppliedBy     string          `json:"applied_by"`
	AppliedAt     time.Time       `json:"applied_at"`
	Notes         string          `json:"notes,omitempty"`
	VoidedAt      *time.Time      `json:"voided_at,omitempty"`
	VoidedBy      string          `json:"voided_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Live reports whether the fee has not been voided.
func (f *TradingFee) Live() bool {
	return f.VoidedAt == nil
}

// CalculateResponse is the pure fee computation for a period.
type CalculateResponse struct {
	InvestorID    string          `json:"investor_id"`
	PeriodStart   string          `json:"period_start"`
	PeriodEnd     string          `json:"period_end"`
	ProfitAmount  decimal.Decimal `json:"profit_amount"`
	FeePercentage decimal.Decimal `json:"fee_percentage"`
	FeeAmount     decimal.Decimal `json:"fee_amount"`
}

// FeeResponse is the success payload for apply/edit/void.
type FeeResponse struct {
	Fee            *TradingFee     `json:"fee"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

// FeeListing is one fee row with the staleness guard applied: a live
// fee without a matching ledger entry is reported stale and treated as
// not applied.
type FeeListing struct {
	TradingFee
	Stale bool `json:"stale"`
}
