package operating

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DailyOperatingResult records one day's percentage return. At most one
// row may exist per calendar date, regardless of the order dates are
// applied in; backfilling an earlier date is allowed.
type DailyOperatingResult struct {
	gorm.Model `json:"-"`
	ResultID   string          `gorm:"uniqueIndex" json:"result_id"`
	Date       string          `gorm:"uniqueIndex" json:"date"` // YYYY-MM-DD
	Percent    decimal.Decimal `gorm:"type:decimal(10,4)" json:"percent"`
	AppliedBy  string          `json:"applied_by"`
	AppliedAt  time.Time       `json:"applied_at"`
	Notes      string          `json:"notes,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// InvestorImpact is one investor's share of a daily result.
type InvestorImpact struct {
	InvestorID    string          `json:"investor_id"`
	Name          string          `json:"name"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	Delta         decimal.Decimal `json:"delta"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
}

// PreviewResponse is the pure, no-writes projection of a daily result.
// Zero eligible investors is not an error at preview time; NoImpact
// lets the caller decide whether to block the apply.
type PreviewResponse struct {
	Date        string           `json:"date"`
	Percent     decimal.Decimal  `json:"percent"`
	Investors   []InvestorImpact `json:"investors"`
	TotalBefore decimal.Decimal  `json:"total_before"`
	TotalDelta  decimal.Decimal  `json:"total_delta"`
	TotalAfter  decimal.Decimal  `json:"total_after"`
	NoImpact    bool             `json:"no_impact"`
}

// ApplyResponse is the success payload of a committed daily result.
type ApplyResponse struct {
	Result      *DailyOperatingResult `json:"result"`
	Investors   []InvestorImpact      `json:"investors"`
	TotalBefore decimal.Decimal       `json:"total_before"`
	TotalDelta  decimal.Decimal       `json:"total_delta"`
	TotalAfter  decimal.Decimal       `json:"total_after"`
}
