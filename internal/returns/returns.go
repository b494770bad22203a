// Package returns computes time-weighted return over an investor's
// ledger. It is a pure read-side consumer: the window is split at every
// deposit/withdrawal and the sub-period returns are chain-linked, which
// neutralizes the distorting effect of cash flows on the percentage.
package returns

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/fundledger/internal/ledger"
	"github.com/ksred/fundledger/internal/types"
	"github.com/ksred/fundledger/pkg/money"
	"github.com/ksred/fundledger/pkg/response"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{db: gormDB}
}

// SubPeriod is one cash-flow-bounded slice of the requested window.
type SubPeriod struct {
	StartAt       time.Time       `json:"start_at"`
	EndAt         time.Time       `json:"end_at"`
	BalanceStart  decimal.Decimal `json:"balance_start"`
	BalanceEnd    decimal.Decimal `json:"balance_end"`
	Cashflow      decimal.Decimal `json:"cashflow"`
	ReturnPercent decimal.Decimal `json:"return_percent"`
}

// TWRResponse carries the chain-linked return plus the absolute PnL.
type TWRResponse struct {
	InvestorID       string          `json:"investor_id"`
	EffectiveStartAt *time.Time      `json:"effective_start_at,omitempty"`
	EndAt            time.Time       `json:"end_at"`
	TWRPercent       decimal.Decimal `json:"twr_percent"`
	PnlUSD           decimal.Decimal `json:"pnl_usd"`
	SubPeriods       []SubPeriod     `json:"sub_periods"`
}

// Compute returns the TWR for [from, to]. A zero from means "since the
// portfolio's first event"; a zero to means now.
func (s *Service) Compute(investorID string, from, to time.Time) (*TWRResponse, error) {
	var investor types.Investor
	if err := s.db.Where("investor_id = ?", investorID).First(&investor).Error; err != nil {
		return nil, types.ErrInvestorNotFound
	}

	if to.IsZero() {
		to = time.Now()
	}

	entries, err := ledger.CompletedEntries(s.db, investorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	resp := &TWRResponse{
		InvestorID: investorID,
		EndAt:      to,
		TWRPercent: decimal.Zero,
		PnlUSD:     decimal.Zero,
		SubPeriods: []SubPeriod{},
	}

	// effective_start_at is the earliest event at or after from, or the
	// portfolio's first event when from is absent.
	startIdx := -1
	for i := range entries {
		if entries[i].EffectiveAt.After(to) {
			break
		}
		if from.IsZero() || !entries[i].EffectiveAt.Before(from) {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return resp, nil
	}
	effectiveStart := entries[startIdx].EffectiveAt
	resp.EffectiveStartAt = &effectiveStart

	// Balance carried into the window from everything before it.
	preBalance := ledger.Balance(entries[:startIdx])

	factor := decimal.NewFromInt(1)
	running := preBalance
	segStart := preBalance
	segStartAt := effectiveStart
	netCashflow := decimal.Zero

	closeSegment := func(endAt time.Time, cashflow decimal.Decimal) {
		sub := SubPeriod{
			StartAt:      segStartAt,
			EndAt:        endAt,
			BalanceStart: segStart,
			BalanceEnd:   running,
			Cashflow:     cashflow,
		}
		if segStart.IsPositive() {
			// (balance_end - cashflow_during) / balance_start - 1
			r := running.Sub(cashflow).Div(segStart).Sub(decimal.NewFromInt(1))
			sub.ReturnPercent = money.Round4(r.Mul(money.Hundred))
			factor = factor.Mul(decimal.NewFromInt(1).Add(r))
		} else {
			sub.ReturnPercent = decimal.Zero
		}
		resp.SubPeriods = append(resp.SubPeriods, sub)
		segStart = running
		segStartAt = endAt
	}

	for i := startIdx; i < len(entries); i++ {
		if entries[i].EffectiveAt.After(to) {
			break
		}

		signed := entries[i].SignedAmount()
		running = money.Round2(running.Add(signed))

		switch entries[i].EntryType {
		case types.EntryDeposit, types.EntryWithdrawal:
			netCashflow = netCashflow.Add(signed)
			closeSegment(entries[i].EffectiveAt, signed)
		}
	}

	// Trailing slice after the last cashflow.
	if !running.Equal(segStart) || len(resp.SubPeriods) == 0 {
		closeSegment(to, decimal.Zero)
	}

	resp.TWRPercent = money.Round4(factor.Sub(decimal.NewFromInt(1)).Mul(money.Hundred))
	resp.PnlUSD = money.Round2(running.Sub(preBalance).Sub(netCashflow))
	return resp, nil
}

// GinHandlers contains HTTP handlers for return metrics endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetTWRHandler handles GET requests for an investor's TWR.
// Query params from/to accept YYYY-MM-DD dates.
func (h *GinHandlers) GetTWRHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, err := parseQueryDate(c.Query("from"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		to, err := parseQueryDate(c.Query("to"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		if !to.IsZero() {
			// Inclusive end date
			to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}

		twr, err := h.service.Compute(c.Param("investor_id"), from, to)
		response.Handle(c, twr, err)
	}
}

func parseQueryDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", types.ErrInvalidDate, s)
	}
	return t, nil
}
