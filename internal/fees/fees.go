package fees

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ksred/fundledger/internal/ledger"
	"github.com/ksred/fundledger/internal/types"
	"github.com/ksred/fundledger/pkg/money"
	"github.com/ksred/fundledger/pkg/period"
	"github.com/ksred/fundledger/pkg/response"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// staleTolerance bounds the legacy time-window match between a fee row
// and its TRADING_FEE ledger entry.
const staleTolerance = 5 * time.Minute

// Service calculates, applies, edits and voids periodic performance
// fees. Edits and voids never rewrite history: each one appends a
// compensating TRADING_FEE_ADJUSTMENT entry.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// Calculate computes the fee for a period without writing anything.
// feePercentage of nil falls back to the investor's configured default.
func (s *Service) Calculate(investorID, periodStart, periodEnd string, feePercentage *decimal.Decimal) (*CalculateResponse, error) {
	investor, start, end, err := s.validatePeriod(investorID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	pct := investor.TradingFeePercent
	if feePercentage != nil {
		pct = money.Round4(*feePercentage)
	}
	if pct.IsNegative() {
		return nil, types.ErrInvalidAmount
	}

	if err := s.checkNotApplied(investorID, periodStart, periodEnd); err != nil {
		return nil, err
	}

	profit, err := s.periodProfit(investorID, start, end)
	if err != nil {
		return nil, err
	}
	if !profit.IsPositive() {
		// Losses are not carried forward; the caller sees profit 0.
		return nil, &types.NoProfitError{PeriodStart: start, PeriodEnd: end, ProfitAmount: decimal.Zero}
	}

	return &CalculateResponse{
		InvestorID:    investorID,
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		ProfitAmount:  profit,
		FeePercentage: pct,
		FeeAmount:     money.ApplyPercent(profit, pct),
	}, nil
}

// Apply re-validates and commits the fee: one TradingFee row, one
// TRADING_FEE ledger entry dated now, and the portfolio decrement, in
// one transaction.
func (s *Service) Apply(investorID, periodStart, periodEnd string, feePercentage *decimal.Decimal, appliedBy, notes string) (*FeeResponse, error) {
	logger := log.With().
		Str("investor_id", investorID).
		Str("period_start", periodStart).
		Str("period_end", periodEnd).
		Str("service", "fees").
		Logger()

	calc, err := s.Calculate(investorID, periodStart, periodEnd, feePercentage)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	fee := &TradingFee{
		FeeID:         "FEE_" + uuid.New().String(),
		InvestorID:    investorID,
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		ProfitAmount:  calc.ProfitAmount,
		FeePercentage: calc.FeePercentage,
		FeeAmount:     calc.FeeAmount,
		AppliedBy:     appliedBy,
		AppliedAt:     now,
		Notes:         notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var portfolio *types.Portfolio
	err = s.db.DB().Transaction(func(tx *gorm.DB) error {
		// An orphaned live fee with no ledger entry is treated as not
		// applied; retire it so the unique index admits the new fee.
		stale, err := liveFee(tx, investorID, periodStart, periodEnd)
		if err != nil {
			return err
		}
		if stale != nil {
			if s.hasLedgerEntry(stale) {
				return &types.FeeAlreadyAppliedError{
					FeeID:         stale.FeeID,
					FeePercentage: stale.FeePercentage,
					FeeAmount:     stale.FeeAmount,
				}
			}
			voidedAt := now
			err := tx.Model(stale).Updates(map[string]interface{}{
				"void_seq":  stale.ID,
				"voided_at": voidedAt,
				"voided_by": appliedBy,
				"notes":     "voided as stale: no matching ledger entry",
			}).Error
			if err != nil {
				return fmt.Errorf("failed to retire stale fee: %w", err)
			}
		}

		entry := &types.LedgerEntry{
			EntryID:     "LED_" + uuid.New().String(),
			InvestorID:  investorID,
			EntryType:   types.EntryTradingFee,
			Amount:      calc.FeeAmount,
			Status:      types.EntryCompleted,
			EffectiveAt: now,
			Notes:       notes,
			CreatedBy:   appliedBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to create fee entry: %w", err)
		}

		fee.LedgerEntryID = entry.EntryID
		if err := tx.Create(fee).Error; err != nil {
			// The (investor, period, void_seq) unique index serializes
			// concurrent applies; the loser reports the fee that won.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				if winner, lookupErr := liveFee(tx, investorID, periodStart, periodEnd); lookupErr == nil && winner != nil {
					return &types.FeeAlreadyAppliedError{
						FeeID:         winner.FeeID,
						FeePercentage: winner.FeePercentage,
						FeeAmount:     winner.FeeAmount,
					}
				}
				return &types.FeeAlreadyAppliedError{
					FeePercentage: calc.FeePercentage,
					FeeAmount:     calc.FeeAmount,
				}
			}
			return fmt.Errorf("failed to create trading fee: %w", err)
		}

		portfolio, err = ledger.Recalculate(tx, investorID)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msg("fee application failed")
		return nil, err
	}

	logger.Info().
		Str("fee_id", fee.FeeID).
		Str("fee_amount", fee.FeeAmount.String()).
		Str("new_balance", portfolio.CurrentBalance.String()).
		Msg("trading fee applied")

	return &FeeResponse{Fee: fee, CurrentBalance: portfolio.CurrentBalance}, nil
}

// Edit changes a live fee's percentage. The difference is settled by a
// compensating TRADING_FEE_ADJUSTMENT entry; the original TRADING_FEE
// entry is never touched.
func (s *Service) Edit(feeID string, newPercentage decimal.Decimal, editedBy, notes string) (*FeeResponse, error) {
	logger := log.With().
		Str("fee_id", feeID).
		Str("service", "fees").
		Logger()

	fee, err := s.db.GetFee(feeID)
	if err != nil {
		return nil, err
	}
	if !fee.Live() {
		return nil, gorm.ErrRecordNotFound
	}
	if newPercentage.IsNegative() {
		return nil, types.ErrInvalidAmount
	}

	newPercentage = money.Round4(newPercentage)
	newAmount := money.ApplyPercent(fee.ProfitAmount, newPercentage)
	delta := newAmount.Sub(fee.FeeAmount)

	var portfolio *types.Portfolio
	err = s.db.DB().Transaction(func(tx *gorm.DB) error {
		current, err := ledger.GetOrCreatePortfolio(tx, fee.InvestorID)
		if err != nil {
			return err
		}
		if current.CurrentBalance.Sub(delta).IsNegative() {
			return &types.InsufficientBalanceError{
				Balance:   current.CurrentBalance,
				Requested: delta,
			}
		}

		if !delta.IsZero() {
			now := time.Now()
			entry := &types.LedgerEntry{
				EntryID:     "LED_" + uuid.New().String(),
				InvestorID:  fee.InvestorID,
				EntryType:   types.EntryTradingFeeAdjustment,
				Amount:      delta.Neg(),
				Status:      types.EntryCompleted,
				EffectiveAt: now,
				Notes:       fmt.Sprintf("fee %s adjusted from %s%% to %s%%", fee.FeeID, fee.FeePercentage, newPercentage),
				CreatedBy:   editedBy,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.Create(entry).Error; err != nil {
				return fmt.Errorf("failed to create adjustment entry: %w", err)
			}
		}

		err = tx.Model(fee).Updates(map[string]interface{}{
			"fee_percentage": newPercentage,
			"fee_amount":     newAmount,
			"notes":          notes,
			"updated_at":     time.Now(),
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update fee: %w", err)
		}

		portfolio, err = ledger.Recalculate(tx, fee.InvestorID)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msg("fee edit failed")
		return nil, err
	}

	fee.FeePercentage = newPercentage
	fee.FeeAmount = newAmount
	fee.Notes = notes

	logger.Info().
		Str("new_percentage", newPercentage.String()).
		Str("new_amount", newAmount.String()).
		Str("delta", delta.String()).
		Msg("trading fee edited")

	return &FeeResponse{Fee: fee, CurrentBalance: portfolio.CurrentBalance}, nil
}

// Void soft-deletes a live fee, fully refunding its amount through a
// compensating entry. The period becomes eligible for re-application.
func (s *Service) Void(feeID, voidedBy string) (*FeeResponse, error) {
	logger := log.With().
		Str("fee_id", feeID).
		Str("service", "fees").
		Logger()

	fee, err := s.db.GetFee(feeID)
	if err != nil {
		return nil, err
	}
	if !fee.Live() {
		return nil, gorm.ErrRecordNotFound
	}

	var portfolio *types.Portfolio
	err = s.db.DB().Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		entry := &types.LedgerEntry{
			EntryID:     "LED_" + uuid.New().String(),
			InvestorID:  fee.InvestorID,
			EntryType:   types.EntryTradingFeeAdjustment,
			Amount:      fee.FeeAmount,
			Status:      types.EntryCompleted,
			EffectiveAt: now,
			Notes:       fmt.Sprintf("fee %s voided", fee.FeeID),
			CreatedBy:   voidedBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to create refund entry: %w", err)
		}

		err = tx.Model(fee).Updates(map[string]interface{}{
			"void_seq":   fee.ID,
			"voided_at":  now,
			"voided_by":  voidedBy,
			"updated_at": now,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to void fee: %w", err)
		}

		portfolio, err = ledger.Recalculate(tx, fee.InvestorID)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msg("fee void failed")
		return nil, err
	}

	now := time.Now()
	fee.VoidedAt = &now
	fee.VoidedBy = voidedBy

	logger.Info().
		Str("refund", fee.FeeAmount.String()).
		Str("new_balance", portfolio.CurrentBalance.String()).
		Msg("trading fee voided")

	return &FeeResponse{Fee: fee, CurrentBalance: portfolio.CurrentBalance}, nil
}

// ListFees returns the investor's fees with the staleness guard
// applied to live rows.
func (s *Service) ListFees(investorID string) ([]FeeListing, error) {
	fees, err := s.db.ListInvestorFees(investorID)
	if err != nil {
		return nil, err
	}

	listings := make([]FeeListing, 0, len(fees))
	for i := range fees {
		listing := FeeListing{TradingFee: fees[i]}
		if fees[i].Live() && !s.hasLedgerEntry(&fees[i]) {
			listing.Stale = true
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// validatePeriod resolves the investor and checks the period against
// the investor's billing frequency.
func (s *Service) validatePeriod(investorID, periodStart, periodEnd string) (*types.Investor, time.Time, time.Time, error) {
	var zero time.Time

	investor, err := s.db.GetInvestor(investorID)
	if err != nil {
		return nil, zero, zero, fmt.Errorf("failed to fetch investor: %w", err)
	}
	if investor == nil || investor.Status != types.InvestorActive {
		return nil, zero, zero, types.ErrInvestorNotFound
	}

	start, err := time.ParseInLocation("2006-01-02", periodStart, time.Local)
	if err != nil {
		return nil, zero, zero, fmt.Errorf("%w: %q", types.ErrInvalidDate, periodStart)
	}
	end, err := time.ParseInLocation("2006-01-02", periodEnd, time.Local)
	if err != nil {
		return nil, zero, zero, fmt.Errorf("%w: %q", types.ErrInvalidDate, periodEnd)
	}

	freq, err := period.Parse(investor.TradingFeeFrequency)
	if err != nil {
		return nil, zero, zero, err
	}
	if !freq.Matches(start, end) {
		wantStart, wantEnd := freq.Containing(start)
		return nil, zero, zero, &types.InvalidPeriodError{
			Frequency:     freq.String(),
			ExpectedStart: wantStart,
			ExpectedEnd:   wantEnd,
		}
	}

	return investor, start, end, nil
}

func (s *Service) checkNotApplied(investorID, periodStart, periodEnd string) error {
	existing, err := liveFee(s.db.DB(), investorID, periodStart, periodEnd)
	if err != nil {
		return fmt.Errorf("failed to check existing fee: %w", err)
	}
	if existing == nil {
		return nil
	}
	// Orphaned rows with no matching ledger entry are treated as if
	// the fee was never applied.
	if !s.hasLedgerEntry(existing) {
		return nil
	}
	return &types.FeeAlreadyAppliedError{
		FeeID:         existing.FeeID,
		FeePercentage: existing.FeePercentage,
		FeeAmount:     existing.FeeAmount,
	}
}

// periodProfit sums completed OPERATING_RESULT entries effective in
// [start, end], using the day after end as the exclusive bound.
func (s *Service) periodProfit(investorID string, start, end time.Time) (decimal.Decimal, error) {
	entries, err := s.db.OperatingResultEntries(investorID, start, end.AddDate(0, 0, 1))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load operating results: %w", err)
	}

	profit := decimal.Zero
	for i := range entries {
		profit = profit.Add(entries[i].SignedAmount())
	}
	return money.Round2(profit), nil
}

// hasLedgerEntry reports whether the fee's debit actually exists in the
// ledger: by direct reference when recorded, otherwise by the legacy
// amount-and-time-window match.
func (s *Service) hasLedgerEntry(fee *TradingFee) bool {
	if fee.LedgerEntryID != "" {
		entry, err := s.db.GetEntryByID(fee.LedgerEntryID)
		return err == nil && entry != nil &&
			entry.EntryType == types.EntryTradingFee &&
			entry.Amount.Abs().Equal(fee.FeeAmount.Abs())
	}

	entry, err := s.db.FindMatchingFeeEntry(fee.InvestorID, fee.FeeAmount, fee.AppliedAt, staleTolerance)
	return err == nil && entry != nil
}

// GinHandlers contains HTTP handlers for trading fee endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type feeRequest struct {
	InvestorID    string           `json:"investor_id" binding:"required"`
	PeriodStart   string           `json:"period_start" binding:"required"`
	PeriodEnd     string           `json:"period_end" binding:"required"`
	FeePercentage *decimal.Decimal `json:"fee_percentage"`
	Notes         string           `json:"notes"`
}

// CalculateHandler handles POST requests to preview a fee
func (h *GinHandlers) CalculateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req feeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		calc, err := h.service.Calculate(req.InvestorID, req.PeriodStart, req.PeriodEnd, req.FeePercentage)
		response.Handle(c, calc, err)
	}
}

// ApplyHandler handles POST requests to apply a fee
func (h *GinHandlers) ApplyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req feeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		fee, err := h.service.Apply(req.InvestorID, req.PeriodStart, req.PeriodEnd, req.FeePercentage, c.GetString("adminID"), req.Notes)
		response.Handle(c, fee, err)
	}
}

// EditHandler handles PUT requests to change a live fee's percentage
func (h *GinHandlers) EditHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			FeePercentage decimal.Decimal `json:"fee_percentage" binding:"required"`
			Notes         string          `json:"notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		fee, err := h.service.Edit(c.Param("fee_id"), req.FeePercentage, c.GetString("adminID"), req.Notes)
		response.Handle(c, fee, err)
	}
}

// VoidHandler handles POST requests to void a live fee
func (h *GinHandlers) VoidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fee, err := h.service.Void(c.Param("fee_id"), c.GetString("adminID"))
		response.Handle(c, fee, err)
	}
}

// ListFeesHandler handles GET requests for an investor's fee history
func (h *GinHandlers) ListFeesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fees, err := h.service.ListFees(c.Param("investor_id"))
		response.Handle(c, fees, err)
	}
}
