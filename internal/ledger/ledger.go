package ledger

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ksred/fundledger/internal/types"
	"github.com/ksred/fundledger/pkg/money"
	"github.com/ksred/fundledger/pkg/response"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service handles ledger entry writes: deposits, withdrawals and
// referral commissions. The operating and fee engines append their own
// entry kinds through their own packages; every write here runs inside
// one transaction together with the portfolio recalculation.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// EntryResponse is the success payload for a ledger write.
type EntryResponse struct {
	Entry     *types.LedgerEntry `json:"entry"`
	Portfolio *types.Portfolio   `json:"portfolio"`
}

// Deposit credits an investor. A future effective time leaves the entry
// PENDING until the processor completes it; a backdated one is folded
// into place by the recalculator.
func (s *Service) Deposit(investorID string, amount decimal.Decimal, effectiveAt time.Time, appliedBy, notes string) (*EntryResponse, error) {
	return s.appendCashflow(investorID, types.EntryDeposit, amount, effectiveAt, appliedBy, notes)
}

// Withdraw debits an investor, rejecting withdrawals that exceed the
// current balance.
func (s *Service) Withdraw(investorID string, amount decimal.Decimal, effectiveAt time.Time, appliedBy, notes string) (*EntryResponse, error) {
	return s.appendCashflow(investorID, types.EntryWithdrawal, amount, effectiveAt, appliedBy, notes)
}

// ApplyReferralCommission credits a referral commission, optionally
// backdated. Backdating triggers a full recalculation so the balance
// chain stays stitched.
func (s *Service) ApplyReferralCommission(investorID string, amount decimal.Decimal, appliedAt time.Time, appliedBy, notes string) (*EntryResponse, error) {
	logger := log.With().
		Str("investor_id", investorID).
		Str("service", "ledger").
		Logger()

	if !amount.IsPositive() {
		return nil, types.ErrInvalidAmount
	}
	if appliedAt.IsZero() {
		appliedAt = time.Now()
	}

	resp, err := s.appendCashflow(investorID, types.EntryReferralCommission, amount, appliedAt, appliedBy, notes)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("entry_id", resp.Entry.EntryID).
		Str("amount", amount.String()).
		Time("applied_at", appliedAt).
		Msg("referral commission applied")

	return resp, nil
}

func (s *Service) appendCashflow(investorID, entryType string, amount decimal.Decimal, effectiveAt time.Time, appliedBy, notes string) (*EntryResponse, error) {
	logger := log.With().
		Str("investor_id", investorID).
		Str("entry_type", entryType).
		Str("service", "ledger").
		Logger()

	if !amount.IsPositive() {
		return nil, types.ErrInvalidAmount
	}
	amount = money.Round2(amount)

	investor, err := s.db.GetInvestor(investorID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch investor: %w", err)
	}
	if investor == nil || investor.Status != types.InvestorActive {
		return nil, types.ErrInvestorNotFound
	}

	now := time.Now()
	if effectiveAt.IsZero() {
		effectiveAt = now
	}

	status := types.EntryCompleted
	if effectiveAt.After(now) {
		if entryType != types.EntryDeposit {
			return nil, types.ErrInvalidDate
		}
		// Future-dated deposits settle through the processor.
		status = types.EntryPending
	}

	entry := &types.LedgerEntry{
		EntryID:     "LED_" + uuid.New().String(),
		InvestorID:  investorID,
		EntryType:   entryType,
		Amount:      amount,
		Status:      status,
		EffectiveAt: effectiveAt,
		Notes:       notes,
		CreatedBy:   appliedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx := s.db.DB().Begin()
	if err := tx.Error; err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if entryType == types.EntryWithdrawal {
		entries, err := CompletedEntries(tx, investorID)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		balance := Balance(entries)
		if balance.Sub(amount).IsNegative() {
			tx.Rollback()
			return nil, &types.InsufficientBalanceError{Balance: balance, Requested: amount}
		}
	}

	if err := tx.Create(entry).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create ledger entry: %w", err)
	}

	portfolio, err := Recalculate(tx, investorID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	// The recalculator rewrote the stored chain; reload the entry so
	// the response carries the stitched balances.
	saved, err := s.db.GetEntry(entry.EntryID)
	if err == nil && saved != nil {
		entry = saved
	}

	logger.Info().
		Str("entry_id", entry.EntryID).
		Str("amount", amount.String()).
		Str("status", entry.Status).
		Str("new_balance", portfolio.CurrentBalance.String()).
		Msg("ledger entry recorded")

	return &EntryResponse{Entry: entry, Portfolio: portfolio}, nil
}

// GetPortfolio returns the investor's portfolio snapshot.
func (s *Service) GetPortfolio(investorID string) (*types.Portfolio, error) {
	portfolio, err := s.db.GetPortfolio(investorID)
	if err != nil {
		return nil, err
	}
	if portfolio == nil {
		return nil, types.ErrInvestorNotFound
	}
	return portfolio, nil
}

// GetHistory returns the investor's ledger entries, newest first.
func (s *Service) GetHistory(investorID string) ([]types.LedgerEntry, error) {
	return s.db.GetInvestorEntries(investorID)
}

// GetDB exposes the database wrapper for the processor.
func (s *Service) GetDB() *Database {
	return s.db
}

// GinHandlers contains HTTP handlers for ledger endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type cashflowRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	EffectiveAt string          `json:"effective_at"`
	Notes       string          `json:"notes"`
}

func parseOptionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, types.ErrInvalidDate
	}
	return t, nil
}

func (h *GinHandlers) DepositHandler() gin.HandlerFunc {
	return h.cashflowHandler(h.service.Deposit)
}

func (h *GinHandlers) WithdrawHandler() gin.HandlerFunc {
	return h.cashflowHandler(h.service.Withdraw)
}

func (h *GinHandlers) ReferralCommissionHandler() gin.HandlerFunc {
	return h.cashflowHandler(h.service.ApplyReferralCommission)
}

func (h *GinHandlers) cashflowHandler(op func(string, decimal.Decimal, time.Time, string, string) (*EntryResponse, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		investorID := c.Param("investor_id")

		var req cashflowRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		effectiveAt, err := parseOptionalTime(req.EffectiveAt)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		resp, err := op(investorID, req.Amount, effectiveAt, c.GetString("adminID"), req.Notes)
		response.Handle(c, resp, err)
	}
}

func (h *GinHandlers) GetPortfolioHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		portfolio, err := h.service.GetPortfolio(c.Param("investor_id"))
		response.Handle(c, portfolio, err)
	}
}

func (h *GinHandlers) GetHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := h.service.GetHistory(c.Param("investor_id"))
		response.Handle(c, entries, err)
	}
}
