package investor

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ksred/fundledger/internal/types"
	"github.com/ksred/fundledger/pkg/money"
	"github.com/ksred/fundledger/pkg/period"
	"github.com/ksred/fundledger/pkg/response"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service manages the investor directory. The engines treat it as a
// read-side collaborator; portfolios are created lazily by the first
// ledger write, not here.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// CreateInvestor registers a new ACTIVE investor with a billing
// frequency and default trading-fee percentage.
func (s *Service) CreateInvestor(name, email, frequency string, feePercent decimal.Decimal) (*types.Investor, error) {
	logger := log.With().
		Str("service", "investor").
		Str("email", email).
		Logger()

	freq, err := period.Parse(frequency)
	if err != nil {
		return nil, err
	}
	if feePercent.IsNegative() {
		return nil, types.ErrInvalidAmount
	}

	investor := &types.Investor{
		InvestorID:          "INV_" + uuid.New().String(),
		Name:                name,
		Email:               email,
		Status:              types.InvestorActive,
		TradingFeeFrequency: freq.String(),
		TradingFeePercent:   money.Round4(feePercent),
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}

	if err := s.db.CreateInvestor(investor); err != nil {
		logger.Error().Err(err).Msg("failed to create investor")
		return nil, fmt.Errorf("failed to create investor: %w", err)
	}

	logger.Info().
		Str("investor_id", investor.InvestorID).
		Str("frequency", investor.TradingFeeFrequency).
		Msg("investor created")

	return investor, nil
}

func (s *Service) GetInvestor(investorID string) (*types.Investor, error) {
	investor, err := s.db.GetInvestor(investorID)
	if err != nil {
		return nil, err
	}
	if investor == nil {
		return nil, types.ErrInvestorNotFound
	}
	return investor, nil
}

func (s *Service) ListInvestors() ([]types.Investor, error) {
	return s.db.ListInvestors()
}

// SetStatus activates or deactivates an investor. Inactive investors
// are excluded from all engine operations but keep their ledger.
func (s *Service) SetStatus(investorID, status string) (*types.Investor, error) {
	if status != types.InvestorActive && status != types.InvestorInactive {
		return nil, fmt.Errorf("%w: status must be ACTIVE or INACTIVE", types.ErrInvalidAmount)
	}

	investor, err := s.GetInvestor(investorID)
	if err != nil {
		return nil, err
	}

	investor.Status = status
	investor.UpdatedAt = time.Now()
	if err := s.db.UpdateInvestor(investor); err != nil {
		return nil, err
	}

	log.Info().
		Str("service", "investor").
		Str("investor_id", investorID).
		Str("status", status).
		Msg("investor status updated")

	return investor, nil
}

// SetFeeSettings updates the billing frequency and default fee
// percentage used by the trading fee engine.
func (s *Service) SetFeeSettings(investorID, frequency string, feePercent decimal.Decimal) (*types.Investor, error) {
	freq, err := period.Parse(frequency)
	if err != nil {
		return nil, err
	}
	if feePercent.IsNegative() {
		return nil, types.ErrInvalidAmount
	}

	investor, err := s.GetInvestor(investorID)
	if err != nil {
		return nil, err
	}

	investor.TradingFeeFrequency = freq.String()
	investor.TradingFeePercent = money.Round4(feePercent)
	investor.UpdatedAt = time.Now()
	if err := s.db.UpdateInvestor(investor); err != nil {
		return nil, err
	}

	return investor, nil
}

// GetDB exposes the database wrapper for the engines
func (s *Service) GetDB() *Database {
	return s.db
}

// GinHandlers contains HTTP handlers for investor endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type createInvestorRequest struct {
	Name       string          `json:"name" binding:"required"`
	Email      string          `json:"email" binding:"required"`
	Frequency  string          `json:"trading_fee_frequency" binding:"required"`
	FeePercent decimal.Decimal `json:"trading_fee_percent"`
}

func (h *GinHandlers) CreateInvestorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createInvestorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		investor, err := h.service.CreateInvestor(req.Name, req.Email, req.Frequency, req.FeePercent)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		response.Success(c, investor)
	}
}

func (h *GinHandlers) GetInvestorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		investor, err := h.service.GetInvestor(c.Param("investor_id"))
		response.Handle(c, investor, err)
	}
}

func (h *GinHandlers) ListInvestorsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		investors, err := h.service.ListInvestors()
		response.Handle(c, investors, err)
	}
}

func (h *GinHandlers) SetStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		investor, err := h.service.SetStatus(c.Param("investor_id"), req.Status)
		response.Handle(c, investor, err)
	}
}

func (h *GinHandlers) SetFeeSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Frequency  string          `json:"trading_fee_frequency" binding:"required"`
			FeePercent decimal.Decimal `json:"trading_fee_percent"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		investor, err := h.service.SetFeeSettings(c.Param("investor_id"), req.Frequency, req.FeePercent)
		response.Handle(c, investor, err)
	}
}
