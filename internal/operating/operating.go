package operating

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ksred/fundledger/internal/ledger"
	"github.com/ksred/fundledger/internal/types"
	"github.com/ksred/fundledger/pkg/money"
	"github.com/ksred/fundledger/pkg/response"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CutoffHour is the local hour bounding "balance as of date X": an
// investor's eligibility balance only counts completed entries
// effective at or before the cutoff of the result date.
const CutoffHour = 18

// CutoffFor returns the eligibility cutoff instant for a result date.
func CutoffFor(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, CutoffHour, 0, 0, 0, time.Local)
}

// Service applies a daily percentage operating result across all
// eligible investors, in preview or commit mode. Preview and apply
// share one computation so their deltas are always identical.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// Preview computes the per-investor impact of a daily result without
// writing anything.
func (s *Service) Preview(dateStr string, percent decimal.Decimal) (*PreviewResponse, error) {
	date, err := s.parseDate(dateStr)
	if err != nil {
		return nil, err
	}
	if err := validPercent(percent); err != nil {
		return nil, err
	}

	impacts, totals, err := s.computeImpacts(s.db.DB(), date, percent)
	if err != nil {
		return nil, err
	}

	return &PreviewResponse{
		Date:        dateStr,
		Percent:     money.Round4(percent),
		Investors:   impacts,
		TotalBefore: totals.before,
		TotalDelta:  totals.delta,
		TotalAfter:  totals.after,
		NoImpact:    len(impacts) == 0,
	}, nil
}

// Apply commits a daily result: one DailyOperatingResult row plus one
// OPERATING_RESULT ledger entry per eligible investor, all-or-nothing.
func (s *Service) Apply(dateStr string, percent decimal.Decimal, appliedBy, notes string) (*ApplyResponse, error) {
	logger := log.With().
		Str("date", dateStr).
		Str("percent", percent.String()).
		Str("service", "operating").
		Logger()

	date, err := s.parseDate(dateStr)
	if err != nil {
		return nil, err
	}
	if err := validPercent(percent); err != nil {
		return nil, err
	}

	existing, err := s.db.GetResultByDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing result: %w", err)
	}
	if existing != nil {
		return nil, &types.DuplicateDateError{Date: dateStr}
	}

	result := &DailyOperatingResult{
		ResultID:  "DOR_" + uuid.New().String(),
		Date:      dateStr,
		Percent:   money.Round4(percent),
		AppliedBy: appliedBy,
		AppliedAt: time.Now(),
		Notes:     notes,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	var impacts []InvestorImpact
	var totals impactTotals

	err = s.db.DB().Transaction(func(tx *gorm.DB) error {
		impacts, totals, err = s.computeImpacts(tx, date, percent)
		if err != nil {
			return err
		}
		if len(impacts) == 0 {
			return &types.NoEligibleInvestorsError{Date: dateStr}
		}

		// The unique index on date serializes concurrent applies; the
		// loser fails here with the same error a sequential duplicate
		// gets, and everything rolls back.
		if err := tx.Create(result).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &types.DuplicateDateError{Date: dateStr}
			}
			return fmt.Errorf("failed to create operating result: %w", err)
		}

		cutoff := CutoffFor(date)
		for _, impact := range impacts {
			entry := &types.LedgerEntry{
				EntryID:         "LED_" + uuid.New().String(),
				InvestorID:      impact.InvestorID,
				EntryType:       types.EntryOperatingResult,
				Amount:          impact.Delta,
				PreviousBalance: impact.BalanceBefore,
				NewBalance:      impact.BalanceAfter,
				Status:          types.EntryCompleted,
				EffectiveAt:     cutoff,
				Notes:           notes,
				CreatedBy:       appliedBy,
				CreatedAt:       time.Now(),
				UpdatedAt:       time.Now(),
			}
			if err := tx.Create(entry).Error; err != nil {
				return fmt.Errorf("failed to create entry for %s: %w", impact.InvestorID, err)
			}

			if _, err := ledger.Recalculate(tx, impact.InvestorID); err != nil {
				return fmt.Errorf("failed to recalculate %s: %w", impact.InvestorID, err)
			}
		}

		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("daily result application failed")
		return nil, err
	}

	logger.Info().
		Str("result_id", result.ResultID).
		Int("investors", len(impacts)).
		Str("total_delta", totals.delta.String()).
		Msg("daily operating result applied")

	return &ApplyResponse{
		Result:      result,
		Investors:   impacts,
		TotalBefore: totals.before,
		TotalDelta:  totals.delta,
		TotalAfter:  totals.after,
	}, nil
}

// ListResults returns the applied daily results, newest date first.
func (s *Service) ListResults() ([]DailyOperatingResult, error) {
	return s.db.ListResults()
}

type impactTotals struct {
	before decimal.Decimal
	delta  decimal.Decimal
	after  decimal.Decimal
}

// computeImpacts derives each eligible investor's delta from its
// balance as of the cutoff. Both preview and apply route through here,
// which is what guarantees identical figures for identical pre-state.
func (s *Service) computeImpacts(tx *gorm.DB, date time.Time, percent decimal.Decimal) ([]InvestorImpact, impactTotals, error) {
	totals := impactTotals{before: decimal.Zero, delta: decimal.Zero, after: decimal.Zero}

	investors, err := activeInvestors(tx)
	if err != nil {
		return nil, totals, fmt.Errorf("failed to list investors: %w", err)
	}

	cutoff := CutoffFor(date)
	impacts := make([]InvestorImpact, 0, len(investors))

	for i := range investors {
		entries, err := ledger.CompletedEntriesAsOf(tx, investors[i].InvestorID, cutoff)
		if err != nil {
			return nil, totals, fmt.Errorf("failed to load entries for %s: %w", investors[i].InvestorID, err)
		}

		balance := ledger.Balance(entries)
		if !balance.IsPositive() {
			continue
		}

		delta := money.ApplyPercent(balance, percent)
		after := money.Round2(balance.Add(delta))

		impacts = append(impacts, InvestorImpact{
			InvestorID:    investors[i].InvestorID,
			Name:          investors[i].Name,
			BalanceBefore: balance,
			Delta:         delta,
			BalanceAfter:  after,
		})

		totals.before = totals.before.Add(balance)
		totals.delta = totals.delta.Add(delta)
		totals.after = totals.after.Add(after)
	}

	return impacts, totals, nil
}

func (s *Service) parseDate(dateStr string) (time.Time, error) {
	date, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", types.ErrInvalidDate, dateStr)
	}

	today := time.Now()
	endOfToday := time.Date(today.Year(), today.Month(), today.Day(), 23, 59, 59, 0, time.Local)
	if date.After(endOfToday) {
		return time.Time{}, &types.FutureDateError{Date: dateStr}
	}

	return date, nil
}

// validPercent bounds the percentage so a single day's result can never
// drive a balance negative.
func validPercent(percent decimal.Decimal) error {
	if percent.LessThanOrEqual(decimal.NewFromInt(-100)) {
		return types.ErrInvalidAmount
	}
	return nil
}

// GinHandlers contains HTTP handlers for operating result endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type resultRequest struct {
	Date    string          `json:"date" binding:"required"`
	Percent decimal.Decimal `json:"percent" binding:"required"`
	Notes   string          `json:"notes"`
}

// PreviewHandler handles POST requests to preview a daily result
func (h *GinHandlers) PreviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resultRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		preview, err := h.service.Preview(req.Date, req.Percent)
		response.Handle(c, preview, err)
	}
}

// ApplyHandler handles POST requests to apply a daily result
func (h *GinHandlers) ApplyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resultRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.Apply(req.Date, req.Percent, c.GetString("adminID"), req.Notes)
		response.Handle(c, result, err)
	}
}

// ListResultsHandler handles GET requests for the result history
func (h *GinHandlers) ListResultsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := h.service.ListResults()
		response.Handle(c, results, err)
	}
}
