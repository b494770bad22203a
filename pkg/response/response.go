package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ksred/fundledger/internal/types"
	"gorm.io/gorm"
)

// Response represents a standardized API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents an error response
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Common error codes
const (
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeInternalError       = "INTERNAL_ERROR"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeDuplicateResource   = "DUPLICATE_RESOURCE"
	ErrCodeDuplicateDate       = "DUPLICATE_DATE"
	ErrCodeFutureDate          = "FUTURE_DATE"
	ErrCodeNoEligibleInvestors = "NO_ELIGIBLE_INVESTORS"
	ErrCodeInvalidPeriod       = "INVALID_PERIOD"
	ErrCodeFeeAlreadyApplied   = "FEE_ALREADY_APPLIED"
	ErrCodeNoProfit            = "NO_PROFIT"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
)

// Handle processes the error and returns appropriate response
func Handle(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	var (
		dupDate      *types.DuplicateDateError
		futureDate   *types.FutureDateError
		noEligible   *types.NoEligibleInvestorsError
		invalidPer   *types.InvalidPeriodError
		feeApplied   *types.FeeAlreadyAppliedError
		noProfit     *types.NoProfitError
		insufficient *types.InsufficientBalanceError
	)

	switch {
	case errors.As(err, &dupDate):
		businessError(c, http.StatusConflict, ErrCodeDuplicateDate, err.Error(), nil)
	case errors.As(err, &futureDate):
		businessError(c, http.StatusBadRequest, ErrCodeFutureDate, err.Error(), nil)
	case errors.As(err, &noEligible):
		businessError(c, http.StatusUnprocessableEntity, ErrCodeNoEligibleInvestors, err.Error(), nil)
	case errors.As(err, &invalidPer):
		businessError(c, http.StatusUnprocessableEntity, ErrCodeInvalidPeriod, err.Error(), gin.H{
			"frequency":      invalidPer.Frequency,
			"expected_start": invalidPer.ExpectedStart.Format("2006-01-02"),
			"expected_end":   invalidPer.ExpectedEnd.Format("2006-01-02"),
		})
	case errors.As(err, &feeApplied):
		businessError(c, http.StatusConflict, ErrCodeFeeAlreadyApplied, err.Error(), gin.H{
			"fee_id":         feeApplied.FeeID,
			"fee_percentage": feeApplied.FeePercentage,
			"fee_amount":     feeApplied.FeeAmount,
		})
	case errors.As(err, &noProfit):
		businessError(c, http.StatusUnprocessableEntity, ErrCodeNoProfit, err.Error(), gin.H{
			"profit_amount": noProfit.ProfitAmount,
		})
	case errors.As(err, &insufficient):
		businessError(c, http.StatusUnprocessableEntity, ErrCodeInsufficientBalance, err.Error(), nil)
	case errors.Is(err, types.ErrInvalidDate), errors.Is(err, types.ErrInvalidAmount):
		BadRequest(c, err.Error())
	case errors.Is(err, types.ErrInvestorNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "Resource not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		Conflict(c, "Resource already exists")
	default:
		InternalError(c, "An unexpected error occurred")
	}
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == "POST" {
		status = http.StatusCreated
	}

	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeNotFound,
			Message: message,
		},
	})
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeBadRequest,
			Message: message,
		},
	})
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeUnauthorized,
			Message: message,
		},
	})
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeForbidden,
			Message: message,
		},
	})
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeInternalError,
			Message: message,
		},
	})
}

// Conflict sends a 409 response
func Conflict(c *gin.Context, message string) {
	c.JSON(http.StatusConflict, Response{
		Success: false,
		Error: &Error{
			Code:    ErrCodeDuplicateResource,
			Message: message,
		},
	})
}

// businessError sends a typed business failure with optional details
func businessError(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
