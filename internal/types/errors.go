package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Business errors raised by the engines. They are expected, user-facing
// failures: the HTTP layer maps them to status codes, nothing above it
// treats them as crashes.

var (
	// ErrInvalidDate is returned when a date payload cannot be parsed.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidAmount is returned when an amount is zero or negative
	// where a positive amount is required.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInvestorNotFound is returned when the referenced investor does
	// not exist or is inactive for engine purposes.
	ErrInvestorNotFound = errors.New("investor not found")
)

// FutureDateError rejects operations dated after today.
type FutureDateError struct {
	Date string
}

func (e *FutureDateError) Error() string {
	return fmt.Sprintf("date %s is in the future", e.Date)
}

// DuplicateDateError signals that a daily operating result already
// exists for the calendar date.
type DuplicateDateError struct {
	Date string
}

func (e *DuplicateDateError) Error() string {
	return fmt.Sprintf("an operating result already exists for %s", e.Date)
}

// NoEligibleInvestorsError signals that no active investor had a
// positive balance at the cutoff.
type NoEligibleInvestorsError struct {
	Date string
}

func (e *NoEligibleInvestorsError) Error() string {
	return fmt.Sprintf("no eligible investors with balance at the %s cutoff", e.Date)
}

// InvalidPeriodError signals a trading-fee period that does not match
// the investor's billing frequency, carrying the expected boundaries.
type InvalidPeriodError struct {
	Frequency     string
	ExpectedStart time.Time
	ExpectedEnd   time.Time
}

func (e *InvalidPeriodError) Error() string {
	return fmt.Sprintf("period does not match %s frequency, expected %s to %s",
		e.Frequency,
		e.ExpectedStart.Format("2006-01-02"),
		e.ExpectedEnd.Format("2006-01-02"))
}

// FeeAlreadyAppliedError signals a live fee already covering the period.
// It carries the existing fee so callers can display it.
type FeeAlreadyAppliedError struct {
	FeeID         string
	FeePercentage decimal.Decimal
	FeeAmount     decimal.Decimal
}

func (e *FeeAlreadyAppliedError) Error() string {
	return fmt.Sprintf("a trading fee of %s%% (%s) is already applied for this period", e.FeePercentage, e.FeeAmount)
}

// NoProfitError signals a period with zero or negative operating profit.
// ProfitAmount is reported as zero; losses are not netted against
// future periods.
type NoProfitError struct {
	PeriodStart  time.Time
	PeriodEnd    time.Time
	ProfitAmount decimal.Decimal
}

func (e *NoProfitError) Error() string {
	return fmt.Sprintf("no profit in period %s to %s",
		e.PeriodStart.Format("2006-01-02"), e.PeriodEnd.Format("2006-01-02"))
}

// InsufficientBalanceError signals an operation that would drive the
// portfolio balance negative.
type InsufficientBalanceError struct {
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %s, need %s", e.Balance, e.Requested)
}
