package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable is returned when candles for a timeframe cannot be fetched
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrTradeNotFound is returned for an unknown trade ID
	ErrTradeNotFound = errors.New("trade not found")
	// ErrAlreadyClosed is returned when recording an exit twice
	ErrAlreadyClosed = errors.New("trade already closed")
	// ErrInvalidSignal is returned when a nil or neutral signal reaches risk management
	ErrInvalidSignal = errors.New("invalid signal")
)

// RejectReason names why risk management declined a signal
type RejectReason string

const (
	RejectCooldown         RejectReason = "cooldown-active"
	RejectDailyLimit       RejectReason = "daily-limit-reached"
	RejectZeroRiskDistance RejectReason = "zero-risk-distance"
	RejectDrawdownHalt     RejectReason = "drawdown-halt"
	RejectPortfolioHeat    RejectReason = "portfolio-heat-exceeded"
	RejectRiskScore        RejectReason = "risk-score-too-high"
)

// RejectionError is returned when a valid signal is refused by risk rules
type RejectionError struct {
	Symbol string
	Reason RejectReason
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("signal for %s rejected: %s", e.Symbol, e.Reason)
}

// NoSignalError is returned when a recommendation is requested but the
// analysis cycle emitted no composite signal
type NoSignalError struct {
	Symbol string
	Reason NoSignalReason
}

func (e *NoSignalError) Error() string {
	return fmt.Sprintf("no signal for %s: %s", e.Symbol, e.Reason)
}

// DataUnavailableError wraps ErrDataUnavailable with the failing fetch
type DataUnavailableError struct {
	Symbol    string
	Timeframe Timeframe
	Err       error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Symbol, e.Timeframe, ErrDataUnavailable, e.Err)
}

func (e *DataUnavailableError) Unwrap() []error {
	return []error{ErrDataUnavailable, e.Err}
}

// IsRejection reports whether err is a risk rejection and returns its reason
func IsRejection(err error) (RejectReason, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}
