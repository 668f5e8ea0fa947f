package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput    = errors.New("error invalid input")
	ErrRateNotFound    = errors.New("error rate not found")
	ErrRateUnavailable = errors.New("error rate unavailable")
	ErrNothingToReport = errors.New("error nothing to report")
)

// InsufficientBalanceError is an expected outcome of a sell request, not a
// fault. It carries the available balance so the caller can show it.
type InsufficientBalanceError struct {
	Balance decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: %s available", e.Balance)
}
