// Package errors provides custom error types for deposit accounting.

package errors

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type (
	InvalidAmountError struct {
		Msg string
	}
	InsufficientBalanceError struct {
		Balance   decimal.Decimal
		Requested decimal.Decimal
	}
	ExceedsWithdrawalLimitError struct {
		Limit     decimal.Decimal
		Requested decimal.Decimal
	}
	OperationDisabledError struct {
		Msg string
	}
	InvalidTimestampError struct {
		LastUpdate uint64
		Now        uint64
	}
)

func (e *InvalidAmountError) Error() string {
	return e.Msg
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: present - %s, required - %s", e.Balance, e.Requested)
}

func (e *ExceedsWithdrawalLimitError) Error() string {
	return fmt.Sprintf("exceeds maximum withdrawal limit: limit - %s, required - %s", e.Limit, e.Requested)
}

func (e *OperationDisabledError) Error() string {
	return e.Msg
}

func (e *InvalidTimestampError) Error() string {
	return fmt.Sprintf("timestamp %d precedes last update %d", e.Now, e.LastUpdate)
}
