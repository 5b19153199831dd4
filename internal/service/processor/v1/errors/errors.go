package errors

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type (
	ServiceFoundNilArgument struct {
		Msg string
	}
	// TransferFailedError means the payout was rejected and the withdrawal was reverted.
	TransferFailedError struct {
		Err error
	}
	// PayoutPendingError means the payout outcome is unknown; the debit stands until reconciled by key.
	PayoutPendingError struct {
		Key string
		Err error
	}
	InsufficientLiquidityError struct {
		Held     decimal.Decimal
		Required decimal.Decimal
	}
)

func (e *ServiceFoundNilArgument) Error() string {
	return e.Msg
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("%s: value transfer failed", e.Err.Error())
}

func (e *TransferFailedError) Unwrap() error {
	return e.Err
}

func (e *PayoutPendingError) Error() string {
	return fmt.Sprintf("%s: payout %s pending reconciliation", e.Err.Error(), e.Key)
}

func (e *PayoutPendingError) Unwrap() error {
	return e.Err
}

func (e *InsufficientLiquidityError) Error() string {
	return fmt.Sprintf("insufficient pool liquidity: held - %s, required - %s", e.Held, e.Required)
}
