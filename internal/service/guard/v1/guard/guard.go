// Package guard enforces the per-call withdrawal cap.
package guard

import (
	"github.com/danilovkiri/dk-go-depositledger/internal/models/modelledger"
	ledgerErrors "github.com/danilovkiri/dk-go-depositledger/internal/service/ledger/v1/errors"
	"github.com/shopspring/decimal"
)

// Limit returns floor(balance * maxWithdrawalRateBps / 10000).
func Limit(balance decimal.Decimal, maxWithdrawalRateBps int64) decimal.Decimal {
	if balance.Sign() <= 0 {
		return decimal.Zero
	}
	limit, _ := balance.Mul(decimal.NewFromInt(maxWithdrawalRateBps)).QuoRem(decimal.NewFromInt(modelledger.BpsDenominator), 0)
	return limit
}

// Authorize checks requested against the limit derived from the current balance.
// A request equal to the limit passes.
func Authorize(balance, requested decimal.Decimal, maxWithdrawalRateBps int64) error {
	limit := Limit(balance, maxWithdrawalRateBps)
	if requested.GreaterThan(limit) {
		return &ledgerErrors.ExceedsWithdrawalLimitError{Limit: limit, Requested: requested}
	}
	return nil
}
