// Package modelledger provides types for deposit accounting.

package modelledger

import "github.com/shopspring/decimal"

const (
	// AnnualInterestRateBps is the simple annual interest rate, 500 bps = 5%.
	AnnualInterestRateBps int64 = 500
	// MaxWithdrawalRateBps caps a single withdrawal to 60% of the current balance.
	MaxWithdrawalRateBps int64 = 6000
	// BpsDenominator is the basis point scale.
	BpsDenominator int64 = 10000
	// SecondsPerYear is one 365-day year.
	SecondsPerYear uint64 = 31536000
)

type (
	// DepositRecord is the per-account balance in smallest currency units.
	DepositRecord struct {
		Amount     decimal.Decimal `json:"amount"`
		LastUpdate uint64          `json:"last_update"`
	}
	// DepositedEvent is emitted after every committed deposit.
	DepositedEvent struct {
		ID        string          `json:"id"`
		AccountID string          `json:"account"`
		Amount    decimal.Decimal `json:"amount"`
		Timestamp uint64          `json:"timestamp"`
	}
)

// NewRecord returns a zero-balance record touched at now.
func NewRecord(now uint64) DepositRecord {
	return DepositRecord{Amount: decimal.Zero, LastUpdate: now}
}
