// Package accrual computes simple interest owed on a deposit record.
package accrual

import (
	"github.com/danilovkiri/dk-go-depositledger/internal/models/modelledger"
	ledgerErrors "github.com/danilovkiri/dk-go-depositledger/internal/service/ledger/v1/errors"
	"github.com/shopspring/decimal"
)

// Interest returns floor(amount * rateBps * fullYears / 10000) for the elapsed seconds.
// Partial years earn nothing.
func Interest(amount decimal.Decimal, elapsed uint64, annualRateBps int64) decimal.Decimal {
	// elapsed / SecondsPerYear always fits in int64
	years := int64(elapsed / modelledger.SecondsPerYear)
	if years == 0 || amount.Sign() <= 0 {
		return decimal.Zero
	}
	numerator := amount.Mul(decimal.NewFromInt(annualRateBps)).Mul(decimal.NewFromInt(years))
	interest, _ := numerator.QuoRem(decimal.NewFromInt(modelledger.BpsDenominator), 0)
	return interest
}

// Accrue brings record up to date as of now and returns the updated copy.
func Accrue(record modelledger.DepositRecord, now uint64, annualRateBps int64) (modelledger.DepositRecord, error) {
	if now < record.LastUpdate {
		return record, &ledgerErrors.InvalidTimestampError{LastUpdate: record.LastUpdate, Now: now}
	}
	if record.Amount.IsZero() {
		return modelledger.NewRecord(now), nil
	}
	interest := Interest(record.Amount, now-record.LastUpdate, annualRateBps)
	return modelledger.DepositRecord{
		Amount:     record.Amount.Add(interest),
		LastUpdate: now,
	}, nil
}
