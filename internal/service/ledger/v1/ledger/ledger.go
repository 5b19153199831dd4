// Package ledger implements the account ledger on top of a transactional storage.

package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/danilovkiri/dk-go-depositledger/internal/models/modelledger"
	"github.com/danilovkiri/dk-go-depositledger/internal/service/accrual/v1/accrual"
	ledgerErrors "github.com/danilovkiri/dk-go-depositledger/internal/service/ledger/v1/errors"
	"github.com/danilovkiri/dk-go-depositledger/internal/storage/v1"
	storageErrors "github.com/danilovkiri/dk-go-depositledger/internal/storage/v1/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Ledger defines attributes of a struct available to its methods.
type Ledger struct {
	storage       storage.Ledger
	annualRateBps int64
	log           *zerolog.Logger
}

// InitLedger initializes the account ledger with the fixed annual interest rate.
func InitLedger(st storage.Ledger, log *zerolog.Logger) (*Ledger, error) {
	if st == nil {
		return nil, errors.New("nil storage was passed to ledger initializer")
	}
	return &Ledger{
		storage:       st,
		annualRateBps: modelledger.AnnualInterestRateBps,
		log:           log,
	}, nil
}

// ParseAmount parses a non-negative integer amount of smallest currency units.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ledgerErrors.InvalidAmountError{Msg: fmt.Sprintf("illegal amount %q", raw)}
	}
	if amount.IsNegative() || !amount.Equal(amount.Truncate(0)) {
		return decimal.Zero, &ledgerErrors.InvalidAmountError{Msg: fmt.Sprintf("illegal amount %q", raw)}
	}
	return amount.Truncate(0), nil
}

// Get returns the stored record or a zero record first touched at now.
func (l *Ledger) Get(ctx context.Context, tx storage.Tx, accountID string, now uint64) (modelledger.DepositRecord, error) {
	record, err := tx.GetRecord(ctx, accountID)
	if err != nil {
		var notFoundError *storageErrors.NotFoundError
		if errors.As(err, &notFoundError) {
			return modelledger.NewRecord(now), nil
		}
		return modelledger.DepositRecord{}, err
	}
	return record, nil
}

// ApplyAccrual brings the record up to date as of now and stages it in tx.
func (l *Ledger) ApplyAccrual(ctx context.Context, tx storage.Tx, accountID string, now uint64) (modelledger.DepositRecord, error) {
	record, err := l.Get(ctx, tx, accountID, now)
	if err != nil {
		return modelledger.DepositRecord{}, err
	}
	accrued, err := accrual.Accrue(record, now, l.annualRateBps)
	if err != nil {
		l.log.Error().Err(err).Msg(fmt.Sprintf("accrual failed for account %s", accountID))
		return modelledger.DepositRecord{}, err
	}
	if err = tx.PutRecord(ctx, accountID, accrued); err != nil {
		return modelledger.DepositRecord{}, err
	}
	if !accrued.Amount.Equal(record.Amount) {
		l.log.Info().Msg(fmt.Sprintf("accrued %s interest for account %s", accrued.Amount.Sub(record.Amount), accountID))
	}
	return accrued, nil
}

// Credit adds amount to the record balance. ApplyAccrual must run first.
func (l *Ledger) Credit(ctx context.Context, tx storage.Tx, accountID string, amount decimal.Decimal) (modelledger.DepositRecord, error) {
	if amount.Sign() <= 0 {
		return modelledger.DepositRecord{}, &ledgerErrors.InvalidAmountError{Msg: "deposit amount must be greater than 0"}
	}
	record, err := tx.GetRecord(ctx, accountID)
	if err != nil {
		return modelledger.DepositRecord{}, err
	}
	record.Amount = record.Amount.Add(amount)
	if err = tx.PutRecord(ctx, accountID, record); err != nil {
		return modelledger.DepositRecord{}, err
	}
	return record, nil
}

// Debit subtracts amount from the record balance. ApplyAccrual must run first.
func (l *Ledger) Debit(ctx context.Context, tx storage.Tx, accountID string, amount decimal.Decimal) (modelledger.DepositRecord, error) {
	if amount.Sign() <= 0 {
		return modelledger.DepositRecord{}, &ledgerErrors.InvalidAmountError{Msg: "withdraw amount must be greater than 0"}
	}
	record, err := tx.GetRecord(ctx, accountID)
	if err != nil {
		var notFoundError *storageErrors.NotFoundError
		if errors.As(err, &notFoundError) {
			return modelledger.DepositRecord{}, &ledgerErrors.InsufficientBalanceError{Balance: decimal.Zero, Requested: amount}
		}
		return modelledger.DepositRecord{}, err
	}
	if amount.GreaterThan(record.Amount) {
		return modelledger.DepositRecord{}, &ledgerErrors.InsufficientBalanceError{Balance: record.Amount, Requested: amount}
	}
	record.Amount = record.Amount.Sub(amount)
	if err = tx.PutRecord(ctx, accountID, record); err != nil {
		return modelledger.DepositRecord{}, err
	}
	return record, nil
}

// Restore writes back a record read earlier in the same account lock.
func (l *Ledger) Restore(ctx context.Context, tx storage.Tx, accountID string, record modelledger.DepositRecord) error {
	return tx.PutRecord(ctx, accountID, record)
}

// Peek accrues a copy of the committed record without persisting it.
// It returns the record before and after accrual.
func (l *Ledger) Peek(ctx context.Context, accountID string, now uint64) (modelledger.DepositRecord, modelledger.DepositRecord, error) {
	record, err := l.storage.GetRecord(ctx, accountID)
	if err != nil {
		var notFoundError *storageErrors.NotFoundError
		if !errors.As(err, &notFoundError) {
			return modelledger.DepositRecord{}, modelledger.DepositRecord{}, err
		}
		record = modelledger.NewRecord(now)
	}
	accrued, err := accrual.Accrue(record, now, l.annualRateBps)
	if err != nil {
		return modelledger.DepositRecord{}, modelledger.DepositRecord{}, err
	}
	return record, accrued, nil
}
