// Package processor provides deposit accounting between the ledger, the custody pool and API handlers.

package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danilovkiri/dk-go-depositledger/internal/clock"
	"github.com/danilovkiri/dk-go-depositledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-depositledger/internal/models/modelledger"
	"github.com/danilovkiri/dk-go-depositledger/internal/service/broker/v1"
	"github.com/danilovkiri/dk-go-depositledger/internal/service/guard/v1/guard"
	"github.com/danilovkiri/dk-go-depositledger/internal/service/ledger/v1"
	ledgerErrors "github.com/danilovkiri/dk-go-depositledger/internal/service/ledger/v1/errors"
	serviceErrors "github.com/danilovkiri/dk-go-depositledger/internal/service/processor/v1/errors"
	"github.com/danilovkiri/dk-go-depositledger/internal/service/secretary/v1"
	"github.com/danilovkiri/dk-go-depositledger/internal/service/transfer/v1"
	transferErrors "github.com/danilovkiri/dk-go-depositledger/internal/service/transfer/v1/errors"
	"github.com/danilovkiri/dk-go-depositledger/internal/storage/v1"
	storageErrors "github.com/danilovkiri/dk-go-depositledger/internal/storage/v1/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const compensationTimeout = 5 * time.Second

// Processor defines attributes of a struct available to its methods.
type Processor struct {
	storage              storage.Storage
	ledger               ledger.Ledger
	secretary            secretary.Secretary
	transfer             transfer.Transfer
	sink                 broker.Sink
	clock                clock.Clock
	log                  *zerolog.Logger
	locks                sync.Map
	maxWithdrawalRateBps int64
}

// InitService initializes the deposit accounting service.
func InitService(st storage.Storage, l ledger.Ledger, sec secretary.Secretary, tr transfer.Transfer, sink broker.Sink, clk clock.Clock, log *zerolog.Logger) (*Processor, error) {
	if st == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil storage was passed to service initializer"}
	}
	if l == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil ledger was passed to service initializer"}
	}
	if sec == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil secretary was passed to service initializer"}
	}
	if tr == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil transfer was passed to service initializer"}
	}
	if sink == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil event sink was passed to service initializer"}
	}
	if clk == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil clock was passed to service initializer"}
	}
	processor := &Processor{
		storage:              st,
		ledger:               l,
		secretary:            sec,
		transfer:             tr,
		sink:                 sink,
		clock:                clk,
		log:                  log,
		maxWithdrawalRateBps: modelledger.MaxWithdrawalRateBps,
	}
	return processor, nil
}

// GetUserID retrieves the account number from token.
func (proc *Processor) GetUserID(accessToken string) (string, error) {
	return proc.secretary.ValidateToken(accessToken)
}

// AddNewUser processes user register requests.
func (proc *Processor) AddNewUser(ctx context.Context, credentials modeldto.User) (string, error) {
	accessToken, accountID, err := proc.secretary.NewToken()
	if err != nil {
		return "", err
	}
	cipheredCredentials := modeldto.User{
		Login:    proc.secretary.Encode(credentials.Login),
		Password: proc.secretary.Encode(credentials.Password),
	}
	err = proc.storage.AddNewUser(ctx, cipheredCredentials, accountID)
	if err != nil {
		return "", err
	}
	return accessToken, nil
}

// LoginUser processes user login requests.
func (proc *Processor) LoginUser(ctx context.Context, credentials modeldto.User) (string, error) {
	cipheredCredentials := modeldto.User{
		Login:    proc.secretary.Encode(credentials.Login),
		Password: proc.secretary.Encode(credentials.Password),
	}
	accountID, err := proc.storage.CheckUser(ctx, cipheredCredentials)
	if err != nil {
		return "", err
	}
	return proc.secretary.GetTokenForUser(accountID)
}

// Deposit accrues interest, credits value and adds it to the custody pool in one transaction.
func (proc *Processor) Deposit(ctx context.Context, accountID string, value decimal.Decimal) (modelledger.DepositRecord, error) {
	if value.Sign() <= 0 {
		return modelledger.DepositRecord{}, &ledgerErrors.InvalidAmountError{Msg: "deposit amount must be greater than 0"}
	}
	unlock, err := proc.lock(ctx, accountID)
	if err != nil {
		return modelledger.DepositRecord{}, err
	}
	defer unlock()

	now := proc.clock.Now()
	tx, err := proc.storage.BeginTx(ctx)
	if err != nil {
		return modelledger.DepositRecord{}, err
	}
	defer tx.Rollback()
	if _, err = proc.ledger.ApplyAccrual(ctx, tx, accountID, now); err != nil {
		return modelledger.DepositRecord{}, err
	}
	record, err := proc.ledger.Credit(ctx, tx, accountID, value)
	if err != nil {
		return modelledger.DepositRecord{}, err
	}
	if err = tx.AddPool(ctx, value); err != nil {
		return modelledger.DepositRecord{}, err
	}
	if err = tx.Commit(); err != nil {
		return modelledger.DepositRecord{}, err
	}
	proc.log.Info().Msg(fmt.Sprintf("deposit of %s done for account %s", value, accountID))

	event := modelledger.DepositedEvent{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Amount:    value,
		Timestamp: now,
	}
	if err = proc.sink.Publish(ctx, event); err != nil {
		// the deposit is committed, only the notification is lost
		proc.log.Error().Err(err).Msg(fmt.Sprintf("publishing deposit event failed for account %s", accountID))
	}
	return record, nil
}

// Withdraw accrues interest, validates the request against the balance and the per-call cap,
// commits the debit and only then sends value out. A rejected payout restores the previous state;
// a payout with unknown outcome keeps the debit and returns PayoutPendingError.
func (proc *Processor) Withdraw(ctx context.Context, accountID string, requested decimal.Decimal) (modelledger.DepositRecord, error) {
	if requested.Sign() <= 0 {
		return modelledger.DepositRecord{}, &ledgerErrors.InvalidAmountError{Msg: "withdraw amount must greater than 0"}
	}
	unlock, err := proc.lock(ctx, accountID)
	if err != nil {
		return modelledger.DepositRecord{}, err
	}
	defer unlock()

	now := proc.clock.Now()
	tx, err := proc.storage.BeginTx(ctx)
	if err != nil {
		return modelledger.DepositRecord{}, err
	}
	defer tx.Rollback()
	before, err := proc.ledger.Get(ctx, tx, accountID, now)
	if err != nil {
		return modelledger.DepositRecord{}, err
	}
	accrued, err := proc.ledger.ApplyAccrual(ctx, tx, accountID, now)
	if err != nil {
		return modelledger.DepositRecord{}, err
	}
	if requested.GreaterThan(accrued.Amount) {
		return modelledger.DepositRecord{}, &ledgerErrors.InsufficientBalanceError{Balance: accrued.Amount, Requested: requested}
	}
	if err = guard.Authorize(accrued.Amount, requested, proc.maxWithdrawalRateBps); err != nil {
		return modelledger.DepositRecord{}, err
	}
	record, err := proc.ledger.Debit(ctx, tx, accountID, requested)
	if err != nil {
		return modelledger.DepositRecord{}, err
	}
	held, err := tx.GetPool(ctx)
	if err != nil {
		return modelledger.DepositRecord{}, err
	}
	if held.LessThan(requested) {
		return modelledger.DepositRecord{}, &serviceErrors.InsufficientLiquidityError{Held: held, Required: requested}
	}
	if err = tx.AddPool(ctx, requested.Neg()); err != nil {
		return modelledger.DepositRecord{}, err
	}
	if err = tx.Commit(); err != nil {
		return modelledger.DepositRecord{}, err
	}

	key := uuid.New().String()
	if err = proc.transfer.Send(ctx, key, accountID, requested); err != nil {
		var rejectedError *transferErrors.RejectedError
		if !errors.As(err, &rejectedError) {
			// the rail may have paid, so the debit stands
			proc.log.Error().Err(err).Msg(fmt.Sprintf("payout %s of %s for account %s has unknown outcome, debit kept for reconciliation", key, requested, accountID))
			return modelledger.DepositRecord{}, &serviceErrors.PayoutPendingError{Key: key, Err: err}
		}
		proc.log.Error().Err(err).Msg(fmt.Sprintf("payout %s of %s rejected for account %s", key, requested, accountID))
		if compErr := proc.compensate(accountID, before, requested); compErr != nil {
			proc.log.Error().Err(compErr).Msg(fmt.Sprintf("restoring account %s after rejected payout failed", accountID))
			return modelledger.DepositRecord{}, &serviceErrors.TransferFailedError{Err: errors.New(err.Error() + "; " + compErr.Error())}
		}
		return modelledger.DepositRecord{}, &serviceErrors.TransferFailedError{Err: err}
	}
	proc.log.Info().Msg(fmt.Sprintf("withdrawal of %s done for account %s", requested, accountID))
	return record, nil
}

// compensate puts back the record read before a withdrawal and returns the value to the pool.
// It runs on its own context since the request context may already be done.
func (proc *Processor) compensate(accountID string, before modelledger.DepositRecord, amount decimal.Decimal) error {
	ctx, cancel := context.WithTimeout(context.Background(), compensationTimeout)
	defer cancel()
	tx, err := proc.storage.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err = proc.ledger.Restore(ctx, tx, accountID, before); err != nil {
		return err
	}
	if err = tx.AddPool(ctx, amount); err != nil {
		return err
	}
	return tx.Commit()
}

// CurrentInterest returns the interest that accrual would credit now, without persisting it.
func (proc *Processor) CurrentInterest(ctx context.Context, accountID string) (decimal.Decimal, error) {
	unlock, err := proc.lock(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	defer unlock()
	before, accrued, err := proc.ledger.Peek(ctx, accountID, proc.clock.Now())
	if err != nil {
		return decimal.Zero, err
	}
	return accrued.Amount.Sub(before.Amount), nil
}

// GetBalance processes balance query requests on an accrued copy of the record.
func (proc *Processor) GetBalance(ctx context.Context, accountID string) (*modeldto.Balance, error) {
	unlock, err := proc.lock(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	before, accrued, err := proc.ledger.Peek(ctx, accountID, proc.clock.Now())
	if err != nil {
		return nil, err
	}
	return &modeldto.Balance{
		AccountID:       accountID,
		CurrentAmount:   accrued.Amount,
		LastUpdate:      before.LastUpdate,
		PendingInterest: accrued.Amount.Sub(before.Amount),
		WithdrawalLimit: guard.Limit(accrued.Amount, proc.maxWithdrawalRateBps),
	}, nil
}

// GetDeposits processes deposit history requests.
func (proc *Processor) GetDeposits(ctx context.Context, accountID string) ([]modelledger.DepositedEvent, error) {
	return proc.storage.GetDepositEvents(ctx, accountID)
}

// OwnerWithdraw is permanently disabled.
func (proc *Processor) OwnerWithdraw(ctx context.Context) error {
	proc.log.Warn().Msg("owner withdrawal attempted")
	return &ledgerErrors.OperationDisabledError{Msg: "function disabled to prevent bank run"}
}

// ReceiveBare accepts value into the pool without crediting any deposit record.
func (proc *Processor) ReceiveBare(ctx context.Context, from string, value decimal.Decimal) error {
	if value.IsNegative() {
		return &ledgerErrors.InvalidAmountError{Msg: "transfer amount must not be negative"}
	}
	tx, err := proc.storage.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err = tx.AddPool(ctx, value); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	proc.log.Warn().Msg(fmt.Sprintf("bare transfer of %s from %s accepted without ledger credit", value, from))
	return nil
}

// GetPool returns the total value held by the custody pool.
func (proc *Processor) GetPool(ctx context.Context) (*modeldto.Pool, error) {
	held, err := proc.storage.GetPool(ctx)
	if err != nil {
		return nil, err
	}
	return &modeldto.Pool{Held: held}, nil
}

// lock takes the per-account slot, giving up when ctx ends.
func (proc *Processor) lock(ctx context.Context, accountID string) (func(), error) {
	value, _ := proc.locks.LoadOrStore(accountID, make(chan struct{}, 1))
	slot := value.(chan struct{})
	select {
	case <-ctx.Done():
		return nil, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	}
}
