package storage

import (
	"context"

	"github.com/danilovkiri/dk-go-depositledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-depositledger/internal/models/modelledger"
	"github.com/shopspring/decimal"
)

type Register interface {
	AddNewUser(ctx context.Context, credentials modeldto.User, accountID string) error
	CheckUser(ctx context.Context, credentials modeldto.User) (string, error)
}

// Tx stages record and pool writes; nothing is visible to others before Commit.
// Rollback after Commit is a no-op.
type Tx interface {
	GetRecord(ctx context.Context, accountID string) (modelledger.DepositRecord, error)
	PutRecord(ctx context.Context, accountID string, record modelledger.DepositRecord) error
	GetPool(ctx context.Context) (decimal.Decimal, error)
	AddPool(ctx context.Context, delta decimal.Decimal) error
	Commit() error
	Rollback() error
}

type Ledger interface {
	BeginTx(ctx context.Context) (Tx, error)
	GetRecord(ctx context.Context, accountID string) (modelledger.DepositRecord, error)
	GetPool(ctx context.Context) (decimal.Decimal, error)
}

type Journal interface {
	AddDepositEvent(ctx context.Context, event modelledger.DepositedEvent) error
	GetDepositEvents(ctx context.Context, accountID string) ([]modelledger.DepositedEvent, error)
}

type Storage interface {
	Register
	Ledger
	Journal
}
