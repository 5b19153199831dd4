package processor

import (
	"context"

	"github.com/danilovkiri/dk-go-depositledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-depositledger/internal/models/modelledger"
	"github.com/shopspring/decimal"
)

type Processor interface {
	GetUserID(accessToken string) (string, error)
	AddNewUser(ctx context.Context, credentials modeldto.User) (string, error)
	LoginUser(ctx context.Context, credentials modeldto.User) (string, error)
	Deposit(ctx context.Context, accountID string, value decimal.Decimal) (modelledger.DepositRecord, error)
	Withdraw(ctx context.Context, accountID string, requested decimal.Decimal) (modelledger.DepositRecord, error)
	CurrentInterest(ctx context.Context, accountID string) (decimal.Decimal, error)
	GetBalance(ctx context.Context, accountID string) (*modeldto.Balance, error)
	GetDeposits(ctx context.Context, accountID string) ([]modelledger.DepositedEvent, error)
	OwnerWithdraw(ctx context.Context) error
	ReceiveBare(ctx context.Context, from string, value decimal.Decimal) error
	GetPool(ctx context.Context) (*modeldto.Pool, error)
}
