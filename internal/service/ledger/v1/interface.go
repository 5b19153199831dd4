// Package ledger defines the account ledger owning all deposit records.
package ledger

import (
	"context"

	"github.com/danilovkiri/dk-go-depositledger/internal/models/modelledger"
	"github.com/danilovkiri/dk-go-depositledger/internal/storage/v1"
	"github.com/shopspring/decimal"
)

// Ledger defines a set of methods for types implementing Ledger.
type Ledger interface {
	Get(ctx context.Context, tx storage.Tx, accountID string, now uint64) (modelledger.DepositRecord, error)
	ApplyAccrual(ctx context.Context, tx storage.Tx, accountID string, now uint64) (modelledger.DepositRecord, error)
	Credit(ctx context.Context, tx storage.Tx, accountID string, amount decimal.Decimal) (modelledger.DepositRecord, error)
	Debit(ctx context.Context, tx storage.Tx, accountID string, amount decimal.Decimal) (modelledger.DepositRecord, error)
	Restore(ctx context.Context, tx storage.Tx, accountID string, record modelledger.DepositRecord) error
	Peek(ctx context.Context, accountID string, now uint64) (modelledger.DepositRecord, modelledger.DepositRecord, error)
}
