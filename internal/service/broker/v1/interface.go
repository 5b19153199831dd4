// Package broker dispatches ledger events to observers.
package broker

import (
	"context"

	"github.com/danilovkiri/dk-go-depositledger/internal/models/modelledger"
)

// Sink receives Deposited notifications.
type Sink interface {
	Publish(ctx context.Context, event modelledger.DepositedEvent) error
}
