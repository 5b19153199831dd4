// Package transfer defines the outbound value transfer collaborator.
package transfer

import (
	"context"

	"github.com/shopspring/decimal"
)

// Transfer sends value out of the custody pool.
// Calls sharing a key settle at most once. Only a *errors.RejectedError guarantees nothing was paid.
type Transfer interface {
	Send(ctx context.Context, key, to string, amount decimal.Decimal) error
}
