// Package loopback provides an in-process transfer that settles payouts immediately.
package loopback

import (
	"context"
	"fmt"
	"sync"

	transferErrors "github.com/danilovkiri/dk-go-depositledger/internal/service/transfer/v1/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Loopback records every payout per destination.
type Loopback struct {
	mu      sync.Mutex
	sent    map[string]decimal.Decimal
	settled map[string]struct{}
	log     *zerolog.Logger
}

// InitLoopback initializes an in-process transfer.
func InitLoopback(log *zerolog.Logger) *Loopback {
	return &Loopback{
		sent:    make(map[string]decimal.Decimal),
		settled: make(map[string]struct{}),
		log:     log,
	}
}

// Send settles the payout in memory once per key.
func (l *Loopback) Send(ctx context.Context, key, to string, amount decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return &transferErrors.RejectedError{Reason: err.Error()}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.settled[key]; ok {
		return nil
	}
	l.settled[key] = struct{}{}
	total, ok := l.sent[to]
	if !ok {
		total = decimal.Zero
	}
	l.sent[to] = total.Add(amount)
	l.log.Info().Msg(fmt.Sprintf("payout %s of %s settled for account %s", key, amount, to))
	return nil
}

// Sent returns the total paid out to an account.
func (l *Loopback) Sent(to string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	total, ok := l.sent[to]
	if !ok {
		return decimal.Zero
	}
	return total
}
