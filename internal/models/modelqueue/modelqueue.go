// Package modelqueue provides types for queueing pieces of data.

package modelqueue

import (
	"time"

	"github.com/danilovkiri/dk-go-depositledger/internal/models/modelledger"
)

type EventQueueEntry struct {
	Event      modelledger.DepositedEvent
	RetryCount int
	QueuedAt   time.Time
}
