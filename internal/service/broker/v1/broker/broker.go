package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danilovkiri/dk-go-depositledger/internal/models/modelledger"
	"github.com/danilovkiri/dk-go-depositledger/internal/models/modelqueue"
	"github.com/danilovkiri/dk-go-depositledger/internal/storage/v1"
	storageErrors "github.com/danilovkiri/dk-go-depositledger/internal/storage/v1/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// drainTimeout bounds each handler call made for events still queued at shutdown.
const drainTimeout = 5 * time.Second

// ErrClosed is returned by Publish once the broker has stopped accepting events.
var ErrClosed = errors.New("broker closed")

// Handler consumes a single event.
type Handler func(ctx context.Context, event modelledger.DepositedEvent) error

type Broker struct {
	ctx         context.Context
	log         *zerolog.Logger
	mu          sync.RWMutex
	closed      bool
	queue       chan modelqueue.EventQueueEntry
	stopped     chan struct{}
	handlers    []Handler
	wg          *sync.WaitGroup
	workers     int
	retryNumber int
}

type DispatchWorker struct {
	ID          int
	ctx         context.Context
	log         *zerolog.Logger
	queue       chan modelqueue.EventQueueEntry
	handlers    []Handler
	retryNumber int
}

func InitBroker(ctx context.Context, log *zerolog.Logger, wg *sync.WaitGroup, workers, retryNumber, queueSize int, handlers ...Handler) *Broker {
	if workers <= 0 {
		workers = 1
	}
	broker := Broker{
		ctx:         ctx,
		log:         log,
		queue:       make(chan modelqueue.EventQueueEntry, queueSize),
		stopped:     make(chan struct{}),
		handlers:    handlers,
		wg:          wg,
		workers:     workers,
		retryNumber: retryNumber,
	}
	return &broker
}

// Publish enqueues an event; it gives up when either the caller or the broker context ends.
func (b *Broker) Publish(ctx context.Context, event modelledger.DepositedEvent) error {
	entry := modelqueue.EventQueueEntry{Event: event, QueuedAt: time.Now()}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ctx.Done():
		return b.ctx.Err()
	case b.queue <- entry:
		return nil
	}
}

// ListenAndProcess starts the workers. Once the broker context ends the queue is closed
// and the workers deliver whatever is still queued before they return.
func (b *Broker) ListenAndProcess() {
	b.wg.Add(1)
	go func() {
		b.log.Info().Msg("started listening to queue for deposit events")
		defer b.wg.Done()
		defer close(b.stopped)
		g := &errgroup.Group{}
		for i := 0; i < b.workers; i++ {
			w := &DispatchWorker{ID: i, ctx: b.ctx, queue: b.queue, log: b.log, handlers: b.handlers, retryNumber: b.retryNumber}
			g.Go(w.processAsync)
		}
		<-b.ctx.Done()
		b.mu.Lock()
		b.closed = true
		close(b.queue)
		b.mu.Unlock()
		b.log.Info().Msg(fmt.Sprintf("draining %v queued deposit events", len(b.queue)))
		err := g.Wait()
		if err != nil {
			b.log.Error().Err(err).Msg("closing errgroup failed")
		}
		b.log.Info().Msg("stopped listening to queue for deposit events")
	}()
}

// Stopped is closed after every queued event has been dispatched.
func (b *Broker) Stopped() <-chan struct{} {
	return b.stopped
}

func (w *DispatchWorker) processAsync() error {
	for record := range w.queue {
		w.dispatch(record)
	}
	return nil
}

// handlerContext is the worker context, or a bounded one when draining after shutdown.
func (w *DispatchWorker) handlerContext() (context.Context, context.CancelFunc) {
	if w.ctx.Err() == nil {
		return w.ctx, func() {}
	}
	return context.WithTimeout(context.Background(), drainTimeout)
}

func (w *DispatchWorker) dispatch(record modelqueue.EventQueueEntry) {
	ctx, cancel := w.handlerContext()
	defer cancel()
	for _, handler := range w.handlers {
		err := handler(ctx, record.Event)
		for err != nil && record.RetryCount < w.retryNumber {
			record.RetryCount++
			w.log.Warn().Err(err).Msg(fmt.Sprintf("WID %v, event %v: could not dispatch, retry %v", w.ID, record.Event.ID, record.RetryCount))
			err = handler(ctx, record.Event)
		}
		if err != nil {
			// abandon the event for this handler once retries are exhausted
			w.log.Error().Err(err).Msg(fmt.Sprintf("WID %v, event %v: abandonment due to retry limit exceeding", w.ID, record.Event.ID))
		}
	}
}

// LogHandler writes every event to the structured log.
func LogHandler(log *zerolog.Logger) Handler {
	return func(ctx context.Context, event modelledger.DepositedEvent) error {
		log.Info().
			Str("event", "Deposited").
			Str("account", event.AccountID).
			Str("amount", event.Amount.String()).
			Uint64("timestamp", event.Timestamp).
			Msg("deposit recorded")
		return nil
	}
}

// JournalHandler persists every event; duplicates are treated as delivered.
func JournalHandler(journal storage.Journal) Handler {
	return func(ctx context.Context, event modelledger.DepositedEvent) error {
		err := journal.AddDepositEvent(ctx, event)
		var alreadyExistsError *storageErrors.AlreadyExistsError
		if errors.As(err, &alreadyExistsError) {
			return nil
		}
		return err
	}
}
