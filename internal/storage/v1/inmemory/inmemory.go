// Package inmemory provides a process-local storage for the deposit ledger.
package inmemory

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/danilovkiri/dk-go-depositledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-depositledger/internal/models/modelledger"
	"github.com/danilovkiri/dk-go-depositledger/internal/storage/v1"
	storageErrors "github.com/danilovkiri/dk-go-depositledger/internal/storage/v1/errors"
	"github.com/danilovkiri/dk-go-depositledger/internal/storage/v1/modelstorage"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Storage keeps users, deposit records, the pool and the deposit journal in memory.
// Transactions are serialized by a single writer slot.
type Storage struct {
	mu      sync.RWMutex
	writer  chan struct{}
	users   map[string]modelstorage.UserStorageEntry
	records map[string]modelledger.DepositRecord
	pool    decimal.Decimal
	events  []modelledger.DepositedEvent
	log     *zerolog.Logger
}

// InitStorage initializes an empty in-memory storage.
func InitStorage(log *zerolog.Logger) *Storage {
	st := &Storage{
		writer:  make(chan struct{}, 1),
		users:   make(map[string]modelstorage.UserStorageEntry),
		records: make(map[string]modelledger.DepositRecord),
		pool:    decimal.Zero,
		log:     log,
	}
	log.Info().Msg("in-memory storage initialized")
	return st
}

// AddNewUser registers credentials under accountID.
func (s *Storage) AddNewUser(ctx context.Context, credentials modeldto.User, accountID string) error {
	if err := ctx.Err(); err != nil {
		return &storageErrors.ContextTimeoutExceededError{Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[credentials.Login]; ok {
		s.log.Error().Msg("adding new user failed: login already exists")
		return &storageErrors.AlreadyExistsError{Err: nil, ID: credentials.Login}
	}
	for _, user := range s.users {
		if user.AccountID == accountID {
			return &storageErrors.AlreadyExistsError{Err: nil, ID: accountID}
		}
	}
	s.users[credentials.Login] = modelstorage.UserStorageEntry{
		ID:           uint(len(s.users) + 1),
		AccountID:    accountID,
		Login:        credentials.Login,
		Password:     credentials.Password,
		RegisteredAt: time.Now().Format(time.RFC3339),
	}
	s.log.Info().Msg(fmt.Sprintf("adding new user done for account %s", accountID))
	return nil
}

// CheckUser returns the account identifier for matching credentials.
func (s *Storage) CheckUser(ctx context.Context, credentials modeldto.User) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &storageErrors.ContextTimeoutExceededError{Err: err}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[credentials.Login]
	if !ok {
		return "", &storageErrors.NotFoundError{ID: "user"}
	}
	passwordHash := sha256.Sum256([]byte(credentials.Password))
	expectedPasswordHash := sha256.Sum256([]byte(user.Password))
	if subtle.ConstantTimeCompare(passwordHash[:], expectedPasswordHash[:]) != 1 {
		return "", &storageErrors.NotFoundError{ID: "user"}
	}
	return user.AccountID, nil
}

// BeginTx waits for the writer slot or for ctx to expire.
func (s *Storage) BeginTx(ctx context.Context) (storage.Tx, error) {
	select {
	case <-ctx.Done():
		return nil, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case s.writer <- struct{}{}:
	}
	return &tx{
		s:         s,
		records:   make(map[string]modelledger.DepositRecord),
		poolDelta: decimal.Zero,
	}, nil
}

// GetRecord returns the committed record or NotFoundError.
func (s *Storage) GetRecord(ctx context.Context, accountID string) (modelledger.DepositRecord, error) {
	if err := ctx.Err(); err != nil {
		return modelledger.DepositRecord{}, &storageErrors.ContextTimeoutExceededError{Err: err}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[accountID]
	if !ok {
		return modelledger.DepositRecord{}, &storageErrors.NotFoundError{ID: accountID}
	}
	return record, nil
}

// GetPool returns the committed pool value.
func (s *Storage) GetPool(ctx context.Context) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, &storageErrors.ContextTimeoutExceededError{Err: err}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool, nil
}

// AddDepositEvent appends a deposit event to the journal.
func (s *Storage) AddDepositEvent(ctx context.Context, event modelledger.DepositedEvent) error {
	if err := ctx.Err(); err != nil {
		return &storageErrors.ContextTimeoutExceededError{Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.events {
		if existing.ID == event.ID {
			return &storageErrors.AlreadyExistsError{ID: event.ID}
		}
	}
	s.events = append(s.events, event)
	return nil
}

// GetDepositEvents lists the journal entries of one account ordered by timestamp.
func (s *Storage) GetDepositEvents(ctx context.Context, accountID string) ([]modelledger.DepositedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, &storageErrors.ContextTimeoutExceededError{Err: err}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var events []modelledger.DepositedEvent
	for _, event := range s.events {
		if event.AccountID == accountID {
			events = append(events, event)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})
	return events, nil
}

type tx struct {
	s         *Storage
	records   map[string]modelledger.DepositRecord
	poolDelta decimal.Decimal
	done      bool
}

func (t *tx) GetRecord(ctx context.Context, accountID string) (modelledger.DepositRecord, error) {
	if t.done {
		return modelledger.DepositRecord{}, &storageErrors.TxClosedError{}
	}
	if record, ok := t.records[accountID]; ok {
		return record, nil
	}
	return t.s.GetRecord(ctx, accountID)
}

func (t *tx) PutRecord(ctx context.Context, accountID string, record modelledger.DepositRecord) error {
	if t.done {
		return &storageErrors.TxClosedError{}
	}
	if err := ctx.Err(); err != nil {
		return &storageErrors.ContextTimeoutExceededError{Err: err}
	}
	t.records[accountID] = record
	return nil
}

func (t *tx) GetPool(ctx context.Context) (decimal.Decimal, error) {
	if t.done {
		return decimal.Zero, &storageErrors.TxClosedError{}
	}
	held, err := t.s.GetPool(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return held.Add(t.poolDelta), nil
}

func (t *tx) AddPool(ctx context.Context, delta decimal.Decimal) error {
	if t.done {
		return &storageErrors.TxClosedError{}
	}
	if err := ctx.Err(); err != nil {
		return &storageErrors.ContextTimeoutExceededError{Err: err}
	}
	t.poolDelta = t.poolDelta.Add(delta)
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return &storageErrors.TxClosedError{}
	}
	t.s.mu.Lock()
	for accountID, record := range t.records {
		t.s.records[accountID] = record
	}
	t.s.pool = t.s.pool.Add(t.poolDelta)
	t.s.mu.Unlock()
	t.release()
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.release()
	return nil
}

func (t *tx) release() {
	t.done = true
	<-t.s.writer
}
