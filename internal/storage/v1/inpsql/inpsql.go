package inpsql

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danilovkiri/dk-go-depositledger/internal/config"
	"github.com/danilovkiri/dk-go-depositledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-depositledger/internal/models/modelledger"
	"github.com/danilovkiri/dk-go-depositledger/internal/storage/v1"
	storageErrors "github.com/danilovkiri/dk-go-depositledger/internal/storage/v1/errors"
	"github.com/danilovkiri/dk-go-depositledger/internal/storage/v1/modelstorage"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type Storage struct {
	mu  sync.Mutex
	Cfg *config.StorageConfig
	DB  *sql.DB
	log *zerolog.Logger
}

func InitStorage(ctx context.Context, cfg *config.StorageConfig, log *zerolog.Logger) (*Storage, error) {
	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	st := Storage{
		Cfg: cfg,
		DB:  db,
		log: log,
	}
	err = st.createTables(ctx)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("PSQL DB connection was established")
	return &st, nil
}

func (s *Storage) AddNewUser(ctx context.Context, credentials modeldto.User, accountID string) error {
	newUserStmt, err := s.DB.PrepareContext(ctx, "INSERT INTO users (account_id, login, password, registered_at) VALUES ($1, $2, $3, $4)")
	if err != nil {
		return &storageErrors.StatementPSQLError{Err: err}
	}
	defer newUserStmt.Close()
	chanOk := make(chan bool, 1)
	chanEr := make(chan error, 1)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, err := newUserStmt.ExecContext(ctx, accountID, credentials.Login, credentials.Password, time.Now().Format(time.RFC3339))
		if err != nil {
			if isUniqueViolation(err) {
				chanEr <- &storageErrors.AlreadyExistsError{Err: err, ID: credentials.Login}
				return
			}
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		chanOk <- true
	}()

	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg("adding new user failed")
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg("adding new user failed")
		return methodErr
	case <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("adding new user done for account %s", accountID))
		return nil
	}
}

func (s *Storage) CheckUser(ctx context.Context, credentials modeldto.User) (string, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, "SELECT id, account_id, login, password, registered_at FROM users WHERE login = $1")
	if err != nil {
		return "", &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	chanOk := make(chan string, 1)
	chanEr := make(chan error, 1)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		var queryOutput modelstorage.UserStorageEntry
		err := selectStmt.QueryRowContext(ctx, credentials.Login).Scan(&queryOutput.ID, &queryOutput.AccountID, &queryOutput.Login, &queryOutput.Password, &queryOutput.RegisteredAt)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				chanEr <- &storageErrors.NotFoundError{Err: err, ID: "user"}
				return
			default:
				chanEr <- &storageErrors.ScanningPSQLError{Err: err}
				return
			}
		}
		passwordHash := sha256.Sum256([]byte(credentials.Password))
		expectedPasswordHash := sha256.Sum256([]byte(queryOutput.Password))
		if subtle.ConstantTimeCompare(passwordHash[:], expectedPasswordHash[:]) != 1 {
			chanEr <- &storageErrors.NotFoundError{ID: "user"}
			return
		}
		chanOk <- queryOutput.AccountID
	}()

	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg("user authentication failed")
		return "", &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg("user authentication failed")
		return "", methodErr
	case accountID := <-chanOk:
		s.log.Info().Msg("user authentication done")
		return accountID, nil
	}
}

func (s *Storage) BeginTx(ctx context.Context) (storage.Tx, error) {
	sqlTx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
		}
		return nil, &storageErrors.ExecutionPSQLError{Err: err}
	}
	return &tx{tx: sqlTx}, nil
}

func (s *Storage) GetRecord(ctx context.Context, accountID string) (modelledger.DepositRecord, error) {
	return getRecord(ctx, s.DB, accountID, false)
}

func (s *Storage) GetPool(ctx context.Context) (decimal.Decimal, error) {
	return getPool(ctx, s.DB, false)
}

func (s *Storage) AddDepositEvent(ctx context.Context, event modelledger.DepositedEvent) error {
	_, err := s.DB.ExecContext(ctx, "INSERT INTO deposit_events (event_id, account_id, amount, created_at) VALUES ($1, $2, $3, $4)",
		event.ID, event.AccountID, event.Amount, int64(event.Timestamp))
	if err != nil {
		if isUniqueViolation(err) {
			return &storageErrors.AlreadyExistsError{Err: err, ID: event.ID}
		}
		if ctx.Err() != nil {
			return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
		}
		return &storageErrors.ExecutionPSQLError{Err: err}
	}
	return nil
}

func (s *Storage) GetDepositEvents(ctx context.Context, accountID string) ([]modelledger.DepositedEvent, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, "SELECT id, event_id, account_id, amount, created_at FROM deposit_events WHERE account_id = $1 ORDER BY created_at, id")
	if err != nil {
		return nil, &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	chanOk := make(chan []modelledger.DepositedEvent, 1)
	chanEr := make(chan error, 1)
	go func() {
		rows, err := selectStmt.QueryContext(ctx, accountID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		defer rows.Close()
		var events []modelledger.DepositedEvent
		for rows.Next() {
			var queryOutputRow modelstorage.EventStorageEntry
			err = rows.Scan(&queryOutputRow.ID, &queryOutputRow.EventID, &queryOutputRow.AccountID, &queryOutputRow.Amount, &queryOutputRow.Timestamp)
			if err != nil {
				chanEr <- &storageErrors.ScanningPSQLError{Err: err}
				return
			}
			events = append(events, modelledger.DepositedEvent{
				ID:        queryOutputRow.EventID,
				AccountID: queryOutputRow.AccountID,
				Amount:    queryOutputRow.Amount,
				Timestamp: uint64(queryOutputRow.Timestamp),
			})
		}
		if err = rows.Err(); err != nil {
			chanEr <- &storageErrors.ScanningPSQLError{Err: err}
			return
		}
		chanOk <- events
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg("getting deposit events failed")
		return nil, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg("getting deposit events failed")
		return nil, methodErr
	case events := <-chanOk:
		s.log.Info().Msg("getting deposit events done")
		return events, nil
	}
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.DB.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type tx struct {
	tx *sql.Tx
}

func (t *tx) GetRecord(ctx context.Context, accountID string) (modelledger.DepositRecord, error) {
	return getRecord(ctx, t.tx, accountID, true)
}

func (t *tx) PutRecord(ctx context.Context, accountID string, record modelledger.DepositRecord) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO deposits (account_id, amount, last_update) VALUES ($1, $2, $3)
		ON CONFLICT (account_id) DO UPDATE SET amount = EXCLUDED.amount, last_update = EXCLUDED.last_update`,
		accountID, record.Amount, int64(record.LastUpdate))
	if err != nil {
		return &storageErrors.ExecutionPSQLError{Err: err}
	}
	return nil
}

func (t *tx) GetPool(ctx context.Context) (decimal.Decimal, error) {
	return getPool(ctx, t.tx, true)
}

func (t *tx) AddPool(ctx context.Context, delta decimal.Decimal) error {
	_, err := t.tx.ExecContext(ctx, "UPDATE pool SET held = held + $1 WHERE id = 1", delta)
	if err != nil {
		return &storageErrors.ExecutionPSQLError{Err: err}
	}
	return nil
}

func (t *tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return &storageErrors.TxClosedError{}
		}
		return &storageErrors.ExecutionPSQLError{Err: err}
	}
	return nil
}

func (t *tx) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return &storageErrors.ExecutionPSQLError{Err: err}
	}
	return nil
}

func getRecord(ctx context.Context, q queryer, accountID string, forUpdate bool) (modelledger.DepositRecord, error) {
	query := "SELECT id, account_id, amount, last_update FROM deposits WHERE account_id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	var queryOutput modelstorage.DepositStorageEntry
	err := q.QueryRowContext(ctx, query, accountID).Scan(&queryOutput.ID, &queryOutput.AccountID, &queryOutput.Amount, &queryOutput.LastUpdate)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return modelledger.DepositRecord{}, &storageErrors.NotFoundError{Err: err, ID: accountID}
		case ctx.Err() != nil:
			return modelledger.DepositRecord{}, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
		default:
			return modelledger.DepositRecord{}, &storageErrors.ScanningPSQLError{Err: err}
		}
	}
	return modelledger.DepositRecord{Amount: queryOutput.Amount, LastUpdate: uint64(queryOutput.LastUpdate)}, nil
}

func getPool(ctx context.Context, q queryer, forUpdate bool) (decimal.Decimal, error) {
	query := "SELECT id, held FROM pool WHERE id = 1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	var queryOutput modelstorage.PoolStorageEntry
	err := q.QueryRowContext(ctx, query).Scan(&queryOutput.ID, &queryOutput.Held)
	if err != nil {
		if ctx.Err() != nil {
			return decimal.Zero, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
		}
		return decimal.Zero, &storageErrors.ScanningPSQLError{Err: err}
	}
	return queryOutput.Held, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func (s *Storage) createTables(ctx context.Context) error {
	var queries []string
	query := `CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL   NOT NULL,
		account_id    TEXT        NOT NULL UNIQUE,
		login         TEXT        NOT NULL UNIQUE,
		password      TEXT        NOT NULL,
		registered_at TIMESTAMPTZ NOT NULL
	);`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS deposits (
		id          BIGSERIAL      NOT NULL,
		account_id  TEXT           NOT NULL UNIQUE,
		amount      NUMERIC(78, 0) NOT NULL CHECK (amount >= 0),
		last_update BIGINT         NOT NULL
	);`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS pool (
		id   INTEGER        PRIMARY KEY,
		held NUMERIC(78, 0) NOT NULL
	);`
	queries = append(queries, query)
	query = `INSERT INTO pool (id, held) VALUES (1, 0) ON CONFLICT (id) DO NOTHING;`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS deposit_events (
		id         BIGSERIAL      NOT NULL,
		event_id   TEXT           NOT NULL UNIQUE,
		account_id TEXT           NOT NULL,
		amount     NUMERIC(78, 0) NOT NULL,
		created_at BIGINT         NOT NULL
	);`
	queries = append(queries, query)
	for _, subquery := range queries {
		_, err := s.DB.ExecContext(ctx, subquery)
		if err != nil {
			return err
		}
	}
	return nil
}
