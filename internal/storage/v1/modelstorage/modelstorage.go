// Package modelstorage provides types for querying relational DB.

package modelstorage

import "github.com/shopspring/decimal"

type UserStorageEntry struct {
	ID           uint   `db:"id"`
	AccountID    string `db:"account_id"`
	Login        string `db:"login"`
	Password     string `db:"password"`
	RegisteredAt string `db:"registered_at"`
}

type DepositStorageEntry struct {
	ID         uint            `db:"id"`
	AccountID  string          `db:"account_id"`
	Amount     decimal.Decimal `db:"amount"`
	LastUpdate int64           `db:"last_update"`
}

type PoolStorageEntry struct {
	ID   uint            `db:"id"`
	Held decimal.Decimal `db:"held"`
}

type EventStorageEntry struct {
	ID        uint            `db:"id"`
	EventID   string          `db:"event_id"`
	AccountID string          `db:"account_id"`
	Amount    decimal.Decimal `db:"amount"`
	Timestamp int64           `db:"created_at"`
}
