// Package modeldto provides types for the HTTP API payloads.

package modeldto

import "github.com/shopspring/decimal"

type (
	User struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	AmountRequest struct {
		Amount string `json:"amount"`
	}
	BareTransferRequest struct {
		From   string `json:"from"`
		Amount string `json:"amount"`
	}
	Balance struct {
		AccountID       string          `json:"account"`
		CurrentAmount   decimal.Decimal `json:"current"`
		LastUpdate      uint64          `json:"last_update"`
		PendingInterest decimal.Decimal `json:"pending_interest"`
		WithdrawalLimit decimal.Decimal `json:"withdrawal_limit"`
	}
	Interest struct {
		AccountID string          `json:"account"`
		Interest  decimal.Decimal `json:"interest"`
	}
	Pool struct {
		Held decimal.Decimal `json:"held"`
	}
	Payout struct {
		To     string          `json:"to"`
		Amount decimal.Decimal `json:"amount"`
	}
)
