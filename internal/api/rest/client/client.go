// Package client implements a client for sending payouts to the Payout Rail Service.
package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danilovkiri/dk-go-depositledger/internal/config"
	"github.com/danilovkiri/dk-go-depositledger/internal/models/modeldto"
	transferErrors "github.com/danilovkiri/dk-go-depositledger/internal/service/transfer/v1/errors"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	retryCount   = 3
	retryWait    = 100 * time.Millisecond
	retryMaxWait = time.Second
)

// Client defines attributes of a struct available to its methods.
type Client struct {
	client       *resty.Client
	serverConfig *config.ServerConfig
	log          *zerolog.Logger
}

// InitClient initializes a resty client retrying throttled and failed payouts.
func InitClient(serverConfig *config.ServerConfig, log *zerolog.Logger) *Client {
	payoutClient := resty.New().
		SetHeader("Content-Type", "application/json").
		SetRetryCount(retryCount).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(retryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	log.Info().Msg("payout rail client initialized")
	return &Client{client: payoutClient, serverConfig: serverConfig, log: log}
}

// Send executes a payout of amount to a Luhn-compliant account number.
// Every attempt carries the same idempotency key, so the rail settles it at most once.
// A 4xx answer is a *errors.RejectedError; any other failure leaves the outcome unknown.
func (c *Client) Send(ctx context.Context, key, to string, amount decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return &transferErrors.RejectedError{Reason: err.Error()}
	}
	c.log.Info().Msg(fmt.Sprintf("sending payout %s of %s to account %s", key, amount, to))
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", key).
		SetBody(modeldto.Payout{To: to, Amount: amount}).
		Post(c.serverConfig.PayoutAddress + "/api/payouts")
	if err != nil {
		c.log.Err(err).Msg(fmt.Sprintf("payout %s request failed for account %s", key, to))
		return err
	}
	switch status := response.StatusCode(); {
	case status >= http.StatusInternalServerError:
		return &transferErrors.UnavailableError{StatusCode: status, Reason: response.String()}
	case status >= http.StatusBadRequest:
		return &transferErrors.RejectedError{StatusCode: status, Reason: response.String()}
	}
	return nil
}
