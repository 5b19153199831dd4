package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/danilovkiri/dk-go-depositledger/internal/config"
	"github.com/danilovkiri/dk-go-depositledger/internal/models/modeldto"
	transferErrors "github.com/danilovkiri/dk-go-depositledger/internal/service/transfer/v1/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rail answers with the queued statuses in order, then 200.
type rail struct {
	mu       sync.Mutex
	statuses []int
	keys     []string
	payouts  []modeldto.Payout
}

func (r *rail) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, req.Header.Get("Idempotency-Key"))
	var payout modeldto.Payout
	if err := json.NewDecoder(req.Body).Decode(&payout); err == nil {
		r.payouts = append(r.payouts, payout)
	}
	status := http.StatusOK
	if len(r.statuses) > 0 {
		status, r.statuses = r.statuses[0], r.statuses[1:]
	}
	w.WriteHeader(status)
}

func newClient(t *testing.T, r *rail) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	log := zerolog.Nop()
	return InitClient(&config.ServerConfig{PayoutAddress: srv.URL}, &log)
}

func TestSendPostsPayout(t *testing.T) {
	r := &rail{}
	c := newClient(t, r)
	amount := decimal.RequireFromString("1000000000000000000")
	require.NoError(t, c.Send(context.Background(), "key-1", "4111111111111111", amount))

	require.Len(t, r.payouts, 1)
	assert.Equal(t, "4111111111111111", r.payouts[0].To)
	assert.True(t, r.payouts[0].Amount.Equal(amount))
	assert.Equal(t, []string{"key-1"}, r.keys)
}

func TestSendRetriesWithSameKey(t *testing.T) {
	r := &rail{statuses: []int{http.StatusTooManyRequests, http.StatusServiceUnavailable}}
	c := newClient(t, r)
	require.NoError(t, c.Send(context.Background(), "key-2", "4111111111111111", decimal.NewFromInt(1)))
	assert.Equal(t, []string{"key-2", "key-2", "key-2"}, r.keys)
}

func TestSendReportsRejection(t *testing.T) {
	r := &rail{statuses: []int{http.StatusUnprocessableEntity}}
	c := newClient(t, r)
	err := c.Send(context.Background(), "key-3", "4111111111111111", decimal.NewFromInt(1))
	var rejected *transferErrors.RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, http.StatusUnprocessableEntity, rejected.StatusCode)
	assert.Len(t, r.keys, 1)
}

func TestSendReportsUnavailableAfterRetries(t *testing.T) {
	statuses := make([]int, retryCount+1)
	for i := range statuses {
		statuses[i] = http.StatusInternalServerError
	}
	r := &rail{statuses: statuses}
	c := newClient(t, r)
	err := c.Send(context.Background(), "key-4", "4111111111111111", decimal.NewFromInt(1))
	var unavailable *transferErrors.UnavailableError
	require.True(t, errors.As(err, &unavailable))
	var rejected *transferErrors.RejectedError
	assert.False(t, errors.As(err, &rejected))
	assert.Len(t, r.keys, retryCount+1)
}
