package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danilovkiri/dk-go-depositledger/internal/api/rest/v1/middleware"
	"github.com/danilovkiri/dk-go-depositledger/internal/clock"
	"github.com/danilovkiri/dk-go-depositledger/internal/config"
	"github.com/danilovkiri/dk-go-depositledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-depositledger/internal/models/modelledger"
	"github.com/danilovkiri/dk-go-depositledger/internal/service/ledger/v1/ledger"
	"github.com/danilovkiri/dk-go-depositledger/internal/service/processor/v1/processor"
	"github.com/danilovkiri/dk-go-depositledger/internal/service/secretary/v1/secretary"
	"github.com/danilovkiri/dk-go-depositledger/internal/service/transfer/v1/loopback"
	"github.com/danilovkiri/dk-go-depositledger/internal/storage/v1/inmemory"
	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type journalSink struct {
	st *inmemory.Storage
}

func (s journalSink) Publish(ctx context.Context, event modelledger.DepositedEvent) error {
	return s.st.AddDepositEvent(ctx, event)
}

func newRouter(t *testing.T) (http.Handler, *clock.Manual) {
	t.Helper()
	log := zerolog.Nop()
	st := inmemory.InitStorage(&log)
	l, err := ledger.InitLedger(st, &log)
	require.NoError(t, err)
	sec, err := secretary.NewSecretaryService(&config.SecretConfig{SecretKey: "handlers"})
	require.NoError(t, err)
	clk := clock.NewManual(1000)
	proc, err := processor.InitService(st, l, sec, loopback.InitLoopback(&log), journalSink{st: st}, clk, &log)
	require.NoError(t, err)
	h, err := InitHandlers(proc, &log)
	require.NoError(t, err)
	th, err := middleware.NewTokenHandler(sec)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Post("/api/user/register", h.HandleRegister())
	r.Post("/api/user/login", h.HandleLogin())
	r.Post("/api/pool/receive", h.HandleReceive())
	r.Get("/api/pool", h.HandleGetPool())
	r.Group(func(r chi.Router) {
		r.Use(th.TokenHandle)
		r.Post("/api/user/deposit", h.HandleDeposit())
		r.Post("/api/user/withdraw", h.HandleWithdraw())
		r.Get("/api/user/balance", h.HandleGetBalance())
		r.Get("/api/user/interest", h.HandleGetInterest())
		r.Get("/api/user/deposits", h.HandleGetDeposits())
		r.Post("/api/owner/withdraw", h.HandleOwnerWithdraw())
	})
	return r, clk
}

func do(t *testing.T, r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, r http.Handler, login string) string {
	t.Helper()
	rec := do(t, r, http.MethodPost, "/api/user/register", "", modeldto.User{Login: login, Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	token := rec.Header().Get("Authorization")
	require.NotEmpty(t, token)
	return token
}

func TestInitHandlersRejectsNil(t *testing.T) {
	log := zerolog.Nop()
	_, err := InitHandlers(nil, &log)
	assert.Error(t, err)
}

func TestRegisterAndLogin(t *testing.T) {
	r, _ := newRouter(t)
	register(t, r, "alice")

	rec := do(t, r, http.MethodPost, "/api/user/register", "", modeldto.User{Login: "alice", Password: "pw"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/user/register", "", modeldto.User{Login: "", Password: "pw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/user/login", "", modeldto.User{Login: "alice", Password: "pw"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Authorization"))

	rec = do(t, r, http.MethodPost, "/api/user/login", "", modeldto.User{Login: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDepositAndWithdraw(t *testing.T) {
	r, _ := newRouter(t)
	token := register(t, r, "alice")

	rec := do(t, r, http.MethodPost, "/api/user/deposit", "", modeldto.AmountRequest{Amount: "100"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/user/deposit", token, modeldto.AmountRequest{Amount: "100"})
	require.Equal(t, http.StatusOK, rec.Code)
	var record modelledger.DepositRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "100", record.Amount.String())

	for amount, status := range map[string]int{
		"0":   http.StatusBadRequest,
		"1.5": http.StatusBadRequest,
		"abc": http.StatusBadRequest,
		"101": http.StatusPaymentRequired,
		"61":  http.StatusUnprocessableEntity,
	} {
		rec = do(t, r, http.MethodPost, "/api/user/withdraw", token, modeldto.AmountRequest{Amount: amount})
		assert.Equal(t, status, rec.Code, amount)
	}

	rec = do(t, r, http.MethodPost, "/api/user/withdraw", token, modeldto.AmountRequest{Amount: "60"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "40", record.Amount.String())

	rec = do(t, r, http.MethodPost, "/api/user/deposit", token, modeldto.AmountRequest{Amount: "0"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBalanceAndInterest(t *testing.T) {
	r, clk := newRouter(t)
	token := register(t, r, "alice")
	rec := do(t, r, http.MethodPost, "/api/user/deposit", token, modeldto.AmountRequest{Amount: "10000"})
	require.Equal(t, http.StatusOK, rec.Code)
	clk.Advance(modelledger.SecondsPerYear)

	rec = do(t, r, http.MethodGet, "/api/user/interest", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var interest modeldto.Interest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &interest))
	assert.Equal(t, "500", interest.Interest.String())

	rec = do(t, r, http.MethodGet, "/api/user/balance", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var balance modeldto.Balance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &balance))
	assert.Equal(t, "10500", balance.CurrentAmount.String())
	assert.Equal(t, "6300", balance.WithdrawalLimit.String())
}

func TestDepositHistory(t *testing.T) {
	r, _ := newRouter(t)
	token := register(t, r, "alice")

	rec := do(t, r, http.MethodGet, "/api/user/deposits", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/user/deposit", token, modeldto.AmountRequest{Amount: "7"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, r, http.MethodGet, "/api/user/deposits", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []modelledger.DepositedEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "7", events[0].Amount.String())
	assert.Equal(t, uint64(1000), events[0].Timestamp)
}

func TestOwnerWithdrawForbidden(t *testing.T) {
	r, _ := newRouter(t)
	token := register(t, r, "owner")
	rec := do(t, r, http.MethodPost, "/api/owner/withdraw", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReceiveAndPool(t *testing.T) {
	r, _ := newRouter(t)
	rec := do(t, r, http.MethodPost, "/api/pool/receive", "", modeldto.BareTransferRequest{From: "4111111111111111", Amount: "25"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec = do(t, r, http.MethodPost, "/api/pool/receive", "", modeldto.BareTransferRequest{From: "x", Amount: "-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/pool", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pool modeldto.Pool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pool))
	assert.Equal(t, "25", pool.Held.String())
}

func TestWithdrawPoolShortfall(t *testing.T) {
	r, clk := newRouter(t)
	token := register(t, r, "alice")
	rec := do(t, r, http.MethodPost, "/api/user/deposit", token, modeldto.AmountRequest{Amount: "10"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, r, http.MethodPost, "/api/user/withdraw", token, modeldto.AmountRequest{Amount: "6"})
	require.Equal(t, http.StatusOK, rec.Code)
	clk.Advance(20 * modelledger.SecondsPerYear)

	// interest doubled the balance to 8 while the pool still holds 4
	rec = do(t, r, http.MethodPost, "/api/user/withdraw", token, modeldto.AmountRequest{Amount: "4"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, r, http.MethodPost, "/api/user/withdraw", token, modeldto.AmountRequest{Amount: "1"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
