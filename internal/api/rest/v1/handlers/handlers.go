// Package handlers provides API endpoint handling functionality.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	handlersErrors "github.com/danilovkiri/dk-go-depositledger/internal/api/rest/v1/errors"
	"github.com/danilovkiri/dk-go-depositledger/internal/api/rest/v1/middleware"
	"github.com/danilovkiri/dk-go-depositledger/internal/models/modeldto"
	ledgerErrors "github.com/danilovkiri/dk-go-depositledger/internal/service/ledger/v1/errors"
	"github.com/danilovkiri/dk-go-depositledger/internal/service/ledger/v1/ledger"
	"github.com/danilovkiri/dk-go-depositledger/internal/service/processor/v1"
	serviceErrors "github.com/danilovkiri/dk-go-depositledger/internal/service/processor/v1/errors"
	storageErrors "github.com/danilovkiri/dk-go-depositledger/internal/storage/v1/errors"
	"github.com/rs/zerolog"
)

const (
	requestTimeout = 500 * time.Millisecond
	// withdrawals wait for the payout rail
	payoutTimeout = 5 * time.Second
)

// Handler defines attributes of a struct available to its methods.
type Handler struct {
	service processor.Processor
	log     *zerolog.Logger
}

// InitHandlers initializes a handler object.
func InitHandlers(mainService processor.Processor, log *zerolog.Logger) (*Handler, error) {
	if mainService == nil {
		return nil, &handlersErrors.HandlersFoundNilArgument{Msg: "nil processor was passed to handlers initializer"}
	}
	return &Handler{service: mainService, log: log}, nil
}

// HandleRegister processes user register requests.
func (h *Handler) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		var credentials modeldto.User
		if err := h.decode(r, &credentials); err != nil {
			h.log.Error().Err(err).Msg("HandleRegister failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("new user register request detected for %s", credentials.Login))
		if len(credentials.Login) == 0 || len(credentials.Password) == 0 {
			h.log.Error().Msg("HandleRegister failed")
			http.Error(w, "Empty values are not allowed", http.StatusBadRequest)
			return
		}
		accessToken, err := h.service.AddNewUser(ctx, credentials)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleRegister failed")
			h.writeError(w, err)
			return
		}
		w.Header().Set("Authorization", "Bearer "+accessToken)
		w.WriteHeader(http.StatusOK)
	}
}

// HandleLogin processes user login requests.
func (h *Handler) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		var credentials modeldto.User
		if err := h.decode(r, &credentials); err != nil {
			h.log.Error().Err(err).Msg("HandleLogin failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("new login request detected for %s", credentials.Login))
		if credentials.Login == "" || credentials.Password == "" {
			h.log.Error().Msg("HandleLogin failed")
			http.Error(w, "Empty values are not allowed", http.StatusBadRequest)
			return
		}
		accessToken, err := h.service.LoginUser(ctx, credentials)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleLogin failed")
			var notFoundError *storageErrors.NotFoundError
			if errors.As(err, &notFoundError) {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			h.writeError(w, err)
			return
		}
		w.Header().Set("Authorization", "Bearer "+accessToken)
		w.WriteHeader(http.StatusOK)
	}
}

// HandleDeposit processes deposit requests.
func (h *Handler) HandleDeposit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		accountID, ok := middleware.AccountID(r.Context())
		if !ok {
			http.Error(w, "Token authorization required", http.StatusUnauthorized)
			return
		}
		var request modeldto.AmountRequest
		if err := h.decode(r, &request); err != nil {
			h.log.Error().Err(err).Msg("HandleDeposit failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("new deposit request detected for account %s", accountID))
		amount, err := ledger.ParseAmount(request.Amount)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleDeposit failed")
			h.writeError(w, err)
			return
		}
		record, err := h.service.Deposit(ctx, accountID, amount)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleDeposit failed")
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, record, "HandleDeposit")
	}
}

// HandleWithdraw processes withdrawal requests.
func (h *Handler) HandleWithdraw() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), payoutTimeout)
		defer cancel()
		accountID, ok := middleware.AccountID(r.Context())
		if !ok {
			http.Error(w, "Token authorization required", http.StatusUnauthorized)
			return
		}
		var request modeldto.AmountRequest
		if err := h.decode(r, &request); err != nil {
			h.log.Error().Err(err).Msg("HandleWithdraw failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("new withdrawal request detected for account %s", accountID))
		amount, err := ledger.ParseAmount(request.Amount)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleWithdraw failed")
			h.writeError(w, err)
			return
		}
		record, err := h.service.Withdraw(ctx, accountID, amount)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleWithdraw failed")
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, record, "HandleWithdraw")
	}
}

// HandleGetBalance processes balance query requests.
func (h *Handler) HandleGetBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		accountID, ok := middleware.AccountID(r.Context())
		if !ok {
			http.Error(w, "Token authorization required", http.StatusUnauthorized)
			return
		}
		balance, err := h.service.GetBalance(ctx, accountID)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetBalance failed")
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, balance, "HandleGetBalance")
	}
}

// HandleGetInterest processes current interest query requests.
func (h *Handler) HandleGetInterest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		accountID, ok := middleware.AccountID(r.Context())
		if !ok {
			http.Error(w, "Token authorization required", http.StatusUnauthorized)
			return
		}
		interest, err := h.service.CurrentInterest(ctx, accountID)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetInterest failed")
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, modeldto.Interest{AccountID: accountID, Interest: interest}, "HandleGetInterest")
	}
}

// HandleGetDeposits processes deposit history query requests.
func (h *Handler) HandleGetDeposits() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		accountID, ok := middleware.AccountID(r.Context())
		if !ok {
			http.Error(w, "Token authorization required", http.StatusUnauthorized)
			return
		}
		deposits, err := h.service.GetDeposits(ctx, accountID)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetDeposits failed")
			h.writeError(w, err)
			return
		}
		if len(deposits) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.writeJSON(w, deposits, "HandleGetDeposits")
	}
}

// HandleOwnerWithdraw answers owner drain attempts.
func (h *Handler) HandleOwnerWithdraw() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		err := h.service.OwnerWithdraw(ctx)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleOwnerWithdraw failed")
			h.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// HandleReceive processes bare inbound transfers into the pool.
func (h *Handler) HandleReceive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		var request modeldto.BareTransferRequest
		if err := h.decode(r, &request); err != nil {
			h.log.Error().Err(err).Msg("HandleReceive failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		amount, err := ledger.ParseAmount(request.Amount)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleReceive failed")
			h.writeError(w, err)
			return
		}
		if err = h.service.ReceiveBare(ctx, request.From, amount); err != nil {
			h.log.Error().Err(err).Msg("HandleReceive failed")
			h.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// HandleGetPool processes pool query requests.
func (h *Handler) HandleGetPool() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		pool, err := h.service.GetPool(ctx)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetPool failed")
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, pool, "HandleGetPool")
	}
}

// decode reads a JSON request body into v.
func (h *Handler) decode(r *http.Request, v interface{}) error {
	if r.Header.Get("Content-Type") != "application/json" {
		return errors.New("invalid Content-Type")
	}
	b, err := ioutil.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}, caller string) {
	resBody, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg(caller + " failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err = w.Write(resBody); err != nil {
		h.log.Error().Err(err).Msg(caller + " failed")
	}
}

// writeError maps typed errors of the lower layers onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		invalidAmountError          *ledgerErrors.InvalidAmountError
		invalidTimestampError       *ledgerErrors.InvalidTimestampError
		insufficientBalanceError    *ledgerErrors.InsufficientBalanceError
		exceedsWithdrawalLimitError *ledgerErrors.ExceedsWithdrawalLimitError
		operationDisabledError      *ledgerErrors.OperationDisabledError
		transferFailedError         *serviceErrors.TransferFailedError
		payoutPendingError          *serviceErrors.PayoutPendingError
		insufficientLiquidityError  *serviceErrors.InsufficientLiquidityError
		contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
		alreadyExistsError          *storageErrors.AlreadyExistsError
	)
	switch {
	case errors.As(err, &invalidAmountError), errors.As(err, &invalidTimestampError):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &insufficientBalanceError):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	case errors.As(err, &exceedsWithdrawalLimitError):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &operationDisabledError):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.As(err, &transferFailedError):
		http.Error(w, err.Error(), http.StatusBadGateway)
	case errors.As(err, &payoutPendingError):
		// the debit is committed, settlement is confirmed out of band
		http.Error(w, err.Error(), http.StatusAccepted)
	case errors.As(err, &insufficientLiquidityError):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &contextTimeoutExceededError), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	case errors.As(err, &alreadyExistsError):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
