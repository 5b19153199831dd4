// Package rest provides functionality for initializing a server.
package rest

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/danilovkiri/dk-go-depositledger/internal/api/rest/client"
	"github.com/danilovkiri/dk-go-depositledger/internal/api/rest/v1/handlers"
	"github.com/danilovkiri/dk-go-depositledger/internal/api/rest/v1/middleware"
	"github.com/danilovkiri/dk-go-depositledger/internal/clock"
	"github.com/danilovkiri/dk-go-depositledger/internal/config"
	"github.com/danilovkiri/dk-go-depositledger/internal/service/broker/v1/broker"
	"github.com/danilovkiri/dk-go-depositledger/internal/service/ledger/v1/ledger"
	"github.com/danilovkiri/dk-go-depositledger/internal/service/processor/v1/processor"
	"github.com/danilovkiri/dk-go-depositledger/internal/service/secretary/v1/secretary"
	"github.com/danilovkiri/dk-go-depositledger/internal/service/transfer/v1"
	"github.com/danilovkiri/dk-go-depositledger/internal/service/transfer/v1/loopback"
	"github.com/danilovkiri/dk-go-depositledger/internal/storage/v1"
	"github.com/danilovkiri/dk-go-depositledger/internal/storage/v1/inmemory"
	"github.com/danilovkiri/dk-go-depositledger/internal/storage/v1/inpsql"
	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
)

// InitServer returns a http.Server object ready to be listening and serving .
func InitServer(ctx context.Context, cfg *config.Config, log *zerolog.Logger, wg *sync.WaitGroup) (server *http.Server, err error) {
	//initialize secretary
	secretaryService, err := secretary.NewSecretaryService(cfg.SecretConfig)
	if err != nil {
		return nil, err
	}

	// initialize token handler
	tokenHandler, err := middleware.NewTokenHandler(secretaryService)
	if err != nil {
		return nil, err
	}

	// initialize storage
	st, closeStorage, err := initStorage(ctx, cfg.StorageConfig, log)
	if err != nil {
		return nil, err
	}

	// initialize ledger
	ledgerService, err := ledger.InitLedger(st, log)
	if err != nil {
		return nil, err
	}

	// initialize payout transfer
	var transferService transfer.Transfer
	if cfg.ServerConfig.PayoutAddress == "" {
		transferService = loopback.InitLoopback(log)
	} else {
		transferService = client.InitClient(cfg.ServerConfig, log)
	}

	// initialize broker
	brokerService := broker.InitBroker(ctx, log, wg, cfg.QueueConfig.WorkerNumber, cfg.QueueConfig.RetryNumber, cfg.QueueConfig.QueueSize,
		broker.LogHandler(log), broker.JournalHandler(st))
	brokerService.ListenAndProcess()

	// storage outlives the broker so that queued events still reach the journal
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-brokerService.Stopped()
		if err := closeStorage(); err != nil {
			log.Error().Err(err).Msg("closing storage failed")
			return
		}
		log.Info().Msg("storage closed")
	}()

	// initialize main service
	mainService, err := processor.InitService(st, ledgerService, secretaryService, transferService, brokerService, clock.System{}, log)
	if err != nil {
		return nil, err
	}

	// initialize handlers
	urlHandler, err := handlers.InitHandlers(mainService, log)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:         cfg.ServerConfig.ServerAddress,
		Handler:      NewRouter(urlHandler, tokenHandler),
		IdleTimeout:  60 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return srv, nil
}

// NewRouter sets routing for the deposit ledger API.
func NewRouter(urlHandler *handlers.Handler, tokenHandler *middleware.TokenHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.CompressHandle)
	r.Use(middleware.DecompressHandle)
	openGroup := r.Group(nil)
	mainGroup := r.Group(nil)
	mainGroup.Use(tokenHandler.TokenHandle) // register, login and the pool routes are public
	openGroup.Post("/api/user/register", urlHandler.HandleRegister())
	openGroup.Post("/api/user/login", urlHandler.HandleLogin())
	openGroup.Post("/api/pool/receive", urlHandler.HandleReceive())
	openGroup.Get("/api/pool", urlHandler.HandleGetPool())
	mainGroup.Post("/api/user/deposit", urlHandler.HandleDeposit())
	mainGroup.Post("/api/user/withdraw", urlHandler.HandleWithdraw())
	mainGroup.Get("/api/user/balance", urlHandler.HandleGetBalance())
	mainGroup.Get("/api/user/interest", urlHandler.HandleGetInterest())
	mainGroup.Get("/api/user/deposits", urlHandler.HandleGetDeposits())
	mainGroup.Post("/api/owner/withdraw", urlHandler.HandleOwnerWithdraw())
	return r
}

// initStorage selects PSQL when a DSN is configured and the in-memory storage otherwise.
// The returned func releases the storage.
func initStorage(ctx context.Context, cfg *config.StorageConfig, log *zerolog.Logger) (storage.Storage, func() error, error) {
	if cfg.DatabaseDSN == "" {
		return inmemory.InitStorage(log), func() error { return nil }, nil
	}
	st, err := inpsql.InitStorage(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return st, st.Close, nil
}
