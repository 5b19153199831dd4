package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/ShiraazMoollatjie/goluhn"
	"github.com/caarlos0/env/v6"
	"github.com/danilovkiri/dk-go-depositledger/internal/api/rest/v1/middleware"
	"github.com/danilovkiri/dk-go-depositledger/internal/logger"
	"github.com/danilovkiri/dk-go-depositledger/internal/models/modeldto"
	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
)

type Response struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ServerConfig struct {
	ServerAddress string `env:"RUN_ADDRESS"`
	Chance429     int    `env:"CHANCE_429" envDefault:"10"`
	Chance500     int    `env:"CHANCE_500" envDefault:"20"`
}

func NewServerConfig() (*ServerConfig, error) {
	cfg := ServerConfig{}
	err := env.Parse(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func isFlagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func (c *ServerConfig) ParseFlags() {
	a := flag.String("a", ":7070", "Server address")
	flag.Parse()
	if isFlagPassed("a") || c.ServerAddress == "" {
		c.ServerAddress = *a
	}
}

// Rail is a mock payout rail that settles each idempotency key once.
type Rail struct {
	mu      sync.Mutex
	settled map[string]modeldto.Payout
	cfg     *ServerConfig
	log     *zerolog.Logger
}

func NewRail(cfg *ServerConfig, log *zerolog.Logger) *Rail {
	return &Rail{settled: make(map[string]modeldto.Payout), cfg: cfg, log: log}
}

func (rail *Rail) respond(w http.ResponseWriter, status int, response Response) {
	rail.log.Info().Msg(fmt.Sprintf("responding with status %d", status))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resBody, _ := json.Marshal(response)
	w.Write(resBody)
}

func (rail *Rail) HandleMockPayout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			rail.respond(w, http.StatusBadRequest, Response{Error: "Idempotency-Key header required"})
			return
		}
		rail.mu.Lock()
		_, ok := rail.settled[key]
		rail.mu.Unlock()
		if ok {
			rail.respond(w, http.StatusOK, Response{Message: "already settled"})
			return
		}

		// mock http status 429 error
		if rail.cfg.Chance429 > rand.Intn(100) {
			w.Header().Set("Retry-After", "60")
			rail.respond(w, http.StatusTooManyRequests, Response{Error: "No more than N requests per minute allowed"})
			return
		}

		// mock http status 500 error
		if rail.cfg.Chance500 > rand.Intn(100) {
			rail.respond(w, http.StatusInternalServerError, Response{Error: "settlement unavailable"})
			return
		}

		b, err := ioutil.ReadAll(r.Body)
		if err != nil {
			rail.respond(w, http.StatusBadRequest, Response{Error: err.Error()})
			return
		}
		var payout modeldto.Payout
		if err = json.Unmarshal(b, &payout); err != nil {
			rail.respond(w, http.StatusBadRequest, Response{Error: "Invalid payout body"})
			return
		}
		if err = goluhn.Validate(payout.To); err != nil {
			rail.respond(w, http.StatusUnprocessableEntity, Response{Error: "Illegal account number"})
			return
		}
		if !payout.Amount.IsPositive() {
			rail.respond(w, http.StatusUnprocessableEntity, Response{Error: "Illegal amount"})
			return
		}
		rail.mu.Lock()
		rail.settled[key] = payout
		rail.mu.Unlock()
		rail.respond(w, http.StatusOK, Response{Message: fmt.Sprintf("settled %s to %s", payout.Amount, payout.To)})
	}
}

func InitServer(cfg *ServerConfig, log *zerolog.Logger) (server *http.Server, err error) {
	rail := NewRail(cfg, log)
	r := chi.NewRouter()
	r.Use(middleware.CompressHandle)
	r.Use(middleware.DecompressHandle)
	r.Post("/api/payouts", rail.HandleMockPayout())
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		IdleTimeout:  60 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return srv, nil
}

func main() {
	log := logger.InitLog()
	rand.Seed(time.Now().UnixNano())
	cfg, err := NewServerConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	cfg.ParseFlags()
	server, err := InitServer(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	log.Info().Msg(fmt.Sprintf("payout rail listening on %s", cfg.ServerAddress))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("")
	}
}
