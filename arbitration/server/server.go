// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package server exposes the operator control surface: runtime config
// patches, manual liquidation and proof retries.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/arbitration-client/arbitration"
	"github.com/offchainlabs/arbitration-client/arbitration/liveconfig"
	"github.com/offchainlabs/arbitration-client/arbitration/makerapi"
	"github.com/offchainlabs/arbitration-client/cmd/genericconf"
)

type Config struct {
	HTTP            genericconf.HTTPServerConfig `koanf:"http"`
	AllowedChainIDs []uint                       `koanf:"allowed-chain-ids"`
}

var DefaultConfig = Config{
	HTTP:            genericconf.HTTPServerConfigDefault,
	AllowedChainIDs: []uint{1, 11155111},
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	genericconf.HTTPServerConfigAddOptions(prefix+".http", f)
	f.UintSlice(prefix+".allowed-chain-ids", DefaultConfig.AllowedChainIDs, "chain ids an rpc url set through the control surface may point to")
}

// Engine is the part of the dispute engine the control surface triggers.
type Engine interface {
	LiquidateByHash(ctx context.Context, owners []common.Address, hash common.Hash) (common.Hash, error)
	RetryProof(ctx context.Context, hash common.Hash, fallback func(context.Context) (*arbitration.DisputeRecord, error)) (*arbitration.DisputeRecord, error)
}

// Locker runs fn under the scheduler lock, reporting false when it is held.
type Locker interface {
	RunExclusive(ctx context.Context, fn func(context.Context) error) (bool, error)
}

type Counterparty interface {
	ClientConfig(ctx context.Context, endpoint string) (*makerapi.ClientConfig, error)
	ChallengeRecord(ctx context.Context, hash common.Hash) (*arbitration.DisputeRecord, error)
}

// ChainIDLookup returns the chain id an rpc url serves.
type ChainIDLookup func(ctx context.Context, url string) (uint64, error)

type Server struct {
	config       *Config
	srv          *http.Server
	router       *mux.Router
	live         *liveconfig.LiveConfig
	persister    *liveconfig.Persister
	engine       Engine
	locker       Locker
	counterparty Counterparty
	chainIDOf    ChainIDLookup
}

func New(config *Config, live *liveconfig.LiveConfig, persister *liveconfig.Persister, engine Engine, locker Locker, counterparty Counterparty, chainIDOf ChainIDLookup) *Server {
	r := mux.NewRouter()
	s := &Server{
		config:       config,
		router:       r,
		live:         live,
		persister:    persister,
		engine:       engine,
		locker:       locker,
		counterparty: counterparty,
		chainIDOf:    chainIDOf,
		srv: &http.Server{
			Handler:           r,
			Addr:              net.JoinHostPort(config.HTTP.Addr, strconv.Itoa(config.HTTP.Port)),
			WriteTimeout:      config.HTTP.WriteTimeout,
			ReadTimeout:       config.HTTP.ReadTimeout,
			ReadHeaderTimeout: config.HTTP.ReadHeaderTimeout,
		},
	}
	s.registerMethods()
	return s
}

func (s *Server) registerMethods() {
	s.router.HandleFunc("/", s.Index).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.Healthz).Methods(http.MethodGet)
	s.router.HandleFunc("/config", s.SetConfig).Methods(http.MethodPost)
	s.router.HandleFunc("/liquidate", s.Liquidate).Methods(http.MethodPost)
	s.router.HandleFunc("/retry_proof", s.RetryProof).Methods(http.MethodPost)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Stop is called. It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	log.Info("control server listening", "addr", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("control server: %w", err)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
