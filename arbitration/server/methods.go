// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/r3labs/diff/v3"

	"github.com/offchainlabs/arbitration-client/arbitration"
	"github.com/offchainlabs/arbitration-client/arbitration/liveconfig"
)

const (
	codeSuccess = 0
	codeFailure = 1

	msgInvalidParameters = "Invalid parameters"
	msgBusy              = "Transaction is being sent, please request later"
)

const contentType = "application/json"

// maxBodySize bounds control requests.
const maxBodySize = 1 << 20

type response struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
}

func writeResponse(w http.ResponseWriter, resp *response) {
	w.Header().Set("Content-Type", contentType)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Warn("failed to write control response", "err", err)
	}
}

func fail(w http.ResponseWriter, message string) {
	writeResponse(w, &response{Code: codeFailure, Message: message})
}

func decodeBody(r *http.Request, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(body, out)
}

type hashRequest struct {
	Hash string `json:"hash"`
}

func decodeHash(r *http.Request) (common.Hash, bool) {
	var req hashRequest
	if err := decodeBody(r, &req); err != nil {
		return common.Hash{}, false
	}
	raw := strings.TrimSpace(req.Hash)
	if len(raw) != 66 || !strings.HasPrefix(raw, "0x") {
		return common.Hash{}, false
	}
	var hash common.Hash
	if err := hash.UnmarshalText([]byte(raw)); err != nil {
		return common.Hash{}, false
	}
	return hash, true
}

// Index
//
// method:
// - GET
// - /
func (s *Server) Index(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, &response{Code: codeSuccess, Message: "Welcome to the arbitration system"})
}

// Healthz returns 200 while the process serves requests.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) chainAllowed(id uint64) bool {
	for _, allowed := range s.config.AllowedChainIDs {
		if uint64(allowed) == id {
			return true
		}
	}
	return false
}

// SetConfig patches the runtime config, persists it and publishes it.
//
// method:
// - POST
// - /config
//
// request body:
// - liveconfig.Patch
//
// response:
// - the applied config without key material
func (s *Server) SetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var patch liveconfig.Patch
	if err := decodeBody(r, &patch); err != nil {
		fail(w, msgInvalidParameters)
		return
	}
	current := s.live.Config()
	next := patch.Apply(current)
	if patch.RPC != "" {
		chainID, err := s.chainIDOf(ctx, patch.RPC)
		if err != nil {
			log.Warn("rejected rpc url", "err", err)
			fail(w, "Rpc error")
			return
		}
		if !s.chainAllowed(chainID) {
			fail(w, "Currently only the main and sepolia networks are supported")
			return
		}
	}
	if patch.MakerAPIEndpoint != "" {
		clientConfig, err := s.counterparty.ClientConfig(ctx, patch.MakerAPIEndpoint)
		if err != nil {
			log.Error("failed to fetch client config from counterparty", "endpoint", patch.MakerAPIEndpoint, "err", err)
		} else {
			next.SubgraphEndpoint = clientConfig.SubgraphEndpoint
		}
	}
	runtime, err := liveconfig.Parse(&next)
	if err != nil {
		if errors.Is(err, liveconfig.ErrInvalidPrivateKey) {
			fail(w, liveconfig.ErrInvalidPrivateKey.Error())
			return
		}
		fail(w, err.Error())
		return
	}
	if err := s.persister.Save(ctx, &next); err != nil {
		log.Error("failed to persist runtime config", "err", err)
		fail(w, err.Error())
		return
	}
	logChanges(&current, &next, runtime)
	s.live.Set(runtime)
	writeResponse(w, &response{Code: codeSuccess, Message: "success", Result: next.Redacted()})
}

func logChanges(current, next *liveconfig.RuntimeConfig, runtime *liveconfig.Runtime) {
	if current.PrivateKey != next.PrivateKey && runtime.Signer != nil {
		log.Info("signing key replaced", "address", crypto.PubkeyToAddress(runtime.Signer.PublicKey))
	}
	if current.LiquidatePrivateKey != next.LiquidatePrivateKey && runtime.Liquidator != nil {
		log.Info("liquidation key replaced", "address", crypto.PubkeyToAddress(runtime.Liquidator.PublicKey))
	}
	changelog, err := diff.Diff(current.Redacted(), next.Redacted())
	if err != nil {
		log.Warn("failed to diff runtime config", "err", err)
		return
	}
	for _, change := range changelog {
		field := strings.Join(change.Path, ".")
		if strings.HasPrefix(field, "telegramToken") {
			log.Info("runtime config changed", "field", field)
			continue
		}
		log.Info("runtime config changed", "field", field, "type", change.Type, "from", change.From, "to", change.To)
	}
}

// Liquidate settles one open challenge of a managed maker right away.
//
// method:
// - POST
// - /liquidate
//
// request body:
// - {"hash": source tx hash}
//
// response:
// - the liquidation tx hash
func (s *Server) Liquidate(w http.ResponseWriter, r *http.Request) {
	hash, ok := decodeHash(r)
	if !ok {
		fail(w, msgInvalidParameters)
		return
	}
	runtime := s.live.Get()
	if runtime.Liquidator == nil {
		fail(w, "Private key not injected")
		return
	}
	if !runtime.IsMaker() {
		fail(w, "Liquidation requires a maker list")
		return
	}
	var txHash common.Hash
	ran, err := s.locker.RunExclusive(r.Context(), func(ctx context.Context) error {
		var err error
		txHash, err = s.engine.LiquidateByHash(ctx, runtime.Makers, hash)
		return err
	})
	switch {
	case !ran:
		fail(w, msgBusy)
	case errors.Is(err, arbitration.ErrNotPendingLiquidate):
		fail(w, "Transaction is not in the pending liquidation list")
	case err != nil:
		log.Error("manual liquidation failed", "hash", hash, "err", err)
		fail(w, "Send Failure")
	default:
		writeResponse(w, &response{Code: codeSuccess, Message: "success", Result: txHash})
	}
}

// RetryProof flags a dispute for another proof submission.
//
// method:
// - POST
// - /retry_proof
//
// request body:
// - {"hash": source tx hash}
//
// response:
// - the updated dispute record
func (s *Server) RetryProof(w http.ResponseWriter, r *http.Request) {
	hash, ok := decodeHash(r)
	if !ok {
		fail(w, msgInvalidParameters)
		return
	}
	var record *arbitration.DisputeRecord
	ran, err := s.locker.RunExclusive(r.Context(), func(ctx context.Context) error {
		var err error
		record, err = s.engine.RetryProof(ctx, hash, func(ctx context.Context) (*arbitration.DisputeRecord, error) {
			return s.counterparty.ChallengeRecord(ctx, hash)
		})
		return err
	})
	switch {
	case !ran:
		fail(w, msgBusy)
	case errors.Is(err, arbitration.ErrRecordNotFound):
		fail(w, fmt.Sprintf("Please check if the transaction(%s) exists in the local state store", strings.ToLower(hash.Hex())))
	case err != nil:
		fail(w, err.Error())
	default:
		writeResponse(w, &response{Code: codeSuccess, Message: "success", Result: record})
	}
}
