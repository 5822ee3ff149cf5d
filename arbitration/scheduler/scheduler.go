// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package scheduler runs the reconciliation loops. All loops that mutate
// state share one lock; a loop that finds it held skips its tick.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blang/semver/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/offchainlabs/arbitration-client/arbitration"
	"github.com/offchainlabs/arbitration-client/arbitration/liveconfig"
	"github.com/offchainlabs/arbitration-client/util/clock"
	"github.com/offchainlabs/arbitration-client/util/containers"
	"github.com/offchainlabs/arbitration-client/util/stopwaiter"
)

var (
	skippedTicksCounter = metrics.NewRegisteredCounter("arbitration/scheduler/ticks/skipped", nil)
	pausedGauge         = metrics.NewRegisteredGauge("arbitration/scheduler/paused", nil)
)

// StatusMakerResponded is the counterparty status of a transfer the maker
// answered on the destination chain.
const StatusMakerResponded = 99

// Engine is the part of the dispute engine the loops drive.
type Engine interface {
	Eligible(ctx context.Context, c *arbitration.DisputeCandidate) (bool, error)
	OpenDispute(ctx context.Context, c *arbitration.DisputeCandidate) error
	SubmitChallengerProof(ctx context.Context, p *arbitration.ChallengerProof) error
	SubmitMakerProof(ctx context.Context, p *arbitration.MakerProof) error
	Liquidate(ctx context.Context, owner common.Address) error
	Records() *arbitration.RecordStore
}

// Counterparty is the counterparty service as the loops use it.
type Counterparty interface {
	UnreimbursedTransactions(ctx context.Context, start, end time.Time) ([]arbitration.DisputeCandidate, error)
	TransactionStatus(ctx context.Context, hash common.Hash) (int, error)
	ChallengerProofs(ctx context.Context, hash common.Hash) ([]arbitration.ChallengerProof, error)
	MakerProofs(ctx context.Context, hash common.Hash) ([]arbitration.MakerProof, error)
	AskProof(ctx context.Context, hash common.Hash) error
	Version(ctx context.Context) (string, error)
	Heartbeat(ctx context.Context, monitorURL string) error
}

// Indexer is the subset of indexer queries the loops issue themselves.
type Indexer interface {
	VerifyPassChallengers(ctx context.Context, owner common.Address) ([]arbitration.VerifyPassChallenger, error)
	VerifySourceHashes(ctx context.Context, owner common.Address) ([]common.Hash, error)
	OpenChallenges(ctx context.Context, owner common.Address) ([]arbitration.OpenChallenge, error)
}

type RuntimeFetcher func() *liveconfig.Runtime

type Scheduler struct {
	stopwaiter.StopWaiter

	config       *Config
	engine       Engine
	counterparty Counterparty
	indexer      Indexer
	runtime      RuntimeFetcher
	notifier     arbitration.Notifier
	clock        clock.Clock
	version      string

	mutex  sync.Mutex
	paused atomic.Bool
	// windowEnd is the end of the last successful unrefunded transfer query.
	windowEnd time.Time
	reported  *containers.LruCache[common.Hash, struct{}]
}

// New creates a scheduler. version is the protocol version this build speaks.
func New(config *Config, engine Engine, counterparty Counterparty, indexer Indexer, runtime RuntimeFetcher, notifier arbitration.Notifier, c clock.Clock, version string) *Scheduler {
	size := config.AuditCacheSize
	if size <= 0 {
		size = DefaultConfig.AuditCacheSize
	}
	return &Scheduler{
		config:       config,
		engine:       engine,
		counterparty: counterparty,
		indexer:      indexer,
		runtime:      runtime,
		notifier:     notifier,
		clock:        c,
		version:      version,
		windowEnd:    c.Now(),
		reported:     containers.NewLruCache[common.Hash, struct{}](size),
	}
}

func (s *Scheduler) Start(ctxIn context.Context) {
	s.StopWaiter.Start(ctxIn, s)
	s.CallIteratively(s.every(s.config.ProofSyncInterval, "proof sync", s.syncProofs))
	s.CallIteratively(s.every(s.config.ChallengerInterval, "challenger discovery", s.discoverChallenges))
	s.CallIteratively(s.every(s.config.MakerInterval, "maker discovery", s.discoverMakerWork))
	s.CallIterativelyFallible(s.liquidationTick, s.liquidationStopped)
	s.CallIteratively(func(ctx context.Context) time.Duration {
		s.checkVersion(ctx)
		return s.config.VersionInterval
	})
	s.CallIteratively(func(ctx context.Context) time.Duration {
		s.heartbeat(ctx)
		return s.config.HeartbeatInterval
	})
}

// every wraps a loop body so it runs under the lock and skips busy ticks.
func (s *Scheduler) every(interval time.Duration, name string, body func(ctx context.Context)) func(context.Context) time.Duration {
	return func(ctx context.Context) time.Duration {
		ran, _ := s.RunExclusive(ctx, func(ctx context.Context) error {
			body(ctx)
			return nil
		})
		if !ran {
			log.Debug("lock held, skipping tick", "loop", name)
		}
		return interval
	}
}

// RunExclusive runs fn under the global lock, or returns false without
// running it when the lock is held.
func (s *Scheduler) RunExclusive(ctx context.Context, fn func(context.Context) error) (bool, error) {
	if !s.mutex.TryLock() {
		skippedTicksCounter.Inc(1)
		return false, nil
	}
	defer s.mutex.Unlock()
	return true, fn(ctx)
}

func (s *Scheduler) Paused() bool {
	return s.paused.Load()
}

func (s *Scheduler) setPaused(paused bool) {
	if s.paused.Swap(paused) != paused {
		if paused {
			log.Warn("protocol version mismatch, pausing discovery and proof sync")
		} else {
			log.Info("protocol version matches again, resuming")
		}
	}
	if paused {
		pausedGauge.Update(1)
	} else {
		pausedGauge.Update(0)
	}
}

// pause sleeps between items handled in one tick.
func (s *Scheduler) pause(ctx context.Context) error {
	if s.config.ItemPause <= 0 {
		return ctx.Err()
	}
	return s.clock.Sleep(ctx, s.config.ItemPause)
}

func logOutcome(msg string, hash common.Hash, err error) {
	var duplicate *arbitration.DuplicateError
	var validation *arbitration.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &duplicate):
		log.Debug(msg, "hash", hash, "err", err)
	case errors.As(err, &validation):
		log.Info(msg, "hash", hash, "err", err)
	case arbitration.IsAlertWorthy(err):
		log.Error(msg, "hash", hash, "err", err)
	default:
		log.Warn(msg, "hash", hash, "err", err)
	}
}

func (s *Scheduler) alert(ctx context.Context, text string) {
	if err := s.notifier.Notify(ctx, text); err != nil {
		log.Warn("failed to notify operator", "err", err)
	}
}

// syncProofs submits proofs for every record flagged needsProof.
func (s *Scheduler) syncProofs(ctx context.Context) {
	if s.Paused() {
		return
	}
	runtime := s.runtime()
	if runtime.Signer == nil {
		log.Debug("no signing key, skipping proof sync")
		return
	}
	pending, err := s.engine.Records().PendingProofs(ctx)
	if err != nil {
		log.Error("failed to list pending proofs", "err", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	var verifiable map[common.Hash]bool
	if runtime.IsMaker() {
		verifiable = make(map[common.Hash]bool)
		for _, owner := range runtime.Makers {
			hashes, err := s.indexer.VerifySourceHashes(ctx, owner)
			if err != nil {
				log.Warn("failed to list verifiable challenges", "owner", owner, "err", err)
				return
			}
			for _, h := range hashes {
				verifiable[h] = true
			}
		}
	}
	first := true
	for _, item := range pending {
		if ctx.Err() != nil {
			return
		}
		if verifiable != nil && !verifiable[item.Hash] {
			log.Debug("dispute not awaiting a destination proof", "hash", item.Hash)
			continue
		}
		if !first {
			if err := s.pause(ctx); err != nil {
				return
			}
		}
		first = false
		var err error
		if runtime.IsMaker() {
			err = s.syncMakerProof(ctx, item)
		} else {
			err = s.syncChallengerProof(ctx, item)
		}
		logOutcome("proof submission failed", item.Hash, err)
	}
}

func (s *Scheduler) syncChallengerProof(ctx context.Context, item arbitration.PendingRecord) error {
	proofs, err := s.counterparty.ChallengerProofs(ctx, item.Hash)
	if err != nil {
		return err
	}
	for i := range proofs {
		if !proofs[i].Status {
			continue
		}
		proof := proofs[i]
		proof.Hash = item.Hash
		if item.Record.Challenger != (common.Address{}) {
			proof.Challenger = item.Record.Challenger
		}
		return s.engine.SubmitChallengerProof(ctx, &proof)
	}
	log.Debug("no ready source proof", "hash", item.Hash, "candidates", len(proofs))
	return nil
}

func (s *Scheduler) syncMakerProof(ctx context.Context, item arbitration.PendingRecord) error {
	proofs, err := s.counterparty.MakerProofs(ctx, item.Hash)
	if err != nil {
		return err
	}
	for i := range proofs {
		if !proofs[i].Status {
			continue
		}
		proof := proofs[i]
		proof.SourceID = item.Hash
		if item.Record.Challenger != (common.Address{}) {
			proof.Challenger = item.Record.Challenger
		}
		return s.engine.SubmitMakerProof(ctx, &proof)
	}
	log.Debug("no ready destination proof", "hash", item.Hash, "candidates", len(proofs))
	return nil
}

// discoverChallenges opens disputes for unrefunded transfers of watched wallets.
func (s *Scheduler) discoverChallenges(ctx context.Context) {
	if s.Paused() {
		return
	}
	runtime := s.runtime()
	if runtime.IsMaker() || runtime.Signer == nil {
		return
	}
	end := s.clock.Now()
	list, err := s.counterparty.UnreimbursedTransactions(ctx, s.windowEnd.Add(-s.config.Lookback), end)
	if err != nil {
		log.Warn("failed to fetch unrefunded transfers", "err", err)
		return
	}
	log.Debug("unrefunded transfers", "count", len(list))
	records := s.engine.Records()
	first := true
	for i := range list {
		if ctx.Err() != nil {
			return
		}
		candidate := &list[i]
		hash := candidate.SourceTxHash
		if !runtime.WatchAll && !(common.IsHexAddress(candidate.SourceAddress) && runtime.Watches(common.HexToAddress(candidate.SourceAddress))) {
			continue
		}
		eligible, err := s.engine.Eligible(ctx, candidate)
		if err != nil {
			log.Warn("failed to check challenge window", "hash", hash, "err", err)
			continue
		}
		if !eligible {
			log.Debug("transfer outside its challenge window", "hash", hash)
			continue
		}
		existing, err := records.Get(ctx, hash)
		if err != nil {
			log.Error("failed to read dispute record", "hash", hash, "err", err)
			continue
		}
		if existing != nil {
			continue
		}
		if !first {
			if err := s.pause(ctx); err != nil {
				return
			}
		}
		first = false
		logOutcome("failed to open dispute", hash, s.engine.OpenDispute(ctx, candidate))
	}
	s.windowEnd = end
}

// discoverMakerWork asks for destination proofs of challenges against the
// managed makers that the counterparty can defend, then audits open challenges.
func (s *Scheduler) discoverMakerWork(ctx context.Context) {
	if s.Paused() {
		return
	}
	runtime := s.runtime()
	if !runtime.IsMaker() || runtime.Signer == nil {
		return
	}
	records := s.engine.Records()
	first := true
	for _, maker := range runtime.Makers {
		challengers, err := s.indexer.VerifyPassChallengers(ctx, maker)
		if err != nil {
			log.Warn("failed to list verified challengers", "maker", maker, "err", err)
			continue
		}
		for _, item := range challengers {
			if ctx.Err() != nil {
				return
			}
			hash := item.SourceTxHash
			existing, err := records.Get(ctx, hash)
			if err != nil {
				log.Error("failed to read dispute record", "hash", hash, "err", err)
				continue
			}
			if existing != nil {
				continue
			}
			status, err := s.counterparty.TransactionStatus(ctx, hash)
			if err != nil {
				log.Warn("failed to read transfer status", "hash", hash, "err", err)
				continue
			}
			if status != StatusMakerResponded {
				log.Debug("transfer not answered by the maker", "hash", hash, "status", status)
				continue
			}
			if !first {
				if err := s.pause(ctx); err != nil {
					return
				}
			}
			first = false
			if err := s.counterparty.AskProof(ctx, hash); err != nil {
				log.Warn("failed to request destination proof", "hash", hash, "err", err)
				continue
			}
			if err := records.Put(ctx, hash, &arbitration.DisputeRecord{Challenger: item.Challenger, NeedsProof: true}); err != nil {
				log.Error("failed to record proof request", "hash", hash, "err", err)
				continue
			}
			log.Info("destination proof requested", "hash", hash, "challenger", item.Challenger)
		}
		s.auditChallenges(ctx, maker)
	}
}

// auditChallenges reports open challenges against owner whose transfer the
// maker already answered.
func (s *Scheduler) auditChallenges(ctx context.Context, owner common.Address) {
	open, err := s.indexer.OpenChallenges(ctx, owner)
	if err != nil {
		log.Warn("failed to list open challenges", "owner", owner, "err", err)
		return
	}
	checked := make(map[common.Hash]bool)
	for _, challenge := range open {
		hash := challenge.SourceTxHash
		if challenge.Status != arbitration.StatusCreate || checked[hash] || s.reported.Contains(hash) {
			continue
		}
		checked[hash] = true
		status, err := s.counterparty.TransactionStatus(ctx, hash)
		if err != nil {
			log.Warn("failed to read transfer status", "hash", hash, "err", err)
			continue
		}
		if status != StatusMakerResponded {
			continue
		}
		s.reported.Add(hash, struct{}{})
		log.Warn("illegal challenge against answered transfer", "hash", hash, "owner", owner, "challenger", challenge.Challenger)
		s.alert(ctx, fmt.Sprintf("Illegal challenge detected: %v against %v by %v", hash, owner, challenge.Challenger))
	}
}

// liquidationTick settles expired challenges of every managed maker. Any
// error ends the loop for good.
func (s *Scheduler) liquidationTick(ctx context.Context) (time.Duration, error) {
	runtime := s.runtime()
	if !runtime.IsMaker() || runtime.Liquidator == nil {
		return s.config.LiquidationInterval, nil
	}
	ran, err := s.RunExclusive(ctx, func(ctx context.Context) error {
		for _, owner := range runtime.Makers {
			if err := s.engine.Liquidate(ctx, owner); err != nil {
				return fmt.Errorf("liquidating challenges of %v: %w", owner, err)
			}
		}
		return nil
	})
	if !ran {
		log.Debug("lock held, skipping tick", "loop", "liquidation")
	}
	if err != nil && ctx.Err() != nil {
		return 0, nil
	}
	return s.config.LiquidationInterval, err
}

func (s *Scheduler) liquidationStopped(err error) {
	log.Error("liquidation loop stopped", "err", err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.alert(ctx, "Liquidation stopped, restart required: "+err.Error())
}

// checkVersion pauses work while the counterparty runs a different major version.
func (s *Scheduler) checkVersion(ctx context.Context) {
	local, err := semver.ParseTolerant(s.version)
	if err != nil {
		log.Debug("local version is not semantic, skipping version check", "version", s.version)
		return
	}
	remoteVersion, err := s.counterparty.Version(ctx)
	if err != nil {
		log.Debug("failed to fetch counterparty version", "err", err)
		return
	}
	remote, err := semver.ParseTolerant(remoteVersion)
	if err != nil {
		log.Warn("counterparty reported an invalid version", "version", remoteVersion, "err", err)
		return
	}
	s.setPaused(remote.Major != local.Major)
}

func (s *Scheduler) heartbeat(ctx context.Context) {
	url := s.runtime().Config.MonitorURL
	if url == "" {
		return
	}
	if err := s.counterparty.Heartbeat(ctx, url); err != nil {
		log.Warn("heartbeat failed", "err", err)
	}
}
