// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package arbitration

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/holiman/uint256"
	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/arbitration-client/arbitration/encoding"
	"github.com/offchainlabs/arbitration-client/util/clock"
	"github.com/offchainlabs/arbitration-client/util/containers"
)

var (
	disputesOpenedCounter     = metrics.NewRegisteredCounter("arbitration/disputes/opened", nil)
	disputesDuplicateCounter  = metrics.NewRegisteredCounter("arbitration/disputes/duplicates", nil)
	proofsSubmittedCounter    = metrics.NewRegisteredCounter("arbitration/proofs/submitted", nil)
	liquidationsCounter       = metrics.NewRegisteredCounter("arbitration/liquidations/submitted", nil)
	liquidationsFailedCounter = metrics.NewRegisteredCounter("arbitration/liquidations/failed", nil)
)

type EngineConfig struct {
	DuplicateCacheSize int `koanf:"duplicate-cache-size"`
}

var DefaultEngineConfig = EngineConfig{
	DuplicateCacheSize: 1024,
}

func EngineConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Int(prefix+".duplicate-cache-size", DefaultEngineConfig.DuplicateCacheSize, "number of source hashes remembered as already challenged on chain")
}

// Engine drives a dispute through open, proof and liquidation. It is not safe
// for concurrent use; callers serialize it with the scheduler lock.
type Engine struct {
	indexer   Indexer
	reader    ContractReader
	submitter Submitter
	records   *RecordStore
	clock     clock.Clock
	notifier  Notifier
	reporter  Reporter
	// liquidatorKey returns nil when no liquidation key is configured.
	liquidatorKey func() *ecdsa.PrivateKey

	knownDuplicates *containers.LruCache[common.Hash, struct{}]
}

type EngineOpt func(*Engine)

func WithClock(c clock.Clock) EngineOpt {
	return func(e *Engine) { e.clock = c }
}

func WithNotifier(n Notifier) EngineOpt {
	return func(e *Engine) { e.notifier = n }
}

func WithReporter(r Reporter) EngineOpt {
	return func(e *Engine) { e.reporter = r }
}

func WithLiquidatorKey(fetch func() *ecdsa.PrivateKey) EngineOpt {
	return func(e *Engine) { e.liquidatorKey = fetch }
}

func NewEngine(config *EngineConfig, indexer Indexer, reader ContractReader, submitter Submitter, records *RecordStore, opts ...EngineOpt) *Engine {
	size := config.DuplicateCacheSize
	if size <= 0 {
		size = DefaultEngineConfig.DuplicateCacheSize
	}
	e := &Engine{
		indexer:         indexer,
		reader:          reader,
		submitter:       submitter,
		records:         records,
		clock:           clock.NewRealClock(),
		notifier:        noopNotifier{},
		reporter:        noopReporter{},
		liquidatorKey:   func() *ecdsa.PrivateKey { return nil },
		knownDuplicates: containers.NewLruCache[common.Hash, struct{}](size),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Records() *RecordStore {
	return e.records
}

func (e *Engine) now() uint64 {
	return clock.Unix(e.clock)
}

func (e *Engine) report(ctx context.Context, hash common.Hash) {
	record, err := e.records.Get(ctx, hash)
	if err != nil || record == nil {
		return
	}
	if err := e.reporter.ReportRecord(ctx, hash, record); err != nil {
		log.Warn("failed to report dispute record to counterparty", "hash", hash, "err", err)
	}
}

func (e *Engine) alert(ctx context.Context, text string) {
	if err := e.notifier.Notify(ctx, text); err != nil {
		log.Warn("failed to notify operator", "err", err)
	}
}

// findRule returns the first MDC of maker with a valid rule for (ebc, ruleID).
func (e *Engine) findRule(ctx context.Context, hash common.Hash, maker, ebc common.Address, ruleID string) (*MDC, *Rule, error) {
	mdcs, err := e.indexer.MDCs(ctx, maker)
	if err != nil {
		return nil, nil, err
	}
	if len(mdcs) == 0 {
		return nil, nil, &ValidationError{Hash: hash, Reason: fmt.Sprintf("no MDC for maker %v", maker)}
	}
	for i := range mdcs {
		rule, err := e.indexer.Rule(ctx, mdcs[i].Owner, ebc, ruleID)
		if err != nil {
			return nil, nil, err
		}
		if rule.Valid() {
			return &mdcs[i], rule, nil
		}
	}
	return nil, nil, &ValidationError{Hash: hash, Reason: fmt.Sprintf("no rule %s for ebc %v", ruleID, ebc)}
}

// Eligible reports whether now lies inside the candidate's challenge window.
func (e *Engine) Eligible(ctx context.Context, c *DisputeCandidate) (bool, error) {
	params, err := e.indexer.ChainParameters(ctx, uint64(c.SourceChainID))
	if err != nil {
		return false, err
	}
	return VerifyArbitrationConditions(params, uint64(c.SourceTxTime), e.now()), nil
}

// OpenDispute challenges an unrefunded transfer. It writes a provisional
// record before submitting; pre-broadcast failures that may succeed later
// remove it again so the next tick retries.
func (e *Engine) OpenDispute(ctx context.Context, c *DisputeCandidate) error {
	hash := c.SourceTxHash
	if e.knownDuplicates.Contains(hash) {
		return &DuplicateError{Hash: hash}
	}
	challenger, err := e.submitter.DefaultAddress()
	if err != nil {
		return &ConfigurationError{Err: err}
	}
	eligible, err := e.Eligible(ctx, c)
	if err != nil {
		return err
	}
	if !eligible {
		return &ValidationError{Hash: hash, Reason: "outside the challenge window"}
	}
	existing, err := e.records.Get(ctx, hash)
	if err != nil {
		return err
	}
	if existing != nil {
		log.Debug("dispute record already exists", "hash", hash)
		return nil
	}
	if err := e.records.Put(ctx, hash, &DisputeRecord{}); err != nil {
		return err
	}
	err = e.openDispute(ctx, c, challenger)
	var validation *ValidationError
	var duplicate *DuplicateError
	switch {
	case err == nil, errors.As(err, &duplicate):
	case errors.As(err, &validation):
		if updateErr := e.records.Update(ctx, hash, func(r *DisputeRecord) { r.Message = err.Error() }); updateErr != nil {
			log.Error("failed to record dispute failure", "hash", hash, "err", updateErr)
		}
	default:
		if delErr := e.records.Delete(ctx, hash); delErr != nil {
			log.Error("failed to remove provisional record", "hash", hash, "err", delErr)
		}
	}
	return err
}

func (e *Engine) openDispute(ctx context.Context, c *DisputeCandidate, challenger common.Address) error {
	hash := c.SourceTxHash
	log.Info("opening dispute", "hash", hash, "maker", c.SourceMaker, "chain", uint64(c.SourceChainID))
	mdc, rule, err := e.findRule(ctx, hash, c.SourceMaker, c.EbcAddress, c.RuleID)
	if err != nil {
		return err
	}
	ruleKey, err := rule.Key()
	if err != nil {
		return &ValidationError{Hash: hash, Reason: "bad rule", Err: err}
	}
	onChain, err := e.indexer.ChallengesBySourceHash(ctx, hash)
	if err != nil {
		return err
	}
	for i := range onChain {
		if onChain[i].Matches(c, ruleKey.Hex()) {
			log.Warn("challenge already exists on chain", "hash", hash, "ruleKey", ruleKey)
			e.knownDuplicates.Add(hash, struct{}{})
			disputesDuplicateCounter.Inc(1)
			if err := e.records.Put(ctx, hash, &DisputeRecord{AlreadyExists: true}); err != nil {
				return err
			}
			return &DuplicateError{Hash: hash}
		}
	}
	nodeNumber := c.NodeNumber()
	parent, err := e.indexer.NextChallengeNodeNumber(ctx, mdc.ID, nodeNumber)
	if err != nil {
		return err
	}
	freezeAmount, overflow := new(uint256.Int).MulOverflow(&c.FreezeAmount1.Int, uint256.NewInt(2))
	if overflow {
		return &ValidationError{Hash: hash, Reason: "freeze amount overflows"}
	}
	frozen, err := e.tokenBalance(ctx, c.FreezeToken, mdc.ID)
	if err != nil {
		return err
	}
	if frozen.Cmp(freezeAmount.ToBig()) < 0 {
		log.Warn("MDC frozen balance too low", "hash", hash, "mdc", mdc.ID, "token", c.FreezeToken, "have", frozen, "need", freezeAmount)
		return &InsufficientBalanceError{Account: mdc.ID, Balance: frozen, Required: freezeAmount.ToBig()}
	}
	value := new(big.Int)
	if c.FreezeToken == (common.Address{}) {
		value.Add(freezeAmount.ToBig(), c.MinChallengeDepositAmount.ToBig())
	}
	data, err := encoding.PackChallenge(&encoding.ChallengeArgs{
		SourceTxTime:     uint64(c.SourceTxTime),
		SourceChainID:    uint64(c.SourceChainID),
		SourceTxBlockNum: uint64(c.SourceTxBlockNum),
		SourceTxIndex:    uint64(c.SourceTxIndex),
		SourceTxHash:     hash,
		RuleKey:          ruleKey,
		FreezeToken:      c.FreezeToken,
		FreezeAmount:     freezeAmount.ToBig(),
		ParentNodeNumber: parent,
	})
	if err != nil {
		return &ValidationError{Hash: hash, Reason: "encoding challenge", Err: err}
	}
	log.Debug("challenge parameters", "hash", hash, "mdc", mdc.ID, "owner", mdc.Owner, "nodeNumber", nodeNumber, "parent", parent, "value", value)
	txHash, err := e.submitter.Send(ctx, &TxRequest{To: mdc.ID, Value: value, Data: data})
	if err != nil {
		return err
	}
	disputesOpenedCounter.Inc(1)
	err = e.records.Put(ctx, hash, &DisputeRecord{
		Challenger:         challenger,
		FromChainID:        uint64(c.SourceChainID),
		SubmitSourceTxHash: &txHash,
		NeedsProof:         true,
	})
	if err != nil {
		// The provisional record stays in place and blocks a second challenge.
		log.Error("challenge submitted but record not updated", "hash", hash, "tx", txHash, "err", err)
		return nil
	}
	log.Info("challenge submitted", "hash", hash, "tx", txHash)
	e.report(ctx, hash)
	receipt, err := e.submitter.WaitForReceipt(ctx, txHash)
	if err != nil {
		log.Warn("stopped waiting for challenge receipt", "hash", hash, "tx", txHash, "err", err)
		return nil
	}
	log.Info("challenge mined", "hash", hash, "tx", txHash, "block", receipt.BlockNumber, "status", receipt.Status)
	return nil
}

// tokenBalance reads the balance of holder in token, the zero address being
// the native currency.
func (e *Engine) tokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	if token == (common.Address{}) {
		return e.reader.BalanceAt(ctx, holder, nil)
	}
	data, err := encoding.PackBalanceOf(holder)
	if err != nil {
		return nil, err
	}
	output, err := e.reader.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	return encoding.UnpackBalanceOf(output)
}
