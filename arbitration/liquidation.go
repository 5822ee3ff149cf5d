// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package arbitration

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/offchainlabs/arbitration-client/arbitration/encoding"
)

// earliestOpen returns the open challenge with the lowest node number and all
// challengers of its source hash.
func earliestOpen(list []OpenChallenge) (*OpenChallenge, []common.Address) {
	if len(list) == 0 {
		return nil, nil
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].NodeNumber, list[j].NodeNumber
		if a == nil || b == nil {
			return b != nil
		}
		return a.Cmp(b) < 0
	})
	first := &list[0]
	var challengers []common.Address
	seen := make(map[common.Address]bool)
	for i := range list {
		if list[i].SourceTxHash != first.SourceTxHash || seen[list[i].Challenger] {
			continue
		}
		seen[list[i].Challenger] = true
		challengers = append(challengers, list[i].Challenger)
	}
	return first, challengers
}

// Liquidate settles the earliest open challenge of owner once its timing
// window allows it. A reverted settlement is returned as LiquidationFailedError.
func (e *Engine) Liquidate(ctx context.Context, owner common.Address) error {
	key := e.liquidatorKey()
	if key == nil {
		return &ConfigurationError{Err: ErrNoLiquidatorKey}
	}
	list, err := e.indexer.OpenChallenges(ctx, owner)
	if err != nil {
		return err
	}
	target, challengers := earliestOpen(list)
	if target == nil {
		return nil
	}
	hash := target.SourceTxHash
	record, err := e.records.Get(ctx, hash)
	if err != nil {
		return err
	}
	if record != nil && record.CheckChallengeHash != nil {
		log.Debug("liquidation already submitted", "hash", hash, "tx", *record.CheckChallengeHash)
		return nil
	}
	params, err := e.indexer.ChainParameters(ctx, target.SourceChainID)
	if err != nil {
		return err
	}
	if params == nil {
		log.Warn("no chain parameters for open challenge, deferring liquidation", "hash", hash, "chain", target.SourceChainID)
		return nil
	}
	action, reason := DecideLiquidation(LiquidationInput{
		Status:                target.Status,
		SourceTxTime:          target.SourceTxTime,
		VerifySourceTimestamp: target.VerifySourceTimestamp,
		VerifyDestTimestamp:   target.VerifyDestTimestamp,
		Params:                params,
		Now:                   e.now(),
	})
	if action != ActionLiquidate {
		log.Debug("liquidation deferred", "hash", hash, "status", target.Status)
		return nil
	}
	log.Info("liquidating challenge", "hash", hash, "owner", owner, "reason", reason, "challengers", len(challengers))
	txHash, err := e.submitLiquidation(ctx, target, challengers, key)
	if err != nil {
		return err
	}
	receipt, err := e.submitter.WaitForReceipt(ctx, txHash)
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		liquidationsFailedCounter.Inc(1)
		failure := &LiquidationFailedError{SourceTxHash: hash, TxHash: txHash}
		e.alert(ctx, failure.Error())
		return failure
	}
	log.Info("liquidation mined", "hash", hash, "tx", txHash, "block", receipt.BlockNumber)
	return nil
}

func (e *Engine) submitLiquidation(ctx context.Context, target *OpenChallenge, challengers []common.Address, key *ecdsa.PrivateKey) (common.Hash, error) {
	hash := target.SourceTxHash
	data, err := packCheckChallenge(target, challengers)
	if err != nil {
		return common.Hash{}, err
	}
	txHash, err := e.submitter.Send(ctx, &TxRequest{To: target.MDCAddress, Data: data, Key: key})
	if err != nil {
		return common.Hash{}, err
	}
	liquidationsCounter.Inc(1)
	err = e.records.Update(ctx, hash, func(r *DisputeRecord) {
		if r.Challenger == (common.Address{}) && len(challengers) > 0 {
			r.Challenger = challengers[0]
		}
		r.CheckChallengeHash = &txHash
		r.NeedsProof = false
	})
	if err != nil {
		log.Error("liquidation submitted but record not updated", "hash", hash, "tx", txHash, "err", err)
	}
	log.Info("liquidation submitted", "hash", hash, "tx", txHash)
	e.report(ctx, hash)
	return txHash, nil
}

// LiquidateByHash settles a specific open challenge of one of owners without
// evaluating the timing window. It does not wait for the receipt.
func (e *Engine) LiquidateByHash(ctx context.Context, owners []common.Address, hash common.Hash) (common.Hash, error) {
	key := e.liquidatorKey()
	if key == nil {
		return common.Hash{}, &ConfigurationError{Err: ErrNoLiquidatorKey}
	}
	record, err := e.records.Get(ctx, hash)
	if err != nil {
		return common.Hash{}, err
	}
	if record != nil && record.CheckChallengeHash != nil {
		return *record.CheckChallengeHash, nil
	}
	for _, owner := range owners {
		list, err := e.indexer.OpenChallenges(ctx, owner)
		if err != nil {
			return common.Hash{}, err
		}
		var matching []OpenChallenge
		for _, item := range list {
			if item.SourceTxHash == hash {
				matching = append(matching, item)
			}
		}
		target, challengers := earliestOpen(matching)
		if target == nil {
			continue
		}
		log.Info("manual liquidation", "hash", hash, "owner", owner, "challengers", len(challengers))
		return e.submitLiquidation(ctx, target, challengers, key)
	}
	return common.Hash{}, ErrNotPendingLiquidate
}

func packCheckChallenge(target *OpenChallenge, challengers []common.Address) ([]byte, error) {
	data, err := encoding.PackCheckChallenge(target.SourceChainID, target.SourceTxHash, challengers)
	if err != nil {
		return nil, &ValidationError{Hash: target.SourceTxHash, Reason: fmt.Sprintf("encoding checkChallenge for %d challengers", len(challengers)), Err: err}
	}
	return data, nil
}
