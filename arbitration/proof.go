// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package arbitration

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"

	"github.com/offchainlabs/arbitration-client/arbitration/encoding"
)

func decodeProof(hash common.Hash, proof string) ([]byte, error) {
	if proof == "" {
		return nil, nil
	}
	decoded, err := hexutil.Decode(proof)
	if err != nil {
		return nil, &ValidationError{Hash: hash, Reason: "proof is not hex", Err: err}
	}
	return decoded, nil
}

// SubmitChallengerProof proves the source transfer of a dispute this process
// opened. An empty proof is skipped.
func (e *Engine) SubmitChallengerProof(ctx context.Context, p *ChallengerProof) error {
	hash := p.Hash
	proof, err := decodeProof(hash, p.Proof)
	if err != nil {
		return err
	}
	if len(proof) == 0 {
		log.Warn("proof is empty", "hash", hash)
		return nil
	}
	log.Info("submitting source proof", "hash", hash)
	mdc, rule, err := e.findRule(ctx, hash, p.SourceMaker, p.EbcAddress, p.RuleID)
	if err != nil {
		return err
	}
	columns, err := e.indexer.ColumnArray(ctx, uint64(p.SourceTime), mdc.ID, mdc.Owner)
	if err != nil {
		return err
	}
	if columns == nil || len(columns.Dealers) == 0 {
		return &ValidationError{Hash: hash, Reason: fmt.Sprintf("no column snapshot for MDC %v", mdc.ID)}
	}
	rawDatas, err := encoding.ColumnRawData(columns.Dealers, columns.Ebcs, columns.ChainIDList(), p.EbcAddress)
	if err != nil {
		return &ValidationError{Hash: hash, Reason: "encoding column snapshot", Err: err}
	}
	rlpRule, err := encoding.RuleRLP(rule.RLPFields())
	if err != nil {
		return &ValidationError{Hash: hash, Reason: "encoding rule", Err: err}
	}
	challenger := p.Challenger
	if record, err := e.records.Get(ctx, hash); err == nil && record != nil && record.Challenger != (common.Address{}) {
		challenger = record.Challenger
	}
	data, err := encoding.PackVerifyChallengeSource(challenger, p.SpvAddress, uint64(p.SourceChain), proof, rawDatas, rlpRule)
	if err != nil {
		return &ValidationError{Hash: hash, Reason: "encoding verifyChallengeSource", Err: err}
	}
	txHash, err := e.submitter.Send(ctx, &TxRequest{To: mdc.ID, Data: data})
	if err != nil {
		return err
	}
	proofsSubmittedCounter.Inc(1)
	err = e.records.Update(ctx, hash, func(r *DisputeRecord) {
		r.Challenger = challenger
		r.VerifyChallengeSourceHash = &txHash
		r.NeedsProof = false
		r.Message = ""
	})
	if err != nil {
		log.Error("source proof submitted but record not updated", "hash", hash, "tx", txHash, "err", err)
		return nil
	}
	log.Info("source proof submitted", "hash", hash, "tx", txHash)
	e.report(ctx, hash)
	return nil
}

// SubmitMakerProof proves the destination transfer of a dispute against one of
// the managed makers. The proof is only sent when the recomputed verified data
// hash is one the contract already recorded.
func (e *Engine) SubmitMakerProof(ctx context.Context, p *MakerProof) error {
	hash := p.SourceID
	proof, err := decodeProof(hash, p.Proof)
	if err != nil {
		return err
	}
	if len(proof) == 0 {
		log.Warn("proof is empty", "hash", hash)
		return nil
	}
	log.Info("submitting destination proof", "hash", hash)
	mdcs, err := e.indexer.MDCs(ctx, p.SourceMaker)
	if err != nil {
		return err
	}
	var mdc *MDC
	for i := range mdcs {
		if mdcs[i].Owner != (common.Address{}) {
			mdc = &mdcs[i]
			break
		}
	}
	if mdc == nil {
		return &ValidationError{Hash: hash, Reason: fmt.Sprintf("no MDC for maker %v", p.SourceMaker)}
	}
	sourceChain, destChain := uint64(p.SourceChain), uint64(p.TargetChain)
	params, err := e.indexer.ChainParameters(ctx, sourceChain)
	if err != nil {
		return err
	}
	if params == nil {
		return &ValidationError{Hash: hash, Reason: fmt.Sprintf("no parameters for chain %d", sourceChain)}
	}
	responseMakers, err := e.indexer.ResponseMakers(ctx, mdc.ID, uint64(p.SourceTime))
	if err != nil {
		return err
	}
	rawDatas, err := encoding.ResponseMakersRawData(responseMakers)
	if err != nil {
		return &ValidationError{Hash: hash, Reason: "encoding response makers", Err: err}
	}
	rule, err := e.indexer.Rule(ctx, mdc.Owner, p.EbcAddress, p.RuleID)
	if err != nil {
		return err
	}
	if !rule.Valid() {
		return &ValidationError{Hash: hash, Reason: fmt.Sprintf("no rule %s for ebc %v", p.RuleID, p.EbcAddress)}
	}
	responseTime, ok := rule.ResponseTime(sourceChain, destChain)
	if !ok {
		return &ValidationError{Hash: hash, Reason: fmt.Sprintf("rule does not cover %d -> %d", sourceChain, destChain)}
	}
	destAmount, err := e.responseIntent(ctx, p.EbcAddress, rule, sourceChain, destChain, p.SourceAmount.Big())
	if err != nil {
		return err
	}
	verified := &encoding.VerifiedSourceTxData{
		MinChallengeSecond: new(big.Int).SetUint64(uint64(params.MinVerifyChallengeSourceTxSecond)),
		MaxChallengeSecond: new(big.Int).SetUint64(uint64(params.MaxVerifyChallengeSourceTxSecond)),
		Nonce:              p.SourceNonce.Big(),
		DestChainId:        new(big.Int).SetUint64(destChain),
		From:               p.SourceAddress.Big(),
		DestToken:          p.TargetToken.Big(),
		DestAmount:         destAmount,
		ResponseMakersHash: encoding.ResponseMakersHash(rawDatas).Big(),
		ResponseTime:       responseTime,
	}
	verifiedHash, err := verified.Hash()
	if err != nil {
		return &ValidationError{Hash: hash, Reason: "hashing verified data", Err: err}
	}
	recorded, err := e.indexer.VerifiedDataHashes(ctx, hash)
	if err != nil {
		return err
	}
	if !containsHash(recorded, verifiedHash) {
		msg := fmt.Sprintf("verified data hash %v not recorded on chain", verifiedHash)
		if updateErr := e.records.Update(ctx, hash, func(r *DisputeRecord) { r.Message = msg }); updateErr != nil {
			log.Error("failed to record proof failure", "hash", hash, "err", updateErr)
		}
		return &ValidationError{Hash: hash, Reason: msg}
	}
	data, err := encoding.PackVerifyChallengeDest(p.Challenger, p.SpvAddress, sourceChain, hash, proof, verified, rawDatas)
	if err != nil {
		return &ValidationError{Hash: hash, Reason: "encoding verifyChallengeDest", Err: err}
	}
	txHash, err := e.submitter.Send(ctx, &TxRequest{To: mdc.ID, Data: data})
	if err != nil {
		return err
	}
	proofsSubmittedCounter.Inc(1)
	err = e.records.Update(ctx, hash, func(r *DisputeRecord) {
		r.Challenger = p.Challenger
		r.VerifyChallengeDestHash = &txHash
		r.NeedsProof = false
		r.Message = ""
	})
	if err != nil {
		log.Error("destination proof submitted but record not updated", "hash", hash, "tx", txHash, "err", err)
		return nil
	}
	log.Info("destination proof submitted", "hash", hash, "tx", txHash)
	e.report(ctx, hash)
	return nil
}

func containsHash(list []common.Hash, h common.Hash) bool {
	for _, item := range list {
		if item == h {
			return true
		}
	}
	return false
}

// responseIntent asks the EBC contract for the amount the maker had to send.
func (e *Engine) responseIntent(ctx context.Context, ebc common.Address, rule *Rule, source, dest uint64, amount *big.Int) (*big.Int, error) {
	ro, ok := rule.Oneway(source, dest)
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("rule does not cover %d -> %d", source, dest)}
	}
	data, err := encoding.PackGetResponseIntent(amount, ro)
	if err != nil {
		return nil, &ValidationError{Reason: "encoding getResponseIntent", Err: err}
	}
	output, err := e.reader.CallContract(ctx, ethereum.CallMsg{To: &ebc, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	destAmount, err := encoding.UnpackGetResponseIntent(output)
	if err != nil {
		return nil, &ValidationError{Reason: "decoding getResponseIntent", Err: err}
	}
	if destAmount.Sign() == 0 {
		return nil, &ValidationError{Reason: "zero response amount"}
	}
	return destAmount, nil
}

// RetryProof flags a dispute for another proof attempt. When the local record
// is missing it is rebuilt from fallback, if given.
func (e *Engine) RetryProof(ctx context.Context, hash common.Hash, fallback func(context.Context) (*DisputeRecord, error)) (*DisputeRecord, error) {
	record, err := e.records.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	if record == nil {
		if fallback == nil {
			return nil, ErrRecordNotFound
		}
		record, err = fallback(ctx)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, ErrRecordNotFound
		}
	}
	if record.CheckChallengeHash != nil {
		return nil, fmt.Errorf("dispute %v is already liquidated", hash)
	}
	record.NeedsProof = true
	record.AlreadyExists = false
	record.Message = ""
	if err := e.records.Put(ctx, hash, record); err != nil {
		return nil, err
	}
	log.Info("proof retry requested", "hash", hash)
	return record, nil
}
