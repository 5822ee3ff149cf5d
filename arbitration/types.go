// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package arbitration holds the dispute data model and the Dispute Lifecycle
// Engine that opens challenges, submits proofs and liquidates expired ones.
package arbitration

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/offchainlabs/arbitration-client/arbitration/encoding"
	"github.com/offchainlabs/arbitration-client/util/jsonapi"
)

// Status is the on-chain stage of a dispute as reported by the indexer.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusCreate
	StatusVerifySource
	StatusVerifyDest
	StatusLiquidation
)

func ParseStatus(s string) Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CREATE":
		return StatusCreate
	case "VERIFY_SOURCE":
		return StatusVerifySource
	case "VERIFY_DEST":
		return StatusVerifyDest
	case "LIQUIDATION":
		return StatusLiquidation
	}
	return StatusUnknown
}

func (s Status) String() string {
	switch s {
	case StatusCreate:
		return "CREATE"
	case StatusVerifySource:
		return "VERIFY_SOURCE"
	case StatusVerifyDest:
		return "VERIFY_DEST"
	case StatusLiquidation:
		return "LIQUIDATION"
	}
	return "UNKNOWN"
}

// DisputeCandidate is a transfer the counterparty reports as unrefunded.
type DisputeCandidate struct {
	EbcAddress                common.Address        `json:"ebcAddress"`
	RuleID                    string                `json:"ruleId"`
	SourceMaker               common.Address        `json:"sourceMaker"`
	SourceAddress             string                `json:"sourceAddress"`
	SourceTxTime              jsonapi.Uint64String  `json:"sourceTxTime"`
	SourceChainID             jsonapi.Uint64String  `json:"sourceChainId"`
	SourceTxBlockNum          jsonapi.Uint64String  `json:"sourceTxBlockNum"`
	SourceTxIndex             jsonapi.Uint64String  `json:"sourceTxIndex"`
	SourceTxHash              common.Hash           `json:"sourceTxHash"`
	FreezeToken               common.Address        `json:"freezeToken"`
	FreezeAmount1             jsonapi.Uint256String `json:"freezeAmount1"`
	MinChallengeDepositAmount jsonapi.Uint256String `json:"minChallengeDepositAmount"`
}

// NodeNumber is the ordering key of the challenge this candidate would open.
func (c *DisputeCandidate) NodeNumber() *big.Int {
	return encoding.NodeNumber(uint64(c.SourceTxTime), uint64(c.SourceChainID), uint64(c.SourceTxBlockNum), uint64(c.SourceTxIndex))
}

// ChallengerProof is the source-side proof material served to a challenger.
type ChallengerProof struct {
	Hash        common.Hash          `json:"hash"`
	Challenger  common.Address       `json:"challenger"`
	SourceTime  jsonapi.Uint64String `json:"sourceTime"`
	SourceMaker common.Address       `json:"sourceMaker"`
	RuleID      string               `json:"ruleId"`
	SpvAddress  common.Address       `json:"spvAddress"`
	EbcAddress  common.Address       `json:"ebcAddress"`
	SourceChain jsonapi.Uint64String `json:"sourceChain"`
	Proof       string               `json:"proof"`
	Status      jsonapi.Flag         `json:"status"`
}

// MakerProof is the destination-side proof material served to a maker.
type MakerProof struct {
	EbcAddress    common.Address       `json:"ebcAddress"`
	RuleID        string               `json:"ruleId"`
	SourceMaker   common.Address       `json:"sourceMaker"`
	SourceTime    jsonapi.Uint64String `json:"sourceTime"`
	SourceAddress jsonapi.BigString    `json:"sourceAddress"`
	SourceNonce   jsonapi.BigString    `json:"sourceNonce"`
	TargetNonce   jsonapi.BigString    `json:"targetNonce"`
	TargetChain   jsonapi.Uint64String `json:"targetChain"`
	TargetToken   jsonapi.BigString    `json:"targetToken"`
	SourceAmount  jsonapi.BigString    `json:"sourceAmount"`
	Challenger    common.Address       `json:"challenger"`
	SpvAddress    common.Address       `json:"spvAddress"`
	SourceChain   jsonapi.Uint64String `json:"sourceChain"`
	SourceID      common.Hash          `json:"sourceId"`
	Proof         string               `json:"proof"`
	Status        jsonapi.Flag         `json:"status"`
}

// ChainParameters holds the timing windows of one chain, in seconds.
type ChainParameters struct {
	ID                               jsonapi.Uint64String `json:"id"`
	NativeToken                      string               `json:"nativeToken"`
	MinVerifyChallengeSourceTxSecond jsonapi.Uint64String `json:"minVerifyChallengeSourceTxSecond"`
	MaxVerifyChallengeSourceTxSecond jsonapi.Uint64String `json:"maxVerifyChallengeSourceTxSecond"`
	MinVerifyChallengeDestTxSecond   jsonapi.Uint64String `json:"minVerifyChallengeDestTxSecond"`
	MaxVerifyChallengeDestTxSecond   jsonapi.Uint64String `json:"maxVerifyChallengeDestTxSecond"`
	BatchLimit                       jsonapi.Uint64String `json:"batchLimit"`
	EnableTimestamp                  jsonapi.Uint64String `json:"enableTimestamp"`
	Spvs                             []common.Address     `json:"spvs"`
}

// Rule is the two-way pricing rule of a route.
type Rule struct {
	Chain0                  jsonapi.BigString `json:"chain0"`
	Chain1                  jsonapi.BigString `json:"chain1"`
	Chain0Status            jsonapi.BigString `json:"chain0Status"`
	Chain1Status            jsonapi.BigString `json:"chain1Status"`
	Chain0Token             jsonapi.BigString `json:"chain0Token"`
	Chain1Token             jsonapi.BigString `json:"chain1Token"`
	Chain0MinPrice          jsonapi.BigString `json:"chain0minPrice"`
	Chain1MinPrice          jsonapi.BigString `json:"chain1minPrice"`
	Chain0MaxPrice          jsonapi.BigString `json:"chain0maxPrice"`
	Chain1MaxPrice          jsonapi.BigString `json:"chain1maxPrice"`
	Chain0WithholdingFee    jsonapi.BigString `json:"chain0WithholdingFee"`
	Chain1WithholdingFee    jsonapi.BigString `json:"chain1WithholdingFee"`
	Chain0TradeFee          jsonapi.BigString `json:"chain0TradeFee"`
	Chain1TradeFee          jsonapi.BigString `json:"chain1TradeFee"`
	Chain0ResponseTime      jsonapi.BigString `json:"chain0ResponseTime"`
	Chain1ResponseTime      jsonapi.BigString `json:"chain1ResponseTime"`
	Chain0CompensationRatio jsonapi.BigString `json:"chain0CompensationRatio"`
	Chain1CompensationRatio jsonapi.BigString `json:"chain1CompensationRatio"`
}

func (r *Rule) Valid() bool {
	return r != nil && r.Chain0.Sign() != 0
}

func (r *Rule) Key() (common.Hash, error) {
	return encoding.RuleKey(r.Chain0.Big(), r.Chain1.Big(), r.Chain0Token.Big(), r.Chain1Token.Big())
}

// RLPFields lists the rule in the order the contract decodes it.
func (r *Rule) RLPFields() []*big.Int {
	return []*big.Int{
		r.Chain0.Big(), r.Chain1.Big(),
		r.Chain0Status.Big(), r.Chain1Status.Big(),
		r.Chain0Token.Big(), r.Chain1Token.Big(),
		r.Chain0MinPrice.Big(), r.Chain1MinPrice.Big(),
		r.Chain0MaxPrice.Big(), r.Chain1MaxPrice.Big(),
		r.Chain0WithholdingFee.Big(), r.Chain1WithholdingFee.Big(),
		r.Chain0TradeFee.Big(), r.Chain1TradeFee.Big(),
		r.Chain0ResponseTime.Big(), r.Chain1ResponseTime.Big(),
		r.Chain0CompensationRatio.Big(), r.Chain1CompensationRatio.Big(),
	}
}

func (r *Rule) forward(source, dest uint64) bool {
	return r.Chain0.IsUint64() && r.Chain1.IsUint64() && r.Chain0.Uint64() == source && r.Chain1.Uint64() == dest
}

func (r *Rule) backward(source, dest uint64) bool {
	return r.Chain0.IsUint64() && r.Chain1.IsUint64() && r.Chain0.Uint64() == dest && r.Chain1.Uint64() == source
}

// ResponseTime returns the response bound for the source to dest direction.
func (r *Rule) ResponseTime(source, dest uint64) (*big.Int, bool) {
	switch {
	case r.forward(source, dest):
		return r.Chain0ResponseTime.Big(), true
	case r.backward(source, dest):
		return r.Chain1ResponseTime.Big(), true
	}
	return nil, false
}

// Oneway returns the source to dest half of the rule.
func (r *Rule) Oneway(source, dest uint64) (*encoding.RuleOneway, bool) {
	build := func(status, srcToken, dstToken, minPrice, maxPrice, fee, tradeFee, responseTime, ratio *jsonapi.BigString) *encoding.RuleOneway {
		return &encoding.RuleOneway{
			SourceChainId:     source,
			DestChainId:       dest,
			Status:            uint8(status.Uint64()),
			SourceToken:       srcToken.Big(),
			DestToken:         dstToken.Big(),
			MinPrice:          minPrice.Big(),
			MaxPrice:          maxPrice.Big(),
			WithholdingFee:    fee.Big(),
			TradingFee:        uint16(tradeFee.Uint64()),
			ResponseTime:      uint32(responseTime.Uint64()),
			CompensationRatio: uint32(ratio.Uint64()),
		}
	}
	switch {
	case r.forward(source, dest):
		return build(&r.Chain0Status, &r.Chain0Token, &r.Chain1Token, &r.Chain0MinPrice, &r.Chain0MaxPrice,
			&r.Chain0WithholdingFee, &r.Chain0TradeFee, &r.Chain0ResponseTime, &r.Chain0CompensationRatio), true
	case r.backward(source, dest):
		return build(&r.Chain1Status, &r.Chain1Token, &r.Chain0Token, &r.Chain1MinPrice, &r.Chain1MaxPrice,
			&r.Chain1WithholdingFee, &r.Chain1TradeFee, &r.Chain1ResponseTime, &r.Chain1CompensationRatio), true
	}
	return nil, false
}

// MDC is a maker deposit contract and its owner.
type MDC struct {
	ID    common.Address `json:"id"`
	Owner common.Address `json:"owner"`
}

// ColumnArray is the dealer/ebc/chain snapshot of an MDC at a point in time.
type ColumnArray struct {
	Dealers  []common.Address       `json:"dealers"`
	Ebcs     []common.Address       `json:"ebcs"`
	ChainIDs []jsonapi.Uint64String `json:"chainIds"`
}

func (c *ColumnArray) ChainIDList() []uint64 {
	ids := make([]uint64, len(c.ChainIDs))
	for i, id := range c.ChainIDs {
		ids[i] = uint64(id)
	}
	return ids
}

// VerifyPassChallenger is a challenge whose source proof has been accepted.
type VerifyPassChallenger struct {
	Challenger   common.Address
	SourceTxHash common.Hash
}

// OpenChallenge is an unsettled challenge against an owner's MDC.
type OpenChallenge struct {
	SourceChainID         uint64
	SourceTxHash          common.Hash
	SourceTxTime          uint64
	Challenger            common.Address
	FreezeToken           common.Address
	MDCAddress            common.Address
	Owner                 common.Address
	NodeNumber            *big.Int
	Status                Status
	VerifySourceTimestamp uint64
	VerifyDestTimestamp   uint64
}

// ExistingChallenge is the identity tuple of a challenge already on chain.
type ExistingChallenge struct {
	SourceTxTime     uint64
	SourceChainID    uint64
	SourceTxBlockNum uint64
	SourceTxIndex    uint64
	SourceTxHash     string
	RuleKey          string
	FreezeToken      string
}
