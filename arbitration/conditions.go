// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package arbitration

import (
	"strings"
)

// VerifyArbitrationConditions reports whether now lies inside the source-proof
// window of the candidate's chain.
func VerifyArbitrationConditions(params *ChainParameters, sourceTxTime, now uint64) bool {
	if params == nil {
		return false
	}
	earliest := sourceTxTime + uint64(params.MinVerifyChallengeSourceTxSecond)
	latest := sourceTxTime + uint64(params.MaxVerifyChallengeSourceTxSecond)
	return now >= earliest && now <= latest
}

type LiquidationAction uint8

const (
	ActionWait LiquidationAction = iota
	ActionLiquidate
)

type LiquidationReason uint8

const (
	ReasonNone LiquidationReason = iota
	ReasonMakerFailed
	ReasonMakerSucceeded
	ReasonChallengerDestRecorded
	ReasonChallengerTimedOut
)

func (r LiquidationReason) String() string {
	switch r {
	case ReasonMakerFailed:
		return "maker failed"
	case ReasonMakerSucceeded:
		return "maker succeeded"
	case ReasonChallengerDestRecorded:
		return "challenger failed (dest proof recorded)"
	case ReasonChallengerTimedOut:
		return "challenger failed (source proof timed out)"
	}
	return "none"
}

type LiquidationInput struct {
	Status                Status
	SourceTxTime          uint64
	VerifySourceTimestamp uint64
	VerifyDestTimestamp   uint64
	Params                *ChainParameters
	Now                   uint64
}

// DecideLiquidation maps the on-chain state of a challenge to an action.
func DecideLiquidation(in LiquidationInput) (LiquidationAction, LiquidationReason) {
	if in.Params == nil {
		return ActionWait, ReasonNone
	}
	switch in.Status {
	case StatusVerifySource:
		if in.Now > in.VerifySourceTimestamp+uint64(in.Params.MaxVerifyChallengeDestTxSecond) {
			return ActionLiquidate, ReasonMakerFailed
		}
	case StatusVerifyDest:
		return ActionLiquidate, ReasonMakerSucceeded
	case StatusCreate:
		if in.VerifyDestTimestamp != 0 {
			return ActionLiquidate, ReasonChallengerDestRecorded
		}
		if in.Now > in.SourceTxTime+uint64(in.Params.MaxVerifyChallengeSourceTxSecond) {
			return ActionLiquidate, ReasonChallengerTimedOut
		}
	}
	return ActionWait, ReasonNone
}

// Matches reports whether an on-chain challenge has the same identity as the
// one described by the candidate and rule key.
func (e *ExistingChallenge) Matches(c *DisputeCandidate, ruleKey string) bool {
	return e.SourceTxTime == uint64(c.SourceTxTime) &&
		e.SourceChainID == uint64(c.SourceChainID) &&
		e.SourceTxBlockNum == uint64(c.SourceTxBlockNum) &&
		e.SourceTxIndex == uint64(c.SourceTxIndex) &&
		strings.EqualFold(e.SourceTxHash, c.SourceTxHash.Hex()) &&
		strings.EqualFold(e.RuleKey, ruleKey) &&
		strings.EqualFold(e.FreezeToken, c.FreezeToken.Hex())
}
