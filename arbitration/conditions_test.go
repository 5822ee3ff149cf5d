// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package arbitration

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func testConditionParams() *ChainParameters {
	return &ChainParameters{
		ID:                               5,
		MinVerifyChallengeSourceTxSecond: 50,
		MaxVerifyChallengeSourceTxSecond: 500,
		MinVerifyChallengeDestTxSecond:   100,
		MaxVerifyChallengeDestTxSecond:   1000,
	}
}

func TestVerifyArbitrationConditions(t *testing.T) {
	params := testConditionParams()
	require.True(t, VerifyArbitrationConditions(params, 1000, 1300))
	require.False(t, VerifyArbitrationConditions(params, 1000, 1600))
	require.False(t, VerifyArbitrationConditions(params, 1000, 1049))
	require.True(t, VerifyArbitrationConditions(params, 1000, 1050))
	require.True(t, VerifyArbitrationConditions(params, 1000, 1500))
	require.False(t, VerifyArbitrationConditions(nil, 1000, 1300))
}

func TestDecideLiquidation(t *testing.T) {
	params := testConditionParams()
	cases := []struct {
		name   string
		input  LiquidationInput
		action LiquidationAction
		reason LiquidationReason
	}{
		{"maker within window", LiquidationInput{Status: StatusVerifySource, VerifySourceTimestamp: 2000, Now: 3000}, ActionWait, ReasonNone},
		{"maker failed", LiquidationInput{Status: StatusVerifySource, VerifySourceTimestamp: 2000, Now: 3001}, ActionLiquidate, ReasonMakerFailed},
		{"maker succeeded", LiquidationInput{Status: StatusVerifyDest, Now: 0}, ActionLiquidate, ReasonMakerSucceeded},
		{"dest recorded while create", LiquidationInput{Status: StatusCreate, SourceTxTime: 1000, VerifyDestTimestamp: 1200, Now: 1100}, ActionLiquidate, ReasonChallengerDestRecorded},
		{"challenger timed out", LiquidationInput{Status: StatusCreate, SourceTxTime: 1000, Now: 1501}, ActionLiquidate, ReasonChallengerTimedOut},
		{"challenger within window", LiquidationInput{Status: StatusCreate, SourceTxTime: 1000, Now: 1500}, ActionWait, ReasonNone},
		{"unknown status", LiquidationInput{Status: StatusUnknown, SourceTxTime: 1000, Now: 999999}, ActionWait, ReasonNone},
		{"already liquidated", LiquidationInput{Status: StatusLiquidation, Now: 999999}, ActionWait, ReasonNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.input.Params = params
			action, reason := DecideLiquidation(tc.input)
			require.Equal(t, tc.action, action)
			require.Equal(t, tc.reason, reason)
		})
	}
	action, _ := DecideLiquidation(LiquidationInput{Status: StatusVerifyDest})
	require.Equal(t, ActionWait, action)
}

func TestExistingChallengeMatches(t *testing.T) {
	candidate := &DisputeCandidate{
		SourceTxTime:     1000,
		SourceChainID:    5,
		SourceTxBlockNum: 77,
		SourceTxIndex:    5,
		SourceTxHash:     common.HexToHash("0xabcdef"),
		FreezeToken:      common.HexToAddress("0x00000000000000000000000000000000000000aa"),
	}
	ruleKey := common.HexToHash("0x1234").Hex()
	existing := ExistingChallenge{
		SourceTxTime:     1000,
		SourceChainID:    5,
		SourceTxBlockNum: 77,
		SourceTxIndex:    5,
		SourceTxHash:     "0x0000000000000000000000000000000000000000000000000000000000ABCDEF",
		RuleKey:          ruleKey,
		FreezeToken:      "0x00000000000000000000000000000000000000AA",
	}
	require.True(t, existing.Matches(candidate, ruleKey))

	other := existing
	other.SourceTxIndex = 6
	require.False(t, other.Matches(candidate, ruleKey))

	other = existing
	other.RuleKey = common.HexToHash("0x9999").Hex()
	require.False(t, other.Matches(candidate, ruleKey))

	other = existing
	other.FreezeToken = "0x0000000000000000000000000000000000000000"
	require.False(t, other.Matches(candidate, ruleKey))

	sixth := *candidate
	sixth.SourceTxIndex = 6
	require.NotEqual(t, candidate.NodeNumber(), sixth.NodeNumber())
}

func TestErrorClassification(t *testing.T) {
	require.True(t, IsRetryable(&SubmissionError{Err: ErrNoSigningKey}))
	require.True(t, IsRetryable(&ConfigurationError{Err: ErrNoSigningKey}))
	require.False(t, IsRetryable(&ValidationError{Reason: "bad"}))
	require.False(t, IsRetryable(&DuplicateError{}))
	require.True(t, IsAlertWorthy(&InsufficientBalanceError{}))
	require.True(t, IsAlertWorthy(&LiquidationFailedError{}))
	require.False(t, IsAlertWorthy(&DuplicateError{}))
	require.ErrorIs(t, &ConfigurationError{Err: ErrNoLiquidatorKey}, ErrNoLiquidatorKey)
}
