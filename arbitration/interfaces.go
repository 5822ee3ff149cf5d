// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package arbitration

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Indexer answers the read-only queries the engine needs about on-chain state.
// Lookups that find nothing return a nil result and a nil error.
type Indexer interface {
	MDCs(ctx context.Context, maker common.Address) ([]MDC, error)
	ChainParameters(ctx context.Context, chainID uint64) (*ChainParameters, error)
	NextChallengeNodeNumber(ctx context.Context, mdc common.Address, nodeNumber *big.Int) (*big.Int, error)
	Rule(ctx context.Context, owner, ebc common.Address, ruleID string) (*Rule, error)
	ResponseMakers(ctx context.Context, mdc common.Address, sourceTime uint64) ([]*big.Int, error)
	ColumnArray(ctx context.Context, sourceTime uint64, mdc, owner common.Address) (*ColumnArray, error)
	VerifyPassChallengers(ctx context.Context, owner common.Address) ([]VerifyPassChallenger, error)
	VerifySourceHashes(ctx context.Context, owner common.Address) ([]common.Hash, error)
	OpenChallenges(ctx context.Context, owner common.Address) ([]OpenChallenge, error)
	ChallengesBySourceHash(ctx context.Context, hash common.Hash) ([]ExistingChallenge, error)
	VerifiedDataHashes(ctx context.Context, hash common.Hash) ([]common.Hash, error)
}

// ContractReader performs static calls and balance reads.
type ContractReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type TxRequest struct {
	To    common.Address
	Value *big.Int
	Data  []byte
	// Key overrides the default signing key when set.
	Key *ecdsa.PrivateKey
}

// Submitter signs and broadcasts transactions.
type Submitter interface {
	Send(ctx context.Context, req *TxRequest) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	DefaultAddress() (common.Address, error)
}

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Reporter tells the counterparty about stage transitions of a dispute.
type Reporter interface {
	ReportRecord(ctx context.Context, sourceTxHash common.Hash, record *DisputeRecord) error
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string) error { return nil }

type noopReporter struct{}

func (noopReporter) ReportRecord(context.Context, common.Hash, *DisputeRecord) error { return nil }
