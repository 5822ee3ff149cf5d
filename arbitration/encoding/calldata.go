// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package encoding

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type ChallengeArgs struct {
	SourceTxTime     uint64
	SourceChainID    uint64
	SourceTxBlockNum uint64
	SourceTxIndex    uint64
	SourceTxHash     common.Hash
	RuleKey          common.Hash
	FreezeToken      common.Address
	FreezeAmount     *big.Int
	ParentNodeNumber *big.Int
}

func PackChallenge(a *ChallengeArgs) ([]byte, error) {
	if a.SourceChainID > uint64(^uint32(0)) {
		return nil, fmt.Errorf("source chain id %d does not fit in uint32", a.SourceChainID)
	}
	parent := a.ParentNodeNumber
	if parent == nil {
		parent = new(big.Int)
	}
	return MDCABI.Pack("challenge",
		a.SourceTxTime,
		uint32(a.SourceChainID),
		a.SourceTxBlockNum,
		a.SourceTxIndex,
		a.SourceTxHash,
		a.RuleKey,
		a.FreezeToken,
		a.FreezeAmount,
		parent,
	)
}

func PackVerifyChallengeSource(challenger, spv common.Address, sourceChainID uint64, proof, rawDatas, rlpRule []byte) ([]byte, error) {
	return MDCABI.Pack("verifyChallengeSource", challenger, spv, sourceChainID, proof, rawDatas, rlpRule)
}

func PackVerifyChallengeDest(challenger, spv common.Address, sourceChainID uint64, sourceTxHash common.Hash, proof []byte, data *VerifiedSourceTxData, rawDatas []byte) ([]byte, error) {
	return MDCABI.Pack("verifyChallengeDest", challenger, spv, sourceChainID, sourceTxHash, proof, *data, rawDatas)
}

func PackCheckChallenge(sourceChainID uint64, sourceTxHash common.Hash, challengers []common.Address) ([]byte, error) {
	if len(challengers) == 0 {
		return nil, errors.New("no challengers to settle")
	}
	return MDCABI.Pack("checkChallenge", sourceChainID, sourceTxHash, challengers)
}

func PackGetResponseIntent(sourceAmount *big.Int, ro *RuleOneway) ([]byte, error) {
	return EBCABI.Pack("getResponseIntent", sourceAmount, *ro)
}

func UnpackGetResponseIntent(output []byte) (*big.Int, error) {
	values, err := EBCABI.Unpack("getResponseIntent", output)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("getResponseIntent returned %d values", len(values))
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, errors.New("getResponseIntent returned a non-integer")
	}
	return amount, nil
}

func PackBalanceOf(account common.Address) ([]byte, error) {
	return ERC20ABI.Pack("balanceOf", account)
}

func UnpackBalanceOf(output []byte) (*big.Int, error) {
	values, err := ERC20ABI.Unpack("balanceOf", output)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("balanceOf returned %d values", len(values))
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, errors.New("balanceOf returned a non-integer")
	}
	return amount, nil
}
