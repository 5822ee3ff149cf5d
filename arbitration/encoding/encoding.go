// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package encoding builds the byte-level inputs of the dispute contracts: rule
// keys, challenge ordering keys, proof side data and calldata.
package encoding

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// RuleKey identifies a route: keccak256(abi.encode(chain0, chain1, token0, token1)).
func RuleKey(chain0, chain1, token0, token1 *big.Int) (common.Hash, error) {
	packed, err := ruleKeyArguments.Pack(chain0, chain1, token0, token1)
	if err != nil {
		return common.Hash{}, fmt.Errorf("packing rule key: %w", err)
	}
	return crypto.Keccak256Hash(packed), nil
}

// NodeNumber is the ordering key of a challenge in the on-chain sorted list:
// the big-endian concatenation of four 8-byte words.
func NodeNumber(sourceTxTime, sourceChainID, sourceTxBlockNum, sourceTxIndex uint64) *big.Int {
	var buf [32]byte
	binary.BigEndian.PutUint64(buf[0:8], sourceTxTime)
	binary.BigEndian.PutUint64(buf[8:16], sourceChainID)
	binary.BigEndian.PutUint64(buf[16:24], sourceTxBlockNum)
	binary.BigEndian.PutUint64(buf[24:32], sourceTxIndex)
	return new(big.Int).SetBytes(buf[:])
}

// ResponseMakersRawData is abi.encode(uint256[]) of the responder set.
func ResponseMakersRawData(makers []*big.Int) ([]byte, error) {
	if makers == nil {
		makers = []*big.Int{}
	}
	return responseMakerArgument.Pack(makers)
}

func ResponseMakersHash(rawData []byte) common.Hash {
	return crypto.Keccak256Hash(rawData)
}

// ColumnRawData is abi.encode(address[] dealers, address[] ebcs, uint64[] chainIds, address ebc).
func ColumnRawData(dealers, ebcs []common.Address, chainIDs []uint64, ebc common.Address) ([]byte, error) {
	if dealers == nil {
		dealers = []common.Address{}
	}
	if ebcs == nil {
		ebcs = []common.Address{}
	}
	if chainIDs == nil {
		chainIDs = []uint64{}
	}
	return columnArguments.Pack(dealers, ebcs, chainIDs, ebc)
}

// RuleRLP encodes rule fields as an RLP list of minimal big-endian integers.
func RuleRLP(fields []*big.Int) ([]byte, error) {
	for i, f := range fields {
		if f == nil {
			fields[i] = new(big.Int)
		} else if f.Sign() < 0 {
			return nil, errors.New("negative rule field")
		}
	}
	return rlp.EncodeToBytes(fields)
}

// VerifiedSourceTxData is the maker's view of the disputed transfer. Field
// names follow the contract struct so it can be passed as the ABI tuple.
type VerifiedSourceTxData struct {
	MinChallengeSecond *big.Int
	MaxChallengeSecond *big.Int
	Nonce              *big.Int
	DestChainId        *big.Int
	From               *big.Int
	DestToken          *big.Int
	DestAmount         *big.Int
	ResponseMakersHash *big.Int
	ResponseTime       *big.Int
}

func (d *VerifiedSourceTxData) fields() []*big.Int {
	return []*big.Int{
		d.MinChallengeSecond,
		d.MaxChallengeSecond,
		d.Nonce,
		d.DestChainId,
		d.From,
		d.DestToken,
		d.DestAmount,
		d.ResponseMakersHash,
		d.ResponseTime,
	}
}

// Hash is keccak256 over the nine fields encoded as consecutive uint256 words.
func (d *VerifiedSourceTxData) Hash() (common.Hash, error) {
	buf := make([]byte, 0, 32*9)
	for _, f := range d.fields() {
		if f == nil || f.Sign() < 0 || f.BitLen() > 256 {
			return common.Hash{}, errors.New("verified data field out of uint256 range")
		}
		buf = append(buf, common.LeftPadBytes(f.Bytes(), 32)...)
	}
	return crypto.Keccak256Hash(buf), nil
}

// RuleOneway is one direction of a route, as consumed by the EBC contract.
type RuleOneway struct {
	SourceChainId     uint64
	DestChainId       uint64
	Status            uint8
	SourceToken       *big.Int
	DestToken         *big.Int
	MinPrice          *big.Int
	MaxPrice          *big.Int
	WithholdingFee    *big.Int
	TradingFee        uint16
	ResponseTime      uint32
	CompensationRatio uint32
}
