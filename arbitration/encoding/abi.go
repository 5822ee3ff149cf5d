// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package encoding

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const mdcABIJSON = `[
{"type":"function","name":"challenge","stateMutability":"payable","outputs":[],"inputs":[
	{"name":"sourceTxTime","type":"uint64"},
	{"name":"sourceChainId","type":"uint32"},
	{"name":"sourceTxBlockNum","type":"uint64"},
	{"name":"sourceTxIndex","type":"uint64"},
	{"name":"sourceTxHash","type":"bytes32"},
	{"name":"ruleKey","type":"bytes32"},
	{"name":"freezeToken","type":"address"},
	{"name":"freezeAmount1","type":"uint256"},
	{"name":"parentNodeNumOfTargetNode","type":"uint256"}]},
{"type":"function","name":"verifyChallengeSource","stateMutability":"nonpayable","outputs":[],"inputs":[
	{"name":"challenger","type":"address"},
	{"name":"spvAddress","type":"address"},
	{"name":"sourceChainId","type":"uint64"},
	{"name":"proof","type":"bytes"},
	{"name":"rawDatas","type":"bytes"},
	{"name":"rlpRuleBytes","type":"bytes"}]},
{"type":"function","name":"verifyChallengeDest","stateMutability":"nonpayable","outputs":[],"inputs":[
	{"name":"challenger","type":"address"},
	{"name":"spvAddress","type":"address"},
	{"name":"sourceChainId","type":"uint64"},
	{"name":"sourceTxHash","type":"bytes32"},
	{"name":"proof","type":"bytes"},
	{"name":"verifiedSourceTxData","type":"tuple","components":[
		{"name":"minChallengeSecond","type":"uint256"},
		{"name":"maxChallengeSecond","type":"uint256"},
		{"name":"nonce","type":"uint256"},
		{"name":"destChainId","type":"uint256"},
		{"name":"from","type":"uint256"},
		{"name":"destToken","type":"uint256"},
		{"name":"destAmount","type":"uint256"},
		{"name":"responseMakersHash","type":"uint256"},
		{"name":"responseTime","type":"uint256"}]},
	{"name":"rawDatas","type":"bytes"}]},
{"type":"function","name":"checkChallenge","stateMutability":"nonpayable","outputs":[],"inputs":[
	{"name":"sourceChainId","type":"uint64"},
	{"name":"sourceTxHash","type":"bytes32"},
	{"name":"challengers","type":"address[]"}]}
]`

const ebcABIJSON = `[
{"type":"function","name":"getResponseIntent","stateMutability":"view","inputs":[
	{"name":"sourceAmount","type":"uint256"},
	{"name":"ro","type":"tuple","components":[
		{"name":"sourceChainId","type":"uint64"},
		{"name":"destChainId","type":"uint64"},
		{"name":"status","type":"uint8"},
		{"name":"sourceToken","type":"uint256"},
		{"name":"destToken","type":"uint256"},
		{"name":"minPrice","type":"uint128"},
		{"name":"maxPrice","type":"uint128"},
		{"name":"withholdingFee","type":"uint128"},
		{"name":"tradingFee","type":"uint16"},
		{"name":"responseTime","type":"uint32"},
		{"name":"compensationRatio","type":"uint32"}]}],
	"outputs":[{"name":"destAmount","type":"uint256"}]}
]`

const erc20ABIJSON = `[
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	MDCABI   = mustParseABI(mdcABIJSON)
	EBCABI   = mustParseABI(ebcABIJSON)
	ERC20ABI = mustParseABI(erc20ABIJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

var (
	uint256Type, _        = abi.NewType("uint256", "", nil)
	uint256SliceType, _   = abi.NewType("uint256[]", "", nil)
	uint64SliceType, _    = abi.NewType("uint64[]", "", nil)
	addressType, _        = abi.NewType("address", "", nil)
	addressSliceType, _   = abi.NewType("address[]", "", nil)
	ruleKeyArguments      = abi.Arguments{{Type: uint256Type}, {Type: uint256Type}, {Type: uint256Type}, {Type: uint256Type}}
	responseMakerArgument = abi.Arguments{{Type: uint256SliceType}}
	columnArguments       = abi.Arguments{{Type: addressSliceType}, {Type: addressSliceType}, {Type: uint64SliceType}, {Type: addressType}}
)
