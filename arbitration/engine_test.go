// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package arbitration

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/offchainlabs/arbitration-client/arbitration/encoding"
	"github.com/offchainlabs/arbitration-client/arbitration/store"
	"github.com/offchainlabs/arbitration-client/util/clock"
	"github.com/offchainlabs/arbitration-client/util/jsonapi"
)

var (
	testMaker      = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testMDC        = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	testOwner      = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	testEBC        = common.HexToAddress("0x00000000000000000000000000000000000000dd")
	testSpv        = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	testChallenger = common.HexToAddress("0x0000000000000000000000000000000000000c01")
	testSourceHash = common.HexToHash("0x5050000000000000000000000000000000000000000000000000000000000001")
	testRuleID     = "0xabc"
)

type fakeIndexer struct {
	mdcs           []MDC
	params         map[uint64]*ChainParameters
	rule           *Rule
	parent         *big.Int
	responseMakers []*big.Int
	columns        *ColumnArray
	open           map[common.Address][]OpenChallenge
	existing       []ExistingChallenge
	verified       []common.Hash
	err            error
}

func (f *fakeIndexer) MDCs(context.Context, common.Address) ([]MDC, error) { return f.mdcs, f.err }
func (f *fakeIndexer) ChainParameters(_ context.Context, chainID uint64) (*ChainParameters, error) {
	return f.params[chainID], f.err
}
func (f *fakeIndexer) NextChallengeNodeNumber(context.Context, common.Address, *big.Int) (*big.Int, error) {
	if f.parent == nil {
		return new(big.Int), f.err
	}
	return f.parent, f.err
}
func (f *fakeIndexer) Rule(context.Context, common.Address, common.Address, string) (*Rule, error) {
	return f.rule, f.err
}
func (f *fakeIndexer) ResponseMakers(context.Context, common.Address, uint64) ([]*big.Int, error) {
	return f.responseMakers, f.err
}
func (f *fakeIndexer) ColumnArray(context.Context, uint64, common.Address, common.Address) (*ColumnArray, error) {
	return f.columns, f.err
}
func (f *fakeIndexer) VerifyPassChallengers(context.Context, common.Address) ([]VerifyPassChallenger, error) {
	return nil, f.err
}
func (f *fakeIndexer) VerifySourceHashes(context.Context, common.Address) ([]common.Hash, error) {
	return nil, f.err
}
func (f *fakeIndexer) OpenChallenges(_ context.Context, owner common.Address) ([]OpenChallenge, error) {
	return append([]OpenChallenge(nil), f.open[owner]...), f.err
}
func (f *fakeIndexer) ChallengesBySourceHash(context.Context, common.Hash) ([]ExistingChallenge, error) {
	return f.existing, f.err
}
func (f *fakeIndexer) VerifiedDataHashes(context.Context, common.Hash) ([]common.Hash, error) {
	return f.verified, f.err
}

type fakeReader struct {
	balances map[common.Address]*big.Int
	intent   *big.Int
}

func word(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func (f *fakeReader) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if bytes.HasPrefix(msg.Data, encoding.ERC20ABI.Methods["balanceOf"].ID) {
		holder := common.BytesToAddress(msg.Data[4:36])
		if bal, ok := f.balances[holder]; ok {
			return word(bal), nil
		}
		return word(new(big.Int)), nil
	}
	if f.intent == nil {
		return word(new(big.Int)), nil
	}
	return word(f.intent), nil
}

func (f *fakeReader) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	if bal, ok := f.balances[account]; ok {
		return bal, nil
	}
	return new(big.Int), nil
}

type fakeSubmitter struct {
	mu       sync.Mutex
	sent     []*TxRequest
	sendErr  error
	status   uint64
	address  common.Address
	receipts int
}

func (f *fakeSubmitter) Send(_ context.Context, req *TxRequest) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}
	f.sent = append(f.sent, req)
	return common.BigToHash(big.NewInt(int64(0x1000 + len(f.sent)))), nil
}

func (f *fakeSubmitter) WaitForReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts++
	return &types.Receipt{TxHash: hash, Status: f.status, BlockNumber: big.NewInt(7)}, nil
}

func (f *fakeSubmitter) DefaultAddress() (common.Address, error) {
	if f.address == (common.Address{}) {
		return common.Address{}, ErrNoSigningKey
	}
	return f.address, nil
}

type recordingNotifier struct {
	texts []string
}

func (n *recordingNotifier) Notify(_ context.Context, text string) error {
	n.texts = append(n.texts, text)
	return nil
}

type recordingReporter struct {
	reported []common.Hash
}

func (r *recordingReporter) ReportRecord(_ context.Context, hash common.Hash, _ *DisputeRecord) error {
	r.reported = append(r.reported, hash)
	return nil
}

func testParams() *ChainParameters {
	return &ChainParameters{
		ID:                               1,
		MinVerifyChallengeSourceTxSecond: 50,
		MaxVerifyChallengeSourceTxSecond: 500,
		MinVerifyChallengeDestTxSecond:   60,
		MaxVerifyChallengeDestTxSecond:   600,
	}
}

func bs(v int64) jsonapi.BigString {
	return jsonapi.NewBigString(big.NewInt(v))
}

func testRule() *Rule {
	return &Rule{
		Chain0:                  bs(1),
		Chain1:                  bs(10),
		Chain0Status:            bs(1),
		Chain1Status:            bs(1),
		Chain0Token:             bs(0),
		Chain1Token:             bs(0),
		Chain0MinPrice:          bs(1),
		Chain1MinPrice:          bs(1),
		Chain0MaxPrice:          bs(1000000),
		Chain1MaxPrice:          bs(1000000),
		Chain0WithholdingFee:    bs(5),
		Chain1WithholdingFee:    bs(5),
		Chain0TradeFee:          bs(1),
		Chain1TradeFee:          bs(1),
		Chain0ResponseTime:      bs(3600),
		Chain1ResponseTime:      bs(1800),
		Chain0CompensationRatio: bs(10),
		Chain1CompensationRatio: bs(10),
	}
}

func testCandidate() *DisputeCandidate {
	return &DisputeCandidate{
		EbcAddress:                testEBC,
		RuleID:                    testRuleID,
		SourceMaker:               testMaker,
		SourceTxTime:              1000,
		SourceChainID:             1,
		SourceTxBlockNum:          77,
		SourceTxIndex:             3,
		SourceTxHash:              testSourceHash,
		FreezeAmount1:             jsonapi.Uint256String{Int: *uint256.NewInt(100)},
		MinChallengeDepositAmount: jsonapi.Uint256String{Int: *uint256.NewInt(7)},
	}
}

type engineHarness struct {
	engine    *Engine
	indexer   *fakeIndexer
	reader    *fakeReader
	submitter *fakeSubmitter
	notifier  *recordingNotifier
	reporter  *recordingReporter
	clock     *clock.ArtificialClock
	records   *RecordStore
	liqKey    *ecdsa.PrivateKey
}

func newEngineHarness(t *testing.T) *engineHarness {
	t.Helper()
	liqKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	h := &engineHarness{
		indexer: &fakeIndexer{
			mdcs:   []MDC{{ID: testMDC, Owner: testOwner}},
			params: map[uint64]*ChainParameters{1: testParams()},
			rule:   testRule(),
			parent: big.NewInt(42),
			open:   make(map[common.Address][]OpenChallenge),
		},
		reader:    &fakeReader{balances: map[common.Address]*big.Int{testMDC: big.NewInt(1000)}},
		submitter: &fakeSubmitter{address: testChallenger, status: types.ReceiptStatusSuccessful},
		notifier:  &recordingNotifier{},
		reporter:  &recordingReporter{},
		clock:     clock.NewArtificialClock(time.Unix(1300, 0)),
		records:   NewRecordStore(store.New(store.NewMemoryStorage())),
		liqKey:    liqKey,
	}
	h.engine = NewEngine(&DefaultEngineConfig, h.indexer, h.reader, h.submitter, h.records,
		WithClock(h.clock),
		WithNotifier(h.notifier),
		WithReporter(h.reporter),
		WithLiquidatorKey(func() *ecdsa.PrivateKey { return h.liqKey }),
	)
	return h
}

func (h *engineHarness) record(t *testing.T, hash common.Hash) *DisputeRecord {
	t.Helper()
	record, err := h.records.Get(context.Background(), hash)
	require.NoError(t, err)
	return record
}

func TestOpenDisputeNativeToken(t *testing.T) {
	h := newEngineHarness(t)
	require.NoError(t, h.engine.OpenDispute(context.Background(), testCandidate()))

	require.Len(t, h.submitter.sent, 1)
	sent := h.submitter.sent[0]
	require.Equal(t, testMDC, sent.To)
	require.Nil(t, sent.Key)
	// Twice the freeze amount plus the minimum deposit.
	require.Equal(t, big.NewInt(207), sent.Value)
	require.Equal(t, encoding.MDCABI.Methods["challenge"].ID, sent.Data[:4])

	record := h.record(t, testSourceHash)
	require.NotNil(t, record)
	require.True(t, record.NeedsProof)
	require.Equal(t, testChallenger, record.Challenger)
	require.Equal(t, uint64(1), record.FromChainID)
	require.NotNil(t, record.SubmitSourceTxHash)
	require.Equal(t, []common.Hash{testSourceHash}, h.reporter.reported)
	require.Equal(t, 1, h.submitter.receipts)
}

func TestOpenDisputeERC20SendsNoValue(t *testing.T) {
	h := newEngineHarness(t)
	token := common.HexToAddress("0x0000000000000000000000000000000000007070")
	candidate := testCandidate()
	candidate.FreezeToken = token
	require.NoError(t, h.engine.OpenDispute(context.Background(), candidate))
	require.Len(t, h.submitter.sent, 1)
	require.Zero(t, h.submitter.sent[0].Value.Sign())
}

func TestOpenDisputeOutsideWindow(t *testing.T) {
	h := newEngineHarness(t)
	h.clock.Set(time.Unix(1600, 0))
	err := h.engine.OpenDispute(context.Background(), testCandidate())
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	require.Empty(t, h.submitter.sent)
	require.Nil(t, h.record(t, testSourceHash))
}

func TestOpenDisputeDuplicateOnChain(t *testing.T) {
	h := newEngineHarness(t)
	ruleKey, err := testRule().Key()
	require.NoError(t, err)
	h.indexer.existing = []ExistingChallenge{{
		SourceTxTime:     1000,
		SourceChainID:    1,
		SourceTxBlockNum: 77,
		SourceTxIndex:    3,
		SourceTxHash:     testSourceHash.Hex(),
		RuleKey:          ruleKey.Hex(),
		FreezeToken:      common.Address{}.Hex(),
	}}
	ctx := context.Background()

	err = h.engine.OpenDispute(ctx, testCandidate())
	var duplicate *DuplicateError
	require.ErrorAs(t, err, &duplicate)
	require.Empty(t, h.submitter.sent)
	record := h.record(t, testSourceHash)
	require.NotNil(t, record)
	require.True(t, record.AlreadyExists)
	require.True(t, record.Terminal())

	// The cache answers before the record store is consulted.
	require.NoError(t, h.records.Delete(ctx, testSourceHash))
	err = h.engine.OpenDispute(ctx, testCandidate())
	require.ErrorAs(t, err, &duplicate)
	require.Nil(t, h.record(t, testSourceHash))
}

func TestOpenDisputeSubmissionErrorIsRetried(t *testing.T) {
	h := newEngineHarness(t)
	h.submitter.sendErr = &SubmissionError{Err: errors.New("nonce too low")}
	ctx := context.Background()

	err := h.engine.OpenDispute(ctx, testCandidate())
	require.True(t, IsRetryable(err))
	require.Nil(t, h.record(t, testSourceHash))

	h.submitter.sendErr = nil
	require.NoError(t, h.engine.OpenDispute(ctx, testCandidate()))
	require.Len(t, h.submitter.sent, 1)
}

func TestOpenDisputeInsufficientFrozenBalance(t *testing.T) {
	h := newEngineHarness(t)
	h.reader.balances[testMDC] = big.NewInt(199)
	ctx := context.Background()

	err := h.engine.OpenDispute(ctx, testCandidate())
	var balance *InsufficientBalanceError
	require.ErrorAs(t, err, &balance)
	require.Contains(t, err.Error(), "need 200")
	require.True(t, IsRetryable(err))
	require.True(t, IsAlertWorthy(err))
	require.Empty(t, h.submitter.sent)
	require.Nil(t, h.record(t, testSourceHash))

	h.reader.balances[testMDC] = big.NewInt(10000)
	require.NoError(t, h.engine.OpenDispute(ctx, testCandidate()))
	require.Len(t, h.submitter.sent, 1)
	record := h.record(t, testSourceHash)
	require.NotNil(t, record)
	require.True(t, record.NeedsProof)
	require.Empty(t, record.Message)
}

func TestOpenDisputeSkipsExistingRecord(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()
	require.NoError(t, h.records.Put(ctx, testSourceHash, &DisputeRecord{NeedsProof: true}))
	require.NoError(t, h.engine.OpenDispute(ctx, testCandidate()))
	require.Empty(t, h.submitter.sent)
}

func TestOpenDisputeWithoutKey(t *testing.T) {
	h := newEngineHarness(t)
	h.submitter.address = common.Address{}
	err := h.engine.OpenDispute(context.Background(), testCandidate())
	var config *ConfigurationError
	require.ErrorAs(t, err, &config)
	require.ErrorIs(t, err, ErrNoSigningKey)
}

func testChallengerProof() *ChallengerProof {
	return &ChallengerProof{
		Hash:        testSourceHash,
		Challenger:  common.HexToAddress("0x0000000000000000000000000000000000000c99"),
		SourceTime:  1000,
		SourceMaker: testMaker,
		RuleID:      testRuleID,
		SpvAddress:  testSpv,
		EbcAddress:  testEBC,
		SourceChain: 1,
		Proof:       "0x0102",
	}
}

func TestSubmitChallengerProof(t *testing.T) {
	h := newEngineHarness(t)
	h.indexer.columns = &ColumnArray{
		Dealers:  []common.Address{testMaker},
		Ebcs:     []common.Address{testEBC},
		ChainIDs: []jsonapi.Uint64String{1, 10},
	}
	ctx := context.Background()
	require.NoError(t, h.records.Put(ctx, testSourceHash, &DisputeRecord{Challenger: testChallenger, NeedsProof: true, Message: "old"}))

	require.NoError(t, h.engine.SubmitChallengerProof(ctx, testChallengerProof()))
	require.Len(t, h.submitter.sent, 1)
	require.Equal(t, encoding.MDCABI.Methods["verifyChallengeSource"].ID, h.submitter.sent[0].Data[:4])
	// The recorded challenger wins over the one in the proof material.
	args, err := encoding.MDCABI.Methods["verifyChallengeSource"].Inputs.Unpack(h.submitter.sent[0].Data[4:])
	require.NoError(t, err)
	require.Equal(t, testChallenger, args[0])

	record := h.record(t, testSourceHash)
	require.False(t, record.NeedsProof)
	require.Empty(t, record.Message)
	require.NotNil(t, record.VerifyChallengeSourceHash)
}

func TestSubmitChallengerProofEmptyIsSkipped(t *testing.T) {
	h := newEngineHarness(t)
	proof := testChallengerProof()
	proof.Proof = ""
	require.NoError(t, h.engine.SubmitChallengerProof(context.Background(), proof))
	require.Empty(t, h.submitter.sent)
}

func TestSubmitChallengerProofWithoutColumns(t *testing.T) {
	h := newEngineHarness(t)
	err := h.engine.SubmitChallengerProof(context.Background(), testChallengerProof())
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	require.Empty(t, h.submitter.sent)
}

func testMakerProof() *MakerProof {
	return &MakerProof{
		EbcAddress:    testEBC,
		RuleID:        testRuleID,
		SourceMaker:   testMaker,
		SourceTime:    1000,
		SourceAddress: bs(0x1234),
		SourceNonce:   bs(9),
		TargetNonce:   bs(4),
		TargetChain:   10,
		TargetToken:   bs(0),
		SourceAmount:  bs(1000),
		Challenger:    testChallenger,
		SpvAddress:    testSpv,
		SourceChain:   1,
		SourceID:      testSourceHash,
		Proof:         "0xbeef",
	}
}

// expectedVerifiedHash recomputes the hash the contract stores for testMakerProof.
func expectedVerifiedHash(t *testing.T, h *engineHarness) common.Hash {
	t.Helper()
	raw, err := encoding.ResponseMakersRawData(h.indexer.responseMakers)
	require.NoError(t, err)
	data := &encoding.VerifiedSourceTxData{
		MinChallengeSecond: big.NewInt(50),
		MaxChallengeSecond: big.NewInt(500),
		Nonce:              big.NewInt(9),
		DestChainId:        big.NewInt(10),
		From:               big.NewInt(0x1234),
		DestToken:          big.NewInt(0),
		DestAmount:         h.reader.intent,
		ResponseMakersHash: encoding.ResponseMakersHash(raw).Big(),
		ResponseTime:       big.NewInt(3600),
	}
	hash, err := data.Hash()
	require.NoError(t, err)
	return hash
}

func TestSubmitMakerProof(t *testing.T) {
	h := newEngineHarness(t)
	h.indexer.responseMakers = []*big.Int{testMaker.Big()}
	h.reader.intent = big.NewInt(990)
	h.indexer.verified = []common.Hash{{0x01}, expectedVerifiedHash(t, h)}
	ctx := context.Background()

	require.NoError(t, h.engine.SubmitMakerProof(ctx, testMakerProof()))
	require.Len(t, h.submitter.sent, 1)
	require.Equal(t, encoding.MDCABI.Methods["verifyChallengeDest"].ID, h.submitter.sent[0].Data[:4])
	record := h.record(t, testSourceHash)
	require.NotNil(t, record.VerifyChallengeDestHash)
	require.False(t, record.NeedsProof)
	require.Equal(t, testChallenger, record.Challenger)
}

func TestSubmitMakerProofHashMismatch(t *testing.T) {
	h := newEngineHarness(t)
	h.indexer.responseMakers = []*big.Int{testMaker.Big()}
	h.reader.intent = big.NewInt(990)
	h.indexer.verified = []common.Hash{{0x01}}
	ctx := context.Background()
	require.NoError(t, h.records.Put(ctx, testSourceHash, &DisputeRecord{Challenger: testChallenger, NeedsProof: true}))

	err := h.engine.SubmitMakerProof(ctx, testMakerProof())
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	require.Empty(t, h.submitter.sent)
	record := h.record(t, testSourceHash)
	require.True(t, record.NeedsProof)
	require.Contains(t, record.Message, "not recorded on chain")
}

func TestSubmitMakerProofZeroIntent(t *testing.T) {
	h := newEngineHarness(t)
	err := h.engine.SubmitMakerProof(context.Background(), testMakerProof())
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	require.Empty(t, h.submitter.sent)
}

func openChallenge(challenger common.Address, node int64, status Status) OpenChallenge {
	return OpenChallenge{
		SourceChainID:         1,
		SourceTxHash:          testSourceHash,
		SourceTxTime:          1000,
		Challenger:            challenger,
		MDCAddress:            testMDC,
		Owner:                 testOwner,
		NodeNumber:            big.NewInt(node),
		Status:                status,
		VerifySourceTimestamp: 1100,
	}
}

func TestLiquidateMakerFailed(t *testing.T) {
	h := newEngineHarness(t)
	other := common.HexToAddress("0x0000000000000000000000000000000000000c02")
	later := openChallenge(testChallenger, 9, StatusVerifySource)
	later.SourceTxHash = common.HexToHash("0x99")
	h.indexer.open[testOwner] = []OpenChallenge{
		later,
		openChallenge(other, 5, StatusVerifySource),
		openChallenge(testChallenger, 5, StatusVerifySource),
		openChallenge(other, 6, StatusVerifySource),
	}
	ctx := context.Background()

	// 1100 + 600 is the deadline.
	h.clock.Set(time.Unix(1700, 0))
	require.NoError(t, h.engine.Liquidate(ctx, testOwner))
	require.Empty(t, h.submitter.sent)

	h.clock.Set(time.Unix(1701, 0))
	require.NoError(t, h.engine.Liquidate(ctx, testOwner))
	require.Len(t, h.submitter.sent, 1)
	sent := h.submitter.sent[0]
	require.Equal(t, h.liqKey, sent.Key)
	require.Equal(t, testMDC, sent.To)
	args, err := encoding.MDCABI.Methods["checkChallenge"].Inputs.Unpack(sent.Data[4:])
	require.NoError(t, err)
	require.Equal(t, []common.Address{other, testChallenger}, args[2])

	record := h.record(t, testSourceHash)
	require.NotNil(t, record.CheckChallengeHash)
	require.True(t, record.Terminal())

	// Already recorded liquidations are not sent again.
	require.NoError(t, h.engine.Liquidate(ctx, testOwner))
	require.Len(t, h.submitter.sent, 1)
}

func TestLiquidateReverted(t *testing.T) {
	h := newEngineHarness(t)
	h.submitter.status = types.ReceiptStatusFailed
	h.indexer.open[testOwner] = []OpenChallenge{openChallenge(testChallenger, 1, StatusVerifyDest)}

	err := h.engine.Liquidate(context.Background(), testOwner)
	var failed *LiquidationFailedError
	require.ErrorAs(t, err, &failed)
	require.Equal(t, testSourceHash, failed.SourceTxHash)
	require.True(t, IsAlertWorthy(err))
	require.Len(t, h.notifier.texts, 1)
}

func TestLiquidateWithoutKey(t *testing.T) {
	h := newEngineHarness(t)
	h.liqKey = nil
	err := h.engine.Liquidate(context.Background(), testOwner)
	require.ErrorIs(t, err, ErrNoLiquidatorKey)
}

func TestLiquidateDefersWithoutParameters(t *testing.T) {
	h := newEngineHarness(t)
	challenge := openChallenge(testChallenger, 1, StatusVerifyDest)
	challenge.SourceChainID = 5
	h.indexer.open[testOwner] = []OpenChallenge{challenge}
	require.NoError(t, h.engine.Liquidate(context.Background(), testOwner))
	require.Empty(t, h.submitter.sent)
}

func TestLiquidateByHash(t *testing.T) {
	h := newEngineHarness(t)
	otherOwner := common.HexToAddress("0x0000000000000000000000000000000000000c0c")
	h.indexer.open[otherOwner] = []OpenChallenge{openChallenge(testChallenger, 1, StatusCreate)}
	ctx := context.Background()

	_, err := h.engine.LiquidateByHash(ctx, []common.Address{testOwner}, testSourceHash)
	require.ErrorIs(t, err, ErrNotPendingLiquidate)

	txHash, err := h.engine.LiquidateByHash(ctx, []common.Address{testOwner, otherOwner}, testSourceHash)
	require.NoError(t, err)
	require.Len(t, h.submitter.sent, 1)
	require.Zero(t, h.submitter.receipts)

	again, err := h.engine.LiquidateByHash(ctx, []common.Address{otherOwner}, testSourceHash)
	require.NoError(t, err)
	require.Equal(t, txHash, again)
	require.Len(t, h.submitter.sent, 1)
}

func TestRetryProof(t *testing.T) {
	h := newEngineHarness(t)
	ctx := context.Background()

	_, err := h.engine.RetryProof(ctx, testSourceHash, nil)
	require.ErrorIs(t, err, ErrRecordNotFound)

	remote := &DisputeRecord{Challenger: testChallenger, AlreadyExists: true, Message: "stale"}
	record, err := h.engine.RetryProof(ctx, testSourceHash, func(context.Context) (*DisputeRecord, error) { return remote, nil })
	require.NoError(t, err)
	require.True(t, record.NeedsProof)

	stored := h.record(t, testSourceHash)
	require.True(t, stored.NeedsProof)
	require.False(t, stored.AlreadyExists)
	require.Empty(t, stored.Message)
	require.Equal(t, testChallenger, stored.Challenger)

	liquidated := common.HexToHash("0x77")
	require.NoError(t, h.records.Update(ctx, testSourceHash, func(r *DisputeRecord) { r.CheckChallengeHash = &liquidated }))
	_, err = h.engine.RetryProof(ctx, testSourceHash, nil)
	require.ErrorContains(t, err, "already liquidated")
}
