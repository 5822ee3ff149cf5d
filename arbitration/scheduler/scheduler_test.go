// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/offchainlabs/arbitration-client/arbitration"
	"github.com/offchainlabs/arbitration-client/arbitration/liveconfig"
	"github.com/offchainlabs/arbitration-client/arbitration/store"
	"github.com/offchainlabs/arbitration-client/util/clock"
)

type fakeEngine struct {
	records     *arbitration.RecordStore
	ineligible  map[common.Hash]bool
	opened      []common.Hash
	challenger  []arbitration.ChallengerProof
	maker       []arbitration.MakerProof
	liquidated  []common.Address
	liquidateFn func() error
}

func (f *fakeEngine) Eligible(_ context.Context, c *arbitration.DisputeCandidate) (bool, error) {
	return !f.ineligible[c.SourceTxHash], nil
}

func (f *fakeEngine) OpenDispute(_ context.Context, c *arbitration.DisputeCandidate) error {
	f.opened = append(f.opened, c.SourceTxHash)
	return nil
}

func (f *fakeEngine) SubmitChallengerProof(_ context.Context, p *arbitration.ChallengerProof) error {
	f.challenger = append(f.challenger, *p)
	return nil
}

func (f *fakeEngine) SubmitMakerProof(_ context.Context, p *arbitration.MakerProof) error {
	f.maker = append(f.maker, *p)
	return nil
}

func (f *fakeEngine) Liquidate(_ context.Context, owner common.Address) error {
	f.liquidated = append(f.liquidated, owner)
	if f.liquidateFn != nil {
		return f.liquidateFn()
	}
	return nil
}

func (f *fakeEngine) Records() *arbitration.RecordStore {
	return f.records
}

type window struct {
	start, end time.Time
}

type fakeCounterparty struct {
	candidates      []arbitration.DisputeCandidate
	candidatesErr   error
	windows         []window
	status          map[common.Hash]int
	statusCalls     int
	challengerProof map[common.Hash][]arbitration.ChallengerProof
	makerProof      map[common.Hash][]arbitration.MakerProof
	asked           []common.Hash
	version         string
	heartbeats      []string
}

func (f *fakeCounterparty) UnreimbursedTransactions(_ context.Context, start, end time.Time) ([]arbitration.DisputeCandidate, error) {
	f.windows = append(f.windows, window{start, end})
	return f.candidates, f.candidatesErr
}

func (f *fakeCounterparty) TransactionStatus(_ context.Context, hash common.Hash) (int, error) {
	f.statusCalls++
	return f.status[hash], nil
}

func (f *fakeCounterparty) ChallengerProofs(_ context.Context, hash common.Hash) ([]arbitration.ChallengerProof, error) {
	return f.challengerProof[hash], nil
}

func (f *fakeCounterparty) MakerProofs(_ context.Context, hash common.Hash) ([]arbitration.MakerProof, error) {
	return f.makerProof[hash], nil
}

func (f *fakeCounterparty) AskProof(_ context.Context, hash common.Hash) error {
	f.asked = append(f.asked, hash)
	return nil
}

func (f *fakeCounterparty) Version(context.Context) (string, error) {
	return f.version, nil
}

func (f *fakeCounterparty) Heartbeat(_ context.Context, url string) error {
	f.heartbeats = append(f.heartbeats, url)
	return nil
}

type fakeIndexer struct {
	passChallengers map[common.Address][]arbitration.VerifyPassChallenger
	verifySource    map[common.Address][]common.Hash
	open            map[common.Address][]arbitration.OpenChallenge
}

func (f *fakeIndexer) VerifyPassChallengers(_ context.Context, owner common.Address) ([]arbitration.VerifyPassChallenger, error) {
	return f.passChallengers[owner], nil
}

func (f *fakeIndexer) VerifySourceHashes(_ context.Context, owner common.Address) ([]common.Hash, error) {
	return f.verifySource[owner], nil
}

func (f *fakeIndexer) OpenChallenges(_ context.Context, owner common.Address) ([]arbitration.OpenChallenge, error) {
	return f.open[owner], nil
}

type recordingNotifier struct {
	texts []string
}

func (n *recordingNotifier) Notify(_ context.Context, text string) error {
	n.texts = append(n.texts, text)
	return nil
}

var (
	testMaker = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	hashA     = common.HexToHash("0xa1")
	hashB     = common.HexToHash("0xb2")
	hashC     = common.HexToHash("0xc3")
	hashD     = common.HexToHash("0xd4")
)

type harness struct {
	scheduler    *Scheduler
	engine       *fakeEngine
	counterparty *fakeCounterparty
	indexer      *fakeIndexer
	notifier     *recordingNotifier
	clock        *clock.ArtificialClock
	runtime      *liveconfig.Runtime
}

func newHarness(t *testing.T, config liveconfig.RuntimeConfig) *harness {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	runtime, err := liveconfig.Parse(&config)
	require.NoError(t, err)
	runtime.Signer = key
	h := &harness{
		engine:       &fakeEngine{records: arbitration.NewRecordStore(store.New(store.NewMemoryStorage())), ineligible: map[common.Hash]bool{}},
		counterparty: &fakeCounterparty{status: map[common.Hash]int{}, challengerProof: map[common.Hash][]arbitration.ChallengerProof{}, makerProof: map[common.Hash][]arbitration.MakerProof{}},
		indexer:      &fakeIndexer{passChallengers: map[common.Address][]arbitration.VerifyPassChallenger{}, verifySource: map[common.Address][]common.Hash{}, open: map[common.Address][]arbitration.OpenChallenge{}},
		notifier:     &recordingNotifier{},
		clock:        clock.NewArtificialClock(time.Unix(1_700_000_000, 0)),
		runtime:      runtime,
	}
	h.scheduler = New(&DefaultConfig, h.engine, h.counterparty, h.indexer, func() *liveconfig.Runtime { return h.runtime }, h.notifier, h.clock, "v2.3.0")
	return h
}

func (h *harness) put(t *testing.T, hash common.Hash, record *arbitration.DisputeRecord) {
	t.Helper()
	require.NoError(t, h.engine.records.Put(context.Background(), hash, record))
}

func TestRunExclusiveSkipsWhenHeld(t *testing.T) {
	h := newHarness(t, liveconfig.RuntimeConfig{})
	ctx := context.Background()
	var innerRan bool
	ran, err := h.scheduler.RunExclusive(ctx, func(ctx context.Context) error {
		innerRan, _ = h.scheduler.RunExclusive(ctx, func(context.Context) error { return nil })
		return errors.New("body error")
	})
	require.True(t, ran)
	require.EqualError(t, err, "body error")
	require.False(t, innerRan)

	ran, err = h.scheduler.RunExclusive(ctx, func(context.Context) error { return nil })
	require.True(t, ran)
	require.NoError(t, err)
}

func TestSyncProofsChallenger(t *testing.T) {
	h := newHarness(t, liveconfig.RuntimeConfig{})
	recorded := common.HexToAddress("0x0c")
	liquidation := common.HexToHash("0x99")
	h.put(t, hashA, &arbitration.DisputeRecord{Challenger: recorded, NeedsProof: true})
	h.put(t, hashB, &arbitration.DisputeRecord{NeedsProof: false})
	h.put(t, hashC, &arbitration.DisputeRecord{NeedsProof: true, CheckChallengeHash: &liquidation})
	h.counterparty.challengerProof[hashA] = []arbitration.ChallengerProof{
		{Proof: "0x01", Status: false},
		{Proof: "0x02", Status: true, Challenger: common.HexToAddress("0x0d")},
	}
	h.counterparty.challengerProof[hashB] = []arbitration.ChallengerProof{{Proof: "0x03", Status: true}}

	h.scheduler.syncProofs(context.Background())
	require.Len(t, h.engine.challenger, 1)
	submitted := h.engine.challenger[0]
	require.Equal(t, "0x02", submitted.Proof)
	require.Equal(t, hashA, submitted.Hash)
	require.Equal(t, recorded, submitted.Challenger)
	require.Empty(t, h.clock.Sleeps())
}

func TestSyncProofsMakerOnlyVerifiable(t *testing.T) {
	h := newHarness(t, liveconfig.RuntimeConfig{MakerList: []string{testMaker.Hex()}})
	for _, hash := range []common.Hash{hashA, hashB, hashC} {
		h.put(t, hash, &arbitration.DisputeRecord{NeedsProof: true})
		h.counterparty.makerProof[hash] = []arbitration.MakerProof{{Proof: "0x01", Status: true}}
	}
	h.indexer.verifySource[testMaker] = []common.Hash{hashA, hashC}

	h.scheduler.syncProofs(context.Background())
	require.Len(t, h.engine.maker, 2)
	require.Equal(t, hashA, h.engine.maker[0].SourceID)
	require.Equal(t, hashC, h.engine.maker[1].SourceID)
	require.Empty(t, h.engine.challenger)
	require.Equal(t, []time.Duration{3 * time.Second}, h.clock.Sleeps())
}

func TestPausedSkipsDiscoveryAndProofs(t *testing.T) {
	h := newHarness(t, liveconfig.RuntimeConfig{})
	h.put(t, hashA, &arbitration.DisputeRecord{NeedsProof: true})
	h.counterparty.challengerProof[hashA] = []arbitration.ChallengerProof{{Proof: "0x01", Status: true}}
	h.counterparty.version = "3.0.0"
	ctx := context.Background()

	h.scheduler.checkVersion(ctx)
	require.True(t, h.scheduler.Paused())
	h.scheduler.syncProofs(ctx)
	h.scheduler.discoverChallenges(ctx)
	require.Empty(t, h.engine.challenger)
	require.Empty(t, h.counterparty.windows)

	h.counterparty.version = "v2.9.1"
	h.scheduler.checkVersion(ctx)
	require.False(t, h.scheduler.Paused())
	h.scheduler.syncProofs(ctx)
	require.Len(t, h.engine.challenger, 1)
}

func TestVersionCheckIgnoresBadVersions(t *testing.T) {
	h := newHarness(t, liveconfig.RuntimeConfig{})
	h.counterparty.version = "not-a-version"
	h.scheduler.checkVersion(context.Background())
	require.False(t, h.scheduler.Paused())

	h.scheduler.version = "dev"
	h.counterparty.version = "9.0.0"
	h.scheduler.checkVersion(context.Background())
	require.False(t, h.scheduler.Paused())
}

func TestDiscoverChallenges(t *testing.T) {
	watched := common.HexToAddress("0x00000000000000000000000000000000000000e1")
	h := newHarness(t, liveconfig.RuntimeConfig{WatchWalletList: []string{watched.Hex()}})
	start := h.clock.Now()
	h.counterparty.candidates = []arbitration.DisputeCandidate{
		{SourceTxHash: hashA, SourceAddress: watched.Hex()},
		{SourceTxHash: hashB, SourceAddress: "0x00000000000000000000000000000000000000e2"},
		{SourceTxHash: hashC, SourceAddress: watched.Hex()},
		{SourceTxHash: hashD, SourceAddress: watched.Hex()},
		{SourceTxHash: common.HexToHash("0xe5"), SourceAddress: watched.Hex()},
	}
	h.engine.ineligible[hashC] = true
	h.put(t, hashD, &arbitration.DisputeRecord{})
	ctx := context.Background()

	h.clock.Add(30 * time.Second)
	h.scheduler.discoverChallenges(ctx)
	require.Equal(t, []common.Hash{hashA, common.HexToHash("0xe5")}, h.engine.opened)
	require.Equal(t, []time.Duration{3 * time.Second}, h.clock.Sleeps())
	require.Len(t, h.counterparty.windows, 1)
	require.Equal(t, start.Add(-time.Hour), h.counterparty.windows[0].start)
	firstEnd := h.counterparty.windows[0].end

	// A failed fetch keeps the window start in place.
	h.counterparty.candidatesErr = errors.New("unavailable")
	h.scheduler.discoverChallenges(ctx)
	h.scheduler.discoverChallenges(ctx)
	require.Len(t, h.counterparty.windows, 3)
	require.Equal(t, firstEnd.Add(-time.Hour), h.counterparty.windows[2].start)
}

func TestDiscoverChallengesNotForMakers(t *testing.T) {
	h := newHarness(t, liveconfig.RuntimeConfig{MakerList: []string{testMaker.Hex()}})
	h.scheduler.discoverChallenges(context.Background())
	require.Empty(t, h.counterparty.windows)

	h = newHarness(t, liveconfig.RuntimeConfig{})
	h.runtime.Signer = nil
	h.scheduler.discoverChallenges(context.Background())
	require.Empty(t, h.counterparty.windows)
}

func TestDiscoverMakerWork(t *testing.T) {
	h := newHarness(t, liveconfig.RuntimeConfig{MakerList: []string{testMaker.Hex()}})
	challenger := common.HexToAddress("0x0c")
	h.indexer.passChallengers[testMaker] = []arbitration.VerifyPassChallenger{
		{SourceTxHash: hashA, Challenger: challenger},
		{SourceTxHash: hashB, Challenger: challenger},
		{SourceTxHash: hashC, Challenger: challenger},
	}
	h.put(t, hashA, &arbitration.DisputeRecord{})
	h.counterparty.status[hashB] = 42
	h.counterparty.status[hashC] = StatusMakerResponded
	ctx := context.Background()

	h.scheduler.discoverMakerWork(ctx)
	require.Equal(t, []common.Hash{hashC}, h.counterparty.asked)
	record, err := h.engine.records.Get(ctx, hashC)
	require.NoError(t, err)
	require.True(t, record.NeedsProof)
	require.Equal(t, challenger, record.Challenger)
	missing, err := h.engine.records.Get(ctx, hashB)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestAuditReportsOnce(t *testing.T) {
	h := newHarness(t, liveconfig.RuntimeConfig{MakerList: []string{testMaker.Hex()}})
	h.indexer.open[testMaker] = []arbitration.OpenChallenge{
		{SourceTxHash: hashA, Status: arbitration.StatusCreate, Challenger: common.HexToAddress("0x01")},
		{SourceTxHash: hashA, Status: arbitration.StatusCreate, Challenger: common.HexToAddress("0x02")},
		{SourceTxHash: hashB, Status: arbitration.StatusVerifySource},
		{SourceTxHash: hashC, Status: arbitration.StatusCreate},
	}
	h.counterparty.status[hashA] = StatusMakerResponded
	h.counterparty.status[hashB] = StatusMakerResponded
	ctx := context.Background()

	h.scheduler.discoverMakerWork(ctx)
	require.Len(t, h.notifier.texts, 1)
	require.Contains(t, h.notifier.texts[0], hashA.Hex())
	require.Equal(t, 2, h.counterparty.statusCalls)

	h.scheduler.discoverMakerWork(ctx)
	require.Len(t, h.notifier.texts, 1)
}

func TestLiquidationTick(t *testing.T) {
	other := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	h := newHarness(t, liveconfig.RuntimeConfig{MakerList: []string{testMaker.Hex(), other.Hex()}})
	ctx := context.Background()

	interval, err := h.scheduler.liquidationTick(ctx)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig.LiquidationInterval, interval)
	require.Empty(t, h.engine.liquidated)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	h.runtime.Liquidator = key
	_, err = h.scheduler.liquidationTick(ctx)
	require.NoError(t, err)
	require.Equal(t, []common.Address{testMaker, other}, h.engine.liquidated)

	h.engine.liquidateFn = func() error { return &arbitration.LiquidationFailedError{SourceTxHash: hashA} }
	_, err = h.scheduler.liquidationTick(ctx)
	var failed *arbitration.LiquidationFailedError
	require.ErrorAs(t, err, &failed)

	// The lock is free again and the operator hears about the stop.
	ran, _ := h.scheduler.RunExclusive(ctx, func(context.Context) error { return nil })
	require.True(t, ran)
	h.scheduler.liquidationStopped(err)
	require.Len(t, h.notifier.texts, 1)
	require.Contains(t, h.notifier.texts[0], "Liquidation stopped")
}

func TestHeartbeat(t *testing.T) {
	h := newHarness(t, liveconfig.RuntimeConfig{})
	h.scheduler.heartbeat(context.Background())
	require.Empty(t, h.counterparty.heartbeats)

	h.runtime.Config.MonitorURL = "http://monitor/ping"
	h.scheduler.heartbeat(context.Background())
	require.Equal(t, []string{"http://monitor/ping"}, h.counterparty.heartbeats)
}

func TestSchedulerStartStop(t *testing.T) {
	h := newHarness(t, liveconfig.RuntimeConfig{})
	h.scheduler.Start(context.Background())
	h.scheduler.StopAndWait()
}
