// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package main

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/offchainlabs/arbitration-client/arbitration/liveconfig"
	"github.com/offchainlabs/arbitration-client/arbitration/store"
	"github.com/offchainlabs/arbitration-client/cmd/genericconf"
	"github.com/offchainlabs/arbitration-client/cmd/util/confighelpers"
)

func TestParseClientDefaults(t *testing.T) {
	config, err := ParseClient([]string{"--file-logging.enable=false"})
	require.NoError(t, err)
	require.Equal(t, 40*time.Second, config.Scheduler.ProofSyncInterval)
	require.Equal(t, 3000, config.Server.HTTP.Port)
	require.Equal(t, []uint{1, 11155111}, config.Server.AllowedChainIDs)
	require.Equal(t, "json", config.Store.Backend)
	require.False(t, config.Metrics)
}

func TestParseClientLayers(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.json")
	jsonConfig := `{"runtime":{"rpc":"https://file.example","maker-list":["0x00000000000000000000000000000000000000aa"]},"scheduler":{"item-pause":"1s"}}`
	require.NoError(t, os.WriteFile(configFile, []byte(jsonConfig), 0600))

	args := strings.Split("--file-logging.enable=false --runtime.rpc https://flag.example --store.backend memory", " ")
	args = append(args, "--conf.file", configFile)
	config, err := ParseClient(args)
	require.NoError(t, err)
	require.Equal(t, "https://flag.example", config.Runtime.RPC)
	require.Equal(t, []string{"0x00000000000000000000000000000000000000aa"}, config.Runtime.MakerList)
	require.Equal(t, time.Second, config.Scheduler.ItemPause)
	require.Equal(t, "memory", config.Store.Backend)
}

func TestParseClientRejects(t *testing.T) {
	_, err := ParseClient([]string{"--store.backend", "sqlite"})
	require.Error(t, err)
	_, err = ParseClient([]string{"--log-level", "loud"})
	require.Error(t, err)
	_, err = ParseClient([]string{"--version"})
	require.ErrorIs(t, err, confighelpers.ErrVersion)
}

func TestCanReload(t *testing.T) {
	config := ClientConfigDefault
	require.NoError(t, config.CanReload(&config))

	update := ClientConfigDefault
	update.LogLevel = "debug"
	update.Runtime.RPC = "https://other.example"
	update.Conf.ReloadInterval = time.Minute
	update.Runtime.MakerList = []string{"0x00000000000000000000000000000000000000aa"}
	update.Runtime.Debug = true
	update.FileLogging.MaxSize++
	require.NoError(t, config.CanReload(&update))

	update = ClientConfigDefault
	update.Wallet.Pathname = "/keystore/wallet.json"
	require.Error(t, config.CanReload(&update))

	update = ClientConfigDefault
	update.Scheduler.MakerInterval++
	require.Error(t, config.CanReload(&update))

	update = ClientConfigDefault
	update.Server.HTTP.Port++
	require.Error(t, config.CanReload(&update))

	update = ClientConfigDefault
	update.Metrics = !update.Metrics
	require.Error(t, config.CanReload(&update))
}

func TestLiveClientConfigSet(t *testing.T) {
	config := ClientConfigDefault.ShallowClone()
	live := NewLiveClientConfig(nil, config)
	var calls int
	live.SetOnReloadHook(func(old, new *ClientConfig) error {
		calls++
		return nil
	})

	update := config.ShallowClone()
	update.LogType = "json"
	require.NoError(t, live.Set(update))
	require.Equal(t, "json", live.Get().LogType)
	require.Equal(t, 1, calls)

	rejected := update.ShallowClone()
	rejected.Store.Backend = "redis"
	require.Error(t, live.Set(rejected))
	require.Same(t, update, live.Get())
	require.Equal(t, 1, calls)
}

func TestLoadRuntimeOverlaysSnapshot(t *testing.T) {
	ctx := context.Background()
	persister := liveconfig.NewPersister(store.New(store.NewMemoryStorage()))
	require.NoError(t, persister.Save(ctx, &liveconfig.RuntimeConfig{
		MakerAPIEndpoint: "https://stored.example",
		MakerList:        []string{"0x00000000000000000000000000000000000000aa"},
	}))

	static := &liveconfig.RuntimeConfig{RPC: "https://static.example", MakerAPIEndpoint: "https://flag.example"}
	merged, err := loadRuntime(ctx, static, persister)
	require.NoError(t, err)
	require.Equal(t, "https://static.example", merged.RPC)
	require.Equal(t, "https://stored.example", merged.MakerAPIEndpoint)
	require.Equal(t, []string{"0x00000000000000000000000000000000000000aa"}, merged.MakerList)

	empty := liveconfig.NewPersister(store.New(store.NewMemoryStorage()))
	merged, err = loadRuntime(ctx, static, empty)
	require.NoError(t, err)
	require.Equal(t, *static, *merged)
}

func TestTxPosterConfigFollowsRuntime(t *testing.T) {
	runtime, err := liveconfig.Parse(&liveconfig.RuntimeConfig{})
	require.NoError(t, err)
	live := liveconfig.NewLiveConfig(runtime)
	static := ClientConfigDefault.TxPoster
	fetch := txPosterConfig(&static, live)

	config := fetch()
	require.Equal(t, static.GasLimit, config.GasLimit)
	require.Nil(t, config.MaxFeePerGas)

	runtime, err = liveconfig.Parse(&liveconfig.RuntimeConfig{GasLimit: 300000, MaxFeePerGas: "2000000000", MaxPriorityFeePerGas: "1000000000"})
	require.NoError(t, err)
	live.Set(runtime)
	config = fetch()
	require.Equal(t, uint64(300000), config.GasLimit)
	require.Equal(t, big.NewInt(2000000000), config.MaxFeePerGas)
	require.Equal(t, big.NewInt(1000000000), config.MaxPriorityFeePerGas)
	require.Equal(t, ClientConfigDefault.TxPoster.GasLimit, static.GasLimit)
}

func TestApplyStaticRuntime(t *testing.T) {
	runtime, err := liveconfig.Parse(&liveconfig.RuntimeConfig{RPC: "https://a.example", MonitorURL: "https://monitor.example"})
	require.NoError(t, err)
	live := liveconfig.NewLiveConfig(runtime)
	var sets int
	live.AddHook(func(old, new *liveconfig.Runtime) error {
		sets++
		return nil
	})

	old := liveconfig.RuntimeConfig{RPC: "https://a.example"}
	require.NoError(t, applyStaticRuntime(live, &old, &old))
	require.Equal(t, 0, sets)

	maker := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	next := liveconfig.RuntimeConfig{RPC: "https://b.example", MakerList: []string{maker.Hex()}}
	require.NoError(t, applyStaticRuntime(live, &old, &next))
	require.Equal(t, 1, sets)
	require.Equal(t, "https://b.example", live.Get().Config.RPC)
	require.Equal(t, "https://monitor.example", live.Get().Config.MonitorURL)
	require.Equal(t, []common.Address{maker}, live.Get().Makers)

	bad := liveconfig.RuntimeConfig{PrivateKey: "0x12"}
	require.Error(t, applyStaticRuntime(live, &next, &bad))
	require.Equal(t, 1, sets)
}

func TestApplyWallets(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	id, err := uuid.NewRandom()
	require.NoError(t, err)
	keyJSON, err := keystore.EncryptKey(&keystore.Key{
		Id:         id,
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}, "pass", 2, 1)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "liquidator.json")
	require.NoError(t, os.WriteFile(path, keyJSON, 0600))

	runtime := liveconfig.RuntimeConfig{PrivateKey: "0x01"}
	liquidator := genericconf.WalletConfig{Pathname: path, Password: "pass"}
	require.NoError(t, applyWallets(&runtime, &genericconf.WalletConfigDefault, &liquidator))
	require.Equal(t, "0x01", runtime.PrivateKey)
	require.Equal(t, hexutil.Encode(crypto.FromECDSA(key)), runtime.LiquidatePrivateKey)

	runtime = liveconfig.RuntimeConfig{}
	liquidator.Password = "wrong"
	require.Error(t, applyWallets(&runtime, &genericconf.WalletConfigDefault, &liquidator))
}
