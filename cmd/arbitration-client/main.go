// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/offchainlabs/arbitration-client/arbitration"
	"github.com/offchainlabs/arbitration-client/arbitration/chain"
	"github.com/offchainlabs/arbitration-client/arbitration/indexer"
	"github.com/offchainlabs/arbitration-client/arbitration/liveconfig"
	"github.com/offchainlabs/arbitration-client/arbitration/makerapi"
	"github.com/offchainlabs/arbitration-client/arbitration/notify"
	"github.com/offchainlabs/arbitration-client/arbitration/scheduler"
	"github.com/offchainlabs/arbitration-client/arbitration/server"
	"github.com/offchainlabs/arbitration-client/arbitration/store"
	"github.com/offchainlabs/arbitration-client/arbitration/txposter"
	"github.com/offchainlabs/arbitration-client/cmd/genericconf"
	"github.com/offchainlabs/arbitration-client/cmd/util"
	"github.com/offchainlabs/arbitration-client/cmd/util/confighelpers"
	"github.com/offchainlabs/arbitration-client/util/clock"
)

// version is the protocol version this build speaks. Set with -ldflags.
var version = "v1.0.0"

const shutdownTimeout = 10 * time.Second

func printSampleUsage(name string) {
	fmt.Printf("Sample usage: %s --runtime.rpc <url> --runtime.maker-api-endpoint <url> [--runtime.maker-list <address>] \n", name)
}

func main() {
	os.Exit(mainImpl())
}

// logState re-initializes logging whenever the static log settings or the
// runtime debug flag change.
type logState struct {
	mutex        sync.Mutex
	config       *ClientConfig
	debug        bool
	pathResolver func(string) string
}

func (l *logState) apply() error {
	level := l.config.LogLevel
	if l.debug {
		level = "debug"
	}
	return genericconf.InitLog(l.config.LogType, level, &l.config.FileLogging, l.pathResolver)
}

func (l *logState) setConfig(config *ClientConfig) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.config = config
	return l.apply()
}

func (l *logState) setDebug(debug bool) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.debug == debug {
		return nil
	}
	l.debug = debug
	return l.apply()
}

// loadRuntime seeds the runtime config from the static one and overlays the
// snapshot persisted by the control surface.
func loadRuntime(ctx context.Context, static *liveconfig.RuntimeConfig, persister *liveconfig.Persister) (*liveconfig.RuntimeConfig, error) {
	stored, found, err := persister.Load(ctx, static.SecretKey)
	if err != nil {
		return nil, err
	}
	merged := *static
	if found {
		merged = liveconfig.PatchFrom(stored).Apply(merged)
	}
	return &merged, nil
}

// applyWallets fills keys missing from the runtime config from the keystore
// wallets, if configured.
func applyWallets(runtime *liveconfig.RuntimeConfig, wallet, liquidatorWallet *genericconf.WalletConfig) error {
	open := func(dst *string, w *genericconf.WalletConfig, name string) error {
		if *dst != "" {
			return nil
		}
		key, err := w.OpenWallet()
		if errors.Is(err, genericconf.ErrNoWallet) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("opening %s: %w", name, err)
		}
		*dst = hexutil.Encode(crypto.FromECDSA(key))
		return nil
	}
	if err := open(&runtime.PrivateKey, wallet, "wallet"); err != nil {
		return err
	}
	return open(&runtime.LiquidatePrivateKey, liquidatorWallet, "liquidator wallet")
}

// txPosterConfig merges the runtime gas overrides into the static poster config.
func txPosterConfig(static *txposter.Config, live *liveconfig.LiveConfig) txposter.ConfigFetcher {
	return func() *txposter.Config {
		config := *static
		runtime := live.Get()
		if runtime.Config.GasLimit != 0 {
			config.GasLimit = runtime.Config.GasLimit
		}
		config.MaxFeePerGas = runtime.MaxFeePerGas
		config.MaxPriorityFeePerGas = runtime.MaxPriorityFeePerGas
		return &config
	}
}

// applyStaticRuntime patches runtime fields changed in a reloaded static
// config onto the live runtime config.
func applyStaticRuntime(live *liveconfig.LiveConfig, old, new *liveconfig.RuntimeConfig) error {
	if reflect.DeepEqual(old, new) {
		return nil
	}
	next := liveconfig.PatchFrom(new).Apply(live.Config())
	runtime, err := liveconfig.Parse(&next)
	if err != nil {
		return err
	}
	live.Set(runtime)
	return nil
}

func mainImpl() int {
	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	args := os.Args[1:]
	config, err := ParseClient(args)
	if errors.Is(err, confighelpers.ErrVersion) {
		fmt.Printf("Version: %v\n", version)
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		printSampleUsage(os.Args[0])
		return 1
	}
	if config.Conf.Dump {
		return 0
	}

	pathResolver := config.PathResolver()
	logs := &logState{config: config, debug: config.Runtime.Debug, pathResolver: pathResolver}
	if err := logs.setConfig(config); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		return 1
	}
	log.Info("starting arbitration client", "version", version)

	if err := util.StartMetrics(&config.MetricsOpts); err != nil {
		log.Error("error starting metrics", "err", err)
		return 1
	}

	configStore, err := store.Open(&config.Store, "config", pathResolver)
	if err != nil {
		log.Error("error opening config store", "err", err)
		return 1
	}
	defer configStore.Close()
	recordStore, err := store.Open(&config.Store, "arbitrationDB", pathResolver)
	if err != nil {
		log.Error("error opening dispute record store", "err", err)
		return 1
	}
	defer recordStore.Close()
	if !recordStore.IsPersistent() {
		log.Warn("dispute records are kept in memory and lost on restart")
	}

	persister := liveconfig.NewPersister(configStore)
	runtimeConfig, err := loadRuntime(ctx, &config.Runtime, persister)
	if err != nil {
		log.Error("error loading persisted runtime config", "err", err)
		return 1
	}
	if err := applyWallets(runtimeConfig, &config.Wallet, &config.LiquidatorWallet); err != nil {
		log.Error("error opening wallet", "err", err)
		return 1
	}
	runtime, err := liveconfig.Parse(runtimeConfig)
	if err != nil {
		log.Error("invalid runtime config", "err", err)
		return 1
	}
	live := liveconfig.NewLiveConfig(runtime)
	if err := logs.setDebug(runtime.Config.Debug); err != nil {
		log.Error("error applying debug log level", "err", err)
	}

	makerAPI := makerapi.NewClient(&config.MakerAPI, func() string { return live.Get().Config.MakerAPIEndpoint })
	if endpoint := runtimeConfig.MakerAPIEndpoint; endpoint != "" {
		clientConfig, err := makerAPI.ClientConfig(ctx, endpoint)
		if err != nil {
			log.Error("failed to fetch client config from counterparty", "endpoint", endpoint, "err", err)
		} else if clientConfig.SubgraphEndpoint != runtimeConfig.SubgraphEndpoint {
			next := live.Config()
			next.SubgraphEndpoint = clientConfig.SubgraphEndpoint
			updated, err := liveconfig.Parse(&next)
			if err != nil {
				log.Error("invalid runtime config", "err", err)
				return 1
			}
			live.Set(updated)
		}
	}

	live.AddHook(func(old, new *liveconfig.Runtime) error {
		return logs.setDebug(new.Config.Debug)
	})
	live.AddHook(func(old, new *liveconfig.Runtime) error {
		if old.IsMaker() != new.IsMaker() {
			log.Warn("role changed at runtime", "maker", new.IsMaker())
		}
		return nil
	})

	chainClient := chain.NewClient(func() string { return live.Get().Config.RPC })
	defer chainClient.Close()

	realClock := clock.NewRealClock()
	poster := txposter.New(chainClient, txPosterConfig(&config.TxPoster, live), func() *ecdsa.PrivateKey {
		return live.Get().SignerKey()
	}, realClock)
	subgraph := indexer.NewClient(&config.Indexer, func() string { return live.Get().Config.SubgraphEndpoint })
	telegram := notify.NewTelegram(&config.Notify, func() (string, string) {
		current := live.Get().Config
		return current.TelegramToken, current.TelegramChatID
	})

	engine := arbitration.NewEngine(
		&config.Engine,
		subgraph,
		chainClient,
		poster,
		arbitration.NewRecordStore(recordStore),
		arbitration.WithClock(realClock),
		arbitration.WithNotifier(telegram),
		arbitration.WithReporter(makerAPI),
		arbitration.WithLiquidatorKey(func() *ecdsa.PrivateKey { return live.Get().LiquidatorKey() }),
	)
	sched := scheduler.New(&config.Scheduler, engine, makerAPI, subgraph, live.Get, telegram, realClock, version)
	control := server.New(&config.Server, live, persister, engine, sched, makerAPI, chain.QueryChainID)

	liveClientConfig := NewLiveClientConfig(args, config)
	liveClientConfig.SetOnReloadHook(func(old, new *ClientConfig) error {
		if err := logs.setConfig(new); err != nil {
			return err
		}
		return applyStaticRuntime(live, &old.Runtime, &new.Runtime)
	})

	current := live.Get()
	log.Info("runtime config loaded", "maker", current.IsMaker(), "makers", len(current.Makers), "watchAll", current.WatchAll, "liquidator", current.Liquidator != nil)

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigint)

	group, groupCtx := errgroup.WithContext(ctx)
	liveClientConfig.Start(groupCtx)
	sched.Start(groupCtx)
	group.Go(func() error {
		return control.Start(groupCtx)
	})
	group.Go(func() error {
		select {
		case <-sigint:
			log.Info("shutting down because of sigint")
		case <-groupCtx.Done():
		}
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return control.Stop(stopCtx)
	})

	err = group.Wait()
	sched.StopAndWait()
	liveClientConfig.StopAndWait()
	if err != nil {
		log.Error("arbitration client stopped", "err", err)
		return 1
	}
	return 0
}
