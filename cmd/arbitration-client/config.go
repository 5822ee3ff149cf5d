// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/arbitration-client/arbitration"
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
	"github.com/offchainlabs/arbitration-client/util/stopwaiter"
)

type ClientConfig struct {
	Conf        genericconf.ConfConfig        `koanf:"conf" reload:"hot"`
	LogLevel    string                        `koanf:"log-level" reload:"hot"`
	LogType     string                        `koanf:"log-type" reload:"hot"`
	FileLogging genericconf.FileLoggingConfig `koanf:"file-logging" reload:"hot"`
	util.MetricsOpts `koanf:",squash"`
	Runtime          liveconfig.RuntimeConfig `koanf:"runtime" reload:"hot"`
	Wallet           genericconf.WalletConfig `koanf:"wallet"`
	LiquidatorWallet genericconf.WalletConfig `koanf:"liquidator-wallet"`
	TxPoster  txposter.Config          `koanf:"tx-poster"`
	Engine    arbitration.EngineConfig `koanf:"engine"`
	Indexer   indexer.Config           `koanf:"indexer"`
	MakerAPI  makerapi.Config          `koanf:"maker-api"`
	Notify    notify.Config            `koanf:"notify"`
	Store     store.Config             `koanf:"store"`
	Scheduler scheduler.Config         `koanf:"scheduler"`
	Server    server.Config            `koanf:"server"`
	Workdir   string                   `koanf:"workdir"`
}

var ClientConfigDefault = ClientConfig{
	Conf:        genericconf.ConfConfigDefault,
	LogLevel:    "info",
	LogType:     "plaintext",
	FileLogging: genericconf.DefaultFileLoggingConfig,
	MetricsOpts: util.MetricsOptsDefault,
	Runtime:          liveconfig.DefaultRuntimeConfig,
	Wallet:           genericconf.WalletConfigDefault,
	LiquidatorWallet: genericconf.WalletConfigDefault,
	TxPoster:    txposter.DefaultConfig,
	Engine:      arbitration.DefaultEngineConfig,
	Indexer:     indexer.DefaultConfig,
	MakerAPI:    makerapi.DefaultConfig,
	Notify:      notify.DefaultConfig,
	Store:       store.DefaultConfig,
	Scheduler:   scheduler.DefaultConfig,
	Server:      server.DefaultConfig,
	Workdir:     "",
}

func ClientConfigAddOptions(f *flag.FlagSet) {
	genericconf.ConfConfigAddOptions("conf", f)
	f.String("log-level", ClientConfigDefault.LogLevel, "log level, valid values are CRIT, ERROR, WARN, INFO, DEBUG, TRACE")
	f.String("log-type", ClientConfigDefault.LogType, "log type (plaintext or json)")
	genericconf.FileLoggingConfigAddOptions("file-logging", f)
	util.MetricsOptsAddOptions(f)
	liveconfig.RuntimeConfigAddOptions("runtime", f)
	genericconf.WalletConfigAddOptions("wallet", f)
	genericconf.WalletConfigAddOptions("liquidator-wallet", f)
	txposter.ConfigAddOptions("tx-poster", f)
	arbitration.EngineConfigAddOptions("engine", f)
	indexer.ConfigAddOptions("indexer", f)
	makerapi.ConfigAddOptions("maker-api", f)
	notify.ConfigAddOptions("notify", f)
	store.ConfigAddOptions("store", f)
	scheduler.ConfigAddOptions("scheduler", f)
	server.ConfigAddOptions("server", f)
	f.String("workdir", ClientConfigDefault.Workdir, "directory relative paths are resolved against (defaults to the current directory)")
}

func (c *ClientConfig) ShallowClone() *ClientConfig {
	config := &ClientConfig{}
	*config = *c
	return config
}

// CanReload rejects changes to fields not tagged reload:"hot".
func (c *ClientConfig) CanReload(new *ClientConfig) error {
	var check func(node, other reflect.Value, path string)
	var err error

	check = func(node, value reflect.Value, path string) {
		if node.Kind() != reflect.Struct {
			return
		}
		for i := 0; i < node.NumField(); i++ {
			fieldTy := node.Type().Field(i)
			if !fieldTy.IsExported() {
				continue
			}
			// everything below a hot field may change
			if fieldTy.Tag.Get("reload") == "hot" {
				continue
			}
			dot := path + "." + fieldTy.Name

			first := node.Field(i).Interface()
			other := value.Field(i).Interface()

			if !reflect.DeepEqual(first, other) {
				err = fmt.Errorf("illegal change to %v", dot)
			} else {
				check(node.Field(i), value.Field(i), dot)
			}
		}
	}

	check(reflect.ValueOf(c).Elem(), reflect.ValueOf(new).Elem(), "config")
	return err
}

func (c *ClientConfig) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	if c.TxPoster.GasLimit == 0 {
		return errors.New("tx-poster gas limit must be positive")
	}
	if _, err := genericconf.ToSlogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// PathResolver resolves relative paths against the workdir.
func (c *ClientConfig) PathResolver() func(string) string {
	return genericconf.DefaultPathResolver(c.Workdir)
}

func ParseClient(args []string) (*ClientConfig, error) {
	f := flag.NewFlagSet("", flag.ContinueOnError)
	ClientConfigAddOptions(f)

	k, err := confighelpers.BeginCommonParse(f, args)
	if err != nil {
		return nil, err
	}

	var config ClientConfig
	if err := confighelpers.EndCommonParse(k, &config); err != nil {
		return nil, err
	}

	// Don't print key material
	if config.Conf.Dump {
		err = confighelpers.DumpConfig(k,
			"runtime.private-key",
			"runtime.liquidate-private-key",
			"runtime.secret-key",
			"runtime.telegram-token",
			"wallet.password",
			"wallet.private-key",
			"liquidator-wallet.password",
			"liquidator-wallet.private-key",
		)
		if err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

type OnReloadHook func(old *ClientConfig, new *ClientConfig) error

func noopOnReloadHook(_ *ClientConfig, _ *ClientConfig) error {
	return nil
}

// LiveClientConfig re-parses the static config on SIGUSR1 or every
// conf.reload-interval and applies the hot fields.
type LiveClientConfig struct {
	stopwaiter.StopWaiter

	mutex        sync.RWMutex
	args         []string
	config       *ClientConfig
	onReloadHook OnReloadHook
}

func NewLiveClientConfig(args []string, config *ClientConfig) *LiveClientConfig {
	return &LiveClientConfig{
		args:         args,
		config:       config,
		onReloadHook: noopOnReloadHook,
	}
}

func (c *LiveClientConfig) Get() *ClientConfig {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.config
}

func (c *LiveClientConfig) Set(config *ClientConfig) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.config.CanReload(config); err != nil {
		return err
	}
	if err := c.onReloadHook(c.config, config); err != nil {
		log.Error("Failed to execute onReloadHook", "err", err)
	}
	c.config = config
	return nil
}

// SetOnReloadHook is NOT thread-safe and supports setting only one hook
func (c *LiveClientConfig) SetOnReloadHook(hook OnReloadHook) {
	c.onReloadHook = hook
}

func (c *LiveClientConfig) Start(ctxIn context.Context) {
	c.StopWaiter.Start(ctxIn, c)

	sigusr1 := make(chan os.Signal, 1)
	signal.Notify(sigusr1, syscall.SIGUSR1)

	c.LaunchThread(func(ctx context.Context) {
		defer signal.Stop(sigusr1)
		for {
			reloadInterval := c.Get().Conf.ReloadInterval
			if reloadInterval == 0 {
				select {
				case <-ctx.Done():
					return
				case <-sigusr1:
					log.Info("Configuration reload triggered by SIGUSR1.")
				}
			} else {
				timer := time.NewTimer(reloadInterval)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-sigusr1:
					timer.Stop()
					log.Info("Configuration reload triggered by SIGUSR1.")
				case <-timer.C:
				}
			}
			config, err := ParseClient(c.args)
			if err != nil {
				log.Error("error parsing live config", "err", err)
				continue
			}
			if err := c.Set(config); err != nil {
				log.Error("error updating live config", "err", err)
			}
		}
	})
}
