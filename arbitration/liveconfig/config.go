// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package liveconfig holds the operator settings that can change while the
// client runs: signing keys, endpoints, managed addresses and gas policy.
package liveconfig

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
)

// WildcardAddress in the watch list matches every wallet.
const WildcardAddress = "*"

type RuntimeConfig struct {
	PrivateKey           string   `koanf:"private-key" json:"privateKey,omitempty" diff:"privateKey"`
	LiquidatePrivateKey  string   `koanf:"liquidate-private-key" json:"liquidatePrivateKey,omitempty" diff:"liquidatePrivateKey"`
	SecretKey            string   `koanf:"secret-key" json:"-" diff:"secretKey"`
	RPC                  string   `koanf:"rpc" json:"rpc,omitempty" diff:"rpc"`
	MakerAPIEndpoint     string   `koanf:"maker-api-endpoint" json:"makerApiEndpoint,omitempty" diff:"makerApiEndpoint"`
	SubgraphEndpoint     string   `koanf:"subgraph-endpoint" json:"subgraphEndpoint,omitempty" diff:"subgraphEndpoint"`
	MakerList            []string `koanf:"maker-list" json:"makerList,omitempty" diff:"makerList"`
	WatchWalletList      []string `koanf:"watch-wallet-list" json:"watchWalletList,omitempty" diff:"watchWalletList"`
	GasLimit             uint64   `koanf:"gas-limit" json:"gasLimit,omitempty" diff:"gasLimit"`
	MaxFeePerGas         string   `koanf:"max-fee-per-gas" json:"maxFeePerGas,omitempty" diff:"maxFeePerGas"`
	MaxPriorityFeePerGas string   `koanf:"max-priority-fee-per-gas" json:"maxPriorityFeePerGas,omitempty" diff:"maxPriorityFeePerGas"`
	Debug                bool     `koanf:"debug" json:"debug,omitempty" diff:"debug"`
	TelegramToken        string   `koanf:"telegram-token" json:"telegramToken,omitempty" diff:"telegramToken"`
	TelegramChatID       string   `koanf:"telegram-chat-id" json:"telegramChatId,omitempty" diff:"telegramChatId"`
	MonitorURL           string   `koanf:"monitor-url" json:"monitorUrl,omitempty" diff:"monitorUrl"`
}

var DefaultRuntimeConfig = RuntimeConfig{}

func RuntimeConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".private-key", DefaultRuntimeConfig.PrivateKey, "hex private key of the challenger or maker role")
	f.String(prefix+".liquidate-private-key", DefaultRuntimeConfig.LiquidatePrivateKey, "hex private key used for liquidations")
	f.String(prefix+".secret-key", DefaultRuntimeConfig.SecretKey, "passphrase protecting the keys persisted in the state store")
	f.String(prefix+".rpc", DefaultRuntimeConfig.RPC, "chain rpc url")
	f.String(prefix+".maker-api-endpoint", DefaultRuntimeConfig.MakerAPIEndpoint, "base url of the counterparty api")
	f.String(prefix+".subgraph-endpoint", DefaultRuntimeConfig.SubgraphEndpoint, "indexer graphql url, replaced by the one the counterparty publishes")
	f.StringSlice(prefix+".maker-list", DefaultRuntimeConfig.MakerList, "maker addresses managed by this client; non-empty selects the maker role")
	f.StringSlice(prefix+".watch-wallet-list", DefaultRuntimeConfig.WatchWalletList, "wallets whose transfers the challenger disputes (empty or * for all)")
	f.Uint64(prefix+".gas-limit", DefaultRuntimeConfig.GasLimit, "gas limit override (0 uses the transaction poster default)")
	f.String(prefix+".max-fee-per-gas", DefaultRuntimeConfig.MaxFeePerGas, "fixed max fee per gas in wei, used together with max-priority-fee-per-gas")
	f.String(prefix+".max-priority-fee-per-gas", DefaultRuntimeConfig.MaxPriorityFeePerGas, "fixed max priority fee per gas in wei")
	f.Bool(prefix+".debug", DefaultRuntimeConfig.Debug, "log at debug level")
	f.String(prefix+".telegram-token", DefaultRuntimeConfig.TelegramToken, "telegram bot token for operator alerts")
	f.String(prefix+".telegram-chat-id", DefaultRuntimeConfig.TelegramChatID, "telegram chat receiving operator alerts")
	f.String(prefix+".monitor-url", DefaultRuntimeConfig.MonitorURL, "url pinged by the heartbeat")
}

// Redacted returns a copy without key material.
func (c RuntimeConfig) Redacted() RuntimeConfig {
	c.PrivateKey = ""
	c.LiquidatePrivateKey = ""
	c.SecretKey = ""
	return c
}

// Runtime is a parsed RuntimeConfig. Values are immutable once published.
type Runtime struct {
	Config RuntimeConfig

	Signer     *ecdsa.PrivateKey
	Liquidator *ecdsa.PrivateKey
	Makers     []common.Address
	Watch      []common.Address
	WatchAll   bool
	// MaxFeePerGas and MaxPriorityFeePerGas are both nil unless both are set.
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

var ErrInvalidPrivateKey = errors.New("PrivateKey error")

func parseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidPrivateKey, err.Error())
	}
	return key, nil
}

func parseAddresses(list []string, allowWildcard bool) ([]common.Address, bool, error) {
	var out []common.Address
	wildcard := false
	for _, item := range list {
		item = strings.TrimSpace(item)
		switch {
		case item == "":
			continue
		case allowWildcard && item == WildcardAddress:
			wildcard = true
		case common.IsHexAddress(item):
			out = append(out, common.HexToAddress(item))
		default:
			return nil, false, fmt.Errorf("invalid address %q", item)
		}
	}
	return out, wildcard, nil
}

func parseWei(name, value string) (*big.Int, error) {
	if value == "" {
		return nil, nil
	}
	wei, ok := new(big.Int).SetString(strings.TrimSpace(value), 0)
	if !ok || wei.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s %q", name, value)
	}
	return wei, nil
}

func Parse(config *RuntimeConfig) (*Runtime, error) {
	r := &Runtime{Config: *config}
	var err error
	if r.Signer, err = parseKey(config.PrivateKey); err != nil {
		return nil, err
	}
	if r.Liquidator, err = parseKey(config.LiquidatePrivateKey); err != nil {
		return nil, err
	}
	if r.Makers, _, err = parseAddresses(config.MakerList, false); err != nil {
		return nil, errors.Wrap(err, "maker list")
	}
	if r.Watch, r.WatchAll, err = parseAddresses(config.WatchWalletList, true); err != nil {
		return nil, errors.Wrap(err, "watch wallet list")
	}
	if len(r.Watch) == 0 {
		r.WatchAll = true
	}
	maxFee, err := parseWei("max fee per gas", config.MaxFeePerGas)
	if err != nil {
		return nil, err
	}
	maxTip, err := parseWei("max priority fee per gas", config.MaxPriorityFeePerGas)
	if err != nil {
		return nil, err
	}
	if maxFee != nil && maxTip != nil {
		r.MaxFeePerGas, r.MaxPriorityFeePerGas = maxFee, maxTip
	}
	return r, nil
}

// IsMaker selects the maker role. A client is a challenger otherwise.
func (r *Runtime) IsMaker() bool {
	return len(r.Makers) > 0
}

// Watches reports whether the challenger disputes transfers of wallet.
func (r *Runtime) Watches(wallet common.Address) bool {
	if r.WatchAll {
		return true
	}
	for _, w := range r.Watch {
		if w == wallet {
			return true
		}
	}
	return false
}

func (r *Runtime) SignerKey() *ecdsa.PrivateKey {
	return r.Signer
}

func (r *Runtime) LiquidatorKey() *ecdsa.PrivateKey {
	return r.Liquidator
}
