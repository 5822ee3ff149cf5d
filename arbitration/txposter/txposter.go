// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

// Package txposter signs and broadcasts dispute transactions and waits for
// their receipts.
package txposter

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/params"
	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/arbitration-client/arbitration"
	"github.com/offchainlabs/arbitration-client/util/clock"
)

var (
	sentCounter = metrics.NewRegisteredCounter("arbitration/txposter/sent", nil)
	nonceGauge  = metrics.NewRegisteredGauge("arbitration/txposter/nonce", nil)
)

// ChainClient is the subset of ethclient.Client the poster uses.
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type Config struct {
	GasLimit            uint64        `koanf:"gas-limit"`
	MinGasPriceGwei     float64       `koanf:"min-gas-price-gwei"`
	ReceiptPollInterval time.Duration `koanf:"receipt-poll-interval"`
	// Fixed fee caps. Both must be set to take effect.
	MaxFeePerGas         *big.Int `koanf:"-"`
	MaxPriorityFeePerGas *big.Int `koanf:"-"`
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Uint64(prefix+".gas-limit", DefaultConfig.GasLimit, "gas limit of every dispute transaction")
	f.Float64(prefix+".min-gas-price-gwei", DefaultConfig.MinGasPriceGwei, "floor of the legacy gas price")
	f.Duration(prefix+".receipt-poll-interval", DefaultConfig.ReceiptPollInterval, "how often to poll for a transaction receipt")
}

var DefaultConfig = Config{
	GasLimit:            1_000_000,
	MinGasPriceGwei:     1.5,
	ReceiptPollInterval: 3 * time.Second,
}

type ConfigFetcher func() *Config

// KeyFetcher returns the default signing key, or nil if none is configured.
type KeyFetcher func() *ecdsa.PrivateKey

type TxPoster struct {
	client     ChainClient
	config     ConfigFetcher
	defaultKey KeyFetcher
	clock      clock.Clock

	// these fields are protected by the mutex
	mutex  sync.Mutex
	nonces map[common.Address]uint64
}

var _ arbitration.Submitter = (*TxPoster)(nil)

func New(client ChainClient, config ConfigFetcher, defaultKey KeyFetcher, c clock.Clock) *TxPoster {
	if c == nil {
		c = clock.NewRealClock()
	}
	return &TxPoster{
		client:     client,
		config:     config,
		defaultKey: defaultKey,
		clock:      c,
		nonces:     make(map[common.Address]uint64),
	}
}

func (p *TxPoster) DefaultAddress() (common.Address, error) {
	key := p.defaultKey()
	if key == nil {
		return common.Address{}, arbitration.ErrNoSigningKey
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// LocalNonce is the lowest nonce this process has not used yet for account.
func (p *TxPoster) LocalNonce(account common.Address) uint64 {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.nonces[account]
}

type pricing struct {
	feeCap   *big.Int
	tipCap   *big.Int
	gasPrice *big.Int
}

func (p *TxPoster) getPricing(ctx context.Context, config *Config) (*pricing, error) {
	if config.MaxFeePerGas != nil && config.MaxPriorityFeePerGas != nil {
		return &pricing{feeCap: config.MaxFeePerGas, tipCap: config.MaxPriorityFeePerGas}, nil
	}
	header, err := p.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}
	if header.BaseFee != nil {
		tipCap, err := p.client.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, err
		}
		feeCap := new(big.Int).Mul(header.BaseFee, big.NewInt(2))
		feeCap.Add(feeCap, tipCap)
		return &pricing{feeCap: feeCap, tipCap: tipCap}, nil
	}
	gasPrice, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	minGasPrice := new(big.Int).SetUint64(uint64(config.MinGasPriceGwei * params.GWei))
	if gasPrice.Cmp(minGasPrice) < 0 {
		gasPrice = minGasPrice
	}
	return &pricing{gasPrice: gasPrice}, nil
}

// submissionError wraps a chain failure, leaving configuration errors such as
// a missing rpc endpoint as they are.
func submissionError(what string, err error) error {
	var config *arbitration.ConfigurationError
	if errors.As(err, &config) {
		return err
	}
	return &arbitration.SubmissionError{Err: fmt.Errorf("%s: %w", what, err)}
}

// Send signs and broadcasts a transaction and returns its hash. The local
// nonce only advances once the network accepted the transaction.
func (p *TxPoster) Send(ctx context.Context, req *arbitration.TxRequest) (common.Hash, error) {
	key := req.Key
	if key == nil {
		key = p.defaultKey()
	}
	if key == nil {
		return common.Hash{}, &arbitration.ConfigurationError{Err: arbitration.ErrNoSigningKey}
	}
	from := crypto.PubkeyToAddress(key.PublicKey)
	config := p.config()
	gasLimit := config.GasLimit
	if gasLimit == 0 {
		gasLimit = DefaultConfig.GasLimit
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	chainID, err := p.client.ChainID(ctx)
	if err != nil {
		return common.Hash{}, submissionError("reading chain id", err)
	}
	pendingNonce, err := p.client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, submissionError("reading pending nonce", err)
	}
	nonce := pendingNonce
	if local := p.nonces[from]; local > nonce {
		nonce = local
	}
	price, err := p.getPricing(ctx, config)
	if err != nil {
		return common.Hash{}, submissionError("pricing gas", err)
	}
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To
	var inner types.TxData
	if price.gasPrice != nil {
		inner = &types.LegacyTx{
			Nonce:    nonce,
			GasPrice: price.gasPrice,
			Gas:      gasLimit,
			To:       &to,
			Value:    value,
			Data:     req.Data,
		}
	} else {
		inner = &types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: price.tipCap,
			GasFeeCap: price.feeCap,
			Gas:       gasLimit,
			To:        &to,
			Value:     value,
			Data:      req.Data,
		}
	}
	tx := types.NewTx(inner)

	balance, err := p.client.BalanceAt(ctx, from, nil)
	if err != nil {
		return common.Hash{}, submissionError("reading balance", err)
	}
	required := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), tx.GasTipCap())
	if balance.Cmp(required) < 0 {
		return common.Hash{}, &arbitration.InsufficientBalanceError{Account: from, Balance: balance, Required: required}
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return common.Hash{}, &arbitration.SubmissionError{Err: fmt.Errorf("signing: %w", err)}
	}
	log.Info("sending transaction", "hash", signed.Hash(), "from", from, "to", to, "nonce", nonce, "type", signed.Type(), "feeCap", signed.GasFeeCap(), "tipCap", signed.GasTipCap())
	if err := p.client.SendTransaction(ctx, signed); err != nil {
		log.Warn("failed to send transaction", "hash", signed.Hash(), "nonce", nonce, "err", err)
		return common.Hash{}, &arbitration.SubmissionError{Err: err}
	}
	p.nonces[from] = nonce + 1
	sentCounter.Inc(1)
	nonceGauge.Update(int64(nonce + 1))
	return signed.Hash(), nil
}

// WaitForReceipt polls until the transaction is mined or ctx is done.
func (p *TxPoster) WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	for {
		interval := p.config().ReceiptPollInterval
		if interval <= 0 {
			interval = DefaultConfig.ReceiptPollInterval
		}
		if err := p.clock.Sleep(ctx, interval); err != nil {
			return nil, err
		}
		receipt, err := p.client.TransactionReceipt(ctx, hash)
		if err != nil {
			if !errors.Is(err, ethereum.NotFound) {
				log.Warn("error fetching receipt", "hash", hash, "err", err)
			}
			continue
		}
		if receipt != nil && receipt.BlockNumber != nil {
			return receipt, nil
		}
	}
}
