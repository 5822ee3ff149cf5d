// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package chain connects to the ledger RPC named by the runtime config and
// reconnects when it changes.
package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"

	"github.com/offchainlabs/arbitration-client/arbitration"
	"github.com/offchainlabs/arbitration-client/arbitration/txposter"
)

var ErrNoRPC = errors.New("rpc endpoint not configured")

// Client dials lazily and redials whenever the URL returned by url changes.
type Client struct {
	url func() string

	mutex   sync.Mutex
	dialed  string
	current *ethclient.Client
}

var (
	_ txposter.ChainClient       = (*Client)(nil)
	_ arbitration.ContractReader = (*Client)(nil)
)

func NewClient(url func() string) *Client {
	return &Client{url: url}
}

func (c *Client) client(ctx context.Context) (*ethclient.Client, error) {
	url := c.url()
	if url == "" {
		return nil, &arbitration.ConfigurationError{Err: ErrNoRPC}
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.current != nil && c.dialed == url {
		return c.current, nil
	}
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	if c.current != nil {
		log.Info("rpc endpoint changed, reconnected")
		c.current.Close()
	}
	c.current = client
	c.dialed = url
	return client, nil
}

func (c *Client) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.current != nil {
		c.current.Close()
		c.current = nil
	}
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	client, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	return client.ChainID(ctx)
}

func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	client, err := c.client(ctx)
	if err != nil {
		return 0, err
	}
	return client.PendingNonceAt(ctx, account)
}

func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	client, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	return client.HeaderByNumber(ctx, number)
}

func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	client, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	return client.SuggestGasTipCap(ctx)
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	client, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	return client.SuggestGasPrice(ctx)
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	client, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	return client.BalanceAt(ctx, account, blockNumber)
}

func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	client, err := c.client(ctx)
	if err != nil {
		return err
	}
	return client.SendTransaction(ctx, tx)
}

func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	client, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	return client.TransactionReceipt(ctx, txHash)
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	client, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	return client.CallContract(ctx, msg, blockNumber)
}

// QueryChainID dials url once and returns the chain id it serves.
func QueryChainID(ctx context.Context, url string) (uint64, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return 0, err
	}
	defer client.Close()
	id, err := client.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	if !id.IsUint64() {
		return 0, errors.New("chain id out of range")
	}
	return id.Uint64(), nil
}
