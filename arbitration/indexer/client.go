// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package indexer queries the subgraph that indexes the dispute contracts.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/arbitration-client/arbitration"
	"github.com/offchainlabs/arbitration-client/util/containers"
)

var ErrNoEndpoint = errors.New("subgraph endpoint not configured")

type Config struct {
	Timeout              time.Duration `koanf:"timeout"`
	ChainParametersCache time.Duration `koanf:"chain-parameters-cache"`
}

var DefaultConfig = Config{
	Timeout:              30 * time.Second,
	ChainParametersCache: 5 * time.Second,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Duration(prefix+".timeout", DefaultConfig.Timeout, "timeout of a subgraph query")
	f.Duration(prefix+".chain-parameters-cache", DefaultConfig.ChainParametersCache, "how long chain parameters are reused before querying again")
}

// Client runs GraphQL queries against the endpoint returned by endpoint,
// which may change at runtime.
type Client struct {
	endpoint   func() string
	httpClient *http.Client
	chainRels  *containers.ExpiringCache[string, []arbitration.ChainParameters]
}

var _ arbitration.Indexer = (*Client)(nil)

func NewClient(config *Config, endpoint func() string) *Client {
	ttl := config.ChainParametersCache
	if ttl <= 0 {
		ttl = DefaultConfig.ChainParametersCache
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: config.Timeout},
		chainRels:  containers.NewExpiringCache[string, []arbitration.ChainParameters](1, ttl),
	}
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// query posts q and decodes the data member of the response into out.
func (c *Client) query(ctx context.Context, q string, out any) error {
	endpoint := c.endpoint()
	if endpoint == "" {
		return ErrNoEndpoint
	}
	body, err := json.Marshal(map[string]string{"query": q})
	if err != nil {
		return err
	}
	log.Trace("subgraph query", "query", strings.Join(strings.Fields(q), " "))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("subgraph returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var result graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding subgraph response: %w", err)
	}
	if len(result.Errors) > 0 {
		msgs := make([]string, len(result.Errors))
		for i, e := range result.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("subgraph query failed: %s", strings.Join(msgs, "; "))
	}
	if len(result.Data) == 0 || string(result.Data) == "null" {
		return errors.New("subgraph returned no data")
	}
	return json.Unmarshal(result.Data, out)
}
