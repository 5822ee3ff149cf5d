// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package makerapi talks to the counterparty service: candidate transfers,
// proof material, proof requests, challenge records and the protocol version.
package makerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/arbitration-client/arbitration"
)

var ErrNoEndpoint = errors.New("maker api endpoint not configured")

type Config struct {
	Timeout time.Duration `koanf:"timeout"`
}

var DefaultConfig = Config{
	Timeout: 30 * time.Second,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Duration(prefix+".timeout", DefaultConfig.Timeout, "timeout of a counterparty api request")
}

type Client struct {
	endpoint   func() string
	httpClient *http.Client
}

var _ arbitration.Reporter = (*Client)(nil)

func NewClient(config *Config, endpoint func() string) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	base := strings.TrimRight(c.endpoint(), "/")
	if base == "" {
		return ErrNoEndpoint
	}
	return c.doURL(ctx, method, base+path, body, out)
}

// doURL sends the request and decodes the data member of the envelope into out.
func (c *Client) doURL(ctx context.Context, method, target string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s returned status %d: %s", method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding %s response: %w", req.URL.Path, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// UnreimbursedTransactions lists candidate transfers made between start and end.
func (c *Client) UnreimbursedTransactions(ctx context.Context, start, end time.Time) ([]arbitration.DisputeCandidate, error) {
	query := url.Values{}
	query.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	query.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	var list []arbitration.DisputeCandidate
	if err := c.do(ctx, http.MethodGet, "/transaction/unreimbursedTransactions?"+query.Encode(), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// TransactionStatus returns the counterparty status code of a source transfer.
func (c *Client) TransactionStatus(ctx context.Context, hash common.Hash) (int, error) {
	var status json.Number
	if err := c.do(ctx, http.MethodGet, "/transaction/status/"+hashPath(hash), nil, &status); err != nil {
		return 0, err
	}
	if status == "" {
		return 0, nil
	}
	v, err := status.Int64()
	if err != nil {
		return 0, fmt.Errorf("invalid status %q: %w", status, err)
	}
	return int(v), nil
}

func (c *Client) ChallengerProofs(ctx context.Context, hash common.Hash) ([]arbitration.ChallengerProof, error) {
	var list []arbitration.ChallengerProof
	if err := c.do(ctx, http.MethodGet, "/proof/verifyChallengeSourceParams/"+hashPath(hash), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) MakerProofs(ctx context.Context, hash common.Hash) ([]arbitration.MakerProof, error) {
	var list []arbitration.MakerProof
	if err := c.do(ctx, http.MethodGet, "/proof/verifyChallengeDestParams/"+hashPath(hash), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// AskProof asks the counterparty to generate destination proof material.
func (c *Client) AskProof(ctx context.Context, hash common.Hash) error {
	var ignored json.RawMessage
	return c.do(ctx, http.MethodPost, "/proof/makerAskProof", map[string]string{"hash": hashPath(hash)}, &ignored)
}

// ChallengeRecord fetches the record the counterparty holds for a dispute,
// or nil if it has none.
func (c *Client) ChallengeRecord(ctx context.Context, hash common.Hash) (*arbitration.DisputeRecord, error) {
	var record *arbitration.DisputeRecord
	if err := c.do(ctx, http.MethodGet, "/challenge/record/"+hashPath(hash), nil, &record); err != nil {
		return nil, err
	}
	return record, nil
}

// ReportRecord posts the local record, including every submitted hash.
func (c *Client) ReportRecord(ctx context.Context, hash common.Hash, record *arbitration.DisputeRecord) error {
	var ignored json.RawMessage
	return c.do(ctx, http.MethodPost, "/challenge/record/"+hashPath(hash), record, &ignored)
}

type ClientConfig struct {
	SubgraphEndpoint string `json:"subgraphEndpoint"`
}

// ClientConfig fetches the settings the counterparty publishes for clients
// from the given endpoint, which need not be the active one yet.
func (c *Client) ClientConfig(ctx context.Context, endpoint string) (*ClientConfig, error) {
	var config ClientConfig
	if err := c.doURL(ctx, http.MethodGet, strings.TrimRight(endpoint, "/")+"/config/arbitration-client", nil, &config); err != nil {
		return nil, err
	}
	if config.SubgraphEndpoint == "" {
		return nil, errors.New("counterparty did not publish a subgraph endpoint")
	}
	return &config, nil
}

// Version returns the protocol version the counterparty runs.
func (c *Client) Version(ctx context.Context) (string, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/version", nil, &raw); err != nil {
		return "", err
	}
	var version string
	if err := json.Unmarshal(raw, &version); err == nil {
		return version, nil
	}
	var wrapped struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return "", fmt.Errorf("unexpected version payload %s", string(raw))
	}
	return wrapped.Version, nil
}

// Heartbeat pings a monitor URL.
func (c *Client) Heartbeat(ctx context.Context, monitorURL string) error {
	return c.doURL(ctx, http.MethodGet, monitorURL, nil, nil)
}

func hashPath(hash common.Hash) string {
	return strings.ToLower(hash.Hex())
}
