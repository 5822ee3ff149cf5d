// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package notify delivers operator alerts.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/arbitration-client/arbitration"
)

type Config struct {
	APIURL  string        `koanf:"api-url"`
	Timeout time.Duration `koanf:"timeout"`
}

var DefaultConfig = Config{
	APIURL:  "https://api.telegram.org",
	Timeout: 10 * time.Second,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".api-url", DefaultConfig.APIURL, "base url of the telegram bot api")
	f.Duration(prefix+".timeout", DefaultConfig.Timeout, "timeout of a notification request")
}

// Credentials are read on every send so runtime changes apply immediately.
type Credentials func() (token string, chatID string)

type Telegram struct {
	config      *Config
	credentials Credentials
	httpClient  *http.Client
}

var _ arbitration.Notifier = (*Telegram)(nil)

func NewTelegram(config *Config, credentials Credentials) *Telegram {
	return &Telegram{
		config:      config,
		credentials: credentials,
		httpClient:  &http.Client{Timeout: config.Timeout},
	}
}

type sendMessage struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	DisableNotification bool   `json:"disable_notification"`
	ParseMode           string `json:"parse_mode"`
}

// Notify posts text to the configured chat. Without credentials it only logs.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	token, chatID := t.credentials()
	if token == "" || chatID == "" {
		log.Debug("telegram not configured, dropping notification", "text", text)
		return nil
	}
	body, err := json.Marshal(&sendMessage{ChatID: chatID, Text: text})
	if err != nil {
		return err
	}
	target := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.config.APIURL, "/"), token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.httpClient.Do(req)
	if err != nil {
		// The url carries the bot token.
		return fmt.Errorf("sending telegram message: %w", redact(err, token))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redact(err error, secret string) error {
	return &redactedError{msg: strings.ReplaceAll(err.Error(), secret, "***"), err: err}
}

// LogNotifier writes notifications to the log only.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, text string) error {
	log.Warn("notification", "text", text)
	return nil
}
