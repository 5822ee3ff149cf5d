// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package scheduler

import (
	"errors"
	"time"

	flag "github.com/spf13/pflag"
)

type Config struct {
	ProofSyncInterval   time.Duration `koanf:"proof-sync-interval"`
	ChallengerInterval  time.Duration `koanf:"challenger-interval"`
	MakerInterval       time.Duration `koanf:"maker-interval"`
	LiquidationInterval time.Duration `koanf:"liquidation-interval"`
	VersionInterval     time.Duration `koanf:"version-interval"`
	HeartbeatInterval   time.Duration `koanf:"heartbeat-interval"`
	ItemPause           time.Duration `koanf:"item-pause"`
	Lookback            time.Duration `koanf:"lookback"`
	AuditCacheSize      int           `koanf:"audit-cache-size"`
}

var DefaultConfig = Config{
	ProofSyncInterval:   40 * time.Second,
	ChallengerInterval:  30 * time.Second,
	MakerInterval:       30 * time.Second,
	LiquidationInterval: 50 * time.Second,
	VersionInterval:     60 * time.Second,
	HeartbeatInterval:   30 * time.Second,
	ItemPause:           3 * time.Second,
	Lookback:            time.Hour,
	AuditCacheSize:      4096,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Duration(prefix+".proof-sync-interval", DefaultConfig.ProofSyncInterval, "period of the proof sync loop")
	f.Duration(prefix+".challenger-interval", DefaultConfig.ChallengerInterval, "period of the challenger discovery loop")
	f.Duration(prefix+".maker-interval", DefaultConfig.MakerInterval, "period of the maker discovery loop")
	f.Duration(prefix+".liquidation-interval", DefaultConfig.LiquidationInterval, "period of the liquidation loop")
	f.Duration(prefix+".version-interval", DefaultConfig.VersionInterval, "period of the counterparty version check")
	f.Duration(prefix+".heartbeat-interval", DefaultConfig.HeartbeatInterval, "period of the monitor heartbeat")
	f.Duration(prefix+".item-pause", DefaultConfig.ItemPause, "pause between two items handled in one tick")
	f.Duration(prefix+".lookback", DefaultConfig.Lookback, "overlap of consecutive unrefunded transfer queries")
	f.Int(prefix+".audit-cache-size", DefaultConfig.AuditCacheSize, "number of illegal challenges remembered as already reported")
}

func (c *Config) Validate() error {
	for _, d := range []time.Duration{c.ProofSyncInterval, c.ChallengerInterval, c.MakerInterval, c.LiquidationInterval, c.VersionInterval, c.HeartbeatInterval} {
		if d <= 0 {
			return errors.New("scheduler intervals must be positive")
		}
	}
	if c.ItemPause < 0 || c.Lookback < 0 {
		return errors.New("scheduler pause and lookback must not be negative")
	}
	return nil
}
