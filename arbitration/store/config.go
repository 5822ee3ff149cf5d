// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package store

import (
	"fmt"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/arbitration-client/util/redisutil"
)

type Config struct {
	Backend     string `koanf:"backend"`
	Directory   string `koanf:"directory"`
	RedisURL    string `koanf:"redis-url"`
	RedisPrefix string `koanf:"redis-prefix"`
}

var DefaultConfig = Config{
	Backend:     "json",
	Directory:   "runtime",
	RedisPrefix: "arbitration-client:",
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".backend", DefaultConfig.Backend, "storage backend for local state (json, leveldb, redis or memory)")
	f.String(prefix+".directory", DefaultConfig.Directory, "directory of the json and leveldb backends")
	f.String(prefix+".redis-url", DefaultConfig.RedisURL, "redis url of the redis backend")
	f.String(prefix+".redis-prefix", DefaultConfig.RedisPrefix, "key prefix of the redis backend")
}

func (c *Config) Validate() error {
	switch c.Backend {
	case "json", "leveldb", "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("redis backend requires a redis url")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Backend)
	}
	return nil
}

// Open opens the named store, for example "config" or "arbitrationDB".
// resolve maps a relative directory to an absolute one.
func Open(c *Config, name string, resolve func(string) string) (*Store, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	dir := c.Directory
	if resolve != nil {
		dir = resolve(dir)
	}
	var storage Storage
	var err error
	switch c.Backend {
	case "json":
		storage, err = OpenJSONFileStorage(filepath.Join(dir, name+".json"))
	case "leveldb":
		storage, err = OpenLevelDBStorage(filepath.Join(dir, name), name)
	case "redis":
		client, clientErr := redisutil.RedisClientFromURL(c.RedisURL)
		if clientErr != nil {
			return nil, clientErr
		}
		storage, err = NewRedisStorage(client, c.RedisPrefix+name+":")
	case "memory":
		storage = NewMemoryStorage()
	}
	if err != nil {
		return nil, err
	}
	return New(storage), nil
}
