// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package util

import (
	"fmt"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/exp"
	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/arbitration-client/cmd/genericconf"
)

type MetricsOpts struct {
	Metrics       bool                            `koanf:"metrics"`
	MetricsServer genericconf.MetricsServerConfig `koanf:"metrics-server"`
}

var MetricsOptsDefault = MetricsOpts{
	Metrics:       false,
	MetricsServer: genericconf.MetricsServerConfigDefault,
}

func MetricsOptsAddOptions(f *flag.FlagSet) {
	f.Bool("metrics", MetricsOptsDefault.Metrics, "enable metrics")
	genericconf.MetricsServerConfigAddOptions("metrics-server", f)
}

// StartMetrics serves the registered counters when --metrics is given.
func StartMetrics(opts *MetricsOpts) error {
	if !opts.Metrics {
		return nil
	}
	if !metrics.Enabled {
		return fmt.Errorf("metrics must be enabled via command line by adding --metrics, json config has no effect")
	}
	go metrics.CollectProcessMetrics(opts.MetricsServer.UpdateInterval)
	exp.Setup(fmt.Sprintf("%v:%v", opts.MetricsServer.Addr, opts.MetricsServer.Port))
	return nil
}
