// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package liveconfig

import (
	"github.com/offchainlabs/arbitration-client/util/jsonapi"
)

// Patch is a partial RuntimeConfig update. Empty fields leave the current
// value in place.
type Patch struct {
	PrivateKey           string               `json:"privateKey"`
	LiquidatePrivateKey  string               `json:"liquidatePrivateKey"`
	SecretKey            string               `json:"secretKey"`
	RPC                  string               `json:"rpc"`
	Debug                *jsonapi.Flag        `json:"debug"`
	MakerAPIEndpoint     string               `json:"makerApiEndpoint"`
	SubgraphEndpoint     string               `json:"subgraphEndpoint"`
	MakerList            []string             `json:"makerList"`
	WatchWalletList      []string             `json:"watchWalletList"`
	GasLimit             jsonapi.Uint64String `json:"gasLimit"`
	MaxFeePerGas         string               `json:"maxFeePerGas"`
	MaxPriorityFeePerGas string               `json:"maxPriorityFeePerGas"`
	TelegramToken        string               `json:"telegramToken"`
	TelegramChatID       string               `json:"telegramChatId"`
	MonitorURL           string               `json:"monitorUrl"`
}

func setIf(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// Apply returns base with the patch applied.
func (p *Patch) Apply(base RuntimeConfig) RuntimeConfig {
	next := base
	setIf(&next.PrivateKey, p.PrivateKey)
	setIf(&next.LiquidatePrivateKey, p.LiquidatePrivateKey)
	setIf(&next.SecretKey, p.SecretKey)
	setIf(&next.RPC, p.RPC)
	setIf(&next.MakerAPIEndpoint, p.MakerAPIEndpoint)
	setIf(&next.SubgraphEndpoint, p.SubgraphEndpoint)
	setIf(&next.MaxFeePerGas, p.MaxFeePerGas)
	setIf(&next.MaxPriorityFeePerGas, p.MaxPriorityFeePerGas)
	setIf(&next.TelegramToken, p.TelegramToken)
	setIf(&next.TelegramChatID, p.TelegramChatID)
	setIf(&next.MonitorURL, p.MonitorURL)
	if p.Debug != nil {
		next.Debug = bool(*p.Debug)
	}
	if p.MakerList != nil {
		next.MakerList = append([]string(nil), p.MakerList...)
	}
	if p.WatchWalletList != nil {
		next.WatchWalletList = append([]string(nil), p.WatchWalletList...)
	}
	if p.GasLimit != 0 {
		next.GasLimit = uint64(p.GasLimit)
	}
	return next
}

// PatchFrom turns the non-empty fields of config into a patch.
func PatchFrom(config *RuntimeConfig) *Patch {
	p := &Patch{
		PrivateKey:           config.PrivateKey,
		LiquidatePrivateKey:  config.LiquidatePrivateKey,
		SecretKey:            config.SecretKey,
		RPC:                  config.RPC,
		MakerAPIEndpoint:     config.MakerAPIEndpoint,
		SubgraphEndpoint:     config.SubgraphEndpoint,
		MakerList:            config.MakerList,
		WatchWalletList:      config.WatchWalletList,
		GasLimit:             jsonapi.Uint64String(config.GasLimit),
		MaxFeePerGas:         config.MaxFeePerGas,
		MaxPriorityFeePerGas: config.MaxPriorityFeePerGas,
		TelegramToken:        config.TelegramToken,
		TelegramChatID:       config.TelegramChatID,
		MonitorURL:           config.MonitorURL,
	}
	if config.Debug {
		debug := jsonapi.Flag(true)
		p.Debug = &debug
	}
	return p
}
