// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package confighelpers

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/mitchellh/mapstructure"
	flag "github.com/spf13/pflag"
)

var ErrVersion = errors.New("version requested")

// BeginCommonParse layers flag defaults, config files, the JSON config string,
// environment variables and finally explicitly set flags.
func BeginCommonParse(f *flag.FlagSet, args []string) (*koanf.Koanf, error) {
	for _, arg := range args {
		if arg == "--version" || arg == "-v" {
			return nil, ErrVersion
		}
	}
	if err := f.Parse(args); err != nil {
		return nil, err
	}
	if f.NArg() != 0 {
		return nil, fmt.Errorf("unexpected argument: %s", f.Arg(0))
	}

	k := koanf.New(".")
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}
	for _, configFile := range k.Strings("conf.file") {
		if err := k.Load(file.Provider(configFile), json.Parser()); err != nil {
			return nil, fmt.Errorf("error loading local config file %q: %w", configFile, err)
		}
	}
	if configString := k.String("conf.string"); configString != "" {
		if err := k.Load(rawbytes.Provider([]byte(configString)), json.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config string: %w", err)
		}
	}
	if err := loadEnvironmentVariables(k); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}
	// Reload command line parameters to override config values
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("error loading command line parameters: %w", err)
	}
	return k, nil
}

func loadEnvironmentVariables(k *koanf.Koanf) error {
	envPrefix := k.String("conf.env-prefix")
	if envPrefix == "" {
		return nil
	}
	return k.Load(env.Provider(envPrefix+"_", ".", func(s string) string {
		// FOO__BAR -> foo-bar to handle dash in config names
		s = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix+"_")), "__", "-")
		return strings.ReplaceAll(s, "_", ".")
	}), nil)
}

func EndCommonParse(k *koanf.Koanf, config interface{}) error {
	decoderConfig := mapstructure.DecoderConfig{
		ErrorUnused: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		Result:           config,
		WeaklyTypedInput: true,
	}
	return k.UnmarshalWithConf("", config, koanf.UnmarshalConf{DecoderConfig: &decoderConfig})
}

// DumpConfig prints the merged configuration as JSON with the given keys blanked.
func DumpConfig(k *koanf.Koanf, redacted ...string) error {
	overrides := map[string]interface{}{"conf.dump": false}
	for _, key := range redacted {
		if k.Exists(key) {
			overrides[key] = ""
		}
	}
	if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
		return fmt.Errorf("error removing extra parameters before dump: %w", err)
	}
	c, err := k.Marshal(json.Parser())
	if err != nil {
		return fmt.Errorf("unable to marshal config file to JSON: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(c))
	return err
}
