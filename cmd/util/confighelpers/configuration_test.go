// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package confighelpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

type testConf struct {
	File      []string `koanf:"file"`
	String    string   `koanf:"string"`
	EnvPrefix string   `koanf:"env-prefix"`
}

type testConfig struct {
	Conf     testConf      `koanf:"conf"`
	Interval time.Duration `koanf:"interval"`
	Name     string        `koanf:"name"`
	List     []string      `koanf:"list"`
}

func testFlags() *flag.FlagSet {
	f := flag.NewFlagSet("", flag.ContinueOnError)
	f.StringSlice("conf.file", nil, "")
	f.String("conf.string", "", "")
	f.String("conf.env-prefix", "", "")
	f.Duration("interval", time.Second, "")
	f.String("name", "default", "")
	f.StringSlice("list", nil, "")
	return f
}

func parse(t *testing.T, args ...string) testConfig {
	t.Helper()
	k, err := BeginCommonParse(testFlags(), args)
	require.NoError(t, err)
	var c testConfig
	require.NoError(t, EndCommonParse(k, &c))
	return c
}

func TestDefaults(t *testing.T) {
	c := parse(t)
	require.Equal(t, time.Second, c.Interval)
	require.Equal(t, "default", c.Name)
}

func TestLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"from-file","interval":"5s","list":"a,b"}`), 0600))

	c := parse(t, "--conf.file", path)
	require.Equal(t, "from-file", c.Name)
	require.Equal(t, 5*time.Second, c.Interval)
	require.Equal(t, []string{"a", "b"}, c.List)

	c = parse(t, "--conf.file", path, "--conf.string", `{"name":"from-string"}`)
	require.Equal(t, "from-string", c.Name)

	c = parse(t, "--conf.file", path, "--name", "from-flag")
	require.Equal(t, "from-flag", c.Name)
}

func TestEnvironment(t *testing.T) {
	t.Setenv("ARBTEST_NAME", "from-env")
	c := parse(t, "--conf.env-prefix", "ARBTEST")
	require.Equal(t, "from-env", c.Name)
}

func TestUnexpectedArgument(t *testing.T) {
	_, err := BeginCommonParse(testFlags(), []string{"stray"})
	require.Error(t, err)
	_, err = BeginCommonParse(testFlags(), []string{"--version"})
	require.ErrorIs(t, err, ErrVersion)
}
