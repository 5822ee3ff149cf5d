// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package genericconf

import (
	"crypto/ecdsa"
	"errors"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	flag "github.com/spf13/pflag"
)

const PASSWORD_NOT_SET = "PASSWORD_NOT_SET"

// WalletConfig names a signing key either directly or as a keystore v3 file.
type WalletConfig struct {
	Pathname   string `koanf:"pathname"`
	Password   string `koanf:"password"`
	PrivateKey string `koanf:"private-key"`
}

func (w *WalletConfig) Pwd() *string {
	if w.Password == PASSWORD_NOT_SET {
		return nil
	}
	return &w.Password
}

var WalletConfigDefault = WalletConfig{
	Pathname:   "",
	Password:   PASSWORD_NOT_SET,
	PrivateKey: "",
}

func WalletConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".pathname", WalletConfigDefault.Pathname, "path to a keystore v3 JSON key file")
	f.String(prefix+".password", WalletConfigDefault.Password, "keystore file passphrase")
	f.String(prefix+".private-key", WalletConfigDefault.PrivateKey, "hex encoded private key")
}

var ErrNoWallet = errors.New("no wallet configured")

// OpenWallet returns the configured key. The private key option wins over the keystore file.
func (w *WalletConfig) OpenWallet() (*ecdsa.PrivateKey, error) {
	if w.PrivateKey != "" {
		return crypto.HexToECDSA(strings.TrimPrefix(w.PrivateKey, "0x"))
	}
	if w.Pathname == "" {
		return nil, ErrNoWallet
	}
	keyJSON, err := os.ReadFile(w.Pathname)
	if err != nil {
		return nil, err
	}
	pwd := w.Pwd()
	if pwd == nil {
		return nil, errors.New("keystore password not set")
	}
	key, err := keystore.DecryptKey(keyJSON, *pwd)
	if err != nil {
		return nil, err
	}
	return key.PrivateKey, nil
}
