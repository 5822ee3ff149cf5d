// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package liveconfig

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/offchainlabs/arbitration-client/arbitration"
)

const LocalPath = "/local"

var ErrSecretKeyRequired = errors.New("a secret key is required to persist private keys")

// snapshot is the stored form of a RuntimeConfig. Keys are kept only as
// keystore v3 JSON encrypted under the secret key.
type snapshot struct {
	RuntimeConfig
	EncryptedPrivateKey          json.RawMessage `json:"encryptPrivateKey,omitempty"`
	EncryptedLiquidatePrivateKey json.RawMessage `json:"encryptLiquidatePrivateKey,omitempty"`
}

type Persister struct {
	store arbitration.StateStore
	// scrypt cost parameters, lowered in tests.
	scryptN int
	scryptP int
}

func NewPersister(store arbitration.StateStore) *Persister {
	return &Persister{store: store, scryptN: keystore.LightScryptN, scryptP: keystore.LightScryptP}
}

func (p *Persister) encrypt(hexKey, secret string) (json.RawMessage, error) {
	if hexKey == "" {
		return nil, nil
	}
	if secret == "" {
		return nil, ErrSecretKeyRequired
	}
	key, err := parseKey(hexKey)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	return keystore.EncryptKey(&keystore.Key{
		Id:         id,
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}, secret, p.scryptN, p.scryptP)
}

func decrypt(encrypted json.RawMessage, secret string) (string, error) {
	if len(encrypted) == 0 {
		return "", nil
	}
	key, err := keystore.DecryptKey(encrypted, secret)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(crypto.FromECDSA(key.PrivateKey)), nil
}

// Save stores config under /local.
func (p *Persister) Save(ctx context.Context, config *RuntimeConfig) error {
	snap := snapshot{RuntimeConfig: config.Redacted()}
	var err error
	if snap.EncryptedPrivateKey, err = p.encrypt(config.PrivateKey, config.SecretKey); err != nil {
		return errors.Wrap(err, "encrypting private key")
	}
	if snap.EncryptedLiquidatePrivateKey, err = p.encrypt(config.LiquidatePrivateKey, config.SecretKey); err != nil {
		return errors.Wrap(err, "encrypting liquidation key")
	}
	return p.store.Set(ctx, LocalPath, &snap)
}

// Load reads the stored settings. Keys are only restored when secret opens
// them; without a secret they are left out with a warning.
func (p *Persister) Load(ctx context.Context, secret string) (*RuntimeConfig, bool, error) {
	var snap snapshot
	found, err := p.store.Get(ctx, LocalPath, &snap)
	if err != nil || !found {
		return nil, false, err
	}
	config := snap.RuntimeConfig
	config.SecretKey = secret
	if secret == "" {
		if len(snap.EncryptedPrivateKey) > 0 || len(snap.EncryptedLiquidatePrivateKey) > 0 {
			log.Warn("stored private keys not loaded, no secret key given")
		}
		return &config, true, nil
	}
	if config.PrivateKey, err = decrypt(snap.EncryptedPrivateKey, secret); err != nil {
		return nil, false, errors.Wrap(err, "decrypting private key")
	}
	if config.LiquidatePrivateKey, err = decrypt(snap.EncryptedLiquidatePrivateKey, secret); err != nil {
		return nil, false, errors.Wrap(err, "decrypting liquidation key")
	}
	return &config, true, nil
}
