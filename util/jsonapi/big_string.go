// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package jsonapi

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// BigString is an arbitrary size integer carried as a decimal or hex string.
// Indexer BigInt fields and protocol ids that exceed 64 bits use it.
type BigString struct {
	big.Int
}

func NewBigString(v *big.Int) BigString {
	var b BigString
	if v != nil {
		b.Set(v)
	}
	return b
}

func (b *BigString) UnmarshalJSON(data []byte) error {
	s, ok := unquoteNumber(data)
	if !ok {
		b.SetUint64(0)
		return nil
	}
	if _, ok := b.SetString(s, 0); !ok {
		return fmt.Errorf("invalid integer %q", s)
	}
	return nil
}

func (b BigString) MarshalJSON() ([]byte, error) {
	return []byte("\"" + b.String() + "\""), nil
}

func (b *BigString) Big() *big.Int {
	return new(big.Int).Set(&b.Int)
}

// Uint256String is a token amount. Values that do not fit in 256 bits are
// rejected instead of wrapped.
type Uint256String struct {
	uint256.Int
}

func (u *Uint256String) UnmarshalJSON(data []byte) error {
	s, ok := unquoteNumber(data)
	if !ok {
		u.Clear()
		return nil
	}
	var err error
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		err = u.SetFromHex(s)
	} else {
		err = u.SetFromDecimal(s)
	}
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return nil
}

func (u Uint256String) MarshalJSON() ([]byte, error) {
	return []byte("\"" + u.Dec() + "\""), nil
}
