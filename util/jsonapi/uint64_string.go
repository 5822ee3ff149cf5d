// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE

package jsonapi

import (
	"fmt"
	"strconv"
	"strings"
)

// Uint64String is a uint64 that JSON marshals as a decimal string and
// unmarshals from either a string (decimal or 0x-hex) or a bare number.
type Uint64String uint64

func (u *Uint64String) UnmarshalJSON(b []byte) error {
	s, ok := unquoteNumber(b)
	if !ok {
		return nil
	}
	value, err := parseUint64(s)
	if err != nil {
		return fmt.Errorf("invalid uint64 %q: %w", s, err)
	}
	*u = Uint64String(value)
	return nil
}

func (u Uint64String) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("\"%d\"", uint64(u))), nil
}

func parseUint64(s string) (uint64, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

// unquoteNumber strips the quotes of a JSON string. ok is false for null and "".
func unquoteNumber(b []byte) (string, bool) {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return "", false
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return "", false
	}
	return s, true
}
