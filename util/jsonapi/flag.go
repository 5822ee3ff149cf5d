// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package jsonapi

import (
	"strconv"
	"strings"
)

// Flag is a boolean that also accepts numbers and strings the way loosely
// typed APIs send them: 0, "", "0", "false" and null are false.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	switch strings.ToLower(s) {
	case "", "null", "false", "0":
		*f = false
		return nil
	case "true":
		*f = true
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*f = v != 0
		return nil
	}
	*f = true
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	return strconv.AppendBool(nil, bool(f)), nil
}
