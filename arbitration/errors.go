// Copyright 2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package arbitration

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNoSigningKey        = errors.New("signing key not configured")
	ErrNoLiquidatorKey     = errors.New("liquidation key not configured")
	ErrNotPendingLiquidate = errors.New("transaction is not in the pending liquidation list")
	ErrRecordNotFound      = errors.New("dispute record not found")
)

// ConfigurationError is returned when a key or endpoint the operation needs is missing.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string { return "configuration: " + e.Err.Error() }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// ValidationError is returned for malformed or contradictory remote data.
type ValidationError struct {
	Hash   common.Hash
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("validation failed for %v: %s", e.Hash, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// DuplicateError is returned when a matching challenge already exists on chain.
type DuplicateError struct {
	Hash common.Hash
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("challenge for %v already exists", e.Hash)
}

// InsufficientBalanceError is returned by the pre-flight balance check.
type InsufficientBalanceError struct {
	Account  common.Address
	Balance  *big.Int
	Required *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %v: have %v, need %v", e.Account, e.Balance, e.Required)
}

// SubmissionError wraps a signing or broadcast failure. The nonce was not consumed.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string { return "submission failed: " + e.Err.Error() }
func (e *SubmissionError) Unwrap() error { return e.Err }

// LiquidationFailedError is returned when a liquidation transaction reverts.
type LiquidationFailedError struct {
	SourceTxHash common.Hash
	TxHash       common.Hash
}

func (e *LiquidationFailedError) Error() string {
	return fmt.Sprintf("liquidation of %v failed on chain in tx %v", e.SourceTxHash, e.TxHash)
}

// IsRetryable reports whether the next tick may repeat the operation.
func IsRetryable(err error) bool {
	var cfg *ConfigurationError
	var balance *InsufficientBalanceError
	var submission *SubmissionError
	return errors.As(err, &cfg) || errors.As(err, &balance) || errors.As(err, &submission)
}

// IsAlertWorthy reports whether an operator should be notified.
func IsAlertWorthy(err error) bool {
	var balance *InsufficientBalanceError
	var liquidation *LiquidationFailedError
	return errors.As(err, &balance) || errors.As(err, &liquidation)
}
