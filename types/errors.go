// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"errors"
	"fmt"
)

// Error kinds. Structured errors below unwrap to one of these, so callers
// classify with errors.Is and pull context out with errors.As.
var (
	ErrUnauthorized              = errors.New("unauthorized")
	ErrInvalidLifecycleState     = errors.New("invalid lifecycle state")
	ErrPerTxLimitExceeded        = errors.New("per-transaction limit exceeded")
	ErrDailyLimitExceeded        = errors.New("daily limit exceeded")
	ErrRecipientNotWhitelisted   = errors.New("recipient not whitelisted")
	ErrSenderNotWhitelisted      = errors.New("sender not whitelisted")
	ErrInsufficientBalance       = errors.New("insufficient balance")
	ErrZeroAmount                = errors.New("zero amount")
	ErrZeroAddress               = errors.New("zero address")
	ErrAlreadyInitialized        = errors.New("already initialized")
	ErrNotInitialized            = errors.New("not initialized")
	ErrAlreadyClaimed            = errors.New("already claimed")
	ErrNoYieldStrategyConfigured = errors.New("no yield strategy configured")
	ErrQuorumNotReached          = errors.New("quorum not reached")
	ErrProposalNotSucceeded      = errors.New("proposal not succeeded")
	ErrPaused                    = errors.New("treasury paused")
	ErrSharesFrozen              = errors.New("shares frozen")
	ErrReentrantCall             = errors.New("reentrant call")
	ErrProposalNotFound          = errors.New("proposal not found")
	ErrProposalExists            = errors.New("proposal already exists")
	ErrAlreadyVoted              = errors.New("already voted")
	ErrInvalidSplit              = errors.New("invalid ownership split")
	ErrInvalidLimits             = errors.New("invalid limits")
)

type UnauthorizedError struct {
	Required string
	Caller   Address
}

func NewUnauthorizedError(required string, caller Address) UnauthorizedError {
	return UnauthorizedError{
		Required: required,
		Caller:   caller,
	}
}

func (e UnauthorizedError) Error() string {
	return fmt.Sprintf(
		"unauthorized: caller %q is not %s",
		e.Caller,
		e.Required,
	)
}

func (e UnauthorizedError) Unwrap() error {
	return ErrUnauthorized
}

type LifecycleError struct {
	Expected Lifecycle
	Actual   Lifecycle
}

func NewLifecycleError(expected, actual Lifecycle) LifecycleError {
	return LifecycleError{
		Expected: expected,
		Actual:   actual,
	}
}

func (e LifecycleError) Error() string {
	return fmt.Sprintf(
		"invalid lifecycle state: expected %s, got %s",
		e.Expected,
		e.Actual,
	)
}

func (e LifecycleError) Unwrap() error {
	return ErrInvalidLifecycleState
}

type PerTxLimitError struct {
	Attempted uint64
	Limit     uint64
}

func NewPerTxLimitError(attempted, limit uint64) PerTxLimitError {
	return PerTxLimitError{
		Attempted: attempted,
		Limit:     limit,
	}
}

func (e PerTxLimitError) Error() string {
	return fmt.Sprintf(
		"per-transaction limit exceeded: attempted %d, limit %d",
		e.Attempted,
		e.Limit,
	)
}

func (e PerTxLimitError) Unwrap() error {
	return ErrPerTxLimitExceeded
}

type DailyLimitError struct {
	Attempted uint64
	Remaining uint64
}

func NewDailyLimitError(attempted, remaining uint64) DailyLimitError {
	return DailyLimitError{
		Attempted: attempted,
		Remaining: remaining,
	}
}

func (e DailyLimitError) Error() string {
	return fmt.Sprintf(
		"daily limit exceeded: attempted %d, remaining %d",
		e.Attempted,
		e.Remaining,
	)
}

func (e DailyLimitError) Unwrap() error {
	return ErrDailyLimitExceeded
}

type WhitelistError struct {
	kind    error
	Address Address
}

func NewRecipientNotWhitelistedError(addr Address) WhitelistError {
	return WhitelistError{kind: ErrRecipientNotWhitelisted, Address: addr}
}

func NewSenderNotWhitelistedError(addr Address) WhitelistError {
	return WhitelistError{kind: ErrSenderNotWhitelisted, Address: addr}
}

func (e WhitelistError) Error() string {
	return fmt.Sprintf("%s: %q", e.kind, e.Address)
}

func (e WhitelistError) Unwrap() error {
	return e.kind
}

type InsufficientBalanceError struct {
	Requested uint64
	Available uint64
}

func NewInsufficientBalanceError(
	requested uint64,
	available uint64,
) InsufficientBalanceError {
	return InsufficientBalanceError{
		Requested: requested,
		Available: available,
	}
}

func (e InsufficientBalanceError) Error() string {
	return fmt.Sprintf(
		"insufficient balance: requested %d, available %d",
		e.Requested,
		e.Available,
	)
}

func (e InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

type QuorumError struct {
	Participation uint64
	Required      uint64
}

func NewQuorumError(participation, required uint64) QuorumError {
	return QuorumError{
		Participation: participation,
		Required:      required,
	}
}

func (e QuorumError) Error() string {
	return fmt.Sprintf(
		"quorum not reached: participation %d, required %d",
		e.Participation,
		e.Required,
	)
}

func (e QuorumError) Unwrap() error {
	return ErrQuorumNotReached
}
