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

// Package treasury implements the spend policy and treasury ledger: the
// per-transaction and rolling daily caps on agent spend, the recipient
// whitelist, the pause flag and lifecycle gating of every value movement.
//
// The treasury balance is always read from the Ledger adapter. Funds
// reserved for unclaimed revenue are excluded from what can be spent.
package treasury

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blinklabs-io/coffer/access"
	"github.com/blinklabs-io/coffer/types"
)

// DailyWindow is the length of the rolling agent spend window
const DailyWindow = 24 * time.Hour

// Ledger is the value-transfer rail. Transfer and TransferFrom move funds out
// of and into the treasury account the adapter is bound to.
type Ledger interface {
	Transfer(ctx context.Context, to types.Address, amount uint64) error
	TransferFrom(ctx context.Context, from types.Address, amount uint64) error
	BalanceOf(ctx context.Context, account types.Address) (uint64, error)
}

// YieldStrategy is an optional external yield venue
type YieldStrategy interface {
	Invest(ctx context.Context, amount uint64) error
	Redeem(ctx context.Context, amount uint64) error
	Position(ctx context.Context) (uint64, error)
}

type Limits struct {
	MaxPerTx   uint64 `yaml:"maxPerTx"   envconfig:"MAX_PER_TX"`
	DailyLimit uint64 `yaml:"dailyLimit" envconfig:"DAILY_LIMIT"`
}

func (l Limits) Validate() error {
	if l.MaxPerTx == 0 || l.DailyLimit == 0 {
		return fmt.Errorf("%w: limits must be non-zero", types.ErrInvalidLimits)
	}
	if l.MaxPerTx > l.DailyLimit {
		return fmt.Errorf(
			"%w: max per tx %d exceeds daily limit %d",
			types.ErrInvalidLimits,
			l.MaxPerTx,
			l.DailyLimit,
		)
	}
	return nil
}

type Config struct {
	// Account is the treasury's own account on the ledger
	Account          types.Address
	Ledger           Ledger
	Yield            YieldStrategy
	Roles            *access.Roles
	Limits           Limits
	WhitelistEnabled bool
	Whitelist        []types.Address
	NowFunc          func() time.Time
}

// Treasury is not safe for concurrent use; the vault serializes access.
type Treasury struct {
	account          types.Address
	ledger           Ledger
	yield            YieldStrategy
	roles            *access.Roles
	limits           Limits
	dailySpent       uint64
	windowStart      time.Time
	whitelistEnabled bool
	whitelist        map[types.Address]bool
	paused           bool
	lifecycle        types.Lifecycle
	reserved         uint64
	nowFunc          func() time.Time
}

func New(cfg Config) (*Treasury, error) {
	if cfg.Account.IsZero() {
		return nil, types.ErrZeroAddress
	}
	if cfg.Ledger == nil {
		return nil, errors.New("treasury: nil ledger adapter")
	}
	if cfg.Roles == nil {
		return nil, errors.New("treasury: nil roles")
	}
	if err := cfg.Limits.Validate(); err != nil {
		return nil, err
	}
	nowFunc := cfg.NowFunc
	if nowFunc == nil {
		nowFunc = time.Now
	}
	t := &Treasury{
		account:          cfg.Account,
		ledger:           cfg.Ledger,
		yield:            cfg.Yield,
		roles:            cfg.Roles,
		limits:           cfg.Limits,
		whitelistEnabled: cfg.WhitelistEnabled,
		whitelist:        make(map[types.Address]bool, len(cfg.Whitelist)),
		lifecycle:        types.LifecycleActive,
		nowFunc:          nowFunc,
		windowStart:      nowFunc(),
	}
	for _, addr := range cfg.Whitelist {
		if addr.IsZero() {
			return nil, types.ErrZeroAddress
		}
		t.whitelist[addr] = true
	}
	return t, nil
}

func (t *Treasury) Account() types.Address {
	return t.account
}

func (t *Treasury) Roles() *access.Roles {
	return t.roles
}

func (t *Treasury) Lifecycle() types.Lifecycle {
	return t.lifecycle
}

func (t *Treasury) Paused() bool {
	return t.paused
}

func (t *Treasury) Limits() Limits {
	return t.limits
}

func (t *Treasury) Reserved() uint64 {
	return t.reserved
}

func (t *Treasury) IsWhitelisted(addr types.Address) bool {
	return t.whitelist[addr]
}

// RequireLifecycle fails unless the treasury is in the expected state
func (t *Treasury) RequireLifecycle(expected types.Lifecycle) error {
	if t.lifecycle != expected {
		return types.NewLifecycleError(expected, t.lifecycle)
	}
	return nil
}

// Advance moves the lifecycle exactly one step forward to next
func (t *Treasury) Advance(next types.Lifecycle) error {
	if next == types.LifecycleActive || t.lifecycle+1 != next {
		expected := next - 1
		if next == types.LifecycleActive {
			expected = t.lifecycle
		}
		return types.NewLifecycleError(expected, t.lifecycle)
	}
	t.lifecycle = next
	return nil
}

// Balance returns the ledger balance of the treasury account
func (t *Treasury) Balance(ctx context.Context) (uint64, error) {
	balance, err := t.ledger.BalanceOf(ctx, t.account)
	if err != nil {
		return 0, fmt.Errorf("ledger balance: %w", err)
	}
	return balance, nil
}

// Available returns the balance that is not reserved for revenue claims
func (t *Treasury) Available(ctx context.Context) (uint64, error) {
	balance, err := t.Balance(ctx)
	if err != nil {
		return 0, err
	}
	if balance < t.reserved {
		return 0, nil
	}
	return balance - t.reserved, nil
}

func (t *Treasury) requireAvailable(ctx context.Context, amount uint64) error {
	available, err := t.Available(ctx)
	if err != nil {
		return err
	}
	if amount > available {
		return types.NewInsufficientBalanceError(amount, available)
	}
	return nil
}

// Reserve earmarks amount of the available balance for revenue claims
func (t *Treasury) Reserve(ctx context.Context, amount uint64) error {
	if err := t.requireAvailable(ctx, amount); err != nil {
		return err
	}
	t.reserved += amount
	return nil
}

// Release returns a previously reserved amount to the available balance
func (t *Treasury) Release(amount uint64) {
	if amount > t.reserved {
		amount = t.reserved
	}
	t.reserved -= amount
}

// Payout sends funds from the treasury with no policy checks. Callers are
// responsible for authorization and accounting.
func (t *Treasury) Payout(
	ctx context.Context,
	to types.Address,
	amount uint64,
) error {
	if err := t.ledger.Transfer(ctx, to, amount); err != nil {
		return fmt.Errorf("ledger transfer: %w", err)
	}
	return nil
}
