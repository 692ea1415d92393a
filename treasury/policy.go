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

package treasury

import (
	"context"
	"fmt"
	"time"

	"github.com/blinklabs-io/coffer/types"
)

// windowAt returns the daily window as it would be at now: the spent amount
// and the window start. It does not modify the treasury, so rolling the
// window twice at the same instant yields the same result.
func (t *Treasury) windowAt(now time.Time) (uint64, time.Time) {
	if !now.Before(t.windowStart.Add(DailyWindow)) {
		return 0, now
	}
	return t.dailySpent, t.windowStart
}

// rollWindow applies a pending window rollover
func (t *Treasury) rollWindow(now time.Time) {
	t.dailySpent, t.windowStart = t.windowAt(now)
}

// checkAgentTransfer evaluates the agent transfer policy in its fixed order.
// The order decides which error is reported when several checks fail.
func (t *Treasury) checkAgentTransfer(
	ctx context.Context,
	spent uint64,
	to types.Address,
	amount uint64,
) error {
	if t.paused {
		return types.ErrPaused
	}
	if err := t.RequireLifecycle(types.LifecycleActive); err != nil {
		return err
	}
	if amount > t.limits.MaxPerTx {
		return types.NewPerTxLimitError(amount, t.limits.MaxPerTx)
	}
	remaining := t.limits.DailyLimit - min(spent, t.limits.DailyLimit)
	if amount > remaining {
		return types.NewDailyLimitError(amount, remaining)
	}
	if t.whitelistEnabled && !t.whitelist[to] {
		return types.NewRecipientNotWhitelistedError(to)
	}
	return t.requireAvailable(ctx, amount)
}

func checkTransferArgs(to types.Address, amount uint64) error {
	if to.IsZero() {
		return types.ErrZeroAddress
	}
	if amount == 0 {
		return types.ErrZeroAmount
	}
	return nil
}

// AgentTransfer moves funds on behalf of the agent under the spend policy.
// It returns the amount spent in the current window including this transfer.
func (t *Treasury) AgentTransfer(
	ctx context.Context,
	caller types.Address,
	to types.Address,
	amount uint64,
) (uint64, error) {
	if err := t.roles.Require(types.RoleAgent, caller); err != nil {
		return 0, err
	}
	if err := checkTransferArgs(to, amount); err != nil {
		return 0, err
	}
	now := t.nowFunc()
	spent, start := t.windowAt(now)
	if err := t.checkAgentTransfer(ctx, spent, to, amount); err != nil {
		return 0, err
	}
	prevSpent, prevStart := t.dailySpent, t.windowStart
	t.dailySpent, t.windowStart = spent+amount, start
	if err := t.Payout(ctx, to, amount); err != nil {
		t.dailySpent, t.windowStart = prevSpent, prevStart
		return 0, err
	}
	return t.dailySpent, nil
}

// CanTransfer replays the agent transfer checks without changing state. It
// reports whether the transfer would succeed and, if not, the first reason.
func (t *Treasury) CanTransfer(
	ctx context.Context,
	to types.Address,
	amount uint64,
) (bool, error) {
	if err := checkTransferArgs(to, amount); err != nil {
		return false, err
	}
	spent, _ := t.windowAt(t.nowFunc())
	if err := t.checkAgentTransfer(ctx, spent, to, amount); err != nil {
		return false, err
	}
	return true, nil
}

// CeoTransfer moves funds without the per-transaction and daily caps. The
// whitelist still applies.
func (t *Treasury) CeoTransfer(
	ctx context.Context,
	caller types.Address,
	to types.Address,
	amount uint64,
) error {
	if err := t.roles.Require(types.RoleCeo, caller); err != nil {
		return err
	}
	if err := checkTransferArgs(to, amount); err != nil {
		return err
	}
	if err := t.RequireLifecycle(types.LifecycleActive); err != nil {
		return err
	}
	if t.whitelistEnabled && !t.whitelist[to] {
		return types.NewRecipientNotWhitelistedError(to)
	}
	if err := t.requireAvailable(ctx, amount); err != nil {
		return err
	}
	return t.Payout(ctx, to, amount)
}

// Withdraw pays amount to the CEO, ignoring caps and the whitelist
func (t *Treasury) Withdraw(
	ctx context.Context,
	caller types.Address,
	amount uint64,
) error {
	if err := t.roles.Require(types.RoleCeo, caller); err != nil {
		return err
	}
	if amount == 0 {
		return types.ErrZeroAmount
	}
	if err := t.RequireLifecycle(types.LifecycleActive); err != nil {
		return err
	}
	if err := t.requireAvailable(ctx, amount); err != nil {
		return err
	}
	return t.Payout(ctx, caller, amount)
}

// Deposit pulls amount from caller into the treasury
func (t *Treasury) Deposit(
	ctx context.Context,
	caller types.Address,
	amount uint64,
) error {
	if caller.IsZero() {
		return types.ErrZeroAddress
	}
	if amount == 0 {
		return types.ErrZeroAmount
	}
	if t.whitelistEnabled && !t.whitelist[caller] {
		return types.NewSenderNotWhitelistedError(caller)
	}
	if err := t.RequireLifecycle(types.LifecycleActive); err != nil {
		return err
	}
	if err := t.ledger.TransferFrom(ctx, caller, amount); err != nil {
		return fmt.Errorf("ledger transfer from %s: %w", caller, err)
	}
	return nil
}
