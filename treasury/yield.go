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

	"github.com/blinklabs-io/coffer/types"
)

func (t *Treasury) HasYieldStrategy() bool {
	return t.yield != nil
}

// Invest moves available funds into the yield venue. CEO only, Active only.
func (t *Treasury) Invest(
	ctx context.Context,
	caller types.Address,
	amount uint64,
) error {
	if err := t.roles.Require(types.RoleCeo, caller); err != nil {
		return err
	}
	if t.yield == nil {
		return types.ErrNoYieldStrategyConfigured
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
	if err := t.yield.Invest(ctx, amount); err != nil {
		return fmt.Errorf("yield invest: %w", err)
	}
	return nil
}

// Redeem returns funds from the yield venue to the treasury balance. It is
// allowed while Active or Dissolving so positions can be unwound.
func (t *Treasury) Redeem(
	ctx context.Context,
	caller types.Address,
	amount uint64,
) error {
	if err := t.roles.Require(types.RoleCeo, caller); err != nil {
		return err
	}
	if t.yield == nil {
		return types.ErrNoYieldStrategyConfigured
	}
	if amount == 0 {
		return types.ErrZeroAmount
	}
	if t.lifecycle == types.LifecycleDissolved {
		return types.NewLifecycleError(types.LifecycleDissolving, t.lifecycle)
	}
	position, err := t.YieldPosition(ctx)
	if err != nil {
		return err
	}
	if amount > position {
		return types.NewInsufficientBalanceError(amount, position)
	}
	if err := t.yield.Redeem(ctx, amount); err != nil {
		return fmt.Errorf("yield redeem: %w", err)
	}
	return nil
}

// YieldPosition returns the value held in the yield venue, or zero when no
// strategy is configured
func (t *Treasury) YieldPosition(ctx context.Context) (uint64, error) {
	if t.yield == nil {
		return 0, nil
	}
	position, err := t.yield.Position(ctx)
	if err != nil {
		return 0, fmt.Errorf("yield position: %w", err)
	}
	return position, nil
}

// Unwind redeems the whole yield position. It returns the amount redeemed.
func (t *Treasury) Unwind(ctx context.Context) (uint64, error) {
	position, err := t.YieldPosition(ctx)
	if err != nil || position == 0 {
		return 0, err
	}
	if err := t.yield.Redeem(ctx, position); err != nil {
		return 0, fmt.Errorf("yield redeem: %w", err)
	}
	return position, nil
}
