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

// Package revenue distributes income to shareholders pro-rata using a
// cumulative reward-per-unit accumulator. A distribution costs O(1)
// regardless of how many holders exist; each holder settles lazily on claim
// or whenever their share balance changes.
package revenue

import (
	"context"
	"math/big"

	"github.com/blinklabs-io/coffer/shares"
	"github.com/blinklabs-io/coffer/treasury"
	"github.com/blinklabs-io/coffer/types"
)

// Scale is the fixed-point scale of the reward-per-unit accumulator
var Scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

type Distributor struct {
	shares           *shares.Ledger
	treasury         *treasury.Treasury
	rewardPerUnit    *big.Int
	paidPerUnit      map[types.Address]*big.Int
	pending          map[types.Address]uint64
	totalDistributed uint64
	totalClaimed     uint64
}

// New creates a Distributor and registers it as a balance hook on the share
// ledger
func New(shareLedger *shares.Ledger, tr *treasury.Treasury) *Distributor {
	d := &Distributor{
		shares:        shareLedger,
		treasury:      tr,
		rewardPerUnit: new(big.Int),
		paidPerUnit:   make(map[types.Address]*big.Int),
		pending:       make(map[types.Address]uint64),
	}
	shareLedger.AddHook(d)
	return d
}

// DistributeRevenue earmarks amount of the available treasury balance for
// holders. The amount stays on the treasury ledger account as reserved until
// claimed.
func (d *Distributor) DistributeRevenue(
	ctx context.Context,
	caller types.Address,
	amount uint64,
) error {
	if err := d.treasury.Roles().Require(types.RoleCeo, caller); err != nil {
		return err
	}
	if amount == 0 {
		return types.ErrZeroAmount
	}
	if err := d.treasury.RequireLifecycle(types.LifecycleActive); err != nil {
		return err
	}
	if !d.shares.Minted() {
		return types.ErrNotInitialized
	}
	if err := d.treasury.Reserve(ctx, amount); err != nil {
		return err
	}
	delta := new(big.Int).SetUint64(amount)
	delta.Mul(delta, Scale)
	delta.Quo(delta, new(big.Int).SetUint64(d.shares.TotalSupply()))
	d.rewardPerUnit.Add(d.rewardPerUnit, delta)
	d.totalDistributed += amount
	return nil
}

// PendingRevenue returns what holder could claim right now
func (d *Distributor) PendingRevenue(holder types.Address) uint64 {
	paid, ok := d.paidPerUnit[holder]
	if !ok {
		paid = new(big.Int)
	}
	earned := new(big.Int).Sub(d.rewardPerUnit, paid)
	earned.Mul(earned, new(big.Int).SetUint64(d.shares.BalanceOf(holder)))
	earned.Quo(earned, Scale)
	return d.pending[holder] + earned.Uint64()
}

// BeforeBalanceChange checkpoints the holder's earnings so that a balance
// change never applies to earlier distributions
func (d *Distributor) BeforeBalanceChange(holder types.Address) {
	d.checkpoint(holder)
}

func (d *Distributor) checkpoint(holder types.Address) {
	owed := d.PendingRevenue(holder)
	if owed > 0 {
		d.pending[holder] = owed
	}
	d.paidPerUnit[holder] = new(big.Int).Set(d.rewardPerUnit)
}

// ClaimRevenue pays out everything owed to holder. Claims remain possible
// after dissolution.
func (d *Distributor) ClaimRevenue(
	ctx context.Context,
	holder types.Address,
) (uint64, error) {
	if holder.IsZero() {
		return 0, types.ErrZeroAddress
	}
	amount := d.PendingRevenue(holder)
	if amount == 0 {
		return 0, types.ErrZeroAmount
	}
	prevPending, hadPending := d.pending[holder]
	prevPaid, hadPaid := d.paidPerUnit[holder]
	delete(d.pending, holder)
	d.paidPerUnit[holder] = new(big.Int).Set(d.rewardPerUnit)
	d.totalClaimed += amount
	if err := d.treasury.Payout(ctx, holder, amount); err != nil {
		if hadPending {
			d.pending[holder] = prevPending
		}
		if hadPaid {
			d.paidPerUnit[holder] = prevPaid
		} else {
			delete(d.paidPerUnit, holder)
		}
		d.totalClaimed -= amount
		return 0, err
	}
	d.treasury.Release(amount)
	return amount, nil
}

func (d *Distributor) TotalDistributed() uint64 {
	return d.totalDistributed
}

func (d *Distributor) TotalClaimed() uint64 {
	return d.totalClaimed
}

// Unclaimed is distributed revenue not yet paid out, rounding dust included
func (d *Distributor) Unclaimed() uint64 {
	return d.totalDistributed - d.totalClaimed
}

// RewardPerUnit returns a copy of the accumulator
func (d *Distributor) RewardPerUnit() *big.Int {
	return new(big.Int).Set(d.rewardPerUnit)
}
