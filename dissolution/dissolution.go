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

// Package dissolution winds a treasury down. The lifecycle moves
// Active -> Dissolving -> Dissolved and never back. At finalization the
// available balance becomes the settlement pool, which holders then claim
// pro-rata to their frozen share balance.
package dissolution

import (
	"context"
	"maps"
	"time"

	"github.com/blinklabs-io/coffer/shares"
	"github.com/blinklabs-io/coffer/treasury"
	"github.com/blinklabs-io/coffer/types"
)

// Record is created once at finalization. Only the claim bookkeeping changes
// afterward.
type Record struct {
	Pool         uint64                   `cbor:"1,keyasint" json:"pool"`
	TotalSupply  uint64                   `cbor:"2,keyasint" json:"totalSupply"`
	Claimed      map[types.Address]uint64 `cbor:"3,keyasint" json:"claimed"`
	ClaimedUnits uint64                   `cbor:"4,keyasint" json:"claimedUnits"`
	PaidOut      uint64                   `cbor:"5,keyasint" json:"paidOut"`
	FinalizedAt  time.Time                `cbor:"6,keyasint" json:"finalizedAt"`
	Redeemed     uint64                   `cbor:"7,keyasint" json:"redeemed"`
}

type Machine struct {
	treasury *treasury.Treasury
	shares   *shares.Ledger
	record   *Record
	nowFunc  func() time.Time
}

func New(
	tr *treasury.Treasury,
	shareLedger *shares.Ledger,
	nowFunc func() time.Time,
) *Machine {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &Machine{
		treasury: tr,
		shares:   shareLedger,
		nowFunc:  nowFunc,
	}
}

// Dissolve starts the wind-down and blocks agent transfers immediately
func (m *Machine) Dissolve(caller types.Address) error {
	if err := m.treasury.Roles().Require(types.RoleGovernor, caller); err != nil {
		return err
	}
	if err := m.treasury.RequireLifecycle(types.LifecycleActive); err != nil {
		return err
	}
	if err := m.treasury.Advance(types.LifecycleDissolving); err != nil {
		return err
	}
	m.treasury.Pause()
	return nil
}

// Finalize unwinds any yield position, captures the settlement pool and
// freezes the share ledger. Anyone may call it. The redeem is not undone when
// a later step fails: the funds are back in the treasury account, the
// lifecycle stays Dissolving, and a retry finds no position and counts the
// funds in the pool.
func (m *Machine) Finalize(ctx context.Context) (Record, error) {
	if err := m.treasury.RequireLifecycle(types.LifecycleDissolving); err != nil {
		return Record{}, err
	}
	redeemed, err := m.treasury.Unwind(ctx)
	if err != nil {
		return Record{}, err
	}
	// Revenue already distributed but unclaimed is owed to holders and is
	// not part of the pool
	pool, err := m.treasury.Available(ctx)
	if err != nil {
		return Record{}, err
	}
	if err := m.treasury.Advance(types.LifecycleDissolved); err != nil {
		return Record{}, err
	}
	m.shares.Freeze()
	m.record = &Record{
		Pool:        pool,
		TotalSupply: m.shares.TotalSupply(),
		Claimed:     make(map[types.Address]uint64),
		FinalizedAt: m.nowFunc(),
		Redeemed:    redeemed,
	}
	return m.Record()
}

// Record returns a copy of the dissolution record
func (m *Machine) Record() (Record, error) {
	if m.record == nil {
		return Record{}, types.NewLifecycleError(
			types.LifecycleDissolved,
			m.treasury.Lifecycle(),
		)
	}
	ret := *m.record
	ret.Claimed = maps.Clone(m.record.Claimed)
	return ret, nil
}

// SettlementOf previews what holder would receive from ClaimSettlement. The
// last holder to claim absorbs the rounding remainder so that claims sum to
// the pool exactly.
func (m *Machine) SettlementOf(holder types.Address) (uint64, error) {
	if m.record == nil {
		return 0, types.NewLifecycleError(
			types.LifecycleDissolved,
			m.treasury.Lifecycle(),
		)
	}
	if _, ok := m.record.Claimed[holder]; ok {
		return 0, types.ErrAlreadyClaimed
	}
	units := m.shares.BalanceOf(holder)
	if units == 0 {
		return 0, nil
	}
	if m.record.ClaimedUnits+units == m.record.TotalSupply {
		return m.record.Pool - m.record.PaidOut, nil
	}
	return types.MulDiv(m.record.Pool, units, m.record.TotalSupply), nil
}

// ClaimSettlement pays holder its share of the pool. Each holder claims once.
func (m *Machine) ClaimSettlement(
	ctx context.Context,
	holder types.Address,
) (uint64, error) {
	if holder.IsZero() {
		return 0, types.ErrZeroAddress
	}
	amount, err := m.SettlementOf(holder)
	if err != nil {
		return 0, err
	}
	units := m.shares.BalanceOf(holder)
	if units == 0 {
		return 0, types.ErrZeroAmount
	}
	m.record.Claimed[holder] = amount
	m.record.ClaimedUnits += units
	m.record.PaidOut += amount
	if amount > 0 {
		if err := m.treasury.Payout(ctx, holder, amount); err != nil {
			delete(m.record.Claimed, holder)
			m.record.ClaimedUnits -= units
			m.record.PaidOut -= amount
			return 0, err
		}
	}
	return amount, nil
}

// Complete reports whether every share has been settled
func (m *Machine) Complete() bool {
	return m.record != nil && m.record.ClaimedUnits == m.record.TotalSupply
}

type State struct {
	Record *Record `cbor:"1,keyasint"`
}

func (m *Machine) Export() State {
	if m.record == nil {
		return State{}
	}
	rec, _ := m.Record()
	return State{Record: &rec}
}

func (m *Machine) Restore(s State) {
	if s.Record == nil {
		m.record = nil
		return
	}
	rec := *s.Record
	rec.Claimed = make(map[types.Address]uint64, len(s.Record.Claimed))
	maps.Copy(rec.Claimed, s.Record.Claimed)
	m.record = &rec
}
