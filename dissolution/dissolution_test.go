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

package dissolution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/coffer/access"
	"github.com/blinklabs-io/coffer/adapter"
	"github.com/blinklabs-io/coffer/shares"
	"github.com/blinklabs-io/coffer/treasury"
	"github.com/blinklabs-io/coffer/types"
)

const (
	vaultAccount types.Address = "vault"
	agent        types.Address = "agent"
	ceo          types.Address = "ceo"
	governor     types.Address = "gov"
	alice        types.Address = "alice"
	bob          types.Address = "bob"
	carol        types.Address = "carol"
)

var finalizedAt = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	ledger   *adapter.MemoryLedger
	yield    *adapter.MemoryYield
	shares   *shares.Ledger
	treasury *treasury.Treasury
	machine  *Machine
}

func newFixture(t *testing.T, balance uint64) *fixture {
	t.Helper()
	roles, err := access.New(agent, ceo)
	require.NoError(t, err)
	require.NoError(t, roles.BindGovernor(governor))
	ledger := adapter.NewMemoryLedger(vaultAccount)
	ledger.Mint(vaultAccount, balance)
	yield := adapter.NewMemoryYield(ledger, "venue")
	tr, err := treasury.New(treasury.Config{
		Account: vaultAccount,
		Ledger:  ledger,
		Yield:   yield,
		Roles:   roles,
		Limits:  treasury.Limits{MaxPerTx: 50, DailyLimit: 100},
	})
	require.NoError(t, err)
	sh := shares.NewLedger()
	require.NoError(t, sh.Mint(1_000, []shares.Allocation{
		{Holder: alice, Bps: 5_000},
		{Holder: bob, Bps: 3_000},
		{Holder: carol, Bps: 2_000},
	}))
	return &fixture{
		ledger:   ledger,
		yield:    yield,
		shares:   sh,
		treasury: tr,
		machine: New(tr, sh, func() time.Time {
			return finalizedAt
		}),
	}
}

func TestSettlement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 200)

	require.NoError(t, f.machine.Dissolve(governor))
	assert.True(t, f.treasury.Paused())
	_, err := f.treasury.AgentTransfer(ctx, agent, "mallory", 1)
	assert.ErrorIs(t, err, types.ErrPaused)

	rec, err := f.machine.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), rec.Pool)
	assert.Equal(t, finalizedAt, rec.FinalizedAt)
	assert.Equal(t, types.LifecycleDissolved, f.treasury.Lifecycle())

	expected := []struct {
		holder types.Address
		amount uint64
	}{
		{alice, 100},
		{bob, 60},
		{carol, 40},
	}
	for _, e := range expected {
		amount, err := f.machine.ClaimSettlement(ctx, e.holder)
		require.NoError(t, err)
		assert.Equal(t, e.amount, amount)
		bal, _ := f.ledger.BalanceOf(ctx, e.holder)
		assert.Equal(t, e.amount, bal)
	}
	assert.True(t, f.machine.Complete())

	_, err = f.machine.ClaimSettlement(ctx, alice)
	assert.ErrorIs(t, err, types.ErrAlreadyClaimed)
	assert.ErrorIs(t, f.shares.Transfer(alice, bob, 1), types.ErrSharesFrozen)
	assert.ErrorIs(t, f.shares.Delegate(alice, bob), types.ErrSharesFrozen)
}

func TestLastClaimantAbsorbsRemainder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 101)
	require.NoError(t, f.machine.Dissolve(governor))
	_, err := f.machine.Finalize(ctx)
	require.NoError(t, err)

	var total uint64
	// carol claims first, alice last
	for _, holder := range []types.Address{carol, bob, alice} {
		amount, err := f.machine.ClaimSettlement(ctx, holder)
		require.NoError(t, err)
		total += amount
	}
	assert.Equal(t, uint64(101), total)
	bal, _ := f.ledger.BalanceOf(ctx, alice)
	assert.Equal(t, uint64(51), bal)
	bal, _ = f.ledger.BalanceOf(ctx, vaultAccount)
	assert.Equal(t, uint64(0), bal)
}

func TestLifecycleGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 200)

	assert.ErrorIs(t, f.machine.Dissolve(ceo), types.ErrUnauthorized)
	_, err := f.machine.Finalize(ctx)
	assert.ErrorIs(t, err, types.ErrInvalidLifecycleState)
	_, err = f.machine.ClaimSettlement(ctx, alice)
	assert.ErrorIs(t, err, types.ErrInvalidLifecycleState)

	require.NoError(t, f.machine.Dissolve(governor))
	assert.ErrorIs(t, f.machine.Dissolve(governor), types.ErrInvalidLifecycleState)
	_, err = f.machine.Finalize(ctx)
	require.NoError(t, err)
	_, err = f.machine.Finalize(ctx)
	assert.ErrorIs(t, err, types.ErrInvalidLifecycleState)

	_, err = f.machine.ClaimSettlement(ctx, "stranger")
	assert.ErrorIs(t, err, types.ErrZeroAmount)
	assert.ErrorIs(
		t,
		f.treasury.Deposit(ctx, alice, 1),
		types.ErrInvalidLifecycleState,
	)
}

func TestFinalizeUnwindsYield(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 200)
	require.NoError(t, f.treasury.Invest(ctx, ceo, 150))
	f.yield.Accrue(20)

	require.NoError(t, f.machine.Dissolve(governor))
	rec, err := f.machine.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(220), rec.Pool)
	assert.Equal(t, uint64(170), rec.Redeemed)
	pos, _ := f.yield.Position(ctx)
	assert.Equal(t, uint64(0), pos)
}

type balanceFailingLedger struct {
	*adapter.MemoryLedger
	fail bool
}

func (l *balanceFailingLedger) BalanceOf(
	ctx context.Context,
	account types.Address,
) (uint64, error) {
	if l.fail {
		return 0, errors.New("ledger unavailable")
	}
	return l.MemoryLedger.BalanceOf(ctx, account)
}

func TestFinalizeRetryAfterFailedBalanceRead(t *testing.T) {
	ctx := context.Background()
	roles, err := access.New(agent, ceo)
	require.NoError(t, err)
	require.NoError(t, roles.BindGovernor(governor))
	memLedger := adapter.NewMemoryLedger(vaultAccount)
	memLedger.Mint(vaultAccount, 200)
	ledger := &balanceFailingLedger{MemoryLedger: memLedger}
	yield := adapter.NewMemoryYield(memLedger, "venue")
	tr, err := treasury.New(treasury.Config{
		Account: vaultAccount,
		Ledger:  ledger,
		Yield:   yield,
		Roles:   roles,
		Limits:  treasury.Limits{MaxPerTx: 50, DailyLimit: 100},
	})
	require.NoError(t, err)
	sh := shares.NewLedger()
	require.NoError(t, sh.Mint(1_000, []shares.Allocation{{Holder: alice, Bps: 10_000}}))
	machine := New(tr, sh, func() time.Time { return finalizedAt })

	require.NoError(t, tr.Invest(ctx, ceo, 150))
	require.NoError(t, machine.Dissolve(governor))
	ledger.fail = true
	_, err = machine.Finalize(ctx)
	require.Error(t, err)

	// The position was redeemed but nothing else moved
	assert.Equal(t, types.LifecycleDissolving, tr.Lifecycle())
	pos, _ := yield.Position(ctx)
	assert.Equal(t, uint64(0), pos)
	bal, _ := memLedger.BalanceOf(ctx, vaultAccount)
	assert.Equal(t, uint64(200), bal)
	require.NoError(t, sh.Transfer(alice, bob, 1))

	ledger.fail = false
	rec, err := machine.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), rec.Pool)
	assert.Equal(t, uint64(0), rec.Redeemed)
	assert.Equal(t, types.LifecycleDissolved, tr.Lifecycle())
}

func TestPoolExcludesReserved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 200)
	require.NoError(t, f.treasury.Reserve(ctx, 30))
	require.NoError(t, f.machine.Dissolve(governor))
	rec, err := f.machine.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(170), rec.Pool)
}

func TestExportRestore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 200)
	assert.Equal(t, State{}, f.machine.Export())
	require.NoError(t, f.machine.Dissolve(governor))
	_, err := f.machine.Finalize(ctx)
	require.NoError(t, err)
	_, err = f.machine.ClaimSettlement(ctx, bob)
	require.NoError(t, err)

	other := newFixture(t, 0)
	other.machine.Restore(f.machine.Export())
	assert.Equal(t, f.machine.Export(), other.machine.Export())
	_, err = other.machine.ClaimSettlement(ctx, bob)
	assert.ErrorIs(t, err, types.ErrAlreadyClaimed)
}
