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

package revenue_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/coffer/access"
	"github.com/blinklabs-io/coffer/adapter"
	"github.com/blinklabs-io/coffer/revenue"
	"github.com/blinklabs-io/coffer/shares"
	"github.com/blinklabs-io/coffer/treasury"
	"github.com/blinklabs-io/coffer/types"
)

const (
	vaultAccount types.Address = "vault"
	ceo          types.Address = "ceo"
	alice        types.Address = "alice"
	bob          types.Address = "bob"
	carol        types.Address = "carol"
)

type fixture struct {
	ledger      *adapter.MemoryLedger
	shares      *shares.Ledger
	treasury    *treasury.Treasury
	distributor *revenue.Distributor
}

func newFixture(
	t *testing.T,
	supply uint64,
	split []shares.Allocation,
) *fixture {
	t.Helper()
	roles, err := access.New("agent", ceo)
	require.NoError(t, err)
	ledger := adapter.NewMemoryLedger(vaultAccount)
	ledger.Mint(vaultAccount, 1_000)
	tr, err := treasury.New(treasury.Config{
		Account: vaultAccount,
		Ledger:  ledger,
		Roles:   roles,
		Limits:  treasury.Limits{MaxPerTx: 10, DailyLimit: 10},
	})
	require.NoError(t, err)
	sh := shares.NewLedger()
	require.NoError(t, sh.Mint(supply, split))
	return &fixture{
		ledger:      ledger,
		shares:      sh,
		treasury:    tr,
		distributor: revenue.New(sh, tr),
	}
}

func fiftyThirtyTwenty(t *testing.T) *fixture {
	return newFixture(t, 1_000, []shares.Allocation{
		{Holder: alice, Bps: 5_000},
		{Holder: bob, Bps: 3_000},
		{Holder: carol, Bps: 2_000},
	})
}

func TestRevenueConservation(t *testing.T) {
	ctx := context.Background()
	f := fiftyThirtyTwenty(t)
	require.NoError(t, f.distributor.DistributeRevenue(ctx, ceo, 100))

	expected := map[types.Address]uint64{alice: 50, bob: 30, carol: 20}
	for holder, amount := range expected {
		assert.Equal(t, amount, f.distributor.PendingRevenue(holder), holder)
	}
	assert.Equal(t, uint64(100), f.treasury.Reserved())

	var paid uint64
	for holder, amount := range expected {
		claimed, err := f.distributor.ClaimRevenue(ctx, holder)
		require.NoError(t, err)
		assert.Equal(t, amount, claimed)
		paid += claimed
		_, err = f.distributor.ClaimRevenue(ctx, holder)
		assert.ErrorIs(t, err, types.ErrZeroAmount)
	}
	assert.Equal(t, uint64(100), paid)
	assert.Equal(t, uint64(0), f.treasury.Reserved())
	assert.Equal(t, uint64(0), f.distributor.Unclaimed())
	bal, _ := f.ledger.BalanceOf(ctx, alice)
	assert.Equal(t, uint64(50), bal)
}

func TestShareTransferCheckpointsBothParties(t *testing.T) {
	ctx := context.Background()
	f := fiftyThirtyTwenty(t)
	require.NoError(t, f.distributor.DistributeRevenue(ctx, ceo, 100))
	require.NoError(t, f.shares.Transfer(alice, bob, 250))

	// Earlier distributions are unaffected by the transfer
	assert.Equal(t, uint64(50), f.distributor.PendingRevenue(alice))
	assert.Equal(t, uint64(30), f.distributor.PendingRevenue(bob))

	require.NoError(t, f.distributor.DistributeRevenue(ctx, ceo, 100))
	assert.Equal(t, uint64(75), f.distributor.PendingRevenue(alice))
	assert.Equal(t, uint64(85), f.distributor.PendingRevenue(bob))
	assert.Equal(t, uint64(40), f.distributor.PendingRevenue(carol))
}

func TestRoundingDustIsNeverPaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3_000, []shares.Allocation{
		{Holder: alice, Bps: 3_334},
		{Holder: bob, Bps: 3_333},
		{Holder: carol, Bps: 3_333},
	})
	require.NoError(t, f.distributor.DistributeRevenue(ctx, ceo, 10))
	var paid uint64
	for _, holder := range []types.Address{alice, bob, carol} {
		amount, err := f.distributor.ClaimRevenue(ctx, holder)
		require.NoError(t, err)
		paid += amount
	}
	assert.Equal(t, uint64(9), paid)
	assert.Equal(t, uint64(1), f.distributor.Unclaimed())
	assert.Equal(t, uint64(1), f.treasury.Reserved())
}

func TestDistributeRevenueGuards(t *testing.T) {
	ctx := context.Background()
	f := fiftyThirtyTwenty(t)
	assert.ErrorIs(
		t,
		f.distributor.DistributeRevenue(ctx, alice, 1),
		types.ErrUnauthorized,
	)
	assert.ErrorIs(
		t,
		f.distributor.DistributeRevenue(ctx, ceo, 0),
		types.ErrZeroAmount,
	)
	assert.ErrorIs(
		t,
		f.distributor.DistributeRevenue(ctx, ceo, 1_001),
		types.ErrInsufficientBalance,
	)
	require.NoError(t, f.treasury.Advance(types.LifecycleDissolving))
	assert.ErrorIs(
		t,
		f.distributor.DistributeRevenue(ctx, ceo, 1),
		types.ErrInvalidLifecycleState,
	)
}

func TestClaimRollsBackOnFailedPayout(t *testing.T) {
	ctx := context.Background()
	f := fiftyThirtyTwenty(t)
	require.NoError(t, f.distributor.DistributeRevenue(ctx, ceo, 100))
	errRail := errors.New("rail down")
	f.ledger.OnTransfer(func(context.Context, types.Address, uint64) error {
		return errRail
	})
	_, err := f.distributor.ClaimRevenue(ctx, alice)
	require.ErrorIs(t, err, errRail)
	assert.Equal(t, uint64(50), f.distributor.PendingRevenue(alice))
	assert.Equal(t, uint64(0), f.distributor.TotalClaimed())
	assert.Equal(t, uint64(100), f.treasury.Reserved())

	f.ledger.OnTransfer(nil)
	amount, err := f.distributor.ClaimRevenue(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), amount)
}

func TestExportRestore(t *testing.T) {
	ctx := context.Background()
	f := fiftyThirtyTwenty(t)
	require.NoError(t, f.distributor.DistributeRevenue(ctx, ceo, 100))
	require.NoError(t, f.shares.Transfer(alice, carol, 100))
	_, err := f.distributor.ClaimRevenue(ctx, bob)
	require.NoError(t, err)

	other := fiftyThirtyTwenty(t)
	other.shares.Restore(f.shares.Export())
	other.distributor.Restore(f.distributor.Export())
	for _, holder := range []types.Address{alice, bob, carol} {
		assert.Equal(
			t,
			f.distributor.PendingRevenue(holder),
			other.distributor.PendingRevenue(holder),
		)
	}
	assert.Equal(t, f.distributor.Export(), other.distributor.Export())
}
