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

package coffer_test

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/coffer"
	"github.com/blinklabs-io/coffer/adapter"
	"github.com/blinklabs-io/coffer/clock"
	"github.com/blinklabs-io/coffer/event"
	"github.com/blinklabs-io/coffer/governance"
	"github.com/blinklabs-io/coffer/shares"
	"github.com/blinklabs-io/coffer/treasury"
	"github.com/blinklabs-io/coffer/types"
)

const (
	agent  types.Address = "agent"
	ceo    types.Address = "ceo"
	alice  types.Address = "alice"
	bob    types.Address = "bob"
	carol  types.Address = "carol"
	vendor types.Address = "vendor"
)

type testVault struct {
	vault  *coffer.Vault
	ledger *adapter.MemoryLedger
	clock  *clock.ManualClock
	reg    *prometheus.Registry
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testGenesis() coffer.Genesis {
	return coffer.Genesis{
		Agent:  agent,
		Ceo:    ceo,
		Limits: treasury.Limits{MaxPerTx: 100, DailyLimit: 250},
		Split: []shares.Allocation{
			{Holder: alice, Bps: 5_000},
			{Holder: bob, Bps: 3_000},
			{Holder: carol, Bps: 2_000},
		},
		TotalSupply:  1_000,
		VotingDelay:  1,
		VotingPeriod: 10,
	}
}

func newTestVault(
	t *testing.T,
	opts ...coffer.ConfigOptionFunc,
) *testVault {
	t.Helper()
	ledger := adapter.NewMemoryLedger(coffer.DefaultTreasuryAccount)
	ledger.Mint(coffer.DefaultTreasuryAccount, 1_000)
	clk := clock.NewManualClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	reg := prometheus.NewRegistry()
	cfgOpts := []coffer.ConfigOptionFunc{
		coffer.WithGenesis(testGenesis()),
		coffer.WithLedger(ledger),
		coffer.WithClock(clk),
		coffer.WithPrometheusRegistry(reg),
	}
	cfgOpts = append(cfgOpts, opts...)
	v, err := coffer.New(coffer.NewConfig(cfgOpts...))
	require.NoError(t, err)
	t.Cleanup(v.Close)
	return &testVault{
		vault:  v,
		ledger: ledger,
		clock:  clk,
		reg:    reg,
	}
}

func drain(ch <-chan event.Event) []event.OperationEvent {
	var ret []event.OperationEvent
	for {
		select {
		case evt := <-ch:
			ret = append(ret, evt.Data.(event.OperationEvent))
		default:
			return ret
		}
	}
}

func TestVaultLifecycle(t *testing.T) {
	tv := newTestVault(t)
	v := tv.vault
	ctx := context.Background()
	_, opCh := v.EventBus().Subscribe(event.OperationEventType)
	_, lifecycleCh := v.EventBus().Subscribe(event.LifecycleEventType)

	// Daily window: 100 + 100 + 50 fills the 250 limit
	for _, amount := range []uint64{100, 100, 50} {
		_, err := v.AgentTransfer(ctx, agent, vendor, amount)
		require.NoError(t, err)
	}
	_, err := v.AgentTransfer(ctx, agent, vendor, 1)
	var dailyErr types.DailyLimitError
	require.ErrorAs(t, err, &dailyErr)
	assert.Equal(t, uint64(0), dailyErr.Remaining)
	assert.InDelta(
		t,
		1,
		metricValue(t, tv.reg, "coffer_vault_rejected_total", map[string]string{
			"operation": coffer.OpAgentTransfer,
			"reason":    "daily_limit",
		}),
		0,
	)

	// Revenue 100 split 50/30/20, alice claims now
	require.NoError(t, v.DistributeRevenue(ctx, ceo, 100))
	paid, err := v.ClaimRevenue(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), paid)

	// Owners vote to dissolve
	id, err := v.Propose(ctx, alice, governance.ActionDissolve, "", "wind down")
	require.NoError(t, err)
	tv.clock.AdvanceHeight(1)
	_, err = v.CastVote(ctx, alice, id, governance.SupportFor)
	require.NoError(t, err)
	_, err = v.Execute(ctx, governance.ActionDissolve, "", "wind down")
	require.ErrorIs(t, err, types.ErrProposalNotSucceeded)
	_, err = v.CastVote(ctx, bob, id, governance.SupportFor)
	require.NoError(t, err)
	_, err = v.Execute(ctx, governance.ActionDissolve, "", "wind down")
	require.NoError(t, err)

	status, err := v.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.LifecycleDissolving, status.Lifecycle)
	assert.True(t, status.Paused)
	_, err = v.AgentTransfer(ctx, agent, vendor, 1)
	require.ErrorIs(t, err, types.ErrPaused)

	// 1000 - 250 spent - 50 claimed, less 50 still owed to bob and carol
	rec, err := v.Finalize(ctx, vendor)
	require.NoError(t, err)
	assert.Equal(t, uint64(650), rec.Pool)
	err = v.TransferShares(ctx, alice, bob, 1)
	require.ErrorIs(t, err, types.ErrSharesFrozen)

	expected := map[types.Address]uint64{alice: 325, bob: 195, carol: 130}
	for holder, want := range expected {
		got, err := v.ClaimSettlement(ctx, holder)
		require.NoError(t, err)
		assert.Equal(t, want, got, holder)
	}
	_, err = v.ClaimSettlement(ctx, alice)
	require.ErrorIs(t, err, types.ErrAlreadyClaimed)
	for _, holder := range []types.Address{bob, carol} {
		_, err := v.ClaimRevenue(ctx, holder)
		require.NoError(t, err)
	}
	balance, err := tv.ledger.BalanceOf(ctx, coffer.DefaultTreasuryAccount)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance)
	assert.InDelta(t, 0, metricValue(t, tv.reg, "coffer_vault_balance", nil), 0)
	assert.InDelta(
		t,
		float64(types.LifecycleDissolved),
		metricValue(t, tv.reg, "coffer_vault_lifecycle", nil),
		0,
	)
	assert.InDelta(
		t,
		650,
		metricValue(t, tv.reg, "coffer_vault_transferred_total", map[string]string{
			"kind": "settlement",
		}),
		0,
	)

	// Journal sequences are contiguous from 1
	ops := drain(opCh)
	require.NotEmpty(t, ops)
	for i, op := range ops {
		assert.Equal(t, uint64(i+1), op.Sequence)
	}
	assert.Equal(t, v.Sequence(), ops[len(ops)-1].Sequence)
	var names []string
	for _, op := range ops {
		names = append(names, op.Operation)
	}
	assert.Contains(t, names, coffer.OpDissolve)

	// Lifecycle notifications arrive through the async worker pool, in any
	// order
	var changes []types.Lifecycle
	for range 2 {
		select {
		case evt := <-lifecycleCh:
			changes = append(changes, evt.Data.(event.LifecycleEvent).To)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for lifecycle notification")
		}
	}
	assert.ElementsMatch(
		t,
		[]types.Lifecycle{types.LifecycleDissolving, types.LifecycleDissolved},
		changes,
	)
	assert.Contains(t, names, coffer.OpFinalize)
	assert.Equal(t, coffer.OpClaimRevenue, names[len(names)-1])
}

// metricValue sums the counter or gauge samples of name whose labels
// include every given pair
func metricValue(
	t *testing.T,
	reg *prometheus.Registry,
	name string,
	labels map[string]string,
) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			have := make(map[string]string)
			for _, lp := range m.GetLabel() {
				have[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if have[k] != v {
					continue metrics
				}
			}
			if m.GetCounter() != nil {
				total += m.GetCounter().GetValue()
			}
			if m.GetGauge() != nil {
				total += m.GetGauge().GetValue()
			}
		}
	}
	return total
}

func TestVaultReplaceCeo(t *testing.T) {
	tv := newTestVault(t)
	v := tv.vault
	ctx := context.Background()
	const newCeo types.Address = "new-ceo"

	// Only the governor may call the entry point directly
	err := v.ReplaceCeo(ctx, ceo, newCeo)
	var authErr types.UnauthorizedError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "governor", authErr.Required)

	id, err := v.Propose(ctx, bob, governance.ActionReplaceCeo, newCeo, "rotate")
	require.NoError(t, err)
	tv.clock.AdvanceHeight(1)
	_, err = v.CastVote(ctx, alice, id, governance.SupportFor)
	require.NoError(t, err)
	_, err = v.CastVote(ctx, carol, id, governance.SupportAgainst)
	require.NoError(t, err)
	// 700 participating meets the 510 quorum, 500 for beats 200 against
	_, err = v.Execute(ctx, governance.ActionReplaceCeo, newCeo, "rotate")
	require.NoError(t, err)

	disc, err := v.Discovery(ctx)
	require.NoError(t, err)
	assert.Equal(t, newCeo, disc.Ceo)
	require.Error(t, v.SetPaused(ctx, ceo, true))
	require.NoError(t, v.SetPaused(ctx, newCeo, true))

	view, err := v.Proposal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, governance.StateExecuted, view.State)
	// Executing twice is refused
	_, err = v.Execute(ctx, governance.ActionReplaceCeo, newCeo, "rotate")
	require.ErrorIs(t, err, types.ErrProposalNotSucceeded)
}

func TestVaultQuorumNotReached(t *testing.T) {
	tv := newTestVault(t)
	v := tv.vault
	ctx := context.Background()
	id, err := v.Propose(ctx, bob, governance.ActionDissolve, "", "")
	require.NoError(t, err)
	tv.clock.AdvanceHeight(1)
	_, err = v.CastVote(ctx, bob, id, governance.SupportFor)
	require.NoError(t, err)
	tv.clock.AdvanceHeight(10)
	_, err = v.Execute(ctx, governance.ActionDissolve, "", "")
	var quorumErr types.QuorumError
	require.ErrorAs(t, err, &quorumErr)
	assert.Equal(t, uint64(300), quorumErr.Participation)
	assert.Equal(t, uint64(510), quorumErr.Required)
}

func TestVaultReentrantCall(t *testing.T) {
	tv := newTestVault(t)
	v := tv.vault
	ctx := context.Background()
	var innerErr error
	tv.ledger.OnTransfer(func(ctx context.Context, _ types.Address, _ uint64) error {
		_, innerErr = v.AgentTransfer(ctx, agent, vendor, 10)
		return innerErr
	})
	_, err := v.AgentTransfer(ctx, agent, vendor, 10)
	require.ErrorIs(t, err, types.ErrReentrantCall)
	require.ErrorIs(t, innerErr, types.ErrReentrantCall)

	// The failed transfer left no trace in the daily window
	status, err := v.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), status.SpentToday)
	assert.Equal(t, uint64(1_000), status.Balance)
	assert.Equal(t, uint64(0), v.Sequence())
}

func TestVaultReentrantCallFreshContext(t *testing.T) {
	tv := newTestVault(t)
	v := tv.vault
	ctx := context.Background()
	var transferErr, statusErr error
	var seq uint64
	tv.ledger.OnTransfer(func(context.Context, types.Address, uint64) error {
		// A callback that drops the vault's ctx is still refused
		_, transferErr = v.AgentTransfer(context.Background(), agent, vendor, 10)
		_, statusErr = v.Status(context.Background())
		seq = v.Sequence()
		return nil
	})
	done := make(chan error, 1)
	go func() {
		_, err := v.AgentTransfer(ctx, agent, vendor, 10)
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("vault deadlocked on a re-entrant call")
	}
	require.ErrorIs(t, transferErr, types.ErrReentrantCall)
	require.ErrorIs(t, statusErr, types.ErrReentrantCall)
	assert.Equal(t, uint64(0), seq)

	// Only the outer transfer was applied, and the vault accepts calls again
	tv.ledger.OnTransfer(nil)
	status, err := v.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), status.SpentToday)
	assert.Equal(t, uint64(990), status.Balance)
	assert.Equal(t, uint64(1), v.Sequence())
}

func TestVaultConcurrentAgentTransfers(t *testing.T) {
	tv := newTestVault(t)
	v := tv.vault
	ctx := context.Background()
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, err := v.AgentTransfer(ctx, agent, vendor, 10)
				// The vault is busy inside another caller's ledger call
				if errors.Is(err, types.ErrReentrantCall) {
					runtime.Gosched()
					continue
				}
				if err == nil {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
				return
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 25, accepted)
	status, err := v.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), status.SpentToday)
	assert.Equal(t, uint64(750), status.Balance)
	assert.Equal(t, map[types.Address]uint64{
		coffer.DefaultTreasuryAccount: 750,
		vendor:                        250,
	}, tv.ledger.Balances())
}

func TestVaultCanTransferPreview(t *testing.T) {
	tv := newTestVault(t)
	v := tv.vault
	ctx := context.Background()
	ok, err := v.CanTransferPreview(ctx, vendor, 100)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = v.CanTransferPreview(ctx, vendor, 101)
	assert.False(t, ok)
	require.ErrorIs(t, err, types.ErrPerTxLimitExceeded)
	assert.Equal(t, uint64(0), v.Sequence())
}

func TestVaultSnapshotRestore(t *testing.T) {
	tv := newTestVault(t)
	v := tv.vault
	ctx := context.Background()
	_, err := v.AgentTransfer(ctx, agent, vendor, 40)
	require.NoError(t, err)
	require.NoError(t, v.DistributeRevenue(ctx, ceo, 100))
	require.NoError(t, v.TransferShares(ctx, alice, bob, 100))
	require.NoError(t, v.Delegate(ctx, carol, bob))
	_, err = v.Propose(ctx, alice, governance.ActionDissolve, "", "later")
	require.NoError(t, err)

	snap, err := v.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), snap.Sequence)

	restored, err := coffer.New(coffer.NewConfig(
		coffer.WithGenesis(testGenesis()),
		coffer.WithLedger(tv.ledger),
		coffer.WithClock(tv.clock),
	))
	require.NoError(t, err)
	defer restored.Close()
	require.NoError(t, restored.Restore(ctx, snap))

	want, err := v.Status(ctx)
	require.NoError(t, err)
	got, err := restored.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	wantHolders, err := v.Holders(ctx)
	require.NoError(t, err)
	gotHolders, err := restored.Holders(ctx)
	require.NoError(t, err)
	assert.Equal(t, wantHolders, gotHolders)

	wantDisc, err := v.Discovery(ctx)
	require.NoError(t, err)
	gotDisc, err := restored.Discovery(ctx)
	require.NoError(t, err)
	assert.Equal(t, wantDisc, gotDisc)

	proposals, err := restored.Proposals(ctx)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, "later", proposals[0].Description)

	// An older snapshot cannot replace newer state
	_, err = restored.AgentTransfer(ctx, agent, vendor, 1)
	require.NoError(t, err)
	require.Error(t, restored.Restore(ctx, snap))
}

func TestVaultHolders(t *testing.T) {
	tv := newTestVault(t)
	v := tv.vault
	ctx := context.Background()
	require.NoError(t, v.Delegate(ctx, carol, alice))
	require.NoError(t, v.DistributeRevenue(ctx, ceo, 10))
	holders, err := v.Holders(ctx)
	require.NoError(t, err)
	require.Len(t, holders, 3)
	assert.Equal(t, coffer.Holder{
		Address:        alice,
		Balance:        500,
		Delegate:       alice,
		Votes:          700,
		PendingRevenue: 5,
	}, holders[0])
	assert.Equal(t, alice, holders[2].Delegate)
	assert.Equal(t, uint64(0), holders[2].Votes)
}

func TestGenesisValidate(t *testing.T) {
	testDefs := []struct {
		name   string
		modify func(*coffer.Genesis)
		err    error
	}{
		{
			name:   "missing agent",
			modify: func(g *coffer.Genesis) { g.Agent = "" },
			err:    types.ErrZeroAddress,
		},
		{
			name: "limits inverted",
			modify: func(g *coffer.Genesis) {
				g.Limits = treasury.Limits{MaxPerTx: 300, DailyLimit: 250}
			},
			err: types.ErrInvalidLimits,
		},
		{
			name:   "zero supply",
			modify: func(g *coffer.Genesis) { g.TotalSupply = 0 },
			err:    types.ErrZeroAmount,
		},
		{
			name: "split short of 100%",
			modify: func(g *coffer.Genesis) {
				g.Split = g.Split[:2]
			},
			err: types.ErrInvalidSplit,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			g := testGenesis()
			testDef.modify(&g)
			require.ErrorIs(t, g.Validate(), testDef.err)
		})
	}
	g := testGenesis()
	g.SharesAccount = coffer.DefaultTreasuryAccount
	require.Error(t, g.Validate())
	g = testGenesis()
	g.VotingPeriod = 0
	require.Error(t, g.Validate())
	require.NoError(t, testGenesis().Validate())
}

func TestVaultRequiresLedger(t *testing.T) {
	_, err := coffer.New(coffer.NewConfig(coffer.WithGenesis(testGenesis())))
	require.Error(t, err)
	require.False(t, errors.Is(err, types.ErrZeroAddress))
}
