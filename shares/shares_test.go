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

package shares

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/coffer/types"
)

type recordingHook struct {
	calls []types.Address
}

func (h *recordingHook) BeforeBalanceChange(holder types.Address) {
	h.calls = append(h.calls, holder)
}

func mintedLedger(t *testing.T) *Ledger {
	t.Helper()
	l := NewLedger()
	require.NoError(t, l.Mint(1000, []Allocation{
		{Holder: "alice", Bps: 5000},
		{Holder: "bob", Bps: 3000},
		{Holder: "carol", Bps: 2000},
	}))
	return l
}

func TestMint(t *testing.T) {
	l := mintedLedger(t)
	assert.Equal(t, uint64(1000), l.TotalSupply())
	assert.Equal(t, uint64(500), l.BalanceOf("alice"))
	assert.Equal(t, uint64(300), l.BalanceOf("bob"))
	assert.Equal(t, uint64(200), l.BalanceOf("carol"))
	assert.Equal(t, uint64(500), l.Votes("alice"))
	assert.Equal(
		t,
		[]types.Address{"alice", "bob", "carol"},
		l.Holders(),
	)
	assert.ErrorIs(
		t,
		l.Mint(1000, []Allocation{{Holder: "dave", Bps: 10000}}),
		types.ErrAlreadyInitialized,
	)
}

func TestMintRemainderToLastHolder(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Mint(10, []Allocation{
		{Holder: "a", Bps: 3333},
		{Holder: "b", Bps: 3333},
		{Holder: "c", Bps: 3334},
	}))
	assert.Equal(t, uint64(3), l.BalanceOf("a"))
	assert.Equal(t, uint64(3), l.BalanceOf("b"))
	assert.Equal(t, uint64(4), l.BalanceOf("c"))
}

func TestValidateSplit(t *testing.T) {
	testDefs := []struct {
		name  string
		split []Allocation
		err   error
	}{
		{"empty", nil, types.ErrInvalidSplit},
		{"short", []Allocation{{Holder: "a", Bps: 9999}}, types.ErrInvalidSplit},
		{"zero bps", []Allocation{{Holder: "a", Bps: 10000}, {Holder: "b"}}, types.ErrInvalidSplit},
		{"zero holder", []Allocation{{Bps: 10000}}, types.ErrZeroAddress},
		{
			"duplicate",
			[]Allocation{{Holder: "a", Bps: 5000}, {Holder: "a", Bps: 5000}},
			types.ErrInvalidSplit,
		},
		{"ok", []Allocation{{Holder: "a", Bps: 10000}}, nil},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			err := ValidateSplit(testDef.split)
			if testDef.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, testDef.err)
		})
	}
}

func TestNotMinted(t *testing.T) {
	l := NewLedger()
	assert.ErrorIs(t, l.Transfer("a", "b", 1), types.ErrNotInitialized)
	assert.ErrorIs(t, l.Delegate("a", "b"), types.ErrNotInitialized)
}

func TestTransferRunsHooksFirst(t *testing.T) {
	l := mintedLedger(t)
	hook := &recordingHook{}
	l.AddHook(hook)
	require.NoError(t, l.Transfer("alice", "dave", 100))
	assert.Equal(t, []types.Address{"alice", "dave"}, hook.calls)
	assert.Equal(t, uint64(400), l.BalanceOf("alice"))
	assert.Equal(t, uint64(100), l.BalanceOf("dave"))
	assert.Equal(t, uint64(400), l.Votes("alice"))
	assert.Equal(t, uint64(100), l.Votes("dave"))

	err := l.Transfer("dave", "alice", 101)
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)
	assert.ErrorIs(t, l.Transfer("dave", "alice", 0), types.ErrZeroAmount)
	assert.ErrorIs(t, l.Transfer("dave", "", 1), types.ErrZeroAddress)
	// Failed transfers never reach the hooks
	assert.Len(t, hook.calls, 2)
}

func TestVotesAtSnapshot(t *testing.T) {
	l := mintedLedger(t)
	snapshot := l.Sequence()
	require.NoError(t, l.Transfer("alice", "bob", 500))
	assert.Equal(t, uint64(500), l.VotesAt("alice", snapshot))
	assert.Equal(t, uint64(300), l.VotesAt("bob", snapshot))
	assert.Equal(t, uint64(0), l.Votes("alice"))
	assert.Equal(t, uint64(800), l.Votes("bob"))
	assert.Equal(t, uint64(0), l.VotesAt("alice", 0))
}

func TestDelegate(t *testing.T) {
	l := mintedLedger(t)
	before := l.Sequence()
	require.NoError(t, l.Delegate("carol", "alice"))
	assert.Equal(t, types.Address("alice"), l.DelegateOf("carol"))
	assert.Equal(t, uint64(700), l.Votes("alice"))
	assert.Equal(t, uint64(0), l.Votes("carol"))
	assert.Equal(t, uint64(200), l.VotesAt("carol", before))

	// Transfers follow the delegation
	require.NoError(t, l.Transfer("carol", "bob", 50))
	assert.Equal(t, uint64(650), l.Votes("alice"))
	assert.Equal(t, uint64(350), l.Votes("bob"))

	// Re-delegating to the current delegatee is a no-op
	seq := l.Sequence()
	require.NoError(t, l.Delegate("carol", "alice"))
	assert.Equal(t, seq, l.Sequence())
}

func TestFreeze(t *testing.T) {
	l := mintedLedger(t)
	l.Freeze()
	assert.True(t, l.Frozen())
	assert.ErrorIs(t, l.Transfer("alice", "bob", 1), types.ErrSharesFrozen)
	assert.ErrorIs(t, l.Delegate("alice", "bob"), types.ErrSharesFrozen)
	assert.Equal(t, uint64(500), l.BalanceOf("alice"))
}

func TestExportRestore(t *testing.T) {
	l := mintedLedger(t)
	require.NoError(t, l.Transfer("alice", "bob", 10))
	restored := NewLedger()
	restored.Restore(l.Export())
	assert.Equal(t, l.Export(), restored.Export())
	assert.Equal(t, l.VotesAt("alice", 1), restored.VotesAt("alice", 1))
}
