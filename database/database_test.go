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

package database_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/coffer/database"
	"github.com/blinklabs-io/coffer/event"
	"github.com/blinklabs-io/coffer/types"
)

type testState struct {
	Balances map[types.Address]uint64 `cbor:"1,keyasint"`
	Rate     *big.Int                 `cbor:"2,keyasint"`
	Since    time.Time                `cbor:"3,keyasint"`
}

func newTestDatabase(t *testing.T, dir string) *database.Database {
	t.Helper()
	db, err := database.New(database.WithDataDir(dir))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, db.Close())
	})
	return db
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := newTestDatabase(t, "")
	var empty testState
	_, err := db.LoadSnapshot(&empty)
	require.ErrorIs(t, err, database.ErrSnapshotNotFound)

	rate, ok := new(big.Int).SetString("333333333333333333333", 10)
	require.True(t, ok)
	since := time.Date(2026, 3, 4, 5, 6, 7, 890, time.UTC)
	state := testState{
		Balances: map[types.Address]uint64{"alice": 50, "bob": 30},
		Rate:     rate,
		Since:    since,
	}
	require.NoError(t, db.SaveSnapshot(4, state))

	var got testState
	seq, err := db.LoadSnapshot(&got)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), seq)
	assert.Equal(t, state.Balances, got.Balances)
	assert.Equal(t, 0, rate.Cmp(got.Rate))
	assert.True(t, since.Equal(got.Since))
}

func TestSnapshotRetention(t *testing.T) {
	db, err := database.New(database.WithSnapshotRetention(2))
	require.NoError(t, err)
	defer db.Close()
	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, db.SaveSnapshot(seq, testState{}))
	}
	seqs, err := db.Snapshots().Sequences()
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 5}, seqs)
}

func TestJournal(t *testing.T) {
	db := newTestDatabase(t, t.TempDir())
	now := time.Now()
	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, db.AppendJournal(event.OperationEvent{
			Sequence:     seq,
			Operation:    "agent_transfer",
			Caller:       "agent",
			Counterparty: "vendor",
			Amount:       seq,
			Timestamp:    now,
		}))
	}
	latest, err := db.LatestSequence()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), latest)
	entries, err := db.Journal(1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "vendor", entries[0].Counterparty)
}

func TestReopenConsistency(t *testing.T) {
	dir := t.TempDir()
	db, err := database.New(database.WithDataDir(dir))
	require.NoError(t, err)
	require.NoError(t, db.AppendJournal(event.OperationEvent{
		Sequence:  1,
		Operation: "deposit",
		Timestamp: time.Now(),
	}))
	require.NoError(t, db.SaveSnapshot(1, testState{}))
	require.NoError(t, db.Close())

	db, err = database.New(database.WithDataDir(dir))
	require.NoError(t, err)
	// Move the marker past the stored snapshot
	require.NoError(t, db.Metadata().SetSnapshotSequence(9))
	require.NoError(t, db.Close())

	db, err = database.New(database.WithDataDir(dir))
	require.Error(t, err)
	var seqErr database.SnapshotSequenceError
	require.True(t, errors.As(err, &seqErr))
	assert.Equal(t, uint64(9), seqErr.MetadataSequence)
	assert.Equal(t, uint64(1), seqErr.SnapshotSequence)
	require.NoError(t, db.Close())
}

func TestSnapshotAheadOfJournal(t *testing.T) {
	dir := t.TempDir()
	db, err := database.New(database.WithDataDir(dir))
	require.NoError(t, err)
	require.NoError(t, db.SaveSnapshot(2, testState{}))
	require.NoError(t, db.Close())

	db, err = database.New(database.WithDataDir(dir))
	var gapErr database.JournalGapError
	require.ErrorAs(t, err, &gapErr)
	assert.Equal(t, uint64(2), gapErr.SnapshotSequence)
	assert.Equal(t, uint64(0), gapErr.JournalSequence)
	require.NoError(t, db.Close())
}

func TestRecorder(t *testing.T) {
	db := newTestDatabase(t, "")
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	database.NewRecorder(db).Attach(bus)

	now := time.Now()
	bus.Publish(
		event.OperationEventType,
		event.NewEvent(event.OperationEventType, event.OperationEvent{
			Sequence:  1,
			Operation: "distribute_revenue",
			Caller:    "ceo",
			Amount:    100,
			Timestamp: now,
		}),
	)
	bus.Publish(
		event.ProposalEventType,
		event.NewEvent(event.ProposalEventType, event.ProposalEvent{
			Id:        "aa",
			Action:    "dissolve",
			Proposer:  "whale",
			State:     "pending",
			VoteStart: 2,
			VoteEnd:   12,
			Timestamp: now,
		}),
	)
	bus.Publish(
		event.VoteEventType,
		event.NewEvent(event.VoteEventType, event.VoteEvent{
			ProposalId: "aa",
			Voter:      "whale",
			Support:    "for",
			Weight:     600,
			Timestamp:  now,
		}),
	)

	entries, err := db.Journal(0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "distribute_revenue", entries[0].Operation)

	proposal, err := db.Metadata().GetProposal("aa")
	require.NoError(t, err)
	require.NotNil(t, proposal)
	assert.Equal(t, "pending", proposal.State)

	votes, err := db.Metadata().GetVotes("aa")
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, uint64(600), votes[0].Weight)
}

func TestRecorderSurvivesFailedWrite(t *testing.T) {
	db := newTestDatabase(t, "")
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	database.NewRecorder(db).Attach(bus)

	now := time.Now()
	// The repeated sequence 1 fails to write
	for _, seq := range []uint64{1, 1, 2, 3} {
		bus.Publish(
			event.OperationEventType,
			event.NewEvent(event.OperationEventType, event.OperationEvent{
				Sequence:  seq,
				Operation: "deposit",
				Caller:    "alice",
				Amount:    seq,
				Timestamp: now,
			}),
		)
	}

	entries, err := db.Journal(0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, entry := range entries {
		assert.Equal(t, uint64(i+1), entry.Sequence)
	}
}

func TestClockOrigin(t *testing.T) {
	dir := t.TempDir()
	db, err := database.New(database.WithDataDir(dir))
	require.NoError(t, err)
	first, err := db.ClockOrigin(time.Time{}, time.Second)
	require.NoError(t, err)
	assert.False(t, first.IsZero())
	require.NoError(t, db.Close())

	db = newTestDatabase(t, dir)
	again, err := db.ClockOrigin(time.Time{}, time.Second)
	require.NoError(t, err)
	assert.True(t, first.Equal(again))
	same, err := db.ClockOrigin(first, time.Second)
	require.NoError(t, err)
	assert.True(t, first.Equal(same))

	_, err = db.ClockOrigin(time.Time{}, 2*time.Second)
	var originErr database.ClockOriginError
	require.ErrorAs(t, err, &originErr)
	assert.Equal(t, time.Second, originErr.RecordedLength)
	_, err = db.ClockOrigin(first.Add(time.Hour), time.Second)
	require.ErrorAs(t, err, &originErr)
}

func TestRecorderRejectsUnknownData(t *testing.T) {
	db := newTestDatabase(t, "")
	r := database.NewRecorder(db)
	err := r.Deliver(event.NewEvent(event.OperationEventType, "bogus"))
	require.Error(t, err)
	r.Close()
}

func TestOpenMetadataWhileOpen(t *testing.T) {
	dir := t.TempDir()
	db := newTestDatabase(t, dir)
	require.NoError(t, db.AppendJournal(event.OperationEvent{
		Sequence:  1,
		Operation: "deposit",
		Caller:    "ceo",
		Amount:    500,
		Timestamp: time.Now(),
	}))

	metadata, err := database.OpenMetadata(dir, nil)
	require.NoError(t, err)
	defer metadata.Close()
	entries, err := metadata.GetJournal(0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(500), entries[0].Amount)

	_, err = database.OpenMetadata("", nil)
	require.Error(t, err)
}
