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


package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/coffer"
	"github.com/blinklabs-io/coffer/adapter"
	"github.com/blinklabs-io/coffer/clock"
	"github.com/blinklabs-io/coffer/database/models"
	"github.com/blinklabs-io/coffer/governance"
	"github.com/blinklabs-io/coffer/shares"
	"github.com/blinklabs-io/coffer/treasury"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockJournal implements JournalReader for testing.
type mockJournal struct {
	entries []models.JournalEntry
	err     error
	after   uint64
	limit   int
}

func (m *mockJournal) Journal(
	after uint64,
	limit int,
) ([]models.JournalEntry, error) {
	m.after = after
	m.limit = limit
	if m.err != nil {
		return nil, m.err
	}
	var ret []models.JournalEntry
	for _, e := range m.entries {
		if e.Sequence > after && len(ret) < limit {
			ret = append(ret, e)
		}
	}
	return ret, nil
}

type testEnv struct {
	api   *Api
	vault *coffer.Vault
	clock *clock.ManualClock
}

func newTestApi(t *testing.T, journal JournalReader) *testEnv {
	t.Helper()
	ledger := adapter.NewMemoryLedger(coffer.DefaultTreasuryAccount)
	ledger.Mint(coffer.DefaultTreasuryAccount, 1_000)
	clk := clock.NewManualClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	v, err := coffer.New(coffer.NewConfig(
		coffer.WithLedger(ledger),
		coffer.WithClock(clk),
		coffer.WithGenesis(coffer.Genesis{
			Agent:    "agent",
			Ceo:      "ceo",
			Decimals: 2,
			Limits:   treasury.Limits{MaxPerTx: 100, DailyLimit: 250},
			Split: []shares.Allocation{
				{Holder: "alice", Bps: 5_000},
				{Holder: "bob", Bps: 3_000},
				{Holder: "carol", Bps: 2_000},
			},
			TotalSupply:  1_000,
			VotingDelay:  1,
			VotingPeriod: 10,
		}),
	))
	require.NoError(t, err)
	t.Cleanup(v.Close)
	return &testEnv{
		api:   New(Config{ListenAddress: "127.0.0.1:0"}, v, journal, nil),
		vault: v,
		clock: clk,
	}
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	e.api.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var ret T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&ret))
	return ret
}

func TestStartStop(t *testing.T) {
	env := newTestApi(t, nil)
	a := env.api

	err := a.Start(t.Context())
	require.NoError(t, err)

	a.mu.Lock()
	assert.NotNil(t, a.httpServer)
	a.mu.Unlock()

	// Starting again should error
	err = a.Start(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")

	stopCtx, stopCancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer stopCancel()
	require.NoError(t, a.Stop(stopCtx))

	a.mu.Lock()
	assert.Nil(t, a.httpServer)
	a.mu.Unlock()
}

func TestHandleRootAndHealth(t *testing.T) {
	env := newTestApi(t, nil)

	w := env.get(t, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	root := decode[RootResponse](t, w)
	assert.Equal(t, "coffer", root.Name)
	assert.NotEmpty(t, root.Version)

	w = env.get(t, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[HealthResponse](t, w).IsHealthy)
}

func TestHandleStatus(t *testing.T) {
	env := newTestApi(t, nil)
	_, err := env.vault.AgentTransfer(context.Background(), "agent", "vendor", 75)
	require.NoError(t, err)

	w := env.get(t, "/v1/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	status := decode[StatusResponse](t, w)
	assert.Equal(t, "active", status.Lifecycle)
	assert.Equal(t, uint64(925), status.Balance.Units)
	assert.Equal(t, "9.25", status.Balance.Display)
	assert.Equal(t, "0.75", status.SpentToday.Display)
	assert.Equal(t, "1.75", status.RemainingToday.Display)
	assert.Equal(t, "2.50", status.DailyLimit.Display)
	assert.Equal(t, int32(2), status.Decimals)
	assert.Equal(t, uint64(1_000), status.TotalSupply)
	assert.Equal(t, 3, status.Holders)
	assert.Equal(t, uint64(1), status.Sequence)
	assert.Nil(t, status.Settlement)
}

func TestHandleDiscovery(t *testing.T) {
	env := newTestApi(t, nil)

	w := env.get(t, "/v1/discovery")
	require.Equal(t, http.StatusOK, w.Code)
	disc := decode[DiscoveryResponse](t, w)
	assert.Equal(t, coffer.DefaultTreasuryAccount.String(), disc.Treasury)
	assert.Equal(t, coffer.DefaultSharesAccount.String(), disc.OwnershipLedger)
	assert.Equal(t, coffer.DefaultGovernorAccount.String(), disc.Governor)
	assert.Equal(t, "ceo", disc.Ceo)
	assert.Len(t, disc.DeploymentId, 36)
}

func TestHandleHolders(t *testing.T) {
	env := newTestApi(t, nil)
	require.NoError(
		t,
		env.vault.DistributeRevenue(context.Background(), "ceo", 100),
	)

	w := env.get(t, "/v1/holders?count=2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-Pagination-Count-Total"))
	assert.Equal(t, "2", w.Header().Get("X-Pagination-Page-Total"))
	holders := decode[[]HolderResponse](t, w)
	require.Len(t, holders, 2)
	assert.Equal(t, "alice", holders[0].Address)
	assert.Equal(t, uint64(500), holders[0].Balance)
	assert.Equal(t, "0.50", holders[0].PendingRevenue.Display)
	assert.Equal(t, "bob", holders[1].Address)

	w = env.get(t, "/v1/holders?count=2&page=2")
	require.Equal(t, http.StatusOK, w.Code)
	holders = decode[[]HolderResponse](t, w)
	require.Len(t, holders, 1)
	assert.Equal(t, "carol", holders[0].Address)

	w = env.get(t, "/v1/holders?order=desc&count=1")
	require.Equal(t, http.StatusOK, w.Code)
	holders = decode[[]HolderResponse](t, w)
	require.Len(t, holders, 1)
	assert.Equal(t, "carol", holders[0].Address)

	w = env.get(t, "/v1/holders?order=sideways")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleProposals(t *testing.T) {
	env := newTestApi(t, nil)
	ctx := context.Background()
	id, err := env.vault.Propose(
		ctx,
		"alice",
		governance.ActionReplaceCeo,
		"dave",
		"new ceo",
	)
	require.NoError(t, err)
	env.clock.AdvanceHeight(1)
	_, err = env.vault.CastVote(ctx, "bob", id, governance.SupportAgainst)
	require.NoError(t, err)

	w := env.get(t, "/v1/proposals")
	require.Equal(t, http.StatusOK, w.Code)
	proposals := decode[[]ProposalResponse](t, w)
	require.Len(t, proposals, 1)
	assert.Equal(t, id.String(), proposals[0].Id)
	assert.Equal(t, "ReplaceCeo", proposals[0].Action)
	assert.Equal(t, "dave", proposals[0].NewCeo)
	assert.Equal(t, "Active", proposals[0].State)
	assert.Equal(t, uint64(300), proposals[0].VotesAgainst)

	w = env.get(t, "/v1/proposals?state=Executed")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]ProposalResponse](t, w))

	w = env.get(t, "/v1/proposals/"+id.String())
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[ProposalDetailResponse](t, w)
	assert.Equal(t, id.String(), detail.Id)
	assert.Positive(t, detail.QuorumRequired)
	require.Len(t, detail.Votes, 1)
	assert.Equal(t, "bob", detail.Votes[0].Voter)
	assert.Equal(t, "Against", detail.Votes[0].Support)
	assert.Equal(t, uint64(300), detail.Votes[0].Weight)

	w = env.get(t, "/v1/proposals/"+id.String()+"/votes")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]VoteResponse](t, w), 1)
}

func TestHandleProposalErrors(t *testing.T) {
	env := newTestApi(t, nil)

	w := env.get(t, "/v1/proposals/not-hex")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var unknown governance.ProposalId
	w = env.get(t, "/v1/proposals/"+unknown.String())
	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleJournal(t *testing.T) {
	ts := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	journal := &mockJournal{
		entries: []models.JournalEntry{
			{Sequence: 1, Operation: coffer.OpDeposit, Amount: 10, Timestamp: ts},
			{Sequence: 2, Operation: coffer.OpAgentTransfer, Amount: 5, Timestamp: ts},
			{Sequence: 3, Operation: coffer.OpWithdraw, Amount: 1, Timestamp: ts},
		},
	}
	env := newTestApi(t, journal)

	w := env.get(t, "/v1/journal?after=1&count=5000")
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode[[]JournalEntryResponse](t, w)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(2), entries[0].Sequence)
	assert.Equal(t, coffer.OpAgentTransfer, entries[0].Operation)
	assert.Equal(t, ts.Unix(), entries[0].Timestamp)
	assert.Equal(t, uint64(1), journal.after)
	assert.Equal(t, MaxJournalCount, journal.limit)

	w = env.get(t, "/v1/journal?after=-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	journal.err = errors.New("disk on fire")
	w = env.get(t, "/v1/journal")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, DefaultJournalCount, journal.limit)
}

func TestHandleJournalUnavailable(t *testing.T) {
	env := newTestApi(t, nil)
	w := env.get(t, "/v1/journal")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNotFound(t *testing.T) {
	env := newTestApi(t, nil)
	w := env.get(t, "/v1/nothing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not Found", decode[ErrorResponse](t, w).Error)
}
