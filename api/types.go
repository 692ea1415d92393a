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
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/blinklabs-io/coffer"
	"github.com/blinklabs-io/coffer/database/models"
	"github.com/blinklabs-io/coffer/governance"
)

// VaultReader is the read side of the vault used by the API. It decouples
// the HTTP server from the concrete vault and enables testing with mocks.
type VaultReader interface {
	Status(ctx context.Context) (coffer.Status, error)
	Discovery(ctx context.Context) (coffer.Discovery, error)
	Holders(ctx context.Context) ([]coffer.Holder, error)
	Proposals(ctx context.Context) ([]coffer.ProposalView, error)
	Proposal(
		ctx context.Context,
		id governance.ProposalId,
	) (coffer.ProposalView, error)
	Votes(
		ctx context.Context,
		id governance.ProposalId,
	) ([]governance.Vote, error)
	QuorumRequired(ctx context.Context) (uint64, error)
}

// JournalReader reads applied operations in sequence order
type JournalReader interface {
	Journal(after uint64, limit int) ([]models.JournalEntry, error)
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type HealthResponse struct {
	IsHealthy bool `json:"is_healthy"`
}

// Amount is a token quantity in base units plus its display form
type Amount struct {
	Units   uint64 `json:"units"`
	Display string `json:"display"`
}

func newAmount(units uint64, decimals int32) Amount {
	return Amount{
		Units: units,
		Display: decimal.NewFromBigInt(
			new(big.Int).SetUint64(units),
			-decimals,
		).StringFixed(decimals),
	}
}

// StatusResponse is the aggregate read for dashboards and bots
type StatusResponse struct {
	Lifecycle        string              `json:"lifecycle"`
	Paused           bool                `json:"paused"`
	Balance          Amount              `json:"balance"`
	Reserved         Amount              `json:"reserved"`
	Available        Amount              `json:"available"`
	YieldPosition    Amount              `json:"yield_position"`
	MaxPerTx         Amount              `json:"max_per_tx"`
	DailyLimit       Amount              `json:"daily_limit"`
	SpentToday       Amount              `json:"spent_today"`
	RemainingToday   Amount              `json:"remaining_today"`
	WindowStart      int64               `json:"window_start"`
	WhitelistEnabled bool                `json:"whitelist_enabled"`
	Agent            string              `json:"agent"`
	Ceo              string              `json:"ceo"`
	Governor         string              `json:"governor"`
	TotalSupply      uint64              `json:"total_supply"`
	Holders          int                 `json:"holders"`
	SharesFrozen     bool                `json:"shares_frozen"`
	TotalDistributed Amount              `json:"total_distributed"`
	TotalClaimed     Amount              `json:"total_claimed"`
	Decimals         int32               `json:"decimals"`
	Sequence         uint64              `json:"sequence"`
	Height           uint64              `json:"height"`
	Settlement       *SettlementResponse `json:"settlement,omitempty"`
}

type SettlementResponse struct {
	Pool         Amount `json:"pool"`
	PaidOut      Amount `json:"paid_out"`
	Redeemed     Amount `json:"redeemed"`
	TotalSupply  uint64 `json:"total_supply"`
	ClaimedUnits uint64 `json:"claimed_units"`
	Claims       int    `json:"claims"`
	FinalizedAt  int64  `json:"finalized_at"`
}

func newStatusResponse(s coffer.Status) StatusResponse {
	d := s.Decimals
	ret := StatusResponse{
		Lifecycle:        s.Lifecycle.String(),
		Paused:           s.Paused,
		Balance:          newAmount(s.Balance, d),
		Reserved:         newAmount(s.Reserved, d),
		Available:        newAmount(s.Available, d),
		YieldPosition:    newAmount(s.YieldPosition, d),
		MaxPerTx:         newAmount(s.MaxPerTx, d),
		DailyLimit:       newAmount(s.DailyLimit, d),
		SpentToday:       newAmount(s.SpentToday, d),
		RemainingToday:   newAmount(s.RemainingToday, d),
		WindowStart:      s.WindowStart.Unix(),
		WhitelistEnabled: s.WhitelistEnabled,
		Agent:            s.Agent.String(),
		Ceo:              s.Ceo.String(),
		Governor:         s.Governor.String(),
		TotalSupply:      s.TotalSupply,
		Holders:          s.Holders,
		SharesFrozen:     s.SharesFrozen,
		TotalDistributed: newAmount(s.TotalDistributed, d),
		TotalClaimed:     newAmount(s.TotalClaimed, d),
		Decimals:         d,
		Sequence:         s.Sequence,
		Height:           s.Height,
	}
	if s.Settlement != nil {
		ret.Settlement = &SettlementResponse{
			Pool:         newAmount(s.Settlement.Pool, d),
			PaidOut:      newAmount(s.Settlement.PaidOut, d),
			Redeemed:     newAmount(s.Settlement.Redeemed, d),
			TotalSupply:  s.Settlement.TotalSupply,
			ClaimedUnits: s.Settlement.ClaimedUnits,
			Claims:       len(s.Settlement.Claimed),
			FinalizedAt:  s.Settlement.FinalizedAt.Unix(),
		}
	}
	return ret
}

type DiscoveryResponse struct {
	DeploymentId    string `json:"deployment_id"`
	Treasury        string `json:"treasury"`
	OwnershipLedger string `json:"ownership_ledger"`
	Governor        string `json:"governor"`
	Ceo             string `json:"ceo"`
}

type HolderResponse struct {
	Address        string `json:"address"`
	Balance        uint64 `json:"balance"`
	Delegate       string `json:"delegate,omitempty"`
	Votes          uint64 `json:"votes"`
	PendingRevenue Amount `json:"pending_revenue"`
}

type ProposalResponse struct {
	Id           string `json:"id"`
	Action       string `json:"action"`
	NewCeo       string `json:"new_ceo,omitempty"`
	Description  string `json:"description"`
	Proposer     string `json:"proposer"`
	State        string `json:"state"`
	VoteStart    uint64 `json:"vote_start"`
	VoteEnd      uint64 `json:"vote_end"`
	Snapshot     uint64 `json:"snapshot"`
	VotesFor     uint64 `json:"votes_for"`
	VotesAgainst uint64 `json:"votes_against"`
	VotesAbstain uint64 `json:"votes_abstain"`
	CreatedAt    int64  `json:"created_at"`
}

func newProposalResponse(p coffer.ProposalView) ProposalResponse {
	return ProposalResponse{
		Id:           p.Id.String(),
		Action:       p.Action.String(),
		NewCeo:       p.NewCeo.String(),
		Description:  p.Description,
		Proposer:     p.Proposer.String(),
		State:        p.State.String(),
		VoteStart:    p.VoteStart,
		VoteEnd:      p.VoteEnd,
		Snapshot:     p.Snapshot,
		VotesFor:     p.Tally.For,
		VotesAgainst: p.Tally.Against,
		VotesAbstain: p.Tally.Abstain,
		CreatedAt:    p.CreatedAt.Unix(),
	}
}

// ProposalDetailResponse adds the votes cast and the quorum to a proposal
type ProposalDetailResponse struct {
	ProposalResponse
	QuorumRequired uint64         `json:"quorum_required"`
	Votes          []VoteResponse `json:"votes"`
}

type VoteResponse struct {
	Voter   string `json:"voter"`
	Support string `json:"support"`
	Weight  uint64 `json:"weight"`
	CastAt  int64  `json:"cast_at"`
}

func newVoteResponses(votes []governance.Vote) []VoteResponse {
	ret := make([]VoteResponse, 0, len(votes))
	for _, vote := range votes {
		ret = append(ret, VoteResponse{
			Voter:   vote.Voter.String(),
			Support: vote.Support.String(),
			Weight:  vote.Weight,
			CastAt:  vote.CastAt.Unix(),
		})
	}
	return ret
}

type JournalEntryResponse struct {
	Sequence     uint64 `json:"sequence"`
	Operation    string `json:"operation"`
	Caller       string `json:"caller,omitempty"`
	Counterparty string `json:"counterparty,omitempty"`
	Amount       uint64 `json:"amount"`
	Detail       string `json:"detail,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

func newJournalEntryResponse(e models.JournalEntry) JournalEntryResponse {
	return JournalEntryResponse{
		Sequence:     e.Sequence,
		Operation:    e.Operation,
		Caller:       e.Caller,
		Counterparty: e.Counterparty,
		Amount:       e.Amount,
		Detail:       e.Detail,
		Timestamp:    e.Timestamp.Unix(),
	}
}
