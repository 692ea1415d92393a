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

// Package governance implements share-weighted proposals that can replace the
// CEO or dissolve the treasury. Voting weight is read from the share ledger
// checkpoints at proposal creation, and all timing is measured in clock
// height rather than wall time.
package governance

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/blinklabs-io/coffer/clock"
	"github.com/blinklabs-io/coffer/shares"
	"github.com/blinklabs-io/coffer/types"
)

const DefaultQuorumBps = 5_100

// Target is the set of privileged entry points a passed proposal may call.
// The caller passed to each is the governor address.
type Target interface {
	ReplaceCeo(ctx context.Context, caller, newCeo types.Address) error
	Dissolve(ctx context.Context, caller types.Address) error
}

type Config struct {
	// Address is the identity the governor presents to its Target
	Address         types.Address
	Shares          *shares.Ledger
	Target          Target
	Clock           clock.Clock
	VotingDelay     uint64
	VotingPeriod    uint64
	ExecutionWindow uint64
	QuorumBps       uint32
	EarlyResolution bool
}

type Governor struct {
	config    Config
	proposals map[ProposalId]*Proposal
	votes     map[ProposalId]map[types.Address]Vote
}

func New(cfg Config) (*Governor, error) {
	if cfg.Address.IsZero() {
		return nil, types.ErrZeroAddress
	}
	if cfg.Shares == nil || cfg.Clock == nil {
		return nil, errors.New("governance: share ledger and clock are required")
	}
	if cfg.VotingPeriod == 0 {
		return nil, errors.New("governance: voting period must be non-zero")
	}
	if cfg.QuorumBps == 0 {
		cfg.QuorumBps = DefaultQuorumBps
	}
	if cfg.QuorumBps > types.BasisPoints {
		return nil, fmt.Errorf(
			"governance: quorum %d exceeds %d basis points",
			cfg.QuorumBps,
			types.BasisPoints,
		)
	}
	return &Governor{
		config:    cfg,
		proposals: make(map[ProposalId]*Proposal),
		votes:     make(map[ProposalId]map[types.Address]Vote),
	}, nil
}

// SetTarget binds the execution target. It exists because the target is
// usually constructed after the governor.
func (g *Governor) SetTarget(target Target) {
	g.config.Target = target
}

func (g *Governor) Address() types.Address {
	return g.config.Address
}

func (g *Governor) Config() Config {
	return g.config
}

// QuorumRequired is the participating weight a proposal needs, rounded up
func (g *Governor) QuorumRequired() uint64 {
	return types.MulDivCeil(
		g.config.Shares.TotalSupply(),
		uint64(g.config.QuorumBps),
		types.BasisPoints,
	)
}

func (g *Governor) quorumReached(p *Proposal) bool {
	return p.Tally.Participation() >= g.QuorumRequired()
}

// Propose creates a proposal. Any account holding shares or delegated
// weight may propose.
func (g *Governor) Propose(
	caller types.Address,
	action Action,
	newCeo types.Address,
	description string,
) (ProposalId, error) {
	if !g.config.Shares.Minted() {
		return ProposalId{}, types.ErrNotInitialized
	}
	if g.config.Shares.BalanceOf(caller) == 0 &&
		g.config.Shares.Votes(caller) == 0 {
		return ProposalId{}, types.NewUnauthorizedError("holder", caller)
	}
	switch action {
	case ActionReplaceCeo:
		if newCeo.IsZero() {
			return ProposalId{}, types.ErrZeroAddress
		}
	case ActionDissolve:
		if !newCeo.IsZero() {
			return ProposalId{}, fmt.Errorf(
				"%w: dissolve takes no parameters",
				ErrInvalidProposal,
			)
		}
	default:
		return ProposalId{}, fmt.Errorf("%w: %s", ErrInvalidProposal, action)
	}
	id := HashProposal(action, newCeo, description)
	if existing, ok := g.proposals[id]; ok {
		// A proposal that failed may be raised again under the same id
		state := g.state(existing)
		if !state.Terminal() || state == StateExecuted {
			return ProposalId{}, types.ErrProposalExists
		}
		delete(g.votes, id)
	}
	height := g.config.Clock.Height()
	voteStart := height + g.config.VotingDelay
	g.proposals[id] = &Proposal{
		Id:          id,
		Action:      action,
		NewCeo:      newCeo,
		Description: description,
		Proposer:    caller,
		VoteStart:   voteStart,
		VoteEnd:     voteStart + g.config.VotingPeriod,
		Snapshot:    g.config.Shares.Sequence(),
		CreatedAt:   g.config.Clock.Now(),
	}
	return id, nil
}

func (g *Governor) lookup(id ProposalId) (*Proposal, error) {
	p, ok := g.proposals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrProposalNotFound, id)
	}
	return p, nil
}

// State derives the proposal state at the current clock height
func (g *Governor) State(id ProposalId) (ProposalState, error) {
	p, err := g.lookup(id)
	if err != nil {
		return 0, err
	}
	return g.state(p), nil
}

func (g *Governor) state(p *Proposal) ProposalState {
	switch {
	case p.Canceled:
		return StateCanceled
	case p.Executed:
		return StateExecuted
	}
	height := g.config.Clock.Height()
	if height < p.VoteStart {
		return StatePending
	}
	passing := g.quorumReached(p) && p.Tally.For > p.Tally.Against
	if height < p.VoteEnd {
		if g.config.EarlyResolution && passing {
			return StateSucceeded
		}
		return StateActive
	}
	if !passing {
		return StateDefeated
	}
	if g.config.ExecutionWindow > 0 &&
		height >= p.VoteEnd+g.config.ExecutionWindow {
		return StateExpired
	}
	return StateSucceeded
}

// CastVote records caller's vote using its weight at the proposal snapshot
func (g *Governor) CastVote(
	caller types.Address,
	id ProposalId,
	support Support,
) (Vote, error) {
	p, err := g.lookup(id)
	if err != nil {
		return Vote{}, err
	}
	if support > SupportAbstain {
		return Vote{}, ErrInvalidSupport
	}
	if state := g.state(p); state != StateActive {
		return Vote{}, NewProposalStateError(
			ErrVotingClosed,
			id,
			StateActive,
			state,
		)
	}
	if _, ok := g.votes[id][caller]; ok {
		return Vote{}, types.ErrAlreadyVoted
	}
	weight := g.config.Shares.VotesAt(caller, p.Snapshot)
	if weight == 0 {
		return Vote{}, types.ErrZeroAmount
	}
	vote := Vote{
		ProposalId: id,
		Voter:      caller,
		Support:    support,
		Weight:     weight,
		CastAt:     g.config.Clock.Now(),
	}
	if g.votes[id] == nil {
		g.votes[id] = make(map[types.Address]Vote)
	}
	g.votes[id][caller] = vote
	switch support {
	case SupportFor:
		p.Tally.For += weight
	case SupportAgainst:
		p.Tally.Against += weight
	case SupportAbstain:
		p.Tally.Abstain += weight
	}
	return vote, nil
}

// Execute applies a succeeded proposal to the target. The proposal is
// identified by its contents, the same way it was hashed at creation.
func (g *Governor) Execute(
	ctx context.Context,
	action Action,
	newCeo types.Address,
	description string,
) (ProposalId, error) {
	id := HashProposal(action, newCeo, description)
	p, err := g.lookup(id)
	if err != nil {
		return id, err
	}
	state := g.state(p)
	if state != StateSucceeded {
		if state == StateDefeated && !g.quorumReached(p) {
			return id, types.NewQuorumError(
				p.Tally.Participation(),
				g.QuorumRequired(),
			)
		}
		return id, NewProposalStateError(
			types.ErrProposalNotSucceeded,
			id,
			StateSucceeded,
			state,
		)
	}
	if g.config.Target == nil {
		return id, errors.New("governance: no execution target")
	}
	p.Executed = true
	p.ExecutedAt = g.config.Clock.Now()
	switch p.Action {
	case ActionReplaceCeo:
		err = g.config.Target.ReplaceCeo(ctx, g.config.Address, p.NewCeo)
	case ActionDissolve:
		err = g.config.Target.Dissolve(ctx, g.config.Address)
	}
	if err != nil {
		p.Executed = false
		p.ExecutedAt = time.Time{}
		return id, fmt.Errorf("execute %s: %w", p.Action, err)
	}
	return id, nil
}

// Cancel withdraws a proposal before voting opens. Only the proposer may
// cancel.
func (g *Governor) Cancel(caller types.Address, id ProposalId) error {
	p, err := g.lookup(id)
	if err != nil {
		return err
	}
	if caller != p.Proposer {
		return types.NewUnauthorizedError("proposer", caller)
	}
	if state := g.state(p); state != StatePending {
		return NewProposalStateError(ErrNotCancelable, id, StatePending, state)
	}
	p.Canceled = true
	return nil
}

// Proposal returns a copy of the proposal
func (g *Governor) Proposal(id ProposalId) (Proposal, error) {
	p, err := g.lookup(id)
	if err != nil {
		return Proposal{}, err
	}
	return *p, nil
}

// Proposals returns copies of every proposal, oldest first
func (g *Governor) Proposals() []Proposal {
	ret := make([]Proposal, 0, len(g.proposals))
	for _, p := range g.proposals {
		ret = append(ret, *p)
	}
	slices.SortFunc(ret, func(a, b Proposal) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Id.String(), b.Id.String())
	})
	return ret
}

// Votes returns the votes cast on a proposal, ordered by voter
func (g *Governor) Votes(id ProposalId) ([]Vote, error) {
	if _, err := g.lookup(id); err != nil {
		return nil, err
	}
	ret := make([]Vote, 0, len(g.votes[id]))
	for _, voter := range slices.Sorted(maps.Keys(g.votes[id])) {
		ret = append(ret, g.votes[id][voter])
	}
	return ret, nil
}
