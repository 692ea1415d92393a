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

package coffer

import (
	"context"
	"fmt"

	"github.com/blinklabs-io/coffer/event"
	"github.com/blinklabs-io/coffer/governance"
	"github.com/blinklabs-io/coffer/types"
)

// governanceTarget applies executed proposals. It runs with the vault lock
// already held.
type governanceTarget struct {
	vault *Vault
}

func (t *governanceTarget) ReplaceCeo(
	ctx context.Context,
	caller types.Address,
	newCeo types.Address,
) error {
	v := t.vault
	previous := v.roles.Ceo()
	if err := v.treasury.ReplaceCeo(caller, newCeo); err != nil {
		return err
	}
	v.record(
		ctx,
		OpReplaceCeo,
		caller,
		newCeo,
		0,
		"previous="+string(previous),
	)
	return nil
}

func (t *governanceTarget) Dissolve(
	ctx context.Context,
	caller types.Address,
) error {
	v := t.vault
	if err := v.dissolution.Dissolve(caller); err != nil {
		return err
	}
	v.publishLifecycle(types.LifecycleActive, types.LifecycleDissolving)
	v.record(ctx, OpDissolve, caller, "", 0, "")
	return nil
}

func (v *Vault) publishProposal(id governance.ProposalId) {
	p, err := v.governor.Proposal(id)
	if err != nil {
		return
	}
	state, err := v.governor.State(id)
	if err != nil {
		return
	}
	v.eventBus.Publish(
		event.ProposalEventType,
		event.NewEvent(event.ProposalEventType, event.ProposalEvent{
			Id:          p.Id.String(),
			Action:      p.Action.String(),
			NewCeo:      p.NewCeo,
			Description: p.Description,
			Proposer:    p.Proposer,
			State:       state.String(),
			VoteStart:   p.VoteStart,
			VoteEnd:     p.VoteEnd,
			Snapshot:    p.Snapshot,
			For:         p.Tally.For,
			Against:     p.Tally.Against,
			Abstain:     p.Tally.Abstain,
			Timestamp:   v.clock.Now(),
		}),
	)
	if v.metrics != nil {
		v.metrics.updateProposals(v.proposalCounts())
	}
}

func (v *Vault) proposalCounts() map[governance.ProposalState]int {
	ret := make(map[governance.ProposalState]int)
	for _, p := range v.governor.Proposals() {
		state, err := v.governor.State(p.Id)
		if err != nil {
			continue
		}
		ret[state]++
	}
	return ret
}

// Propose opens a governance proposal
func (v *Vault) Propose(
	ctx context.Context,
	caller types.Address,
	action governance.Action,
	newCeo types.Address,
	description string,
) (governance.ProposalId, error) {
	ctx, err := v.enter(ctx)
	if err != nil {
		return governance.ProposalId{}, v.reject(OpPropose, err)
	}
	defer v.leave()
	id, err := v.governor.Propose(caller, action, newCeo, description)
	if err != nil {
		return id, v.reject(OpPropose, err)
	}
	v.publishProposal(id)
	v.record(
		ctx,
		OpPropose,
		caller,
		newCeo,
		0,
		fmt.Sprintf("%s %s", action, id),
	)
	return id, nil
}

// CastVote records caller's vote with its weight at the proposal snapshot
func (v *Vault) CastVote(
	ctx context.Context,
	caller types.Address,
	id governance.ProposalId,
	support governance.Support,
) (governance.Vote, error) {
	ctx, err := v.enter(ctx)
	if err != nil {
		return governance.Vote{}, v.reject(OpVote, err)
	}
	defer v.leave()
	vote, err := v.governor.CastVote(caller, id, support)
	if err != nil {
		return governance.Vote{}, v.reject(OpVote, err)
	}
	v.eventBus.Publish(
		event.VoteEventType,
		event.NewEvent(event.VoteEventType, event.VoteEvent{
			ProposalId: id.String(),
			Voter:      vote.Voter,
			Support:    vote.Support.String(),
			Weight:     vote.Weight,
			Timestamp:  vote.CastAt,
		}),
	)
	if v.metrics != nil {
		v.metrics.votes.WithLabelValues(vote.Support.String()).Inc()
	}
	v.publishProposal(id)
	v.record(
		ctx,
		OpVote,
		caller,
		"",
		vote.Weight,
		fmt.Sprintf("%s %s", vote.Support, id),
	)
	return vote, nil
}

// Execute applies the succeeded proposal with the given contents. Anyone may
// call it.
func (v *Vault) Execute(
	ctx context.Context,
	action governance.Action,
	newCeo types.Address,
	description string,
) (governance.ProposalId, error) {
	ctx, err := v.enter(ctx)
	if err != nil {
		return governance.ProposalId{}, v.reject(OpExecute, err)
	}
	defer v.leave()
	id, err := v.governor.Execute(ctx, action, newCeo, description)
	if err != nil {
		return id, v.reject(OpExecute, err)
	}
	v.publishProposal(id)
	v.record(
		ctx,
		OpExecute,
		v.governor.Address(),
		newCeo,
		0,
		fmt.Sprintf("%s %s", action, id),
	)
	return id, nil
}

// Cancel withdraws a pending proposal
func (v *Vault) Cancel(
	ctx context.Context,
	caller types.Address,
	id governance.ProposalId,
) error {
	ctx, err := v.enter(ctx)
	if err != nil {
		return v.reject(OpCancel, err)
	}
	defer v.leave()
	if err := v.governor.Cancel(caller, id); err != nil {
		return v.reject(OpCancel, err)
	}
	v.publishProposal(id)
	v.record(ctx, OpCancel, caller, "", 0, id.String())
	return nil
}

// ProposalView is a proposal together with its derived state
type ProposalView struct {
	governance.Proposal
	State governance.ProposalState `json:"state"`
}

func (v *Vault) Proposal(
	ctx context.Context,
	id governance.ProposalId,
) (ProposalView, error) {
	if _, err := v.enter(ctx); err != nil {
		return ProposalView{}, err
	}
	defer v.leave()
	return v.proposalView(id)
}

func (v *Vault) proposalView(id governance.ProposalId) (ProposalView, error) {
	p, err := v.governor.Proposal(id)
	if err != nil {
		return ProposalView{}, err
	}
	state, err := v.governor.State(id)
	if err != nil {
		return ProposalView{}, err
	}
	return ProposalView{Proposal: p, State: state}, nil
}

// Proposals lists every proposal in creation order
func (v *Vault) Proposals(ctx context.Context) ([]ProposalView, error) {
	if _, err := v.enter(ctx); err != nil {
		return nil, err
	}
	defer v.leave()
	proposals := v.governor.Proposals()
	ret := make([]ProposalView, 0, len(proposals))
	for _, p := range proposals {
		view, err := v.proposalView(p.Id)
		if err != nil {
			return nil, err
		}
		ret = append(ret, view)
	}
	return ret, nil
}

func (v *Vault) Votes(
	ctx context.Context,
	id governance.ProposalId,
) ([]governance.Vote, error) {
	if _, err := v.enter(ctx); err != nil {
		return nil, err
	}
	defer v.leave()
	return v.governor.Votes(id)
}

// QuorumRequired is the participating weight a proposal needs
func (v *Vault) QuorumRequired(ctx context.Context) (uint64, error) {
	if _, err := v.enter(ctx); err != nil {
		return 0, err
	}
	defer v.leave()
	return v.governor.QuorumRequired(), nil
}
