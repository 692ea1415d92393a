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

package governance

import (
	"github.com/blinklabs-io/coffer/types"
)

type State struct {
	Proposals []Proposal `cbor:"1,keyasint"`
	Votes     []Vote     `cbor:"2,keyasint"`
}

func (g *Governor) Export() State {
	ret := State{
		Proposals: g.Proposals(),
	}
	for _, p := range ret.Proposals {
		votes, _ := g.Votes(p.Id)
		ret.Votes = append(ret.Votes, votes...)
	}
	return ret
}

func (g *Governor) Restore(s State) {
	g.proposals = make(map[ProposalId]*Proposal, len(s.Proposals))
	for _, p := range s.Proposals {
		g.proposals[p.Id] = &p
	}
	g.votes = make(map[ProposalId]map[types.Address]Vote)
	for _, v := range s.Votes {
		if g.votes[v.ProposalId] == nil {
			g.votes[v.ProposalId] = make(map[types.Address]Vote)
		}
		g.votes[v.ProposalId][v.Voter] = v
	}
}
