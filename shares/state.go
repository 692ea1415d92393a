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
	"maps"
	"slices"

	"github.com/blinklabs-io/coffer/types"
)

// State is the exported form of Ledger used for snapshots
type State struct {
	TotalSupply uint64                          `cbor:"1,keyasint"`
	Minted      bool                            `cbor:"2,keyasint"`
	Frozen      bool                            `cbor:"3,keyasint"`
	Sequence    uint64                          `cbor:"4,keyasint"`
	Balances    map[types.Address]uint64        `cbor:"5,keyasint"`
	Delegates   map[types.Address]types.Address `cbor:"6,keyasint"`
	Checkpoints map[types.Address][]Checkpoint  `cbor:"7,keyasint"`
}

func (l *Ledger) Export() State {
	cps := make(map[types.Address][]Checkpoint, len(l.checkpoints))
	for account, list := range l.checkpoints {
		cps[account] = slices.Clone(list)
	}
	return State{
		TotalSupply: l.totalSupply,
		Minted:      l.minted,
		Frozen:      l.frozen,
		Sequence:    l.sequence,
		Balances:    maps.Clone(l.balances),
		Delegates:   maps.Clone(l.delegates),
		Checkpoints: cps,
	}
}

// Restore replaces the ledger contents. Registered hooks are kept.
func (l *Ledger) Restore(s State) {
	l.totalSupply = s.TotalSupply
	l.minted = s.Minted
	l.frozen = s.Frozen
	l.sequence = s.Sequence
	l.balances = make(map[types.Address]uint64, len(s.Balances))
	maps.Copy(l.balances, s.Balances)
	l.delegates = make(map[types.Address]types.Address, len(s.Delegates))
	maps.Copy(l.delegates, s.Delegates)
	l.checkpoints = make(map[types.Address][]Checkpoint, len(s.Checkpoints))
	for account, list := range s.Checkpoints {
		l.checkpoints[account] = slices.Clone(list)
	}
}
