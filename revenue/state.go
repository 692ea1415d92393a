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

package revenue

import (
	"maps"
	"math/big"

	"github.com/blinklabs-io/coffer/types"
)

type State struct {
	RewardPerUnit    *big.Int                   `cbor:"1,keyasint"`
	PaidPerUnit      map[types.Address]*big.Int `cbor:"2,keyasint"`
	Pending          map[types.Address]uint64   `cbor:"3,keyasint"`
	TotalDistributed uint64                     `cbor:"4,keyasint"`
	TotalClaimed     uint64                     `cbor:"5,keyasint"`
}

func (d *Distributor) Export() State {
	paid := make(map[types.Address]*big.Int, len(d.paidPerUnit))
	for holder, v := range d.paidPerUnit {
		paid[holder] = new(big.Int).Set(v)
	}
	return State{
		RewardPerUnit:    new(big.Int).Set(d.rewardPerUnit),
		PaidPerUnit:      paid,
		Pending:          maps.Clone(d.pending),
		TotalDistributed: d.totalDistributed,
		TotalClaimed:     d.totalClaimed,
	}
}

func (d *Distributor) Restore(s State) {
	d.rewardPerUnit = new(big.Int)
	if s.RewardPerUnit != nil {
		d.rewardPerUnit.Set(s.RewardPerUnit)
	}
	d.paidPerUnit = make(map[types.Address]*big.Int, len(s.PaidPerUnit))
	for holder, v := range s.PaidPerUnit {
		d.paidPerUnit[holder] = new(big.Int).Set(v)
	}
	d.pending = make(map[types.Address]uint64, len(s.Pending))
	maps.Copy(d.pending, s.Pending)
	d.totalDistributed = s.TotalDistributed
	d.totalClaimed = s.TotalClaimed
}
