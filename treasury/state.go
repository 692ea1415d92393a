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

package treasury

import (
	"time"

	"github.com/blinklabs-io/coffer/types"
)

// State is the exported policy state used for snapshots. Balances are not
// part of it, they live on the ledger.
type State struct {
	Limits           Limits          `cbor:"1,keyasint"`
	DailySpent       uint64          `cbor:"2,keyasint"`
	WindowStart      time.Time       `cbor:"3,keyasint"`
	WhitelistEnabled bool            `cbor:"4,keyasint"`
	Whitelist        []types.Address `cbor:"5,keyasint"`
	Paused           bool            `cbor:"6,keyasint"`
	Lifecycle        types.Lifecycle `cbor:"7,keyasint"`
	Reserved         uint64          `cbor:"8,keyasint"`
}

func (t *Treasury) Export() State {
	return State{
		Limits:           t.limits,
		DailySpent:       t.dailySpent,
		WindowStart:      t.windowStart,
		WhitelistEnabled: t.whitelistEnabled,
		Whitelist:        t.Whitelist(),
		Paused:           t.paused,
		Lifecycle:        t.lifecycle,
		Reserved:         t.reserved,
	}
}

func (t *Treasury) Restore(s State) {
	t.limits = s.Limits
	t.dailySpent = s.DailySpent
	t.windowStart = s.WindowStart
	t.whitelistEnabled = s.WhitelistEnabled
	t.whitelist = make(map[types.Address]bool, len(s.Whitelist))
	for _, addr := range s.Whitelist {
		t.whitelist[addr] = true
	}
	t.paused = s.Paused
	t.lifecycle = s.Lifecycle
	t.reserved = s.Reserved
}
