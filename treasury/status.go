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
	"context"
	"maps"
	"slices"
	"time"

	"github.com/blinklabs-io/coffer/types"
)

// Status is the aggregate read consumed by dashboards and bots
type Status struct {
	Balance          uint64          `json:"balance"`
	Reserved         uint64          `json:"reserved"`
	Available        uint64          `json:"available"`
	YieldPosition    uint64          `json:"yieldPosition"`
	MaxPerTx         uint64          `json:"maxPerTx"`
	DailyLimit       uint64          `json:"dailyLimit"`
	SpentToday       uint64          `json:"spentToday"`
	RemainingToday   uint64          `json:"remainingToday"`
	WindowStart      time.Time       `json:"windowStart"`
	WhitelistEnabled bool            `json:"whitelistEnabled"`
	Paused           bool            `json:"paused"`
	Lifecycle        types.Lifecycle `json:"lifecycle"`
	Agent            types.Address   `json:"agent"`
	Ceo              types.Address   `json:"ceo"`
	Governor         types.Address   `json:"governor"`
}

// Status reports the treasury state, including the daily window as it would
// be if it rolled now
func (t *Treasury) Status(ctx context.Context) (Status, error) {
	balance, err := t.Balance(ctx)
	if err != nil {
		return Status{}, err
	}
	position, err := t.YieldPosition(ctx)
	if err != nil {
		return Status{}, err
	}
	spent, start := t.windowAt(t.nowFunc())
	ret := Status{
		Balance:          balance,
		Reserved:         t.reserved,
		YieldPosition:    position,
		MaxPerTx:         t.limits.MaxPerTx,
		DailyLimit:       t.limits.DailyLimit,
		SpentToday:       spent,
		RemainingToday:   t.limits.DailyLimit - min(spent, t.limits.DailyLimit),
		WindowStart:      start,
		WhitelistEnabled: t.whitelistEnabled,
		Paused:           t.paused,
		Lifecycle:        t.lifecycle,
		Agent:            t.roles.Agent(),
		Ceo:              t.roles.Ceo(),
		Governor:         t.roles.Governor(),
	}
	if balance > t.reserved {
		ret.Available = balance - t.reserved
	}
	return ret, nil
}

// Whitelist returns the whitelisted addresses, sorted
func (t *Treasury) Whitelist() []types.Address {
	return slices.Sorted(maps.Keys(t.whitelist))
}
