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
	"github.com/blinklabs-io/coffer/types"
)

// SetLimits replaces the spend limits. The amount already spent in the
// current window is kept and counts against the new daily limit.
func (t *Treasury) SetLimits(caller types.Address, limits Limits) error {
	if err := t.roles.Require(types.RoleCeo, caller); err != nil {
		return err
	}
	if err := limits.Validate(); err != nil {
		return err
	}
	t.limits = limits
	// Keep dailySpent <= dailyLimit when the limit is lowered mid-window
	t.rollWindow(t.nowFunc())
	t.dailySpent = min(t.dailySpent, limits.DailyLimit)
	return nil
}

func (t *Treasury) SetWhitelist(
	caller types.Address,
	addr types.Address,
	allowed bool,
) error {
	if err := t.roles.Require(types.RoleCeo, caller); err != nil {
		return err
	}
	if addr.IsZero() {
		return types.ErrZeroAddress
	}
	if allowed {
		t.whitelist[addr] = true
	} else {
		delete(t.whitelist, addr)
	}
	return nil
}

func (t *Treasury) SetWhitelistEnabled(caller types.Address, enabled bool) error {
	if err := t.roles.Require(types.RoleCeo, caller); err != nil {
		return err
	}
	t.whitelistEnabled = enabled
	return nil
}

func (t *Treasury) SetAgent(caller, agent types.Address) error {
	return t.roles.SetAgent(caller, agent)
}

// SetPaused toggles the pause flag. Unpausing is refused once dissolution
// has begun.
func (t *Treasury) SetPaused(caller types.Address, paused bool) error {
	if err := t.roles.Require(types.RoleCeo, caller); err != nil {
		return err
	}
	if !paused {
		if err := t.RequireLifecycle(types.LifecycleActive); err != nil {
			return err
		}
	}
	t.paused = paused
	return nil
}

// Pause sets the pause flag without a role check
func (t *Treasury) Pause() {
	t.paused = true
}

// ReplaceCeo is a governance entry point
func (t *Treasury) ReplaceCeo(caller, ceo types.Address) error {
	return t.roles.ReplaceCeo(caller, ceo)
}
