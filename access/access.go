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

// Package access holds the three privileged role slots of the treasury and
// the guards every privileged operation evaluates before touching state.
package access

import (
	"github.com/blinklabs-io/coffer/types"
)

// Roles holds exactly one address per role. It is not safe for concurrent
// use; the vault serializes access.
type Roles struct {
	agent    types.Address
	ceo      types.Address
	governor types.Address
}

// State is the exported form of Roles used for snapshots
type State struct {
	Agent    types.Address `cbor:"1,keyasint"`
	Ceo      types.Address `cbor:"2,keyasint"`
	Governor types.Address `cbor:"3,keyasint"`
}

// New creates the role set with its genesis agent and CEO. The governor slot
// stays unbound until BindGovernor is called.
func New(agent, ceo types.Address) (*Roles, error) {
	if agent.IsZero() || ceo.IsZero() {
		return nil, types.ErrZeroAddress
	}
	return &Roles{
		agent: agent,
		ceo:   ceo,
	}, nil
}

func (r *Roles) Agent() types.Address {
	return r.agent
}

func (r *Roles) Ceo() types.Address {
	return r.ceo
}

func (r *Roles) Governor() types.Address {
	return r.governor
}

// Holder returns the current holder of a role
func (r *Roles) Holder(role types.Role) types.Address {
	switch role {
	case types.RoleAgent:
		return r.agent
	case types.RoleCeo:
		return r.ceo
	case types.RoleGovernor:
		return r.governor
	default:
		return types.ZeroAddress
	}
}

// BindGovernor binds the governor slot. It can only succeed once.
func (r *Roles) BindGovernor(governor types.Address) error {
	if governor.IsZero() {
		return types.ErrZeroAddress
	}
	if !r.governor.IsZero() {
		return types.ErrAlreadyInitialized
	}
	r.governor = governor
	return nil
}

// Require fails unless caller currently holds role
func (r *Roles) Require(role types.Role, caller types.Address) error {
	holder := r.Holder(role)
	if holder.IsZero() {
		// Only the governor slot can be unbound
		return types.ErrNotInitialized
	}
	if caller.IsZero() || caller != holder {
		return types.NewUnauthorizedError(role.String(), caller)
	}
	return nil
}

// SetAgent replaces the agent. CEO only.
func (r *Roles) SetAgent(caller, agent types.Address) error {
	if err := r.Require(types.RoleCeo, caller); err != nil {
		return err
	}
	if agent.IsZero() {
		return types.ErrZeroAddress
	}
	r.agent = agent
	return nil
}

// ReplaceCeo replaces the CEO. Governor only.
func (r *Roles) ReplaceCeo(caller, ceo types.Address) error {
	if err := r.Require(types.RoleGovernor, caller); err != nil {
		return err
	}
	if ceo.IsZero() {
		return types.ErrZeroAddress
	}
	r.ceo = ceo
	return nil
}

func (r *Roles) Export() State {
	return State{
		Agent:    r.agent,
		Ceo:      r.ceo,
		Governor: r.governor,
	}
}

func (r *Roles) Restore(s State) {
	r.agent = s.Agent
	r.ceo = s.Ceo
	r.governor = s.Governor
}
