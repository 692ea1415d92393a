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

	"github.com/google/uuid"

	"github.com/blinklabs-io/coffer/access"
	"github.com/blinklabs-io/coffer/dissolution"
	"github.com/blinklabs-io/coffer/governance"
	"github.com/blinklabs-io/coffer/revenue"
	"github.com/blinklabs-io/coffer/shares"
	"github.com/blinklabs-io/coffer/treasury"
)

// State is the complete vault state at a journal sequence. Ledger balances
// are not part of it; they are read back from the ledger adapter.
type State struct {
	DeploymentId uuid.UUID         `cbor:"1,keyasint"`
	Sequence     uint64            `cbor:"2,keyasint"`
	Roles        access.State      `cbor:"3,keyasint"`
	Shares       shares.State      `cbor:"4,keyasint"`
	Treasury     treasury.State    `cbor:"5,keyasint"`
	Revenue      revenue.State     `cbor:"6,keyasint"`
	Dissolution  dissolution.State `cbor:"7,keyasint"`
	Governance   governance.State  `cbor:"8,keyasint"`
}

// Snapshot exports the vault state
func (v *Vault) Snapshot(ctx context.Context) (State, error) {
	if _, err := v.enter(ctx); err != nil {
		return State{}, err
	}
	defer v.leave()
	return State{
		DeploymentId: v.deploymentId,
		Sequence:     v.sequence.Load(),
		Roles:        v.roles.Export(),
		Shares:       v.shares.Export(),
		Treasury:     v.treasury.Export(),
		Revenue:      v.revenue.Export(),
		Dissolution:  v.dissolution.Export(),
		Governance:   v.governor.Export(),
	}, nil
}

// Restore replaces the vault state with a snapshot. The snapshot must come
// from the same deployment and must not be older than the operations already
// applied.
func (v *Vault) Restore(ctx context.Context, s State) error {
	if _, err := v.enter(ctx); err != nil {
		return err
	}
	defer v.leave()
	if s.DeploymentId != uuid.Nil && s.DeploymentId != v.deploymentId &&
		v.sequence.Load() > 0 {
		return fmt.Errorf(
			"restore: snapshot from deployment %s, vault is %s",
			s.DeploymentId,
			v.deploymentId,
		)
	}
	if s.Sequence < v.sequence.Load() {
		return fmt.Errorf(
			"restore: snapshot sequence %d is behind vault sequence %d",
			s.Sequence,
			v.sequence.Load(),
		)
	}
	if s.DeploymentId != uuid.Nil {
		v.deploymentId = s.DeploymentId
	}
	v.sequence.Store(s.Sequence)
	v.roles.Restore(s.Roles)
	v.shares.Restore(s.Shares)
	v.treasury.Restore(s.Treasury)
	v.revenue.Restore(s.Revenue)
	v.dissolution.Restore(s.Dissolution)
	v.governor.Restore(s.Governance)
	v.config.logger.Info(
		"vault state restored",
		"component", "vault",
		"sequence", s.Sequence,
		"lifecycle", v.treasury.Lifecycle().String(),
	)
	if v.metrics != nil {
		v.metrics.updateProposals(v.proposalCounts())
	}
	return nil
}
