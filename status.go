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
	"errors"

	"github.com/google/uuid"

	"github.com/blinklabs-io/coffer/dissolution"
	"github.com/blinklabs-io/coffer/treasury"
	"github.com/blinklabs-io/coffer/types"
)

// Status is the aggregate read served to dashboards and bots
type Status struct {
	treasury.Status
	TotalSupply      uint64              `json:"totalSupply"`
	Holders          int                 `json:"holders"`
	SharesFrozen     bool                `json:"sharesFrozen"`
	TotalDistributed uint64              `json:"totalDistributed"`
	TotalClaimed     uint64              `json:"totalClaimed"`
	Decimals         int32               `json:"decimals"`
	Sequence         uint64              `json:"sequence"`
	Height           uint64              `json:"height"`
	Settlement       *dissolution.Record `json:"settlement,omitempty"`
}

func (v *Vault) Status(ctx context.Context) (Status, error) {
	ctx, err := v.enter(ctx)
	if err != nil {
		return Status{}, err
	}
	defer v.leave()
	trStatus, err := v.treasury.Status(ctx)
	if err != nil {
		return Status{}, err
	}
	ret := Status{
		Status:           trStatus,
		TotalSupply:      v.shares.TotalSupply(),
		Holders:          len(v.shares.Holders()),
		SharesFrozen:     v.shares.Frozen(),
		TotalDistributed: v.revenue.TotalDistributed(),
		TotalClaimed:     v.revenue.TotalClaimed(),
		Decimals:         v.genesis.Decimals,
		Sequence:         v.sequence.Load(),
		Height:           v.clock.Height(),
	}
	rec, err := v.dissolution.Record()
	switch {
	case err == nil:
		ret.Settlement = &rec
	case !errors.Is(err, types.ErrInvalidLifecycleState):
		return Status{}, err
	}
	if v.metrics != nil {
		v.metrics.updateTreasury(trStatus)
	}
	return ret, nil
}

// Discovery is the record a client needs to locate the deployment
type Discovery struct {
	DeploymentId    uuid.UUID     `json:"deploymentId"`
	Treasury        types.Address `json:"treasury"`
	OwnershipLedger types.Address `json:"ownershipLedger"`
	Governor        types.Address `json:"governor"`
	Ceo             types.Address `json:"ceo"`
}

func (v *Vault) Discovery(ctx context.Context) (Discovery, error) {
	if _, err := v.enter(ctx); err != nil {
		return Discovery{}, err
	}
	defer v.leave()
	return Discovery{
		DeploymentId:    v.deploymentId,
		Treasury:        v.genesis.TreasuryAccount,
		OwnershipLedger: v.genesis.SharesAccount,
		Governor:        v.roles.Governor(),
		Ceo:             v.roles.Ceo(),
	}, nil
}

// Holder is one row of the ownership ledger
type Holder struct {
	Address        types.Address `json:"address"`
	Balance        uint64        `json:"balance"`
	Delegate       types.Address `json:"delegate"`
	Votes          uint64        `json:"votes"`
	PendingRevenue uint64        `json:"pendingRevenue"`
}

// Holders lists every account with a non-zero share balance, sorted by
// address
func (v *Vault) Holders(ctx context.Context) ([]Holder, error) {
	if _, err := v.enter(ctx); err != nil {
		return nil, err
	}
	defer v.leave()
	addrs := v.shares.Holders()
	ret := make([]Holder, 0, len(addrs))
	for _, addr := range addrs {
		ret = append(ret, Holder{
			Address:        addr,
			Balance:        v.shares.BalanceOf(addr),
			Delegate:       v.shares.DelegateOf(addr),
			Votes:          v.shares.Votes(addr),
			PendingRevenue: v.revenue.PendingRevenue(addr),
		})
	}
	return ret, nil
}
