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
	"sync/atomic"

	"github.com/blinklabs-io/coffer/treasury"
	"github.com/blinklabs-io/coffer/types"
)

// guardedLedger flags the vault as busy for the duration of every ledger
// adapter call
type guardedLedger struct {
	inner treasury.Ledger
	busy  *atomic.Bool
}

func (g *guardedLedger) Transfer(
	ctx context.Context,
	to types.Address,
	amount uint64,
) error {
	g.busy.Store(true)
	defer g.busy.Store(false)
	return g.inner.Transfer(ctx, to, amount)
}

func (g *guardedLedger) TransferFrom(
	ctx context.Context,
	from types.Address,
	amount uint64,
) error {
	g.busy.Store(true)
	defer g.busy.Store(false)
	return g.inner.TransferFrom(ctx, from, amount)
}

func (g *guardedLedger) BalanceOf(
	ctx context.Context,
	account types.Address,
) (uint64, error) {
	g.busy.Store(true)
	defer g.busy.Store(false)
	return g.inner.BalanceOf(ctx, account)
}

type guardedYield struct {
	inner treasury.YieldStrategy
	busy  *atomic.Bool
}

func (v *Vault) guardYield(yield treasury.YieldStrategy) treasury.YieldStrategy {
	if yield == nil {
		return nil
	}
	return &guardedYield{inner: yield, busy: &v.inAdapter}
}

func (g *guardedYield) Invest(ctx context.Context, amount uint64) error {
	g.busy.Store(true)
	defer g.busy.Store(false)
	return g.inner.Invest(ctx, amount)
}

func (g *guardedYield) Redeem(ctx context.Context, amount uint64) error {
	g.busy.Store(true)
	defer g.busy.Store(false)
	return g.inner.Redeem(ctx, amount)
}

func (g *guardedYield) Position(ctx context.Context) (uint64, error) {
	g.busy.Store(true)
	defer g.busy.Store(false)
	return g.inner.Position(ctx)
}
