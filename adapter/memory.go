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

// Package adapter provides in-memory implementations of the value-transfer
// rail and yield venue. They back dev mode and tests; production deployments
// supply their own.
package adapter

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/blinklabs-io/coffer/types"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

// TransferFunc observes transfers out of the bound account. A non-nil error
// fails the transfer before any balance moves.
type TransferFunc func(ctx context.Context, to types.Address, amount uint64) error

// MemoryLedger is a fungible balance table. The Transfer and TransferFrom
// methods act on behalf of the bound owner account.
type MemoryLedger struct {
	mu         sync.Mutex
	owner      types.Address
	balances   map[types.Address]uint64
	onTransfer TransferFunc
}

func NewMemoryLedger(owner types.Address) *MemoryLedger {
	return &MemoryLedger{
		owner:    owner,
		balances: make(map[types.Address]uint64),
	}
}

// OnTransfer installs a transfer observer
func (m *MemoryLedger) OnTransfer(fn TransferFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTransfer = fn
}

// Mint credits account out of thin air
func (m *MemoryLedger) Mint(account types.Address, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] += amount
}

// Move transfers between two arbitrary accounts
func (m *MemoryLedger) Move(from, to types.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.move(from, to, amount)
}

func (m *MemoryLedger) move(from, to types.Address, amount uint64) error {
	if m.balances[from] < amount {
		return ErrInsufficientFunds
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	return nil
}

func (m *MemoryLedger) Transfer(
	ctx context.Context,
	to types.Address,
	amount uint64,
) error {
	m.mu.Lock()
	fn := m.onTransfer
	m.mu.Unlock()
	// The observer runs without the lock so it may call back into the ledger
	if fn != nil {
		if err := fn(ctx, to, amount); err != nil {
			return err
		}
	}
	return m.Move(m.owner, to, amount)
}

func (m *MemoryLedger) TransferFrom(
	_ context.Context,
	from types.Address,
	amount uint64,
) error {
	return m.Move(from, m.owner, amount)
}

func (m *MemoryLedger) BalanceOf(
	_ context.Context,
	account types.Address,
) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account], nil
}

// Balances returns a copy of every balance
func (m *MemoryLedger) Balances() map[types.Address]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.balances)
}

// MemoryYield is a yield venue that parks funds in its own ledger account
type MemoryYield struct {
	ledger  *MemoryLedger
	account types.Address
}

func NewMemoryYield(ledger *MemoryLedger, account types.Address) *MemoryYield {
	return &MemoryYield{
		ledger:  ledger,
		account: account,
	}
}

func (y *MemoryYield) Invest(_ context.Context, amount uint64) error {
	return y.ledger.Move(y.ledger.owner, y.account, amount)
}

func (y *MemoryYield) Redeem(_ context.Context, amount uint64) error {
	return y.ledger.Move(y.account, y.ledger.owner, amount)
}

func (y *MemoryYield) Position(ctx context.Context) (uint64, error) {
	return y.ledger.BalanceOf(ctx, y.account)
}

// Accrue credits earned yield to the position
func (y *MemoryYield) Accrue(amount uint64) {
	y.ledger.Mint(y.account, amount)
}
