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

// Package shares implements the ownership ledger: a fixed supply of shares
// minted once at genesis, per-holder balances, vote delegation and a
// checkpoint table of voting weight keyed by ledger sequence.
//
// Every mutation advances the ledger sequence by one. Voting weight is read
// "as of" a sequence, so a weight captured for a proposal cannot be changed
// by transfers that happen after the proposal was created.
package shares

import (
	"slices"
	"sort"

	"github.com/blinklabs-io/coffer/types"
)

// Allocation is one entry of the genesis split
type Allocation struct {
	Holder types.Address `yaml:"holder"`
	Bps    uint32        `yaml:"bps"`
}

// BalanceHook is notified before a holder's balance changes
type BalanceHook interface {
	BeforeBalanceChange(holder types.Address)
}

// Checkpoint records the voting weight of an account from Sequence onward
type Checkpoint struct {
	Sequence uint64 `cbor:"1,keyasint"`
	Weight   uint64 `cbor:"2,keyasint"`
}

// Ledger is not safe for concurrent use; the vault serializes access.
type Ledger struct {
	totalSupply uint64
	minted      bool
	frozen      bool
	sequence    uint64
	balances    map[types.Address]uint64
	delegates   map[types.Address]types.Address
	checkpoints map[types.Address][]Checkpoint
	hooks       []BalanceHook
}

func NewLedger() *Ledger {
	return &Ledger{
		balances:    make(map[types.Address]uint64),
		delegates:   make(map[types.Address]types.Address),
		checkpoints: make(map[types.Address][]Checkpoint),
	}
}

// AddHook registers a hook that runs before every balance change
func (l *Ledger) AddHook(hook BalanceHook) {
	l.hooks = append(l.hooks, hook)
}

// Mint creates the whole supply from a basis-point split. Each holder is
// self-delegated. The integer remainder of the split goes to the last
// allocation so balances always sum to totalSupply.
func (l *Ledger) Mint(totalSupply uint64, split []Allocation) error {
	if l.minted {
		return types.ErrAlreadyInitialized
	}
	if totalSupply == 0 {
		return types.ErrZeroAmount
	}
	if err := ValidateSplit(split); err != nil {
		return err
	}
	l.sequence++
	var assigned uint64
	for i, alloc := range split {
		amount := types.MulDiv(totalSupply, uint64(alloc.Bps), types.BasisPoints)
		if i == len(split)-1 {
			amount = totalSupply - assigned
		}
		assigned += amount
		l.balances[alloc.Holder] = amount
		l.delegates[alloc.Holder] = alloc.Holder
		l.writeCheckpoint(alloc.Holder, amount)
	}
	l.totalSupply = totalSupply
	l.minted = true
	return nil
}

// ValidateSplit checks that a genesis split is usable for minting
func ValidateSplit(split []Allocation) error {
	if len(split) == 0 {
		return types.ErrInvalidSplit
	}
	seen := make(map[types.Address]struct{}, len(split))
	var total uint64
	for _, alloc := range split {
		if alloc.Holder.IsZero() {
			return types.ErrZeroAddress
		}
		if alloc.Bps == 0 {
			return types.ErrInvalidSplit
		}
		if _, ok := seen[alloc.Holder]; ok {
			return types.ErrInvalidSplit
		}
		seen[alloc.Holder] = struct{}{}
		total += uint64(alloc.Bps)
	}
	if total != types.BasisPoints {
		return types.ErrInvalidSplit
	}
	return nil
}

func (l *Ledger) Minted() bool {
	return l.minted
}

func (l *Ledger) TotalSupply() uint64 {
	return l.totalSupply
}

func (l *Ledger) BalanceOf(holder types.Address) uint64 {
	return l.balances[holder]
}

// Holders returns every address with a non-zero balance, sorted
func (l *Ledger) Holders() []types.Address {
	ret := make([]types.Address, 0, len(l.balances))
	for holder, balance := range l.balances {
		if balance > 0 {
			ret = append(ret, holder)
		}
	}
	slices.Sort(ret)
	return ret
}

// DelegateOf returns the account that receives holder's voting weight
func (l *Ledger) DelegateOf(holder types.Address) types.Address {
	if delegatee, ok := l.delegates[holder]; ok {
		return delegatee
	}
	return holder
}

// Sequence returns the current ledger sequence
func (l *Ledger) Sequence() uint64 {
	return l.sequence
}

func (l *Ledger) Frozen() bool {
	return l.frozen
}

// Freeze makes all balances immutable. It is irreversible.
func (l *Ledger) Freeze() {
	l.frozen = true
}

func (l *Ledger) requireMutable() error {
	if !l.minted {
		return types.ErrNotInitialized
	}
	if l.frozen {
		return types.ErrSharesFrozen
	}
	return nil
}

// Transfer moves shares between holders. Hooks run for both parties before
// either balance changes.
func (l *Ledger) Transfer(from, to types.Address, amount uint64) error {
	if err := l.requireMutable(); err != nil {
		return err
	}
	if from.IsZero() || to.IsZero() {
		return types.ErrZeroAddress
	}
	if amount == 0 {
		return types.ErrZeroAmount
	}
	balance := l.balances[from]
	if balance < amount {
		return types.NewInsufficientBalanceError(amount, balance)
	}
	for _, hook := range l.hooks {
		hook.BeforeBalanceChange(from)
		hook.BeforeBalanceChange(to)
	}
	l.sequence++
	l.balances[from] = balance - amount
	l.balances[to] += amount
	if _, ok := l.delegates[to]; !ok {
		l.delegates[to] = to
	}
	l.moveWeight(l.DelegateOf(from), l.DelegateOf(to), amount)
	return nil
}

// Delegate points holder's voting weight at delegatee
func (l *Ledger) Delegate(holder, delegatee types.Address) error {
	if err := l.requireMutable(); err != nil {
		return err
	}
	if holder.IsZero() || delegatee.IsZero() {
		return types.ErrZeroAddress
	}
	previous := l.DelegateOf(holder)
	if previous == delegatee {
		return nil
	}
	l.sequence++
	l.delegates[holder] = delegatee
	l.moveWeight(previous, delegatee, l.balances[holder])
	return nil
}

func (l *Ledger) moveWeight(from, to types.Address, amount uint64) {
	if from == to || amount == 0 {
		return
	}
	l.writeCheckpoint(from, l.Votes(from)-amount)
	l.writeCheckpoint(to, l.Votes(to)+amount)
}

// writeCheckpoint records weight for account at the current sequence
func (l *Ledger) writeCheckpoint(account types.Address, weight uint64) {
	cps := l.checkpoints[account]
	if n := len(cps); n > 0 && cps[n-1].Sequence == l.sequence {
		cps[n-1].Weight = weight
		return
	}
	l.checkpoints[account] = append(
		cps,
		Checkpoint{Sequence: l.sequence, Weight: weight},
	)
}

// Votes returns the current voting weight of account
func (l *Ledger) Votes(account types.Address) uint64 {
	cps := l.checkpoints[account]
	if len(cps) == 0 {
		return 0
	}
	return cps[len(cps)-1].Weight
}

// VotesAt returns the voting weight account held as of sequence
func (l *Ledger) VotesAt(account types.Address, sequence uint64) uint64 {
	cps := l.checkpoints[account]
	// First checkpoint strictly after sequence
	idx := sort.Search(len(cps), func(i int) bool {
		return cps[i].Sequence > sequence
	})
	if idx == 0 {
		return 0
	}
	return cps[idx-1].Weight
}
