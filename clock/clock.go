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

// Package clock provides the two time sources used by the treasury: wall
// clock time for the daily spend window and a monotonic slot height for
// governance timing.
package clock

import (
	"errors"
	"sync"
	"time"
)

// Clock is the time source consumed by the vault
type Clock interface {
	// Now returns the current wall clock time
	Now() time.Time
	// Height returns the current slot height. It never decreases.
	Height() uint64
}

// SlotClock derives the slot height from wall clock time as the number of
// whole slots elapsed since genesis
type SlotClock struct {
	genesis    time.Time
	slotLength time.Duration
	nowFunc    func() time.Time

	mu         sync.Mutex
	lastHeight uint64
}

func NewSlotClock(
	genesis time.Time,
	slotLength time.Duration,
) (*SlotClock, error) {
	if slotLength <= 0 {
		return nil, errors.New("slot length must be positive")
	}
	return &SlotClock{
		genesis:    genesis,
		slotLength: slotLength,
		nowFunc:    time.Now,
	}, nil
}

func (c *SlotClock) Now() time.Time {
	return c.nowFunc()
}

// Height returns the slot number for the current time. A wall clock that
// steps backwards does not move the height backwards.
func (c *SlotClock) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFunc()
	if now.Before(c.genesis) {
		return c.lastHeight
	}
	height := uint64(now.Sub(c.genesis) / c.slotLength)
	if height > c.lastHeight {
		c.lastHeight = height
	}
	return c.lastHeight
}

// SlotToTime returns the start time of a slot
func (c *SlotClock) SlotToTime(slot uint64) time.Time {
	// #nosec G115
	return c.genesis.Add(time.Duration(slot) * c.slotLength)
}

// ManualClock is a Clock that only moves when told to. It is used by tests
// and by dev mode tooling.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	height uint64
}

func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

// Advance moves wall clock time forward
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// AdvanceHeight moves the slot height forward by n
func (c *ManualClock) AdvanceHeight(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height += n
}
