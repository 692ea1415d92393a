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


package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blinklabs-io/coffer"
	"github.com/blinklabs-io/coffer/database"
	"github.com/blinklabs-io/coffer/event"
	"github.com/blinklabs-io/coffer/types"
)

const snapshotRetryDelay = 50 * time.Millisecond

// JournalAheadError reports journal entries that no snapshot covers. The
// vault cannot rebuild that state, and reusing those sequence numbers would
// corrupt the journal.
type JournalAheadError struct {
	SnapshotSequence uint64
	JournalSequence  uint64
}

func (e JournalAheadError) Error() string {
	return fmt.Sprintf(
		"journal sequence %d is ahead of snapshot sequence %d",
		e.JournalSequence,
		e.SnapshotSequence,
	)
}

// snapshotTrigger is an event bus sink that wakes the snapshot loop. Signals
// coalesce, so a burst of operations leads to one snapshot.
type snapshotTrigger struct {
	ch chan struct{}
}

func newSnapshotTrigger() *snapshotTrigger {
	return &snapshotTrigger{ch: make(chan struct{}, 1)}
}

func (s *snapshotTrigger) Deliver(event.Event) error {
	select {
	case s.ch <- struct{}{}:
	default:
	}
	return nil
}

func (s *snapshotTrigger) Close() {}

// restore loads the newest snapshot into the vault and checks that the
// journal holds nothing newer
func (n *Node) restore(ctx context.Context) error {
	var state coffer.State
	seq, err := n.db.LoadSnapshot(&state)
	switch {
	case errors.Is(err, database.ErrSnapshotNotFound):
		n.logger.Info("no snapshot found, starting from genesis", "component", "node")
	case err != nil:
		return fmt.Errorf("failed to load snapshot: %w", err)
	default:
		if state.Sequence != seq {
			return fmt.Errorf(
				"snapshot %d holds state for sequence %d",
				seq,
				state.Sequence,
			)
		}
		if err := n.vault.Restore(ctx, state); err != nil {
			return err
		}
	}
	journalSeq, err := n.db.LatestSequence()
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	if journalSeq > n.vault.Sequence() {
		return JournalAheadError{
			SnapshotSequence: n.vault.Sequence(),
			JournalSequence:  journalSeq,
		}
	}
	n.snapshotMu.Lock()
	n.lastSnapshot = n.vault.Sequence()
	n.snapshotMu.Unlock()
	n.restored = true
	return nil
}

func (n *Node) startSnapshots() {
	n.snapshotTrigger = newSnapshotTrigger()
	n.vault.EventBus().RegisterSubscriber(
		event.OperationEventType,
		n.snapshotTrigger,
	)
	n.wg.Add(1)
	go n.snapshotLoop()
}

func (n *Node) snapshotLoop() {
	defer n.wg.Done()
	var tickC <-chan time.Time
	if n.snapshotInterval > 0 {
		ticker := time.NewTicker(n.snapshotInterval)
		defer ticker.Stop()
		tickC = ticker.C
	}
	var retryC <-chan time.Time
	for {
		select {
		case <-n.stopCh:
			return
		case <-n.snapshotTrigger.ch:
		case <-tickC:
		case <-retryC:
		}
		retryC = nil
		err := n.saveSnapshot(context.Background())
		if errors.Is(err, types.ErrReentrantCall) {
			// The vault is inside an adapter call
			retryC = time.After(snapshotRetryDelay)
			continue
		}
		if err != nil {
			n.logger.Error(
				"failed to save snapshot",
				"component", "node",
				"error", err,
			)
		}
	}
}

// saveSnapshot writes the vault state if it moved since the last save
func (n *Node) saveSnapshot(ctx context.Context) error {
	n.snapshotMu.Lock()
	defer n.snapshotMu.Unlock()
	state, err := n.vault.Snapshot(ctx)
	if err != nil {
		return err
	}
	if state.Sequence <= n.lastSnapshot {
		return nil
	}
	if err := n.db.SaveSnapshot(state.Sequence, state); err != nil {
		return err
	}
	n.lastSnapshot = state.Sequence
	return nil
}

// Snapshot saves the vault state now
func (n *Node) Snapshot(ctx context.Context) error {
	if !n.restored {
		return errors.New("node not started")
	}
	return n.saveSnapshot(ctx)
}
