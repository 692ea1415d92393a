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

package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/blinklabs-io/coffer/database/badger"
)

// SnapshotSequenceError reports that the snapshot marker in the metadata
// store disagrees with the newest snapshot in the snapshot store
type SnapshotSequenceError struct {
	MetadataSequence uint64
	SnapshotSequence uint64
}

func (e SnapshotSequenceError) Error() string {
	return fmt.Sprintf(
		"snapshot sequence mismatch: %d (metadata) != %d (snapshot)",
		e.MetadataSequence,
		e.SnapshotSequence,
	)
}

// JournalGapError reports a snapshot newer than the journal it summarizes
type JournalGapError struct {
	SnapshotSequence uint64
	JournalSequence  uint64
}

func (e JournalGapError) Error() string {
	return fmt.Sprintf(
		"snapshot sequence %d is ahead of journal sequence %d",
		e.SnapshotSequence,
		e.JournalSequence,
	)
}

// ClockOriginError reports slot clock parameters that differ from the ones
// recorded with the stored governance heights
type ClockOriginError struct {
	RecordedStart  time.Time
	RecordedLength time.Duration
	Start          time.Time
	Length         time.Duration
}

func (e ClockOriginError) Error() string {
	return fmt.Sprintf(
		"slot clock (start %s, slot %s) does not match the recorded clock (start %s, slot %s)",
		e.Start.Format(time.RFC3339Nano),
		e.Length,
		e.RecordedStart.Format(time.RFC3339Nano),
		e.RecordedLength,
	)
}

// ClockOrigin returns the start time of slot zero. The first call on a
// database records systemStart, or the current time when systemStart is zero,
// so that slot heights keep counting across restarts. Later calls return the
// recorded start and fail with ClockOriginError when systemStart or
// slotLength disagree with it.
func (d *Database) ClockOrigin(
	systemStart time.Time,
	slotLength time.Duration,
) (time.Time, error) {
	start, length, ok, err := d.metadata.GetClockOrigin()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get clock origin: %w", err)
	}
	if ok {
		if length != slotLength ||
			(!systemStart.IsZero() && !systemStart.Equal(start)) {
			return time.Time{}, ClockOriginError{
				RecordedStart:  start,
				RecordedLength: length,
				Start:          systemStart,
				Length:         slotLength,
			}
		}
		return start, nil
	}
	start = systemStart
	if start.IsZero() {
		start = time.Now()
	}
	// Nanosecond precision is all that is stored
	start = time.Unix(0, start.UnixNano()).UTC()
	if err := d.metadata.SetClockOrigin(start, slotLength); err != nil {
		return time.Time{}, fmt.Errorf("failed to record clock origin: %w", err)
	}
	return start, nil
}

func (d *Database) checkSnapshotSequence() error {
	metadataSeq, err := d.metadata.GetSnapshotSequence()
	if err != nil {
		return fmt.Errorf("failed to get snapshot marker: %w", err)
	}
	// No snapshot in the database
	if metadataSeq == 0 {
		return nil
	}
	snapshotSeq, _, err := d.snapshots.Latest()
	if err != nil {
		if errors.Is(err, badger.ErrSnapshotNotFound) {
			return SnapshotSequenceError{MetadataSequence: metadataSeq}
		}
		return fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	if snapshotSeq != metadataSeq {
		return SnapshotSequenceError{
			MetadataSequence: metadataSeq,
			SnapshotSequence: snapshotSeq,
		}
	}
	journalSeq, err := d.metadata.GetLatestSequence()
	if err != nil {
		return fmt.Errorf("failed to get journal sequence: %w", err)
	}
	if snapshotSeq > journalSeq {
		return JournalGapError{
			SnapshotSequence: snapshotSeq,
			JournalSequence:  journalSeq,
		}
	}
	return nil
}
