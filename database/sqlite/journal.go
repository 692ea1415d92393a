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

package sqlite

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/coffer/database/models"
)

// ErrDuplicateSequence is returned when a journal entry reuses a sequence
var ErrDuplicateSequence = errors.New("duplicate journal sequence")

// AddJournalEntry appends an entry. Sequences must strictly increase.
func (d *MetadataStoreSqlite) AddJournalEntry(entry *models.JournalEntry) error {
	latest, err := d.GetLatestSequence()
	if err != nil {
		return err
	}
	if entry.Sequence <= latest {
		return fmt.Errorf(
			"%w: %d (latest %d)",
			ErrDuplicateSequence,
			entry.Sequence,
			latest,
		)
	}
	if result := d.DB().Create(entry); result.Error != nil {
		return result.Error
	}
	if d.metrics != nil {
		d.metrics.journalEntries.Inc()
	}
	return nil
}

// GetJournal returns up to limit entries with a sequence greater than after,
// in sequence order. A zero limit returns everything.
func (d *MetadataStoreSqlite) GetJournal(
	after uint64,
	limit int,
) ([]models.JournalEntry, error) {
	var ret []models.JournalEntry
	query := d.DB().
		Where("sequence > ?", after).
		Order("sequence ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if result := query.Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetLatestSequence returns the highest journal sequence, or 0 when empty
func (d *MetadataStoreSqlite) GetLatestSequence() (uint64, error) {
	var tmpEntry models.JournalEntry
	result := d.DB().Order("sequence DESC").First(&tmpEntry)
	if result.Error != nil {
		if isNotFound(result.Error) {
			return 0, nil
		}
		return 0, result.Error
	}
	return tmpEntry.Sequence, nil
}
