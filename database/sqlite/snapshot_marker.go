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
	"gorm.io/gorm/clause"
)

const (
	snapshotMarkerRowId = 1
)

// SnapshotMarker represents the sqlite table used to track the journal
// sequence covered by the most recent vault snapshot
type SnapshotMarker struct {
	ID       uint `gorm:"primarykey"`
	Sequence uint64
}

func (SnapshotMarker) TableName() string {
	return "snapshot_marker"
}

func (d *MetadataStoreSqlite) GetSnapshotSequence() (uint64, error) {
	var tmpMarker SnapshotMarker
	result := d.DB().First(&tmpMarker)
	if result.Error != nil {
		// It's not an error if there's no records found
		if isNotFound(result.Error) {
			return 0, nil
		}
		return 0, result.Error
	}
	return tmpMarker.Sequence, nil
}

func (d *MetadataStoreSqlite) SetSnapshotSequence(seq uint64) error {
	tmpMarker := SnapshotMarker{
		ID:       snapshotMarkerRowId,
		Sequence: seq,
	}
	result := d.DB().Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"sequence"}),
	}).Create(&tmpMarker)
	return result.Error
}
