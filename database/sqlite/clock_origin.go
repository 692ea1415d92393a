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
	"time"

	"gorm.io/gorm/clause"
)

const (
	clockOriginRowId = 1
)

// ClockOrigin represents the sqlite table holding the slot clock parameters
// the stored governance heights were measured with
type ClockOrigin struct {
	ID          uint `gorm:"primarykey"`
	SystemStart int64
	SlotLength  int64
}

func (ClockOrigin) TableName() string {
	return "clock_origin"
}

// GetClockOrigin returns the recorded slot clock parameters. The bool is false
// when none have been recorded yet.
func (d *MetadataStoreSqlite) GetClockOrigin() (time.Time, time.Duration, bool, error) {
	var tmpOrigin ClockOrigin
	result := d.DB().First(&tmpOrigin)
	if result.Error != nil {
		if isNotFound(result.Error) {
			return time.Time{}, 0, false, nil
		}
		return time.Time{}, 0, false, result.Error
	}
	return time.Unix(0, tmpOrigin.SystemStart).UTC(),
		time.Duration(tmpOrigin.SlotLength),
		true,
		nil
}

// SetClockOrigin records the slot clock parameters. The first record wins.
func (d *MetadataStoreSqlite) SetClockOrigin(
	systemStart time.Time,
	slotLength time.Duration,
) error {
	tmpOrigin := ClockOrigin{
		ID:          clockOriginRowId,
		SystemStart: systemStart.UnixNano(),
		SlotLength:  int64(slotLength),
	}
	result := d.DB().Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&tmpOrigin)
	return result.Error
}
