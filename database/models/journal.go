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

package models

import "time"

// JournalEntry is one applied vault operation. Sequence is assigned by the
// vault and is unique per deployment.
type JournalEntry struct {
	ID           uint      `gorm:"primarykey"`
	Sequence     uint64    `gorm:"uniqueIndex;not null"`
	Operation    string    `gorm:"index;size:64;not null"`
	Caller       string    `gorm:"index;size:128"`
	Counterparty string    `gorm:"size:128"`
	Amount       uint64    `gorm:"not null"`
	Detail       string    `gorm:"size:256"`
	Timestamp    time.Time `gorm:"index;not null"`
}

func (JournalEntry) TableName() string {
	return "journal"
}
