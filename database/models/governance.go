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

// Proposal mirrors the latest known state of a governance proposal
type Proposal struct {
	ID           uint      `gorm:"primarykey"`
	ProposalId   string    `gorm:"uniqueIndex;size:64;not null"`
	Action       string    `gorm:"size:32;not null"`
	NewCeo       string    `gorm:"size:128"`
	Description  string    `gorm:"size:1024"`
	Proposer     string    `gorm:"index;size:128;not null"`
	State        string    `gorm:"index;size:16;not null"`
	VoteStart    uint64    `gorm:"not null"`
	VoteEnd      uint64    `gorm:"not null"`
	Snapshot     uint64    `gorm:"not null"`
	VotesFor     uint64    `gorm:"not null"`
	VotesAgainst uint64    `gorm:"not null"`
	VotesAbstain uint64    `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (Proposal) TableName() string {
	return "governance_proposal"
}

// Vote is immutable once written; a voter votes once per proposal
type Vote struct {
	ID         uint      `gorm:"primarykey"`
	ProposalId string    `gorm:"uniqueIndex:idx_vote_proposal_voter,priority:1;size:64;not null"`
	Voter      string    `gorm:"uniqueIndex:idx_vote_proposal_voter,priority:2;size:128;not null"`
	Support    string    `gorm:"size:16;not null"`
	Weight     uint64    `gorm:"not null"`
	CastAt     time.Time `gorm:"not null"`
}

func (Vote) TableName() string {
	return "governance_vote"
}
