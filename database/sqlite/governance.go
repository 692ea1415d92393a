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

	"github.com/blinklabs-io/coffer/database/models"
)

// SetProposal inserts a proposal or refreshes its state and tally
func (d *MetadataStoreSqlite) SetProposal(proposal *models.Proposal) error {
	onConflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "proposal_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"action",
			"new_ceo",
			"description",
			"proposer",
			"state",
			"vote_start",
			"vote_end",
			"snapshot",
			"votes_for",
			"votes_against",
			"votes_abstain",
			"updated_at",
		}),
	}
	if result := d.DB().Clauses(onConflict).Create(proposal); result.Error != nil {
		return result.Error
	}
	if d.metrics != nil {
		d.metrics.proposalWrites.Inc()
	}
	return nil
}

// GetProposal returns a single proposal by its hex id
func (d *MetadataStoreSqlite) GetProposal(id string) (*models.Proposal, error) {
	var ret models.Proposal
	result := d.DB().Where("proposal_id = ?", id).First(&ret)
	if result.Error != nil {
		if isNotFound(result.Error) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &ret, nil
}

// GetProposals returns all proposals, optionally filtered by state
func (d *MetadataStoreSqlite) GetProposals(
	state string,
) ([]models.Proposal, error) {
	var ret []models.Proposal
	query := d.DB().Order("id ASC")
	if state != "" {
		query = query.Where("state = ?", state)
	}
	if result := query.Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// SetVote records a vote. Replaying the same vote is a no-op.
func (d *MetadataStoreSqlite) SetVote(vote *models.Vote) error {
	onConflict := clause.OnConflict{
		Columns: []clause.Column{
			{Name: "proposal_id"},
			{Name: "voter"},
		},
		DoNothing: true,
	}
	if result := d.DB().Clauses(onConflict).Create(vote); result.Error != nil {
		return result.Error
	}
	if d.metrics != nil {
		d.metrics.voteWrites.Inc()
	}
	return nil
}

// GetVotes returns the votes cast on a proposal ordered by voter
func (d *MetadataStoreSqlite) GetVotes(proposalId string) ([]models.Vote, error) {
	var ret []models.Vote
	result := d.DB().
		Where("proposal_id = ?", proposalId).
		Order("voter ASC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
