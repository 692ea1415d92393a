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

package governance

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/blinklabs-io/coffer/types"
)

type Action uint8

const (
	ActionReplaceCeo Action = 1
	ActionDissolve   Action = 2
)

func (a Action) String() string {
	switch a {
	case ActionReplaceCeo:
		return "ReplaceCeo"
	case ActionDissolve:
		return "Dissolve"
	default:
		return fmt.Sprintf("Action(%d)", uint8(a))
	}
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// ParseAction accepts the names produced by Action.String
func ParseAction(s string) (Action, error) {
	switch s {
	case "ReplaceCeo":
		return ActionReplaceCeo, nil
	case "Dissolve":
		return ActionDissolve, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidProposal, s)
}

type Support uint8

const (
	SupportAgainst Support = 0
	SupportFor     Support = 1
	SupportAbstain Support = 2
)

func (s Support) String() string {
	switch s {
	case SupportAgainst:
		return "Against"
	case SupportFor:
		return "For"
	case SupportAbstain:
		return "Abstain"
	default:
		return fmt.Sprintf("Support(%d)", uint8(s))
	}
}

func (s Support) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type ProposalState uint8

const (
	StatePending ProposalState = iota
	StateActive
	StateDefeated
	StateSucceeded
	StateExecuted
	StateCanceled
	StateExpired
)

var proposalStateNames = map[ProposalState]string{
	StatePending:   "Pending",
	StateActive:    "Active",
	StateDefeated:  "Defeated",
	StateSucceeded: "Succeeded",
	StateExecuted:  "Executed",
	StateCanceled:  "Canceled",
	StateExpired:   "Expired",
}

func (s ProposalState) String() string {
	if name, ok := proposalStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ProposalState(%d)", uint8(s))
}

func (s ProposalState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition is possible
func (s ProposalState) Terminal() bool {
	switch s {
	case StateDefeated, StateExecuted, StateCanceled, StateExpired:
		return true
	}
	return false
}

// ProposalId is the BLAKE2b-256 hash of a proposal's action, parameters and
// description
type ProposalId [32]byte

func (id ProposalId) String() string {
	return hex.EncodeToString(id[:])
}

func (id ProposalId) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ProposalId) UnmarshalText(data []byte) error {
	parsed, err := ParseProposalId(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func ParseProposalId(s string) (ProposalId, error) {
	var ret ProposalId
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ret, fmt.Errorf("decode proposal id: %w", err)
	}
	if len(raw) != len(ret) {
		return ret, fmt.Errorf(
			"decode proposal id: invalid length %d",
			len(raw),
		)
	}
	copy(ret[:], raw)
	return ret, nil
}

// HashProposal derives the id of a proposal. Fields are length-prefixed so
// distinct inputs never hash the same byte stream.
func HashProposal(
	action Action,
	newCeo types.Address,
	description string,
) ProposalId {
	// blake2b.New256 only fails for oversized keys
	h, _ := blake2b.New256(nil)
	h.Write([]byte{byte(action)})
	writeField := func(s string) {
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s)))
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}
	writeField(string(newCeo))
	writeField(description)
	var ret ProposalId
	copy(ret[:], h.Sum(nil))
	return ret
}

type Tally struct {
	For     uint64 `cbor:"1,keyasint" json:"for"`
	Against uint64 `cbor:"2,keyasint" json:"against"`
	Abstain uint64 `cbor:"3,keyasint" json:"abstain"`
}

// Participation is the total weight cast, abstentions included
func (t Tally) Participation() uint64 {
	return t.For + t.Against + t.Abstain
}

type Proposal struct {
	Id          ProposalId    `cbor:"1,keyasint" json:"id"`
	Action      Action        `cbor:"2,keyasint" json:"action"`
	NewCeo      types.Address `cbor:"3,keyasint" json:"newCeo,omitempty"`
	Description string        `cbor:"4,keyasint" json:"description"`
	Proposer    types.Address `cbor:"5,keyasint" json:"proposer"`
	VoteStart   uint64        `cbor:"6,keyasint" json:"voteStart"`
	VoteEnd     uint64        `cbor:"7,keyasint" json:"voteEnd"`
	Snapshot    uint64        `cbor:"8,keyasint" json:"snapshot"`
	Tally       Tally         `cbor:"9,keyasint" json:"tally"`
	Canceled    bool          `cbor:"10,keyasint" json:"canceled"`
	Executed    bool          `cbor:"11,keyasint" json:"executed"`
	CreatedAt   time.Time     `cbor:"12,keyasint" json:"createdAt"`
	ExecutedAt  time.Time     `cbor:"13,keyasint" json:"executedAt"`
}

type Vote struct {
	ProposalId ProposalId    `cbor:"1,keyasint" json:"proposalId"`
	Voter      types.Address `cbor:"2,keyasint" json:"voter"`
	Support    Support       `cbor:"3,keyasint" json:"support"`
	Weight     uint64        `cbor:"4,keyasint" json:"weight"`
	CastAt     time.Time     `cbor:"5,keyasint" json:"castAt"`
}

var (
	ErrInvalidProposal = errors.New("invalid proposal")
	ErrInvalidSupport  = errors.New("invalid vote support")
	ErrVotingClosed    = errors.New("voting closed")
	ErrNotCancelable   = errors.New("proposal not cancelable")
)

// ProposalStateError reports an operation attempted against a proposal in
// the wrong state
type ProposalStateError struct {
	kind     error
	Id       ProposalId
	Expected ProposalState
	Actual   ProposalState
}

func NewProposalStateError(
	kind error,
	id ProposalId,
	expected ProposalState,
	actual ProposalState,
) ProposalStateError {
	return ProposalStateError{
		kind:     kind,
		Id:       id,
		Expected: expected,
		Actual:   actual,
	}
}

func (e ProposalStateError) Error() string {
	return fmt.Sprintf(
		"%s: proposal %s is %s, expected %s",
		e.kind,
		e.Id,
		e.Actual,
		e.Expected,
	)
}

func (e ProposalStateError) Unwrap() error {
	return e.kind
}
