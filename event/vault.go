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

package event

import (
	"time"

	"github.com/blinklabs-io/coffer/types"
)

const (
	// OperationEventType is published for every applied vault operation
	OperationEventType = EventType("vault.operation")
	// LifecycleEventType is published when the treasury lifecycle advances
	LifecycleEventType = EventType("vault.lifecycle")
	// ProposalEventType is published when a proposal is created or changes
	ProposalEventType = EventType("governance.proposal")
	// VoteEventType is published for every vote cast
	VoteEventType = EventType("governance.vote")
)

// OperationEvent describes one applied operation. Sequence increases by one
// per operation over the life of a deployment.
type OperationEvent struct {
	Sequence     uint64
	Operation    string
	Caller       types.Address
	Counterparty types.Address
	Amount       uint64
	Detail       string
	Timestamp    time.Time
}

type LifecycleEvent struct {
	From      types.Lifecycle
	To        types.Lifecycle
	Timestamp time.Time
}

// ProposalEvent carries proposal fields as plain values so sinks do not
// depend on the governance package
type ProposalEvent struct {
	Id          string
	Action      string
	NewCeo      types.Address
	Description string
	Proposer    types.Address
	State       string
	VoteStart   uint64
	VoteEnd     uint64
	Snapshot    uint64
	For         uint64
	Against     uint64
	Abstain     uint64
	Timestamp   time.Time
}

type VoteEvent struct {
	ProposalId string
	Voter      types.Address
	Support    string
	Weight     uint64
	Timestamp  time.Time
}
