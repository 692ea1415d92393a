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
	"fmt"

	"github.com/blinklabs-io/coffer/event"
)

// Recorder is an event bus sink that writes vault operations to the journal
// and keeps proposal and vote records current
type Recorder struct {
	db *Database
}

func NewRecorder(db *Database) *Recorder {
	return &Recorder{db: db}
}

// Attach registers the recorder for every event type it persists
func (r *Recorder) Attach(bus *event.EventBus) {
	bus.RegisterSubscriber(event.OperationEventType, r)
	bus.RegisterSubscriber(event.ProposalEventType, r)
	bus.RegisterSubscriber(event.VoteEventType, r)
}

func (r *Recorder) Deliver(evt event.Event) error {
	switch data := evt.Data.(type) {
	case event.OperationEvent:
		return r.db.AppendJournal(data)
	case event.ProposalEvent:
		return r.db.SetProposal(data)
	case event.VoteEvent:
		return r.db.SetVote(data)
	default:
		return fmt.Errorf("recorder: unexpected event data %T", evt.Data)
	}
}

// Close is a no-op; the database outlives the subscription
func (r *Recorder) Close() {}
