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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type sqliteMetrics struct {
	journalEntries prometheus.Counter
	proposalWrites prometheus.Counter
	voteWrites     prometheus.Counter
}

func (d *MetadataStoreSqlite) initMetrics() {
	promautoFactory := promauto.With(d.promRegistry)
	d.metrics = &sqliteMetrics{
		journalEntries: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "coffer_database_journal_entries_total",
			Help: "journal entries written",
		}),
		proposalWrites: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "coffer_database_proposal_writes_total",
			Help: "proposal records written or updated",
		}),
		voteWrites: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "coffer_database_vote_writes_total",
			Help: "vote records written",
		}),
	}
}
