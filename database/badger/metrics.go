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

package badger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type badgerMetrics struct {
	snapshotsWritten prometheus.Counter
	snapshotBytes    prometheus.Gauge
	snapshotSequence prometheus.Gauge
}

func (s *SnapshotStoreBadger) initMetrics() {
	promautoFactory := promauto.With(s.promRegistry)
	s.metrics = &badgerMetrics{
		snapshotsWritten: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "coffer_database_snapshots_total",
			Help: "vault snapshots written",
		}),
		snapshotBytes: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "coffer_database_snapshot_bytes",
			Help: "size of the most recent vault snapshot",
		}),
		snapshotSequence: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "coffer_database_snapshot_sequence",
			Help: "journal sequence covered by the most recent vault snapshot",
		}),
	}
}
