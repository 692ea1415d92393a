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

package coffer

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/blinklabs-io/coffer/governance"
	"github.com/blinklabs-io/coffer/treasury"
	"github.com/blinklabs-io/coffer/types"
)

type vaultMetrics struct {
	balance            prometheus.Gauge
	available          prometheus.Gauge
	reserved           prometheus.Gauge
	spentToday         prometheus.Gauge
	lifecycle          prometheus.Gauge
	operations         *prometheus.CounterVec
	rejected           *prometheus.CounterVec
	transferred        *prometheus.CounterVec
	revenueDistributed prometheus.Counter
	proposals          *prometheus.GaugeVec
	votes              *prometheus.CounterVec
}

func (v *Vault) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	v.metrics = &vaultMetrics{
		balance: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "coffer_vault_balance",
			Help: "treasury balance on the ledger",
		}),
		available: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "coffer_vault_available",
			Help: "treasury balance not reserved for unclaimed revenue",
		}),
		reserved: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "coffer_vault_reserved",
			Help: "revenue owed to holders and not yet claimed",
		}),
		spentToday: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "coffer_vault_spent_today",
			Help: "agent spend in the current daily window",
		}),
		lifecycle: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "coffer_vault_lifecycle",
			Help: "lifecycle stage (0 active, 1 dissolving, 2 dissolved)",
		}),
		operations: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coffer_vault_operations_total",
				Help: "applied vault operations",
			},
			[]string{"operation"},
		),
		rejected: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coffer_vault_rejected_total",
				Help: "rejected vault operations",
			},
			[]string{"operation", "reason"},
		),
		transferred: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coffer_vault_transferred_total",
				Help: "value moved in or out of the treasury",
			},
			[]string{"kind"},
		),
		revenueDistributed: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "coffer_vault_revenue_distributed_total",
			Help: "revenue set aside for holders",
		}),
		proposals: promautoFactory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coffer_governance_proposals",
				Help: "governance proposals by state",
			},
			[]string{"state"},
		),
		votes: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coffer_governance_votes_total",
				Help: "votes cast by support",
			},
			[]string{"support"},
		),
	}
}

func (m *vaultMetrics) updateTreasury(status treasury.Status) {
	m.balance.Set(float64(status.Balance))
	m.available.Set(float64(status.Available))
	m.reserved.Set(float64(status.Reserved))
	m.spentToday.Set(float64(status.SpentToday))
	m.lifecycle.Set(float64(status.Lifecycle))
}

func (m *vaultMetrics) updateProposals(proposals map[governance.ProposalState]int) {
	m.proposals.Reset()
	for state, count := range proposals {
		m.proposals.WithLabelValues(state.String()).Set(float64(count))
	}
}

var rejectionReasons = []struct {
	err    error
	reason string
}{
	{types.ErrReentrantCall, "reentrant"},
	{types.ErrUnauthorized, "unauthorized"},
	{types.ErrPaused, "paused"},
	{types.ErrInvalidLifecycleState, "lifecycle"},
	{types.ErrPerTxLimitExceeded, "per_tx_limit"},
	{types.ErrDailyLimitExceeded, "daily_limit"},
	{types.ErrRecipientNotWhitelisted, "recipient_whitelist"},
	{types.ErrSenderNotWhitelisted, "sender_whitelist"},
	{types.ErrInsufficientBalance, "insufficient_balance"},
	{types.ErrZeroAmount, "zero_amount"},
	{types.ErrZeroAddress, "zero_address"},
	{types.ErrAlreadyInitialized, "already_initialized"},
	{types.ErrNotInitialized, "not_initialized"},
	{types.ErrAlreadyClaimed, "already_claimed"},
	{types.ErrNoYieldStrategyConfigured, "no_yield_strategy"},
	{types.ErrQuorumNotReached, "quorum"},
	{types.ErrProposalNotSucceeded, "not_succeeded"},
	{types.ErrSharesFrozen, "frozen"},
	{types.ErrProposalNotFound, "proposal_not_found"},
	{types.ErrProposalExists, "proposal_exists"},
	{types.ErrAlreadyVoted, "already_voted"},
	{types.ErrInvalidSplit, "invalid_split"},
	{types.ErrInvalidLimits, "invalid_limits"},
	{governance.ErrVotingClosed, "voting_closed"},
	{governance.ErrInvalidProposal, "invalid_proposal"},
	{governance.ErrInvalidSupport, "invalid_support"},
	{governance.ErrNotCancelable, "not_cancelable"},
}

// rejectionReason maps an error onto a low-cardinality metric label
func rejectionReason(err error) string {
	for _, r := range rejectionReasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "other"
}
