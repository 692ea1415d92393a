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

// Package coffer composes the treasury components into a Vault. The vault is
// the only type in this module that is safe for concurrent use: every call
// runs under a single lock, and a call made from inside a ledger or yield
// adapter callback fails with ErrReentrantCall instead of deadlocking. Any
// call that arrives while an adapter call is in flight is refused the same
// way and may be retried.
package coffer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/blinklabs-io/coffer/access"
	"github.com/blinklabs-io/coffer/clock"
	"github.com/blinklabs-io/coffer/dissolution"
	"github.com/blinklabs-io/coffer/event"
	"github.com/blinklabs-io/coffer/governance"
	"github.com/blinklabs-io/coffer/revenue"
	"github.com/blinklabs-io/coffer/shares"
	"github.com/blinklabs-io/coffer/treasury"
	"github.com/blinklabs-io/coffer/types"
)

// Operation names used in the journal and metrics
const (
	OpDeposit             = "deposit"
	OpAgentTransfer       = "agent_transfer"
	OpCeoTransfer         = "ceo_transfer"
	OpWithdraw            = "withdraw"
	OpSetLimits           = "set_limits"
	OpSetWhitelist        = "set_whitelist"
	OpSetWhitelistEnabled = "set_whitelist_enabled"
	OpSetAgent            = "set_agent"
	OpSetPaused           = "set_paused"
	OpInvest              = "invest"
	OpRedeem              = "redeem"
	OpDistributeRevenue   = "distribute_revenue"
	OpClaimRevenue        = "claim_revenue"
	OpTransferShares      = "transfer_shares"
	OpDelegate            = "delegate"
	OpReplaceCeo          = "replace_ceo"
	OpDissolve            = "dissolve"
	OpFinalize            = "finalize"
	OpClaimSettlement     = "claim_settlement"
	OpPropose             = "propose"
	OpVote                = "vote"
	OpExecute             = "execute"
	OpCancel              = "cancel"
)

type vaultCtxKey struct{}

type Vault struct {
	mu           sync.Mutex
	config       Config
	genesis      Genesis
	clock        clock.Clock
	roles        *access.Roles
	shares       *shares.Ledger
	treasury     *treasury.Treasury
	revenue      *revenue.Distributor
	dissolution  *dissolution.Machine
	governor     *governance.Governor
	eventBus     *event.EventBus
	ownsEventBus bool
	metrics      *vaultMetrics
	deploymentId uuid.UUID
	sequence     atomic.Uint64
	// inAdapter is set while a ledger or yield adapter call is running
	inAdapter atomic.Bool
}

// New builds a vault from its genesis config: roles, the minted ownership
// ledger, the treasury, the revenue distributor, the dissolution machine and
// the governor bound as the governor role.
func New(cfg Config) (*Vault, error) {
	genesis := cfg.Genesis()
	if err := genesis.Validate(); err != nil {
		return nil, err
	}
	if cfg.ledger == nil {
		return nil, errors.New("vault: no ledger adapter configured")
	}
	if cfg.logger == nil {
		cfg.logger = NewConfig().logger
	}
	clk := cfg.clock
	if clk == nil {
		slotClock, err := clock.NewSlotClock(time.Now(), DefaultSlotLength)
		if err != nil {
			return nil, err
		}
		clk = slotClock
	}
	v := &Vault{
		config:       cfg,
		genesis:      genesis,
		clock:        clk,
		deploymentId: cfg.deploymentId,
		eventBus:     cfg.eventBus,
	}
	if v.deploymentId == uuid.Nil {
		v.deploymentId = uuid.New()
	}
	if v.eventBus == nil {
		v.eventBus = event.NewEventBus(cfg.promRegistry, cfg.logger)
		v.ownsEventBus = true
	}
	roles, err := access.New(genesis.Agent, genesis.Ceo)
	if err != nil {
		return nil, err
	}
	if err := roles.BindGovernor(genesis.GovernorAccount); err != nil {
		return nil, err
	}
	v.roles = roles
	v.shares = shares.NewLedger()
	if err := v.shares.Mint(genesis.TotalSupply, genesis.Split); err != nil {
		return nil, err
	}
	tr, err := treasury.New(treasury.Config{
		Account:          genesis.TreasuryAccount,
		Ledger:           &guardedLedger{inner: cfg.ledger, busy: &v.inAdapter},
		Yield:            v.guardYield(cfg.yield),
		Roles:            roles,
		Limits:           genesis.Limits,
		WhitelistEnabled: genesis.WhitelistEnabled,
		Whitelist:        genesis.Whitelist,
		NowFunc:          clk.Now,
	})
	if err != nil {
		return nil, err
	}
	v.treasury = tr
	v.revenue = revenue.New(v.shares, tr)
	v.dissolution = dissolution.New(tr, v.shares, clk.Now)
	gov, err := governance.New(governance.Config{
		Address:         genesis.GovernorAccount,
		Shares:          v.shares,
		Target:          &governanceTarget{vault: v},
		Clock:           clk,
		VotingDelay:     genesis.VotingDelay,
		VotingPeriod:    genesis.VotingPeriod,
		ExecutionWindow: genesis.ExecutionWindow,
		QuorumBps:       genesis.QuorumBps,
		EarlyResolution: cfg.earlyResolution,
	})
	if err != nil {
		return nil, err
	}
	v.governor = gov
	if cfg.promRegistry != nil {
		v.initMetrics(cfg.promRegistry)
	}
	cfg.logger.Info(
		"vault initialized",
		"component", "vault",
		"deployment_id", v.deploymentId.String(),
		"treasury", genesis.TreasuryAccount,
		"total_supply", genesis.TotalSupply,
		"holders", len(genesis.Split),
	)
	return v, nil
}

// EventBus returns the bus the vault publishes to
func (v *Vault) EventBus() *event.EventBus {
	return v.eventBus
}

// Close stops the event bus when the vault created it
func (v *Vault) Close() {
	if v.ownsEventBus {
		v.eventBus.Stop()
	}
}

// enter takes the vault lock and marks ctx so that adapter callbacks that
// re-enter the vault are refused. A call that arrives while an adapter call
// is in flight is refused too, whatever its ctx: the callback may have
// dropped the marker, and waiting on the lock would never return.
func (v *Vault) enter(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if owner, ok := ctx.Value(vaultCtxKey{}).(*Vault); ok && owner == v {
		return ctx, types.ErrReentrantCall
	}
	if v.inAdapter.Load() {
		return ctx, types.ErrReentrantCall
	}
	v.mu.Lock()
	return context.WithValue(ctx, vaultCtxKey{}, v), nil
}

func (v *Vault) leave() {
	v.mu.Unlock()
}

// reject counts and logs a refused operation and returns err unchanged
func (v *Vault) reject(op string, err error) error {
	reason := rejectionReason(err)
	if v.metrics != nil {
		v.metrics.rejected.WithLabelValues(op, reason).Inc()
	}
	v.config.logger.Debug(
		"operation rejected",
		"component", "vault",
		"operation", op,
		"reason", reason,
		"error", err,
	)
	return err
}

// record journals an applied operation. It must be called with the lock held.
func (v *Vault) record(
	ctx context.Context,
	op string,
	caller types.Address,
	counterparty types.Address,
	amount uint64,
	detail string,
) {
	seq := v.sequence.Add(1)
	evt := event.OperationEvent{
		Sequence:     seq,
		Operation:    op,
		Caller:       caller,
		Counterparty: counterparty,
		Amount:       amount,
		Detail:       detail,
		Timestamp:    v.clock.Now(),
	}
	v.eventBus.Publish(
		event.OperationEventType,
		event.NewEvent(event.OperationEventType, evt),
	)
	v.config.logger.Info(
		"operation applied",
		"component", "vault",
		"sequence", seq,
		"operation", op,
		"caller", caller,
		"counterparty", counterparty,
		"amount", amount,
	)
	if v.metrics != nil {
		v.metrics.operations.WithLabelValues(op).Inc()
		if status, err := v.treasury.Status(ctx); err == nil {
			v.metrics.updateTreasury(status)
		}
	}
}

func (v *Vault) countTransfer(kind string, amount uint64) {
	if v.metrics != nil {
		v.metrics.transferred.WithLabelValues(kind).Add(float64(amount))
	}
}

// publishLifecycle announces a lifecycle change. It is a notification for
// observers, delivered by the bus worker pool; the journal already holds the
// operation that caused it.
func (v *Vault) publishLifecycle(from, to types.Lifecycle) {
	v.eventBus.PublishAsync(
		event.LifecycleEventType,
		event.NewEvent(event.LifecycleEventType, event.LifecycleEvent{
			From:      from,
			To:        to,
			Timestamp: v.clock.Now(),
		}),
	)
	v.config.logger.Info(
		fmt.Sprintf("vault lifecycle changed: %s -> %s", from, to),
		"component", "vault",
	)
}

// Sequence returns the number of operations applied so far. It does not take
// the vault lock.
func (v *Vault) Sequence() uint64 {
	return v.sequence.Load()
}

// Deposit pulls amount from caller into the treasury
func (v *Vault) Deposit(
	ctx context.Context,
	caller types.Address,
	amount uint64,
) error {
	ctx, err := v.enter(ctx)
	if err != nil {
		return v.reject(OpDeposit, err)
	}
	defer v.leave()
	if err := v.treasury.Deposit(ctx, caller, amount); err != nil {
		return v.reject(OpDeposit, err)
	}
	v.countTransfer("deposit", amount)
	v.record(ctx, OpDeposit, caller, v.genesis.TreasuryAccount, amount, "")
	return nil
}

// AgentTransfer pays to on behalf of the agent under the spend policy and
// returns the amount spent in the current window
func (v *Vault) AgentTransfer(
	ctx context.Context,
	caller types.Address,
	to types.Address,
	amount uint64,
) (uint64, error) {
	ctx, err := v.enter(ctx)
	if err != nil {
		return 0, v.reject(OpAgentTransfer, err)
	}
	defer v.leave()
	spent, err := v.treasury.AgentTransfer(ctx, caller, to, amount)
	if err != nil {
		return 0, v.reject(OpAgentTransfer, err)
	}
	v.countTransfer("agent", amount)
	v.record(
		ctx,
		OpAgentTransfer,
		caller,
		to,
		amount,
		fmt.Sprintf("spent_today=%d", spent),
	)
	return spent, nil
}

// CanTransferPreview reports whether an agent transfer would be accepted
// right now. It never changes state.
func (v *Vault) CanTransferPreview(
	ctx context.Context,
	to types.Address,
	amount uint64,
) (bool, error) {
	ctx, err := v.enter(ctx)
	if err != nil {
		return false, err
	}
	defer v.leave()
	return v.treasury.CanTransfer(ctx, to, amount)
}

func (v *Vault) CeoTransfer(
	ctx context.Context,
	caller types.Address,
	to types.Address,
	amount uint64,
) error {
	ctx, err := v.enter(ctx)
	if err != nil {
		return v.reject(OpCeoTransfer, err)
	}
	defer v.leave()
	if err := v.treasury.CeoTransfer(ctx, caller, to, amount); err != nil {
		return v.reject(OpCeoTransfer, err)
	}
	v.countTransfer("ceo", amount)
	v.record(ctx, OpCeoTransfer, caller, to, amount, "")
	return nil
}

func (v *Vault) Withdraw(
	ctx context.Context,
	caller types.Address,
	amount uint64,
) error {
	ctx, err := v.enter(ctx)
	if err != nil {
		return v.reject(OpWithdraw, err)
	}
	defer v.leave()
	if err := v.treasury.Withdraw(ctx, caller, amount); err != nil {
		return v.reject(OpWithdraw, err)
	}
	v.countTransfer("withdraw", amount)
	v.record(ctx, OpWithdraw, caller, caller, amount, "")
	return nil
}

func (v *Vault) SetLimits(
	ctx context.Context,
	caller types.Address,
	limits treasury.Limits,
) error {
	ctx, err := v.enter(ctx)
	if err != nil {
		return v.reject(OpSetLimits, err)
	}
	defer v.leave()
	if err := v.treasury.SetLimits(caller, limits); err != nil {
		return v.reject(OpSetLimits, err)
	}
	v.record(
		ctx,
		OpSetLimits,
		caller,
		"",
		0,
		fmt.Sprintf(
			"max_per_tx=%d daily_limit=%d",
			limits.MaxPerTx,
			limits.DailyLimit,
		),
	)
	return nil
}

func (v *Vault) SetWhitelist(
	ctx context.Context,
	caller types.Address,
	addr types.Address,
	allowed bool,
) error {
	ctx, err := v.enter(ctx)
	if err != nil {
		return v.reject(OpSetWhitelist, err)
	}
	defer v.leave()
	if err := v.treasury.SetWhitelist(caller, addr, allowed); err != nil {
		return v.reject(OpSetWhitelist, err)
	}
	v.record(
		ctx,
		OpSetWhitelist,
		caller,
		addr,
		0,
		fmt.Sprintf("allowed=%t", allowed),
	)
	return nil
}

func (v *Vault) SetWhitelistEnabled(
	ctx context.Context,
	caller types.Address,
	enabled bool,
) error {
	ctx, err := v.enter(ctx)
	if err != nil {
		return v.reject(OpSetWhitelistEnabled, err)
	}
	defer v.leave()
	if err := v.treasury.SetWhitelistEnabled(caller, enabled); err != nil {
		return v.reject(OpSetWhitelistEnabled, err)
	}
	v.record(
		ctx,
		OpSetWhitelistEnabled,
		caller,
		"",
		0,
		fmt.Sprintf("enabled=%t", enabled),
	)
	return nil
}

func (v *Vault) SetAgent(
	ctx context.Context,
	caller types.Address,
	agent types.Address,
) error {
	ctx, err := v.enter(ctx)
	if err != nil {
		return v.reject(OpSetAgent, err)
	}
	defer v.leave()
	if err := v.treasury.SetAgent(caller, agent); err != nil {
		return v.reject(OpSetAgent, err)
	}
	v.record(ctx, OpSetAgent, caller, agent, 0, "")
	return nil
}

func (v *Vault) SetPaused(
	ctx context.Context,
	caller types.Address,
	paused bool,
) error {
	ctx, err := v.enter(ctx)
	if err != nil {
		return v.reject(OpSetPaused, err)
	}
	defer v.leave()
	if err := v.treasury.SetPaused(caller, paused); err != nil {
		return v.reject(OpSetPaused, err)
	}
	v.record(
		ctx,
		OpSetPaused,
		caller,
		"",
		0,
		fmt.Sprintf("paused=%t", paused),
	)
	return nil
}

func (v *Vault) Invest(
	ctx context.Context,
	caller types.Address,
	amount uint64,
) error {
	ctx, err := v.enter(ctx)
	if err != nil {
		return v.reject(OpInvest, err)
	}
	defer v.leave()
	if err := v.treasury.Invest(ctx, caller, amount); err != nil {
		return v.reject(OpInvest, err)
	}
	v.countTransfer("invest", amount)
	v.record(ctx, OpInvest, caller, "", amount, "")
	return nil
}

func (v *Vault) Redeem(
	ctx context.Context,
	caller types.Address,
	amount uint64,
) error {
	ctx, err := v.enter(ctx)
	if err != nil {
		return v.reject(OpRedeem, err)
	}
	defer v.leave()
	if err := v.treasury.Redeem(ctx, caller, amount); err != nil {
		return v.reject(OpRedeem, err)
	}
	v.countTransfer("redeem", amount)
	v.record(ctx, OpRedeem, caller, "", amount, "")
	return nil
}

// DistributeRevenue sets amount aside for holders in proportion to their
// shares
func (v *Vault) DistributeRevenue(
	ctx context.Context,
	caller types.Address,
	amount uint64,
) error {
	ctx, err := v.enter(ctx)
	if err != nil {
		return v.reject(OpDistributeRevenue, err)
	}
	defer v.leave()
	if err := v.revenue.DistributeRevenue(ctx, caller, amount); err != nil {
		return v.reject(OpDistributeRevenue, err)
	}
	if v.metrics != nil {
		v.metrics.revenueDistributed.Add(float64(amount))
	}
	v.record(ctx, OpDistributeRevenue, caller, "", amount, "")
	return nil
}

func (v *Vault) PendingRevenue(
	ctx context.Context,
	holder types.Address,
) (uint64, error) {
	if _, err := v.enter(ctx); err != nil {
		return 0, err
	}
	defer v.leave()
	return v.revenue.PendingRevenue(holder), nil
}

// ClaimRevenue pays holder everything it is owed
func (v *Vault) ClaimRevenue(
	ctx context.Context,
	holder types.Address,
) (uint64, error) {
	ctx, err := v.enter(ctx)
	if err != nil {
		return 0, v.reject(OpClaimRevenue, err)
	}
	defer v.leave()
	paid, err := v.revenue.ClaimRevenue(ctx, holder)
	if err != nil {
		return 0, v.reject(OpClaimRevenue, err)
	}
	v.countTransfer("revenue", paid)
	v.record(ctx, OpClaimRevenue, holder, holder, paid, "")
	return paid, nil
}

// TransferShares moves ownership units between holders
func (v *Vault) TransferShares(
	ctx context.Context,
	from types.Address,
	to types.Address,
	amount uint64,
) error {
	ctx, err := v.enter(ctx)
	if err != nil {
		return v.reject(OpTransferShares, err)
	}
	defer v.leave()
	if err := v.shares.Transfer(from, to, amount); err != nil {
		return v.reject(OpTransferShares, err)
	}
	v.record(ctx, OpTransferShares, from, to, amount, "")
	return nil
}

// Delegate points holder's voting weight at delegatee
func (v *Vault) Delegate(
	ctx context.Context,
	holder types.Address,
	delegatee types.Address,
) error {
	ctx, err := v.enter(ctx)
	if err != nil {
		return v.reject(OpDelegate, err)
	}
	defer v.leave()
	if err := v.shares.Delegate(holder, delegatee); err != nil {
		return v.reject(OpDelegate, err)
	}
	v.record(ctx, OpDelegate, holder, delegatee, 0, "")
	return nil
}

// ReplaceCeo is the governance entry point for a CEO change. Only the
// governor may call it.
func (v *Vault) ReplaceCeo(
	ctx context.Context,
	caller types.Address,
	newCeo types.Address,
) error {
	ctx, err := v.enter(ctx)
	if err != nil {
		return v.reject(OpReplaceCeo, err)
	}
	defer v.leave()
	target := &governanceTarget{vault: v}
	if err := target.ReplaceCeo(ctx, caller, newCeo); err != nil {
		return v.reject(OpReplaceCeo, err)
	}
	return nil
}

// Dissolve is the governance entry point that starts the wind-down. Only the
// governor may call it.
func (v *Vault) Dissolve(ctx context.Context, caller types.Address) error {
	ctx, err := v.enter(ctx)
	if err != nil {
		return v.reject(OpDissolve, err)
	}
	defer v.leave()
	target := &governanceTarget{vault: v}
	if err := target.Dissolve(ctx, caller); err != nil {
		return v.reject(OpDissolve, err)
	}
	return nil
}

// Finalize completes dissolution. Anyone may call it once the vault is
// dissolving.
func (v *Vault) Finalize(
	ctx context.Context,
	caller types.Address,
) (dissolution.Record, error) {
	ctx, err := v.enter(ctx)
	if err != nil {
		return dissolution.Record{}, v.reject(OpFinalize, err)
	}
	defer v.leave()
	rec, err := v.dissolution.Finalize(ctx)
	if err != nil {
		return dissolution.Record{}, v.reject(OpFinalize, err)
	}
	v.publishLifecycle(types.LifecycleDissolving, types.LifecycleDissolved)
	v.record(
		ctx,
		OpFinalize,
		caller,
		"",
		rec.Pool,
		fmt.Sprintf("redeemed=%d", rec.Redeemed),
	)
	return rec, nil
}

func (v *Vault) SettlementOf(
	ctx context.Context,
	holder types.Address,
) (uint64, error) {
	if _, err := v.enter(ctx); err != nil {
		return 0, err
	}
	defer v.leave()
	return v.dissolution.SettlementOf(holder)
}

// ClaimSettlement pays holder its share of the dissolution pool
func (v *Vault) ClaimSettlement(
	ctx context.Context,
	holder types.Address,
) (uint64, error) {
	ctx, err := v.enter(ctx)
	if err != nil {
		return 0, v.reject(OpClaimSettlement, err)
	}
	defer v.leave()
	paid, err := v.dissolution.ClaimSettlement(ctx, holder)
	if err != nil {
		return 0, v.reject(OpClaimSettlement, err)
	}
	v.countTransfer("settlement", paid)
	v.record(ctx, OpClaimSettlement, holder, holder, paid, "")
	return paid, nil
}

// Settlement returns the dissolution record once the vault is dissolved
func (v *Vault) Settlement(ctx context.Context) (dissolution.Record, error) {
	if _, err := v.enter(ctx); err != nil {
		return dissolution.Record{}, err
	}
	defer v.leave()
	return v.dissolution.Record()
}
