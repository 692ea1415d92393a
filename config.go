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
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/coffer/clock"
	"github.com/blinklabs-io/coffer/event"
	"github.com/blinklabs-io/coffer/governance"
	"github.com/blinklabs-io/coffer/shares"
	"github.com/blinklabs-io/coffer/treasury"
	"github.com/blinklabs-io/coffer/types"
)

const (
	DefaultTreasuryAccount = types.Address("treasury")
	DefaultSharesAccount   = types.Address("shares")
	DefaultGovernorAccount = types.Address("governor")
	DefaultSlotLength      = time.Second
)

// Genesis is the deployment-time configuration of a vault. The role
// addresses, the limits and the ownership split are fixed here and only
// change afterward through the vault's own operations.
type Genesis struct {
	Agent           types.Address `yaml:"agent" envconfig:"AGENT"`
	Ceo             types.Address `yaml:"ceo" envconfig:"CEO"`
	TreasuryAccount types.Address `yaml:"treasuryAccount" envconfig:"TREASURY_ACCOUNT"`
	SharesAccount   types.Address `yaml:"sharesAccount" envconfig:"SHARES_ACCOUNT"`
	GovernorAccount types.Address `yaml:"governorAccount" envconfig:"GOVERNOR_ACCOUNT"`
	// Decimals is the number of fractional digits of the ledger's unit, used
	// only when amounts are shown to people
	Decimals         int32               `yaml:"decimals" envconfig:"DECIMALS"`
	Limits           treasury.Limits     `yaml:"limits"`
	WhitelistEnabled bool                `yaml:"whitelistEnabled" envconfig:"WHITELIST_ENABLED"`
	Whitelist        []types.Address     `yaml:"whitelist" envconfig:"WHITELIST"`
	TotalSupply      uint64              `yaml:"totalSupply" envconfig:"TOTAL_SUPPLY"`
	Split            []shares.Allocation `yaml:"split" ignored:"true"`
	VotingDelay      uint64              `yaml:"votingDelay" envconfig:"VOTING_DELAY"`
	VotingPeriod     uint64              `yaml:"votingPeriod" envconfig:"VOTING_PERIOD"`
	ExecutionWindow  uint64              `yaml:"executionWindow" envconfig:"EXECUTION_WINDOW"`
	QuorumBps        uint32              `yaml:"quorumBps" envconfig:"QUORUM_BPS"`
}

// withDefaults fills in the account names and quorum when they are unset
func (g Genesis) withDefaults() Genesis {
	if g.TreasuryAccount.IsZero() {
		g.TreasuryAccount = DefaultTreasuryAccount
	}
	if g.SharesAccount.IsZero() {
		g.SharesAccount = DefaultSharesAccount
	}
	if g.GovernorAccount.IsZero() {
		g.GovernorAccount = DefaultGovernorAccount
	}
	if g.QuorumBps == 0 {
		g.QuorumBps = governance.DefaultQuorumBps
	}
	return g
}

// Validate checks the genesis config without building anything
func (g Genesis) Validate() error {
	g = g.withDefaults()
	if g.Agent.IsZero() || g.Ceo.IsZero() {
		return fmt.Errorf("genesis: agent and ceo are required: %w", types.ErrZeroAddress)
	}
	accounts := map[types.Address]string{}
	for _, acct := range []struct {
		addr types.Address
		name string
	}{
		{g.TreasuryAccount, "treasury"},
		{g.SharesAccount, "shares"},
		{g.GovernorAccount, "governor"},
	} {
		if other, ok := accounts[acct.addr]; ok {
			return fmt.Errorf(
				"genesis: %s and %s accounts are both %q",
				other,
				acct.name,
				acct.addr,
			)
		}
		accounts[acct.addr] = acct.name
	}
	if err := g.Limits.Validate(); err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	if g.TotalSupply == 0 {
		return fmt.Errorf("genesis: total supply: %w", types.ErrZeroAmount)
	}
	if err := shares.ValidateSplit(g.Split); err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	if g.VotingPeriod == 0 {
		return errors.New("genesis: voting period must be non-zero")
	}
	if g.QuorumBps > types.BasisPoints {
		return fmt.Errorf(
			"genesis: quorum %d exceeds %d basis points",
			g.QuorumBps,
			types.BasisPoints,
		)
	}
	if g.Decimals < 0 {
		return fmt.Errorf("genesis: negative decimals %d", g.Decimals)
	}
	return nil
}

type Config struct {
	promRegistry    prometheus.Registerer
	logger          *slog.Logger
	clock           clock.Clock
	ledger          treasury.Ledger
	yield           treasury.YieldStrategy
	eventBus        *event.EventBus
	genesis         Genesis
	deploymentId    uuid.UUID
	earlyResolution bool
}

// ConfigOptionFunc is a type that represents functions that modify the vault config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new vault config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		earlyResolution: true,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Genesis returns the genesis config with defaults applied
func (c Config) Genesis() Genesis {
	return c.genesis.withDefaults()
}

// WithLogger specifies the logger to use
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithClock specifies the time source. A slot clock starting now with
// DefaultSlotLength is used when none is given.
func WithClock(clk clock.Clock) ConfigOptionFunc {
	return func(c *Config) {
		c.clock = clk
	}
}

// WithLedger specifies the value-transfer rail bound to the treasury account
func WithLedger(ledger treasury.Ledger) ConfigOptionFunc {
	return func(c *Config) {
		c.ledger = ledger
	}
}

// WithYield specifies an optional yield venue
func WithYield(yield treasury.YieldStrategy) ConfigOptionFunc {
	return func(c *Config) {
		c.yield = yield
	}
}

// WithEventBus specifies an existing event bus. The vault creates and owns
// its own bus otherwise.
func WithEventBus(bus *event.EventBus) ConfigOptionFunc {
	return func(c *Config) {
		c.eventBus = bus
	}
}

// WithGenesis specifies the deployment-time configuration
func WithGenesis(genesis Genesis) ConfigOptionFunc {
	return func(c *Config) {
		c.genesis = genesis
	}
}

// WithDeploymentId specifies the deployment id published in the discovery
// record. A random one is generated when unset.
func WithDeploymentId(id uuid.UUID) ConfigOptionFunc {
	return func(c *Config) {
		c.deploymentId = id
	}
}

// WithEarlyResolution controls whether a proposal that has reached quorum
// with a majority in favor succeeds before its voting period ends
func WithEarlyResolution(enabled bool) ConfigOptionFunc {
	return func(c *Config) {
		c.earlyResolution = enabled
	}
}
