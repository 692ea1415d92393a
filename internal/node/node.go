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


// Package node hosts a vault as a long running process: storage, snapshots,
// the read API, metrics and tracing
package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blinklabs-io/coffer"
	"github.com/blinklabs-io/coffer/adapter"
	"github.com/blinklabs-io/coffer/api"
	"github.com/blinklabs-io/coffer/clock"
	"github.com/blinklabs-io/coffer/database"
	"github.com/blinklabs-io/coffer/event"
	"github.com/blinklabs-io/coffer/internal/config"
	"github.com/blinklabs-io/coffer/treasury"
	"github.com/blinklabs-io/coffer/types"
)

// DevYieldAccount holds the dev mode yield position on the in-memory ledger
const DevYieldAccount = types.Address("yield")

// ErrNoLedger is returned when neither dev mode nor an injected ledger
// adapter provides a ledger
var ErrNoLedger = errors.New(
	"no ledger adapter configured: enable devMode or provide one with WithLedger",
)

type Node struct {
	cfg              *config.Config
	logger           *slog.Logger
	promRegistry     prometheus.Registerer
	promGatherer     prometheus.Gatherer
	ledger           treasury.Ledger
	yield            treasury.YieldStrategy
	clock            clock.Clock
	db               *database.Database
	vault            *coffer.Vault
	api              *api.Api
	metricsServer    *http.Server
	metricsAddr      string
	snapshotTrigger  *snapshotTrigger
	snapshotInterval time.Duration
	shutdownTimeout  time.Duration
	lastSnapshot     uint64
	snapshotMu       sync.Mutex
	stopCh           chan struct{}
	wg               sync.WaitGroup
	shutdownFuncs    []func(context.Context) error
	shutdownOnce     sync.Once
	started          bool
	restored         bool
}

type NodeOptionFunc func(*Node)

// WithLedger provides the ledger adapter the vault moves funds through
func WithLedger(ledger treasury.Ledger) NodeOptionFunc {
	return func(n *Node) {
		n.ledger = ledger
	}
}

// WithYield provides an optional yield strategy
func WithYield(yield treasury.YieldStrategy) NodeOptionFunc {
	return func(n *Node) {
		n.yield = yield
	}
}

// WithClock overrides the slot clock built from the config
func WithClock(clk clock.Clock) NodeOptionFunc {
	return func(n *Node) {
		n.clock = clk
	}
}

// WithPrometheusRegistry specifies the registry metrics are registered with
// and served from. The default registry is used otherwise.
func WithPrometheusRegistry(registry *prometheus.Registry) NodeOptionFunc {
	return func(n *Node) {
		n.promRegistry = registry
		n.promGatherer = registry
	}
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	opts ...NodeOptionFunc,
) (*Node, error) {
	if cfg == nil {
		return nil, errors.New("node: no config")
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	n := &Node{
		cfg:          cfg,
		logger:       logger,
		promRegistry: prometheus.DefaultRegisterer,
		promGatherer: prometheus.DefaultGatherer,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var err error
	_, n.snapshotInterval, n.shutdownTimeout, err = cfg.Durations()
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Vault returns the hosted vault. It is nil until Start succeeds.
func (n *Node) Vault() *coffer.Vault {
	return n.vault
}

// Database returns the node's database. It is nil until Start succeeds.
func (n *Node) Database() *database.Database {
	return n.db
}

// MetricsAddr returns the address the metrics listener is bound to, or an
// empty string when metrics are not served
func (n *Node) MetricsAddr() string {
	return n.metricsAddr
}

// Start opens storage, builds and restores the vault and starts the
// listeners. Stop must be called to release resources, also after a failed
// Start.
func (n *Node) Start(ctx context.Context) error {
	if n.started {
		return errors.New("node already started")
	}
	n.started = true
	// Configure tracing
	if n.cfg.Tracing {
		if err := n.setupTracing(ctx); err != nil {
			return err
		}
	}
	if err := n.openDatabase(); err != nil {
		return err
	}
	if err := n.buildVault(); err != nil {
		return err
	}
	if err := n.restore(ctx); err != nil {
		return err
	}
	// Persist every operation from here on
	database.NewRecorder(n.db).Attach(n.vault.EventBus())
	n.startSnapshots()
	n.vault.EventBus().SubscribeFunc(
		event.LifecycleEventType,
		n.handleLifecycle,
	)
	if n.cfg.ApiPort > 0 {
		n.api = api.New(
			api.Config{
				ListenAddress: net.JoinHostPort(
					n.cfg.BindAddr,
					strconv.FormatUint(uint64(n.cfg.ApiPort), 10),
				),
			},
			n.vault,
			n.db,
			n.logger,
		)
		if err := n.api.Start(ctx); err != nil {
			return err
		}
	}
	if n.cfg.MetricsPort > 0 {
		if err := n.startMetrics(); err != nil {
			return err
		}
	}
	status, err := n.vault.Status(ctx)
	if err != nil {
		return err
	}
	n.logger.Info(
		"node started",
		"component", "node",
		"lifecycle", status.Lifecycle.String(),
		"sequence", status.Sequence,
		"balance", status.Balance,
	)
	return nil
}

// handleLifecycle runs on the event bus worker pool. A lifecycle change is
// snapshotted right away so that a restart never rolls it back.
func (n *Node) handleLifecycle(evt event.Event) {
	change, ok := evt.Data.(event.LifecycleEvent)
	if !ok {
		return
	}
	n.logger.Warn(
		fmt.Sprintf("vault lifecycle changed: %s -> %s", change.From, change.To),
		"component", "node",
	)
	if n.snapshotTrigger != nil {
		_ = n.snapshotTrigger.Deliver(evt)
	}
}

func (n *Node) openDatabase() error {
	dbOpts := []database.DatabaseOptionFunc{
		database.WithLogger(n.logger),
		database.WithPromRegistry(n.promRegistry),
		database.WithSnapshotRetention(n.cfg.SnapshotRetention),
	}
	// The dev mode ledger lives in memory, so its journal does too
	if !n.cfg.DevMode {
		dbOpts = append(dbOpts, database.WithDataDir(n.cfg.DatabasePath))
	}
	db, err := database.New(dbOpts...)
	if db == nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	if err != nil {
		var seqErr database.SnapshotSequenceError
		var gapErr database.JournalGapError
		switch {
		case errors.As(err, &seqErr):
			// The newest snapshot wins; the marker is rewritten by the next save
			n.logger.Warn(
				"snapshot marker does not match snapshot store, using newest snapshot",
				"component", "node",
				"error", err,
			)
		case errors.As(err, &gapErr):
			n.logger.Warn(
				"journal is missing entries covered by the latest snapshot",
				"component", "node",
				"error", err,
			)
		default:
			return fmt.Errorf("failed to open database: %w", err)
		}
	}
	return nil
}

func (n *Node) buildVault() error {
	genesis := coffer.NewConfig(coffer.WithGenesis(n.cfg.Genesis)).Genesis()
	if n.cfg.DevMode && n.ledger == nil {
		ledger := adapter.NewMemoryLedger(genesis.TreasuryAccount)
		ledger.Mint(genesis.TreasuryAccount, n.cfg.DevFunding)
		n.ledger = ledger
		if n.cfg.DevYield && n.yield == nil {
			n.yield = adapter.NewMemoryYield(ledger, DevYieldAccount)
		}
		n.logger.Info(
			"dev mode: using in-memory ledger",
			"component", "node",
			"funding", n.cfg.DevFunding,
		)
	}
	if n.ledger == nil {
		return ErrNoLedger
	}
	if n.clock == nil {
		slotLength, _, _, err := n.cfg.Durations()
		if err != nil {
			return err
		}
		start, err := n.cfg.SystemStartTime()
		if err != nil {
			return err
		}
		// Governance heights stored in snapshots are measured from this origin
		start, err = n.db.ClockOrigin(start, slotLength)
		if err != nil {
			return err
		}
		n.logger.Debug(
			"slot clock origin: "+start.Format(time.RFC3339Nano),
			"component", "node",
			"slot_length", slotLength.String(),
		)
		slotClock, err := clock.NewSlotClock(start, slotLength)
		if err != nil {
			return err
		}
		n.clock = slotClock
	}
	vaultOpts := []coffer.ConfigOptionFunc{
		coffer.WithLogger(n.logger),
		coffer.WithPrometheusRegistry(n.promRegistry),
		coffer.WithClock(n.clock),
		coffer.WithLedger(n.ledger),
		coffer.WithGenesis(n.cfg.Genesis),
		coffer.WithEarlyResolution(n.cfg.EarlyResolution),
	}
	if n.yield != nil {
		vaultOpts = append(vaultOpts, coffer.WithYield(n.yield))
	}
	if n.cfg.DeploymentId != "" {
		id, err := uuid.Parse(n.cfg.DeploymentId)
		if err != nil {
			return fmt.Errorf("invalid deployment id: %w", err)
		}
		vaultOpts = append(vaultOpts, coffer.WithDeploymentId(id))
	}
	v, err := coffer.New(coffer.NewConfig(vaultOpts...))
	if err != nil {
		return fmt.Errorf("failed to build vault: %w", err)
	}
	n.vault = v
	return nil
}

func (n *Node) startMetrics() error {
	mux := http.NewServeMux()
	mux.Handle(
		"/metrics",
		promhttp.HandlerFor(n.promGatherer, promhttp.HandlerOpts{}),
	)
	addr := net.JoinHostPort(
		n.cfg.BindAddr,
		strconv.FormatUint(uint64(n.cfg.MetricsPort), 10),
	)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics: %w", err)
	}
	n.metricsAddr = ln.Addr().String()
	n.metricsServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	n.logger.Info(
		"serving prometheus metrics on "+n.metricsAddr,
		"component", "node",
	)
	server := n.metricsServer
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			n.logger.Error(
				fmt.Sprintf("metrics listener failed: %s", err),
				"component", "node",
			)
		}
	}()
	return nil
}

// Stop shuts the node down in phases. It is safe to call more than once.
func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), n.shutdownTimeout)
	defer cancel()

	var err error

	n.logger.Debug("starting graceful shutdown", "component", "node")

	// Phase 1: Stop accepting new work
	n.logger.Debug("shutdown phase 1: stopping listeners", "component", "node")
	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}
	if n.metricsServer != nil {
		if stopErr := n.metricsServer.Shutdown(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("metrics shutdown: %w", stopErr))
		}
	}

	// Phase 2: Flush state
	n.logger.Debug("shutdown phase 2: flushing state", "component", "node")
	close(n.stopCh)
	n.wg.Wait()
	if n.restored {
		//nolint:contextcheck
		if snapErr := n.saveSnapshot(ctx); snapErr != nil {
			err = errors.Join(err, fmt.Errorf("final snapshot: %w", snapErr))
		}
	}

	// Phase 3: Close the vault and the database
	n.logger.Debug("shutdown phase 3: closing storage", "component", "node")
	if n.vault != nil {
		n.vault.Close()
	}
	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Cleanup resources
	n.logger.Debug("shutdown phase 4: cleanup resources", "component", "node")
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	n.logger.Debug("graceful shutdown complete", "component", "node")
	return err
}

// Run starts a node from cfg and blocks until SIGINT or SIGTERM
func Run(cfg *config.Config, logger *slog.Logger, opts ...NodeOptionFunc) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	n, err := New(cfg, logger, opts...)
	if err != nil {
		return err
	}
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	if err := n.Start(signalCtx); err != nil {
		logger.Error("node error", "component", "node", "error", err)
		if stopErr := n.Stop(); stopErr != nil {
			logger.Error(
				"shutdown errors occurred during error cleanup",
				"component", "node",
				"error", stopErr,
			)
		}
		return err
	}

	<-signalCtx.Done()
	logger.Info("signal received, initiating graceful shutdown", "component", "node")
	if err := n.Stop(); err != nil {
		logger.Error("shutdown errors occurred", "component", "node", "error", err)
		return err
	}
	logger.Info("shutdown complete", "component", "node")
	return nil
}
