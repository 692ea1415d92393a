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

// Package database persists the audit journal and governance records in
// SQLite and vault snapshots in badger
package database

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/coffer/database/badger"
	"github.com/blinklabs-io/coffer/database/models"
	"github.com/blinklabs-io/coffer/database/sqlite"
	"github.com/blinklabs-io/coffer/event"
)

const (
	DefaultSnapshotRetention = 8

	metadataDir = "metadata"
	blobDir     = "blob"
)

// ErrSnapshotNotFound is returned by LoadSnapshot when nothing was saved yet
var ErrSnapshotNotFound = badger.ErrSnapshotNotFound

type Database struct {
	logger       *slog.Logger
	promRegistry prometheus.Registerer
	metadata     *sqlite.MetadataStoreSqlite
	snapshots    *badger.SnapshotStoreBadger
	encMode      cbor.EncMode
	decMode      cbor.DecMode
	dataDir      string
	retention    int
}

type DatabaseOptionFunc func(*Database)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) DatabaseOptionFunc {
	return func(d *Database) {
		d.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) DatabaseOptionFunc {
	return func(d *Database) {
		d.promRegistry = registry
	}
}

// WithDataDir specifies the data directory. Storage is in-memory without one.
func WithDataDir(dataDir string) DatabaseOptionFunc {
	return func(d *Database) {
		d.dataDir = dataDir
	}
}

// WithSnapshotRetention specifies how many snapshots are kept after a save
func WithSnapshotRetention(count int) DatabaseOptionFunc {
	return func(d *Database) {
		if count > 0 {
			d.retention = count
		}
	}
}

// New opens both stores. On a consistency failure the database is returned
// along with the error so the caller can inspect or close it.
func New(opts ...DatabaseOptionFunc) (*Database, error) {
	d := &Database{
		retention: DefaultSnapshotRetention,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	encOpts := cbor.CoreDetEncOptions()
	encOpts.Time = cbor.TimeRFC3339Nano
	encMode, err := encOpts.EncMode()
	if err != nil {
		return nil, err
	}
	decMode, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	d.encMode = encMode
	d.decMode = decMode
	sqliteOpts := []sqlite.SqliteOptionFunc{
		sqlite.WithLogger(d.logger),
		sqlite.WithPromRegistry(d.promRegistry),
	}
	badgerOpts := []badger.SnapshotStoreBadgerOptionFunc{
		badger.WithLogger(d.logger),
		badger.WithPromRegistry(d.promRegistry),
	}
	if d.dataDir != "" {
		sqliteOpts = append(
			sqliteOpts,
			sqlite.WithDataDir(filepath.Join(d.dataDir, metadataDir)),
		)
		badgerOpts = append(
			badgerOpts,
			badger.WithDataDir(filepath.Join(d.dataDir, blobDir)),
		)
	}
	metadataDb, err := sqlite.New(sqliteOpts...)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	d.metadata = metadataDb
	snapshotDb, err := badger.New(badgerOpts...)
	if err != nil {
		_ = metadataDb.Close()
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	d.snapshots = snapshotDb
	if err := d.checkSnapshotSequence(); err != nil {
		// Database is available for recovery, so return it with error
		return d, err
	}
	return d, nil
}

// OpenMetadata opens only the metadata store under dataDir. Unlike the
// snapshot store it takes no exclusive lock, so it can be read while a node
// holds the database open.
func OpenMetadata(
	dataDir string,
	logger *slog.Logger,
) (*sqlite.MetadataStoreSqlite, error) {
	if dataDir == "" {
		return nil, errors.New("no data directory given")
	}
	return sqlite.New(
		sqlite.WithLogger(logger),
		sqlite.WithDataDir(filepath.Join(dataDir, metadataDir)),
	)
}

// Metadata returns the underlying metadata store instance
func (d *Database) Metadata() *sqlite.MetadataStoreSqlite {
	return d.metadata
}

// Snapshots returns the underlying snapshot store instance
func (d *Database) Snapshots() *badger.SnapshotStoreBadger {
	return d.snapshots
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	if d.metadata != nil {
		err = errors.Join(err, d.metadata.Close())
	}
	if d.snapshots != nil {
		err = errors.Join(err, d.snapshots.Close())
	}
	return err
}

// AppendJournal records an applied vault operation
func (d *Database) AppendJournal(evt event.OperationEvent) error {
	entry := &models.JournalEntry{
		Sequence:     evt.Sequence,
		Operation:    evt.Operation,
		Caller:       string(evt.Caller),
		Counterparty: string(evt.Counterparty),
		Amount:       evt.Amount,
		Detail:       evt.Detail,
		Timestamp:    evt.Timestamp.UTC(),
	}
	return d.metadata.AddJournalEntry(entry)
}

// Journal returns up to limit entries after the given sequence
func (d *Database) Journal(after uint64, limit int) ([]models.JournalEntry, error) {
	return d.metadata.GetJournal(after, limit)
}

// LatestSequence returns the highest journaled sequence
func (d *Database) LatestSequence() (uint64, error) {
	return d.metadata.GetLatestSequence()
}

// SaveSnapshot encodes state as CBOR and stores it for seq. Older snapshots
// beyond the retention count are pruned.
func (d *Database) SaveSnapshot(seq uint64, state any) error {
	data, err := d.encMode.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := d.snapshots.Put(seq, data); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	if err := d.metadata.SetSnapshotSequence(seq); err != nil {
		return fmt.Errorf("update snapshot marker: %w", err)
	}
	if _, err := d.snapshots.Prune(d.retention); err != nil {
		d.logger.Warn(
			fmt.Sprintf("failed to prune snapshots: %s", err),
			"component", "database",
		)
	}
	d.logger.Debug(
		"saved vault snapshot",
		"component", "database",
		"sequence", seq,
		"bytes", len(data),
	)
	return nil
}

// LoadSnapshot decodes the latest snapshot into dst and returns its sequence
func (d *Database) LoadSnapshot(dst any) (uint64, error) {
	seq, data, err := d.snapshots.Latest()
	if err != nil {
		return 0, err
	}
	if err := d.decMode.Unmarshal(data, dst); err != nil {
		return 0, fmt.Errorf("decode snapshot %d: %w", seq, err)
	}
	return seq, nil
}

// SetProposal stores the current view of a proposal
func (d *Database) SetProposal(evt event.ProposalEvent) error {
	updated := evt.Timestamp
	if updated.IsZero() {
		updated = time.Now()
	}
	return d.metadata.SetProposal(&models.Proposal{
		ProposalId:   evt.Id,
		Action:       evt.Action,
		NewCeo:       string(evt.NewCeo),
		Description:  evt.Description,
		Proposer:     string(evt.Proposer),
		State:        evt.State,
		VoteStart:    evt.VoteStart,
		VoteEnd:      evt.VoteEnd,
		Snapshot:     evt.Snapshot,
		VotesFor:     evt.For,
		VotesAgainst: evt.Against,
		VotesAbstain: evt.Abstain,
		UpdatedAt:    updated.UTC(),
	})
}

// SetVote stores a cast vote
func (d *Database) SetVote(evt event.VoteEvent) error {
	return d.metadata.SetVote(&models.Vote{
		ProposalId: evt.ProposalId,
		Voter:      string(evt.Voter),
		Support:    evt.Support,
		Weight:     evt.Weight,
		CastAt:     evt.Timestamp.UTC(),
	})
}
