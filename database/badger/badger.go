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

// Package badger keeps vault snapshots in a badger key-value store. Each
// snapshot is stored under its journal sequence so older ones can be pruned.
package badger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultGcInterval     = 5 * time.Minute
	DefaultValueThreshold = 1 << 20
)

var (
	// ErrSnapshotNotFound is returned when no snapshot exists for the request
	ErrSnapshotNotFound = errors.New("snapshot not found")

	snapshotKeyPrefix = []byte("snapshot_")
	latestKey         = []byte("latest_snapshot")
)

// SnapshotStoreBadger stores encoded vault snapshots keyed by sequence
type SnapshotStoreBadger struct {
	promRegistry   prometheus.Registerer
	db             *badger.DB
	logger         *slog.Logger
	metrics        *badgerMetrics
	gcTicker       *time.Ticker
	gcStopCh       chan struct{}
	dataDir        string
	gcWg           sync.WaitGroup
	gcInterval     time.Duration
	valueThreshold int64
	gcEnabled      bool
}

// New opens the snapshot store. Without a data directory the store is kept
// in memory and GC is not run.
func New(opts ...SnapshotStoreBadgerOptionFunc) (*SnapshotStoreBadger, error) {
	s := &SnapshotStoreBadger{
		// Set defaults
		gcEnabled:      true,
		gcInterval:     DefaultGcInterval,
		valueThreshold: DefaultValueThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var badgerOpts badger.Options
	if s.dataDir == "" {
		badgerOpts = badger.DefaultOptions("").
			WithInMemory(true)
		s.gcEnabled = false
	} else {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(s.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		badgerOpts = badger.DefaultOptions(
			filepath.Join(s.dataDir, "snapshot"),
		).
			WithCompression(options.Snappy)
	}
	badgerOpts = badgerOpts.
		WithLogger(NewBadgerLogger(s.logger)).
		// The default INFO logging is a bit verbose
		WithLoggingLevel(badger.WARNING).
		WithValueThreshold(s.valueThreshold)
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}
	s.db = db
	if s.promRegistry != nil {
		s.initMetrics()
	}
	if s.gcEnabled {
		s.gcTicker = time.NewTicker(s.gcInterval)
		s.gcStopCh = make(chan struct{})
		s.gcWg.Add(1)
		go s.snapshotGc(s.gcTicker, s.gcStopCh)
	}
	return s, nil
}

func (s *SnapshotStoreBadger) snapshotGc(t *time.Ticker, stop <-chan struct{}) {
	defer s.gcWg.Done()
	for {
		select {
		case <-t.C:
		again:
			err := s.db.RunValueLogGC(0.5)
			if err != nil {
				// Log any actual errors
				if !errors.Is(err, badger.ErrNoRewrite) {
					s.logger.Warn(
						fmt.Sprintf("snapshot DB: GC failure: %s", err),
						"component", "database",
					)
				}
			} else {
				// Run it again if it just ran successfully
				goto again
			}
		case <-stop:
			return
		}
	}
}

// Close stops GC and closes the badger handle
func (s *SnapshotStoreBadger) Close() error {
	if s.gcTicker != nil {
		s.gcTicker.Stop()
		if s.gcStopCh != nil {
			close(s.gcStopCh)
			s.gcStopCh = nil
		}
		s.gcWg.Wait()
		s.gcTicker = nil
	}
	return s.db.Close()
}

// DB returns the database handle
func (s *SnapshotStoreBadger) DB() *badger.DB {
	return s.db
}

func snapshotKey(seq uint64) []byte {
	key := make([]byte, 0, len(snapshotKeyPrefix)+8)
	key = append(key, snapshotKeyPrefix...)
	return binary.BigEndian.AppendUint64(key, seq)
}

// Put stores data as the snapshot for seq and marks it as the latest
func (s *SnapshotStoreBadger) Put(seq uint64, data []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(snapshotKey(seq), data); err != nil {
			return err
		}
		return txn.Set(latestKey, binary.BigEndian.AppendUint64(nil, seq))
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.snapshotsWritten.Inc()
		s.metrics.snapshotBytes.Set(float64(len(data)))
		s.metrics.snapshotSequence.Set(float64(seq))
	}
	return nil
}

// Get returns the snapshot stored for seq
func (s *SnapshotStoreBadger) Get(seq uint64) ([]byte, error) {
	var ret []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(seq))
		if err != nil {
			return err
		}
		ret, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return ret, nil
}

// Latest returns the most recent snapshot and its sequence
func (s *SnapshotStoreBadger) Latest() (uint64, []byte, error) {
	var seq uint64
	var ret []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(latestKey)
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if len(raw) != 8 {
			return fmt.Errorf("corrupt latest snapshot marker: %d bytes", len(raw))
		}
		seq = binary.BigEndian.Uint64(raw)
		item, err = txn.Get(snapshotKey(seq))
		if err != nil {
			return err
		}
		ret, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil, ErrSnapshotNotFound
		}
		return 0, nil, err
	}
	return seq, ret, nil
}

// Sequences lists the stored snapshot sequences in ascending order
func (s *SnapshotStoreBadger) Sequences() ([]uint64, error) {
	var ret []uint64
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix: snapshotKeyPrefix,
		})
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(snapshotKeyPrefix); it.Next() {
			key := it.Item().Key()
			ret = append(
				ret,
				binary.BigEndian.Uint64(key[len(snapshotKeyPrefix):]),
			)
		}
		return nil
	})
	return ret, err
}

// Prune removes all but the newest keep snapshots and returns the number
// removed
func (s *SnapshotStoreBadger) Prune(keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	seqs, err := s.Sequences()
	if err != nil {
		return 0, err
	}
	if len(seqs) <= keep {
		return 0, nil
	}
	stale := seqs[:len(seqs)-keep]
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, seq := range stale {
			if err := txn.Delete(snapshotKey(seq)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug(
		fmt.Sprintf("pruned %d snapshots", len(stale)),
		"component", "database",
	)
	return len(stale), nil
}
