// Copyright 2025 Blink Labs Software
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
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blinklabs-io/utxoorder/utxoref"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultGcInterval = 5 * time.Minute

// ErrStoreClosed is returned when operating on a closed store
var ErrStoreClosed = errors.New("store closed")

// Store is a persistent set of UTxO references. References are keyed with
// utxoref.Ref.Key, so badger's key iteration yields them in canonical order.
type Store struct {
	promRegistry prometheus.Registerer
	db           *badger.DB
	logger       *slog.Logger
	metrics      storeMetrics
	gcTicker     *time.Ticker
	gcStopCh     chan struct{}
	dataDir      string
	gcWg         sync.WaitGroup
	gcInterval   time.Duration
	gcEnabled    bool
	closeOnce    sync.Once
	closed       bool
	mu           sync.RWMutex
}

// New opens a store. Without a data directory the store is kept in memory.
func New(opts ...StoreOptionFunc) (*Store, error) {
	s := &Store{
		gcEnabled:  true,
		gcInterval: defaultGcInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		// Create logger to throw away logs
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var badgerOpts badger.Options
	if s.dataDir == "" {
		badgerOpts = badger.DefaultOptions("").
			WithInMemory(true)
		// Nothing to reclaim without a value log on disk
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
		badgerOpts = badger.DefaultOptions(filepath.Join(s.dataDir, "utxo")).
			WithCompression(options.Snappy)
	}
	badgerOpts = badgerOpts.
		WithLogger(newBadgerLogger(s.logger)).
		// The default INFO logging is a bit verbose
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	s.db = db
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	s.metrics.init(s.promRegistry)
	count, err := s.Count(context.Background())
	if err != nil {
		return fmt.Errorf("failed to count stored refs: %w", err)
	}
	s.metrics.refs.Set(float64(count))
	if s.gcEnabled {
		s.gcTicker = time.NewTicker(s.gcInterval)
		s.gcStopCh = make(chan struct{})
		s.gcWg.Add(1)
		go s.valueLogGc(s.gcTicker, s.gcStopCh)
	}
	s.logger.Debug(
		fmt.Sprintf("opened UTxO store with %d refs", count),
		"component", "database",
	)
	return nil
}

func (s *Store) valueLogGc(t *time.Ticker, stop <-chan struct{}) {
	defer s.gcWg.Done()
	for {
		select {
		case <-t.C:
			for {
				err := s.db.RunValueLogGC(0.5)
				if err == nil {
					// Run it again if it just ran successfully
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) {
					s.logger.Warn(
						fmt.Sprintf("UTxO store: GC failure: %s", err),
						"component", "database",
					)
				}
				break
			}
		case <-stop:
			return
		}
	}
}

// Close stops background work and closes the underlying database
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		if s.gcTicker != nil {
			s.gcTicker.Stop()
			close(s.gcStopCh)
			s.gcWg.Wait()
		}
		err = s.db.Close()
	})
	return err
}

// view and update return ErrStoreClosed once the store is closed
func (s *Store) view(fn func(*badger.Txn) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(*badger.Txn) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.Update(fn)
}

// Add stores refs. Refs already present are left unchanged. It returns the
// number of newly added refs.
func (s *Store) Add(ctx context.Context, refs ...utxoref.Ref) (int, error) {
	added := 0
	err := s.update(func(txn *badger.Txn) error {
		added = 0
		for _, ref := range refs {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := ref.Key()
			_, err := txn.Get(key)
			if err == nil {
				continue
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("lookup %s: %w", ref, err)
			}
			if err := txn.Set(key, nil); err != nil {
				return fmt.Errorf("store %s: %w", ref, err)
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.metrics.added.Add(float64(added))
	s.metrics.refs.Add(float64(added))
	s.logger.Debug(
		fmt.Sprintf("added %d of %d UTxO refs", added, len(refs)),
		"component", "database",
	)
	return added, nil
}

// Remove deletes refs. Refs that are not present are ignored. It returns the
// number of removed refs.
func (s *Store) Remove(ctx context.Context, refs ...utxoref.Ref) (int, error) {
	removed := 0
	err := s.update(func(txn *badger.Txn) error {
		removed = 0
		for _, ref := range refs {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := ref.Key()
			if _, err := txn.Get(key); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return fmt.Errorf("lookup %s: %w", ref, err)
			}
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("delete %s: %w", ref, err)
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.metrics.removed.Add(float64(removed))
	s.metrics.refs.Sub(float64(removed))
	return removed, nil
}

// Has reports whether ref is stored
func (s *Store) Has(ctx context.Context, ref utxoref.Ref) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	found := false
	err := s.view(func(txn *badger.Txn) error {
		_, err := txn.Get(ref.Key())
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Iterate calls fn for each stored ref in canonical order, starting at the
// first ref that is not less than start when start is non-nil. Returning an
// error from fn stops the iteration and returns that error.
func (s *Store) Iterate(
	ctx context.Context,
	start *utxoref.Ref,
	fn func(utxoref.Ref) error,
) error {
	return s.view(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = []byte(utxoref.KeyPrefix)
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		if start != nil {
			it.Seek(start.Key())
		} else {
			it.Rewind()
		}
		for ; it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ref, err := utxoref.FromKey(it.Item().KeyCopy(nil))
			if err != nil {
				return err
			}
			if err := fn(ref); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns all stored refs in canonical order
func (s *Store) List(ctx context.Context) ([]utxoref.Ref, error) {
	var ret []utxoref.Ref
	err := s.Iterate(ctx, nil, func(ref utxoref.Ref) error {
		ret = append(ret, ref)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

var errPageFull = errors.New("page full")

// ListPage returns up to limit refs in canonical order that sort strictly
// after the given ref, or from the beginning when after is nil
func (s *Store) ListPage(
	ctx context.Context,
	after *utxoref.Ref,
	limit int,
) ([]utxoref.Ref, error) {
	ret := make([]utxoref.Ref, 0, max(limit, 0))
	if limit <= 0 {
		return ret, nil
	}
	err := s.Iterate(ctx, after, func(ref utxoref.Ref) error {
		if after != nil && ref == *after {
			return nil
		}
		ret = append(ret, ref)
		if len(ret) >= limit {
			return errPageFull
		}
		return nil
	})
	if err != nil && !errors.Is(err, errPageFull) {
		return nil, err
	}
	return ret, nil
}

// Count returns the number of stored refs
func (s *Store) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.Iterate(ctx, nil, func(utxoref.Ref) error {
		count++
		return nil
	})
	return count, err
}
