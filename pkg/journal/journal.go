// Package journal keeps an audit log of successfully executed commands in
// BadgerDB.
//
// The journal records what users did; it is not used to rebuild the
// namespace, which always starts empty. By default the database runs in
// memory and the log is bounded by MaxEntries, oldest entries first out.
//
// Key layout:
//
//	"j:" + big-endian uint64 sequence number -> JSON Entry
package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"
	"github.com/marmos91/simfs/internal/logger"
	"github.com/marmos91/simfs/pkg/namespace"
)

const (
	keyPrefix = "j:"

	// DefaultMaxEntries bounds the journal when Config.MaxEntries is zero.
	DefaultMaxEntries = 1000
)

// Entry is one journaled command.
type Entry struct {
	ID          string    `json:"id"`
	Seq         uint64    `json:"seq"`
	Time        time.Time `json:"time"`
	UserName    string    `json:"user_name"`
	CommandLine string    `json:"command_line"`
	Message     string    `json:"message"`
}

// Config configures a Journal.
type Config struct {
	// InMemory runs Badger without touching disk. Path is ignored.
	InMemory bool

	// Path is the Badger directory when InMemory is false
	Path string

	MaxEntries int
}

// Journal is a bounded, append-only command log. It is safe for concurrent
// use.
type Journal struct {
	mu         sync.Mutex
	db         *badger.DB
	seq        uint64
	count      int
	maxEntries int
}

// Open opens or creates the journal database.
func Open(ctx context.Context, cfg Config) (*Journal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("journal path is required when not in memory")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal at %q: %w", cfg.Path, err)
	}

	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	j := &Journal{db: db, maxEntries: maxEntries}
	if err := j.recover(); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("Journal opened (in_memory=%t, entries=%d, next_seq=%d)", cfg.InMemory, j.count, j.seq+1)
	return j, nil
}

func encodeKey(seq uint64) []byte {
	key := make([]byte, len(keyPrefix)+8)
	copy(key, keyPrefix)
	binary.BigEndian.PutUint64(key[len(keyPrefix):], seq)
	return key
}

func decodeKey(key []byte) uint64 {
	if len(key) != len(keyPrefix)+8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(keyPrefix):])
}

// recover restores the sequence counter and entry count of an on-disk
// journal.
func (j *Journal) recover() error {
	return j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			j.count++
			if seq := decodeKey(it.Item().Key()); seq > j.seq {
				j.seq = seq
			}
		}
		return nil
	})
}

// Append records a command and returns the stored entry. The oldest entries
// are evicted once the journal exceeds its bound.
func (j *Journal) Append(ctx context.Context, userName, commandLine, message string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	entry := &Entry{
		ID:          uuid.NewString(),
		Seq:         j.seq + 1,
		Time:        time.Now().UTC(),
		UserName:    userName,
		CommandLine: commandLine,
		Message:     message,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode journal entry: %w", err)
	}

	if err := j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(encodeKey(entry.Seq), data)
	}); err != nil {
		return nil, fmt.Errorf("failed to write journal entry: %w", err)
	}

	j.seq = entry.Seq
	j.count++

	if j.count > j.maxEntries {
		if err := j.evict(j.count - j.maxEntries); err != nil {
			logger.Warn("Failed to evict old journal entries: %v", err)
		}
	}

	return entry, nil
}

// evict removes the n oldest entries. The caller holds j.mu.
func (j *Journal) evict(n int) error {
	var keys [][]byte
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && len(keys) < n; it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = j.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	j.count -= len(keys)
	return nil
}

// Recent returns up to limit entries, newest first. A non-empty userName
// keeps only that user's entries. A non-positive limit returns everything.
func (j *Journal) Recent(ctx context.Context, userName string, limit int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var entries []Entry
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(encodeKey(^uint64(0))); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("failed to decode journal entry: %w", err)
			}

			if userName != "" && !namespace.NamesEqual(e.UserName, userName) {
				continue
			}
			entries = append(entries, e)
			if limit > 0 && len(entries) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Len returns the number of stored entries.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.count
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.db.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	return nil
}
