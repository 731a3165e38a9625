// Package storage implements the SDK's durable local state: one JSON file
// holding the full key space, rewritten whole on every persist.
package storage

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/nimogit/beacon/internal/common"
	"github.com/nimogit/beacon/internal/log"
	"github.com/nimogit/beacon/pkg/errors"
)

// Keys of the persisted state.
const (
	KeyQueue       = "cly_queue"  // ordered array of pending requests
	KeyTimedEvents = "cly_timed"  // event key -> start timestamp
	KeyDeviceID    = "cly_id"     // stable device identifier
	KeyOptOut      = "cly_optout" // tracking opt-out flag
)

// Store is a small persistent key-value store backed by a single file.
// Values are kept in memory as raw JSON; every persist rewrites the whole
// blob. A missing or corrupt file loads as an empty store.
//
// Set is fire-and-forget: it updates memory and nudges a writer goroutine.
// SetSync blocks until the state is on disk and is reserved for writes that
// must survive an immediate crash (device identity, crash reports).
type Store struct {
	path string

	mu   sync.Mutex
	data map[string]json.RawMessage

	writes chan struct{}
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

// Open loads the store at path, creating an empty one if the file is missing
// or unreadable. Corrupt state is discarded, not fatal.
func Open(path string) (*Store, error) {
	cleaned, err := common.CleanPath(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageRead, "Invalid store path")
	}

	s := &Store{
		path:   cleaned,
		data:   make(map[string]json.RawMessage),
		writes: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	if raw, err := os.ReadFile(cleaned); err == nil {
		if err := json.Unmarshal(raw, &s.data); err != nil {
			log.Warnf("discarding corrupt state: %v",
				errors.Wrap(err, errors.ErrCodeStorageCorrupted, "State file is not valid JSON").
					WithContext("path", cleaned))
			s.data = make(map[string]json.RawMessage)
		}
	}

	go s.writer()

	return s, nil
}

// Get unmarshals the value stored under key into out. It reports whether the
// key was present and decodable.
func (s *Store) Get(key string, out interface{}) bool {
	s.mu.Lock()
	raw, ok := s.data[key]
	s.mu.Unlock()

	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.Warnf("discarding undecodable value for %q: %v", key, err)
		return false
	}
	return true
}

// Set stores the value under key and schedules an asynchronous persist. A
// short loss window on crash is acceptable here; replay on the next start
// reconstructs the queue from the last successful write.
func (s *Store) Set(key string, v interface{}) {
	if !s.put(key, v) {
		return
	}

	// Coalesce: one pending signal is enough, the writer always persists
	// the latest snapshot.
	select {
	case s.writes <- struct{}{}:
	default:
	}
}

// SetSync stores the value under key and blocks until it is on disk.
func (s *Store) SetSync(key string, v interface{}) error {
	if !s.put(key, v) {
		return errors.New(errors.ErrCodeStorageWrite, "Failed to encode value").
			WithContext("key", key)
	}
	return s.Flush()
}

// Delete removes key and schedules a persist.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()

	select {
	case s.writes <- struct{}{}:
	default:
	}
}

// Flush writes the current snapshot to disk synchronously.
func (s *Store) Flush() error {
	return s.persist()
}

// Close flushes pending state and stops the writer goroutine.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stop)
	<-s.done

	return s.persist()
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) put(key string, v interface{}) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Errorf("failed to encode value for %q: %v", key, err)
		return false
	}

	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
	return true
}

func (s *Store) writer() {
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		case <-s.writes:
			if err := s.persist(); err != nil {
				// In-memory state stays authoritative; the next write
				// retries the full blob.
				log.Errorf("state persist failed: %v", err)
			}
		}
	}
}

func (s *Store) persist() error {
	s.mu.Lock()
	blob, err := json.Marshal(s.data)
	s.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "Failed to encode state")
	}

	return errors.Retry(context.Background(), errors.DefaultRetryConfig(), func(ctx context.Context) error {
		if err := os.WriteFile(s.path, blob, common.FilePermissionSecure); err != nil {
			return errors.StorageError("Failed to write state file", s.path, err)
		}
		return nil
	})
}
