// Package lifecycle keeps an append-only audit trail of token state transitions.
// The trail is never read back to restore state.
package lifecycle

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/pumpsniper/internal/domain"
)

const (
	DefaultDir   = "./wal/lifecycle"
	segmentLimit = 1000
	maxSegments  = 10

	transitionKeyPrefix = "transition_"
)

// WALStore persists lifecycle events in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed lifecycle journal.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "lifecycle_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: false,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init lifecycle WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends a transition.
func (s *WALStore) Save(event domain.LifecycleEvent) error {
	if s == nil || s.wal == nil {
		return errors.New("lifecycle store is not initialized")
	}
	if event.TokenID == "" {
		return fmt.Errorf("lifecycle event token is required")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal lifecycle event")
	}

	key := transitionKeyPrefix + event.TokenID

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Write(s.wal.CurrentIndex()+1, key, payload)
}

// EventsAfter returns transitions written after the provided WAL index.
func (s *WALStore) EventsAfter(index uint64) ([]domain.LifecycleRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("lifecycle store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.LifecycleRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, transitionKeyPrefix) {
			// rotated out or foreign key
			continue
		}

		var event domain.LifecycleEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, errors.Wrap(err, "decode lifecycle event")
		}
		records = append(records, domain.LifecycleRecord{Index: idx, Event: event})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("lifecycle store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
