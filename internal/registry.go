package internal

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/pumpsniper/internal/domain"
)

// Registry tracks every token the bot has seen and the state of its pipeline.
// Scorer and monitor never touch it; only the bot updates entries.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*domain.TokenSnapshot
	clock   clockwork.Clock
}

func NewRegistry(clock clockwork.Clock) *Registry {
	return &Registry{entries: make(map[string]*domain.TokenSnapshot), clock: clock}
}

// Register adds an unseen token in state NEW. It returns false for tokens already seen.
func (r *Registry) Register(tokenID string, firstSeen time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[tokenID]; ok {
		return false
	}
	if firstSeen.IsZero() {
		firstSeen = r.clock.Now()
	}
	r.entries[tokenID] = &domain.TokenSnapshot{
		TokenID:   tokenID,
		State:     domain.StateNew,
		FirstSeen: firstSeen,
		UpdatedAt: firstSeen,
	}

	return true
}

// Transition moves tokenID to state to. mutate, when set, updates the entry under the lock.
func (r *Registry) Transition(tokenID string, to domain.TokenState, mutate func(*domain.TokenSnapshot)) (domain.TokenState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[tokenID]
	if !ok {
		return "", errors.Errorf("token %s is not registered", tokenID)
	}
	from := entry.State
	if !domain.CanTransition(from, to) {
		return from, errors.Wrapf(domain.ErrInvalidTransition, "%s: %s -> %s", tokenID, from, to)
	}
	entry.State = to
	entry.UpdatedAt = r.clock.Now()
	if mutate != nil {
		mutate(entry)
	}

	return from, nil
}

// State returns the state of tokenID.
func (r *Registry) State(tokenID string) (domain.TokenState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[tokenID]
	if !ok {
		return "", false
	}

	return entry.State, true
}

// Snapshot returns copies of all entries ordered by first sighting.
func (r *Registry) Snapshot() []domain.TokenSnapshot {
	r.mu.RLock()
	out := make([]domain.TokenSnapshot, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, *entry)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].FirstSeen.Before(out[j].FirstSeen)
	})

	return out
}

// Counts returns how many tokens are tracked and how many hold an open position.
func (r *Registry) Counts() (tracked, open int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, entry := range r.entries {
		if entry.State == domain.StatePositionOpen {
			open++
		}
	}

	return len(r.entries), open
}

// Prune forgets terminal and never-started entries idle for longer than ttl.
// A pruned token is treated as unseen if it reappears on the stream.
func (r *Registry) Prune(ttl time.Duration) int {
	cutoff := r.clock.Now().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	pruned := 0
	for token, entry := range r.entries {
		idle := entry.State.Terminal() || entry.State == domain.StateNew
		if idle && entry.UpdatedAt.Before(cutoff) {
			delete(r.entries, token)
			pruned++
		}
	}

	return pruned
}
