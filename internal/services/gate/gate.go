// Package gate limits how many token pipelines run at once.
package gate

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Mode selects the gate policy.
type Mode string

const (
	// ModeSingle allows one active pipeline process-wide.
	ModeSingle Mode = "single"
	// ModeIndependent allows one pipeline per token.
	ModeIndependent Mode = "independent"
)

// Gate admits or rejects a token pipeline.
type Gate interface {
	// Acquire returns false when the token must be ignored.
	Acquire(tokenID string) bool
	// Release frees the slot taken by tokenID. Releasing a token that holds nothing is a no-op.
	Release(tokenID string)
	Mode() Mode
}

// New creates a gate for mode.
func New(mode Mode) (Gate, error) {
	switch mode {
	case ModeSingle:
		return &SingleGate{}, nil
	case ModeIndependent:
		return NewIndependentGate(), nil
	default:
		return nil, errors.Errorf("unknown gate mode %q", mode)
	}
}

// SingleGate is a process-wide busy flag.
type SingleGate struct {
	busy  atomic.Bool
	mu    sync.Mutex
	owner string
}

func (g *SingleGate) Acquire(tokenID string) bool {
	if !g.busy.CompareAndSwap(false, true) {
		return false
	}
	g.mu.Lock()
	g.owner = tokenID
	g.mu.Unlock()

	return true
}

func (g *SingleGate) Release(tokenID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owner != tokenID || !g.busy.Load() {
		return
	}
	g.owner = ""
	g.busy.Store(false)
}

func (g *SingleGate) Mode() Mode {
	return ModeSingle
}

// IndependentGate admits every token once until released.
type IndependentGate struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewIndependentGate() *IndependentGate {
	return &IndependentGate{inFlight: make(map[string]struct{})}
}

func (g *IndependentGate) Acquire(tokenID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.inFlight[tokenID]; ok {
		return false
	}
	g.inFlight[tokenID] = struct{}{}

	return true
}

func (g *IndependentGate) Release(tokenID string) {
	g.mu.Lock()
	delete(g.inFlight, tokenID)
	g.mu.Unlock()
}

func (g *IndependentGate) Mode() Mode {
	return ModeIndependent
}
