package internal

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// TaskRegistry supervises per-token goroutines. It runs at most one per token
// and recovers and logs panics.
type TaskRegistry struct {
	mu     sync.Mutex
	cancel map[string]context.CancelFunc
	wg     sync.WaitGroup
	l      *zap.Logger
}

func NewTaskRegistry(l *zap.Logger) *TaskRegistry {
	return &TaskRegistry{cancel: make(map[string]context.CancelFunc), l: l}
}

// Spawn runs fn for tokenID. It returns false when a task for the token is already running.
func (t *TaskRegistry) Spawn(ctx context.Context, tokenID string, fn func(ctx context.Context)) bool {
	t.mu.Lock()
	if _, ok := t.cancel[tokenID]; ok {
		t.mu.Unlock()
		return false
	}
	taskCtx, cancel := context.WithCancel(ctx)
	t.cancel[tokenID] = cancel
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		defer func() {
			t.mu.Lock()
			delete(t.cancel, tokenID)
			t.mu.Unlock()
			cancel()
		}()
		defer func() {
			if r := recover(); r != nil {
				t.l.Error("token task panicked",
					zap.String("token", tokenID),
					zap.String("panic", fmt.Sprint(r)),
					zap.Stack("stack"))
			}
		}()

		fn(taskCtx)
	}()

	return true
}

// Active returns the number of running tasks.
func (t *TaskRegistry) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.cancel)
}

// Wait blocks until every task returned.
func (t *TaskRegistry) Wait() {
	t.wg.Wait()
}
