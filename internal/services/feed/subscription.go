package feed

import (
	"sync"

	"github.com/vadiminshakov/pumpsniper/internal/domain"
)

// Subscription receives trades of one token.
// The channel is closed by Close or when the stream fails for good; Err tells them apart.
type Subscription struct {
	tokenID string
	events  chan domain.TradeEvent
	client  *Client

	once    sync.Once
	err     error
	dropped int64
}

// Events returns the trade channel.
func (s *Subscription) Events() <-chan domain.TradeEvent {
	return s.events
}

// Err is the stream error that closed the subscription, nil otherwise.
func (s *Subscription) Err() error {
	s.client.mu.Lock()
	defer s.client.mu.Unlock()

	return s.err
}

// Dropped counts events discarded because the consumer fell behind.
func (s *Subscription) Dropped() int64 {
	s.client.mu.Lock()
	defer s.client.mu.Unlock()

	return s.dropped
}

// Drain discards buffered events and returns how many were discarded.
func (s *Subscription) Drain() int {
	n := 0
	for {
		select {
		case _, ok := <-s.events:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.client.unsubscribe(s)
}

// deliver never blocks: the oldest buffered event is dropped to make room.
// Called with client.mu held.
func (s *Subscription) deliver(ev domain.TradeEvent) {
	for {
		select {
		case s.events <- ev:
			return
		default:
		}
		select {
		case <-s.events:
			s.dropped++
		default:
		}
	}
}

// close is called with client.mu held.
func (s *Subscription) close(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.events)
	})
}
