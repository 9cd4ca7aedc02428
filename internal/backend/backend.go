// Package backend abstracts the hosted persistence service that confirms
// each optimistic mutation. The real service is out of scope; Simulated
// stands in for it with configurable latency and failure injection so the
// rollback path stays exercised.
package backend

import (
	"context"
	"sync"
	"time"
)

// Confirmer acknowledges one mutation. A nil return commits the
// optimistic change; an error triggers rollback. No retry or backoff
// happens at this layer.
type Confirmer interface {
	Confirm(ctx context.Context, kind, op, id string) error
}

// Simulated is a Confirmer that waits a fixed latency and then succeeds,
// unless a failure hook decides otherwise.
type Simulated struct {
	latency time.Duration

	mu   sync.Mutex
	fail func(kind, op, id string) error
}

// NewSimulated creates a simulated backend with the given confirm latency.
func NewSimulated(latency time.Duration) *Simulated {
	return &Simulated{latency: latency}
}

// SetFailure installs a hook consulted on every Confirm. A nil hook (the
// default) makes every confirmation succeed.
func (s *Simulated) SetFailure(fn func(kind, op, id string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fn
}

// Confirm waits out the latency (or the context), then consults the
// failure hook.
func (s *Simulated) Confirm(ctx context.Context, kind, op, id string) error {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	fn := s.fail
	s.mu.Unlock()
	if fn != nil {
		return fn(kind, op, id)
	}
	return nil
}
