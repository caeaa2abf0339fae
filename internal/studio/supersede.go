package studio

import (
	"context"
	"sync"
)

// Supersede cancels the previous in-flight operation of a key when a new
// one begins, so a stale result never replaces a fresher one.
type Supersede struct {
	mu      sync.Mutex
	current map[string]*token
}

type token struct {
	cancel context.CancelFunc
}

// NewSupersede returns an empty tracker.
func NewSupersede() *Supersede {
	return &Supersede{current: make(map[string]*token)}
}

// Begin cancels any operation running under key and returns a context for
// the new one. done must be called when the operation ends; it reports
// whether the operation was still current, meaning its result may be used.
func (s *Supersede) Begin(ctx context.Context, key string) (context.Context, func() bool) {
	ctx, cancel := context.WithCancel(ctx)
	t := &token{cancel: cancel}

	s.mu.Lock()
	if prev := s.current[key]; prev != nil {
		prev.cancel()
	}
	s.current[key] = t
	s.mu.Unlock()

	var once sync.Once
	current := false
	return ctx, func() bool {
		once.Do(func() {
			s.mu.Lock()
			if s.current[key] == t {
				delete(s.current, key)
				current = ctx.Err() == nil
			}
			s.mu.Unlock()
			cancel()
		})
		return current
	}
}

// Cancel stops the operation running under key, if any.
func (s *Supersede) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.current[key]; t != nil {
		t.cancel()
		delete(s.current, key)
	}
}

// Active reports how many keys have an operation in flight.
func (s *Supersede) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.current)
}
