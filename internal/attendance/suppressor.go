package attendance

import (
	"fmt"
	"sync"
	"time"
)

// Suppressor drops repeat mark attempts for the same (student, class) pair
// inside a time window. It only reduces database round trips for a person
// standing in front of the camera; the unique index in the store remains
// the idempotence guarantee.
type Suppressor struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewSuppressor creates a suppressor with the given window. A zero or
// negative window disables suppression.
func NewSuppressor(window time.Duration) *Suppressor {
	return &Suppressor{
		window: window,
		now:    time.Now,
		seen:   make(map[string]time.Time),
	}
}

// ShouldAttempt reports whether a mark attempt for the pair should proceed.
// The first call for a pair always returns true; subsequent calls return
// false until the window has elapsed since the last allowed attempt.
func (s *Suppressor) ShouldAttempt(studentID, classID int64) bool {
	if s.window <= 0 {
		return true
	}

	key := fmt.Sprintf("%d:%d", studentID, classID)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.seen[key]; ok && now.Sub(last) < s.window {
		return false
	}
	s.seen[key] = now
	return true
}

// Reset clears all suppression state, typically on session stop.
func (s *Suppressor) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[string]time.Time)
}
