package utils

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 30 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LimiterStore holds one token bucket per key (client IP, caller phone, ...).
// Buckets idle for longer than limiterIdleTTL are dropped on the next sweep.
type LimiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	every     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewLimiterStore allows `events` per `window` for each key, all available as burst.
func NewLimiterStore(events int, window time.Duration) *LimiterStore {
	if events <= 0 {
		events = 1
	}
	return &LimiterStore{
		limiters: make(map[string]*limiterEntry),
		every:    rate.Every(window / time.Duration(events)),
		burst:    events,
		now:      time.Now,
	}
}

func (s *LimiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > limiterIdleTTL {
		for k, e := range s.limiters {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(s.limiters, k)
			}
		}
		s.lastSweep = now
	}

	e, ok := s.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.every, s.burst)}
		s.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// Allow consumes one token for key and reports whether it was available.
func (s *LimiterStore) Allow(key string) bool {
	return s.get(key).AllowN(s.now(), 1)
}
