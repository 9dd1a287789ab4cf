package dispatcher

import (
	"sync"

	"golang.org/x/time/rate"
)

// DefaultRateLimit and DefaultRateBurst bound how many tool calls one
// (project, agent) pair may make, per SPEC_FULL.md §4.7: a runaway agent
// loop gets RateLimited instead of starving the store for everyone else.
const (
	DefaultRateLimit = 20
	DefaultRateBurst = 40
)

// limiterSet hands out one token bucket per caller key, creating it on
// first use.
type limiterSet struct {
	mu     sync.Mutex
	limit  rate.Limit
	burst  int
	byKey  map[string]*rate.Limiter
}

func newLimiterSet(perSecond float64, burst int) *limiterSet {
	if perSecond <= 0 {
		perSecond = DefaultRateLimit
	}
	if burst <= 0 {
		burst = DefaultRateBurst
	}
	return &limiterSet{limit: rate.Limit(perSecond), burst: burst, byKey: make(map[string]*rate.Limiter)}
}

func (s *limiterSet) allow(key string) bool {
	s.mu.Lock()
	l, ok := s.byKey[key]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.byKey[key] = l
	}
	s.mu.Unlock()
	return l.Allow()
}
