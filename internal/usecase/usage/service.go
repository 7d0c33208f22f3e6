// Package usage counts embedding tokens spent by API requests and reports
// them per day, month and in total.
package usage

import (
	"sync"
	"time"

	domusage "github.com/kailas-cloud/kbase/internal/domain/usage"
)

// Service handles usage accounting. Counters live in process memory and
// start from zero on restart.
type Service struct {
	mu      sync.Mutex
	now     Clock
	buckets map[domusage.Period]*bucket
}

type bucket struct {
	start    time.Time
	requests int64
	tokens   int64
}

// New creates a Service. A nil clock uses time.Now.
func New(clock Clock) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		now: clock,
		buckets: map[domusage.Period]*bucket{
			domusage.PeriodDay:   {},
			domusage.PeriodMonth: {},
			domusage.PeriodTotal: {},
		},
	}
}

// Record counts one request that consumed tokens embedding tokens.
func (s *Service) Record(tokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for period, b := range s.buckets {
		s.roll(period, b, now)
		b.requests++
		b.tokens += int64(tokens)
	}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(period domusage.Period) domusage.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[period]
	if !ok {
		period = domusage.PeriodTotal
		b = s.buckets[period]
	}
	s.roll(period, b, now)

	start, end := period.Bounds(now)
	return domusage.NewReport(period, millis(start), millis(end), b.requests, b.tokens)
}

// roll resets b when now has left the period it counts.
func (s *Service) roll(period domusage.Period, b *bucket, now time.Time) {
	start, _ := period.Bounds(now)
	if !b.start.Equal(start) {
		*b = bucket{start: start}
	}
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
