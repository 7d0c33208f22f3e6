package usage

import (
	"sync"
	"testing"
	"time"

	domusage "github.com/kailas-cloud/kbase/internal/domain/usage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func TestGetReport_Empty(t *testing.T) {
	svc := New(nil)
	for _, p := range []domusage.Period{domusage.PeriodDay, domusage.PeriodMonth, domusage.PeriodTotal} {
		r := svc.GetReport(p)
		if r.Period() != p {
			t.Errorf("Period() = %q, want %q", r.Period(), p)
		}
		if r.Requests() != 0 || r.Tokens() != 0 {
			t.Errorf("%s: requests/tokens = %d/%d, want 0/0", p, r.Requests(), r.Tokens())
		}
	}
}

func TestRecord_Accumulates(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)}
	svc := New(clock.Now)

	svc.Record(10)
	svc.Record(0) // cache hit: counted as a request
	svc.Record(5)

	day := svc.GetReport(domusage.PeriodDay)
	if day.Requests() != 3 || day.Tokens() != 15 {
		t.Errorf("day = %d/%d, want 3/15", day.Requests(), day.Tokens())
	}
	wantStart := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC).UnixMilli()
	if day.PeriodStart() != wantStart {
		t.Errorf("PeriodStart() = %d, want %d", day.PeriodStart(), wantStart)
	}
	if day.PeriodEnd() != wantStart+24*time.Hour.Milliseconds() {
		t.Errorf("PeriodEnd() = %d", day.PeriodEnd())
	}

	total := svc.GetReport(domusage.PeriodTotal)
	if total.PeriodStart() != 0 || total.PeriodEnd() != 0 {
		t.Errorf("total bounds = %d..%d, want 0..0", total.PeriodStart(), total.PeriodEnd())
	}
}

func TestRecord_RollsOver(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, time.March, 31, 23, 0, 0, 0, time.UTC)}
	svc := New(clock.Now)
	svc.Record(7)

	clock.Set(time.Date(2024, time.April, 1, 1, 0, 0, 0, time.UTC))
	svc.Record(3)

	tests := []struct {
		period   domusage.Period
		requests int64
		tokens   int64
	}{
		{domusage.PeriodDay, 1, 3},
		{domusage.PeriodMonth, 1, 3},
		{domusage.PeriodTotal, 2, 10},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			r := svc.GetReport(tt.period)
			if r.Requests() != tt.requests || r.Tokens() != tt.tokens {
				t.Errorf("got %d/%d, want %d/%d", r.Requests(), r.Tokens(), tt.requests, tt.tokens)
			}
		})
	}
}

func TestGetReport_RollsWithoutRecords(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC)}
	svc := New(clock.Now)
	svc.Record(4)

	clock.Set(clock.Now().Add(48 * time.Hour))
	if r := svc.GetReport(domusage.PeriodDay); r.Tokens() != 0 {
		t.Errorf("day tokens after two days = %d, want 0", r.Tokens())
	}
	if r := svc.GetReport(domusage.PeriodMonth); r.Tokens() != 4 {
		t.Errorf("month tokens = %d, want 4", r.Tokens())
	}
}

func TestGetReport_UnknownPeriodIsTotal(t *testing.T) {
	svc := New(nil)
	svc.Record(1)
	r := svc.GetReport(domusage.Period("week"))
	if r.Period() != domusage.PeriodTotal || r.Tokens() != 1 {
		t.Errorf("report = %q/%d, want total/1", r.Period(), r.Tokens())
	}
}

func TestRecord_Concurrent(t *testing.T) {
	svc := New(nil)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Record(2)
		}()
	}
	wg.Wait()

	if r := svc.GetReport(domusage.PeriodTotal); r.Requests() != 50 || r.Tokens() != 100 {
		t.Errorf("total = %d/%d, want 50/100", r.Requests(), r.Tokens())
	}
}
