// Package usage models embedding token usage reports.
package usage

import (
	"fmt"
	"time"
)

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
	PeriodTotal Period = "total"
)

// ParsePeriod parses a period name. Empty means total.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return PeriodTotal, nil
	case PeriodDay, PeriodMonth, PeriodTotal:
		return p, nil
	default:
		return "", fmt.Errorf("unknown usage period %q (want day, month or total)", s)
	}
}

// Bounds returns the UTC period containing now. Total has no bounds.
func (p Period) Bounds(now time.Time) (start, end time.Time) {
	now = now.UTC()
	switch p {
	case PeriodDay:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1)
	case PeriodMonth:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	default:
		return time.Time{}, time.Time{}
	}
}

// Report is an embedding usage report for a time period.
type Report struct {
	period      Period
	periodStart int64
	periodEnd   int64
	requests    int64
	tokens      int64
}

// NewReport creates a usage report. start and end are unix millis, 0 for total.
func NewReport(period Period, start, end, requests, tokens int64) Report {
	return Report{
		period:      period,
		periodStart: start,
		periodEnd:   end,
		requests:    requests,
		tokens:      tokens,
	}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the period start timestamp (unix millis).
func (r *Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end timestamp (unix millis).
func (r *Report) PeriodEnd() int64 { return r.periodEnd }

// Requests returns the number of requests that called the embedder.
func (r *Report) Requests() int64 { return r.requests }

// Tokens returns the embedding tokens consumed.
func (r *Report) Tokens() int64 { return r.tokens }
