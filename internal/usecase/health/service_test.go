package health

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// --- Mocks ---

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockCollection struct {
	exists bool
	err    error
	calls  int
}

func (m *mockCollection) DBExists(_ context.Context) (bool, error) {
	m.calls++
	return m.exists, m.err
}

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		dbErr      error
		collection *mockCollection
		embedding  EmbeddingChecker
		status     Status
		checks     map[string]CheckResult
	}{
		{
			name:       "all healthy",
			collection: &mockCollection{exists: true},
			embedding:  &mockEmbeddingChecker{},
			status:     Healthy,
			checks:     map[string]CheckResult{Database: CheckOK, Collection: CheckOK, Embedding: CheckOK},
		},
		{
			name:       "collection missing stays healthy",
			collection: &mockCollection{},
			status:     Healthy,
			checks:     map[string]CheckResult{Database: CheckOK, Collection: CheckMissing},
		},
		{
			name:       "collection error degrades",
			collection: &mockCollection{err: errors.New("timeout")},
			status:     Degraded,
			checks:     map[string]CheckResult{Database: CheckOK, Collection: CheckError},
		},
		{
			name:      "embedding error degrades",
			embedding: &mockEmbeddingChecker{err: errors.New("timeout")},
			status:    Degraded,
			checks:    map[string]CheckResult{Database: CheckOK, Embedding: CheckError},
		},
		{
			name:       "database down",
			dbErr:      errors.New("conn refused"),
			collection: &mockCollection{exists: true},
			embedding:  &mockEmbeddingChecker{},
			status:     Unhealthy,
			checks:     map[string]CheckResult{Database: CheckError, Collection: CheckSkipped, Embedding: CheckOK},
		},
		{
			name:   "database only",
			status: Healthy,
			checks: map[string]CheckResult{Database: CheckOK},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var coll CollectionChecker
			if tt.collection != nil {
				coll = tt.collection
			}
			r := New(&mockDBPinger{err: tt.dbErr}, coll, tt.embedding).Check(context.Background())

			if r.Status != tt.status {
				t.Errorf("expected %q, got %q", tt.status, r.Status)
			}
			if len(r.Checks) != len(tt.checks) {
				t.Errorf("expected checks %v, got %v", tt.checks, r.Checks)
			}
			for name, want := range tt.checks {
				if r.Checks[name] != want {
					t.Errorf("%s: expected %q, got %q", name, want, r.Checks[name])
				}
			}
		})
	}
}

func TestCheck_SkipsCollectionWhenDatabaseDown(t *testing.T) {
	coll := &mockCollection{exists: true}
	New(&mockDBPinger{err: errors.New("down")}, coll, nil).Check(context.Background())
	if coll.calls != 0 {
		t.Errorf("expected no collection check, got %d calls", coll.calls)
	}
}

type slowPinger struct{}

func (slowPinger) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestCheck_Timeout(t *testing.T) {
	svc := New(slowPinger{}, nil, nil)
	svc.timeout = 10 * time.Millisecond

	r := svc.Check(context.Background())
	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
}

func TestReport_JSON(t *testing.T) {
	data, err := json.Marshal(Report{Status: Healthy, Checks: map[string]CheckResult{Database: CheckOK}})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"status":"ok","checks":{"database":"ok"}}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}
