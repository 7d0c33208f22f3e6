package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy means the database is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckMissing means the collection has not been created yet.
	CheckMissing CheckResult = "missing"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckSkipped means the check depends on a failed one.
	CheckSkipped CheckResult = "skipped"
)

// Check names.
const (
	Database   = "database"
	Collection = "collection"
	Embedding  = "embedding"
)

// DefaultTimeout bounds each component check.
const DefaultTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	db         DBPinger
	collection CollectionChecker
	embedding  EmbeddingChecker
	timeout    time.Duration
}

// New creates a Service. collection and embedding can be nil.
func New(db DBPinger, collection CollectionChecker, embedding EmbeddingChecker) *Service {
	return &Service{db: db, collection: collection, embedding: embedding, timeout: DefaultTimeout}
}

// Check runs health checks against all components. A missing collection
// is reported but does not degrade the status.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	dbOK := s.run(ctx, s.db.Ping) == nil
	checks[Database] = result(dbOK)

	if s.collection != nil {
		switch {
		case !dbOK:
			checks[Collection] = CheckSkipped
		default:
			var exists bool
			err := s.run(ctx, func(ctx context.Context) error {
				var err error
				exists, err = s.collection.DBExists(ctx)
				return err
			})
			switch {
			case err != nil:
				checks[Collection] = CheckError
			case !exists:
				checks[Collection] = CheckMissing
			default:
				checks[Collection] = CheckOK
			}
		}
	}

	if s.embedding != nil {
		checks[Embedding] = result(s.run(ctx, s.embedding.HealthCheck) == nil)
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if !dbOK {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) run(ctx context.Context, check func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return check(ctx)
}

func result(ok bool) CheckResult {
	if ok {
		return CheckOK
	}
	return CheckError
}
