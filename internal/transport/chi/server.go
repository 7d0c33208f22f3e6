// Package chi serves the vector store, knowledge and memory use cases over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/document"
	domkb "github.com/kailas-cloud/kbase/internal/domain/knowledge"
	dommem "github.com/kailas-cloud/kbase/internal/domain/memory"
	"github.com/kailas-cloud/kbase/internal/domain/search/mode"
	"github.com/kailas-cloud/kbase/internal/domain/search/request"
	domusage "github.com/kailas-cloud/kbase/internal/domain/usage"
	logpkg "github.com/kailas-cloud/kbase/internal/logger"
	"github.com/kailas-cloud/kbase/internal/metrics"
	healthuc "github.com/kailas-cloud/kbase/internal/usecase/health"
	knowledgeuc "github.com/kailas-cloud/kbase/internal/usecase/knowledge"
	memoryuc "github.com/kailas-cloud/kbase/internal/usecase/memory"
	usageuc "github.com/kailas-cloud/kbase/internal/usecase/usage"
	"github.com/kailas-cloud/kbase/internal/vectordb"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 10 << 20

// Server holds the HTTP handlers.
type Server struct {
	db        vectordb.VectorDB
	knowledge *knowledgeuc.Service
	memories  *memoryuc.Service
	health    *healthuc.Service
	usage     *usageuc.Service
	logger    *zap.Logger
	maxBody   int64
}

// NewServer creates an HTTP API server.
func NewServer(
	db vectordb.VectorDB,
	knowledge *knowledgeuc.Service,
	memories *memoryuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		db:        db,
		knowledge: knowledge,
		memories:  memories,
		health:    health,
		logger:    logger,
		maxBody:   DefaultMaxBodyBytes,
	}
}

// WithMaxBodyBytes sets the request body limit. Non-positive keeps the default.
func (s *Server) WithMaxBodyBytes(n int64) *Server {
	if n > 0 {
		s.maxBody = n
	}
	return s
}

// WithUsage enables embedding usage accounting and GET /usage.
func (s *Server) WithUsage(u *usageuc.Service) *Server {
	s.usage = u
	return s
}

// Router builds the chi router with the middleware chain and every route.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(jsonRecoverer(s.logger))
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/collection", func(r chi.Router) {
		r.Post("/", s.CreateCollection)
		r.Get("/", s.GetCollection)
		r.Delete("/", s.DeleteCollection)
		r.Post("/optimize", s.OptimizeCollection)
	})

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", s.InsertDocuments)
		r.Post("/exists", s.DocumentExists)
		r.Get("/exists", s.LookupDocument)
	})

	r.Post("/search", s.Search)
	r.Post("/knowledge/load", s.LoadKnowledge)

	r.Route("/memories", func(r chi.Router) {
		r.Post("/", s.AddMemory)
		r.Get("/", s.RetrieveMemories)
	})

	if s.usage != nil {
		r.Get("/usage", s.GetUsage)
	}

	return r
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// CreateCollection handles POST /collection.
func (s *Server) CreateCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Create(r.Context()); err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CollectionResponse{Exists: true})
}

// GetCollection handles GET /collection.
func (s *Server) GetCollection(w http.ResponseWriter, r *http.Request) {
	exists, err := s.db.DBExists(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionResponse{Exists: exists})
}

// DeleteCollection handles DELETE /collection. ?drop=true runs DropDB
// instead of Delete.
func (s *Server) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	drop, err := queryParam[bool](r, "drop")
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	if deref(drop) {
		if err := s.db.DropDB(r.Context()); err != nil {
			s.handleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	existed, err := s.db.Delete(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Existed: existed})
}

// OptimizeCollection handles POST /collection/optimize.
func (s *Server) OptimizeCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Optimize(r.Context()); err != nil {
		s.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InsertDocuments handles POST /documents. ?upsert=true upserts instead.
func (s *Server) InsertDocuments(w http.ResponseWriter, r *http.Request) {
	upsertParam, err := queryParam[bool](r, "upsert")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	upsert := deref(upsertParam)
	var req InsertRequest
	if err := s.decode(w, r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	if len(req.Documents) == 0 {
		s.handleError(w, r, fmt.Errorf("%w: documents are required", domain.ErrInvalidRequest))
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	write := s.db.Insert
	if upsert {
		write = s.db.Upsert
	}
	if err := write(ctx, req.Documents, req.Filters); err != nil {
		s.handleError(w, r, err)
		return
	}

	s.recordUsage(w, usage)
	writeJSON(w, http.StatusCreated, InsertResponse{Count: len(req.Documents), Upserted: upsert})
}

// DocumentExists handles POST /documents/exists with a document body.
func (s *Server) DocumentExists(w http.ResponseWriter, r *http.Request) {
	var doc document.Document
	if err := s.decode(w, r, &doc); err != nil {
		s.handleError(w, r, err)
		return
	}
	exists, err := s.db.DocExists(r.Context(), doc)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ExistsResponse{Exists: exists})
}

// LookupDocument handles GET /documents/exists?id= or ?name=. Exactly one
// of the two must be given.
func (s *Server) LookupDocument(w http.ResponseWriter, r *http.Request) {
	idParam, err := queryParam[string](r, "id")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	nameParam, err := queryParam[string](r, "name")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	id, name := deref(idParam), deref(nameParam)

	var exists bool
	switch {
	case id != "" && name == "":
		exists, err = s.db.IDExists(r.Context(), id)
	case name != "" && id == "":
		exists, err = s.db.NameExists(r.Context(), name)
	default:
		err = fmt.Errorf("%w: exactly one of id and name is required", domain.ErrInvalidRequest)
	}
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ExistsResponse{Exists: exists})
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if err := s.decode(w, r, &body); err != nil {
		s.handleError(w, r, err)
		return
	}
	m, err := mode.Parse(body.Mode)
	if err != nil {
		s.handleError(w, r, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err))
		return
	}
	req, err := request.New(body.Query, m, body.Filters, body.Limit, body.MinScore)
	if err != nil {
		s.handleError(w, r, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err))
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.knowledge.Search(ctx, req)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.recordUsage(w, usage)
	writeJSON(w, http.StatusOK, SearchResponse{
		Mode:        res.Mode().String(),
		TotalTokens: res.TotalTokens(),
		Documents:   res.Documents(),
	})
}

// LoadKnowledge handles POST /knowledge/load.
func (s *Server) LoadKnowledge(w http.ResponseWriter, r *http.Request) {
	var body LoadRequest
	if err := s.decode(w, r, &body); err != nil {
		s.handleError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	report, err := s.knowledge.Load(ctx, domkb.New(body.Documents), knowledgeuc.LoadOptions{
		Recreate:     body.Recreate,
		Upsert:       body.Upsert,
		SkipExisting: body.SkipExisting,
		Filters:      body.Filters,
		BatchSize:    body.BatchSize,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.recordUsage(w, usage)
	writeJSON(w, http.StatusOK, report)
}

// AddMemory handles POST /memories.
func (s *Server) AddMemory(w http.ResponseWriter, r *http.Request) {
	var m dommem.Memory
	if err := s.decode(w, r, &m); err != nil {
		s.handleError(w, r, err)
		return
	}
	ctx, usage := domain.NewContextWithUsage(r.Context())
	stored, err := s.memories.Add(ctx, m)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.recordUsage(w, usage)
	writeJSON(w, http.StatusCreated, stored)
}

// RetrieveMemories handles GET /memories?retrieval=&n=&query=.
func (s *Server) RetrieveMemories(w http.ResponseWriter, r *http.Request) {
	retrievalParam, err := queryParam[string](r, "retrieval")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	n, err := queryParam[int](r, "n")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	query, err := queryParam[string](r, "query")
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	retrieval := dommem.LastN
	if retrievalParam != nil {
		if retrieval, err = dommem.Parse(*retrievalParam); err != nil {
			s.handleError(w, r, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err))
			return
		}
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	memories, err := s.memories.Retrieve(ctx, retrieval, deref(n), deref(query))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.recordUsage(w, usage)
	writeJSON(w, http.StatusOK, MemoriesResponse{Retrieval: retrieval, Memories: memories})
}

// GetUsage handles GET /usage?period=day|month|total.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	periodParam, err := queryParam[string](r, "period")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	period, err := domusage.ParsePeriod(deref(periodParam))
	if err != nil {
		s.handleError(w, r, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err))
		return
	}

	report := s.usage.GetReport(period)
	writeJSON(w, http.StatusOK, UsageResponse{
		Period:      string(report.Period()),
		PeriodStart: report.PeriodStart(),
		PeriodEnd:   report.PeriodEnd(),
		Requests:    report.Requests(),
		Tokens:      report.Tokens(),
	})
}

// decode reads a JSON body under the size limit. Syntax errors are
// reported as domain.ErrInvalidJSON.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe), errors.Is(err, domain.ErrInvalidJSON), errors.Is(err, domain.ErrInvalidRequest):
			return err
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty request body", domain.ErrInvalidJSON)
		default:
			return fmt.Errorf("%w: %w", domain.ErrInvalidJSON, err)
		}
	}
	return nil
}

// queryParam binds an optional form-style query parameter. Absent
// parameters yield nil.
func queryParam[T any](r *http.Request, name string) (*T, error) {
	var v *T
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &v); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	return v, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return logpkg.FromContext(r.Context())
}

// recordUsage reports the tokens a request spent in X-Embedding-Tokens
// and adds them to the usage counters.
func (s *Server) recordUsage(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage == nil || !usage.Used {
		return
	}
	w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	if s.usage != nil {
		s.usage.Record(usage.TotalTokens)
	}
}
