// Package memory remembers facts and recalls them by position or meaning.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/document"
	domkb "github.com/kailas-cloud/kbase/internal/domain/knowledge"
	dommem "github.com/kailas-cloud/kbase/internal/domain/memory"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
)

// DefaultN is the number of memories recalled when n is not positive.
const DefaultN = 5

// Service stores memories in arrival order and in the vector store.
// The ordered log lives in process; semantic recall goes to the store.
type Service struct {
	store  Store
	logger *zap.Logger

	mu  sync.RWMutex
	log *domkb.KnowledgeBase
}

// New creates a memory service.
func New(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger, log: domkb.New(nil)}
}

func kindFilter() filter.Filters {
	return filter.Filters{dommem.MetaKind: dommem.KindMemory}
}

// Add remembers m. A memory without an id gets a random one.
func (s *Service) Add(ctx context.Context, m dommem.Memory) (dommem.Memory, error) {
	if m.Memory == "" {
		return dommem.Memory{}, fmt.Errorf("%w: memory is required", domain.ErrInvalidRequest)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	doc := m.ToDocument()

	if err := s.store.Create(ctx); err != nil {
		return dommem.Memory{}, fmt.Errorf("create memory collection: %w", err)
	}
	if err := s.store.Insert(ctx, []document.Document{doc}, kindFilter()); err != nil {
		return dommem.Memory{}, fmt.Errorf("store memory: %w", err)
	}

	s.mu.Lock()
	s.log.AddDocument(doc)
	s.mu.Unlock()

	s.logger.Debug("Memory added", zap.String("id", m.ID), zap.String("topic", m.Topic))
	return m, nil
}

// Len returns the number of memories added through this service.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.Len()
}

// Retrieve recalls up to n memories. last_n and first_n read the ordered log
// oldest first; semantic ranks stored memories against query.
func (s *Service) Retrieve(
	ctx context.Context, r dommem.Retrieval, n int, query string,
) ([]dommem.Memory, error) {
	if n <= 0 {
		n = DefaultN
	}

	switch r {
	case dommem.LastN:
		s.mu.RLock()
		defer s.mu.RUnlock()
		total := s.log.Len()
		return s.slice(max(total-n, 0), total), nil

	case dommem.FirstN:
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.slice(0, min(n, s.log.Len())), nil

	case dommem.Semantic:
		if query == "" {
			return nil, fmt.Errorf("%w: semantic retrieval needs a query", domain.ErrInvalidRequest)
		}
		docs, err := s.store.Search(ctx, query, n, kindFilter())
		if err != nil {
			return nil, fmt.Errorf("search memories: %w", err)
		}
		out := make([]dommem.Memory, len(docs))
		for i, doc := range docs {
			out[i] = dommem.FromDocument(doc)
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: invalid memory retrieval %q", domain.ErrInvalidRequest, r)
}

// slice must be called under the read lock.
func (s *Service) slice(from, to int) []dommem.Memory {
	out := make([]dommem.Memory, 0, to-from)
	for i := from; i < to; i++ {
		doc, _ := s.log.At(i)
		out = append(out, dommem.FromDocument(doc))
	}
	return out
}
