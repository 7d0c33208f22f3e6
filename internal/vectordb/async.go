package vectordb

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
)

// Future is the deferred result of an asynchronous operation.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go runs fn in its own goroutine. A panic inside fn is reported as
// OperationFailed instead of crashing the process.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = domain.OperationFailed(fmt.Sprintf("panic: %v", r), nil)
			}
		}()
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Done is closed when the operation has finished.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await blocks until the operation finishes or ctx ends. A context error
// means the caller stopped waiting; the operation itself still leaves the
// backend in either its pre-call or post-call state.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	default:
	}
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AsyncDB exposes every VectorDB operation in asynchronous form. Each method
// delegates to the synchronous implementation, so results, ordering and
// error classification are identical in both forms.
type AsyncDB struct {
	db VectorDB
}

// Async wraps db.
func Async(db VectorDB) *AsyncDB { return &AsyncDB{db: db} }

// Sync returns the wrapped synchronous store.
func (a *AsyncDB) Sync() VectorDB { return a.db }

func exec(ctx context.Context, fn func(context.Context) error) *Future[struct{}] {
	return Go(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}

// Create provisions the collection.
func (a *AsyncDB) Create(ctx context.Context) *Future[struct{}] {
	return exec(ctx, a.db.Create)
}

// DocExists checks for a stored document with the same identity.
func (a *AsyncDB) DocExists(ctx context.Context, doc document.Document) *Future[bool] {
	return Go(ctx, func(ctx context.Context) (bool, error) { return a.db.DocExists(ctx, doc) })
}

// NameExists checks for a stored document with the given name.
func (a *AsyncDB) NameExists(ctx context.Context, name string) *Future[bool] {
	return Go(ctx, func(ctx context.Context) (bool, error) { return a.db.NameExists(ctx, name) })
}

// IDExists checks for a stored document with the given id.
func (a *AsyncDB) IDExists(ctx context.Context, id string) *Future[bool] {
	return Go(ctx, func(ctx context.Context) (bool, error) { return a.db.IDExists(ctx, id) })
}

// Insert adds new documents.
func (a *AsyncDB) Insert(ctx context.Context, docs []document.Document, filters filter.Filters) *Future[struct{}] {
	return exec(ctx, func(ctx context.Context) error { return a.db.Insert(ctx, docs, filters) })
}

// UpsertAvailable is a pure capability query and stays synchronous.
func (a *AsyncDB) UpsertAvailable() bool { return a.db.UpsertAvailable() }

// Upsert inserts or replaces documents.
func (a *AsyncDB) Upsert(ctx context.Context, docs []document.Document, filters filter.Filters) *Future[struct{}] {
	return exec(ctx, func(ctx context.Context) error { return a.db.Upsert(ctx, docs, filters) })
}

// Search runs the default search mode.
func (a *AsyncDB) Search(
	ctx context.Context, query string, limit int, filters filter.Filters,
) *Future[[]document.Document] {
	return a.search(ctx, a.db.Search, query, limit, filters)
}

// VectorSearch ranks by embedding similarity.
func (a *AsyncDB) VectorSearch(
	ctx context.Context, query string, limit int, filters filter.Filters,
) *Future[[]document.Document] {
	return a.search(ctx, a.db.VectorSearch, query, limit, filters)
}

// KeywordSearch ranks by term relevance.
func (a *AsyncDB) KeywordSearch(
	ctx context.Context, query string, limit int, filters filter.Filters,
) *Future[[]document.Document] {
	return a.search(ctx, a.db.KeywordSearch, query, limit, filters)
}

// HybridSearch fuses vector and keyword rankings.
func (a *AsyncDB) HybridSearch(
	ctx context.Context, query string, limit int, filters filter.Filters,
) *Future[[]document.Document] {
	return a.search(ctx, a.db.HybridSearch, query, limit, filters)
}

// DBExists reports whether the collection exists.
func (a *AsyncDB) DBExists(ctx context.Context) *Future[bool] {
	return Go(ctx, a.db.DBExists)
}

// Optimize runs backend maintenance.
func (a *AsyncDB) Optimize(ctx context.Context) *Future[struct{}] {
	return exec(ctx, a.db.Optimize)
}

// DropDB destroys the collection.
func (a *AsyncDB) DropDB(ctx context.Context) *Future[struct{}] {
	return exec(ctx, a.db.DropDB)
}

// Delete removes the underlying resource.
func (a *AsyncDB) Delete(ctx context.Context) *Future[bool] {
	return Go(ctx, a.db.Delete)
}

type searchFunc func(ctx context.Context, query string, limit int, filters filter.Filters) ([]document.Document, error)

func (a *AsyncDB) search(
	ctx context.Context, fn searchFunc, query string, limit int, filters filter.Filters,
) *Future[[]document.Document] {
	return Go(ctx, func(ctx context.Context) ([]document.Document, error) {
		return fn(ctx, query, limit, filters)
	})
}
