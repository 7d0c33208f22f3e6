package vectordb

import (
	"context"

	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
)

// fakeDB is a function-field VectorDB; nil fields return zero values.
type fakeDB struct {
	Unimplemented

	upsert     bool
	createFn   func(ctx context.Context) error
	insertFn   func(ctx context.Context, docs []document.Document, filters filter.Filters) error
	upsertFn   func(ctx context.Context, docs []document.Document, filters filter.Filters) error
	searchFn   func(ctx context.Context, query string, limit int, filters filter.Filters) ([]document.Document, error)
	idExistsFn func(ctx context.Context, id string) (bool, error)

	upsertCalls int
	searchCalls int
}

func (f *fakeDB) Create(ctx context.Context) error {
	if f.createFn != nil {
		return f.createFn(ctx)
	}
	return nil
}

func (f *fakeDB) DocExists(context.Context, document.Document) (bool, error) { return false, nil }

func (f *fakeDB) NameExists(context.Context, string) (bool, error) { return false, nil }

func (f *fakeDB) IDExists(ctx context.Context, id string) (bool, error) {
	if f.idExistsFn != nil {
		return f.idExistsFn(ctx, id)
	}
	return false, nil
}

func (f *fakeDB) Insert(ctx context.Context, docs []document.Document, filters filter.Filters) error {
	if f.insertFn != nil {
		return f.insertFn(ctx, docs, filters)
	}
	return nil
}

func (f *fakeDB) UpsertAvailable() bool { return f.upsert }

func (f *fakeDB) Upsert(ctx context.Context, docs []document.Document, filters filter.Filters) error {
	f.upsertCalls++
	if f.upsertFn != nil {
		return f.upsertFn(ctx, docs, filters)
	}
	return nil
}

func (f *fakeDB) Search(
	ctx context.Context, query string, limit int, filters filter.Filters,
) ([]document.Document, error) {
	f.searchCalls++
	if f.searchFn != nil {
		return f.searchFn(ctx, query, limit, filters)
	}
	return nil, nil
}

func (f *fakeDB) DBExists(context.Context) (bool, error) { return true, nil }

func (f *fakeDB) DropDB(context.Context) error { return nil }

func (f *fakeDB) Delete(context.Context) (bool, error) { return true, nil }
