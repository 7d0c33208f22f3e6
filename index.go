package kbase

import (
	"context"
	"fmt"
)

// Index is a generic, schema-first view of a Client's collection.
// The schema is inferred from T's kbase struct tags at construction time.
type Index[T any] struct {
	client *Client
	meta   *schemaMeta
}

// NewIndex creates a typed index over the client's collection.
// T must be a struct (or pointer to one) with a content field.
func NewIndex[T any](client *Client) (*Index[T], error) {
	meta, err := parseSchema[T]()
	if err != nil {
		return nil, fmt.Errorf("new index: %w", err)
	}
	return &Index[T]{client: client, meta: meta}, nil
}

// Ensure creates the collection if it does not exist (idempotent).
func (idx *Index[T]) Ensure(ctx context.Context) error {
	if err := idx.client.Create(ctx); err != nil {
		return fmt.Errorf("ensure: %w", err)
	}
	return nil
}

// Insert adds new items. Nothing is written if any item already exists.
func (idx *Index[T]) Insert(ctx context.Context, items ...T) error {
	docs, err := idx.documents(items)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	if err := idx.client.Insert(ctx, docs, nil); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

// Upsert inserts or replaces items by identity. Backends without upsert
// return ErrNotImplemented.
func (idx *Index[T]) Upsert(ctx context.Context, items ...T) error {
	docs, err := idx.documents(items)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	if err := idx.client.Upsert(ctx, docs, nil); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// Exists reports whether an item with the same identity is stored.
func (idx *Index[T]) Exists(ctx context.Context, item T) (bool, error) {
	doc, err := idx.meta.toDocument(item)
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return idx.client.DocExists(ctx, doc)
}

// Document converts an item to the Document stored for it.
func (idx *Index[T]) Document(item T) (Document, error) {
	return idx.meta.toDocument(item)
}

// Search returns a fluent search builder for this index.
func (idx *Index[T]) Search() *SearchBuilder[T] {
	return &SearchBuilder[T]{idx: idx}
}

func (idx *Index[T]) documents(items []T) ([]Document, error) {
	docs := make([]Document, len(items))
	for i, item := range items {
		var err error
		docs[i], err = idx.meta.toDocument(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return docs, nil
}

func (idx *Index[T]) item(doc Document) (T, bool) {
	item, ok := idx.meta.fromDocument(doc).(T)
	return item, ok
}
