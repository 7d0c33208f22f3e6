package redis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/rueidis"

	store "github.com/kailas-cloud/kbase/internal/db"
	"github.com/kailas-cloud/kbase/internal/domain"
	"github.com/kailas-cloud/kbase/internal/domain/document"
	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
)

// Hash field names.
const (
	fieldIdentity    = "identity"
	fieldID          = "doc_id"
	fieldName        = "name"
	fieldContent     = "content"
	fieldContentHash = "content_hash"
	fieldMeta        = "meta_data"
	fieldUsage       = "usage"
	fieldVector      = "vector"

	filterFieldPrefix = "f_"
	tagSeparator      = "|"
)

// returnFields are read back on search; the vector stays server-side.
var returnFields = []string{fieldID, fieldName, fieldContent, fieldMeta, fieldUsage}

func filterField(key string) string { return filterFieldPrefix + key }

// encode renders a stored document as hash fields.
func (db *DB) encode(doc document.Document, identity string, vector []float32) (map[string]string, error) {
	meta, err := doc.MetaDataJSON()
	if err != nil {
		return nil, domain.OperationFailed("encode meta_data", err)
	}
	fields := map[string]string{
		fieldIdentity:    identity,
		fieldContent:     doc.Content(),
		fieldContentHash: doc.ContentHash(),
		fieldMeta:        meta,
	}
	if id, ok := doc.ID(); ok {
		fields[fieldID] = id
	}
	if name, ok := doc.Name(); ok {
		fields[fieldName] = name
	}
	if u, ok := doc.Usage(); ok {
		b, err := json.Marshal(u)
		if err != nil {
			return nil, domain.OperationFailed("encode usage", err)
		}
		fields[fieldUsage] = string(b)
	}
	if nonZero(vector) {
		fields[fieldVector] = rueidis.VectorString32(vector)
	}
	for key := range db.filterFields {
		v, ok := doc.MetaValue(key)
		if !ok {
			continue
		}
		if tags, ok := tagValues(v); ok {
			fields[filterField(key)] = strings.Join(tags, tagSeparator)
		}
	}
	return fields, nil
}

// decode rebuilds a document from returned hash fields.
func decode(fields map[string]string, score float64) (document.Document, error) {
	var opts []document.Option
	if id, ok := fields[fieldID]; ok {
		opts = append(opts, document.WithID(id))
	}
	if name, ok := fields[fieldName]; ok {
		opts = append(opts, document.WithName(name))
	}
	opts = append(opts, document.WithRerankingScore(score))
	doc := document.New(fields[fieldContent], opts...)

	if meta, ok := fields[fieldMeta]; ok {
		if err := doc.SetMetaDataFromJSON(meta); err != nil {
			return document.Document{}, domain.OperationFailed("decode meta_data", err)
		}
	}
	if usage, ok := fields[fieldUsage]; ok {
		u, err := document.ParseObject([]byte(usage))
		if err != nil {
			return document.Document{}, domain.OperationFailed("decode usage", err)
		}
		doc.SetUsage(u)
	}
	return doc, nil
}

// tagValues renders a metadata value as tags: one for a scalar, one per
// scalar element for an array. Objects are not indexable.
func tagValues(v any) ([]string, bool) {
	if arr, ok := v.([]any); ok {
		tags := make([]string, 0, len(arr))
		for _, e := range arr {
			s, ok := filter.Scalar(e)
			if !ok {
				return nil, false
			}
			tags = append(tags, s)
		}
		return tags, len(tags) > 0
	}
	s, ok := filter.Scalar(v)
	if !ok {
		return nil, false
	}
	return []string{s}, true
}

// compileFilters renders filters as TAG clauses. Every key must be declared.
func (db *DB) compileFilters(filters filter.Filters) (string, error) {
	if filters.IsEmpty() {
		return "", nil
	}
	clauses := make([]string, 0, len(filters))
	for _, key := range filters.Keys() {
		if _, ok := db.filterFields[key]; !ok {
			return "", domain.OperationFailed(fmt.Sprintf("filter key %q is not an indexed field", key), nil)
		}
		tags, ok := tagValues(filters[key])
		if !ok {
			return "", domain.OperationFailed(fmt.Sprintf("filter key %q has a non-scalar value", key), nil)
		}
		clauses = append(clauses, store.TagFilter(filterField(key), tags...))
	}
	return strings.Join(clauses, " "), nil
}

func nonZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return true
		}
	}
	return false
}
