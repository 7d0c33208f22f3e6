package postgres

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/kbase/internal/domain/search/filter"
)

// compileFilters renders filters as a SQL condition over meta_data. Scalar
// values match an equal stored value or membership in a stored array; array
// values match an equal stored array or a stored scalar they contain.
// Placeholders start at $next. An empty filter compiles to "TRUE".
func compileFilters(filters filter.Filters, next int) (string, []any, error) {
	if filters.IsEmpty() {
		return "TRUE", nil, nil
	}

	clauses := make([]string, 0, len(filters))
	args := make([]any, 0, 2*len(filters))
	for _, key := range filters.Keys() {
		v := filters[key]
		if arr, ok := v.([]any); ok {
			b, err := json.Marshal(arr)
			if err != nil {
				return "", nil, fmt.Errorf("encode filter %q: %w", key, err)
			}
			clauses = append(clauses, fmt.Sprintf(
				"(t.meta_data -> $%[1]d = $%[2]d::jsonb OR $%[2]d::jsonb @> jsonb_build_array(t.meta_data -> $%[1]d))",
				next, next+1))
			args = append(args, key, string(b))
			next += 2
			continue
		}

		exact, err := json.Marshal(map[string]any{key: v})
		if err != nil {
			return "", nil, fmt.Errorf("encode filter %q: %w", key, err)
		}
		member, err := json.Marshal(map[string]any{key: []any{v}})
		if err != nil {
			return "", nil, fmt.Errorf("encode filter %q: %w", key, err)
		}
		clauses = append(clauses, fmt.Sprintf(
			"(t.meta_data @> $%d::jsonb OR t.meta_data @> $%d::jsonb)", next, next+1))
		args = append(args, string(exact), string(member))
		next += 2
	}
	return strings.Join(clauses, " AND "), args, nil
}
