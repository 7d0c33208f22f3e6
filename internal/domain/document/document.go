package document

// Document is one retrievable unit of content plus metadata (value object).
// The zero value is a document with empty content and no metadata.
type Document struct {
	content        string
	id             *string
	name           *string
	metaData       map[string]any
	usage          map[string]any // nil means absent
	rerankingScore *float64
}

// Option sets an optional field at construction time.
type Option func(*Document)

// WithID sets the document identifier.
func WithID(id string) Option {
	return func(d *Document) { d.id = &id }
}

// WithName sets the human-readable title.
func WithName(name string) Option {
	return func(d *Document) { d.name = &name }
}

// WithRerankingScore sets the relevance score.
func WithRerankingScore(score float64) Option {
	return func(d *Document) { d.rerankingScore = &score }
}

// New creates a Document with empty metadata and no usage.
func New(content string, opts ...Option) Document {
	d := Document{content: content, metaData: map[string]any{}}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// Content returns the textual payload.
func (d Document) Content() string { return d.content }

// ID returns the identifier and whether it is set.
func (d Document) ID() (string, bool) { return deref(d.id) }

// Name returns the title and whether it is set.
func (d Document) Name() (string, bool) { return deref(d.name) }

// RerankingScore returns the relevance score and whether the document was scored.
func (d Document) RerankingScore() (float64, bool) {
	if d.rerankingScore == nil {
		return 0, false
	}
	return *d.rerankingScore, true
}

// MetaData returns a copy of the metadata map. Never nil.
func (d Document) MetaData() map[string]any {
	if d.metaData == nil {
		return map[string]any{}
	}
	return cloneMap(d.metaData)
}

// MetaValue returns a single metadata value.
func (d Document) MetaValue(key string) (any, bool) {
	v, ok := d.metaData[key]
	return cloneValue(v), ok
}

// Usage returns a copy of the usage map and whether usage is set.
func (d Document) Usage() (map[string]any, bool) {
	if d.usage == nil {
		return nil, false
	}
	return cloneMap(d.usage), true
}

// SetContent replaces the textual payload.
func (d *Document) SetContent(content string) { d.content = content }

// SetID sets the identifier.
func (d *Document) SetID(id string) { d.id = &id }

// ClearID removes the identifier.
func (d *Document) ClearID() { d.id = nil }

// SetName sets the title.
func (d *Document) SetName(name string) { d.name = &name }

// ClearName removes the title.
func (d *Document) ClearName() { d.name = nil }

// SetRerankingScore records a relevance score.
func (d *Document) SetRerankingScore(score float64) { d.rerankingScore = &score }

// ClearRerankingScore removes the relevance score.
func (d *Document) ClearRerankingScore() { d.rerankingScore = nil }

// SetMetaData replaces the metadata with a copy of meta. nil clears it.
func (d *Document) SetMetaData(meta map[string]any) {
	if meta == nil {
		d.metaData = map[string]any{}
		return
	}
	d.metaData = cloneMap(meta)
}

// SetMetaValue sets a single metadata key.
func (d *Document) SetMetaValue(key string, value any) {
	if d.metaData == nil {
		d.metaData = map[string]any{}
	}
	d.metaData[key] = cloneValue(value)
}

// SetUsage replaces the usage map with a copy. nil marks usage absent.
func (d *Document) SetUsage(usage map[string]any) {
	if usage == nil {
		d.usage = nil
		return
	}
	d.usage = cloneMap(usage)
}

// WithScore returns a copy carrying the given relevance score.
func (d Document) WithScore(score float64) Document {
	c := d.Clone()
	c.rerankingScore = &score
	return c
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	c := Document{content: d.content}
	if d.id != nil {
		id := *d.id
		c.id = &id
	}
	if d.name != nil {
		name := *d.name
		c.name = &name
	}
	if d.rerankingScore != nil {
		s := *d.rerankingScore
		c.rerankingScore = &s
	}
	c.metaData = d.MetaData()
	if d.usage != nil {
		c.usage = cloneMap(d.usage)
	}
	return c
}

// Equal reports field-by-field value equality. JSON values are compared by
// their canonical encoding, so an int 120 equals a float64 120.
func (d Document) Equal(o Document) bool {
	if d.content != o.content {
		return false
	}
	if !ptrEqual(d.id, o.id) || !ptrEqual(d.name, o.name) || !ptrEqual(d.rerankingScore, o.rerankingScore) {
		return false
	}
	if (d.usage == nil) != (o.usage == nil) {
		return false
	}
	if !jsonEqual(d.MetaData(), o.MetaData()) {
		return false
	}
	return d.usage == nil || jsonEqual(d.usage, o.usage)
}

func deref(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	return *p, true
}

func ptrEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
