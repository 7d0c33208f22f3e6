package db

import (
	"strconv"
	"strings"
)

// IndexBuilder assembles a collection's FT index definition.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts a HASH index definition.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name, StorageType: StorageHash}}
}

// Prefix restricts the index to keys under the given prefixes.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// NoStopWords disables the server's stop word list.
func (b *IndexBuilder) NoStopWords() *IndexBuilder {
	b.def.NoStopWords = true
	return b
}

// Tag adds a single-valued, case-sensitive TAG field.
func (b *IndexBuilder) Tag(name string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldTag, CaseSensitive: true})
}

// TagList adds a case-sensitive TAG field whose values are joined by sep.
func (b *IndexBuilder) TagList(name, sep string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldTag, Separator: sep, CaseSensitive: true})
}

// Text adds a full-text field.
func (b *IndexBuilder) Text(name string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldText})
}

// Vector adds the FLOAT32 cosine embedding field. A nil hnsw builds a FLAT
// index.
func (b *IndexBuilder) Vector(name string, dim int, hnsw *HNSWParams) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldVector, Dim: dim, HNSW: hnsw})
}

func (b *IndexBuilder) add(f IndexField) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, f)
	return b
}

// Build validates and returns the definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	def := b.def
	def.Fields = append([]IndexField(nil), b.def.Fields...)
	return &def, nil
}

// String renders a compact FT.CREATE-like summary for logs.
func (idx *IndexDefinition) String() string {
	var sb strings.Builder
	sb.WriteString("FT.CREATE ")
	sb.WriteString(idx.Name)
	if idx.StorageType != "" {
		sb.WriteString(" ON " + string(idx.StorageType))
	}
	if len(idx.Prefixes) > 0 {
		sb.WriteString(" PREFIX " + strings.Join(idx.Prefixes, " "))
	}
	if idx.NoStopWords {
		sb.WriteString(" STOPWORDS 0")
	}
	sb.WriteString(" SCHEMA")
	for i := range idx.Fields {
		f := &idx.Fields[i]
		sb.WriteString(" " + f.Name)
		switch f.Type {
		case IndexFieldTag:
			sb.WriteString(" TAG")
		case IndexFieldText:
			sb.WriteString(" TEXT")
		case IndexFieldVector:
			sb.WriteString(" VECTOR " + string(f.Algorithm()) + " DIM " + strconv.Itoa(f.Dim))
		}
	}
	return sb.String()
}
