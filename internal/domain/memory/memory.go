package memory

import (
	"fmt"

	"github.com/kailas-cloud/kbase/internal/domain/document"
)

// Retrieval selects how stored memories are recalled.
type Retrieval string

// Retrieval strategies.
const (
	LastN    Retrieval = "last_n"
	FirstN   Retrieval = "first_n"
	Semantic Retrieval = "semantic"
)

// IsValid checks if r is a known strategy.
func (r Retrieval) IsValid() bool {
	return r == LastN || r == FirstN || r == Semantic
}

// Parse converts a wire name into a Retrieval.
func Parse(s string) (Retrieval, error) {
	r := Retrieval(s)
	if !r.IsValid() {
		return "", fmt.Errorf("invalid memory retrieval: %q", s)
	}
	return r, nil
}

// UnmarshalText rejects unknown strategies when decoding JSON or YAML.
func (r *Retrieval) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Memory is a single remembered fact.
type Memory struct {
	Memory string `json:"memory"`
	ID     string `json:"id,omitempty"`
	Topic  string `json:"topic,omitempty"`
	Input  string `json:"input,omitempty"`
}

// Metadata keys used when a memory is stored as a document.
const (
	MetaKind  = "kind"
	MetaTopic = "topic"
	MetaInput = "input"

	KindMemory = "memory"
)

// ToDocument converts the memory into a storable document.
func (m Memory) ToDocument() document.Document {
	var opts []document.Option
	if m.ID != "" {
		opts = append(opts, document.WithID(m.ID))
	}
	doc := document.New(m.Memory, opts...)
	doc.SetMetaValue(MetaKind, KindMemory)
	if m.Topic != "" {
		doc.SetMetaValue(MetaTopic, m.Topic)
	}
	if m.Input != "" {
		doc.SetMetaValue(MetaInput, m.Input)
	}
	return doc
}

// FromDocument restores a memory from a stored document.
func FromDocument(doc document.Document) Memory {
	m := Memory{Memory: doc.Content()}
	m.ID, _ = doc.ID()
	if v, ok := doc.MetaValue(MetaTopic); ok {
		m.Topic, _ = v.(string)
	}
	if v, ok := doc.MetaValue(MetaInput); ok {
		m.Input, _ = v.(string)
	}
	return m
}
