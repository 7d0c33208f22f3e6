package db

import (
	"errors"
	"fmt"
)

// StorageType is the key type an FT index covers. Collections are stored
// as hashes.
type StorageType string

// StorageHash indexes Redis hashes.
const StorageHash StorageType = "HASH"

// DistanceCosine is the only metric collections use; scores are reported
// as 1 - distance.
const DistanceCosine = "COSINE"

// VectorAlgorithm selects the FT vector index type.
type VectorAlgorithm string

const (
	// VectorHNSW is the approximate graph index.
	VectorHNSW VectorAlgorithm = "HNSW"
	// VectorFlat is brute force.
	VectorFlat VectorAlgorithm = "FLAT"
)

// IndexFieldType enumerates the FT field kinds a collection schema uses.
type IndexFieldType int

const (
	// IndexFieldTag is an exact-match field (identity, name, filters).
	IndexFieldTag IndexFieldType = iota
	// IndexFieldText is the BM25 content field.
	IndexFieldText
	// IndexFieldVector is the embedding field.
	IndexFieldVector
)

// HNSWParams tunes an HNSW vector field. Zero values keep server defaults.
type HNSWParams struct {
	M              int
	EFConstruction int
}

// IndexField is one entry of an FT SCHEMA clause.
type IndexField struct {
	Name string
	Type IndexFieldType

	// Separator splits multi-valued tags; empty keeps the server default.
	Separator     string
	CaseSensitive bool

	Dim  int
	HNSW *HNSWParams // nil selects FLAT
}

// Algorithm reports the vector index type of a vector field.
func (f *IndexField) Algorithm() VectorAlgorithm {
	if f.HNSW != nil {
		return VectorHNSW
	}
	return VectorFlat
}

// IndexDefinition describes the FT index behind one collection.
type IndexDefinition struct {
	Name        string
	StorageType StorageType
	Prefixes    []string
	// NoStopWords indexes every token, including the server's default stop list.
	NoStopWords bool
	Fields      []IndexField
}

// Validate checks the definition before it is sent to the server.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIdentifier(idx.Name) {
		return errors.New("index name contains invalid characters")
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]struct{}, len(idx.Fields))
	vectors := 0
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("field name is required at index %d", i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field name: %s", f.Name)
		}
		seen[f.Name] = struct{}{}

		switch f.Type {
		case IndexFieldVector:
			if f.Dim <= 0 {
				return fmt.Errorf("vector field %s requires positive DIM", f.Name)
			}
			if vectors++; vectors > 1 {
				return errors.New("a collection index holds one vector field")
			}
		case IndexFieldTag:
			if len(f.Separator) > 1 {
				return fmt.Errorf("tag separator must be a single character: %s", f.Name)
			}
		}
	}
	return nil
}

// IsValidIdentifier reports whether s is usable in index names and key
// prefixes: [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == ':', r == '-':
		default:
			return false
		}
	}
	return true
}
