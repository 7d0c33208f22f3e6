package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"

	"github.com/kailas-cloud/kbase/internal/domain"
)

// wireOut is the canonical serialized form. Field order follows the schema.
type wireOut struct {
	Content        string          `json:"content"`
	ID             *string         `json:"id,omitempty"`
	Name           *string         `json:"name,omitempty"`
	MetaData       map[string]any  `json:"meta_data"`
	Usage          *map[string]any `json:"usage,omitempty"`
	RerankingScore *float64        `json:"reranking_score,omitempty"`
}

// MarshalJSON encodes the canonical form: absent optionals are omitted and
// meta_data is always present.
func (d Document) MarshalJSON() ([]byte, error) {
	if d.rerankingScore != nil && (math.IsNaN(*d.rerankingScore) || math.IsInf(*d.rerankingScore, 0)) {
		return nil, fmt.Errorf("%w: reranking_score is not a finite number", domain.ErrInvalidJSON)
	}
	w := wireOut{
		Content:        d.content,
		ID:             d.id,
		Name:           d.name,
		MetaData:       d.metaData,
		RerankingScore: d.rerankingScore,
	}
	if w.MetaData == nil {
		w.MetaData = map[string]any{}
	}
	if d.usage != nil {
		usage := d.usage
		w.Usage = &usage
	}
	b, err := encode(w)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidJSON, err.Error())
	}
	return b, nil
}

// UnmarshalJSON decodes the canonical form. Only content is required. Keys
// match exactly; any other key, including a differently cased one, is
// ignored.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := decodeStrict(data, &raw); err != nil {
		return err
	}

	var (
		content *string
		id      *string
		name    *string
		usage   map[string]any
		score   *float64
	)
	fields := []struct {
		key string
		dst any
	}{
		{"content", &content},
		{"id", &id},
		{"name", &name},
		{"usage", &usage},
		{"reranking_score", &score},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		if err := decodeStrict(v, f.dst); err != nil {
			return fmt.Errorf("field %q: %w", f.key, err)
		}
	}
	if content == nil {
		return fmt.Errorf("%w: missing field \"content\"", domain.ErrInvalidJSON)
	}

	meta := map[string]any{}
	if v := raw["meta_data"]; len(v) > 0 {
		m, err := decodeObject(v, "meta_data")
		if err != nil {
			return err
		}
		meta = m
	}

	*d = Document{
		content:        *content,
		id:             id,
		name:           name,
		metaData:       meta,
		usage:          usage,
		rerankingScore: score,
	}
	return nil
}

// ToJSON serializes the document to its canonical JSON string.
func (d Document) ToJSON() (string, error) {
	b, err := d.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FromJSON parses a canonical JSON document.
func FromJSON(s string) (Document, error) {
	var d Document
	if err := d.UnmarshalJSON([]byte(s)); err != nil {
		return Document{}, err
	}
	return d, nil
}

// MetaDataJSON serializes meta_data alone as a JSON object.
func (d Document) MetaDataJSON() (string, error) {
	meta := d.metaData
	if meta == nil {
		meta = map[string]any{}
	}
	b, err := encode(meta)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidJSON, err.Error())
	}
	return string(b), nil
}

// SetMetaDataFromJSON replaces meta_data from a JSON object. On error the
// previous metadata is left untouched.
func (d *Document) SetMetaDataFromJSON(s string) error {
	meta, err := decodeObject([]byte(s), "meta_data")
	if err != nil {
		return err
	}
	d.metaData = meta
	return nil
}

// ParseObject decodes a JSON object keeping numbers as json.Number. Backends
// use it to restore stored metadata and usage maps.
func ParseObject(data []byte) (map[string]any, error) {
	return decodeObject(data, "value")
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidJSON, err.Error())
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing characters after value", domain.ErrInvalidJSON)
	}
	return nil
}

func decodeObject(data []byte, field string) (map[string]any, error) {
	var raw any
	if err := decodeStrict(data, &raw); err != nil {
		return nil, err
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a JSON object", domain.ErrInvalidJSON, field)
	}
	return m, nil
}

func jsonEqual(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(ab, bb)
}
