package kbase

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/kailas-cloud/kbase/internal/domain/document"
)

const tagKey = "kbase"

// Field roles accepted after the comma in a kbase tag.
const (
	roleID      = "id"
	roleContent = "content"
	roleName    = "name"
	roleMeta    = "meta"
)

// schemaMeta holds parsed struct tag metadata, cached per Index.
type schemaMeta struct {
	typ     reflect.Type // struct type for reconstruction
	pointer bool         // T is *struct

	// Field index in the struct for each role, -1 if absent.
	idIdx      int
	contentIdx int
	nameIdx    int

	// Struct fields stored as metadata keys.
	metaFields []fieldMapping
}

type fieldMapping struct {
	structIdx int
	name      string
}

// parseSchema reflects on T and extracts kbase struct tag metadata.
func parseSchema[T any]() (*schemaMeta, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return nil, fmt.Errorf("kbase: type parameter must be a struct")
	}
	pointer := t.Kind() == reflect.Pointer
	if pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("kbase: type %s is not a struct", t)
	}

	meta := &schemaMeta{typ: t, pointer: pointer, idIdx: -1, contentIdx: -1, nameIdx: -1}
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get(tagKey)
		if tag == "" || tag == "-" {
			continue
		}
		if !f.IsExported() {
			return nil, fmt.Errorf("kbase: tagged field %s is not exported", f.Name)
		}
		if err := applyTag(meta, i, f, tag); err != nil {
			return nil, err
		}
	}

	if meta.contentIdx == -1 {
		return nil, fmt.Errorf("kbase: no field with `kbase:\"...,content\"` tag in %s", t)
	}
	return meta, nil
}

// applyTag processes a single struct field's kbase tag.
func applyTag(meta *schemaMeta, idx int, f reflect.StructField, tag string) error {
	name, role, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}

	single := func(slot *int) error {
		if *slot != -1 {
			return fmt.Errorf("kbase: duplicate %s tag on field %s", role, f.Name)
		}
		if f.Type.Kind() != reflect.String {
			return fmt.Errorf("kbase: %s field %s must be a string", role, f.Name)
		}
		*slot = idx
		return nil
	}

	switch role {
	case roleID:
		return single(&meta.idIdx)
	case roleContent:
		return single(&meta.contentIdx)
	case roleName:
		return single(&meta.nameIdx)
	case roleMeta, "":
		meta.metaFields = append(meta.metaFields, fieldMapping{structIdx: idx, name: name})
		return nil
	default:
		return fmt.Errorf("kbase: unknown role %q on field %s", role, f.Name)
	}
}

// toDocument converts a typed struct to a Document. Empty id and name
// fields leave the document without them.
func (m *schemaMeta) toDocument(item any) (Document, error) {
	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return Document{}, fmt.Errorf("kbase: nil item")
		}
		v = v.Elem()
	}

	var opts []DocumentOption
	if m.idIdx != -1 {
		if id := v.Field(m.idIdx).String(); id != "" {
			opts = append(opts, document.WithID(id))
		}
	}
	if m.nameIdx != -1 {
		if name := v.Field(m.nameIdx).String(); name != "" {
			opts = append(opts, document.WithName(name))
		}
	}
	doc := document.New(v.Field(m.contentIdx).String(), opts...)

	if len(m.metaFields) > 0 {
		raw := make(map[string]any, len(m.metaFields))
		for _, mf := range m.metaFields {
			raw[mf.name] = v.Field(mf.structIdx).Interface()
		}
		// normalize to JSON values so filters compare the stored form
		data, err := json.Marshal(raw)
		if err != nil {
			return Document{}, fmt.Errorf("kbase: encode metadata: %w", err)
		}
		normalized, err := document.ParseObject(data)
		if err != nil {
			return Document{}, err
		}
		doc.SetMetaData(normalized)
	}
	return doc, nil
}

// fromDocument converts a Document back to a typed struct, or a pointer to
// one when the index was declared over pointers. Metadata keys that do not
// decode into their field are left zero.
func (m *schemaMeta) fromDocument(doc Document) any {
	v := reflect.New(m.typ).Elem()

	v.Field(m.contentIdx).SetString(doc.Content())
	if id, ok := doc.ID(); ok && m.idIdx != -1 {
		v.Field(m.idIdx).SetString(id)
	}
	if name, ok := doc.Name(); ok && m.nameIdx != -1 {
		v.Field(m.nameIdx).SetString(name)
	}
	for _, mf := range m.metaFields {
		val, ok := doc.MetaValue(mf.name)
		if !ok {
			continue
		}
		data, err := json.Marshal(val)
		if err != nil {
			continue
		}
		field := v.Field(mf.structIdx)
		if err := json.Unmarshal(data, field.Addr().Interface()); err != nil {
			field.SetZero()
		}
	}
	if m.pointer {
		return v.Addr().Interface()
	}
	return v.Interface()
}
