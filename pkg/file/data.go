package file

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Data is the typed payload of a File. The concrete variant determines the
// file type, so a payload cannot disagree with its own kind.
type Data interface {
	Kind() Type
}

// JSON is the payload of a json file.
//
// Value holds any JSON object or array. A string, []byte or
// json.RawMessage Value is treated as an already serialized document and
// stored verbatim.
type JSON struct {
	Value any
}

func (JSON) Kind() Type { return TypeJSON }

// MarshalJSON emits the wrapped value itself. Unlike the upload encoding,
// a string Value is emitted as a JSON string: decoded payloads carry
// plain Go values.
func (d JSON) MarshalJSON() ([]byte, error) {
	if raw, ok := d.Value.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(d.Value)
}

func (d JSON) encode() ([]byte, error) {
	switch v := d.Value.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}

// Directory is the payload of a directory: the ordered child entry names.
type Directory struct {
	Children []string
}

func (Directory) Kind() Type { return TypeDirectory }

// MarshalJSON emits the child list as a JSON array.
func (d Directory) MarshalJSON() ([]byte, error) {
	if d.Children == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d.Children)
}

// DirectoryOf builds a directory payload from child metadata records.
func DirectoryOf(entries ...Meta) Directory {
	children := make([]string, 0, len(entries))
	for _, m := range entries {
		children = append(children, FileName(m.Address))
	}
	return Directory{Children: children}
}

// Icon decorates a page.
type Icon struct {
	Library   string `json:"library"`
	Value     string `json:"value"`
	Numbering *int   `json:"numbering,omitempty"`
	Props     any    `json:"props,omitempty"`
}

// Page is the payload of a page file. Content is the opaque editor
// document.
type Page struct {
	Title   string          `json:"title"`
	Content json.RawMessage `json:"content"`
	Icon    *Icon           `json:"icon,omitempty"`
}

func (Page) Kind() Type { return TypePage }

// Validate checks that d is a well-formed payload for type t.
//
// A nil payload, a payload whose kind differs from t or a malformed
// payload is a contract violation.
func Validate(t Type, d Data) error {
	if !t.Valid() {
		return NewError(ErrInvalidType, fmt.Sprintf("unknown file type %q", t), "")
	}
	if d == nil {
		return NewError(ErrInvalidData, fmt.Sprintf("missing data for %s file", t), "")
	}
	if d.Kind() != t {
		return NewError(ErrTypeMismatch, fmt.Sprintf("%s data written as %s file", d.Kind(), t), "")
	}

	switch v := d.(type) {
	case JSON:
		return validateJSON(v)
	case *JSON:
		return validateJSON(*v)
	case Directory:
		return validateDirectory(v)
	case *Directory:
		return validateDirectory(*v)
	case Page:
		return validatePage(v)
	case *Page:
		return validatePage(*v)
	}
	return NewError(ErrInvalidData, fmt.Sprintf("unsupported payload %T", d), "")
}

func validateJSON(d JSON) error {
	switch v := d.Value.(type) {
	case nil:
		return NewError(ErrInvalidData, "json file requires an object or string", "")
	case string:
		if !json.Valid([]byte(v)) {
			return NewError(ErrInvalidData, "json string payload is not valid JSON", "")
		}
		return nil
	case []byte:
		if !json.Valid(v) {
			return NewError(ErrInvalidData, "json payload is not valid JSON", "")
		}
		return nil
	case json.RawMessage:
		if !json.Valid(v) {
			return NewError(ErrInvalidData, "json payload is not valid JSON", "")
		}
		return nil
	}

	v := reflect.ValueOf(d.Value)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return NewError(ErrInvalidData, "json file requires an object or string", "")
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Map, reflect.Slice:
		if !v.IsNil() {
			return nil
		}
	case reflect.Struct, reflect.Array:
		return nil
	}
	return NewError(ErrInvalidData, fmt.Sprintf("json file requires an object or string, got %T", d.Value), "")
}

func validateDirectory(d Directory) error {
	for _, name := range d.Children {
		if name == "" || strings.Contains(name, "/") {
			return NewError(ErrInvalidData, fmt.Sprintf("invalid directory entry %q", name), "")
		}
	}
	return nil
}

func validatePage(p Page) error {
	if strings.TrimSpace(p.Title) == "" {
		return NewError(ErrInvalidData, "page requires a title", "")
	}
	if len(bytes.TrimSpace(p.Content)) == 0 || !json.Valid(p.Content) {
		return NewError(ErrInvalidData, "page requires JSON content", "")
	}
	return nil
}

// Encode serializes a non-directory payload for upload.
func Encode(d Data) ([]byte, error) {
	switch v := d.(type) {
	case JSON:
		return v.encode()
	case *JSON:
		return v.encode()
	case Page:
		return json.Marshal(v)
	case *Page:
		return json.Marshal(v)
	}
	return nil, NewError(ErrInvalidData, fmt.Sprintf("payload %T has no content encoding", d), "")
}

// Decode parses a downloaded payload of the given type.
func Decode(t Type, raw []byte) (Data, error) {
	switch t {
	case TypeJSON:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to decode json payload: %w", err)
		}
		return JSON{Value: v}, nil
	case TypePage:
		var p Page
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode page payload: %w", err)
		}
		return p, nil
	}
	return nil, NewError(ErrInvalidType, fmt.Sprintf("type %q has no content payload", t), "")
}
