package file

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type is the closed set of logical file types.
type Type string

const (
	TypeJSON      Type = "json"
	TypeDirectory Type = "directory"
	TypePage      Type = "page"
)

// Types lists every valid Type.
var Types = []Type{TypeJSON, TypeDirectory, TypePage}

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool {
	switch t {
	case TypeJSON, TypeDirectory, TypePage:
		return true
	}
	return false
}

// ParseType converts a string to a Type, rejecting unknown values.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", NewError(ErrInvalidType, fmt.Sprintf("unknown file type %q", s), "")
	}
	return t, nil
}

// UnmarshalJSON rejects unknown types so that a corrupt sidecar cannot
// smuggle one in.
func (t *Type) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Meta is the sidecar record of a logical file.
//
// Address and Type never change once the record is first written.
// Created is set once; Updated is refreshed on every successful write.
type Meta struct {
	Address Address         `json:"address"`
	Type    Type            `json:"type"`
	Created time.Time       `json:"created"`
	Updated time.Time       `json:"updated"`
	Extra   json.RawMessage `json:"extra,omitempty"`
}

// File is a metadata record together with its decoded payload.
type File struct {
	Meta
	Data Data `json:"data"`
}
