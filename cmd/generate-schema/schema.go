package main

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/dittodocs/pkg/config"
	"github.com/marmos91/dittodocs/pkg/transport/badger"
	"github.com/marmos91/dittodocs/pkg/transport/sftp"
)

// newReflector names properties after the mapstructure keys viper reads
// and renders durations the way the config file spells them.
func newReflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true, // Inline all definitions for simplicity
		FieldNameTag:              "mapstructure",
		// Defaults fill every key, so nothing is required in the file
		RequiredFromJSONSchemaTags: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(time.Duration(0)) {
				return &jsonschema.Schema{
					Type:        "string",
					Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
					Description: "Go duration, e.g. 30s or 24h",
				}
			}
			return nil
		},
	}
}

// section reflects the configuration struct of one remote backend.
func section(r *jsonschema.Reflector, v any, description string) *jsonschema.Schema {
	s := r.Reflect(v)
	s.Version = ""
	s.ID = ""
	s.Description = description
	return s
}

// property walks a dotted path of object properties.
func property(s *jsonschema.Schema, path string) (*jsonschema.Schema, error) {
	for _, key := range strings.Split(path, ".") {
		if s.Properties == nil {
			return nil, fmt.Errorf("%s: %q has no properties", path, key)
		}
		next, ok := s.Properties.Get(key)
		if !ok {
			return nil, fmt.Errorf("%s: unknown property %q", path, key)
		}
		s = next
	}
	return s, nil
}

// oneOf returns the values allowed by the oneof validation rule of a
// struct field, so the schema enums follow the validator.
func oneOf(v any, field string) []any {
	f, ok := reflect.TypeOf(v).FieldByName(field)
	if !ok {
		return nil
	}
	for _, rule := range strings.Split(f.Tag.Get("validate"), ",") {
		if values, found := strings.CutPrefix(rule, "oneof="); found {
			var enum []any
			for _, value := range strings.Fields(values) {
				enum = append(enum, value)
			}
			return enum
		}
	}
	return nil
}

// buildSchema reflects the configuration and fills in what reflection
// cannot see: the per-remote sections held as free-form maps and the
// enumerated settings.
func buildSchema() (*jsonschema.Schema, error) {
	r := newReflector()
	schema := r.Reflect(&config.Config{})

	schema.Title = "dittodocs Configuration"
	schema.Description = "Configuration schema for the dittodocs document store"
	schema.Version = "1.0.0"

	remote, err := property(schema, "remote")
	if err != nil {
		return nil, err
	}
	remote.Properties.Set("sftp", section(r, &sftp.Config{}, "SSH file transfer server (remote.type: sftp)"))
	remote.Properties.Set("s3", section(r, &config.S3RemoteConfig{}, "S3 or compatible object store (remote.type: s3)"))
	remote.Properties.Set("badger", section(r, &badger.Config{}, "Embedded BadgerDB database (remote.type: badger)"))

	enums := []struct {
		path  string
		owner any
		field string
	}{
		{"remote.type", config.RemoteConfig{}, "Type"},
		{"logging.level", config.LoggingConfig{}, "Level"},
		{"logging.format", config.LoggingConfig{}, "Format"},
	}
	for _, e := range enums {
		p, err := property(schema, e.path)
		if err != nil {
			return nil, err
		}
		p.Enum = oneOf(e.owner, e.field)
	}

	return schema, nil
}
