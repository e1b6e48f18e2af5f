// Package schema validates request bodies against a fixed set of JSON
// Schema documents compiled once at startup. Unlike a directory of
// templates loaded lazily from disk, the shapes this facade accepts are
// known at compile time and ship embedded in the binary.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

// Names of the two fixed request shapes this system validates.
const (
	AnswerChallenge  = "answer-challenge"
	RequestUploadURL = "request-upload-url"
)

// Validator holds compiled gojsonschema schemas, keyed by name.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// New compiles every embedded schema document up front so a malformed
// schema fails at startup rather than on the first request that needs it.
func New() (*Validator, error) {
	names := []string{AnswerChallenge, RequestUploadURL}

	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(names))}
	for _, name := range names {
		data, err := schemaFiles.ReadFile("schemas/" + name + ".json")
		if err != nil {
			return nil, fmt.Errorf("schema %q: %w", name, err)
		}

		compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return nil, fmt.Errorf("schema %q: %w", name, err)
		}
		v.schemas[name] = compiled
	}

	return v, nil
}

// Validate checks body against the named schema. An unknown schema name is
// a programming error and returns a plain error rather than a validation
// failure.
func (v *Validator) Validate(name string, body []byte) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("malformed JSON body: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if !result.Valid() {
		return fmt.Errorf("%s", result.Errors()[0].String())
	}

	return nil
}
