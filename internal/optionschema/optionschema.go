// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package optionschema validates conversion option sets against the
// embedded JSON Schema of recognized oocp-*/meta-* keys, the same
// compile-once/validate-many mechanism the teacher's spec validator uses
// for its own document.
package optionschema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/sbywater/oocache/internal/fingerprint"
)

//go:embed options.schema.json
var schemaJSON []byte

// Validator validates fingerprint.Options against the recognized option
// key schema.
type Validator struct {
	schema *jsonschema.Schema
}

// flatFieldAliases maps a flat, user-facing field name (a CLI flag or HTTP
// form field) onto the oocp-*/meta-* option key it fills. Keys already in
// oocp-*/meta-* form pass through FromFlatFields unchanged.
var flatFieldAliases = map[string]string{
	"out_fmt": "oocp-out-fmt",
}

// FromFlatFields builds a fingerprint.Options from a flat name->value map,
// the shape both cmd/oooclient's flags and internal/httpapi's multipart
// form fields arrive in, applying the same alias table to both so a client
// and the HTTP API agree on what "out_fmt" means at the cache boundary.
// Empty values are dropped; an empty result is reported as nil, matching
// fingerprint.Fingerprint's treatment of "no options".
func FromFlatFields(fields map[string]string) fingerprint.Options {
	opts := fingerprint.Options{}
	for name, value := range fields {
		if value == "" {
			continue
		}
		key := name
		if alias, ok := flatFieldAliases[name]; ok {
			key = alias
		}
		opts[key] = value
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

// New compiles the embedded schema.
func New() (*Validator, error) {
	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return nil, fmt.Errorf("optionschema: parsing schema JSON: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("oocache-options.schema.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("optionschema: adding schema resource: %w", err)
	}

	schema, err := compiler.Compile("oocache-options.schema.json")
	if err != nil {
		return nil, fmt.Errorf("optionschema: compiling schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// Validate checks opts against the recognized option key schema, returning
// one human-readable message per violation. A nil/empty slice means opts
// is valid.
func (v *Validator) Validate(opts fingerprint.Options) []string {
	if len(opts) == 0 {
		return nil
	}

	jsonBytes, err := json.Marshal(opts)
	if err != nil {
		return []string{fmt.Sprintf("failed to marshal options: %v", err)}
	}
	var data any
	if err := json.Unmarshal(jsonBytes, &data); err != nil {
		return []string{fmt.Sprintf("failed to unmarshal options: %v", err)}
	}

	err = v.schema.Validate(data)
	if err == nil {
		return nil
	}

	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	return flattenValidationError(ve)
}

func flattenValidationError(ve *jsonschema.ValidationError) []string {
	var out []string
	for _, line := range strings.Split(ve.Error(), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		out = append(out, ve.Error())
	}
	return out
}
