// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package openapi loads the embedded description of the HTTP document API
// and exposes a router usable by internal/httpapi's request-validation
// middleware.
package openapi

import (
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

//go:embed docs-api.yaml
var docsAPIYAML []byte

// Load parses and validates the embedded OpenAPI document.
func Load() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(docsAPIYAML)
	if err != nil {
		return nil, fmt.Errorf("openapi: loading embedded document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("openapi: embedded document is invalid: %w", err)
	}
	return doc, nil
}

// NewRouter builds a request router over doc, used to find the matching
// Route + path parameters ahead of openapi3filter.ValidateRequest.
func NewRouter(doc *openapi3.T) (routers.Router, error) {
	r, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("openapi: building router: %w", err)
	}
	return r, nil
}
