// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"path/filepath"
	"strings"
)

// contentTypes maps artifact extensions to the Content-Type served for
// them (spec.md §6). Anything unlisted falls back to octet-stream.
var contentTypes = map[string]string{
	".zip":  "application/zip",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// contentTypeForPath derives the Content-Type for path from its extension.
func contentTypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
