// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stubconverter provides a deterministic, dependency-free
// convert.Converter for tests and for running the server without a real
// office engine (out of scope per the cache's own spec: the external
// converter is a black box the cache core never shells out to itself).
package stubconverter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sbywater/oocache/internal/convert"
	"github.com/sbywater/oocache/internal/fingerprint"
)

// defaultOutFmt is used when opts carries no "oocp-out-fmt" entry.
const defaultOutFmt = "pdf"

// failOutFmt lets tests and manual runs exercise the conversion-failure
// path without a real office engine misbehaving.
const failOutFmt = "fail"

// StubConverter copies the source's bytes into a freshly created artifact
// whose extension reflects the requested output format. Dir, if set, is
// the parent directory new artifact directories are created under;
// otherwise the OS temp directory is used.
type StubConverter struct {
	Dir string
}

// Convert implements convert.Converter.
func (s StubConverter) Convert(ctx context.Context, src string, opts fingerprint.Options) (string, convert.Metadata, error) {
	select {
	case <-ctx.Done():
		return "", convert.Metadata{}, ctx.Err()
	default:
	}

	outFmt := defaultOutFmt
	if v, ok := opts["oocp-out-fmt"]; ok {
		if str, ok := v.(string); ok && str != "" {
			outFmt = str
		}
	}

	if outFmt == failOutFmt {
		return "", convert.Metadata{Error: true, OOCPStatus: 1}, nil
	}

	outDir, err := os.MkdirTemp(s.Dir, "oocache-convert-*")
	if err != nil {
		return "", convert.Metadata{}, fmt.Errorf("stubconverter: creating artifact dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	outPath := filepath.Join(outDir, base+"."+outFmt)

	in, err := os.Open(src)
	if err != nil {
		return "", convert.Metadata{}, fmt.Errorf("stubconverter: opening source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return "", convert.Metadata{}, fmt.Errorf("stubconverter: creating artifact: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", convert.Metadata{}, fmt.Errorf("stubconverter: copying artifact content: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", convert.Metadata{}, fmt.Errorf("stubconverter: closing artifact: %w", err)
	}

	return outPath, convert.Metadata{Error: false, OOCPStatus: 0}, nil
}
