// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hasher computes the content hash used to address cache buckets.
package hasher

import (
	"crypto/md5" //nolint:gosec // address, not a security primitive
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// blockSize is the read buffer used while streaming a file into the digest.
const blockSize = 64 * 1024

// ErrNoPath is returned when Hash is called without a path. It is an API
// misuse (type) error and is always surfaced to the caller.
var ErrNoPath = errors.New("hasher: no path given")

// Hash streams path through MD5 and returns its 32-character lowercase hex
// digest. The digest is an address, not a security primitive: collisions
// are tolerated by the bucket layer, not assumed impossible.
func Hash(path string) (string, error) {
	if path == "" {
		return "", ErrNoPath
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hasher: opening %s: %w", path, err)
	}
	defer f.Close()

	return HashReader(f)
}

// HashReader streams r through MD5 in fixed-size blocks and returns its hex
// digest. Used directly when the caller already holds an open file or
// in-memory buffer.
func HashReader(r io.Reader) (string, error) {
	h := md5.New() //nolint:gosec
	buf := make([]byte, blockSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("hasher: reading content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
