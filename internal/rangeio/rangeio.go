// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package rangeio provides a chunked byte-range reader over an os.File for
// HTTP range-read support.
package rangeio

import (
	"io"
	"iter"
	"os"
)

// DefaultChunkSize is used by Chunks callers that don't need a specific
// chunk granularity.
const DefaultChunkSize = 64 * 1024

// Chunks yields successive byte slices of f covering the half-open range
// [start, stop) in pieces no larger than chunkSize. stop <= start or
// stop == 0 yields an empty sequence (spec.md §6).
func Chunks(f *os.File, start, stop, chunkSize int64) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		if stop <= start || stop == 0 || chunkSize <= 0 {
			return
		}

		if _, err := f.Seek(start, io.SeekStart); err != nil {
			return
		}

		remaining := stop - start
		buf := make([]byte, chunkSize)
		for remaining > 0 {
			n := chunkSize
			if remaining < n {
				n = remaining
			}
			read, err := io.ReadFull(f, buf[:n])
			if read > 0 {
				if !yield(buf[:read]) {
					return
				}
			}
			remaining -= int64(read)
			if err != nil {
				return
			}
		}
	}
}
