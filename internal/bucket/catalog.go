// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package bucket

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	ooerrors "github.com/sbywater/oocache/internal/errors"
)

// catalogVersion is the schema version written to every bucket's data file.
const catalogVersion = 1

// catalogFile is the name of the bucket's internal state file.
const catalogFile = "data"

// catalog is a bucket's internal state: the highest assigned source number
// and, per source, the highest assigned representation number.
type catalog struct {
	Version     int         `json:"version"`
	CurrSrcNum  int         `json:"curr_src_num"`
	CurrReprNum map[int]int `json:"curr_repr_num"`
}

func newCatalog() *catalog {
	return &catalog{
		Version:     catalogVersion,
		CurrSrcNum:  0,
		CurrReprNum: make(map[int]int),
	}
}

// loadCatalog reads the bucket's data file. A missing file yields a fresh
// catalog; a present-but-corrupt file fails loudly — the spec forbids
// silently re-initializing on a damaged catalog.
func loadCatalog(path string) (*catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newCatalog(), nil
		}
		return nil, fmt.Errorf("bucket: reading catalog %s: %w", path, err)
	}

	var c catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("bucket: corrupt catalog %s: %w", path, err)
	}
	if c.CurrReprNum == nil {
		c.CurrReprNum = make(map[int]int)
	}
	if c.Version == 0 {
		c.Version = catalogVersion
	}
	return &c, nil
}

// save persists the catalog via write-to-temp-file + atomic rename, fsyncing
// both the temp file and its parent directory before returning. Callers
// must already hold the bucket's exclusive lock.
func (c *catalog) save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("bucket: marshaling catalog: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".data-*.tmp")
	if err != nil {
		return ooerrors.WriteError(path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ooerrors.WriteError(path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return ooerrors.WriteError(path, err)
	}
	if err := tmp.Close(); err != nil {
		return ooerrors.WriteError(path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return ooerrors.WriteError(path, err)
	}

	if dirFile, err := os.Open(dir); err == nil {
		_ = dirFile.Sync()
		dirFile.Close()
	}

	return nil
}
