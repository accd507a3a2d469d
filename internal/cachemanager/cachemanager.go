// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cachemanager locates or creates the bucket for a given source,
// composes and parses cache identifiers, and orchestrates the
// register/lookup operations the conversion façade and frontends rely on.
package cachemanager

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	logging "github.com/ipfs/go-log/v2"

	"github.com/sbywater/oocache/internal/bucket"
	ooerrors "github.com/sbywater/oocache/internal/errors"
	"github.com/sbywater/oocache/internal/fingerprint"
	"github.com/sbywater/oocache/internal/hasher"
)

var log = logging.Logger("oocache/cachemanager")

const (
	minLevel     = 1
	maxLevel     = 3
	defaultLevel = 1
)

// CID is a parsed cache identifier: H_S_R.
type CID struct {
	Hash string
	SR   string // "S_R", kept verbatim for composing back with Bucket
}

// String renders the CID in its canonical H_S_R form.
func (c CID) String() string {
	return c.Hash + "_" + c.SR
}

// CacheManager resolves content hashes to bucket paths and exposes the
// cache's register/lookup contract.
type CacheManager struct {
	cacheDir string
	level    int
}

// Option configures a CacheManager at construction time.
type Option func(*CacheManager)

// WithLevel sets the cache root's prefix depth (number of two-hex-character
// directory layers before the bucket directory). Must be in [1,3].
func WithLevel(level int) Option {
	return func(cm *CacheManager) { cm.level = level }
}

// New creates (or reuses) cacheDir as the cache root. If cacheDir exists
// and is not a directory, it fails loudly.
func New(cacheDir string, opts ...Option) (*CacheManager, error) {
	cm := &CacheManager{cacheDir: cacheDir, level: defaultLevel}
	for _, opt := range opts {
		opt(cm)
	}
	if cm.level < minLevel || cm.level > maxLevel {
		return nil, fmt.Errorf("cachemanager: level must be in [%d,%d], got %d", minLevel, maxLevel, cm.level)
	}

	info, err := os.Stat(cacheDir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("cachemanager: creating cache dir: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("cachemanager: stat cache dir: %w", err)
	case !info.IsDir():
		return nil, ooerrors.CacheDirError(cacheDir, fmt.Errorf("not a directory"))
	}

	return cm, nil
}

// CacheDir returns the cache root.
func (cm *CacheManager) CacheDir() string { return cm.cacheDir }

// Level returns the configured prefix depth.
func (cm *CacheManager) Level() int { return cm.level }

// Hash delegates to the hasher package.
func (cm *CacheManager) Hash(path string) (string, error) {
	return hasher.Hash(path)
}

// BucketPath returns the directory a bucket for content hash h lives in:
// <cacheDir>/<h[0:2]>/.../<h>, with `level` two-hex-character layers.
func (cm *CacheManager) BucketPath(h string) (string, error) {
	if len(h) < 2*cm.level {
		return "", fmt.Errorf("cachemanager: hash %q too short for level %d", h, cm.level)
	}
	parts := make([]string, 0, cm.level+1)
	for i := 0; i < cm.level; i++ {
		parts = append(parts, h[2*i:2*i+2])
	}
	parts = append(parts, h)
	return filepath.Join(append([]string{cm.cacheDir}, parts...)...), nil
}

// Compose builds a CID string from a content hash and a bucket-local "S_R"
// identifier.
func (cm *CacheManager) Compose(h, sr string) string {
	return h + "_" + sr
}

// Dissolve parses a CID string into its hash and "S_R" parts. Unrecognized
// shapes yield ("", "").
func (cm *CacheManager) Dissolve(cid string) (hash, sr string) {
	if cid == "" {
		return "", ""
	}
	parts := strings.SplitN(cid, "_", 2)
	if len(parts) != 2 {
		return "", ""
	}
	h, rest := parts[0], parts[1]
	if !isHex32(h) {
		return "", ""
	}
	srParts := strings.SplitN(rest, "_", 2)
	if len(srParts) != 2 {
		return "", ""
	}
	if !isPositiveDecimal(srParts[0]) || !isPositiveDecimal(srParts[1]) {
		return "", ""
	}
	return h, rest
}

func isHex32(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

func isPositiveDecimal(s string) bool {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	n, err := strconv.Atoi(s)
	return err == nil && n > 0
}

// openBucket locates (creating if necessary) the bucket directory for h.
func (cm *CacheManager) openBucket(h string) (*bucket.Bucket, error) {
	path, err := cm.BucketPath(h)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cachemanager: creating bucket prefix dirs: %w", err)
	}
	return bucket.Open(path)
}

// RegisterDoc hashes srcPath, stores artifactPath under rkey in the
// resulting bucket, and returns the composed CID. Re-registering the
// identical (source bytes, rkey) pair returns the same CID and replaces
// the cached artifact in place (spec.md I3, I5).
func (cm *CacheManager) RegisterDoc(srcPath, artifactPath string, rkey fingerprint.RKey) (string, error) {
	h, err := cm.Hash(srcPath)
	if err != nil {
		return "", err
	}

	b, err := cm.openBucket(h)
	if err != nil {
		return "", err
	}

	sr, err := b.StoreRepresentation(srcPath, artifactPath, rkey)
	if err != nil {
		return "", err
	}

	cid := cm.Compose(h, sr)
	log.Debugf("registered %s -> %s", srcPath, cid)
	return cid, nil
}

// GetCachedFile resolves a CID to an artifact path, or "" if the CID is
// malformed or references a missing bucket/representation.
func (cm *CacheManager) GetCachedFile(cid string) (string, error) {
	h, sr := cm.Dissolve(cid)
	if h == "" {
		return "", nil
	}

	path, err := cm.BucketPath(h)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", nil
	}

	b, err := bucket.Open(path)
	if err != nil {
		return "", err
	}
	return b.GetRepresentation(sr)
}

// GetCachedFileBySource looks up a cached artifact by source content and
// RKey instead of by CID, returning (path, cid) or ("", "") on a miss.
func (cm *CacheManager) GetCachedFileBySource(srcPath string, rkey fingerprint.RKey) (string, string, error) {
	h, err := cm.Hash(srcPath)
	if err != nil {
		return "", "", err
	}

	path, err := cm.BucketPath(h)
	if err != nil {
		return "", "", err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", "", nil
	}

	b, err := bucket.Open(path)
	if err != nil {
		return "", "", err
	}

	srcNum, err := b.GetStoredSourceNum(srcPath)
	if err != nil {
		return "", "", err
	}
	if srcNum == 0 {
		return "", "", nil
	}

	reprNum, err := b.GetStoredReprNum(srcNum, rkey)
	if err != nil {
		return "", "", err
	}
	if reprNum == 0 {
		return "", "", nil
	}

	sr := fmt.Sprintf("%d_%d", srcNum, reprNum)
	resultPath, err := b.GetRepresentation(sr)
	if err != nil {
		return "", "", err
	}
	if resultPath == "" {
		return "", "", nil
	}
	return resultPath, cm.Compose(h, sr), nil
}

// Keys walks every bucket directory under the cache root and yields their
// fully-qualified CIDs.
func (cm *CacheManager) Keys() ([]string, error) {
	var out []string
	err := filepath.Walk(cm.cacheDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		name := filepath.Base(path)
		if !isHex32(name) {
			return nil
		}
		b, err := bucket.Open(path)
		if err != nil {
			return fmt.Errorf("cachemanager: opening bucket %s: %w", path, err)
		}
		srs, err := b.Keys()
		if err != nil {
			return fmt.Errorf("cachemanager: listing keys for bucket %s: %w", path, err)
		}
		for _, sr := range srs {
			out = append(out, cm.Compose(name, sr))
		}
		return filepath.SkipDir
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
