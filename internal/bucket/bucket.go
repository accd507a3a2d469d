// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package bucket implements the on-disk representation of one content hash:
// its distinct source files, its converted representations, and the
// key-to-representation index that lets a fingerprinted option set resolve
// to a stored artifact. Buckets are safe for concurrent use by multiple
// goroutines and multiple processes sharing the same cache directory.
package bucket

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/gofrs/flock"
	logging "github.com/ipfs/go-log/v2"

	ooerrors "github.com/sbywater/oocache/internal/errors"
	"github.com/sbywater/oocache/internal/fingerprint"
)

var log = logging.Logger("oocache/bucket")

const (
	sourcesDir = "sources"
	reprDir    = "repr"
	keysDir    = "keys"
)

// Bucket owns the on-disk state for a single content hash.
//
// Two layers of locking back every mutating or dereferencing operation: an
// in-process sync.RWMutex (OS advisory locks do not block other goroutines
// holding the same file descriptor) and a gofrs/flock.Flock on a lock file
// beside the catalog ("data.lock", to serialize against other processes
// sharing the cache directory). The lock is not taken on the catalog file
// itself because catalog.save replaces that file by rename.
type Bucket struct {
	path string
	mu   sync.RWMutex
	lock *flock.Flock
}

// Open ensures path's subdirectories and catalog file exist and returns a
// handle to the bucket. Open is safe against concurrent Open calls against
// the same path: it creates directories idempotently and never overwrites
// an existing catalog.
func Open(path string) (*Bucket, error) {
	for _, sub := range []string{sourcesDir, reprDir, keysDir} {
		if err := os.MkdirAll(filepath.Join(path, sub), 0o755); err != nil {
			return nil, fmt.Errorf("bucket: creating %s: %w", sub, err)
		}
	}

	b := &Bucket{
		path: path,
		lock: flock.New(filepath.Join(path, catalogFile+".lock")),
	}

	if err := b.withLock(func() error {
		c, err := loadCatalog(b.catalogPath())
		if err != nil {
			return err
		}
		if _, statErr := os.Stat(b.catalogPath()); os.IsNotExist(statErr) {
			if err := c.save(b.catalogPath()); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := b.reapOrphans(); err != nil {
		log.Warnf("bucket %s: orphan sweep failed: %v", path, err)
	}

	return b, nil
}

// Path returns the bucket's root directory.
func (b *Bucket) Path() string { return b.path }

func (b *Bucket) catalogPath() string { return filepath.Join(b.path, catalogFile) }

func (b *Bucket) withLock(fn func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.lock.Lock(); err != nil {
		return fmt.Errorf("bucket: acquiring lock: %w", err)
	}
	defer b.lock.Unlock()
	return fn()
}

func (b *Bucket) withRLock(fn func() error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.lock.RLock(); err != nil {
		return fmt.Errorf("bucket: acquiring shared lock: %w", err)
	}
	defer b.lock.Unlock()
	return fn()
}

// reapOrphans removes repr/S/R directories left behind by a crash between
// artifact copy and catalog persist: the artifact exists but no matching
// keys/S/R.key was ever written, so no representation number references
// it. Safe to run repeatedly; a legitimate in-flight store always writes
// its key file before another writer can observe the directory, because
// both happen under the bucket's exclusive lock.
func (b *Bucket) reapOrphans() error {
	return b.withLock(func() error {
		srcDirs, err := os.ReadDir(filepath.Join(b.path, reprDir))
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		for _, sd := range srcDirs {
			srcNum, err := strconv.Atoi(sd.Name())
			if err != nil || !sd.IsDir() {
				continue
			}
			reprDirs, err := os.ReadDir(filepath.Join(b.path, reprDir, sd.Name()))
			if err != nil {
				continue
			}
			for _, rd := range reprDirs {
				reprNum, err := strconv.Atoi(rd.Name())
				if err != nil || !rd.IsDir() {
					continue
				}
				keyPath := filepath.Join(b.path, keysDir, sd.Name(), fmt.Sprintf("%d.key", reprNum))
				if _, err := os.Stat(keyPath); os.IsNotExist(err) {
					orphan := filepath.Join(b.path, reprDir, sd.Name(), rd.Name())
					log.Infof("bucket %s: removing orphan representation dir %s (src %d repr %d)", b.path, orphan, srcNum, reprNum)
					if err := os.RemoveAll(orphan); err != nil {
						return fmt.Errorf("bucket: removing orphan %s: %w", orphan, err)
					}
				}
			}
		}
		return nil
	})
}

// GetStoredSourceNum returns the 1-based source number of srcPath within
// the bucket, or 0 if no stored source is byte-for-byte identical to it.
// This full-content comparison is the collision-resolution step: many
// distinct sources may share a bucket because their content hashes
// collided.
func (b *Bucket) GetStoredSourceNum(srcPath string) (int, error) {
	var result int
	err := b.withRLock(func() error {
		c, err := loadCatalog(b.catalogPath())
		if err != nil {
			return err
		}
		for n := 1; n <= c.CurrSrcNum; n++ {
			equal, err := filesEqual(srcPath, filepath.Join(b.path, sourcesDir, fmt.Sprintf("source_%d", n)))
			if err != nil {
				return err
			}
			if equal {
				result = n
				return nil
			}
		}
		return nil
	})
	return result, err
}

// GetStoredReprNum returns the 1-based representation number for srcNum
// indexed by rkey, or 0 if none exists.
func (b *Bucket) GetStoredReprNum(srcNum int, rkey fingerprint.RKey) (int, error) {
	var result int
	err := b.withRLock(func() error {
		dir := filepath.Join(b.path, keysDir, strconv.Itoa(srcNum))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("bucket: listing keys for source %d: %w", srcNum, err)
		}
		for _, e := range entries {
			reprNum, ok := parseKeyFileName(e.Name())
			if !ok {
				continue
			}
			content, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				return fmt.Errorf("bucket: reading key file %s: %w", e.Name(), err)
			}
			if fingerprint.RKey(content) == rkey {
				result = reprNum
				return nil
			}
		}
		return nil
	})
	return result, err
}

// StoreRepresentation stores artifactPath as the representation of srcPath
// under rkey, returning the "S_R" identifier. If srcPath is already present
// (byte-for-byte) it reuses its source number; if (S, rkey) already has a
// representation, the existing artifact directory is atomically replaced
// and its representation number is reused (spec.md I3).
func (b *Bucket) StoreRepresentation(srcPath, artifactPath string, rkey fingerprint.RKey) (string, error) {
	var result string
	err := b.withLock(func() error {
		c, err := loadCatalog(b.catalogPath())
		if err != nil {
			return err
		}

		srcNum, err := b.findOrAssignSource(c, srcPath)
		if err != nil {
			return err
		}

		reprNum, isUpdate, err := b.findOrAssignRepr(c, srcNum, rkey)
		if err != nil {
			return err
		}

		reprDirPath := filepath.Join(b.path, reprDir, strconv.Itoa(srcNum), strconv.Itoa(reprNum))
		if isUpdate {
			if err := os.RemoveAll(reprDirPath); err != nil {
				return fmt.Errorf("bucket: removing previous representation: %w", err)
			}
		}
		if err := os.MkdirAll(reprDirPath, 0o755); err != nil {
			return fmt.Errorf("bucket: creating representation dir: %w", err)
		}
		dst := filepath.Join(reprDirPath, filepath.Base(artifactPath))
		if err := copyFile(artifactPath, dst); err != nil {
			return fmt.Errorf("bucket: copying artifact: %w", err)
		}

		keyDir := filepath.Join(b.path, keysDir, strconv.Itoa(srcNum))
		if err := os.MkdirAll(keyDir, 0o755); err != nil {
			return fmt.Errorf("bucket: creating keys dir: %w", err)
		}
		keyPath := filepath.Join(keyDir, fmt.Sprintf("%d.key", reprNum))
		if err := os.WriteFile(keyPath, []byte(rkey), 0o644); err != nil {
			return ooerrors.WriteError(keyPath, err)
		}

		if err := c.save(b.catalogPath()); err != nil {
			return err
		}

		result = fmt.Sprintf("%d_%d", srcNum, reprNum)
		return nil
	})
	return result, err
}

func (b *Bucket) findOrAssignSource(c *catalog, srcPath string) (int, error) {
	for n := 1; n <= c.CurrSrcNum; n++ {
		equal, err := filesEqual(srcPath, filepath.Join(b.path, sourcesDir, fmt.Sprintf("source_%d", n)))
		if err != nil {
			return 0, err
		}
		if equal {
			return n, nil
		}
	}

	c.CurrSrcNum++
	n := c.CurrSrcNum
	if err := copyFile(srcPath, filepath.Join(b.path, sourcesDir, fmt.Sprintf("source_%d", n))); err != nil {
		return 0, fmt.Errorf("bucket: storing new source: %w", err)
	}
	return n, nil
}

func (b *Bucket) findOrAssignRepr(c *catalog, srcNum int, rkey fingerprint.RKey) (reprNum int, isUpdate bool, err error) {
	dir := filepath.Join(b.path, keysDir, strconv.Itoa(srcNum))
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return 0, false, fmt.Errorf("bucket: listing keys for source %d: %w", srcNum, err)
	}
	for _, e := range entries {
		n, ok := parseKeyFileName(e.Name())
		if !ok {
			continue
		}
		content, readErr := os.ReadFile(filepath.Join(dir, e.Name()))
		if readErr != nil {
			return 0, false, fmt.Errorf("bucket: reading key file %s: %w", e.Name(), readErr)
		}
		if fingerprint.RKey(content) == rkey {
			return n, true, nil
		}
	}

	n := c.CurrReprNum[srcNum] + 1
	c.CurrReprNum[srcNum] = n
	return n, false, nil
}

// GetRepresentation returns the path to the single file stored under sr
// ("S_R"), or "" if none is stored.
func (b *Bucket) GetRepresentation(sr string) (string, error) {
	srcNum, reprNum, ok := parseSR(sr)
	if !ok {
		return "", nil
	}
	dir := filepath.Join(b.path, reprDir, strconv.Itoa(srcNum), strconv.Itoa(reprNum))

	var result string
	err := b.withRLock(func() error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("bucket: reading representation dir: %w", err)
		}
		keyPath := filepath.Join(b.path, keysDir, strconv.Itoa(srcNum), fmt.Sprintf("%d.key", reprNum))
		if _, err := os.Stat(keyPath); os.IsNotExist(err) {
			return nil // orphaned artifact with no matching key: treated as absent
		}
		for _, e := range entries {
			if !e.IsDir() {
				result = filepath.Join(dir, e.Name())
				return nil
			}
		}
		return nil
	})
	return result, err
}

// Keys enumerates every "S_R" pair that has both an artifact file and a
// matching key file.
func (b *Bucket) Keys() ([]string, error) {
	var out []string
	err := b.withRLock(func() error {
		srcDirs, err := os.ReadDir(filepath.Join(b.path, reprDir))
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		for _, sd := range srcDirs {
			srcNum, err := strconv.Atoi(sd.Name())
			if err != nil || !sd.IsDir() {
				continue
			}
			reprDirs, err := os.ReadDir(filepath.Join(b.path, reprDir, sd.Name()))
			if err != nil {
				continue
			}
			for _, rd := range reprDirs {
				reprNum, err := strconv.Atoi(rd.Name())
				if err != nil || !rd.IsDir() {
					continue
				}
				keyPath := filepath.Join(b.path, keysDir, sd.Name(), fmt.Sprintf("%d.key", reprNum))
				if _, err := os.Stat(keyPath); err != nil {
					continue
				}
				artifacts, err := os.ReadDir(filepath.Join(b.path, reprDir, sd.Name(), rd.Name()))
				if err != nil || len(artifacts) == 0 {
					continue
				}
				out = append(out, fmt.Sprintf("%d_%d", srcNum, reprNum))
			}
		}
		sort.Strings(out)
		return nil
	})
	return out, err
}

func parseSR(sr string) (srcNum, reprNum int, ok bool) {
	var s, r string
	for i, c := range sr {
		if c == '_' {
			s, r = sr[:i], sr[i+1:]
			break
		}
	}
	if s == "" || r == "" {
		return 0, 0, false
	}
	srcNum, err1 := strconv.Atoi(s)
	reprNum, err2 := strconv.Atoi(r)
	if err1 != nil || err2 != nil || srcNum <= 0 || reprNum <= 0 {
		return 0, 0, false
	}
	return srcNum, reprNum, true
}

func parseKeyFileName(name string) (int, bool) {
	const suffix = ".key"
	if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
		return 0, false
	}
	n, err := strconv.Atoi(name[:len(name)-len(suffix)])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func filesEqual(a, b string) (bool, error) {
	fa, err := os.Open(a)
	if err != nil {
		return false, fmt.Errorf("bucket: opening %s: %w", a, err)
	}
	defer fa.Close()

	fb, err := os.Open(b)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("bucket: opening %s: %w", b, err)
	}
	defer fb.Close()

	sa, err := fa.Stat()
	if err != nil {
		return false, err
	}
	sb, err := fb.Stat()
	if err != nil {
		return false, err
	}
	if sa.Size() != sb.Size() {
		return false, nil
	}

	const chunk = 64 * 1024
	bufA := make([]byte, chunk)
	bufB := make([]byte, chunk)
	for {
		na, erra := io.ReadFull(fa, bufA)
		nb, errb := io.ReadFull(fb, bufB)
		if na != nb {
			return false, nil
		}
		if string(bufA[:na]) != string(bufB[:nb]) {
			return false, nil
		}
		if erra == io.EOF || erra == io.ErrUnexpectedEOF {
			return errb == io.EOF || errb == io.ErrUnexpectedEOF, nil
		}
		if erra != nil {
			return false, erra
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return ooerrors.WriteError(dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return ooerrors.WriteError(dst, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return ooerrors.WriteError(dst, err)
	}
	if err := out.Close(); err != nil {
		return ooerrors.WriteError(dst, err)
	}
	return nil
}
