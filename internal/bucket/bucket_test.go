// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package bucket

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sbywater/oocache/internal/fingerprint"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) failed: %v", path, err)
	}
	return path
}

func TestOpenCreatesSubdirs(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(dir); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for _, sub := range []string{"sources", "repr", "keys"} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist", sub)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "data")); err != nil {
		t.Errorf("expected catalog file to exist: %v", err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	b1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if _, err := b1.StoreRepresentation(writeFile(t, dir, "src.txt", "hi\n"), writeFile(t, dir, "out.txt", "out\n"), "k"); err != nil {
		t.Fatalf("StoreRepresentation failed: %v", err)
	}

	b2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	keys, err := b2.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected 1 key after reopening bucket, got %v", keys)
	}
}

func TestGetStoredSourceNum(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	src1 := writeFile(t, dir, "src1.txt", "source1\n")
	src2 := writeFile(t, dir, "src2.txt", "source2\n")

	n, err := b.GetStoredSourceNum(src1)
	if err != nil || n != 0 {
		t.Fatalf("GetStoredSourceNum(src1) = %d, %v, want 0, nil", n, err)
	}

	if _, err := b.StoreRepresentation(src1, writeFile(t, dir, "r1.txt", "r1\n"), ""); err != nil {
		t.Fatalf("StoreRepresentation failed: %v", err)
	}

	n, err = b.GetStoredSourceNum(src1)
	if err != nil || n != 1 {
		t.Fatalf("GetStoredSourceNum(src1) = %d, %v, want 1, nil", n, err)
	}
	n, err = b.GetStoredSourceNum(src2)
	if err != nil || n != 0 {
		t.Fatalf("GetStoredSourceNum(src2) = %d, %v, want 0, nil", n, err)
	}
}

func TestStoreRepresentationNoKey(t *testing.T) {
	dir := t.TempDir()
	b, _ := Open(dir)

	src := writeFile(t, dir, "src1.txt", "source1\n")
	result := writeFile(t, dir, "result1.txt", "result1\n")

	sr, err := b.StoreRepresentation(src, result, "")
	if err != nil {
		t.Fatalf("StoreRepresentation failed: %v", err)
	}
	if sr != "1_1" {
		t.Errorf("StoreRepresentation returned %q, want 1_1", sr)
	}

	srcCopy := filepath.Join(dir, "sources", "source_1")
	data, err := os.ReadFile(srcCopy)
	if err != nil || string(data) != "source1\n" {
		t.Errorf("source copy mismatch: %q, %v", data, err)
	}

	resultCopy := filepath.Join(dir, "repr", "1", "1", "result1.txt")
	data, err = os.ReadFile(resultCopy)
	if err != nil || string(data) != "result1\n" {
		t.Errorf("result copy mismatch: %q, %v", data, err)
	}

	keyData, err := os.ReadFile(filepath.Join(dir, "keys", "1", "1.key"))
	if err != nil || string(keyData) != "" {
		t.Errorf("key file mismatch: %q, %v", keyData, err)
	}
}

func TestStoreRepresentationUpdatesExistingRepr(t *testing.T) {
	dir := t.TempDir()
	b, _ := Open(dir)

	src := writeFile(t, dir, "src1.txt", "source1\n")
	result1 := writeFile(t, dir, "result1.txt", "result1\n")
	result2 := writeFile(t, dir, "result2.txt", "result2\n")

	sr1, err := b.StoreRepresentation(src, result1, "mykey")
	if err != nil {
		t.Fatalf("first StoreRepresentation failed: %v", err)
	}
	sr2, err := b.StoreRepresentation(src, result2, "mykey")
	if err != nil {
		t.Fatalf("second StoreRepresentation failed: %v", err)
	}
	if sr1 != "1_1" || sr2 != "1_1" {
		t.Fatalf("expected stable identifier across update, got %q then %q", sr1, sr2)
	}

	reprDirPath := filepath.Join(dir, "repr", "1", "1")
	if _, err := os.Stat(filepath.Join(reprDirPath, "result1.txt")); !os.IsNotExist(err) {
		t.Errorf("expected old artifact to be removed")
	}
	data, err := os.ReadFile(filepath.Join(reprDirPath, "result2.txt"))
	if err != nil || string(data) != "result2\n" {
		t.Errorf("new artifact mismatch: %q, %v", data, err)
	}
}

func TestStoreRepresentationDistinctKeysGetDistinctRepr(t *testing.T) {
	dir := t.TempDir()
	b, _ := Open(dir)
	src := writeFile(t, dir, "src1.txt", "source1\n")

	sr1, err := b.StoreRepresentation(src, writeFile(t, dir, "result1.txt", "r1\n"), "foo")
	if err != nil {
		t.Fatalf("StoreRepresentation(foo) failed: %v", err)
	}
	sr2, err := b.StoreRepresentation(src, writeFile(t, dir, "result2.txt", "r2\n"), "bar")
	if err != nil {
		t.Fatalf("StoreRepresentation(bar) failed: %v", err)
	}
	if sr1 == sr2 {
		t.Errorf("distinct RKeys produced identical representation numbers: %q", sr1)
	}
	if sr1 != "1_1" || sr2 != "1_2" {
		t.Errorf("unexpected representation numbering: %q, %q", sr1, sr2)
	}
}

func TestCollisionSafety(t *testing.T) {
	dir := t.TempDir()
	b, _ := Open(dir)

	src1 := writeFile(t, dir, "src1.txt", "one\n")
	src2 := writeFile(t, dir, "src2.txt", "two\n")

	sr1, err := b.StoreRepresentation(src1, writeFile(t, dir, "r1.txt", "r1\n"), "k1")
	if err != nil {
		t.Fatalf("StoreRepresentation(src1) failed: %v", err)
	}
	sr2, err := b.StoreRepresentation(src2, writeFile(t, dir, "r2.txt", "r2\n"), "k1")
	if err != nil {
		t.Fatalf("StoreRepresentation(src2) failed: %v", err)
	}
	if sr1 == sr2 {
		t.Fatalf("byte-distinct sources in a colliding bucket got identical identifiers: %q", sr1)
	}
	if sr1 != "1_1" || sr2 != "2_1" {
		t.Errorf("unexpected source numbering: %q, %q", sr1, sr2)
	}
}

func TestGetRepresentationAndKeys(t *testing.T) {
	dir := t.TempDir()
	b, _ := Open(dir)

	keys, err := b.Keys()
	if err != nil || len(keys) != 0 {
		t.Fatalf("Keys() on fresh bucket = %v, %v, want empty", keys, err)
	}

	src := writeFile(t, dir, "src1.txt", "source1\n")
	sr, err := b.StoreRepresentation(src, writeFile(t, dir, "result1.txt", "result1\n"), "mykey")
	if err != nil {
		t.Fatalf("StoreRepresentation failed: %v", err)
	}

	path, err := b.GetRepresentation(sr)
	if err != nil {
		t.Fatalf("GetRepresentation failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "result1\n" {
		t.Errorf("GetRepresentation content mismatch: %q, %v", data, err)
	}

	keys, err = b.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != sr {
		t.Errorf("Keys() = %v, want [%s]", keys, sr)
	}
}

func TestGetRepresentationUnstored(t *testing.T) {
	dir := t.TempDir()
	b, _ := Open(dir)
	path, err := b.GetRepresentation("1_1")
	if err != nil {
		t.Fatalf("GetRepresentation failed: %v", err)
	}
	if path != "" {
		t.Errorf("GetRepresentation(unstored) = %q, want empty", path)
	}
}

func TestConcurrentStoreRepresentation(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	src := writeFile(t, dir, "src.txt", "concurrent source\n")

	const n = 16
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result := writeFile(t, dir, filepathSafeName(i), "result\n")
			rk := fingerprint.RKey(filepathSafeName(i))
			results[i], errs[i] = b.StoreRepresentation(src, result, rk)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: StoreRepresentation failed: %v", i, err)
		}
		if seen[results[i]] {
			t.Errorf("duplicate representation identifier %q across concurrent stores", results[i])
		}
		seen[results[i]] = true
	}

	keys, err := b.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != n {
		t.Errorf("Keys() returned %d entries, want %d", len(keys), n)
	}
}

func filepathSafeName(i int) string {
	return "out" + string(rune('a'+i)) + ".txt"
}
