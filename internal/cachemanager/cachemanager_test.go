// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cachemanager

import (
	"os"
	"path/filepath"
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

func TestDissolveCompose(t *testing.T) {
	cm, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	composed := cm.Compose("somefakedhash", "3")
	if composed != "somefakedhash_3" {
		t.Errorf("Compose = %q, want somefakedhash_3", composed)
	}

	h, sr := cm.Dissolve("737b337e605199de28b3b64c674f9422_1_1")
	if h != "737b337e605199de28b3b64c674f9422" || sr != "1_1" {
		t.Errorf("Dissolve = (%q, %q)", h, sr)
	}

	h, sr = cm.Dissolve("asd")
	if h != "" || sr != "" {
		t.Errorf("Dissolve(asd) = (%q, %q), want (\"\", \"\")", h, sr)
	}

	h, sr = cm.Dissolve("")
	if h != "" || sr != "" {
		t.Errorf("Dissolve(\"\") = (%q, %q), want (\"\", \"\")", h, sr)
	}
}

func TestNewCreatesCacheDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected cache dir to not exist yet")
	}
	if _, err := New(dir); err != nil {
		t.Fatalf("New failed: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Errorf("expected cache dir to be created")
	}
}

func TestNewFailsLoudlyOnFile(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "not-a-dir")
	writeFile(t, dir, "not-a-dir", "oops")

	if _, err := New(filePath); err == nil {
		t.Fatal("expected error when cache dir is a file")
	}
}

func TestBucketPathDefaultLevel(t *testing.T) {
	cm, err := New(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if cm.Level() != 1 {
		t.Fatalf("default level = %d, want 1", cm.Level())
	}

	h := "737b337e605199de28b3b64c674f9422"
	path, err := cm.BucketPath(h)
	if err != nil {
		t.Fatalf("BucketPath failed: %v", err)
	}
	want := filepath.Join(cm.CacheDir(), h[:2], h)
	if path != want {
		t.Errorf("BucketPath = %q, want %q", path, want)
	}
}

func TestBucketPathLevel3(t *testing.T) {
	cm, err := New(t.TempDir(), WithLevel(3))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	h := "737b337e605199de28b3b64c674f9422"
	path, err := cm.BucketPath(h)
	if err != nil {
		t.Fatalf("BucketPath failed: %v", err)
	}
	want := filepath.Join(cm.CacheDir(), h[0:2], h[2:4], h[4:6], h)
	if path != want {
		t.Errorf("BucketPath(level 3) = %q, want %q", path, want)
	}
}

func TestRegisterDocAndGetCachedFile(t *testing.T) {
	dir := t.TempDir()
	cm, err := New(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	src := writeFile(t, dir, "src1.txt", "source1\n")
	artifact := writeFile(t, dir, "result1.txt", "result1\n")

	cid, err := cm.RegisterDoc(src, artifact, "")
	if err != nil {
		t.Fatalf("RegisterDoc failed: %v", err)
	}
	const want = "737b337e605199de28b3b64c674f9422_1_1"
	if cid != want {
		t.Errorf("RegisterDoc CID = %q, want %q", cid, want)
	}

	path, err := cm.GetCachedFile(cid)
	if err != nil {
		t.Fatalf("GetCachedFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "result1\n" {
		t.Errorf("cached content mismatch: %q, %v", data, err)
	}
}

func TestRegisterDocUpdateInPlace(t *testing.T) {
	dir := t.TempDir()
	cm, err := New(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	src := writeFile(t, dir, "src1.txt", "source1\n")
	art1 := writeFile(t, dir, "r1.txt", "first\n")
	art2 := writeFile(t, dir, "r2.txt", "second\n")

	cid1, err := cm.RegisterDoc(src, art1, "mykey")
	if err != nil {
		t.Fatalf("first RegisterDoc failed: %v", err)
	}
	cid2, err := cm.RegisterDoc(src, art2, "mykey")
	if err != nil {
		t.Fatalf("second RegisterDoc failed: %v", err)
	}
	if cid1 != cid2 {
		t.Fatalf("expected stable CID on update, got %q then %q", cid1, cid2)
	}

	path, err := cm.GetCachedFile(cid2)
	if err != nil {
		t.Fatalf("GetCachedFile failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "second\n" {
		t.Errorf("expected updated artifact content, got %q", data)
	}
}

func TestGetCachedFileMiss(t *testing.T) {
	cm, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	path, err := cm.GetCachedFile("737b337e605199de28b3b64c674f9422_1_1")
	if err != nil {
		t.Fatalf("GetCachedFile failed: %v", err)
	}
	if path != "" {
		t.Errorf("GetCachedFile(miss) = %q, want empty", path)
	}

	path, err = cm.GetCachedFile("not-a-valid-docid")
	if err != nil {
		t.Fatalf("GetCachedFile failed: %v", err)
	}
	if path != "" {
		t.Errorf("GetCachedFile(malformed) = %q, want empty", path)
	}
}

func TestGetCachedFileBySource(t *testing.T) {
	dir := t.TempDir()
	cm, err := New(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	src := writeFile(t, dir, "src1.txt", "source1\n")
	artifact := writeFile(t, dir, "result1.txt", "result1\n")

	wantCID, err := cm.RegisterDoc(src, artifact, fingerprint.EmptyRKey)
	if err != nil {
		t.Fatalf("RegisterDoc failed: %v", err)
	}

	path, cid, err := cm.GetCachedFileBySource(src, fingerprint.EmptyRKey)
	if err != nil {
		t.Fatalf("GetCachedFileBySource failed: %v", err)
	}
	if cid != wantCID {
		t.Errorf("GetCachedFileBySource CID = %q, want %q", cid, wantCID)
	}
	if path == "" {
		t.Errorf("GetCachedFileBySource path is empty")
	}

	path, cid, err = cm.GetCachedFileBySource(src, "some-other-rkey")
	if err != nil {
		t.Fatalf("GetCachedFileBySource failed: %v", err)
	}
	if path != "" || cid != "" {
		t.Errorf("GetCachedFileBySource(miss) = (%q, %q), want empty", path, cid)
	}
}

func TestKeysEnumeratesRegisteredCIDs(t *testing.T) {
	dir := t.TempDir()
	cm, err := New(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	src1 := writeFile(t, dir, "src1.txt", "one\n")
	src2 := writeFile(t, dir, "src2.txt", "two\n")

	cid1, err := cm.RegisterDoc(src1, writeFile(t, dir, "r1.txt", "r1\n"), "a")
	if err != nil {
		t.Fatalf("RegisterDoc failed: %v", err)
	}
	cid2, err := cm.RegisterDoc(src2, writeFile(t, dir, "r2.txt", "r2\n"), "b")
	if err != nil {
		t.Fatalf("RegisterDoc failed: %v", err)
	}

	keys, err := cm.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	found := map[string]bool{}
	for _, k := range keys {
		found[k] = true
		path, err := cm.GetCachedFile(k)
		if err != nil || path == "" {
			t.Errorf("Keys() returned %q which GetCachedFile can't resolve: %v", k, err)
		}
	}
	if !found[cid1] || !found[cid2] {
		t.Errorf("Keys() = %v, want to contain %q and %q", keys, cid1, cid2)
	}
}
