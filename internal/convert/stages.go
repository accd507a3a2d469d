// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package convert

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sbywater/oocache/internal/cachemanager"
	ooerrors "github.com/sbywater/oocache/internal/errors"
	"github.com/sbywater/oocache/internal/fingerprint"
)

// resolveSourceStage resolves a bare filename against the current working
// directory and fails loudly if the source cannot be stat'ed, e.g. because
// it does not exist (spec.md §4.5,
// §7 "argument error").
type resolveSourceStage struct{}

func (resolveSourceStage) Name() string { return "resolve-source" }

func (resolveSourceStage) Run(ctx *Context) error {
	abs, err := filepath.Abs(ctx.SrcPath)
	if err != nil {
		return fmt.Errorf("convert: resolving source path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return ooerrors.SourceNotFoundError(ctx.SrcPath, err)
	}
	ctx.SrcPath = abs
	return nil
}

// lookupCacheStage consults the cache when cacheDir is set. A hit short-
// circuits the remaining stages.
type lookupCacheStage struct{}

func (lookupCacheStage) Name() string { return "lookup-cache" }

func (lookupCacheStage) Run(ctx *Context) error {
	rk, err := fingerprint.Fingerprint(ctx.Opts)
	if err != nil {
		return fmt.Errorf("convert: fingerprinting options: %w", err)
	}
	ctx.RKey = rk

	if ctx.CacheDir == "" {
		return nil
	}

	cm, err := cachemanager.New(ctx.CacheDir)
	if err != nil {
		return err
	}
	ctx.cm = cm

	path, cid, err := cm.GetCachedFileBySource(ctx.SrcPath, ctx.RKey)
	if err != nil {
		return err
	}
	if path == "" {
		return nil
	}

	log.Debugf("cache hit for %s: %s", ctx.SrcPath, cid)
	ctx.ArtifactPath = path
	ctx.CID = cid
	ctx.FromCache = true
	ctx.Meta = Metadata{Error: false, OOCPStatus: 0}
	return nil
}

// invokeConverterStage calls the external converter on a cache miss.
type invokeConverterStage struct{}

func (invokeConverterStage) Name() string { return "invoke-converter" }

func (s invokeConverterStage) Run(ctx *Context) error {
	if ctx.FromCache {
		return nil
	}
	if ctx.Converter == nil {
		return fmt.Errorf("convert: no converter configured")
	}

	artifactPath, meta, err := ctx.Converter.Convert(ctx.ctx, ctx.SrcPath, ctx.Opts)
	if err != nil {
		return fmt.Errorf("convert: invoking converter: %w", err)
	}
	ctx.ArtifactPath = artifactPath
	ctx.Meta = meta
	return nil
}

// registerResultStage registers a freshly produced artifact into the cache
// and points ArtifactPath at the cached copy, so a miss and a later hit
// return the same path. Conversion failures and cache-disabled runs skip
// registration (spec.md §4.5, §7 "conversion failure ... no cache entry is
// created").
type registerResultStage struct{}

func (registerResultStage) Name() string { return "register-result" }

func (registerResultStage) Run(ctx *Context) error {
	if ctx.FromCache || ctx.CacheDir == "" || ctx.Meta.Error {
		return nil
	}

	cid, err := ctx.cm.RegisterDoc(ctx.SrcPath, ctx.ArtifactPath, ctx.RKey)
	if err != nil {
		return err
	}
	cached, err := ctx.cm.GetCachedFile(cid)
	if err != nil {
		return err
	}
	if cached != "" {
		ctx.ArtifactPath = cached
	}
	ctx.CID = cid
	return nil
}
