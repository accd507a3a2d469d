// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package convert implements the conversion façade: given a source document
// and a set of options, it either serves a cached artifact or invokes an
// external Converter and registers the result. The façade holds no policy
// of its own — frontends (HTTP, XML-RPC, the CLI) are thin translators over
// ConvertDoc.
package convert

import (
	"context"
	"fmt"

	logging "github.com/ipfs/go-log/v2"

	"github.com/sbywater/oocache/internal/cachemanager"
	"github.com/sbywater/oocache/internal/fingerprint"
	"github.com/sbywater/oocache/internal/pipeline"
)

var log = logging.Logger("oocache/convert")

// Metadata is the conversion outcome record that travels as data rather
// than as an error (spec.md §7: "conversion errors travel as data, not
// exceptions").
type Metadata struct {
	Error      bool `json:"error"`
	OOCPStatus int  `json:"oocp_status"`
}

// Converter is the external office-engine boundary. Implementations may
// shell out to a real conversion service; StubConverter provides a
// dependency-free stand-in for tests and for running the server without
// one.
type Converter interface {
	Convert(ctx context.Context, src string, opts fingerprint.Options) (artifactPath string, meta Metadata, err error)
}

// Context carries state between the façade's pipeline stages.
type Context struct {
	ctx context.Context

	SrcPath   string
	Opts      fingerprint.Options
	CacheDir  string
	Converter Converter

	cm *cachemanager.CacheManager

	RKey         fingerprint.RKey
	FromCache    bool
	ArtifactPath string
	CID          string
	Meta         Metadata
}

// ConvertDoc resolves srcPath (against the cache keyed by opts) or invokes
// converter and, when cacheDir is non-empty, registers the result. It is
// the single entry point cmd/oooclient, internal/httpapi, and
// internal/xmlrpcapi all call.
func ConvertDoc(ctx context.Context, converter Converter, srcPath string, opts fingerprint.Options, cacheDir string) (path string, cid *cachemanager.CID, meta Metadata, err error) {
	pctx := &Context{
		ctx:       ctx,
		SrcPath:   srcPath,
		Opts:      opts,
		CacheDir:  cacheDir,
		Converter: converter,
	}

	p := pipeline.New[Context](
		resolveSourceStage{},
		lookupCacheStage{},
		invokeConverterStage{},
		registerResultStage{},
	)

	if err := p.Run(pctx); err != nil {
		return "", nil, Metadata{}, err
	}

	var out *cachemanager.CID
	if pctx.CID != "" {
		h, sr := pctx.cm.Dissolve(pctx.CID)
		if h == "" {
			return "", nil, Metadata{}, fmt.Errorf("convert: registered a CID the cache manager cannot parse back: %q", pctx.CID)
		}
		out = &cachemanager.CID{Hash: h, SR: sr}
	}

	return pctx.ArtifactPath, out, pctx.Meta, nil
}
