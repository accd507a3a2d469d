// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package httpapi exposes the conversion façade over HTTP: POST /docs,
// GET /docs/{cid}, GET /docs/new. Handlers hold no policy of their own —
// they translate HTTP requests into convert.ConvertDoc calls and back.
package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	logging "github.com/ipfs/go-log/v2"

	"github.com/sbywater/oocache/internal/cachemanager"
	"github.com/sbywater/oocache/internal/convert"
	ooerrors "github.com/sbywater/oocache/internal/errors"
	"github.com/sbywater/oocache/internal/fingerprint"
	"github.com/sbywater/oocache/internal/openapi"
	"github.com/sbywater/oocache/internal/optionschema"
	"github.com/sbywater/oocache/internal/rangeio"
)

var log = logging.Logger("oocache/httpapi")

const maxUploadMemory = 32 << 20 // 32 MiB held in memory before spilling to disk

// Server wires the façade to net/http.
type Server struct {
	Converter convert.Converter
	CacheDir  string // "" disables caching for this server instance

	validator *optionschema.Validator
}

// Handler builds the validated, routed http.Handler for the document API.
func (s *Server) Handler() (http.Handler, error) {
	doc, err := openapi.Load()
	if err != nil {
		return nil, err
	}
	router, err := openapi.NewRouter(doc)
	if err != nil {
		return nil, err
	}

	validator, err := optionschema.New()
	if err != nil {
		return nil, fmt.Errorf("compiling option schema: %w", err)
	}
	s.validator = validator

	mux := http.NewServeMux()
	mux.HandleFunc("GET /docs/new", s.handleNewDocForm)
	mux.HandleFunc("POST /docs", s.handleCreateDoc)
	mux.HandleFunc("GET /docs/{cid}", s.handleGetDoc)

	return withRequestID(validateAgainstOpenAPI(router, mux)), nil
}

func (s *Server) handleNewDocForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<body>
<form action="/docs" method="post" enctype="multipart/form-data">
  <input type="file" name="doc">
  <input type="hidden" name="CREATE" value="1">
  <input type="text" name="out_fmt" placeholder="pdf">
  <button type="submit">Convert</button>
</form>
</body>
</html>`)
}

func (s *Server) handleCreateDoc(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "malformed multipart request: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("doc")
	if err != nil {
		http.Error(w, "missing \"doc\" file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	tmpSrc, err := spoolUpload(file, header.Filename)
	if err != nil {
		log.Errorf("spooling upload: %v", err)
		http.Error(w, "failed to receive upload", http.StatusInternalServerError)
		return
	}
	defer os.Remove(tmpSrc)

	opts := optionsFromForm(r)
	if s.validator != nil {
		if fieldErrors := s.validator.Validate(opts); len(fieldErrors) > 0 {
			uerr := ooerrors.InvalidOptionsError(fieldErrors)
			http.Error(w, uerr.Error(), http.StatusBadRequest)
			return
		}
	}

	path, cid, meta, err := convert.ConvertDoc(r.Context(), s.Converter, tmpSrc, opts, s.CacheDir)
	if err != nil {
		log.Errorf("ConvertDoc: %v", err)
		http.Error(w, "conversion failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	if meta.Error {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, `{"error":true,"oocp_status":%d}`, meta.OOCPStatus)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Errorf("reading artifact %s: %v", path, err)
		http.Error(w, "failed to read converted artifact", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeForPath(path))
	if cid != nil {
		w.Header().Set("Location", "/docs/"+cid.String())
		w.WriteHeader(http.StatusCreated)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	w.Write(data)
}

func (s *Server) handleGetDoc(w http.ResponseWriter, r *http.Request) {
	cid := r.PathValue("cid")
	if s.CacheDir == "" {
		http.NotFound(w, r)
		return
	}

	cm, err := cachemanager.New(s.CacheDir)
	if err != nil {
		log.Errorf("opening cache manager: %v", err)
		http.Error(w, "cache unavailable", http.StatusInternalServerError)
		return
	}

	path, err := cm.GetCachedFile(cid)
	if err != nil {
		log.Errorf("GetCachedFile(%s): %v", cid, err)
		http.Error(w, "cache lookup failed", http.StatusInternalServerError)
		return
	}
	if path == "" {
		http.NotFound(w, r)
		return
	}

	serveArtifact(w, r, path)
}

// serveArtifact streams path to w, honoring a single-range "Range" request
// header via internal/rangeio so a large cached artifact is never fully
// buffered just to serve a byte range of it.
func serveArtifact(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Errorf("opening cached artifact %s: %v", path, err)
		http.Error(w, "failed to read cached artifact", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		log.Errorf("stating cached artifact %s: %v", path, err)
		http.Error(w, "failed to read cached artifact", http.StatusInternalServerError)
		return
	}
	size := info.Size()

	w.Header().Set("Content-Type", contentTypeForPath(path))
	w.Header().Set("Accept-Ranges", "bytes")

	start, stop, hasRange := parseRange(r.Header.Get("Range"), size)
	if !hasRange {
		start, stop = 0, size
	} else {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, stop-1, size))
		w.WriteHeader(http.StatusPartialContent)
	}

	for chunk := range rangeio.Chunks(f, start, stop, rangeio.DefaultChunkSize) {
		if _, err := w.Write(chunk); err != nil {
			log.Errorf("writing response for %s: %v", path, err)
			return
		}
	}
}

// parseRange parses a "bytes=start-end" Range header against a resource of
// the given size. Only a single range is supported; anything else (missing
// header, multiple ranges, malformed syntax) reports hasRange=false so the
// caller falls back to serving the whole resource.
func parseRange(header string, size int64) (start, stop int64, hasRange bool) {
	const prefix = "bytes="
	if header == "" || !strings.HasPrefix(header, prefix) || strings.Contains(header, ",") {
		return 0, 0, false
	}
	spec := strings.TrimPrefix(header, prefix)
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}

	if parts[0] == "" {
		// suffix range: last N bytes
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		return size - n, size, true
	}

	s, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || s < 0 || s >= size {
		return 0, 0, false
	}
	if parts[1] == "" {
		return s, size, true
	}
	e, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || e < s {
		return 0, 0, false
	}
	if e >= size-1 {
		e = size - 1
	}
	return s, e + 1, true
}

// optionsFromForm translates flat multipart fields into fingerprint.Options
// via optionschema.FromFlatFields, the same alias table cmd/oooclient's
// flags go through, so the HTTP API and the CLI agree on what "out_fmt"
// means at the cache boundary (spec.md §4.6).
func optionsFromForm(r *http.Request) fingerprint.Options {
	fields := make(map[string]string, len(r.MultipartForm.Value))
	for key, vals := range r.MultipartForm.Value {
		if len(vals) == 0 {
			continue
		}
		switch key {
		case "CREATE", "doc":
			continue
		default:
			fields[key] = vals[0]
		}
	}
	return optionschema.FromFlatFields(fields)
}

func spoolUpload(src io.Reader, originalName string) (string, error) {
	f, err := os.CreateTemp("", "oocache-upload-*-"+filepath.Base(originalName))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, src); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
