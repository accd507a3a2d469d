// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package xmlrpcapi exposes the conversion façade over a minimal XML-RPC
// server mounted at /RPC2, answering convert_locally, get_cached, and the
// standard introspection methods.
package xmlrpcapi

import (
	"fmt"
	"net/http"

	logging "github.com/ipfs/go-log/v2"

	"github.com/google/uuid"

	"github.com/sbywater/oocache/internal/cachemanager"
	"github.com/sbywater/oocache/internal/convert"
	"github.com/sbywater/oocache/internal/fingerprint"
)

var log = logging.Logger("oocache/xmlrpcapi")

var methodHelp = map[string]string{
	"convert_locally":     "convert_locally(srcPath, opts) returns [artifactPath, cid, metadata]",
	"get_cached":          "get_cached(cid) returns the cached artifact path, or nil on a miss",
	"system.listMethods":  "returns the list of methods this server exposes",
	"system.methodHelp":   "system.methodHelp(name) returns a one-line description of name",
}

// Server wires the façade to XML-RPC.
type Server struct {
	Converter convert.Converter
	CacheDir  string
}

// Handler returns the http.Handler to mount at /RPC2.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveRPC2)
}

func (s *Server) serveRPC2(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "XML-RPC requires POST", http.StatusBadRequest)
		return
	}

	reqID := uuid.NewString()
	w.Header().Set("X-Request-Id", reqID)

	call, err := decodeMethodCall(r.Body)
	if err != nil {
		log.Debugf("request %s: malformed method call: %v", reqID, err)
		w.Header().Set("Content-Type", "text/xml; charset=UTF-8")
		encodeFault(w, 400, err.Error())
		return
	}
	log.Debugf("request %s: method %s", reqID, call.Name)

	result, err := s.dispatch(r, call)
	w.Header().Set("Content-Type", "text/xml; charset=UTF-8")
	if err != nil {
		log.Errorf("request %s: method %s failed: %v", reqID, call.Name, err)
		encodeFault(w, 500, err.Error())
		return
	}
	if err := encodeMethodResponse(w, result); err != nil {
		log.Errorf("request %s: encoding response for %s: %v", reqID, call.Name, err)
	}
}

func (s *Server) dispatch(r *http.Request, call methodCall) (Value, error) {
	switch call.Name {
	case "convert_locally":
		return s.convertLocally(r, call.Params)
	case "get_cached":
		return s.getCached(call.Params)
	case "system.listMethods":
		names := make([]Value, 0, len(methodHelp))
		for name := range methodHelp {
			names = append(names, stringValue(name))
		}
		return arrayValue(names...), nil
	case "system.methodHelp":
		if len(call.Params) < 1 || call.Params[0].Kind != "string" {
			return Value{}, fmt.Errorf("system.methodHelp requires a method name string")
		}
		return stringValue(methodHelp[call.Params[0].Str]), nil
	default:
		return Value{}, fmt.Errorf("unknown method %q", call.Name)
	}
}

func (s *Server) convertLocally(r *http.Request, params []Value) (Value, error) {
	if len(params) < 1 || params[0].Kind != "string" {
		return Value{}, fmt.Errorf("convert_locally requires a source path string")
	}
	var opts fingerprint.Options
	if len(params) >= 2 && params[1].Kind == "struct" {
		opts = optionsFromStruct(params[1])
	}

	path, cid, meta, err := convert.ConvertDoc(r.Context(), s.Converter, params[0].Str, opts, s.CacheDir)
	if err != nil {
		return Value{}, err
	}

	cidValue := nilValue()
	if cid != nil {
		cidValue = stringValue(cid.String())
	}

	metaValue := structValue(map[string]Value{
		"error":       boolValue(meta.Error),
		"oocp_status": intValue(meta.OOCPStatus),
	})

	return arrayValue(stringValue(path), cidValue, metaValue), nil
}

func (s *Server) getCached(params []Value) (Value, error) {
	if len(params) < 1 || params[0].Kind != "string" {
		return Value{}, fmt.Errorf("get_cached requires a cid string")
	}
	if s.CacheDir == "" {
		return nilValue(), nil
	}

	cm, err := cachemanager.New(s.CacheDir)
	if err != nil {
		return Value{}, err
	}
	path, err := cm.GetCachedFile(params[0].Str)
	if err != nil {
		return Value{}, err
	}
	if path == "" {
		return nilValue(), nil
	}
	return stringValue(path), nil
}

func optionsFromStruct(v Value) fingerprint.Options {
	opts := fingerprint.Options{}
	for k, member := range v.Members {
		switch member.Kind {
		case "string":
			opts[k] = member.Str
		case "int":
			opts[k] = member.Int
		case "boolean":
			opts[k] = member.Bool
		}
	}
	return opts
}
