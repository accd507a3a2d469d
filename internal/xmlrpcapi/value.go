// Copyright 2026 Open Boundary Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package xmlrpcapi

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Value is a decoded/encoded XML-RPC <value>. Only the subset of the
// XML-RPC type system this service's methods actually use is supported:
// string, int, boolean, struct, array, and the Apache nil extension.
type Value struct {
	Kind    string // "string", "int", "boolean", "struct", "array", "nil"
	Str     string
	Int     int
	Bool    bool
	Members map[string]Value
	Items   []Value
}

func stringValue(s string) Value { return Value{Kind: "string", Str: s} }
func intValue(n int) Value       { return Value{Kind: "int", Int: n} }
func boolValue(b bool) Value     { return Value{Kind: "boolean", Bool: b} }
func nilValue() Value            { return Value{Kind: "nil"} }
func structValue(m map[string]Value) Value {
	return Value{Kind: "struct", Members: m}
}
func arrayValue(items ...Value) Value { return Value{Kind: "array", Items: items} }

// methodCall is the parsed request: a method name and its ordered params.
type methodCall struct {
	Name   string
	Params []Value
}

// decodeMethodCall parses a <methodCall> document from r.
func decodeMethodCall(r io.Reader) (methodCall, error) {
	dec := xml.NewDecoder(r)
	var call methodCall
	sawMethodName := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return methodCall{}, fmt.Errorf("xmlrpc: decoding methodCall: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "methodName":
			name, err := readCharData(dec, start.Name)
			if err != nil {
				return methodCall{}, err
			}
			call.Name = strings.TrimSpace(name)
			sawMethodName = true
		case "params":
			params, err := decodeParams(dec)
			if err != nil {
				return methodCall{}, err
			}
			call.Params = params
		}
	}

	if !sawMethodName || call.Name == "" {
		return methodCall{}, fmt.Errorf("xmlrpc: methodCall is missing methodName")
	}
	return call, nil
}

func decodeParams(dec *xml.Decoder) ([]Value, error) {
	var values []Value
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("xmlrpc: decoding params: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "param" {
				v, err := expectValue(dec)
				if err != nil {
					return nil, err
				}
				values = append(values, v)
			}
		case xml.EndElement:
			if t.Name.Local == "params" {
				return values, nil
			}
		}
	}
}

// expectValue reads up to and including a <value> element and decodes it.
func expectValue(dec *xml.Decoder) (Value, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, fmt.Errorf("xmlrpc: expecting value: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok && start.Name.Local == "value" {
			return decodeValue(dec)
		}
	}
}

// decodeValue decodes the contents of a <value> element; the caller has
// already consumed its StartElement.
func decodeValue(dec *xml.Decoder) (Value, error) {
	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, fmt.Errorf("xmlrpc: decoding value: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			text.Write(t)
		case xml.StartElement:
			switch t.Name.Local {
			case "string":
				s, err := readCharData(dec, t.Name)
				return stringValue(s), err
			case "i4", "int":
				s, err := readCharData(dec, t.Name)
				if err != nil {
					return Value{}, err
				}
				n, convErr := strconv.Atoi(strings.TrimSpace(s))
				if convErr != nil {
					return Value{}, fmt.Errorf("xmlrpc: invalid integer %q: %w", s, convErr)
				}
				return intValue(n), nil
			case "boolean":
				s, err := readCharData(dec, t.Name)
				if err != nil {
					return Value{}, err
				}
				return boolValue(strings.TrimSpace(s) == "1"), nil
			case "nil":
				if err := skipElement(dec, t.Name); err != nil {
					return Value{}, err
				}
				return nilValue(), nil
			case "struct":
				return decodeStruct(dec)
			case "array":
				return decodeArray(dec)
			default:
				if err := skipElement(dec, t.Name); err != nil {
					return Value{}, err
				}
			}
		case xml.EndElement:
			// Reached </value> with only character data: a bare string.
			return stringValue(text.String()), nil
		}
	}
}

func decodeStruct(dec *xml.Decoder) (Value, error) {
	members := make(map[string]Value)
	for {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, fmt.Errorf("xmlrpc: decoding struct: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "member" {
				continue
			}
			name, value, err := decodeMember(dec)
			if err != nil {
				return Value{}, err
			}
			members[name] = value
		case xml.EndElement:
			if t.Name.Local == "struct" {
				return structValue(members), nil
			}
		}
	}
}

func decodeMember(dec *xml.Decoder) (string, Value, error) {
	var name string
	var value Value
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", Value{}, fmt.Errorf("xmlrpc: decoding member: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "name":
				name, err = readCharData(dec, t.Name)
				if err != nil {
					return "", Value{}, err
				}
			case "value":
				value, err = decodeValue(dec)
				if err != nil {
					return "", Value{}, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "member" {
				return name, value, nil
			}
		}
	}
}

func decodeArray(dec *xml.Decoder) (Value, error) {
	var items []Value
	for {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, fmt.Errorf("xmlrpc: decoding array: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "value" {
				v, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, v)
			}
		case xml.EndElement:
			if t.Name.Local == "array" {
				return arrayValue(items...), nil
			}
		}
	}
}

// readCharData reads character data up to the matching end element for name.
func readCharData(dec *xml.Decoder, name xml.Name) (string, error) {
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("xmlrpc: reading %s: %w", name.Local, err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.EndElement:
			if t.Name.Local == name.Local {
				return b.String(), nil
			}
		}
	}
}

// skipElement discards tokens until the matching end element for name.
func skipElement(dec *xml.Decoder, name xml.Name) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("xmlrpc: skipping %s: %w", name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == name.Local {
				depth++
			}
		case xml.EndElement:
			if t.Name.Local == name.Local {
				if depth == 0 {
					return nil
				}
				depth--
			}
		}
	}
}

// encodeMethodResponse writes a successful <methodResponse> wrapping v.
func encodeMethodResponse(w io.Writer, v Value) error {
	fmt.Fprint(w, xml.Header)
	fmt.Fprint(w, "<methodResponse><params><param>")
	if err := encodeValue(w, v); err != nil {
		return err
	}
	fmt.Fprint(w, "</param></params></methodResponse>")
	return nil
}

// encodeFault writes a <methodResponse><fault> with the given code/message.
func encodeFault(w io.Writer, code int, message string) error {
	fmt.Fprint(w, xml.Header)
	fmt.Fprint(w, "<methodResponse><fault>")
	err := encodeValue(w, structValue(map[string]Value{
		"faultCode":   intValue(code),
		"faultString": stringValue(message),
	}))
	fmt.Fprint(w, "</fault></methodResponse>")
	return err
}

func encodeValue(w io.Writer, v Value) error {
	fmt.Fprint(w, "<value>")
	switch v.Kind {
	case "string":
		fmt.Fprint(w, "<string>")
		if err := xml.EscapeText(w, []byte(v.Str)); err != nil {
			return err
		}
		fmt.Fprint(w, "</string>")
	case "int":
		fmt.Fprintf(w, "<int>%d</int>", v.Int)
	case "boolean":
		b := 0
		if v.Bool {
			b = 1
		}
		fmt.Fprintf(w, "<boolean>%d</boolean>", b)
	case "nil":
		fmt.Fprint(w, "<nil/>")
	case "struct":
		fmt.Fprint(w, "<struct>")
		for name, member := range v.Members {
			fmt.Fprint(w, "<member><name>")
			if err := xml.EscapeText(w, []byte(name)); err != nil {
				return err
			}
			fmt.Fprint(w, "</name>")
			if err := encodeValue(w, member); err != nil {
				return err
			}
			fmt.Fprint(w, "</member>")
		}
		fmt.Fprint(w, "</struct>")
	case "array":
		fmt.Fprint(w, "<array><data>")
		for _, item := range v.Items {
			if err := encodeValue(w, item); err != nil {
				return err
			}
		}
		fmt.Fprint(w, "</data></array>")
	default:
		return fmt.Errorf("xmlrpc: cannot encode value of kind %q", v.Kind)
	}
	fmt.Fprint(w, "</value>")
	return nil
}
