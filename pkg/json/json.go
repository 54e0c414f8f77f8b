// Package json wraps goccy/go-json for the value shapes layerconf works with:
// loosely typed maps decoded from files and environment strings.
package json

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	gojson "github.com/goccy/go-json"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 1024))
	},
}

// Marshal encodes v. Map keys are emitted in sorted order.
func Marshal(v interface{}) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	enc := gojson.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	return append([]byte(nil), out...), nil
}

// MarshalIndent encodes v with indentation
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Unmarshal decodes data into v
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// Decode reads a single JSON document from r. Numbers are normalized, see Normalize.
func Decode(r io.Reader) (interface{}, error) {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return Normalize(v), nil
}

// DecodeObject decodes data that must hold a JSON object.
func DecodeObject(data []byte) (map[string]interface{}, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]interface{}{}, nil
	}
	if !gojson.Valid(data) {
		return nil, fmt.Errorf("json: invalid document")
	}
	v, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("json: expected object, got %T", v)
	}
	return m, nil
}

// ParseValue parses a raw string as a JSON value. Integral numbers become
// int64, the rest float64.
func ParseValue(raw string) (interface{}, error) {
	if !gojson.Valid([]byte(raw)) {
		return nil, fmt.Errorf("json: invalid value %q", raw)
	}
	return Decode(strings.NewReader(raw))
}

// Normalize converts json.Number leaves into int64 or float64, recursively.
func Normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case gojson.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			if f == math.Trunc(f) && math.Abs(f) < 1<<53 && !strings.ContainsAny(string(t), ".eE") {
				return int64(f)
			}
			return f
		}
		return string(t)
	case map[string]interface{}:
		for k, val := range t {
			t[k] = Normalize(val)
		}
		return t
	case []interface{}:
		for i, val := range t {
			t[i] = Normalize(val)
		}
		return t
	default:
		return v
	}
}

// Valid reports whether data is a well-formed JSON document
func Valid(data []byte) bool {
	return gojson.Valid(data)
}
