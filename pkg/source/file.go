package source

import (
	"bytes"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/layerconf/internal/textenc"
	"github.com/ajitpratap0/layerconf/pkg/errors"
	"github.com/ajitpratap0/layerconf/pkg/json"
)

// DecodeFunc decodes the UTF-8 contents of a config file into a map.
type DecodeFunc func(data []byte) (map[string]interface{}, error)

var formats = struct {
	sync.RWMutex
	m map[string]DecodeFunc
}{
	m: map[string]DecodeFunc{
		"toml": decodeTOML,
		"yaml": decodeYAML,
		"yml":  decodeYAML,
		"json": json.DecodeObject,
	},
}

// RegisterFormat makes a decoder available under name, for use as a config
// file extension or as a conf_custom_ext_handler target.
func RegisterFormat(name string, fn DecodeFunc) {
	formats.Lock()
	defer formats.Unlock()
	formats.m[name] = fn
}

// HasFormat reports whether a decoder is registered under name
func HasFormat(name string) bool {
	_, ok := lookupFormat(name)
	return ok
}

// Formats returns the registered format names, sorted
func Formats() []string {
	formats.RLock()
	defer formats.RUnlock()
	out := make([]string, 0, len(formats.m))
	for k := range formats.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func lookupFormat(name string) (DecodeFunc, bool) {
	formats.RLock()
	defer formats.RUnlock()
	fn, ok := formats.m[name]
	return fn, ok
}

// FileOptions controls ReadFile
type FileOptions struct {
	Encoding      string
	Format        string
	IgnoreMissing bool
}

// ReadFile reads and decodes one structured config file.
func ReadFile(path string, opts FileOptions) (map[string]interface{}, error) {
	decode, ok := lookupFormat(opts.Format)
	if !ok {
		return nil, errors.New(errors.ErrorTypeConfig, "unknown config file format").
			WithDetail("format", opts.Format).WithDetail("path", path)
	}
	raw, found, err := readBytes("config file", path, opts.IgnoreMissing)
	if err != nil {
		return nil, err
	}
	if !found {
		return map[string]interface{}{}, nil
	}
	text, err := textenc.Decode(raw, opts.Encoding)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "failed to decode config file").WithDetail("path", path)
	}
	m, err := decode(text)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to parse config file").
			WithDetail("path", path).WithDetail("format", opts.Format)
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, nil
}

// Probe finds the first existing file base+"."+ext for ext in exts. An empty
// extension probes base itself. The format is the custom handler registered
// for the extension, else the extension.
func Probe(base string, exts []string, custom map[string]string) (path, format string, ok bool) {
	for _, ext := range exts {
		candidate := base
		if ext != "" {
			candidate = base + "." + strings.TrimPrefix(ext, ".")
		}
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		format = ext
		if h, found := custom[ext]; found {
			format = h
		}
		return candidate, format, true
	}
	return "", "", false
}

func decodeTOML(data []byte) (map[string]interface{}, error) {
	m := map[string]interface{}{}
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeYAML(data []byte) (map[string]interface{}, error) {
	m := map[string]interface{}{}
	if len(bytes.TrimSpace(data)) == 0 {
		return m, nil
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
