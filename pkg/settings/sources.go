package settings

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/layerconf/internal/merge"
	"github.com/ajitpratap0/layerconf/pkg/alias"
	"github.com/ajitpratap0/layerconf/pkg/envmatch"
	"github.com/ajitpratap0/layerconf/pkg/errors"
	"github.com/ajitpratap0/layerconf/pkg/source"
)

// readCLI maps the CLI values when the cli switch is on. Dotted keys
// address nested fields; a nested node sees only the subtree under its
// field's keys.
func readCLI(_ context.Context, req *Request) (map[string]interface{}, error) {
	if !req.Config.Global.CLI || req.CLI == nil {
		return map[string]interface{}{}, nil
	}
	raw, err := source.ReadCLI(req.CLI)
	if err != nil {
		return nil, err
	}
	cs := req.Config.Global.CaseSensitive
	return alias.Mapper{
		CaseSensitive: cs,
		ByName:        true,
		Parse:         envmatch.ParseLeaf,
	}.Map(req.Index, descend(expandDotted(raw), req.Tree, cs))
}

// descend follows tree through data, taking at each level the first key
// whose value is an object. It returns an empty map when a level is missing.
func descend(data map[string]interface{}, tree [][]string, caseSensitive bool) map[string]interface{} {
	for _, keys := range tree {
		next, ok := subtree(data, keys, caseSensitive)
		if !ok {
			return map[string]interface{}{}
		}
		data = next
	}
	return data
}

func subtree(data map[string]interface{}, keys []string, caseSensitive bool) (map[string]interface{}, bool) {
	for _, k := range keys {
		if m, ok := data[k].(map[string]interface{}); ok {
			return m, true
		}
	}
	if caseSensitive {
		return nil, false
	}
	for _, k := range keys {
		for dk, v := range data {
			if m, ok := v.(map[string]interface{}); ok && strings.EqualFold(dk, k) {
				return m, true
			}
		}
	}
	return nil, false
}

func readInitKwargs(_ context.Context, req *Request) (map[string]interface{}, error) {
	return merge.Copy(req.Explicit), nil
}

func readEnv(_ context.Context, req *Request) (map[string]interface{}, error) {
	return req.Matcher().Match(req.Index, source.ReadEnv(req.Environ))
}

// readEnvFiles reads every env path in order, later files winning.
func readEnvFiles(_ context.Context, req *Request) (map[string]interface{}, error) {
	env := req.Config.Env
	raw := map[string]interface{}{}
	for _, p := range req.Config.EnvPaths {
		path := req.envFilePath(p)
		data, err := source.ReadEnvFile(path, env.Encoding, env.IgnoreMissing)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			req.Logger.Debug("env file empty or missing", zap.String("path", path))
		}
		for k, v := range data {
			raw[k] = v
		}
	}
	return req.Matcher().Match(req.Index, raw)
}

func readSecrets(_ context.Context, req *Request) (map[string]interface{}, error) {
	g := req.Config.Global
	if g.SecretsDir == "" {
		return map[string]interface{}{}, nil
	}
	raw, err := source.ReadSecretsDir(req.abs(g.SecretsDir), g.Encoding, g.IgnoreMissing)
	if err != nil {
		return nil, err
	}
	return alias.Mapper{
		CaseSensitive: g.CaseSensitive,
		ByName:        true,
		Parse:         envmatch.ParseLeaf,
	}.Map(req.Index, raw)
}

// readConfFiles reads every conf path, probing the configured extensions.
// During the MODE pass the file name is replaced by the mode.
func readConfFiles(_ context.Context, req *Request) (map[string]interface{}, error) {
	fc := req.Config.File
	raw := map[string]interface{}{}
	for _, p := range req.Config.ConfPaths {
		base := req.abs(p)
		if req.mode != "" {
			base = filepath.Join(filepath.Dir(base), req.mode)
		}
		path, format, ok := source.Probe(base, fc.Ext, fc.CustomExtHandler)
		if !ok {
			if !fc.IgnoreMissing {
				return nil, errors.New(errors.ErrorTypeSource, "config file not found").
					WithDetail("path", base).WithDetail("extensions", fc.Ext)
			}
			req.Logger.Debug("config file not found", zap.String("path", base))
			continue
		}
		data, err := source.ReadFile(path, source.FileOptions{Encoding: fc.Encoding, Format: format})
		if err != nil {
			return nil, err
		}
		raw = merge.Deep(raw, data)
	}
	return alias.Mapper{CaseSensitive: fc.CaseSensitive, ByName: true}.Map(req.Index, raw)
}

func (r *Request) abs(p string) string {
	if filepath.IsAbs(p) || r.BaseDir == "" {
		return p
	}
	return filepath.Join(r.BaseDir, p)
}

// envFilePath prefers the project root for relative env files.
func (r *Request) envFilePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	if r.RootDir != "" {
		candidate := filepath.Join(r.RootDir, p)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return r.abs(p)
}

// expandDotted turns "a.b=v" into {"a": {"b": v}}. Keys are applied in
// sorted order so a flat key and a dotted key under it resolve the same way
// on every call.
func expandDotted(raw map[string]interface{}) map[string]interface{} {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]interface{}, len(raw))
	for _, k := range keys {
		if !strings.Contains(k, ".") {
			out[k] = raw[k]
			continue
		}
		merge.Set(out, strings.Split(k, "."), raw[k])
	}
	return out
}
