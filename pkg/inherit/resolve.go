// Package inherit computes a node's effective configuration from its
// declaration tiers and its parent's effective configuration.
package inherit

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/mitchellh/mapstructure"

	"github.com/ajitpratap0/layerconf/pkg/errors"
	"github.com/ajitpratap0/layerconf/pkg/modepath"
)

// Registry answers whether named handlers, sources and file formats exist.
type Registry interface {
	HasHandler(name string) bool
	HasSource(name string) bool
	HasFormat(name string) bool
}

// ModeInput carries the mode segments known to the caller.
type ModeInput struct {
	// Own is the segment declared by the node type itself
	Own string
	// OwnSet is false when the type declares no segment
	OwnSet bool
	// Nested is the lexical base type's declared segment
	Nested string
	// FieldName is the field the node is nested under; the fallback for Own
	FieldName string
}

// Input is everything Resolve needs for one node.
type Input struct {
	// Defaults is the process-wide tier
	Defaults Declaration
	// Class is the type-level declaration
	Class Declaration
	// Init holds per-instance overrides
	Init   Declaration
	Parent *Effective
	Mode   ModeInput
	// BaseDir anchors relative directories for existence checks
	BaseDir  string
	Registry Registry
}

// Resolve merges the tiers of in into an Effective configuration.
func Resolve(in Input) (*Effective, error) {
	for _, t := range []Declaration{in.Defaults, in.Class, in.Init} {
		if err := t.Check(); err != nil {
			return nil, err
		}
	}
	if err := checkListKeys(in.Defaults, in.Class, in.Init); err != nil {
		return nil, err
	}

	base := Defaults().Overlay(in.Defaults).Overlay(in.Class)
	switches := base.Overlay(in.Init)
	parent := in.Parent

	inheritOn := map[Domain]bool{
		DomainFile:    truthy(switches[KeyFileConfigInheritParent]),
		DomainEnv:     truthy(switches[KeyEnvConfigInheritParent]),
		DomainHandler: truthy(switches[KeyHandlerInheritParent]),
		DomainOrdered: truthy(switches[KeyOrderedSettingsInheritParent]),
		DomainGlobal:  true,
	}

	e := &Effective{
		values:   Declaration{},
		explicit: map[string]bool{},
		policies: map[Domain]Policy{},
	}
	var inherited []string

	for _, d := range []Domain{DomainFile, DomainEnv, DomainGlobal} {
		p, taken := resolvePolicy(d, in, inheritOn[d], e.explicit)
		e.policies[d] = p
		inherited = append(inherited, taken...)
	}

	for _, s := range catalogue {
		k := s.name
		if s.list || k == KeyModeDir {
			continue
		}
		v := base[k]
		if in.Class.Has(k) {
			e.explicit[k] = true
		}
		switch {
		case in.Init.Has(k):
			v = in.Init[k]
			e.explicit[k] = true
		case parent != nil && !in.Class.Has(k) && inheritable(s.domain) && inheritOn[s.domain] &&
			e.policies[policyDomain(s.domain)].Allows(k) && parent.explicit[k]:
			v = cloneValue(parent.values[k])
			e.explicit[k] = true
			inherited = append(inherited, k)
		}
		e.values[k] = cloneValue(v)
	}

	fp, ep, gp := e.policies[DomainFile], e.policies[DomainEnv], e.policies[DomainGlobal]
	e.values[KeyConfInclude], e.values[KeyConfExclude] = fp.Include, fp.Exclude
	e.values[KeyEnvInclude], e.values[KeyEnvExclude] = ep.Include, ep.Exclude
	e.values[KeyInclude] = dedupe(concat(fp.Include, ep.Include, gp.Include))
	e.values[KeyExclude] = dedupe(concat(fp.Exclude, ep.Exclude, gp.Exclude))

	for _, s := range catalogue {
		if s.fallback != "" && e.values[s.name] == nil {
			e.values[s.name] = e.values[s.fallback]
		}
	}

	if err := decode(e.values, e); err != nil {
		return nil, err
	}

	e.Mode = resolveMode(in, switches, parent)
	e.ModePath = e.Mode.Path()

	if prefix, ok := derivePrefix(e); ok {
		e.Env.Prefix = prefix
		e.values[KeyEnvPrefix] = prefix
		e.explicit[KeyEnvPrefix] = true
	}

	e.ConfPaths = crossPaths(e.File.Dir, e.ModePath, e.File.File)
	e.EnvPaths = nonEmpty(e.Env.File)

	sort.Strings(inherited)
	e.Inherited = dedupe(inherited)

	if err := validate(e, in); err != nil {
		return nil, err
	}
	return e, nil
}

// resolvePolicy computes the include/exclude lists for domain d. Explicit
// tiers win over the parent's lists; init overrides win over everything.
func resolvePolicy(d Domain, in Input, inheritOn bool, explicit map[string]bool) (Policy, []string) {
	incKey, excKey := listKeys(d)
	pick := func(exclude bool) ([]string, bool) {
		if v, ok := tierList(in.Init, d, exclude); ok {
			return v, true
		}
		if v, ok := tierList(in.Class, d, exclude); ok {
			return v, true
		}
		v, _ := tierList(in.Defaults, d, exclude)
		return v, false
	}

	exc, excExplicit := pick(true)
	inc, incExplicit := pick(false)
	explicit[excKey] = excExplicit
	explicit[incKey] = incExplicit

	var taken []string
	if parent := in.Parent; parent != nil && inheritOn {
		pp := parent.Policy(d)
		if !excExplicit && !contains(exc, excKey) && parent.explicit[excKey] {
			exc = append([]string(nil), pp.Exclude...)
			explicit[excKey] = true
			taken = append(taken, excKey)
		}
		if !incExplicit && !contains(exc, incKey) && parent.explicit[incKey] {
			inc = append([]string(nil), pp.Include...)
			explicit[incKey] = true
			taken = append(taken, incKey)
		}
	}
	return Policy{Include: inc, Exclude: exc}.normalize(), taken
}

func resolveMode(in Input, switches Declaration, parent *Effective) modepath.Context {
	own := in.Mode.FieldName
	if in.Mode.OwnSet {
		own = in.Mode.Own
	}
	if v, ok := in.Init.String(KeyModeDir); ok {
		own = v
	}
	ctx := modepath.Context{
		Own:           own,
		Nested:        in.Mode.Nested,
		InheritNested: truthy(switches[KeyModeDirInheritNested]),
		InheritParent: truthy(switches[KeyModeDirInheritParent]),
	}
	if parent != nil {
		ctx.Parent = parent.ModePath
	}
	return ctx
}

// derivePrefix applies the env-prefix derivation flags. The own-segment flag
// wins over the nested one, which wins over the composed path.
func derivePrefix(e *Effective) (string, bool) {
	var p string
	switch {
	case e.Env.PrefixAsSourceModeDir:
		p = e.Mode.SourcePath()
	case e.Env.PrefixAsNestedModeDir:
		p = e.Mode.NestedPath()
	case e.Env.PrefixAsModeDir:
		p = e.ModePath
	default:
		return "", false
	}
	if p == "" {
		return "", false
	}
	return modepath.EnvPrefix(p), true
}

func validate(e *Effective, in Input) error {
	reg := in.Registry

	if len(e.File.Ext) == 0 || contains(e.File.Ext, "") {
		name, ok := e.File.CustomExtHandler[""]
		if !ok || (reg != nil && !reg.HasFormat(name)) {
			return errors.New(errors.ErrorTypeConfig, "empty extension requires a custom extension handler").
				WithDetail("key", KeyConfCustomExtHandler)
		}
	}
	if reg != nil {
		exts := make([]string, 0, len(e.File.CustomExtHandler))
		for ext := range e.File.CustomExtHandler {
			exts = append(exts, ext)
		}
		sort.Strings(exts)
		for _, ext := range exts {
			if name := e.File.CustomExtHandler[ext]; !reg.HasFormat(name) {
				return errors.New(errors.ErrorTypeConfig, "unknown custom extension handler").
					WithDetail("ext", ext).WithDetail("handler", name)
			}
		}
		if !reg.HasHandler(e.Handler) {
			return errors.New(errors.ErrorTypeConfig, "missing required handler").
				WithDetail("handler", e.Handler)
		}
	}

	if len(e.OrderedSettings) == 0 {
		return errors.New(errors.ErrorTypeConfig, "ordered_settings cannot be empty")
	}
	if reg != nil {
		for _, name := range e.OrderedSettings {
			if !reg.HasSource(name) {
				return errors.New(errors.ErrorTypeConfig, "unknown source in ordered_settings").
					WithDetail("source", name)
			}
		}
	}

	if dir := e.Global.SecretsDir; dir != "" && !e.Global.IgnoreMissing {
		if !filepath.IsAbs(dir) && in.BaseDir != "" {
			dir = filepath.Join(in.BaseDir, dir)
		}
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return errors.New(errors.ErrorTypeConfig, "secrets directory does not exist").
				WithDetail("path", dir)
		}
	}
	return nil
}

func decode(values Declaration, out *Effective) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to build config decoder")
	}
	if err := dec.Decode(map[string]interface{}(values)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid configuration value")
	}
	return nil
}

func crossPaths(dirs []string, modePath string, files []string) []string {
	dirs, files = nonEmpty(dirs), nonEmpty(files)
	if len(dirs) == 0 || len(files) == 0 {
		return nil
	}
	out := make([]string, 0, len(dirs)*len(files))
	for _, d := range dirs {
		for _, f := range files {
			out = append(out, filepath.Join(d, filepath.FromSlash(modePath), f))
		}
	}
	return out
}

func inheritable(d Domain) bool {
	switch d {
	case DomainFile, DomainEnv, DomainGlobal, DomainHandler, DomainOrdered:
		return true
	}
	return false
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1" || t == "True" || t == "TRUE"
	}
	return false
}

func nonEmpty(list []string) []string {
	var out []string
	for _, s := range list {
		if s != "" && s != "None" {
			out = append(out, s)
		}
	}
	return out
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
