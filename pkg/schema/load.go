package schema

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/layerconf/pkg/errors"
	"github.com/ajitpratap0/layerconf/pkg/inherit"
)

// Schema is a set of node types loaded from a schema file.
type Schema struct {
	// Root is the type resolved by default
	Root  *NodeType
	Types map[string]*NodeType
}

// Type returns the named type of the schema
func (s *Schema) Type(name string) (*NodeType, bool) {
	nt, ok := s.Types[name]
	return nt, ok
}

type fileSpec struct {
	Root  string     `yaml:"root"`
	Types []typeSpec `yaml:"types"`
}

type typeSpec struct {
	Name   string                 `yaml:"name"`
	Base   string                 `yaml:"base"`
	Config map[string]interface{} `yaml:"config"`
	Fields []fieldSpec            `yaml:"fields"`
}

type fieldSpec struct {
	Name           string      `yaml:"name"`
	Type           string      `yaml:"type"`
	Nullable       bool        `yaml:"nullable"`
	Required       bool        `yaml:"required"`
	Literals       []string    `yaml:"literals"`
	Alias          []string    `yaml:"alias"`
	Default        interface{} `yaml:"default"`
	Settings       string      `yaml:"settings"`
	Record         string      `yaml:"record"`
	Variants       []string    `yaml:"variants"`
	Discriminator  string      `yaml:"discriminator"`
	DefaultVariant string      `yaml:"default_variant"`
}

// LoadFile reads a YAML schema file. ${VAR} references are replaced by
// environment values before parsing.
func LoadFile(path string, reg *Registry) (*Schema, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: schema path is supplied by the caller
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read schema file").WithDetail("path", path)
	}
	s, err := LoadYAML([]byte(substituteEnvVars(string(data))), reg)
	if err != nil {
		if e, ok := err.(*errors.Error); ok {
			return nil, e.WithDetail("path", path)
		}
		return nil, err
	}
	return s, nil
}

// LoadYAML builds the node types declared in data. Type references are
// looked up among the file's own types first, then in reg, which may be nil.
//
//	root: App
//	types:
//	  - name: App
//	    config: {env_prefix: APP_}
//	    fields:
//	      - {name: port, type: int, default: 8080, alias: [listen.port, port]}
//	      - {name: db, variants: [PostgreSQL, MySQL], discriminator: DIALECT}
func LoadYAML(data []byte, reg *Registry) (*Schema, error) {
	var spec fileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to parse schema")
	}

	s := &Schema{Types: make(map[string]*NodeType, len(spec.Types))}
	for _, ts := range spec.Types {
		if ts.Name == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "schema type without a name")
		}
		if _, dup := s.Types[ts.Name]; dup {
			return nil, errors.New(errors.ErrorTypeConfig, "duplicate schema type").WithDetail("type", ts.Name)
		}
		s.Types[ts.Name] = &NodeType{Name: ts.Name, Config: inherit.Declaration(ts.Config)}
	}

	lookup := func(name string) (*NodeType, error) {
		if nt, ok := s.Types[name]; ok {
			return nt, nil
		}
		if nt, ok := reg.Lookup(name); ok {
			return nt, nil
		}
		return nil, errors.New(errors.ErrorTypeConfig, "unknown schema type").WithDetail("type", name)
	}

	for _, ts := range spec.Types {
		nt := s.Types[ts.Name]
		if ts.Base != "" {
			base, err := lookup(ts.Base)
			if err != nil {
				return nil, err
			}
			nt.Base = base
		}
		for _, fs := range ts.Fields {
			f, err := buildField(fs, lookup)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid schema field").
					WithDetail("type", ts.Name).WithDetail("field", fs.Name)
			}
			nt.Fields = append(nt.Fields, f)
		}
	}

	for _, nt := range s.Types {
		if err := checkBases(nt); err != nil {
			return nil, err
		}
		if err := nt.Check(); err != nil {
			return nil, err
		}
	}

	if spec.Root != "" {
		root, err := lookup(spec.Root)
		if err != nil {
			return nil, err
		}
		s.Root = root
	} else if len(spec.Types) > 0 {
		s.Root = s.Types[spec.Types[0].Name]
	}
	return s, nil
}

func buildField(fs fieldSpec, lookup func(string) (*NodeType, error)) (Field, error) {
	f := Field{
		Name:           fs.Name,
		Nullable:       fs.Nullable,
		Required:       fs.Required,
		Literals:       fs.Literals,
		Default:        fs.Default,
		Discriminator:  fs.Discriminator,
		DefaultVariant: fs.DefaultVariant,
	}
	if f.Name == "" {
		return f, errors.New(errors.ErrorTypeConfig, "field name is required")
	}
	t, ok := ParseValueType(fs.Type)
	if !ok {
		return f, errors.New(errors.ErrorTypeConfig, "unknown field type").WithDetail("type", fs.Type)
	}
	f.Type = t
	for _, a := range fs.Alias {
		f.Alias = f.Alias.Or(parseAlias(a))
	}

	var err error
	switch {
	case fs.Settings != "":
		f.Kind = KindSettings
		f.Node, err = lookup(fs.Settings)
	case fs.Record != "":
		f.Kind = KindRecord
		f.Node, err = lookup(fs.Record)
	case len(fs.Variants) > 0:
		f.Kind = KindVariants
		for _, name := range fs.Variants {
			v, verr := lookup(name)
			if verr != nil {
				return f, verr
			}
			f.Variants = append(f.Variants, v)
		}
	}
	return f, err
}

// parseAlias reads "a.b.0" as a path alias with an index segment and
// anything without a dot as a plain name.
func parseAlias(s string) Alias {
	if !strings.Contains(s, ".") {
		return Names(s)
	}
	parts := strings.Split(s, ".")
	segs := make([]interface{}, len(parts))
	for i, p := range parts {
		if n, err := strconv.Atoi(p); err == nil && i > 0 {
			segs[i] = n
			continue
		}
		segs[i] = p
	}
	return PathAlias(segs...)
}

func checkBases(nt *NodeType) error {
	seen := map[*NodeType]bool{}
	for t := nt; t != nil; t = t.Base {
		if seen[t] {
			return errors.New(errors.ErrorTypeConfig, "schema type inherits from itself").WithDetail("type", nt.Name)
		}
		seen[t] = true
	}
	return nil
}

// substituteEnvVars replaces ${NAME} with the value of the environment variable NAME.
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start
		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
