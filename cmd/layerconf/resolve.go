package main

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/layerconf/internal/merge"
	"github.com/ajitpratap0/layerconf/pkg/connectors"
	"github.com/ajitpratap0/layerconf/pkg/errors"
	"github.com/ajitpratap0/layerconf/pkg/inherit"
	"github.com/ajitpratap0/layerconf/pkg/json"
	"github.com/ajitpratap0/layerconf/pkg/metrics"
	"github.com/ajitpratap0/layerconf/pkg/observability"
	"github.com/ajitpratap0/layerconf/pkg/schema"
	"github.com/ajitpratap0/layerconf/pkg/settings"
	"github.com/ajitpratap0/layerconf/pkg/source"
)

// resolveFlags are shared by resolve and config
type resolveFlags struct {
	schema    string
	typeName  string
	dir       string
	sets      []string
	values    []string
	overrides []string
	format    string
	trace     bool
}

func (f *resolveFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.schema, "schema", "s", "", "Path to the YAML schema file (required)")
	fs.StringVarP(&f.typeName, "type", "t", "", "Type to resolve (defaults to the schema root)")
	fs.StringVar(&f.dir, "dir", "", "Base directory for relative config paths (defaults to the working directory)")
	fs.StringArrayVar(&f.sets, "set", nil, "CLI source value key=value; turns the cli source on (repeatable)")
	fs.StringArrayVar(&f.values, "value", nil, "Explicit value key=value, dotted keys address nested fields (repeatable)")
	fs.StringArrayVar(&f.overrides, "override", nil, "Configuration override key=value, values parsed as JSON when valid (repeatable)")
	fs.StringVarP(&f.format, "format", "o", "json", "Output format (json, yaml)")
	fs.BoolVar(&f.trace, "trace", false, "Print resolution spans to stderr")
}

func (a *app) newResolveCmd() *cobra.Command {
	f := &resolveFlags{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve settings and print the merged values",
		Example: `  layerconf resolve --schema app.yaml --value proxy.host=10.0.0.1
  layerconf resolve -s app.yaml --set port=8080 --override env_prefix=DEV_ -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := a.resolve(cmd, f)
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), f.format, node.Data())
		},
	}
	f.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

// nodeReport describes one resolved node for the config command
type nodeReport struct {
	Type      string                 `json:"type" yaml:"type"`
	Field     string                 `json:"field,omitempty" yaml:"field,omitempty"`
	ModePath  string                 `json:"mode_path" yaml:"mode_path"`
	Inherited []string               `json:"inherited" yaml:"inherited"`
	Config    map[string]interface{} `json:"config" yaml:"config"`
	Children  []nodeReport           `json:"children,omitempty" yaml:"children,omitempty"`
}

func report(n *settings.Node) nodeReport {
	r := nodeReport{
		Type:      n.Type.Name,
		Field:     n.Field,
		ModePath:  n.ModePath(),
		Inherited: n.Inherited(),
		Config:    n.Config().Values(),
	}
	if r.Inherited == nil {
		r.Inherited = []string{}
	}
	for _, c := range n.Children() {
		r.Children = append(r.Children, report(c))
	}
	return r
}

func (a *app) newConfigCmd() *cobra.Command {
	f := &resolveFlags{}
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration of every resolved node",
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := a.resolve(cmd, f)
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), f.format, report(node))
		},
	}
	f.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func (a *app) resolve(cmd *cobra.Command, f *resolveFlags) (*settings.Node, error) {
	if f.format != "json" && f.format != "yaml" {
		return nil, errors.New(errors.ErrorTypeConfig, "unsupported output format").WithDetail("format", f.format)
	}

	reg := schema.NewRegistry()
	if err := connectors.Register(reg); err != nil {
		return nil, err
	}
	s, err := schema.LoadFile(f.schema, reg)
	if err != nil {
		return nil, err
	}
	nt := s.Root
	if f.typeName != "" {
		var ok bool
		if nt, ok = s.Type(f.typeName); !ok {
			if nt, ok = reg.Lookup(f.typeName); !ok {
				return nil, errors.New(errors.ErrorTypeConfig, "unknown type").WithDetail("type", f.typeName)
			}
		}
	}
	if nt == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "schema declares no types").WithDetail("path", f.schema)
	}

	values, err := parsePairs(f.values, false)
	if err != nil {
		return nil, err
	}
	overrides, err := parsePairs(f.overrides, true)
	if err != nil {
		return nil, err
	}
	if len(f.sets) > 0 {
		overrides[inherit.KeyCLI] = true
	}

	ctx := cmd.Context()
	if f.trace {
		cfg := observability.DefaultConfig()
		cfg.ServiceVersion = version
		cfg.ExporterType = "stdout"
		cfg.Output = cmd.ErrOrStderr()
		shutdown, err := observability.Initialize(cfg)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				a.log.Warn("failed to flush spans", zap.Error(err))
			}
		}()
	}

	opts := []settings.Option{
		settings.WithLogger(a.log),
		settings.WithMetrics(metrics.Default()),
		settings.WithCLI(source.PairsCLI(f.sets)),
	}
	if f.dir != "" {
		opts = append(opts, settings.WithBaseDir(f.dir))
	}

	a.log.Info("resolving settings", zap.String("schema", f.schema), zap.String("type", nt.Name))
	return settings.New(opts...).Resolve(ctx, nt,
		settings.WithValues(values),
		settings.WithOverrides(inherit.Declaration(overrides)),
	)
}

// parsePairs reads key=value pairs into a map, expanding dotted keys. With
// typed set, values that are valid JSON are decoded.
func parsePairs(pairs []string, typed bool) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	for _, p := range pairs {
		k, raw, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errors.New(errors.ErrorTypeParse, "expected key=value").WithDetail("arg", p)
		}
		var v interface{} = raw
		if typed {
			if parsed, err := json.ParseValue(raw); err == nil {
				v = parsed
			}
		}
		merge.Set(out, strings.Split(k, "."), v)
	}
	return out, nil
}

func write(w io.Writer, format string, v interface{}) error {
	var (
		b   []byte
		err error
	)
	if format == "yaml" {
		b, err = yaml.Marshal(v)
	} else {
		b, err = json.MarshalIndent(v, "", "  ")
		b = append(b, '\n')
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode output")
	}
	_, err = w.Write(b)
	return err
}
