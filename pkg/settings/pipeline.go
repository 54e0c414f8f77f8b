package settings

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/layerconf/internal/merge"
	"github.com/ajitpratap0/layerconf/pkg/alias"
	"github.com/ajitpratap0/layerconf/pkg/envmatch"
	"github.com/ajitpratap0/layerconf/pkg/errors"
	"github.com/ajitpratap0/layerconf/pkg/inherit"
	"github.com/ajitpratap0/layerconf/pkg/metrics"
	"github.com/ajitpratap0/layerconf/pkg/observability"
	"github.com/ajitpratap0/layerconf/pkg/schema"
	"github.com/ajitpratap0/layerconf/pkg/source"
)

// ModeField is the field whose value selects the mode-specific config file.
const ModeField = "MODE"

// Request is what sources and handlers see of the node being resolved.
type Request struct {
	Type *schema.NodeType
	// Field is the field the node is nested under, empty for the root
	Field  string
	Config *inherit.Effective
	Index  *alias.Index
	// Tree holds, per ancestor field, the aliases that address this node
	Tree [][]string
	// Explicit holds the field-name-keyed values supplied for the node
	Explicit map[string]interface{}
	// BaseDir anchors relative paths
	BaseDir string
	// RootDir is the project root; env files found there win over BaseDir
	RootDir string
	Environ []string
	CLI     source.CLIFunc
	Logger  *zap.Logger

	mode     string
	registry *Registry
	metrics  *metrics.Collector
	span     *observability.Span
}

// Mode returns the MODE file name conf_file reads use, empty outside the MODE pass.
func (r *Request) Mode() string { return r.mode }

// WithMode returns a copy of r whose conf_file reads replace the file name with mode.
func (r *Request) WithMode(mode string) *Request {
	c := *r
	c.mode = mode
	return &c
}

// Read invokes the named source and records the read.
func (r *Request) Read(ctx context.Context, name string) (map[string]interface{}, error) {
	fn, ok := r.registry.Source(name)
	if !ok {
		return nil, errors.New(errors.ErrorTypeConfig, "unknown source").WithDetail("source", name)
	}
	data, err := fn(ctx, r)
	r.metrics.SourceRead(name, len(data), err)
	if r.span != nil {
		r.span.SourceRead(name, len(data), err)
	}
	if err != nil {
		e := annotate(err, errors.ErrorTypeSource, "source read failed")
		return nil, detail(detail(e, "source", name), "node", r.Type.Name)
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	r.Logger.Debug("source read",
		zap.String("source", name),
		zap.String("mode", r.mode),
		zap.Int("fields", len(data)))
	return data, nil
}

// Matcher returns the env matcher for the node's prefix set.
func (r *Request) Matcher() envmatch.Matcher {
	env := r.Config.Env
	return envmatch.Matcher{
		Prefixes:      envmatch.Prefixes(r.Tree, env.NestedDelimiter, env.Prefix),
		Delimiter:     env.NestedDelimiter,
		CaseSensitive: env.CaseSensitive,
	}
}

// Collected holds the field-name-keyed data of each source of one node.
type Collected struct {
	// Order is the source priority, highest first
	Order []string
	Data  map[string]map[string]interface{}
	// Mode is the MODE value of the second conf_file pass, empty when none ran
	Mode string
}

// Merge deep-merges the sources on top of base, lowest priority first.
func (c *Collected) Merge(base map[string]interface{}) map[string]interface{} {
	out := merge.Copy(base)
	for i := len(c.Order) - 1; i >= 0; i-- {
		out = merge.Deep(out, c.Data[c.Order[i]])
	}
	return out
}

// DefaultHandler reads every source in ordered_settings, lowest priority
// first. When the node has a MODE value, the conf_file source is read again
// with MODE as file name and merged on top of the first read.
func DefaultHandler(ctx context.Context, req *Request) (*Collected, error) {
	order := req.Config.OrderedSettings
	c := &Collected{
		Order: append([]string(nil), order...),
		Data:  make(map[string]map[string]interface{}, len(order)),
	}
	for i := len(order) - 1; i >= 0; i-- {
		data, err := req.Read(ctx, order[i])
		if err != nil {
			return nil, err
		}
		c.Data[order[i]] = data
	}

	mode := modeValue(req, c)
	if mode == "" || !contains(order, inherit.SourceConfFile) {
		return c, nil
	}
	extra, err := req.WithMode(mode).Read(ctx, inherit.SourceConfFile)
	if err != nil {
		return nil, err
	}
	c.Data[inherit.SourceConfFile] = merge.Deep(c.Data[inherit.SourceConfFile], extra)
	c.Mode = mode
	return c, nil
}

// modeValue finds MODE in the explicit values, then in the sources by
// priority, then in the field default.
func modeValue(req *Request, c *Collected) string {
	f := req.Type.Field(ModeField)
	if f == nil {
		return ""
	}
	if s, ok := req.Explicit[ModeField].(string); ok && s != "" {
		return s
	}
	for _, name := range c.Order {
		if s, ok := c.Data[name][ModeField].(string); ok && s != "" {
			return s
		}
	}
	s, _ := f.Default.(string)
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// annotate returns err as an *errors.Error, wrapping it with errType and
// message when it is not one already.
func annotate(err error, errType errors.ErrorType, message string) *errors.Error {
	if e, ok := err.(*errors.Error); ok {
		return e
	}
	return errors.Wrap(err, errType, message)
}

// detail sets key on e unless a deeper frame set it already.
func detail(e *errors.Error, key string, value interface{}) *errors.Error {
	if _, ok := e.Details[key]; ok {
		return e
	}
	return e.WithDetail(key, value)
}
