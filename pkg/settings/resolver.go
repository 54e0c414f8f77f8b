package settings

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/layerconf/internal/merge"
	"github.com/ajitpratap0/layerconf/pkg/alias"
	"github.com/ajitpratap0/layerconf/pkg/defaults"
	"github.com/ajitpratap0/layerconf/pkg/errors"
	"github.com/ajitpratap0/layerconf/pkg/inherit"
	"github.com/ajitpratap0/layerconf/pkg/logger"
	"github.com/ajitpratap0/layerconf/pkg/metrics"
	"github.com/ajitpratap0/layerconf/pkg/observability"
	"github.com/ajitpratap0/layerconf/pkg/schema"
	"github.com/ajitpratap0/layerconf/pkg/source"
	"github.com/ajitpratap0/layerconf/pkg/validate"
)

// Resolver resolves trees of settings nodes. A Resolver is safe for
// concurrent use; each Resolve call is single-threaded and depth-first.
type Resolver struct {
	logger    *zap.Logger
	validator validate.Validator
	defaults  *defaults.Store
	registry  *Registry
	cli       source.CLIFunc
	metrics   *metrics.Collector
	tracer    trace.Tracer
	baseDir   string
	environ   []string
	cache     *Cache
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithValidator replaces the default mapstructure-backed validator
func WithValidator(v validate.Validator) Option {
	return func(r *Resolver) { r.validator = v }
}

// WithDefaults sets the process-wide defaults store. Defaults to defaults.Global().
func WithDefaults(s *defaults.Store) Option {
	return func(r *Resolver) { r.defaults = s }
}

// WithRegistry sets the source and handler registry
func WithRegistry(reg *Registry) Option {
	return func(r *Resolver) { r.registry = reg }
}

// WithCLI sets the callback of the cli source. It is only read for nodes
// whose cli switch is on.
func WithCLI(fn source.CLIFunc) Option {
	return func(r *Resolver) { r.cli = fn }
}

// WithMetrics records resolutions on c
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Resolver) { r.metrics = c }
}

// WithTracer sets the tracer. Defaults to the global provider's.
func WithTracer(t trace.Tracer) Option {
	return func(r *Resolver) { r.tracer = t }
}

// WithBaseDir anchors relative conf, env and secrets paths. Defaults to the working directory.
func WithBaseDir(dir string) Option {
	return func(r *Resolver) { r.baseDir = dir }
}

// WithEnviron replaces the process environment snapshot
func WithEnviron(environ []string) Option {
	return func(r *Resolver) { r.environ = environ }
}

// WithCache sets the instance cache
func WithCache(c *Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// New creates a Resolver
func New(opts ...Option) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get()
	}
	r.logger = r.logger.With(zap.String("component", "settings_resolver"))
	if r.validator == nil {
		r.validator = validate.New()
	}
	if r.defaults == nil {
		r.defaults = defaults.Global()
	}
	if r.registry == nil {
		r.registry = globalRegistry
	}
	if r.tracer == nil {
		r.tracer = observability.Tracer()
	}
	if r.cache == nil {
		r.cache = NewCache()
	}
	return r
}

// Cache returns the instance cache
func (r *Resolver) Cache() *Cache { return r.cache }

// ResolveOption configures one Resolve call
type ResolveOption func(*call)

type call struct {
	values      map[string]interface{}
	overrides   inherit.Declaration
	readConfig  bool
	instanceID  string
	forceReload bool
}

// WithValues supplies explicit values for the root node, keyed by alias or
// field name. Nested settings fields take maps.
func WithValues(values map[string]interface{}) ResolveOption {
	return func(c *call) { c.values = merge.Deep(c.values, values) }
}

// WithOverrides supplies init-time configuration overrides for the root node.
func WithOverrides(d inherit.Declaration) ResolveOption {
	return func(c *call) { c.overrides = c.overrides.Overlay(d) }
}

// WithReadConfig turns source reading on or off. With reading off only the
// explicit values reach the validator.
func WithReadConfig(read bool) ResolveOption {
	return func(c *call) { c.readConfig = read }
}

// WithInstanceID names the resolved instance. The result is cached under id;
// a later call with the same id and reading off reuses the cached
// configuration and data, applying the new explicit values on top.
func WithInstanceID(id string) ResolveOption {
	return func(c *call) { c.instanceID = id }
}

// WithForceReload re-reads the process-wide defaults before resolving
func WithForceReload() ResolveOption {
	return func(c *call) { c.forceReload = true }
}

// Resolve resolves nt and every nested settings node below it. On error no
// node is returned.
func (r *Resolver) Resolve(ctx context.Context, nt *schema.NodeType, opts ...ResolveOption) (*Node, error) {
	c := call{readConfig: true}
	for _, opt := range opts {
		opt(&c)
	}
	if nt == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "node type is required")
	}
	if err := nt.Check(); err != nil {
		return nil, err
	}

	decl, err := r.loadDefaults(c.forceReload)
	if err != nil {
		return nil, err
	}
	baseDir, err := r.base()
	if err != nil {
		return nil, err
	}
	environ := r.environ
	if environ == nil {
		environ = os.Environ()
	}

	var prev *Node
	if c.instanceID != "" {
		ctx = context.WithValue(ctx, logger.InstanceKey, c.instanceID)
		if !c.readConfig {
			prev, _ = r.cache.Get(c.instanceID)
		}
	}

	rn := &run{
		Resolver:   r,
		defaults:   decl,
		baseDir:    baseDir,
		rootDir:    r.defaults.Root(),
		environ:    environ,
		readConfig: c.readConfig,
	}
	node, err := rn.resolve(ctx, nt, nodeInput{
		init:     c.overrides,
		explicit: c.values,
		raw:      true,
		prev:     prev,
	})
	if err != nil {
		return nil, err
	}
	if c.instanceID != "" {
		r.cache.put(c.instanceID, node)
	}
	return node, nil
}

func (r *Resolver) loadDefaults(force bool) (inherit.Declaration, error) {
	if force {
		return r.defaults.Reload()
	}
	return r.defaults.Load()
}

func (r *Resolver) base() (string, error) {
	if r.baseDir != "" {
		return r.baseDir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeSource, "failed to get working directory")
	}
	return wd, nil
}

// run holds the state shared by every node of one Resolve call.
type run struct {
	*Resolver
	defaults   inherit.Declaration
	baseDir    string
	rootDir    string
	environ    []string
	readConfig bool
}

type nodeInput struct {
	field    string
	parent   *inherit.Effective
	tree     [][]string
	init     inherit.Declaration
	explicit map[string]interface{}
	// raw marks explicit values still keyed by alias
	raw bool
	// base is the parent's merged value for the field; every source of the
	// node overrides it
	base map[string]interface{}
	prev *Node
}

func (rn *run) resolve(ctx context.Context, nt *schema.NodeType, in nodeInput) (*Node, error) {
	timer := metrics.NewTimer()
	ctx = context.WithValue(ctx, logger.NodeKey, nt.Name)
	ctx, span := observability.StartNode(ctx, rn.tracer, nt.Name, in.field)

	node := newNode(nt, in.field, in.tree)
	err := rn.drive(ctx, node, in, span)
	if err != nil {
		_ = node.advance(StateFailed)
		logger.FromContext(ctx, rn.logger).Debug("node failed", zap.String("field", in.field), zap.Error(err))
	}
	span.SetAttribute("layerconf.node.state", node.state.String())
	span.End(err)
	rn.metrics.NodeResolved(nt.Name, err)
	rn.metrics.ObserveResolution(nt.Name, timer.Stop())
	if err != nil {
		return nil, err
	}
	return node, nil
}

// drive walks one node from Unresolved to Validated.
func (rn *run) drive(ctx context.Context, node *Node, in nodeInput, span *observability.Span) error {
	nt := node.Type

	cfg, reused, err := rn.configure(nt, in)
	if err != nil {
		return detail(annotate(err, errors.ErrorTypeConfig, "failed to resolve configuration"), "node", nt.Name)
	}
	node.config = cfg
	node.index = alias.Build(nt)

	ctx = context.WithValue(ctx, logger.ModePathKey, cfg.ModePath)
	log := logger.FromContext(ctx, rn.logger)
	if in.field != "" {
		log = log.With(zap.String("field", in.field))
	}
	span.SetAttribute("layerconf.mode_path", cfg.ModePath)
	if err := rn.step(node, StateConfigResolved, log,
		zap.Bool("cached", reused),
		zap.Strings("inherited", cfg.Inherited)); err != nil {
		return err
	}

	if len(in.explicit) > 0 && !contains(cfg.OrderedSettings, inherit.SourceInitKwargs) {
		log.Warn("init_kwargs is not in ordered_settings; explicit values are ignored",
			zap.Strings("ordered_settings", cfg.OrderedSettings))
	}

	explicit := in.explicit
	if in.raw {
		explicit, err = alias.Mapper{CaseSensitive: cfg.Global.CaseSensitive, ByName: true}.Map(node.index, explicit)
		if err != nil {
			return err
		}
	}

	req := &Request{
		Type:     nt,
		Field:    in.field,
		Config:   cfg,
		Index:    node.index,
		Tree:     node.Tree(),
		Explicit: explicit,
		BaseDir:  rn.baseDir,
		RootDir:  rn.rootDir,
		Environ:  rn.environ,
		CLI:      rn.cli,
		Logger:   log,
		registry: rn.registry,
		metrics:  rn.metrics,
		span:     span,
	}
	collected, err := rn.collect(ctx, req)
	if err != nil {
		return err
	}
	node.collected = collected
	if err := rn.step(node, StateSourcesCollected, log,
		zap.Strings("sources", collected.Order),
		zap.String("mode", collected.Mode)); err != nil {
		return err
	}

	base := in.base
	if reused {
		base = merge.Deep(in.prev.data, base)
	}
	data := collected.Merge(base)
	for _, e := range node.index.Entries {
		if !e.Field.IsSettings() {
			continue
		}
		var prev *Node
		if in.prev != nil {
			prev = in.prev.Child(e.Name())
		}
		child, err := rn.child(ctx, node, e, data, explicit, prev)
		if err != nil {
			return err
		}
		if child == nil {
			continue
		}
		data[e.Name()] = child.Data()
		node.addChild(e.Name(), child)
	}
	node.data = data
	if err := rn.step(node, StateMerged, log, zap.Int("fields", len(data))); err != nil {
		return err
	}

	payload := make(map[string]interface{}, len(data))
	for k, v := range data {
		payload[k] = v
	}
	for name, c := range node.children {
		payload[name] = c.value
	}
	value, err := rn.validator.Validate(nt, payload)
	if err != nil {
		return detail(annotate(err, errors.ErrorTypeValidation, "validation failed"), "node", nt.Name)
	}
	node.value = value
	return rn.step(node, StateValidated, log)
}

// configure resolves the effective configuration, or reuses the cached one
// when re-resolving an instance with reading off.
func (rn *run) configure(nt *schema.NodeType, in nodeInput) (*inherit.Effective, bool, error) {
	if p := in.prev; p != nil && p.config != nil && p.Type == nt && !rn.readConfig && len(in.init) == 0 {
		return p.config, true, nil
	}
	own, ownSet := nt.ModeSegment()
	var nested string
	if nt.Base != nil {
		nested, _ = nt.Base.ModeSegment()
	}
	cfg, err := inherit.Resolve(inherit.Input{
		Defaults: rn.defaults,
		Class:    nt.Declaration(),
		Init:     in.init,
		Parent:   in.parent,
		Mode: inherit.ModeInput{
			Own:       own,
			OwnSet:    ownSet,
			Nested:    nested,
			FieldName: in.field,
		},
		BaseDir:  rn.baseDir,
		Registry: rn.registry,
	})
	return cfg, false, err
}

func (rn *run) collect(ctx context.Context, req *Request) (*Collected, error) {
	if !rn.readConfig {
		return &Collected{
			Order: []string{inherit.SourceInitKwargs},
			Data: map[string]map[string]interface{}{
				inherit.SourceInitKwargs: merge.Copy(req.Explicit),
			},
		}, nil
	}
	h, ok := rn.registry.Handler(req.Config.Handler)
	if !ok {
		return nil, errors.New(errors.ErrorTypeConfig, "missing required handler").
			WithDetail("handler", req.Config.Handler).WithDetail("node", req.Type.Name)
	}
	return h(ctx, req)
}

// child resolves the nested settings field e. Only the explicit values
// supplied for the field reach the child at init_kwargs priority; the
// parent's merged value is the base the child's own sources override. A
// discriminated field with no value and no default variant is skipped.
func (rn *run) child(ctx context.Context, parent *Node, e *alias.Entry, data, explicit map[string]interface{}, prev *Node) (*Node, error) {
	f := e.Field
	raw, err := nestedValue(parent, f, data[f.Name])
	if err != nil {
		return nil, err
	}
	own, err := nestedValue(parent, f, explicit[f.Name])
	if err != nil {
		return nil, err
	}

	nt := f.Node
	if f.Kind == schema.KindVariants {
		cs := parent.config.Global.CaseSensitive
		table, _ := e.Select(raw, cs)
		if table == nil {
			if value, found := e.Discriminator(raw, cs); found {
				return nil, errors.New(errors.ErrorTypeValidation, "no variant matches the discriminator").
					WithDetail("node", parent.Type.Name).
					WithDetail("field", f.Name).
					WithDetail(f.Discriminator, value)
			}
			return nil, nil
		}
		nt = table.Type
		if raw == nil {
			raw = map[string]interface{}{}
		}
		// the selected variant is authoritative; store its canonical value
		if d := nt.Field(f.Discriminator); d != nil && d.Default != nil {
			if own == nil {
				own = map[string]interface{}{}
			}
			for _, m := range []map[string]interface{}{raw, own} {
				for k := range m {
					if !cs && strings.EqualFold(k, f.Discriminator) {
						delete(m, k)
					}
				}
				m[f.Discriminator] = d.Default
			}
		}
	}

	tree := parent.Tree()
	tree = append(tree, append([]string(nil), e.Keys(parent.config.Env.CaseSensitive)...))
	return rn.resolve(ctx, nt, nodeInput{
		field:    f.Name,
		parent:   parent.config,
		tree:     tree,
		explicit: own,
		base:     raw,
		prev:     prev,
	})
}

// nestedValue copies the object held by a nested settings field.
func nestedValue(parent *Node, f *schema.Field, v interface{}) (map[string]interface{}, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		return merge.Copy(v), nil
	default:
		return nil, errors.New(errors.ErrorTypeValidation, "nested settings value must be an object").
			WithDetail("node", parent.Type.Name).
			WithDetail("field", f.Name).
			WithDetail("type", fmt.Sprintf("%T", v))
	}
}

func (rn *run) step(n *Node, to State, log *zap.Logger, fields ...zap.Field) error {
	if err := n.advance(to); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "resolution out of order").WithDetail("node", n.Type.Name)
	}
	log.Debug("node "+to.String(), fields...)
	return nil
}
