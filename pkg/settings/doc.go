// Package settings resolves trees of settings nodes.
//
// A Resolver takes a node type, computes its effective configuration from
// the process defaults, the type's declaration, per-call overrides and the
// parent's configuration, then reads the node's sources in priority order:
//
//	cli > init_kwargs > env > env_file > secrets > conf_file
//
// Each source is mapped to field names through the node's alias index and
// the sources are deep-merged, highest priority last. Nested settings fields
// are resolved depth-first as child nodes. Values passed to Resolve for a
// nested field keep init_kwargs priority in the child, so sub-keys set there
// are never overridden by lower sources. The parent's merged value for the
// field is only the child's starting data.
//
// # Basic Usage
//
//	r := settings.New(settings.WithLogger(logger))
//	node, err := r.Resolve(ctx, appType,
//	    settings.WithValues(map[string]interface{}{"name": "demo"}))
//	if err != nil {
//	    return err
//	}
//	cfg := node.Value().(*AppSettings)
//
// Sources and handlers are pluggable: RegisterSource adds a source name that
// ordered_settings may list, RegisterHandler adds a handler name.
package settings
