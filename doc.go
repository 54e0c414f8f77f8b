// Package layerconf resolves hierarchical settings: trees of typed nodes whose
// values are merged from several prioritized sources and whose resolution
// configuration is itself inherited from parent to child.
//
// # Architecture
//
// Every settings node passes through the same sequence:
//
// 1. Configuration: the node's declaration (process-wide defaults, its
// type's class-level declaration including lexical bases, and init-time
// overrides) is combined with what it inherits from its parent.
//
// 2. Sources: each source named in ordered_settings is read, keys are
// mapped to field names through the alias index, and the results are
// deep-merged with earlier sources winning.
//
// 3. Children: nested settings fields are resolved depth-first. Values
// passed to Resolve for the field stay explicit in the child; the parent's
// merged value is the base the child's own sources override.
//
// 4. Validation: the merged payload is decoded into the node's Go type.
//
// # Quick Start
//
//	app := schema.MustDefine(&schema.NodeType{
//	    Name:   "App",
//	    Config: inherit.Declaration{inherit.KeyEnvPrefix: "APP_"},
//	    Fields: []schema.Field{
//	        {Name: "port", Type: schema.TypeInt, Default: 8080},
//	        connectors.Field("db", connectors.DialectPostgres),
//	    },
//	})
//
//	node, err := settings.New().Resolve(ctx, app)
//	pg := node.Child("db").Value().(*connectors.Postgres)
//
// # Source priority
//
// Highest first, by default:
//
//	cli          - command-line values, when the cli switch is on
//	init_kwargs  - values passed to Resolve
//	env          - process environment
//	env_file     - .env files
//	secrets      - one file per field in secrets_dir
//	conf_file    - TOML, YAML or JSON files under conf_dir
//
// # Key Packages
//
//	pkg/schema      - Node types, fields, aliases and the YAML schema loader
//	pkg/inherit     - Configuration key catalogue and inheritance
//	pkg/modepath    - Mode path composition
//	pkg/alias       - Alias index and key mapping
//	pkg/envmatch    - Environment key matching
//	pkg/source      - Raw source readers
//	pkg/settings    - The resolver, its pipeline and registries
//	pkg/connectors  - Database connection settings
//	pkg/defaults    - Process-wide defaults file
//	pkg/validate    - Decoding and validation
//
// # Command line
//
//	layerconf resolve --schema app.yaml --value proxy.host=10.0.0.1 -o yaml
//	layerconf config --schema app.yaml
package layerconf
