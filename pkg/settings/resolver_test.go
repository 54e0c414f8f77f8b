package settings

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/layerconf/pkg/defaults"
	"github.com/ajitpratap0/layerconf/pkg/errors"
	"github.com/ajitpratap0/layerconf/pkg/inherit"
	"github.com/ajitpratap0/layerconf/pkg/json"
	"github.com/ajitpratap0/layerconf/pkg/metrics"
	"github.com/ajitpratap0/layerconf/pkg/schema"
	"github.com/ajitpratap0/layerconf/pkg/source"
	"github.com/ajitpratap0/layerconf/pkg/testutil"
)

var (
	proxyType = schema.MustDefine(&schema.NodeType{
		Name: "Proxy",
		Fields: []schema.Field{
			{Name: "host", Type: schema.TypeString},
			{Name: "port", Type: schema.TypeInt},
		},
	})
	appType = schema.MustDefine(&schema.NodeType{
		Name:   "App",
		Config: inherit.Declaration{inherit.KeyEnvPrefix: "APP_"},
		Fields: []schema.Field{
			{Name: "name", Type: schema.TypeString},
			{Name: "port", Type: schema.TypeInt},
			{Name: "token", Type: schema.TypeString},
			{Name: "MODE", Type: schema.TypeString, Default: ""},
			{Name: "proxy", Kind: schema.KindSettings, Node: proxyType},
		},
	})
)

type ResolverSuite struct {
	testutil.ProjectSuite
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) resolver(env map[string]string, opts ...Option) *Resolver {
	base := []Option{
		WithLogger(zap.NewNop()),
		WithDefaults(defaults.NewStore(defaults.WithStartDir(s.Root()), defaults.WithLogger(zap.NewNop()))),
		WithBaseDir(s.Root()),
		WithEnviron(testutil.Environ(env)),
	}
	return New(append(base, opts...)...)
}

func (s *ResolverSuite) resolve(r *Resolver, nt *schema.NodeType, opts ...ResolveOption) *Node {
	node, err := r.Resolve(context.Background(), nt, opts...)
	s.Require().NoError(err)
	return node
}

func (s *ResolverSuite) TestEnvBeatsConfigFile() {
	s.Write(map[string]string{"config/config.toml": "name = \"from-file\"\nport = 1\n"})
	node := s.resolve(s.resolver(map[string]string{"APP_NAME": "from-env"}), appType)

	data := node.Data()
	s.Equal("from-env", data["name"])
	s.Equal(int64(1), data["port"])

	file, ok := node.Source(inherit.SourceConfFile)
	s.Require().True(ok)
	s.Equal("from-file", file["name"])
	s.Equal(StateValidated, node.State())
}

func (s *ResolverSuite) TestNestedEnvBeatsParentConfigFile() {
	s.Write(map[string]string{"config/config.toml": "[proxy]\nhost = \"from-file\"\nport = 1\n"})
	node := s.resolve(s.resolver(map[string]string{"APP_HOST": "from-env"}), appType)

	proxy := node.Child("proxy")
	s.Require().NotNil(proxy)
	s.Equal(map[string]interface{}{"host": "from-env", "port": int64(1)}, proxy.Data())
	s.Equal(proxy.Data(), node.Data()["proxy"])

	init, ok := proxy.Source(inherit.SourceInitKwargs)
	s.Require().True(ok)
	s.Empty(init)
}

func (s *ResolverSuite) TestReverseInheritance() {
	r := s.resolver(map[string]string{"APP_HOST": "env-host", "APP_PORT": "9000"})
	node := s.resolve(r, appType, WithValues(map[string]interface{}{
		"proxy": map[string]interface{}{"host": "explicit"},
	}))

	proxy := node.Child("proxy")
	s.Require().NotNil(proxy)
	s.Equal(map[string]interface{}{"host": "explicit", "port": int64(9000)}, proxy.Data())
	s.Equal(proxy.Data(), node.Data()["proxy"])
	s.Contains(proxy.Inherited(), inherit.KeyEnvPrefix)
}

func (s *ResolverSuite) TestNestedDelimiter() {
	nt := schema.MustDefine(&schema.NodeType{
		Name: "Service",
		Config: inherit.Declaration{
			inherit.KeyEnvPrefix:          "APP__",
			inherit.KeyEnvNestedDelimiter: "__",
		},
		Fields: []schema.Field{{Name: "proxy", Kind: schema.KindSettings, Node: proxyType}},
	})
	node := s.resolve(s.resolver(map[string]string{
		"APP__PROXY__HOST": "1.2.3.4",
		"APP__PROXY__PORT": "9000",
	}), nt)

	s.Equal(map[string]interface{}{"host": "1.2.3.4", "port": int64(9000)}, node.Data()["proxy"])
	s.Equal([][]string{{"proxy"}}, node.Child("proxy").Tree())
}

func (s *ResolverSuite) TestModePathEnvPrefix() {
	dbType := schema.MustDefine(&schema.NodeType{
		Name:   "Database",
		Config: inherit.Declaration{inherit.KeyModeDir: "postgres"},
		Fields: []schema.Field{{Name: "host", Type: schema.TypeString}},
	})
	svcType := schema.MustDefine(&schema.NodeType{
		Name:   "Service",
		Config: inherit.Declaration{inherit.KeyModeDir: "app"},
		Fields: []schema.Field{{Name: "db", Kind: schema.KindSettings, Node: dbType}},
	})
	rootType := schema.MustDefine(&schema.NodeType{
		Name: "Root",
		Config: inherit.Declaration{
			inherit.KeyModeDir:            "dev",
			inherit.KeyEnvPrefixAsModeDir: true,
		},
		Fields: []schema.Field{{Name: "app", Kind: schema.KindSettings, Node: svcType}},
	})

	node := s.resolve(s.resolver(map[string]string{"DEV_APP_POSTGRES_HOST": "10.0.0.1"}), rootType)

	db := node.Child("app").Child("db")
	s.Require().NotNil(db)
	s.Equal("dev/app/postgres", db.ModePath())
	s.Equal("dev_app_postgres_", db.Config().Env.Prefix)
	s.Equal("10.0.0.1", db.Data()["host"])

	app, ok := node.Data()["app"].(map[string]interface{})
	s.Require().True(ok)
	s.Equal(map[string]interface{}{"host": "10.0.0.1"}, app["db"])
}

func (s *ResolverSuite) TestModeFieldFallbackToFieldName() {
	s.Write(map[string]string{"config/proxy/config.yaml": "host: from-mode-dir\n"})
	node := s.resolve(s.resolver(nil), appType)

	proxy := node.Child("proxy")
	s.Equal("proxy", proxy.ModePath())
	s.Equal("from-mode-dir", proxy.Data()["host"])
}

func (s *ResolverSuite) TestAliasPrecedence() {
	nt := schema.MustDefine(&schema.NodeType{
		Name: "Named",
		Fields: []schema.Field{
			{Name: "name", Type: schema.TypeString, Alias: schema.Names("SERVICE_NAME", "name")},
		},
	})
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"first alias wins", map[string]string{"SERVICE_NAME": "a", "name": "b"}, "a"},
		{"second alias", map[string]string{"name": "b"}, "b"},
		{"case-insensitive fallback", map[string]string{"service_name": "c"}, "c"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			node := s.resolve(s.resolver(tt.env), nt)
			s.Equal(tt.want, node.Data()["name"])
		})
	}
}

func (s *ResolverSuite) TestIncludeExcludeInheritance() {
	plain := schema.MustDefine(&schema.NodeType{
		Name:   "Plain",
		Fields: []schema.Field{{Name: "host", Type: schema.TypeString}},
	})
	isolated := schema.MustDefine(&schema.NodeType{
		Name:   "Isolated",
		Config: inherit.Declaration{inherit.KeyConfExclude: []string{inherit.KeyConfDir}},
		Fields: []schema.Field{{Name: "host", Type: schema.TypeString}},
	})
	rootType := schema.MustDefine(&schema.NodeType{
		Name:   "Root",
		Config: inherit.Declaration{inherit.KeyConfDir: "settings"},
		Fields: []schema.Field{
			{Name: "plain", Kind: schema.KindSettings, Node: plain},
			{Name: "isolated", Kind: schema.KindSettings, Node: isolated},
		},
	})
	node := s.resolve(s.resolver(nil), rootType)

	s.Equal([]string{"settings"}, node.Child("plain").Config().File.Dir)
	s.Contains(node.Child("plain").Inherited(), inherit.KeyConfDir)
	s.Equal([]string{"config"}, node.Child("isolated").Config().File.Dir)
	s.NotContains(node.Child("isolated").Inherited(), inherit.KeyConfDir)
}

func (s *ResolverSuite) TestModeSecondPass() {
	s.Write(map[string]string{
		"config/config.toml": "MODE = \"prod\"\nname = \"base\"\nport = 1\n",
		"config/prod.toml":   "name = \"prod\"\n",
	})
	node := s.resolve(s.resolver(nil), appType)

	s.Equal("prod", node.Mode())
	s.Equal("prod", node.Data()["name"])
	s.Equal(int64(1), node.Data()["port"])
}

func (s *ResolverSuite) TestExplicitModeWins() {
	s.Write(map[string]string{
		"config/config.toml":  "MODE = \"prod\"\n",
		"config/prod.toml":    "name = \"prod\"\n",
		"config/staging.json": `{"name": "staging"}`,
	})
	node := s.resolve(s.resolver(nil), appType, WithValues(map[string]interface{}{"MODE": "staging"}))

	s.Equal("staging", node.Mode())
	s.Equal("staging", node.Data()["name"])
}

func (s *ResolverSuite) TestSecretsEnvFileAndCLI() {
	nt := schema.MustDefine(&schema.NodeType{
		Name: "Secured",
		Config: inherit.Declaration{
			inherit.KeyEnvPrefix:  "APP_",
			inherit.KeySecretsDir: "secrets",
			inherit.KeyCLI:        true,
		},
		Fields: []schema.Field{
			{Name: "name", Type: schema.TypeString},
			{Name: "port", Type: schema.TypeInt},
			{Name: "token", Type: schema.TypeString},
		},
	})
	s.Write(map[string]string{
		"secrets/token": "s3cret\n",
		".env":          "APP_NAME=from-dotenv\nAPP_PORT=1\n",
	})
	r := s.resolver(nil, WithCLI(source.PairsCLI([]string{"port=7"})))
	node := s.resolve(r, nt)

	s.Equal(map[string]interface{}{
		"name":  "from-dotenv",
		"port":  int64(7),
		"token": "s3cret",
	}, node.Data())
}

func (s *ResolverSuite) TestCLIDisabled() {
	r := s.resolver(nil, WithCLI(source.PairsCLI([]string{"port=7"})))
	node := s.resolve(r, appType)

	cli, ok := node.Source(inherit.SourceCLI)
	s.Require().True(ok)
	s.Empty(cli)
	s.NotContains(node.Data(), "port")
}

func (s *ResolverSuite) TestCLIDottedKeys() {
	nt := schema.MustDefine(&schema.NodeType{
		Name:   "Service",
		Config: inherit.Declaration{inherit.KeyCLI: true},
		Fields: []schema.Field{{Name: "proxy", Kind: schema.KindSettings, Node: proxyType}},
	})
	r := s.resolver(nil, WithCLI(source.PairsCLI([]string{"proxy.port=8080"})))
	node := s.resolve(r, nt)

	s.Equal(map[string]interface{}{"port": int64(8080)}, node.Data()["proxy"])
}

func (s *ResolverSuite) TestReadConfigOff() {
	s.Write(map[string]string{"config/config.toml": "port = 1\n"})
	r := s.resolver(map[string]string{"APP_NAME": "env"})
	node := s.resolve(r, appType, WithReadConfig(false), WithValues(map[string]interface{}{"name": "x"}))

	s.Equal("x", node.Data()["name"])
	s.NotContains(node.Data(), "port")
	_, ok := node.Source(inherit.SourceEnv)
	s.False(ok)
}

func (s *ResolverSuite) TestInstanceCache() {
	s.Write(map[string]string{"config/config.toml": "port = 1\n"})
	r := s.resolver(map[string]string{"APP_NAME": "env"})

	first := s.resolve(r, appType, WithInstanceID("app"))
	s.Equal(1, r.Cache().Len())

	second := s.resolve(r, appType,
		WithInstanceID("app"),
		WithReadConfig(false),
		WithValues(map[string]interface{}{"port": 2}))

	s.Same(first.Config(), second.Config())
	s.Same(first.Child("proxy").Config(), second.Child("proxy").Config())
	s.Equal("env", second.Data()["name"])
	s.Equal(2, second.Data()["port"])

	r.Cache().Invalidate("app")
	s.Equal(0, r.Cache().Len())

	third := s.resolve(r, appType, WithReadConfig(false), WithInstanceID("app"))
	s.NotSame(first.Config(), third.Config())
	s.NotContains(third.Data(), "name")
}

func (s *ResolverSuite) TestIdempotent() {
	s.Write(map[string]string{
		"config/config.yaml": "name: file\nproxy:\n  host: h\n  port: 1\n",
	})
	r := s.resolver(map[string]string{"APP_PORT": "5"})

	a, err := json.Marshal(s.resolve(r, appType).Data())
	s.Require().NoError(err)
	b, err := json.Marshal(s.resolve(r, appType).Data())
	s.Require().NoError(err)
	s.Equal(string(a), string(b))
}

func (s *ResolverSuite) TestMissingConfigFile() {
	nt := schema.MustDefine(&schema.NodeType{
		Name:   "Strict",
		Config: inherit.Declaration{inherit.KeyConfIgnoreMissing: false},
		Fields: []schema.Field{{Name: "name", Type: schema.TypeString}},
	})
	node, err := s.resolver(nil).Resolve(context.Background(), nt)
	s.Nil(node)
	s.True(errors.IsSource(err))
}

func (s *ResolverSuite) TestValidationFailure() {
	nt := schema.MustDefine(&schema.NodeType{
		Name:   "Required",
		Fields: []schema.Field{{Name: "name", Type: schema.TypeString, Required: true}},
	})
	node, err := s.resolver(nil).Resolve(context.Background(), nt)
	s.Nil(node)
	s.True(errors.IsValidation(err))
	s.Equal("name", errors.Violations(err)[0].Field)
}

func (s *ResolverSuite) TestVariants() {
	postgres := schema.MustDefine(&schema.NodeType{
		Name: "Postgres",
		Fields: []schema.Field{
			{Name: "dialect", Type: schema.TypeString, Default: "postgresql"},
			{Name: "host", Type: schema.TypeString},
		},
	})
	mysql := schema.MustDefine(&schema.NodeType{
		Name: "MySQL",
		Fields: []schema.Field{
			{Name: "dialect", Type: schema.TypeString, Default: "mysql"},
			{Name: "host", Type: schema.TypeString},
		},
	})
	nt := schema.MustDefine(&schema.NodeType{
		Name: "Store",
		Fields: []schema.Field{{
			Name: "db", Kind: schema.KindVariants,
			Variants:       []*schema.NodeType{postgres, mysql},
			Discriminator:  "dialect",
			DefaultVariant: "postgresql",
		}},
	})
	r := s.resolver(nil)

	node := s.resolve(r, nt)
	s.Same(postgres, node.Child("db").Type)
	s.Equal(map[string]interface{}{"dialect": "postgresql"}, node.Data()["db"])

	node = s.resolve(r, nt, WithValues(map[string]interface{}{
		"db": map[string]interface{}{"dialect": "MySQL", "host": "h"},
	}))
	s.Same(mysql, node.Child("db").Type)

	_, err := r.Resolve(context.Background(), nt, WithValues(map[string]interface{}{
		"db": map[string]interface{}{"dialect": "oracle"},
	}))
	s.True(errors.IsValidation(err))
}

func (s *ResolverSuite) TestNestedValueMustBeObject() {
	_, err := s.resolver(nil).Resolve(context.Background(), appType, WithValues(map[string]interface{}{"proxy": 3}))
	s.True(errors.IsValidation(err))
}

func (s *ResolverSuite) TestCustomSourceAndHandler() {
	reg := NewRegistry()
	s.Require().NoError(reg.RegisterSource("static", func(_ context.Context, req *Request) (map[string]interface{}, error) {
		if req.Type.Field("name") == nil {
			return nil, nil
		}
		return map[string]interface{}{"name": "static"}, nil
	}))
	s.True(errors.IsConfig(reg.RegisterSource("static", readEnv)))

	calls := 0
	s.Require().NoError(reg.RegisterHandler("counting", func(ctx context.Context, req *Request) (*Collected, error) {
		calls++
		return DefaultHandler(ctx, req)
	}))

	nt := schema.MustDefine(&schema.NodeType{
		Name: "Custom",
		Config: inherit.Declaration{
			inherit.KeyOrderedSettings: []string{inherit.SourceInitKwargs, "static"},
			inherit.KeyHandler:         "counting",
		},
		Fields: []schema.Field{
			{Name: "name", Type: schema.TypeString},
			{Name: "proxy", Kind: schema.KindSettings, Node: proxyType},
		},
	})
	node := s.resolve(s.resolver(nil, WithRegistry(reg)), nt)
	s.Equal("static", node.Data()["name"])
	s.Equal(2, calls)
	s.Equal([]string{inherit.SourceInitKwargs, "static"}, node.Child("proxy").Config().OrderedSettings)

	bad := schema.MustDefine(&schema.NodeType{
		Name:   "Bad",
		Config: inherit.Declaration{inherit.KeyOrderedSettings: []string{"nowhere"}},
	})
	_, err := s.resolver(nil, WithRegistry(reg)).Resolve(context.Background(), bad)
	s.True(errors.IsConfig(err))
}

func (s *ResolverSuite) TestInitKwargsMissingWarns() {
	core, logs := observer.New(zapcore.WarnLevel)
	nt := schema.MustDefine(&schema.NodeType{
		Name:   "EnvOnly",
		Config: inherit.Declaration{inherit.KeyOrderedSettings: []string{inherit.SourceEnv}},
		Fields: []schema.Field{{Name: "name", Type: schema.TypeString}},
	})
	node := s.resolve(s.resolver(nil, WithLogger(zap.New(core))), nt,
		WithValues(map[string]interface{}{"name": "ignored"}))

	s.NotContains(node.Data(), "name")
	s.Equal(1, logs.FilterMessageSnippet("init_kwargs").Len())
}

func (s *ResolverSuite) TestMetricsAndTracing() {
	reg := prometheus.NewRegistry()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	r := s.resolver(nil, WithMetrics(metrics.NewCollector(reg)), WithTracer(tp.Tracer("test")))
	s.resolve(r, appType)

	spans := recorder.Ended()
	s.Require().Len(spans, 2)
	s.Equal("layerconf.resolve Proxy", spans[0].Name())
	s.Equal("layerconf.resolve App", spans[1].Name())
	s.Len(spans[1].Events(), len(inherit.DefaultOrderedSettings))

	count, err := promtest.GatherAndCount(reg, "layerconf_nodes_resolved_total")
	s.Require().NoError(err)
	s.Equal(2, count)
}

func TestStateTransitions(t *testing.T) {
	n := newNode(appType, "", nil)
	require.Error(t, n.advance(StateMerged))
	require.NoError(t, n.advance(StateConfigResolved))
	require.NoError(t, n.advance(StateSourcesCollected))
	require.NoError(t, n.advance(StateMerged))
	require.NoError(t, n.advance(StateValidated))
	assert.True(t, n.State().Terminal())
	assert.Error(t, n.advance(StateFailed))
	assert.Equal(t, "validated", n.State().String())
}

func TestNilNodeType(t *testing.T) {
	_, err := New(WithLogger(zap.NewNop())).Resolve(context.Background(), nil)
	assert.True(t, errors.IsConfig(err))
}

func TestExpandDotted(t *testing.T) {
	got := expandDotted(map[string]interface{}{
		"a.b": "1",
		"a.c": "2",
		"d":   "3",
	})
	assert.Equal(t, map[string]interface{}{
		"a": map[string]interface{}{"b": "1", "c": "2"},
		"d": "3",
	}, got)
}

func TestDescend(t *testing.T) {
	data := map[string]interface{}{
		"port":  "1",
		"Proxy": map[string]interface{}{"port": "2", "inner": map[string]interface{}{"x": "3"}},
	}
	assert.Equal(t, data, descend(data, nil, false))
	assert.Equal(t, map[string]interface{}{"x": "3"}, descend(data, [][]string{{"proxy"}, {"inner"}}, false))
	assert.Empty(t, descend(data, [][]string{{"proxy"}}, true))
	assert.Empty(t, descend(data, [][]string{{"port"}}, false))
}
