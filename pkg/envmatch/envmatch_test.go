package envmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/layerconf/pkg/alias"
	"github.com/ajitpratap0/layerconf/pkg/errors"
	"github.com/ajitpratap0/layerconf/pkg/schema"
)

var (
	proxyType = &schema.NodeType{
		Name: "Proxy",
		Fields: []schema.Field{
			{Name: "host", Type: schema.TypeString},
			{Name: "port", Type: schema.TypeInt},
		},
	}
	postgresType = &schema.NodeType{
		Name: "Postgres",
		Fields: []schema.Field{
			{Name: "dialect", Type: schema.TypeString, Default: "postgresql"},
			{Name: "host", Type: schema.TypeString},
		},
	}
	mysqlType = &schema.NodeType{
		Name: "MySQL",
		Fields: []schema.Field{
			{Name: "dialect", Type: schema.TypeString, Default: "mysql"},
			{Name: "host", Type: schema.TypeString},
		},
	}
	appType = &schema.NodeType{
		Name: "App",
		Fields: []schema.Field{
			{Name: "name", Type: schema.TypeString, Alias: schema.Names("APP_NAME", "name")},
			{Name: "Foo", Type: schema.TypeString},
			{Name: "debug", Type: schema.TypeBool},
			{Name: "tags", Type: schema.TypeList},
			{Name: "extra", Type: schema.TypeAny},
			{Name: "region", Type: schema.TypeString, Alias: schema.PathAlias("cloud", "regions", 0)},
			{Name: "proxy", Kind: schema.KindSettings, Node: proxyType},
			{
				Name: "db", Kind: schema.KindVariants,
				Variants:       []*schema.NodeType{postgresType, mysqlType},
				Discriminator:  "dialect",
				DefaultVariant: "postgresql",
			},
		},
	}
)

func match(t *testing.T, m Matcher, data map[string]interface{}) map[string]interface{} {
	t.Helper()
	got, err := m.Match(alias.Build(appType), data)
	require.NoError(t, err)
	return got
}

func TestPrefixes(t *testing.T) {
	tests := []struct {
		name      string
		tree      [][]string
		delimiter string
		prefix    string
		want      []string
	}{
		{"root", nil, "__", "X_", []string{"X_"}},
		{"no delimiter", [][]string{{"app"}}, "", "X_", []string{"X_"}},
		{"single level", [][]string{{"app"}}, "__", "", []string{"app__"}},
		{
			"product",
			[][]string{{"app", "APP"}, {"db"}},
			"__", "X_",
			[]string{"app__db__X_", "APP__db__X_"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Prefixes(tt.tree, tt.delimiter, tt.prefix))
		})
	}
}

func TestMatchNestedDelimiter(t *testing.T) {
	got := match(t, Matcher{Prefixes: []string{"APP__"}, Delimiter: "__"}, map[string]interface{}{
		"APP__PROXY__HOST": "1.2.3.4",
		"APP__PROXY__PORT": "9000",
		"OTHER":            "x",
	})
	assert.Equal(t, map[string]interface{}{
		"proxy": map[string]interface{}{"host": "1.2.3.4", "port": int64(9000)},
	}, got)
}

func TestMatchFlattenedBeatsWholeObject(t *testing.T) {
	got := match(t, Matcher{Prefixes: []string{"APP__"}, Delimiter: "__"}, map[string]interface{}{
		"APP__PROXY":       `{"host":"a","port":1}`,
		"APP__PROXY__PORT": "2",
	})
	assert.Equal(t, map[string]interface{}{"host": "a", "port": int64(2)}, got["proxy"])
}

func TestMatchFlattenedRanks(t *testing.T) {
	got := match(t, Matcher{Prefixes: []string{"APP__"}, Delimiter: "__"}, map[string]interface{}{
		"APP__PROXY__HOST": "lower",
		"APP__proxy__HOST": "mixed",
		"APP__proxy__host": "exact",
		"app__PROXY__PORT": "1",
		"APP__proxy__PORT": "2",
	})
	assert.Equal(t, map[string]interface{}{"host": "exact", "port": int64(2)}, got["proxy"])
}

func TestMatchFlattenedCaseSensitive(t *testing.T) {
	got := match(t, Matcher{Prefixes: []string{"APP__"}, Delimiter: "__", CaseSensitive: true}, map[string]interface{}{
		"APP__PROXY__HOST": "ignored",
		"APP__proxy__port": "1",
	})
	assert.Equal(t, map[string]interface{}{"port": int64(1)}, got["proxy"])
}

func TestMatchAliasPrecedence(t *testing.T) {
	got := match(t, Matcher{}, map[string]interface{}{"APP_NAME": "first", "name": "second"})
	assert.Equal(t, "first", got["name"])
}

func TestMatchCaseInsensitiveFallback(t *testing.T) {
	data := map[string]interface{}{"foo": "x"}

	got := match(t, Matcher{}, data)
	assert.Equal(t, "x", got["Foo"])

	got = match(t, Matcher{CaseSensitive: true}, data)
	assert.NotContains(t, got, "Foo")
}

func TestMatchPrefixOrder(t *testing.T) {
	got := match(t, Matcher{Prefixes: []string{"a_", "b_"}}, map[string]interface{}{
		"b_debug": "false",
		"a_debug": "true",
		"B_FOO":   "from b",
	})
	assert.Equal(t, true, got["debug"])
	assert.Equal(t, "from b", got["Foo"])
}

func TestMatchOptimisticParse(t *testing.T) {
	got := match(t, Matcher{}, map[string]interface{}{
		"debug": "true",
		"tags":  "[1, 2]",
		"name":  "123",
		"extra": "not json",
	})
	assert.Equal(t, true, got["debug"])
	assert.Equal(t, []interface{}{int64(1), int64(2)}, got["tags"])
	assert.Equal(t, "123", got["name"])
	assert.Equal(t, "not json", got["extra"])

	_, err := Matcher{}.Match(alias.Build(appType), map[string]interface{}{"tags": "a,b"})
	require.Error(t, err)
	assert.True(t, errors.IsParse(err))
}

func TestMatchPathAlias(t *testing.T) {
	got := match(t, Matcher{}, map[string]interface{}{
		"CLOUD": `{"regions": ["eu-west-1", "us-east-1"]}`,
	})
	assert.Equal(t, "eu-west-1", got["region"])
}

func TestMatchDiscriminatorProbe(t *testing.T) {
	t.Run("underscore without delimiter", func(t *testing.T) {
		got := match(t, Matcher{}, map[string]interface{}{"DB_DIALECT": "mysql"})
		assert.Equal(t, map[string]interface{}{"dialect": "mysql"}, got["db"])
	})

	t.Run("delimiter", func(t *testing.T) {
		got := match(t, Matcher{Delimiter: "__"}, map[string]interface{}{
			"db__dialect": "mysql",
			"db__host":    "h",
		})
		assert.Equal(t, map[string]interface{}{"dialect": "mysql", "host": "h"}, got["db"])
	})

	t.Run("second alias", func(t *testing.T) {
		nt := &schema.NodeType{Fields: []schema.Field{{
			Name: "db", Kind: schema.KindVariants,
			Alias:          schema.Names("STORE", "DATABASE"),
			Variants:       []*schema.NodeType{postgresType, mysqlType},
			Discriminator:  "dialect",
			DefaultVariant: "postgresql",
		}}}
		got, err := Matcher{}.Match(alias.Build(nt), map[string]interface{}{"DATABASE_DIALECT": "mysql"})
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"dialect": "mysql"}, got["db"])
	})

	t.Run("whole object selects variant", func(t *testing.T) {
		got := match(t, Matcher{}, map[string]interface{}{"db": `{"dialect":"mysql","HOST":"h"}`})
		assert.Equal(t, map[string]interface{}{"dialect": "mysql", "host": "h"}, got["db"])
	})
}

func TestMatchBadNestedObject(t *testing.T) {
	_, err := Matcher{}.Match(alias.Build(appType), map[string]interface{}{"proxy": "[1,2]"})
	require.Error(t, err)
	assert.True(t, errors.IsParse(err))
}

func TestParseLeaf(t *testing.T) {
	tests := []struct {
		name    string
		field   schema.Field
		in      interface{}
		want    interface{}
		wantErr bool
	}{
		{"string passes", schema.Field{Type: schema.TypeString}, "42", "42", false},
		{"int parses", schema.Field{Type: schema.TypeInt}, "42", int64(42), false},
		{"float parses", schema.Field{Type: schema.TypeFloat}, "1.5", 1.5, false},
		{"non string untouched", schema.Field{Type: schema.TypeInt}, 7, 7, false},
		{"nullable string parses null", schema.Field{Type: schema.TypeString, Nullable: true}, "null", nil, false},
		{"literal falls back", schema.Field{Type: schema.TypeString, Literals: []string{"a"}}, "a", "a", false},
		{"int falls back", schema.Field{Type: schema.TypeInt}, "abc", "abc", false},
		{"map fails", schema.Field{Type: schema.TypeMap}, "{bad", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.field
			f.Name = "f"
			got, err := ParseLeaf(&f, tt.in)
			if tt.wantErr {
				assert.True(t, errors.IsParse(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
