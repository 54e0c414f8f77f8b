package alias

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/layerconf/pkg/schema"
)

var proxyType = &schema.NodeType{
	Name: "Proxy",
	Fields: []schema.Field{
		{Name: "host", Type: schema.TypeString, Alias: schema.Names("HOST")},
		{Name: "port", Type: schema.TypeInt},
	},
}

var appType = &schema.NodeType{
	Name: "App",
	Fields: []schema.Field{
		{Name: "proxy", Kind: schema.KindRecord, Node: proxyType},
		{Name: "extra", Kind: schema.KindRecord, Node: proxyType, Alias: schema.PathAlias("cfg", "extra")},
	},
}

func variant(name, dialect string) *schema.NodeType {
	return &schema.NodeType{
		Name: name,
		Fields: []schema.Field{
			{Name: "dialect", Type: schema.TypeString, Default: dialect},
			{Name: "host", Type: schema.TypeString},
		},
	}
}

func TestBuildAliases(t *testing.T) {
	nt := &schema.NodeType{Fields: []schema.Field{
		{Name: "plain"},
		{Name: "multi", Alias: schema.Names("Foo", "bar")},
		{Name: "pathy", Alias: schema.Names("A").Or(schema.PathAlias("Cfg", "inner", 0))},
	}}
	ix := Build(nt)

	plain := ix.Entry("plain")
	assert.Equal(t, []string{"plain"}, plain.Aliases)
	assert.Equal(t, []string{"plain"}, plain.Folded)

	multi := ix.Entry("multi")
	assert.Equal(t, []string{"Foo", "bar"}, multi.Aliases)
	assert.Equal(t, []string{"Foo", "foo", "bar"}, multi.Folded)

	pathy := ix.Entry("pathy")
	assert.Equal(t, []string{"A", "Cfg"}, pathy.Aliases)
	assert.True(t, pathy.IsPathHead("Cfg"))
	assert.True(t, pathy.IsPathHead("cfg"))
	assert.False(t, pathy.IsPathHead("A"))
	p, ok := pathy.Path("cfg")
	require.True(t, ok)
	assert.Equal(t, "Cfg.inner.0", p.String())

	assert.Nil(t, ix.Entry("missing"))
	assert.Equal(t, multi, ix.Lookup("FOO", false))
	assert.Nil(t, ix.Lookup("FOO", true))
}

func TestNestedChains(t *testing.T) {
	root := &schema.NodeType{Fields: []schema.Field{{Name: "app", Kind: schema.KindSettings, Node: appType}}}
	ix := Build(root)
	app := ix.Entry("app")
	require.NotNil(t, app.Nested)

	assert.Equal(t, [][]string{
		{"proxy"},
		{"proxy", "HOST"},
		{"proxy", "port"},
		{"cfg"},
	}, app.Nested.Chains(true))

	folded := app.Nested.Chains(false)
	assert.Contains(t, folded, []string{"proxy", "host"})
	assert.NotContains(t, folded, []string{"cfg", "HOST"})

	names, last, ok := app.Nested.Resolve([]string{"PROXY", "host"}, false)
	require.True(t, ok)
	assert.Equal(t, []string{"proxy", "host"}, names)
	assert.Equal(t, "host", last.Name())

	_, _, ok = app.Nested.Resolve([]string{"PROXY", "host"}, true)
	assert.False(t, ok)
}

func TestNestedChainsRecursiveType(t *testing.T) {
	node := &schema.NodeType{Name: "Node"}
	node.Fields = []schema.Field{
		{Name: "name"},
		{Name: "child", Kind: schema.KindRecord, Node: node},
	}
	ix := Build(&schema.NodeType{Fields: []schema.Field{{Name: "tree", Kind: schema.KindRecord, Node: node}}})

	chains := ix.Entry("tree").Nested.Chains(true)
	assert.Contains(t, chains, []string{"name"})
	assert.Contains(t, chains, []string{"child"})
}

func TestMapperAliasPrecedence(t *testing.T) {
	nt := &schema.NodeType{Fields: []schema.Field{{Name: "v", Alias: schema.Names("A", "B")}}}
	out, err := Mapper{CaseSensitive: true}.Map(Build(nt), map[string]interface{}{"A": 1, "B": 2})
	require.NoError(t, err)
	assert.Equal(t, 1, out["v"])

	out, err = Mapper{CaseSensitive: true}.Map(Build(nt), map[string]interface{}{"B": 2})
	require.NoError(t, err)
	assert.Equal(t, 2, out["v"])
}

func TestMapperCaseInsensitiveFallback(t *testing.T) {
	nt := &schema.NodeType{Fields: []schema.Field{{Name: "v", Alias: schema.Names("Foo")}}}
	data := map[string]interface{}{"foo": "x"}

	out, err := Mapper{}.Map(Build(nt), data)
	require.NoError(t, err)
	assert.Equal(t, "x", out["v"])

	out, err = Mapper{CaseSensitive: true}.Map(Build(nt), data)
	require.NoError(t, err)
	assert.NotContains(t, out, "v")

	out, err = Mapper{}.Map(Build(nt), map[string]interface{}{"FOO": "upper", "Foo": "exact"})
	require.NoError(t, err)
	assert.Equal(t, "exact", out["v"])
}

func TestMapperPathAlias(t *testing.T) {
	nt := &schema.NodeType{Fields: []schema.Field{{Name: "v", Alias: schema.PathAlias("Cfg", "inner", 1)}}}
	ix := Build(nt)

	out, err := Mapper{}.Map(ix, map[string]interface{}{"Cfg": map[string]interface{}{"inner": []interface{}{"x", "y"}}})
	require.NoError(t, err)
	assert.Equal(t, "y", out["v"])

	out, err = Mapper{}.Map(ix, map[string]interface{}{"cfg": `{"INNER": ["x", "z"]}`})
	require.NoError(t, err)
	assert.Equal(t, "z", out["v"])

	out, err = Mapper{}.Map(ix, map[string]interface{}{"Cfg": map[string]interface{}{"inner": []interface{}{}}})
	require.NoError(t, err)
	assert.NotContains(t, out, "v")
}

func TestMapperNestedRecords(t *testing.T) {
	ix := Build(appType)
	out, err := Mapper{CaseSensitive: true}.Map(ix, map[string]interface{}{
		"proxy": map[string]interface{}{"HOST": "h", "port": 1, "junk": true},
		"cfg":   map[string]interface{}{"extra": map[string]interface{}{"HOST": "e"}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"proxy": map[string]interface{}{"host": "h", "port": 1},
		"extra": map[string]interface{}{"host": "e"},
	}, out)
}

func TestMapperByName(t *testing.T) {
	ix := Build(proxyType)
	data := map[string]interface{}{"host": "h"}

	out, err := Mapper{CaseSensitive: true}.Map(ix, data)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = Mapper{CaseSensitive: true, ByName: true}.Map(ix, data)
	require.NoError(t, err)
	assert.Equal(t, "h", out["host"])
}

func TestMapperParseHook(t *testing.T) {
	ix := Build(proxyType)
	calls := 0
	m := Mapper{Parse: func(f *schema.Field, v interface{}) (interface{}, error) {
		calls++
		if f.Name == "port" {
			return 9000, nil
		}
		return v, nil
	}}
	out, err := m.Map(ix, map[string]interface{}{"HOST": "h", "port": "9000"})
	require.NoError(t, err)
	assert.Equal(t, 9000, out["port"])
	assert.Equal(t, 2, calls)
}

func TestSelectVariant(t *testing.T) {
	pg, my := variant("Postgres", "postgresql"), variant("MySQL", "mysql")
	nt := &schema.NodeType{Fields: []schema.Field{{
		Name:           "db",
		Kind:           schema.KindVariants,
		Variants:       []*schema.NodeType{pg, my},
		Discriminator:  "dialect",
		DefaultVariant: "postgresql",
	}}}
	e := Build(nt).Entry("db")

	tbl, i := e.Select(map[string]interface{}{"DIALECT": "MySQL"}, false)
	require.NotNil(t, tbl)
	assert.Equal(t, 1, i)
	assert.Equal(t, my, tbl.Type)

	tbl, i = e.Select(map[string]interface{}{"host": "h"}, false)
	require.NotNil(t, tbl)
	assert.Equal(t, 0, i)

	tbl, _ = e.Select(map[string]interface{}{"dialect": "oracle"}, false)
	assert.Nil(t, tbl)

	tbl, _ = e.Select(map[string]interface{}{"dialect": "MySQL"}, true)
	assert.Nil(t, tbl)
	tbl, i = e.Select(map[string]interface{}{"dialect": "mysql"}, true)
	require.NotNil(t, tbl)
	assert.Equal(t, 1, i)

	out, err := Mapper{}.Map(Build(nt), map[string]interface{}{"db": map[string]interface{}{"dialect": "mysql", "HOST": "h"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"dialect": "mysql", "host": "h"}, out["db"])
}

func TestSearchAndBuildPath(t *testing.T) {
	p := schema.PathOf("a", "b")
	built := BuildPath(p, 3)
	v, ok := Search(p, built, true)
	require.True(t, ok)
	assert.Equal(t, 3, v)

	v, ok = Search(schema.PathOf("l", -1), map[string]interface{}{"l": []string{"x", "y"}}, true)
	require.True(t, ok)
	assert.Equal(t, "y", v)

	_, ok = Search(schema.PathOf("l", 5), map[string]interface{}{"l": []interface{}{1}}, true)
	assert.False(t, ok)
}
