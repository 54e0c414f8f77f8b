package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/layerconf/pkg/errors"
	"github.com/ajitpratap0/layerconf/pkg/inherit"
)

const appSchema = `
root: App
types:
  - name: Proxy
    config:
      mode_dir: proxy
    fields:
      - {name: host, type: string}
      - {name: port, type: int, default: 3128}
  - name: App
    config:
      env_prefix: APP_
      conf_ext: [yaml]
    fields:
      - name: port
        type: int
        alias: [listen.port, port]
      - {name: mode, type: string, literals: [dev, prod], default: dev}
      - {name: proxy, settings: Proxy}
      - {name: db, variants: [Pg], discriminator: dialect, default_variant: postgresql}
`

func TestLoadYAML(t *testing.T) {
	reg := NewRegistry()
	pg := &NodeType{Name: "Pg", Fields: []Field{{Name: "dialect", Default: "postgresql"}}}
	require.NoError(t, reg.Register(pg))

	s, err := LoadYAML([]byte(appSchema), reg)
	require.NoError(t, err)
	require.NotNil(t, s.Root)
	assert.Equal(t, "App", s.Root.Name)
	assert.Equal(t, "APP_", s.Root.Config[inherit.KeyEnvPrefix])

	port := s.Root.Field("port")
	require.NotNil(t, port)
	assert.Equal(t, TypeInt, port.Type)
	require.Len(t, port.Alias, 2)
	assert.Equal(t, PathOf("listen", "port"), port.Alias[0].Path)
	assert.Equal(t, "port", port.Alias[1].Name)

	mode := s.Root.Field("mode")
	assert.Equal(t, []string{"dev", "prod"}, mode.Literals)
	assert.Equal(t, "dev", mode.Default)

	proxy, ok := s.Type("Proxy")
	require.True(t, ok)
	assert.Same(t, proxy, s.Root.Field("proxy").Node)
	assert.Equal(t, KindSettings, s.Root.Field("proxy").Kind)
	assert.Equal(t, 3128, proxy.Field("port").Default)

	db := s.Root.Field("db")
	assert.Equal(t, KindVariants, db.Kind)
	assert.Equal(t, []*NodeType{pg}, db.Variants)
}

func TestLoadYAMLErrors(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		check  func(error) bool
	}{
		{"syntax", "types: [", errors.IsParse},
		{"unknown reference", "types:\n  - name: A\n    fields:\n      - {name: b, settings: Missing}\n", errors.IsConfig},
		{"unknown type", "types:\n  - name: A\n    fields:\n      - {name: b, type: complex}\n", errors.IsConfig},
		{"duplicate", "types:\n  - name: A\n  - name: A\n", errors.IsConfig},
		{"self base", "types:\n  - name: A\n    base: A\n", errors.IsConfig},
		{"variants without discriminator", "types:\n  - name: V\n  - name: A\n    fields:\n      - {name: b, variants: [V]}\n", errors.IsConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadYAML([]byte(tt.schema), nil)
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}
}

func TestLoadFileSubstitutesEnv(t *testing.T) {
	t.Setenv("LAYERCONF_TEST_PREFIX", "SVC_")
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("types:\n  - name: Svc\n    config: {env_prefix: ${LAYERCONF_TEST_PREFIX}}\n"), 0o600))

	s, err := LoadFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "Svc", s.Root.Name)
	assert.Equal(t, "SVC_", s.Root.Config[inherit.KeyEnvPrefix])

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.True(t, errors.IsConfig(err))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&NodeType{Name: "B"}))
	require.NoError(t, reg.Register(&NodeType{Name: "A"}))
	assert.True(t, errors.IsConfig(reg.Register(&NodeType{Name: "A"})))
	assert.True(t, errors.IsConfig(reg.Register(&NodeType{})))
	assert.Equal(t, []string{"A", "B"}, reg.Names())

	_, ok := reg.Lookup("C")
	assert.False(t, ok)
	var nilReg *Registry
	_, ok = nilReg.Lookup("A")
	assert.False(t, ok)
}
