package inherit

import (
	"sort"

	"github.com/ajitpratap0/layerconf/pkg/modepath"
)

// FileConfig is the resolved structured-config-file domain.
type FileConfig struct {
	File             []string          `mapstructure:"conf_file"`
	Dir              []string          `mapstructure:"conf_dir"`
	Ext              []string          `mapstructure:"conf_ext"`
	Encoding         string            `mapstructure:"conf_file_encoding"`
	CaseSensitive    bool              `mapstructure:"conf_case_sensitive"`
	IgnoreMissing    bool              `mapstructure:"conf_ignore_missing"`
	CustomExtHandler map[string]string `mapstructure:"conf_custom_ext_handler"`
	Include          []string          `mapstructure:"conf_include_inherit_parent"`
	Exclude          []string          `mapstructure:"conf_exclude_inherit_parent"`
}

// EnvConfig is the resolved environment domain.
type EnvConfig struct {
	File                  []string `mapstructure:"env_file"`
	Prefix                string   `mapstructure:"env_prefix"`
	PrefixAsModeDir       bool     `mapstructure:"env_prefix_as_mode_dir"`
	PrefixAsNestedModeDir bool     `mapstructure:"env_prefix_as_nested_mode_dir"`
	PrefixAsSourceModeDir bool     `mapstructure:"env_prefix_as_source_mode_dir"`
	Encoding              string   `mapstructure:"env_file_encoding"`
	CaseSensitive         bool     `mapstructure:"env_case_sensitive"`
	NestedDelimiter       string   `mapstructure:"env_nested_delimiter"`
	IgnoreMissing         bool     `mapstructure:"env_ignore_missing"`
	Include               []string `mapstructure:"env_include_inherit_parent"`
	Exclude               []string `mapstructure:"env_exclude_inherit_parent"`
}

// GlobalConfig is the resolved global domain.
type GlobalConfig struct {
	CaseSensitive bool     `mapstructure:"case_sensitive"`
	IgnoreMissing bool     `mapstructure:"ignore_missing"`
	Encoding      string   `mapstructure:"encoding"`
	CLI           bool     `mapstructure:"cli"`
	SecretsDir    string   `mapstructure:"secrets_dir"`
	Include       []string `mapstructure:"include_inherit_parent"`
	Exclude       []string `mapstructure:"exclude_inherit_parent"`
}

// Effective is a node's fully resolved configuration. It is produced once by
// Resolve and must not be mutated afterwards.
type Effective struct {
	ModeDirInheritNested         bool     `mapstructure:"mode_dir_inherit_nested"`
	ModeDirInheritParent         bool     `mapstructure:"mode_dir_inherit_parent"`
	FileInheritParent            bool     `mapstructure:"file_config_inherit_parent"`
	EnvInheritParent             bool     `mapstructure:"env_config_inherit_parent"`
	HandlerInheritParent         bool     `mapstructure:"handler_inherit_parent"`
	OrderedSettingsInheritParent bool     `mapstructure:"ordered_settings_inherit_parent"`
	Handler                      string   `mapstructure:"handler"`
	OrderedSettings              []string `mapstructure:"ordered_settings"`

	File   FileConfig   `mapstructure:",squash"`
	Env    EnvConfig    `mapstructure:",squash"`
	Global GlobalConfig `mapstructure:",squash"`

	Mode      modepath.Context `mapstructure:"-"`
	ModePath  string           `mapstructure:"-"`
	ConfPaths []string         `mapstructure:"-"`
	EnvPaths  []string         `mapstructure:"-"`
	// Inherited lists the keys taken from the parent, sorted
	Inherited []string `mapstructure:"-"`

	values   Declaration
	explicit map[string]bool
	policies map[Domain]Policy
}

// Value returns the resolved value of key
func (e *Effective) Value(key string) interface{} {
	return cloneValue(e.values[key])
}

// Values returns a copy of every resolved key
func (e *Effective) Values() Declaration {
	out := e.values.Clone()
	out[KeyModeDir] = e.ModePath
	return out
}

// Explicit reports whether key was declared, overridden or inherited rather
// than left at its default. Only explicit keys are passed on to children.
func (e *Effective) Explicit(key string) bool {
	return e.explicit[key]
}

// Policy returns the include/exclude policy used for domain d
func (e *Effective) Policy(d Domain) Policy {
	return e.policies[policyDomain(d)]
}

// WasInherited reports whether key was taken from the parent
func (e *Effective) WasInherited(key string) bool {
	i := sort.SearchStrings(e.Inherited, key)
	return i < len(e.Inherited) && e.Inherited[i] == key
}
