package inherit

// Domain groups configuration keys that share an inheritance switch.
type Domain int

const (
	DomainMode Domain = iota
	DomainSwitch
	DomainHandler
	DomainOrdered
	DomainFile
	DomainEnv
	DomainGlobal
)

func (d Domain) String() string {
	switch d {
	case DomainMode:
		return "mode"
	case DomainSwitch:
		return "switch"
	case DomainHandler:
		return "handler"
	case DomainOrdered:
		return "ordered_settings"
	case DomainFile:
		return "file"
	case DomainEnv:
		return "env"
	default:
		return "global"
	}
}

// Configuration keys.
const (
	KeyModeDir              = "mode_dir"
	KeyModeDirInheritNested = "mode_dir_inherit_nested"
	KeyModeDirInheritParent = "mode_dir_inherit_parent"

	KeyFileConfigInheritParent      = "file_config_inherit_parent"
	KeyEnvConfigInheritParent       = "env_config_inherit_parent"
	KeyHandlerInheritParent         = "handler_inherit_parent"
	KeyOrderedSettingsInheritParent = "ordered_settings_inherit_parent"

	KeyHandler         = "handler"
	KeyOrderedSettings = "ordered_settings"

	KeyConfFile             = "conf_file"
	KeyConfDir              = "conf_dir"
	KeyConfExt              = "conf_ext"
	KeyConfFileEncoding     = "conf_file_encoding"
	KeyConfCaseSensitive    = "conf_case_sensitive"
	KeyConfIgnoreMissing    = "conf_ignore_missing"
	KeyConfCustomExtHandler = "conf_custom_ext_handler"
	KeyConfInclude          = "conf_include_inherit_parent"
	KeyConfExclude          = "conf_exclude_inherit_parent"

	KeyEnvFile                  = "env_file"
	KeyEnvPrefix                = "env_prefix"
	KeyEnvPrefixAsModeDir       = "env_prefix_as_mode_dir"
	KeyEnvPrefixAsNestedModeDir = "env_prefix_as_nested_mode_dir"
	KeyEnvPrefixAsSourceModeDir = "env_prefix_as_source_mode_dir"
	KeyEnvFileEncoding          = "env_file_encoding"
	KeyEnvCaseSensitive         = "env_case_sensitive"
	KeyEnvNestedDelimiter       = "env_nested_delimiter"
	KeyEnvIgnoreMissing         = "env_ignore_missing"
	KeyEnvInclude               = "env_include_inherit_parent"
	KeyEnvExclude               = "env_exclude_inherit_parent"

	KeyCaseSensitive = "case_sensitive"
	KeyIgnoreMissing = "ignore_missing"
	KeyEncoding      = "encoding"
	KeyCLI           = "cli"
	KeySecretsDir    = "secrets_dir"
	KeyInclude       = "include_inherit_parent"
	KeyExclude       = "exclude_inherit_parent"
)

// Source identifiers accepted in ordered_settings.
const (
	SourceCLI        = "cli"
	SourceInitKwargs = "init_kwargs"
	SourceEnv        = "env"
	SourceEnvFile    = "env_file"
	SourceSecrets    = "secrets"
	SourceConfFile   = "conf_file"
)

// DefaultHandler is the name of the built-in pipeline handler.
const DefaultHandler = "default"

// DefaultOrderedSettings is the built-in source priority, highest first.
var DefaultOrderedSettings = []string{
	SourceCLI, SourceInitKwargs, SourceEnv, SourceEnvFile, SourceSecrets, SourceConfFile,
}

type keySpec struct {
	name   string
	domain Domain
	def    interface{}
	// fallback names the global key used when the value resolves to nil
	fallback string
	list     bool
}

// catalogue is ordered; resolution walks it front to back.
var catalogue = []keySpec{
	{name: KeyModeDir, domain: DomainMode},
	{name: KeyModeDirInheritNested, domain: DomainMode, def: true},
	{name: KeyModeDirInheritParent, domain: DomainMode, def: true},

	{name: KeyFileConfigInheritParent, domain: DomainSwitch, def: true},
	{name: KeyEnvConfigInheritParent, domain: DomainSwitch, def: true},
	{name: KeyHandlerInheritParent, domain: DomainSwitch, def: true},
	{name: KeyOrderedSettingsInheritParent, domain: DomainSwitch, def: true},

	{name: KeyHandler, domain: DomainHandler, def: DefaultHandler},
	{name: KeyOrderedSettings, domain: DomainOrdered, def: DefaultOrderedSettings},

	{name: KeyCaseSensitive, domain: DomainGlobal, def: false},
	{name: KeyIgnoreMissing, domain: DomainGlobal, def: true},
	{name: KeyEncoding, domain: DomainGlobal, def: ""},
	{name: KeyCLI, domain: DomainGlobal, def: false},
	{name: KeySecretsDir, domain: DomainGlobal, def: ""},
	{name: KeyInclude, domain: DomainGlobal, list: true},
	{name: KeyExclude, domain: DomainGlobal, list: true},

	{name: KeyConfFile, domain: DomainFile, def: []string{"config"}},
	{name: KeyConfDir, domain: DomainFile, def: []string{"config"}},
	{name: KeyConfExt, domain: DomainFile, def: []string{"toml", "yaml", "yml", "json"}},
	{name: KeyConfFileEncoding, domain: DomainFile, fallback: KeyEncoding},
	{name: KeyConfCaseSensitive, domain: DomainFile, fallback: KeyCaseSensitive},
	{name: KeyConfIgnoreMissing, domain: DomainFile, fallback: KeyIgnoreMissing},
	{name: KeyConfCustomExtHandler, domain: DomainFile, def: map[string]string{}},
	{name: KeyConfInclude, domain: DomainFile, list: true},
	{name: KeyConfExclude, domain: DomainFile, list: true},

	{name: KeyEnvFile, domain: DomainEnv, def: []string{".env"}},
	{name: KeyEnvPrefix, domain: DomainEnv, def: ""},
	{name: KeyEnvPrefixAsModeDir, domain: DomainEnv, def: false},
	{name: KeyEnvPrefixAsNestedModeDir, domain: DomainEnv, def: false},
	{name: KeyEnvPrefixAsSourceModeDir, domain: DomainEnv, def: false},
	{name: KeyEnvFileEncoding, domain: DomainEnv, fallback: KeyEncoding},
	{name: KeyEnvCaseSensitive, domain: DomainEnv, fallback: KeyCaseSensitive},
	{name: KeyEnvNestedDelimiter, domain: DomainEnv, def: ""},
	{name: KeyEnvIgnoreMissing, domain: DomainEnv, fallback: KeyIgnoreMissing},
	{name: KeyEnvInclude, domain: DomainEnv, list: true},
	{name: KeyEnvExclude, domain: DomainEnv, list: true},
}

var specs = func() map[string]keySpec {
	m := make(map[string]keySpec, len(catalogue))
	for _, s := range catalogue {
		m[s.name] = s
	}
	return m
}()

// Keys returns every known configuration key in catalogue order.
func Keys() []string {
	out := make([]string, len(catalogue))
	for i, s := range catalogue {
		out[i] = s.name
	}
	return out
}

// Known reports whether key is a configuration key
func Known(key string) bool {
	_, ok := specs[key]
	return ok
}

// DomainOf returns the domain a key belongs to
func DomainOf(key string) Domain {
	return specs[key].domain
}

// Defaults returns the built-in default for every key that has one.
func Defaults() Declaration {
	d := make(Declaration, len(catalogue))
	for _, s := range catalogue {
		if s.def != nil {
			d[s.name] = cloneValue(s.def)
		}
	}
	return d
}

// listKeys maps a policy domain to its include and exclude keys.
func listKeys(d Domain) (include, exclude string) {
	switch d {
	case DomainFile:
		return KeyConfInclude, KeyConfExclude
	case DomainEnv:
		return KeyEnvInclude, KeyEnvExclude
	default:
		return KeyInclude, KeyExclude
	}
}

func isListKey(key string) bool {
	return specs[key].list
}
