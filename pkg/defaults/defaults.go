// Package defaults loads the process-wide default declaration: the tier that
// sits between the built-in key defaults and a node type's own declaration.
// It comes from a single project file, layerconf.{toml,yaml,yml,json}, found
// by walking up from the working directory, and from LAYERCONF_<KEY>
// environment variables, which win over the file.
package defaults

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/layerconf/pkg/errors"
	"github.com/ajitpratap0/layerconf/pkg/inherit"
	"github.com/ajitpratap0/layerconf/pkg/logger"
)

const (
	// FileName is the base name of the project defaults file
	FileName = "layerconf"
	// EnvPrefix prefixes environment overrides, as in LAYERCONF_ENV_PREFIX
	EnvPrefix = "LAYERCONF"
	// SearchDepth is how many parent directories are searched above the start
	SearchDepth = 3
)

// Extensions lists the defaults file extensions in probe order
var Extensions = []string{"toml", "yaml", "yml", "json"}

// Store reads the defaults at most once unless asked to reload.
type Store struct {
	start  string
	file   string
	logger *zap.Logger

	once sync.Once
	mu   sync.RWMutex
	decl inherit.Declaration
	path string
	err  error
}

// Option configures a Store
type Option func(*Store)

// WithStartDir sets the directory discovery starts from. Defaults to the working directory.
func WithStartDir(dir string) Option {
	return func(s *Store) { s.start = dir }
}

// WithFile skips discovery and reads path
func WithFile(path string) Option {
	return func(s *Store) { s.file = path }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a Store
func NewStore(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	return s
}

// Load returns the defaults, reading them on the first call only.
func (s *Store) Load() (inherit.Declaration, error) {
	s.once.Do(func() {
		decl, path, err := s.read()
		s.mu.Lock()
		s.decl, s.path, s.err = decl, path, err
		s.mu.Unlock()
	})
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decl.Clone(), s.err
}

// Reload reads the defaults again. A file found at a different path than
// the previous read is logged as a warning.
func (s *Store) Reload() (inherit.Declaration, error) {
	if _, err := s.Load(); err != nil {
		s.logger.Debug("previous defaults read failed", zap.Error(err))
	}
	decl, path, err := s.read()

	s.mu.Lock()
	prev := s.path
	s.decl, s.path, s.err = decl, path, err
	s.mu.Unlock()

	if err == nil && prev != path {
		s.logger.Warn("defaults file changed since the first read",
			zap.String("previous", prev),
			zap.String("current", path))
	}
	return decl.Clone(), err
}

// Path returns the defaults file read last, empty when none was found
func (s *Store) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Root returns the project root: the directory holding the defaults file.
func (s *Store) Root() string {
	p := s.Path()
	if p == "" {
		return ""
	}
	return filepath.Dir(p)
}

func (s *Store) read() (inherit.Declaration, string, error) {
	path := s.file
	if path == "" {
		start := s.start
		if start == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, "", errors.Wrap(err, errors.ErrorTypeSource, "failed to get working directory")
			}
			start = wd
		}
		path = Discover(start)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	decl := inherit.Declaration{}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, path, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read defaults file").
				WithDetail("path", path)
		}
		for _, k := range v.AllKeys() {
			// nested tables, such as the custom extension handler map, flatten
			// to dotted keys; the head is the declaration key
			head, _, _ := strings.Cut(k, ".")
			decl[head] = v.Get(head)
		}
	}
	for _, k := range inherit.Keys() {
		if _, ok := os.LookupEnv(EnvPrefix + "_" + strings.ToUpper(k)); ok {
			decl[k] = v.Get(k)
		}
	}

	if err := decl.Check(); err != nil {
		return nil, path, errors.Wrap(err, errors.ErrorTypeConfig, "invalid defaults").WithDetail("path", path)
	}
	s.logger.Debug("loaded process defaults", zap.String("path", path), zap.Int("keys", len(decl)))
	return decl, path, nil
}

// Discover returns the first defaults file found in start or up to
// SearchDepth of its parents, or "" when there is none.
func Discover(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		dir = start
	}
	for i := 0; i <= SearchDepth; i++ {
		for _, ext := range Extensions {
			candidate := filepath.Join(dir, FileName+"."+ext)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

var global = struct {
	sync.Mutex
	store *Store
}{}

// Global returns the process-wide Store, created on first use.
func Global() *Store {
	global.Lock()
	defer global.Unlock()
	if global.store == nil {
		global.store = NewStore()
	}
	return global.store
}

// SetGlobal replaces the process-wide Store, for tests and embedding programs
func SetGlobal(s *Store) {
	global.Lock()
	defer global.Unlock()
	global.store = s
}
