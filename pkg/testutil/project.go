package testutil

import (
	"os"
	"path/filepath"

	"github.com/stretchr/testify/suite"
)

// ProjectSuite gives each test a fresh project directory to lay config files out in.
type ProjectSuite struct {
	suite.Suite
	root string
}

// SetupTest creates the project directory for the next test
func (s *ProjectSuite) SetupTest() {
	dir, err := os.MkdirTemp("", "layerconf-test-*")
	s.Require().NoError(err)
	s.root = dir
}

// TearDownTest removes the project directory
func (s *ProjectSuite) TearDownTest() {
	if s.root != "" {
		_ = os.RemoveAll(s.root)
	}
}

// Root returns the project directory
func (s *ProjectSuite) Root() string {
	return s.root
}

// Path joins a slash-separated relative path onto the project directory
func (s *ProjectSuite) Path(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// Write creates files under the project directory
func (s *ProjectSuite) Write(files map[string]string) {
	WriteFiles(s.T(), s.root, files)
}
