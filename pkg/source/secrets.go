package source

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ajitpratap0/layerconf/internal/textenc"
	"github.com/ajitpratap0/layerconf/pkg/errors"
)

// ReadSecretsDir returns one entry per extensionless regular file under dir,
// searched recursively: the file name is the key, the trimmed contents the value.
// When two files share a name the one found first in lexical walk order wins.
func ReadSecretsDir(dir, encoding string, ignoreMissing bool) (map[string]interface{}, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return missing("secrets directory", dir, ignoreMissing, err)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "failed to stat secrets directory").WithDetail("path", dir)
	}
	if !info.IsDir() {
		return nil, errors.New(errors.ErrorTypeSource, "secrets path is not a directory").WithDetail("path", dir)
	}

	out := map[string]interface{}{}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || filepath.Ext(d.Name()) != "" {
			return nil
		}
		if _, seen := out[d.Name()]; seen {
			return nil
		}
		raw, err := os.ReadFile(path) //nolint:gosec // G304: walking a configured secrets directory
		if err != nil {
			return err
		}
		text, err := textenc.Decode(raw, encoding)
		if err != nil {
			return err
		}
		out[d.Name()] = strings.TrimSpace(string(text))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "failed to read secrets directory").WithDetail("path", dir)
	}
	return out, nil
}
