// Package source reads raw configuration data: the process environment,
// .env files, structured config files, secrets directories and CLI values.
// Readers know nothing about target fields.
package source

import (
	"os"

	"github.com/ajitpratap0/layerconf/pkg/errors"
)

// missing returns an empty map when ignoreMissing is set, else a source error.
func missing(kind, path string, ignoreMissing bool, cause error) (map[string]interface{}, error) {
	if ignoreMissing {
		return map[string]interface{}{}, nil
	}
	err := errors.New(errors.ErrorTypeSource, kind+" not found").WithDetail("path", path)
	err.Cause = cause
	return nil, err
}

// readBytes reads path. found is false, with a nil error, for a missing file
// that may be ignored.
func readBytes(kind, path string, ignoreMissing bool) (b []byte, found bool, err error) {
	b, err = os.ReadFile(path) //nolint:gosec // G304: path comes from the resolved configuration
	if err == nil {
		return b, true, nil
	}
	if os.IsNotExist(err) {
		_, err = missing(kind, path, ignoreMissing, err)
		return nil, false, err
	}
	return nil, false, errors.Wrap(err, errors.ErrorTypeSource, "failed to read "+kind).WithDetail("path", path)
}

func toAny(m map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
