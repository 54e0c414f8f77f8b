package source

import (
	"bytes"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ajitpratap0/layerconf/internal/textenc"
	"github.com/ajitpratap0/layerconf/pkg/errors"
)

// ReadEnv snapshots environ, or the process environment when environ is nil.
func ReadEnv(environ []string) map[string]interface{} {
	if environ == nil {
		environ = os.Environ()
	}
	out := make(map[string]interface{}, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// ReadEnvFile parses a dotenv file.
func ReadEnvFile(path, encoding string, ignoreMissing bool) (map[string]interface{}, error) {
	raw, found, err := readBytes("env file", path, ignoreMissing)
	if err != nil {
		return nil, err
	}
	if !found {
		return map[string]interface{}{}, nil
	}
	text, err := textenc.Decode(raw, encoding)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "failed to decode env file").WithDetail("path", path)
	}
	m, err := godotenv.Parse(bytes.NewReader(text))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to parse env file").WithDetail("path", path)
	}
	return toAny(m), nil
}
