package envmatch

import (
	"strings"

	"github.com/ajitpratap0/layerconf/pkg/errors"
	"github.com/ajitpratap0/layerconf/pkg/json"
	"github.com/ajitpratap0/layerconf/pkg/schema"
)

// ParseLeaf converts a raw string found for f into structured data. Values
// that are not strings, and strings bound for plain string fields, pass
// through. A failed parse falls back to the raw string when the field
// tolerates it and is a parse error otherwise.
func ParseLeaf(f *schema.Field, v interface{}) (interface{}, error) {
	s, ok := v.(string)
	if !ok || f == nil || f.StringLike() {
		return v, nil
	}
	parsed, err := json.ParseValue(s)
	if err == nil {
		return parsed, nil
	}
	if f.TolerantParse() {
		return s, nil
	}
	return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to parse value").
		WithDetail("field", f.Name)
}

// parseObject decodes a whole-object value for a nested field.
func parseObject(f *schema.Field, v interface{}) (map[string]interface{}, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return map[string]interface{}{}, nil
		}
		m, err := json.DecodeObject([]byte(t))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to parse nested value").
				WithDetail("field", f.Name)
		}
		return m, nil
	}
	return nil, errors.Newf(errors.ErrorTypeParse, "nested value must be an object, got %T", v).
		WithDetail("field", f.Name)
}
