// Package validate is the boundary between resolution and typed settings
// values. The default Decoder applies field defaults, checks required fields,
// literal sets and declared value types, then decodes the payload into the
// node's Go type with mapstructure.
package validate

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/mitchellh/copystructure"
	"github.com/mitchellh/mapstructure"

	"github.com/ajitpratap0/layerconf/pkg/errors"
	"github.com/ajitpratap0/layerconf/pkg/schema"
)

// TagName is the struct tag mapstructure decodes settings structs by.
const TagName = "settings"

// Validator turns a merged payload into a typed node value.
type Validator interface {
	Validate(nt *schema.NodeType, data map[string]interface{}) (interface{}, error)
}

// Func adapts a plain function to Validator
type Func func(nt *schema.NodeType, data map[string]interface{}) (interface{}, error)

// Validate calls f
func (f Func) Validate(nt *schema.NodeType, data map[string]interface{}) (interface{}, error) {
	return f(nt, data)
}

// Checker is implemented by decoded values that check their own invariants.
type Checker interface {
	Validate() error
}

// Decoder is the default Validator.
type Decoder struct {
	// ErrorUnused rejects payload keys no struct field consumes
	ErrorUnused bool
}

// New returns the default Validator
func New() *Decoder {
	return &Decoder{}
}

// Validate returns nt.New() decoded from data, or the checked map when the
// node type has no Go type. Failures are reported as one validation error
// listing every violation.
func (d *Decoder) Validate(nt *schema.NodeType, data map[string]interface{}) (interface{}, error) {
	var violations []errors.Violation
	out := check(nt, data, "", &violations)
	if len(violations) > 0 {
		return nil, failure(nt, violations)
	}
	if nt.New == nil {
		return out, nil
	}

	target := nt.New()
	if err := d.decode(out, target); err != nil {
		return nil, failure(nt, decodeViolations(err))
	}
	if c, ok := target.(Checker); ok {
		if err := c.Validate(); err != nil {
			return nil, failure(nt, []errors.Violation{{Message: err.Error()}})
		}
	}
	return target, nil
}

func (d *Decoder) decode(in, target interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      d.ErrorUnused,
		TagName:          TagName,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

func failure(nt *schema.NodeType, violations []errors.Violation) error {
	sort.SliceStable(violations, func(i, j int) bool { return violations[i].Field < violations[j].Field })
	msg := "validation failed"
	if len(violations) > 0 {
		msg = fmt.Sprintf("validation failed: %s", violations[0])
		if len(violations) > 1 {
			msg = fmt.Sprintf("%s (and %d more)", msg, len(violations)-1)
		}
	}
	return errors.New(errors.ErrorTypeValidation, msg).
		WithDetail("node", nt.Name).
		WithDetail("violations", violations)
}

func decodeViolations(err error) []errors.Violation {
	merr, ok := err.(*mapstructure.Error)
	if !ok {
		return []errors.Violation{{Message: err.Error()}}
	}
	out := make([]errors.Violation, 0, len(merr.Errors))
	for _, msg := range merr.Errors {
		out = append(out, errors.Violation{Message: msg})
	}
	return out
}

// check applies defaults and per-field checks to data, returning a new map.
func check(nt *schema.NodeType, data map[string]interface{}, path string, vs *[]errors.Violation) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	for i := range nt.Fields {
		f := &nt.Fields[i]
		name := path + f.Name
		v, ok := out[f.Name]
		if !ok {
			if f.Default == nil {
				if f.Required {
					*vs = append(*vs, errors.Violation{Field: name, Message: "field required"})
				}
				continue
			}
			v = copyValue(f.Default)
			out[f.Name] = v
		}
		if v == nil {
			if !f.Nullable && f.Type != schema.TypeAny && f.Kind == schema.KindValue {
				*vs = append(*vs, errors.Violation{Field: name, Message: "must not be null"})
			}
			continue
		}

		switch f.Kind {
		case schema.KindRecord:
			m, isMap := v.(map[string]interface{})
			if !isMap {
				*vs = append(*vs, errors.Violation{Field: name, Message: fmt.Sprintf("expected an object, got %T", v)})
				continue
			}
			out[f.Name] = check(f.Node, m, name+".", vs)
		case schema.KindValue:
			coerced, err := coerce(f.Type, v)
			if err != nil {
				*vs = append(*vs, errors.Violation{Field: name, Message: err.Error()})
				continue
			}
			if len(f.Literals) > 0 && !isLiteral(f.Literals, coerced) {
				*vs = append(*vs, errors.Violation{Field: name, Message: fmt.Sprintf("must be one of %v", f.Literals)})
				continue
			}
			out[f.Name] = coerced
		}
	}
	return out
}

var targets = map[schema.ValueType]reflect.Type{
	schema.TypeString:   reflect.TypeOf(""),
	schema.TypeBool:     reflect.TypeOf(false),
	schema.TypeInt:      reflect.TypeOf(int64(0)),
	schema.TypeFloat:    reflect.TypeOf(float64(0)),
	schema.TypeDuration: reflect.TypeOf(time.Duration(0)),
	schema.TypeList:     reflect.TypeOf([]interface{}{}),
	schema.TypeMap:      reflect.TypeOf(map[string]interface{}{}),
}

// coerce converts v to the Go representation of t with weak typing.
func coerce(t schema.ValueType, v interface{}) (interface{}, error) {
	rt, ok := targets[t]
	if !ok {
		return v, nil
	}
	ptr := reflect.New(rt)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           ptr.Interface(),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v); err != nil {
		return nil, fmt.Errorf("expected %s: %w", t, err)
	}
	return ptr.Elem().Interface(), nil
}

func isLiteral(literals []string, v interface{}) bool {
	s := fmt.Sprint(v)
	for _, l := range literals {
		if l == s {
			return true
		}
	}
	return false
}

func copyValue(v interface{}) interface{} {
	c, err := copystructure.Copy(v)
	if err != nil {
		return v
	}
	return c
}
