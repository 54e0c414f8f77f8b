package source

import (
	stderrors "errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ajitpratap0/layerconf/pkg/errors"
)

// CLIFunc returns flat key/value pairs parsed from a command line.
type CLIFunc func() (map[string]interface{}, error)

// ReadCLI invokes fn. A nil fn yields an empty map.
func ReadCLI(fn CLIFunc) (map[string]interface{}, error) {
	if fn == nil {
		return map[string]interface{}{}, nil
	}
	m, err := fn()
	if err != nil {
		var typed *errors.Error
		if stderrors.As(err, &typed) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrorTypeSource, "failed to read command line")
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, nil
}

// FlagSetCLI exposes the flags explicitly set on fs. Slice flags yield lists.
func FlagSetCLI(fs *pflag.FlagSet) CLIFunc {
	return func() (map[string]interface{}, error) {
		out := map[string]interface{}{}
		fs.Visit(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				items := sv.GetSlice()
				list := make([]interface{}, len(items))
				for i, s := range items {
					list[i] = s
				}
				out[f.Name] = list
				return
			}
			out[f.Name] = f.Value.String()
		})
		return out, nil
	}
}

// CommandCLI exposes the flags explicitly set on cmd
func CommandCLI(cmd *cobra.Command) CLIFunc {
	return FlagSetCLI(cmd.Flags())
}

// PairsCLI parses key=value pairs. A later pair overrides an earlier one.
func PairsCLI(pairs []string) CLIFunc {
	return func() (map[string]interface{}, error) {
		out := make(map[string]interface{}, len(pairs))
		for _, p := range pairs {
			k, v, ok := strings.Cut(p, "=")
			k = strings.TrimSpace(k)
			if !ok || k == "" {
				return nil, errors.New(errors.ErrorTypeParse, "expected key=value").WithDetail("arg", p)
			}
			out[k] = v
		}
		return out, nil
	}
}
