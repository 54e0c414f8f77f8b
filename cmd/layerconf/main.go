package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/layerconf/pkg/logger"
)

var version = "0.1.0"

// app carries state shared by the subcommands
type app struct {
	logLevel string
	log      *zap.Logger
}

func main() {
	err := newRootCmd().Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{log: zap.NewNop()}
	root := &cobra.Command{
		Use:   "layerconf",
		Short: "layerconf - layered settings resolution",
		Long: `layerconf resolves settings declared in a YAML schema from CLI values,
explicit values, environment variables, .env files, secrets directories and
config files, in that order of priority.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logger.New(logger.Config{Level: a.logLevel, Encoding: "console"})
			if err != nil {
				return err
			}
			logger.Set(l)
			a.log = l.With(zap.String("component", "layerconf-cli"))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "error", "Log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "layerconf v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(a.newResolveCmd(), a.newConfigCmd())
	return root
}
