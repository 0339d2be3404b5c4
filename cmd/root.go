// Package cmd provides the assetwatch command-line interface.
//
// Configuration comes from several sources with clear precedence:
//  1. Command-line flags (-t, -c, -j, -d, --port, ...), highest priority
//  2. Environment variables (ASSETWATCH_DEST, ASSETWATCH_RELOAD_PORT, ...)
//  3. The config file (--config, ASSETWATCH_CONFIG_FILE or .assetwatch.yml)
//  4. Built-in defaults
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/assetwatch/internal/config"
	apperrors "github.com/conneroisu/assetwatch/internal/errors"
)

// Execute runs the assetwatch command tree.
func Execute() error {
	root := NewRootCmd()

	err := root.Execute()
	if err != nil {
		var verrs apperrors.ValidationErrors
		if !errors.As(err, &verrs) {
			fmt.Fprintln(root.ErrOrStderr(), color.RedString("Error: %v", err))
		}
	}

	return err
}

// NewRootCmd builds the command tree. Each call gets its own viper
// instance, so commands can be constructed repeatedly in tests.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "assetwatch",
		Short: "Watch templates, stylesheets and scripts and mirror them into a build tree",
		Long: `assetwatch watches Jade templates, SCSS stylesheets and ES2015/JSX scripts,
compiles every added or changed file into a mirrored destination tree, removes
mirrored files when their source disappears, and tells connected browsers to
reload whenever the destination tree changes.

Examples:
  assetwatch -t 'views/**/*.jade' -c 'styles/**/*.scss' -d build
  assetwatch -t 'views/*.jade' -c 'styles/*.scss' -j 'scripts/**/*.jsx' -d public
  assetwatch config show -t 'views/*.jade' -c 'styles/*.scss' -d build`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			used, err := config.Init(v, cfgFile)
			if err != nil {
				return err
			}
			if used != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", used)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, v)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .assetwatch.yml, can also use ASSETWATCH_CONFIG_FILE env var)")
	flags.StringP("templates", "t", "", "glob of template sources (required)")
	flags.StringP("styles", "c", "", "glob of stylesheet sources (required)")
	flags.StringP("scripts", "j", "", "glob of script sources")
	flags.StringP("dest", "d", "", "destination root directory (required)")
	flags.StringSliceP("include-path", "I", nil, "extra stylesheet load path (repeatable)")
	flags.String("sass", config.DefaultSassBinary, "sass executable")
	flags.Bool("reload", true, "run the live-reload server")
	flags.String("host", config.DefaultReloadHost, "live-reload server host")
	flags.IntP("port", "p", config.DefaultReloadPort, "live-reload server port (0 picks a free port)")
	flags.Duration("debounce", config.DefaultDebounce, "quiet period before a reload is broadcast")
	flags.StringSlice("allowed-origin", nil, "extra host allowed to open the reload socket (repeatable, * for any)")
	flags.StringP("log-level", "l", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("log-format", config.DefaultLogFormat, "log format (console, text, json)")

	bindFlags(v, rootCmd)

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(v))

	return rootCmd
}

var flagKeys = map[string]string{
	"templates":      config.KeyTemplates,
	"styles":         config.KeyStyles,
	"scripts":        config.KeyScripts,
	"dest":           config.KeyDestination,
	"include-path":   config.KeyIncludePaths,
	"sass":           config.KeySassBinary,
	"reload":         config.KeyReloadEnabled,
	"host":           config.KeyReloadHost,
	"port":           config.KeyReloadPort,
	"debounce":       config.KeyReloadDebounce,
	"allowed-origin": config.KeyReloadOrigins,
	"log-level":      config.KeyLogLevel,
	"log-format":     config.KeyLogFormat,
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	for name, key := range flagKeys {
		if err := bindFlag(v, key, flags.Lookup(name)); err != nil {
			// Only fails for a nil flag, which is a programming error.
			fmt.Fprintf(os.Stderr, "assetwatch: binding --%s: %v\n", name, err)
		}
	}
}

func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("flag for %s is not defined", key)
	}
	return v.BindPFlag(key, flag)
}
