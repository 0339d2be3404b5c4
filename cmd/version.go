package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/assetwatch/internal/version"
)

func newVersionCmd() *cobra.Command {
	var (
		format   string
		short    bool
		detailed bool
	)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display version information for assetwatch.

Examples:
  assetwatch version              # Show version
  assetwatch version --detailed   # Show every build attribute
  assetwatch version --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			info := version.GetBuildInfo()

			switch format {
			case "json":
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
			case "yaml", "yml":
				data, err := yaml.Marshal(info)
				if err != nil {
					return err
				}
				fmt.Fprint(out, string(data))
			case "text":
				switch {
				case short:
					fmt.Fprintln(out, version.GetShortVersion())
				case detailed:
					fmt.Fprintln(out, version.GetDetailedVersion())
				default:
					fmt.Fprintf(out, "assetwatch %s (%s, %s)\n", version.GetShortVersion(), info.GoVersion, info.Platform)
				}
			default:
				return fmt.Errorf("unsupported format: %s (supported: text, json, yaml)", format)
			}

			return nil
		},
	}

	versionCmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json, yaml)")
	versionCmd.Flags().BoolVar(&short, "short", false, "Show short version only")
	versionCmd.Flags().BoolVar(&detailed, "detailed", false, "Show detailed version information")

	return versionCmd
}
