package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"nsc-hq/arbiter/pkg/cli"
	"nsc-hq/arbiter/pkg/config"
)

var validateFlags struct {
	show bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration (file, defaults and ARBITER_* environment
overrides) and report every validation error at once.

Examples:
  # Validate a file
  arbiter validate -c arbiter.yaml

  # Print the effective configuration
  arbiter validate -c arbiter.yaml --show`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.show, "show", false, "print the effective configuration as YAML")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintf(out, "✗ %d validation error(s):\n", len(verr.Errors))
			for _, fe := range verr.Errors {
				fmt.Fprintf(out, "  - %s\n", fe.Error())
			}
			return cli.NewConfigError(verr.Errors[0].Field, "configuration is invalid")
		}
		return cli.NewConfigError("", err.Error())
	}

	source := cfgFile
	if source == "" {
		source = "defaults"
	}
	fmt.Fprintf(out, "✓ Configuration is valid (%s)\n", source)
	fmt.Fprintf(out, "  Shards: %d\n", cfg.Supervisor.Shards)
	fmt.Fprintf(out, "  Source profiles: %d\n", len(cfg.Supervisor.Profiles()))
	fmt.Fprintf(out, "  Intent overrides: %d\n", len(cfg.Supervisor.Overrides))
	fmt.Fprintf(out, "  Oddity scoring: %t\n", cfg.Oddity.Enabled)
	fmt.Fprintf(out, "  Store: %s (namespace %q)\n", cfg.Store.Backend, cfg.Store.Namespace)

	if validateFlags.show {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return cli.NewCommandError("validate", err)
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, string(data))
	}
	return nil
}
