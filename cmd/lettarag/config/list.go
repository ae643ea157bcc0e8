package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays every configuration key with its effective value from config.toml
in the .lettarag/ directory, falling back to defaults for unset keys.

Examples:
  lettarag config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir)
		},
	}
}

func runList(w io.Writer, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "Using config file: %s\n\n", target)
	} else {
		fmt.Fprint(w, "No config file found. Using default config.\n\n")
	}

	keys := config.ValidConfigKeys()

	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}

	for _, key := range keys {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}
		if value == "" {
			fmt.Fprintf(w, "%-*s = <not set>\n", width, key)
		} else {
			fmt.Fprintf(w, "%-*s = %q\n", width, key, value)
		}
	}

	return nil
}
