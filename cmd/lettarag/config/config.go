// Package configcmder provides the config command for managing persistent
// lettarag configuration stored in the .lettarag/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/cliui"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/config"
)

const configLongDesc string = `Manage persistent lettarag configuration.

Configuration is stored as config.toml in the .lettarag/ directory and
provides default values for command flags. Environment variables prefixed
with LETTARAG_ and CLI flags take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  data.folder, data.append_log, storage.dir,
  chunking.size, chunking.overlap,
  sync.debounce_ms, sync.workers, sync.watch,
  api.listen, client.api_target, vector_store.provider,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  events.provider, events.brokers, events.topic,
  retrieval.top_k

Use subcommands to get, set, or list configuration values:
  lettarag config set <key> <value>    Set a configuration value
  lettarag config get <key>            Get a configuration value
  lettarag config list                 List all configuration values

Examples:
  lettarag config set chunking.size 400
  lettarag config set events.brokers localhost:9092,localhost:9093
  lettarag config get embedding.model
  lettarag config list`

const configShortDesc string = "Manage persistent lettarag configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// completeKeys offers config keys for the first positional argument.
func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

// openConfig resolves the config target and prints which file is in use.
func openConfig(w io.Writer, configDir string) (*config.Configer, error) {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
	} else {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}

	return cfger, nil
}
