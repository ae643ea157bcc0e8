package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/cliui"
)

const setLongDesc string = `Set a configuration value.

Sets the given key in config.toml in the .lettarag/ directory. The whole
configuration is validated before it is written, so an overlap that is not
smaller than the chunk size or an unknown provider leaves the file untouched.

List values such as events.brokers take a comma separated string. An empty
data.append_log disables the conversation log.

Examples:
  lettarag config set data.folder ~/notes
  lettarag config set chunking.overlap 50
  lettarag config set events.provider kafka`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "set <key> <value>",
		Short:             setShortDesc,
		Long:              setLongDesc,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runSet(cmd.OutOrStdout(), args[0], args[1], configDir)
		},
	}
}

func runSet(w io.Writer, key, value, configDir string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	cfger, err := openConfig(w, configDir)
	if err != nil {
		return err
	}

	if err := cfger.SetConfigValue(key, value); err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Set %s = %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(key),
		cliui.ValueStyle.Render(value),
	)

	return nil
}
