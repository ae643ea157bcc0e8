// Package versioncmder provides the version command shared by lettarag
// binaries.
package versioncmder

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/cliui"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/utils"
)

func NewVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Display the lettarag version",
		Long:  "Display the version, commit and build time of this lettarag binary.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printVersion(cmd.OutOrStdout(), short)
			return nil
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")

	return cmd
}

func printVersion(w io.Writer, short bool) {
	if short {
		fmt.Fprintln(w, utils.Version)
		return
	}

	cliui.KeyValues(w, []cliui.Row{
		{Key: "Version:", Value: utils.Version},
		{Key: "Sha:", Value: utils.Sha},
		{Key: "Built at:", Value: utils.Buildtime},
		{Key: "Go:", Value: runtime.Version()},
	})
}
