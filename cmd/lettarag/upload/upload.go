// Package uploadcmder provides the upload command for adding documents to
// the data folder of a running lettarag server.
package uploadcmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/client"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/cliui"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/config"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/loader"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/upload"
)

const uploadLongDesc string = `Upload documents to a running lettarag server.

Each file is stored in the server's data folder under its base name,
replacing any file of the same name, and indexed with an incremental pass
before the next file is sent.

Supported extensions: %s

Examples:
  lettarag upload ./handbook.pdf
  lettarag upload notes/*.md`

const uploadShortDesc string = "Upload documents for indexing"

func NewUploadCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: uploadShortDesc,
		Long:  fmt.Sprintf(uploadLongDesc, loader.ExtensionList()),
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed(config.Flags[config.FlagAPITarget].Name) {
				return nil
			}
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			apiTarget = cfg.Client.APITarget
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cl, err := client.New(apiTarget, nil)
			if err != nil {
				return err
			}
			return run(ctx, cmd.OutOrStdout(), cl, args)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &apiTarget)

	return cmd
}

func run(ctx context.Context, w io.Writer, cl *client.Client, paths []string) error {
	fmt.Fprintln(w)
	for _, path := range paths {
		var res *upload.Result
		err := cliui.Step(w, "Uploading "+path, func() error {
			var err error
			res, err = cl.UploadFile(ctx, path)
			return err
		})
		if err != nil {
			return fmt.Errorf("uploading %s: %w", path, err)
		}

		summary := fmt.Sprintf("%s, %d bytes", res.Filename, res.Bytes)
		if res.Sync != nil {
			summary += fmt.Sprintf(", %s, %d chunks embedded", res.Sync.Phase, res.Sync.Embedded)
		}
		fmt.Fprintf(w, "    %s\n", cliui.DimStyle.Render(summary))
	}
	fmt.Fprintln(w)
	return nil
}
