// Package reindexcmder provides the reindex command, which runs a sync pass
// either on a running server or in-process.
package reindexcmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/client"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/cliui"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/config"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/engine"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/indexsync"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/logger"
)

type reindexCommander struct {
	force bool
	local bool

	apiTarget  string
	dataFolder string
	storageDir string

	debug bool
	cfg   *config.Config
}

const reindexLongDesc string = `Bring the index in step with the data folder.

By default the pass runs on the server at client.api_target. With --force
the snapshot is discarded and every document is re-embedded.

With --local the pass runs in this process against the configured data
folder and storage directory. Do not use --local while a server is running
on the same storage directory.

Examples:
  lettarag reindex
  lettarag reindex --force
  lettarag reindex --local --data ./docs --storage ./storage`

const reindexShortDesc string = "Run a sync pass"

func NewReindexCmd() *cobra.Command {
	cmder := &reindexCommander{}

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: reindexShortDesc,
		Long:  reindexLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{
				config.FlagAPITarget,
				config.FlagDataFolder,
				config.FlagStorageDir,
			})
			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&cmder.force, "force", "f", false, "Discard the snapshot and rebuild from scratch")
	cmd.Flags().BoolVar(&cmder.local, "local", false, "Run the pass in this process instead of on the server")
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagDataFolder, &cmder.dataFolder)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDir, &cmder.storageDir)

	return cmd
}

func (c *reindexCommander) run(ctx context.Context, w io.Writer) error {
	msg := "Syncing index"
	if c.force {
		msg = "Rebuilding index"
	}

	var res *indexsync.Result
	fmt.Fprintln(w)
	err := cliui.Step(w, msg, func() error {
		var err error
		if c.local {
			res, err = c.runLocal(ctx)
		} else {
			res, err = c.runRemote(ctx)
		}
		return err
	})
	if err != nil {
		return err
	}

	PrintResult(w, res)
	return nil
}

func (c *reindexCommander) runRemote(ctx context.Context) (*indexsync.Result, error) {
	cl, err := client.New(c.cfg.Client.APITarget, nil)
	if err != nil {
		return nil, err
	}
	return cl.Reindex(ctx, c.force)
}

func (c *reindexCommander) runLocal(ctx context.Context) (*indexsync.Result, error) {
	// Logs go to stderr so they do not interleave with the spinner.
	log := logger.Nop()
	if c.debug {
		log = logger.New(logger.WithWriter(os.Stderr), logger.WithDebug(true))
	}

	e, err := engine.New(c.cfg, log)
	if err != nil {
		return nil, err
	}
	defer e.Close()

	return e.Synchronizer.Sync(ctx, indexsync.Options{
		ForceRebuild: c.force,
		Reason:       "cli",
	})
}

// PrintResult summarizes a completed pass.
func PrintResult(w io.Writer, res *indexsync.Result) {
	rows := []cliui.Row{
		{Key: "Phase:", Value: cliui.Phase(string(res.Phase))},
		{Key: "New:", Value: list(res.New)},
		{Key: "Modified:", Value: list(res.Modified)},
		{Key: "Deleted:", Value: list(res.Deleted)},
		{Key: "Chunks:", Value: cliui.ValueStyle.Render(fmt.Sprintf("%d (%d embedded)", res.Chunks, res.Embedded))},
		{Key: "Took:", Value: cliui.StepStyle.Render(cliui.FormatDuration(res.Duration))},
	}
	if res.LogChanged {
		rows = append(rows, cliui.Row{Key: "Log:", Value: cliui.ValueStyle.Render("re-indexed")})
	}
	cliui.KeyValues(w, rows)
}

func list(paths []string) string {
	if len(paths) == 0 {
		return cliui.DimStyle.Render("none")
	}
	return cliui.ValueStyle.Render(strings.Join(paths, ", "))
}
