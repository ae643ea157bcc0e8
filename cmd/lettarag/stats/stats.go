// Package statscmder provides the stats command for inspecting a running
// lettarag server.
package statscmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/H0NEYP0T-466/lettaXrag/api"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/client"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/cliui"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/config"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/eventstream"
)

const statsLongDesc string = `Show the state of a running lettarag server.

Prints the synchronizer phase of the last pass along with the number of
indexed documents and chunks.

With --follow the command keeps running and prints a line for every sync
pass the server commits, until interrupted.

Examples:
  lettarag stats
  lettarag stats --follow
  lettarag stats --api-target http://localhost:9000`

const statsShortDesc string = "Show index statistics"

func NewStatsCmd() *cobra.Command {
	var (
		apiTarget string
		follow    bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
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
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cl, err := client.New(apiTarget, nil)
			if err != nil {
				return err
			}
			health, err := cl.Health(ctx)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			PrintHealth(w, health)
			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(w, "  %s\n\n", cliui.DimStyle.Render("Following sync passes (Ctrl+C to stop)"))
			err = cl.Events(ctx, func(ev *eventstream.IndexSyncedEvent) error {
				PrintEvent(w, ev)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &apiTarget)
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing sync passes as they are committed")

	return cmd
}

// PrintHealth writes the phase and index sizes as aligned key/value rows.
func PrintHealth(w io.Writer, h *api.HealthResponse) {
	cliui.KeyValues(w, []cliui.Row{
		{Key: "Phase:", Value: cliui.Phase(string(h.Phase))},
		{Key: "Documents:", Value: cliui.ValueStyle.Render(strconv.Itoa(h.Stats.IndexedDocuments))},
		{Key: "Chunks:", Value: cliui.ValueStyle.Render(strconv.Itoa(h.Stats.TotalChunks))},
		{Key: "Index size:", Value: cliui.ValueStyle.Render(strconv.Itoa(h.Stats.IndexSize))},
	})
}

// phaseWidth fits the longest phase name.
const phaseWidth = len("incremental_update")

// PrintEvent writes a one line summary of a committed pass.
func PrintEvent(w io.Writer, ev *eventstream.IndexSyncedEvent) {
	changes := []string{}
	if n := len(ev.Changes.New); n > 0 {
		changes = append(changes, fmt.Sprintf("+%d", n))
	}
	if n := len(ev.Changes.Modified); n > 0 {
		changes = append(changes, fmt.Sprintf("~%d", n))
	}
	if n := len(ev.Changes.Deleted); n > 0 {
		changes = append(changes, fmt.Sprintf("-%d", n))
	}
	if ev.Changes.LogChanged {
		changes = append(changes, "log")
	}
	if len(changes) == 0 {
		changes = append(changes, "none")
	}

	reason := ev.Pass.Reason
	if reason == "" {
		reason = "-"
	}

	fmt.Fprintf(w, "  %s  %s  %s  %s  %s\n",
		cliui.DimStyle.Render(ev.EmittedAt.Local().Format("15:04:05")),
		cliui.Phase(ev.Pass.Phase)+strings.Repeat(" ", max(0, phaseWidth-len(ev.Pass.Phase))),
		cliui.ValueStyle.Render(fmt.Sprintf("%-8s", reason)),
		strings.Join(changes, " "),
		cliui.DimStyle.Render(fmt.Sprintf("%d docs, %d chunks, %d embedded",
			ev.Index.IndexedDocuments, ev.Index.TotalChunks, ev.Index.Embedded)),
	)
}
