// Package searchcmder provides the search command for retrieving chunks from
// a running lettarag server.
package searchcmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/H0NEYP0T-466/lettaXrag/api"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/client"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/cliui"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/config"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/utils"
)

const previewWidth = 160

type searchCommander struct {
	query     string
	topK      uint
	markdown  bool
	apiTarget string
}

const searchLongDesc string = `Retrieve the chunks most similar to a query.

Requires a running lettarag server (lettarag serve). Results are ordered by
distance, closest first, and show the source file and chunk position.

Use --markdown to render the chunks as a markdown document.

Examples:
  lettarag search "how do I rotate keys"
  lettarag search "deployment checklist" -k 5
  lettarag search "release notes" --markdown --api-target http://localhost:9000`

const searchShortDesc string = "Retrieve chunks similar to a query"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed(config.Flags[config.FlagAPITarget].Name) {
				cmder.apiTarget = cfg.Client.APITarget
			}
			if !cmd.Flags().Changed(config.Flags[config.FlagTopK].Name) {
				cmder.topK = cfg.Retrieval.TopK
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	config.AddUintFlag(cmd, config.Flags, config.FlagTopK, &cmder.topK)
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render results as markdown")

	return cmd
}

func (c *searchCommander) run(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cl, err := client.New(c.apiTarget, nil)
	if err != nil {
		return err
	}

	out, err := cl.Retrieve(ctx, c.query, int(c.topK))
	if err != nil {
		return err
	}

	if c.markdown {
		rendered, err := cliui.RenderMarkdown(Markdown(out))
		if err != nil {
			fmt.Fprintln(os.Stderr, cliui.DimStyle.Render("markdown rendering failed, printing raw markdown"))
		}
		fmt.Fprint(w, rendered)
		return nil
	}

	PrintResults(w, out)
	return nil
}

// PrintResults writes a styled, one block per chunk listing of out.
func PrintResults(w io.Writer, out *api.RetrieveResponse) {
	if len(out.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "\n%s %s\n\n",
		cliui.HeaderStyle.Render("Results for:"),
		cliui.NameStyle.Render(fmt.Sprintf("%q", out.Query)),
	)

	for i, r := range out.Results {
		fmt.Fprintf(w, "  %s  %s  %s %s\n",
			cliui.RankStyle.Render(fmt.Sprintf("#%d", i+1)),
			cliui.ScoreStyle.Render(fmt.Sprintf("distance: %.4f", r.Distance)),
			cliui.KeyStyle.Render(r.Source),
			cliui.DimStyle.Render(fmt.Sprintf("chunk %d", r.ChunkID)),
		)
		fmt.Fprintf(w, "  %s\n\n", cliui.PreviewStyle.Render(utils.Preview(r.Text, previewWidth)))
	}
}

// Markdown formats out as a markdown document, one section per chunk.
func Markdown(out *api.RetrieveResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Results for %q\n\n", out.Query)

	if len(out.Results) == 0 {
		b.WriteString("_No results found._\n")
		return b.String()
	}

	for i, r := range out.Results {
		fmt.Fprintf(&b, "## %d. %s (chunk %d)\n\n", i+1, r.Source, r.ChunkID)
		fmt.Fprintf(&b, "_distance %.4f_\n\n", r.Distance)
		b.WriteString(strings.TrimSpace(r.Text))
		b.WriteString("\n\n")
	}
	return b.String()
}
