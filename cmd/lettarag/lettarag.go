// Package lettaragcmder
package lettaragcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/H0NEYP0T-466/lettaXrag/cmd/lettarag/config"
	initcmder "github.com/H0NEYP0T-466/lettaXrag/cmd/lettarag/init"
	reindexcmder "github.com/H0NEYP0T-466/lettaXrag/cmd/lettarag/reindex"
	searchcmder "github.com/H0NEYP0T-466/lettaXrag/cmd/lettarag/search"
	servecmder "github.com/H0NEYP0T-466/lettaXrag/cmd/lettarag/serve"
	statscmder "github.com/H0NEYP0T-466/lettaXrag/cmd/lettarag/stats"
	uploadcmder "github.com/H0NEYP0T-466/lettaXrag/cmd/lettarag/upload"
	versioncmder "github.com/H0NEYP0T-466/lettaXrag/cmd/version"
)

const lettaragLongDesc string = `lettarag keeps a retrieval index in step with a folder of documents.

Run the server, which indexes the data folder, watches it for changes and
answers retrieval queries:
  lettarag serve

Talk to a running server:
  lettarag search "how do I rotate keys"
  lettarag upload ./handbook.pdf
  lettarag reindex --force
  lettarag stats`

const lettaragShortDesc string = "lettarag - incremental document index for RAG"

func NewLettaragCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "lettarag",
		Short:        lettaragShortDesc,
		Long:         lettaragLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: ./.lettarag or ~/.lettarag)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(reindexcmder.NewReindexCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(uploadcmder.NewUploadCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
