// Package initcmder provides the init command for initializing a local
// .lettarag directory in the current working directory.
package initcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/cliui"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/config"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/dotdir"
)

const maxRemoteConfigBytes = 1 << 20

const initLongDesc string = `Initialize a new .lettarag/ directory in the current working directory.

Creates a local .lettarag/ directory that takes precedence over the default
~/.lettarag/ directory, and writes a config.toml into it unless one exists.

Use --preset to pick an embedding model preset (%s) or to fetch a
config.toml from an http(s) URL. A preset always rewrites config.toml.

Examples:
  lettarag init
  lettarag init --preset nomic
  lettarag init --preset https://example.com/lettarag/config.toml`

const initShortDesc string = "Initialize a local .lettarag/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  fmt.Sprintf(initLongDesc, strings.Join(config.ValidPresetNames(), ", ")),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runInit(ctx, cmd.OutOrStdout(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Embedding preset name or URL of a config.toml")

	return cmd
}

func runInit(ctx context.Context, w io.Writer, preset string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	// Resolve the preset first so a bad name leaves nothing behind.
	var cfg *config.Config
	if preset != "" {
		cfg, err = resolvePreset(ctx, preset)
		if err != nil {
			return err
		}
	}

	dir := filepath.Join(cwd, dotdir.DirName)
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		fmt.Fprintf(w, "  %s %s\n", cliui.DimStyle.Render("Already initialized:"), dir)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s directory: %w", dotdir.DirName, err)
		}
		fmt.Fprintf(w, "  %s Initialized %s directory: %s\n", cliui.SuccessMark, dotdir.DirName, dir)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg == nil {
		if _, err := os.Stat(cfger.GetTarget()); err == nil {
			return nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reading config: %w", err)
		}
		cfg = config.NewDefaultConfig()
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}
	fmt.Fprintf(w, "  %s Wrote %s\n", cliui.SuccessMark, cfger.GetTarget())
	return nil
}

func resolvePreset(ctx context.Context, preset string) (*config.Config, error) {
	if !strings.HasPrefix(preset, "http://") && !strings.HasPrefix(preset, "https://") {
		return config.PresetConfig(preset)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, preset, nil)
	if err != nil {
		return nil, fmt.Errorf("creating preset request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching preset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching preset: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteConfigBytes))
	if err != nil {
		return nil, fmt.Errorf("reading preset: %w", err)
	}

	cfg, err := config.ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("remote preset: %w", err)
	}
	return cfg, nil
}
