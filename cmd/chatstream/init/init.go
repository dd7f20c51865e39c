// Package initcmder provides the init command for initializing a local
// .chatstream directory in the current working directory.
package initcmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/pkg/cliui"
	"github.com/papercomputeco/chatstream/pkg/config"
	"github.com/papercomputeco/chatstream/pkg/dotdir"
)

const initLongDesc string = `Initialize a new .chatstream/ directory in the current working directory.

Creates a local .chatstream/ directory that takes precedence over the default
~/.chatstream/ directory for configuration and stored credentials.

Use --preset to write a config.toml for a known provider or fetch one from a
URL. Without --preset an existing config.toml is left untouched.

Available presets: openai, ollama

Examples:
  chatstream init
  chatstream init --preset ollama
  chatstream init --preset https://example.com/chatstream/config.toml`

const initShortDesc string = "Initialize a local .chatstream/ directory"

const fetchTimeout = 30 * time.Second

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), cmd.OutOrStdout(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Provider preset name or URL of a config.toml")
	_ = cmd.RegisterFlagCompletionFunc("preset", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.ValidPresetNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runInit(ctx context.Context, out io.Writer, preset string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dotdir.DirName)

	info, err := os.Stat(dir)
	existed := err == nil && info.IsDir()
	if !existed {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .chatstream directory: %w", err)
		}
	}

	var cfg *config.Config
	if preset != "" {
		cfg, err = resolvePreset(ctx, preset)
		if err != nil {
			return err
		}
	}

	if existed && cfg == nil {
		fmt.Fprintf(out, "%s Already initialized: %s\n", cliui.SuccessMark, dir)
		return nil
	}

	if cfg == nil {
		cfg = config.NewDefaultConfig()
	} else if _, statErr := os.Stat(filepath.Join(dir, "config.toml")); statErr == nil {
		fmt.Fprintf(out, "%s Overwriting %s\n", cliui.WarnStyle.Render("!"), filepath.Join(dir, "config.toml"))
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s Initialized .chatstream directory: %s\n", cliui.SuccessMark, dir)
	return nil
}

// resolvePreset returns the config for a named preset, or fetches and parses
// a config.toml when preset is an http(s) URL.
func resolvePreset(ctx context.Context, preset string) (*config.Config, error) {
	if !strings.HasPrefix(preset, "http://") && !strings.HasPrefix(preset, "https://") {
		return config.PresetConfig(preset)
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, preset, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d from %s", resp.StatusCode, preset)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	cfg, err := config.ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
