// Package configcmder provides the config command for managing persistent
// chatstream configuration stored in the .chatstream/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/pkg/cliui"
	"github.com/papercomputeco/chatstream/pkg/config"
)

const configLongDesc string = `Manage persistent chatstream configuration.

Configuration is stored as config.toml in the .chatstream/ directory and
provides default values for command flags. CLI flags and CHATSTREAM_*
environment variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  client.host, client.model, client.timeout, client.provider,
  log.json, telemetry.otlp_endpoint,
  event_stream.provider, event_stream.brokers, event_stream.topic,
  batch.workers

Use subcommands to get, set, or list configuration values:
  chatstream config set <key> <value>    Set a configuration value
  chatstream config get <key>            Get a configuration value
  chatstream config list                 List all configuration values

Examples:
  chatstream config set client.model gpt-4o
  chatstream config set client.timeout 90s
  chatstream config get client.host
  chatstream config list`

const configShortDesc string = "Manage persistent chatstream configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd(), newGetCmd(), newListCmd())
	return cmd
}

// openConfiger resolves the config file for cmd's --config-dir. A non-empty
// key is checked first so typos fail before anything is touched.
func openConfiger(cmd *cobra.Command, key string) (*config.Configer, error) {
	if key != "" && !config.IsValidConfigKey(key) {
		return nil, fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	dir, _ := cmd.Flags().GetString("config-dir")
	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfger, nil
}

func describeTarget(cfger *config.Configer) string {
	if target := cfger.GetTarget(); target != "" {
		return cliui.KeyStyle.Render("Config file:") + " " + cliui.DimStyle.Render(target)
	}
	return cliui.DimStyle.Render("No config file found. Using defaults.")
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
}
