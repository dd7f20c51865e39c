package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/pkg/cliui"
)

const getLongDesc string = `Get a configuration value.

Prints the effective value of key: the config.toml value when present,
otherwise the built-in default. Flags and CHATSTREAM_* environment
variables are not consulted.

Examples:
  chatstream config get client.model
  chatstream config get event_stream.provider`

const getShortDesc string = "Get a configuration value"

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "get <key>",
		Short:             getShortDesc,
		Long:              getLongDesc,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			cfger, err := openConfiger(cmd, key)
			if err != nil {
				return err
			}
			value, err := cfger.GetConfigValue(key)
			if err != nil {
				return err
			}

			shown := cliui.ValueStyle.Render(value)
			if value == "" {
				shown = cliui.DimStyle.Render("<not set>")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s\n\n  %s  %s\n\n", describeTarget(cfger), cliui.KeyStyle.Render(key), shown)
			return nil
		},
	}
}
