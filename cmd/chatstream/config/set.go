package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/pkg/cliui"
)

const setLongDesc string = `Set a configuration value.

Writes key = value into config.toml. The whole configuration is validated
first; an invalid value leaves the file as it was.

Valid keys:
  client.host, client.model, client.timeout, client.provider,
  log.json, telemetry.otlp_endpoint,
  event_stream.provider, event_stream.brokers, event_stream.topic,
  batch.workers

Examples:
  chatstream config set client.host http://localhost:11434
  chatstream config set event_stream.brokers localhost:9092
  chatstream config set batch.workers 8`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "set <key> <value>",
		Short:             setShortDesc,
		Long:              setLongDesc,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			cfger, err := openConfiger(cmd, key)
			if err != nil {
				return err
			}
			if err := cfger.SetConfigValue(key, value); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s\n\n  %s Set %s = %s\n\n",
				describeTarget(cfger),
				cliui.SuccessMark,
				cliui.KeyStyle.Render(key),
				cliui.ValueStyle.Render(value),
			)
			return nil
		},
	}
}
