package configcmder

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/pkg/config"
)

const listLongDesc string = `List all configuration values.

Prints every key with its effective value, one per line, aligned for
reading and grepping. Keys missing from config.toml show their defaults.

Examples:
  chatstream config list
  chatstream config list | grep event_stream`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfger, err := openConfiger(cmd, "")
			if err != nil {
				return err
			}
			cfg, err := cfger.LoadConfig()
			if err != nil {
				return err
			}
			return writeList(cmd.OutOrStdout(), cfger.GetTarget(), cfg)
		},
	}
}

// writeList prints plain text so the output pipes cleanly.
func writeList(out io.Writer, target string, cfg *config.Config) error {
	if target == "" {
		target = "(none, defaults only)"
	}
	fmt.Fprintf(out, "# %s\n", target)

	keys := config.ValidConfigKeys()
	width := len(slices.MaxFunc(keys, func(a, b string) int { return len(a) - len(b) }))

	for _, key := range keys {
		value, err := config.ValueOf(cfg, key)
		if err != nil {
			return err
		}
		if value == "" {
			fmt.Fprintf(out, "%-*s = <not set>\n", width, key)
			continue
		}
		fmt.Fprintf(out, "%-*s = %q\n", width, key, value)
	}
	return nil
}
