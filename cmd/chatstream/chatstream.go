// Package chatstreamcmder is the root of the chatstream CLI.
package chatstreamcmder

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/chatstream/cmd/chatstream/ask"
	authcmder "github.com/papercomputeco/chatstream/cmd/chatstream/auth"
	batchcmder "github.com/papercomputeco/chatstream/cmd/chatstream/batch"
	configcmder "github.com/papercomputeco/chatstream/cmd/chatstream/config"
	initcmder "github.com/papercomputeco/chatstream/cmd/chatstream/init"
	versioncmder "github.com/papercomputeco/chatstream/cmd/version"
)

const chatstreamLongDesc string = `chatstream streams chat completions from OpenAI compatible APIs.

Answers are printed as they arrive. Ctrl+C stops the stream and keeps the
partial answer.

Commands:
  chatstream ask "prompt"       Stream one completion to stdout
  chatstream batch prompts.txt  Run many prompts concurrently
  chatstream auth openai        Store an API key
  chatstream config list        Show configuration
  chatstream init               Create a local .chatstream/ directory`

const chatstreamShortDesc string = "chatstream - streaming chat completions"

func NewChatstreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chatstream",
		Short:         chatstreamShortDesc,
		Long:          chatstreamLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadDotEnv(".env")
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .chatstream/ directory")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	cmd.PersistentFlags().String("log-file", "", "Also write JSON logs to this file")

	// Add subcommands
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(batchcmder.NewBatchCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
