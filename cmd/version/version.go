// Package versioncmder provides the version command.
package versioncmder

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/pkg/cliui"
	"github.com/papercomputeco/chatstream/pkg/utils"
)

// Info is the build information reported by "chatstream version".
type Info struct {
	Version   string `json:"version"`
	Sha       string `json:"sha"`
	Buildtime string `json:"buildtime"`
	Go        string `json:"go"`
	Platform  string `json:"platform"`
}

type versionCommander struct {
	short   bool
	jsonOut bool
}

func NewVersionCmd() *cobra.Command {
	cmder := &versionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version, commit and build time of this CLI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&cmder.short, "short", false, "Print only the version")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print build information as JSON")
	cmd.MarkFlagsMutuallyExclusive("short", "json")

	return cmd
}

func CurrentInfo() Info {
	return Info{
		Version:   utils.Version,
		Sha:       utils.Sha,
		Buildtime: utils.Buildtime,
		Go:        runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (c *versionCommander) run(out io.Writer) error {
	info := CurrentInfo()

	switch {
	case c.short:
		_, err := fmt.Fprintln(out, info.Version)
		return err
	case c.jsonOut:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	rows := [][2]string{
		{"Version", info.Version},
		{"Sha", info.Sha},
		{"Built at", info.Buildtime},
		{"Go", info.Go},
		{"Platform", info.Platform},
	}
	for _, row := range rows {
		fmt.Fprintf(out, "%s %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-9s", row[0]+":")), cliui.ValueStyle.Render(row[1]))
	}
	return nil
}
