// Command chatstream streams chat completions from OpenAI compatible APIs.
package main

import (
	"context"
	"fmt"
	"os"

	chatstreamcmder "github.com/papercomputeco/chatstream/cmd/chatstream"
	"github.com/papercomputeco/chatstream/pkg/cliui"
)

func run() int {
	err := chatstreamcmder.NewChatstreamCmd().ExecuteContext(context.Background())
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, cliui.FailMark, err)
	return 1
}

func main() {
	os.Exit(run())
}
