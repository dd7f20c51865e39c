// Package askcmder provides the ask command, which streams one completion to
// stdout.
package askcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/pkg/app"
	"github.com/papercomputeco/chatstream/pkg/cliui"
	"github.com/papercomputeco/chatstream/pkg/completion"
	"github.com/papercomputeco/chatstream/pkg/config"
	"github.com/papercomputeco/chatstream/pkg/credentials"
	"github.com/papercomputeco/chatstream/pkg/llm"
)

const askLongDesc string = `Stream one chat completion to stdout.

The prompt is taken from the arguments, or from stdin when no arguments are
given. Text is printed as it arrives. Press Ctrl+C to stop the stream; the
partial answer stays on screen and the command exits cleanly.

The bearer token is resolved from --token, then CHATSTREAM_CLIENT_TOKEN or
OPENAI_API_KEY (a .env file in the working directory is loaded first), then
credentials stored with "chatstream auth".

Examples:
  chatstream ask "Explain SSE in one sentence"
  chatstream ask -m gpt-4.1 -s "Answer in French" "What is a goroutine?"
  git diff | chatstream ask --render
  chatstream ask --host http://localhost:11434 -m llama3.2 "hello"`

const askShortDesc string = "Stream a chat completion to stdout"

type askCommander struct {
	model   string
	host    string
	timeout string
	otlp    string
	token   string
	system  string
	name    string
	render  bool
	stats   bool

	debug   bool
	logFile string

	cfg *config.Config

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// interrupts delivers Ctrl+C. Tests replace it.
	interrupts func(ctx context.Context) <-chan os.Signal
}

var askFlags = []string{config.FlagModel, config.FlagHost, config.FlagTimeout, config.FlagOTLP}

func NewAskCmd() *cobra.Command {
	return newAskCmd(cliui.Interrupts)
}

func newAskCmd(interrupts func(ctx context.Context) <-chan os.Signal) *cobra.Command {
	cmder := &askCommander{interrupts: interrupts}

	cmd := &cobra.Command{
		Use:   "ask [prompt...]",
		Short: askShortDesc,
		Long:  askLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadForCommand(cmd, config.ClientFlags, askFlags)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.logFile, _ = cmd.Flags().GetString("log-file")

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(cmd.Context(), args, configDir)
		},
	}

	config.ClientFlags.AddString(cmd, config.FlagModel, &cmder.model)
	config.ClientFlags.AddString(cmd, config.FlagHost, &cmder.host)
	config.ClientFlags.AddString(cmd, config.FlagTimeout, &cmder.timeout)
	config.ClientFlags.AddString(cmd, config.FlagOTLP, &cmder.otlp)
	cmd.Flags().StringVar(&cmder.token, "token", "", "Bearer token (overrides env and stored credentials)")
	cmd.Flags().StringVarP(&cmder.system, "system", "s", "", "System prompt")
	cmd.Flags().StringVar(&cmder.name, "name", "", "Optional participant name for the user message")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render the final answer as markdown")
	cmd.Flags().BoolVar(&cmder.stats, "stats", false, "Print call statistics to stderr")

	return cmd
}

func (c *askCommander) run(ctx context.Context, args []string, configDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	prompt, err := c.readPrompt(args)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, app.Options{
		Config:    c.cfg,
		Debug:     c.debug,
		LogWriter: c.errOut,
		LogFile:   c.logFile,
	})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

	creds, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	token, source, err := creds.ResolveToken(c.token, c.cfg.Client.CredentialProvider())
	if err != nil {
		return fmt.Errorf("resolving token: %w", err)
	}
	a.Logger.Debug("token resolved", "source", string(source), "present", token != "")

	timeout, err := c.cfg.Client.TimeoutDuration()
	if err != nil {
		return err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req := &llm.ChatRequest{
		Model:    c.cfg.Client.Model,
		Messages: c.messages(prompt),
		Token:    token,
	}

	canceler := completion.NewCanceler()
	stop := c.watchInterrupt(ctx, canceler)
	defer stop()

	var result completion.Result
	dw := cliui.NewDeltaWriter(c.out)

	complete := func() error {
		opts := []completion.CallOption{
			completion.WithCanceler(canceler),
			completion.WithResult(&result),
			completion.OnError(func(err error) {
				a.Logger.Debug("completion error", "error", err)
			}),
		}
		if !c.render {
			opts = append(opts, completion.OnText(func(text string, _ *completion.Canceler) {
				_ = dw.Update(text)
			}))
		}
		_, err := a.Client.Complete(ctx, req, opts...)
		return err
	}

	if c.render {
		err = cliui.Step(c.errOut, "Generating", complete)
	} else {
		err = complete()
		if dw.Printed() != "" {
			fmt.Fprintln(c.out)
		}
	}
	if err != nil {
		return err
	}

	if c.render && result.Answer != "" {
		rendered, rerr := cliui.RenderMarkdown(result.Answer)
		if rerr != nil {
			a.Logger.Warn("markdown rendering failed", "error", rerr)
			rendered = result.Answer + "\n"
		}
		fmt.Fprint(c.out, rendered)
	}

	if result.State == completion.StateCancelled {
		fmt.Fprintf(c.errOut, "%s\n", cliui.DimStyle.Render("(cancelled)"))
	}

	if c.stats {
		c.printStats(&result)
	}
	return nil
}

// readPrompt joins the arguments, falling back to stdin when there are none.
func (c *askCommander) readPrompt(args []string) (string, error) {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt != "" {
		return prompt, nil
	}

	if f, ok := c.in.(*os.File); ok {
		fi, err := f.Stat()
		if err != nil {
			return "", fmt.Errorf("checking stdin: %w", err)
		}
		if fi.Mode()&os.ModeCharDevice != 0 {
			return "", errors.New("prompt required: pass it as arguments or pipe it on stdin")
		}
	}

	data, err := io.ReadAll(c.in)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	prompt = strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("prompt required: pass it as arguments or pipe it on stdin")
	}
	return prompt, nil
}

func (c *askCommander) messages(prompt string) []llm.Message {
	var msgs []llm.Message
	if c.system != "" {
		msgs = append(msgs, llm.NewTextMessage(llm.RoleSystem, c.system))
	}
	user := llm.NewTextMessage(llm.RoleUser, prompt)
	user.Name = c.name
	return append(msgs, user)
}

// watchInterrupt cancels the call on the first Ctrl+C.
func (c *askCommander) watchInterrupt(ctx context.Context, canceler *completion.Canceler) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	sigs := c.interrupts(ctx)

	go func() {
		select {
		case <-sigs:
			canceler.Cancel()
		case <-ctx.Done():
		}
	}()

	return cancel
}

func (c *askCommander) printStats(r *completion.Result) {
	fmt.Fprintf(c.errOut, "\n  %s %s\n", cliui.KeyStyle.Render("Model:"), cliui.ValueStyle.Render(r.Model))
	fmt.Fprintf(c.errOut, "  %s %s\n", cliui.KeyStyle.Render("State:"), cliui.ValueStyle.Render(r.State.String()))
	fmt.Fprintf(c.errOut, "  %s %s in %s\n",
		cliui.KeyStyle.Render("Fragments:"),
		cliui.ValueStyle.Render(humanize.Comma(int64(r.Fragments))),
		cliui.FormatDuration(r.Duration),
	)
	fmt.Fprintf(c.errOut, "  %s %s\n", cliui.KeyStyle.Render("Answer:"), humanize.Bytes(uint64(len(r.Answer))))
	if r.Usage != nil {
		fmt.Fprintf(c.errOut, "  %s %s prompt, %s completion\n",
			cliui.KeyStyle.Render("Tokens:"),
			humanize.Comma(int64(r.Usage.PromptTokens)),
			humanize.Comma(int64(r.Usage.CompletionTokens)),
		)
	}
	if r.StopReason != "" {
		fmt.Fprintf(c.errOut, "  %s %s\n", cliui.KeyStyle.Render("Stop:"), r.StopReason)
	}
	if r.DiscardedEvents > 0 {
		fmt.Fprintf(c.errOut, "  %s %d oversized events dropped\n", cliui.WarnStyle.Render("!"), r.DiscardedEvents)
	}
}
