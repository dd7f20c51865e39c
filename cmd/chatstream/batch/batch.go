// Package batchcmder provides the batch command, which runs many prompts
// through the worker pool.
package batchcmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/pkg/app"
	"github.com/papercomputeco/chatstream/pkg/cliui"
	"github.com/papercomputeco/chatstream/pkg/completion"
	"github.com/papercomputeco/chatstream/pkg/config"
	"github.com/papercomputeco/chatstream/pkg/credentials"
	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/worker"
)

const batchLongDesc string = `Run many prompts concurrently and print each answer.

The file holds one prompt per line (blank lines and lines starting with '#'
are skipped), or a YAML document when it ends in .yaml or .yml:

  system: Answer in one sentence.
  model: gpt-4o-mini
  jobs:
    - prompt: What is SSE?
    - prompt: What is a goroutine?
      model: gpt-4.1

Each prompt is an independent completion. A failing prompt is reported and
the rest continue. Ctrl+C stops in-flight prompts, keeping their partial
answers, and skips the ones not started yet.

Examples:
  chatstream batch prompts.txt
  chatstream batch --workers 8 jobs.yaml`

const batchShortDesc string = "Run prompts from a file concurrently"

type batchCommander struct {
	model   string
	host    string
	timeout string
	workers uint
	token   string
	system  string

	debug   bool
	logFile string

	cfg *config.Config

	// interrupts delivers Ctrl+C. Tests replace it.
	interrupts func(ctx context.Context) <-chan os.Signal

	out    io.Writer
	errOut io.Writer
}

var batchFlags = []string{config.FlagModel, config.FlagHost, config.FlagTimeout, config.FlagWorkers}

func NewBatchCmd() *cobra.Command {
	return newBatchCmd(cliui.Interrupts)
}

func newBatchCmd(interrupts func(ctx context.Context) <-chan os.Signal) *cobra.Command {
	cmder := &batchCommander{interrupts: interrupts}

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: batchShortDesc,
		Long:  batchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadForCommand(cmd, config.ClientFlags, batchFlags)
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
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			configDir, _ := cmd.Flags().GetString("config-dir")

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx, args[0], configDir)
		},
	}

	config.ClientFlags.AddString(cmd, config.FlagModel, &cmder.model)
	config.ClientFlags.AddString(cmd, config.FlagHost, &cmder.host)
	config.ClientFlags.AddString(cmd, config.FlagTimeout, &cmder.timeout)
	config.ClientFlags.AddUint(cmd, config.FlagWorkers, &cmder.workers)
	cmd.Flags().StringVar(&cmder.token, "token", "", "Bearer token (overrides env and stored credentials)")
	cmd.Flags().StringVarP(&cmder.system, "system", "s", "", "System prompt for prompts that do not set one")

	return cmd
}

func (c *batchCommander) run(ctx context.Context, path, configDir string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening batch file: %w", err)
	}
	prompts, err := ParsePrompts(path, f)
	f.Close()
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
	token, _, err := creds.ResolveToken(c.token, c.cfg.Client.CredentialProvider())
	if err != nil {
		return fmt.Errorf("resolving token: %w", err)
	}

	timeout, err := c.cfg.Client.TimeoutDuration()
	if err != nil {
		return err
	}

	var (
		mu       sync.Mutex
		outcomes = make([]worker.Outcome, len(prompts))
	)

	pool, err := worker.NewPool(&worker.Config{
		Completer:  a.Client,
		Context:    ctx,
		NumWorkers: c.cfg.Batch.Workers,
		QueueSize:  uint(len(prompts)),
		Logger:     a.Logger,
		OnDone: func(o worker.Outcome) {
			mu.Lock()
			defer mu.Unlock()
			outcomes[o.Job.Index] = o
			c.printOutcome(prompts[o.Job.Index], o)
		},
	})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}

	stopWatch := c.watchInterrupt(ctx, pool)
	defer stopWatch()

	start := time.Now()
	for i, p := range prompts {
		pool.Enqueue(worker.Job{
			Index:   i,
			Request: c.request(p, token),
			Timeout: timeout,
		})
	}
	pool.Close()

	return c.summarize(outcomes, time.Since(start))
}

// watchInterrupt cancels the pool on the first Ctrl+C.
func (c *batchCommander) watchInterrupt(ctx context.Context, pool *worker.Pool) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	sigs := c.interrupts(ctx)

	go func() {
		select {
		case <-sigs:
			fmt.Fprintf(c.errOut, "%s\n", cliui.DimStyle.Render("(cancelling)"))
			pool.Cancel()
		case <-ctx.Done():
		}
	}()

	return cancel
}

func (c *batchCommander) request(p Prompt, token string) *llm.ChatRequest {
	model := p.Model
	if model == "" {
		model = c.cfg.Client.Model
	}
	system := p.System
	if system == "" {
		system = c.system
	}

	var msgs []llm.Message
	if system != "" {
		msgs = append(msgs, llm.NewTextMessage(llm.RoleSystem, system))
	}
	msgs = append(msgs, llm.NewTextMessage(llm.RoleUser, p.Prompt))

	return &llm.ChatRequest{Model: model, Messages: msgs, Token: token}
}

func (c *batchCommander) printOutcome(p Prompt, o worker.Outcome) {
	header := fmt.Sprintf("[%d] %s", o.Job.Index+1, cliui.Ellipsize(p.Prompt, 60))
	if o.Err == nil && o.Result.State == completion.StateCancelled {
		fmt.Fprintf(c.out, "%s %s %s\n", cliui.WarnStyle.Render("!"), cliui.NameStyle.Render(header), cliui.DimStyle.Render("(cancelled)"))
		if o.Answer != "" {
			fmt.Fprintf(c.out, "%s\n", o.Answer)
		}
		fmt.Fprintln(c.out)
		return
	}
	if o.Err != nil {
		fmt.Fprintf(c.out, "%s %s\n    %s\n\n", cliui.FailMark, cliui.NameStyle.Render(header), cliui.DimStyle.Render(o.Err.Error()))
		return
	}
	fmt.Fprintf(c.out, "%s %s %s\n%s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(header),
		cliui.StepStyle.Render(fmt.Sprintf("(%s)", cliui.FormatDuration(o.Result.Duration))),
		o.Answer,
	)
}

func (c *batchCommander) summarize(outcomes []worker.Outcome, elapsed time.Duration) error {
	var failed, cancelled, fragments, size int
	for _, o := range outcomes {
		switch {
		case o.Result.State == completion.StateCancelled:
			cancelled++
		case o.Err != nil:
			failed++
		}
		fragments += o.Result.Fragments
		size += len(o.Answer)
	}

	var err error
	if failed > 0 {
		err = fmt.Errorf("%d of %d completions failed", failed, len(outcomes))
	}

	fmt.Fprintf(c.errOut, "  %s %s prompts, %s fragments, %s in %s\n",
		cliui.Mark(err),
		humanize.Comma(int64(len(outcomes))),
		humanize.Comma(int64(fragments)),
		humanize.Bytes(uint64(size)),
		cliui.FormatDuration(elapsed),
	)
	if cancelled > 0 {
		fmt.Fprintf(c.errOut, "  %s %d cancelled\n", cliui.WarnStyle.Render("!"), cancelled)
	}

	return err
}
