// Package cliui holds the terminal presentation shared by chatstream
// commands: the color palette, a progress spinner, streamed answer output and
// markdown rendering.
package cliui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"
)

func fg(c string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
}

// Palette.
var (
	KeyStyle    = fg("75")
	ValueStyle  = fg("252")
	StepStyle   = fg("245")
	DimStyle    = fg("240")
	WarnStyle   = fg("214")
	NameStyle   = lipgloss.NewStyle().Bold(true)
	HeaderStyle = fg("212").Bold(true)

	SuccessMark = fg("82").Render("✓")
	FailMark    = fg("196").Render("✗")
)

var spinnerStyle = fg("82")

const spinnerInterval = 80 * time.Millisecond

var spinnerFrames = [...]string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step runs fn while drawing a spinner next to msg on w. The spinner line is
// then replaced by Mark(err), msg and the elapsed time. fn's error is
// returned unchanged.
func Step(w io.Writer, msg string, fn func() error) error {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Go(func() {
		tick := time.NewTicker(spinnerInterval)
		defer tick.Stop()
		for i := 0; ; i++ {
			frame := spinnerStyle.Render(spinnerFrames[i%len(spinnerFrames)])
			fmt.Fprintf(w, "\r%s  %s %s", ansi.EraseEntireLine, frame, msg)
			select {
			case <-stop:
				return
			case <-tick.C:
			}
		}
	})

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(stop)
	wg.Wait()

	fmt.Fprintf(w, "\r%s  %s %s %s\n", ansi.EraseEntireLine, Mark(err), msg,
		StepStyle.Render("("+FormatDuration(elapsed)+")"))
	return err
}

// Mark is SuccessMark for a nil error and FailMark otherwise.
func Mark(err error) string {
	if err == nil {
		return SuccessMark
	}
	return FailMark
}

// FormatDuration renders sub-second durations in milliseconds and anything
// longer in tenths of a second.
func FormatDuration(d time.Duration) string {
	if d >= time.Second {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}

// MarkdownWidth is the column glamour wraps rendered answers at.
var MarkdownWidth = 80

// RenderMarkdown styles content for the terminal. On failure the raw content
// is returned along with the error, so callers can print it either way.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(MarkdownWidth))
	if err != nil {
		return content, err
	}
	out, err := r.Render(content)
	if err != nil {
		return content, err
	}
	return out, nil
}

// Ellipsize flattens s onto one line and truncates it to width terminal
// cells, ending in "…" when cut. Wide runes count as two cells.
func Ellipsize(s string, width int) string {
	return ansi.Truncate(strings.Join(strings.Fields(s), " "), width, "…")
}
