package cliui

import (
	"context"
	"os"
	"os/signal"
)

// Interrupts delivers Ctrl+C until ctx is done.
func Interrupts(ctx context.Context) <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	go func() {
		<-ctx.Done()
		signal.Stop(ch)
	}()
	return ch
}
