package cliui

import (
	"io"
	"strings"
	"sync"
)

// DeltaWriter prints a growing answer incrementally. Each Update receives the
// full text so far and writes only the part not yet printed.
type DeltaWriter struct {
	mu      sync.Mutex
	w       io.Writer
	printed string
}

// NewDeltaWriter returns a DeltaWriter writing to w.
func NewDeltaWriter(w io.Writer) *DeltaWriter {
	return &DeltaWriter{w: w}
}

// Update writes the new suffix of text. If text does not extend what was
// already printed, it starts over on a new line.
func (d *DeltaWriter) Update(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	suffix, ok := strings.CutPrefix(text, d.printed)
	if !ok {
		if _, err := io.WriteString(d.w, "\n"); err != nil {
			return err
		}
		suffix = text
	}

	if _, err := io.WriteString(d.w, suffix); err != nil {
		return err
	}
	d.printed = text
	return nil
}

// Printed returns everything written so far.
func (d *DeltaWriter) Printed() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.printed
}
