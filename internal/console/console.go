// Package console renders patch messages as coloured, tagged status lines.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"example.com/eac3fix/internal/common"
)

// Console prints status lines to a writer. Progress updates rewrite a single
// line in place; any other message first terminates that line. It is safe
// for concurrent use.
type Console struct {
	mu         sync.Mutex
	w          io.Writer
	info       *color.Color
	ok         *color.Color
	warn       *color.Color
	err        *color.Color
	bright     *color.Color
	progress   bool
	inProgress bool
}

// New returns a Console writing to w. Colour is disabled when enabled is
// false, when NO_COLOR is set, or when w is a file that is not a terminal.
func New(w io.Writer, enabled bool) *Console {
	if os.Getenv("NO_COLOR") != "" {
		enabled = false
	}
	if f, ok := w.(*os.File); ok {
		if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
			w = colorable.NewColorable(f)
		} else {
			enabled = false
		}
	}
	return &Console{
		w:        w,
		info:     paint(enabled, color.FgCyan),
		ok:       paint(enabled, color.FgGreen),
		warn:     paint(enabled, color.FgYellow),
		err:      paint(enabled, color.FgRed),
		bright:   paint(enabled, color.Bold),
		progress: true,
	}
}

func paint(enabled bool, attr color.Attribute) *color.Color {
	c := color.New(attr)
	if enabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// WithPrefix returns a notifier that writes through c and puts prefix in
// front of every message. Per-file progress is suppressed so
// concurrent passes do not fight over the progress line.
func (c *Console) WithPrefix(prefix string) *Prefixed {
	return &Prefixed{c: c, prefix: prefix}
}

// SetProgress enables or disables the per-frame progress line.
func (c *Console) SetProgress(on bool) {
	c.mu.Lock()
	c.progress = on
	c.mu.Unlock()
}

func (c *Console) Info(msg string) { c.line(c.info, "INFO", msg) }
func (c *Console) OK(msg string)   { c.line(c.ok, "OK", msg) }
func (c *Console) Warn(msg string) { c.line(c.warn, "WARN", msg) }
func (c *Console) Err(msg string)  { c.line(c.err, "ERR", msg) }

// Progress redraws the compact frame counter.
func (c *Console) Progress(frames int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.progress {
		return
	}
	fmt.Fprintf(c.w, "\r%s Frames: %s", c.info.Sprint("[INFO]"), c.bright.Sprint(frames))
	c.inProgress = true
}

// Done ends an open progress line.
func (c *Console) Done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endProgressLocked()
}

func (c *Console) line(tag *color.Color, label, msg string) {
	common.Logf("%s %s", label, msg)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endProgressLocked()
	fmt.Fprintf(c.w, "%s %s\n", tag.Sprint("["+label+"]"), msg)
}

func (c *Console) endProgressLocked() {
	if c.inProgress {
		fmt.Fprint(c.w, "\n")
		c.inProgress = false
	}
}

// Prefixed tags every message with a fixed prefix, typically a file name.
type Prefixed struct {
	c      *Console
	prefix string
}

func (p *Prefixed) Info(msg string) { p.c.Info(p.format(msg)) }
func (p *Prefixed) OK(msg string)   { p.c.OK(p.format(msg)) }
func (p *Prefixed) Warn(msg string) { p.c.Warn(p.format(msg)) }
func (p *Prefixed) Err(msg string)  { p.c.Err(p.format(msg)) }

// Progress is dropped; batch runs report progress through Metrics.
func (p *Prefixed) Progress(int) {}

func (p *Prefixed) format(msg string) string {
	if strings.TrimSpace(p.prefix) == "" {
		return msg
	}
	return p.prefix + ": " + msg
}
