package gelerr

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
)

// Handler is the pluggable error-handler contract from spec.md §4.G: a
// Manager owns one and routes non-fatal problems to it.
type Handler interface {
	Handle(e *Err)
}

// Manager is the owner spec.md §4.G describes: "a Manager owns an
// error-handler reference." Parsers and builders hold a *Manager (or take
// one as a constructor argument) and call Warn instead of returning an
// error for recoverable conditions (unknown program header type, bad
// machine on a candidate library, unexpanded RPATH token).
type Manager struct {
	handler Handler
}

// NewManager builds a Manager around h. A nil h means warnings are dropped,
// matching the teacher's pattern of an optional Verbose-gated sink.
func NewManager(h Handler) *Manager {
	return &Manager{handler: h}
}

// DefaultManager returns a Manager backed by a ConsoleHandler writing to
// os.Stderr, the library's out-of-the-box behavior.
func DefaultManager() *Manager {
	return NewManager(NewConsoleHandler(os.Stderr))
}

func (m *Manager) Warn(kind Kind, format string, args ...interface{}) {
	m.report(Warnf(kind, format, args...))
}

func (m *Manager) Warnf(format string, args ...interface{}) {
	m.report(Warnf(KindFormat, format, args...))
}

func (m *Manager) report(e *Err) {
	if m == nil || m.handler == nil {
		return
	}
	m.handler.Handle(e)
}

// ConsoleHandler formats reports the way a CLI front-end would: one line
// "WARNING: <message> (<kind>)" for Info and Warning severities, "ERROR:
// <message> (<kind>)" for Error and Fatal, colorized when writing to a
// real terminal.
// Grounded on the teacher's transitive mgutz/ansi + mattn/go-isatty +
// mattn/go-colorable dependency set, here repurposed from REPL output
// coloring into the library's own default diagnostic sink.
type ConsoleHandler struct {
	w      io.Writer
	color  bool
	warn   string
	errc   string
	reset  string
}

// NewConsoleHandler builds a handler writing to w. Color is enabled only
// when w is a *os.File attached to a real terminal.
func NewConsoleHandler(w io.Writer) *ConsoleHandler {
	color := false
	out := w
	if f, ok := w.(*os.File); ok {
		if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
			color = true
			out = colorable.NewColorable(f)
		}
	}
	return &ConsoleHandler{
		w:     out,
		color: color,
		warn:  ansi.ColorCode("yellow+b"),
		errc:  ansi.ColorCode("red+b"),
		reset: ansi.ColorCode("reset"),
	}
}

func (c *ConsoleHandler) Handle(e *Err) {
	prefix := "WARNING"
	code := c.warn
	if e.Severity >= Error {
		prefix = "ERROR"
		code = c.errc
	}
	if c.color {
		fmt.Fprintf(c.w, "%s%s: %s (%s)%s\n", code, prefix, e.Message, e.Kind, c.reset)
	} else {
		fmt.Fprintf(c.w, "%s: %s (%s)\n", prefix, e.Message, e.Kind)
	}
}

// DiscardHandler silently drops every report; useful for tests that want a
// Manager without stderr noise.
type DiscardHandler struct{}

func (DiscardHandler) Handle(*Err) {}
