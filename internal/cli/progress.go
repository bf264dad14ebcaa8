package cli

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// statusLine renders review progress as a single rewritten line on a
// terminal. On anything else it stays silent.
type statusLine struct {
	mu      sync.Mutex
	w       io.Writer
	enabled bool
	shown   bool
}

func newStatusLine(f *os.File) *statusLine {
	fd := f.Fd()
	return &statusLine{w: f, enabled: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)}
}

// SetText replaces the current status text.
func (s *statusLine) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return
	}
	fmt.Fprintf(s.w, "\r\033[K%s", text)
	s.shown = true
}

// Clear erases the status line.
func (s *statusLine) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shown {
		fmt.Fprint(s.w, "\r\033[K")
		s.shown = false
	}
}

// Fail replaces the status line with a failure marker.
func (s *statusLine) Fail(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return
	}
	fmt.Fprintf(s.w, "\r\033[K[x] %s\n", text)
	s.shown = false
}
