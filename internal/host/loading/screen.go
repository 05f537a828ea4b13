package loading

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

const barWidth = 24

// Screen renders status messages, with the meter's bar when it has steps.
type Screen struct {
	mu    sync.Mutex
	out   io.Writer
	meter *Meter
	last  string
}

// NewScreen creates a screen writing to out. meter may be nil.
func NewScreen(out io.Writer, meter *Meter) *Screen {
	return &Screen{
		out:   out,
		meter: meter,
	}
}

// UpdateProgress shows a short human-readable status.
// A repeated identical frame is not drawn twice.
func (s *Screen) UpdateProgress(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.draw(s.frame(message))
}

// ShowActivity shows a status without the bar or step counts.
func (s *Screen) ShowActivity(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.draw(message)
}

func (s *Screen) draw(frame string) {
	if frame == s.last {
		return
	}

	s.last = frame
	_, _ = fmt.Fprintln(s.out, frame)
}

// Last returns the most recently drawn frame.
func (s *Screen) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.last
}

func (s *Screen) frame(message string) string {
	if s.meter == nil {
		return message
	}

	current, total := s.meter.Steps()
	if total <= 0 {
		return message
	}

	filled := barWidth * min(current, total) / total

	return fmt.Sprintf("%s [%s%s] %d/%d",
		message,
		strings.Repeat("#", filled),
		strings.Repeat("-", barWidth-filled),
		current,
		total,
	)
}
