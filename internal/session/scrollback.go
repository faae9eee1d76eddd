package session

import (
	"strings"
	"time"
)

// DefaultScrollback is the default number of lines a channel retains.
const DefaultScrollback = 2000

// Kind classifies a scrollback line for rendering.
type Kind int

const (
	KindStatus Kind = iota
	KindChat
	KindNotice
	KindJoinPartQuit
	KindError
	KindPinged
	KindSelf
)

// Line is one entry in a channel's scrollback.
type Line struct {
	Time time.Time
	From string
	Text string
	Kind Kind
}

// Scrollback is a circular buffer of lines. It stores a fixed number of lines
// and overwrites the oldest when full.
type Scrollback struct {
	lines []Line
	size  int // Maximum number of lines (immutable after creation)
	head  int // Next write position
	count int // Current number of lines stored
}

// NewScrollback creates a scrollback with the specified capacity.
// If size <= 0, DefaultScrollback is used.
func NewScrollback(size int) *Scrollback {
	if size <= 0 {
		size = DefaultScrollback
	}
	return &Scrollback{
		lines: make([]Line, size),
		size:  size,
	}
}

// Append stores a line, evicting the oldest one when full.
func (s *Scrollback) Append(l Line) {
	s.lines[s.head] = l
	s.head = (s.head + 1) % s.size
	if s.count < s.size {
		s.count++
	}
}

// Lines returns the last n lines, oldest first.
// If n <= 0 or n > count, returns all stored lines.
func (s *Scrollback) Lines(n int) []Line {
	if n <= 0 || n > s.count {
		n = s.count
	}
	if n == 0 {
		return nil
	}

	// head is the next write position, so the newest line sits just before it.
	start := (s.head - n + s.size) % s.size
	result := make([]Line, n)
	for i := range result {
		result[i] = s.lines[(start+i)%s.size]
	}
	return result
}

// Last returns the most recent line.
func (s *Scrollback) Last() (Line, bool) {
	if s.count == 0 {
		return Line{}, false
	}
	return s.lines[(s.head-1+s.size)%s.size], true
}

// Len returns the number of lines currently stored.
func (s *Scrollback) Len() int {
	return s.count
}

// Cap returns the maximum number of lines the buffer can hold.
func (s *Scrollback) Cap() int {
	return s.size
}

// Clear removes all lines.
func (s *Scrollback) Clear() {
	clear(s.lines)
	s.head = 0
	s.count = 0
}

// Contains reports whether any stored line's text contains substr.
func (s *Scrollback) Contains(substr string) bool {
	for _, l := range s.Lines(0) {
		if strings.Contains(l.Text, substr) {
			return true
		}
	}
	return false
}
