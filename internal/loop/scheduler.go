// Package loop implements the single goroutine event loop that multiplexes
// keyboard input and every server connection over one readiness poll.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/tessro/rirc/internal/conn"
)

const (
	// IdleTimeout is how long the loop waits before flushing buffered
	// keystrokes to the input processor.
	IdleTimeout = 200 * time.Millisecond

	// MaxConnections is the maximum number of concurrent server connections.
	MaxConnections = 32

	// InputBufferSize bounds buffered keystrokes; a full buffer is flushed
	// without waiting for the idle timeout.
	InputBufferSize = 512

	postQueueSize = 64
)

// Errors returned by the scheduler and pollers.
var (
	// ErrInterrupted is returned by a Poller when a signal interrupted the
	// wait. The loop retries.
	ErrInterrupted = errors.New("loop: poll interrupted")

	// ErrWoken is returned by a Poller when only a Wake ended the wait.
	ErrWoken = errors.New("loop: poll woken")

	// ErrTooManyConnections is returned by Add past MaxConnections.
	ErrTooManyConnections = errors.New("loop: too many connections")

	// ErrInputClosed is returned when the keyboard source reaches EOF.
	ErrInputClosed = errors.New("loop: input closed")
)

// Poller waits for readiness on a set of descriptors.
type Poller interface {
	// Poll blocks until one of fds is readable or timeout elapses. The
	// result has one entry per fd. It returns ErrInterrupted when a signal
	// ended the wait and ErrWoken when only Wake did.
	Poll(fds []int, timeout time.Duration) ([]bool, error)

	// Wake makes a blocked or subsequent Poll return. Safe to call from
	// any goroutine.
	Wake() error
}

// Source is the keyboard.
type Source interface {
	Fd() int
	Read(p []byte) (int, error)
}

// InputProcessor consumes keystrokes, one buffered burst at a time.
type InputProcessor interface {
	Input(p []byte)
}

// Renderer redraws the screen.
type Renderer interface {
	Redraw()
}

// Scheduler owns the keyboard source, the connection set and the redraw
// flag. Everything except Post and Wake must be called from the goroutine
// running the loop.
type Scheduler struct {
	poller   Poller
	keyboard Source
	input    InputProcessor
	renderer Renderer

	conns  []*conn.Conn
	polled []*conn.Conn
	fds    []int

	keys    []byte
	buf     []byte
	timeout time.Duration
	dirty   bool
	stopped bool

	posted chan func()
}

// New creates a scheduler. The first poll waits for IdleTimeout.
func New(p Poller, keyboard Source, input InputProcessor, renderer Renderer) *Scheduler {
	return &Scheduler{
		poller:   p,
		keyboard: keyboard,
		input:    input,
		renderer: renderer,
		keys:     make([]byte, 0, InputBufferSize),
		buf:      make([]byte, conn.BufferSize),
		timeout:  IdleTimeout,
		posted:   make(chan func(), postQueueSize),
	}
}

// SetInput replaces the input processor.
func (s *Scheduler) SetInput(p InputProcessor) {
	s.input = p
}

// SetRenderer replaces the renderer.
func (s *Scheduler) SetRenderer(r Renderer) {
	s.renderer = r
}

// MarkDirty requests a redraw at the end of the current iteration.
func (s *Scheduler) MarkDirty() {
	s.dirty = true
}

// Stop ends Run after the current iteration.
func (s *Scheduler) Stop() {
	s.stopped = true
}

// Stopped reports whether Stop was called.
func (s *Scheduler) Stopped() bool {
	return s.stopped
}

// Post queues fn to run on the loop goroutine and wakes the poll. It is the
// only way for other goroutines to touch loop state.
func (s *Scheduler) Post(fn func()) {
	s.posted <- fn
	if err := s.poller.Wake(); err != nil {
		slog.Warn("wake poller", "error", err)
	}
}

// Add registers a connection. It is polled once it reaches Connected.
func (s *Scheduler) Add(c *conn.Conn) error {
	if len(s.conns) >= MaxConnections {
		return fmt.Errorf("%w: limit is %d", ErrTooManyConnections, MaxConnections)
	}
	s.conns = append(s.conns, c)
	return nil
}

// Remove releases a connection's socket and drops it from the set.
func (s *Scheduler) Remove(c *conn.Conn) {
	i := slices.Index(s.conns, c)
	if i < 0 {
		return
	}
	if err := c.Release(); err != nil {
		slog.Debug("release connection", "addr", c.Addr(), "error", err)
	}
	s.conns = slices.Delete(s.conns, i, i+1)
	slog.Debug("connection removed", "addr", c.Addr(), "state", c.State(), "remaining", len(s.conns))
}

// Conns returns the registered connections.
func (s *Scheduler) Conns() []*conn.Conn {
	return slices.Clone(s.conns)
}

// Run steps the loop until Stop is called, ctx is done, or a fatal error
// occurs. The screen is drawn once before the first poll.
func (s *Scheduler) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Post(s.Stop) })
	defer stop()

	s.dirty = true
	s.redraw()

	for !s.stopped {
		if err := s.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Step runs exactly one loop iteration: one poll, then handling of either
// the idle timeout, the keyboard, or the ready connections, then at most one
// redraw.
func (s *Scheduler) Step() error {
	s.runPosted()
	if s.stopped {
		return nil
	}

	ready, err := s.poller.Poll(s.pollSet(), s.timeout)
	switch {
	case errors.Is(err, ErrInterrupted):
		// Typically a resize; retry the poll and repaint.
		s.dirty = true
		s.redraw()
		return nil
	case errors.Is(err, ErrWoken):
		s.runPosted()
		s.sweep()
		s.redraw()
		return nil
	case err != nil:
		return fmt.Errorf("poll: %w", err)
	}

	switch {
	case !slices.Contains(ready, true):
		s.flush()
		s.timeout = IdleTimeout
	case ready[0]:
		if err := s.readKeyboard(); err != nil {
			return err
		}
		s.timeout = 0
	default:
		for i, c := range s.polled {
			if ready[i+1] {
				s.service(c)
			}
		}
		s.timeout = 0
	}

	s.sweep()
	s.redraw()
	return nil
}

// pollSet lists the keyboard followed by every connected socket.
func (s *Scheduler) pollSet() []int {
	s.polled = s.polled[:0]
	s.fds = append(s.fds[:0], s.keyboard.Fd())
	for _, c := range s.conns {
		if c.State() == conn.Connected && c.Fd() >= 0 {
			s.polled = append(s.polled, c)
			s.fds = append(s.fds, c.Fd())
		}
	}
	return s.fds
}

func (s *Scheduler) runPosted() {
	for {
		select {
		case fn := <-s.posted:
			fn()
		default:
			return
		}
	}
}

func (s *Scheduler) flush() {
	if len(s.keys) == 0 {
		return
	}
	s.input.Input(s.keys)
	s.keys = s.keys[:0]
}

func (s *Scheduler) readKeyboard() error {
	n, err := s.keyboard.Read(s.buf[:cap(s.keys)-len(s.keys)])
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read input: %w", err)
	}
	if n == 0 {
		return ErrInputClosed
	}
	s.keys = append(s.keys, s.buf[:n]...)
	if len(s.keys) == cap(s.keys) {
		s.flush()
	}
	return nil
}

// service reads once from a ready connection.
func (s *Scheduler) service(c *conn.Conn) {
	n, err := c.Read(s.buf)
	switch {
	case errors.Is(err, conn.ErrWouldBlock):
	case errors.Is(err, io.EOF) || (err == nil && n == 0):
		c.MarkLost(conn.ErrLost)
	case err != nil:
		c.MarkLost(fmt.Errorf("%w: %w", conn.ErrRead, err))
	default:
		c.Feed(s.buf[:n])
	}
}

// sweep removes connections that reached a terminal state.
func (s *Scheduler) sweep() {
	for i := len(s.conns) - 1; i >= 0; i-- {
		if c := s.conns[i]; c.State().Terminal() {
			s.Remove(c)
		}
	}
}

func (s *Scheduler) redraw() {
	if !s.dirty {
		return
	}
	s.dirty = false
	s.renderer.Redraw()
}
