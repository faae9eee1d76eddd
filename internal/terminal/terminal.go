//go:build unix

// Package terminal acquires the controlling terminal for the client: raw
// mode on entry, restoration on every exit path, window size queries and
// resize notifications.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// ErrNotTerminal is returned when stdin or stdout is not a terminal.
var ErrNotTerminal = errors.New("terminal: not a terminal")

// Terminal is the acquired terminal. The zero value is not usable; call
// Open.
type Terminal struct {
	in  *os.File
	out *os.File

	state *term.State
}

// Open puts in into raw mode. The caller must call Restore on every exit
// path.
func Open(in, out *os.File) (*Terminal, error) {
	if !term.IsTerminal(int(in.Fd())) || !term.IsTerminal(int(out.Fd())) {
		return nil, ErrNotTerminal
	}
	state, err := term.MakeRaw(int(in.Fd()))
	if err != nil {
		return nil, fmt.Errorf("raw mode: %w", err)
	}
	slog.Debug("terminal raw mode enabled")
	return &Terminal{in: in, out: out, state: state}, nil
}

// Restore puts the terminal back into the mode it was in before Open. It
// is safe to call more than once.
func (t *Terminal) Restore() error {
	if t.state == nil {
		return nil
	}
	state := t.state
	t.state = nil
	if err := term.Restore(int(t.in.Fd()), state); err != nil {
		return fmt.Errorf("restore terminal: %w", err)
	}
	slog.Debug("terminal restored")
	return nil
}

// Size returns the window size in cells.
func (t *Terminal) Size() (width, height int, err error) {
	return term.GetSize(int(t.out.Fd()))
}

// Out is where the screen is drawn.
func (t *Terminal) Out() io.Writer {
	return t.out
}

// Keyboard returns the input source for the event loop.
func (t *Terminal) Keyboard() *Keyboard {
	return &Keyboard{fd: int(t.in.Fd())}
}

// NotifyResize calls fn from a background goroutine after every window
// size change until ctx is done.
func NotifyResize(ctx context.Context, fn func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGWINCH)
	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				fn()
			}
		}
	}()
}

// Keyboard reads raw keystrokes from the terminal descriptor. Reads are
// issued only after a poll reported the descriptor readable.
type Keyboard struct {
	fd int
}

// NewKeyboard wraps an already open descriptor.
func NewKeyboard(fd int) *Keyboard {
	return &Keyboard{fd: fd}
}

func (k *Keyboard) Fd() int {
	return k.fd
}

func (k *Keyboard) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(k.fd, p)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}
