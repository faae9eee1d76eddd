// Package conn implements the per-server connection state machine: the
// lifecycle of one socket and the framing of its inbound bytes into
// protocol messages.
package conn

import (
	"bytes"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/tessro/rirc/internal/irc"
)

// BufferSize is the size of a single read from the socket.
const BufferSize = 512

// MaxLineLength bounds a buffered partial line. Longer lines are dropped.
const MaxLineLength = 8 * BufferSize

// State is a connection lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Lost
	Closed
)

var stateNames = [...]string{
	Disconnected: "disconnected",
	Connecting:   "connecting",
	Connected:    "connected",
	Lost:         "lost",
	Closed:       "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Lost || s == Closed
}

// Handler receives connection events. All methods are called on the loop
// goroutine.
type Handler interface {
	// Connected is called once the socket is established.
	Connected(c *Conn)
	// Message is called for every complete, parseable line.
	Message(c *Conn, m *irc.Message)
	// Lost is called once when the connection fails or the peer hangs up.
	Lost(c *Conn, err error)
}

// Conn is one remote endpoint. A Conn is not safe for concurrent use; it is
// owned by the scheduler that polls it.
type Conn struct {
	Host string
	Port int

	// Session is the registry's back-reference for this connection.
	Session any

	handler   Handler
	state     State
	transport Transport
	err       error

	partial  []byte
	overflow bool
}

// New creates a disconnected connection to host:port.
func New(host string, port int, h Handler) *Conn {
	return &Conn{
		Host:    host,
		Port:    port,
		handler: h,
		partial: make([]byte, 0, BufferSize),
	}
}

// Addr returns host:port.
func (c *Conn) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	return c.state
}

// Err returns the error that moved the connection to Lost, if any.
func (c *Conn) Err() error {
	return c.err
}

// Fd returns the descriptor to poll, or -1 when there is no socket.
func (c *Conn) Fd() int {
	if c.transport == nil {
		return -1
	}
	return c.transport.Fd()
}

func (c *Conn) transition(from, to State) error {
	if c.state != from {
		return fmt.Errorf("%w: %s -> %s from %s", ErrInvalidTransition, from, to, c.state)
	}
	slog.Debug("connection state", "addr", c.Addr(), "from", from, "to", to)
	c.state = to
	return nil
}

// BeginConnect moves Disconnected to Connecting.
func (c *Conn) BeginConnect() error {
	return c.transition(Disconnected, Connecting)
}

// Established attaches the connected transport and moves Connecting to
// Connected. If the connection was closed in the meantime the transport is
// closed and ErrInvalidTransition returned.
func (c *Conn) Established(t Transport) error {
	if err := c.transition(Connecting, Connected); err != nil {
		t.Close()
		return err
	}
	c.transport = t
	slog.Info("connected", "addr", c.Addr())
	c.handler.Connected(c)
	return nil
}

// ConnectFailed moves Connecting to Lost and reports a ConnectError.
func (c *Conn) ConnectFailed(err error) error {
	if terr := c.transition(Connecting, Lost); terr != nil {
		return terr
	}
	c.err = &ConnectError{Host: c.Host, Port: c.Port, Err: err}
	slog.Warn("connect failed", "addr", c.Addr(), "error", err)
	c.handler.Lost(c, c.err)
	return nil
}

// MarkLost moves Connected to Lost and notifies the handler. The socket is
// kept until Release so the owner decides when to drop the connection.
func (c *Conn) MarkLost(err error) error {
	if terr := c.transition(Connected, Lost); terr != nil {
		return terr
	}
	c.err = err
	slog.Warn("connection lost", "addr", c.Addr(), "error", err)
	c.handler.Lost(c, err)
	return nil
}

// Close is the user initiated shutdown. It moves any non-terminal state to
// Closed and releases the socket.
func (c *Conn) Close() error {
	if c.state.Terminal() {
		return fmt.Errorf("%w: close from %s", ErrInvalidTransition, c.state)
	}
	slog.Info("connection closed", "addr", c.Addr(), "from", c.state)
	c.state = Closed
	return c.Release()
}

// Release closes the underlying socket, if any. It does not change state.
func (c *Conn) Release() error {
	if c.transport == nil {
		return nil
	}
	err := c.transport.Close()
	c.transport = nil
	c.partial = c.partial[:0]
	return err
}

// Read reads whatever is available on the socket.
func (c *Conn) Read(p []byte) (int, error) {
	if c.transport == nil {
		return 0, ErrNotConnected
	}
	return c.transport.ReadAvailable(p)
}

// Send writes one encoded line, e.g. from irc.NewLine.
func (c *Conn) Send(line string) error {
	if c.state != Connected || c.transport == nil {
		return ErrNotConnected
	}
	if _, err := c.transport.Write([]byte(line)); err != nil {
		return fmt.Errorf("send to %s: %w", c.Addr(), err)
	}
	return nil
}

// Feed splits inbound bytes into lines and dispatches each complete line.
// A trailing partial line is kept for the next call.
func (c *Conn) Feed(p []byte) {
	for len(p) > 0 && c.state == Connected {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			c.buffer(p)
			return
		}

		line := p[:i]
		p = p[i+1:]

		if c.overflow {
			c.overflow = false
			continue
		}
		if len(c.partial) > 0 {
			c.partial = append(c.partial, line...)
			line = c.partial
		}
		c.dispatch(line)
		c.partial = c.partial[:0]
	}
}

func (c *Conn) buffer(p []byte) {
	if c.overflow {
		return
	}
	if len(c.partial)+len(p) > MaxLineLength {
		slog.Warn("discarding overlong line", "addr", c.Addr(), "length", len(c.partial)+len(p))
		c.partial = c.partial[:0]
		c.overflow = true
		return
	}
	c.partial = append(c.partial, p...)
}

func (c *Conn) dispatch(line []byte) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(line) == 0 {
		return
	}

	m, err := irc.Parse(string(line))
	if err != nil {
		slog.Debug("discarding line", "addr", c.Addr(), "line", string(line), "error", err)
		return
	}
	c.handler.Message(c, &m)
}
