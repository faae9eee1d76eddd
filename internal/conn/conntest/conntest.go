// Package conntest provides scripted transports and recording handlers for
// tests of code built on package conn.
package conntest

import (
	"bytes"
	"fmt"
	"io"

	"github.com/tessro/rirc/internal/conn"
	"github.com/tessro/rirc/internal/irc"
)

type read struct {
	data []byte
	err  error
	eof  bool
}

// Transport is a conn.Transport whose reads are queued by the test.
// With nothing queued, ReadAvailable returns conn.ErrWouldBlock.
type Transport struct {
	FD      int
	Written bytes.Buffer
	Closes  int

	// WriteErr, when set, fails every Write.
	WriteErr error

	queue []read
}

// NewTransport creates a transport reporting fd.
func NewTransport(fd int) *Transport {
	return &Transport{FD: fd}
}

// QueueRead schedules data for the next read.
func (t *Transport) QueueRead(data string) {
	t.queue = append(t.queue, read{data: []byte(data)})
}

// QueueEOF schedules a zero-length read.
func (t *Transport) QueueEOF() {
	t.queue = append(t.queue, read{eof: true})
}

// QueueError schedules a failing read.
func (t *Transport) QueueError(err error) {
	t.queue = append(t.queue, read{err: err})
}

// Pending reports whether reads remain queued.
func (t *Transport) Pending() bool {
	return len(t.queue) > 0
}

func (t *Transport) Fd() int {
	return t.FD
}

func (t *Transport) ReadAvailable(p []byte) (int, error) {
	if len(t.queue) == 0 {
		return 0, conn.ErrWouldBlock
	}
	r := &t.queue[0]
	switch {
	case r.err != nil:
		t.queue = t.queue[1:]
		return 0, r.err
	case r.eof:
		t.queue = t.queue[1:]
		return 0, nil
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	if len(r.data) == 0 {
		t.queue = t.queue[1:]
	}
	return n, nil
}

func (t *Transport) Write(p []byte) (int, error) {
	if t.WriteErr != nil {
		return 0, t.WriteErr
	}
	return t.Written.Write(p)
}

func (t *Transport) Close() error {
	t.Closes++
	if t.Closes > 1 {
		return io.ErrClosedPipe
	}
	return nil
}

// Recorder is a conn.Handler that records every event as a string such as
// "connected irc.example.net:6667", "message PRIVMSG" or "lost <err>".
type Recorder struct {
	Events   []string
	Messages []irc.Message

	// OnMessage, when set, runs after a message is recorded.
	OnMessage func(c *conn.Conn, m *irc.Message)
}

func (r *Recorder) Connected(c *conn.Conn) {
	r.Events = append(r.Events, "connected "+c.Addr())
}

func (r *Recorder) Message(c *conn.Conn, m *irc.Message) {
	r.Events = append(r.Events, fmt.Sprintf("message %s %s", c.Addr(), m.Command))
	r.Messages = append(r.Messages, *m)
	if r.OnMessage != nil {
		r.OnMessage(c, m)
	}
}

func (r *Recorder) Lost(c *conn.Conn, err error) {
	r.Events = append(r.Events, fmt.Sprintf("lost %s: %v", c.Addr(), err))
}

// Connect returns a connection to host:6667 already in the Connected state.
func Connect(host string, t conn.Transport, h conn.Handler) *conn.Conn {
	c := conn.New(host, 6667, h)
	if err := c.BeginConnect(); err != nil {
		panic(err)
	}
	if err := c.Established(t); err != nil {
		panic(err)
	}
	return c
}
