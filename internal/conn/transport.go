package conn

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// writeTimeout bounds how long a single outgoing line may block.
const writeTimeout = 5 * time.Second

// Transport is the byte stream under a connection.
type Transport interface {
	io.Writer
	io.Closer

	// Fd returns the descriptor to poll for readiness.
	Fd() int

	// ReadAvailable reads whatever is buffered without waiting for more.
	// It returns 0, nil when the peer has closed the stream and
	// ErrWouldBlock when nothing was available.
	ReadAvailable(p []byte) (int, error)
}

// tcpTransport reads straight from the socket so a read never parks the
// loop goroutine.
type tcpTransport struct {
	nc  net.Conn
	raw syscall.RawConn
	fd  int
}

// NewTCPTransport wraps a connected socket.
func NewTCPTransport(nc net.Conn) (Transport, error) {
	sc, ok := nc.(syscall.Conn)
	if !ok {
		return nil, fmt.Errorf("transport: %T has no file descriptor", nc)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	t := &tcpTransport{nc: nc, raw: raw, fd: -1}
	if err := raw.Control(func(fd uintptr) { t.fd = int(fd) }); err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	return t, nil
}

func (t *tcpTransport) Fd() int {
	return t.fd
}

func (t *tcpTransport) ReadAvailable(p []byte) (int, error) {
	var (
		n    int
		rerr error
	)
	err := t.raw.Read(func(fd uintptr) bool {
		n, rerr = unix.Read(int(fd), p)
		// Report done even on EAGAIN: waiting is the poller's job.
		return true
	})
	if err != nil {
		return 0, err
	}
	if errors.Is(rerr, unix.EAGAIN) || errors.Is(rerr, unix.EINTR) {
		return 0, ErrWouldBlock
	}
	if rerr != nil {
		return 0, rerr
	}
	return n, nil
}

func (t *tcpTransport) Write(p []byte) (int, error) {
	_ = t.nc.SetWriteDeadline(time.Now().Add(writeTimeout))
	n, err := t.nc.Write(p)
	_ = t.nc.SetWriteDeadline(time.Time{})
	return n, err
}

func (t *tcpTransport) Close() error {
	return t.nc.Close()
}
