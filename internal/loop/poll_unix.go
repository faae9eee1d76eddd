//go:build unix

package loop

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const readyMask = unix.POLLIN | unix.POLLHUP | unix.POLLERR | unix.POLLNVAL

// UnixPoller polls with poll(2). Wake writes to a self-pipe that is polled
// alongside the caller's descriptors. Wake may be called from any goroutine,
// including after Close, when it does nothing.
type UnixPoller struct {
	wakeR int
	pfds  []unix.PollFd
	drain [64]byte

	mu sync.Mutex
	// +checklocks:mu
	wakeW int
	// +checklocks:mu
	closed bool
}

// NewUnixPoller creates a poller and its wake pipe.
func NewUnixPoller() (*UnixPoller, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, fmt.Errorf("wake pipe: %w", err)
	}
	for _, fd := range p {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return nil, fmt.Errorf("wake pipe: %w", err)
		}
	}
	return &UnixPoller{wakeR: p[0], wakeW: p[1]}, nil
}

// Poll implements Poller. A negative timeout waits indefinitely.
func (p *UnixPoller) Poll(fds []int, timeout time.Duration) ([]bool, error) {
	p.pfds = p.pfds[:0]
	for _, fd := range fds {
		p.pfds = append(p.pfds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	}
	p.pfds = append(p.pfds, unix.PollFd{Fd: int32(p.wakeR), Events: unix.POLLIN})

	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}

	_, err := unix.Poll(p.pfds, ms)
	if errors.Is(err, unix.EINTR) {
		return nil, ErrInterrupted
	}
	if err != nil {
		return nil, err
	}

	ready := make([]bool, len(fds))
	found := false
	for i := range fds {
		ready[i] = p.pfds[i].Revents&readyMask != 0
		found = found || ready[i]
	}

	if p.pfds[len(fds)].Revents&unix.POLLIN != 0 {
		p.drainWake()
		if !found {
			return ready, ErrWoken
		}
	}
	return ready, nil
}

func (p *UnixPoller) drainWake() {
	for {
		n, err := unix.Read(p.wakeR, p.drain[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// Wake implements Poller.
func (p *UnixPoller) Wake() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	_, err := unix.Write(p.wakeW, []byte{0})
	if errors.Is(err, unix.EAGAIN) {
		// Pipe full: a wakeup is already pending.
		return nil
	}
	return err
}

// Close releases the wake pipe. Later calls are no-ops.
func (p *UnixPoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	err := errors.Join(unix.Close(p.wakeR), unix.Close(p.wakeW))
	p.wakeR, p.wakeW = -1, -1
	return err
}
