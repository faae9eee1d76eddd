package conn

import (
	"context"
	"net"
	"time"

	"github.com/tessro/rirc/internal/logging"
)

// DefaultDialTimeout bounds a single connect attempt.
const DefaultDialTimeout = 15 * time.Second

// DialFunc matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Dialer connects sockets off the loop goroutine. The result is handed back
// through post, which must run the callback on the loop goroutine.
type Dialer struct {
	Timeout time.Duration
	// Dial defaults to a net.Dialer.
	Dial DialFunc
	// NewTransport defaults to NewTCPTransport.
	NewTransport func(net.Conn) (Transport, error)
}

// Connect moves c to Connecting and dials in the background. When the dial
// finishes, post is called with a function that completes the transition to
// Connected or Lost.
func (d *Dialer) Connect(ctx context.Context, c *Conn, post func(func())) error {
	if err := c.BeginConnect(); err != nil {
		return err
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	dial := d.Dial
	if dial == nil {
		nd := &net.Dialer{Timeout: timeout}
		dial = nd.DialContext
	}
	wrap := d.NewTransport
	if wrap == nil {
		wrap = NewTCPTransport
	}
	addr := c.Addr()

	go func() {
		defer logging.LogPanic("dial "+addr, nil)

		dctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var t Transport
		nc, err := dial(dctx, "tcp", addr)
		if err == nil {
			if t, err = wrap(nc); err != nil {
				nc.Close()
			}
		}

		post(func() {
			if err != nil {
				c.ConnectFailed(err)
				return
			}
			c.Established(t)
		})
	}()
	return nil
}
