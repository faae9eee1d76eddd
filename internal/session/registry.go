// Package session tracks the conversations attached to each server
// connection: the per-server buffer, joined channels, private queries and
// the nicks present in each.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/tessro/rirc/internal/avl"
	"github.com/tessro/rirc/internal/conn"
	"github.com/tessro/rirc/internal/irc"
)

// StatusName is the name of the client's own status buffer.
const StatusName = "rirc"

// DefaultJoinPartQuitThreshold hides join/part/quit lines in channels with
// more nicks than this.
const DefaultJoinPartQuitThreshold = 100

// Errors returned by registry operations.
var (
	ErrNoServer      = errors.New("session: no server for this buffer")
	ErrNotChannel    = errors.New("session: not a channel")
	ErrServerOffline = errors.New("session: server is not connected")
)

// Options configures a Registry.
type Options struct {
	Username string
	Realname string

	// JoinPartQuitThreshold, when > 0, suppresses join/part/quit lines in
	// channels with more nicks than this.
	JoinPartQuitThreshold int

	// Scrollback is the number of lines each buffer retains.
	Scrollback int

	// OnChange is called whenever visible state changes.
	OnChange func()

	// Bell is called when a message mentions our nick.
	Bell func()

	// NickSuffix generates the random part of fallback nicks once a
	// server's nick list is used up. Nil uses the generator's default.
	NickSuffix func(n int) string
}

// Server is one connection's set of conversations.
type Server struct {
	Conn *conn.Conn
	Nick string

	// Registered is set once the server accepted our nick.
	Registered bool
	Online     bool
	AutoJoin   []string

	// Buffer receives server messages not tied to a channel.
	Buffer *Channel
	// Channels holds joined channels and queries by name.
	Channels avl.Tree[*Channel]

	nicks *irc.NickGenerator
}

// Send encodes a line with irc.NewLine and writes it to the server.
func (s *Server) Send(command string, params ...string) error {
	line, err := irc.NewLine(command, params...)
	if err != nil {
		return err
	}
	if !s.Online {
		return ErrServerOffline
	}
	return s.Conn.Send(line)
}

// Registry owns the status buffer and every server's conversations. It
// implements conn.Handler. Like the connections it serves, a Registry is
// used from the loop goroutine only.
type Registry struct {
	opts    Options
	status  *Channel
	servers []*Server
	current *Channel
}

// New creates a registry with an empty status buffer selected.
func New(opts Options) *Registry {
	if opts.OnChange == nil {
		opts.OnChange = func() {}
	}
	if opts.Bell == nil {
		opts.Bell = func() {}
	}
	r := &Registry{opts: opts}
	r.status = newChannel(StatusName, nil, opts.Scrollback)
	r.current = r.status
	return r
}

// Status returns the status buffer.
func (r *Registry) Status() *Channel {
	return r.status
}

// Statusf appends a line to the status buffer.
func (r *Registry) Statusf(kind Kind, format string, args ...any) {
	r.status.Addf(kind, format, args...)
	r.changed(r.status, ActivityChat)
}

// Servers returns the registered servers.
func (r *Registry) Servers() []*Server {
	return slices.Clone(r.servers)
}

// AddServer attaches a new connection and selects its buffer. nicks is the
// comma or space separated list of nicks to try.
func (r *Registry) AddServer(c *conn.Conn, nicks string, autoJoin []string) *Server {
	srv := &Server{
		Conn:     c,
		AutoJoin: autoJoin,
		nicks:    irc.NewNickGenerator(nicks),
	}
	srv.nicks.Suffix = r.opts.NickSuffix
	srv.Buffer = newChannel(c.Host, srv, r.opts.Scrollback)
	c.Session = srv

	r.servers = append(r.servers, srv)
	srv.Buffer.Addf(KindStatus, "Connecting to %s", c.Addr())
	r.current = srv.Buffer
	r.opts.OnChange()
	return srv
}

// RemoveServer drops a server and all its conversations.
func (r *Registry) RemoveServer(srv *Server) {
	i := slices.Index(r.servers, srv)
	if i < 0 {
		return
	}
	if r.current.Server == srv {
		r.current = r.status
	}
	srv.Channels.Walk(func(n *avl.Node[*Channel]) bool {
		n.Value.Nicks.Clear()
		return true
	})
	srv.Channels.Clear()
	srv.Conn.Session = nil
	r.servers = slices.Delete(r.servers, i, i+1)
	r.opts.OnChange()
}

// ServerFor returns the server attached to c.
func (r *Registry) ServerFor(c *conn.Conn) (*Server, bool) {
	srv, ok := c.Session.(*Server)
	return srv, ok
}

// Current returns the selected buffer.
func (r *Registry) Current() *Channel {
	return r.current
}

// SetCurrent selects ch and resets its activity.
func (r *Registry) SetCurrent(ch *Channel) {
	r.current = ch
	ch.Activity = ActivityNone
	r.opts.OnChange()
}

// Channels lists every buffer in display order: the status buffer, then
// each server's buffer followed by its channels in name order.
func (r *Registry) Channels() []*Channel {
	list := []*Channel{r.status}
	for _, srv := range r.servers {
		list = append(list, srv.Buffer)
		srv.Channels.Walk(func(n *avl.Node[*Channel]) bool {
			list = append(list, n.Value)
			return true
		})
	}
	return list
}

// Next selects the buffer after the current one, wrapping around.
func (r *Registry) Next() {
	r.cycle(1)
}

// Prev selects the buffer before the current one, wrapping around.
func (r *Registry) Prev() {
	r.cycle(-1)
}

func (r *Registry) cycle(step int) {
	list := r.Channels()
	i := slices.Index(list, r.current)
	if i < 0 {
		i = 0
	}
	r.SetCurrent(list[(i+step+len(list))%len(list)])
}

// Channel finds a channel or query on srv.
func (r *Registry) Channel(srv *Server, name string) (*Channel, bool) {
	return srv.Channels.Get(name)
}

// OpenChannel returns the channel or query named name on srv, creating it
// if needed.
func (r *Registry) OpenChannel(srv *Server, name string) *Channel {
	if ch, ok := srv.Channels.Get(name); ok {
		return ch
	}
	ch := newChannel(name, srv, r.opts.Scrollback)
	if err := srv.Channels.Insert(name, ch); err != nil {
		// Unreachable: Get just reported the name absent.
		slog.Error("open channel", "name", name, "error", err)
	}
	r.opts.OnChange()
	return ch
}

// CloseChannel removes a channel or query from its server. The selection
// moves to the server buffer when the closed channel was selected.
func (r *Registry) CloseChannel(ch *Channel) error {
	if ch.Server == nil || ch == ch.Server.Buffer {
		return ErrNotChannel
	}
	if err := ch.Server.Channels.Remove(ch.Name); err != nil {
		return fmt.Errorf("close %s: %w", ch.Name, err)
	}
	ch.Nicks.Clear()
	if r.current == ch {
		r.current = ch.Server.Buffer
	}
	r.opts.OnChange()
	return nil
}

// Complete finds a nick in the selected channel starting with prefix.
func (r *Registry) Complete(prefix string) (string, error) {
	return r.current.Complete(prefix)
}

// changed records activity on ch and requests a redraw.
func (r *Registry) changed(ch *Channel, a Activity) {
	if ch != r.current {
		ch.raise(a)
	}
	r.opts.OnChange()
}
