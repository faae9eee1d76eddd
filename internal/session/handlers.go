package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tessro/rirc/internal/avl"
	"github.com/tessro/rirc/internal/conn"
	"github.com/tessro/rirc/internal/irc"
)

// ctcpAction wraps a /me line.
const ctcpAction = "\x01ACTION "

// nickPrefixes are the membership prefixes a NAMES reply may put in front
// of a nick.
const nickPrefixes = "~&@%+"

// Connected registers with the server.
func (r *Registry) Connected(c *conn.Conn) {
	srv, ok := r.ServerFor(c)
	if !ok {
		slog.Warn("connected without a session", "addr", c.Addr())
		return
	}
	srv.Online = true
	srv.Registered = false
	srv.Buffer.Addf(KindStatus, "Connected to %s", c.Addr())

	srv.Nick = srv.nicks.Next()
	if err := srv.Send("NICK", srv.Nick); err != nil {
		r.sendFailed(srv, err)
		return
	}
	if err := srv.Send("USER", r.opts.Username, "8", "*", r.opts.Realname); err != nil {
		r.sendFailed(srv, err)
		return
	}
	r.changed(srv.Buffer, ActivityChat)
}

// Lost marks the server offline and tells every one of its buffers.
func (r *Registry) Lost(c *conn.Conn, err error) {
	srv, ok := r.ServerFor(c)
	if !ok {
		return
	}
	srv.Online = false
	srv.Registered = false

	msg := "Connection lost"
	var cerr *conn.ConnectError
	if errors.As(err, &cerr) {
		msg = "Error connecting"
	}

	srv.Buffer.Addf(KindError, "%s: %v", msg, err)
	r.changed(srv.Buffer, ActivityChat)
	srv.Channels.Walk(func(n *avl.Node[*Channel]) bool {
		ch := n.Value
		ch.Parted = true
		ch.Addf(KindError, "%s: %v", msg, err)
		r.changed(ch, ActivityChat)
		return true
	})
}

// Message dispatches one server line.
func (r *Registry) Message(c *conn.Conn, m *irc.Message) {
	srv, ok := r.ServerFor(c)
	if !ok {
		return
	}

	switch strings.ToUpper(m.Command) {
	case "PING":
		r.handlePing(srv, m)
	case "001":
		r.handleWelcome(srv, m)
	case "432", "433":
		r.handleNickInUse(srv, m)
	case "353":
		r.handleNames(srv, m)
	case "366":
		// End of NAMES.
	case "JOIN":
		r.handleJoin(srv, m)
	case "PART":
		r.handlePart(srv, m)
	case "QUIT":
		r.handleQuit(srv, m)
	case "NICK":
		r.handleNick(srv, m)
	case "PRIVMSG", "NOTICE":
		r.handleText(srv, m)
	case "ERROR":
		srv.Buffer.Addf(KindError, "%s", m.Trailing)
		r.changed(srv.Buffer, ActivityChat)
	default:
		r.handleOther(srv, m)
	}
}

func (r *Registry) handlePing(srv *Server, m *irc.Message) {
	token := m.Trailing
	if !m.HasTrailing {
		token = m.Param(0)
	}
	if err := srv.Send("PONG", token); err != nil {
		r.sendFailed(srv, err)
	}
}

func (r *Registry) handleWelcome(srv *Server, m *irc.Message) {
	srv.Registered = true
	if nick := m.Param(0); nick != "" {
		srv.Nick = nick
	}
	srv.Buffer.Add(KindStatus, m.From, m.Trailing)
	r.changed(srv.Buffer, ActivityChat)

	var rejoin []string
	srv.Channels.Walk(func(n *avl.Node[*Channel]) bool {
		if irc.IsChannel(n.Key) {
			rejoin = append(rejoin, n.Key)
		}
		return true
	})
	for _, name := range srv.AutoJoin {
		if _, ok := srv.Channels.Get(name); !ok {
			rejoin = append(rejoin, name)
		}
	}
	if len(rejoin) == 0 {
		return
	}
	if err := srv.Send("JOIN", strings.Join(rejoin, ",")); err != nil {
		r.sendFailed(srv, err)
	}
}

func (r *Registry) handleNickInUse(srv *Server, m *irc.Message) {
	srv.Buffer.Addf(KindError, "Nick %q unavailable: %s", m.Param(1), m.Trailing)
	r.changed(srv.Buffer, ActivityChat)
	if srv.Registered {
		return
	}
	srv.Nick = srv.nicks.Next()
	srv.Buffer.Addf(KindStatus, "Trying %s", srv.Nick)
	if err := srv.Send("NICK", srv.Nick); err != nil {
		r.sendFailed(srv, err)
	}
}

// handleNames adds the nicks of a NAMES reply:
//
//	:server 353 me = #chan :@op +voice plain
func (r *Registry) handleNames(srv *Server, m *irc.Message) {
	ch, ok := srv.Channels.Get(m.Param(2))
	if !ok {
		return
	}
	for _, nick := range strings.Fields(m.Trailing) {
		nick = strings.TrimLeft(nick, nickPrefixes)
		if nick == "" {
			continue
		}
		if err := ch.AddNick(nick); err != nil && !errors.Is(err, avl.ErrDuplicateKey) {
			slog.Warn("names", "channel", ch.Name, "nick", nick, "error", err)
		}
	}
	r.opts.OnChange()
}

func (r *Registry) handleJoin(srv *Server, m *irc.Message) {
	name := m.Param(0)
	if name == "" {
		name = m.Trailing
	}
	if name == "" {
		return
	}

	if r.isSelf(srv, m.From) {
		ch := r.OpenChannel(srv, name)
		ch.Parted = false
		ch.Nicks.Clear()
		ch.Addf(KindJoinPartQuit, "Joined %s", name)
		r.SetCurrent(ch)
		return
	}

	ch, ok := srv.Channels.Get(name)
	if !ok {
		return
	}
	if err := ch.AddNick(m.From); err != nil {
		slog.Debug("join", "channel", name, "nick", m.From, "error", err)
	}
	r.joinPartQuit(ch, "%s!%s has joined", m.From, m.Hostinfo)
}

func (r *Registry) handlePart(srv *Server, m *irc.Message) {
	ch, ok := srv.Channels.Get(m.Param(0))
	if !ok {
		return
	}

	if r.isSelf(srv, m.From) {
		ch.Parted = true
		ch.Nicks.Clear()
		ch.Addf(KindJoinPartQuit, "You have left %s", ch.Name)
		r.changed(ch, ActivityJoinPartQuit)
		return
	}

	if err := ch.RemoveNick(m.From); err != nil {
		slog.Debug("part", "channel", ch.Name, "nick", m.From, "error", err)
	}
	r.joinPartQuit(ch, "%s has left (%s)", m.From, m.Trailing)
}

func (r *Registry) handleQuit(srv *Server, m *irc.Message) {
	srv.Channels.Walk(func(n *avl.Node[*Channel]) bool {
		ch := n.Value
		if ch.RemoveNick(m.From) == nil {
			r.joinPartQuit(ch, "%s has quit (%s)", m.From, m.Trailing)
		}
		return true
	})
}

func (r *Registry) handleNick(srv *Server, m *irc.Message) {
	to := m.Trailing
	if !m.HasTrailing {
		to = m.Param(0)
	}
	if to == "" {
		return
	}

	if r.isSelf(srv, m.From) {
		srv.Nick = to
		srv.Buffer.Addf(KindStatus, "You are now known as %s", to)
		r.changed(srv.Buffer, ActivityChat)
	}

	srv.Channels.Walk(func(n *avl.Node[*Channel]) bool {
		ch := n.Value
		if ch.RemoveNick(m.From) != nil {
			return true
		}
		if err := ch.AddNick(to); err != nil {
			slog.Debug("nick", "channel", ch.Name, "nick", to, "error", err)
		}
		ch.Addf(KindStatus, "%s is now known as %s", m.From, to)
		r.changed(ch, ActivityJoinPartQuit)
		return true
	})
}

// handleText routes PRIVMSG and NOTICE to a channel, a query, or the server
// buffer when the sender has no nick yet.
func (r *Registry) handleText(srv *Server, m *irc.Message) {
	target := m.Param(0)
	text := m.Trailing
	kind := KindChat
	if strings.EqualFold(m.Command, "NOTICE") {
		kind = KindNotice
	}

	var ch *Channel
	switch {
	case m.Hostinfo == "" || !srv.Registered:
		ch = srv.Buffer
	case irc.IsChannel(target):
		var ok bool
		if ch, ok = srv.Channels.Get(target); !ok {
			ch = srv.Buffer
		}
	default:
		ch = r.OpenChannel(srv, m.From)
	}

	from := m.From
	if action, ok := strings.CutPrefix(text, ctcpAction); ok {
		text = from + " " + strings.TrimSuffix(action, "\x01")
		from = "*"
	}

	activity := ActivityChat
	if irc.Mentions(text, srv.Nick) || ch.IsQuery() {
		kind = KindPinged
		activity = ActivityPinged
		r.opts.Bell()
	}
	ch.Add(kind, from, text)
	r.changed(ch, activity)
}

// handleOther prints any other reply to the server buffer, skipping the
// leading target nick numerics carry.
func (r *Registry) handleOther(srv *Server, m *irc.Message) {
	params := m.Middle
	if isNumeric(m.Command) && len(params) > 0 {
		params = params[1:]
	}
	text := strings.Join(params, " ")
	if m.HasTrailing {
		if text != "" {
			text += " "
		}
		text += m.Trailing
	}
	if !isNumeric(m.Command) {
		text = m.Command + " " + text
	}
	srv.Buffer.Add(KindStatus, m.From, text)
	r.changed(srv.Buffer, ActivityChat)
}

// joinPartQuit adds a membership line unless the channel is too busy for
// them to be useful.
func (r *Registry) joinPartQuit(ch *Channel, format string, args ...any) {
	if t := r.opts.JoinPartQuitThreshold; t > 0 && ch.Nicks.Len() > t {
		r.opts.OnChange()
		return
	}
	ch.Addf(KindJoinPartQuit, format, args...)
	r.changed(ch, ActivityJoinPartQuit)
}

func (r *Registry) isSelf(srv *Server, nick string) bool {
	return srv.Nick != "" && strings.EqualFold(nick, srv.Nick)
}

func (r *Registry) sendFailed(srv *Server, err error) {
	slog.Warn("send failed", "addr", srv.Conn.Addr(), "error", err)
	srv.Buffer.Addf(KindError, "%v", fmt.Errorf("send: %w", err))
	r.changed(srv.Buffer, ActivityChat)
}

func isNumeric(cmd string) bool {
	if len(cmd) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if cmd[i] < '0' || cmd[i] > '9' {
			return false
		}
	}
	return true
}
