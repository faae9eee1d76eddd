package session

import (
	"fmt"
	"strings"

	"github.com/tessro/rirc/internal/irc"
)

// Say sends text to the channel or query ch and echoes it locally.
func (r *Registry) Say(ch *Channel, text string) error {
	if ch.Server == nil || ch == ch.Server.Buffer {
		return ErrNotChannel
	}
	if err := ch.Server.Send("PRIVMSG", ch.Name, text); err != nil {
		return err
	}
	ch.Add(KindSelf, ch.Server.Nick, text)
	r.opts.OnChange()
	return nil
}

// Action sends text as a CTCP ACTION (/me).
func (r *Registry) Action(ch *Channel, text string) error {
	if ch.Server == nil || ch == ch.Server.Buffer {
		return ErrNotChannel
	}
	if err := ch.Server.Send("PRIVMSG", ch.Name, ctcpAction+text+"\x01"); err != nil {
		return err
	}
	ch.Add(KindSelf, "*", ch.Server.Nick+" "+text)
	r.opts.OnChange()
	return nil
}

// Msg sends text to target on srv, opening a query for nick targets.
func (r *Registry) Msg(srv *Server, target, text string) error {
	if err := srv.Send("PRIVMSG", target, text); err != nil {
		return err
	}
	ch, ok := srv.Channels.Get(target)
	if !ok && !irc.IsChannel(target) {
		ch = r.OpenChannel(srv, target)
		ok = true
	}
	if ok {
		ch.Add(KindSelf, srv.Nick, text)
	} else {
		srv.Buffer.Addf(KindSelf, "-> %s: %s", target, text)
	}
	r.opts.OnChange()
	return nil
}

// Join asks srv to join one or more comma separated channels.
func (r *Registry) Join(srv *Server, channels string) error {
	return srv.Send("JOIN", channels)
}

// Part leaves ch. The channel is marked parted when the server confirms.
func (r *Registry) Part(ch *Channel, message string) error {
	if ch.Server == nil || ch == ch.Server.Buffer {
		return ErrNotChannel
	}
	if message == "" {
		return ch.Server.Send("PART", ch.Name)
	}
	return ch.Server.Send("PART", ch.Name, message)
}

// Nick requests a nick change on srv.
func (r *Registry) Nick(srv *Server, nick string) error {
	return srv.Send("NICK", nick)
}

// Quit sends QUIT to every connected server.
func (r *Registry) Quit(message string) {
	for _, srv := range r.servers {
		if !srv.Online {
			continue
		}
		if err := srv.Send("QUIT", message); err != nil {
			r.sendFailed(srv, err)
		}
	}
}

// Raw sends a line to srv verbatim.
func (r *Registry) Raw(srv *Server, line string) error {
	if !srv.Online {
		return ErrServerOffline
	}
	if line == "" || strings.ContainsAny(line, "\r\n") {
		return fmt.Errorf("%w: %q", irc.ErrInvalidLine, line)
	}
	srv.Buffer.Addf(KindSelf, "-> %s", line)
	r.opts.OnChange()
	return srv.Conn.Send(line + "\r\n")
}
