package session

import (
	"fmt"
	"time"

	"github.com/tessro/rirc/internal/avl"
	"github.com/tessro/rirc/internal/irc"
)

// Activity is how much happened in a channel since it was last viewed.
type Activity int

const (
	ActivityNone Activity = iota
	ActivityJoinPartQuit
	ActivityChat
	ActivityPinged
)

// Channel is one conversation: the status buffer, a server buffer, a
// channel, or a private query.
type Channel struct {
	Name   string
	Server *Server // nil for the status buffer

	// Nicks is the set of nicks present in the channel.
	Nicks avl.Tree[struct{}]

	Lines    *Scrollback
	Activity Activity
	// Parted is set once we leave the channel or lose the connection.
	Parted bool

	now func() time.Time
}

func newChannel(name string, srv *Server, scrollback int) *Channel {
	return &Channel{
		Name:   name,
		Server: srv,
		Lines:  NewScrollback(scrollback),
		now:    time.Now,
	}
}

// AddNick records nick as present. Returns avl.ErrDuplicateKey when it
// already is.
func (c *Channel) AddNick(nick string) error {
	return c.Nicks.Insert(nick, struct{}{})
}

// RemoveNick records nick as gone. Returns avl.ErrKeyNotFound when it was
// not present.
func (c *Channel) RemoveNick(nick string) error {
	return c.Nicks.Remove(nick)
}

// HasNick reports whether nick is present.
func (c *Channel) HasNick(nick string) bool {
	_, ok := c.Nicks.Get(nick)
	return ok
}

// Complete returns a nick present in the channel that starts with prefix.
func (c *Channel) Complete(prefix string) (string, error) {
	n, err := c.Nicks.FindPrefix(prefix)
	if err != nil {
		return "", err
	}
	return n.Key, nil
}

// Add appends a line to the scrollback.
func (c *Channel) Add(kind Kind, from, text string) {
	c.Lines.Append(Line{Time: c.now(), From: from, Text: text, Kind: kind})
}

// Addf appends a formatted status line.
func (c *Channel) Addf(kind Kind, format string, args ...any) {
	c.Add(kind, "--", fmt.Sprintf(format, args...))
}

// raise bumps the activity level; it never lowers it.
func (c *Channel) raise(a Activity) {
	if a > c.Activity {
		c.Activity = a
	}
}

// IsQuery reports whether the channel is a private conversation.
func (c *Channel) IsQuery() bool {
	return c.Server != nil && c != c.Server.Buffer && !irc.IsChannel(c.Name)
}
