package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tessro/rirc/internal/config"
	"github.com/tessro/rirc/internal/session"
	"github.com/tessro/rirc/internal/version"
)

// ErrUnknownCommand is returned for a slash command that does not exist.
var ErrUnknownCommand = errors.New("unknown command")

// UsageError reports a command invoked with the wrong arguments.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string {
	return "usage: " + e.Usage
}

type command struct {
	usage string
	run   func(i *Input, args string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"connect": {"/connect host [port]", (*Input).cmdConnect},
		"close":   {"/close", (*Input).cmdClose},
		"join":    {"/join #channel[,#channel]", (*Input).cmdJoin},
		"part":    {"/part [message]", (*Input).cmdPart},
		"nick":    {"/nick nick", (*Input).cmdNick},
		"msg":     {"/msg target text", (*Input).cmdMsg},
		"me":      {"/me text", (*Input).cmdMe},
		"raw":     {"/raw line", (*Input).cmdRaw},
		"quit":    {"/quit [message]", (*Input).cmdQuit},
	}
}

// command runs a slash command line without its leading '/'.
func (i *Input) command(line string) error {
	name, args, _ := strings.Cut(line, " ")
	cmd, ok := commands[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return cmd.run(i, strings.TrimSpace(args))
}

func usage(name string) error {
	return &UsageError{Usage: commands[name].usage}
}

// server returns the server owning the selected buffer.
func (i *Input) server() (*session.Server, error) {
	srv := i.reg.Current().Server
	if srv == nil {
		return nil, session.ErrNoServer
	}
	return srv, nil
}

func (i *Input) cmdConnect(args string) error {
	fields := strings.Fields(args)
	if len(fields) < 1 || len(fields) > 2 {
		return usage("connect")
	}
	port := config.DefaultPort
	if len(fields) == 2 {
		p, err := config.ParsePort(fields[1])
		if err != nil {
			return err
		}
		port = p
	}
	return i.actions.Connect(fields[0], port)
}

// cmdClose closes the selected channel or query, or the whole server when
// its buffer is selected.
func (i *Input) cmdClose(args string) error {
	ch := i.reg.Current()
	srv := ch.Server
	if srv == nil {
		return session.ErrNoServer
	}
	if ch != srv.Buffer {
		if !ch.Parted && !ch.IsQuery() && srv.Online {
			if err := i.reg.Part(ch, ""); err != nil {
				return err
			}
		}
		return i.reg.CloseChannel(ch)
	}

	if srv.Online {
		if err := srv.Send("QUIT", defaultQuitMessage()); err != nil {
			return err
		}
	}
	i.actions.Disconnect(srv.Conn)
	i.reg.RemoveServer(srv)
	return nil
}

func (i *Input) cmdJoin(args string) error {
	if args == "" || strings.ContainsRune(args, ' ') {
		return usage("join")
	}
	srv, err := i.server()
	if err != nil {
		return err
	}
	return i.reg.Join(srv, args)
}

func (i *Input) cmdPart(args string) error {
	return i.reg.Part(i.reg.Current(), args)
}

func (i *Input) cmdNick(args string) error {
	if args == "" || strings.ContainsRune(args, ' ') {
		return usage("nick")
	}
	srv, err := i.server()
	if err != nil {
		return err
	}
	return i.reg.Nick(srv, args)
}

func (i *Input) cmdMsg(args string) error {
	target, text, _ := strings.Cut(args, " ")
	if target == "" || text == "" {
		return usage("msg")
	}
	srv, err := i.server()
	if err != nil {
		return err
	}
	return i.reg.Msg(srv, target, text)
}

func (i *Input) cmdMe(args string) error {
	if args == "" {
		return usage("me")
	}
	return i.reg.Action(i.reg.Current(), args)
}

func (i *Input) cmdRaw(args string) error {
	if args == "" {
		return usage("raw")
	}
	srv, err := i.server()
	if err != nil {
		return err
	}
	return i.reg.Raw(srv, args)
}

func (i *Input) cmdQuit(args string) error {
	if args == "" {
		args = defaultQuitMessage()
	}
	i.reg.Quit(args)
	i.actions.Stop()
	return nil
}

func defaultQuitMessage() string {
	return version.Short()
}
