// Package client wires the event loop, the session registry, the input line
// and the screen into the running application.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tessro/rirc/internal/config"
	"github.com/tessro/rirc/internal/conn"
	"github.com/tessro/rirc/internal/loop"
	"github.com/tessro/rirc/internal/session"
	"github.com/tessro/rirc/internal/ui"
	"github.com/tessro/rirc/internal/version"
)

// FatalError is an error that ends the client. The terminal is restored
// but the screen is left as it was so the last state stays visible.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Deps are the collaborators an App runs on.
type Deps struct {
	Poller   loop.Poller
	Keyboard loop.Source
	Out      io.Writer
	Size     ui.SizeFunc
	// Dialer defaults to a conn.Dialer with the default timeout.
	Dialer *conn.Dialer
}

// App is a running client. Everything but Post-ed work runs on the loop
// goroutine inside Run.
type App struct {
	cfg    *config.Config
	sched  *loop.Scheduler
	reg    *session.Registry
	input  *ui.Input
	screen *ui.Screen
	dialer *conn.Dialer

	ctx context.Context
}

// New builds the application without starting it.
func New(cfg *config.Config, d Deps) *App {
	a := &App{
		cfg:    cfg,
		dialer: d.Dialer,
		ctx:    context.Background(),
	}
	if a.dialer == nil {
		a.dialer = &conn.Dialer{}
	}

	a.sched = loop.New(d.Poller, d.Keyboard, nil, nil)
	a.reg = session.New(session.Options{
		Username:              cfg.Username,
		Realname:              cfg.Realname,
		JoinPartQuitThreshold: cfg.JoinPartQuitThreshold,
		Scrollback:            cfg.Scrollback,
		OnChange:              a.sched.MarkDirty,
		Bell:                  func() { a.screen.Bell() },
	})
	a.input = ui.NewInput(a.reg, a)
	a.input.OnChange = a.sched.MarkDirty
	a.screen = ui.NewScreen(a.reg, a.input, d.Out, d.Size)

	a.sched.SetInput(a.input)
	a.sched.SetRenderer(a.screen)
	return a
}

// Registry returns the session registry. Only safe to use from the loop
// goroutine or after Run returned.
func (a *App) Registry() *session.Registry {
	return a.reg
}

// Screen returns the renderer.
func (a *App) Screen() *ui.Screen {
	return a.screen
}

// Post runs fn on the loop goroutine.
func (a *App) Post(fn func()) {
	a.sched.Post(fn)
}

// Resize re-reads the terminal size and schedules a redraw. Safe to call
// from any goroutine.
func (a *App) Resize() {
	a.sched.Post(func() {
		a.screen.Resize()
		a.sched.MarkDirty()
	})
}

// Run connects to the configured servers and runs the event loop until
// the user quits or ctx is done. Every connection is closed on return.
func (a *App) Run(ctx context.Context) error {
	a.ctx = ctx
	a.splash()

	for _, sc := range a.cfg.Servers {
		if err := a.connect(sc.Host, sc.Port, a.cfg.NicksFor(sc), sc.Join); err != nil {
			a.reg.Statusf(session.KindError, "connect %s: %v", sc.Host, err)
		}
	}

	err := a.sched.Run(ctx)
	for _, c := range a.sched.Conns() {
		a.Disconnect(c)
	}
	if err != nil {
		if errors.Is(err, loop.ErrInputClosed) {
			return &FatalError{Op: "read keyboard", Err: err}
		}
		return &FatalError{Op: "event loop", Err: err}
	}
	return nil
}

func (a *App) splash() {
	a.reg.Statusf(session.KindStatus, "%s", version.String())
	a.reg.Statusf(session.KindStatus, "Type /connect host [port] to connect, ^N/^P to switch channels, ^C to quit")
}

// Connect opens a connection to host:port with the configured nicks.
func (a *App) Connect(host string, port int) error {
	return a.connect(host, port, a.cfg.Nicks, nil)
}

func (a *App) connect(host string, port int, nicks string, join []string) error {
	if err := config.ValidateHost(host); err != nil {
		return err
	}
	if err := config.ValidatePort(port); err != nil {
		return err
	}

	c := conn.New(host, port, a.reg)
	if err := a.sched.Add(c); err != nil {
		return err
	}
	srv := a.reg.AddServer(c, nicks, join)

	slog.Info("connecting", "host", host, "port", port)
	if err := a.dialer.Connect(a.ctx, c, a.sched.Post); err != nil {
		a.sched.Remove(c)
		a.reg.RemoveServer(srv)
		return err
	}
	return nil
}

// Disconnect closes c and stops polling it.
func (a *App) Disconnect(c *conn.Conn) {
	if !c.State().Terminal() {
		if err := c.Close(); err != nil {
			slog.Debug("close connection", "addr", c.Addr(), "error", err)
		}
	}
	a.sched.Remove(c)
}

// Stop ends the event loop after the current iteration.
func (a *App) Stop() {
	a.sched.Stop()
}
