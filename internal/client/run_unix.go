//go:build unix

package client

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/tessro/rirc/internal/config"
	"github.com/tessro/rirc/internal/logging"
	"github.com/tessro/rirc/internal/loop"
	"github.com/tessro/rirc/internal/terminal"
)

// Run takes over the terminal and runs the client until the user quits.
// The screen is cleared only on a clean exit.
func Run(ctx context.Context, cfg *config.Config) (err error) {
	term, err := terminal.Open(os.Stdin, os.Stdout)
	if err != nil {
		return &FatalError{Op: "open terminal", Err: err}
	}

	poller, err := loop.NewUnixPoller()
	if err != nil {
		term.Restore()
		return &FatalError{Op: "create poller", Err: err}
	}
	defer poller.Close()

	app := New(cfg, Deps{
		Poller:   poller,
		Keyboard: term.Keyboard(),
		Out:      term.Out(),
		Size:     term.Size,
	})

	defer func() {
		if err == nil {
			app.Screen().Clear()
		}
		if rerr := term.Restore(); rerr != nil {
			slog.Error("restore terminal", "error", rerr)
			if err == nil {
				err = &FatalError{Op: "restore terminal", Err: rerr}
			}
		}
	}()

	defer logging.LogPanic("event loop", func(r any) {
		err = &FatalError{Op: "event loop", Err: fmt.Errorf("panic: %v", r)}
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	terminal.NotifyResize(ctx, app.Resize)

	return app.Run(ctx)
}
