// Package cli implements the rirc command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tessro/rirc/internal/client"
	"github.com/tessro/rirc/internal/config"
	"github.com/tessro/rirc/internal/logging"
	"github.com/tessro/rirc/internal/version"
)

// ErrMissingArgument is returned when an option's value looks like another
// option.
var ErrMissingArgument = errors.New("option requires an argument")

// ErrNeedsConnect is returned for --port or --join without --connect.
var ErrNeedsConnect = errors.New("--port and --join require --connect")

// options holds the root command flags.
type options struct {
	configPath string
	connect    string
	port       string
	join       string
	nicks      string
	logLevel   string
	logFile    string
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "rirc",
	Short: "A minimal IRC client",
	Long: "rirc is a terminal IRC client. It connects to the servers listed in its config,\n" +
		"or to the one given with --connect, and multiplexes them in one screen.",
	Version:       version.String(),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&opts.connect, "connect", "c", "", "connect to `host` on startup")
	f.StringVarP(&opts.port, "port", "p", "", "port for --connect (default 6667)")
	f.StringVarP(&opts.join, "join", "j", "", "comma separated `channels` to join after --connect")
	f.StringVarP(&opts.nicks, "nick", "n", "", "comma or space separated `nicks` to try")
	f.StringVar(&opts.nicks, "nicks", "", "alias for --nick")
	_ = f.MarkHidden("nicks")
	f.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/rirc/config.toml)")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&opts.logFile, "log-file", "", "log file (default ~/.rirc/rirc.log)")

	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.Flags().BoolP("version", "v", false, "print version information and exit")
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(opts)
	if err != nil {
		return err
	}

	logPath := cfg.LogFile
	if logPath == "" {
		logPath = logging.DefaultLogPath()
	}
	cleanup, err := logging.Setup(logPath, logging.ParseLevel(cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	return client.Run(ctx, cfg)
}

// buildConfig loads the config file and applies the command line on top.
// --connect replaces the configured servers.
func buildConfig(o options) (*config.Config, error) {
	for _, f := range []struct{ name, value string }{
		{"connect", o.connect},
		{"port", o.port},
		{"join", o.join},
		{"nick", o.nicks},
		{"config", o.configPath},
		{"log-level", o.logLevel},
		{"log-file", o.logFile},
	} {
		if strings.HasPrefix(f.value, "-") {
			return nil, fmt.Errorf("%w: --%s", ErrMissingArgument, f.name)
		}
	}

	var cfg *config.Config
	var err error
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if o.nicks != "" {
		if err := config.ValidateNicks(o.nicks); err != nil {
			return nil, err
		}
		cfg.Nicks = o.nicks
	}
	if o.logLevel != "" {
		if err := config.ValidateLogLevel(o.logLevel); err != nil {
			return nil, err
		}
		cfg.LogLevel = o.logLevel
	}
	if o.logFile != "" {
		cfg.LogFile = o.logFile
	}

	if o.connect == "" {
		if o.port != "" || o.join != "" {
			return nil, ErrNeedsConnect
		}
		return cfg, nil
	}

	srv := config.ServerConfig{Host: o.connect, Port: config.DefaultPort}
	if o.port != "" {
		if srv.Port, err = config.ParsePort(o.port); err != nil {
			return nil, err
		}
	}
	if o.join != "" {
		srv.Join = strings.Split(o.join, ",")
	}
	if err := srv.Validate(); err != nil {
		return nil, err
	}
	cfg.Servers = []config.ServerConfig{srv}
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// Main runs the command line and reports errors on stderr. It returns the
// process exit code.
func Main() int {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rirc: %v\n", err)
		var fatal *client.FatalError
		if !errors.As(err, &fatal) {
			fmt.Fprintln(os.Stderr, "Try 'rirc --help' for more information.")
		}
		return 1
	}
	return 0
}
