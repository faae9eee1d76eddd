package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tessro/rirc/internal/config"
	"github.com/tessro/rirc/internal/version"
)

func TestBuildConfig(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "config.toml")

	tests := []struct {
		name    string
		opts    options
		wantErr error
		check   func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "defaults",
			opts: options{},
			check: func(t *testing.T, cfg *config.Config) {
				if len(cfg.Servers) != 0 {
					t.Errorf("expected no servers, got %v", cfg.Servers)
				}
			},
		},
		{
			name: "connect with default port",
			opts: options{connect: "irc.libera.chat"},
			check: func(t *testing.T, cfg *config.Config) {
				if len(cfg.Servers) != 1 || cfg.Servers[0].Port != config.DefaultPort {
					t.Errorf("expected one server on %d, got %+v", config.DefaultPort, cfg.Servers)
				}
			},
		},
		{
			name: "connect with port and join",
			opts: options{connect: "irc.libera.chat", port: "6697", join: "#go-nuts,#rirc"},
			check: func(t *testing.T, cfg *config.Config) {
				srv := cfg.Servers[0]
				if srv.Port != 6697 {
					t.Errorf("expected port 6697, got %d", srv.Port)
				}
				if len(srv.Join) != 2 || srv.Join[1] != "#rirc" {
					t.Errorf("unexpected join list %v", srv.Join)
				}
			},
		},
		{
			name: "nicks and log level",
			opts: options{nicks: "alice, alice_", logLevel: "debug"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Nicks != "alice, alice_" {
					t.Errorf("expected nicks override, got %q", cfg.Nicks)
				}
				if cfg.LogLevel != "debug" {
					t.Errorf("expected log level override, got %q", cfg.LogLevel)
				}
			},
		},
		{name: "option as value", opts: options{connect: "-p"}, wantErr: ErrMissingArgument},
		{name: "dash nick", opts: options{nicks: "-n"}, wantErr: ErrMissingArgument},
		{name: "port without connect", opts: options{port: "6667"}, wantErr: ErrNeedsConnect},
		{name: "join without connect", opts: options{join: "#go"}, wantErr: ErrNeedsConnect},
		{name: "port not numeric", opts: options{connect: "h", port: "66x"}, wantErr: config.ErrInvalidPort},
		{name: "port too large", opts: options{connect: "h", port: "65535"}, wantErr: config.ErrInvalidPort},
		{name: "bad channel", opts: options{connect: "h", join: "go"}, wantErr: config.ErrInvalidChannel},
		{name: "bad nick", opts: options{nicks: "9lives"}, wantErr: config.ErrInvalidNick},
		{name: "bad log level", opts: options{logLevel: "loud"}, wantErr: config.ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.configPath = missing
			cfg, err := buildConfig(tt.opts)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildConfig failed: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestBuildConfig_ConnectReplacesServers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "[[servers]]\nhost = \"irc.oftc.net\"\n")

	cfg, err := buildConfig(options{configPath: path})
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}
	if len(cfg.Servers) != 1 || cfg.Servers[0].Host != "irc.oftc.net" {
		t.Fatalf("expected the configured server, got %+v", cfg.Servers)
	}

	cfg, err = buildConfig(options{configPath: path, connect: "irc.libera.chat"})
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}
	if len(cfg.Servers) != 1 || cfg.Servers[0].Host != "irc.libera.chat" {
		t.Errorf("expected --connect to replace the configured servers, got %+v", cfg.Servers)
	}
}

func TestRootFlags_Nick(t *testing.T) {
	defer func() { opts = options{} }()

	for _, args := range [][]string{
		{"--nick=alice,alice_"},
		{"-n", "alice,alice_"},
		{"--nicks", "alice,alice_"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			opts = options{}
			if err := rootCmd.ParseFlags(args); err != nil {
				t.Fatalf("ParseFlags(%v) failed: %v", args, err)
			}
			if opts.nicks != "alice,alice_" {
				t.Fatalf("expected nicks %q, got %q", "alice,alice_", opts.nicks)
			}

			o := opts
			o.configPath = filepath.Join(t.TempDir(), "config.toml")
			cfg, err := buildConfig(o)
			if err != nil {
				t.Fatalf("buildConfig failed: %v", err)
			}
			if cfg.Nicks != "alice,alice_" {
				t.Errorf("expected config nicks %q, got %q", "alice,alice_", cfg.Nicks)
			}
		})
	}
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	if got := strings.TrimSpace(out.String()); got != version.String() {
		t.Errorf("expected %q, got %q", version.String(), got)
	}
}
