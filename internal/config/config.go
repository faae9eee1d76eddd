// Package config provides configuration loading and validation for rirc.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/tessro/rirc/internal/paths"
	"github.com/tessro/rirc/internal/version"
)

// DefaultPort is the IRC port used when none is given.
const DefaultPort = 6667

// DefaultJoinPartQuitThreshold hides join/part/quit lines in channels with
// more nicks than this.
const DefaultJoinPartQuitThreshold = 100

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "info"

// Config is the rirc configuration.
type Config struct {
	// Username is sent in the USER registration line.
	Username string `toml:"username" yaml:"username"`
	// Realname is sent as the USER trailing parameter.
	Realname string `toml:"realname" yaml:"realname"`
	// Nicks is a comma or space separated list of nicks to try in order.
	Nicks string `toml:"nicks" yaml:"nicks"`

	// JoinPartQuitThreshold hides membership lines in busy channels. 0
	// disables the filter.
	JoinPartQuitThreshold int `toml:"join_part_quit_threshold" yaml:"join_part_quit_threshold"`

	// Scrollback is the number of lines kept per channel.
	Scrollback int `toml:"scrollback" yaml:"scrollback"`

	LogLevel string `toml:"log_level" yaml:"log_level"`
	LogFile  string `toml:"log_file" yaml:"log_file"`

	// Servers are connected to at startup.
	Servers []ServerConfig `toml:"servers" yaml:"servers"`
}

// ServerConfig is one server to connect to at startup.
type ServerConfig struct {
	Host string `toml:"host" yaml:"host"`
	Port int    `toml:"port" yaml:"port"`
	// Join lists channels joined once registered.
	Join []string `toml:"join" yaml:"join"`
	// Nicks overrides the global nick list for this server.
	Nicks string `toml:"nicks" yaml:"nicks"`
}

// Path returns the path to the rirc config.
func Path() (string, error) {
	return paths.ConfigPath()
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{JoinPartQuitThreshold: DefaultJoinPartQuitThreshold}
	cfg.applyDefaults()
	return cfg
}

// Load loads the config from the default path, falling back to defaults
// when the file doesn't exist.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads the config from a specific path. Files ending in .yaml
// or .yml are parsed as YAML, everything else as TOML. A missing file
// yields the defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{JoinPartQuitThreshold: DefaultJoinPartQuitThreshold}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Default(), nil
			}
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Username == "" {
		c.Username = "rirc_v" + version.Version
	}
	if c.Realname == "" {
		c.Realname = version.Short()
	}
	if c.Nicks == "" {
		c.Nicks = defaultNick()
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	for i := range c.Servers {
		if c.Servers[i].Port == 0 {
			c.Servers[i].Port = DefaultPort
		}
	}
}

// NicksFor returns the nick list to use for srv.
func (c *Config) NicksFor(srv ServerConfig) string {
	if srv.Nicks != "" {
		return srv.Nicks
	}
	return c.Nicks
}

// defaultNick is the login name. An empty result makes the nick generator
// fall back to a random nick.
func defaultNick() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}
