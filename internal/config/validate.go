package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Validation errors.
var (
	ErrInvalidPort      = errors.New("port must be a number between 0 and 65534")
	ErrEmptyHost        = errors.New("host cannot be empty")
	ErrInvalidThreshold = errors.New("join_part_quit_threshold cannot be negative")
	ErrInvalidNick      = errors.New("nick contains invalid characters")
	ErrInvalidChannel   = errors.New("channel name is invalid")
	ErrInvalidLogLevel  = errors.New("unknown log level")
)

// MaxPort is the largest accepted port.
const MaxPort = 65534

// ValidationError wraps a validation error with context.
type ValidationError struct {
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: %s (got %q)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ParsePort parses a port given on the command line or to /connect. Only
// digits are accepted.
func ParsePort(s string) (int, error) {
	invalid := &ValidationError{
		Field:   "port",
		Value:   s,
		Message: fmt.Sprintf("must be a number between 0 and %d", MaxPort),
		Err:     ErrInvalidPort,
	}
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, invalid
	}
	port, err := strconv.Atoi(s)
	if err != nil || port > MaxPort {
		return 0, invalid
	}
	return port, nil
}

// ValidatePort validates a numeric port.
func ValidatePort(port int) error {
	if port < 0 || port > MaxPort {
		return &ValidationError{
			Field:   "port",
			Value:   strconv.Itoa(port),
			Message: fmt.Sprintf("must be between 0 and %d", MaxPort),
			Err:     ErrInvalidPort,
		}
	}
	return nil
}

// ValidateHost validates a server host name.
func ValidateHost(host string) error {
	if strings.TrimSpace(host) == "" {
		return &ValidationError{
			Field:   "host",
			Message: "cannot be empty",
			Err:     ErrEmptyHost,
		}
	}
	return nil
}

// ValidateNicks validates a comma or space separated nick list. Nicks may
// not start with a digit, '-' or ':' and may not contain '!', '@' or '#'.
func ValidateNicks(nicks string) error {
	for _, nick := range strings.FieldsFunc(nicks, func(r rune) bool { return r == ' ' || r == ',' }) {
		if strings.ContainsAny(nick[:1], "0123456789-:") || strings.ContainsAny(nick, "!@#") {
			return &ValidationError{
				Field:   "nicks",
				Value:   nick,
				Message: "contains invalid characters",
				Err:     ErrInvalidNick,
			}
		}
	}
	return nil
}

// ValidateChannel validates a channel name given to --join or in config.
func ValidateChannel(name string) error {
	if name == "" || !strings.ContainsAny(name[:1], "#&+!") || strings.ContainsAny(name, " ,\x07") {
		return &ValidationError{
			Field:   "join",
			Value:   name,
			Message: "must start with '#', '&', '+' or '!' and contain no spaces or commas",
			Err:     ErrInvalidChannel,
		}
	}
	return nil
}

// ValidateLogLevel validates a log level name.
func ValidateLogLevel(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	}
	return &ValidationError{
		Field:   "log_level",
		Value:   level,
		Message: "must be debug, info, warn or error",
		Err:     ErrInvalidLogLevel,
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if c.JoinPartQuitThreshold < 0 {
		return &ValidationError{
			Field:   "join_part_quit_threshold",
			Value:   strconv.Itoa(c.JoinPartQuitThreshold),
			Message: "cannot be negative",
			Err:     ErrInvalidThreshold,
		}
	}

	if err := ValidateNicks(c.Nicks); err != nil {
		return err
	}

	if err := ValidateLogLevel(c.LogLevel); err != nil {
		return err
	}

	for i, srv := range c.Servers {
		if err := srv.Validate(); err != nil {
			return fmt.Errorf("servers[%d]: %w", i, err)
		}
	}

	return nil
}

// Validate checks one server entry.
func (s ServerConfig) Validate() error {
	if err := ValidateHost(s.Host); err != nil {
		return err
	}

	if err := ValidatePort(s.Port); err != nil {
		return err
	}

	if err := ValidateNicks(s.Nicks); err != nil {
		return err
	}

	for _, ch := range s.Join {
		if err := ValidateChannel(ch); err != nil {
			return err
		}
	}

	return nil
}
