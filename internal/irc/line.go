package irc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLine is returned when an outgoing line cannot be encoded.
var ErrInvalidLine = errors.New("irc: invalid line")

// NewLine encodes command and params as a CRLF terminated line. The last
// parameter is sent as the trailing parameter when it is empty, contains a
// space, or starts with ':'.
func NewLine(command string, params ...string) (string, error) {
	if command == "" || strings.ContainsAny(command, " \r\n\x00") {
		return "", fmt.Errorf("%w: bad command %q", ErrInvalidLine, command)
	}

	var b strings.Builder
	b.WriteString(command)
	for i, p := range params {
		if strings.ContainsAny(p, "\r\n\x00") {
			return "", fmt.Errorf("%w: line break in parameter", ErrInvalidLine)
		}
		b.WriteByte(' ')
		if i == len(params)-1 && (p == "" || strings.ContainsRune(p, ' ') || p[0] == ':') {
			b.WriteByte(':')
		} else if p == "" || strings.ContainsRune(p, ' ') || p[0] == ':' {
			return "", fmt.Errorf("%w: middle parameter %q", ErrInvalidLine, p)
		}
		b.WriteString(p)
	}
	b.WriteString("\r\n")
	return b.String(), nil
}

// Nick builds a NICK line.
func Nick(nick string) (string, error) {
	return NewLine("NICK", nick)
}

// User builds the USER registration line.
func User(username, realname string) (string, error) {
	return NewLine("USER", username, "8", "*", realname)
}

// Join builds a JOIN line for one or more comma separated channels.
func Join(channels string) (string, error) {
	return NewLine("JOIN", channels)
}

// Part builds a PART line with an optional message.
func Part(channel, message string) (string, error) {
	if message == "" {
		return NewLine("PART", channel)
	}
	return NewLine("PART", channel, message)
}

// Privmsg builds a PRIVMSG line.
func Privmsg(target, text string) (string, error) {
	return NewLine("PRIVMSG", target, text)
}

// Pong answers a PING carrying token.
func Pong(token string) (string, error) {
	return NewLine("PONG", token)
}

// Quit builds a QUIT line.
func Quit(message string) (string, error) {
	return NewLine("QUIT", message)
}

// IsChannel reports whether name is a channel rather than a nick.
func IsChannel(name string) bool {
	return name != "" && strings.ContainsRune("#&+!", rune(name[0]))
}
