// Package irc implements the client side of the IRC line protocol:
// message parsing, outgoing line construction, and nick helpers.
package irc

import (
	"errors"
	"strings"
)

// MaxMiddleParams is the number of middle parameters a message may carry
// before the rest of the line is treated as the trailing parameter.
const MaxMiddleParams = 14

// ErrEmptyCommand is returned by Parse when a line carries no command token.
var ErrEmptyCommand = errors.New("irc: empty command")

// Message is one decoded protocol line.
//
// Every string field is a substring of the line passed to Parse; nothing is
// copied. Params is the raw span of the middle parameters as it appeared on
// the wire, including the separating spaces, while Middle holds the
// individual tokens.
type Message struct {
	From     string
	Hostinfo string
	Command  string
	Params   string
	Middle   []string
	Trailing string
	// HasTrailing distinguishes an empty trailing parameter ("CMD :") from
	// an absent one.
	HasTrailing bool
}

// Param returns the i-th middle parameter, or "" if there is none.
func (m *Message) Param(i int) string {
	if i < 0 || i >= len(m.Middle) {
		return ""
	}
	return m.Middle[i]
}

// Parse decodes a single line (without its line terminator).
//
//	message = [ ":" prefix SPACE ] command [ params ]
//	params  = *14( SPACE middle ) [ SPACE ":" trailing ]
//	        =/ 14( SPACE middle ) [ SPACE [ ":" ] trailing ]
//
// When the line has no command, ErrEmptyCommand is returned together with
// whatever prefix fields were already decoded.
func Parse(line string) (Message, error) {
	var m Message
	i := 0

	if strings.HasPrefix(line, ":") {
		end := strings.IndexByte(line, ' ')
		if end < 0 {
			end = len(line)
		}
		m.From, m.Hostinfo = splitPrefix(line[1:end])
		i = end
	}

	start, end := nextToken(line, i)
	if start == end {
		return m, ErrEmptyCommand
	}
	m.Command = line[start:end]
	i = end

	paramsStart, paramsEnd := -1, len(line)
	for {
		start, end = nextToken(line, i)
		if start == end {
			break
		}
		if len(m.Middle) == MaxMiddleParams {
			m.Trailing, m.HasTrailing = line[start:], true
			paramsEnd = start
			break
		}
		if line[start] == ':' {
			m.Trailing, m.HasTrailing = line[start+1:], true
			paramsEnd = start
			break
		}
		if paramsStart < 0 {
			paramsStart = start
		}
		m.Middle = append(m.Middle, line[start:end])
		i = end
	}
	if paramsStart >= 0 {
		m.Params = line[paramsStart:paramsEnd]
	}

	return m, nil
}

// splitPrefix splits "nick!user@host" into nick and "user@host". The nick
// ends at the first '!' or '@'. The host info starts after the last '!', or
// after that first separator when no later '!' exists.
func splitPrefix(prefix string) (from, hostinfo string) {
	i := strings.IndexAny(prefix, "!@")
	if i < 0 {
		return prefix, ""
	}
	if j := strings.LastIndexByte(prefix, '!'); j > i {
		return prefix[:i], prefix[j+1:]
	}
	return prefix[:i], prefix[i+1:]
}

// nextToken returns the bounds of the next space-delimited token at or after
// i. Runs of spaces count as one delimiter. start == end means no token.
func nextToken(s string, i int) (start, end int) {
	for i < len(s) && s[i] == ' ' {
		i++
	}
	start = i
	for i < len(s) && s[i] != ' ' {
		i++
	}
	return start, i
}
