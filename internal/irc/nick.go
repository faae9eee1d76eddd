package irc

import (
	"strings"

	"github.com/tessro/rirc/internal/id"
)

// MaxNickLength is the longest nick the client will send.
const MaxNickLength = 15

// autoNickPrefix starts every generated fallback nick.
const autoNickPrefix = "rirc_"

// NickGenerator hands out nicks from a comma or space separated candidate
// list, then falls back to random nicks once the list is exhausted.
type NickGenerator struct {
	rest string

	// Suffix returns n random characters for fallback nicks. Nil means
	// random upper case hex.
	Suffix func(n int) string
}

// NewNickGenerator creates a generator over candidates, e.g. "nick, nick_".
func NewNickGenerator(candidates string) *NickGenerator {
	return &NickGenerator{rest: candidates}
}

// Next returns the next candidate truncated to MaxNickLength, or a random
// "rirc_XXXX" nick when no candidates remain.
func (g *NickGenerator) Next() string {
	rest := strings.TrimLeft(g.rest, " ,")
	if rest == "" {
		g.rest = ""
		suffix := g.Suffix
		if suffix == nil {
			suffix = id.Hex
		}
		return autoNickPrefix + suffix(4)
	}

	end := strings.IndexAny(rest, " ,")
	if end < 0 {
		end = len(rest)
	}
	nick := rest[:end]
	g.rest = rest[end:]

	if len(nick) > MaxNickLength {
		nick = nick[:MaxNickLength]
	}
	return nick
}

// Exhausted reports whether every candidate has been handed out.
func (g *NickGenerator) Exhausted() bool {
	return strings.TrimLeft(g.rest, " ,") == ""
}

// Mentions reports whether text addresses nick: some word starts with nick
// (ignoring case) and the character after it is not alphanumeric.
func Mentions(text, nick string) bool {
	if nick == "" {
		return false
	}
	for _, word := range strings.Split(text, " ") {
		if len(word) < len(nick) || !strings.EqualFold(word[:len(nick)], nick) {
			continue
		}
		if len(word) == len(nick) || !isAlnum(word[len(nick)]) {
			return true
		}
	}
	return false
}

func isAlnum(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
