package ui

import (
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// esc starts every terminal escape sequence.
const esc = 0x1b

// KeyMap defines the keyboard shortcuts of the input line.
type KeyMap struct {
	Quit     key.Binding
	Next     key.Binding
	Prev     key.Binding
	Complete key.Binding
	Submit   key.Binding
	Redraw   key.Binding

	// Line editing
	Backspace  key.Binding
	Delete     key.Binding
	Left       key.Binding
	Right      key.Binding
	Home       key.Binding
	End        key.Binding
	ClearLine  key.Binding
	DeleteWord key.Binding
	HistoryUp  key.Binding
	HistoryDn  key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("^C", "quit"),
		),
		Next: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("^N", "next"),
		),
		Prev: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("^P", "prev"),
		),
		Complete: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "complete"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter", "ctrl+j"),
			key.WithHelp("enter", "send"),
		),
		Redraw: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("^L", "redraw"),
		),

		Backspace:  key.NewBinding(key.WithKeys("backspace", "ctrl+h")),
		Delete:     key.NewBinding(key.WithKeys("delete", "ctrl+d")),
		Left:       key.NewBinding(key.WithKeys("left", "ctrl+b")),
		Right:      key.NewBinding(key.WithKeys("right", "ctrl+f")),
		Home:       key.NewBinding(key.WithKeys("home", "ctrl+a")),
		End:        key.NewBinding(key.WithKeys("end", "ctrl+e")),
		ClearLine:  key.NewBinding(key.WithKeys("ctrl+u")),
		DeleteWord: key.NewBinding(key.WithKeys("ctrl+w")),
		HistoryUp:  key.NewBinding(key.WithKeys("up")),
		HistoryDn:  key.NewBinding(key.WithKeys("down")),
	}
}

// ShortHelp returns the bindings shown in the help bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Complete, k.Quit}
}

// csiKeys maps the final byte of a parameterless CSI or SS3 sequence.
var csiKeys = map[byte]tea.KeyType{
	'A': tea.KeyUp,
	'B': tea.KeyDown,
	'C': tea.KeyRight,
	'D': tea.KeyLeft,
	'H': tea.KeyHome,
	'F': tea.KeyEnd,
}

// tildeKeys maps the numeric parameter of "ESC [ n ~" sequences.
var tildeKeys = map[string]tea.KeyType{
	"1": tea.KeyHome,
	"7": tea.KeyHome,
	"4": tea.KeyEnd,
	"8": tea.KeyEnd,
	"3": tea.KeyDelete,
	"5": tea.KeyPgUp,
	"6": tea.KeyPgDown,
}

// decodeKeys splits raw terminal input into keys. An escape sequence cut
// off at the end of p is returned as rest so it can be completed by the
// next burst. Unknown sequences are skipped.
func decodeKeys(p []byte) (keys []tea.Key, rest []byte) {
	for len(p) > 0 {
		b := p[0]
		switch {
		case b == esc:
			k, n, ok := decodeEscape(p)
			if n == 0 {
				return keys, p
			}
			if ok {
				keys = append(keys, k)
			}
			p = p[n:]

		case b < 0x20 || b == 0x7f:
			keys = append(keys, tea.Key{Type: tea.KeyType(b)})
			p = p[1:]

		default:
			if !utf8.FullRune(p) {
				return keys, p
			}
			r, n := utf8.DecodeRune(p)
			if r != utf8.RuneError {
				keys = append(keys, tea.Key{Type: tea.KeyRunes, Runes: []rune{r}})
			}
			p = p[n:]
		}
	}
	return keys, nil
}

// decodeEscape decodes the sequence starting at p[0] == ESC. It returns the
// number of bytes consumed, or 0 when the sequence is incomplete. ok is
// false for sequences that map to no key.
func decodeEscape(p []byte) (k tea.Key, n int, ok bool) {
	if len(p) == 1 {
		return tea.Key{Type: tea.KeyEsc}, 1, true
	}

	switch p[1] {
	case '[':
		// CSI: parameter bytes, then one final byte in 0x40-0x7e.
		i := 2
		for i < len(p) && (p[i] < 0x40 || p[i] > 0x7e) {
			i++
		}
		if i == len(p) {
			return tea.Key{}, 0, false
		}
		params, final := string(p[2:i]), p[i]
		if final == '~' {
			t, ok := tildeKeys[params]
			return tea.Key{Type: t}, i + 1, ok
		}
		t, ok := csiKeys[final]
		return tea.Key{Type: t}, i + 1, ok && params == ""

	case 'O':
		if len(p) < 3 {
			return tea.Key{}, 0, false
		}
		t, ok := csiKeys[p[2]]
		return tea.Key{Type: t}, 3, ok

	case esc:
		return tea.Key{Type: tea.KeyEsc}, 1, true

	default:
		// Alt+key
		if p[1] < 0x20 || p[1] == 0x7f {
			return tea.Key{Type: tea.KeyType(p[1]), Alt: true}, 2, true
		}
		if !utf8.FullRune(p[1:]) {
			return tea.Key{}, 0, false
		}
		r, size := utf8.DecodeRune(p[1:])
		return tea.Key{Type: tea.KeyRunes, Runes: []rune{r}, Alt: true}, 1 + size, true
	}
}
