// Package ui turns keystrokes into line edits and commands, and draws the
// channel bar, scrollback, status bar and input line.
package ui

import (
	"slices"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tessro/rirc/internal/conn"
	"github.com/tessro/rirc/internal/session"
)

// maxHistorySize limits the number of entries stored in history.
const maxHistorySize = 100

// maxLineLength limits the input line, in runes.
const maxLineLength = 510

// Actions are the operations the input line asks of the application.
type Actions interface {
	// Connect opens a new server connection.
	Connect(host string, port int) error
	// Disconnect drops a connection and stops polling it.
	Disconnect(c *conn.Conn)
	// Stop ends the event loop.
	Stop()
}

// Input is the line editor. It implements loop.InputProcessor.
type Input struct {
	reg     *session.Registry
	actions Actions
	keys    KeyMap

	// OnChange is called after any keystroke that changes what is shown.
	OnChange func()

	line   []rune
	cursor int

	// Input history for up/down navigation
	history      []string
	historyIndex int    // -1 means not browsing history; 0+ is index into history
	savedInput   string // Saved current input when browsing history

	// pending holds an escape sequence split across reads.
	pending []byte
}

// NewInput creates an input line bound to reg.
func NewInput(reg *session.Registry, actions Actions) *Input {
	return &Input{
		reg:          reg,
		actions:      actions,
		keys:         DefaultKeyMap(),
		OnChange:     func() {},
		historyIndex: -1,
	}
}

// Value returns the current input value.
func (i *Input) Value() string {
	return string(i.line)
}

// Cursor returns the cursor position, in runes.
func (i *Input) Cursor() int {
	return i.cursor
}

// KeyMap returns the active bindings.
func (i *Input) KeyMap() KeyMap {
	return i.keys
}

// Input processes one burst of keystrokes.
func (i *Input) Input(p []byte) {
	buf := append(i.pending, p...)
	keys, rest := decodeKeys(buf)
	i.pending = slices.Clone(rest)

	for _, k := range keys {
		i.handleKey(tea.KeyMsg(k))
	}
	if len(keys) > 0 {
		i.OnChange()
	}
}

func (i *Input) handleKey(msg tea.KeyMsg) {
	switch {
	case key.Matches(msg, i.keys.Quit):
		i.actions.Stop()
	case key.Matches(msg, i.keys.Next):
		i.reg.Next()
	case key.Matches(msg, i.keys.Prev):
		i.reg.Prev()
	case key.Matches(msg, i.keys.Complete):
		i.complete()
	case key.Matches(msg, i.keys.Submit):
		i.submit()
	case key.Matches(msg, i.keys.Redraw):
		// Every keystroke redraws.
	case key.Matches(msg, i.keys.Backspace):
		if i.cursor > 0 {
			i.line = slices.Delete(i.line, i.cursor-1, i.cursor)
			i.cursor--
		}
	case key.Matches(msg, i.keys.Delete):
		if i.cursor < len(i.line) {
			i.line = slices.Delete(i.line, i.cursor, i.cursor+1)
		}
	case key.Matches(msg, i.keys.Left):
		if i.cursor > 0 {
			i.cursor--
		}
	case key.Matches(msg, i.keys.Right):
		if i.cursor < len(i.line) {
			i.cursor++
		}
	case key.Matches(msg, i.keys.Home):
		i.cursor = 0
	case key.Matches(msg, i.keys.End):
		i.cursor = len(i.line)
	case key.Matches(msg, i.keys.ClearLine):
		i.line = i.line[:0]
		i.cursor = 0
	case key.Matches(msg, i.keys.DeleteWord):
		i.deleteWord()
	case key.Matches(msg, i.keys.HistoryUp):
		i.HistoryUp()
	case key.Matches(msg, i.keys.HistoryDn):
		i.HistoryDown()
	case msg.Type == tea.KeyRunes && !msg.Alt:
		i.insert(msg.Runes)
	}
}

func (i *Input) insert(runes []rune) {
	for _, r := range runes {
		if !unicode.IsPrint(r) || len(i.line) >= maxLineLength {
			continue
		}
		i.line = slices.Insert(i.line, i.cursor, r)
		i.cursor++
	}
}

// SetValue replaces the line and moves the cursor to its end.
func (i *Input) SetValue(s string) {
	i.line = []rune(s)
	i.cursor = len(i.line)
}

func (i *Input) deleteWord() {
	start := i.cursor
	for start > 0 && i.line[start-1] == ' ' {
		start--
	}
	for start > 0 && i.line[start-1] != ' ' {
		start--
	}
	i.line = slices.Delete(i.line, start, i.cursor)
	i.cursor = start
}

// complete replaces the word before the cursor with the first matching
// nick in the current channel. A nick completed at the start of the line
// gets ": " appended.
func (i *Input) complete() {
	start := i.cursor
	for start > 0 && i.line[start-1] != ' ' {
		start--
	}
	if start == i.cursor {
		return
	}

	nick, err := i.reg.Complete(string(i.line[start:i.cursor]))
	if err != nil {
		return
	}
	suffix := " "
	if start == 0 {
		suffix = ": "
	}
	repl := []rune(nick + suffix)
	i.line = slices.Replace(i.line, start, i.cursor, repl...)
	i.cursor = start + len(repl)
}

func (i *Input) submit() {
	text := string(i.line)
	i.line = i.line[:0]
	i.cursor = 0
	if strings.TrimSpace(text) == "" {
		return
	}
	i.AddToHistory(text)

	ch := i.reg.Current()
	var err error
	switch {
	case strings.HasPrefix(text, "//"):
		err = i.reg.Say(ch, text[1:])
	case strings.HasPrefix(text, "/"):
		err = i.command(text[1:])
	default:
		err = i.reg.Say(ch, text)
	}
	if err != nil {
		ch.Addf(session.KindError, "%v", err)
	}
}

// AddToHistory adds the given input to history if non-empty.
func (i *Input) AddToHistory(input string) {
	if input == "" {
		return
	}
	// Avoid duplicates at the end
	if len(i.history) > 0 && i.history[len(i.history)-1] == input {
		i.ResetHistoryNavigation()
		return
	}
	i.history = append(i.history, input)
	if len(i.history) > maxHistorySize {
		i.history = i.history[len(i.history)-maxHistorySize:]
	}
	i.ResetHistoryNavigation()
}

// HistoryUp navigates to the previous (older) history entry.
// Returns true if the input was changed.
func (i *Input) HistoryUp() bool {
	if len(i.history) == 0 {
		return false
	}

	if i.historyIndex == -1 {
		i.savedInput = i.Value()
		i.historyIndex = len(i.history) - 1
	} else if i.historyIndex > 0 {
		i.historyIndex--
	} else {
		return false
	}

	i.SetValue(i.history[i.historyIndex])
	return true
}

// HistoryDown navigates to the next (newer) history entry.
// Returns true if the input was changed.
func (i *Input) HistoryDown() bool {
	if i.historyIndex == -1 {
		return false
	}

	if i.historyIndex < len(i.history)-1 {
		i.historyIndex++
		i.SetValue(i.history[i.historyIndex])
		return true
	}

	// At newest entry, restore saved input
	i.historyIndex = -1
	i.SetValue(i.savedInput)
	i.savedInput = ""
	return true
}

// ResetHistoryNavigation resets history browsing state.
func (i *Input) ResetHistoryNavigation() {
	i.historyIndex = -1
	i.savedInput = ""
}
