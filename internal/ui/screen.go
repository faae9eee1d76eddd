package ui

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/tessro/rirc/internal/session"
)

// Terminal control sequences.
const (
	cursorHome  = "\x1b[H"
	clearLine   = "\x1b[K"
	clearScreen = "\x1b[H\x1b[J"
	bell        = "\a"
)

// minWidth and minHeight are the smallest screen the layout supports.
const (
	minWidth  = 20
	minHeight = 4
)

// timeFormat prefixes every scrollback line.
const timeFormat = "15:04"

// SizeFunc reports the terminal size in cells.
type SizeFunc func() (width, height int, err error)

// Screen draws the client. It implements loop.Renderer.
type Screen struct {
	reg   *session.Registry
	input *Input
	out   io.Writer
	size  SizeFunc

	width  int
	height int
}

// NewScreen creates a renderer writing to out.
func NewScreen(reg *session.Registry, input *Input, out io.Writer, size SizeFunc) *Screen {
	s := &Screen{reg: reg, input: input, out: out, size: size}
	s.Resize()
	return s
}

// Resize re-reads the terminal size. The previous size is kept when the
// query fails.
func (s *Screen) Resize() {
	w, h, err := s.size()
	if err != nil {
		slog.Debug("terminal size unavailable", "error", err)
		if s.width == 0 {
			s.width, s.height = 80, 24
		}
		return
	}
	s.width, s.height = max(w, minWidth), max(h, minHeight)
}

// Size returns the size used for the last layout.
func (s *Screen) Size() (width, height int) {
	return s.width, s.height
}

// Bell rings the terminal bell.
func (s *Screen) Bell() {
	io.WriteString(s.out, bell)
}

// Clear blanks the screen. Called on a clean exit.
func (s *Screen) Clear() {
	io.WriteString(s.out, clearScreen)
}

// Redraw paints the whole screen: the channel bar, the scrollback of the
// current channel, the status bar and the input line.
func (s *Screen) Redraw() {
	w := bufio.NewWriter(s.out)
	w.WriteString(cursorHome)

	rows := make([]string, 0, s.height)
	rows = append(rows, s.navView())
	rows = append(rows, s.scrollbackView(s.height-3)...)
	rows = append(rows, s.statusView())
	input, col := s.inputView()
	rows = append(rows, input)

	for i, row := range rows {
		if i > 0 {
			w.WriteString("\r\n")
		}
		w.WriteString(row)
		w.WriteString(clearLine)
	}
	fmt.Fprintf(w, "\x1b[%d;%dH", s.height, col+1)

	if err := w.Flush(); err != nil {
		slog.Warn("redraw failed", "error", err)
	}
}

// navView renders every buffer name, styled by activity.
func (s *Screen) navView() string {
	current := s.reg.Current()
	var parts []string
	for _, ch := range s.reg.Channels() {
		style, ok := navActivityStyles[ch.Activity]
		switch {
		case ch == current:
			style = navCurrentStyle
		case ch.Parted || (ch.Server != nil && !ch.Server.Online):
			style = navInactiveStyle
		case !ok:
			style = navStyle
		}
		parts = append(parts, style.Render(ch.Name))
	}
	return truncate.String(strings.Join(parts, ""), uint(s.width))
}

// scrollbackView renders the newest lines of the current channel that fit
// in rows, wrapping long lines below their text column.
func (s *Screen) scrollbackView(rows int) []string {
	if rows <= 0 {
		return nil
	}
	lines := s.reg.Current().Lines.Lines(rows)

	var out []string
	for _, l := range lines {
		out = append(out, s.formatLine(l)...)
	}
	if len(out) > rows {
		out = out[len(out)-rows:]
	}
	for len(out) < rows {
		out = append(out, "")
	}
	return out
}

func (s *Screen) formatLine(l session.Line) []string {
	from := l.From
	fromRendered := fromStyle.Render(from)
	if l.Kind == session.KindSelf {
		fromRendered = selfStyle.Render(from)
	} else if from == "--" {
		fromRendered = statusStyle.Render(from)
	}

	prefix := timeStyle.Render(l.Time.Format(timeFormat)) + " " + fromRendered + " "
	indent := lipgloss.Width(prefix)
	textWidth := s.width - indent
	if textWidth < minWidth/2 {
		textWidth = minWidth / 2
	}

	style, ok := kindStyles[l.Kind]
	if !ok {
		style = lipgloss.NewStyle()
	}

	wrapped := strings.Split(wordwrap.String(l.Text, textWidth), "\n")
	out := make([]string, 0, len(wrapped))
	for i, part := range wrapped {
		// wordwrap only breaks at spaces; hard-cut words longer than a row.
		part = truncate.String(part, uint(textWidth))
		if i == 0 {
			out = append(out, prefix+style.Render(part))
		} else {
			out = append(out, strings.Repeat(" ", indent)+style.Render(part))
		}
	}
	return out
}

// statusView renders the nick, server and channel summary bar.
func (s *Screen) statusView() string {
	ch := s.reg.Current()
	var parts []string
	style := statusBarStyle

	if srv := ch.Server; srv != nil {
		nick := srv.Nick
		if nick == "" {
			nick = "*"
		}
		parts = append(parts, nick+" @ "+srv.Conn.Host)
		if !srv.Online {
			parts = append(parts, srv.Conn.State().String())
			style = statusBarOfflineStyle
		}
		if ch != srv.Buffer {
			name := ch.Name
			if n := ch.Nicks.Len(); n > 0 {
				name = fmt.Sprintf("%s (%d)", name, n)
			}
			parts = append(parts, name)
		}
	} else {
		parts = append(parts, ch.Name)
	}

	for _, b := range s.input.KeyMap().ShortHelp() {
		h := b.Help()
		parts = append(parts, helpKeyStyle.Render(h.Key)+" "+helpDescStyle.Render(h.Desc))
	}

	text := truncate.String(" "+strings.Join(parts, " │ "), uint(s.width))
	return style.Width(s.width).Render(text)
}

// inputView renders the input line, scrolled horizontally so the cursor is
// visible. It returns the cursor's screen column.
func (s *Screen) inputView() (string, int) {
	prompt := promptStyle.Render(">") + " "
	promptWidth := lipgloss.Width(prompt)
	avail := s.width - promptWidth - 1

	line := []rune(s.input.Value())
	cursor := s.input.Cursor()
	start := 0
	if cursor > avail {
		start = cursor - avail
	}
	end := min(len(line), start+avail)
	return prompt + string(line[start:end]), promptWidth + cursor - start
}
