package session

import (
	"errors"
	"strings"
	"testing"

	"github.com/tessro/rirc/internal/avl"
	"github.com/tessro/rirc/internal/conn"
	"github.com/tessro/rirc/internal/conn/conntest"
)

type harness struct {
	reg     *Registry
	srv     *Server
	conn    *conn.Conn
	tr      *conntest.Transport
	changes int
	bells   int
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{}
	opts.OnChange = func() { h.changes++ }
	opts.Bell = func() { h.bells++ }
	if opts.Username == "" {
		opts.Username = "rirc_vtest"
		opts.Realname = "rirc vtest"
	}
	h.reg = New(opts)
	h.tr = conntest.NewTransport(3)
	h.conn = conn.New("irc.example.net", 6667, h.reg)
	h.srv = h.reg.AddServer(h.conn, "alice, alice_", []string{"#go"})

	if err := h.conn.BeginConnect(); err != nil {
		t.Fatalf("BeginConnect failed: %v", err)
	}
	if err := h.conn.Established(h.tr); err != nil {
		t.Fatalf("Established failed: %v", err)
	}
	return h
}

// recv feeds server lines through the connection.
func (h *harness) recv(lines ...string) {
	h.conn.Feed([]byte(strings.Join(lines, "\r\n") + "\r\n"))
}

// sent returns and forgets everything written so far.
func (h *harness) sent() string {
	s := h.tr.Written.String()
	h.tr.Written.Reset()
	return s
}

// register completes registration and joins #go with the given nicks.
func (h *harness) register(t *testing.T, nicks string) *Channel {
	t.Helper()
	h.recv(
		":irc.example.net 001 alice :Welcome to the network",
		":alice!a@host JOIN #go",
		":irc.example.net 353 alice = #go :"+nicks,
		":irc.example.net 366 alice #go :End of /NAMES list.",
	)
	h.sent()
	ch, ok := h.srv.Channels.Get("#go")
	if !ok {
		t.Fatal("expected #go to be open")
	}
	return ch
}

func lastText(ch *Channel) string {
	l, _ := ch.Lines.Last()
	return l.Text
}

func TestRegistry_Registration(t *testing.T) {
	h := newHarness(t, Options{})

	want := "NICK alice\r\nUSER rirc_vtest 8 * :rirc vtest\r\n"
	if got := h.sent(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if !h.srv.Online {
		t.Error("expected server online")
	}

	h.recv(":irc.example.net 433 * alice :Nickname is already in use")
	if got := h.sent(); got != "NICK alice_\r\n" {
		t.Errorf("expected retry with alice_, got %q", got)
	}

	h.recv(":irc.example.net 001 alice_ :Welcome")
	if !h.srv.Registered {
		t.Error("expected server registered")
	}
	if h.srv.Nick != "alice_" {
		t.Errorf("expected nick alice_, got %q", h.srv.Nick)
	}
	if got := h.sent(); got != "JOIN #go\r\n" {
		t.Errorf("expected autojoin, got %q", got)
	}

	// Once registered, a rejected nick change does not retry.
	h.recv(":irc.example.net 433 alice_ bob :Nickname is already in use")
	if got := h.sent(); got != "" {
		t.Errorf("expected nothing sent, got %q", got)
	}
}

func TestRegistry_NickFallback(t *testing.T) {
	h := newHarness(t, Options{
		NickSuffix: func(n int) string { return strings.Repeat("A", n) },
	})
	h.sent()

	h.recv(":srv 433 * alice :in use", ":srv 433 * alice_ :in use")
	want := "NICK alice_\r\nNICK rirc_AAAA\r\n"
	if got := h.sent(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRegistry_Ping(t *testing.T) {
	h := newHarness(t, Options{})
	h.sent()

	h.recv("PING :irc.example.net", "PING token")
	want := "PONG irc.example.net\r\nPONG token\r\n"
	if got := h.sent(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRegistry_CommandCase(t *testing.T) {
	h := newHarness(t, Options{})
	h.sent()

	h.recv("ping :irc.example.net")
	if got := h.sent(); got != "PONG irc.example.net\r\n" {
		t.Errorf("expected PONG for a lower case ping, got %q", got)
	}

	ch := h.register(t, "alice bob")
	h.recv(":bob!b@host privmsg #go :hello there")
	if got := lastText(ch); got != "hello there" {
		t.Errorf("expected the lower case privmsg in #go, got %q", got)
	}
}

func TestRegistry_Membership(t *testing.T) {
	h := newHarness(t, Options{})
	ch := h.register(t, "alice @bob +carol")

	if h.reg.Current() != ch {
		t.Error("expected joining to select the channel")
	}
	for _, nick := range []string{"alice", "bob", "carol"} {
		if !ch.HasNick(nick) {
			t.Errorf("expected %s in #go", nick)
		}
	}

	h.recv(":dave!d@host JOIN #go")
	if !ch.HasNick("dave") {
		t.Error("expected dave to have joined")
	}
	if got := lastText(ch); got != "dave!d@host has joined" {
		t.Errorf("unexpected join line %q", got)
	}

	h.recv(":bob!b@host PART #go :bye")
	if ch.HasNick("bob") {
		t.Error("expected bob to have left")
	}

	h.recv(":carol!c@host NICK :caroline")
	if ch.HasNick("carol") || !ch.HasNick("caroline") {
		t.Error("expected carol to be renamed")
	}

	h.recv(":dave!d@host QUIT :gone")
	if ch.HasNick("dave") {
		t.Error("expected dave to have quit")
	}
	if got := lastText(ch); got != "dave has quit (gone)" {
		t.Errorf("unexpected quit line %q", got)
	}

	if ch.Nicks.Len() != 2 {
		t.Errorf("expected 2 nicks, got %d", ch.Nicks.Len())
	}

	h.recv(":alice!a@host PART #go")
	if !ch.Parted {
		t.Error("expected channel parted")
	}
	if ch.Nicks.Len() != 0 {
		t.Errorf("expected no nicks after parting, got %d", ch.Nicks.Len())
	}
}

func TestRegistry_JoinPartQuitThreshold(t *testing.T) {
	h := newHarness(t, Options{JoinPartQuitThreshold: 2})
	ch := h.register(t, "alice bob carol")
	before := ch.Lines.Len()

	h.recv(":dave!d@host JOIN #go", ":bob!b@host QUIT :bye")
	if ch.Lines.Len() != before {
		t.Errorf("expected join/quit lines hidden, got %q", lastText(ch))
	}
	if !ch.HasNick("dave") || ch.HasNick("bob") {
		t.Error("expected membership tracked even when lines are hidden")
	}
}

func TestRegistry_Messages(t *testing.T) {
	h := newHarness(t, Options{})
	ch := h.register(t, "alice bob")

	h.reg.SetCurrent(h.srv.Buffer)
	h.recv(":bob!b@host PRIVMSG #go :hello there")
	if got := lastText(ch); got != "hello there" {
		t.Errorf("expected message in #go, got %q", got)
	}
	if ch.Activity != ActivityChat {
		t.Errorf("expected chat activity, got %d", ch.Activity)
	}

	h.recv(":bob!b@host PRIVMSG #go :alice: ping")
	if l, _ := ch.Lines.Last(); l.Kind != KindPinged {
		t.Errorf("expected mention to be marked, got kind %d", l.Kind)
	}
	if ch.Activity != ActivityPinged || h.bells != 1 {
		t.Errorf("expected pinged activity and a bell, got %d and %d", ch.Activity, h.bells)
	}

	h.recv(":bob!b@host PRIVMSG #go :alicex is not us")
	if h.bells != 1 {
		t.Error("expected no bell for a partial word match")
	}

	h.recv(":bob!b@host PRIVMSG alice :\x01ACTION waves\x01")
	q, ok := h.srv.Channels.Get("bob")
	if !ok {
		t.Fatal("expected a query for bob")
	}
	if !q.IsQuery() {
		t.Error("expected bob to be a query")
	}
	l, _ := q.Lines.Last()
	if l.From != "*" || l.Text != "bob waves" {
		t.Errorf("expected action line, got %q %q", l.From, l.Text)
	}

	h.recv(":irc.example.net NOTICE alice :server notice")
	if got := lastText(h.srv.Buffer); got != "server notice" {
		t.Errorf("expected server notice in the server buffer, got %q", got)
	}

	h.recv(":irc.example.net 372 alice :- message of the day")
	if got := lastText(h.srv.Buffer); got != "- message of the day" {
		t.Errorf("expected numeric text without target, got %q", got)
	}
}

func TestRegistry_Commands(t *testing.T) {
	h := newHarness(t, Options{})
	ch := h.register(t, "alice bob")

	if err := h.reg.Say(ch, "hi all"); err != nil {
		t.Fatalf("Say failed: %v", err)
	}
	if got := h.sent(); got != "PRIVMSG #go :hi all\r\n" {
		t.Errorf("unexpected line %q", got)
	}
	if l, _ := ch.Lines.Last(); l.Kind != KindSelf || l.From != "alice" {
		t.Errorf("expected echoed line from alice, got %+v", l)
	}

	if err := h.reg.Say(h.srv.Buffer, "x"); !errors.Is(err, ErrNotChannel) {
		t.Errorf("expected ErrNotChannel, got %v", err)
	}

	if err := h.reg.Msg(h.srv, "carol", "psst"); err != nil {
		t.Fatalf("Msg failed: %v", err)
	}
	if _, ok := h.srv.Channels.Get("carol"); !ok {
		t.Error("expected a query for carol")
	}
	h.sent()

	if err := h.reg.Part(ch, "later"); err != nil {
		t.Fatalf("Part failed: %v", err)
	}
	if err := h.reg.Raw(h.srv, "MODE #go +t"); err != nil {
		t.Fatalf("Raw failed: %v", err)
	}
	if err := h.reg.Raw(h.srv, "A\r\nB"); err == nil {
		t.Error("expected Raw to reject line breaks")
	}
	h.reg.Quit("bye")
	want := "PART #go later\r\nMODE #go +t\r\nQUIT bye\r\n"
	if got := h.sent(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRegistry_Lost(t *testing.T) {
	h := newHarness(t, Options{})
	ch := h.register(t, "alice bob")

	if err := h.conn.MarkLost(conn.ErrLost); err != nil {
		t.Fatalf("MarkLost failed: %v", err)
	}
	if h.srv.Online {
		t.Error("expected server offline")
	}
	if !ch.Parted {
		t.Error("expected channel parted")
	}
	if !strings.Contains(lastText(ch), "Connection lost") {
		t.Errorf("expected lost line in #go, got %q", lastText(ch))
	}
	if err := h.reg.Say(ch, "anyone?"); !errors.Is(err, ErrServerOffline) {
		t.Errorf("expected ErrServerOffline, got %v", err)
	}
}

func TestRegistry_ConnectFailed(t *testing.T) {
	reg := New(Options{})
	c := conn.New("irc.example.net", 6667, reg)
	srv := reg.AddServer(c, "alice", nil)
	if err := c.BeginConnect(); err != nil {
		t.Fatalf("BeginConnect failed: %v", err)
	}
	if err := c.ConnectFailed(errors.New("connection refused")); err != nil {
		t.Fatalf("ConnectFailed failed: %v", err)
	}
	if got := lastText(srv.Buffer); !strings.HasPrefix(got, "Error connecting") {
		t.Errorf("expected connect error line, got %q", got)
	}
}

func TestRegistry_Navigation(t *testing.T) {
	h := newHarness(t, Options{})
	ch := h.register(t, "alice bob")
	h.recv(":bob!b@host PRIVMSG alice :hey")
	q, _ := h.srv.Channels.Get("bob")

	list := h.reg.Channels()
	want := []*Channel{h.reg.Status(), h.srv.Buffer, ch, q}
	if len(list) != len(want) {
		t.Fatalf("expected %d buffers, got %d", len(want), len(list))
	}
	for i := range want {
		if list[i] != want[i] {
			t.Errorf("buffer %d: expected %s, got %s", i, want[i].Name, list[i].Name)
		}
	}

	h.reg.SetCurrent(h.reg.Status())
	h.reg.Prev()
	if h.reg.Current() != q {
		t.Errorf("expected Prev to wrap to bob, got %s", h.reg.Current().Name)
	}
	if q.Activity != ActivityNone {
		t.Error("expected selecting a buffer to reset its activity")
	}
	h.reg.Next()
	if h.reg.Current() != h.reg.Status() {
		t.Errorf("expected Next to wrap to the status buffer, got %s", h.reg.Current().Name)
	}

	got, err := func() (string, error) {
		h.reg.SetCurrent(ch)
		return h.reg.Complete("bo")
	}()
	if err != nil || got != "bob" {
		t.Errorf("expected completion bob, got %q (%v)", got, err)
	}
	if _, err := h.reg.Complete("zz"); !errors.Is(err, avl.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := h.reg.CloseChannel(ch); err != nil {
		t.Fatalf("CloseChannel failed: %v", err)
	}
	if h.reg.Current() != h.srv.Buffer {
		t.Error("expected closing the current channel to select the server buffer")
	}
	if err := h.reg.CloseChannel(h.srv.Buffer); !errors.Is(err, ErrNotChannel) {
		t.Errorf("expected ErrNotChannel, got %v", err)
	}

	h.reg.RemoveServer(h.srv)
	if len(h.reg.Servers()) != 0 {
		t.Error("expected server removed")
	}
	if h.reg.Current() != h.reg.Status() {
		t.Error("expected removal to select the status buffer")
	}
}
