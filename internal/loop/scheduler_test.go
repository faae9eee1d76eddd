package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tessro/rirc/internal/conn"
	"github.com/tessro/rirc/internal/conn/conntest"
	"github.com/tessro/rirc/internal/irc"
)

// tick is one scripted poll result. With fds set, only those descriptors are
// ready; with err set, Poll fails; otherwise the poll times out.
type tick struct {
	fds []int
	err error
}

type fakePoller struct {
	ticks    []tick
	calls    int
	timeouts []time.Duration
	polled   [][]int
	wakes    int
}

func (p *fakePoller) Poll(fds []int, timeout time.Duration) ([]bool, error) {
	p.calls++
	p.timeouts = append(p.timeouts, timeout)
	p.polled = append(p.polled, append([]int(nil), fds...))

	ready := make([]bool, len(fds))
	if len(p.ticks) == 0 {
		return ready, nil
	}
	t := p.ticks[0]
	p.ticks = p.ticks[1:]
	if t.err != nil {
		return nil, t.err
	}
	for i, fd := range fds {
		for _, r := range t.fds {
			if fd == r {
				ready[i] = true
			}
		}
	}
	return ready, nil
}

func (p *fakePoller) Wake() error {
	p.wakes++
	return nil
}

type fakeKeyboard struct {
	reads []string
}

func (k *fakeKeyboard) Fd() int { return 0 }

func (k *fakeKeyboard) Read(p []byte) (int, error) {
	if len(k.reads) == 0 {
		return 0, nil
	}
	n := copy(p, k.reads[0])
	k.reads = k.reads[1:]
	return n, nil
}

// journal collects events from every collaborator in one ordered log.
type journal struct {
	s       *Scheduler
	poller  *fakePoller
	events  []string
	redraws []int // poll call count at each redraw
}

func (j *journal) Input(p []byte) {
	j.events = append(j.events, fmt.Sprintf("input %q", p))
	j.s.MarkDirty()
}

func (j *journal) Redraw() {
	j.redraws = append(j.redraws, j.poller.calls)
}

func (j *journal) Connected(c *conn.Conn) {}

func (j *journal) Message(c *conn.Conn, m *irc.Message) {
	j.events = append(j.events, fmt.Sprintf("message %s %s %s", c.Host, m.Command, m.Trailing))
	j.s.MarkDirty()
}

func (j *journal) Lost(c *conn.Conn, err error) {
	j.events = append(j.events, fmt.Sprintf("lost %s %v", c.Host, err))
	j.s.MarkDirty()
}

func newTestScheduler(ticks ...tick) (*Scheduler, *journal, *fakeKeyboard) {
	p := &fakePoller{ticks: ticks}
	kb := &fakeKeyboard{}
	j := &journal{poller: p}
	s := New(p, kb, j, j)
	j.s = s
	return s, j, kb
}

func step(t *testing.T, s *Scheduler, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := s.Step(); err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
	}
}

func TestScheduler_DispatchOrder(t *testing.T) {
	s, j, kb := newTestScheduler(
		tick{fds: []int{0}},  // 1: keyboard bytes
		tick{},               // 2: idle, keystrokes flushed
		tick{fds: []int{10}}, // 3: data on A
		tick{fds: []int{11}}, // 4: zero-length read on B
		tick{},               // 5: idle, nothing to do
	)
	kb.reads = []string{"hi"}

	trA, trB := conntest.NewTransport(10), conntest.NewTransport(11)
	a := conntest.Connect("a", trA, j)
	b := conntest.Connect("b", trB, j)
	trA.QueueRead("PRIVMSG #chan :hello\r\n")
	trB.QueueEOF()
	for _, c := range []*conn.Conn{a, b} {
		if err := s.Add(c); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	step(t, s, 5)

	want := []string{
		`input "hi"`,
		"message a PRIVMSG hello",
		"lost b " + conn.ErrLost.Error(),
	}
	if strings.Join(j.events, "\n") != strings.Join(want, "\n") {
		t.Errorf("events:\n%s\nwant:\n%s", strings.Join(j.events, "\n"), strings.Join(want, "\n"))
	}

	if b.State() != conn.Lost {
		t.Errorf("expected b lost, got %s", b.State())
	}
	if trB.Closes != 1 {
		t.Errorf("expected b's socket released once, got %d", trB.Closes)
	}
	if got := s.Conns(); len(got) != 1 || got[0] != a {
		t.Errorf("expected only a to remain, got %d connections", len(got))
	}

	if fmt.Sprint(j.redraws) != "[2 3 4]" {
		t.Errorf("redraws after polls %v, want [2 3 4]", j.redraws)
	}

	wantTimeouts := []time.Duration{IdleTimeout, 0, IdleTimeout, 0, 0}
	if fmt.Sprint(j.poller.timeouts) != fmt.Sprint(wantTimeouts) {
		t.Errorf("timeouts = %v, want %v", j.poller.timeouts, wantTimeouts)
	}
	if got := fmt.Sprint(j.poller.polled[4]); got != "[0 10]" {
		t.Errorf("last poll set = %s, want [0 10]", got)
	}
}

func TestScheduler_KeystrokesCoalesce(t *testing.T) {
	s, j, kb := newTestScheduler(
		tick{fds: []int{0}},
		tick{fds: []int{0}},
		tick{fds: []int{0}},
		tick{},
	)
	kb.reads = []string{"h", "e", "y"}

	step(t, s, 3)
	if len(j.events) != 0 {
		t.Fatalf("expected no flush while typing, got %v", j.events)
	}

	step(t, s, 1)
	if len(j.events) != 1 || j.events[0] != `input "hey"` {
		t.Errorf("expected one coalesced flush, got %v", j.events)
	}
}

func TestScheduler_FullInputBufferFlushes(t *testing.T) {
	s, j, kb := newTestScheduler(tick{fds: []int{0}})
	kb.reads = []string{strings.Repeat("x", InputBufferSize)}

	step(t, s, 1)

	if len(j.events) != 1 {
		t.Errorf("expected immediate flush of a full buffer, got %d events", len(j.events))
	}
}

func TestScheduler_KeyboardBeforeConnections(t *testing.T) {
	s, j, kb := newTestScheduler(tick{fds: []int{0, 10}}, tick{fds: []int{10}}, tick{})
	kb.reads = []string{"k"}
	tr := conntest.NewTransport(10)
	tr.QueueRead("PING :x\r\n")
	_ = s.Add(conntest.Connect("a", tr, j))

	step(t, s, 1)
	if !tr.Pending() {
		t.Fatal("connection should not be serviced in the same iteration as the keyboard")
	}

	step(t, s, 2)
	want := []string{"message a PING x", `input "k"`}
	if strings.Join(j.events, "|") != strings.Join(want, "|") {
		t.Errorf("events = %v, want %v", j.events, want)
	}
}

func TestScheduler_ReadError(t *testing.T) {
	s, j, _ := newTestScheduler(tick{fds: []int{10}})
	tr := conntest.NewTransport(10)
	tr.QueueError(errors.New("connection reset by peer"))
	c := conntest.Connect("a", tr, j)
	_ = s.Add(c)

	step(t, s, 1)

	if c.State() != conn.Lost {
		t.Fatalf("expected lost, got %s", c.State())
	}
	if !errors.Is(c.Err(), conn.ErrRead) {
		t.Errorf("expected ErrRead, got %v", c.Err())
	}
	if len(s.Conns()) != 0 {
		t.Error("lost connection should be removed")
	}
}

func TestScheduler_SpuriousReadiness(t *testing.T) {
	s, j, _ := newTestScheduler(tick{fds: []int{10}})
	c := conntest.Connect("a", conntest.NewTransport(10), j)
	_ = s.Add(c)

	step(t, s, 1)

	if c.State() != conn.Connected {
		t.Errorf("a would-block read must not lose the connection, got %s", c.State())
	}
	if len(j.redraws) != 0 {
		t.Errorf("expected no redraw, got %v", j.redraws)
	}
}

func TestScheduler_ClosedConnectionsAreSwept(t *testing.T) {
	s, j, _ := newTestScheduler(tick{})
	tr := conntest.NewTransport(10)
	c := conntest.Connect("a", tr, j)
	_ = s.Add(c)

	_ = c.Close()
	step(t, s, 1)

	if len(s.Conns()) != 0 {
		t.Error("closed connection should be removed")
	}
	if tr.Closes != 1 {
		t.Errorf("expected one socket close, got %d", tr.Closes)
	}
}

func TestScheduler_ConnectingIsNotPolled(t *testing.T) {
	s, j, _ := newTestScheduler(tick{})
	c := conn.New("a", 6667, j)
	_ = c.BeginConnect()
	_ = s.Add(c)

	step(t, s, 1)

	if got := fmt.Sprint(j.poller.polled[0]); got != "[0]" {
		t.Errorf("poll set = %s, want only the keyboard", got)
	}
}

func TestScheduler_Interrupted(t *testing.T) {
	s, j, kb := newTestScheduler(tick{fds: []int{0}}, tick{err: ErrInterrupted}, tick{})
	kb.reads = []string{"a"}

	step(t, s, 2)
	if len(j.redraws) != 1 {
		t.Errorf("expected a redraw after the interrupted poll, got %v", j.redraws)
	}
	if len(j.events) != 0 {
		t.Errorf("interruption must not flush input, got %v", j.events)
	}

	step(t, s, 1)
	if j.poller.timeouts[2] != 0 {
		t.Errorf("expected drain timeout kept across the retry, got %v", j.poller.timeouts[2])
	}
	if len(j.events) != 1 {
		t.Errorf("expected flush after retry, got %v", j.events)
	}
}

func TestScheduler_PollFailure(t *testing.T) {
	boom := errors.New("bad file descriptor")
	s, _, _ := newTestScheduler(tick{err: boom})

	if err := s.Step(); !errors.Is(err, boom) {
		t.Errorf("expected poll error, got %v", err)
	}
}

func TestScheduler_InputClosed(t *testing.T) {
	s, _, _ := newTestScheduler(tick{fds: []int{0}})

	if err := s.Step(); !errors.Is(err, ErrInputClosed) {
		t.Errorf("expected ErrInputClosed, got %v", err)
	}
}

func TestScheduler_Post(t *testing.T) {
	s, j, _ := newTestScheduler(tick{err: ErrWoken})
	ran := false
	s.Post(func() {
		ran = true
		s.MarkDirty()
	})

	if j.poller.wakes != 1 {
		t.Errorf("expected Post to wake the poller, got %d wakes", j.poller.wakes)
	}
	step(t, s, 1)
	if !ran {
		t.Error("posted function did not run")
	}
	if len(j.redraws) != 1 {
		t.Errorf("expected redraw after posted work, got %v", j.redraws)
	}
}

func TestScheduler_PostedConnectFailureIsSwept(t *testing.T) {
	s, j, _ := newTestScheduler(tick{err: ErrWoken})
	c := conn.New("a", 6667, j)
	_ = c.BeginConnect()
	_ = s.Add(c)

	s.Post(func() { c.ConnectFailed(errors.New("refused")) })
	step(t, s, 1)

	if len(s.Conns()) != 0 {
		t.Error("failed connection should be removed")
	}
	if len(j.events) != 1 || !strings.HasPrefix(j.events[0], "lost a") {
		t.Errorf("expected lost notification, got %v", j.events)
	}
}

func TestScheduler_MaxConnections(t *testing.T) {
	s, j, _ := newTestScheduler()
	for i := 0; i < MaxConnections; i++ {
		if err := s.Add(conn.New(fmt.Sprintf("h%d", i), 6667, j)); err != nil {
			t.Fatalf("Add %d failed: %v", i, err)
		}
	}
	if err := s.Add(conn.New("extra", 6667, j)); !errors.Is(err, ErrTooManyConnections) {
		t.Errorf("expected ErrTooManyConnections, got %v", err)
	}
}

func TestScheduler_Run(t *testing.T) {
	t.Run("stop", func(t *testing.T) {
		s, j, _ := newTestScheduler()
		j.s.SetInput(inputFunc(func([]byte) {}))
		s.Post(s.Stop)

		if err := s.Run(context.Background()); err != nil {
			t.Fatalf("Run returned %v", err)
		}
		if len(j.redraws) != 1 {
			t.Errorf("expected initial redraw, got %v", j.redraws)
		}
	})

	t.Run("context cancel", func(t *testing.T) {
		s, _, _ := newTestScheduler()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		done := make(chan error, 1)
		go func() { done <- s.Run(ctx) }()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not stop after cancel")
		}
	})
}

type inputFunc func([]byte)

func (f inputFunc) Input(p []byte) { f(p) }
