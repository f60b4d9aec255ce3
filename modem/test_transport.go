package modem

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"i4.energy/across/sim800gw/at"
)

// Step is one exchange of a TestTransport script: once Match has been
// written, Reply becomes readable after Delay.
type Step struct {
	Match string
	Reply string
	Delay time.Duration
}

// After returns a copy of the step whose reply is delayed by d.
func (s Step) After(d time.Duration) Step {
	s.Delay = d
	return s
}

// Cmd scripts the modem's reply to one command line. Each reply line is
// framed the way the modem frames it with echo disabled.
func Cmd(cmd string, reply ...string) Step {
	return Step{Match: at.Prefix + cmd + at.CRLF, Reply: Lines(reply...)}
}

// Raw scripts the modem's reply to raw payload bytes.
func Raw(payload string, reply ...string) Step {
	return Step{Match: payload, Reply: Lines(reply...)}
}

// Lines frames response lines as the modem sends them. The data prompt is
// not terminated.
func Lines(lines ...string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(at.CRLF)
		b.WriteString(l)
		if l != at.Prompt {
			b.WriteString(at.CRLF)
		}
	}
	return b.String()
}

type queued struct {
	at   time.Time
	data []byte
}

// TestTransport is a scripted in-memory modem. Written bytes are matched
// against the script in order; every matched step queues its reply on the
// shared clock. Command lines that match no step are answered with
// DefaultReply, or ignored when it is empty. Reads never block.
type TestTransport struct {
	mu    sync.Mutex
	clock Clock

	// DefaultReply answers unscripted command lines.
	DefaultReply string
	// Echo reflects every written byte back, like a modem with echo on.
	Echo bool

	script  []Step
	written bytes.Buffer
	pending []byte
	queue   []queued
	closed  bool
	speeds  []int
	resets  int
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport(clock Clock, steps ...Step) *TestTransport {
	return &TestTransport{
		clock:  clock,
		script: steps,
	}
}

// Expect appends steps to the script.
func (t *TestTransport) Expect(steps ...Step) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.script = append(t.script, steps...)
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	t.written.Write(p)
	if t.Echo {
		t.enqueue(0, string(p))
	}
	t.pending = append(t.pending, p...)
	t.match()
	return len(p), nil
}

func (t *TestTransport) match() {
	for {
		if len(t.script) > 0 {
			s := t.script[0]
			if i := bytes.Index(t.pending, []byte(s.Match)); i >= 0 {
				t.pending = t.pending[i+len(s.Match):]
				t.script = t.script[1:]
				t.enqueue(s.Delay, s.Reply)
				continue
			}
		}
		i := bytes.Index(t.pending, []byte(at.CRLF))
		if i < 0 {
			return
		}
		t.pending = t.pending[i+len(at.CRLF):]
		t.enqueue(0, t.DefaultReply)
	}
}

func (t *TestTransport) enqueue(delay time.Duration, data string) {
	if data == "" {
		return
	}
	t.queue = append(t.queue, queued{at: t.clock.Now().Add(delay), data: []byte(data)})
	// Later replies never overtake earlier ones.
	slices.SortStableFunc(t.queue, func(a, b queued) int { return a.at.Compare(b.at) })
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.EOF
	}
	now := t.clock.Now()
	for len(t.queue) > 0 && n < len(p) && !t.queue[0].at.After(now) {
		k := copy(p[n:], t.queue[0].data)
		n += k
		if k < len(t.queue[0].data) {
			t.queue[0].data = t.queue[0].data[k:]
			break
		}
		t.queue = t.queue[1:]
	}
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// SendData queues data to be read by the transport.
// This simulates unsolicited output from the modem.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.enqueue(0, data)
	}
}

func (t *TestTransport) SetSpeed(baud int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.speeds = append(t.speeds, baud)
	return nil
}

// ResetInput drops the replies that are already readable.
func (t *TestTransport) ResetInput() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	t.queue = slices.DeleteFunc(t.queue, func(q queued) bool { return !q.at.After(now) })
	t.resets++
	return nil
}

// Written returns everything written so far.
func (t *TestTransport) Written() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.written.String()
}

// Commands returns the AT command lines written so far, in order.
func (t *TestTransport) Commands() []string {
	var cmds []string
	s := bufio.NewScanner(strings.NewReader(t.Written()))
	s.Split(at.Splitter)
	for s.Scan() {
		if line := s.Text(); strings.HasPrefix(line, at.Prefix) {
			cmds = append(cmds, line)
		}
	}
	return cmds
}

// Remaining returns the script steps that were never matched.
func (t *TestTransport) Remaining() []Step {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.script)
}

// Speeds returns the speeds set through SetSpeed.
func (t *TestTransport) Speeds() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.speeds)
}

// InputResets returns how often ResetInput was called.
func (t *TestTransport) InputResets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resets
}

// TestDialer hands out a fixed Transport.
type TestDialer struct {
	Transport Transport
}

func (d TestDialer) Dial(ctx context.Context) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.Transport, nil
}

// FakeClock is a Clock whose time only moves when Sleep or Advance is
// called. It records every sleep.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2024, 3, 17, 9, 41, 0, 0, time.UTC)}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

// Advance moves the clock forward without recording a sleep.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleeps returns the recorded sleeps that lasted at least atLeast.
func (c *FakeClock) Sleeps(atLeast time.Duration) []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Duration
	for _, d := range c.sleeps {
		if d >= atLeast {
			out = append(out, d)
		}
	}
	return out
}
