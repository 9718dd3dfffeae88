package stream

import (
	"testing"
	"time"
)

// fakeClock lets tests step time deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestThrottler() (*FlushThrottler, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	return &FlushThrottler{now: clk.now}, clk
}

func TestFlushThrottlerIntervalTiers(t *testing.T) {
	tests := []struct {
		chars int
		want  time.Duration
	}{
		{0, 80 * time.Millisecond},
		{3999, 80 * time.Millisecond},
		{4000, 100 * time.Millisecond},
		{11999, 100 * time.Millisecond},
		{12000, 120 * time.Millisecond},
		{50000, 120 * time.Millisecond},
	}
	th := NewFlushThrottler()
	for _, tt := range tests {
		if got := th.Interval(tt.chars); got != tt.want {
			t.Errorf("Interval(%d) = %v, want %v", tt.chars, got, tt.want)
		}
	}
}

func TestFlushThrottlerPacing(t *testing.T) {
	th, clk := newTestThrottler()

	// First publish is always allowed.
	if !th.ShouldFlush(1, 100) {
		t.Fatal("first flush suppressed")
	}
	th.MarkFlushed(1)

	// Within the interval, even changed content waits.
	clk.advance(40 * time.Millisecond)
	if th.ShouldFlush(2, 100) {
		t.Error("flush allowed inside the interval")
	}

	// Past the interval it goes through.
	clk.advance(50 * time.Millisecond)
	if !th.ShouldFlush(2, 100) {
		t.Error("flush suppressed after the interval elapsed")
	}
	th.MarkFlushed(2)

	// Unchanged content never flushes, no matter how long it waits.
	clk.advance(time.Second)
	if th.ShouldFlush(2, 100) {
		t.Error("unchanged content flushed")
	}
}

func TestFlushThrottlerFinal(t *testing.T) {
	th, clk := newTestThrottler()

	// A final flush is due even with nothing ever published.
	if !th.ShouldFlushFinal(0) {
		t.Error("final flush suppressed on empty history")
	}

	th.MarkFlushed(5)
	clk.advance(time.Millisecond)

	// The final flush ignores the timer when content moved.
	if !th.ShouldFlushFinal(6) {
		t.Error("final flush suppressed for changed content")
	}
	// But an unchanged revision skips it.
	if th.ShouldFlushFinal(5) {
		t.Error("final flush repeated for unchanged content")
	}
}
