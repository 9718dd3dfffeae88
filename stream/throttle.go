package stream

import "time"

// Publish interval tiers. Longer transcripts repaint slower because the
// view layer's cost of rendering grows with content size.
const (
	flushFast   = 80 * time.Millisecond
	flushMedium = 100 * time.Millisecond
	flushSlow   = 120 * time.Millisecond

	mediumThreshold = 4000
	slowThreshold   = 12000
)

// FlushThrottler rate-limits how often accumulated stream state is
// published to the UI. Flushes are skipped entirely while the content
// revision has not moved, and the interval stretches as the transcript
// grows. A final flush at stream end bypasses the timer but still
// skips when nothing changed.
type FlushThrottler struct {
	now       func() time.Time
	lastFlush time.Time
	lastRev   int
	flushed   bool
}

// NewFlushThrottler returns a throttler using the wall clock.
func NewFlushThrottler() *FlushThrottler {
	return &FlushThrottler{now: time.Now}
}

// Interval returns the minimum spacing between flushes for a transcript
// of the given character count.
func (t *FlushThrottler) Interval(chars int) time.Duration {
	switch {
	case chars < mediumThreshold:
		return flushFast
	case chars < slowThreshold:
		return flushMedium
	default:
		return flushSlow
	}
}

// ShouldFlush reports whether a publish is due now. rev is any counter
// that moves when content changes; chars selects the interval tier.
func (t *FlushThrottler) ShouldFlush(rev, chars int) bool {
	if t.flushed && rev == t.lastRev {
		return false
	}
	if t.flushed && t.now().Sub(t.lastFlush) < t.Interval(chars) {
		return false
	}
	return true
}

// ShouldFlushFinal reports whether the closing publish is needed. Only
// an unchanged revision suppresses it.
func (t *FlushThrottler) ShouldFlushFinal(rev int) bool {
	return !t.flushed || rev != t.lastRev
}

// MarkFlushed records that a publish happened for the given revision.
func (t *FlushThrottler) MarkFlushed(rev int) {
	t.lastFlush = t.now()
	t.lastRev = rev
	t.flushed = true
}
