package report

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Timer measures wall-clock time from its creation or last Reset.
type Timer struct {
	start time.Time
	now   func() time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	t := &Timer{now: time.Now}
	t.Reset()
	return t
}

// Reset restarts the timer.
func (t *Timer) Reset() {
	t.start = t.now()
}

// Elapsed returns the time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return t.now().Sub(t.start)
}

// Report writes "<label> cost <seconds>s" to w, logs the duration and
// returns it.
func (t *Timer) Report(w io.Writer, label string) time.Duration {
	d := t.Elapsed()
	fmt.Fprintf(w, "%s cost %gs\n", label, d.Seconds())
	slog.Info("Timing", "label", label, "elapsed", d)
	return d
}
