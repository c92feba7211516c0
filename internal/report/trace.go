package report

import (
	"log/slog"
	"time"

	"github.com/cwbudde/rosenopt/internal/opt"
	"github.com/cwbudde/rosenopt/internal/store"
)

// Trace writes each reported iteration as a store.TraceEntry.
type Trace struct {
	writer       *store.TraceWriter
	includePoint bool
	offset       int
}

// NewTrace returns a Trace writing to w. offset is added to every iteration
// number so that resumed runs continue the numbering of the original run.
func NewTrace(w *store.TraceWriter, includePoint bool, offset int) *Trace {
	return &Trace{writer: w, includePoint: includePoint, offset: offset}
}

func (t *Trace) Report(p opt.Progress) {
	entry := store.TraceEntry{
		Iteration: p.Iteration + t.offset,
		Value:     p.Value,
		GradNorm:  p.GradNorm,
		Step:      p.Step,
		Fallback:  p.Fallback != nil,
		Timestamp: time.Now(),
	}
	if t.includePoint {
		entry.Point = append([]float64(nil), p.Point...)
	}
	if err := t.writer.Write(entry); err != nil {
		slog.Error("Failed to write trace entry", "iteration", entry.Iteration, "error", err)
	}
}
