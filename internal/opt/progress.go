package opt

// Progress describes one completed iteration.
type Progress struct {
	// Iteration is the number of completed steps, starting at 1.
	Iteration int `json:"iteration"`

	// Point is the point after the step. It is shared with the optimizer and
	// must not be modified.
	Point []float64 `json:"point,omitempty"`

	// Value is f(Point).
	Value float64 `json:"value"`

	// GradNorm is ‖∇f‖ at the point the step started from.
	GradNorm float64 `json:"gradNorm"`

	// Step is the line-search step length.
	Step float64 `json:"step"`

	// Fallback is non-nil when the Newton direction could not be computed and
	// the step used −∇f instead.
	Fallback error `json:"-"`
}

// Reporter observes optimizer progress. It has no effect on the run.
type Reporter interface {
	Report(p Progress)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(p Progress)

// Report calls f(p).
func (f ReporterFunc) Report(p Progress) {
	f(p)
}
