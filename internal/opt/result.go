package opt

// State is the optimizer state machine position.
type State string

const (
	StateRunning         State = "running"
	StateConverged       State = "converged"
	StateMaxIterExceeded State = "max_iter_exceeded"
)

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateConverged || s == StateMaxIterExceeded
}

// Result is the outcome of Optimize.
type Result struct {
	Strategy   Strategy  `json:"strategy"`
	State      State     `json:"state"`
	Point      []float64 `json:"point"`
	Value      float64   `json:"value"`
	GradNorm   float64   `json:"gradNorm"`
	Iterations int       `json:"iterations"`

	// Fallbacks counts iterations where a singular Hessian forced a
	// steepest-descent step.
	Fallbacks int `json:"fallbacks"`

	// Stalls counts iterations whose step hit the line-search floor.
	Stalls int `json:"stalls"`
}
