package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cwbudde/rosenopt/internal/opt"
)

func TestStagnation_Defaults(t *testing.T) {
	s := NewStagnation(StagnationConfig{})
	assert.Equal(t, DefaultStagnationConfig(), s.config)
}

func TestStagnation_FlagsAfterPatience(t *testing.T) {
	s := NewStagnation(StagnationConfig{Patience: 3, Threshold: 0.01})

	values := []float64{10, 5, 4.99, 4.98, 4.97}
	for i, v := range values {
		s.Report(opt.Progress{Iteration: i + 1, Value: v})
	}

	assert.True(t, s.Stalled())
	assert.Equal(t, 3, s.StaleCount())
	assert.Equal(t, 4.97, s.Best())
}

func TestStagnation_ImprovementResets(t *testing.T) {
	s := NewStagnation(StagnationConfig{Patience: 3, Threshold: 0.01})

	values := []float64{10, 9.99, 9.98, 5, 4.99}
	for i, v := range values {
		s.Report(opt.Progress{Iteration: i + 1, Value: v})
	}

	assert.False(t, s.Stalled())
	assert.Equal(t, 1, s.StaleCount())
}

func TestStagnation_ZeroValue(t *testing.T) {
	s := NewStagnation(StagnationConfig{Patience: 2, Threshold: 0.01})

	for i := 0; i < 3; i++ {
		s.Report(opt.Progress{Iteration: i + 1, Value: 0})
	}

	assert.True(t, s.Stalled())
	assert.Equal(t, 0.0, s.Best())
}
