package gen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGoalPattern(t *testing.T) {
	tests := []struct {
		name    string
		vars    []string
		wantErr bool
	}{
		{"single variable", []string{"x"}, false},
		{"multiple variables", []string{"x", "y", "z"}, false},
		{"empty", nil, true},
		{"duplicate", []string{"x", "y", "x"}, true},
		{"empty name", []string{"x", ""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			goal, err := NewGoalPattern(tt.vars...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, GoalPattern(tt.vars), goal)
		})
	}
}

func TestGoalPatternContains(t *testing.T) {
	goal, err := NewGoalPattern("x", "y")
	require.NoError(t, err)

	assert.True(t, goal.Contains("x"))
	assert.True(t, goal.Contains("y"))
	assert.False(t, goal.Contains("z"))
}
