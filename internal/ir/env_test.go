package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapEnvLookup(t *testing.T) {
	env := NewMapEnv()
	env.DefineFunc(&FuncDef{Name: "path", Params: []string{"x", "y"}, Body: Var{Name: "x"}})
	env.DefineRelation(&RelationInfo{Name: "edge", Arity: 2, Finite: true})

	def, ok := env.Function("path")
	require.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, def.Params)

	info, ok := env.Relation("edge")
	require.True(t, ok)
	assert.True(t, info.Finite)

	_, ok = env.Function("missing")
	assert.False(t, ok)
	_, ok = env.Relation("missing")
	assert.False(t, ok)
}

func TestMapEnvZeroValueUsable(t *testing.T) {
	var env MapEnv
	_, ok := env.Function("f")
	assert.False(t, ok)

	env.DefineFunc(&FuncDef{Name: "f"})
	_, ok = env.Function("f")
	assert.True(t, ok)
}
