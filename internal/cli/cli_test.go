package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unionDefs = `
relations: {
	edge: arity: 2
	road: arity: 2
}
data: {
	edge: [[1, 2], [2, 3]]
	road: [[3, 4]]
}
queries: linked: {
	goal: ["x", "y"]
	expr: {or: [
		{in: {elem: {tuple: [{var: "x"}, {var: "y"}]}, coll: {rel: "edge"}}},
		{in: {elem: {tuple: [{var: "x"}, {var: "y"}]}, coll: {rel: "road"}}},
	]}
}
`

const compareDefs = `
relations: num: arity: 1
data: num: [0, 1, 2, 3]
queries: small: {
	goal: ["x"]
	expr: {cmp: {op: "<", l: {var: "x"}, r: {lit: 2}}}
}
`

const pathDefs = `
relations: edge: arity: 2
data: edge: [[1, 2], [2, 3]]
functions: path: {
	params: ["a", "b"]
	body: {or: [
		{in: {elem: {tuple: [{var: "a"}, {var: "b"}]}, coll: {rel: "edge"}}},
		{exists: {vars: ["z"], body: {and: [
			{call: {fn: "path", args: [{var: "a"}, {var: "z"}]}},
			{in: {elem: {tuple: [{var: "z"}, {var: "b"}]}, coll: {rel: "edge"}}},
		]}}},
	]}
}
queries: reach: {
	goal: ["x", "y"]
	expr: {call: {fn: "path", args: [{var: "x"}, {var: "y"}]}}
}
`

func writeDefs(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "defs.cue")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp
}

func TestCheckCommand(t *testing.T) {
	defs := writeDefs(t, pathDefs)

	out, err := execute(t, "check", defs)
	require.NoError(t, err)
	assert.Contains(t, out, "1 relation(s), 1 function(s), 1 query")
	assert.Contains(t, out, "[info] path is self-recursive")
}

func TestCheckCommandJSON(t *testing.T) {
	defs := writeDefs(t, pathDefs)

	out, err := execute(t, "--format", "json", "check", defs)
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["relations"])
	assert.Equal(t, float64(1), data["functions"])
	require.Len(t, data["warnings"], 1)
}

func TestCheckCommandBadFile(t *testing.T) {
	out, err := execute(t, "check", filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E_ELABORATE]")
}

func TestInvertCommand(t *testing.T) {
	defs := writeDefs(t, unionDefs)

	out, err := execute(t, "invert", defs)
	require.NoError(t, err)
	assert.Contains(t, out, "cardinality: FINITE")
	assert.Contains(t, out, "generator:   @union($edge, $road)")
	assert.Contains(t, out, "binds:       [x y]")
}

func TestInvertCommandClosure(t *testing.T) {
	defs := writeDefs(t, pathDefs)

	out, err := execute(t, "invert", defs, "--query", "reach")
	require.NoError(t, err)
	assert.Contains(t, out, "generator:   @iterate($edge, ")
}

func TestInvertCommandRefusal(t *testing.T) {
	defs := writeDefs(t, compareDefs)

	out, err := execute(t, "invert", defs)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_INVERT]")
}

func TestInvertCommandRefusalJSON(t *testing.T) {
	defs := writeDefs(t, compareDefs)

	out, err := execute(t, "--format", "json", "invert", defs)
	require.Error(t, err)
	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_INVERT", resp.Error.Code)

	details := resp.Error.Details.(map[string]interface{})
	assert.Equal(t, "UNSUPPORTED_SHAPE", details["failure_code"])
}

func TestInvertCommandUnknownQuery(t *testing.T) {
	defs := writeDefs(t, unionDefs)

	_, err := execute(t, "invert", defs, "--query", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestEvalCommandGeneratorStrategy(t *testing.T) {
	defs := writeDefs(t, unionDefs)

	out, err := execute(t, "eval", defs)
	require.NoError(t, err)
	assert.Contains(t, out, "strategy: generator")
	assert.Contains(t, out, "tuples:   3")
	assert.Contains(t, out, "  (1, 2)")
	assert.Contains(t, out, "  (3, 4)")
}

func TestEvalCommandFallbackStrategy(t *testing.T) {
	defs := writeDefs(t, compareDefs)

	out, err := execute(t, "eval", defs)
	require.NoError(t, err)
	assert.Contains(t, out, "strategy: fallback")
	assert.Contains(t, out, "tuples:   2\n  0\n  1\n")
}

func TestEvalCommandClosure(t *testing.T) {
	defs := writeDefs(t, pathDefs)

	out, err := execute(t, "eval", defs)
	require.NoError(t, err)
	assert.Contains(t, out, "strategy: generator")
	assert.Contains(t, out, "tuples:   3")
	assert.Contains(t, out, "  (1, 3)")
}

func TestEvalCommandBoundVariable(t *testing.T) {
	defs := writeDefs(t, `
relations: edge: arity: 2
data: edge: [[1, 2], [2, 3]]
queries: into: {
	goal: ["x"]
	expr: {in: {elem: {tuple: [{var: "x"}, {var: "y"}]}, coll: {rel: "edge"}}}
}
`)

	out, err := execute(t, "eval", defs, "--bound", "y=3")
	require.NoError(t, err)
	assert.Contains(t, out, "strategy: generator")
	assert.Contains(t, out, "tuples:   1\n  2\n")
}

func TestEvalCommandJSON(t *testing.T) {
	defs := writeDefs(t, unionDefs)

	out, err := execute(t, "--format", "json", "eval", defs)
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "generator", data["strategy"])
	assert.Len(t, data["tuples"], 3)
}

func TestLoadCommand(t *testing.T) {
	defs := writeDefs(t, unionDefs)
	db := filepath.Join(t.TempDir(), "facts.db")

	out, err := execute(t, "load", defs, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "loaded 2 relation(s) into "+db)
	assert.FileExists(t, db)

	// Loading again is a no-op; counts stay put.
	out, err = execute(t, "--format", "json", "load", defs, "--db", db)
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]interface{})
	relations := data["relations"].(map[string]interface{})
	assert.Equal(t, float64(2), relations["edge"])
	assert.Equal(t, float64(1), relations["road"])
}

func TestTestCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defs.cue"), []byte(unionDefs), 0o644))
	scenario := `
name: union-pairs
description: union of two relations enumerates all pairs
definitions: defs.cue
query: linked
expect:
  inverted: true
  tuples:
    - [1, 2]
    - [2, 3]
    - [3, 4]
`
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenario), 0o644))

	out, err := execute(t, "test", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 scenario(s): 1 passed, 0 failed")
}

func TestTestCommandFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defs.cue"), []byte(unionDefs), 0o644))
	scenario := `
name: wrong-pairs
description: expects a pair the union does not contain
definitions: defs.cue
query: linked
expect:
  inverted: true
  tuples:
    - [9, 9]
`
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenario), 0o644))

	out, err := execute(t, "test", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL wrong-pairs")
	assert.Contains(t, out, "tuple mismatch")
}

func TestRootRejectsUnknownFormat(t *testing.T) {
	defs := writeDefs(t, unionDefs)

	_, err := execute(t, "--format", "xml", "check", defs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
