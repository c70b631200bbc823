package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes content to dir/name and returns the path.
func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "test.yaml", `
name: test_scenario
description: "Test scenario for validation"
source: |
  kernel k(A) {
    comm_fence()
  }
passes: [dce]
assertions:
  - type: trace_count
    op: comm_fence
    count: 1
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Contains(t, scenario.Source, "comm_fence()")
	assert.Equal(t, []string{"dce"}, scenario.Passes)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertTraceCount, scenario.Assertions[0].Type)
	assert.Equal(t, 1, scenario.Assertions[0].Count)
}

func TestLoadScenario_SourceFileRelativeToScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "kernels"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kernels", "k.tl"), []byte("kernel k() {\n  comm_fence()\n}\n"), 0644))

	path := writeScenario(t, dir, "test.yaml", `
name: from_file
description: "Source loaded from a file"
source_file: kernels/k.tl
assertions:
  - type: trace_contains
    op: comm_fence
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "kernel k() {\n  comm_fence()\n}\n", scenario.Source)
}

func TestLoadScenario_PassesDefaulting(t *testing.T) {
	dir := t.TempDir()

	absent := writeScenario(t, dir, "absent.yaml", `
name: absent
description: "No passes key"
source: "kernel k() {\n}\n"
assertions:
  - type: stmt_count
    kernel: k
    count: 0
`)
	s, err := LoadScenario(absent)
	require.NoError(t, err)
	assert.Nil(t, s.Passes)
	assert.Equal(t, []string{"dce", "cse", "sink"}, s.passes())

	empty := writeScenario(t, dir, "empty.yaml", `
name: empty
description: "Explicitly no passes"
source: "kernel k() {\n}\n"
passes: []
assertions:
  - type: stmt_count
    kernel: k
    count: 0
`)
	s, err = LoadScenario(empty)
	require.NoError(t, err)
	assert.NotNil(t, s.Passes)
	assert.Empty(t, s.passes())
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name: "unknown field",
			content: `
name: x
description: d
source: "kernel k() {\n}\n"
assertion:
  - type: trace_contains
`,
			errMsg: "failed to parse YAML",
		},
		{
			name: "missing name",
			content: `
description: d
source: "kernel k() {\n}\n"
assertions:
  - type: trace_contains
    op: comm_fence
`,
			errMsg: "name is required",
		},
		{
			name: "missing source",
			content: `
name: x
description: d
assertions:
  - type: trace_contains
    op: comm_fence
`,
			errMsg: "source or source_file is required",
		},
		{
			name: "missing assertions",
			content: `
name: x
description: d
source: "kernel k() {\n}\n"
`,
			errMsg: "assertions list is required",
		},
		{
			name: "unknown pass",
			content: `
name: x
description: d
source: "kernel k() {\n}\n"
passes: [inline]
assertions:
  - type: trace_contains
    op: comm_fence
`,
			errMsg: `unknown pass "inline"`,
		},
		{
			name: "bad intrinsic effect",
			content: `
name: x
description: d
source: "kernel k() {\n}\n"
intrinsics:
  - name: shape
    arity: 1
    effect: impure
assertions:
  - type: trace_contains
    op: comm_fence
`,
			errMsg: "intrinsics[0]",
		},
		{
			name: "bad mesh",
			content: `
name: x
description: d
source: "kernel k() {\n}\n"
target:
  name: t
  mesh: {x: 0, y: 4}
assertions:
  - type: trace_contains
    op: comm_fence
`,
			errMsg: "mesh dimensions must be positive",
		},
		{
			name: "unknown assertion type",
			content: `
name: x
description: d
source: "kernel k() {\n}\n"
assertions:
  - type: final_state
`,
			errMsg: `unknown assertion type "final_state"`,
		},
		{
			name: "trace_order without ops",
			content: `
name: x
description: d
source: "kernel k() {\n}\n"
assertions:
  - type: trace_order
`,
			errMsg: "ops list is required",
		},
		{
			name: "compile_error without code",
			content: `
name: x
description: d
source: "kernel k() {\n}\n"
assertions:
  - type: compile_error
    contains: oops
`,
			errMsg: "code is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), "s.yaml", tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestScenarioRegistry(t *testing.T) {
	s := &Scenario{Intrinsics: []IntrinsicDef{{Name: "shape", Arity: 1, Effect: "pure"}}}
	reg, err := s.registry()
	require.NoError(t, err)

	d, err := reg.Lookup("shape")
	require.NoError(t, err)
	assert.Equal(t, "pure", d.Effect.String())

	_, err = reg.Lookup("comm_put")
	assert.NoError(t, err, "builtins stay registered")

	dup := &Scenario{Intrinsics: []IntrinsicDef{{Name: "comm_put", Arity: 4, Effect: "pure"}}}
	_, err = dup.registry()
	assert.Error(t, err)
}
