package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// compiledDB compiles the kernel testdata into a fresh store and returns its
// path with the kernel summaries.
func compiledDB(t *testing.T) (string, []KernelSummary) {
	t.Helper()
	db := filepath.Join(t.TempDir(), "tlcomm.db")

	out, err := execute(t, "compile", kernelsDir, "--db", db, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data CompileSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Data.BuildID)
	return db, resp.Data.Kernels
}

func TestShowByPrefix(t *testing.T) {
	db, kernels := compiledDB(t)
	ring := kernels[1]
	require.Equal(t, "ring", ring.Name)

	out, err := execute(t, "show", ring.Hash[:10], "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "# "+ring.Hash+" ("+filepath.Join(kernelsDir, "ring.tl")+")")
	assert.Contains(t, out, "kernel ring(A, B) {")
	assert.Contains(t, out, "T.comm_put(A, B, T.CoreId(1), 64)  # opaque")
}

func TestShowVerboseListsCalls(t *testing.T) {
	db, kernels := compiledDB(t)

	out, err := execute(t, "show", kernels[0].Hash, "--db", db, "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "comm_reduce/4 opaque")
	assert.Contains(t, out, "comm_barrier/1 opaque")
}

func TestShowJSON(t *testing.T) {
	db, kernels := compiledDB(t)

	out, err := execute(t, "show", kernels[1].Hash, "--db", db, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data struct {
			Hash  string `json:"hash"`
			Name  string `json:"name"`
			Calls []struct {
				Op string `json:"op"`
			} `json:"calls"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, kernels[1].Hash, resp.Data.Hash)
	assert.Equal(t, "ring", resp.Data.Name)
	assert.Len(t, resp.Data.Calls, 8)
}

func TestShowUnknownHash(t *testing.T) {
	db, _ := compiledDB(t)

	out, err := execute(t, "show", "ffffffffffff", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E009]")
}

func TestShowMissingDatabase(t *testing.T) {
	out, err := execute(t, "show", "abc", "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Contains(t, out, "Error [E008]")
	assert.Contains(t, out, "database not found")
}
