package main

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"delaycalc/internal/benchmark"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedHistory(t *testing.T, path string) {
	t.Helper()
	store, err := benchmark.NewFileStore(path)
	require.NoError(t, err)
	now := time.Now()
	for i, variant := range []string{"A", "C", "A"} {
		run := benchmark.Run{
			Timestamp: now.Add(time.Duration(i-3) * time.Hour),
			Variant:   variant,
			Cases:     []benchmark.Case{{Dataset: "data1", Threads: 1, Samples: []float64{1, 1}}},
		}
		require.NoError(t, store.Save(&run))
	}
}

func TestHistoryCmd(t *testing.T) {
	setupCLI(t)
	path := filepath.Join(t.TempDir(), "history.json")
	seedHistory(t, path)

	stdout, _, err := executeCommand(rootCmd, "history", "--dsn", path)
	require.NoError(t, err)
	out := lines(stdout)
	require.Len(t, out, 4)
	assert.Contains(t, out[0], "WHEN")
	// newest first
	assert.Contains(t, out[1], "3")
	assert.Contains(t, out[1], "hour ago")
	assert.Contains(t, out[3], "3 hours ago")

	stdout, _, err = executeCommand(rootCmd, "history", "--dsn", path, "--only", "a", "-n", "1", "--json")
	require.NoError(t, err)
	var runs []benchmark.Run
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, int64(3), runs[0].ID)
}

func TestHistoryCmd_Empty(t *testing.T) {
	setupCLI(t)

	stdout, _, err := executeCommand(rootCmd, "history", "--dsn", filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Equal(t, "No saved runs.\n", stdout)

	stdout, _, err = executeCommand(rootCmd, "history", "--dsn", filepath.Join(t.TempDir(), "none.json"), "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", stdout)
}

func TestHistoryCmd_BadStore(t *testing.T) {
	setupCLI(t)

	_, _, err := executeCommand(rootCmd, "history", "--store", "redis")
	assert.ErrorContains(t, err, "unsupported store type: redis")
}
