package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"delaycalc/internal/benchmark"
	"delaycalc/internal/delay"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	saved  []benchmark.Run
	latest *benchmark.Run
	asked  []string
	closed bool
}

func (m *mockStore) Save(run *benchmark.Run) error {
	run.ID = int64(len(m.saved) + 1)
	m.saved = append(m.saved, *run)
	return nil
}

func (m *mockStore) LoadLatest(variant string) (*benchmark.Run, error) {
	m.asked = append(m.asked, variant)
	return m.latest, nil
}

func (m *mockStore) LoadAll() ([]benchmark.Run, error) {
	return m.saved, nil
}

func (m *mockStore) Close() error {
	m.closed = true
	return nil
}

func useMockStore(t *testing.T, s *mockStore) *benchmark.StoreConfig {
	t.Helper()
	var got benchmark.StoreConfig
	newStoreFunc = func(cfg benchmark.StoreConfig) (benchmark.Store, error) {
		got = cfg
		return s, nil
	}
	return &got
}

func noGit(t *testing.T) {
	t.Helper()
	old := sweepExecCommand
	sweepExecCommand = func(name string, args ...string) *exec.Cmd { return exec.Command("false") }
	t.Cleanup(func() { sweepExecCommand = old })
}

func TestSweepCmd_Table(t *testing.T) {
	sleeper := setupCLI(t)

	stdout, stderr, err := executeCommand(rootCmd, "sweep", "--variant", "C", "--threads", "1,2", "--datasets", "data3", "--repeat", "2")
	require.NoError(t, err)

	assert.Contains(t, stderr, "Running sweep: profile C, 2 cases x 2 runs")
	out := lines(stdout)
	require.Len(t, out, 3)
	assert.Contains(t, out[0], "DATASET")
	assert.Contains(t, out[1], "1.020000")
	assert.Contains(t, out[2], "0.510000")

	assert.Equal(t, []time.Duration{
		1020 * time.Millisecond, 1020 * time.Millisecond,
		510 * time.Millisecond, 510 * time.Millisecond,
	}, sleeper.Calls())
}

func TestSweepCmd_CSVAllDatasets(t *testing.T) {
	setupCLI(t)

	stdout, _, err := executeCommand(rootCmd, "sweep", "--threads", "4", "--repeat", "1", "--format", "csv")
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(stdout)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"data1", "4"}, records[1][:2])
	assert.Equal(t, "0.125000", records[2][3])
	assert.Equal(t, "0.350000", records[3][3])
}

func TestSweepCmd_InvalidCases(t *testing.T) {
	sleeper := setupCLI(t)

	_, _, err := executeCommand(rootCmd, "sweep", "--threads", "2,0")
	assert.Equal(t, delay.DivisionByZero, delay.KindOf(err))

	_, _, err = executeCommand(rootCmd, "sweep", "--datasets", "data9")
	assert.Equal(t, delay.UnknownDataset, delay.KindOf(err))

	_, _, err = executeCommand(rootCmd, "sweep", "--repeat", "0")
	assert.ErrorContains(t, err, "repeat must be at least 1")

	_, _, err = executeCommand(rootCmd, "sweep", "--format", "xml", "--threads", "1", "--repeat", "1", "--datasets", "data1")
	assert.ErrorContains(t, err, `unsupported format "xml"`)

	assert.Len(t, sleeper.Calls(), 1, "only the run with a valid matrix slept")
}

func TestSweepCmd_SaveAndCompare(t *testing.T) {
	sleeper := setupCLI(t)
	sleeper.real = true
	noGit(t)

	store := &mockStore{
		latest: &benchmark.Run{
			ID:        7,
			Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Variant:   "A",
			Cases: []benchmark.Case{
				{Dataset: "data2", Threads: 1, DelayMicros: 500_000, Stats: benchmark.Stats{Mean: 0.0001}},
			},
		},
	}
	cfg := useMockStore(t, store)
	logPath := filepath.Join(t.TempDir(), "delaycalc.log")

	stdout, stderr, err := executeCommand(rootCmd, "sweep", "--threads", "1", "--datasets", "data2", "--repeat", "1",
		"--save", "--compare", "--store", "sqlite", "--dsn", "x.db", "--log-file", logPath)
	require.NoError(t, err)

	logs, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logs), `"msg":"sweep run 1 of profile A saved to sqlite store"`)
	assert.Contains(t, stdout, "OVERHEAD Δ")

	assert.Equal(t, benchmark.StoreConfig{Type: "sqlite", ConnectionString: "x.db"}, *cfg)
	assert.Equal(t, []string{"A"}, store.asked)
	assert.Contains(t, stdout, "Compared with run 7")
	assert.Contains(t, stdout, "data2/1")
	assert.Contains(t, stdout, benchmark.StatusFail)
	assert.Contains(t, stderr, "Results saved as run 1")
	require.Len(t, store.saved, 1)
	assert.Equal(t, "A", store.saved[0].Variant)
	assert.Empty(t, store.saved[0].Commit)
	assert.True(t, store.closed)

	_, _, err = executeCommand(rootCmd, "sweep", "--threads", "1", "--datasets", "data2", "--repeat", "1",
		"--compare", "--fail-on-regression")
	assert.ErrorContains(t, err, "1 case(s) regressed by more than 10.0%")
}

func TestPrintComparison(t *testing.T) {
	prev := benchmark.Run{Cases: []benchmark.Case{
		{Dataset: "data3", Threads: 2, DelayMicros: 510_000, Stats: benchmark.Stats{Mean: 0.512}},
		{Dataset: "data1", Threads: 1, DelayMicros: 1_200_000, Stats: benchmark.Stats{Mean: 1.3}},
	}}
	curr := benchmark.Run{Cases: []benchmark.Case{
		{Dataset: "data3", Threads: 2, DelayMicros: 510_000, Stats: benchmark.Stats{Mean: 0.515}},
		{Dataset: "data1", Threads: 1, DelayMicros: 1_200_000, Stats: benchmark.Stats{Mean: 1.201}},
	}}

	var buf bytes.Buffer
	printComparison(&buf, benchmark.Compare(prev, curr), 5)

	out := lines(buf.String())
	require.Len(t, out, 3)
	assert.Contains(t, out[0], "OVERHEAD Δ")
	assert.Contains(t, out[1], "data3/2")
	assert.Contains(t, out[1], "+0.003000")
	assert.Contains(t, out[1], benchmark.StatusPass)
	assert.Contains(t, out[2], "-0.099000")
	assert.Contains(t, out[2], benchmark.StatusImproved)
}

func TestSweepCmd_NotifiesRegressions(t *testing.T) {
	sleeper := setupCLI(t)
	sleeper.real = true

	var received string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		received, _ = payload["text"].(string)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	t.Setenv("DELAYCALC_NOTIFY_SLACK_WEBHOOK_URL", server.URL)

	useMockStore(t, &mockStore{
		latest: &benchmark.Run{ID: 3, Variant: "A", Cases: []benchmark.Case{
			{Dataset: "data1", Threads: 2, Stats: benchmark.Stats{Mean: 0.0001}},
		}},
	})

	_, stderr, err := executeCommand(rootCmd, "sweep", "--threads", "2", "--datasets", "data1", "--repeat", "1", "--compare")
	require.NoError(t, err)
	assert.NotContains(t, stderr, "Warning")
	assert.Contains(t, received, "profile A regressed by more than 10.0%")
	assert.Contains(t, received, "data1/2: +")
}

func TestSweepCmd_Progress(t *testing.T) {
	setupCLI(t)

	stdout, stderr, err := executeCommand(rootCmd, "sweep", "--threads", "1,2", "--datasets", "data1", "--repeat", "2", "--progress")
	require.NoError(t, err)
	assert.Len(t, lines(stdout), 3)
	assert.Contains(t, stderr, "SWEEP A")
	assert.Contains(t, stderr, "4/4")
}

func TestSweepCmd_CompareWithoutHistory(t *testing.T) {
	setupCLI(t)
	store := &mockStore{}
	cfg := useMockStore(t, store)

	stdout, stderr, err := executeCommand(rootCmd, "sweep", "--threads", "1", "--datasets", "data1", "--repeat", "1",
		"--compare", "--format", "json")
	require.NoError(t, err)

	// defaults come from config
	assert.Equal(t, "json", cfg.Type)
	var run benchmark.Run
	require.NoError(t, json.Unmarshal([]byte(stdout), &run))
	assert.Len(t, run.Cases, 1)
	assert.Contains(t, stderr, "No previous run of profile A")
	assert.Empty(t, store.saved)
}

func TestSweepCmd_SQLiteHistoryRoundTrip(t *testing.T) {
	setupCLI(t)
	noGit(t)
	dsn := filepath.Join(t.TempDir(), "history.db")

	_, _, err := executeCommand(rootCmd, "sweep", "--variant", "B", "--threads", "2", "--repeat", "2", "--save", "--store", "sqlite", "--dsn", dsn)
	require.NoError(t, err)

	stdout, _, err := executeCommand(rootCmd, "history", "--store", "sqlite", "--dsn", dsn)
	require.NoError(t, err)
	out := lines(stdout)
	require.Len(t, out, 2)
	assert.Contains(t, out[0], "PROFILE")
	assert.Contains(t, out[1], "B")
	assert.Contains(t, out[1], "-", "no commit outside a repository")
}

func TestSweepCmd_ExecExternalProgram(t *testing.T) {
	setupCLI(t)
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	// $0 and $1 are the thread count and dataset appended by the executor
	script := `test "$0 $1" = "2 data3" || exit 3; printf 0.510000; printf 1.020000 >&2`

	stdout, _, err := executeCommand(rootCmd, "sweep", "--variant", "C", "--threads", "2", "--datasets", "data3", "--repeat", "1",
		"--format", "json", "--exec", "sh", "--exec-arg", "-c", "--exec-arg", script)
	require.NoError(t, err)

	var run benchmark.Run
	require.NoError(t, json.Unmarshal([]byte(stdout), &run))
	require.Len(t, run.Cases, 1)
	assert.Equal(t, "0.510000", run.Cases[0].Stdout)
	assert.Equal(t, 0.51, run.Cases[0].ReportedDelay)
	assert.Equal(t, 1.02, run.Cases[0].ReportedBase)
}

func TestSweepCmd_ExecReportsWrongValue(t *testing.T) {
	setupCLI(t)
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	stdout, _, err := executeCommand(rootCmd, "sweep", "--variant", "C", "--threads", "2", "--datasets", "data3", "--repeat", "1",
		"--exec", "sh", "--exec-arg", "-c", "--exec-arg", "printf 1.020000; printf 1.020000 >&2")
	assert.EqualError(t, err, "case data3/2: stdout reported 1.020000, expected 0.510000")
	assert.Empty(t, stdout)
}
