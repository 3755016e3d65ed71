package benchmark

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formatRun() Run {
	return Run{
		Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Variant:   "C",
		Cases: []Case{
			{
				Dataset:     "data3",
				Threads:     2,
				BaseMicros:  1_020_000,
				DelayMicros: 510_000,
				Samples:     []float64{0.512, 0.514},
				Stats:       Stats{Mean: 0.513, Median: 0.513, StdDev: 0.001, Min: 0.512, Max: 0.514, P95: 0.514},
			},
		},
	}
}

func TestWriteRun_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRun(&buf, formatRun(), FormatTable))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "DATASET")
	assert.Contains(t, lines[0], "OVERHEAD")
	assert.Contains(t, lines[1], "data3")
	assert.Contains(t, lines[1], "0.510000")
	assert.Contains(t, lines[1], "0.003000")
}

func TestWriteRun_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRun(&buf, formatRun(), FormatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, columns, records[0])
	assert.Equal(t, []string{"data3", "2", "1.020000", "0.510000", "0.513000", "0.513000", "0.001000", "0.512000", "0.514000", "0.514000", "0.003000", "2"}, records[1])
}

func TestWriteRun_Markdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRun(&buf, formatRun(), FormatMarkdown))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "| dataset | threads |"))
	assert.True(t, strings.HasPrefix(lines[1], "| --- |"))
	assert.True(t, strings.HasPrefix(lines[2], "| data3 | 2 |"))
}

func TestWriteRun_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRun(&buf, formatRun(), FormatJSON))

	var got Run
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "C", got.Variant)
	assert.Equal(t, 0.513, got.Cases[0].Stats.Mean)
}

func TestWriteRun_Unknown(t *testing.T) {
	err := WriteRun(&bytes.Buffer{}, formatRun(), "xml")
	assert.ErrorContains(t, err, `unsupported format "xml"`)
}

func TestWriteRun_Pretty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRun(&buf, formatRun(), FormatPretty))

	out := buf.String()
	assert.Contains(t, out, "Profile C")
	assert.Contains(t, out, "data3")
	assert.NotContains(t, out, "| --- |")
}
