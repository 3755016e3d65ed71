package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetsCmd(t *testing.T) {
	setupCLI(t)

	stdout, _, err := executeCommand(rootCmd, "datasets", "--variant", "B")
	require.NoError(t, err)

	out := lines(stdout)
	require.Len(t, out, 10)
	assert.Contains(t, out[0], "PROFILE")
	assert.Contains(t, stdout, "1,400,000")
	assert.Contains(t, stdout, "1.020000")

	var activeRows int
	for _, l := range out[1:] {
		if strings.HasPrefix(l, "B*") {
			activeRows++
			assert.Contains(t, l, "true")
		}
	}
	assert.Equal(t, 3, activeRows)
}

func TestVersionCmd(t *testing.T) {
	setupCLI(t)

	stdout, _, err := executeCommand(rootCmd, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "delaycalc version "+version)
	assert.Contains(t, stdout, "Go Version:")
}
