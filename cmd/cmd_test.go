package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMaintenanceCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "quantiz.db")
	common := []string{"--db", db, "--log-level", "error"}
	run := func(args ...string) string {
		t.Helper()
		out, err := execute(t, append(args, common...)...)
		require.NoError(t, err, out)
		return out
	}

	out := run("seed", "--seed", "7")
	assert.Contains(t, out, "Seeded 800 items (bank now holds 800)")

	out = run("pool", "list", "--topic", "Algebra", "--limit", "5")
	assert.Contains(t, out, "Algebra")
	assert.Contains(t, out, "... 95 more")
	assert.NotContains(t, out, "Probability")

	out = run("stats")
	assert.Contains(t, out, "Items in bank:       800")
	assert.Contains(t, out, "Sessions started:    0")

	out = run("blocks", "no-such-session")
	assert.Contains(t, out, "No blocks found")

	_, err := execute(t, append([]string{"reset"}, common...)...)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "--yes"))

	out = run("reset", "--yes")
	assert.Contains(t, out, "Event log cleared.")

	out = run("stats")
	assert.Contains(t, out, "Items in bank:       800", "reset keeps the item bank")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "quantiz (devel)\n", out)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "stats", "--db", filepath.Join(t.TempDir(), "q.db"), "--log-level", "loud")
	require.Error(t, err)
}
