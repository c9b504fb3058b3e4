package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fppclabs/opinionsearch/pkg/version"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd()

	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"index", "search", "eval", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestVersionCommand_Short(t *testing.T) {
	out, err := runCommand(t, "--config-dir", t.TempDir(), "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Version, strings.TrimSpace(out))
}

func TestVersionCommand_JSON(t *testing.T) {
	out, err := runCommand(t, "--config-dir", t.TempDir(), "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version"`)
	assert.Contains(t, out, `"go_version"`)
}

func TestSearchCommand_FailsWithoutIndexes(t *testing.T) {
	t.Setenv("OPINIONSEARCH_INDEX_DIR", t.TempDir())

	_, err := runCommand(t, "--config-dir", t.TempDir(),
		"search", "--strategy", "lexical", "gift limits")
	require.Error(t, err)
}

func TestSearchCommand_RejectsUnknownStrategy(t *testing.T) {
	t.Setenv("OPINIONSEARCH_INDEX_DIR", t.TempDir())

	_, err := runCommand(t, "--config-dir", t.TempDir(),
		"search", "--strategy", "quantum", "gift limits")
	require.Error(t, err)
}
