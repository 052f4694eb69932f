package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func TestReadTextInput(t *testing.T) {
	path := writeTempFile(t, "article.txt", "from file")

	got, err := readTextInput("inline", "")
	require.NoError(t, err)
	assert.Equal(t, "inline", got)

	got, err = readTextInput("", path)
	require.NoError(t, err)
	assert.Equal(t, "from file", got)

	_, err = readTextInput("inline", path)
	assert.ErrorContains(t, err, "not both")

	_, err = readTextInput("", "")
	assert.ErrorContains(t, err, "is required")

	_, err = readTextInput("", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	plan := testPlan()

	require.NoError(t, writeJSON(path, plan))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded EpisodePlan
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *plan, decoded)
	assert.Contains(t, string(data), `"ssml"`)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	for _, want := range []string{"pipeline", "scrape", "analyze", "script", "audio", "voices", "serve"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}
