package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseSettingsDefaults(t *testing.T) {
	settings, err := parseSettings(nil)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join("audio", "segments"), settings.OutputDirectory)
	assert.Equal(t, filepath.Join("audio", "podcast.mp3"), settings.FinalFile)
	assert.Equal(t, "anthropic", settings.Generator.Provider)
	assert.Equal(t, 120000, settings.Generator.MaxInputChars)
	assert.Equal(t, "openai", settings.TTS.Provider)
	assert.Equal(t, "alloy", settings.TTS.Voice)
	assert.Positive(t, settings.TTS.Concurrency)
	assert.Equal(t, 20, settings.Fetch.TimeoutSeconds)
	assert.Equal(t, ":8080", settings.Server.Address)
}

func TestParseSettingsOverridesDefaults(t *testing.T) {
	data := []byte(`
output_directory: out/segs
generator:
  provider: openai
  model: gpt-4o
tts:
  provider: elevenlabs
  concurrency: 0
`)

	settings, err := parseSettings(data)

	require.NoError(t, err)
	assert.Equal(t, "out/segs", settings.OutputDirectory)
	assert.Equal(t, filepath.Join("audio", "podcast.mp3"), settings.FinalFile, "unset keys keep defaults")
	assert.Equal(t, "openai", settings.Generator.Provider)
	assert.Equal(t, "gpt-4o", settings.Generator.Model)
	assert.Equal(t, 4000, settings.Generator.MaxTokens)
	assert.Equal(t, "elevenlabs", settings.TTS.Provider)
	assert.Equal(t, 1, settings.TTS.Concurrency)
}

func TestParseSettingsInvalidYAML(t *testing.T) {
	_, err := parseSettings([]byte("generator: [unclosed"))
	assert.ErrorContains(t, err, "failed to parse settings YAML")
}

func TestLoadSettings(t *testing.T) {
	settings, err := loadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "openai", settings.TTS.Provider)

	_, err = loadSettingsRequired(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read settings file")

	path := writeTempFile(t, "settings.yaml", "final_file: episode.mp3\n")
	settings, err = loadSettingsRequired(path)
	require.NoError(t, err)
	assert.Equal(t, "episode.mp3", settings.FinalFile)
}

func TestNewConfigWithSettingsOverride(t *testing.T) {
	path := writeTempFile(t, "settings.yaml", "server:\n  address: \":9999\"\n")

	config, err := NewConfig(&ConfigOverrides{SettingsPath: &path})

	require.NoError(t, err)
	assert.Equal(t, ":9999", config.Settings.Server.Address)

	missing := filepath.Join(t.TempDir(), "nope.yaml")
	_, err = NewConfig(&ConfigOverrides{SettingsPath: &missing})
	assert.Error(t, err)
}

func TestConfigPromptOverrides(t *testing.T) {
	system := writeTempFile(t, "system.md", "custom system")
	missing := filepath.Join(t.TempDir(), "missing.md")

	config := &Config{
		Settings:  &Settings{},
		Overrides: &ConfigOverrides{SystemPromptPath: &system, SchemaPath: &missing},
	}

	assert.Equal(t, "custom system", config.GetSystemPrompt())
	assert.Equal(t, defaultUserPrompt, config.GetUserPrompt())
	assert.Equal(t, defaultScriptSchema, config.GetScriptSchema(), "unreadable override falls back")
}

func TestEmbeddedDefaults(t *testing.T) {
	assert.Contains(t, defaultUserPrompt, "{{.article}}")
	assert.Contains(t, defaultUserPrompt, "{{.segments}}")
	assert.NotEmpty(t, strings.TrimSpace(defaultSystemPrompt))

	var schema struct {
		Name   string         `json:"name"`
		Strict bool           `json:"strict"`
		Schema map[string]any `json:"schema"`
	}
	require.NoError(t, json.Unmarshal([]byte(defaultScriptSchema), &schema))
	assert.Equal(t, "podcast_script", schema.Name)
	assert.True(t, schema.Strict)
	assert.Contains(t, schema.Schema["required"], "segments")
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-key")
	t.Setenv("OPENAI_API_KEY", "openai-key")
	for _, key := range []string{"ELEVEN_LABS_API_KEY", "ELEVEN_LABS_VOICE_ID"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	creds, err := LoadCredentials()

	require.NoError(t, err)
	assert.Equal(t, "anthropic-key", creds.AnthropicAPIKey)
	assert.Equal(t, "openai-key", creds.OpenAIAPIKey)
	assert.Empty(t, creds.ElevenLabsAPIKey)
	assert.Equal(t, defaultElevenVoiceID, creds.ElevenLabsVoiceID)
}
