package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCompletion records the prompts it receives and replies with a fixed body
type stubCompletion struct {
	reply      string
	err        error
	calls      int
	lastSystem string
	lastUser   string
}

func (s *stubCompletion) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.calls++
	s.lastSystem = systemPrompt
	s.lastUser = userPrompt
	return s.reply, s.err
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	settings, err := parseSettings(nil)
	require.NoError(t, err)
	return &Config{Settings: settings}
}

const validPlanJSON = `{
  "title": "Small Teams",
  "hook": "Why do small teams ship faster?",
  "sections": ["Coordination", "Context"],
  "cta": "Subscribe for more.",
  "segments": [
    {"filename": "seg-001.mp3", "ssml": "<speak>Welcome.</speak>"},
    {"filename": "seg-002.mp3", "ssml": "<speak>Coordination <break time=\"500ms\"/> matters.</speak>"},
    {"filename": "seg-003.mp3", "ssml": "<speak>Thanks for listening.</speak>"}
  ]
}`

func TestNewScriptWriter(t *testing.T) {
	config := testConfig(t)

	writer, err := NewScriptWriter(&stubCompletion{}, config)

	require.NoError(t, err)
	assert.Equal(t, defaultSystemPrompt, writer.systemPrompt)
	assert.Equal(t, defaultMaxInputChars, writer.maxInputChars)
}

func TestNewScriptWriterRequiresArticleVariable(t *testing.T) {
	promptPath := writeTempFile(t, "user-prompt.md", "Convert this into a podcast.")
	config := testConfig(t)
	config.Overrides = &ConfigOverrides{UserPromptPath: &promptPath}

	_, err := NewScriptWriter(&stubCompletion{}, config)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "{{.article}}")
}

func TestScriptWriterGenerate(t *testing.T) {
	client := &stubCompletion{reply: "Here is your plan:\n```json\n" + validPlanJSON + "\n```"}
	writer, err := NewScriptWriter(client, testConfig(t))
	require.NoError(t, err)

	analysis := AnalyzeContent(strings.Repeat("word ", 1500))
	plan, err := writer.Generate(context.Background(), "The article body.", &analysis)

	require.NoError(t, err)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, "Small Teams", plan.Title)
	assert.Equal(t, []string{"Coordination", "Context"}, plan.Sections)
	require.Len(t, plan.Segments, 3)
	assert.Equal(t, "seg-002.mp3", plan.Segments[1].Filename)

	assert.Contains(t, client.lastUser, "The article body.")
	assert.Contains(t, client.lastUser, "Split the content into 5 segments")
	assert.NotContains(t, client.lastUser, "{{.")
	assert.Equal(t, defaultSystemPrompt, client.lastSystem)
}

func TestScriptWriterGenerateWithoutAnalysis(t *testing.T) {
	client := &stubCompletion{reply: validPlanJSON}
	writer, err := NewScriptWriter(client, testConfig(t))
	require.NoError(t, err)

	_, err = writer.Generate(context.Background(), "text", nil)

	require.NoError(t, err)
	assert.Contains(t, client.lastUser, "Split the content into 3-8 segments")
}

func TestScriptWriterTruncatesInput(t *testing.T) {
	client := &stubCompletion{reply: validPlanJSON}
	writer, err := NewScriptWriter(client, testConfig(t))
	require.NoError(t, err)
	writer.maxInputChars = 10

	_, err = writer.Generate(context.Background(), "ééééééééééTAIL", nil)

	require.NoError(t, err)
	assert.Contains(t, client.lastUser, "éééééééééé")
	assert.NotContains(t, client.lastUser, "TAIL")
}

func TestScriptWriterGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		err     error
		wantMsg string
	}{
		{
			name:    "service failure",
			err:     errors.New("rate limited"),
			wantMsg: "rate limited",
		},
		{
			name:    "no JSON object",
			reply:   "Sorry, I cannot help with that.",
			wantMsg: "no JSON object",
		},
		{
			name:    "unparseable JSON",
			reply:   `{"title": "x", "segments": [}`,
			wantMsg: "failed to parse episode plan",
		},
		{
			name:    "empty segments",
			reply:   `{"segments": []}`,
			wantMsg: "no segments generated",
		},
		{
			name:    "missing segments",
			reply:   `{"title": "No audio"}`,
			wantMsg: "no segments generated",
		},
		{
			name:    "duplicate filenames",
			reply:   `{"segments": [{"filename": "a.mp3", "ssml": "<speak>1</speak>"}, {"filename": "dir/a.mp3", "ssml": "<speak>2</speak>"}]}`,
			wantMsg: "duplicate segment filename",
		},
		{
			name:    "empty markup",
			reply:   `{"segments": [{"filename": "a.mp3", "ssml": "  "}]}`,
			wantMsg: "has no markup",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer, err := NewScriptWriter(&stubCompletion{reply: tt.reply, err: tt.err}, testConfig(t))
			require.NoError(t, err)

			plan, err := writer.Generate(context.Background(), "text", nil)

			assert.Nil(t, plan)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrGeneration)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestNormalizeSegments(t *testing.T) {
	plan := &EpisodePlan{Segments: []Segment{
		{Filename: "", Markup: "Hello there."},
		{Filename: "../../etc/passwd", Markup: "<speak>Second</speak>"},
		{Filename: "  ", Markup: `<?xml version="1.0"?><speak>Third</speak>`},
	}}

	require.NoError(t, normalizeSegments(plan))

	assert.Equal(t, "seg-001.mp3", plan.Segments[0].Filename)
	assert.Equal(t, "<speak>Hello there.</speak>", plan.Segments[0].Markup)
	assert.Equal(t, "passwd", plan.Segments[1].Filename)
	assert.Equal(t, "<speak>Second</speak>", plan.Segments[1].Markup)
	assert.Equal(t, "seg-003.mp3", plan.Segments[2].Filename)
	assert.True(t, strings.HasPrefix(plan.Segments[2].Markup, "<?xml"))
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"under limit", "short", 10, "short"},
		{"at limit", "exact", 5, "exact"},
		{"over limit", "truncate me", 8, "truncate"},
		{"multibyte", "日本語のテキスト", 3, "日本語"},
		{"disabled", "anything", 0, "anything"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateRunes(tt.in, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestNewCompletionClient(t *testing.T) {
	gen := GeneratorSettings{Model: "claude-sonnet-4-20250514", MaxTokens: 100}

	tests := []struct {
		name     string
		provider string
		creds    Credentials
		wantType any
		wantErr  error
	}{
		{"anthropic", "anthropic", Credentials{AnthropicAPIKey: "k"}, &AnthropicClient{}, nil},
		{"default is anthropic", "", Credentials{AnthropicAPIKey: "k"}, &AnthropicClient{}, nil},
		{"openai", "OpenAI", Credentials{OpenAIAPIKey: "k"}, &OpenAIChatClient{}, nil},
		{"anthropic missing key", "anthropic", Credentials{}, nil, ErrMissingCredential},
		{"openai missing key", "openai", Credentials{AnthropicAPIKey: "k"}, nil, ErrMissingCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen.Provider = tt.provider
			client, err := NewCompletionClient(gen, defaultScriptSchema, &tt.creds)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, client)
		})
	}

	_, err := NewCompletionClient(GeneratorSettings{Provider: "bard"}, "", &Credentials{})
	assert.ErrorContains(t, err, "unknown generator provider")
}

func TestOpenAIChatClientDefaultsModel(t *testing.T) {
	client, err := NewOpenAIChatClient("k", "", GeneratorSettings{Model: "claude-sonnet-4-20250514"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", client.model)
}

func TestUnavailableClientSurfacesErrorAtGeneration(t *testing.T) {
	writer, err := NewScriptWriter(unavailableClient{err: missingCredential("ANTHROPIC_API_KEY")}, testConfig(t))
	require.NoError(t, err)

	_, err = writer.Generate(context.Background(), "text", nil)

	assert.ErrorIs(t, err, ErrGeneration)
	assert.ErrorIs(t, err, ErrMissingCredential)
}
