package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// CompletionClient sends one system+user prompt pair to a language model
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ScriptGenerator turns article text into an episode plan
type ScriptGenerator interface {
	Generate(ctx context.Context, text string, analysis *Analysis) (*EpisodePlan, error)
}

// AnthropicClient completes prompts through llmkit with structured output
type AnthropicClient struct {
	apiKey   string
	schema   string
	settings types.RequestSettings
}

// NewAnthropicClient creates a client for the Anthropic messages API
func NewAnthropicClient(apiKey, schema string, gen GeneratorSettings) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, missingCredential("ANTHROPIC_API_KEY")
	}
	return &AnthropicClient{
		apiKey: apiKey,
		schema: schema,
		settings: types.RequestSettings{
			Model:       gen.Model,
			MaxTokens:   gen.MaxTokens,
			Temperature: gen.Temperature,
		},
	}, nil
}

func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	response, err := anthropic.PromptWithSettings(systemPrompt, userPrompt, c.schema, c.apiKey, c.settings)
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	var b strings.Builder
	for _, block := range response.Content {
		b.WriteString(block.Text)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no content in response")
	}
	return b.String(), nil
}

// OpenAIChatClient completes prompts through the chat completions API in JSON mode
type OpenAIChatClient struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewOpenAIChatClient creates a chat client; baseURL may be empty
func NewOpenAIChatClient(apiKey, baseURL string, gen GeneratorSettings) (*OpenAIChatClient, error) {
	if apiKey == "" {
		return nil, missingCredential("OPENAI_API_KEY")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: 5 * time.Minute}),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	model := gen.Model
	if model == "" || strings.HasPrefix(model, "claude") {
		model = openai.ChatModelGPT4o
	}

	return &OpenAIChatClient{
		client:      openai.NewClient(opts...),
		model:       model,
		maxTokens:   gen.MaxTokens,
		temperature: gen.Temperature,
	}, nil
}

func (c *OpenAIChatClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(c.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.maxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat request failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no content in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// NewCompletionClient picks the generator backend named in settings
func NewCompletionClient(gen GeneratorSettings, schema string, creds *Credentials) (CompletionClient, error) {
	switch strings.ToLower(gen.Provider) {
	case "", "anthropic":
		return NewAnthropicClient(creds.AnthropicAPIKey, schema, gen)
	case "openai":
		return NewOpenAIChatClient(creds.OpenAIAPIKey, creds.OpenAIBaseURL, gen)
	default:
		return nil, fmt.Errorf("unknown generator provider %q", gen.Provider)
	}
}

// ScriptWriter produces an EpisodePlan from article text with a language model
type ScriptWriter struct {
	client             CompletionClient
	systemPrompt       string
	userPromptTemplate string
	maxInputChars      int
}

// NewScriptWriter creates a ScriptWriter with prompts from config
func NewScriptWriter(client CompletionClient, config *Config) (*ScriptWriter, error) {
	userPromptTemplate := config.GetUserPrompt()

	// Validate that template contains required variables
	if !strings.Contains(userPromptTemplate, "{{.article}}") {
		return nil, fmt.Errorf("script user prompt template must contain {{.article}} variable")
	}

	return &ScriptWriter{
		client:             client,
		systemPrompt:       config.GetSystemPrompt(),
		userPromptTemplate: userPromptTemplate,
		maxInputChars:      config.Settings.Generator.MaxInputChars,
	}, nil
}

// Generate asks the model for an episode plan and validates the result
func (w *ScriptWriter) Generate(ctx context.Context, text string, analysis *Analysis) (*EpisodePlan, error) {
	userPrompt := w.buildUserPrompt(text, analysis)

	logDebug("generator", "Requesting episode plan", map[string]any{
		"input_chars":  len(text),
		"prompt_chars": len(userPrompt),
	})

	raw, err := w.client.Complete(ctx, w.systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	plan, err := parseEpisodePlan(raw)
	if err != nil {
		return nil, err
	}

	logInfo("generator", "Episode plan generated", map[string]any{
		"title":    plan.Title,
		"segments": len(plan.Segments),
	})
	return plan, nil
}

func (w *ScriptWriter) buildUserPrompt(text string, analysis *Analysis) string {
	segments := "3-8"
	if analysis != nil && analysis.SuggestedSegments > 0 {
		segments = strconv.Itoa(analysis.SuggestedSegments)
	}

	prompt := strings.ReplaceAll(w.userPromptTemplate, "{{.segments}}", segments)
	return strings.ReplaceAll(prompt, "{{.article}}", truncateRunes(text, w.maxInputChars))
}

// truncateRunes cuts s to at most limit characters; a non-positive limit disables truncation
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// parseEpisodePlan extracts the JSON object from a model reply and validates it
func parseEpisodePlan(raw string) (*EpisodePlan, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in model response", ErrGeneration)
	}

	var plan EpisodePlan
	if err := json.Unmarshal([]byte(raw[start:end+1]), &plan); err != nil {
		return nil, fmt.Errorf("%w: failed to parse episode plan: %w", ErrGeneration, err)
	}

	if err := normalizeSegments(&plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// normalizeSegments fills missing filenames, keeps names inside the output
// directory, rejects duplicates and wraps bare markup in a speak element
func normalizeSegments(plan *EpisodePlan) error {
	if len(plan.Segments) == 0 {
		return fmt.Errorf("%w: no segments generated", ErrGeneration)
	}

	seen := make(map[string]bool, len(plan.Segments))
	for i := range plan.Segments {
		seg := &plan.Segments[i]

		name := strings.TrimSpace(seg.Filename)
		if name != "" {
			name = filepath.Base(filepath.Clean(name))
		}
		if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
			name = fmt.Sprintf("seg-%03d.mp3", i+1)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate segment filename %q", ErrGeneration, name)
		}
		seen[name] = true
		seg.Filename = name

		markup := strings.TrimSpace(seg.Markup)
		if markup == "" {
			return fmt.Errorf("%w: segment %s has no markup", ErrGeneration, name)
		}
		if !strings.Contains(markup, "<speak") {
			markup = "<speak>" + markup + "</speak>"
		}
		seg.Markup = markup
	}
	return nil
}

// unavailableClient stands in for a backend that could not be configured,
// so the failure surfaces when the generation step runs
type unavailableClient struct {
	err error
}

func (c unavailableClient) Complete(context.Context, string, string) (string, error) {
	return "", c.err
}
