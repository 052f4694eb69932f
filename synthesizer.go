package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	elevenLabsBaseURL  = "https://api.elevenlabs.io"
	elevenLabsModel    = "eleven_multilingual_v2"
	defaultOpenAIVoice = "alloy"
)

// AudioBackend synthesizes one markup segment into encoded audio
type AudioBackend interface {
	Name() string
	CheckCredentials() error
	SynthesizeOne(ctx context.Context, segment Segment, voice string) ([]byte, error)
}

// NewAudioBackend returns the backend for provider ("openai" or "elevenlabs")
func NewAudioBackend(provider string, tts TTSSettings, creds *Credentials) (AudioBackend, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "openai":
		return NewOpenAISpeechBackend(creds.OpenAIAPIKey, creds.OpenAIBaseURL, tts.Model), nil
	case "elevenlabs", "eleven_labs", "eleven-labs":
		return NewElevenLabsBackend(creds.ElevenLabsAPIKey, creds.ElevenLabsVoiceID, ""), nil
	default:
		return nil, fmt.Errorf("unknown tts provider %q", provider)
	}
}

// ElevenLabsBackend calls the ElevenLabs text-to-speech REST API with raw markup
type ElevenLabsBackend struct {
	apiKey       string
	defaultVoice string
	baseURL      string
	client       *http.Client
}

// NewElevenLabsBackend creates the ElevenLabs backend; baseURL defaults to the public API
func NewElevenLabsBackend(apiKey, defaultVoice, baseURL string) *ElevenLabsBackend {
	if defaultVoice == "" {
		defaultVoice = defaultElevenVoiceID
	}
	if baseURL == "" {
		baseURL = elevenLabsBaseURL
	}
	return &ElevenLabsBackend{
		apiKey:       apiKey,
		defaultVoice: defaultVoice,
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: 2 * time.Minute},
	}
}

func (b *ElevenLabsBackend) Name() string { return "ElevenLabs" }

func (b *ElevenLabsBackend) CheckCredentials() error {
	if b.apiKey == "" {
		return missingCredential("ELEVEN_LABS_API_KEY")
	}
	return nil
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

func (b *ElevenLabsBackend) SynthesizeOne(ctx context.Context, segment Segment, voice string) ([]byte, error) {
	if voice == "" {
		voice = b.defaultVoice
	}

	body, err := json.Marshal(elevenLabsRequest{
		Text:          segment.Markup,
		ModelID:       elevenLabsModel,
		VoiceSettings: elevenLabsVoiceSettings{Stability: 0.5, SimilarityBoost: 0.5},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := b.baseURL + "/v1/text-to-speech/" + url.PathEscape(voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ElevenLabs API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(audio)))
	}
	return audio, nil
}

// OpenAISpeechBackend calls the OpenAI speech endpoint with markup reduced to plain text
type OpenAISpeechBackend struct {
	apiKey string
	client openai.Client
	model  string
}

// NewOpenAISpeechBackend creates the OpenAI speech backend; baseURL may be empty
func NewOpenAISpeechBackend(apiKey, baseURL, model string) *OpenAISpeechBackend {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: 2 * time.Minute}),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = openai.SpeechModelTTS1HD
	}
	return &OpenAISpeechBackend{
		apiKey: apiKey,
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (b *OpenAISpeechBackend) Name() string { return "OpenAI" }

func (b *OpenAISpeechBackend) CheckCredentials() error {
	if b.apiKey == "" {
		return missingCredential("OPENAI_API_KEY")
	}
	return nil
}

func (b *OpenAISpeechBackend) SynthesizeOne(ctx context.Context, segment Segment, voice string) ([]byte, error) {
	if voice == "" {
		voice = defaultOpenAIVoice
	}

	text := MarkupToSpeechText(segment.Markup)
	if text == "" {
		return nil, fmt.Errorf("segment %s has no speakable text", segment.Filename)
	}

	resp, err := b.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          b.model,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech request failed: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return audio, nil
}

var (
	xmlDeclPattern   = regexp.MustCompile(`<\?xml[^>]*\?>`)
	speakTagPattern  = regexp.MustCompile(`(?i)</?speak[^>]*>`)
	breakTagPattern  = regexp.MustCompile(`(?i)<break[^>]*/?>`)
	emphasisPattern  = regexp.MustCompile(`(?i)</?emphasis[^>]*>`)
	paraOpenPattern  = regexp.MustCompile(`(?i)<p(\s[^>]*)?>`)
	paraClosePattern = regexp.MustCompile(`(?i)</p\s*>`)
	anyTagPattern    = regexp.MustCompile(`<[^>]+>`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// MarkupToSpeechText reduces SSML to the plain text a non-SSML voice can read
func MarkupToSpeechText(markup string) string {
	text := xmlDeclPattern.ReplaceAllString(markup, "")
	text = speakTagPattern.ReplaceAllString(text, "")
	text = breakTagPattern.ReplaceAllString(text, " ")
	text = emphasisPattern.ReplaceAllString(text, "")
	text = paraOpenPattern.ReplaceAllString(text, "")
	text = paraClosePattern.ReplaceAllString(text, "\n")
	text = anyTagPattern.ReplaceAllString(text, "")
	text = spacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Synthesizer writes one audio file per segment through an AudioBackend
type Synthesizer struct {
	backend     AudioBackend
	concurrency int
	limiter     *rate.Limiter
}

// NewSynthesizer creates a synthesizer; requestsPerSecond <= 0 disables pacing
func NewSynthesizer(backend AudioBackend, concurrency int, requestsPerSecond float64) *Synthesizer {
	if concurrency <= 0 {
		concurrency = 1
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Synthesizer{
		backend:     backend,
		concurrency: concurrency,
		limiter:     rate.NewLimiter(limit, concurrency),
	}
}

// Provider returns the display name of the backend
func (s *Synthesizer) Provider() string {
	return s.backend.Name()
}

// Synthesize renders segments into outputDir and returns the paths of the
// files written, in segment order. Failed segments are skipped.
func (s *Synthesizer) Synthesize(ctx context.Context, segments []Segment, outputDir, voice string) ([]string, error) {
	if err := s.backend.CheckCredentials(); err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: no segments to synthesize", ErrSynthesis)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating output directory: %w", ErrSynthesis, err)
	}

	paths := make([]string, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, segment := range segments {
		g.Go(func() error {
			path, err := s.synthesizeSegment(gctx, segment, outputDir, voice)
			if err != nil {
				logWarn("synthesizer", "Segment failed, skipping", map[string]any{
					"segment":  segment.Filename,
					"provider": s.backend.Name(),
					"error":    err.Error(),
				})
				return nil
			}
			paths[i] = path
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}

	written := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			written = append(written, p)
		}
	}
	if len(written) == 0 {
		return nil, fmt.Errorf("%w: no audio segments were generated", ErrSynthesis)
	}

	logInfo("synthesizer", "Segments synthesized", map[string]any{
		"provider":  s.backend.Name(),
		"written":   len(written),
		"requested": len(segments),
	})
	return written, nil
}

func (s *Synthesizer) synthesizeSegment(ctx context.Context, segment Segment, outputDir, voice string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	audio, err := s.backend.SynthesizeOne(ctx, segment, voice)
	if err != nil {
		return "", err
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio response")
	}

	kind, _ := filetype.Match(audio)
	if !filetype.IsAudio(audio) {
		mime := kind.MIME.Value
		if mime == "" {
			mime = "unknown format"
		}
		return "", fmt.Errorf("response is not audio (%s)", mime)
	}
	logDebug("synthesizer", "Audio received", map[string]any{
		"segment": segment.Filename,
		"format":  kind.Extension,
		"bytes":   len(audio),
	})

	path := filepath.Join(outputDir, filepath.Base(segment.Filename))
	if err := os.WriteFile(path, audio, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
