package main

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigDir     = ".podcast-writer"
	defaultMaxInputChars = 120000
	defaultElevenVoiceID = "21m00Tcm4TlvDq8ikWAM"
)

// ConfigOverrides allows overriding embedded defaults with file paths
type ConfigOverrides struct {
	SystemPromptPath *string
	UserPromptPath   *string
	SchemaPath       *string
	SettingsPath     *string
}

// Embedded configuration files
//
//go:embed config/script-system-prompt.md
var defaultSystemPrompt string

//go:embed config/script-user-prompt.md
var defaultUserPrompt string

//go:embed config/script-output-schema.json
var defaultScriptSchema string

//go:embed config/settings.yaml
var defaultSettings string

// GeneratorSettings configures the script generation backend
type GeneratorSettings struct {
	Provider      string  `yaml:"provider"`
	Model         string  `yaml:"model"`
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float64 `yaml:"temperature"`
	MaxInputChars int     `yaml:"max_input_chars"`
}

// TTSSettings configures the speech synthesis backend
type TTSSettings struct {
	Provider          string  `yaml:"provider"`
	Voice             string  `yaml:"voice"`
	Model             string  `yaml:"model"`
	Concurrency       int     `yaml:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// FetchSettings configures article fetching
type FetchSettings struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
}

// ServerSettings configures the HTTP API
type ServerSettings struct {
	Address string `yaml:"address"`
}

// Settings represents the YAML configuration structure
type Settings struct {
	OutputDirectory string            `yaml:"output_directory"`
	FinalFile       string            `yaml:"final_file"`
	Generator       GeneratorSettings `yaml:"generator"`
	TTS             TTSSettings       `yaml:"tts"`
	Fetch           FetchSettings     `yaml:"fetch"`
	Server          ServerSettings    `yaml:"server"`
}

// Credentials holds the service keys, read from the environment
type Credentials struct {
	AnthropicAPIKey   string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey      string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string `env:"OPENAI_BASE_URL"`
	ElevenLabsAPIKey  string `env:"ELEVEN_LABS_API_KEY"`
	ElevenLabsVoiceID string `env:"ELEVEN_LABS_VOICE_ID" envDefault:"21m00Tcm4TlvDq8ikWAM"`
}

// Config holds configuration and overrides
type Config struct {
	Settings  *Settings
	Overrides *ConfigOverrides
}

// NewConfig creates a new Config with settings and overrides
func NewConfig(overrides *ConfigOverrides) (*Config, error) {
	var (
		settings *Settings
		err      error
	)
	if overrides != nil && overrides.SettingsPath != nil {
		// An explicit settings file must exist
		settings, err = loadSettingsRequired(*overrides.SettingsPath)
	} else {
		if err := ensureConfigExists(); err != nil {
			return nil, fmt.Errorf("ensuring config files exist: %w", err)
		}
		settings, err = loadSettings(getConfigPath("settings.yaml"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	return &Config{
		Settings:  settings,
		Overrides: overrides,
	}, nil
}

// LoadCredentials reads service keys from the environment, after loading .env if present
func LoadCredentials() (*Credentials, error) {
	_ = godotenv.Load()

	var creds Credentials
	if err := env.Parse(&creds); err != nil {
		return nil, fmt.Errorf("parsing credentials from environment: %w", err)
	}
	return &creds, nil
}

// GetSystemPrompt returns the script system prompt (from override file or embedded)
func (c *Config) GetSystemPrompt() string {
	return c.overrideOr(func(o *ConfigOverrides) *string { return o.SystemPromptPath }, defaultSystemPrompt)
}

// GetUserPrompt returns the script user prompt template (from override file or embedded)
func (c *Config) GetUserPrompt() string {
	return c.overrideOr(func(o *ConfigOverrides) *string { return o.UserPromptPath }, defaultUserPrompt)
}

// GetScriptSchema returns the structured output schema (from override file or embedded)
func (c *Config) GetScriptSchema() string {
	return c.overrideOr(func(o *ConfigOverrides) *string { return o.SchemaPath }, defaultScriptSchema)
}

func (c *Config) overrideOr(path func(*ConfigOverrides) *string, fallback string) string {
	if c.Overrides == nil {
		return fallback
	}
	p := path(c.Overrides)
	if p == nil {
		return fallback
	}
	content, err := os.ReadFile(*p)
	if err != nil {
		logWarn("config", "Override file unreadable, using embedded default", map[string]any{
			"path":  *p,
			"error": err.Error(),
		})
		return fallback
	}
	return string(content)
}

// parseSettings decodes YAML on top of the embedded defaults
func parseSettings(data []byte) (*Settings, error) {
	var settings Settings
	if err := yaml.Unmarshal([]byte(defaultSettings), &settings); err != nil {
		return nil, fmt.Errorf("failed to parse embedded settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings YAML: %w", err)
	}
	applySettingsDefaults(&settings)
	return &settings, nil
}

func applySettingsDefaults(s *Settings) {
	if s.OutputDirectory == "" {
		s.OutputDirectory = filepath.Join("audio", "segments")
	}
	if s.FinalFile == "" {
		s.FinalFile = filepath.Join("audio", "podcast.mp3")
	}
	if s.Generator.MaxInputChars <= 0 {
		s.Generator.MaxInputChars = defaultMaxInputChars
	}
	if s.Generator.MaxTokens <= 0 {
		s.Generator.MaxTokens = 4000
	}
	if s.TTS.Concurrency <= 0 {
		s.TTS.Concurrency = 1
	}
	if s.Fetch.TimeoutSeconds <= 0 {
		s.Fetch.TimeoutSeconds = 20
	}
	if s.Server.Address == "" {
		s.Server.Address = ":8080"
	}
}

// loadSettings loads settings from a YAML file, falling back to the embedded defaults
func loadSettings(settingsPath string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		logDebug("config", "Settings file missing, using embedded defaults", map[string]any{"path": settingsPath})
		return parseSettings(nil)
	}
	return parseSettings(data)
}

// loadSettingsRequired loads settings from a YAML file, failing if the file doesn't exist
func loadSettingsRequired(settingsPath string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %s: %w", settingsPath, err)
	}
	return parseSettings(data)
}

// getConfigPath returns the path to a config file in the .podcast-writer directory
func getConfigPath(filename string) string {
	return filepath.Join(defaultConfigDir, filename)
}

// ensureConfigExists creates the config directory and writes settings.yaml if needed
func ensureConfigExists() error {
	if err := os.MkdirAll(defaultConfigDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	settingsPath := getConfigPath("settings.yaml")
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		if err := os.WriteFile(settingsPath, []byte(defaultSettings), 0644); err != nil {
			return fmt.Errorf("writing settings.yaml: %w", err)
		}
	}

	return nil
}
