package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	debugMode        bool
	settingsPath     string
	systemPromptPath string
	userPromptPath   string
	schemaPath       string
)

var openAIVoices = []struct {
	Name        string
	Description string
}{
	{"alloy", "Neutral, balanced voice"},
	{"echo", "Male voice"},
	{"fable", "British male voice"},
	{"onyx", "Deep male voice"},
	{"nova", "Female voice"},
	{"shimmer", "Soft female voice"},
}

var rootCmd = &cobra.Command{
	Use:   "podcast-writer",
	Short: "Turn blog articles into narrated podcast episodes",
	Long: `Fetches an article, asks a language model for an SSML script and
synthesizes the segments into a single podcast file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Set debug mode globally
		if debugMode {
			SetDebugMode(true)
		}
	},
}

// app bundles what every command needs
type app struct {
	config *Config
	creds  *Credentials
	joiner *AudioJoiner
}

func newApp() (*app, error) {
	overrides := &ConfigOverrides{}
	if settingsPath != "" {
		overrides.SettingsPath = &settingsPath
	}
	if systemPromptPath != "" {
		overrides.SystemPromptPath = &systemPromptPath
	}
	if userPromptPath != "" {
		overrides.UserPromptPath = &userPromptPath
	}
	if schemaPath != "" {
		overrides.SchemaPath = &schemaPath
	}

	config, err := NewConfig(overrides)
	if err != nil {
		return nil, err
	}
	creds, err := LoadCredentials()
	if err != nil {
		return nil, err
	}

	return &app{
		config: config,
		creds:  creds,
		joiner: NewAudioJoiner(ProbeJoinCapability()),
	}, nil
}

func (a *app) newGenerator() (*ScriptWriter, error) {
	client, err := NewCompletionClient(a.config.Settings.Generator, a.config.GetScriptSchema(), a.creds)
	if err != nil {
		client = unavailableClient{err: err}
	}
	return NewScriptWriter(client, a.config)
}

// newOrchestrator builds a pipeline that synthesizes with provider
func (a *app) newOrchestrator(provider string) (*Orchestrator, error) {
	tts := a.config.Settings.TTS
	backend, err := NewAudioBackend(provider, tts, a.creds)
	if err != nil {
		return nil, err
	}
	generator, err := a.newGenerator()
	if err != nil {
		return nil, err
	}

	return NewOrchestrator(
		NewContentFetcher(a.config.Settings.Fetch),
		generator,
		NewSynthesizer(backend, tts.Concurrency, tts.RequestsPerSecond),
		a.joiner,
	), nil
}

func (a *app) audioRequest(provider, voice string) AudioRequest {
	return AudioRequest{
		OutputDir: a.config.Settings.OutputDirectory,
		FinalFile: a.config.Settings.FinalFile,
		Voice:     voiceFor(provider, voice, a.config.Settings.TTS),
	}
}

func (a *app) provider(flag string) string {
	if flag != "" {
		return flag
	}
	return a.config.Settings.TTS.Provider
}

func newPipelineCmd() *cobra.Command {
	var (
		url, text, textFile, feedURL string
		item                         int
		voice, provider, jsonOut     string
	)

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run the complete pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := 0
			for _, s := range []string{url, text, textFile, feedURL} {
				if s != "" {
					sources++
				}
			}
			if sources != 1 {
				return fmt.Errorf("exactly one of --url, --text, --text-file or --feed is required")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			provider = a.provider(provider)
			orchestrator, err := a.newOrchestrator(provider)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if feedURL != "" {
				url, err = ResolveFeedItem(ctx, feedURL, item)
				if err != nil {
					return err
				}
			}

			fmt.Println("→ Running full pipeline")
			req := a.audioRequest(provider, voice)
			var result RunResult
			if url != "" {
				fmt.Printf("Source: %s\n", url)
				result = orchestrator.RunFromURL(ctx, url, req)
			} else {
				input, err := readTextInput(text, textFile)
				if err != nil {
					return err
				}
				fmt.Printf("Source: text input (%d chars)\n", len(input))
				result = orchestrator.RunFromText(ctx, input, req)
			}

			printExecutionLog(result)

			if jsonOut != "" {
				if err := writeJSON(jsonOut, result); err != nil {
					return err
				}
				fmt.Printf("Run saved to %s\n", jsonOut)
			}

			if !result.Succeeded {
				return fmt.Errorf("pipeline failed: %s", result.Error)
			}
			fmt.Printf("\n✓ Pipeline complete\nFinal podcast: %s\n", result.Data.Audio.FinalPodcast)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Blog URL to convert")
	cmd.Flags().StringVar(&text, "text", "", "Article text")
	cmd.Flags().StringVar(&textFile, "text-file", "", "Path to a text file")
	cmd.Flags().StringVar(&feedURL, "feed", "", "RSS/Atom feed URL; converts the item selected by --item")
	cmd.Flags().IntVar(&item, "item", 0, "Feed item index (0 = first)")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice name (openai) or voice ID (elevenlabs)")
	cmd.Flags().StringVar(&provider, "provider", "", "Speech provider: openai or elevenlabs")
	cmd.Flags().StringVar(&jsonOut, "json", "", "Write the run result as JSON to this file")
	return cmd
}

func newScrapeCmd() *cobra.Command {
	var url, output string

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Extract article text from a URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			fmt.Printf("→ Scraping %s\n", url)
			content, err := NewContentFetcher(a.config.Settings.Fetch).FetchFromURL(cmd.Context(), url)
			if err != nil {
				fmt.Printf("❌ Failed: %v\n", err)
				return err
			}

			fmt.Printf("✅ Extracted %d characters\n", len(content))
			fmt.Printf("Preview: %s\n", preview(content, previewChars))

			if output != "" {
				if err := os.WriteFile(output, []byte(content), 0644); err != nil {
					return fmt.Errorf("writing %s: %w", output, err)
				}
				fmt.Printf("Content saved to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Blog URL to scrape")
	cmd.Flags().StringVar(&output, "output", "", "Save content to file")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var text, textFile, output string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze article structure",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readTextInput(text, textFile)
			if err != nil {
				return err
			}

			analysis := AnalyzeContent(input)
			data, err := json.MarshalIndent(analysis, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println("✅ Analysis complete:")
			fmt.Println(string(data))

			if output != "" {
				if err := writeJSON(output, analysis); err != nil {
					return err
				}
				fmt.Printf("Analysis saved to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Article text")
	cmd.Flags().StringVar(&textFile, "text-file", "", "Path to a text file")
	cmd.Flags().StringVar(&output, "output", "", "Save analysis to JSON file")
	return cmd
}

func newScriptCmd() *cobra.Command {
	var text, textFile, output string

	cmd := &cobra.Command{
		Use:     "script",
		Aliases: []string{"ssml"},
		Short:   "Generate the SSML episode plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readTextInput(text, textFile)
			if err != nil {
				return err
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			generator, err := a.newGenerator()
			if err != nil {
				return err
			}

			analysis := AnalyzeContent(input)
			fmt.Println("→ Generating SSML segments")
			plan, err := generator.Generate(cmd.Context(), input, &analysis)
			if err != nil {
				fmt.Printf("❌ Failed: %v\n", err)
				return err
			}

			fmt.Printf("✅ Generated %d SSML segments\n", len(plan.Segments))
			fmt.Printf("Title: %s\n", plan.Title)

			if output != "" {
				if err := writeJSON(output, plan); err != nil {
					return err
				}
				fmt.Printf("Plan saved to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Article text")
	cmd.Flags().StringVar(&textFile, "text-file", "", "Path to a text file")
	cmd.Flags().StringVar(&output, "output", "", "Save the episode plan to JSON file")
	return cmd
}

func newAudioCmd() *cobra.Command {
	var planFile, voice, provider string

	cmd := &cobra.Command{
		Use:   "audio",
		Short: "Synthesize and join a saved episode plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(planFile)
			if err != nil {
				return fmt.Errorf("reading plan: %w", err)
			}
			var plan EpisodePlan
			if err := json.Unmarshal(data, &plan); err != nil {
				return fmt.Errorf("parsing plan %s: %w", planFile, err)
			}
			if err := normalizeSegments(&plan); err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			provider = a.provider(provider)
			orchestrator, err := a.newOrchestrator(provider)
			if err != nil {
				return err
			}

			req := a.audioRequest(provider, voice)
			fmt.Printf("→ Producing audio (provider: %s, voice: %s)\n", provider, displayVoice(req.Voice))
			result, err := orchestrator.ProduceAudio(cmd.Context(), plan.Segments, req)
			if err != nil {
				fmt.Printf("❌ Failed: %v\n", err)
				return err
			}

			fmt.Println("✅ Audio production complete")
			fmt.Printf("Segments: %d\n", result.SegmentCount)
			fmt.Printf("Final podcast: %s\n", result.FinalPodcast)
			return nil
		},
	}

	cmd.Flags().StringVar(&planFile, "plan-file", "", "Path to an episode plan JSON file")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice name (openai) or voice ID (elevenlabs)")
	cmd.Flags().StringVar(&provider, "provider", "", "Speech provider: openai or elevenlabs")
	_ = cmd.MarkFlagRequired("plan-file")
	return cmd
}

func newVoicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List the OpenAI preset voices",
		Run: func(cmd *cobra.Command, args []string) {
			for _, v := range openAIVoices {
				fmt.Printf("%-8s %s\n", v.Name, v.Description)
			}
		},
	}
}

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline as a JSON HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.config.Settings.Server.Address
			}

			server := NewServer(a.config.Settings, a.joiner.Tier(), a.newOrchestrator)

			go func() {
				<-cmd.Context().Done()
				if err := server.Shutdown(); err != nil {
					logError("server", "Shutdown failed", map[string]any{"error": err.Error()})
				}
			}()
			return server.Listen(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to server.address in settings)")
	return cmd
}

// readTextInput returns text, or the contents of textFile when text is empty
func readTextInput(text, textFile string) (string, error) {
	if text != "" && textFile != "" {
		return "", fmt.Errorf("use either --text or --text-file, not both")
	}
	if text != "" {
		return text, nil
	}
	if textFile == "" {
		return "", fmt.Errorf("--text or --text-file is required")
	}
	data, err := os.ReadFile(textFile)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", textFile, err)
	}
	return string(data), nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func printExecutionLog(result RunResult) {
	fmt.Println("\nExecution log:")
	for _, entry := range result.ExecutionLog {
		icon := "✅"
		if !entry.Success {
			icon = "❌"
		}
		fmt.Printf("%s %s: %s\n", icon, entry.Agent, entry.Step)
		if entry.Error != "" {
			fmt.Printf("   Error: %s\n", entry.Error)
		}
	}
}

func displayVoice(voice string) string {
	if strings.TrimSpace(voice) == "" {
		return "default"
	}
	return voice
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Path to a settings YAML file")
	rootCmd.PersistentFlags().StringVar(&systemPromptPath, "system-prompt", "", "Path to a custom script system prompt")
	rootCmd.PersistentFlags().StringVar(&userPromptPath, "user-prompt", "", "Path to a custom script user prompt")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "", "Path to a custom script output schema")

	rootCmd.AddCommand(
		newPipelineCmd(),
		newScrapeCmd(),
		newAnalyzeCmd(),
		newScriptCmd(),
		newAudioCmd(),
		newVoicesCmd(),
		newServeCmd(),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
