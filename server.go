package main

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// OrchestratorFactory builds a pipeline for the named speech provider
type OrchestratorFactory func(provider string) (*Orchestrator, error)

// podcastRequest payload
type podcastRequest struct {
	URL      string `json:"url,omitempty"`
	Text     string `json:"text,omitempty"`
	Voice    string `json:"voice,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Server exposes the pipeline as a JSON HTTP API
type Server struct {
	app      *fiber.App
	settings *Settings
	joinTier JoinTier
	build    OrchestratorFactory
}

// NewServer creates the API and registers its routes
func NewServer(settings *Settings, joinTier JoinTier, build OrchestratorFactory) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "podcast-writer",
			DisableStartupMessage: true,
			ErrorHandler:          jsonErrorHandler,
		}),
		settings: settings,
		joinTier: joinTier,
		build:    build,
	}

	s.app.Get("/health", s.health)
	s.app.Post("/api/podcast", s.createPodcast)
	return s
}

// Listen serves requests on addr until the app is shut down
func (s *Server) Listen(addr string) error {
	logInfo("server", "Listening", map[string]any{"address": addr, "join_tier": string(s.joinTier)})
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and waits for in-flight runs
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "join_tier": string(s.joinTier)})
}

func (s *Server) createPodcast(c *fiber.Ctx) error {
	var req podcastRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid json")
	}

	req.URL = strings.TrimSpace(req.URL)
	hasText := strings.TrimSpace(req.Text) != ""
	if (req.URL == "") == !hasText {
		return fiber.NewError(http.StatusBadRequest, "exactly one of url or text is required")
	}

	provider := req.Provider
	if provider == "" {
		provider = s.settings.TTS.Provider
	}
	orchestrator, err := s.build(provider)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	audio := AudioRequest{
		OutputDir: s.settings.OutputDirectory,
		FinalFile: s.settings.FinalFile,
		Voice:     voiceFor(provider, req.Voice, s.settings.TTS),
		RunScoped: true,
	}

	var result RunResult
	if req.URL != "" {
		result = orchestrator.RunFromURL(c.UserContext(), req.URL, audio)
	} else {
		result = orchestrator.RunFromText(c.UserContext(), req.Text, audio)
	}

	status := http.StatusOK
	if !result.Succeeded {
		status = http.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(result)
}

func jsonErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// voiceFor picks the requested voice, or the configured default when it suits the provider
func voiceFor(provider, requested string, tts TTSSettings) string {
	if requested != "" {
		return requested
	}
	if strings.EqualFold(provider, tts.Provider) {
		return tts.Voice
	}
	// Empty lets the backend apply its own default
	return ""
}
