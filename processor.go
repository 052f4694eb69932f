package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// pipelineStep names one stage of a run as it appears in the execution log
type pipelineStep struct {
	label         string
	agent         string
	failurePrefix string
}

var (
	stepScrape   = pipelineStep{"Extract content from URL", "WebScraper", "Web scraping failed"}
	stepAnalyze  = pipelineStep{"Analyze content structure", "ContentAnalyzer", "Content analysis failed"}
	stepGenerate = pipelineStep{"Generate SSML segments", "SSMLSpecialist", "SSML generation failed"}
	stepProduce  = pipelineStep{"Generate and join audio", "AudioProducer", "Audio production failed"}
)

// RunContext holds the state of a single pipeline run
type RunContext struct {
	RunID     string
	StartedAt time.Time
	log       []LogEntry
	data      RunData
}

// NewRunContext starts a run with a fresh identifier and an empty log
func NewRunContext() *RunContext {
	return &RunContext{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		log:       make([]LogEntry, 0, 4),
	}
}

// Log returns a copy of the execution log so far
func (rc *RunContext) Log() []LogEntry {
	return append([]LogEntry(nil), rc.log...)
}

func (rc *RunContext) failure(step pipelineStep, message string) RunResult {
	logError("orchestrator", "Run failed", map[string]any{
		"run_id":   rc.RunID,
		"step":     step.label,
		"error":    message,
		"duration": time.Since(rc.StartedAt).String(),
	})
	return RunResult{
		RunID:        rc.RunID,
		Succeeded:    false,
		Error:        fmt.Sprintf("%s: %s", step.failurePrefix, message),
		ExecutionLog: rc.Log(),
	}
}

func (rc *RunContext) success() RunResult {
	logInfo("orchestrator", "Run completed", map[string]any{
		"run_id":   rc.RunID,
		"duration": time.Since(rc.StartedAt).String(),
	})
	data := rc.data
	return RunResult{
		RunID:        rc.RunID,
		Succeeded:    true,
		Data:         &data,
		ExecutionLog: rc.Log(),
	}
}

// execute runs one step and appends its entry to the run log
func execute[T any](rc *RunContext, step pipelineStep, fn func() (T, error)) StepResult[T] {
	logDebug("orchestrator", "Step started", map[string]any{"run_id": rc.RunID, "step": step.label})
	result := runStep(step.label, step.agent, fn)
	rc.log = append(rc.log, result.LogEntry())
	return result
}

// Orchestrator drives the four pipeline steps. It keeps no per-run state
// and may serve concurrent runs.
type Orchestrator struct {
	source      ContentSource
	generator   ScriptGenerator
	synthesizer *Synthesizer
	joiner      *AudioJoiner
}

// NewOrchestrator wires the pipeline collaborators
func NewOrchestrator(source ContentSource, generator ScriptGenerator, synthesizer *Synthesizer, joiner *AudioJoiner) *Orchestrator {
	return &Orchestrator{
		source:      source,
		generator:   generator,
		synthesizer: synthesizer,
		joiner:      joiner,
	}
}

// RunFromURL extracts the article at pageURL and turns it into an episode
func (o *Orchestrator) RunFromURL(ctx context.Context, pageURL string, req AudioRequest) RunResult {
	rc := NewRunContext()
	logInfo("orchestrator", "Run started", map[string]any{"run_id": rc.RunID, "url": pageURL})

	scraped := execute(rc, stepScrape, func() (*ScrapeResult, error) {
		if o.source == nil {
			return nil, fmt.Errorf("%w: no content source configured", ErrExtraction)
		}
		content, err := o.source.FetchFromURL(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		return &ScrapeResult{Content: content, Source: pageURL, Length: len(content)}, nil
	})
	if !scraped.Succeeded() {
		return rc.failure(stepScrape, scraped.ErrorMessage())
	}
	rc.data.Scraper = scraped.Payload()

	return o.runText(ctx, rc, scraped.Payload().Content, req)
}

// RunFromText turns text into an episode without fetching anything
func (o *Orchestrator) RunFromText(ctx context.Context, text string, req AudioRequest) RunResult {
	rc := NewRunContext()
	logInfo("orchestrator", "Run started", map[string]any{"run_id": rc.RunID, "chars": len(text)})

	return o.runText(ctx, rc, text, req)
}

func (o *Orchestrator) runText(ctx context.Context, rc *RunContext, text string, req AudioRequest) RunResult {
	analyzed := execute(rc, stepAnalyze, func() (*Analysis, error) {
		analysis := AnalyzeContent(text)
		return &analysis, nil
	})
	if !analyzed.Succeeded() {
		return rc.failure(stepAnalyze, analyzed.ErrorMessage())
	}
	rc.data.Analysis = analyzed.Payload()

	generated := execute(rc, stepGenerate, func() (*EpisodePlan, error) {
		return o.generator.Generate(ctx, text, analyzed.Payload())
	})
	if !generated.Succeeded() {
		return rc.failure(stepGenerate, generated.ErrorMessage())
	}
	rc.data.Plan = generated.Payload()

	produced := execute(rc, stepProduce, func() (*AudioResult, error) {
		return o.produceAudio(ctx, generated.Payload().Segments, req.forRun(rc.RunID))
	})
	if !produced.Succeeded() {
		return rc.failure(stepProduce, produced.ErrorMessage())
	}
	rc.data.Audio = produced.Payload()

	return rc.success()
}

// forRun resolves run-scoped output paths for runID
func (r AudioRequest) forRun(runID string) AudioRequest {
	if !r.RunScoped {
		return r
	}
	scoped := r
	scoped.OutputDir = filepath.Join(r.OutputDir, runID)
	scoped.FinalFile = filepath.Join(filepath.Dir(r.FinalFile), runID, filepath.Base(r.FinalFile))
	scoped.RunScoped = false
	return scoped
}

// ProduceAudio synthesizes and joins segments outside a full run
func (o *Orchestrator) ProduceAudio(ctx context.Context, segments []Segment, req AudioRequest) (*AudioResult, error) {
	return o.produceAudio(ctx, segments, req)
}

func (o *Orchestrator) produceAudio(ctx context.Context, segments []Segment, req AudioRequest) (*AudioResult, error) {
	paths, err := o.synthesizer.Synthesize(ctx, segments, req.OutputDir, req.Voice)
	if err != nil {
		return nil, err
	}

	final, err := o.joiner.Join(ctx, paths, req.FinalFile)
	if err != nil {
		return nil, err
	}

	return &AudioResult{
		SegmentCount: len(paths),
		SegmentPaths: paths,
		FinalPodcast: final,
		Provider:     o.synthesizer.Provider(),
	}, nil
}
