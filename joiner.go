package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// JoinTier names the strategy used to merge segment files
type JoinTier string

const (
	JoinTierFFmpeg JoinTier = "ffmpeg"
	JoinTierConcat JoinTier = "concat"

	segmentGapSeconds = 0.3
)

// JoinCapability records which audio tools were found on this host
type JoinCapability struct {
	Tier        JoinTier
	FFmpegPath  string
	FFprobePath string
}

// ProbeJoinCapability looks for ffmpeg and ffprobe on PATH
func ProbeJoinCapability() JoinCapability {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		logDebug("joiner", "ffmpeg not found, using byte concatenation", nil)
		return JoinCapability{Tier: JoinTierConcat}
	}

	capability := JoinCapability{Tier: JoinTierFFmpeg, FFmpegPath: ffmpegPath}
	if ffprobePath, err := exec.LookPath("ffprobe"); err == nil {
		capability.FFprobePath = ffprobePath
	}
	return capability
}

// commandResult is the captured output of one process run.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// AudioJoiner merges ordered segment files into one episode file
type AudioJoiner struct {
	capability JoinCapability
	runner     commandRunner
}

// NewAudioJoiner creates a joiner for the given host capability
func NewAudioJoiner(capability JoinCapability) *AudioJoiner {
	return &AudioJoiner{capability: capability, runner: &execRunner{}}
}

// Tier reports the preferred join strategy
func (j *AudioJoiner) Tier() JoinTier {
	return j.capability.Tier
}

// Join writes the segments at paths, in order, to outputFile and returns its path
func (j *AudioJoiner) Join(ctx context.Context, paths []string, outputFile string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("%w: no segment paths provided", ErrJoin)
	}
	if dir := filepath.Dir(outputFile); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("%w: creating output directory: %w", ErrJoin, err)
		}
	}

	if j.capability.Tier != JoinTierFFmpeg {
		return concatSegments(paths, outputFile)
	}

	readable := j.readableSegments(ctx, paths)
	if len(readable) == 0 {
		return "", fmt.Errorf("%w: none of %d segments could be read", ErrJoin, len(paths))
	}

	if err := j.ffmpegJoin(ctx, readable, outputFile); err != nil {
		logWarn("joiner", "ffmpeg join failed, falling back to byte concatenation", map[string]any{
			"error": err.Error(),
		})
		return concatSegments(readable, outputFile)
	}

	logInfo("joiner", "Segments joined", map[string]any{
		"tier":     string(JoinTierFFmpeg),
		"segments": len(readable),
		"output":   outputFile,
	})
	return outputFile, nil
}

// readableSegments drops segments that cannot be opened or decoded
func (j *AudioJoiner) readableSegments(ctx context.Context, paths []string) []string {
	readable := make([]string, 0, len(paths))
	for _, path := range paths {
		if err := j.probe(ctx, path); err != nil {
			logWarn("joiner", "Skipping unreadable segment", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}
		readable = append(readable, path)
	}
	return readable
}

func (j *AudioJoiner) probe(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return errors.New("segment file is empty")
	}
	if j.capability.FFprobePath == "" {
		return nil
	}

	result, err := j.runner.Run(ctx, j.capability.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(result.Stderr))
	}
	return nil
}

func (j *AudioJoiner) ffmpegJoin(ctx context.Context, paths []string, outputFile string) error {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for _, path := range paths {
		args = append(args, "-i", path)
	}
	args = append(args,
		"-filter_complex", joinFilterGraph(len(paths)),
		"-map", "[out]",
		"-c:a", "libmp3lame",
		"-q:a", "2",
		outputFile,
	)

	result, err := j.runner.Run(ctx, j.capability.FFmpegPath, args...)
	if err != nil {
		return fmt.Errorf("ffmpeg exited with code %d: %w: %s", result.ExitCode, err, strings.TrimSpace(result.Stderr))
	}
	if _, err := os.Stat(outputFile); err != nil {
		return fmt.Errorf("ffmpeg completed but output file is missing: %w", err)
	}
	return nil
}

// joinFilterGraph normalizes every input, pads all but the last with
// silence and concatenates them into the [out] stream
func joinFilterGraph(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[%d:a]aformat=sample_fmts=fltp:sample_rates=44100:channel_layouts=stereo", i)
		if i < n-1 {
			fmt.Fprintf(&b, ",apad=pad_dur=%g", segmentGapSeconds)
		}
		fmt.Fprintf(&b, "[a%d];", i)
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[a%d]", i)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=0:a=1[out]", n)
	return b.String()
}

// concatSegments appends the raw bytes of each segment to outputFile
func concatSegments(paths []string, outputFile string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("%w: no segment paths provided", ErrJoin)
	}

	out, err := os.Create(outputFile)
	if err != nil {
		return "", fmt.Errorf("%w: creating %s: %w", ErrJoin, outputFile, err)
	}
	defer out.Close()

	written := 0
	for _, path := range paths {
		if err := appendFile(out, path); err != nil {
			logWarn("joiner", "Skipping unreadable segment", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}
		written++
	}
	if written == 0 {
		return "", fmt.Errorf("%w: none of %d segments could be read", ErrJoin, len(paths))
	}

	if err := out.Close(); err != nil {
		return "", fmt.Errorf("%w: closing %s: %w", ErrJoin, outputFile, err)
	}

	logInfo("joiner", "Segments joined", map[string]any{
		"tier":     string(JoinTierConcat),
		"segments": written,
		"output":   outputFile,
	})
	return outputFile, nil
}

func appendFile(dst io.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	_, err = io.Copy(dst, in)
	return err
}
