package main

// Analysis holds the structural metrics computed over article text
type Analysis struct {
	WordCount         int     `json:"word_count"`
	ReadingMinutes    float64 `json:"estimated_reading_minutes"`
	SuggestedSegments int     `json:"suggested_segments"`
	Preview           string  `json:"content_preview"`
	Recommendation    string  `json:"recommendation"`
}

// Segment is one narrated unit of an episode
type Segment struct {
	Filename string `json:"filename"`
	Markup   string `json:"ssml"`
}

// EpisodePlan is the structured script produced by the script generator
type EpisodePlan struct {
	Title    string    `json:"title"`
	Hook     string    `json:"hook"`
	Sections []string  `json:"sections"`
	CTA      string    `json:"cta"`
	Segments []Segment `json:"segments"`
}

// ScrapeResult is the payload of the content extraction step
type ScrapeResult struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	Length  int    `json:"length"`
}

// AudioResult is the payload of the synthesis and join step
type AudioResult struct {
	SegmentCount int      `json:"segment_count"`
	SegmentPaths []string `json:"segment_paths"`
	FinalPodcast string   `json:"final_podcast"`
	Provider     string   `json:"tts_provider"`
}

// LogEntry records the outcome of one attempted pipeline step
type LogEntry struct {
	Step    string `json:"step"`
	Agent   string `json:"agent"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RunData bundles the payload of every step that ran
type RunData struct {
	Scraper  *ScrapeResult `json:"scraper,omitempty"`
	Analysis *Analysis     `json:"analysis,omitempty"`
	Plan     *EpisodePlan  `json:"podcast_plan,omitempty"`
	Audio    *AudioResult  `json:"audio,omitempty"`
}

// RunResult is the outcome of one pipeline run
type RunResult struct {
	RunID        string     `json:"run_id"`
	Succeeded    bool       `json:"success"`
	Data         *RunData   `json:"data,omitempty"`
	Error        string     `json:"error,omitempty"`
	ExecutionLog []LogEntry `json:"execution_log"`
}

// AudioRequest selects where and how a run produces audio
type AudioRequest struct {
	OutputDir string
	FinalFile string
	Voice     string
	// RunScoped places segments and the final file in a directory named after the run ID
	RunScoped bool
}
