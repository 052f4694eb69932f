package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// ContentSource abstracts getting raw article text from a URL
type ContentSource interface {
	FetchFromURL(ctx context.Context, pageURL string) (string, error)
}

// ContentFetcher fetches a page once per extraction strategy and returns the
// text of the first strategy that yields a non-empty body
type ContentFetcher struct {
	extractors []ContentExtractor
	client     *http.Client
	userAgent  string
}

// NewContentFetcher creates a new content fetcher with the readability extractor
// followed by the raw HTML fallback
func NewContentFetcher(settings FetchSettings) *ContentFetcher {
	userAgent := settings.UserAgent
	if userAgent == "" {
		userAgent = browserUserAgent
	}
	timeout := time.Duration(settings.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	f := &ContentFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}

	// Register extractors (preferred first)
	f.AddExtractor(&ReadabilityExtractor{converter: md.NewConverter("", true, nil)})
	f.AddExtractor(&RawHTMLExtractor{}) // fallback

	return f
}

// AddExtractor adds an extraction strategy to the chain
func (f *ContentFetcher) AddExtractor(extractor ContentExtractor) {
	f.extractors = append(f.extractors, extractor)
}

// FetchFromURL tries each extraction strategy in order, fetching the page
// once per strategy, and fails with ErrExtraction when all come back empty
func (f *ContentFetcher) FetchFromURL(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("%w: invalid URL %q (must start with http:// or https://)", ErrExtraction, pageURL)
	}

	var failures []error
	for _, extractor := range f.extractors {
		text, err := f.extractWith(ctx, extractor, pageURL)
		if err != nil {
			logWarn("fetcher", "Extraction strategy failed", map[string]any{
				"strategy": extractor.Name(),
				"url":      pageURL,
				"error":    err.Error(),
			})
			failures = append(failures, fmt.Errorf("%s: %w", extractor.Name(), err))
			continue
		}

		logInfo("fetcher", "Extracted article text", map[string]any{
			"strategy": extractor.Name(),
			"url":      pageURL,
			"chars":    len(text),
		})
		return text, nil
	}

	if len(failures) == 0 {
		return "", fmt.Errorf("%w: no extractor configured for %s", ErrExtraction, pageURL)
	}
	return "", fmt.Errorf("%w: %s: %w", ErrExtraction, pageURL, errors.Join(failures...))
}

func (f *ContentFetcher) extractWith(ctx context.Context, extractor ContentExtractor, pageURL string) (string, error) {
	resp, err := f.get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	text, err := extractor.Extract(pageURL, resp)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("no text extracted")
	}
	return text, nil
}

func (f *ContentFetcher) get(ctx context.Context, pageURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: pageURL}
	}
	return resp, nil
}
