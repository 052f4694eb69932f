package main

import (
	"errors"
	"fmt"
)

var (
	ErrExtraction        = errors.New("content extraction failed")
	ErrAnalysis          = errors.New("content analysis failed")
	ErrGeneration        = errors.New("script generation failed")
	ErrSynthesis         = errors.New("audio synthesis failed")
	ErrJoin              = errors.New("audio join failed")
	ErrMissingCredential = errors.New("missing credential")
)

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// missingCredential reports an unset environment variable required by a backend
func missingCredential(envVar string) error {
	return fmt.Errorf("%w: %s environment variable not set", ErrMissingCredential, envVar)
}
