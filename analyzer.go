package main

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	wordsPerMinute      = 200
	wordsPerSegment     = 300
	minSegments         = 3
	maxSegments         = 8
	previewChars        = 200
	podcastSuitableNote = "Content is suitable for podcast conversion"
)

// AnalyzeContent computes word count, reading time, a suggested segment
// count and a short preview of text. It never fails.
func AnalyzeContent(text string) Analysis {
	wordCount := len(strings.Fields(text))

	return Analysis{
		WordCount:         wordCount,
		ReadingMinutes:    readingMinutes(wordCount),
		SuggestedSegments: clampSegments(wordCount / wordsPerSegment),
		Preview:           preview(text, previewChars),
		Recommendation:    podcastSuitableNote,
	}
}

// readingMinutes rounds to one decimal from the exact binary value, ties to even
func readingMinutes(wordCount int) float64 {
	minutes, _ := strconv.ParseFloat(strconv.FormatFloat(float64(wordCount)/wordsPerMinute, 'f', 1, 64), 64)
	return minutes
}

func clampSegments(n int) int {
	return max(minSegments, min(maxSegments, n))
}

// preview returns the first limit characters of text, with "..." appended when truncated
func preview(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + "..."
}
