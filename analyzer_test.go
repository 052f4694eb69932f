package main

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("podcast ", n))
}

func TestAnalyzeContent(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantWords    int
		wantMinutes  float64
		wantSegments int
	}{
		{"empty", "", 0, 0, 3},
		{"whitespace only", " \n\t ", 0, 0, 3},
		{"100 words clamps up", words(100), 100, 0.5, 3},
		{"900 words", words(900), 900, 4.5, 3},
		{"1500 words", words(1500), 1500, 7.5, 5},
		{"3000 words clamps down", words(3000), 3000, 15, 8},
		{"mixed whitespace", "one\ttwo\nthree  four", 4, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnalyzeContent(tt.text)

			if got.WordCount != tt.wantWords {
				t.Errorf("WordCount = %d, want %d", got.WordCount, tt.wantWords)
			}
			if got.ReadingMinutes != tt.wantMinutes {
				t.Errorf("ReadingMinutes = %v, want %v", got.ReadingMinutes, tt.wantMinutes)
			}
			if got.SuggestedSegments != tt.wantSegments {
				t.Errorf("SuggestedSegments = %d, want %d", got.SuggestedSegments, tt.wantSegments)
			}
			if got.Recommendation != podcastSuitableNote {
				t.Errorf("Recommendation = %q", got.Recommendation)
			}
		})
	}
}

func TestAnalyzeContentSegmentsAlwaysInRange(t *testing.T) {
	for n := 0; n <= 5000; n += 37 {
		got := AnalyzeContent(words(n)).SuggestedSegments
		if got < 3 || got > 8 {
			t.Fatalf("SuggestedSegments for %d words = %d, want within [3, 8]", n, got)
		}
	}
}

func TestAnalyzeContentReadingMinutesRounding(t *testing.T) {
	tests := []struct {
		words int
		want  float64
	}{
		{30, 0.1},  // 0.15 is stored just below the tie
		{50, 0.2},  // exact tie rounds to even
		{250, 1.2}, // exact tie rounds to even
		{350, 1.8}, // exact tie rounds to even
		{270, 1.4},
		{1000, 5},
	}

	for _, tt := range tests {
		if got := AnalyzeContent(words(tt.words)).ReadingMinutes; got != tt.want {
			t.Errorf("ReadingMinutes for %d words = %v, want %v", tt.words, got, tt.want)
		}
	}
}

func TestPreview(t *testing.T) {
	short := "A short article."
	if got := AnalyzeContent(short).Preview; got != short {
		t.Errorf("Preview = %q, want %q", got, short)
	}

	if got := AnalyzeContent("").Preview; got != "" {
		t.Errorf("Preview of empty text = %q, want empty", got)
	}

	exact := strings.Repeat("a", 200)
	if got := AnalyzeContent(exact).Preview; got != exact {
		t.Errorf("Preview of 200 chars should not be truncated")
	}

	long := strings.Repeat("ü", 250)
	got := AnalyzeContent(long).Preview
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Preview = %q, want trailing ...", got)
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(got, "...")); n != 200 {
		t.Errorf("Preview kept %d characters, want 200", n)
	}
	if !utf8.ValidString(got) {
		t.Error("Preview split a multibyte character")
	}
}
