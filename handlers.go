package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// ContentExtractor turns a fetched page into article text
type ContentExtractor interface {
	Name() string
	Extract(pageURL string, resp *http.Response) (string, error)
}

// ReadabilityExtractor finds the main article with readability and renders it as Markdown
type ReadabilityExtractor struct {
	converter *md.Converter
}

func (e *ReadabilityExtractor) Name() string { return "readability" }

func (e *ReadabilityExtractor) Extract(pageURL string, resp *http.Response) (string, error) {
	parsedURL, _ := url.Parse(pageURL)

	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return "", fmt.Errorf("parsing readable content: %w", err)
	}

	if e.converter != nil && strings.TrimSpace(article.Content) != "" {
		markdown, err := e.converter.ConvertString(article.Content)
		if err == nil && strings.TrimSpace(markdown) != "" {
			return withTitle(article.Title, markdown), nil
		}
		debugConversion(pageURL, err)
	}

	return withTitle(article.Title, article.TextContent), nil
}

func debugConversion(pageURL string, err error) {
	fields := map[string]any{"url": pageURL}
	if err != nil {
		fields["error"] = err.Error()
	}
	logDebug("fetcher", "Markdown conversion empty, using plain text content", fields)
}

// withTitle prefixes body with a Markdown heading unless it already starts with the title
func withTitle(title, body string) string {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if body == "" || title == "" || strings.Contains(firstLine(body), title) {
		return body
	}
	return "# " + title + "\n\n" + body
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// RawHTMLExtractor strips all markup and returns the visible text, one text node per line
type RawHTMLExtractor struct{}

func (e *RawHTMLExtractor) Name() string { return "raw-html" }

func (e *RawHTMLExtractor) Extract(pageURL string, resp *http.Response) (string, error) {
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	return htmlText(doc), nil
}

// htmlText collects the trimmed text nodes of the document body in document order
func htmlText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, template, svg, head").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var lines []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, child *goquery.Selection) {
			if goquery.NodeName(child) == "#text" {
				if line := strings.TrimSpace(child.Text()); line != "" {
					lines = append(lines, line)
				}
				return
			}
			walk(child)
		})
	}
	walk(root)

	return strings.Join(lines, "\n")
}
