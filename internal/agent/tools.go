package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Tool is one capability the agent can invoke during a research run.
type Tool interface {
	Name() string
	Description() string
	Run(ctx context.Context, input string) (string, error)
}

// SearchTool queries the DuckDuckGo instant answer API.
type SearchTool struct {
	httpClient *http.Client
	maxHits    int
}

func NewSearchTool(maxHits int) *SearchTool {
	if maxHits <= 0 {
		maxHits = 3
	}
	return &SearchTool{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		maxHits:    maxHits,
	}
}

func (t *SearchTool) Name() string        { return "search" }
func (t *SearchTool) Description() string { return "search the web for a query" }

func (t *SearchTool) Run(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("search input is empty")
	}

	endpoint := "https://api.duckduckgo.com/?format=json&no_html=1&q=" + url.QueryEscape(input)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build search request failed: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read search response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("search response status %d", resp.StatusCode)
	}

	var parsed struct {
		AbstractText  string `json:"AbstractText"`
		AbstractURL   string `json:"AbstractURL"`
		RelatedTopics []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"RelatedTopics"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse search json failed: %w", err)
	}

	var lines []string
	if parsed.AbstractText != "" {
		lines = append(lines, parsed.AbstractText+" ("+parsed.AbstractURL+")")
	}
	for _, topic := range parsed.RelatedTopics {
		if len(lines) >= t.maxHits {
			break
		}
		if topic.Text == "" {
			continue
		}
		lines = append(lines, topic.Text+" ("+topic.FirstURL+")")
	}
	if len(lines) == 0 {
		return "no results found", nil
	}
	return strings.Join(lines, "\n"), nil
}

// WikipediaTool fetches the top search snippet from the Wikipedia API,
// capped to maxChars of content.
type WikipediaTool struct {
	httpClient *http.Client
	maxChars   int
}

func NewWikipediaTool(maxChars int) *WikipediaTool {
	if maxChars <= 0 {
		maxChars = 400
	}
	return &WikipediaTool{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		maxChars:   maxChars,
	}
}

func (t *WikipediaTool) Name() string        { return "wikipedia" }
func (t *WikipediaTool) Description() string { return "look up a topic on wikipedia" }

func (t *WikipediaTool) Run(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("wikipedia input is empty")
	}

	endpoint := "https://en.wikipedia.org/w/api.php?action=query&list=search&format=json&srlimit=1&srsearch=" +
		url.QueryEscape(input)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build wikipedia request failed: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("wikipedia request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read wikipedia response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("wikipedia response status %d", resp.StatusCode)
	}

	var parsed struct {
		Query struct {
			Search []struct {
				Title   string `json:"title"`
				Snippet string `json:"snippet"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse wikipedia json failed: %w", err)
	}
	if len(parsed.Query.Search) == 0 {
		return "no wikipedia article found", nil
	}

	top := parsed.Query.Search[0]
	return truncateRunes(top.Title+": "+stripTags(top.Snippet), t.maxChars), nil
}

// truncateRunes caps s at max characters without splitting a rune.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SaveTextTool appends research data to a local text file with a timestamp
// header, so completed runs leave a durable trace on disk.
type SaveTextTool struct {
	filename string
}

func NewSaveTextTool(filename string) *SaveTextTool {
	if filename == "" {
		filename = "research_output.txt"
	}
	return &SaveTextTool{filename: filename}
}

func (t *SaveTextTool) Name() string        { return "save_txt" }
func (t *SaveTextTool) Description() string { return "saves research data into a text file" }

func (t *SaveTextTool) Run(ctx context.Context, input string) (string, error) {
	formatted := fmt.Sprintf("--- Research Output ---\nTimestamp: %s\n\n%s\n\n",
		time.Now().Format("2006-01-02 15:04:05"), input)

	f, err := os.OpenFile(t.filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open output file failed: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatted); err != nil {
		return "", fmt.Errorf("write output file failed: %w", err)
	}
	return fmt.Sprintf("data successfully saved to %s", t.filename), nil
}
