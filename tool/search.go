package tool

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/tools"
)

// Document is one search hit.
type Document struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Document, error)
}

// SearchTool is a Searcher that agents can also call as a langchaingo tool.
type SearchTool interface {
	Searcher
	tools.Tool
}

var (
	_ SearchTool = (*TavilySearch)(nil)
	_ SearchTool = (*BraveSearch)(nil)
)

const defaultTimeout = 30 * time.Second

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// FormatDocuments renders documents as a numbered text block for a model prompt.
func FormatDocuments(docs []Document) string {
	if len(docs) == 0 {
		return "No results found"
	}
	var sb strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&sb, "%d. Title: %s\nURL: %s\nContent: %s\n\n", i+1, d.Title, d.URL, d.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Contents returns the content of each document.
func Contents(docs []Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Content)
	}
	return out
}
