// Package cli provides CLI utilities for birdsearch.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/NotDonCitron/birdsearch/internal/models"
	"github.com/NotDonCitron/birdsearch/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact is one result per line.
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// ParseOutputFormat maps a flag value to a SearchOutputFormat.
func ParseOutputFormat(s string) (SearchOutputFormat, error) {
	switch s {
	case "text":
		return OutputText, nil
	case "compact":
		return OutputCompact, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		writeSearchResultsCompact(w, response)
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms", response.Total, response.QueryTime)
	if response.EngineUsed == models.EngineFallback {
		fmt.Fprintf(w, " (degraded: index unavailable, unranked scan)")
	}
	fmt.Fprintf(w, "\n\n")
	for _, result := range response.Results {
		writeOneResult(w, result)
	}
}

func writeOneResult(w io.Writer, result *models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %.4f | ID: %d", result.Rank, result.RecordID)
	if result.IsFavorite {
		fmt.Fprintf(w, " | ★")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Name: %s\n", result.Name)
	if result.Path != "" {
		fmt.Fprintf(w, "Path: %s\n", result.Path)
	}
	if len(result.Tags) > 0 {
		fmt.Fprintf(w, "Tags: %s\n", strings.Join(result.Tags, ", "))
	}
	if result.Snippet != "" {
		fmt.Fprintf(w, "\n%s\n", utils.Truncate(result.Snippet, 200))
	}
	fmt.Fprintln(w)
}

func writeSearchResultsCompact(w io.Writer, response *models.SearchResponse) {
	for _, result := range response.Results {
		fmt.Fprintf(w, "%.4f\t%d\t%s\t%s\n", result.Rank, result.RecordID, result.Name, result.Path)
	}
}

// WriteSuggestions writes completion candidates, one per line, or as JSON.
func WriteSuggestions(w io.Writer, suggestions []string, format SearchOutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"suggestions": suggestions})
	}
	for _, s := range suggestions {
		fmt.Fprintln(w, s)
	}
	return nil
}

// WriteStats writes owner statistics in text or JSON form.
func WriteStats(w io.Writer, stats *models.Stats, format SearchOutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	fmt.Fprintf(w, "total_files:            %d\n", stats.TotalFiles)
	fmt.Fprintf(w, "workspaces_covered:     %d\n", stats.WorkspacesCovered)
	fmt.Fprintf(w, "avg_name_length:        %.1f\n", stats.AvgNameLength)
	fmt.Fprintf(w, "files_with_description: %d\n", stats.FilesWithDescription)
	fmt.Fprintf(w, "files_with_tags:        %d\n", stats.FilesWithTags)
	fmt.Fprintf(w, "coverage:               %.1f%%\n", stats.CoveragePercentage)
	return nil
}
