package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/civichall/event-importer/internal/importer"
)

// OutputFormat specifies the summary output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// WriteSummary writes the run summary in the specified format
func WriteSummary(w io.Writer, summary *importer.Summary, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, summary)
	case FormatText:
		return writeText(w, summary)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs the summary as JSON
func writeJSON(w io.Writer, summary *importer.Summary) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(summary)
}

// writeText outputs the summary as human-readable text
func writeText(w io.Writer, summary *importer.Summary) error {
	fmt.Fprintf(w, "Import run %s\n", summary.RunID)

	for _, feedResult := range summary.Feeds {
		name := feedResult.Source.DisplayName
		if name == "" {
			name = feedResult.Source.Label
		}

		if feedResult.Error != "" {
			fmt.Fprintf(w, "\n%s: feed error: %s\n", name, feedResult.Error)
			continue
		}

		fmt.Fprintf(w, "\n%s:\n", name)
		writeStats(w, "  ", feedResult.Stats)
	}

	fmt.Fprintln(w, "\nOverall:")
	writeStats(w, "  ", summary.Overall)
	return nil
}

func writeStats(w io.Writer, indent string, stats importer.Stats) {
	fmt.Fprintf(w, "%stotal: %d, created: %d, updated: %d, skipped: %d, failed: %d\n",
		indent, stats.Total, stats.Created, stats.Updated, stats.Skipped, stats.Failed)
}
