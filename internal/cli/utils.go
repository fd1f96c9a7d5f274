// Package cli provides output formatting and the API client for the yomu CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/yomu/internal/ingest"
	"github.com/hyperjump/yomu/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteFeed writes a ranked article list to w in the given format.
func WriteFeed(w io.Writer, resp *models.FeedResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	writeFeedText(w, resp)
	return nil
}

func writeFeedText(w io.Writer, resp *models.FeedResponse) {
	var tags []string
	if resp.ModelVersion != "" {
		tags = append(tags, "model "+resp.ModelVersion)
	}
	if resp.Fallback {
		tags = append(tags, "fallback")
	}
	if resp.Cached {
		tags = append(tags, "cached")
	}
	suffix := ""
	if len(tags) > 0 {
		suffix = " (" + strings.Join(tags, ", ") + ")"
	}
	fmt.Fprintf(w, "\n%d of %d articles [%s]%s\n\n", len(resp.Articles), resp.Total, resp.Algorithm, suffix)
	for i, item := range resp.Articles {
		writeOneArticle(w, i+1, item)
	}
}

func writeOneArticle(w io.Writer, rank int, item models.RankedArticle) {
	a := item.Article
	if a == nil {
		return
	}
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "%d. %s\n", rank, a.Title)
	fmt.Fprintf(w, "   %s | %s | %s | score %.4f\n", a.Source, a.Category, Age(a.PublishedAt, time.Now()), item.Score)
	if item.ClickProbability > 0 || item.DwellSeconds > 0 {
		fmt.Fprintf(w, "   p(click) %.3f, dwell %.0fs\n", item.ClickProbability, item.DwellSeconds)
	}
	fmt.Fprintf(w, "   ID: %s\n   %s\n", a.ID, a.URL)
	if a.Summary != "" {
		fmt.Fprintf(w, "\n   %s\n", TruncateWords(a.Summary, 40))
	}
	fmt.Fprintln(w)
}

// WriteReport writes an ingestion report.
func WriteReport(w io.Writer, report *ingest.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Ingested %d articles in %s: %d new, %d updated (%d fetched)\n",
		report.Ingested, report.Duration.Round(time.Millisecond), report.Created, report.Updated, report.Fetched)
	if len(report.SucceededSources) > 0 {
		fmt.Fprintf(w, "Sources ok:     %s\n", strings.Join(report.SucceededSources, ", "))
	}
	if len(report.FailedSources) > 0 {
		fmt.Fprintf(w, "Sources failed: %s\n", strings.Join(report.FailedSources, ", "))
	}
	for _, f := range report.Failures {
		fmt.Fprintf(w, "  %s/%s: %s\n", f.Source, f.Category, f.Kind)
	}
	return nil
}

// WriteStats writes the /stats payload.
func WriteStats(w io.Writer, stats map[string]interface{}, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := stats[k].(type) {
		case []interface{}:
			fmt.Fprintf(w, "%s:\n", k)
			for _, item := range v {
				fmt.Fprintf(w, "  %v\n", formatItem(item))
			}
		default:
			fmt.Fprintf(w, "%s: %v\n", k, v)
		}
	}
	return nil
}

func formatItem(item interface{}) string {
	m, ok := item.(map[string]interface{})
	if !ok {
		return fmt.Sprint(item)
	}
	if c, ok := m["category"]; ok {
		return fmt.Sprintf("%v: %v", c, m["count"])
	}
	if s, ok := m["source"]; ok {
		return fmt.Sprintf("%v: %v", s, m["count"])
	}
	return fmt.Sprint(m)
}

// Age renders how long ago t was, coarsely.
func Age(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
