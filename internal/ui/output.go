package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/reeltrack/internal/gateway"
)

// WriteJSON pretty-prints payload to w.
func WriteJSON(w io.Writer, payload json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteStats renders a short watch summary. Colors are only emitted when w
// is a terminal.
func WriteStats(w io.Writer, user string, stats gateway.UserStats) error {
	r := lipgloss.NewRenderer(w)
	theme := GetTheme("")
	title := r.NewStyle().Foreground(lipgloss.Color(theme.Warning)).Bold(true)
	label := r.NewStyle().Foreground(lipgloss.Color(theme.Muted)).Width(10)
	value := r.NewStyle().Foreground(lipgloss.Color(theme.Text))

	rows := []struct {
		name string
		ws   gateway.WatchStats
	}{
		{"movies", stats.Movies},
		{"shows", stats.Shows},
		{"episodes", stats.Episodes},
	}
	lines := []string{title.Render("stats for " + user)}
	for _, row := range rows {
		lines = append(lines, label.Render(row.name)+value.Render(fmt.Sprintf(
			"%d plays, %d watched, %d collected, %s",
			row.ws.Plays, row.ws.Watched, row.ws.Collected, row.ws.WatchTime())))
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

// WriteSearch renders one line per result.
func WriteSearch(w io.Writer, results []gateway.SearchResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "no results")
		return err
	}
	r := lipgloss.NewRenderer(w)
	theme := GetTheme("")
	kind := r.NewStyle().Foreground(lipgloss.Color(theme.Info)).Width(8)
	slug := r.NewStyle().Foreground(lipgloss.Color(theme.Muted))

	var b strings.Builder
	for _, res := range results {
		item := res.Item()
		if item == nil {
			continue
		}
		line := kind.Render(res.Type) + item.Title
		if item.Year > 0 {
			line += fmt.Sprintf(" (%d)", item.Year)
		}
		if item.IDs.Slug != "" {
			line += " " + slug.Render(item.IDs.Slug)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
