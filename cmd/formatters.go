package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/wiktor-jurek/stewthius/internal/model"
	"github.com/wiktor-jurek/stewthius/internal/service/acquisition"
	"github.com/wiktor-jurek/stewthius/internal/service/analysis"
	"github.com/wiktor-jurek/stewthius/internal/service/embedding"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// renderCounts renders a two-column metric/value table
func renderCounts(rows [][]string) string {
	return renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}

func formatAcquisitionResult(r *acquisition.Result) string {
	return renderCounts([][]string{
		{"Run", r.RunID},
		{"Discovered", strconv.Itoa(r.Discovered)},
		{"Already stored", strconv.Itoa(r.Skipped)},
		{"Downloaded", strconv.Itoa(r.Success)},
		{"Failed", strconv.Itoa(r.Failed)},
		{"Elapsed", formatElapsed(r.Elapsed)},
	})
}

func formatAnalysisResult(r *analysis.Result) string {
	return renderCounts([][]string{
		{"Run", r.RunID},
		{"Selected", strconv.Itoa(r.Selected)},
		{"Analyzed", strconv.Itoa(r.Analyzed)},
		{"Not about the stew", strconv.Itoa(r.Skipped)},
		{"Failed", strconv.Itoa(r.Failed)},
		{"Elapsed", formatElapsed(r.Elapsed)},
	})
}

func formatBackfillResult(r *embedding.BackfillResult) string {
	return renderCounts([][]string{
		{"Run", r.RunID},
		{"Missing embeddings", strconv.Itoa(r.Candidate)},
		{"Embedded", strconv.Itoa(r.Embedded)},
		{"Failed", strconv.Itoa(r.Failed)},
		{"Elapsed", formatElapsed(r.Elapsed)},
	})
}

func formatSimilarItems(items []model.SimilarItem) string {
	rows := make([][]string, 0, len(items))
	for i, item := range items {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			item.ExternalID,
			strconv.Itoa(item.Day),
			fmt.Sprintf("%.4f", item.Similarity),
			truncate(deref(item.Title), 48),
		})
	}
	return renderTable(
		[]string{"#", "Video", "Day", "Similarity", "Title"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func formatProjection(points []embedding.ProjectedPoint) string {
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{p.ExternalID, fmt.Sprintf("%.4f", p.X), fmt.Sprintf("%.4f", p.Y)})
	}
	return renderTable([]string{"Video", "X", "Y"}, rows, []columnAlignment{alignLeft, alignRight, alignRight})
}

func formatElapsed(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// truncate shortens s to at most maxLen runes
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
