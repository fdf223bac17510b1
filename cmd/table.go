package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/moyu-x/mql-organizer/internal"
	"github.com/moyu-x/mql-organizer/pkg/report"
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
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func renderSummary(s *internal.Summary, r *report.Report) string {
	rows := [][]string{
		{"Discovered", strconv.Itoa(s.Discovered)},
		{"Copied", strconv.Itoa(s.Copied)},
		{"Renamed", strconv.Itoa(s.Renamed)},
		{"Duplicates skipped", strconv.Itoa(s.Skipped)},
		{"Invalid", strconv.Itoa(s.Invalid)},
		{"Errors", strconv.Itoa(s.Errored)},
		{"Bytes copied", formatBytes(s.Bytes)},
		{"Elapsed", s.EndTime.Sub(s.StartTime).Round(time.Millisecond).String()},
	}
	if r != nil {
		rows = append(rows, []string{"Manifest entries", strconv.Itoa(r.TotalFiles)})
	}
	return renderTable([]string{"Result", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
