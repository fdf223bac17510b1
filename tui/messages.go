package tui

import (
	"github.com/moyu-x/mql-organizer/internal"
	"github.com/moyu-x/mql-organizer/pkg/report"
)

type progressMsg internal.ProgressUpdate

type processCompleteMsg struct {
	report  *report.Report
	summary *internal.Summary
	err     error
}

type errMsg error
