package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/moyu-x/mql-organizer/internal"
	"github.com/moyu-x/mql-organizer/pkg/logger"
)

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.interrupt()
		}

		switch m.state {
		case StateConfig:
			return m.updateConfigPhase(msg)
		case StateComplete:
			if msg.String() == "enter" || msg.String() == "q" || msg.String() == "esc" {
				return m, tea.Quit
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.handleResize(msg)

	case progressMsg:
		if m.state == StateCounting {
			m.state = StateProcessing
		}
		m.last = internal.ProgressUpdate(msg)
		m.totalFiles = msg.Total

		if m.totalFiles > 0 {
			percent := float64(msg.Processed) / float64(m.totalFiles)
			cmds = append(cmds, m.progressBar.SetPercent(percent))
		}
		cmds = append(cmds, waitForProgress(m.progressCh, m.done))
		return m, tea.Batch(cmds...)

	case processCompleteMsg:
		m.state = StateComplete
		m.report = msg.report
		m.summary = msg.summary
		m.err = msg.err
		m.logFinalStats()
		if m.quitting {
			return m, tea.Quit
		}
		if m.summary != nil && m.totalFiles > 0 {
			return m, m.progressBar.SetPercent(1)
		}
		return m, nil

	case errMsg:
		m.err = msg
		m.state = StateComplete
		return m, nil

	case spinner.TickMsg:
		if m.state == StateCounting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if m.state == StateProcessing || m.state == StateComplete {
		model, cmd := m.progressBar.Update(msg)
		m.progressBar = model.(progress.Model)
		cmds = append(cmds, cmd)
	}

	if m.state == StateConfig {
		cmds = append(cmds, m.updateFocused(msg))
	}

	return m, tea.Batch(cmds...)
}

// interrupt quits right away unless a run is in flight. A running organizer
// is cancelled first so it still writes the report for what it did.
func (m *model) interrupt() tea.Cmd {
	if m.cancel != nil && (m.state == StateCounting || m.state == StateProcessing) {
		logger.Get().Warn().Msg("interrupted, stopping after the current file")
		m.quitting = true
		m.cancel()
		return nil
	}
	return tea.Quit
}

func (m *model) updateConfigPhase(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab":
		m.nextFocus()
		m.updateFocusState()
		return m, nil

	case "shift+tab":
		m.prevFocus()
		m.updateFocusState()
		return m, nil

	case "enter":
		return m.handleEnterKey()

	case " ":
		if m.focus == FocusOptions {
			return m, m.toggleOption()
		}
	}

	return m, m.updateFocused(msg)
}

func (m *model) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.focus {
	case FocusSearch:
		m.searchInput, cmd = m.searchInput.Update(msg)
		m.settings.SearchPath = strings.TrimSpace(m.searchInput.Value())
	case FocusSave:
		m.saveInput, cmd = m.saveInput.Update(msg)
		m.settings.SavePath = strings.TrimSpace(m.saveInput.Value())
	case FocusOptions:
		m.optionList, cmd = m.optionList.Update(msg)
	}
	return cmd
}

func (m *model) nextFocus() {
	switch m.focus {
	case FocusSearch:
		m.focus = FocusSave
	case FocusSave:
		m.focus = FocusOptions
	case FocusOptions:
		m.focus = FocusSearch
	}
}

func (m *model) prevFocus() {
	switch m.focus {
	case FocusSearch:
		m.focus = FocusOptions
	case FocusSave:
		m.focus = FocusSearch
	case FocusOptions:
		m.focus = FocusSave
	}
}

func (m *model) updateFocusState() {
	if m.focus == FocusSearch {
		m.searchInput.Focus()
	} else {
		m.searchInput.Blur()
	}

	if m.focus == FocusSave {
		m.saveInput.Focus()
	} else {
		m.saveInput.Blur()
	}

	m.optionList.KeyMap.CursorUp.SetEnabled(m.focus == FocusOptions)
	m.optionList.KeyMap.CursorDown.SetEnabled(m.focus == FocusOptions)
}

func (m *model) toggleOption() tea.Cmd {
	item, ok := m.optionList.SelectedItem().(optionItem)
	if !ok {
		return nil
	}
	item.on = !item.on

	switch item.key {
	case optCompiled:
		m.settings.Compiled = item.on
	case optExcel:
		m.settings.Excel = item.on
	case optSQLite:
		m.settings.SQLite = item.on
	case optSeed:
		m.settings.Seed = item.on
	}
	return m.optionList.SetItem(m.optionList.Index(), item)
}

func (m *model) handleEnterKey() (tea.Model, tea.Cmd) {
	switch m.focus {
	case FocusSearch, FocusSave:
		m.nextFocus()
		m.updateFocusState()
		return m, nil

	case FocusOptions:
		if m.settings.SearchPath == "" || m.settings.SavePath == "" {
			m.err = fmt.Errorf("%w: search and save directories are required", internal.ErrConfig)
			return m, nil
		}
		m.err = nil
		m.state = StateCounting
		return m, tea.Batch(m.spinner.Tick, m.startProcessing())
	}

	return m, nil
}

func (m *model) handleResize(msg tea.WindowSizeMsg) {
	width := msg.Width

	m.searchInput.Width = width - 10
	m.saveInput.Width = width - 10
	m.optionList.SetWidth(width - 4)
	m.progressBar.Width = width - 10
}

// startProcessing builds the organizer and runs it in the background. Its
// progress and final result come back as messages through waitForProgress.
func (m *model) startProcessing() tea.Cmd {
	org, err := m.cfg.NewOrganizer(m.settings)
	if err != nil {
		return func() tea.Msg { return errMsg(err) }
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan processCompleteMsg, 1)

	m.cancel = cancel
	m.progressCh = org.Progress()
	m.done = done

	go func() {
		defer cancel()
		r, s, err := org.Run(ctx)
		done <- processCompleteMsg{report: r, summary: s, err: err}
	}()

	return waitForProgress(m.progressCh, done)
}

func waitForProgress(ch <-chan internal.ProgressUpdate, done <-chan processCompleteMsg) tea.Cmd {
	return func() tea.Msg {
		if u, ok := <-ch; ok {
			return progressMsg(u)
		}
		return <-done
	}
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

func (m *model) renderStats() string {
	var b strings.Builder
	u := m.last
	b.WriteString("Live stats:\n\n")
	b.WriteString(fmt.Sprintf("  Files found:   %d\n", m.totalFiles))
	b.WriteString(fmt.Sprintf("  Processed:     %d / %d\n", u.Processed, m.totalFiles))
	b.WriteString(fmt.Sprintf("  Copied:        %d\n", u.Copied))
	b.WriteString(fmt.Sprintf("  Renamed:       %d\n", u.Renamed))
	b.WriteString(fmt.Sprintf("  Duplicates:    %d\n", u.Skipped))
	b.WriteString(fmt.Sprintf("  Errors:        %d\n", u.Errored))
	return b.String()
}

func (m *model) renderFinalStats() string {
	var b strings.Builder
	b.WriteString("Final stats:\n\n")
	if m.summary == nil {
		b.WriteString("  no files were processed\n")
		return b.String()
	}

	s := m.summary
	b.WriteString(fmt.Sprintf("  • Discovered:    %d\n", s.Discovered))
	b.WriteString(fmt.Sprintf("  • Copied:        %d\n", s.Copied))
	b.WriteString(fmt.Sprintf("  • Renamed:       %d\n", s.Renamed))
	b.WriteString(fmt.Sprintf("  • Duplicates:    %d\n", s.Skipped))
	b.WriteString(fmt.Sprintf("  • Invalid:       %d\n", s.Invalid))
	b.WriteString(fmt.Sprintf("  • Errors:        %d\n", s.Errored))
	b.WriteString(fmt.Sprintf("  • Bytes copied:  %s\n", formatBytes(s.Bytes)))
	b.WriteString(fmt.Sprintf("  • Elapsed:       %s\n", s.EndTime.Sub(s.StartTime).Round(time.Millisecond)))
	if m.report != nil {
		b.WriteString(fmt.Sprintf("  • Collisions:    %d\n", len(m.report.DiffFiles)))
	}
	return b.String()
}

func (m *model) logFinalStats() {
	if m.err != nil {
		logger.Get().Error().Err(m.err).Msg("organize run ended with an error")
	}
	if m.summary == nil {
		return
	}
	s := m.summary
	logger.Get().Info().Msgf("organize finished: %d discovered, %d copied, %d renamed, %d skipped, %d errors",
		s.Discovered, s.Copied, s.Renamed, s.Skipped, s.Errored+s.Invalid)
}
