package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m *model) View() string {
	switch m.state {
	case StateConfig:
		return m.configView()
	case StateCounting:
		return m.countingView()
	case StateProcessing:
		return m.processingView()
	case StateComplete:
		return m.completeView()
	default:
		return "unknown state"
	}
}

func (m *model) boxed(f Focus, content string) string {
	if m.focus == f {
		return focusedStyle.Render(content)
	}
	return normalStyle.Render(content)
}

func (m *model) configView() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("📦 MQL Organizer") + "\n\n")
	b.WriteString(separatorStyle.Render(strings.Repeat("─", 60)) + "\n\n")

	b.WriteString(labelStyle.Render("1. Directory to search:") + "\n")
	b.WriteString(m.boxed(FocusSearch, m.searchInput.View()) + "\n\n")

	b.WriteString(labelStyle.Render("2. Directory to save files:") + "\n")
	b.WriteString(m.boxed(FocusSave, m.saveInput.View()) + "\n\n")

	b.WriteString(m.boxed(FocusOptions, m.optionList.View()) + "\n\n")

	if m.err != nil {
		b.WriteString(errorTitleStyle.Render(m.err.Error()) + "\n")
	}

	b.WriteString(separatorStyle.Render(strings.Repeat("─", 60)) + "\n")
	b.WriteString(hintStyle.Render("Keys:") + "\n")
	b.WriteString("  • Tab / Shift+Tab to move focus\n")
	b.WriteString("  • Space to toggle an option\n")
	b.WriteString("  • Enter on the options to start\n")
	b.WriteString("  • Ctrl+C to quit\n")

	return lipgloss.NewStyle().
		Padding(1).
		Render(b.String())
}

func (m *model) countingView() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🔍 Looking for files...") + "\n\n")
	b.WriteString(m.spinner.View() + " walking " + m.settings.SearchPath + "\n")

	return lipgloss.NewStyle().
		Padding(2).
		Render(b.String())
}

func (m *model) processingView() string {
	var b strings.Builder

	title := "🔄 Organizing files..."
	if m.quitting {
		title = "⏹ Stopping..."
	}
	b.WriteString(titleStyle.Render(title) + "\n\n")

	b.WriteString(labelStyle.Render("Progress:") + "\n")
	b.WriteString(m.progressBar.View() + "\n\n")

	b.WriteString(statsBoxStyle.Render(m.renderStats()) + "\n\n")

	b.WriteString(labelStyle.Render("Current file:") + "\n")
	b.WriteString(filePathStyle.Render(m.last.CurrentFile) + "\n\n")

	return lipgloss.NewStyle().
		Padding(2).
		Render(b.String())
}

func (m *model) completeView() string {
	var b strings.Builder

	if m.err != nil {
		b.WriteString(errorTitleStyle.Render("✗ "+m.err.Error()) + "\n\n")
	} else {
		b.WriteString(successTitleStyle.Render("✅ Done!") + "\n\n")
	}

	b.WriteString(statsBoxStyle.Render(m.renderFinalStats()) + "\n\n")

	if m.report != nil {
		b.WriteString(labelStyle.Render("Saved to:") + "\n")
		b.WriteString(filePathStyle.Render(m.report.SavePath) + "\n\n")
	}

	b.WriteString(separatorStyle.Render(strings.Repeat("─", 60)) + "\n")
	b.WriteString(hintStyle.Render("Press Enter or q to exit") + "\n")

	return lipgloss.NewStyle().
		Padding(2).
		Render(b.String())
}
