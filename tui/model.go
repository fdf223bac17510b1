package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/moyu-x/mql-organizer/internal"
	"github.com/moyu-x/mql-organizer/pkg/report"
)

type State int

const (
	StateConfig State = iota
	StateCounting
	StateProcessing
	StateComplete
)

type Focus int

const (
	FocusSearch Focus = iota
	FocusSave
	FocusOptions
)

type optionKey int

const (
	optCompiled optionKey = iota
	optExcel
	optSQLite
	optSeed
)

type model struct {
	cfg      Config
	state    State
	focus    Focus
	settings Settings

	searchInput textinput.Model
	saveInput   textinput.Model
	optionList  list.Model
	progressBar progress.Model
	spinner     spinner.Model

	totalFiles int
	last       internal.ProgressUpdate
	cancel     context.CancelFunc
	progressCh <-chan internal.ProgressUpdate
	done       chan processCompleteMsg
	quitting   bool
	report     *report.Report
	summary    *internal.Summary
	err        error
}

func initialModel(cfg Config) model {
	searchInput := textinput.New()
	searchInput.Placeholder = "directory to search, e.g. C:\\Users\\me\\AppData\\Roaming\\MetaQuotes"
	searchInput.Prompt = "> "
	searchInput.PromptStyle = focusedPromptStyle
	searchInput.TextStyle = textStyle
	searchInput.SetValue(cfg.Defaults.SearchPath)
	searchInput.Focus()

	saveInput := textinput.New()
	saveInput.Placeholder = "directory to save files"
	saveInput.Prompt = "> "
	saveInput.PromptStyle = focusedPromptStyle
	saveInput.TextStyle = textStyle
	saveInput.SetValue(cfg.Defaults.SavePath)

	d := cfg.Defaults
	optionList := list.New([]list.Item{
		optionItem{key: optCompiled, title: "Gather compiled files", desc: "also collect .ex4 and .ex5", on: d.Compiled},
		optionItem{key: optExcel, title: "Excel report", desc: "write FILE_REPORT.xlsx", on: d.Excel},
		optionItem{key: optSQLite, title: "SQLite report", desc: "write FILE_REPORT.db", on: d.SQLite},
		optionItem{key: optSeed, title: "Seed from output", desc: "treat files already in the save directory as placed", on: d.Seed},
	}, list.NewDefaultDelegate(), 60, 14)
	optionList.Title = "Options (space toggles, enter starts)"
	optionList.SetShowStatusBar(false)
	optionList.SetFilteringEnabled(false)
	optionList.SetShowHelp(false)
	optionList.Styles.Title = titleStyle
	optionList.Styles.TitleBar = titleStyle

	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.PercentageStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("205")).
		Width(4)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := model{
		cfg:         cfg,
		state:       StateConfig,
		focus:       FocusSearch,
		settings:    cfg.Defaults,
		searchInput: searchInput,
		saveInput:   saveInput,
		optionList:  optionList,
		progressBar: progressBar,
		spinner:     s,
	}
	m.updateFocusState()
	return m
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) result() *Result {
	return &Result{
		Settings: m.settings,
		Report:   m.report,
		Summary:  m.summary,
		Err:      m.err,
	}
}

type optionItem struct {
	key   optionKey
	title string
	desc  string
	on    bool
}

func (o optionItem) Title() string {
	if o.on {
		return "[x] " + o.title
	}
	return "[ ] " + o.title
}

func (o optionItem) Description() string { return o.desc }
func (o optionItem) FilterValue() string { return o.title }
