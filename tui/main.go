package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/moyu-x/mql-organizer/internal"
	"github.com/moyu-x/mql-organizer/pkg/logger"
	"github.com/moyu-x/mql-organizer/pkg/organizer"
	"github.com/moyu-x/mql-organizer/pkg/report"
)

// Settings are the choices made on the config screen.
type Settings struct {
	SearchPath string
	SavePath   string
	Compiled   bool
	Excel      bool
	SQLite     bool
	Seed       bool
}

type Config struct {
	Defaults Settings
	// NewOrganizer builds the organizer for the chosen settings.
	NewOrganizer func(Settings) (*organizer.Organizer, error)
}

// Result is what the run produced. Report is nil when the run never started.
type Result struct {
	Settings Settings
	Report   *report.Report
	Summary  *internal.Summary
	Err      error
}

type teaModel struct {
	m *model
}

func (tm teaModel) Init() tea.Cmd {
	return tm.m.Init()
}

func (tm teaModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	_, cmd := tm.m.Update(msg)
	return tm, cmd
}

func (tm teaModel) View() string {
	return tm.m.View()
}

func Run(cfg Config) (*Result, error) {
	if cfg.NewOrganizer == nil {
		return nil, fmt.Errorf("tui: no organizer factory")
	}

	logger.Get().Info().Msg("starting TUI")

	m := initialModel(cfg)
	p := tea.NewProgram(teaModel{m: &m}, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		logger.Get().Error().Err(err).Msg("TUI failed")
		return nil, err
	}
	logger.Get().Info().Msg("TUI exited")

	return m.result(), nil
}
