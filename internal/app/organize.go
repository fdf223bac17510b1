package app

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/moyu-x/mql-organizer/config"
	"github.com/moyu-x/mql-organizer/internal"
	"github.com/moyu-x/mql-organizer/pkg/hasher"
	"github.com/moyu-x/mql-organizer/pkg/logger"
	"github.com/moyu-x/mql-organizer/pkg/organizer"
	"github.com/moyu-x/mql-organizer/pkg/report"
	"github.com/moyu-x/mql-organizer/tui"
)

type OrganizeOptions struct {
	Config *config.Config
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// TUI hands the terminal to the interactive screen. Logs then go to
	// the configured log file only.
	TUI bool
}

// Outcome is what one organize run left behind. Both fields are nil when the
// TUI was closed before a run started.
type Outcome struct {
	Report  *report.Report
	Summary *internal.Summary
}

// RunOrganize sets up logging and runs one organize pass, headless or
// through the TUI. A cancelled ctx still returns the partial outcome along
// with ctx.Err().
func RunOrganize(ctx context.Context, opts OrganizeOptions) (*Outcome, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("%w: no configuration", internal.ErrConfig)
	}

	if opts.TUI {
		if err := logger.InitFile(cfg.Logging.Level, cfg.Logging.File); err != nil {
			return nil, fmt.Errorf("%w: opening log file: %w", internal.ErrConfig, err)
		}
		return runTUI(cfg, opts.Fs)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return nil, fmt.Errorf("%w: opening log file: %w", internal.ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	org, err := NewOrganizer(cfg, opts.Fs)
	if err != nil {
		return nil, err
	}

	logger.Get().Info().Msgf("organizing %s into %s", cfg.Search.Path, org.SavePath())
	r, s, err := org.Run(ctx)
	return &Outcome{Report: r, Summary: s}, err
}

// NewOrganizer turns cfg into organizer options. "~/" in either path is
// expanded.
func NewOrganizer(cfg *config.Config, fs afero.Fs) (*organizer.Organizer, error) {
	algo, err := hasher.ParseAlgorithm(cfg.Hash.Algorithm)
	if err != nil {
		return nil, err
	}
	searchPath, err := internal.ExpandHome(cfg.Search.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", internal.ErrConfig, err)
	}
	savePath, err := internal.ExpandHome(cfg.Output.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", internal.ErrConfig, err)
	}

	return organizer.New(organizer.Options{
		Fs:              fs,
		SearchPath:      searchPath,
		SavePath:        savePath,
		Extensions:      cfg.AllExtensions(),
		BoundExtensions: cfg.Search.BoundExtensions,
		Exclude:         cfg.Search.Exclude,
		FamilyDirs:      cfg.Classifier.FamilyDirs,
		UnorganizedDir:  cfg.Output.UnorganizedDir,
		Algorithm:       algo,
		Workers:         cfg.Performance.Workers,
		Seed:            cfg.Output.Seed,
		ReportName:      cfg.Output.ReportName,
		Excel:           cfg.Output.Excel,
		SQLite:          cfg.Output.SQLite,
	})
}

func runTUI(cfg *config.Config, fs afero.Fs) (*Outcome, error) {
	res, err := tui.Run(tui.Config{
		Defaults: settingsFrom(cfg),
		NewOrganizer: func(s tui.Settings) (*organizer.Organizer, error) {
			return NewOrganizer(applySettings(cfg, s), fs)
		},
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{Report: res.Report, Summary: res.Summary}, res.Err
}

func settingsFrom(cfg *config.Config) tui.Settings {
	return tui.Settings{
		SearchPath: cfg.Search.Path,
		SavePath:   cfg.Output.Path,
		Compiled:   cfg.Search.Compiled,
		Excel:      cfg.Output.Excel,
		SQLite:     cfg.Output.SQLite,
		Seed:       cfg.Output.Seed,
	}
}

// applySettings returns a copy of cfg with the screen choices applied.
func applySettings(cfg *config.Config, s tui.Settings) *config.Config {
	c := *cfg
	c.Search.Path = s.SearchPath
	c.Output.Path = s.SavePath
	c.Search.Compiled = s.Compiled
	c.Output.Excel = s.Excel
	c.Output.SQLite = s.SQLite
	c.Output.Seed = s.Seed
	return &c
}
