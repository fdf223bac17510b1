package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyu-x/mql-organizer/config"
	"github.com/moyu-x/mql-organizer/internal"
	"github.com/moyu-x/mql-organizer/tui"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	var c config.Config
	require.NoError(t, v.Unmarshal(&c))
	c.Hash.Algorithm = "xxhash"
	c.Logging.Level = "error"
	return &c
}

func seedTree(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/MQL4/Experts/ea.mq4", []byte("ea"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/src/MQL4/Libraries/lib.dll", []byte("dll"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/src/loose/ea.mq4", []byte("ea"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/src/loose/notes.txt", []byte("n"), 0644))
	return fs
}

func TestRunOrganize_Headless(t *testing.T) {
	fs := seedTree(t)
	cfg := defaultConfig(t)
	cfg.Search.Path = "/src"
	cfg.Output.Path = "/out"

	out, err := RunOrganize(context.Background(), OrganizeOptions{Config: cfg, Fs: fs})
	require.NoError(t, err)
	require.NotNil(t, out.Report)
	require.NotNil(t, out.Summary)

	assert.Equal(t, 3, out.Summary.Discovered)
	assert.Equal(t, 2, out.Summary.Copied)
	assert.Equal(t, 1, out.Summary.Skipped)
	assert.Equal(t, 2, out.Report.TotalFiles)

	ok, err := afero.Exists(fs, "/out/MQL4/Libraries/lib.dll")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = afero.Exists(fs, "/out/"+internal.DefaultReportName+".json")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunOrganize_ConfigErrors(t *testing.T) {
	_, err := RunOrganize(context.Background(), OrganizeOptions{})
	assert.ErrorIs(t, err, internal.ErrConfig)

	cfg := defaultConfig(t)
	_, err = RunOrganize(context.Background(), OrganizeOptions{Config: cfg, Fs: afero.NewMemMapFs()})
	assert.ErrorIs(t, err, internal.ErrConfig)

	cfg.Search.Path = "/missing"
	cfg.Output.Path = "/out"
	_, err = RunOrganize(context.Background(), OrganizeOptions{Config: cfg, Fs: afero.NewMemMapFs()})
	assert.ErrorIs(t, err, internal.ErrConfig)
}

func TestRunOrganize_Cancelled(t *testing.T) {
	fs := seedTree(t)
	cfg := defaultConfig(t)
	cfg.Search.Path = "/src"
	cfg.Output.Path = "/out"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := RunOrganize(ctx, OrganizeOptions{Config: cfg, Fs: fs})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, out)
}

func TestNewOrganizer_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	fs := seedTree(t)
	cfg := defaultConfig(t)
	cfg.Search.Path = "/src"
	cfg.Output.Path = "~/MQL_FILES"

	org, err := NewOrganizer(cfg, fs)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "MQL_FILES"), org.SavePath())
}

func TestNewOrganizer_CompiledExtensions(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Search.Path = "/src"
	cfg.Output.Path = "/out"
	cfg.Search.Compiled = true

	org, err := NewOrganizer(cfg, seedTree(t))
	require.NoError(t, err)
	assert.Contains(t, org.Extensions(), ".ex4")
	assert.Contains(t, org.Extensions(), ".ex5")
}

func TestNewOrganizer_BadAlgorithm(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Search.Path = "/src"
	cfg.Output.Path = "/out"
	cfg.Hash.Algorithm = "md5"

	_, err := NewOrganizer(cfg, seedTree(t))
	assert.ErrorIs(t, err, internal.ErrConfig)
}

func TestApplySettings(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Search.Path = "/a"
	cfg.Output.Path = "/b"

	s := settingsFrom(cfg)
	assert.Equal(t, "/a", s.SearchPath)
	assert.Equal(t, "/b", s.SavePath)

	got := applySettings(cfg, tui.Settings{SearchPath: "/x", SavePath: "/y", Excel: true, Seed: true})
	assert.Equal(t, "/x", got.Search.Path)
	assert.Equal(t, "/y", got.Output.Path)
	assert.True(t, got.Output.Excel)
	assert.True(t, got.Output.Seed)
	assert.Equal(t, "/a", cfg.Search.Path)
	assert.False(t, cfg.Output.Excel)
}
