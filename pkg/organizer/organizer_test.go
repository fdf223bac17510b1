package organizer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyu-x/mql-organizer/internal"
	"github.com/moyu-x/mql-organizer/pkg/hasher"
	"github.com/moyu-x/mql-organizer/pkg/report"
)

var oldTime = time.Date(2020, 5, 6, 7, 8, 9, 0, time.UTC)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
}

// buildTree lays out a search root whose lexical walk order is:
// Downloads/foo.mqh, Terminal/.../z.mqh, Terminal/.../lib.dll,
// a/ind.mq4, a/test.mq4, b/test.mq4, c/test.mq4
func buildTree(t *testing.T, fs afero.Fs, root string) {
	t.Helper()
	writeFile(t, fs, filepath.Join(root, "$Recycle.Bin", "gone.mq4"), "deleted")
	writeFile(t, fs, filepath.Join(root, "Downloads", "foo.mqh"), "foo")
	writeFile(t, fs, filepath.Join(root, "Downloads", "readme.md"), "not mql")
	writeFile(t, fs, filepath.Join(root, "Terminal", "MQL4", "Include", "Indicators", "z.mqh"),
		"#property copyright \"me\"\n#property version \"2.00\"\n")
	writeFile(t, fs, filepath.Join(root, "Terminal", "MQL4", "Libraries", "lib.dll"), "MZbinary")
	writeFile(t, fs, filepath.Join(root, "a", "ind.mq4"), "content X")
	writeFile(t, fs, filepath.Join(root, "a", "test.mq4"), "content X")
	writeFile(t, fs, filepath.Join(root, "b", "test.mq4"), "content X")
	writeFile(t, fs, filepath.Join(root, "c", "test.mq4"), "content Y")
	writeFile(t, fs, filepath.Join(root, "other", "lib.dll"), "loose dll")

	require.NoError(t, fs.Chtimes(filepath.Join(root, "a", "ind.mq4"), oldTime, oldTime))
}

func options(fs afero.Fs, search, save string) Options {
	return Options{
		Fs:              fs,
		SearchPath:      search,
		SavePath:        save,
		Extensions:      internal.SourceExtensions,
		BoundExtensions: internal.BoundExtensions,
		Exclude:         internal.DefaultExclude,
		Algorithm:       hasher.XXHash,
		Workers:         3,
	}
}

func run(t *testing.T, opts Options) (*report.Report, *internal.Summary) {
	t.Helper()
	org, err := New(opts)
	require.NoError(t, err)
	r, s, err := org.Run(context.Background())
	require.NoError(t, err)
	return r, s
}

func manifestNames(r *report.Report) []string {
	names := make([]string, 0, len(r.Manifest))
	for _, m := range r.Manifest {
		names = append(names, m.Name)
	}
	return names
}

func TestRun_EndToEnd(t *testing.T) {
	fs := afero.NewOsFs()
	tmp := t.TempDir()
	search := filepath.Join(tmp, "search")
	save := filepath.Join(search, "out")
	buildTree(t, fs, search)

	opts := options(fs, search, save)
	opts.Excel = true
	opts.SQLite = true
	r, s := run(t, opts)

	assert.Equal(t, []string{"foo.mqh", "z.mqh", "lib.dll", "ind.mq4", "test.mq4", "test(1).mq4"}, manifestNames(r))
	assert.Equal(t, 6, r.TotalFiles)
	assert.Equal(t, filepath.Join(search, "a", "test.mq4"), r.Manifest[4].Path)
	assert.Equal(t, filepath.Join(search, "c", "test.mq4"), r.Manifest[5].Path)

	require.Len(t, r.DiffFiles, 1)
	assert.Equal(t, report.DiffEntry{
		OriginalPath:    filepath.Join(search, "a", "test.mq4"),
		ConflictingPath: filepath.Join(search, "c", "test.mq4"),
		ResolvedName:    "test(1).mq4",
		Dest:            "UNORGANIZED/test(1).mq4",
	}, r.DiffFiles[0])
	assert.Equal(t, "MQL4/Include/Indicators/z.mqh", r.Manifest[1].Dest)

	assert.Equal(t, 7, s.Discovered)
	assert.Equal(t, 5, s.Copied)
	assert.Equal(t, 1, s.Renamed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 0, s.Errored)

	for _, rel := range []string{
		"UNORGANIZED/foo.mqh",
		"MQL4/Include/Indicators/z.mqh",
		"MQL4/Libraries/lib.dll",
		"UNORGANIZED/ind.mq4",
		"UNORGANIZED/test.mq4",
		"UNORGANIZED/test(1).mq4",
		"FILE_REPORT.json",
		"FILE_REPORT.xlsx",
		"FILE_REPORT.db",
	} {
		_, err := os.Stat(filepath.Join(save, filepath.FromSlash(rel)))
		assert.NoError(t, err, rel)
	}

	data, err := os.ReadFile(filepath.Join(save, "UNORGANIZED", "test(1).mq4"))
	require.NoError(t, err)
	assert.Equal(t, "content Y", string(data))

	info, err := os.Stat(filepath.Join(save, "UNORGANIZED", "ind.mq4"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(oldTime), "modification time is preserved")

	z := r.Manifest[1]
	require.NotNil(t, z.Copyright)
	assert.Equal(t, "me", *z.Copyright)
	require.NotNil(t, z.Version)
	assert.Equal(t, "2.00", *z.Version)
	assert.Nil(t, z.Link)
	assert.True(t, z.IsSource)
	assert.False(t, r.Manifest[2].IsSource)

	raw, err := os.ReadFile(filepath.Join(save, "FILE_REPORT.json"))
	require.NoError(t, err)
	var back report.Report
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, r.Manifest, back.Manifest)
	assert.Contains(t, back.Extensions, ".mq4")
	assert.Contains(t, back.Extensions, ".dll")

	_, err = os.Stat(filepath.Join(save, internal.LockFileName))
	assert.True(t, os.IsNotExist(err), "lock file is removed after the run")
}

func TestRun_SeededRerunIsIdempotent(t *testing.T) {
	fs := afero.NewOsFs()
	tmp := t.TempDir()
	search := filepath.Join(tmp, "search")
	save := filepath.Join(tmp, "save")
	buildTree(t, fs, search)

	first, _ := run(t, options(fs, search, save))
	require.Len(t, first.Manifest, 6)

	opts := options(fs, search, save)
	opts.Seed = true
	second, s := run(t, opts)

	assert.Empty(t, second.Manifest)
	assert.Empty(t, second.DiffFiles)
	assert.Equal(t, 7, s.Skipped)
}

func TestRun_FreshRerunKeepsExistingFiles(t *testing.T) {
	fs := afero.NewOsFs()
	tmp := t.TempDir()
	search := filepath.Join(tmp, "search")
	save := filepath.Join(tmp, "save")
	buildTree(t, fs, search)

	first, _ := run(t, options(fs, search, save))
	require.Len(t, first.Manifest, 6)

	second, s := run(t, options(fs, search, save))

	assert.Empty(t, second.Manifest)
	assert.Empty(t, second.DiffFiles)
	assert.Equal(t, 7, s.Skipped)

	entries, err := os.ReadDir(filepath.Join(save, "UNORGANIZED"))
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestRun_ExistingFileIsNotOverwritten(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/save/UNORGANIZED/test.mq4", "already here")
	writeFile(t, fs, "/save/UNORGANIZED/same.mq4", "same")
	writeFile(t, fs, "/search/a/test.mq4", "new content")
	writeFile(t, fs, "/search/a/same.mq4", "same")
	writeFile(t, fs, "/search/b/test.mq4", "already here")

	r, s := run(t, options(fs, "/search", "/save"))

	assert.Equal(t, []string{"test(1).mq4"}, manifestNames(r))
	assert.Equal(t, 1, s.Renamed)
	assert.Equal(t, 2, s.Skipped)
	assert.Equal(t, 0, s.Copied)

	require.Len(t, r.DiffFiles, 1)
	assert.Equal(t, report.DiffEntry{
		OriginalPath:    "/save/UNORGANIZED/test.mq4",
		ConflictingPath: "/search/a/test.mq4",
		ResolvedName:    "test(1).mq4",
		Dest:            "UNORGANIZED/test(1).mq4",
	}, r.DiffFiles[0])

	data, err := afero.ReadFile(fs, "/save/UNORGANIZED/test.mq4")
	require.NoError(t, err)
	assert.Equal(t, "already here", string(data))

	data, err = afero.ReadFile(fs, "/save/UNORGANIZED/test(1).mq4")
	require.NoError(t, err)
	assert.Equal(t, "new content", string(data))
}

func TestRun_ExistingSuffixedNamesAreSkippedOver(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/save/UNORGANIZED/test.mq4", "one")
	writeFile(t, fs, "/save/UNORGANIZED/test(1).mq4", "two")
	writeFile(t, fs, "/search/a/test.mq4", "three")

	r, _ := run(t, options(fs, "/search", "/save"))

	assert.Equal(t, []string{"test(2).mq4"}, manifestNames(r))
	data, err := afero.ReadFile(fs, "/save/UNORGANIZED/test(1).mq4")
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestRun_MemFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildTree(t, fs, "/search")

	r, s := run(t, options(fs, "/search", "/save"))

	assert.Len(t, r.Manifest, 6)
	assert.Equal(t, 7, s.Discovered)

	ok, err := afero.Exists(fs, "/save/UNORGANIZED/foo.mqh")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = afero.Exists(fs, "/save/FILE_REPORT.json")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRun_CompiledExtensions(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/search/x/ea.ex4", "compiled")
	writeFile(t, fs, "/search/x/ea.mq4", "source")

	opts := options(fs, "/search", "/save")
	r, _ := run(t, opts)
	assert.Equal(t, []string{"ea.mq4"}, manifestNames(r))

	opts = options(fs, "/search", "/save2")
	opts.Extensions = append(append([]string{}, internal.SourceExtensions...), internal.CompiledExtensions...)
	r, _ = run(t, opts)
	assert.Equal(t, []string{"ea.ex4", "ea.mq4"}, manifestNames(r))
	assert.False(t, r.Manifest[0].IsSource)
}

// failOnceFs fails the first temp file created for a destination name
// containing marker.
type failOnceFs struct {
	afero.Fs
	marker string
	failed atomic.Bool
}

func (f *failOnceFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&os.O_CREATE != 0 && strings.Contains(filepath.Base(name), f.marker) && f.failed.CompareAndSwap(false, true) {
		return nil, os.ErrPermission
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func TestRun_CopyFailureFreesName(t *testing.T) {
	mem := afero.NewMemMapFs()
	writeFile(t, mem, "/search/a/broken.mq4", "first")
	writeFile(t, mem, "/search/b/broken.mq4", "second")
	fs := &failOnceFs{Fs: mem, marker: "broken"}

	r, s := run(t, options(fs, "/search", "/save"))

	assert.Equal(t, 1, s.Errored)
	assert.Equal(t, 1, s.Copied)
	assert.Equal(t, 0, s.Renamed)
	require.Len(t, r.Manifest, 1)
	assert.Equal(t, "broken.mq4", r.Manifest[0].Name)
	assert.Equal(t, "/search/b/broken.mq4", r.Manifest[0].Path)
	assert.Empty(t, r.DiffFiles)

	data, err := afero.ReadFile(mem, "/save/UNORGANIZED/broken.mq4")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

// readOnlyDirFs refuses to create files directly inside dir.
type readOnlyDirFs struct {
	afero.Fs
	dir string
}

func (f *readOnlyDirFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&os.O_CREATE != 0 && filepath.Dir(name) == f.dir {
		return nil, os.ErrPermission
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func TestRun_SavePathNotWritable(t *testing.T) {
	mem := afero.NewMemMapFs()
	writeFile(t, mem, "/search/a/test.mq4", "x")
	require.NoError(t, mem.MkdirAll("/save", 0755))
	fs := &readOnlyDirFs{Fs: mem, dir: "/save"}

	org, err := New(options(fs, "/search", "/save"))
	require.NoError(t, err)

	_, _, err = org.Run(context.Background())
	assert.ErrorIs(t, err, internal.ErrConfig)

	ok, err := afero.Exists(mem, "/save/UNORGANIZED/test.mq4")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRun_Cancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildTree(t, fs, "/search")

	org, err := New(options(fs, "/search", "/save"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, s, err := org.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, r)
	assert.Empty(t, r.Manifest)
	assert.Equal(t, 0, s.Discovered)

	_, _, err = org.Run(context.Background())
	assert.Error(t, err, "an organizer runs once")
}

func TestRun_Progress(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildTree(t, fs, "/search")

	org, err := New(options(fs, "/search", "/save"))
	require.NoError(t, err)

	done := make(chan internal.ProgressUpdate, 1)
	go func() {
		var last internal.ProgressUpdate
		for u := range org.Progress() {
			last = u
		}
		done <- last
	}()

	_, _, err = org.Run(context.Background())
	require.NoError(t, err)

	last := <-done
	assert.Equal(t, 7, last.Total)
	assert.LessOrEqual(t, last.Processed, 7)
}

func TestNew_ConfigErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/search/a.mq4", "x")
	writeFile(t, fs, "/file.txt", "x")

	testCases := []struct {
		name   string
		modify func(*Options)
	}{
		{"empty search", func(o *Options) { o.SearchPath = "" }},
		{"empty save", func(o *Options) { o.SavePath = "" }},
		{"missing search", func(o *Options) { o.SearchPath = "/nope" }},
		{"search is a file", func(o *Options) { o.SearchPath = "/file.txt" }},
		{"same paths", func(o *Options) { o.SavePath = "/search" }},
		{"no extensions", func(o *Options) { o.Extensions = nil; o.BoundExtensions = nil }},
		{"bad algorithm", func(o *Options) { o.Algorithm = "md5" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := options(fs, "/search", "/save")
			tc.modify(&opts)
			_, err := New(opts)
			assert.ErrorIs(t, err, internal.ErrConfig)
		})
	}
}

func TestRun_Locked(t *testing.T) {
	fs := afero.NewOsFs()
	tmp := t.TempDir()
	search := filepath.Join(tmp, "search")
	save := filepath.Join(tmp, "save")
	writeFile(t, fs, filepath.Join(search, "a.mq4"), "x")

	holder, err := New(options(fs, search, save))
	require.NoError(t, err)
	require.NoError(t, fs.MkdirAll(save, 0755))
	unlock, err := holder.lock()
	require.NoError(t, err)
	defer unlock()

	org, err := New(options(fs, search, save))
	require.NoError(t, err)
	_, _, err = org.Run(context.Background())
	assert.ErrorIs(t, err, internal.ErrLocked)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2<<20))
}
