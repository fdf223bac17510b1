package report

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/moyu-x/mql-organizer/internal"
	"github.com/moyu-x/mql-organizer/pkg/deduplicator"
)

const (
	CompletedLayout = "2006-01-02 15:04:05.000000"
	ModifiedLayout  = "2006-01-02 15:04:05"
)

// ManifestEntry describes one file copied into the organized tree.
type ManifestEntry struct {
	Name         string  `json:"name"`
	Extension    string  `json:"extension"`
	IsSource     bool    `json:"is_src"`
	FileSize     int64   `json:"file_size"`
	TimeModified string  `json:"time_modified"`
	Path         string  `json:"path"`
	Checksum     string  `json:"checksum"`
	Copyright    *string `json:"copyright"`
	Link         *string `json:"link"`
	Version      *string `json:"version"`
	// Dest is the slash-separated path under the save folder. It is written
	// to the spreadsheet and database exports only.
	Dest string `json:"-"`
}

// DiffEntry is a name collision between two files with different content.
type DiffEntry struct {
	OriginalPath    string `json:"original_path"`
	ConflictingPath string `json:"conflicting_path"`
	ResolvedName    string `json:"resolved_name"`
	// Dest is where the renamed file was written, relative to the save folder.
	Dest string `json:"-"`
}

type Report struct {
	TimeCompleted string          `json:"time_completed"`
	TotalFiles    int             `json:"total_files"`
	SearchPath    string          `json:"search_path"`
	SavePath      string          `json:"save_path"`
	Extensions    []string        `json:"extensions"`
	DiffFiles     []DiffEntry     `json:"diff_files"`
	Manifest      []ManifestEntry `json:"manifest"`
}

// Meta is the run metadata merged into the report by Finalize.
type Meta struct {
	SearchPath string
	SavePath   string
	Extensions []string
	Completed  time.Time
}

// Aggregator is the only writer of a run's report. Both sequences keep the
// order in which entries were recorded.
type Aggregator struct {
	mu        sync.Mutex
	manifest  []ManifestEntry
	diffs     []DiffEntry
	finalized bool
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		manifest: make([]ManifestEntry, 0),
		diffs:    make([]DiffEntry, 0),
	}
}

// Record appends rec to the manifest under the assigned destination name.
// Skip decisions are ignored.
func (a *Aggregator) Record(dec deduplicator.Decision, rec internal.FileRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return internal.ErrFinalized
	}
	if dec.Action == deduplicator.ActionSkip {
		return nil
	}

	a.manifest = append(a.manifest, ManifestEntry{
		Name:         dec.Name,
		Extension:    rec.Extension,
		IsSource:     rec.IsSource,
		FileSize:     rec.Size,
		TimeModified: rec.ModifiedTime.Format(ModifiedLayout),
		Path:         rec.Path,
		Checksum:     rec.Checksum,
		Copyright:    rec.Header.Copyright,
		Link:         rec.Header.Link,
		Version:      rec.Header.Version,
		Dest:         DestPath(rec.Subdir, dec.Name),
	})
	return nil
}

// RecordCollision appends a diff entry. dest is the renamed file's path
// relative to the save folder.
func (a *Aggregator) RecordCollision(entry deduplicator.CollisionEntry, dest string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return internal.ErrFinalized
	}
	a.diffs = append(a.diffs, DiffEntry{
		OriginalPath:    entry.OriginalPath,
		ConflictingPath: entry.ConflictingPath,
		ResolvedName:    entry.ResolvedName,
		Dest:            dest,
	})
	return nil
}

// DestPath joins a slash-separated subdir and a file name.
func DestPath(subdir, name string) string {
	return path.Join(filepath.ToSlash(subdir), name)
}

// Finalize closes the aggregator and returns the report. It may be called once.
func (a *Aggregator) Finalize(meta Meta) (*Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return nil, fmt.Errorf("%w: report already built", internal.ErrFinalized)
	}
	a.finalized = true

	exts := dedupSorted(meta.Extensions)
	completed := meta.Completed
	if completed.IsZero() {
		completed = time.Now()
	}

	return &Report{
		TimeCompleted: completed.Format(CompletedLayout),
		TotalFiles:    len(a.manifest),
		SearchPath:    meta.SearchPath,
		SavePath:      meta.SavePath,
		Extensions:    exts,
		DiffFiles:     a.diffs,
		Manifest:      a.manifest,
	}, nil
}

func dedupSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
