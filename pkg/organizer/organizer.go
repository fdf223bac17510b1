package organizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/moyu-x/mql-organizer/internal"
	"github.com/moyu-x/mql-organizer/pkg/classifier"
	"github.com/moyu-x/mql-organizer/pkg/database"
	"github.com/moyu-x/mql-organizer/pkg/deduplicator"
	"github.com/moyu-x/mql-organizer/pkg/hasher"
	"github.com/moyu-x/mql-organizer/pkg/logger"
	"github.com/moyu-x/mql-organizer/pkg/metadata"
	"github.com/moyu-x/mql-organizer/pkg/report"
	"github.com/moyu-x/mql-organizer/pkg/scanner"
)

type Options struct {
	// Fs defaults to the OS filesystem.
	Fs afero.Fs

	SearchPath string
	SavePath   string

	// Extensions are collected anywhere; BoundExtensions only under a family dir.
	Extensions      []string
	BoundExtensions []string
	Exclude         []string

	FamilyDirs     []string
	UnorganizedDir string

	Algorithm hasher.Algorithm
	Workers   int

	// Seed registers files already in SavePath before the run.
	Seed bool

	ReportName string
	Excel      bool
	SQLite     bool

	// Extractor defaults to a PropertyExtractor over Fs.
	Extractor metadata.Extractor
}

// Organizer runs one organize pass. It is single use.
type Organizer struct {
	opts Options
	fs   afero.Fs

	walker     *scanner.FileWalker
	hasher     *hasher.Hasher
	classifier *classifier.Classifier
	dedup      *deduplicator.Deduplicator
	agg        *report.Aggregator
	extractor  metadata.Extractor

	sourceExts map[string]bool
	looseExts  map[string]bool
	boundExts  map[string]bool

	summary      internal.Summary
	totalFiles   int
	progressChan chan internal.ProgressUpdate
	ran          bool
}

// New validates opts and builds an Organizer. Invalid paths or settings
// return an error wrapping internal.ErrConfig.
func New(opts Options) (*Organizer, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Algorithm == "" {
		opts.Algorithm = hasher.Blake2b
	}
	if opts.Workers < 1 {
		opts.Workers = internal.DefaultWorkers
	}
	if opts.UnorganizedDir == "" {
		opts.UnorganizedDir = internal.DefaultUnorganizedDir
	}
	if opts.ReportName == "" {
		opts.ReportName = internal.DefaultReportName
	}
	if opts.FamilyDirs == nil {
		opts.FamilyDirs = internal.FamilyDirs
	}

	if err := validate(&opts); err != nil {
		return nil, err
	}

	fs := opts.Fs
	h, err := hasher.New(fs, opts.Algorithm)
	if err != nil {
		return nil, err
	}

	o := &Organizer{
		opts:         opts,
		fs:           fs,
		hasher:       h,
		classifier:   classifier.NewClassifier(opts.FamilyDirs, opts.UnorganizedDir),
		dedup:        deduplicator.NewDeduplicator(),
		agg:          report.NewAggregator(),
		sourceExts:   extSet(internal.SourceExtensions),
		looseExts:    extSet(opts.Extensions),
		boundExts:    extSet(opts.BoundExtensions),
		progressChan: make(chan internal.ProgressUpdate, 100),
	}

	o.extractor = opts.Extractor
	if o.extractor == nil {
		o.extractor = metadata.NewPropertyExtractor(fs, internal.SourceExtensions)
	}

	o.walker = scanner.NewFileWalker(fs)
	o.walker.Exclude = opts.Exclude
	o.walker.SkipDirs = []string{opts.SavePath}
	o.walker.Accept = o.accept

	return o, nil
}

func validate(opts *Options) error {
	if opts.SearchPath == "" {
		return fmt.Errorf("%w: search path is required", internal.ErrConfig)
	}
	if opts.SavePath == "" {
		return fmt.Errorf("%w: save path is required", internal.ErrConfig)
	}

	var err error
	if opts.SearchPath, err = filepath.Abs(opts.SearchPath); err != nil {
		return fmt.Errorf("%w: %w", internal.ErrConfig, err)
	}
	if opts.SavePath, err = filepath.Abs(opts.SavePath); err != nil {
		return fmt.Errorf("%w: %w", internal.ErrConfig, err)
	}

	if opts.SearchPath == opts.SavePath {
		return fmt.Errorf("%w: save path must differ from search path", internal.ErrConfig)
	}

	info, err := opts.Fs.Stat(opts.SearchPath)
	if err != nil {
		return fmt.Errorf("%w: search path %s: %w", internal.ErrConfig, opts.SearchPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: search path %s is not a directory", internal.ErrConfig, opts.SearchPath)
	}

	if len(opts.Extensions)+len(opts.BoundExtensions) == 0 {
		return fmt.Errorf("%w: no extensions configured", internal.ErrConfig)
	}
	opts.Extensions = normalizeExts(opts.Extensions)
	opts.BoundExtensions = normalizeExts(opts.BoundExtensions)

	_, err = hasher.ParseAlgorithm(string(opts.Algorithm))
	return err
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

func extSet(exts []string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m[e] = true
	}
	return m
}

// accept keeps loose extensions everywhere and bound extensions only inside
// a recognized family directory.
func (o *Organizer) accept(path, ext string) bool {
	if o.looseExts[ext] {
		return true
	}
	if o.boundExts[ext] {
		return o.classifier.Classify(path).IsOrganized
	}
	return false
}

// Extensions returns every extension searched, loose and bound.
func (o *Organizer) Extensions() []string {
	out := make([]string, 0, len(o.opts.Extensions)+len(o.opts.BoundExtensions))
	out = append(out, o.opts.Extensions...)
	return append(out, o.opts.BoundExtensions...)
}

func (o *Organizer) Progress() <-chan internal.ProgressUpdate {
	return o.progressChan
}

func (o *Organizer) SavePath() string {
	return o.opts.SavePath
}

// Run walks the search path, decides every file in discovery order, copies
// what needs copying and writes the reports. Per-file failures are counted in
// the summary and never abort the run. When ctx is cancelled no further files
// are processed; the report covers what was done and ctx.Err() is returned.
func (o *Organizer) Run(ctx context.Context) (*report.Report, *internal.Summary, error) {
	if o.ran {
		return nil, nil, errors.New("organizer already ran")
	}
	o.ran = true
	defer close(o.progressChan)

	o.summary = internal.Summary{StartTime: time.Now()}

	if err := o.fs.MkdirAll(o.opts.SavePath, 0755); err != nil {
		return nil, nil, fmt.Errorf("%w: save path %s: %w", internal.ErrConfig, o.opts.SavePath, err)
	}

	if err := o.checkWritable(); err != nil {
		return nil, nil, err
	}

	unlock, err := o.lock()
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	logger.Get().Info().Msgf("search path: %s", o.opts.SearchPath)
	logger.Get().Info().Msgf("save path: %s", o.opts.SavePath)
	logger.Get().Info().Msgf("hash algorithm: %s, workers: %d", o.hasher.Algorithm(), o.opts.Workers)

	if o.opts.Seed {
		seeded, err := o.seed()
		if err != nil {
			return nil, nil, err
		}
		logger.Get().Info().Msgf("seeded %d existing files from %s", seeded, o.opts.SavePath)
	}

	total, err := o.walker.CountFiles([]string{o.opts.SearchPath})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: counting files: %w", internal.ErrIO, err)
	}
	o.totalFiles = total

	if err := o.processFiles(ctx); err != nil {
		return nil, nil, err
	}

	o.summary.EndTime = time.Now()

	r, err := o.agg.Finalize(report.Meta{
		SearchPath: o.opts.SearchPath,
		SavePath:   o.opts.SavePath,
		Extensions: o.Extensions(),
		Completed:  o.summary.EndTime,
	})
	if err != nil {
		return nil, &o.summary, err
	}

	if err := o.writeReports(r); err != nil {
		return r, &o.summary, err
	}

	s := o.summary
	logger.Get().Info().Msgf("done in %v: %d discovered, %d copied, %d renamed, %d skipped, %d invalid, %d errors, %d names in use",
		s.EndTime.Sub(s.StartTime), s.Discovered, s.Copied, s.Renamed, s.Skipped, s.Invalid, s.Errored, o.dedup.Len())

	return r, &o.summary, ctx.Err()
}

// checkWritable creates and removes a probe file in the save path.
func (o *Organizer) checkWritable() error {
	probe := filepath.Join(o.opts.SavePath, "."+uuid.NewString()+tmpSuffix)
	f, err := o.fs.OpenFile(probe, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("%w: save path %s is not writable: %w", internal.ErrConfig, o.opts.SavePath, err)
	}
	f.Close()
	if err := o.fs.Remove(probe); err != nil {
		return fmt.Errorf("%w: save path %s: %w", internal.ErrConfig, o.opts.SavePath, err)
	}
	return nil
}

// lock takes an exclusive lock file in the save path so two runs never
// write into the same tree. Only the OS filesystem is locked.
func (o *Organizer) lock() (func(), error) {
	if _, ok := o.fs.(*afero.OsFs); !ok {
		return func() {}, nil
	}

	fl := flock.New(filepath.Join(o.opts.SavePath, internal.LockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", internal.ErrIO, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", internal.ErrLocked, o.opts.SavePath)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			logger.Get().Warn().Err(err).Msg("releasing lock failed")
		}
		_ = os.Remove(fl.Path())
	}, nil
}

func (o *Organizer) processFiles(ctx context.Context) error {
	pool := hasher.NewHashPool(o.hasher, o.opts.Workers)
	if err := pool.Start(); err != nil {
		return fmt.Errorf("starting hash pool: %w", err)
	}

	go func() {
		defer pool.Close()
		seq := 0
		err := o.walker.Walk(o.opts.SearchPath, func(path string, info os.FileInfo) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pool.AddTask(hasher.HashTask{Seq: seq, Path: path, Size: info.Size(), ModTime: info.ModTime()})
			seq++
			return nil
		})
		if err != nil {
			logger.Get().Warn().Err(err).Msg("walk stopped early")
		}
	}()

	hasher.Ordered(pool.Results(), func(r hasher.HashResult) {
		if ctx.Err() != nil {
			return
		}
		o.processFile(r)
		o.sendProgress(r.Path)
	})
	return nil
}

func (o *Organizer) processFile(r hasher.HashResult) {
	o.summary.Discovered++
	pos := fmt.Sprintf("[%d/%d]", o.summary.Discovered, o.totalFiles)

	if r.Error != nil {
		o.summary.Errored++
		logger.Get().Error().Err(r.Error).Msgf("%s hashing failed: %s", pos, r.Path)
		return
	}

	rec := o.newRecord(r)
	dec, err := o.dedup.Decide(rec)
	if err != nil {
		o.summary.Invalid++
		logger.Get().Error().Err(err).Msgf("%s invalid file: %s", pos, r.Path)
		return
	}

	if dec, err = o.resolveExisting(rec, dec); err != nil {
		o.summary.Errored++
		logger.Get().Error().Err(err).Msgf("%s checking destination failed: %s", pos, r.Path)
		return
	}

	if dec.Action == deduplicator.ActionSkip {
		o.summary.Skipped++
		logger.Get().Debug().Msgf("%s duplicate of %s, skipped: %s", pos, dec.Name, r.Path)
		return
	}

	dst := filepath.Join(o.opts.SavePath, rec.Subdir, dec.Name)
	if err := o.copyFile(r.Path, dst); err != nil {
		o.summary.Errored++
		if rerr := o.dedup.Revert(); rerr != nil {
			logger.Get().Warn().Err(rerr).Msg("reverting decision failed")
		}
		logger.Get().Error().Err(err).Msgf("%s copy failed: %s", pos, r.Path)
		return
	}

	rec.Header = o.extractor.Extract(r.Path, rec.Extension)

	if err := o.agg.Record(dec, rec); err != nil {
		logger.Get().Error().Err(err).Msgf("%s recording manifest entry failed: %s", pos, r.Path)
	}
	o.summary.Bytes += rec.Size

	if dec.Collision != nil {
		o.summary.Renamed++
		if err := o.agg.RecordCollision(*dec.Collision, report.DestPath(rec.Subdir, dec.Name)); err != nil {
			logger.Get().Error().Err(err).Msgf("%s recording collision failed: %s", pos, r.Path)
		}
		logger.Get().Info().Msgf("%s name taken by %s, copied as %s: %s",
			pos, dec.Collision.OriginalPath, dec.Name, r.Path)
		return
	}

	o.summary.Copied++
	logger.Get().Debug().Msgf("%s copied %s -> %s (%s)", pos, r.Path, dst, formatBytes(rec.Size))
}

// resolveExisting re-decides rec while its destination holds a file this run
// did not write. That file becomes the occupant of its name, so equal content
// is skipped and different content is renamed instead of overwritten.
func (o *Organizer) resolveExisting(rec internal.FileRecord, dec deduplicator.Decision) (deduplicator.Decision, error) {
	for dec.Action != deduplicator.ActionSkip {
		dst := filepath.Join(o.opts.SavePath, rec.Subdir, dec.Name)
		_, err := o.fs.Stat(dst)
		if os.IsNotExist(err) {
			return dec, nil
		}

		var sum string
		if err == nil {
			sum, err = o.hasher.CalculateHash(dst)
		}
		if rerr := o.dedup.Revert(); rerr != nil {
			logger.Get().Warn().Err(rerr).Msg("reverting decision failed")
		}
		if err != nil {
			return dec, fmt.Errorf("%w: %s: %w", internal.ErrIO, dst, err)
		}

		o.dedup.Seed(dec.Name, sum, dst)
		logger.Get().Debug().Msgf("%s already exists in the save path", dst)

		if dec, err = o.dedup.Decide(rec); err != nil {
			return dec, err
		}
	}
	return dec, nil
}

func (o *Organizer) newRecord(r hasher.HashResult) internal.FileRecord {
	ext := scanner.Ext(r.Path)
	cls := o.classifier.Classify(r.Path)
	return internal.FileRecord{
		Name:         filepath.Base(r.Path),
		Extension:    ext,
		Path:         r.Path,
		Checksum:     r.Checksum,
		Size:         r.Size,
		ModifiedTime: r.ModTime,
		IsSource:     o.sourceExts[ext],
		IsOrganized:  cls.IsOrganized,
		Subdir:       cls.SuggestedSubdir,
	}
}

func (o *Organizer) sendProgress(current string) {
	s := o.summary
	update := internal.ProgressUpdate{
		Processed:   s.Discovered,
		Total:       o.totalFiles,
		Copied:      s.Copied,
		Renamed:     s.Renamed,
		Skipped:     s.Skipped,
		Errored:     s.Errored + s.Invalid,
		CurrentFile: current,
	}
	select {
	case o.progressChan <- update:
	default:
	}
}

// seed hashes every file already in the save path and registers it in
// lexical order. Report, lock and temp files are ignored.
func (o *Organizer) seed() (int, error) {
	walker := scanner.NewFileWalker(o.fs)
	seeded := 0
	err := walker.Walk(o.opts.SavePath, func(path string, info os.FileInfo) error {
		name := filepath.Base(path)
		if o.ownFile(name) {
			return nil
		}
		sum, err := o.hasher.CalculateHash(path)
		if err != nil {
			logger.Get().Warn().Err(err).Msgf("cannot hash existing file %s", path)
			return nil
		}
		if o.dedup.Seed(name, sum, path) {
			seeded++
		}
		return nil
	})
	if err != nil {
		return seeded, fmt.Errorf("%w: seeding from %s: %w", internal.ErrIO, o.opts.SavePath, err)
	}
	return seeded, nil
}

func (o *Organizer) ownFile(name string) bool {
	if name == internal.LockFileName {
		return true
	}
	if strings.HasPrefix(name, ".") && strings.HasSuffix(name, tmpSuffix) {
		return true
	}
	return strings.HasPrefix(name, o.opts.ReportName+".")
}

func (o *Organizer) writeReports(r *report.Report) error {
	base := filepath.Join(o.opts.SavePath, o.opts.ReportName)

	if err := report.SaveFile(o.fs, base+".json", r); err != nil {
		return err
	}

	if o.opts.Excel {
		if err := report.SaveFile(o.fs, base+".xlsx", r); err != nil {
			return err
		}
	}

	if o.opts.SQLite {
		db, err := database.NewDatabase(base + ".db")
		if err != nil {
			return err
		}
		defer db.Close()
		if _, err := db.SaveReport(r); err != nil {
			return err
		}
		logger.Get().Info().Str("path", base+".db").Msg("report written")
	}
	return nil
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
