package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"

	"github.com/moyu-x/mql-organizer/internal"
	"github.com/moyu-x/mql-organizer/pkg/logger"
)

const (
	ManifestSheet = "manifest"
	DiffSheet     = "diff_files"
)

var manifestHeader = []any{
	"name", "extension", "is_src", "file_size", "time_modified",
	"path", "checksum", "copyright", "link", "version", "dest",
}

var diffHeader = []any{"original_path", "conflicting_path", "resolved_name", "dest"}

// WriteJSON encodes r with four-space indentation.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// WriteXLSX writes the manifest and diff_files sheets as a workbook.
func WriteXLSX(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ManifestSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(DiffSheet); err != nil {
		return err
	}

	if err := f.SetSheetRow(ManifestSheet, "A1", &manifestHeader); err != nil {
		return err
	}
	for i, m := range r.Manifest {
		row := []any{
			m.Name, m.Extension, m.IsSource, m.FileSize, m.TimeModified,
			m.Path, m.Checksum, deref(m.Copyright), deref(m.Link), deref(m.Version), m.Dest,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ManifestSheet, cell, &row); err != nil {
			return err
		}
	}

	if err := f.SetSheetRow(DiffSheet, "A1", &diffHeader); err != nil {
		return err
	}
	for i, d := range r.DiffFiles {
		row := []any{d.OriginalPath, d.ConflictingPath, d.ResolvedName, d.Dest}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(DiffSheet, cell, &row); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// SaveFile writes r to path on fs using the encoder picked by the file
// extension (.json or .xlsx).
func SaveFile(fs afero.Fs, path string, r *Report) error {
	var write func(io.Writer, *Report) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		write = WriteJSON
	case ".xlsx":
		write = WriteXLSX
	default:
		return fmt.Errorf("%w: unsupported report format %q", internal.ErrConfig, path)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %w", internal.ErrIO, err)
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", internal.ErrIO, err)
	}
	if err := write(f, r); err != nil {
		f.Close()
		return fmt.Errorf("%w: writing %s: %w", internal.ErrIO, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", internal.ErrIO, err)
	}

	logger.Get().Info().Str("path", path).Msg("report written")
	return nil
}
