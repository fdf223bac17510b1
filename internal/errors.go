package internal

import "errors"

var (
	// ErrInvalidRecord marks malformed file metadata; fatal to that file only.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrIO marks a read, hash or copy failure on a single file.
	ErrIO = errors.New("i/o error")

	// ErrConfig marks a bad search/output configuration; aborts the run.
	ErrConfig = errors.New("configuration error")

	// ErrFinalized is returned when a finalized report is written to.
	ErrFinalized = errors.New("report already finalized")

	// ErrLocked is returned when another run holds the output directory.
	ErrLocked = errors.New("output directory is locked by another run")
)
