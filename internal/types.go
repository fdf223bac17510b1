package internal

import "time"

// HeaderInfo holds the optional header properties found at the top of a source file.
type HeaderInfo struct {
	Copyright *string
	Link      *string
	Version   *string
}

// FileRecord is one discovered file.
type FileRecord struct {
	Name         string
	Extension    string
	Path         string
	Checksum     string
	Size         int64
	ModifiedTime time.Time
	IsSource     bool
	IsOrganized  bool
	Subdir       string
	Header       HeaderInfo
}

// Summary counts per-file outcomes of one run.
type Summary struct {
	Discovered int
	Copied     int
	Renamed    int
	Skipped    int
	Invalid    int
	Errored    int
	Bytes      int64
	StartTime  time.Time
	EndTime    time.Time
}

// Processed is the number of files that reached a decision.
func (s *Summary) Processed() int {
	return s.Copied + s.Renamed + s.Skipped
}

// ProgressUpdate is emitted by the organizer after every decided file.
type ProgressUpdate struct {
	Processed   int
	Total       int
	Copied      int
	Renamed     int
	Skipped     int
	Errored     int
	CurrentFile string
}
