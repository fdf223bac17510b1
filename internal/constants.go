package internal

const (
	// Default config location, relative to the user's home directory
	DefaultConfigDir = ".mql-organizer"

	DefaultSavePath       = "~/Desktop/MQL_FILES"
	DefaultUnorganizedDir = "UNORGANIZED"
	DefaultReportName     = "FILE_REPORT"
	DefaultHashAlgorithm  = "blake2b"

	// Buffer size of the hash task/result channels
	DefaultBufferSize = 1000

	DefaultWorkers = 4

	LockFileName = ".mql-organizer.lock"
)

// SourceExtensions are the MQL source file extensions, collected anywhere.
var SourceExtensions = []string{".mq4", ".mq5", ".mqh"}

// CompiledExtensions are collected anywhere when compiled files are requested.
var CompiledExtensions = []string{".ex4", ".ex5"}

// BoundExtensions are collected only under a recognized family directory.
var BoundExtensions = []string{
	".dll", ".mqproj", ".py", ".cl", ".tpl", ".html", ".set", ".wav",
	".chr", ".wnd", ".bin", ".ini", ".bmp", ".png", ".txt", ".csv",
}

// FamilyDirs are the directory names that mark an organized MQL tree.
var FamilyDirs = []string{"MQL4", "MQL5"}

// DefaultExclude are doublestar patterns skipped during the walk.
var DefaultExclude = []string{"**/$Recycle.Bin"}
