package classifier

import (
	"path/filepath"
	"strings"

	"github.com/moyu-x/mql-organizer/internal"
)

// Classification is the result of classifying a source path.
type Classification struct {
	IsOrganized bool
	// SuggestedSubdir is slash-separated and relative to the output root.
	SuggestedSubdir string
}

// Classifier decides whether a file lives in a recognized family directory
// tree (MQL4, MQL5, ...) or should be treated as unorganized.
type Classifier struct {
	families       []string
	unorganizedDir string
}

func NewClassifier(families []string, unorganizedDir string) *Classifier {
	lowered := make([]string, 0, len(families))
	for _, f := range families {
		if f = strings.TrimSpace(f); f != "" {
			lowered = append(lowered, strings.ToLower(f))
		}
	}
	if unorganizedDir == "" {
		unorganizedDir = internal.DefaultUnorganizedDir
	}
	return &Classifier{families: lowered, unorganizedDir: unorganizedDir}
}

// Classify matches the directory segments of path case-insensitively against
// the configured family fragments. The organized subdir runs from the last
// matching segment through the file's parent directory, keeping the original
// casing. Paths matching more than one distinct family are ambiguous and
// treated as unorganized.
func (c *Classifier) Classify(path string) Classification {
	dir := filepath.ToSlash(filepath.Dir(filepath.Clean(path)))
	segments := strings.Split(dir, "/")

	matched := make(map[string]bool)
	last := -1
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if family, ok := c.match(seg); ok {
			matched[family] = true
			last = i
		}
	}

	if last < 0 || len(matched) != 1 {
		return Classification{IsOrganized: false, SuggestedSubdir: c.unorganizedDir}
	}

	return Classification{
		IsOrganized:     true,
		SuggestedSubdir: strings.Join(segments[last:], "/"),
	}
}

func (c *Classifier) match(segment string) (string, bool) {
	lower := strings.ToLower(segment)
	for _, family := range c.families {
		if strings.Contains(lower, family) {
			return family, true
		}
	}
	return "", false
}
