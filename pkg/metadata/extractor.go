package metadata

import (
	"bytes"
	"encoding/json"
	"io"
	"regexp"
	"unicode/utf8"

	"github.com/h2non/filetype"
	"github.com/spf13/afero"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/moyu-x/mql-organizer/internal"
	"github.com/moyu-x/mql-organizer/pkg/logger"
)

// Extractor pulls optional header properties out of a file. Failures are not
// reported; missing properties stay nil.
type Extractor interface {
	Extract(path, ext string) internal.HeaderInfo
}

// FileHeaderSize is how many leading bytes are sniffed for binary formats.
const FileHeaderSize = 261

// MaxTextSize caps how much of a source file is scanned for properties.
const MaxTextSize = 4 << 20

var (
	reCopyright = regexp.MustCompile(`(?m)^#property\s+copyright\s*"(.*?)"\s*$`)
	reLink      = regexp.MustCompile(`(?m)^#property\s+link\s*"(.*?)"\s*$`)
	reVersion   = regexp.MustCompile(`(?m)^#property\s+version\s*"(.*?)"\s*$`)
)

// PropertyExtractor reads `#property copyright|link|version "..."` lines from
// MQL sources and the same keys from .mqproj JSON project files.
type PropertyExtractor struct {
	fs         afero.Fs
	sourceExts map[string]bool
}

func NewPropertyExtractor(fs afero.Fs, sourceExts []string) *PropertyExtractor {
	m := make(map[string]bool, len(sourceExts))
	for _, e := range sourceExts {
		m[e] = true
	}
	return &PropertyExtractor{fs: fs, sourceExts: m}
}

func (e *PropertyExtractor) Extract(path, ext string) internal.HeaderInfo {
	if ext != ".mqproj" && !e.sourceExts[ext] {
		return internal.HeaderInfo{}
	}

	data, err := e.read(path)
	if err != nil {
		logger.Get().Debug().Err(err).Str("path", path).Msg("header extraction skipped")
		return internal.HeaderInfo{}
	}

	if ext == ".mqproj" {
		return parseProject(data)
	}

	head := data
	if len(head) > FileHeaderSize {
		head = head[:FileHeaderSize]
	}
	if kind, _ := filetype.Match(head); kind != filetype.Unknown {
		logger.Get().Debug().Str("path", path).Str("kind", kind.Extension).Msg("binary content, no header")
		return internal.HeaderInfo{}
	}

	return ParseProperties(DecodeText(data))
}

func (e *PropertyExtractor) read(path string) ([]byte, error) {
	f, err := e.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, MaxTextSize))
}

// ParseProperties scans decoded source text for the header properties.
func ParseProperties(text string) internal.HeaderInfo {
	return internal.HeaderInfo{
		Copyright: find(reCopyright, text),
		Link:      find(reLink, text),
		Version:   find(reVersion, text),
	}
}

func find(re *regexp.Regexp, text string) *string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v := m[1]
	return &v
}

func parseProject(data []byte) internal.HeaderInfo {
	var project struct {
		Copyright *string `json:"copyright"`
		Link      *string `json:"link"`
		Version   *string `json:"version"`
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if err := json.Unmarshal(data, &project); err != nil {
		return internal.HeaderInfo{}
	}
	return internal.HeaderInfo{Copyright: project.Copyright, Link: project.Link, Version: project.Version}
}

// DecodeText converts raw file bytes to a UTF-8 string. MetaEditor saves
// sources as UTF-16LE with a BOM; older files are often ANSI (Windows-1252).
func DecodeText(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}),
		bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		if out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data); err == nil {
			return string(out)
		}
	case looksUTF16LE(data):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		if out, _, err := transform.Bytes(dec, data); err == nil {
			return string(out)
		}
	}

	if utf8.Valid(data) {
		return string(data)
	}
	if out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data); err == nil {
		return string(out)
	}
	return string(data)
}

// looksUTF16LE reports whether most odd bytes of the leading sample are zero,
// which is how ASCII-heavy UTF-16LE text without a BOM looks.
func looksUTF16LE(data []byte) bool {
	n := len(data)
	if n > 512 {
		n = 512
	}
	if n < 4 {
		return false
	}
	zeros := 0
	for i := 1; i < n; i += 2 {
		if data[i] == 0 {
			zeros++
		}
	}
	return zeros*10 >= (n/2)*9
}
