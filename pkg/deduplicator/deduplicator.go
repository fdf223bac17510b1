package deduplicator

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/moyu-x/mql-organizer/internal"
)

type Action int

const (
	// ActionSkip means the same content is already placed under the same name.
	ActionSkip Action = iota
	// ActionCopy means copy under Decision.Name, which is the original filename.
	ActionCopy
	// ActionCopyRenamed means copy under a suffixed name and log the collision.
	ActionCopyRenamed
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionCopy:
		return "copy"
	case ActionCopyRenamed:
		return "copy-renamed"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// CollisionEntry records two different-content files claiming one destination name.
type CollisionEntry struct {
	OriginalPath    string
	ConflictingPath string
	ResolvedName    string
}

type Decision struct {
	Action Action
	// Name is the destination filename. For skips it is the name already
	// holding the content.
	Name      string
	Collision *CollisionEntry
}

type occupant struct {
	checksum string
	path     string
	name     string
}

// undo remembers what the last non-skip decision registered.
type undo struct {
	checksum      string
	requestedKey  string
	assignedKey   string
	createdBucket bool
}

// Deduplicator owns the checksum index and name registry of one run. It is not
// safe for concurrent use: decisions depend on every earlier decision, so
// records must be fed one at a time in discovery order.
type Deduplicator struct {
	// checksum -> lowercased requested filename -> assigned destination name
	checksums map[string]map[string]string
	// lowercased destination name -> occupant
	names map[string]occupant
	last  *undo
}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{
		checksums: make(map[string]map[string]string),
		names:     make(map[string]occupant),
	}
}

func key(name string) string {
	return strings.ToLower(name)
}

// Decide returns what to do with rec and records the outcome.
func (d *Deduplicator) Decide(rec internal.FileRecord) (Decision, error) {
	if rec.Name == "" || rec.Checksum == "" {
		return Decision{}, fmt.Errorf("%w: %q has empty name or checksum", internal.ErrInvalidRecord, rec.Path)
	}
	d.last = nil

	requested := key(rec.Name)
	if assigned, ok := d.checksums[rec.Checksum][requested]; ok {
		return Decision{Action: ActionSkip, Name: assigned}, nil
	}

	occ, taken := d.names[requested]
	switch {
	case !taken:
		d.occupy(rec, rec.Name, requested)
		return Decision{Action: ActionCopy, Name: rec.Name}, nil

	case occ.checksum == rec.Checksum:
		// same bytes already sit under this name; only remember the alias
		d.bucket(rec.Checksum)[requested] = occ.name
		return Decision{Action: ActionSkip, Name: occ.name}, nil
	}

	generated := d.nextFreeName(rec.Name)
	d.occupy(rec, generated, requested)
	return Decision{
		Action: ActionCopyRenamed,
		Name:   generated,
		Collision: &CollisionEntry{
			OriginalPath:    occ.path,
			ConflictingPath: rec.Path,
			ResolvedName:    generated,
		},
	}, nil
}

func (d *Deduplicator) bucket(checksum string) map[string]string {
	b, ok := d.checksums[checksum]
	if !ok {
		b = make(map[string]string)
		d.checksums[checksum] = b
	}
	return b
}

func (d *Deduplicator) occupy(rec internal.FileRecord, assigned, requested string) {
	_, existed := d.checksums[rec.Checksum]
	d.names[key(assigned)] = occupant{checksum: rec.Checksum, path: rec.Path, name: assigned}
	d.bucket(rec.Checksum)[requested] = assigned
	d.last = &undo{
		checksum:      rec.Checksum,
		requestedKey:  requested,
		assignedKey:   key(assigned),
		createdBucket: !existed,
	}
}

// nextFreeName appends (1), (2), ... before the extension and returns the
// first candidate not present in the registry.
func (d *Deduplicator) nextFreeName(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s(%d)%s", stem, n, ext)
		if _, taken := d.names[key(candidate)]; !taken {
			return candidate
		}
	}
}

// Revert undoes the most recent copy decision. The organizer calls it when the
// copy itself failed, so no name stays occupied by a file that was never written.
func (d *Deduplicator) Revert() error {
	if d.last == nil {
		return fmt.Errorf("no copy decision to revert")
	}
	u := d.last
	d.last = nil

	delete(d.names, u.assignedKey)
	if b, ok := d.checksums[u.checksum]; ok {
		delete(b, u.requestedKey)
		if u.createdBucket && len(b) == 0 {
			delete(d.checksums, u.checksum)
		}
	}
	return nil
}

// Seed registers a file that already exists at the destination. It reports
// false when the name is already occupied; the earlier occupant wins.
func (d *Deduplicator) Seed(name, checksum, path string) bool {
	if name == "" || checksum == "" {
		return false
	}
	k := key(name)
	if _, taken := d.names[k]; taken {
		return false
	}
	d.names[k] = occupant{checksum: checksum, path: path, name: name}
	b := d.bucket(checksum)
	b[k] = name
	// a seeded test(1).mq4 also answers for test.mq4 with the same content
	if base, ok := unsuffixed(name); ok {
		if _, exists := b[key(base)]; !exists {
			b[key(base)] = name
		}
	}
	d.last = nil
	return true
}

var suffixPattern = regexp.MustCompile(`^(.*)\(\d+\)$`)

// unsuffixed strips a generated (n) suffix from name.
func unsuffixed(name string) (string, bool) {
	ext := filepath.Ext(name)
	m := suffixPattern.FindStringSubmatch(strings.TrimSuffix(name, ext))
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1] + ext, true
}

// Names returns the sorted destination names placed under checksum.
func (d *Deduplicator) Names(checksum string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, assigned := range d.checksums[checksum] {
		if !seen[assigned] {
			seen[assigned] = true
			out = append(out, assigned)
		}
	}
	sort.Strings(out)
	return out
}

// Occupant returns the checksum and source path holding name, if any.
func (d *Deduplicator) Occupant(name string) (checksum, path string, ok bool) {
	occ, ok := d.names[key(name)]
	return occ.checksum, occ.path, ok
}

// Len is the number of occupied destination names.
func (d *Deduplicator) Len() int {
	return len(d.names)
}
