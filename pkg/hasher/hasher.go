package hasher

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
	"golang.org/x/crypto/blake2b"

	"github.com/moyu-x/mql-organizer/internal"
	"github.com/moyu-x/mql-organizer/pkg/logger"
)

type Algorithm string

const (
	Blake2b Algorithm = "blake2b"
	XXHash  Algorithm = "xxhash"
)

// ParseAlgorithm validates an algorithm name from configuration.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case Blake2b, XXHash:
		return Algorithm(name), nil
	}
	return "", fmt.Errorf("%w: unknown hash algorithm %q", internal.ErrConfig, name)
}

// Hasher computes hex content fingerprints of files on an afero filesystem.
type Hasher struct {
	fs   afero.Fs
	algo Algorithm
}

func New(fs afero.Fs, algo Algorithm) (*Hasher, error) {
	if _, err := ParseAlgorithm(string(algo)); err != nil {
		return nil, err
	}
	return &Hasher{fs: fs, algo: algo}, nil
}

func (h *Hasher) Algorithm() Algorithm {
	return h.algo
}

func (h *Hasher) newHash() hash.Hash {
	if h.algo == XXHash {
		return xxhash.New()
	}
	// blake2b.New512 only fails for keys longer than 64 bytes
	d, _ := blake2b.New512(nil)
	return d
}

// CalculateHash returns the fixed-length hex checksum of the file at path.
func (h *Hasher) CalculateHash(path string) (string, error) {
	logger.Get().Trace().Msgf("hashing %s", path)

	file, err := h.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", internal.ErrIO, path, err)
	}
	defer file.Close()

	d := h.newHash()
	if _, err := io.Copy(d, file); err != nil {
		return "", fmt.Errorf("%w: hash %s: %w", internal.ErrIO, path, err)
	}

	sum := hex.EncodeToString(d.Sum(nil))
	logger.Get().Trace().Msgf("hashed %s -> %s", path, sum)
	return sum, nil
}
