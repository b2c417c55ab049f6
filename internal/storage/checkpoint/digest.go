package checkpoint

import (
	"crypto/md5"
	"crypto/sha256"
	"hash"
	"sort"
	"strings"
	"sync"

	"github.com/spaolacci/murmur3"
	"golang.org/x/crypto/blake2b"

	"github.com/yndnr/metackpt/internal/core/domain"
)

// Digest algorithm names.
const (
	DigestMD5     = "md5"
	DigestSHA256  = "sha256"
	DigestMurmur3 = "murmur3"
	DigestBlake2b = "blake2b"

	DefaultDigest = DigestMD5
)

// Algorithm describes a digest used to guard checkpoint payloads.
type Algorithm struct {
	// Name identifies the algorithm in configuration.
	Name string
	// Suffix is appended to the payload path to form the sidecar path.
	Suffix string
	// Size is the digest length in bytes.
	Size int
	// New returns a fresh running digest.
	New func() hash.Hash
}

var (
	algorithmsMu sync.RWMutex
	algorithms   = map[string]Algorithm{}
)

func init() {
	Register(Algorithm{Name: DigestMD5, Suffix: ".md5", Size: md5.Size, New: md5.New})
	Register(Algorithm{Name: DigestSHA256, Suffix: ".sha256", Size: sha256.Size, New: sha256.New})
	Register(Algorithm{Name: DigestMurmur3, Suffix: ".murmur3", Size: 16, New: func() hash.Hash {
		return murmur3.New128()
	}})
	Register(Algorithm{Name: DigestBlake2b, Suffix: ".blake2b", Size: 16, New: func() hash.Hash {
		// Only fails for a key longer than 64 bytes or an invalid size.
		h, _ := blake2b.New(16, nil)
		return h
	}})
}

// Register adds or replaces a digest algorithm.
func Register(a Algorithm) {
	algorithmsMu.Lock()
	defer algorithmsMu.Unlock()
	algorithms[strings.ToLower(a.Name)] = a
}

// LookupAlgorithm returns the registered algorithm with the given name.
// An empty name selects DefaultDigest.
func LookupAlgorithm(name string) (Algorithm, error) {
	if name == "" {
		name = DefaultDigest
	}
	algorithmsMu.RLock()
	defer algorithmsMu.RUnlock()
	a, ok := algorithms[strings.ToLower(name)]
	if !ok {
		return Algorithm{}, domain.ErrUnknownDigest.WithDetails(name)
	}
	return a, nil
}

// Algorithms returns the names of all registered algorithms, sorted.
func Algorithms() []string {
	algorithmsMu.RLock()
	defer algorithmsMu.RUnlock()
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sidecarSuffixes returns the suffixes of all registered algorithms.
func sidecarSuffixes() []string {
	algorithmsMu.RLock()
	defer algorithmsMu.RUnlock()
	out := make([]string, 0, len(algorithms))
	for _, a := range algorithms {
		out = append(out, a.Suffix)
	}
	return out
}
