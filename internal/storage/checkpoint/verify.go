package checkpoint

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/yndnr/metackpt/internal/core/domain"
)

// Status values reported by Verify and List.
const (
	StatusOK             = "ok"
	StatusCorrupted      = "corrupted"
	StatusMissingSidecar = "missing_sidecar"
	StatusUnverified     = "unverified"
	StatusOrphanSidecar  = "orphan_sidecar"
)

// Info describes a checkpoint pair found on disk.
type Info struct {
	Name    domain.CheckpointName `json:"name" yaml:"name"`
	Digest  string                `json:"digest" yaml:"digest"`
	Size    int64                 `json:"size" yaml:"size"`
	ModTime time.Time             `json:"mod_time" yaml:"mod_time"`
	Sum     string                `json:"sum,omitempty" yaml:"sum,omitempty"`
	Status  string                `json:"status" yaml:"status"`
}

// Verify recomputes the digest of an existing checkpoint file and compares
// it with its sidecar without involving the owning entity. The returned
// error is a corruption error when the pair does not match.
func Verify(dir string, name domain.CheckpointName, digest string) (*Info, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	algo, err := LookupAlgorithm(digest)
	if err != nil {
		return nil, err
	}

	path := Path(dir, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint file: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat checkpoint file: %w", err)
	}
	h := algo.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}

	info := &Info{
		Name:    name,
		Digest:  algo.Name,
		Size:    st.Size(),
		ModTime: st.ModTime(),
		Sum:     fmt.Sprintf("%x", h.Sum(nil)),
	}

	want, err := os.ReadFile(DigestPath(dir, name, algo))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			info.Status = StatusMissingSidecar
			return info, corrupted(name, "digest sidecar missing")
		}
		return nil, fmt.Errorf("read sidecar: %w", err)
	}
	if !bytes.Equal(h.Sum(nil), want) {
		info.Status = StatusCorrupted
		return info, corrupted(name, "digest mismatch")
	}
	info.Status = StatusOK
	return info, nil
}

// List enumerates the checkpoints in dir using the given digest algorithm.
// With verify set every pair is checked; otherwise pairs that have both
// files are reported as unverified. Temp files are skipped.
func List(dir, digest string, verify bool) ([]*Info, error) {
	algo, err := LookupAlgorithm(digest)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint dir: %w", err)
	}

	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			present[e.Name()] = true
		}
	}

	suffixes := sidecarSuffixes()
	var out []*Info
	for name := range present {
		if isTempPath(name) {
			continue
		}
		if strings.HasSuffix(name, algo.Suffix) {
			if !present[strings.TrimSuffix(name, algo.Suffix)] {
				out = append(out, &Info{
					Name:   domain.CheckpointName(strings.TrimSuffix(name, algo.Suffix)),
					Digest: algo.Name,
					Status: StatusOrphanSidecar,
				})
			}
			continue
		}
		if hasAnySuffix(name, suffixes) {
			continue
		}

		cn := domain.CheckpointName(name)
		if ValidateName(cn) != nil {
			continue
		}
		if verify {
			info, err := Verify(dir, cn, algo.Name)
			if info == nil {
				return nil, err
			}
			out = append(out, info)
			continue
		}

		info := &Info{Name: cn, Digest: algo.Name, Status: StatusUnverified}
		if st, err := os.Stat(Path(dir, cn)); err == nil {
			info.Size = st.Size()
			info.ModTime = st.ModTime()
		}
		if !present[name+algo.Suffix] {
			info.Status = StatusMissingSidecar
		}
		out = append(out, info)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
