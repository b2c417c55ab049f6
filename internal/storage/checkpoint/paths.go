package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/metackpt/internal/core/domain"
)

// tmpMarker separates a final path from the unique suffix of its temp file.
const tmpMarker = ".tmp-"

// Path returns the payload path of the named checkpoint inside dir.
func Path(dir string, name domain.CheckpointName) string {
	return filepath.Join(dir, string(name))
}

// DigestPath returns the sidecar path of the named checkpoint inside dir.
func DigestPath(dir string, name domain.CheckpointName, a Algorithm) string {
	return Path(dir, name) + a.Suffix
}

// ValidateName checks that name is a usable checkpoint file name and does
// not collide with sidecar or temp file naming.
func ValidateName(name domain.CheckpointName) error {
	if err := name.Validate(); err != nil {
		return err
	}
	s := string(name)
	for _, suffix := range sidecarSuffixes() {
		if strings.HasSuffix(s, suffix) {
			return domain.ErrInvalidCheckpointName.WithDetails(
				fmt.Sprintf("%q ends with sidecar suffix %q", s, suffix))
		}
	}
	if strings.Contains(s, tmpMarker) {
		return domain.ErrInvalidCheckpointName.WithDetails(
			fmt.Sprintf("%q contains %q", s, tmpMarker))
	}
	return nil
}

func tempPath(path string) string {
	return path + tmpMarker + ulid.Make().String()
}

func isTempPath(path string) bool {
	return strings.Contains(filepath.Base(path), tmpMarker)
}

// writeSidecar stores the raw digest at path through a temp file so a crash
// never leaves a truncated sidecar behind.
func writeSidecar(path string, sum []byte) error {
	tmp := tempPath(path)
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create sidecar: %w", err)
	}

	if _, err := f.Write(sum); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write sidecar: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync sidecar: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close sidecar: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename sidecar: %w", err)
	}
	return nil
}

// removeIfExists deletes path, ignoring a missing file.
func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
