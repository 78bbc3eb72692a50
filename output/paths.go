// Package output owns artifact path construction. Names are pure functions
// of (directory, frame index, run configuration), so re-running a pipeline
// maps every frame to the same file, and append runs never collide.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

const frameDigits = 6

// FramePath is <dir>/<index %06d><ext>. ext must carry the dot.
func FramePath(dir string, index int, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%0*d%s", frameDigits, index, ext))
}

// ChunkDir is <dir>/<chunk %06d>.
func ChunkDir(dir string, chunk int) string {
	return filepath.Join(dir, fmt.Sprintf("%0*d", frameDigits, chunk))
}

// ChunkOf maps a global frame index to its chunk and the index inside it.
func ChunkOf(frame, chunkSize int) (chunk, local int) {
	return frame / chunkSize, frame % chunkSize
}

// %0*d pads to frameDigits but grows past it, so scans accept longer names
var frameFilePattern = regexp.MustCompile(`^([0-9]{6,})\.[a-z0-9]+$`)

// NextFrameIndex scans dir for frame-numbered files and returns the next
// free index, 0 for a missing or empty directory. Append runs start here.
func NextFrameIndex(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "Failed to scan output dir %q", dir)
	}
	next := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := frameFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		index, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if index+1 > next {
			next = index + 1
		}
	}
	return next, nil
}

var chunkDirPattern = regexp.MustCompile(`^[0-9]{6,}$`)

// NextChunkState scans a chunked dataset dir and reports where appending
// should continue: the chunk to write into and how many frames it already
// holds. frameSubdir names the per-chunk directory counted (e.g. "rgb").
func NextChunkState(dir, frameSubdir string, chunkSize int) (chunk, used int, err error) {
	if chunkSize <= 0 {
		return 0, 0, errors.Errorf("Invalid chunk size %d", chunkSize)
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, errors.Wrapf(err, "Failed to scan dataset dir %q", dir)
	}

	last := -1
	for _, entry := range entries {
		if !entry.IsDir() || !chunkDirPattern.MatchString(entry.Name()) {
			continue
		}
		index, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		if index > last {
			last = index
		}
	}
	if last < 0 {
		return 0, 0, nil
	}

	used, err = NextFrameIndex(filepath.Join(ChunkDir(dir, last), frameSubdir))
	if err != nil {
		return 0, 0, err
	}
	if used >= chunkSize {
		return last + 1, 0, nil
	}
	return last, used, nil
}

// EnsureDir creates the directory (and parents) if missing.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return errors.Wrapf(err, "Failed to create output dir %q", dir)
	}
	return nil
}
