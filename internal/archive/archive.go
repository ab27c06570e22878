// Package archive builds the in-memory tar archives the Executor and
// Validator copy into a sandbox via CopyToContainer — code injection over
// the Docker control channel.
//
// Adapted from a host-directory tar walker into a pure in-memory builder:
// this version never touches the host filesystem, since injected code only
// ever exists as in-memory bytes before it lands in the sandbox's tmpfs.
package archive

import (
	"archive/tar"
	"bytes"
	"fmt"
	"time"
)

// File is one entry to place in the archive, relative to the sandbox's
// working directory.
type File struct {
	Name string
	Data []byte
	Mode int64
}

// Build renders files into a tar archive ready for CopyToContainer.
func Build(files ...File) ([]byte, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	now := time.Now()
	for _, f := range files {
		mode := f.Mode
		if mode == 0 {
			mode = 0o644
		}
		header := &tar.Header{
			Name:    f.Name,
			Size:    int64(len(f.Data)),
			Mode:    mode,
			ModTime: now,
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, fmt.Errorf("archive: write header for %s: %w", f.Name, err)
		}
		if _, err := tw.Write(f.Data); err != nil {
			return nil, fmt.Errorf("archive: write data for %s: %w", f.Name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("archive: close: %w", err)
	}
	return buf.Bytes(), nil
}

// Single is a convenience wrapper for the common one-file case (validation,
// simple scripts with no auxiliary manifest).
func Single(name string, data []byte) ([]byte, error) {
	return Build(File{Name: name, Data: data})
}
