// Package filedownloader delivers exported posters into a local directory.
package filedownloader

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/user/postergen/pkg/ports"
)

// Downloader writes posters under dir.
type Downloader struct {
	dir string
	fs  ports.FileSystem
}

// New creates a Downloader writing to dir.
func New(dir string, fs ports.FileSystem) *Downloader {
	return &Downloader{dir: dir, fs: fs}
}

// Download writes data as dir/filename and returns the path.
func (d *Downloader) Download(ctx context.Context, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if filename == "" || filename != filepath.Base(filename) {
		return "", fmt.Errorf("invalid file name %q", filename)
	}
	path := filepath.Join(d.dir, filename)
	if err := d.fs.WriteFile(path, data); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

var _ ports.Downloader = (*Downloader)(nil)
