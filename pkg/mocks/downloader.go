package mocks

import (
	"context"
	"sync"

	"github.com/user/postergen/pkg/ports"
)

// Download is one recorded call to Downloader.Download.
type Download struct {
	Filename string
	Data     []byte
}

// Downloader is a mock implementation of ports.Downloader.
type Downloader struct {
	mu sync.Mutex

	DownloadFunc func(ctx context.Context, filename string, data []byte) (string, error)

	Downloads []Download
}

func (m *Downloader) Download(ctx context.Context, filename string, data []byte) (string, error) {
	m.mu.Lock()
	m.Downloads = append(m.Downloads, Download{Filename: filename, Data: data})
	m.mu.Unlock()
	if m.DownloadFunc != nil {
		return m.DownloadFunc(ctx, filename, data)
	}
	return "/downloads/" + filename, nil
}

// Count returns the number of downloads so far.
func (m *Downloader) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Downloads)
}

var _ ports.Downloader = (*Downloader)(nil)
