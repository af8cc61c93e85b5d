package ports

import "context"

// Downloader hands an encoded poster to the user.
type Downloader interface {
	// Download delivers data under filename and returns where it ended up.
	Download(ctx context.Context, filename string, data []byte) (string, error)
}
