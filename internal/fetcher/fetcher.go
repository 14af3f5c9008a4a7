// Package fetcher downloads and parses published reference data: HTTP and
// FTP retrieval, ZIP extraction, and CSV/XLSX parsing for the loaders.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
