// Package fetcher downloads locator pages and Census data, and reads the
// tabular formats (CSV, JSON, XLSX, ZIP) population datasets ship in.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body, decoded to
	// UTF-8 when the server declares another text charset.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
