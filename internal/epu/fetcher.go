package epu

import (
	"context"

	"github.com/opencontainers/go-digest"
)

// RemoteInfo describes an episode archive as advertised by the
// distributor, without downloading it.
type RemoteInfo struct {
	// Filename is the archive name the distributor advertises.
	Filename string
	// Size is the advertised size in bytes, or -1 when unknown.
	Size int64
}

// Download is a fetched episode archive spooled to a local file.
// The caller owns Path and removes it when done.
type Download struct {
	Path   string
	Name   string
	Size   int64
	Digest digest.Digest
}

// DownloadProgressFunc reports received bytes during a fetch.
// total is -1 when the distributor does not advertise a length.
type DownloadProgressFunc func(received, total int64)

// Fetcher retrieves episode archives from a distributor URL.
type Fetcher interface {
	Probe(ctx context.Context, url string) (*RemoteInfo, error)
	Fetch(ctx context.Context, url string, onProgress DownloadProgressFunc) (*Download, error)
}
