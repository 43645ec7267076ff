package testutil

import (
	"context"
	"os"

	"github.com/opencontainers/go-digest"

	"epu-go/internal/epu"
)

// StubFetcher serves a fixed archive from memory, implementing
// epu.Fetcher without any network access.
type StubFetcher struct {
	// Name is the archive filename the stub advertises and serves.
	Name string
	// Data is the archive content.
	Data []byte
	// Err, when set, is returned by both Probe and Fetch.
	Err error
}

var _ epu.Fetcher = (*StubFetcher)(nil)

func (f *StubFetcher) Probe(_ context.Context, _ string) (*epu.RemoteInfo, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return &epu.RemoteInfo{Filename: f.Name, Size: int64(len(f.Data))}, nil
}

// Fetch spools Data to a temp file the way the real fetcher does. The
// caller removes the file when done.
func (f *StubFetcher) Fetch(_ context.Context, _ string, onProgress epu.DownloadProgressFunc) (*epu.Download, error) {
	if f.Err != nil {
		return nil, f.Err
	}

	tmp, err := os.CreateTemp("", "epu-stub-dl-*.zip")
	if err != nil {
		return nil, err
	}
	if _, err := tmp.Write(f.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}

	if onProgress != nil {
		onProgress(int64(len(f.Data)), int64(len(f.Data)))
	}

	return &epu.Download{
		Path:   tmp.Name(),
		Name:   f.Name,
		Size:   int64(len(f.Data)),
		Digest: digest.FromBytes(f.Data),
	}, nil
}
