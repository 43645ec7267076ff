// Package download fetches episode archives over HTTP.
package download

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"

	"github.com/opencontainers/go-digest"

	"epu-go/internal/epu"
)

const fetchChunkSize = 256 * 1024

// HTTPFetcher implements epu.Fetcher against a distributor URL.
type HTTPFetcher struct {
	client *http.Client
}

var _ epu.Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher using the given client. A nil
// client falls back to http.DefaultClient; downloads are bounded by
// the request context rather than a client timeout.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client}
}

// Probe asks the distributor what it would serve without downloading
// it. It tries HEAD first and falls back to opening a GET and closing
// the body unread, for distributors that reject HEAD or answer it
// without a Content-Length.
func (f *HTTPFetcher) Probe(ctx context.Context, rawURL string) (*epu.RemoteInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building probe request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err == nil && resp.StatusCode < 400 && resp.ContentLength >= 0 {
		defer resp.Body.Close()
		return &epu.RemoteInfo{
			Filename: serverFilename(resp, rawURL),
			Size:     resp.ContentLength,
		}, nil
	}
	if err == nil {
		resp.Body.Close()
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building probe request: %w", err)
	}
	resp, err = f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", rawURL, err)
	}
	// Close without draining: we only want the headers, not the archive.
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("probing %s: %s", rawURL, resp.Status)
	}
	return &epu.RemoteInfo{
		Filename: serverFilename(resp, rawURL),
		Size:     resp.ContentLength,
	}, nil
}

// Fetch downloads the archive to a temp file, digesting it as it
// streams. The caller owns the returned path and removes it when done;
// on error the partial file is removed here.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, onProgress epu.DownloadProgressFunc) (*epu.Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building download request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading %s: %s", rawURL, resp.Status)
	}

	tmp, err := os.CreateTemp("", "epu-dl-*.zip")
	if err != nil {
		return nil, fmt.Errorf("creating download file: %w", err)
	}
	keep := false
	defer func() {
		tmp.Close()
		if !keep {
			os.Remove(tmp.Name())
		}
	}()

	digester := digest.Canonical.Digester()
	w := io.MultiWriter(tmp, digester.Hash())

	buf := make([]byte, fetchChunkSize)
	var received int64
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return nil, fmt.Errorf("writing download: %w", werr)
			}
			received += int64(n)
			if onProgress != nil {
				onProgress(received, resp.ContentLength)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("reading download: %w", rerr)
		}
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing download file: %w", err)
	}

	keep = true
	return &epu.Download{
		Path:   tmp.Name(),
		Name:   serverFilename(resp, rawURL),
		Size:   received,
		Digest: digester.Digest(),
	}, nil
}

// serverFilename picks a display name for the archive: the
// Content-Disposition filename when the distributor sends one, the
// last URL path segment otherwise, or episode.zip as a last resort.
func serverFilename(resp *http.Response, rawURL string) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := path.Base(params["filename"]); name != "" && name != "." && name != "/" {
				return name
			}
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		if name := path.Base(u.Path); name != "" && name != "." && name != "/" {
			return name
		}
	}
	return "episode.zip"
}
