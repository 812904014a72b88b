package treeio

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// A random access view of an archive stored in a local file or fetched over
// http/https.
type resource struct {
	io.ReaderAt
	io.Closer

	size int64
	url  *url.URL
}

// Returns true if the resource was fetched over http/https.
func (r *resource) IsRemote() bool {
	return r.url.Scheme != ""
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open the archive at location, which is either a file path or an http/https
// URL. Remote archives are downloaded into memory since zip needs random
// access.
func openResource(location string) (*resource, error) {
	// Normalize path separators and try parsing as a URL
	u, err := url.Parse(strings.Replace(location, `\`, `/`, -1))
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "":
		f, err := os.Open(filepath.Clean(u.Path))
		if err != nil {
			return nil, err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		return &resource{ReaderAt: f, Closer: f, size: info.Size(), url: u}, nil
	case "http", "https":
		resp, err := http.Get(u.String())
		if err != nil {
			return nil, fmt.Errorf("could not fetch '%s': %s", u.String(), err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("could not fetch '%s': status %d", u.String(), resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("could not fetch '%s': %s", u.String(), err)
		}
		return &resource{ReaderAt: bytes.NewReader(data), Closer: nopCloser{}, size: int64(len(data)), url: u}, nil
	default:
		return nil, fmt.Errorf("unsupported scheme '%s'", u.Scheme)
	}
}
