// Package rulesdownload implements the Rules Downloader (spec §4.6):
// conditional-GET fetch of a zipped rule document, with a cache keyed by
// base64(url) so an unchanged remote rule set never re-downloads.
package rulesdownload

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/corehub/sdk/internal/datastore"
	"github.com/corehub/sdk/internal/types"
)

const rulesEntryName = "rules.json"

// cacheEntry is the persisted shape of one cached rule download.
type cacheEntry struct {
	Body         []byte `json:"body"`
	LastModified string `json:"lastModified"`
	ETag         string `json:"etag"`
}

// Downloader fetches and caches remote rule archives.
type Downloader struct {
	client *http.Client
	cache  *datastore.Store
}

// New constructs a Downloader backed by the named collection store rooted
// at dataRoot. A nil client defaults to http.DefaultClient.
func New(dataRoot string, client *http.Client) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{client: client, cache: datastore.Open(dataRoot, "rulesCache")}
}

func cacheKey(url string) string {
	return base64.StdEncoding.EncodeToString([]byte(url))
}

// LoadFromURL implements the conditional-GET/cache flow (spec §4.6):
//   - a cache hit is sent as If-Modified-Since/If-None-Match
//   - 304 returns the cached body unchanged
//   - 200 unzips the archive, locates rules.json, replaces the cache entry
//   - a network or unzip failure returns (nil, err) and leaves the cache untouched
func (d *Downloader) LoadFromURL(ctx context.Context, url string) ([]byte, error) {
	key := cacheKey(url)
	var cached cacheEntry
	hasCache := d.cache.Get(key, &cached)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrNetworkError, err)
	}
	if hasCache {
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrNetworkError, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		if !hasCache {
			return nil, fmt.Errorf("%w: 304 with no cache entry", types.ErrNetworkError)
		}
		return cached.Body, nil
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrNetworkError, err)
		}
		decoded, err := unzipRulesJSON(body)
		if err != nil {
			return nil, err
		}
		entry := cacheEntry{
			Body:         decoded,
			LastModified: resp.Header.Get("Last-Modified"),
			ETag:         resp.Header.Get("ETag"),
		}
		if err := d.cache.Set(key, entry); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrStorageUnavailable, err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", types.ErrNetworkError, resp.StatusCode)
	}
}

// LoadCached returns the last cached body for url without making a network
// request, for offline/cold-start use.
func (d *Downloader) LoadCached(url string) ([]byte, bool) {
	var cached cacheEntry
	if !d.cache.Get(cacheKey(url), &cached) {
		return nil, false
	}
	return cached.Body, true
}

func unzipRulesJSON(archive []byte) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnzipError, err)
	}
	for _, f := range r.File {
		if f.Name != rulesEntryName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrUnzipError, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrUnzipError, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s not found in archive", types.ErrUnzipError, rulesEntryName)
}
