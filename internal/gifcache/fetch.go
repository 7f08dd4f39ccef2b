package gifcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Fetcher loads the raw bytes behind a GIF URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// FetchError reports a failed asset download.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching gif %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching gif %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// HTTPFetcher downloads GIFs over HTTP with an optional bearer token.
// file:// URLs are read from the local filesystem.
type HTTPFetcher struct {
	httpClient *http.Client
	token      string
	maxBytes   int64
}

// DefaultMaxBytes caps a single download.
const DefaultMaxBytes = 32 << 20

// NewHTTPFetcher creates an HTTPFetcher. A zero maxBytes uses DefaultMaxBytes.
func NewHTTPFetcher(token string, timeout time.Duration, maxBytes int64) *HTTPFetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: timeout},
		token:      token,
		maxBytes:   maxBytes,
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if path, ok := strings.CutPrefix(rawURL, "file://"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &FetchError{URL: rawURL, Err: err}
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("reading body: %w", err)}
	}
	if int64(len(data)) > f.maxBytes {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("body exceeds %d bytes", f.maxBytes)}
	}
	return data, nil
}

// CacheBust returns rawURL with a _cb query parameter set to t in unix
// milliseconds. Since the URL is the cache key this forces a fresh decode.
func CacheBust(rawURL string, t time.Time) string {
	ms := strconv.FormatInt(t.UnixMilli(), 10)

	u, err := url.Parse(rawURL)
	if err != nil {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		return rawURL + sep + "_cb=" + ms
	}

	q := u.Query()
	q.Set("_cb", ms)
	u.RawQuery = q.Encode()
	return u.String()
}
