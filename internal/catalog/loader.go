package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"resty.dev/v3"
)

// SourceLoader reads the bundled, read-only catalog for one category.
// Implementations always return a non-nil slice; a non-nil error is a
// warning for the caller to log, never a reason to stop loading.
type SourceLoader interface {
	Load(ctx context.Context, cat Category) ([]Item, error)
}

// HTTPLoader fetches catalog documents from the app origin.
type HTTPLoader struct {
	httpClient *resty.Client
}

// NewHTTPLoader creates a loader for documents under baseURL. A non-nil
// transport replaces the default one; the app passes the offline cache
// registration here so catalog loads go through its data strategy.
func NewHTTPLoader(baseURL string, timeout time.Duration, retries int, transport http.RoundTripper) *HTTPLoader {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json")
	if transport != nil {
		client.SetTransport(transport)
	}
	return &HTTPLoader{httpClient: client}
}

func (l *HTTPLoader) Load(ctx context.Context, cat Category) ([]Item, error) {
	if !cat.Valid() {
		return []Item{}, fmt.Errorf("%w: %q", ErrUnknownCategory, cat)
	}

	resp, err := l.httpClient.R().
		SetContext(ctx).
		Get(cat.DocumentPath())
	if err != nil {
		return []Item{}, fmt.Errorf("failed to fetch %s catalog: %w", cat, err)
	}
	if resp.IsError() {
		return []Item{}, fmt.Errorf("failed to fetch %s catalog: HTTP %d", cat, resp.StatusCode())
	}

	return Normalize(cat, resp.Bytes())
}

// Close releases the underlying HTTP client.
func (l *HTTPLoader) Close() error {
	return l.httpClient.Close()
}

// FSLoader reads catalog documents from a bundled directory.
type FSLoader struct {
	fsys fs.FS
}

// NewFSLoader creates a loader rooted at the app's static directory.
func NewFSLoader(fsys fs.FS) *FSLoader {
	return &FSLoader{fsys: fsys}
}

func (l *FSLoader) Load(_ context.Context, cat Category) ([]Item, error) {
	if !cat.Valid() {
		return []Item{}, fmt.Errorf("%w: %q", ErrUnknownCategory, cat)
	}

	data, err := fs.ReadFile(l.fsys, strings.TrimPrefix(cat.DocumentPath(), "/"))
	if err != nil {
		return []Item{}, fmt.Errorf("failed to read %s catalog: %w", cat, err)
	}
	return Normalize(cat, data)
}
