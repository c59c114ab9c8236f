package offline

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"resty.dev/v3"
)

// Network performs the real fetch behind the cache. An error means the
// network is unreachable; HTTP error statuses come back as responses.
type Network interface {
	Fetch(ctx context.Context, req *http.Request) (*Response, error)
}

// HTTPNetwork fetches from a remote origin.
type HTTPNetwork struct {
	httpClient *resty.Client
}

// NewHTTPNetwork creates a Network for originURL.
func NewHTTPNetwork(originURL string, timeout time.Duration) *HTTPNetwork {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(originURL, "/")).
		SetTimeout(timeout)
	return &HTTPNetwork{httpClient: client}
}

func (n *HTTPNetwork) Fetch(ctx context.Context, req *http.Request) (*Response, error) {
	r := n.httpClient.R().SetContext(ctx)
	for _, h := range []string{"Accept", "Accept-Language", "If-None-Match", "If-Modified-Since"} {
		if v := req.Header.Get(h); v != "" {
			r.SetHeader(h, v)
		}
	}

	if req.Body != nil && req.Body != http.NoBody {
		r.SetBody(req.Body)
		if ct := req.Header.Get("Content-Type"); ct != "" {
			r.SetHeader("Content-Type", ct)
		}
	}

	target := req.URL.RequestURI()
	resp, err := r.Execute(req.Method, target)
	if err != nil {
		return nil, fmt.Errorf("network request for %s failed: %w", target, err)
	}
	return &Response{
		Status: resp.StatusCode(),
		Header: resp.Header().Clone(),
		Body:   resp.Bytes(),
		URL:    target,
	}, nil
}

// Close releases the underlying HTTP client.
func (n *HTTPNetwork) Close() error {
	return n.httpClient.Close()
}

// HandlerNetwork serves fetches from an in-process handler, typically a file
// server over the bundled static directory.
type HandlerNetwork struct {
	handler http.Handler
}

// NewHandlerNetwork wraps h as a Network.
func NewHandlerNetwork(h http.Handler) *HandlerNetwork {
	return &HandlerNetwork{handler: h}
}

func (n *HandlerNetwork) Fetch(ctx context.Context, req *http.Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target := req.URL.RequestURI()
	inner, err := http.NewRequestWithContext(ctx, req.Method, target, req.Body)
	if err != nil {
		return nil, fmt.Errorf("invalid request for %s: %w", target, err)
	}
	inner.Header = req.Header.Clone()

	w := newBufferedWriter()
	n.handler.ServeHTTP(w, inner)
	return w.response(target), nil
}
