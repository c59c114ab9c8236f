package offline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Response is a fully buffered HTTP response as stored in a cache bucket.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	URL    string
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Clone deep-copies the response.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	return &Response{
		Status: r.Status,
		Header: r.Header.Clone(),
		Body:   bytes.Clone(r.Body),
		URL:    r.URL,
	}
}

// Write sends the response to w.
func (r *Response) Write(w http.ResponseWriter) {
	h := w.Header()
	for k, vs := range r.Header {
		if k == "Content-Length" {
			continue
		}
		h[k] = append([]string(nil), vs...)
	}
	h.Set("Content-Length", strconv.Itoa(len(r.Body)))
	w.WriteHeader(r.Status)
	_, _ = w.Write(r.Body)
}

// HTTP converts the response for a RoundTripper caller.
func (r *Response) HTTP(req *http.Request) *http.Response {
	header := r.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Del("Content-Length")
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", r.Status, http.StatusText(r.Status)),
		StatusCode:    r.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(r.Body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}

func newResponse(status int, contentType string, body []byte, url string) *Response {
	return &Response{
		Status: status,
		Header: http.Header{"Content-Type": {contentType}},
		Body:   body,
		URL:    url,
	}
}

// offlineError is the body of the last-resort 503.
type offlineError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

func offlineResponse(url string) *Response {
	body, _ := json.Marshal(offlineError{
		Error:   "offline",
		Message: "This resource is not available offline",
		URL:     url,
	})
	return newResponse(http.StatusServiceUnavailable, "application/json", body, url)
}

// bufferedWriter collects a handler's output in memory.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: http.Header{}}
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedWriter) response(url string) *Response {
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	return &Response{Status: status, Header: b.header, Body: b.body.Bytes(), URL: url}
}
