package offline

import (
	"net/http"
	"path"
	"strings"
)

// Strategy is how a request is answered.
type Strategy string

const (
	NetworkFirst Strategy = "network-first"
	CacheFirst   Strategy = "cache-first"
	Passthrough  Strategy = "passthrough"
)

// Outcome is where the answer came from.
type Outcome string

const (
	OutcomeNetwork     Outcome = "network"
	OutcomeCache       Outcome = "cache"
	OutcomePlaceholder Outcome = "placeholder"
	OutcomeFallback    Outcome = "fallback"
	OutcomeOffline     Outcome = "offline"
	OutcomeBypass      Outcome = "bypass"
)

var (
	networkFirstPrefixes = []string{"/data/"}
	imageExts            = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
		".svg": true, ".webp": true, ".ico": true,
	}
)

// Classify picks the strategy for a same-origin GET. Catalog data and page
// navigations go network-first; /css/, /js/, /modules/, /assets/ and any
// unclassified path go cache-first.
func Classify(req *http.Request) Strategy {
	if hasAnyPrefix(req.URL.Path, networkFirstPrefixes) || isNavigation(req) {
		return NetworkFirst
	}
	return CacheFirst
}

func hasAnyPrefix(p string, prefixes []string) bool {
	for _, pre := range prefixes {
		if strings.HasPrefix(p, pre) {
			return true
		}
	}
	return false
}

func isNavigation(req *http.Request) bool {
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}

func isImage(req *http.Request) bool {
	if strings.HasPrefix(req.Header.Get("Accept"), "image/") {
		return true
	}
	return imageExts[strings.ToLower(path.Ext(req.URL.Path))]
}

// placeholder synthesizes an inert html, js or css body so a page keeps
// working when an uncached script or stylesheet cannot be fetched.
func placeholder(req *http.Request) *Response {
	url := req.URL.RequestURI()
	switch ext := strings.ToLower(path.Ext(req.URL.Path)); {
	case ext == ".html" || ext == ".htm" || isNavigation(req):
		body := "<!DOCTYPE html><html><head><title>Offline</title></head>" +
			"<body><p>You are offline and this page has not been cached.</p></body></html>"
		return newResponse(http.StatusOK, "text/html; charset=utf-8", []byte(body), url)
	case ext == ".js" || ext == ".mjs":
		return newResponse(http.StatusOK, "application/javascript", []byte("/* offline */"), url)
	case ext == ".css":
		return newResponse(http.StatusOK, "text/css", []byte("/* offline */"), url)
	default:
		return nil
	}
}
