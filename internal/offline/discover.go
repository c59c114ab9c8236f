package offline

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const shellSelector = "link[rel=stylesheet][href], link[rel=manifest][href], " +
	"link[rel~=icon][href], script[src], img[src]"

// DiscoverShellAssets lists the same-origin stylesheets, scripts, icons and
// images referenced by the app shell page, in document order.
func DiscoverShellAssets(html []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse app shell: %w", err)
	}

	assets := []string{}
	seen := make(map[string]struct{})
	doc.Find(shellSelector).Each(func(_ int, s *goquery.Selection) {
		ref, ok := s.Attr("href")
		if !ok {
			ref, ok = s.Attr("src")
		}
		if !ok {
			return
		}
		p, ok := sameOriginPath(ref)
		if !ok {
			return
		}
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		assets = append(assets, p)
	})
	return assets, nil
}

// sameOriginPath turns a relative reference into a rooted path. Absolute
// URLs, protocol-relative URLs and data URIs are rejected.
func sameOriginPath(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" {
		return "", false
	}

	p := u.Path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = path.Clean(p)
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p, true
}
