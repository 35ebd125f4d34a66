package util

import (
	"net/url"
	"path"
	"strings"
)

// ParseRemote parses raw as an http(s) URL. ok is false for anything else,
// local paths included.
func ParseRemote(raw string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return nil, false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u, true
	}
	return nil, false
}

// HostMatches reports whether u's host is one of domains or a subdomain of one.
func HostMatches(u *url.URL, domains []string) bool {
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// URLExt returns the lowercased extension of the URL path, query ignored.
func URLExt(u *url.URL) string {
	return strings.ToLower(path.Ext(u.Path))
}
