// Package safeurl holds URL hygiene helpers shared by the probers and
// the reporting layer.
package safeurl

import (
	"net/url"
	"strings"
)

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or
// https. Rejects file://, ftp://, and other schemes before any network
// or subprocess work happens.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := parsed.Scheme
	return s == "http" || s == "https"
}

// Query parameters whose values are credentials in common IPTV portal
// URL shapes.
var sensitiveParams = []string{"token", "auth", "password", "pass", "key", "sig", "signature"}

// Redact masks credentials embedded in a stream URL so the URL can be
// logged: userinfo is dropped and known token query parameters are
// replaced with REDACTED. Unparseable input comes back unchanged.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	changed := false
	if u.User != nil {
		u.User = nil
		changed = true
	}
	if u.RawQuery != "" {
		q := u.Query()
		for _, p := range sensitiveParams {
			for key := range q {
				if strings.EqualFold(key, p) {
					q.Set(key, "REDACTED")
					changed = true
				}
			}
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}
	if !changed {
		return raw
	}
	return u.String()
}
