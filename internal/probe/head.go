package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/playlistkeeper/playlist-keeper/internal/httpclient"
	"github.com/playlistkeeper/playlist-keeper/internal/safeurl"
)

// Deny list checked before the allow list. Currently empty; kept so an
// operator can blacklist a content type without touching the logic.
var invalidContentTypes = []string{}

// Content types that mean "worth demuxing". Deliberately loose:
// octet-stream is common on misconfigured HLS origins.
var validContentTypes = []string{
	"application/vnd.apple.mpegurl",
	"application/octet-stream",
	"application/x-mpegurl",
	"application/mpegurl",
	"audio/x-mpegurl",
	"audio/mpegurl",
	"video/mp2t",
	"video/mp4",
	"video",
}

// HeadProber classifies a URL by response headers: HEAD first, then a
// streamed GET when HEAD fails or returns nothing classifiable.
type HeadProber struct {
	Client  *http.Client // per-attempt timeout client; nil = 5s default
	Headers map[string]string
	Retries int           // attempts; <=0 means 3
	Delay   time.Duration // pause between attempts; 0 means 600ms
	HostSem *httpclient.HostSemaphore
}

// Check returns (ok, reason). A URL whose path ends in .m3u8 passes
// even when every attempt failed, with the failure reason preserved:
// manifest content types are unreliable across CDNs, and rejecting the
// stream here would deny the more authoritative demux stage a say.
func (p *HeadProber) Check(ctx context.Context, rawURL string) (bool, string) {
	if !safeurl.IsHTTPOrHTTPS(rawURL) {
		return false, "not an http(s) url"
	}
	client := p.Client
	if client == nil {
		client = httpclient.WithTimeout(5 * time.Second)
	}
	retries := p.Retries
	if retries <= 0 {
		retries = 3
	}
	delay := p.Delay
	if delay == 0 {
		delay = 600 * time.Millisecond
	}

	if p.HostSem != nil {
		release := p.HostSem.Acquire(rawURL)
		defer release()
	}

	var lastReason string
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return endsWithM3U8(rawURL), lastReason
			case <-time.After(delay):
			}
		}
		ok, reason := p.attempt(ctx, client, http.MethodHead, rawURL)
		if ok {
			return true, ""
		}
		lastReason = reason
		ok, reason = p.attempt(ctx, client, http.MethodGet, rawURL)
		if ok {
			return true, ""
		}
		lastReason = reason
	}
	if endsWithM3U8(rawURL) {
		return true, lastReason
	}
	return false, lastReason
}

func (p *HeadProber) attempt(ctx context.Context, client *http.Client, method, rawURL string) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return false, fmt.Sprintf("%s error: %v", method, err)
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Sprintf("%s error: %v", method, err)
	}
	// Headers only; never drain a live stream body.
	resp.Body.Close()
	ct := resp.Header.Get("Content-Type")
	if validContentType(ct) {
		return true, ""
	}
	if ct == "" {
		ct = "n/a"
	}
	return false, fmt.Sprintf("%s content-type=%s", method, ct)
}

func validContentType(ct string) bool {
	ct = strings.ToLower(ct)
	for _, bad := range invalidContentTypes {
		if bad != "" && strings.Contains(ct, bad) {
			return false
		}
	}
	for _, good := range validContentTypes {
		if strings.Contains(ct, good) {
			return true
		}
	}
	return false
}

func endsWithM3U8(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.HasSuffix(strings.ToLower(rawURL), ".m3u8")
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".m3u8")
}
