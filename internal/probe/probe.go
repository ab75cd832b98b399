// Package probe implements the multi-stage stream liveness check:
// an HTTP header probe, an ffmpeg demux probe, and an mpv fallback
// used when ffmpeg fails in a way retrying cannot fix.
package probe

import (
	"context"
	"strings"
	"time"
)

// Verdict is the outcome of a demux probe.
type Verdict string

const (
	VerdictOnline     Verdict = "online"
	VerdictSlow       Verdict = "slow" // exit 0 but above the duration threshold; reachable
	VerdictOffline    Verdict = "offline"
	VerdictMPVOnline  Verdict = "mpv_online"
	VerdictMPVOffline Verdict = "mpv_offline"
)

// Online reports whether the verdict counts as reachable downstream.
// Slow streams are kept online; the distinction only matters for
// logging and metrics.
func (v Verdict) Online() bool {
	return v == VerdictOnline || v == VerdictSlow || v == VerdictMPVOnline
}

// Result carries a verdict, how long the backend that decided it ran,
// and an optional diagnostic note.
type Result struct {
	Verdict  Verdict
	Duration time.Duration
	Note     string
}

// Prober is the capability a demux backend provides; swapping in a
// native demuxing library later only means a new implementation.
type Prober interface {
	Probe(ctx context.Context, url string) Result
}

// Focused fatal stderr patterns. A match means the failure is real
// (bad URL, dead stream, DRM), so retrying the same tool is wasted
// time and the pipeline escalates to the fallback instead.
// Generic words like "error"/"failed" are deliberately absent.
var fatalPatterns = []string{
	// HTTP / network
	"404 not found", "403 forbidden", "400 bad request", "401 unauthorized",
	"connection refused", "failed to resolve", "timed out", "network error",
	"server returned 403", "server returned 404", "gateway timeout",
	// Codec / format
	"invalid data found", "no stream", "could not find codec parameters",
	"unsupported codec", "unknown format",
	// Playlist / segments
	"empty playlist", "invalid m3u8", "missing segment", "playlist parsing error",
	// DRM / encryption
	"drm", "encrypted", "encryption", "no key", "#ext-x-session-key", "#ext-x-key",
}

// IsFatalStderr reports whether lowered ffmpeg stderr matches a fatal
// pattern.
func IsFatalStderr(stderr string) bool {
	s := strings.ToLower(stderr)
	for _, p := range fatalPatterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
