package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/playlistkeeper/playlist-keeper/internal/httpclient"
)

const (
	ffmpegAnalyze   = 1_000_000
	ffmpegProbesize = 1_000_000
)

// FFmpegProber is the primary demux prober: it resolves the URL (to
// pick up redirects and cookies), then asks ffmpeg to demux a short
// window to /dev/null.
type FFmpegProber struct {
	Bin            string // "" = "ffmpeg"
	Headers        map[string]string
	Retries        int           // extra attempts when the failure is ambiguous
	Timeout        time.Duration // whole subprocess
	TestDuration   time.Duration // demux window (-t)
	MaxAllowed     time.Duration // exit 0 above this classifies as slow
	ResolveTimeout time.Duration
	FastMode       bool          // halved probesize/analyzeduration, 1s window
	Backoff        time.Duration // between ambiguous retries; 0 means 700ms
	Fallback       *MPVProber    // escalation target; nil = no fallback
}

// Probe runs the primary probe, escalating to the mpv fallback when
// ffmpeg reports a fatal error or hangs. Never returns an error; every
// failure maps to an offline-flavored verdict.
func (p *FFmpegProber) Probe(ctx context.Context, rawURL string) Result {
	resolveTimeout := p.ResolveTimeout
	if resolveTimeout <= 0 {
		resolveTimeout = 20 * time.Second
	}
	finalURL, cookies := httpclient.Resolve(ctx, rawURL, p.Headers, resolveTimeout)

	args := p.args(finalURL, cookies)
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = 700 * time.Millisecond
	}

	var lastStderr string
	for attempt := 0; attempt <= p.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return p.escalate(ctx, finalURL, cookies, lastStderr)
			case <-time.After(backoff):
			}
		}

		start := time.Now()
		stderr, exitErr, timedOut := p.run(ctx, args)
		dur := time.Since(start)
		lastStderr = stderr

		if timedOut {
			// ffmpeg hung; no point retrying the same tool.
			return p.escalate(ctx, finalURL, cookies, "ffmpeg timeout")
		}
		if exitErr == nil {
			if dur >= p.maxAllowed() {
				return Result{Verdict: VerdictSlow, Duration: dur}
			}
			return Result{Verdict: VerdictOnline, Duration: dur}
		}
		if IsFatalStderr(stderr) {
			// Real failure; retrying ffmpeg is wasted time.
			return p.escalate(ctx, finalURL, cookies, lastLine(stderr))
		}
		// Ambiguous nonzero exit: loop for another attempt.
	}
	return p.escalate(ctx, finalURL, cookies, lastLine(lastStderr))
}

// escalate gives the fallback player one timed shot. With no fallback
// configured the link is simply offline.
func (p *FFmpegProber) escalate(ctx context.Context, url, cookies, note string) Result {
	if p.Fallback == nil {
		return Result{Verdict: VerdictOffline, Note: note}
	}
	start := time.Now()
	ok, mpvNote := p.Fallback.Check(ctx, url, cookies, p.testDuration())
	dur := time.Since(start)
	if mpvNote == "" {
		mpvNote = note
	}
	if ok {
		return Result{Verdict: VerdictMPVOnline, Duration: dur, Note: mpvNote}
	}
	return Result{Verdict: VerdictMPVOffline, Duration: dur, Note: mpvNote}
}

// run executes one ffmpeg attempt bounded by p.Timeout.
func (p *FFmpegProber) run(ctx context.Context, args []string) (stderr string, exitErr error, timedOut bool) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.bin(), args...)
	var errBuf bytes.Buffer
	cmd.Stderr = &errBuf
	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return errBuf.String(), err, true
	}
	return errBuf.String(), err, false
}

func (p *FFmpegProber) args(url, cookies string) []string {
	args := p.headerArgs(cookies)
	if p.FastMode {
		args = append(args,
			"-probesize", strconv.Itoa(ffmpegProbesize/2),
			"-analyzeduration", strconv.Itoa(ffmpegAnalyze/2),
		)
	}
	args = append(args,
		"-rw_timeout", "10000000", // 10s read timeout, microseconds
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "2",
		"-loglevel", "error",
		"-i", url,
		"-t", formatSeconds(p.testDuration()),
		"-f", "null", "-",
	)
	return args
}

func (p *FFmpegProber) headerArgs(cookies string) []string {
	return ffmpegHeaderArgs(p.Headers, cookies)
}

// ffmpegHeaderArgs translates a header set into -user_agent/-headers
// flags; cookie values captured by the resolver ride along. Keys are
// sorted so the command line is stable.
func ffmpegHeaderArgs(headers map[string]string, cookies string) []string {
	var args []string
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		if strings.EqualFold(k, "User-Agent") {
			args = append(args, "-user_agent", headers[k])
			continue
		}
		lines = append(lines, k+": "+headers[k])
	}
	if cookies != "" {
		lines = append(lines, "Cookie: "+cookies)
	}
	if len(lines) > 0 {
		args = append(args, "-headers", strings.Join(lines, "\r\n"))
	}
	return args
}

func (p *FFmpegProber) bin() string {
	if p.Bin != "" {
		return p.Bin
	}
	return "ffmpeg"
}

func (p *FFmpegProber) testDuration() time.Duration {
	if p.FastMode {
		return time.Second
	}
	if p.TestDuration > 0 {
		return p.TestDuration
	}
	return 2 * time.Second
}

func (p *FFmpegProber) maxAllowed() time.Duration {
	if p.MaxAllowed > 0 {
		return p.MaxAllowed
	}
	return 12 * time.Second
}

// CheckOnce is the single-shot movie-link variant: one ffmpeg run with
// a 1s window and a longer socket timeout, optional per-link headers
// merged over the probe set. Online means exit code 0.
func (p *FFmpegProber) CheckOnce(ctx context.Context, url string, extra map[string]string) bool {
	merged := make(map[string]string, len(p.Headers)+len(extra))
	for k, v := range p.Headers {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	args := append([]string{"-nostdin", "-v", "error"}, ffmpegHeaderArgs(merged, "")...)
	args = append(args,
		"-rw_timeout", "15000000",
		"-i", url,
		"-t", "1",
		"-f", "null", "-",
	)
	_, err, timedOut := p.run(ctx, args)
	return err == nil && !timedOut
}

func formatSeconds(d time.Duration) string {
	return strconv.Itoa(int(d.Round(time.Second) / time.Second))
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

var _ Prober = (*FFmpegProber)(nil)

// String identifies the prober in logs.
func (p *FFmpegProber) String() string {
	return fmt.Sprintf("ffmpeg(%s)", p.bin())
}
