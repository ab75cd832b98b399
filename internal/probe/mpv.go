package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// MPVProber is the fallback: a headless mpv run with a hard stop a few
// seconds in. It only gets a shot when ffmpeg failed fatally or hung,
// because mpv copes with some streams ffmpeg's demuxer rejects.
type MPVProber struct {
	Bin     string // "" = "mpv"
	Headers map[string]string
	Timeout time.Duration // whole subprocess; 0 means 150s

	lookOnce  sync.Once
	available bool
}

// Available reports whether the mpv binary can be found. Resolved once
// per process; a host without mpv degrades to "fallback says offline",
// never to a crash.
func (p *MPVProber) Available() bool {
	p.lookOnce.Do(func() {
		_, err := exec.LookPath(p.bin())
		p.available = err == nil
	})
	return p.available
}

// Check plays url for at most end seconds with no video/audio output.
// ok means exit code 0. note carries the last stderr line on failure.
func (p *MPVProber) Check(ctx context.Context, url, cookies string, end time.Duration) (ok bool, note string) {
	if !p.Available() {
		return false, "mpv not available"
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 150 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"--no-config", // deterministic in CI
		"--no-video",
		"--vo=null",
		"--ao=null",
		"--mute=yes",
		"--really-quiet",
		"--idle=no",
		"--cache=yes",
		"--cache-secs=2",
		"--demuxer-readahead-secs=2",
		"--network-timeout=10",
		fmt.Sprintf("--end=%d", int(end.Round(time.Second)/time.Second)),
	}
	args = append(args, p.headerArgs(cookies)...)
	args = append(args, url)

	cmd := exec.CommandContext(runCtx, p.bin(), args...)
	var errBuf bytes.Buffer
	cmd.Stderr = &errBuf
	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return false, fmt.Sprintf("mpv timeout >%s", timeout)
	}
	if err == nil {
		return true, ""
	}
	note = "mpv: " + err.Error()
	if last := lastLine(errBuf.String()); last != "" {
		note += " | " + last
	}
	return false, note
}

func (p *MPVProber) headerArgs(cookies string) []string {
	var args []string
	for _, k := range []string{"User-Agent", "Referer", "Origin", "Accept"} {
		if v, ok := p.Headers[k]; ok && v != "" {
			args = append(args, "--http-header-fields="+k+": "+v)
		}
	}
	if cookies != "" {
		args = append(args, "--http-header-fields=Cookie: "+cookies)
	}
	return args
}

func (p *MPVProber) bin() string {
	if p.Bin != "" {
		return p.Bin
	}
	return "mpv"
}
