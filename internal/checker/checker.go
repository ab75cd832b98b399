// Package checker fans the liveness pipeline out over every link in
// the channel catalog with a bounded worker pool, then applies the
// catalog maintenance passes (sort, age-out, reorder).
package checker

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/playlistkeeper/playlist-keeper/internal/catalog"
	"github.com/playlistkeeper/playlist-keeper/internal/config"
	"github.com/playlistkeeper/playlist-keeper/internal/httpclient"
	"github.com/playlistkeeper/playlist-keeper/internal/metrics"
	"github.com/playlistkeeper/playlist-keeper/internal/probe"
	"github.com/playlistkeeper/playlist-keeper/internal/safeurl"
)

// HeadChecker is the header-probe stage seam; satisfied by
// *probe.HeadProber and stubbed in tests.
type HeadChecker interface {
	Check(ctx context.Context, url string) (ok bool, reason string)
}

// Checker runs the per-link pipeline: exclude/whitelist short-circuit,
// header probe, demux probe (which escalates to the fallback on its
// own). Each task owns exactly one link record, so no cross-task
// locking is needed.
type Checker struct {
	Cfg     *config.Config
	Log     *zap.Logger
	Head    HeadChecker
	Demux   probe.Prober
	Metrics *metrics.Recorder
	Limiter *rate.Limiter     // optional launch pacing
	Now     func() time.Time
}

// New wires the production probers from cfg.
func New(cfg *config.Config, log *zap.Logger) *Checker {
	headers := cfg.Headers()
	mpv := &probe.MPVProber{
		Bin:     cfg.MPVPath,
		Headers: headers,
		Timeout: cfg.MPVTimeout,
	}
	ffmpeg := &probe.FFmpegProber{
		Bin:            cfg.FFmpegPath,
		Headers:        headers,
		Retries:        cfg.Retries,
		Timeout:        cfg.FFmpegTimeout,
		TestDuration:   cfg.FFmpegTestDuration,
		MaxAllowed:     cfg.MaxAllowedDuration,
		ResolveTimeout: cfg.ResolveTimeout,
		FastMode:       cfg.FastMode,
		Fallback:       mpv,
	}
	head := &probe.HeadProber{
		Client:  httpclient.WithTimeout(cfg.HeadTimeout),
		Headers: headers,
		Retries: cfg.HeadRetries,
		HostSem: httpclient.GlobalHostSem,
	}
	c := &Checker{
		Cfg:   cfg,
		Log:   log,
		Head:  head,
		Demux: ffmpeg,
		Now:   time.Now,
	}
	if cfg.LaunchRate > 0 {
		c.Limiter = rate.NewLimiter(rate.Limit(cfg.LaunchRate), 1)
	}
	return c
}

type outcome struct {
	status catalog.Status
	via    catalog.Via
	dur    time.Duration
	note   string
}

// UpdateAll probes every link and mutates status, dates, timing and
// passed_via in place. One link's failure never aborts the batch;
// nothing escapes the worker boundary.
func (c *Checker) UpdateAll(ctx context.Context, channels catalog.Channels) {
	workers := c.Cfg.MaxWorkers
	if workers <= 0 {
		workers = 10
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for name, ch := range channels {
		for _, link := range ch.Links {
			if c.Limiter != nil {
				_ = c.Limiter.Wait(ctx)
			}
			wg.Add(1)
			go func(name string, link *catalog.Link) {
				defer wg.Done()
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				defer func() { <-sem }()
				c.apply(name, link, c.checkLink(ctx, name, link))
			}(name, link)
		}
	}
	wg.Wait()
}

// checkLink runs the sequential pipeline for one link.
func (c *Checker) checkLink(ctx context.Context, name string, link *catalog.Link) outcome {
	if strings.TrimSpace(link.URL) == "" {
		return outcome{status: catalog.StatusMissing, via: catalog.ViaMissing, note: "no url"}
	}
	if c.isExcluded(name) {
		c.Log.Info("skipped (excluded)", zap.String("channel", name))
		return outcome{status: catalog.StatusOnline, via: catalog.ViaExcluded, note: "excluded"}
	}
	if c.IsWhitelisted(link.URL) {
		c.Log.Info("whitelisted", zap.String("channel", name), zap.String("url", safeurl.Redact(link.URL)))
		return outcome{status: catalog.StatusOnline, via: catalog.ViaWhitelist, note: "whitelisted"}
	}

	if ok, reason := c.Head.Check(ctx, link.URL); !ok {
		c.Log.Info("head fail", zap.String("channel", name), zap.String("reason", reason), zap.String("url", safeurl.Redact(link.URL)))
		return outcome{status: catalog.StatusOffline, via: catalog.ViaHeadFail, note: reason}
	}

	res := c.Demux.Probe(ctx, link.URL)
	via := catalog.ViaFFmpeg
	if res.Verdict == probe.VerdictMPVOnline || res.Verdict == probe.VerdictMPVOffline {
		via = catalog.ViaMPV
	}
	if res.Verdict.Online() {
		c.Log.Info("online",
			zap.String("channel", name),
			zap.String("via", string(via)),
			zap.Duration("took", res.Duration),
			zap.Bool("slow", res.Verdict == probe.VerdictSlow))
		return outcome{status: catalog.StatusOnline, via: via, dur: res.Duration, note: res.Note}
	}
	c.Log.Info("offline",
		zap.String("channel", name),
		zap.String("via", string(via)),
		zap.String("note", res.Note),
		zap.String("url", safeurl.Redact(link.URL)))
	return outcome{status: catalog.StatusOffline, via: via, dur: res.Duration, note: res.Note}
}

// apply writes one outcome back into the link record it belongs to.
func (c *Checker) apply(name string, link *catalog.Link, o outcome) {
	today := c.Now()
	link.PassedVia = o.via
	if o.dur > 0 {
		link.RecordTiming(o.dur, c.testDuration())
	} else {
		link.ProbeTime = nil
		link.Speed = 0
	}
	switch o.status {
	case catalog.StatusOnline:
		link.MarkOnline(today)
	case catalog.StatusOffline:
		link.MarkOffline(today)
	default:
		link.Status = o.status
	}
	if c.Metrics != nil {
		c.Metrics.ObserveProbe(string(o.status), string(o.via), o.dur)
	}
}

func (c *Checker) testDuration() time.Duration {
	if c.Cfg.FastMode {
		return time.Second
	}
	if c.Cfg.FFmpegTestDuration > 0 {
		return c.Cfg.FFmpegTestDuration
	}
	return 2 * time.Second
}

func (c *Checker) isExcluded(channelName string) bool {
	lower := strings.ToLower(channelName)
	for _, skip := range c.Cfg.ExcludeList {
		if skip != "" && strings.Contains(lower, strings.ToLower(skip)) {
			return true
		}
	}
	return false
}

// IsWhitelisted reports whether url contains a trusted substring.
// Exported because the catalog link reorder uses the same predicate.
func (c *Checker) IsWhitelisted(url string) bool {
	for _, domain := range c.Cfg.WhitelistDomains {
		if domain != "" && strings.Contains(url, domain) {
			return true
		}
	}
	return false
}

// Maintain applies the post-probe maintenance passes and reports what
// was aged out.
func (c *Checker) Maintain(channels catalog.Channels) []catalog.AgedLink {
	aged := channels.AgeOutOffline(c.Now(), c.Cfg.OfflineAgeDays)
	for _, a := range aged {
		c.Log.Info("reset url (offline too long)",
			zap.String("channel", a.Channel),
			zap.Int("days", a.Days),
			zap.String("url", safeurl.Redact(a.URL)))
	}
	channels.ReorderLinks(c.IsWhitelisted)
	return aged
}
