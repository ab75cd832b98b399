// Package moviecheck refreshes the movie catalog: a quick single-shot
// ffmpeg probe per link, link normalization, and the catalog's
// language/year/title ordering.
package moviecheck

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/playlistkeeper/playlist-keeper/internal/catalog"
	"github.com/playlistkeeper/playlist-keeper/internal/config"
	"github.com/playlistkeeper/playlist-keeper/internal/probe"
)

// CheckFunc probes one movie URL; true means playable. Stubbed in
// tests.
type CheckFunc func(ctx context.Context, url string, headers map[string]string) bool

type Updater struct {
	Cfg   *config.Config
	Log   *zap.Logger
	Check CheckFunc
}

// New wires the single-shot ffmpeg probe from cfg. Movie links are
// direct files, not live streams, so there is no head stage and no
// fallback player.
func New(cfg *config.Config, log *zap.Logger) *Updater {
	ff := &probe.FFmpegProber{
		Bin:     cfg.FFmpegPath,
		Headers: cfg.Headers(),
		Timeout: cfg.MovieFFmpegTimeout,
	}
	return &Updater{Cfg: cfg, Log: log, Check: ff.CheckOnce}
}

// UpdateAll probes every link with a URL across the catalog using a
// bounded pool, marks each online/offline, and normalizes link field
// order. Links without a URL are left untouched.
func (u *Updater) UpdateAll(ctx context.Context, movies catalog.Movies) {
	type job struct {
		title string
		link  *catalog.MovieLink
	}
	var jobs []job
	for title, m := range movies {
		for _, l := range m.Links {
			if l == nil || l.URL == "" {
				continue
			}
			jobs = append(jobs, job{title: title, link: l})
		}
	}
	if len(jobs) == 0 {
		return
	}
	workers := u.Cfg.MovieWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()
			if u.Check(ctx, j.link.URL, j.link.Headers) {
				j.link.Status = catalog.StatusOnline
				u.Log.Info("movie online", zap.String("title", j.title), zap.String("url", j.link.URL))
			} else {
				j.link.Status = catalog.StatusOffline
				u.Log.Info("movie offline", zap.String("title", j.title), zap.String("url", j.link.URL))
			}
		}(j)
	}
	wg.Wait()

	for _, m := range movies {
		m.Normalize()
	}
}

// WriteSummary prints totals and the per-language breakdown (language
// of each title's newest link).
func (u *Updater) WriteSummary(w io.Writer, movies catalog.Movies) {
	totalLinks, online := 0, 0
	byLang := map[string]int{}
	for _, m := range movies {
		lang := m.PrimaryLanguage()
		if lang == "" {
			lang = "(unknown)"
		}
		byLang[lang]++
		for _, l := range m.Links {
			if l == nil {
				continue
			}
			totalLinks++
			if l.Status == catalog.StatusOnline {
				online++
			}
		}
	}

	fmt.Fprintln(w, "\n--- Summary ---")
	fmt.Fprintf(w, "Total movies: %d\n", len(movies))
	fmt.Fprintf(w, "Total links:  %d\n", totalLinks)
	fmt.Fprintf(w, "Online:       %d\n", online)
	fmt.Fprintf(w, "Offline:      %d\n", totalLinks-online)

	langs := make([]string, 0, len(byLang))
	for l := range byLang {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	parts := make([]string, 0, len(langs))
	for _, l := range langs {
		parts = append(parts, fmt.Sprintf("%s: %d", l, byLang[l]))
	}
	fmt.Fprintf(w, "By language:  %s\n", strings.Join(parts, ", "))
}
