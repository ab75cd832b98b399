package checker

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/playlistkeeper/playlist-keeper/internal/catalog"
	"github.com/playlistkeeper/playlist-keeper/internal/m3u"
)

// ExportExcludedWhitelisted writes every excluded or whitelisted link
// to <dir>/excluded_whitelisted.m3u so operators can eyeball what the
// probes are skipping.
func (c *Checker) ExportExcludedWhitelisted(channels catalog.Channels, dir string) error {
	f, err := createExport(dir, "excluded_whitelisted.m3u")
	if err != nil {
		return err
	}
	defer f.Close()
	if err := m3u.WriteHeader(f, ""); err != nil {
		return err
	}
	for _, name := range channels.SortedNames() {
		ch := channels[name]
		for _, link := range ch.Links {
			if link.URL == "" {
				continue
			}
			if !c.isExcluded(name) && !c.IsWhitelisted(link.URL) {
				continue
			}
			extinf := m3u.SetAttr("#EXTINF:-1,"+name, "group-title", group(ch))
			if err := m3u.WriteEntry(f, extinf, link.URL); err != nil {
				return err
			}
		}
	}
	return f.Sync()
}

// ExportOffline writes offline links that still carry a URL to
// <dir>/offline.m3u, the display name suffixed with the offline
// duration, e.g. "News A (12d)". Aged-out links (empty URL) are
// skipped.
func (c *Checker) ExportOffline(channels catalog.Channels, dir string) (int, error) {
	f, err := createExport(dir, "offline.m3u")
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if err := m3u.WriteHeader(f, ""); err != nil {
		return 0, err
	}
	today := c.Now()
	count := 0
	for _, name := range channels.SortedNames() {
		ch := channels[name]
		for _, link := range ch.Links {
			if link.Status != catalog.StatusOffline || link.URL == "" {
				continue
			}
			days := "unknown"
			if d, ok := link.DaysOffline(today); ok {
				days = fmt.Sprintf("%dd", d)
			}
			extinf := m3u.SetAttr(fmt.Sprintf("#EXTINF:-1,%s (%s)", name, days), "group-title", group(ch))
			if err := m3u.WriteEntry(f, extinf, link.URL); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, f.Sync()
}

func group(ch *catalog.Channel) string {
	if ch.Group != "" {
		return ch.Group
	}
	return "Other"
}

func createExport(dir, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("export dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", name, err)
	}
	return f, nil
}
