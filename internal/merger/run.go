package merger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/playlistkeeper/playlist-keeper/internal/catalog"
)

// Run loads every configured source, merges them, and writes the
// combined playlist. Individual source failures are logged and
// skipped; only an unwritable output is fatal.
func (m *Merger) Run(ctx context.Context) error {
	var sources [][]Item

	if path := m.Cfg.ChannelsFile; path != "" {
		channels, err := catalog.LoadChannels(path)
		if err != nil {
			m.Log.Warn("channel catalog unavailable", zap.String("path", path), zap.Error(err))
		} else {
			items := FromChannels(channels)
			m.Log.Info("loaded channel catalog", zap.String("path", path), zap.Int("online", len(items)))
			sources = append(sources, items)
		}
	}

	for _, src := range m.Cfg.M3USources {
		items, err := m.LoadM3USource(ctx, src)
		if err != nil {
			m.Log.Warn("m3u source unavailable", zap.String("source", src), zap.Error(err))
			continue
		}
		m.Log.Info("loaded m3u source", zap.String("source", src), zap.Int("entries", len(items)))
		sources = append(sources, items)
	}

	if path := m.Cfg.MoviesFile; path != "" {
		movies, err := catalog.LoadMovies(path)
		if err != nil {
			m.Log.Warn("movie catalog unavailable", zap.String("path", path), zap.Error(err))
		} else {
			items := m.FromMovies(movies)
			m.Log.Info("loaded movie catalog", zap.String("path", path), zap.Int("items", len(items)))
			sources = append(sources, items)
		}
	}

	if len(m.Cfg.MovieSources) > 0 {
		sources = append(sources, m.FromMovieSources(m.Cfg.MovieSources))
	}

	merged := m.Merge(sources...)
	if err := m.writeOutput(merged); err != nil {
		return err
	}
	m.Log.Info("combined playlist written",
		zap.String("path", m.Cfg.OutputFile), zap.Int("items", len(merged)))
	return nil
}

func (m *Merger) writeOutput(items []Item) error {
	out := m.Cfg.OutputFile
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(out), ".combined-*.m3u")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := m.WriteM3U(tmp, items); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), out)
}
