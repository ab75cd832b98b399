// Package merger consolidates playlists and catalogs into one ordered,
// deduplicated M3U. Items are rebuilt from scratch on every run; only
// the emitted playlist text persists.
package merger

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/playlistkeeper/playlist-keeper/internal/catalog"
	"github.com/playlistkeeper/playlist-keeper/internal/config"
	"github.com/playlistkeeper/playlist-keeper/internal/m3u"
)

// Source ranks; lower wins name collisions. Curated movie sources are
// the most authoritative, raw M3U files the least.
const (
	rankMovieSources = 0
	rankMovieCatalog = 1
	rankChannels     = 2
	rankM3U          = 3
)

// Item is one display-ready playlist entry.
type Item struct {
	Extinf     string // metadata line; name portion may be stale, Name wins
	URL        string
	Group      string
	TVGID      string
	TVGLogo    string
	IsMovie    bool
	Year       catalog.Year
	Name       string
	Recent     bool
	SourceRank int
}

type Merger struct {
	Cfg *config.Config
	Log *zap.Logger
	Now func() time.Time
}

func New(cfg *config.Config, log *zap.Logger) *Merger {
	return &Merger{Cfg: cfg, Log: log, Now: time.Now}
}

var tvgIDSanitizer = regexp.MustCompile(`[^A-Za-z0-9_]`)

// GenerateTVGID derives a guide id from a display name.
func GenerateTVGID(name string) string {
	return tvgIDSanitizer.ReplaceAllString(strings.TrimSpace(name), "_")
}

// languageToGroup maps a movie link language to its playlist bucket.
func languageToGroup(language string) string {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "english", "en", "eng":
		return "Movies - English"
	case "hindi":
		return "Movies - Hindi"
	case "hindi dubbed", "hindi-dubbed", "hindi dub", "hindi-dub", "dual audio":
		return "Movies - Hindi Dubbed"
	case "bangla", "bn", "bengali":
		return "Movies - Bangla"
	default:
		return "Movies"
	}
}

func (m *Merger) isRecent(added string) bool {
	t, ok := catalog.ParseFlexibleTime(added)
	if !ok {
		return false
	}
	return m.Now().UTC().Sub(t) <= time.Duration(m.Cfg.RecentDays)*24*time.Hour
}

// movieName renders "{title} ({year})" plus the recent marker.
func (m *Merger) movieName(title string, year catalog.Year, recent bool) string {
	name := title
	if year != catalog.UnknownYear {
		name = fmt.Sprintf("%s (%d)", title, int(year))
	}
	if recent {
		name += m.Cfg.RecentTag
	}
	return name
}

// Merge deduplicates by case-normalized display name and orders the
// result: groups in the configured fixed order (extras appended
// alphabetically), movie groups sorted recent-first / year desc /
// name, everything else by name.
func (m *Merger) Merge(sources ...[]Item) []Item {
	byName := map[string]Item{}
	removed := 0
	for _, items := range sources {
		for _, it := range items {
			key := strings.ToLower(strings.TrimSpace(it.Name))
			if key == "" || it.URL == "" {
				continue
			}
			cur, ok := byName[key]
			if !ok {
				byName[key] = it
				continue
			}
			removed++
			if preferenceKey(it).less(preferenceKey(cur)) {
				byName[key] = it
			}
		}
	}
	if removed > 0 {
		m.Log.Info("removed duplicate names", zap.Int("count", removed))
	}

	groups := map[string][]Item{}
	for _, it := range byName {
		groups[it.Group] = append(groups[it.Group], it)
	}
	for g, list := range groups {
		if m.isMovieGroup(g, list) {
			sort.Slice(list, func(i, j int) bool {
				if list[i].Recent != list[j].Recent {
					return list[i].Recent
				}
				if list[i].Year != list[j].Year {
					return list[i].Year > list[j].Year
				}
				return strings.ToLower(list[i].Name) < strings.ToLower(list[j].Name)
			})
		} else {
			sort.Slice(list, func(i, j int) bool {
				return strings.ToLower(list[i].Name) < strings.ToLower(list[j].Name)
			})
		}
	}

	var out []Item
	seen := map[string]bool{}
	for _, g := range m.Cfg.GroupOrder {
		out = append(out, groups[g]...)
		seen[g] = true
	}
	var extras []string
	for g := range groups {
		if !seen[g] {
			extras = append(extras, g)
		}
	}
	sort.Strings(extras)
	for _, g := range extras {
		out = append(out, groups[g]...)
	}
	return out
}

// preference orders collision candidates: source rank, then has-logo,
// then recent, then newer year.
type preference struct {
	rank, noLogo, notRecent int
	negYear                 int
}

func preferenceKey(it Item) preference {
	p := preference{rank: it.SourceRank, negYear: -int(it.Year)}
	if it.TVGLogo == "" {
		p.noLogo = 1
	}
	if !it.Recent {
		p.notRecent = 1
	}
	return p
}

func (p preference) less(q preference) bool {
	if p.rank != q.rank {
		return p.rank < q.rank
	}
	if p.noLogo != q.noLogo {
		return p.noLogo < q.noLogo
	}
	if p.notRecent != q.notRecent {
		return p.notRecent < q.notRecent
	}
	return p.negYear < q.negYear
}

func (m *Merger) isMovieGroup(group string, items []Item) bool {
	for _, g := range m.Cfg.MovieGroups {
		if g == group {
			return true
		}
	}
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if !it.IsMovie {
			return false
		}
	}
	return true
}

// WriteM3U serializes items: header with the EPG reference, then one
// EXTINF/URL pair per item with tvg-id / tvg-logo injected or
// replaced.
func (m *Merger) WriteM3U(w io.Writer, items []Item) error {
	if err := m3u.WriteHeader(w, m.Cfg.EPGURL); err != nil {
		return err
	}
	for _, it := range items {
		extinf := it.Extinf
		if extinf == "" {
			extinf = m3u.SetAttr("#EXTINF:-1,"+it.Name, "group-title", it.Group)
		}
		if it.TVGID != "" {
			extinf = m3u.SetAttr(extinf, "tvg-id", it.TVGID)
		}
		if it.TVGLogo != "" {
			extinf = m3u.SetAttr(extinf, "tvg-logo", it.TVGLogo)
		}
		extinf = m3u.SetName(extinf, it.Name)
		if err := m3u.WriteEntry(w, extinf, it.URL); err != nil {
			return err
		}
	}
	return nil
}
