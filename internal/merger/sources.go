package merger

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/playlistkeeper/playlist-keeper/internal/catalog"
	"github.com/playlistkeeper/playlist-keeper/internal/httpclient"
	"github.com/playlistkeeper/playlist-keeper/internal/m3u"
)

// FromM3U converts parsed playlist entries into items. Raw M3U input
// is the weakest source; it never wins a name collision against a
// catalog.
func FromM3U(entries []m3u.Entry) []Item {
	var out []Item
	for _, e := range entries {
		if e.URL == "" {
			continue
		}
		out = append(out, Item{
			Extinf:     e.Extinf,
			URL:        e.URL,
			Group:      e.Group(),
			TVGID:      m3u.Attr(e.Extinf, "tvg-id"),
			TVGLogo:    m3u.Attr(e.Extinf, "tvg-logo"),
			Name:       e.Name,
			SourceRank: rankM3U,
		})
	}
	return out
}

// LoadM3USource reads an M3U from a local path or an http(s) URL.
func (m *Merger) LoadM3USource(ctx context.Context, src string) ([]Item, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, err
		}
		resp, err := httpclient.DoWithRetry(ctx, httpclient.WithTimeout(30*time.Second), req, httpclient.DefaultRetryPolicy)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("fetch %s: status %d", src, resp.StatusCode)
		}
		entries, err := m3u.Parse(resp.Body)
		if err != nil {
			return nil, err
		}
		return FromM3U(entries), nil
	}
	entries, err := m3u.ParseFile(src)
	if err != nil {
		return nil, err
	}
	return FromM3U(entries), nil
}

// FromChannels emits one item per channel that has at least one
// online link, taking the first online URL in stored order.
func FromChannels(channels catalog.Channels) []Item {
	var out []Item
	for _, name := range channels.SortedNames() {
		ch := channels[name]
		var url string
		for _, l := range ch.Links {
			if l != nil && l.Status == catalog.StatusOnline && l.URL != "" {
				url = l.URL
				break
			}
		}
		if url == "" {
			continue
		}
		tvgID := ch.TVGID
		if tvgID == "" {
			tvgID = GenerateTVGID(name)
		}
		out = append(out, Item{
			URL:        url,
			Group:      ch.Group,
			TVGID:      tvgID,
			TVGLogo:    ch.TVGLogo,
			Name:       name,
			SourceRank: rankChannels,
		})
	}
	return out
}

// FromMovies emits one item per movie with a usable link. Links with
// an explicit online status are preferred; otherwise the first link
// with a URL is taken. Group comes from the chosen link's language.
func (m *Merger) FromMovies(movies catalog.Movies) []Item {
	var out []Item
	for _, title := range movies.SortedTitles() {
		mv := movies[title]
		chosen := chooseBestLink(mv.Links)
		if chosen == nil {
			continue
		}
		out = append(out, m.movieItem(title, mv.Year, mv.TVGLogo, chosen, rankMovieCatalog))
	}
	return out
}

func chooseBestLink(links []*catalog.MovieLink) *catalog.MovieLink {
	for _, l := range links {
		if l != nil && l.URL != "" && l.Status == catalog.StatusOnline {
			return l
		}
	}
	for _, l := range links {
		if l != nil && l.URL != "" {
			return l
		}
	}
	return nil
}

func (m *Merger) movieItem(title string, year catalog.Year, logo string, link *catalog.MovieLink, rank int) Item {
	recent := m.isRecent(link.Added)
	return Item{
		URL:        link.URL,
		Group:      languageToGroup(link.Language),
		TVGID:      GenerateTVGID(title),
		TVGLogo:    logo,
		IsMovie:    true,
		Year:       year,
		Name:       m.movieName(title, year, recent),
		Recent:     recent,
		SourceRank: rank,
	}
}

// movieRecord tracks the winning link per title while consolidating
// curated source files.
type movieRecord struct {
	year    catalog.Year
	logo    string
	link    *catalog.MovieLink
	addedAt time.Time
	dated   bool
}

// FromMovieSources consolidates the curated movie JSON files. A title
// appearing in several files keeps the link with the latest added
// timestamp across all of them; a losing file can still backfill a
// missing logo. Missing files are skipped with a warning.
func (m *Merger) FromMovieSources(paths []string) []Item {
	best := map[string]*movieRecord{}
	var titles []string
	scanned := 0
	for _, path := range paths {
		movies, err := catalog.LoadMovies(path)
		if err != nil {
			if os.IsNotExist(err) {
				m.Log.Warn("movie source not found", zap.String("path", path))
			} else {
				m.Log.Warn("movie source unreadable", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		scanned += len(movies)
		for title, mv := range movies {
			chosen := mv.NewestLink()
			if chosen == nil || chosen.URL == "" {
				continue
			}
			addedAt, dated := chosen.AddedTime()
			rec := best[title]
			if rec == nil {
				best[title] = &movieRecord{year: mv.Year, logo: mv.TVGLogo, link: chosen, addedAt: addedAt, dated: dated}
				titles = append(titles, title)
				continue
			}
			if dated && (!rec.dated || addedAt.After(rec.addedAt)) {
				logo := mv.TVGLogo
				if logo == "" {
					logo = rec.logo
				}
				best[title] = &movieRecord{year: mv.Year, logo: logo, link: chosen, addedAt: addedAt, dated: dated}
			} else if rec.logo == "" && mv.TVGLogo != "" {
				rec.logo = mv.TVGLogo
			}
		}
	}

	var out []Item
	for _, title := range titles {
		rec := best[title]
		out = append(out, m.movieItem(title, rec.year, rec.logo, rec.link, rankMovieSources))
	}
	m.Log.Info("consolidated curated movie sources",
		zap.Int("items", len(out)), zap.Int("scanned", scanned), zap.Strings("paths", paths))
	return out
}
