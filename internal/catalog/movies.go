package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Year tolerates the shapes the movie feeds use: number, numeric
// string, empty string, or null. Anything unparseable becomes -1.
type Year int

// UnknownYear marks a movie whose release year could not be determined.
const UnknownYear Year = -1

func (y *Year) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*y = UnknownYear
		return nil
	}
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*y = UnknownYear
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*y = UnknownYear
		return nil
	}
	*y = Year(n)
	return nil
}

// MovieLink is one mirror of a movie. Field order is the catalog's
// stable serialization order. Headers is accepted on input for probing
// but dropped again by Normalize.
type MovieLink struct {
	Status   Status            `json:"status,omitempty"`
	Added    string            `json:"added"`
	Language string            `json:"language"`
	URL      string            `json:"url"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// AddedTime parses the link's added date; ok is false when missing or
// unparseable. Accepts date-only and RFC3339-ish values, Z included.
func (l *MovieLink) AddedTime() (time.Time, bool) {
	return ParseFlexibleTime(l.Added)
}

// ParseFlexibleTime parses ISO-like timestamps to UTC.
func ParseFlexibleTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Movie is one title with its candidate links.
type Movie struct {
	Year    Year         `json:"year"`
	TVGLogo string       `json:"tvg_logo,omitempty"`
	Links   []*MovieLink `json:"links"`
}

// NewestLink returns the link with the most recent added date, falling
// back to the first link when no date parses. nil when there are none.
func (m *Movie) NewestLink() *MovieLink {
	var best *MovieLink
	var bestAt time.Time
	var bestDated bool
	for _, l := range m.Links {
		if l == nil {
			continue
		}
		at, ok := l.AddedTime()
		switch {
		case best == nil:
			best, bestAt, bestDated = l, at, ok
		case ok && (!bestDated || at.After(bestAt)):
			best, bestAt, bestDated = l, at, true
		}
	}
	return best
}

// PrimaryLanguage is the language of the newest link, lowercased.
// It drives the catalog's title ordering.
func (m *Movie) PrimaryLanguage() string {
	if l := m.NewestLink(); l != nil {
		return strings.ToLower(strings.TrimSpace(l.Language))
	}
	return ""
}

// Normalize rebuilds every link with the stable field set, dropping
// ad-hoc extras such as headers.
func (m *Movie) Normalize() {
	for i, l := range m.Links {
		if l == nil {
			continue
		}
		m.Links[i] = &MovieLink{Status: l.Status, Added: l.Added, Language: l.Language, URL: l.URL}
	}
}

// Movies is the movie catalog document: title → entry.
type Movies map[string]*Movie

// LoadMovies reads a movie catalog JSON.
func LoadMovies(path string) (Movies, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Movies
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("movie catalog %s: %w", path, err)
	}
	for title, mv := range m {
		if mv == nil {
			mv = &Movie{}
			m[title] = mv
		}
		if mv.Year == 0 {
			mv.Year = UnknownYear
		}
		if mv.Links == nil {
			mv.Links = []*MovieLink{}
		}
		for i, l := range mv.Links {
			if l == nil {
				mv.Links[i] = &MovieLink{}
			}
		}
	}
	return m, nil
}

// SortedTitles orders titles by (language of newest link, year newest
// first, title A→Z).
func (m Movies) SortedTitles() []string {
	titles := make([]string, 0, len(m))
	for t := range m {
		titles = append(titles, t)
	}
	sort.Slice(titles, func(i, j int) bool {
		mi, mj := m[titles[i]], m[titles[j]]
		li, lj := mi.PrimaryLanguage(), mj.PrimaryLanguage()
		if li != lj {
			return li < lj
		}
		if mi.Year != mj.Year {
			return mi.Year > mj.Year
		}
		return strings.ToLower(titles[i]) < strings.ToLower(titles[j])
	})
	return titles
}

// MarshalJSON emits titles in canonical order.
func (m Movies) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, title := range m.SortedTitles() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(title)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(m[title])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Save writes the movie catalog atomically, titles in canonical order.
func (m Movies) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, data, ".movies-*.json.tmp")
}
