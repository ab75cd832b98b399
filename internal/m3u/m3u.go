// Package m3u is a small codec for extended M3U playlists: a line-pair
// scanner (one #EXTINF metadata line followed by one URL line per
// entry) and quoted key="value" attribute access used when rewriting
// metadata lines. All attribute handling lives here so callers never
// pattern-match EXTINF lines themselves.
package m3u

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
)

// Some providers emit very long EXTINF lines (multi-KB logo URLs).
const maxLineSize = 1 << 20

// Entry is one playlist item: the metadata line and its URL.
type Entry struct {
	Extinf string // full #EXTINF line as read
	Name   string // display name (text after the attribute list comma)
	URL    string
}

// Group returns the entry's group-title attribute, or "Other".
func (e Entry) Group() string {
	if g := Attr(e.Extinf, "group-title"); g != "" {
		return g
	}
	return "Other"
}

// Parse scans r for EXTINF/URL pairs. Metadata lines with no following
// URL line, and URL lines with no preceding metadata, are dropped
// silently; parsing never fails on malformed entries, only on read
// errors.
func Parse(r io.Reader) ([]Entry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineSize)
	var entries []Entry
	var extinf string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXTINF") {
			extinf = line
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if extinf != "" {
			entries = append(entries, Entry{Extinf: extinf, Name: DisplayName(extinf), URL: line})
			extinf = ""
		}
	}
	return entries, sc.Err()
}

// ParseFile parses the playlist at path.
func ParseFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// DisplayName extracts the display name from an EXTINF line: the text
// after the first comma that is outside any quoted attribute value.
func DisplayName(extinf string) string {
	inQuotes := false
	for i := 0; i < len(extinf); i++ {
		switch extinf[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				return strings.TrimSpace(extinf[i+1:])
			}
		}
	}
	return ""
}

// metaPrefix returns the EXTINF line up to (not including) the display
// name comma, using the same quote-aware scan as DisplayName.
func metaPrefix(extinf string) string {
	inQuotes := false
	for i := 0; i < len(extinf); i++ {
		switch extinf[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				return extinf[:i]
			}
		}
	}
	return extinf
}

var (
	attrMu sync.Mutex
	attrRe = map[string]*regexp.Regexp{}
)

func attrPattern(key string) *regexp.Regexp {
	attrMu.Lock()
	defer attrMu.Unlock()
	re, ok := attrRe[key]
	if !ok {
		re = regexp.MustCompile(regexp.QuoteMeta(key) + `="([^"]*)"`)
		attrRe[key] = re
	}
	return re
}

// Attr returns the value of the key="value" attribute in extinf, or "".
func Attr(extinf, key string) string {
	m := attrPattern(key).FindStringSubmatch(extinf)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// SetAttr replaces the key="value" attribute in the metadata part of
// extinf, appending it before the display-name comma when absent.
// Quotes in val are stripped; they would corrupt the line.
func SetAttr(extinf, key, val string) string {
	val = strings.ReplaceAll(val, `"`, "")
	meta := metaPrefix(extinf)
	rest := extinf[len(meta):] // "" or ",Name"
	attr := key + `="` + val + `"`
	if attrPattern(key).MatchString(meta) {
		meta = attrPattern(key).ReplaceAllString(meta, attr)
	} else {
		meta = meta + " " + attr
	}
	return meta + rest
}

// SetName replaces the display name of an EXTINF line, keeping the
// attribute list intact.
func SetName(extinf, name string) string {
	return metaPrefix(extinf) + "," + name
}

// WriteHeader writes the #EXTM3U header, with url-tvg / x-tvg-url
// attributes when epgURL is set.
func WriteHeader(w io.Writer, epgURL string) error {
	if epgURL == "" {
		_, err := io.WriteString(w, "#EXTM3U\n")
		return err
	}
	_, err := fmt.Fprintf(w, "#EXTM3U url-tvg=%q x-tvg-url=%q\n", epgURL, epgURL)
	return err
}

// WriteEntry writes one EXTINF/URL pair.
func WriteEntry(w io.Writer, extinf, url string) error {
	_, err := fmt.Fprintf(w, "%s\n%s\n", extinf, url)
	return err
}
