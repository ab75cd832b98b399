package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DateLayout is the date-only layout used for link bookkeeping fields.
const DateLayout = "2006-01-02"

// Status classifies one link after a probe run.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusMissing Status = "missing"
	StatusUnknown Status = "unknown"
)

// Via records which stage of the probe pipeline decided the link's status.
type Via string

const (
	ViaHeadFail  Via = "head_fail"
	ViaFFmpeg    Via = "ffmpeg"
	ViaMPV       Via = "mpv"
	ViaWhitelist Via = "whitelist"
	ViaExcluded  Via = "excluded"
	ViaMissing   Via = "missing"
)

// Link is one stream URL candidate for a channel.
//
// Bookkeeping rules: FirstOnline is set once, on the first online
// classification. LastOffline records the start of the current offline
// streak and is cleared when the link comes back online. LastOnline is
// never cleared. Speed is test-duration / probe-duration, higher is
// faster.
type Link struct {
	URL         string   `json:"url"`
	Status      Status   `json:"status"`
	FirstOnline *string  `json:"first_online"`
	LastOnline  *string  `json:"last_online,omitempty"`
	LastOffline *string  `json:"last_offline"`
	ProbeTime   *float64 `json:"probe_time_s,omitempty"`
	Speed       float64  `json:"speed,omitempty"`
	PassedVia   Via      `json:"passed_via,omitempty"`
}

// UnmarshalJSON tolerates legacy link shapes: a bare URL string and null
// both upgrade to the object form with default fields.
func (l *Link) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*l = Link{Status: StatusMissing}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var u string
		if err := json.Unmarshal(data, &u); err != nil {
			return err
		}
		*l = Link{URL: u, Status: StatusUnknown}
		return nil
	}
	type alias Link
	var a struct {
		alias
		URL *string `json:"url"`
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*l = Link(a.alias)
	if a.URL != nil {
		l.URL = *a.URL
	}
	if l.Status == "" {
		l.Status = StatusUnknown
	}
	return nil
}

// MarkOnline records an online classification dated today.
func (l *Link) MarkOnline(today time.Time) {
	l.Status = StatusOnline
	d := today.Format(DateLayout)
	if l.FirstOnline == nil {
		l.FirstOnline = &d
	}
	l.LastOnline = &d
	l.LastOffline = nil
}

// MarkOffline records an offline classification. LastOffline is only set
// when unset, so it keeps the date the offline streak started.
func (l *Link) MarkOffline(today time.Time) {
	l.Status = StatusOffline
	if l.LastOffline == nil {
		d := today.Format(DateLayout)
		l.LastOffline = &d
	}
}

// RecordTiming stores probe duration and derived speed. testDuration is
// the demux window the probe asked for.
func (l *Link) RecordTiming(probeDur, testDuration time.Duration) {
	secs := round3(probeDur.Seconds())
	l.ProbeTime = &secs
	if probeDur > 0 {
		l.Speed = round3(testDuration.Seconds() / probeDur.Seconds())
	} else {
		l.Speed = 0
	}
}

// DaysOffline returns how many whole days the link has been offline as
// of today, and false when there is no parseable offline date.
func (l *Link) DaysOffline(today time.Time) (int, bool) {
	if l.LastOffline == nil {
		return 0, false
	}
	t, err := time.Parse(DateLayout, *l.LastOffline)
	if err != nil {
		return 0, false
	}
	return int(today.Sub(t).Hours() / 24), true
}

func round3(f float64) float64 {
	return float64(int64(f*1000+0.5)) / 1000
}

// Channel is one catalog entry, keyed externally by display name.
type Channel struct {
	Group   string  `json:"group"`
	TVGID   string  `json:"tvg_id,omitempty"`
	TVGLogo string  `json:"tvg_logo,omitempty"`
	Links   []*Link `json:"links"`
}

// Channels is the channel catalog document: display name → entry.
// It is the single source of truth for link liveness state.
type Channels map[string]*Channel

// LoadChannels reads the catalog JSON at path, upgrading legacy link
// shapes on the way in.
func LoadChannels(path string) (Channels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Channels
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	for name, ch := range c {
		// A null channel entry decodes to a nil pointer the same way
		// a null link does.
		if ch == nil {
			ch = &Channel{}
			c[name] = ch
		}
		if ch.Links == nil {
			ch.Links = []*Link{}
		}
		// A literal null in the links array decodes to a nil pointer
		// without going through Link.UnmarshalJSON.
		for i, l := range ch.Links {
			if l == nil {
				ch.Links[i] = &Link{Status: StatusMissing}
			}
		}
	}
	return c, nil
}

// SortedNames returns channel names ordered by (group lowercase, name
// lowercase), the catalog's canonical order for deterministic diffs.
func (c Channels) SortedNames() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		gi := strings.ToLower(c[names[i]].Group)
		gj := strings.ToLower(c[names[j]].Group)
		if gi != gj {
			return gi < gj
		}
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}

// MarshalJSON emits entries in canonical (group, name) order.
func (c Channels) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range c.SortedNames() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(c[name])
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

// Save writes the catalog to path atomically: temp file in the same
// directory, fsync, rename. Readers never observe a half-written file.
func (c Channels) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, data, ".channels-*.json.tmp")
}

func writeAtomic(path string, data []byte, tmpPattern string) error {
	dir := filepath.Dir(filepath.Clean(path))
	tmp, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return fmt.Errorf("catalog save: create temp: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if writeErr != nil || syncErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("catalog save: write: %w", writeErr)
		}
		if syncErr != nil {
			return fmt.Errorf("catalog save: sync: %w", syncErr)
		}
		return fmt.Errorf("catalog save: close: %w", closeErr)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("catalog save: chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("catalog save: rename: %w", err)
	}
	return nil
}
