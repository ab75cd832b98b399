package catalog

import (
	"sort"
	"time"
)

// AgedLink describes one URL cleared by AgeOutOffline, for logging.
type AgedLink struct {
	Channel string
	URL     string
	Days    int
}

// AgeOutOffline clears the URL of every link that has been offline for
// at least threshold days. The record itself stays (a soft delete):
// dates and channel metadata survive, the link just stops being served.
func (c Channels) AgeOutOffline(today time.Time, thresholdDays int) []AgedLink {
	var aged []AgedLink
	for _, name := range c.SortedNames() {
		for _, l := range c[name].Links {
			if l.Status != StatusOffline || l.URL == "" {
				continue
			}
			days, ok := l.DaysOffline(today)
			if !ok || days < thresholdDays {
				continue
			}
			aged = append(aged, AgedLink{Channel: name, URL: l.URL, Days: days})
			l.URL = ""
		}
	}
	return aged
}

// ReorderLinks sorts each channel's links so a consumer takes index 0:
// online non-whitelisted fastest first (ffmpeg preferred over mpv on
// near-ties), then online whitelisted, then offline, then missing.
func (c Channels) ReorderLinks(isWhitelisted func(url string) bool) {
	for _, ch := range c {
		links := ch.Links
		if len(links) < 2 {
			continue
		}
		sort.SliceStable(links, func(i, j int) bool {
			ki, kj := linkOrderKey(links[i], isWhitelisted), linkOrderKey(links[j], isWhitelisted)
			if ki.statusBucket != kj.statusBucket {
				return ki.statusBucket < kj.statusBucket
			}
			if ki.whitelistBucket != kj.whitelistBucket {
				return ki.whitelistBucket < kj.whitelistBucket
			}
			return ki.speed > kj.speed
		})
	}
}

type orderKey struct {
	statusBucket    int
	whitelistBucket int
	speed           float64
}

func linkOrderKey(l *Link, isWhitelisted func(string) bool) orderKey {
	var k orderKey
	switch l.Status {
	case StatusOnline:
		k.statusBucket = 0
	case StatusOffline:
		k.statusBucket = 1
	default:
		k.statusBucket = 2
	}
	// Whitelisted links sink within the online bucket only; for the
	// rest, status dominates.
	if k.statusBucket == 0 && isWhitelisted != nil && isWhitelisted(l.URL) {
		k.whitelistBucket = 1
	}
	k.speed = l.Speed
	if l.PassedVia == ViaMPV {
		k.speed -= 0.01
	}
	return k
}
