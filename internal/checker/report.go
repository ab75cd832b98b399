package checker

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/playlistkeeper/playlist-keeper/internal/catalog"
)

// Category buckets a link for the end-of-run summary. Unlike Status it
// separates the operator overrides from genuinely probed links.
type Category string

const (
	CategoryMissing     Category = "MISSING"
	CategoryOffline     Category = "OFFLINE"
	CategoryExcluded    Category = "EXCLUDED"
	CategoryWhitelisted Category = "WHITELISTED"
	CategoryOnline      Category = "ONLINE"
)

func (c *Checker) categorize(channelName string, link *catalog.Link) Category {
	switch {
	case link.Status == catalog.StatusMissing:
		return CategoryMissing
	case link.Status == catalog.StatusOffline:
		return CategoryOffline
	case c.isExcluded(channelName):
		return CategoryExcluded
	case c.IsWhitelisted(link.URL):
		return CategoryWhitelisted
	default:
		return CategoryOnline
	}
}

// Summary is the per-category tally plus the offline detail lines.
type Summary struct {
	Channels    int
	Online      int
	Offline     int
	Missing     int
	Excluded    int
	Whitelisted int
}

// WriteSummary prints the classification report: offline entries with
// their offline duration, operator-override entries, then the totals
// table. Mirrors what operators watch after every run.
func (c *Checker) WriteSummary(w io.Writer, channels catalog.Channels, started time.Time) Summary {
	today := c.Now()
	type line struct {
		category Category
		channel  string
		url      string
		days     string
	}
	var sum Summary
	sum.Channels = len(channels)
	var lines []line

	for _, name := range channels.SortedNames() {
		for _, link := range channels[name].Links {
			cat := c.categorize(name, link)
			switch cat {
			case CategoryMissing:
				sum.Missing++
			case CategoryOffline:
				sum.Offline++
			case CategoryExcluded:
				sum.Excluded++
			case CategoryWhitelisted:
				sum.Whitelisted++
			case CategoryOnline:
				sum.Online++
			}
			if cat == CategoryMissing || cat == CategoryOnline {
				continue
			}
			l := line{category: cat, channel: name, url: link.URL}
			if cat == CategoryOffline {
				if days, ok := link.DaysOffline(today); ok {
					l.days = fmt.Sprintf("%5d day(s)", days)
				} else {
					l.days = "unknown duration"
				}
			}
			lines = append(lines, l)
		}
	}

	catRank := map[Category]int{CategoryOffline: 0, CategoryExcluded: 1, CategoryWhitelisted: 2}
	sort.Slice(lines, func(i, j int) bool {
		if catRank[lines[i].category] != catRank[lines[j].category] {
			return catRank[lines[i].category] < catRank[lines[j].category]
		}
		return lines[i].url < lines[j].url
	})

	fmt.Fprintln(w, "\n=== SUMMARY ===")
	for _, l := range lines {
		switch l.category {
		case CategoryOffline:
			fmt.Fprintf(w, "[OFFLINE] %-30s | Offline for %s -> %s\n", l.channel, l.days, l.url)
		case CategoryExcluded:
			fmt.Fprintf(w, "[EXCLUDED] %s -> %s\n", l.channel, l.url)
		case CategoryWhitelisted:
			fmt.Fprintf(w, "[WHITELISTED] %s -> %s\n", l.channel, l.url)
		}
	}

	elapsed := time.Since(started).Round(time.Second)
	sep := "=================================================="
	fmt.Fprintf(w, "\n%s\n", sep)
	fmt.Fprintf(w, "%-20s: %d\n", "Total channels", sum.Channels)
	fmt.Fprintf(w, "%-20s: %d\n", "Total online links", sum.Online)
	fmt.Fprintf(w, "%-20s: %d\n", "Total offline links", sum.Offline)
	fmt.Fprintf(w, "%-20s: %d\n", "Total missing links", sum.Missing)
	fmt.Fprintf(w, "%-20s: %d\n", "Excluded links", sum.Excluded)
	fmt.Fprintf(w, "%-20s: %d\n", "Whitelisted links", sum.Whitelisted)
	fmt.Fprintf(w, "%-20s: %dm %ds\n", "Total runtime", int(elapsed.Minutes()), int(elapsed.Seconds())%60)
	fmt.Fprintf(w, "%s\n\n", sep)

	if c.Metrics != nil {
		c.Metrics.SetLinkCount("online", sum.Online+sum.Excluded+sum.Whitelisted)
		c.Metrics.SetLinkCount("offline", sum.Offline)
		c.Metrics.SetLinkCount("missing", sum.Missing)
	}
	return sum
}
