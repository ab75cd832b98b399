package merger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/playlistkeeper/playlist-keeper/internal/catalog"
	"github.com/playlistkeeper/playlist-keeper/internal/config"
	"github.com/playlistkeeper/playlist-keeper/internal/m3u"
)

func testMerger(t *testing.T) *Merger {
	t.Helper()
	cfg := config.Default()
	m := New(cfg, zap.NewNop())
	m.Now = func() time.Time { return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

func TestGenerateTVGID(t *testing.T) {
	if got := GenerateTVGID(" Channel One! (HD) "); got != "Channel_One___HD_" {
		t.Errorf("GenerateTVGID = %q", got)
	}
}

func TestLanguageToGroup(t *testing.T) {
	cases := map[string]string{
		"English":      "Movies - English",
		"en":           "Movies - English",
		"Hindi":        "Movies - Hindi",
		"hindi dubbed": "Movies - Hindi Dubbed",
		"Dual Audio":   "Movies - Hindi Dubbed",
		"Bengali":      "Movies - Bangla",
		"Klingon":      "Movies",
		"":             "Movies",
	}
	for in, want := range cases {
		if got := languageToGroup(in); got != want {
			t.Errorf("languageToGroup(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMerge_dedupPrefersLowerRankThenLogo(t *testing.T) {
	m := testMerger(t)
	catalogItem := Item{Name: "Dup TV", URL: "http://catalog", Group: "Bangla", SourceRank: rankChannels}
	m3uItem := Item{Name: "dup tv", URL: "http://m3u", Group: "Bangla", TVGLogo: "http://logo", SourceRank: rankM3U}

	out := m.Merge([]Item{m3uItem}, []Item{catalogItem})
	if len(out) != 1 {
		t.Fatalf("items = %d, want 1", len(out))
	}
	if out[0].URL != "http://catalog" {
		t.Errorf("lower source rank must win: %+v", out[0])
	}

	// Same rank: the item with a logo wins.
	a := Item{Name: "Logo TV", URL: "http://nologo", Group: "X", SourceRank: rankM3U}
	b := Item{Name: "Logo TV", URL: "http://logo", Group: "X", TVGLogo: "l.png", SourceRank: rankM3U}
	out = m.Merge([]Item{a, b})
	if len(out) != 1 || out[0].URL != "http://logo" {
		t.Errorf("logo must win at equal rank: %+v", out)
	}
}

func TestMerge_groupOrderThenAlphabeticExtras(t *testing.T) {
	m := testMerger(t)
	m.Cfg.GroupOrder = []string{"Bangla", "Sports"}
	items := []Item{
		{Name: "Z Sports", URL: "u1", Group: "Sports"},
		{Name: "A Extra", URL: "u2", Group: "Zebra Group"},
		{Name: "B Bangla", URL: "u3", Group: "Bangla"},
		{Name: "C Extra", URL: "u4", Group: "Arts"},
	}
	out := m.Merge(items)
	groups := make([]string, len(out))
	for i, it := range out {
		groups[i] = it.Group
	}
	want := []string{"Bangla", "Sports", "Arts", "Zebra Group"}
	for i := range want {
		if groups[i] != want[i] {
			t.Fatalf("group order = %v, want %v", groups, want)
		}
	}
}

func TestMerge_movieGroupSortRecentYearName(t *testing.T) {
	m := testMerger(t)
	g := "Movies - English"
	items := []Item{
		{Name: "Old Film (2001)", URL: "u1", Group: g, IsMovie: true, Year: 2001},
		{Name: "Fresh Film (2025)", URL: "u2", Group: g, IsMovie: true, Year: 2025, Recent: true},
		{Name: "New Film (2024)", URL: "u3", Group: g, IsMovie: true, Year: 2024},
	}
	out := m.Merge(items)
	want := []string{"Fresh Film (2025)", "New Film (2024)", "Old Film (2001)"}
	for i := range want {
		if out[i].Name != want[i] {
			t.Fatalf("movie order = %+v", out)
		}
	}
}

func TestMerge_allMovieGroupDetectedWithoutConfig(t *testing.T) {
	m := testMerger(t)
	m.Cfg.MovieGroups = nil
	g := "Some Movie Bucket"
	items := []Item{
		{Name: "A (2000)", URL: "u1", Group: g, IsMovie: true, Year: 2000},
		{Name: "B (2020)", URL: "u2", Group: g, IsMovie: true, Year: 2020},
	}
	out := m.Merge(items)
	if out[0].Name != "B (2020)" {
		t.Errorf("all-movie group must sort by year: %+v", out)
	}
}

func TestWriteM3U_injectsAttrsAndName(t *testing.T) {
	m := testMerger(t)
	m.Cfg.EPGURL = "http://epg/guide.xml"
	items := []Item{{
		Extinf:  `#EXTINF:-1 tvg-id="stale" group-title="Bangla",Stale Name`,
		URL:     "http://host/a.m3u8",
		Group:   "Bangla",
		TVGID:   "fresh.tv",
		TVGLogo: "http://logo/a.png",
		Name:    "Fresh Name",
	}}

	var buf bytes.Buffer
	if err := m.WriteM3U(&buf, items); err != nil {
		t.Fatalf("WriteM3U: %v", err)
	}
	s := buf.String()
	if !strings.Contains(s, `url-tvg="http://epg/guide.xml"`) {
		t.Errorf("missing epg header: %s", s)
	}

	entries, err := m3u.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Name != "Fresh Name" {
		t.Errorf("name = %q", entries[0].Name)
	}
	if m3u.Attr(entries[0].Extinf, "tvg-id") != "fresh.tv" {
		t.Errorf("tvg-id = %q", m3u.Attr(entries[0].Extinf, "tvg-id"))
	}
	if m3u.Attr(entries[0].Extinf, "tvg-logo") != "http://logo/a.png" {
		t.Errorf("tvg-logo = %q", m3u.Attr(entries[0].Extinf, "tvg-logo"))
	}
}

func TestWriteM3U_synthesizesExtinf(t *testing.T) {
	m := testMerger(t)
	items := []Item{{URL: "http://host/x", Group: "News", Name: "No Header TV"}}
	var buf bytes.Buffer
	if err := m.WriteM3U(&buf, items); err != nil {
		t.Fatal(err)
	}
	entries, err := m3u.Parse(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Group() != "News" || entries[0].Name != "No Header TV" {
		t.Errorf("synthesized entry: %+v", entries)
	}
}

func TestWriteM3U_quotedGroupStaysParseable(t *testing.T) {
	m := testMerger(t)
	items := []Item{{URL: "http://host/x", Group: `News "Local"`, Name: "Quoted TV"}}
	var buf bytes.Buffer
	if err := m.WriteM3U(&buf, items); err != nil {
		t.Fatal(err)
	}
	entries, err := m3u.Parse(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries: %+v", entries)
	}
	if g := entries[0].Group(); g != "News Local" {
		t.Errorf("group: %q", g)
	}
	if entries[0].Name != "Quoted TV" {
		t.Errorf("name: %q", entries[0].Name)
	}
}

func TestFromChannels_firstOnlineLinkOnly(t *testing.T) {
	channels := catalog.Channels{
		"Live TV": {Group: "Bangla", TVGLogo: "l.png", Links: []*catalog.Link{
			{URL: "http://down", Status: catalog.StatusOffline},
			{URL: "http://up", Status: catalog.StatusOnline},
			{URL: "http://up2", Status: catalog.StatusOnline},
		}},
		"Dead TV": {Group: "Bangla", Links: []*catalog.Link{
			{URL: "http://down", Status: catalog.StatusOffline},
		}},
	}
	out := FromChannels(channels)
	if len(out) != 1 {
		t.Fatalf("items = %d, want 1", len(out))
	}
	if out[0].Name != "Live TV" || out[0].URL != "http://up" {
		t.Errorf("item: %+v", out[0])
	}
	if out[0].TVGID != GenerateTVGID("Live TV") {
		t.Errorf("tvg-id fallback: %q", out[0].TVGID)
	}
	if out[0].SourceRank != rankChannels {
		t.Errorf("rank: %d", out[0].SourceRank)
	}
}

func TestFromMovies_nameAndRecentTag(t *testing.T) {
	m := testMerger(t)
	movies := catalog.Movies{
		"Fresh Film": {Year: 2025, Links: []*catalog.MovieLink{{
			URL: "http://f", Status: catalog.StatusOnline, Language: "English", Added: "2025-06-20T00:00:00Z",
		}}},
		"Old Film": {Year: 2010, Links: []*catalog.MovieLink{{
			URL: "http://o", Status: catalog.StatusOnline, Language: "Hindi", Added: "2024-01-01",
		}}},
	}
	out := m.FromMovies(movies)
	if len(out) != 2 {
		t.Fatalf("items = %d", len(out))
	}
	byName := map[string]Item{}
	for _, it := range out {
		byName[strings.TrimSuffix(it.Name, m.Cfg.RecentTag)] = it
	}
	fresh := byName["Fresh Film (2025)"]
	if !fresh.Recent || !strings.HasSuffix(fresh.Name, m.Cfg.RecentTag) {
		t.Errorf("fresh: %+v", fresh)
	}
	if fresh.Group != "Movies - English" {
		t.Errorf("group: %q", fresh.Group)
	}
	old := byName["Old Film (2010)"]
	if old.Recent || old.Group != "Movies - Hindi" {
		t.Errorf("old: %+v", old)
	}
}

func TestFromMovies_prefersOnlineLink(t *testing.T) {
	m := testMerger(t)
	movies := catalog.Movies{
		"Film": {Year: 2020, Links: []*catalog.MovieLink{
			{URL: "http://maybe", Language: "English"},
			{URL: "http://sure", Status: catalog.StatusOnline, Language: "English"},
		}},
	}
	out := m.FromMovies(movies)
	if len(out) != 1 || out[0].URL != "http://sure" {
		t.Errorf("online link must win: %+v", out)
	}
}
