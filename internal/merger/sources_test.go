package merger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeJSON(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromMovieSources_latestAddedWinsAcrossFiles(t *testing.T) {
	m := testMerger(t)
	dir := t.TempDir()
	first := writeJSON(t, dir, "first.json", `{
		"Shared Film": {"year": 2020, "tvg_logo": "http://logo/first.png", "links": [
			{"added": "2025-01-01", "language": "English", "url": "http://first/shared"}
		]},
		"Only First": {"year": 2019, "links": [
			{"added": "2025-02-01", "language": "Hindi", "url": "http://first/only"}
		]}
	}`)
	second := writeJSON(t, dir, "second.json", `{
		"Shared Film": {"year": 2020, "links": [
			{"added": "2025-06-01", "language": "English", "url": "http://second/shared"}
		]}
	}`)

	out := m.FromMovieSources([]string{first, second})
	if len(out) != 2 {
		t.Fatalf("items = %d, want 2", len(out))
	}
	var shared, only *Item
	for i := range out {
		switch out[i].TVGID {
		case GenerateTVGID("Shared Film"):
			shared = &out[i]
		case GenerateTVGID("Only First"):
			only = &out[i]
		}
	}
	if shared == nil || only == nil {
		t.Fatalf("items: %+v", out)
	}
	if shared.URL != "http://second/shared" {
		t.Errorf("latest added must win: %+v", shared)
	}
	if shared.TVGLogo != "http://logo/first.png" {
		t.Errorf("losing file must backfill the logo: %+v", shared)
	}
	if only.URL != "http://first/only" || only.Group != "Movies - Hindi" {
		t.Errorf("single-file title: %+v", only)
	}
	if shared.SourceRank != rankMovieSources {
		t.Errorf("rank: %d", shared.SourceRank)
	}
}

func TestFromMovieSources_missingFileSkipped(t *testing.T) {
	m := testMerger(t)
	dir := t.TempDir()
	real := writeJSON(t, dir, "real.json", `{
		"Film": {"year": 2021, "links": [{"added": "2025-01-01", "language": "English", "url": "http://x"}]}
	}`)
	out := m.FromMovieSources([]string{filepath.Join(dir, "absent.json"), real})
	if len(out) != 1 {
		t.Errorf("items = %d, want 1", len(out))
	}
}

func TestLoadM3USource_localAndHTTP(t *testing.T) {
	m := testMerger(t)
	playlist := "#EXTM3U\n#EXTINF:-1 group-title=\"News\",Remote TV\nhttp://host/r.m3u8\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(playlist))
	}))
	defer srv.Close()

	items, err := m.LoadM3USource(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("http source: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Remote TV" || items[0].SourceRank != rankM3U {
		t.Errorf("http items: %+v", items)
	}

	path := filepath.Join(t.TempDir(), "local.m3u")
	if err := os.WriteFile(path, []byte(playlist), 0o644); err != nil {
		t.Fatal(err)
	}
	items, err = m.LoadM3USource(context.Background(), path)
	if err != nil {
		t.Fatalf("local source: %v", err)
	}
	if len(items) != 1 || items[0].Group != "News" {
		t.Errorf("local items: %+v", items)
	}
}

func TestLoadM3USource_httpError(t *testing.T) {
	m := testMerger(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := m.LoadM3USource(context.Background(), srv.URL); err == nil {
		t.Error("non-200 must fail")
	}
}
