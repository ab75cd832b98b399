package checker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/playlistkeeper/playlist-keeper/internal/catalog"
	"github.com/playlistkeeper/playlist-keeper/internal/m3u"
)

func TestExportOffline(t *testing.T) {
	c := testChecker(&stubHead{}, &stubDemux{})
	dir := t.TempDir()
	off := "2025-06-19"
	channels := catalog.Channels{
		"Down TV": {Group: "News", Links: []*catalog.Link{
			{URL: "http://down/a", Status: catalog.StatusOffline, LastOffline: &off},
		}},
		"Aged TV": {Group: "News", Links: []*catalog.Link{
			{URL: "", Status: catalog.StatusOffline, LastOffline: &off},
		}},
		"Up TV": {Group: "News", Links: []*catalog.Link{
			{URL: "http://up/a", Status: catalog.StatusOnline},
		}},
	}

	n, err := c.ExportOffline(channels, dir)
	if err != nil {
		t.Fatalf("ExportOffline: %v", err)
	}
	if n != 1 {
		t.Errorf("exported = %d, want 1", n)
	}

	entries, err := m3u.ParseFile(filepath.Join(dir, "offline.m3u"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries: %+v", entries)
	}
	if entries[0].Name != "Down TV (12d)" {
		t.Errorf("name = %q, want offline duration suffix", entries[0].Name)
	}
	if entries[0].Group() != "News" {
		t.Errorf("group = %q", entries[0].Group())
	}
}

func TestExportOffline_quotedGroup(t *testing.T) {
	c := testChecker(&stubHead{}, &stubDemux{})
	dir := t.TempDir()
	off := "2025-06-19"
	channels := catalog.Channels{
		"Down TV": {Group: `News "24"`, Links: []*catalog.Link{
			{URL: "http://down/a", Status: catalog.StatusOffline, LastOffline: &off},
		}},
	}

	if _, err := c.ExportOffline(channels, dir); err != nil {
		t.Fatalf("ExportOffline: %v", err)
	}
	entries, err := m3u.ParseFile(filepath.Join(dir, "offline.m3u"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries: %+v", entries)
	}
	if g := entries[0].Group(); g != "News 24" {
		t.Errorf("group = %q", g)
	}
	if entries[0].Name != "Down TV (12d)" {
		t.Errorf("name = %q", entries[0].Name)
	}
}

func TestExportExcludedWhitelisted(t *testing.T) {
	c := testChecker(&stubHead{}, &stubDemux{})
	dir := t.TempDir()
	channels := catalog.Channels{
		"Shop TV":    {Group: "X", Links: []*catalog.Link{{URL: "http://shop/a", Status: catalog.StatusOnline}}},
		"Trusted TV": {Group: "X", Links: []*catalog.Link{{URL: "http://trusted.example/a", Status: catalog.StatusOnline}}},
		"Normal TV":  {Group: "X", Links: []*catalog.Link{{URL: "http://normal/a", Status: catalog.StatusOnline}}},
	}
	if err := c.ExportExcludedWhitelisted(channels, dir); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "excluded_whitelisted.m3u"))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, "Shop TV") || !strings.Contains(out, "Trusted TV") {
		t.Errorf("missing entries:\n%s", out)
	}
	if strings.Contains(out, "Normal TV") {
		t.Errorf("regular channels must stay out:\n%s", out)
	}
}
