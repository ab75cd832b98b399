package moviecheck

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/playlistkeeper/playlist-keeper/internal/catalog"
	"github.com/playlistkeeper/playlist-keeper/internal/config"
)

func testUpdater(check CheckFunc) *Updater {
	cfg := config.Default()
	cfg.MovieWorkers = 3
	return &Updater{Cfg: cfg, Log: zap.NewNop(), Check: check}
}

func TestUpdateAll_statusAndNormalize(t *testing.T) {
	var mu sync.Mutex
	probed := map[string]bool{}
	u := testUpdater(func(ctx context.Context, url string, headers map[string]string) bool {
		mu.Lock()
		probed[url] = true
		mu.Unlock()
		return !strings.Contains(url, "dead")
	})

	movies := catalog.Movies{
		"Good Film": {Year: 2024, Links: []*catalog.MovieLink{{
			URL: "http://ok/f.mkv", Added: "2025-01-01", Language: "English",
			Headers: map[string]string{"Referer": "http://r"},
		}}},
		"Bad Film": {Year: 2020, Links: []*catalog.MovieLink{{
			URL: "http://dead/f.mkv", Added: "2025-01-01", Language: "Hindi",
		}}},
		"No URL Film": {Year: 2019, Links: []*catalog.MovieLink{{
			Added: "2025-01-01", Language: "Hindi",
		}}},
	}
	u.UpdateAll(context.Background(), movies)

	if got := movies["Good Film"].Links[0].Status; got != catalog.StatusOnline {
		t.Errorf("good: %v", got)
	}
	if got := movies["Bad Film"].Links[0].Status; got != catalog.StatusOffline {
		t.Errorf("bad: %v", got)
	}
	if got := movies["No URL Film"].Links[0].Status; got != "" {
		t.Errorf("url-less link must be untouched: %v", got)
	}
	if probed["http://ok/f.mkv"] == false || len(probed) != 2 {
		t.Errorf("probed: %v", probed)
	}
	if movies["Good Film"].Links[0].Headers != nil {
		t.Error("normalize must drop headers after probing")
	}
}

func TestUpdateAll_passesLinkHeaders(t *testing.T) {
	var mu sync.Mutex
	var got map[string]string
	u := testUpdater(func(ctx context.Context, url string, headers map[string]string) bool {
		mu.Lock()
		got = headers
		mu.Unlock()
		return true
	})
	movies := catalog.Movies{
		"Film": {Links: []*catalog.MovieLink{{
			URL: "http://x", Headers: map[string]string{"Referer": "http://portal/"},
		}}},
	}
	u.UpdateAll(context.Background(), movies)
	if got["Referer"] != "http://portal/" {
		t.Errorf("headers = %v", got)
	}
}

func TestWriteSummary_languageBreakdown(t *testing.T) {
	u := testUpdater(nil)
	movies := catalog.Movies{
		"E1": {Links: []*catalog.MovieLink{{URL: "u", Status: catalog.StatusOnline, Language: "English", Added: "2025-01-01"}}},
		"E2": {Links: []*catalog.MovieLink{{URL: "u", Status: catalog.StatusOffline, Language: "English", Added: "2025-01-01"}}},
		"H1": {Links: []*catalog.MovieLink{{URL: "u", Status: catalog.StatusOnline, Language: "Hindi", Added: "2025-01-01"}}},
	}
	var buf bytes.Buffer
	u.WriteSummary(&buf, movies)
	out := buf.String()
	if !strings.Contains(out, "english") || !strings.Contains(out, "hindi") {
		t.Errorf("language breakdown:\n%s", out)
	}
}
