package m3u

import (
	"bytes"
	"strings"
	"testing"
)

const samplePlaylist = `#EXTM3U url-tvg="http://epg/x.xml"
#EXTINF:-1 tvg-id="one.tv" tvg-logo="http://logo/1.png" group-title="Bangla",Channel One
http://host/one.m3u8
# a stray comment
#EXTINF:-1 group-title="News",Channel Two
http://host/two.m3u8

#EXTINF:-1,Orphan Without URL
#EXTINF:-1,Channel Three
http://host/three.ts
`

func TestParse(t *testing.T) {
	entries, err := Parse(strings.NewReader(samplePlaylist))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].Name != "Channel One" || entries[0].URL != "http://host/one.m3u8" {
		t.Errorf("first entry: %+v", entries[0])
	}
	if entries[0].Group() != "Bangla" || entries[1].Group() != "News" {
		t.Errorf("groups: %q %q", entries[0].Group(), entries[1].Group())
	}
	// The orphan EXTINF is replaced by the next one; no ghost entries.
	if entries[2].Name != "Channel Three" {
		t.Errorf("third entry: %+v", entries[2])
	}
}

func TestGroup_defaultsOther(t *testing.T) {
	e := Entry{Extinf: "#EXTINF:-1,Bare"}
	if e.Group() != "Other" {
		t.Errorf("group = %q", e.Group())
	}
}

func TestDisplayName_commaInsideQuotes(t *testing.T) {
	extinf := `#EXTINF:-1 tvg-name="News, Local" group-title="News",The Channel`
	if got := DisplayName(extinf); got != "The Channel" {
		t.Errorf("DisplayName = %q", got)
	}
}

func TestAttr(t *testing.T) {
	extinf := `#EXTINF:-1 tvg-id="abc" tvg-logo="" group-title="X",Name`
	if got := Attr(extinf, "tvg-id"); got != "abc" {
		t.Errorf("tvg-id = %q", got)
	}
	if got := Attr(extinf, "tvg-logo"); got != "" {
		t.Errorf("empty attr = %q", got)
	}
	if got := Attr(extinf, "tvg-shift"); got != "" {
		t.Errorf("absent attr = %q", got)
	}
}

func TestSetAttr_replaceAndAppend(t *testing.T) {
	extinf := `#EXTINF:-1 tvg-id="old" group-title="X",Name`
	got := SetAttr(extinf, "tvg-id", "new")
	if Attr(got, "tvg-id") != "new" {
		t.Errorf("replace: %q", got)
	}
	if DisplayName(got) != "Name" {
		t.Errorf("name must survive replace: %q", got)
	}

	got = SetAttr(extinf, "tvg-logo", "http://logo.png")
	if Attr(got, "tvg-logo") != "http://logo.png" {
		t.Errorf("append: %q", got)
	}
	if DisplayName(got) != "Name" {
		t.Errorf("name must survive append: %q", got)
	}
}

func TestSetName(t *testing.T) {
	extinf := `#EXTINF:-1 tvg-id="x" group-title="G",Old Name`
	got := SetName(extinf, "New Name (2024)")
	if DisplayName(got) != "New Name (2024)" {
		t.Errorf("SetName: %q", got)
	}
	if Attr(got, "tvg-id") != "x" {
		t.Errorf("attrs must survive SetName: %q", got)
	}
}

func TestWrite_roundtrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHeader(&buf, "http://epg/x.xml"); err != nil {
		t.Fatal(err)
	}
	extinf := `#EXTINF:-1 group-title="Bangla",Roundtrip TV`
	if err := WriteEntry(&buf, extinf, "http://host/rt.m3u8"); err != nil {
		t.Fatal(err)
	}

	entries, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "Roundtrip TV" || entries[0].URL != "http://host/rt.m3u8" {
		t.Errorf("roundtrip: %+v", entries)
	}
}
