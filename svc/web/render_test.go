package web

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"pastebin/pkg/domain"
	"pastebin/svc/hist"
)

func testView() hist.View {
	at := time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC)
	del := at.Add(time.Hour)
	alias := "notes"
	return hist.View{
		Active: []domain.Entry{
			domain.NewEntry("<pre>active &lt;b&gt;</pre>", at),
		},
		Pinned: []domain.Entry{
			{ID: domain.NewEntry("", at).ID, Text: "pinned text", CreatedAt: at, ShortURL: &alias},
		},
		Deleted: []domain.Entry{
			{ID: domain.NewEntry("", at).ID, Text: "deleted text", CreatedAt: at, DeletedAt: &del},
		},
		MaxActiveEntries:        20,
		MaxDeletedRetentionDays: 32,
	}
}

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(time.UTC)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r
}

func TestIndex(t *testing.T) {
	r := newRenderer(t)
	v := testView()
	var buf bytes.Buffer
	if err := r.Index(&buf, v, Messages{Info: "Number of short URLs set (total):  1."}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"<pre>active &lt;b&gt;</pre>",
		"pinned text",
		`action="/pin"`,
		`action="/delete"`,
		`action="/deletePin"`,
		`value="` + v.Active[0].ID.String() + `"`,
		"<nobr>2024-03-05</nobr> <nobr>07:08:09</nobr>",
		"Number of short URLs set (total):  1.",
		`action="/paste"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("index missing %q", want)
		}
	}
	if strings.Contains(out, "deleted text") {
		t.Error("index must not list deleted entries")
	}
	if strings.Index(out, "pinned text") > strings.Index(out, `action="/paste"`) {
		t.Error("pinned entries belong above the form")
	}
	if strings.Index(out, "active &lt;b&gt;") < strings.Index(out, `action="/paste"`) {
		t.Error("active entries belong below the form")
	}
}

func TestIndexEscapesMessages(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer
	if err := r.Index(&buf, hist.View{}, Messages{Error: "<script>x</script>"}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "<script>x</script>") {
		t.Error("message was not escaped")
	}
}

func TestDeleted(t *testing.T) {
	r := newRenderer(t)
	var buf bytes.Buffer
	v := testView()
	if err := r.Deleted(&buf, v); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"deleted text", `action="/undelete"`, "<nobr>08:08:09</nobr>", `href="/"`} {
		if !strings.Contains(out, want) {
			t.Errorf("deleted page missing %q", want)
		}
	}

	buf.Reset()
	if err := r.Deleted(&buf, hist.View{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "There are no entries in the deleted list.") {
		t.Error("empty deleted list message missing")
	}
}

func TestShortURLs(t *testing.T) {
	r := newRenderer(t)
	v := testView()
	body, err := r.Render(PageShortURLs, v)
	if err != nil {
		t.Fatal(err)
	}
	out := string(body)
	for _, want := range []string{
		`action="/updateShortUrls"`,
		`name="shortUrl` + v.Pinned[0].ID.String() + `" value="notes"`,
		`name="shortUrl` + v.Active[0].ID.String() + `" value=""`,
		"Pinned Items",
		"Unpinned Items",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("short url page missing %q", want)
		}
	}
}

func TestRenderUnknownPage(t *testing.T) {
	r := newRenderer(t)
	if _, err := r.Render("nope", hist.View{}); err == nil {
		t.Error("expected error for unknown page")
	}
}
