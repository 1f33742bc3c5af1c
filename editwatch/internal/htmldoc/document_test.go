package htmldoc

import (
	"errors"
	"strings"
	"testing"
)

const page = `<!doctype html><html><body>
<div id="story-history"><p data-paragraph-id="1" data-story-id="s">Once upon a time</p><p data-paragraph-id="2">The end</p></div>
<div class="memory mid-synopsis-area"><p>Mid memo</p></div>
<section><div role="log"><span class="x">deep</span></div></section>
</body></html>`

func mustParse(t *testing.T) *Document {
	t.Helper()
	d, err := ParseString(page)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestRegion(t *testing.T) {
	d := mustParse(t)

	markup, text, ok := d.Region("#story-history")
	if !ok {
		t.Fatal("region not found")
	}
	if !strings.HasPrefix(markup, `<p data-paragraph-id="1" data-story-id="s">Once upon a time</p>`) {
		t.Errorf("markup: got %q", markup)
	}
	if !strings.Contains(text, "Once upon a time") || !strings.Contains(text, "The end") {
		t.Errorf("text: got %q", text)
	}

	if _, _, ok := d.Region(".long-synopsis-area"); ok {
		t.Error("absent region reported present")
	}
}

func TestSelectors(t *testing.T) {
	d := mustParse(t)
	cases := map[string]bool{
		".mid-synopsis-area":         true,
		"div.memory":                 true,
		"div#story-history":          true,
		"[role=log]":                 true,
		"section span.x":             true,
		"section .mid-synopsis-area": false,
		"p[data-story-id]":           true,
		"p[data-story-id=t]":         false,
	}
	for sel, want := range cases {
		if _, _, got := d.Region(sel); got != want {
			t.Errorf("Region(%q): got %v, want %v", sel, got, want)
		}
	}
}

func TestSetInnerHTML(t *testing.T) {
	d := mustParse(t)
	if err := d.SetInnerHTML(".mid-synopsis-area", `<p data-paragraph-id="9">Rewritten</p>`); err != nil {
		t.Fatal(err)
	}
	markup, _, _ := d.Region(".mid-synopsis-area")
	if markup != `<p data-paragraph-id="9">Rewritten</p>` {
		t.Errorf("markup: got %q", markup)
	}

	err := d.SetInnerHTML("#missing", "x")
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("missing region: got %v, want ErrNoMatch", err)
	}
}

func TestRemoveLast(t *testing.T) {
	d := mustParse(t)

	removed, err := d.RemoveLast("#story-history", "p[data-paragraph-id]")
	if err != nil || !removed {
		t.Fatalf("first remove: %v, %v", removed, err)
	}
	markup, _, _ := d.Region("#story-history")
	if strings.Contains(markup, "The end") {
		t.Errorf("last paragraph still present: %q", markup)
	}

	d.RemoveLast("#story-history", "p[data-paragraph-id]")
	removed, err = d.RemoveLast("#story-history", "p[data-paragraph-id]")
	if err != nil || removed {
		t.Errorf("remove on empty region: got %v, %v; want false, nil", removed, err)
	}
}

func TestHTMLRoundTrip(t *testing.T) {
	d := mustParse(t)
	again, err := ParseString(d.HTML())
	if err != nil {
		t.Fatal(err)
	}
	a, _, _ := d.Region("#story-history")
	b, _, _ := again.Region("#story-history")
	if a != b {
		t.Errorf("region changed across render:\n%q\n%q", a, b)
	}
}
