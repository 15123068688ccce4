package scraper

import (
	"strings"
	"testing"
)

var testRegions = []string{
	"Stockholm", "Göteborg", "Malmö", "Västra Götaland", "Skåne", "Jämtland",
	"Örebro", "Kronoberg", "Södermanland", "Västerås", "Eskilstuna", "Sverige",
}

var testIndustryKeywords = []string{
	"e-handel", "tillverkning", "handel", "bygg", "restaurang", "konditori", "bageri",
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>Företag till salu - Bolagsplatsen</title></head>
<body>
<div class="premium">
  <a href="/foretag-till-salu/e-handel-inom-heminredning-4821">E-handel inom heminredning</a>
  <span>Etablerad butik med stark tillväxt</span>
  <span>Stockholm</span>
</div>
<div class="premium">
  <a href="/foretag-till-salu/byggfirma-vastkusten-1193"><img src="/img/b.png"></a>
  <h3>Byggfirma på västkusten</h3>
  <p>Bygg och anläggning, Göteborg</p>
</div>
<div class="nav">
  <a href="/foretag-till-salu/">Alla företag till salu</a>
  <a href="/om-oss">Om oss</a>
</div>
<div class="premium">
  <a href="/foretag-till-salu/konditori-sodermalm-771">Konditori på Södermalm</a>
  <p>Konditori med fast kundkrets i Stockholm</p>
</div>
</body>
</html>`

func newTestParser(max int) *Parser {
	return NewParser(ParserConfig{
		MaxListings:      max,
		Regions:          testRegions,
		IndustryKeywords: testIndustryKeywords,
	})
}

func TestParseExtractsListings(t *testing.T) {
	t.Parallel()

	p := newTestParser(20)
	listings, diags, err := p.Parse([]byte(indexPage))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(listings) != 3 {
		t.Fatalf("got %d listings, want 3: %+v", len(listings), listings)
	}

	want := []Listing{
		{
			Title:      "E-handel inom heminredning",
			Location:   "Stockholm",
			Industry:   "E-handel inom heminredning",
			ListingURL: "/foretag-till-salu/e-handel-inom-heminredning-4821",
		},
		{
			Title:      "Byggfirma på västkusten",
			Location:   "Göteborg",
			Industry:   "Byggfirma på västkusten",
			ListingURL: "/foretag-till-salu/byggfirma-vastkusten-1193",
		},
		{
			Title:      "Konditori på Södermalm",
			Location:   "Stockholm",
			Industry:   "Konditori på Södermalm",
			ListingURL: "/foretag-till-salu/konditori-sodermalm-771",
		},
	}
	for i, w := range want {
		if listings[i] != w {
			t.Errorf("listing[%d] = %+v, want %+v", i, listings[i], w)
		}
	}

	if diags.PageTitle != "Företag till salu - Bolagsplatsen" {
		t.Errorf("page title = %q", diags.PageTitle)
	}
	if diags.Anchors != 3 {
		t.Errorf("anchors = %d, want 3", diags.Anchors)
	}
	if diags.DivCount != 4 {
		t.Errorf("div count = %d, want 4", diags.DivCount)
	}
}

func TestParseFiltersIndexLink(t *testing.T) {
	t.Parallel()

	p := newTestParser(20)
	listings, _, err := p.Parse([]byte(`<div>
		<a href="/foretag-till-salu/">Alla annonser</a>
		<a href="/kontakt">Kontakt</a>
	</div>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(listings) != 0 {
		t.Fatalf("got %d listings, want 0: %+v", len(listings), listings)
	}
}

func TestParseSkipsEntriesWithoutTitle(t *testing.T) {
	t.Parallel()

	p := newTestParser(20)
	listings, _, err := p.Parse([]byte(`<div>
		<a href="/foretag-till-salu/anonym-999">   </a>
		<p>Ingen rubrik någonstans</p>
	</div>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(listings) != 0 {
		t.Fatalf("got %d listings, want 0: %+v", len(listings), listings)
	}
}

func TestParseCapsListingCount(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 5; i++ {
		sb.WriteString(`<div><a href="/foretag-till-salu/bolag-`)
		sb.WriteByte(byte('0' + i))
		sb.WriteString(`">Bolag i Stockholm</a></div>`)
	}
	sb.WriteString("</body></html>")

	p := newTestParser(2)
	listings, diags, err := p.Parse([]byte(sb.String()))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("got %d listings, want cap of 2", len(listings))
	}
	if diags.Anchors != 5 {
		t.Fatalf("anchors = %d, want 5", diags.Anchors)
	}
}

func TestMatchRegion(t *testing.T) {
	t.Parallel()

	p := newTestParser(20)
	cases := []struct {
		name string
		text string
		want string
	}{
		{"list order wins", "Kontor i Västerås och kunder i hela Sverige", "Västerås"},
		{"case sensitive", "STOCKHOLM och stockholm", ""},
		{"broad name last", "Verksamhet i hela Sverige", "Sverige"},
		{"no region", "Lönsam rörelse med goda marginaler", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.matchRegion(tc.text); got != tc.want {
				t.Fatalf("matchRegion(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestMatchIndustry(t *testing.T) {
	t.Parallel()

	p := newTestParser(20)
	cases := []struct {
		name string
		text string
		want string
	}{
		{"keyword in snippet", "Restaurang i centrala Malmö till salu", "Restaurang i centrala"},
		{"case insensitive keyword", "BYGGFIRMA med ramavtal kvar", "BYGGFIRMA med ramavtal"},
		{"keyword past third token", "Mycket fin lokal för restaurang", ""},
		{"no keyword", "Lönsam konsultverksamhet inom IT", ""},
		{"empty text", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.matchIndustry(tc.text); got != tc.want {
				t.Fatalf("matchIndustry(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestDebugListing(t *testing.T) {
	t.Parallel()

	got := DebugListing(Diagnostics{
		PageTitle: "Företag till salu",
		DivCount:  42,
		BodyBytes: 1337,
	})
	want := Listing{
		Title:      "DEBUG: No listings found",
		Location:   "Page title: Företag till salu",
		Industry:   "Total div elements: 42",
		ListingURL: "Response length: 1337",
	}
	if got != want {
		t.Fatalf("DebugListing() = %+v, want %+v", got, want)
	}

	got = DebugListing(Diagnostics{})
	if got.Location != "Page title: No title" {
		t.Fatalf("missing title placeholder = %q", got.Location)
	}
}

func TestParseEmptyDocument(t *testing.T) {
	t.Parallel()

	p := newTestParser(20)
	listings, diags, err := p.Parse(nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(listings) != 0 {
		t.Fatalf("got %d listings, want 0", len(listings))
	}
	if diags.BodyBytes != 0 || diags.DivCount != 0 || diags.Anchors != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
}
