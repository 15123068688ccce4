package scraper

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// listingPathToken marks anchors that point at individual listing pages. The
// index page links to the bare token itself, which is filtered out.
const listingPathToken = "/foretag-till-salu/"

// ParserConfig carries the extraction knobs.
type ParserConfig struct {
	MaxListings      int
	Regions          []string
	IndustryKeywords []string
}

// Parser extracts business listings from index page markup.
type Parser struct {
	maxListings      int
	regions          []string
	industryKeywords []string
}

// NewParser constructs a Parser with the configured region and industry
// vocabularies. Industry keywords are matched case-insensitively.
func NewParser(cfg ParserConfig) *Parser {
	if cfg.MaxListings <= 0 {
		cfg.MaxListings = 20
	}
	keywords := make([]string, 0, len(cfg.IndustryKeywords))
	for _, kw := range cfg.IndustryKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return &Parser{
		maxListings:      cfg.MaxListings,
		regions:          cfg.Regions,
		industryKeywords: keywords,
	}
}

// Parse extracts up to MaxListings entries from the document. A listing is
// kept only when both a title and a URL were found. The returned Diagnostics
// feed the empty-result fallback entry.
func (p *Parser) Parse(body []byte) ([]Listing, Diagnostics, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, Diagnostics{}, fmt.Errorf("parse listings html: %w", err)
	}

	links := doc.Find("a[href]").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		return ok && strings.Contains(href, listingPathToken) && href != listingPathToken
	})

	listings := make([]Listing, 0, p.maxListings)
	links.EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		parent := link.Parent()
		if parent.Length() == 0 {
			return true
		}

		title := strippedText(link)
		if title == "" {
			title = strippedText(parent.Find("h1, h2, h3, h4, h5, h6").First())
		}
		containerText := separatedText(parent)

		if title == "" || href == "" {
			return true
		}
		listings = append(listings, Listing{
			Title:      title,
			Location:   p.matchRegion(containerText),
			Industry:   p.matchIndustry(containerText),
			ListingURL: href,
		})
		return len(listings) < p.maxListings
	})

	diag := Diagnostics{
		PageTitle: strippedText(doc.Find("title").First()),
		DivCount:  doc.Find("div").Length(),
		BodyBytes: len(body),
		Anchors:   links.Length(),
	}
	return listings, diag, nil
}

// matchRegion returns the first configured region found anywhere in the
// container text. List order decides ties, so broader names go last.
func (p *Parser) matchRegion(text string) string {
	for _, region := range p.regions {
		if region == "" {
			continue
		}
		if strings.Contains(text, region) {
			return region
		}
	}
	return ""
}

// matchIndustry inspects the first three whitespace-separated tokens of the
// container text. When an industry keyword appears among them the snippet is
// kept verbatim as the industry label.
func (p *Parser) matchIndustry(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	if len(fields) > 3 {
		fields = fields[:3]
	}
	snippet := strings.Join(fields, " ")
	lower := strings.ToLower(snippet)
	for _, kw := range p.industryKeywords {
		if strings.Contains(lower, kw) {
			return snippet
		}
	}
	return ""
}

// DebugListing builds the placeholder entry returned when a scrape finds no
// listings, exposing enough page stats to tell an empty page from a parser
// miss.
func DebugListing(d Diagnostics) Listing {
	title := d.PageTitle
	if title == "" {
		title = "No title"
	}
	return Listing{
		Title:      "DEBUG: No listings found",
		Location:   fmt.Sprintf("Page title: %s", title),
		Industry:   fmt.Sprintf("Total div elements: %d", d.DivCount),
		ListingURL: fmt.Sprintf("Response length: %d", d.BodyBytes),
	}
}

// strippedText trims every text node under the selection and concatenates
// the non-empty pieces. Unlike goquery's Text it drops inter-node
// whitespace, which keeps titles free of layout indentation.
func strippedText(sel *goquery.Selection) string {
	return joinTextNodes(sel, "")
}

// separatedText joins trimmed text nodes with " | " so element boundaries
// stay visible to the region and industry matchers.
func separatedText(sel *goquery.Selection) string {
	return joinTextNodes(sel, " | ")
}

func joinTextNodes(sel *goquery.Selection, sep string) string {
	var parts []string
	for _, node := range sel.Nodes {
		collectTextNodes(node, &parts)
	}
	return strings.Join(parts, sep)
}

func collectTextNodes(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
			*parts = append(*parts, trimmed)
		}
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectTextNodes(child, parts)
	}
}
