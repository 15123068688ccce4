package scraper

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HeuristicDetector implements Detector using simple HTML signals: tiny
// bodies, SPA framework markers, heavy script coverage, and required
// selectors that a server-rendered listing page always contains.
type HeuristicDetector struct {
	minHTMLBytes     int
	scriptDensityPct int
	keywords         [][]byte
	requireSelectors []string
}

// DetectorConfig carries the heuristic thresholds.
type DetectorConfig struct {
	MinHTMLBytes     int
	ScriptDensityPct int
	Keywords         []string
	RequireSelectors []string
}

// NewHeuristicDetector constructs a Detector with the configured thresholds.
func NewHeuristicDetector(cfg DetectorConfig) *HeuristicDetector {
	lowerKeywords := make([][]byte, 0, len(cfg.Keywords))
	for _, kw := range cfg.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lowerKeywords = append(lowerKeywords, bytes.ToLower([]byte(kw)))
	}
	selectors := make([]string, 0, len(cfg.RequireSelectors))
	for _, sel := range cfg.RequireSelectors {
		sel = strings.TrimSpace(sel)
		if sel != "" {
			selectors = append(selectors, sel)
		}
	}
	return &HeuristicDetector{
		minHTMLBytes:     cfg.MinHTMLBytes,
		scriptDensityPct: cfg.ScriptDensityPct,
		keywords:         lowerKeywords,
		requireSelectors: selectors,
	}
}

// NeedsJS inspects the probe result for signals that the page is a JS shell.
// Non-200 probes are never promoted; rendering them again buys nothing.
func (d *HeuristicDetector) NeedsJS(_ context.Context, page Page) bool {
	if d == nil {
		return false
	}
	if page.StatusCode != 0 && page.StatusCode != 200 {
		return false
	}
	switch {
	case d.bodyBelowThreshold(page.Body):
		return true
	case d.containsKeywords(page.Body):
		return true
	case d.scriptDensityHigh(page.Body):
		return true
	default:
		return d.missingSelectors(page.Body)
	}
}

func (d *HeuristicDetector) bodyBelowThreshold(body []byte) bool {
	return d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes
}

func (d *HeuristicDetector) containsKeywords(body []byte) bool {
	if len(body) == 0 || len(d.keywords) == 0 {
		return false
	}
	lowerBody := bytes.ToLower(body)
	for _, kw := range d.keywords {
		if len(kw) == 0 {
			continue
		}
		if bytes.Contains(lowerBody, kw) {
			return true
		}
	}
	return false
}

func (d *HeuristicDetector) missingSelectors(body []byte) bool {
	if len(d.requireSelectors) == 0 || len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	for _, sel := range d.requireSelectors {
		if doc.Find(sel).Length() == 0 {
			return true
		}
	}
	return false
}

func (d *HeuristicDetector) scriptDensityHigh(body []byte) bool {
	if d.scriptDensityPct <= 0 {
		return false
	}
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	scriptCoverage := 0
	searchPos := 0

	for {
		relativeStart := strings.Index(lower[searchPos:], openTag)
		if relativeStart == -1 {
			break
		}
		start := searchPos + relativeStart

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			// Treat the rest of the document as part of the malformed script.
			scriptCoverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		relativeEnd := strings.Index(lower[contentStart:], closeTag)
		var nextSearch int
		if relativeEnd == -1 {
			// Script tag never closes; count the rest.
			nextSearch = total
		} else {
			nextSearch = contentStart + relativeEnd + len(closeTag)
		}

		scriptCoverage += nextSearch - start
		searchPos = nextSearch
	}

	if scriptCoverage == 0 {
		return false
	}
	return scriptCoverage*100/total >= d.scriptDensityPct
}
