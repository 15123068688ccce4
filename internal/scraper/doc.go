// Package scraper implements the listing scrape pipeline: the probe fetch,
// the JS-shell detector, the headless render escalation, and the extraction
// of business listings from bolagsplatsen.se markup.
package scraper
