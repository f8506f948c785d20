package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"

	"review-extractor/internal/types"
)

// Listing is a company resolved to a source-specific location
type Listing struct {
	Slug      string
	ProductID string
	URL       string
}

// SlugVariants suggests alternative slugs for a company that was not found
func SlugVariants(company string) []string {
	lower := strings.ToLower(strings.TrimSpace(company))
	variants := []string{
		lower,
		strings.ReplaceAll(lower, " ", "-"),
		strings.ReplaceAll(lower, " ", "_"),
		lower + "-technologies",
		lower + "-inc",
	}
	return dedupe(variants)
}

// verifyListing fails fast before pagination: 404 means the slug is wrong, 403 means blocked.
// Other statuses are let through; pagination will stop on them on its own.
func (b *BaseAdapter) verifyListing(ctx context.Context, source types.Source, company, listingURL string, suggestions []string) error {
	resp, err := b.fetcher.Get(ctx, listingURL)
	if err != nil {
		return &types.ResolutionError{Source: source, Company: company, Kind: types.ResolutionTransport, Err: err}
	}
	b.logger.Infof("Testing %s URL: %s - Status: %d", source.DisplayName(), listingURL, resp.StatusCode)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return &types.ResolutionError{
			Source:      source,
			Company:     company,
			Kind:        types.ResolutionNotFound,
			Msg:         "check the company slug",
			Suggestions: suggestions,
		}
	case http.StatusForbidden:
		return &types.ResolutionError{
			Source:  source,
			Company: company,
			Kind:    types.ResolutionBlocked,
			Msg:     "the site is refusing automated requests",
		}
	}
	return nil
}

// SearchCandidate is one product card from a search results page
type SearchCandidate struct {
	Name       string
	URL        string
	Similarity float64
}

// ParseSearchResults reads product cards in result order. Names are lower-cased;
// cards without a name or link are dropped.
func ParseSearchResults(doc *goquery.Document, cardSelector, nameSelector string) []SearchCandidate {
	var out []SearchCandidate
	doc.Find(cardSelector).Each(func(i int, card *goquery.Selection) {
		nameEl := card.Find(nameSelector).First()
		if nameEl.Length() == 0 {
			return
		}
		name := strings.ToLower(cleanText(nameEl.Text()))
		href := strings.TrimSpace(nameEl.AttrOr("href", ""))
		if name == "" || href == "" {
			return
		}
		out = append(out, SearchCandidate{Name: name, URL: href})
	})
	return out
}

// MatchCandidate picks the first candidate whose name contains the query or is contained
// in it (case-insensitive), else the first candidate. matched reports which rule applied.
// Similarity is filled in for diagnostics only and never changes the choice.
func MatchCandidate(query string, candidates []SearchCandidate) (best SearchCandidate, matched bool, ok bool) {
	if len(candidates) == 0 {
		return SearchCandidate{}, false, false
	}
	q := strings.ToLower(strings.TrimSpace(query))
	for i := range candidates {
		candidates[i].Similarity = matchr.JaroWinkler(q, candidates[i].Name, false)
	}
	for _, c := range candidates {
		if strings.Contains(c.Name, q) || strings.Contains(q, c.Name) {
			return c, true, true
		}
	}
	return candidates[0], false, true
}

var productPath = regexp.MustCompile(`/p/(\d+)/([^/]+)/`)

// ParseProductURL extracts the numeric id and slug from a /p/{id}/{slug}/ URL
func ParseProductURL(u string) (id, slug string, err error) {
	m := productPath.FindStringSubmatch(u)
	if m == nil {
		return "", "", fmt.Errorf("could not extract product info from URL: %s", u)
	}
	return m[1], m[2], nil
}

// absoluteURL resolves href against base
func absoluteURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func dedupe(items []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}
