package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"review-extractor/internal/types"
	"review-extractor/utils"
)

const capterraBaseURL = "https://www.capterra.com"

const (
	capterraSearchCard = `[data-testid="search-product-card"]`
	capterraSearchName = `[data-testid="product-name"]`
)

var capterraProfile = &Profile{
	Source: types.SourceCapterra,
	Cards: []string{
		`[data-testid="review-card"]`,
		".review-card",
		`[data-testid="review"]`,
		".review",
		".user-review",
		"[data-review-id]",
	},
	Date: Cascade{
		{Selector: "time[datetime]", Attrs: []string{"datetime"}, Text: true},
		{Selector: ".review-date", Attrs: []string{"datetime"}, Text: true},
		{Selector: "[data-testid='review-date']", Attrs: []string{"datetime"}, Text: true},
		{Selector: ".date", Attrs: []string{"datetime"}, Text: true},
	},
	Title: Cascade{
		TextQuery(".review-title"),
		TextQuery("[data-testid='review-title']"),
		TextQuery("h3"),
		TextQuery("h4"),
		TextQuery(".title"),
		TextQuery(".review-header"),
	},
	Body: Cascade{
		TextQuery(".review-body"),
		TextQuery("[data-testid='review-body']"),
		TextQuery(".review-content"),
		TextQuery(".review-text"),
		TextQuery("p"),
	},
	Author: Cascade{
		TextQuery(".reviewer-name"),
		TextQuery("[data-testid='reviewer-name']"),
		TextQuery(".author-name"),
		TextQuery(".user-name"),
		TextQuery(".reviewer"),
	},
	Rating: RatingCascade{
		{Selector: ".star-rating[data-rating]", Attrs: []string{"data-rating"}},
		{Selector: "[data-rating]", Attrs: []string{"data-rating"}},
		{Selector: ".stars", Attrs: []string{"data-rating", "aria-label"}, LabelHint: "star"},
		{Selector: ".rating", Attrs: []string{"data-rating", "aria-label"}, LabelHint: "star"},
	},
	LocaleDates: []string{utils.LayoutUSNumeric, utils.LayoutLongMonth},
	Require:     Requirements{Body: true, Author: true},
}

// CapterraAdapter reads reviews from capterra.com. Listings are keyed by a numeric
// product id that is only discoverable through the site search.
type CapterraAdapter struct {
	*BaseAdapter
	baseURL string
}

// NewCapterraAdapter creates a new Capterra adapter
func NewCapterraAdapter(config *types.Config, fetcher utils.Fetcher, logger types.Logger) *CapterraAdapter {
	return &CapterraAdapter{
		BaseAdapter: NewBaseAdapter(config, fetcher, logger),
		baseURL:     strings.TrimRight(config.BaseURL(types.SourceCapterra, capterraBaseURL), "/"),
	}
}

func (c *CapterraAdapter) Source() types.Source { return types.SourceCapterra }

func (c *CapterraAdapter) Profile() *Profile { return capterraProfile }

// Resolve searches for the company, picks a product and verifies its page
func (c *CapterraAdapter) Resolve(ctx context.Context, company string) (*Listing, error) {
	productURL, err := c.search(ctx, company)
	if err != nil {
		return nil, err
	}

	id, slug, err := ParseProductURL(productURL)
	if err != nil {
		return nil, c.resolutionError(company, types.ResolutionUnresolvable, err.Error(), err)
	}
	c.logger.Infof("Extracted product info - ID: %s, Slug: %s", id, slug)

	resp, err := c.fetcher.Get(ctx, productURL)
	if err != nil {
		return nil, c.resolutionError(company, types.ResolutionTransport, "product page request failed", err)
	}
	c.logger.Infof("Testing product page: %s - Status: %d", productURL, resp.StatusCode)
	if resp.StatusCode == http.StatusForbidden {
		return nil, c.resolutionError(company, types.ResolutionBlocked, "the site is refusing automated requests", nil)
	}
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("product page not accessible: HTTP %d", resp.StatusCode)
		return nil, c.resolutionError(company, types.ResolutionUnresolvable, msg, nil)
	}

	return &Listing{Slug: slug, ProductID: id, URL: productURL}, nil
}

func (c *CapterraAdapter) PageURL(listing *Listing, page int) string {
	return fmt.Sprintf("%s/p/%s/%s/reviews/?page=%d", c.baseURL, listing.ProductID, listing.Slug, page)
}

// search returns the absolute URL of the best matching product
func (c *CapterraAdapter) search(ctx context.Context, company string) (string, error) {
	searchURL := fmt.Sprintf("%s/search/?query=%s", c.baseURL, url.QueryEscape(company))
	c.logger.Infof("Searching Capterra for '%s': %s", company, searchURL)

	if _, err := c.config.Delay(ctx, c.config.SearchDelay); err != nil {
		return "", c.resolutionError(company, types.ResolutionTransport, "search cancelled", err)
	}

	resp, err := c.fetcher.Get(ctx, searchURL)
	if err != nil {
		return "", c.resolutionError(company, types.ResolutionTransport, "search request failed", err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		return "", c.resolutionError(company, types.ResolutionBlocked, "search blocked", nil)
	default:
		msg := fmt.Sprintf("search failed: HTTP %d", resp.StatusCode)
		return "", c.resolutionError(company, types.ResolutionUnresolvable, msg, nil)
	}

	doc, err := ParseHTML(resp.Body)
	if err != nil {
		return "", c.resolutionError(company, types.ResolutionUnresolvable, "failed to parse search results", err)
	}

	candidates := ParseSearchResults(doc, capterraSearchCard, capterraSearchName)
	if len(candidates) == 0 {
		return "", c.resolutionError(company, types.ResolutionUnresolvable, "no product cards found in search results", nil)
	}
	c.logger.Infof("Found %d product(s) in search results", len(candidates))

	best, matched, _ := MatchCandidate(company, candidates)
	for _, cand := range candidates {
		c.logger.Debugf("Found product: '%s' - %s (similarity %.2f)", cand.Name, cand.URL, cand.Similarity)
	}
	if matched {
		c.logger.Infof("Best match found: %s", best.Name)
	} else {
		c.logger.Warnf("No exact match found, using first result: %s", best.Name)
	}
	return absoluteURL(c.baseURL+"/", best.URL), nil
}

func (c *CapterraAdapter) resolutionError(company string, kind types.ResolutionKind, msg string, err error) error {
	return &types.ResolutionError{
		Source:  types.SourceCapterra,
		Company: company,
		Kind:    kind,
		Msg:     msg,
		Err:     err,
	}
}
