package adapters

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"review-extractor/internal/types"
	"review-extractor/utils"
)

const g2BaseURL = "https://www.g2.com"

var g2Profile = &Profile{
	Source: types.SourceG2,
	Cards:  []string{".review-card", "[data-testid='review-card']", ".paper--white", ".review"},
	Date: Cascade{
		{Selector: "time", Attrs: []string{"datetime"}, Text: true},
		{Selector: "[datetime]", Attrs: []string{"datetime"}},
		TextQuery(".review-date"),
	},
	Title: Cascade{
		TextQuery(".review-title"),
		TextQuery("[data-testid='review-title']"),
		TextQuery("h3"),
		TextQuery("h4"),
	},
	Body: Cascade{
		TextQuery(".review-body"),
		TextQuery("[data-testid='review-body']"),
		TextQuery(".review-content"),
		TextQuery("p"),
	},
	Author: Cascade{
		TextQuery(".reviewer-name"),
		TextQuery("[data-testid='reviewer-name']"),
		TextQuery(".author-name"),
	},
	Rating: RatingCascade{
		{Selector: ".star-rating", Attrs: []string{"data-rating", "aria-label"}},
		{Selector: "[data-rating]", Attrs: []string{"data-rating"}},
		{Selector: ".stars", Attrs: []string{"data-rating", "aria-label"}},
	},
}

// G2Adapter reads reviews from g2.com. Companies are addressed directly by slug.
type G2Adapter struct {
	*BaseAdapter
	baseURL string
}

// NewG2Adapter creates a new G2 adapter
func NewG2Adapter(config *types.Config, fetcher utils.Fetcher, logger types.Logger) *G2Adapter {
	return &G2Adapter{
		BaseAdapter: NewBaseAdapter(config, fetcher, logger),
		baseURL:     strings.TrimRight(config.BaseURL(types.SourceG2, g2BaseURL), "/"),
	}
}

func (g *G2Adapter) Source() types.Source { return types.SourceG2 }

func (g *G2Adapter) Profile() *Profile { return g2Profile }

// Resolve treats the company as the product slug and checks the product page exists
func (g *G2Adapter) Resolve(ctx context.Context, company string) (*Listing, error) {
	slug := strings.TrimSpace(company)
	listing := &Listing{
		Slug: slug,
		URL:  fmt.Sprintf("%s/products/%s", g.baseURL, url.PathEscape(slug)),
	}
	if err := g.verifyListing(ctx, types.SourceG2, company, listing.URL, SlugVariants(company)); err != nil {
		return nil, err
	}
	return listing, nil
}

func (g *G2Adapter) PageURL(listing *Listing, page int) string {
	return fmt.Sprintf("%s/reviews?page=%d", listing.URL, page)
}
