package adapters

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"review-extractor/internal/types"
	"review-extractor/utils"
)

const trustpilotBaseURL = "https://www.trustpilot.com"

var trustpilotStars = regexp.MustCompile(`Rated (\d+) out of 5 stars`)

var trustpilotProfile = &Profile{
	Source: types.SourceTrustpilot,
	Cards: []string{
		`article[data-service-review-card-paper="true"]`,
		".styles_reviewCard__Qwhpy, .CDS_Card_card__485220",
	},
	Date: Cascade{
		{Selector: "time[data-service-review-date-time-ago='true']", Attrs: []string{"datetime"}},
		{Selector: "time[datetime]", Attrs: []string{"datetime"}},
	},
	Title:  Cascade{TextQuery("[data-service-review-title-typography='true']")},
	Body:   Cascade{TextQuery("[data-service-review-text-typography='true']")},
	Author: Cascade{TextQuery("[data-consumer-name-typography='true']")},
	Rating: RatingCascade{
		{Selector: ".CDS_StarRating_starRating__614d2e", Attrs: []string{"alt"}, Pattern: trustpilotStars},
	},
	Require:      Requirements{Body: true, Author: true},
	ExtraDetails: trustpilotDetails,
}

func trustpilotDetails(card *goquery.Selection) *types.TrustpilotDetails {
	text := func(selector string) string {
		return TextQuery(selector).eval(card)
	}
	return &types.TrustpilotDetails{
		Country:              text("[data-consumer-country-typography='true']"),
		ReviewerTotalReviews: text("[data-consumer-reviews-count-typography='true']"),
		ExperienceDate:       text(`[data-testid="review-badge-date"] .CDS_Badge_badgeText__9995a1`),
		IsUnprompted:         card.Find(`[data-testid="review-badge-unprompted"]`).Length() > 0,
	}
}

// TrustpilotAdapter reads reviews from trustpilot.com, where companies are keyed by domain
type TrustpilotAdapter struct {
	*BaseAdapter
	baseURL string
}

// NewTrustpilotAdapter creates a new Trustpilot adapter
func NewTrustpilotAdapter(config *types.Config, fetcher utils.Fetcher, logger types.Logger) *TrustpilotAdapter {
	return &TrustpilotAdapter{
		BaseAdapter: NewBaseAdapter(config, fetcher, logger),
		baseURL:     strings.TrimRight(config.BaseURL(types.SourceTrustpilot, trustpilotBaseURL), "/"),
	}
}

func (t *TrustpilotAdapter) Source() types.Source { return types.SourceTrustpilot }

func (t *TrustpilotAdapter) Profile() *Profile { return trustpilotProfile }

// Resolve treats the company as the review domain and checks the listing exists
func (t *TrustpilotAdapter) Resolve(ctx context.Context, company string) (*Listing, error) {
	slug := strings.TrimSpace(company)
	listing := &Listing{
		Slug: slug,
		URL:  fmt.Sprintf("%s/review/%s", t.baseURL, url.PathEscape(slug)),
	}
	if err := t.verifyListing(ctx, types.SourceTrustpilot, company, listing.URL, TrustpilotSuggestions(company)); err != nil {
		return nil, err
	}
	return listing, nil
}

func (t *TrustpilotAdapter) PageURL(listing *Listing, page int) string {
	return fmt.Sprintf("%s?page=%d", listing.URL, page)
}

// TrustpilotSuggestions proposes the .com domain first, since listings are keyed by domain
func TrustpilotSuggestions(company string) []string {
	var out []string
	if !strings.HasSuffix(company, ".com") {
		out = append(out, company+".com")
	}
	return dedupe(append(out, SlugVariants(company)...))
}
