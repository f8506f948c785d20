package extractor

import (
	"context"
	"net/http"

	"github.com/PuerkitoBio/goquery"

	"review-extractor/adapters"
	"review-extractor/internal/metrics"
	"review-extractor/internal/types"
	"review-extractor/utils"
)

// DefaultMaxPages is the hard page ceiling. Config.MaxPages may only lower it.
const DefaultMaxPages = 10

// Page is one fetched listing page with its candidate cards
type Page struct {
	Number   int
	URL      string
	Doc      *goquery.Document
	Cards    *goquery.Selection
	Selector string
}

// Stop records where and why pagination ended
type Stop struct {
	Page   int
	Reason types.StopReason
	Status int
	Err    error
}

// Paginator walks listing pages sequentially: delay, fetch, hand the page over, advance.
// It never stops on review dates; only status, emptiness, errors or the ceiling end a walk.
type Paginator struct {
	config  *types.Config
	fetcher utils.Fetcher
	logger  types.Logger
	metrics *metrics.Metrics
}

// NewPaginator creates a new paginator
func NewPaginator(config *types.Config, fetcher utils.Fetcher, logger types.Logger, m *metrics.Metrics) *Paginator {
	return &Paginator{config: config, fetcher: fetcher, logger: logger, metrics: m}
}

// Walk fetches pages 1..MaxPages and calls visit for every page that has cards
func (p *Paginator) Walk(ctx context.Context, adapter adapters.Adapter, listing *adapters.Listing, visit func(*Page)) Stop {
	stop := p.walk(ctx, adapter, listing, visit)
	if p.metrics != nil {
		p.metrics.PaginationStop.WithLabelValues(string(adapter.Source()), string(stop.Reason)).Inc()
	}
	return stop
}

func (p *Paginator) walk(ctx context.Context, adapter adapters.Adapter, listing *adapters.Listing, visit func(*Page)) Stop {
	maxPages := p.config.MaxPages
	if maxPages <= 0 || maxPages > DefaultMaxPages {
		maxPages = DefaultMaxPages
	}
	profile := adapter.Profile()
	source := adapter.Source()

	for page := 1; ; page++ {
		pageURL := adapter.PageURL(listing, page)

		wait, err := p.config.Delay(ctx, p.config.PageDelay)
		if err != nil {
			p.logger.Warnf("Pagination cancelled before page %d: %v", page, err)
			return Stop{Page: page, Reason: types.StopTransportError, Err: err}
		}
		p.logger.Debugf("Waited %v before page %d", wait, page)

		resp, err := p.fetcher.Get(ctx, pageURL)
		if err != nil {
			p.logger.Warnf("Request failed for page %d: %v", page, err)
			return Stop{Page: page, Reason: types.StopTransportError, Err: err}
		}
		p.logger.Infof("Page %d: %d - %s", page, resp.StatusCode, pageURL)

		if resp.StatusCode != http.StatusOK {
			stop := Stop{Page: page, Reason: types.StopNonOKStatus, Status: resp.StatusCode}
			if resp.StatusCode == http.StatusForbidden {
				stop.Reason = types.StopBlocked
			}
			stop.Err = &types.TransportError{URL: pageURL, Status: resp.StatusCode}
			if resp.StatusCode == http.StatusNotFound && page == 1 {
				p.logger.Warn("Reviews page not found. Product might not have reviews.")
			}
			return stop
		}
		if p.metrics != nil {
			p.metrics.PagesFetched.WithLabelValues(string(source)).Inc()
		}

		doc, err := adapters.ParseHTML(resp.Body)
		if err != nil {
			p.logger.Warnf("Failed to parse page %d: %v", page, err)
			return Stop{Page: page, Reason: types.StopEmptyPage, Err: err}
		}

		cards, selector := profile.FindCards(doc)
		if cards.Length() == 0 {
			p.logger.Infof("No review cards found on page %d", page)
			if page == 1 {
				for _, line := range adapters.DescribePage(doc, 10) {
					p.logger.Debugf("Available element: %s", line)
				}
			}
			return Stop{Page: page, Reason: types.StopEmptyPage}
		}
		p.logger.Infof("Found %d reviews using selector: %s", cards.Length(), selector)

		visit(&Page{Number: page, URL: pageURL, Doc: doc, Cards: cards, Selector: selector})

		if page >= maxPages {
			p.logger.Infof("Reached page limit (%d pages)", maxPages)
			return Stop{Page: page, Reason: types.StopPageLimit}
		}
	}
}
