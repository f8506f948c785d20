package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"review-extractor/adapters"
	"review-extractor/internal/metrics"
	"review-extractor/internal/types"
	"review-extractor/storage"
	"review-extractor/utils"
)

// Extractor runs one company/source scrape: vet proxies, open a session, resolve,
// paginate, extract, then hand the accepted records to the writer once.
type Extractor struct {
	config  *types.Config
	logger  types.Logger
	metrics *metrics.Metrics
	writer  storage.ReviewWriter
}

// NewExtractor creates a new extractor. writer may be nil to keep records in memory only.
func NewExtractor(config *types.Config, logger types.Logger, m *metrics.Metrics, writer storage.ReviewWriter) *Extractor {
	return &Extractor{
		config:  config,
		logger:  logger,
		metrics: m,
		writer:  writer,
	}
}

// Run executes req. The returned result is never nil; it carries whatever was
// accepted even when err is set. Transport problems during pagination end the run
// early but are not returned as errors.
func (e *Extractor) Run(ctx context.Context, req types.Request) (*types.RunResult, error) {
	startTime := time.Now()
	source := req.Source
	e.logger.Infof("Starting %s extraction for '%s' (%s) at %v", source.DisplayName(), req.Company, req.Range, startTime.Format("15:04:05.000"))

	result := &types.RunResult{
		Company: req.Company,
		Source:  source,
		Records: []types.ReviewRecord{},
		Skips:   map[string]int{},
	}

	proxies := req.Proxies
	if len(proxies) > 0 {
		proxies = utils.NewProxyVetter(e.config, e.logger, e.metrics).Vet(ctx, proxies)
		if len(proxies) == 0 {
			e.logger.Warn("No working proxies found. Continuing without proxy...")
		}
	}

	session, err := utils.NewSession(e.config, proxies, e.logger, e.metrics)
	if err != nil {
		return result, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	return e.run(ctx, req, session, result, startTime)
}

func (e *Extractor) run(ctx context.Context, req types.Request, fetcher utils.Fetcher, result *types.RunResult, startTime time.Time) (*types.RunResult, error) {
	adapter, err := adapters.New(req.Source, e.config, fetcher, e.logger)
	if err != nil {
		return result, err
	}

	listing, err := adapter.Resolve(ctx, req.Company)
	if err != nil {
		e.logger.Errorf("Could not resolve '%s' on %s: %v", req.Company, req.Source.DisplayName(), err)
		return result, err
	}

	profile := adapter.Profile()
	sourceLabel := string(req.Source)
	paginator := NewPaginator(e.config, fetcher, e.logger, e.metrics)

	stop := paginator.Walk(ctx, adapter, listing, func(page *Page) {
		result.Pages++
		page.Cards.Each(func(i int, card *goquery.Selection) {
			rec, err := profile.ExtractCard(card, req.Range)
			if err != nil {
				var skip *types.ExtractionSkip
				reason := string(types.SkipPanic)
				if errors.As(err, &skip) {
					reason = string(skip.Reason)
				}
				result.Skips[reason]++
				if e.metrics != nil {
					e.metrics.CandidateSkips.WithLabelValues(sourceLabel, reason).Inc()
				}
				e.logger.Debugf("Page %d card %d skipped: %v", page.Number, i+1, err)
				return
			}
			result.Records = append(result.Records, rec)
			if e.metrics != nil {
				e.metrics.RecordsKept.WithLabelValues(sourceLabel).Inc()
			}
			e.logger.Debugf("Extracted review from %s - Rating: %s", rec.ReviewerName, formatRating(rec.Rating))
		})
	})

	result.StopReason = stop.Reason
	result.StopPage = stop.Page
	if stop.Err != nil {
		e.logger.Warnf("Pagination stopped at page %d (%s): %v", stop.Page, stop.Reason, stop.Err)
	} else {
		e.logger.Infof("Pagination stopped at page %d (%s)", stop.Page, stop.Reason)
	}

	e.logger.Infof("%s extraction completed in %v: %d reviews", req.Source.DisplayName(), time.Since(startTime), len(result.Records))

	if len(result.Records) == 0 || e.writer == nil {
		return result, nil
	}
	batch := storage.Batch{Company: req.Company, Source: req.Source, Records: result.Records}
	if err := e.writer.Write(batch); err != nil {
		return result, fmt.Errorf("failed to write results: %w", err)
	}
	if p, ok := e.writer.(interface{ LastPath() string }); ok {
		result.OutputPath = p.LastPath()
	}
	if result.OutputPath != "" {
		e.logger.Infof("Saved %d reviews to %s", len(result.Records), result.OutputPath)
	}
	return result, nil
}

func formatRating(r *float64) string {
	if r == nil {
		return "n/a"
	}
	return fmt.Sprintf("%g", *r)
}
