package adapters

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"review-extractor/internal/types"
	"review-extractor/utils"
)

// Adapter is the per-source strategy: where reviews live and how to read them
type Adapter interface {
	Source() types.Source
	Profile() *Profile
	// Resolve maps a company name to a listing, verifying it exists
	Resolve(ctx context.Context, company string) (*Listing, error)
	// PageURL is the reviews page for a 1-based page number
	PageURL(listing *Listing, page int) string
}

// BaseAdapter holds what every source adapter shares
type BaseAdapter struct {
	config  *types.Config
	logger  types.Logger
	fetcher utils.Fetcher
}

// NewBaseAdapter creates a new base adapter bound to a session
func NewBaseAdapter(config *types.Config, fetcher utils.Fetcher, logger types.Logger) *BaseAdapter {
	return &BaseAdapter{config: config, logger: logger, fetcher: fetcher}
}

// New returns the adapter for source
func New(source types.Source, config *types.Config, fetcher utils.Fetcher, logger types.Logger) (Adapter, error) {
	switch source {
	case types.SourceG2:
		return NewG2Adapter(config, fetcher, logger), nil
	case types.SourceCapterra:
		return NewCapterraAdapter(config, fetcher, logger), nil
	case types.SourceTrustpilot:
		return NewTrustpilotAdapter(config, fetcher, logger), nil
	}
	return nil, &types.InputError{Field: "source", Msg: fmt.Sprintf("unsupported source %q", source)}
}

// Profiles lists the selector table of every source, for diagnostics
func Profiles() []*Profile {
	return []*Profile{g2Profile, capterraProfile, trustpilotProfile}
}

// Query is one alternative in a field cascade. The value is the first non-empty
// attribute in Attrs, falling back to the element text when Text is set.
type Query struct {
	Selector string
	Attrs    []string
	Text     bool
}

// TextQuery reads the trimmed text of the first match
func TextQuery(selector string) Query {
	return Query{Selector: selector, Text: true}
}

// Cascade is an ordered list of queries; the first non-empty result wins
type Cascade []Query

// First evaluates queries lazily against node and returns the first non-empty value
func (c Cascade) First(node *goquery.Selection) (string, bool) {
	for _, q := range c {
		if v := q.eval(node); v != "" {
			return v, true
		}
	}
	return "", false
}

func (q Query) eval(node *goquery.Selection) string {
	el := node.Find(q.Selector).First()
	if el.Length() == 0 {
		return ""
	}
	for _, attr := range q.Attrs {
		if v := strings.TrimSpace(el.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	if q.Text {
		return cleanText(el.Text())
	}
	return ""
}

// RatingQuery locates a rating element and normalizes it to a number.
// Attrs are read in order; a value is accepted when it parses as a number directly,
// or when Pattern matches it (capture group 1 is the number). LabelHint, when set,
// must appear in a label before Pattern is applied.
type RatingQuery struct {
	Selector  string
	Attrs     []string
	Pattern   *regexp.Regexp
	LabelHint string
}

// embeddedNumber finds the first decimal number in free text
var embeddedNumber = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

// RatingCascade is evaluated like Cascade: the first query yielding a number wins
type RatingCascade []RatingQuery

// Rating returns the normalized rating or nil when the card carries none
func (c RatingCascade) Rating(node *goquery.Selection) *float64 {
	for _, q := range c {
		el := node.Find(q.Selector).First()
		if el.Length() == 0 {
			continue
		}
		for _, attr := range q.Attrs {
			raw := strings.TrimSpace(el.AttrOr(attr, ""))
			if raw == "" {
				continue
			}
			if v := NormalizeRating(raw, q.Pattern, q.LabelHint); v != nil {
				return v
			}
		}
	}
	return nil
}

// NormalizeRating turns a raw rating value into a number.
// "3.5" → 3.5; "Rated 4 out of 5 stars" → 4; anything else → nil.
func NormalizeRating(raw string, pattern *regexp.Regexp, hint string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		if !finite(f) {
			return nil
		}
		return &f
	}
	if hint != "" && !strings.Contains(strings.ToLower(raw), hint) {
		return nil
	}
	if pattern == nil {
		pattern = embeddedNumber
	}
	m := pattern.FindStringSubmatch(raw)
	if len(m) < 2 {
		return nil
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil || !finite(f) {
		return nil
	}
	return &f
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Requirements are the per-source minimum fields for acceptance. Date is always required.
type Requirements struct {
	Body   bool
	Author bool
}

// Profile is the data-driven selector table for one source
type Profile struct {
	Source       types.Source
	Cards        []string
	Date         Cascade
	Title        Cascade
	Body         Cascade
	Author       Cascade
	Rating       RatingCascade
	LocaleDates  []string
	Require      Requirements
	ExtraDetails func(card *goquery.Selection) *types.TrustpilotDetails
}

// FindCards tries the container selectors in order and returns the first non-empty match
// together with the selector that produced it. An empty selection means an empty page.
func (p *Profile) FindCards(doc *goquery.Document) (*goquery.Selection, string) {
	for _, selector := range p.Cards {
		cards := doc.Find(selector)
		if cards.Length() > 0 {
			return cards, selector
		}
	}
	return doc.Selection.Slice(0, 0), ""
}

// ExtractCard maps one candidate to a record, or an *types.ExtractionSkip explaining why not.
// A panic inside a selector is converted to a skip so the page loop continues.
func (p *Profile) ExtractCard(card *goquery.Selection, window types.DateRange) (rec types.ReviewRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = types.Skip(types.SkipPanic, fmt.Sprint(r))
		}
	}()

	rawDate, ok := p.Date.First(card)
	if !ok {
		return rec, types.Skip(types.SkipMissingDate, "")
	}
	date, perr := utils.ParseReviewDate(rawDate, p.LocaleDates...)
	if perr != nil {
		return rec, types.Skip(types.SkipBadDate, rawDate)
	}
	if !window.Contains(date) {
		return rec, types.Skip(types.SkipOutOfRange, date.String())
	}

	rec = types.ReviewRecord{
		Date:   date,
		Source: p.Source.DisplayName(),
		Rating: p.Rating.Rating(card),
	}
	rec.Title, _ = p.Title.First(card)
	rec.Description, _ = p.Body.First(card)
	rec.ReviewerName, _ = p.Author.First(card)
	if p.ExtraDetails != nil {
		rec.TrustpilotDetails = p.ExtraDetails(card)
	}

	if p.Require.Body && rec.Description == "" {
		return types.ReviewRecord{}, types.Skip(types.SkipMissingBody, "")
	}
	if p.Require.Author && rec.ReviewerName == "" {
		return types.ReviewRecord{}, types.Skip(types.SkipMissingAuthor, "")
	}
	return rec, nil
}

// ParseHTML parses HTML content into a goquery document
func ParseHTML(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// DescribePage lists the distinct class and data-testid values on div/article elements,
// which is what a maintainer needs when every card selector misses.
func DescribePage(doc *goquery.Document, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	doc.Find("div, article").EachWithBreak(func(i int, s *goquery.Selection) bool {
		class := strings.Join(strings.Fields(s.AttrOr("class", "")), " ")
		testID := s.AttrOr("data-testid", "")
		if class == "" && testID == "" {
			return true
		}
		desc := fmt.Sprintf("%s classes=%q testid=%q", goquery.NodeName(s), class, testID)
		if !seen[desc] {
			seen[desc] = true
			out = append(out, desc)
		}
		return limit <= 0 || len(out) < limit
	})
	sort.Strings(out)
	return out
}

var innerWhitespace = regexp.MustCompile(`\s+`)

func cleanText(s string) string {
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(s, " "))
}
