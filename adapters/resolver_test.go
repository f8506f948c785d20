package adapters

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-extractor/internal/types"
	"review-extractor/utils"
)

// stubFetcher serves canned responses keyed by URL and records requests
type stubFetcher struct {
	pages    map[string]*utils.Response
	requests []string
}

func (s *stubFetcher) Get(ctx context.Context, url string) (*utils.Response, error) {
	s.requests = append(s.requests, url)
	if resp, ok := s.pages[url]; ok {
		return resp, nil
	}
	return nil, &types.TransportError{URL: url, Err: errors.New("connection refused")}
}

func page(status int, body string) *utils.Response {
	return &utils.Response{StatusCode: status, Body: []byte(body)}
}

func testConfig() *types.Config {
	config := types.DefaultConfig()
	config.Rand = rand.New(rand.NewSource(1))
	config.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	config.BaseURLs = map[types.Source]string{
		types.SourceG2:         "http://g2.test",
		types.SourceCapterra:   "http://capterra.test",
		types.SourceTrustpilot: "http://trustpilot.test",
	}
	return config
}

func asResolutionError(t *testing.T, err error) *types.ResolutionError {
	t.Helper()
	var resErr *types.ResolutionError
	require.True(t, errors.As(err, &resErr), "expected a resolution error, got %v", err)
	return resErr
}

func TestSlugVariants(t *testing.T) {
	assert.Equal(t, []string{
		"acme corp",
		"acme-corp",
		"acme_corp",
		"acme corp-technologies",
		"acme corp-inc",
	}, SlugVariants("Acme Corp"))

	assert.Equal(t, []string{"slack", "slack-technologies", "slack-inc"}, SlugVariants("Slack"))
}

func TestTrustpilotSuggestions(t *testing.T) {
	assert.Equal(t, "slack.com", TrustpilotSuggestions("slack")[0])
	assert.NotContains(t, TrustpilotSuggestions("slack.com"), "slack.com.com")
}

func TestMatchCandidate_ContainmentBeforeFallback(t *testing.T) {
	candidates := []SearchCandidate{
		{Name: "slack", URL: "/p/135003/Slack/"},
		{Name: "slack technologies", URL: "/p/1/Slack-Tech/"},
		{Name: "slacker radio", URL: "/p/2/Slacker/"},
	}
	best, matched, ok := MatchCandidate("slack", candidates)
	require.True(t, ok)
	assert.True(t, matched)
	assert.Equal(t, "slack", best.Name)
	assert.Greater(t, candidates[0].Similarity, candidates[2].Similarity)
}

func TestMatchCandidate_QueryContainsName(t *testing.T) {
	candidates := []SearchCandidate{
		{Name: "notion calendar", URL: "/p/9/Cal/"},
		{Name: "notion", URL: "/p/10/Notion/"},
	}
	best, matched, _ := MatchCandidate("Notion Labs", candidates)
	assert.True(t, matched)
	assert.Equal(t, "notion", best.Name)
}

func TestMatchCandidate_FallsBackToFirst(t *testing.T) {
	candidates := []SearchCandidate{{Name: "alpha"}, {Name: "beta"}}
	best, matched, ok := MatchCandidate("gamma", candidates)
	assert.True(t, ok)
	assert.False(t, matched)
	assert.Equal(t, "alpha", best.Name)

	_, _, ok = MatchCandidate("gamma", nil)
	assert.False(t, ok)
}

func TestParseSearchResults(t *testing.T) {
	doc := mustDoc(t, `
<div data-testid="search-product-card"><a data-testid="product-name" href="/p/135003/Slack/"> Slack </a></div>
<div data-testid="search-product-card"><span>no name</span></div>
<div data-testid="search-product-card"><a data-testid="product-name">No link</a></div>
<div data-testid="search-product-card"><a data-testid="product-name" href="/p/2/Slacker/">Slacker Radio</a></div>`)

	got := ParseSearchResults(doc, capterraSearchCard, capterraSearchName)
	assert.Equal(t, []SearchCandidate{
		{Name: "slack", URL: "/p/135003/Slack/"},
		{Name: "slacker radio", URL: "/p/2/Slacker/"},
	}, got)
}

func TestParseProductURL(t *testing.T) {
	id, slug, err := ParseProductURL("https://www.capterra.com/p/135003/Slack/")
	require.NoError(t, err)
	assert.Equal(t, "135003", id)
	assert.Equal(t, "Slack", slug)

	_, _, err = ParseProductURL("https://www.capterra.com/software/135003")
	assert.Error(t, err)
}

func TestG2Adapter_Resolve(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]*utils.Response{
		"http://g2.test/products/slack": page(http.StatusOK, "<html></html>"),
	}}
	g := NewG2Adapter(testConfig(), fetcher, logrus.New())

	listing, err := g.Resolve(context.Background(), "slack")
	require.NoError(t, err)
	assert.Equal(t, "http://g2.test/products/slack", listing.URL)
	assert.Equal(t, "http://g2.test/products/slack/reviews?page=3", g.PageURL(listing, 3))
}

func TestG2Adapter_Resolve_NotFoundSuggestsVariants(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]*utils.Response{
		"http://g2.test/products/Acme%20Corp": page(http.StatusNotFound, ""),
	}}
	g := NewG2Adapter(testConfig(), fetcher, logrus.New())

	_, err := g.Resolve(context.Background(), "Acme Corp")
	resErr := asResolutionError(t, err)
	assert.Equal(t, types.ResolutionNotFound, resErr.Kind)
	assert.Contains(t, resErr.Suggestions, "acme-corp")
	assert.Equal(t, 1, types.ExitCode(err))
}

func TestG2Adapter_Resolve_Blocked(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]*utils.Response{
		"http://g2.test/products/slack": page(http.StatusForbidden, ""),
	}}
	_, err := NewG2Adapter(testConfig(), fetcher, logrus.New()).Resolve(context.Background(), "slack")
	assert.Equal(t, types.ResolutionBlocked, asResolutionError(t, err).Kind)
}

func TestG2Adapter_Resolve_OtherStatusesProceed(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]*utils.Response{
		"http://g2.test/products/slack": page(http.StatusServiceUnavailable, ""),
	}}
	_, err := NewG2Adapter(testConfig(), fetcher, logrus.New()).Resolve(context.Background(), "slack")
	assert.NoError(t, err)
}

func TestG2Adapter_Resolve_TransportFailure(t *testing.T) {
	_, err := NewG2Adapter(testConfig(), &stubFetcher{}, logrus.New()).Resolve(context.Background(), "slack")
	resErr := asResolutionError(t, err)
	assert.Equal(t, types.ResolutionTransport, resErr.Kind)

	var transportErr *types.TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestTrustpilotAdapter_Resolve(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]*utils.Response{
		"http://trustpilot.test/review/slack.com": page(http.StatusOK, ""),
		"http://trustpilot.test/review/slack":     page(http.StatusNotFound, ""),
	}}
	tp := NewTrustpilotAdapter(testConfig(), fetcher, logrus.New())

	listing, err := tp.Resolve(context.Background(), "slack.com")
	require.NoError(t, err)
	assert.Equal(t, "http://trustpilot.test/review/slack.com?page=2", tp.PageURL(listing, 2))

	_, err = tp.Resolve(context.Background(), "slack")
	resErr := asResolutionError(t, err)
	assert.Equal(t, types.ResolutionNotFound, resErr.Kind)
	assert.Equal(t, "slack.com", resErr.Suggestions[0])
}

const capterraSearchPage = `
<div data-testid="search-product-card"><a data-testid="product-name" href="/p/1/Slack-Tech/">Slack Technologies</a></div>
<div data-testid="search-product-card"><a data-testid="product-name" href="/p/135003/Slack/">Slack</a></div>`

func TestCapterraAdapter_Resolve(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]*utils.Response{
		"http://capterra.test/search/?query=slack": page(http.StatusOK, capterraSearchPage),
		"http://capterra.test/p/1/Slack-Tech/":     page(http.StatusOK, ""),
		"http://capterra.test/p/135003/Slack/":     page(http.StatusOK, ""),
	}}
	config := testConfig()
	var slept []time.Duration
	config.Sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	c := NewCapterraAdapter(config, fetcher, logrus.New())

	listing, err := c.Resolve(context.Background(), "slack")
	require.NoError(t, err)
	// first result contains the query, so it wins over the exact name further down
	assert.Equal(t, "1", listing.ProductID)
	assert.Equal(t, "Slack-Tech", listing.Slug)
	assert.Equal(t, "http://capterra.test/p/1/Slack-Tech/reviews/?page=2", c.PageURL(listing, 2))

	require.Len(t, slept, 1)
	assert.GreaterOrEqual(t, slept[0], 2*time.Second)
	assert.LessOrEqual(t, slept[0], 4*time.Second)
	assert.Equal(t, []string{"http://capterra.test/search/?query=slack", "http://capterra.test/p/1/Slack-Tech/"}, fetcher.requests)
}

func TestCapterraAdapter_Resolve_Failures(t *testing.T) {
	cases := []struct {
		name  string
		pages map[string]*utils.Response
		kind  types.ResolutionKind
	}{
		{
			name:  "no cards",
			pages: map[string]*utils.Response{"http://capterra.test/search/?query=slack": page(http.StatusOK, "<p>nothing</p>")},
			kind:  types.ResolutionUnresolvable,
		},
		{
			name:  "search blocked",
			pages: map[string]*utils.Response{"http://capterra.test/search/?query=slack": page(http.StatusForbidden, "")},
			kind:  types.ResolutionBlocked,
		},
		{
			name: "url without product id",
			pages: map[string]*utils.Response{"http://capterra.test/search/?query=slack": page(http.StatusOK,
				`<div data-testid="search-product-card"><a data-testid="product-name" href="/software/slack">Slack</a></div>`)},
			kind: types.ResolutionUnresolvable,
		},
		{
			name: "product page missing",
			pages: map[string]*utils.Response{
				"http://capterra.test/search/?query=slack": page(http.StatusOK, capterraSearchPage),
				"http://capterra.test/p/1/Slack-Tech/":     page(http.StatusNotFound, ""),
			},
			kind: types.ResolutionUnresolvable,
		},
		{
			name:  "search unreachable",
			pages: map[string]*utils.Response{},
			kind:  types.ResolutionTransport,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCapterraAdapter(testConfig(), &stubFetcher{pages: tc.pages}, logrus.New())
			_, err := c.Resolve(context.Background(), "slack")
			assert.Equal(t, tc.kind, asResolutionError(t, err).Kind)
			assert.Equal(t, 1, types.ExitCode(err))
		})
	}
}

func TestNew(t *testing.T) {
	for _, s := range types.Sources {
		a, err := New(s, testConfig(), &stubFetcher{}, logrus.New())
		require.NoError(t, err)
		assert.Equal(t, s, a.Source())
		assert.Equal(t, s, a.Profile().Source)
	}

	_, err := New("yelp", testConfig(), &stubFetcher{}, logrus.New())
	var inputErr *types.InputError
	assert.True(t, errors.As(err, &inputErr))
}
