package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-extractor/internal/metrics"
	"review-extractor/internal/types"
	"review-extractor/storage"
)

func reviewCard(date, title, author string) string {
	return fmt.Sprintf(`<div class="review-card">
  <time datetime="%s">%s</time>
  <h3 class="review-title">%s</h3>
  <div class="review-body">Body of %s</div>
  <span class="reviewer-name">%s</span>
  <span class="star-rating" data-rating="4"></span>
</div>`, date, date, title, title, author)
}

// g2Site serves a product page and three review pages: two with cards, one empty
func g2Site(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/products/acme", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>Acme</html>"))
	})
	mux.HandleFunc("/products/acme/reviews", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, reviewCard("2025-01-05", "First", "Ana")+reviewCard("2024-12-31", "Too old", "Old")+reviewCard("2025-01-20T08:00:00Z", "Second", "Bo"))
		case "2":
			fmt.Fprint(w, reviewCard("2025-02-01", "Too new", "New")+reviewCard("2025-01-31", "Third", "Cy")+reviewCard("2025-01-01", "Fourth", "Di"))
		default:
			fmt.Fprint(w, `<html><body><div class="empty-state">No reviews</div></body></html>`)
		}
	})
	return httptest.NewServer(mux)
}

func siteConfig(baseURL string) *types.Config {
	config := testConfig()
	config.Timeout = 5 * time.Second
	config.BaseURLs = map[types.Source]string{types.SourceG2: baseURL}
	return config
}

func rating(v float64) *float64 { return &v }

func g2Record(date types.Date, title, author string) types.ReviewRecord {
	return types.ReviewRecord{
		Title:        title,
		Description:  "Body of " + title,
		Date:         date,
		ReviewerName: author,
		Rating:       rating(4),
		Source:       "G2",
	}
}

func TestExtractor_Run_EndToEnd(t *testing.T) {
	server := g2Site(t)
	defer server.Close()

	dir := t.TempDir()
	writer, err := storage.NewJSONWriter(dir)
	require.NoError(t, err)
	m := metrics.New()

	req, err := types.NewRequest("acme", "2025-01-01", "2025-01-31", "g2", nil)
	require.NoError(t, err)

	result, err := NewExtractor(siteConfig(server.URL), logrus.New(), m, writer).Run(context.Background(), req)
	require.NoError(t, err)

	want := []types.ReviewRecord{
		g2Record(types.Date{Year: 2025, Month: time.January, Day: 5}, "First", "Ana"),
		g2Record(types.Date{Year: 2025, Month: time.January, Day: 20}, "Second", "Bo"),
		g2Record(types.Date{Year: 2025, Month: time.January, Day: 31}, "Third", "Cy"),
		g2Record(types.Date{Year: 2025, Month: time.January, Day: 1}, "Fourth", "Di"),
	}
	if diff := cmp.Diff(want, result.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, types.StopEmptyPage, result.StopReason)
	assert.Equal(t, 3, result.StopPage)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, map[string]int{"out_of_range": 2}, result.Skips)

	assert.Equal(t, writer.Path("acme", "g2"), result.OutputPath)
	data, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	var written []types.ReviewRecord
	require.NoError(t, json.Unmarshal(data, &written))
	if diff := cmp.Diff(want, written); diff != "" {
		t.Errorf("file mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 4.0, testutil.ToFloat64(m.RecordsKept.WithLabelValues("g2")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CandidateSkips.WithLabelValues("g2", "out_of_range")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PaginationStop.WithLabelValues("g2", "empty_page")))
}

func TestExtractor_Run_NoRecordsWritesNothing(t *testing.T) {
	server := g2Site(t)
	defer server.Close()

	dir := t.TempDir()
	writer, err := storage.NewJSONWriter(dir)
	require.NoError(t, err)

	req, err := types.NewRequest("acme", "2023-01-01", "2023-12-31", "g2", nil)
	require.NoError(t, err)

	result, err := NewExtractor(siteConfig(server.URL), logrus.New(), nil, writer).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.NotNil(t, result.Records)
	assert.Empty(t, result.OutputPath)

	_, err = os.Stat(writer.Path("acme", "g2"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractor_Run_NotFoundIsFatal(t *testing.T) {
	server := g2Site(t)
	defer server.Close()

	req, err := types.NewRequest("missing co", "2025-01-01", "2025-01-31", "g2", nil)
	require.NoError(t, err)

	result, err := NewExtractor(siteConfig(server.URL), logrus.New(), nil, nil).Run(context.Background(), req)
	var resErr *types.ResolutionError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, types.ResolutionNotFound, resErr.Kind)
	assert.Contains(t, resErr.Suggestions, "missing-co")
	assert.Equal(t, 1, types.ExitCode(err))
	assert.Empty(t, result.Records)
}

func TestExtractor_Run_MidPaginationFailureKeepsRecords(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/products/acme", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/products/acme/reviews", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, reviewCard("2025-01-05", "First", "Ana"))
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	req, err := types.NewRequest("acme", "2025-01-01", "2025-01-31", "g2", nil)
	require.NoError(t, err)

	result, err := NewExtractor(siteConfig(server.URL), logrus.New(), nil, nil).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
	assert.Equal(t, types.StopNonOKStatus, result.StopReason)
	assert.Equal(t, 2, result.StopPage)
}

func TestExtractor_Run_DeadProxiesFallBackToDirect(t *testing.T) {
	server := g2Site(t)
	defer server.Close()

	config := siteConfig(server.URL)
	config.ProbeTimeout = time.Second
	req, err := types.NewRequest("acme", "2025-01-01", "2025-01-31", "g2", []types.ProxyEndpoint{"http://127.0.0.1:1"})
	require.NoError(t, err)

	m := metrics.New()
	result, err := NewExtractor(config, logrus.New(), m, nil).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, result.Records, 4)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProxyProbes.WithLabelValues("dead")))
}

func trustpilotCard(date, body, author string) string {
	return fmt.Sprintf(`<article data-service-review-card-paper="true">
  <time datetime="%sT10:00:00.000Z">Jan</time>
  <p data-service-review-text-typography="true">%s</p>
  <span data-consumer-name-typography="true">%s</span>
</article>`, date, body, author)
}

func TestExtractor_Run_AllCandidatesRejectedStillPaginates(t *testing.T) {
	var (
		mu    sync.Mutex
		pages []string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/review/acme.com", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "" {
			return
		}
		mu.Lock()
		pages = append(pages, page)
		mu.Unlock()
		switch page {
		case "1", "2":
			fmt.Fprint(w, trustpilotCard("2025-01-10", "", "Ana")+trustpilotCard("2025-01-11", "Great tool", ""))
		default:
			fmt.Fprint(w, `<html><body><main>nothing</main></body></html>`)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	config := siteConfig(server.URL)
	config.BaseURLs = map[types.Source]string{types.SourceTrustpilot: server.URL}
	dir := t.TempDir()
	writer, err := storage.NewJSONWriter(dir)
	require.NoError(t, err)

	req, err := types.NewRequest("acme.com", "2025-01-01", "2025-01-31", "trustpilot", nil)
	require.NoError(t, err)

	result, err := NewExtractor(config, logrus.New(), nil, writer).Run(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Equal(t, map[string]int{"missing_body": 2, "missing_author": 2}, result.Skips)
	assert.Equal(t, types.StopEmptyPage, result.StopReason)
	assert.Equal(t, 3, result.StopPage)
	mu.Lock()
	assert.Equal(t, []string{"1", "2", "3"}, pages)
	mu.Unlock()
	assert.Empty(t, result.OutputPath)

	_, err = os.Stat(writer.Path("acme.com", "trustpilot"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractor_Run_NonFiniteRatingIsNull(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/products/acme", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/products/acme/reviews", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			return
		}
		fmt.Fprint(w, `<div class="review-card">
  <time datetime="2025-01-05"></time>
  <div class="review-body">Body</div>
  <span class="reviewer-name">Ana</span>
  <span class="star-rating" data-rating="NaN"></span>
</div>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	writer, err := storage.NewJSONWriter(t.TempDir())
	require.NoError(t, err)
	req, err := types.NewRequest("acme", "2025-01-01", "2025-01-31", "g2", nil)
	require.NoError(t, err)

	result, err := NewExtractor(siteConfig(server.URL), logrus.New(), nil, writer).Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Nil(t, result.Records[0].Rating)

	data, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rating": null`)
}
