package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wpatrik14/newsaggregator/internal/model"
	"github.com/wpatrik14/newsaggregator/internal/pipeline"
)

type fakeFeed struct {
	page    pipeline.FeedPage
	lastReq pipeline.FeedRequest
}

func (f *fakeFeed) List(_ context.Context, req pipeline.FeedRequest) pipeline.FeedPage {
	f.lastReq = req
	return f.page
}

type fakeSubmitter struct {
	result    pipeline.SubmitResult
	err       error
	submitted []model.Article
}

func (f *fakeSubmitter) SubmitSync(_ context.Context, article *model.Article) (pipeline.SubmitResult, error) {
	f.submitted = append(f.submitted, *article)
	if f.err != nil {
		return f.result, f.err
	}
	if f.result.Article.ID == "" {
		return pipeline.SubmitResult{Article: *article}, nil
	}
	return f.result, nil
}

type fakeArticleStore struct {
	articles     map[string]model.Article
	deleted      []string
	deleteAllN   int
	cleanupN     int
	cleanupMaxAg time.Duration
}

func (f *fakeArticleStore) GetByID(_ context.Context, id string) *model.Article {
	if article, ok := f.articles[id]; ok {
		return &article
	}
	return nil
}

func (f *fakeArticleStore) DeleteByID(_ context.Context, id string) {
	f.deleted = append(f.deleted, id)
}

func (f *fakeArticleStore) DeleteAll(context.Context) int { return f.deleteAllN }

func (f *fakeArticleStore) Cleanup(_ context.Context, maxAge time.Duration) int {
	f.cleanupMaxAg = maxAge
	return f.cleanupN
}

type serverFixture struct {
	server    *Server
	feed      *fakeFeed
	submitter *fakeSubmitter
	store     *fakeArticleStore
}

func newServerFixture() *serverFixture {
	feed := &fakeFeed{}
	submitter := &fakeSubmitter{}
	store := &fakeArticleStore{articles: map[string]model.Article{}}
	server := NewServer(feed, submitter, store, nil, zerolog.Nop(), Options{ArticleTTL: 6 * time.Hour})
	return &serverFixture{server: server, feed: feed, submitter: submitter, store: store}
}

func (f *serverFixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echoHeaderContentType, "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.newEcho().ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func decodeJSend(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v: %s", err, rec.Body.String())
	}
	return resp
}

func TestHandleListArticlesMapsQueryParams(t *testing.T) {
	t.Parallel()

	f := newServerFixture()
	f.feed.page = pipeline.FeedPage{
		Articles:      []model.Article{{ID: "a1", Title: "Story", Analyzed: true}},
		TotalArticles: 1,
	}

	rec := f.do(t, http.MethodGet, "/api/v1/articles?country=gb&category=politics&page=2&page_size=10&refresh=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	req := f.feed.lastReq
	if req.Country != "gb" || req.Category != "politics" || req.Page != 2 || req.PageSize != 10 || !req.Refresh {
		t.Fatalf("unexpected feed request %+v", req)
	}

	resp := decodeJSend(t, rec)
	if resp["status"] != "success" {
		t.Fatalf("unexpected response %v", resp)
	}
}

func TestHandleListArticlesRejectsBadParams(t *testing.T) {
	t.Parallel()

	f := newServerFixture()

	rec := f.do(t, http.MethodGet, "/api/v1/articles?page=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/articles?category=gossip", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400 for unknown category", rec.Code)
	}
}

func TestHandleGetArticle(t *testing.T) {
	t.Parallel()

	f := newServerFixture()
	f.store.articles["a1"] = model.Article{ID: "a1", Title: "Known story", Analyzed: true}

	rec := f.do(t, http.MethodGet, "/api/v1/articles/a1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/v1/articles/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestHandleSubmitArticle(t *testing.T) {
	t.Parallel()

	f := newServerFixture()

	rec := f.do(t, http.MethodPost, "/api/v1/articles",
		`{"title":"Submitted headline","content":"Body text.","language":"en","source":"Reader"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.submitter.submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(f.submitter.submitted))
	}
	submitted := f.submitter.submitted[0]
	if submitted.ID == "" {
		t.Fatal("submission must receive a generated id")
	}
	if submitted.Title != "Submitted headline" || submitted.Source != "Reader" {
		t.Fatalf("unexpected submission %+v", submitted)
	}
}

func TestHandleSubmitArticleBackfillsContentFromURL(t *testing.T) {
	t.Parallel()

	f := newServerFixture()
	f.server.fetchText = func(_ context.Context, pageURL, _ string) (string, error) {
		if pageURL != "https://example.com/story" {
			t.Errorf("unexpected backfill URL %q", pageURL)
		}
		return "Extracted page text.", nil
	}

	rec := f.do(t, http.MethodPost, "/api/v1/articles",
		`{"title":"URL-only submission","url":"https://example.com/story","language":"en"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if got := f.submitter.submitted[0].Content; got != "Extracted page text." {
		t.Fatalf("content not backfilled: %q", got)
	}
}

func TestHandleSubmitArticleDuplicate(t *testing.T) {
	t.Parallel()

	f := newServerFixture()
	f.submitter.result = pipeline.SubmitResult{
		Article:   model.Article{ID: "existing", Title: "Existing coverage", Analyzed: true},
		Duplicate: true,
	}

	rec := f.do(t, http.MethodPost, "/api/v1/articles",
		`{"title":"Duplicate submission","language":"en"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200 for duplicate", rec.Code)
	}

	resp := decodeJSend(t, rec)
	data := resp["data"].(map[string]any)
	if data["duplicate"] != true {
		t.Fatalf("duplicate flag missing: %v", data)
	}
}

func TestHandleSubmitArticleRejectsInvalidPayload(t *testing.T) {
	t.Parallel()

	f := newServerFixture()

	rec := f.do(t, http.MethodPost, "/api/v1/articles", `{"content":"no title"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
	if len(f.submitter.submitted) != 0 {
		t.Fatal("invalid payload must not reach the pipeline")
	}
}

func TestHandleSubmitArticleStoreFailure(t *testing.T) {
	t.Parallel()

	f := newServerFixture()
	f.submitter.err = errors.New("blob store unavailable")

	rec := f.do(t, http.MethodPost, "/api/v1/articles", `{"title":"Headline","language":"en"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", rec.Code)
	}
}

func TestHandleSubmitArticleConflictWhileURLInFlight(t *testing.T) {
	t.Parallel()

	f := newServerFixture()
	f.submitter.err = pipeline.ErrAlreadyInFlight

	rec := f.do(t, http.MethodPost, "/api/v1/articles",
		`{"title":"Racing submission","url":"https://example.com/story","language":"en"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}

	resp := decodeJSend(t, rec)
	if resp["status"] != "fail" {
		t.Fatalf("unexpected response %v", resp)
	}
}

func TestHandleSubmitArticleAnalysisFailure(t *testing.T) {
	t.Parallel()

	f := newServerFixture()
	f.submitter.result = pipeline.SubmitResult{
		Article: model.Article{ID: "a1", Title: "Stored headline"},
		Pending: true,
	}
	f.submitter.err = errors.New("model overloaded")

	rec := f.do(t, http.MethodPost, "/api/v1/articles", `{"title":"Stored headline","language":"en"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500 when analysis fails", rec.Code)
	}

	resp := decodeJSend(t, rec)
	if resp["message"] != "Article stored but analysis failed" {
		t.Fatalf("unexpected response %v", resp)
	}
}

func TestMaintenanceEndpoints(t *testing.T) {
	t.Parallel()

	f := newServerFixture()
	f.store.deleteAllN = 7
	f.store.cleanupN = 3

	rec := f.do(t, http.MethodDelete, "/api/v1/articles/a1", "")
	if rec.Code != http.StatusOK || len(f.store.deleted) != 1 || f.store.deleted[0] != "a1" {
		t.Fatalf("delete by id failed: %d %v", rec.Code, f.store.deleted)
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/articles", "")
	resp := decodeJSend(t, rec)
	data := resp["data"].(map[string]any)
	if data["deleted_count"] != float64(7) {
		t.Fatalf("unexpected delete-all response %v", data)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/cleanup", "")
	resp = decodeJSend(t, rec)
	data = resp["data"].(map[string]any)
	if data["deleted_count"] != float64(3) {
		t.Fatalf("unexpected cleanup response %v", data)
	}
	if f.store.cleanupMaxAg != 6*time.Hour {
		t.Fatalf("cleanup TTL not passed through: %v", f.store.cleanupMaxAg)
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	f := newServerFixture()
	rec := f.do(t, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	resp := decodeJSend(t, rec)
	data := resp["data"].(map[string]any)
	if data["service"] != "newsaggregator" {
		t.Fatalf("unexpected health payload %v", data)
	}
}
