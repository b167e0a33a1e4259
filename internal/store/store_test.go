package store

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wpatrik14/newsaggregator/internal/blob"
	"github.com/wpatrik14/newsaggregator/internal/globaltime"
	"github.com/wpatrik14/newsaggregator/internal/model"
)

// memBlob is an in-memory blob store keyed by object path. URLs use a mem://
// scheme so Fetch can map back to paths.
type memBlob struct {
	mu       sync.Mutex
	objects  map[string][]byte
	order    []string
	listErr  error
	fetchErr map[string]error
}

func newMemBlob() *memBlob {
	return &memBlob{
		objects:  make(map[string][]byte),
		fetchErr: make(map[string]error),
	}
}

func (m *memBlob) urlFor(path string) string { return "mem://" + path }

func (m *memBlob) Put(_ context.Context, path string, body []byte, _ blob.PutOptions) (blob.PutResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objects[path]; !exists {
		m.order = append(m.order, path)
	}
	m.objects[path] = append([]byte(nil), body...)
	return blob.PutResult{URL: m.urlFor(path)}, nil
}

func (m *memBlob) List(_ context.Context, prefix string, limit int, cursor string) (blob.ListPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return blob.ListPage{}, m.listErr
	}

	matching := make([]string, 0, len(m.order))
	for _, path := range m.order {
		if strings.HasPrefix(path, prefix) {
			matching = append(matching, path)
		}
	}

	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(cursor)
	}
	if start > len(matching) {
		start = len(matching)
	}
	end := start + limit
	if limit <= 0 || end > len(matching) {
		end = len(matching)
	}

	page := blob.ListPage{}
	for _, path := range matching[start:end] {
		page.Items = append(page.Items, blob.Item{Path: path, URL: m.urlFor(path)})
	}
	if end < len(matching) {
		page.HasMore = true
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func (m *memBlob) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objects[path]; !exists {
		return blob.ErrNotFound
	}
	delete(m.objects, path)
	for i, p := range m.order {
		if p == path {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memBlob) Fetch(_ context.Context, contentURL string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path := strings.TrimPrefix(contentURL, "mem://")
	if err, ok := m.fetchErr[path]; ok {
		return nil, err
	}
	body, exists := m.objects[path]
	if !exists {
		return nil, blob.ErrNotFound
	}
	return append([]byte(nil), body...), nil
}

func newTestStore(api BlobAPI) *Store {
	return New(api, zerolog.Nop(), Options{RequestInterval: time.Nanosecond})
}

func mustWrite(t *testing.T, s *Store, article model.Article) WriteOutcome {
	t.Helper()
	outcome, err := s.Write(context.Background(), &article)
	if err != nil {
		t.Fatalf("write %s: %v", article.ID, err)
	}
	return outcome
}

func TestWriteStampsStoredAt(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	globaltime.SetMockTime(now)
	t.Cleanup(globaltime.ResetTime)

	api := newMemBlob()
	s := newTestStore(api)

	outcome := mustWrite(t, s, model.Article{
		ID:    "a1",
		Title: "Parliament approves the new budget framework",
		URL:   "https://example.com/budget",
	})
	if outcome.Duplicate {
		t.Fatal("first write reported as duplicate")
	}
	if outcome.Locator != "mem://articles/a1.json" {
		t.Fatalf("unexpected locator %q", outcome.Locator)
	}

	var stored model.Article
	if err := json.Unmarshal(api.objects["articles/a1.json"], &stored); err != nil {
		t.Fatalf("unmarshal stored body: %v", err)
	}
	if !stored.StoredAt.Equal(now) {
		t.Fatalf("storedAt = %v, want %v", stored.StoredAt, now)
	}
}

func TestWriteDetectsNormalizedURLDuplicate(t *testing.T) {
	api := newMemBlob()
	s := newTestStore(api)

	mustWrite(t, s, model.Article{
		ID:     "a1",
		Title:  "Central bank raises interest rates again",
		URL:    "https://example.com/rates?utm_source=newsletter",
		Source: "Example News",
	})

	outcome := mustWrite(t, s, model.Article{
		ID:     "a2",
		Title:  "Rates decision",
		URL:    "http://www.example.com/rates/",
		Source: "Another Outlet",
	})
	if !outcome.Duplicate {
		t.Fatal("expected normalized URL duplicate")
	}
	if outcome.Existing == nil || outcome.Existing.Article.ID != "a1" {
		t.Fatalf("unexpected existing record %+v", outcome.Existing)
	}
	if _, exists := api.objects["articles/a2.json"]; exists {
		t.Fatal("duplicate candidate was written anyway")
	}
}

func TestWriteDetectsFuzzyTitleDuplicate(t *testing.T) {
	api := newMemBlob()
	s := newTestStore(api)

	mustWrite(t, s, model.Article{
		ID:     "a1",
		Title:  "Scientists Discover Cure For Rare Disease",
		URL:    "https://example.com/cure-full",
		Source: "Example News",
	})

	outcome := mustWrite(t, s, model.Article{
		ID:     "a2",
		Title:  "Scientists discover cure",
		URL:    "https://example.com/cure-short",
		Source: "example news",
	})
	if !outcome.Duplicate {
		t.Fatal("expected fuzzy title duplicate from same source")
	}

	// Same containment relation, different source: not a duplicate.
	outcome = mustWrite(t, s, model.Article{
		ID:     "a3",
		Title:  "Scientists discover cure",
		URL:    "https://other.com/cure",
		Source: "Other Wire",
	})
	if outcome.Duplicate {
		t.Fatal("cross-source title match must not count as duplicate")
	}
}

func TestWriteSkipsDuplicateScanForAnalyzedUpdates(t *testing.T) {
	api := newMemBlob()
	s := newTestStore(api)

	mustWrite(t, s, model.Article{
		ID:    "a1",
		Title: "Election results trigger coalition talks",
		URL:   "https://example.com/election",
	})

	// An enrichment update carries the same URL but must overwrite, not be
	// flagged as its own duplicate.
	outcome := mustWrite(t, s, model.Article{
		ID:       "a1",
		Title:    "Election results trigger coalition talks",
		URL:      "https://example.com/election",
		Analyzed: true,
	})
	if outcome.Duplicate {
		t.Fatal("analyzed update reported as duplicate")
	}

	var stored model.Article
	if err := json.Unmarshal(api.objects["articles/a1.json"], &stored); err != nil {
		t.Fatalf("unmarshal stored body: %v", err)
	}
	if !stored.Analyzed {
		t.Fatal("analyzed flag lost on update")
	}
}

func TestWriteRateLimitedScanReportsNoDuplicate(t *testing.T) {
	api := newMemBlob()
	mustWrite(t, newTestStore(api), model.Article{
		ID:    "a1",
		Title: "Storm warnings issued across the coast",
		URL:   "https://example.com/storm",
	})

	api.listErr = blob.ErrRateLimited
	s := newTestStore(api)

	outcome, err := s.Write(context.Background(), &model.Article{
		ID:    "a2",
		Title: "Storm warnings issued across the coast",
		URL:   "https://example.com/storm",
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if outcome.Duplicate {
		t.Fatal("rate-limited scan must report no duplicate")
	}
	api.listErr = nil
	if _, exists := api.objects["articles/a2.json"]; !exists {
		t.Fatal("article not written after aborted scan")
	}
}

func TestGetByIDSelfHealsAnalyzedFlag(t *testing.T) {
	api := newMemBlob()
	s := newTestStore(api)

	// A record whose enrichment write raced the flag update: metrics are
	// populated but analyzed is still false.
	body, _ := json.Marshal(model.Article{
		ID:      "a1",
		Title:   "Markets rally after surprise announcement",
		URL:     "https://example.com/rally",
		Metrics: model.Metrics{ClickbaitScore: 40, SentimentTone: "Positive"},
	})
	api.objects["articles/a1.json"] = body
	api.order = append(api.order, "articles/a1.json")

	article := s.GetByID(context.Background(), "a1")
	if article == nil {
		t.Fatal("expected article")
	}
	if !article.Analyzed {
		t.Fatal("analyzed flag not self-healed on read")
	}
}

func TestGetByIDNeverErrors(t *testing.T) {
	api := newMemBlob()
	s := newTestStore(api)

	if got := s.GetByID(context.Background(), "missing"); got != nil {
		t.Fatalf("missing id: got %+v, want nil", got)
	}

	api.objects["articles/bad.json"] = []byte("{not json")
	api.order = append(api.order, "articles/bad.json")
	if got := s.GetByID(context.Background(), "bad"); got != nil {
		t.Fatalf("unparseable body: got %+v, want nil", got)
	}

	api.fetchErr["articles/bad.json"] = blob.ErrRateLimited
	if got := s.GetByID(context.Background(), "bad"); got != nil {
		t.Fatalf("fetch failure: got %+v, want nil", got)
	}
}

func TestListSkipsUnreadableEntries(t *testing.T) {
	api := newMemBlob()
	s := newTestStore(api)

	mustWrite(t, s, model.Article{
		ID:    "a1",
		Title: "City council votes on transit expansion",
		URL:   "https://example.com/transit",
	})
	api.objects["articles/broken.json"] = []byte("???")
	api.order = append(api.order, "articles/broken.json")
	mustWrite(t, s, model.Article{
		ID:    "a3",
		Title: "New museum wing opens to the public",
		URL:   "https://example.com/museum",
	})

	articles := s.List(context.Background(), 10)
	if len(articles) != 2 {
		t.Fatalf("expected 2 readable articles, got %d", len(articles))
	}
}

func TestCleanupDeletesOnlyExpiredEntries(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	api := newMemBlob()
	s := newTestStore(api)
	t.Cleanup(globaltime.ResetTime)

	globaltime.SetMockTime(now.Add(-2 * time.Hour))
	mustWrite(t, s, model.Article{
		ID:    "old",
		Title: "Yesterday's headline nobody remembers",
		URL:   "https://example.com/old",
	})

	globaltime.SetMockTime(now.Add(-30 * time.Minute))
	mustWrite(t, s, model.Article{
		ID:    "fresh",
		Title: "Breaking development in ongoing story",
		URL:   "https://example.com/fresh",
	})

	// Legacy record without a storedAt timestamp must be retained.
	body, _ := json.Marshal(model.Article{
		ID:    "legacy",
		Title: "Imported record from the old system",
		URL:   "https://example.com/legacy",
	})
	api.objects["articles/legacy.json"] = body
	api.order = append(api.order, "articles/legacy.json")

	globaltime.SetMockTime(now)
	deleted := s.Cleanup(context.Background(), time.Hour)
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if _, exists := api.objects["articles/old.json"]; exists {
		t.Fatal("expired entry not deleted")
	}
	if _, exists := api.objects["articles/fresh.json"]; !exists {
		t.Fatal("fresh entry deleted")
	}
	if _, exists := api.objects["articles/legacy.json"]; !exists {
		t.Fatal("entry without storedAt deleted")
	}
}

func TestDeleteAllCountsDeletedEntries(t *testing.T) {
	api := newMemBlob()
	s := newTestStore(api)

	mustWrite(t, s, model.Article{
		ID:    "a1",
		Title: "First article in the purge set",
		URL:   "https://example.com/one",
	})
	mustWrite(t, s, model.Article{
		ID:    "a2",
		Title: "Second article in the purge set",
		URL:   "https://example.com/two",
	})

	if deleted := s.DeleteAll(context.Background()); deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}
	if len(api.objects) != 0 {
		t.Fatalf("objects remain after purge: %v", api.order)
	}
}
