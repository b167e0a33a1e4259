package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const feedPayload = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <link>https://feed.test</link>
    <item>
      <title>Observatory spots unusual comet activity</title>
      <description>Astronomers report a fragmenting nucleus.</description>
      <link>https://feed.test/comet</link>
      <pubDate>Mon, 10 Mar 2025 09:00:00 GMT</pubDate>
    </item>
    <item>
      <title></title>
      <description>untitled item</description>
      <link>https://feed.test/untitled</link>
    </item>
  </channel>
</rss>`

func TestRSSFetchParsesFeedItems(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feedPayload))
	}))
	t.Cleanup(server.Close)

	provider, err := NewRSS(RSSOptions{FeedURLs: []string{server.URL}})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	articles, err := provider.Fetch(context.Background(), Query{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 titled article, got %d", len(articles))
	}
	article := articles[0]
	if article.Source != "Example Feed" {
		t.Fatalf("unexpected source %q", article.Source)
	}
	if article.URL != "https://feed.test/comet" {
		t.Fatalf("unexpected URL %q", article.URL)
	}
	if article.PublishedAt == nil {
		t.Fatal("missing publishedAt")
	}
}

func TestRSSFetchReportsPartialFeedFailure(t *testing.T) {
	t.Parallel()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedPayload))
	}))
	t.Cleanup(healthy.Close)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)

	provider, err := NewRSS(RSSOptions{FeedURLs: []string{broken.URL, healthy.URL}})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	articles, err := provider.Fetch(context.Background(), Query{})
	if err == nil {
		t.Fatal("expected an error naming the broken feed")
	}
	if !strings.Contains(err.Error(), broken.URL) {
		t.Fatalf("error does not name the broken feed: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected items from the healthy feed, got %d", len(articles))
	}
}

func TestRSSFetchFailsWhenAllFeedsFail(t *testing.T) {
	t.Parallel()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)

	provider, err := NewRSS(RSSOptions{FeedURLs: []string{broken.URL}})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	if _, err := provider.Fetch(context.Background(), Query{}); err == nil {
		t.Fatal("expected error when every feed fails")
	}
}

func TestNewRSSRequiresFeeds(t *testing.T) {
	t.Parallel()

	if _, err := NewRSS(RSSOptions{FeedURLs: []string{"  "}}); err == nil {
		t.Fatal("expected error for empty feed list")
	}
}
