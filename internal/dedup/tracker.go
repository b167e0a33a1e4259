// Package dedup holds the process-local duplicate-suppression state shared by
// the fetchers and the enrichment orchestrator. The tracker is a fast-path
// optimization in front of the durable-store scan; it does not span process
// instances.
package dedup

import (
	"net/url"
	"strings"
	"sync"
)

// Tracker records which article keys are currently being processed and which
// normalized URLs have already been committed this process lifetime. All
// methods are safe under concurrent background tasks.
type Tracker struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
	seenURLs map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{
		inFlight: make(map[string]struct{}),
		seenURLs: make(map[string]struct{}),
	}
}

func (t *Tracker) IsInFlight(key string) bool {
	if t == nil || key == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.inFlight[key]
	return ok
}

// MarkInFlight is idempotent.
func (t *Tracker) MarkInFlight(key string) {
	if t == nil || key == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight[key] = struct{}{}
}

// Acquire marks key as in flight and reports whether the caller won the
// slot. A false return means another task already owns the key.
func (t *Tracker) Acquire(key string) bool {
	if t == nil || key == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inFlight[key]; ok {
		return false
	}
	t.inFlight[key] = struct{}{}
	return true
}

// MarkDone on an absent key is a no-op.
func (t *Tracker) MarkDone(key string) {
	if t == nil || key == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inFlight, key)
}

// MarkURLSeen records a normalized URL as committed to durable storage.
func (t *Tracker) MarkURLSeen(rawURL string) {
	normalized := NormalizeURL(rawURL)
	if t == nil || normalized == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seenURLs[normalized] = struct{}{}
}

func (t *Tracker) HasSeenURL(rawURL string) bool {
	normalized := NormalizeURL(rawURL)
	if t == nil || normalized == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seenURLs[normalized]
	return ok
}

// trackingParams are query parameters that never distinguish two articles.
var trackingParams = []string{"ref", "source", "fbclid", "gclid"}

// NormalizeURL canonicalizes a URL for equality comparison: protocol, www
// prefix, tracking query parameters, fragments, and trailing slashes are
// stripped and the result is lower-cased. Two URLs differing only by these
// elements are treated as identical.
func NormalizeURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return ""
	}

	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return strings.ToLower(strings.TrimRight(trimmed, "/"))
	}

	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")

	path := strings.TrimRight(parsed.EscapedPath(), "/")

	query := parsed.Query()
	for name := range query {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "utm_") {
			query.Del(name)
			continue
		}
		for _, tracking := range trackingParams {
			if lower == tracking {
				query.Del(name)
				break
			}
		}
	}

	normalized := host + path
	if encoded := query.Encode(); encoded != "" {
		normalized += "?" + encoded
	}

	return strings.ToLower(normalized)
}
