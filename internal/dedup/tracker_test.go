package dedup

import "testing"

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a    string
		b    string
		same bool
	}{
		{name: "protocol and www", a: "https://ex.com/a", b: "http://www.ex.com/a", same: true},
		{name: "tracking params and trailing slash", a: "https://ex.com/a?utm_source=x", b: "http://www.ex.com/a/", same: true},
		{name: "ref param", a: "https://ex.com/a?ref=feed", b: "https://ex.com/a", same: true},
		{name: "case", a: "https://EX.com/A", b: "https://ex.com/a", same: true},
		{name: "meaningful query survives", a: "https://ex.com/a?id=1", b: "https://ex.com/a?id=2", same: false},
		{name: "different paths", a: "https://ex.com/a", b: "https://ex.com/b", same: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := NormalizeURL(tc.a) == NormalizeURL(tc.b)
			if got != tc.same {
				t.Fatalf("NormalizeURL(%q)=%q NormalizeURL(%q)=%q same=%v want %v",
					tc.a, NormalizeURL(tc.a), tc.b, NormalizeURL(tc.b), got, tc.same)
			}
		})
	}
}

func TestNormalizeURLEmpty(t *testing.T) {
	t.Parallel()

	if got := NormalizeURL("   "); got != "" {
		t.Fatalf("expected empty normalization, got %q", got)
	}
}

func TestTrackerInFlight(t *testing.T) {
	t.Parallel()

	tracker := NewTracker()

	if tracker.IsInFlight("a") {
		t.Fatal("fresh tracker should have nothing in flight")
	}

	tracker.MarkInFlight("a")
	tracker.MarkInFlight("a")
	if !tracker.IsInFlight("a") {
		t.Fatal("expected key a in flight")
	}

	tracker.MarkDone("a")
	if tracker.IsInFlight("a") {
		t.Fatal("expected key a released")
	}

	// MarkDone on an absent key is a no-op.
	tracker.MarkDone("missing")
}

func TestTrackerAcquire(t *testing.T) {
	t.Parallel()

	tracker := NewTracker()

	if !tracker.Acquire("a") {
		t.Fatal("first acquire should win")
	}
	if tracker.Acquire("a") {
		t.Fatal("second acquire must lose while key is in flight")
	}

	tracker.MarkDone("a")
	if !tracker.Acquire("a") {
		t.Fatal("acquire should win again after release")
	}
}

func TestTrackerSeenURLs(t *testing.T) {
	t.Parallel()

	tracker := NewTracker()
	tracker.MarkURLSeen("https://ex.com/a?utm_campaign=news")

	if !tracker.HasSeenURL("http://www.ex.com/a/") {
		t.Fatal("expected normalized variant to be seen")
	}
	if tracker.HasSeenURL("https://ex.com/b") {
		t.Fatal("did not expect unrelated URL to be seen")
	}
}
