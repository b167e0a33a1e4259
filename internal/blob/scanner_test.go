package blob

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type stubLister struct {
	pages []ListPage
	errs  []error
	calls int
}

func (s *stubLister) List(_ context.Context, _ string, _ int, _ string) (ListPage, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return ListPage{}, s.errs[idx]
	}
	if idx >= len(s.pages) {
		return ListPage{}, fmt.Errorf("unexpected call %d", idx)
	}
	return s.pages[idx], nil
}

func TestScannerWalksAllPages(t *testing.T) {
	t.Parallel()

	lister := &stubLister{pages: []ListPage{
		{Items: []Item{{Path: "a"}, {Path: "b"}}, HasMore: true, NextCursor: "c1"},
		{Items: []Item{{Path: "c"}}, HasMore: false},
	}}
	scanner := NewScanner(lister, "articles/", ScanOptions{PageSize: 2})

	var paths []string
	for !scanner.Done() {
		items, err := scanner.Next(context.Background())
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		for _, item := range items {
			paths = append(paths, item.Path)
		}
	}

	if len(paths) != 3 || paths[0] != "a" || paths[2] != "c" {
		t.Fatalf("unexpected paths: %v", paths)
	}
	if lister.calls != 2 {
		t.Fatalf("unexpected call count %d", lister.calls)
	}
}

func TestScannerStopsAtPageCap(t *testing.T) {
	t.Parallel()

	endless := ListPage{Items: []Item{{Path: "x"}}, HasMore: true, NextCursor: "more"}
	lister := &stubLister{pages: []ListPage{endless, endless, endless, endless}}
	scanner := NewScanner(lister, "articles/", ScanOptions{PageSize: 1, MaxPages: 2})

	total := 0
	for !scanner.Done() {
		items, err := scanner.Next(context.Background())
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		total += len(items)
	}

	if total != 2 {
		t.Fatalf("expected cap at 2 entries, got %d", total)
	}
	if lister.calls != 2 {
		t.Fatalf("expected 2 list calls, got %d", lister.calls)
	}
}

func TestScannerStopsAtEntryCap(t *testing.T) {
	t.Parallel()

	page := ListPage{Items: []Item{{Path: "x"}, {Path: "y"}}, HasMore: true, NextCursor: "more"}
	lister := &stubLister{pages: []ListPage{page, page, page}}
	scanner := NewScanner(lister, "articles/", ScanOptions{PageSize: 2, MaxPages: 10, MaxEntries: 3})

	total := 0
	for !scanner.Done() {
		items, err := scanner.Next(context.Background())
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		total += len(items)
	}

	if total > 4 {
		t.Fatalf("entry cap not applied, got %d entries", total)
	}
}

func TestScannerWaitsBeforeEveryPageRequest(t *testing.T) {
	t.Parallel()

	lister := &stubLister{pages: []ListPage{
		{Items: []Item{{Path: "a"}}, HasMore: true, NextCursor: "c1"},
		{Items: []Item{{Path: "b"}}, HasMore: false},
	}}
	waits := 0
	scanner := NewScanner(lister, "articles/", ScanOptions{
		PageSize: 1,
		WaitTurn: func(context.Context) error {
			waits++
			return nil
		},
	})

	for !scanner.Done() {
		if _, err := scanner.Next(context.Background()); err != nil {
			t.Fatalf("next: %v", err)
		}
	}

	if waits != lister.calls {
		t.Fatalf("waited %d times for %d page requests", waits, lister.calls)
	}
	if waits != 2 {
		t.Fatalf("expected 2 waits, got %d", waits)
	}
}

func TestScannerStopsWhenWaitFails(t *testing.T) {
	t.Parallel()

	lister := &stubLister{pages: []ListPage{{Items: []Item{{Path: "a"}}, HasMore: true, NextCursor: "c1"}}}
	scanner := NewScanner(lister, "articles/", ScanOptions{
		WaitTurn: func(ctx context.Context) error { return context.Canceled },
	})

	if _, err := scanner.Next(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if !scanner.Done() {
		t.Fatal("scanner should be done after a wait failure")
	}
	if lister.calls != 0 {
		t.Fatalf("page request issued despite wait failure, calls=%d", lister.calls)
	}
}

func TestScannerSurfacesRateLimit(t *testing.T) {
	t.Parallel()

	lister := &stubLister{errs: []error{ErrRateLimited}}
	scanner := NewScanner(lister, "articles/", ScanOptions{})

	_, err := scanner.Next(context.Background())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if !scanner.Done() {
		t.Fatal("scanner should be done after an error")
	}
}
