package blob

import (
	"context"
	"fmt"
)

const (
	DefaultScanPageSize = 100
	DefaultMaxPages     = 10
	DefaultMaxEntries   = 1000
)

// Lister is the slice of the store client the scanner depends on.
type Lister interface {
	List(ctx context.Context, prefix string, limit int, cursor string) (ListPage, error)
}

// ScanOptions bounds the total cost of a prefix scan.
type ScanOptions struct {
	PageSize   int
	MaxPages   int
	MaxEntries int

	// WaitTurn, when set, runs before every page request so scans share the
	// caller's request pacing instead of bursting at the store.
	WaitTurn func(ctx context.Context) error
}

// Scanner iterates a prefix scan page by page with hard caps on pages and
// entries, so duplicate-search, list, and cleanup all share the same bounded
// cursor logic. A rate-limit signal surfaces as ErrRateLimited; callers abort
// rather than retry.
type Scanner struct {
	lister Lister
	prefix string
	opts   ScanOptions

	cursor  string
	pages   int
	entries int
	done    bool
}

func NewScanner(lister Lister, prefix string, opts ScanOptions) *Scanner {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultScanPageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	return &Scanner{
		lister: lister,
		prefix: prefix,
		opts:   opts,
	}
}

// Done reports whether the scan is exhausted or a cap has been reached.
func (s *Scanner) Done() bool {
	if s == nil {
		return true
	}
	return s.done || s.pages >= s.opts.MaxPages || s.entries >= s.opts.MaxEntries
}

// Next returns the next page of entries. It returns (nil, nil) once the scan
// is exhausted or a cap is reached.
func (s *Scanner) Next(ctx context.Context) ([]Item, error) {
	if s == nil || s.lister == nil {
		return nil, fmt.Errorf("scanner is not initialized")
	}
	if s.done || s.pages >= s.opts.MaxPages || s.entries >= s.opts.MaxEntries {
		return nil, nil
	}

	pageSize := s.opts.PageSize
	if remaining := s.opts.MaxEntries - s.entries; remaining < pageSize {
		pageSize = remaining
	}

	if s.opts.WaitTurn != nil {
		if err := s.opts.WaitTurn(ctx); err != nil {
			s.done = true
			return nil, err
		}
	}

	page, err := s.lister.List(ctx, s.prefix, pageSize, s.cursor)
	if err != nil {
		s.done = true
		return nil, err
	}

	s.pages++
	s.entries += len(page.Items)
	s.cursor = page.NextCursor
	if !page.HasMore || s.cursor == "" {
		s.done = true
	}

	return page.Items, nil
}
