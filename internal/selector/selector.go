// Package selector picks saved documents that fit a reading-time budget.
package selector

import (
	"fmt"
	"sort"

	"PDFLibraryBot/internal/domain"
)

// DefaultFallbackCount is how many recent documents are returned when nothing fits.
const DefaultFallbackCount = 3

// Request describes what the reader has time for.
type Request struct {
	TargetMinutes float64
	Tags          []string
}

// Result is an ordered selection and its total reading time.
type Result struct {
	Documents    []domain.Document
	TotalMinutes float64
	Fallback     bool
}

// Option customizes a Selector.
type Option func(*Selector)

// WithFallbackCount overrides how many recent documents the fallback returns.
func WithFallbackCount(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.fallbackCount = n
		}
	}
}

// Selector fills a time budget greedily from the longest documents down.
type Selector struct {
	fallbackCount int
}

// New builds a selector.
func New(opts ...Option) *Selector {
	s := &Selector{fallbackCount: DefaultFallbackCount}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns documents whose reading times sum to at most req.TargetMinutes.
// A tag filter that matches nothing is ignored. When no document fits, the
// most recent ones are returned with Fallback set.
func (s *Selector) Select(docs []domain.Document, req Request) (Result, error) {
	if req.TargetMinutes <= 0 {
		return Result{}, fmt.Errorf("target minutes %v: %w", req.TargetMinutes, domain.ErrInvalidInput)
	}

	candidates := filterByTags(unique(docs), req.Tags)
	if len(candidates) == 0 {
		return Result{Documents: []domain.Document{}}, nil
	}

	ordered := make([]domain.Document, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].ReadingMinutes != ordered[j].ReadingMinutes {
			return ordered[i].ReadingMinutes > ordered[j].ReadingMinutes
		}
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})

	var (
		picked []domain.Document
		total  float64
	)
	for _, doc := range ordered {
		if doc.ReadingMinutes <= 0 {
			continue
		}
		if total+doc.ReadingMinutes <= req.TargetMinutes {
			picked = append(picked, doc)
			total += doc.ReadingMinutes
		}
	}

	if len(picked) > 0 {
		return Result{Documents: picked, TotalMinutes: total}, nil
	}

	recent := s.mostRecent(candidates)
	return Result{Documents: recent, TotalMinutes: sumMinutes(recent), Fallback: true}, nil
}

func (s *Selector) mostRecent(docs []domain.Document) []domain.Document {
	n := s.fallbackCount
	if n <= 0 {
		n = DefaultFallbackCount
	}

	ordered := make([]domain.Document, len(docs))
	copy(ordered, docs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})
	if len(ordered) > n {
		ordered = ordered[:n]
	}
	return ordered
}

func filterByTags(docs []domain.Document, tags []string) []domain.Document {
	wanted := map[string]bool{}
	for _, tag := range tags {
		if key := domain.NormalizeTag(tag); key != "" {
			wanted[key] = true
		}
	}
	if len(wanted) == 0 {
		return docs
	}

	var filtered []domain.Document
	for _, doc := range docs {
		for _, tag := range doc.Tags {
			if wanted[domain.NormalizeTag(tag)] {
				filtered = append(filtered, doc)
				break
			}
		}
	}
	if len(filtered) == 0 {
		return docs
	}
	return filtered
}

func unique(docs []domain.Document) []domain.Document {
	seen := make(map[string]bool, len(docs))
	out := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.ID != "" {
			if seen[doc.ID] {
				continue
			}
			seen[doc.ID] = true
		}
		out = append(out, doc)
	}
	return out
}

func sumMinutes(docs []domain.Document) float64 {
	var total float64
	for _, doc := range docs {
		total += doc.ReadingMinutes
	}
	return total
}
