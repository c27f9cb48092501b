package usecase

import (
	"context"
	"fmt"
	"strings"

	"PDFLibraryBot/internal/domain"
	"PDFLibraryBot/internal/ports"
)

const (
	// DefaultPageSize is the number of documents per library page.
	DefaultPageSize = 10
	topTagsLimit    = 5
	minIDPrefix     = 4
)

// LibraryDeps wires repositories into the library use case.
type LibraryDeps struct {
	Documents ports.DocumentRepository
	Requests  ports.RequestRepository
	Users     ports.UserRepository
}

// Library serves read and delete operations on a user's documents.
type Library struct {
	documents ports.DocumentRepository
	requests  ports.RequestRepository
	users     ports.UserRepository
}

// NewLibrary constructs the library use case.
func NewLibrary(deps LibraryDeps) *Library {
	return &Library{documents: deps.Documents, requests: deps.Requests, users: deps.Users}
}

// LibraryPage is one page of the library listing. Page is 1-based.
type LibraryPage struct {
	Documents []domain.Document
	Page      int
	Pages     int
	Total     int
}

// Register creates or refreshes the user record.
func (l *Library) Register(ctx context.Context, user domain.User) error {
	if l.users == nil {
		return nil
	}
	if err := l.users.Upsert(ctx, user); err != nil {
		return fmt.Errorf("register user: %w", err)
	}
	return nil
}

// Page returns the requested page, clamped into the valid range.
func (l *Library) Page(ctx context.Context, userID int64, page, size int) (LibraryPage, error) {
	if size <= 0 {
		size = DefaultPageSize
	}
	docs, err := l.documents.ListByUser(ctx, userID, nil)
	if err != nil {
		return LibraryPage{}, fmt.Errorf("load library: %w", err)
	}

	pages := (len(docs) + size - 1) / size
	if pages == 0 {
		return LibraryPage{Documents: []domain.Document{}, Page: 1, Pages: 1}, nil
	}
	page = min(max(page, 1), pages)

	start := (page - 1) * size
	end := min(start+size, len(docs))
	return LibraryPage{
		Documents: docs[start:end],
		Page:      page,
		Pages:     pages,
		Total:     len(docs),
	}, nil
}

// AvailableTags lists the user's distinct tags.
func (l *Library) AvailableTags(ctx context.Context, userID int64) ([]string, error) {
	tags, err := l.documents.AvailableTags(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	return tags, nil
}

// Stats summarizes the library and the export history.
func (l *Library) Stats(ctx context.Context, userID int64) (domain.LibraryStats, error) {
	docs, err := l.documents.ListByUser(ctx, userID, nil)
	if err != nil {
		return domain.LibraryStats{}, fmt.Errorf("load library: %w", err)
	}

	stats := domain.LibraryStats{Documents: len(docs)}
	for _, d := range docs {
		stats.TotalMinutes += d.ReadingMinutes
	}

	if stats.TopTags, err = l.documents.TagCounts(ctx, userID, topTagsLimit); err != nil {
		return domain.LibraryStats{}, fmt.Errorf("count tags: %w", err)
	}
	if l.requests != nil {
		if stats.Exports, err = l.requests.CountByUser(ctx, userID); err != nil {
			return domain.LibraryStats{}, fmt.Errorf("count exports: %w", err)
		}
	}
	return stats, nil
}

// Delete removes the single document whose id starts with prefix.
func (l *Library) Delete(ctx context.Context, userID int64, prefix string) (domain.Document, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) < minIDPrefix {
		return domain.Document{}, fmt.Errorf("id prefix %q shorter than %d characters: %w", prefix, minIDPrefix, domain.ErrInvalidInput)
	}

	docs, err := l.documents.ListByUser(ctx, userID, nil)
	if err != nil {
		return domain.Document{}, fmt.Errorf("load library: %w", err)
	}

	var matches []domain.Document
	for _, d := range docs {
		if strings.HasPrefix(strings.ToLower(d.ID), prefix) {
			matches = append(matches, d)
		}
	}
	switch len(matches) {
	case 0:
		return domain.Document{}, fmt.Errorf("document %s: %w", prefix, domain.ErrNotFound)
	case 1:
	default:
		return domain.Document{}, fmt.Errorf("prefix %s matches %d documents: %w", prefix, len(matches), ErrAmbiguousID)
	}

	if err := l.documents.Delete(ctx, userID, matches[0].ID); err != nil {
		return domain.Document{}, fmt.Errorf("delete document: %w", err)
	}
	return matches[0], nil
}
