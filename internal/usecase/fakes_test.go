package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"PDFLibraryBot/internal/analysis"
	"PDFLibraryBot/internal/domain"
	"PDFLibraryBot/internal/ports"
)

type memDocuments struct {
	mu      sync.Mutex
	docs    []domain.Document
	listErr error
	tagErr  error
}

func (m *memDocuments) Create(_ context.Context, doc domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, doc)
	return nil
}

func (m *memDocuments) Get(_ context.Context, userID int64, id string) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.UserID == userID && d.ID == id {
			return d, nil
		}
	}
	return domain.Document{}, domain.ErrNotFound
}

func (m *memDocuments) ListByUser(_ context.Context, userID int64, tags []string) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []domain.Document{}
	for _, d := range m.docs {
		if d.UserID != userID {
			continue
		}
		if len(tags) > 0 && !hasAny(d, tags) {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memDocuments) Delete(_ context.Context, userID int64, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range m.docs {
		if d.UserID == userID && d.ID == id {
			m.docs = append(m.docs[:i], m.docs[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memDocuments) AvailableTags(_ context.Context, userID int64) ([]string, error) {
	if m.tagErr != nil {
		return nil, m.tagErr
	}
	counts, _ := m.TagCounts(context.Background(), userID, 0)
	tags := make([]string, 0, len(counts))
	for _, c := range counts {
		tags = append(tags, c.Tag)
	}
	sort.Strings(tags)
	return tags, nil
}

func (m *memDocuments) CategoryLabels(_ context.Context, userID int64) ([]string, error) {
	if m.tagErr != nil {
		return nil, m.tagErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	labels := []string{}
	for _, d := range m.docs {
		label := d.Analysis.Category.Label
		key := domain.NormalizeTag(label)
		if d.UserID != userID || key == "" || seen[key] {
			continue
		}
		seen[key] = true
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels, nil
}

func (m *memDocuments) TagCounts(_ context.Context, userID int64, limit int) ([]domain.TagCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int{}
	for _, d := range m.docs {
		if d.UserID != userID {
			continue
		}
		for _, t := range d.Tags {
			counts[t]++
		}
	}
	out := make([]domain.TagCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, domain.TagCount{Tag: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func hasAny(d domain.Document, tags []string) bool {
	for _, t := range tags {
		if d.HasTag(t) {
			return true
		}
	}
	return false
}

type memRequests struct {
	mu      sync.Mutex
	exports [][]string
	err     error
}

func (m *memRequests) Record(_ context.Context, _ int64, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.exports = append(m.exports, ids)
	return nil
}

func (m *memRequests) CountByUser(context.Context, int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.exports), nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[int64]string
}

func (m *memUsers) Upsert(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users == nil {
		m.users = map[int64]string{}
	}
	m.users[u.ID] = u.Name
	return nil
}

type fakeExtractor struct {
	text domain.ExtractedText
	err  error
}

func (f fakeExtractor) Extract(_ context.Context, data []byte, sourceName string) (domain.ExtractedText, error) {
	if f.err != nil {
		return domain.ExtractedText{}, f.err
	}
	out := f.text
	out.SourceName = sourceName
	out.ByteSize = int64(len(data))
	return out, nil
}

type fakeAnalyzer struct {
	mu     sync.Mutex
	result domain.AnalysisResult
	err    error
	inputs []analysis.Input
}

func (f *fakeAnalyzer) Analyze(_ context.Context, in analysis.Input) (analysis.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return analysis.Analysis{}, f.err
	}
	return analysis.Analysis{Result: f.result, Provider: "gemini"}, nil
}

type fakeFetcher struct {
	pdf domain.FetchedPDF
	err error
}

func (f fakeFetcher) Fetch(context.Context, string) (domain.FetchedPDF, error) {
	return f.pdf, f.err
}

type fakeMessenger struct {
	mu       sync.Mutex
	uploads  []string
	uploadID string
}

func (f *fakeMessenger) Send(context.Context, int64, ports.Reply) error { return nil }
func (f *fakeMessenger) Edit(context.Context, int64, int, ports.Reply) error {
	return nil
}
func (f *fakeMessenger) SendDocument(context.Context, int64, string, string) error { return nil }
func (f *fakeMessenger) UploadDocument(_ context.Context, _ int64, name string, _ []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, name)
	if f.uploadID == "" {
		return "", errors.New("upload failed")
	}
	return f.uploadID, nil
}
func (f *fakeMessenger) Download(context.Context, string) ([]byte, error) { return nil, nil }
func (f *fakeMessenger) AnswerCallback(context.Context, string, string) error {
	return nil
}

func doc(id string, userID int64, minutes float64, age time.Duration, tags ...string) domain.Document {
	return domain.Document{
		ID:             id,
		UserID:         userID,
		Title:          strings.ToUpper(id),
		ReadingMinutes: minutes,
		Tags:           tags,
		CreatedAt:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC).Add(-age),
	}
}
