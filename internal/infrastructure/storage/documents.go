package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"PDFLibraryBot/internal/domain"
	"PDFLibraryBot/internal/ports"
)

var documentColumns = []string{
	"id", "user_id", "telegram_file_id", "source_url", "title",
	"reading_time_min", "tags", "analysis", "provider", "created_at",
}

// DocumentRepository stores library documents in Postgres.
type DocumentRepository struct {
	db *sql.DB
}

var _ ports.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository wires a sql.DB implementation.
func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a new document.
func (r *DocumentRepository) Create(ctx context.Context, doc domain.Document) error {
	query, args, err := insertDocumentQuery(doc)
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return wrapError("insert document", err)
	}
	return nil
}

// Get returns one document owned by userID.
func (r *DocumentRepository) Get(ctx context.Context, userID int64, id string) (domain.Document, error) {
	query, args, err := psql.Select(documentColumns...).
		From("documents").
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return domain.Document{}, fmt.Errorf("build select: %w", err)
	}

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return domain.Document{}, wrapError("get document", err)
	}
	return doc, nil
}

// ListByUser returns the user's documents, newest first. A non-empty tags
// list keeps documents carrying at least one of them.
func (r *DocumentRepository) ListByUser(ctx context.Context, userID int64, tags []string) ([]domain.Document, error) {
	query, args, err := listDocumentsQuery(userID, tags).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("list documents", err)
	}
	defer rows.Close()

	docs := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, wrapError("scan document", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("rows iteration", err)
	}
	return docs, nil
}

// Delete removes a document owned by userID.
func (r *DocumentRepository) Delete(ctx context.Context, userID int64, id string) error {
	query, args, err := psql.Delete("documents").
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapError("delete document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapError("delete document", err)
	}
	if n == 0 {
		return fmt.Errorf("delete document %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// AvailableTags lists the distinct tags in the user's library.
func (r *DocumentRepository) AvailableTags(ctx context.Context, userID int64) ([]string, error) {
	query, args, err := psql.Select("DISTINCT unnest(tags) AS tag").
		From("documents").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("tag").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build tags: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("list tags", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	tags := make([]string, 0)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, wrapError("scan tag", err)
		}
		key := domain.NormalizeTag(tag)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("rows iteration", err)
	}
	return tags, nil
}

// CategoryLabels lists the distinct category labels stored in the user's
// analyses. Topic tags are not included.
func (r *DocumentRepository) CategoryLabels(ctx context.Context, userID int64) ([]string, error) {
	query, args, err := categoryLabelsQuery(userID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build categories: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("list categories", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	labels := make([]string, 0)
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, wrapError("scan category", err)
		}
		key := domain.NormalizeTag(label)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		labels = append(labels, strings.TrimSpace(label))
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("rows iteration", err)
	}
	return labels, nil
}

// TagCounts returns the most frequent tags, at most limit of them.
func (r *DocumentRepository) TagCounts(ctx context.Context, userID int64, limit int) ([]domain.TagCount, error) {
	query, args, err := tagCountsQuery(userID, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build tag counts: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("count tags", err)
	}
	defer rows.Close()

	counts := make([]domain.TagCount, 0)
	for rows.Next() {
		var tc domain.TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, wrapError("scan tag count", err)
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("rows iteration", err)
	}
	return counts, nil
}

func insertDocumentQuery(doc domain.Document) (string, []any, error) {
	payload, err := json.Marshal(doc.Analysis)
	if err != nil {
		return "", nil, fmt.Errorf("encode analysis: %w", err)
	}
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	return psql.Insert("documents").
		Columns(documentColumns...).
		Values(
			doc.ID,
			doc.UserID,
			doc.TelegramFileID,
			doc.SourceURL,
			doc.Title,
			doc.ReadingMinutes,
			pq.StringArray(tags),
			payload,
			doc.Provider,
			doc.CreatedAt,
		).
		ToSql()
}

func listDocumentsQuery(userID int64, tags []string) sq.SelectBuilder {
	q := psql.Select(documentColumns...).
		From("documents").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id")

	keys := make([]string, 0, len(tags))
	for _, t := range tags {
		if key := domain.NormalizeTag(t); key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) > 0 {
		q = q.Where(sq.Expr("EXISTS (SELECT 1 FROM unnest(tags) AS t WHERE lower(t) = ANY(?))", pq.StringArray(keys)))
	}
	return q
}

func categoryLabelsQuery(userID int64) sq.SelectBuilder {
	return psql.Select("DISTINCT analysis->'category'->>'label' AS label").
		From("documents").
		Where(sq.Eq{"user_id": userID}).
		Where("COALESCE(analysis->'category'->>'label', '') <> ''").
		OrderBy("label")
}

func tagCountsQuery(userID int64, limit int) sq.SelectBuilder {
	q := psql.Select("tag", "COUNT(*) AS n").
		From("documents, unnest(tags) AS tag").
		Where(sq.Eq{"user_id": userID}).
		GroupBy("tag").
		OrderBy("n DESC", "tag")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return q
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var (
		doc     domain.Document
		tags    pq.StringArray
		payload []byte
	)
	if err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.TelegramFileID,
		&doc.SourceURL,
		&doc.Title,
		&doc.ReadingMinutes,
		&tags,
		&payload,
		&doc.Provider,
		&doc.CreatedAt,
	); err != nil {
		return domain.Document{}, err
	}
	doc.Tags = []string(tags)
	if len(strings.TrimSpace(string(payload))) > 0 {
		if err := json.Unmarshal(payload, &doc.Analysis); err != nil {
			return domain.Document{}, fmt.Errorf("decode analysis of %s: %w", doc.ID, err)
		}
	}
	return doc, nil
}
