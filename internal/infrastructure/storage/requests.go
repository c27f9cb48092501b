package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"PDFLibraryBot/internal/ports"
)

// RequestRepository keeps the export history. Every export gets a
// request_id shared by one row per delivered document.
type RequestRepository struct {
	db *sql.DB
}

var _ ports.RequestRepository = (*RequestRepository)(nil)

// NewRequestRepository wires a sql.DB implementation.
func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Record stores one export. An export that delivered nothing is still counted.
func (r *RequestRepository) Record(ctx context.Context, userID int64, documentIDs []string) error {
	query, args, err := recordRequestQuery(uuid.NewString(), userID, documentIDs)
	if err != nil {
		return fmt.Errorf("build record: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return wrapError("record request", err)
	}
	return nil
}

// CountByUser returns the number of exports the user made.
func (r *RequestRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	query, args, err := psql.Select("COUNT(DISTINCT request_id)").
		From("requests").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, wrapError("count requests", err)
	}
	return n, nil
}

func recordRequestQuery(requestID string, userID int64, documentIDs []string) (string, []any, error) {
	q := psql.Insert("requests").Columns("request_id", "user_id", "document_id")
	if len(documentIDs) == 0 {
		q = q.Values(requestID, userID, nil)
	}
	for _, id := range documentIDs {
		q = q.Values(requestID, userID, id)
	}
	return q.ToSql()
}
