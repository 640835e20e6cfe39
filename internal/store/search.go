package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/turn-memory/internal/model"
)

// SearchParams holds parameters for searching history.
type SearchParams struct {
	Subject string // empty searches every subject
	Query   string
	Limit   int
}

// Search finds records whose raw input, topic or keywords contain the query
// substring, newest first.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]model.StoredRecord, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	query := "%" + p.Query + "%"
	where := []string{"deleted_at IS NULL", "(raw_input LIKE ? OR main_topic LIKE ? OR keywords LIKE ?)"}
	args := []any{query, query, query}

	if p.Subject != "" {
		where = append(where, "subject = ?")
		args = append(args, p.Subject)
	}

	sql := fmt.Sprintf(`
		SELECT id, subject, payload, created_at, deleted_at
		FROM records
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, strings.Join(where, " AND "))
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}
	defer rows.Close()

	var results []model.StoredRecord
	for rows.Next() {
		sr, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, sr)
	}
	return results, rows.Err()
}
