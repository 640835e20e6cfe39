package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rcliao/turn-memory/internal/model"
)

// ExportAll returns all live records and snapshots, optionally for one subject.
func (s *SQLiteStore) ExportAll(ctx context.Context, subject string) (*model.Export, error) {
	where := []string{"deleted_at IS NULL"}
	args := []any{}

	if subject != "" {
		where = append(where, "subject = ?")
		args = append(args, subject)
	}

	query := `SELECT id, subject, payload, created_at, deleted_at
	          FROM records WHERE ` + strings.Join(where, " AND ") + ` ORDER BY subject, created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("export records: %w", err)
	}
	defer rows.Close()

	out := &model.Export{Records: []model.StoredRecord{}, Snapshots: []model.Snapshot{}}
	for rows.Next() {
		sr, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out.Records = append(out.Records, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snapQuery := `SELECT payload FROM snapshots`
	snapArgs := []any{}
	if subject != "" {
		snapQuery += ` WHERE subject = ?`
		snapArgs = append(snapArgs, subject)
	}
	snapRows, err := s.db.QueryContext(ctx, snapQuery+` ORDER BY subject`, snapArgs...)
	if err != nil {
		return nil, fmt.Errorf("export snapshots: %w", err)
	}
	defer snapRows.Close()

	for snapRows.Next() {
		var payload string
		if err := snapRows.Scan(&payload); err != nil {
			return nil, err
		}
		var snap model.Snapshot
		if err := json.Unmarshal([]byte(payload), &snap); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		out.Snapshots = append(out.Snapshots, snap)
	}
	return out, snapRows.Err()
}

// ImportResult counts what an import wrote.
type ImportResult struct {
	Records   int `json:"records"`
	Snapshots int `json:"snapshots"`
}

// Import stores an export. Records whose id already exists are skipped;
// snapshots replace the stored ones.
func (s *SQLiteStore) Import(ctx context.Context, ex *model.Export) (ImportResult, error) {
	var res ImportResult
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	for _, sr := range ex.Records {
		if sr.ID == "" {
			sr.ID = s.newID(sr.CreatedAt)
		}
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE id = ?`, sr.ID).Scan(&exists); err != nil {
			return res, err
		}
		if exists > 0 {
			continue
		}
		if err := s.insertRecord(ctx, tx, sr, true); err != nil {
			return res, err
		}
		res.Records++
	}
	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit import: %w", err)
	}

	for _, snap := range ex.Snapshots {
		if err := s.SaveSnapshot(ctx, snap); err != nil {
			return res, err
		}
		res.Snapshots++
	}
	return res, nil
}
