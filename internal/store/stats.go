package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath        string         `json:"db_path"`
	DBSizeBytes   int64          `json:"db_size_bytes"`
	TotalRecords  int            `json:"total_records"`
	ActiveRecords int            `json:"active_records"`
	Snapshots     int            `json:"snapshots"`
	Subjects      []SubjectStats `json:"subjects"`
}

// SubjectStats holds per-subject counts.
type SubjectStats struct {
	Subject string `json:"subject"`
	Records int    `json:"records"`
	Topics  int    `json:"topics"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&st.TotalRecords)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE deleted_at IS NULL`).Scan(&st.ActiveRecords)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&st.Snapshots)

	rows, err := s.db.QueryContext(ctx, `
		SELECT subject, COUNT(*) as cnt, COUNT(DISTINCT NULLIF(main_topic, '')) as topics
		FROM records WHERE deleted_at IS NULL
		GROUP BY subject ORDER BY cnt DESC, subject`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var ss SubjectStats
		rows.Scan(&ss.Subject, &ss.Records, &ss.Topics)
		st.Subjects = append(st.Subjects, ss)
	}

	return st, rows.Err()
}
