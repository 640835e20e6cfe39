package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/turn-memory/internal/model"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id          TEXT PRIMARY KEY,
		subject     TEXT NOT NULL,
		ts          TEXT NOT NULL,
		raw_input   TEXT NOT NULL DEFAULT '',
		main_topic  TEXT NOT NULL DEFAULT '',
		keywords    TEXT,
		payload     TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		deleted_at  TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_records_subject ON records(subject, created_at);
	CREATE INDEX IF NOT EXISTS idx_records_deleted ON records(deleted_at);

	CREATE TABLE IF NOT EXISTS snapshots (
		subject     TEXT PRIMARY KEY,
		payload     TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) AppendRecord(ctx context.Context, p AppendParams) (*model.StoredRecord, error) {
	if p.Subject == "" {
		return nil, errors.New("subject is required")
	}
	now := time.Now().UTC()
	sr := model.StoredRecord{
		ID:        s.newID(now),
		Subject:   p.Subject,
		Record:    p.Record,
		CreatedAt: now,
	}
	if err := s.insertRecord(ctx, s.db, sr, false); err != nil {
		return nil, err
	}
	return &sr, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertRecord writes sr. With ignoreDup an existing id is left alone.
func (s *SQLiteStore) insertRecord(ctx context.Context, db execer, sr model.StoredRecord, ignoreDup bool) error {
	payload, err := json.Marshal(sr.Record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	var keywords *string
	if len(sr.Record.Keywords) > 0 {
		b, _ := json.Marshal(sr.Record.Keywords)
		k := string(b)
		keywords = &k
	}
	var deletedAt *string
	if sr.DeletedAt != nil {
		d := sr.DeletedAt.UTC().Format(timeLayout)
		deletedAt = &d
	}

	verb := "INSERT"
	if ignoreDup {
		verb = "INSERT OR IGNORE"
	}
	_, err = db.ExecContext(ctx,
		verb+` INTO records (id, subject, ts, raw_input, main_topic, keywords, payload, created_at, deleted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sr.ID, sr.Subject, sr.Record.Timestamp, sr.Record.RawInput, sr.Record.MainTopic,
		keywords, string(payload), sr.CreatedAt.UTC().Format(timeLayout), deletedAt)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) History(ctx context.Context, p HistoryParams) ([]model.StoredRecord, error) {
	query := `SELECT id, subject, payload, created_at, deleted_at FROM records
	          WHERE subject = ? AND deleted_at IS NULL
	          ORDER BY created_at DESC, id DESC`
	args := []any{p.Subject}
	if p.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, p.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []model.StoredRecord
	for rows.Next() {
		sr, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// newest-first for LIMIT, then flipped to chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	if snap.Subject == "" {
		return errors.New("snapshot has no subject")
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (subject, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(subject) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		snap.Subject, string(payload), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context, subject string) (*model.Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE subject = ?`, subject).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *SQLiteStore) Subjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subject FROM records WHERE deleted_at IS NULL
		UNION
		SELECT subject FROM snapshots
		ORDER BY subject`)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var subject string
		if err := rows.Scan(&subject); err != nil {
			return nil, err
		}
		out = append(out, subject)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteSubject(ctx context.Context, p RmParams) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var res sql.Result
	if p.Hard {
		res, err = tx.ExecContext(ctx, `DELETE FROM records WHERE subject = ?`, p.Subject)
	} else {
		now := time.Now().UTC().Format(timeLayout)
		res, err = tx.ExecContext(ctx,
			`UPDATE records SET deleted_at = ? WHERE subject = ? AND deleted_at IS NULL`, now, p.Subject)
	}
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	n, _ := res.RowsAffected()

	snap, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE subject = ?`, p.Subject)
	if err != nil {
		return 0, fmt.Errorf("delete snapshot: %w", err)
	}
	ns, _ := snap.RowsAffected()
	if n == 0 && ns == 0 {
		return 0, ErrNotFound
	}
	return int(n), tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (model.StoredRecord, error) {
	var sr model.StoredRecord
	var payload, createdAt string
	var deletedAt sql.NullString

	if err := row.Scan(&sr.ID, &sr.Subject, &payload, &createdAt, &deletedAt); err != nil {
		return sr, err
	}
	if err := json.Unmarshal([]byte(payload), &sr.Record); err != nil {
		return sr, fmt.Errorf("decode record %s: %w", sr.ID, err)
	}
	sr.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	if deletedAt.Valid {
		t, _ := time.Parse(timeLayout, deletedAt.String)
		sr.DeletedAt = &t
	}
	return sr, nil
}
