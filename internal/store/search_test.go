package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rcliao/turn-memory/internal/model"
)

func TestSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.AppendRecord(ctx, AppendParams{Subject: "alice", Record: turn("", "주말에 속초 갈까", "여행", "속초", "주말")})
	s.AppendRecord(ctx, AppendParams{Subject: "alice", Record: turn("", "보고서 마감", "업무", "보고서")})
	s.AppendRecord(ctx, AppendParams{Subject: "alice", Record: turn("", "바다 보고 싶다", "여행", "바다")})
	s.AppendRecord(ctx, AppendParams{Subject: "bob", Record: turn("", "속초 맛집", "음식", "속초")})

	tests := []struct {
		name    string
		params  SearchParams
		want    int
		firstIn string
	}{
		{"raw input", SearchParams{Subject: "alice", Query: "속초"}, 1, "주말에 속초 갈까"},
		{"topic", SearchParams{Subject: "alice", Query: "여행"}, 2, "바다 보고 싶다"},
		{"keyword", SearchParams{Subject: "alice", Query: "보고서"}, 1, "보고서 마감"},
		{"all subjects", SearchParams{Query: "속초"}, 2, "속초 맛집"},
		{"limit", SearchParams{Subject: "alice", Query: "", Limit: 1}, 1, "바다 보고 싶다"},
		{"no match", SearchParams{Subject: "alice", Query: "zzz"}, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Search(ctx, tt.params)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("expected %d results, got %d", tt.want, len(got))
			}
			if tt.want > 0 && got[0].Record.RawInput != tt.firstIn {
				t.Errorf("expected %q first, got %q", tt.firstIn, got[0].Record.RawInput)
			}
		})
	}
}

func TestSearchExcludesDeleted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.AppendRecord(ctx, AppendParams{Subject: "alice", Record: turn("", "속초", "")})
	s.DeleteSubject(ctx, RmParams{Subject: "alice"})

	got, _ := s.Search(ctx, SearchParams{Query: "속초"})
	if len(got) != 0 {
		t.Fatalf("expected 0 results after delete, got %d", len(got))
	}
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()

	s.AppendRecord(ctx, AppendParams{Subject: "alice", Record: turn("", "a", "여행")})
	s.AppendRecord(ctx, AppendParams{Subject: "alice", Record: turn("", "b", "업무")})
	s.AppendRecord(ctx, AppendParams{Subject: "bob", Record: turn("", "c", "")})
	s.SaveSnapshot(ctx, model.Snapshot{Subject: "alice"})

	stats, err := s.Stats(ctx, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if stats.ActiveRecords != 3 {
		t.Fatalf("expected 3 active, got %d", stats.ActiveRecords)
	}
	if stats.Snapshots != 1 {
		t.Fatalf("expected 1 snapshot, got %d", stats.Snapshots)
	}
	if len(stats.Subjects) != 2 || stats.Subjects[0].Subject != "alice" || stats.Subjects[0].Topics != 2 {
		t.Fatalf("unexpected subjects %+v", stats.Subjects)
	}
	if stats.Subjects[1].Topics != 0 {
		t.Errorf("empty topics should not count, got %d", stats.Subjects[1].Topics)
	}
	if stats.DBSizeBytes == 0 {
		t.Fatal("expected non-zero db size")
	}
}

func TestExportImport(t *testing.T) {
	dir := t.TempDir()
	s1, _ := NewSQLiteStore(filepath.Join(dir, "src.db"))
	defer s1.Close()
	ctx := context.Background()

	s1.AppendRecord(ctx, AppendParams{Subject: "alice", Record: turn("2024-05-10 15:00:00", "a", "여행")})
	s1.AppendRecord(ctx, AppendParams{Subject: "bob", Record: turn("2024-05-10 15:01:00", "b", "업무")})
	s1.SaveSnapshot(ctx, model.Snapshot{Subject: "alice"})

	exported, err := s1.ExportAll(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(exported.Records) != 2 || len(exported.Snapshots) != 1 {
		t.Fatalf("expected 2 records and 1 snapshot, got %d/%d", len(exported.Records), len(exported.Snapshots))
	}

	only, _ := s1.ExportAll(ctx, "bob")
	if len(only.Records) != 1 || len(only.Snapshots) != 0 {
		t.Fatalf("subject filter: got %d/%d", len(only.Records), len(only.Snapshots))
	}

	s2, _ := NewSQLiteStore(filepath.Join(dir, "dst.db"))
	defer s2.Close()

	res, err := s2.Import(ctx, exported)
	if err != nil {
		t.Fatal(err)
	}
	if res.Records != 2 || res.Snapshots != 1 {
		t.Fatalf("unexpected import result %+v", res)
	}

	// importing again skips known ids
	res, _ = s2.Import(ctx, exported)
	if res.Records != 0 {
		t.Fatalf("expected duplicates skipped, got %d", res.Records)
	}

	hist, _ := s2.History(ctx, HistoryParams{Subject: "alice"})
	if len(hist) != 1 || hist[0].ID != exported.Records[0].ID {
		t.Fatalf("history after import: %+v", hist)
	}
}
