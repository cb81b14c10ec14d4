package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func createTestDB(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snap.db")
	s, err := NewSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := createTestDB(t)
	ctx := context.Background()

	rows := []EntryRow{
		{List: "history", Position: 0, UUID: "a", Text: "first", CreatedAt: sql.NullInt64{Int64: 1000, Valid: true}},
		{List: "history", Position: 1, UUID: "b", Text: "second", CreatedAt: sql.NullInt64{Int64: 2000, Valid: true},
			ShortURL: sql.NullString{String: "", Valid: true}},
		{List: "deletedHistory", Position: 0, UUID: "c", Text: "gone", CreatedAt: sql.NullInt64{Int64: 3000, Valid: true},
			DeletedAt: sql.NullInt64{Int64: 4000, Valid: true}},
	}
	settings := map[string]string{"config.max_main_entries": "5"}
	if err := s.ReplaceSnapshot(ctx, rows, settings); err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}

	got, gotSettings, err := s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("rows: got %d, want 3", len(got))
	}
	if got[0].List != "deletedHistory" || got[1].Text != "first" || got[2].Text != "second" {
		t.Errorf("unexpected order: %+v", got)
	}
	if !got[2].ShortURL.Valid || got[2].ShortURL.String != "" {
		t.Errorf("empty short url should survive as empty, got %+v", got[2].ShortURL)
	}
	if got[1].ShortURL.Valid {
		t.Errorf("absent short url should stay NULL")
	}
	if gotSettings["config.max_main_entries"] != "5" {
		t.Errorf("settings: got %v", gotSettings)
	}
}

func TestReplaceSnapshotDropsOldRows(t *testing.T) {
	s := createTestDB(t)
	ctx := context.Background()
	many := make([]EntryRow, 0, 10)
	for i := 0; i < 10; i++ {
		many = append(many, EntryRow{List: "history", Position: i, UUID: fmt.Sprint(i), Text: "x"})
	}
	if err := s.ReplaceSnapshot(ctx, many, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceSnapshot(ctx, many[:2], map[string]string{"k": "v"}); err != nil {
		t.Fatal(err)
	}
	got, _, err := s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("rows after replace: got %d, want 2", len(got))
	}
}

func TestPing(t *testing.T) {
	s := createTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
