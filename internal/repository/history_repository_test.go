package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/iconidentify/ytgrabba/internal/domain"
)

func newTestHistory(t *testing.T) *SQLiteHistoryRepository {
	t.Helper()
	repo, err := NewSQLiteHistoryRepository(filepath.Join(t.TempDir(), "data", "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteHistoryRepository failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteHistoryRepository_RecordAndRecent(t *testing.T) {
	repo := newTestHistory(t)
	ctx := context.Background()

	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	entries := []HistoryEntry{
		{
			MediaID:   "abc123",
			Kind:      domain.KindAudio,
			Strategy:  domain.StrategyRemote,
			OK:        true,
			Path:      "downloads/abc123.mp3",
			Duration:  1500 * time.Millisecond,
			CreatedAt: created,
		},
		{
			MediaID:   "vid1",
			Kind:      domain.KindVideo,
			Strategy:  domain.StrategyNone,
			OK:        false,
			ErrorKind: "extraction_failed",
			Duration:  3 * time.Second,
			CreatedAt: created.Add(time.Minute),
		},
	}
	for _, e := range entries {
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Recent) = %d, want 2", len(got))
	}

	// Newest first.
	if got[0].MediaID != "vid1" {
		t.Errorf("got[0].MediaID = %q, want vid1", got[0].MediaID)
	}
	if got[0].OK {
		t.Error("got[0].OK should be false")
	}
	if got[0].ErrorKind != "extraction_failed" {
		t.Errorf("ErrorKind = %q", got[0].ErrorKind)
	}
	if got[0].Strategy != domain.StrategyNone {
		t.Errorf("Strategy = %q, want none", got[0].Strategy)
	}

	if got[1].Path != "downloads/abc123.mp3" {
		t.Errorf("Path = %q", got[1].Path)
	}
	if !got[1].OK {
		t.Error("got[1].OK should be true")
	}
	if got[1].Kind != domain.KindAudio {
		t.Errorf("Kind = %q, want audio", got[1].Kind)
	}
	if got[1].Duration != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", got[1].Duration)
	}
	if !got[1].CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got[1].CreatedAt, created)
	}
	if got[1].ID == 0 || got[0].ID <= got[1].ID {
		t.Errorf("IDs = %d, %d, want increasing", got[1].ID, got[0].ID)
	}
}

func TestSQLiteHistoryRepository_RecentLimit(t *testing.T) {
	repo := newTestHistory(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := repo.Record(ctx, HistoryEntry{MediaID: "abc123", Kind: domain.KindAudio, Strategy: domain.StrategyCache, OK: true}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := repo.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("len(Recent(3)) = %d, want 3", len(got))
	}

	all, err := repo.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("len(Recent(0)) = %d, want 5", len(all))
	}
}

func TestSQLiteHistoryRepository_RecordDefaultsTimestamp(t *testing.T) {
	repo := newTestHistory(t)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	if err := repo.Record(ctx, HistoryEntry{MediaID: "abc123", Kind: domain.KindAudio, Strategy: domain.StrategyRemote}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, _ := repo.Recent(ctx, 1)
	if len(got) != 1 {
		t.Fatalf("len(Recent) = %d, want 1", len(got))
	}
	if got[0].CreatedAt.Before(before) {
		t.Errorf("CreatedAt = %v, want recent", got[0].CreatedAt)
	}
}

func TestSQLiteHistoryRepository_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	repo, err := NewSQLiteHistoryRepository(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := repo.Record(ctx, HistoryEntry{MediaID: "abc123", Kind: domain.KindAudio, Strategy: domain.StrategyRemote, OK: true}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	repo.Close()

	reopened, err := NewSQLiteHistoryRepository(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len(Recent) after reopen = %d, want 1", len(got))
	}
}
