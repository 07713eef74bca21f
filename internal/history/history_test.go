package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "productivity.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run := NewRunID()

	base := time.Now().Add(-time.Minute)
	for i, status := range []string{"productive", "unproductive", "unknown"} {
		err := s.Insert(ctx, Record{
			RunID:      run,
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			Status:     status,
			Stage:      "none",
			Total:      15 * time.Second,
			SampleTime: 2 * time.Second,
			JudgeTime:  time.Second,
		})
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[0].Status != "unknown" || recent[1].Status != "unproductive" {
		t.Fatalf("unexpected order %s, %s", recent[0].Status, recent[1].Status)
	}
	if recent[0].RunID != run || recent[0].Total != 15*time.Second || recent[0].JudgeTime != time.Second {
		t.Fatalf("unexpected record %+v", recent[0])
	}
	if recent[0].ID == "" {
		t.Fatalf("expected generated id")
	}
}

func TestDailyCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now()
	yesterday := now.AddDate(0, 0, -1)
	old := now.AddDate(0, 0, -30)
	rows := []Record{
		{Timestamp: now, Status: "productive"},
		{Timestamp: now, Status: "productive"},
		{Timestamp: now, Status: "unproductive"},
		{Timestamp: yesterday, Status: "unknown"},
		{Timestamp: yesterday, Status: "unproductive"},
		{Timestamp: old, Status: "productive"},
	}
	for _, r := range rows {
		r.RunID = "run"
		r.Stage = "none"
		if err := s.Insert(ctx, r); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	counts, err := s.DailyCounts(ctx, 7)
	if err != nil {
		t.Fatalf("DailyCounts: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("expected 2 days, got %+v", counts)
	}
	if counts[0].Day != yesterday.Format("2006-01-02") || counts[0].Unknown != 1 || counts[0].Unproductive != 1 {
		t.Fatalf("unexpected yesterday %+v", counts[0])
	}
	if counts[1].Productive != 2 || counts[1].Unproductive != 1 || counts[1].Total() != 3 {
		t.Fatalf("unexpected today %+v", counts[1])
	}

	all, err := s.DailyCounts(ctx, 0)
	if err != nil {
		t.Fatalf("DailyCounts all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 days in full history, got %d", len(all))
	}
}
