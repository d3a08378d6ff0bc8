package indexdb

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"yogiworld.io/internal/sim/world"
)

func TestSQLiteIndex_TopEarners(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = idx.Close() }()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []world.JournalEntry{
		{Time: at, Kind: world.EntryJoin, ParticipantID: "a", Name: "Alice"},
		{Time: at, Kind: world.EntryJoin, ParticipantID: "b", Name: "Bob"},
		{Time: at, Kind: world.EntryReward, ParticipantID: "a", Name: "Alice", Delta: 5, Total: 5, Reason: "Daily bonus"},
		{Time: at, Kind: world.EntryReward, ParticipantID: "b", Name: "Bob", Delta: 5, Total: 5, Reason: "Daily bonus"},
		{Time: at, Kind: world.EntryReward, ParticipantID: "b", Name: "Bob", Zone: "fountain", Delta: 10, Total: 15, Reason: "Visited fountain"},
		{Time: at, Kind: world.EntryChat, ParticipantID: "a", Text: "ignored"},
		{Time: at, Kind: world.EntryLeave, ParticipantID: "a", Name: "Alice", Total: 5},
	}
	for _, e := range entries {
		if err := idx.WriteEntry(e); err != nil {
			t.Fatalf("WriteEntry: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	top, err := idx.TopEarners(ctx, 10)
	if err != nil {
		t.Fatalf("TopEarners: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 earners, got %+v", top)
	}
	if top[0].ParticipantID != "b" || top[0].Points != 15 || top[0].Rewards != 2 {
		t.Fatalf("unexpected leader: %+v", top[0])
	}
	if top[1].ParticipantID != "a" || top[1].Points != 5 {
		t.Fatalf("unexpected second: %+v", top[1])
	}

	var leftAt *string
	if err := idx.db.QueryRowContext(ctx, `SELECT left_at FROM sessions WHERE participant_id='a'`).Scan(&leftAt); err != nil {
		t.Fatalf("query session: %v", err)
	}
	if leftAt == nil {
		t.Fatalf("leave not recorded")
	}
	if st := idx.Stats(); st.WrittenTotal != 6 || st.DroppedTotal != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestSQLiteIndex_DropsWhenBehind(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	_ = s.WriteEntry(world.JournalEntry{Kind: world.EntryJoin, ParticipantID: "a"})
	_ = s.WriteEntry(world.JournalEntry{Kind: world.EntryReward, ParticipantID: "a"})
	_ = s.WriteEntry(world.JournalEntry{Kind: world.EntryChat, ParticipantID: "a"})

	st := s.Stats()
	if st.DroppedTotal != 1 {
		t.Fatalf("DroppedTotal=%d want=1", st.DroppedTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_WritesRacingCloseDoNotPanic(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < 500; i++ {
				_ = idx.WriteEntry(world.JournalEntry{Time: at, Kind: world.EntryJoin, ParticipantID: "p"})
			}
			_ = idx.Sync(context.Background())
		}()
	}
	close(start)
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	wg.Wait()

	// Writes after close are ignored.
	if err := idx.WriteEntry(world.JournalEntry{Time: at, Kind: world.EntryJoin, ParticipantID: "late"}); err != nil {
		t.Fatalf("WriteEntry after close: %v", err)
	}
	if err := idx.Sync(context.Background()); err != nil {
		t.Fatalf("Sync after close: %v", err)
	}
}
