package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/talgya/deus-ex/internal/world"
)

func testSnapshot() *world.Snapshot {
	return &world.Snapshot{
		Stats: world.WorldStats{
			Year:               42,
			Population:         12000,
			TechnologicalLevel: "Iron Age",
			CulturalVibe:       "Restless",
		},
		Factions: []world.Faction{
			{Name: "Aurean Curia", Power: 60, Tenets: []string{"Order above all"}},
		},
		Figures: []world.Person{
			{ID: "p1", Name: "Archon Severin", Status: world.StatusAlive, PortraitURL: "data:image/png;base64,abc"},
		},
		Logs: []world.LogEntry{
			{ID: "l1", Year: 42, Type: world.LogHistorical, Content: "The Curia rose."},
		},
		PendingDecision: &world.PendingDecision{
			ID:         "d1",
			SenderName: "Archon Severin",
			Message:    "Shall we march?",
			Options:    []world.DecisionOption{{ID: "o1", Text: "March"}},
		},
		SavedAt: 1700000000000,
	}
}

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	want := testSnapshot()
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Stats != want.Stats {
		t.Errorf("stats = %+v, want %+v", got.Stats, want.Stats)
	}
	if len(got.Figures) != 1 || got.Figures[0].PortraitURL != want.Figures[0].PortraitURL {
		t.Error("figures did not survive the round trip")
	}
	if len(got.Logs) != 1 || got.Logs[0].Content != "The Curia rose." {
		t.Error("logs did not survive the round trip")
	}
	if got.PendingDecision == nil || got.PendingDecision.ID != "d1" {
		t.Error("pending decision did not survive the round trip")
	}
	if got.SavedAt != want.SavedAt {
		t.Errorf("savedAt = %d, want %d", got.SavedAt, want.SavedAt)
	}
}

func TestSQLiteSingleSlot(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	first := testSnapshot()
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := testSnapshot()
	second.Stats.Year = 100
	second.PendingDecision = nil
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Stats.Year != 100 {
		t.Errorf("year = %d, want the newer save", got.Stats.Year)
	}
	if got.PendingDecision != nil {
		t.Error("cleared decision should not resurrect from the prior save")
	}
}

func TestSQLiteLoadEmpty(t *testing.T) {
	s := openTestSQLite(t)
	if _, err := s.Load(context.Background()); !errors.Is(err, ErrNoSave) {
		t.Errorf("err = %v, want ErrNoSave", err)
	}
}

func TestSQLiteClear(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	if err := s.Save(ctx, testSnapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, ErrNoSave) {
		t.Errorf("err = %v, want ErrNoSave after clear", err)
	}
}
