package gamestore

import (
	"testing"
	"time"

	"github.com/chessmirror/chessmirror/internal/game"
)

func TestArchiveRoundTrip(t *testing.T) {
	a, err := NewArchive(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	for i, id := range []string{"g1", "g2", "g3"} {
		rec := AnalysisRecord{
			User:     "alice",
			Platform: "lichess",
			GameID:   id,
			Traits: &game.TraitScoreSet{
				Tactical:  float64(40 + i),
				MoveCount: 0,
			},
			CreatedAt: time.Now().UTC(),
		}
		if err := a.Append(rec); err != nil {
			t.Fatalf("Append(%s): %v", id, err)
		}
	}

	records, err := a.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("loaded %d records, want 3", len(records))
	}
	if records[1].GameID != "g2" || records[1].Traits.Tactical != 41 {
		t.Errorf("record 1 = %+v", records[1])
	}
}

func TestArchiveLoadMissing(t *testing.T) {
	a, err := NewArchive(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	records, err := a.Load()
	if err != nil {
		t.Fatal(err)
	}
	if records != nil {
		t.Errorf("Load on empty archive = %v, want nil", records)
	}
}
