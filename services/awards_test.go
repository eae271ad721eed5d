package services

import (
	"sync"
	"testing"

	"stone-progression-system/models"
)

func TestTryAwardGrantsOncePerStone(t *testing.T) {
	db := testDB(t)
	awards := NewAwardService(db, nil)
	user := newTestUser()

	first, err := awards.TryAward(user, models.StoneClarity, models.SourceFirstTime, []string{"task-1"})
	if err != nil {
		t.Fatalf("TryAward: %v", err)
	}
	if first == nil {
		t.Fatalf("first grant should return the award")
	}
	if first.Source != models.SourceFirstTime {
		t.Fatalf("source = %q, want %q", first.Source, models.SourceFirstTime)
	}

	// Replay with a different source: the ledger already holds the stone.
	second, err := awards.TryAward(user, models.StoneClarity, models.SourceRule, nil)
	if err != nil {
		t.Fatalf("TryAward replay: %v", err)
	}
	if second != nil {
		t.Fatalf("replay must not grant a duplicate")
	}

	owned, err := awards.HasAward(user, models.StoneClarity)
	if err != nil {
		t.Fatalf("HasAward: %v", err)
	}
	if !owned {
		t.Fatalf("expected ownership after grant")
	}

	list, err := awards.GetUserAwards(user)
	if err != nil {
		t.Fatalf("GetUserAwards: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(list))
	}
	if list[0].Source != models.SourceFirstTime {
		t.Fatalf("replay must not overwrite the original source, got %q", list[0].Source)
	}
}

func TestTryAwardDifferentStonesAreIndependent(t *testing.T) {
	db := testDB(t)
	awards := NewAwardService(db, nil)
	user := newTestUser()

	for _, slug := range []string{models.StoneClarity, models.StoneCourage} {
		award, err := awards.TryAward(user, slug, models.SourceRule, nil)
		if err != nil {
			t.Fatalf("TryAward(%s): %v", slug, err)
		}
		if award == nil {
			t.Fatalf("TryAward(%s) should grant", slug)
		}
	}

	n, err := awards.CountAwards(user)
	if err != nil {
		t.Fatalf("CountAwards: %v", err)
	}
	if n != 2 {
		t.Fatalf("award count = %d, want 2", n)
	}
}

func TestTryAwardConcurrentCallsGrantExactlyOnce(t *testing.T) {
	db := testDB(t)
	awards := NewAwardService(db, nil)
	user := newTestUser()

	const workers = 8
	granted := make(chan *models.StoneAward, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			award, err := awards.TryAward(user, models.StoneMastery, models.SourceRule, nil)
			if err != nil {
				t.Errorf("TryAward: %v", err)
				return
			}
			if award != nil {
				granted <- award
			}
		}()
	}
	wg.Wait()
	close(granted)

	wins := 0
	for range granted {
		wins++
	}
	if wins != 1 {
		t.Fatalf("%d goroutines reported a grant, want exactly 1", wins)
	}

	n, err := awards.CountAwards(user)
	if err != nil {
		t.Fatalf("CountAwards: %v", err)
	}
	if n != 1 {
		t.Fatalf("ledger rows = %d, want 1", n)
	}
}

func TestTryAwardRejectsUnknownSlug(t *testing.T) {
	db := testDB(t)
	awards := NewAwardService(db, nil)

	if _, err := awards.TryAward(newTestUser(), "obsidian", models.SourceRule, nil); err == nil {
		t.Fatalf("expected error for unknown slug")
	}
}
