package models

import (
	"testing"
	"time"
)

func TestStoneCatalogSlugsAreUniqueAndResolvable(t *testing.T) {
	seen := map[string]bool{}
	for _, st := range StoneCatalog {
		if st.Slug == "" {
			t.Fatalf("catalog entry %q has empty slug", st.Name)
		}
		if seen[st.Slug] {
			t.Fatalf("duplicate catalog slug %q", st.Slug)
		}
		seen[st.Slug] = true

		if st.ShardTarget <= 0 {
			t.Fatalf("stone %q has non-positive shard target %d", st.Slug, st.ShardTarget)
		}
		got := StoneBySlug(st.Slug)
		if got == nil || got.Slug != st.Slug {
			t.Fatalf("StoneBySlug(%q) did not resolve to the catalog entry", st.Slug)
		}
	}
}

func TestStoneBySlugUnknownReturnsNil(t *testing.T) {
	if StoneBySlug("obsidian") != nil {
		t.Fatalf("expected nil for unknown slug")
	}
}

func TestTaskHasTagIsCaseInsensitiveSubstring(t *testing.T) {
	task := Task{Tags: []string{"Deep Work", "learn-go"}}
	if !task.HasTag("deep") {
		t.Fatalf("expected 'Deep Work' to match 'deep'")
	}
	if !task.HasTag("learn") {
		t.Fatalf("expected 'learn-go' to match 'learn'")
	}
	if task.HasTag("quiz") {
		t.Fatalf("did not expect a 'quiz' match")
	}

	empty := Task{}
	if empty.HasTag("deep") {
		t.Fatalf("task with no tags should match nothing")
	}
}

func TestSnapshotDateTruncatesToUTCDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	// 23:30 local on Jan 1 is 04:30 UTC on Jan 2.
	in := time.Date(2026, 1, 1, 23, 30, 0, 0, loc)
	got := SnapshotDate(in)
	want := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("SnapshotDate = %v, want %v", got, want)
	}
}

func TestAvgQuizScore(t *testing.T) {
	s := DailySnapshot{}
	if s.AvgQuizScore() != 0 {
		t.Fatalf("expected 0 with no attempts")
	}
	s.QuizAttempts = 4
	s.QuizScoreTotal = 310
	if got := s.AvgQuizScore(); got != 77.5 {
		t.Fatalf("AvgQuizScore = %v, want 77.5", got)
	}
}

func TestHadActivity(t *testing.T) {
	if (&DailySnapshot{}).HadActivity() {
		t.Fatalf("empty snapshot should report no activity")
	}
	cases := []DailySnapshot{
		{TasksCompleted: 1},
		{PomodoroCount: 1},
		{FocusMinutes: 5},
		{ReflectionsWritten: 1},
		{QuizAttempts: 1},
		{FlashcardsReviewed: 3},
	}
	for i, snap := range cases {
		if !snap.HadActivity() {
			t.Fatalf("case %d should count as activity", i)
		}
	}
}
