package services

import (
	"testing"
	"time"

	"stone-progression-system/models"
)

func TestOnTaskCompletedUpdatesCountersAndGrantsFirstStone(t *testing.T) {
	db := testDB(t)
	engine := testEngine(db)
	user := newTestUser()

	task := models.Task{
		ExternalUserID:     user,
		Title:              "write the migration plan",
		Priority:           models.PriorityHigh,
		Tags:               []string{"deep work"},
		EstimatedPomodoros: 2,
		Status:             models.TaskStatusDone,
	}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}

	awarded, err := engine.OnTaskCompleted(user, task.ID)
	if err != nil {
		t.Fatalf("OnTaskCompleted: %v", err)
	}

	// Empty ledger means the first completion grants the starter stone.
	if !containsSlug(awarded, models.StoneClarity) {
		t.Fatalf("first task should grant %s, got %v", models.StoneClarity, awarded)
	}

	var snap models.DailySnapshot
	day := models.SnapshotDate(time.Now().UTC())
	if err := db.Where("external_user_id = ? AND date = ?", user, day).First(&snap).Error; err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.TasksCompleted != 1 || snap.HighPriorityCompleted != 1 || snap.DeepWorkTasks != 1 {
		t.Fatalf("snapshot counters wrong: %+v", snap)
	}

	var prof models.UserProfile
	if err := db.Where("external_user_id = ?", user).First(&prof).Error; err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if prof.TotalTasksCompleted != 1 {
		t.Fatalf("total tasks = %d, want 1", prof.TotalTasksCompleted)
	}
	// base 10 + 5 per estimated pomodoro
	if prof.XP != 20 {
		t.Fatalf("xp = %d, want 20", prof.XP)
	}

	// deep tag and high priority each contributed a shard
	entries, err := engine.Shards.GetProgress(user)
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	got := map[string]int64{}
	for _, e := range entries {
		got[e.StoneSlug] = e.CurrentShards
	}
	if got[models.StoneDeepFocus] != 1 || got[models.StoneCourage] != 1 {
		t.Fatalf("shard contributions wrong: %v", got)
	}
}

func TestFirstTaskGrantDoesNotRepeat(t *testing.T) {
	db := testDB(t)
	engine := testEngine(db)
	user := newTestUser()

	for i := 0; i < 2; i++ {
		task := models.Task{ExternalUserID: user, Title: "small thing", Status: models.TaskStatusDone}
		if err := db.Create(&task).Error; err != nil {
			t.Fatalf("create task: %v", err)
		}
		if _, err := engine.OnTaskCompleted(user, task.ID); err != nil {
			t.Fatalf("OnTaskCompleted #%d: %v", i+1, err)
		}
	}

	n, err := engine.Awards.CountAwards(user)
	if err != nil {
		t.Fatalf("CountAwards: %v", err)
	}
	if n != 1 {
		t.Fatalf("award count after two tasks = %d, want 1 (starter stone only)", n)
	}
}

func TestOnTaskCompletedUnknownTaskErrors(t *testing.T) {
	db := testDB(t)
	engine := testEngine(db)

	if _, err := engine.OnTaskCompleted(newTestUser(), "00000000-0000-0000-0000-000000000000"); err == nil {
		t.Fatalf("expected error for missing task")
	}
}

func TestOnPomodoroCompletedDeepWithReflection(t *testing.T) {
	db := testDB(t)
	engine := testEngine(db)
	user := newTestUser()

	session := models.FocusSession{
		ExternalUserID:  user,
		DurationMinutes: 25,
		IsDeepWork:      true,
		Reflection:      "kept the phone in the other room, it helped",
	}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("create session: %v", err)
	}

	if _, err := engine.OnPomodoroCompleted(user, session.ID); err != nil {
		t.Fatalf("OnPomodoroCompleted: %v", err)
	}

	var snap models.DailySnapshot
	day := models.SnapshotDate(time.Now().UTC())
	if err := db.Where("external_user_id = ? AND date = ?", user, day).First(&snap).Error; err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.PomodoroCount != 1 || snap.DeepWorkPomodoros != 1 || snap.ReflectionsWritten != 1 || snap.FocusMinutes != 25 {
		t.Fatalf("snapshot counters wrong: %+v", snap)
	}

	var prof models.UserProfile
	if err := db.Where("external_user_id = ?", user).First(&prof).Error; err != nil {
		t.Fatalf("load profile: %v", err)
	}
	// 5 base + 5 deep bonus + 5 reflection
	if prof.XP != 15 {
		t.Fatalf("xp = %d, want 15", prof.XP)
	}
	if prof.TotalDeepWorkBlocks != 1 {
		t.Fatalf("deep blocks = %d, want 1", prof.TotalDeepWorkBlocks)
	}

	entries, err := engine.Shards.GetProgress(user)
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	got := map[string]int64{}
	for _, e := range entries {
		got[e.StoneSlug] = e.CurrentShards
	}
	if got[models.StoneDeepFocus] != 1 || got[models.StoneRecovery] != 1 {
		t.Fatalf("shard contributions wrong: %v", got)
	}
}

func TestOnLearningActivityAwardsScholarStone(t *testing.T) {
	db := testDB(t)
	engine := testEngine(db)
	user := newTestUser()

	if _, err := engine.OnLearningActivity(user, LearningFlashcardReview, 10, 0); err != nil {
		t.Fatalf("flashcard review: %v", err)
	}
	awarded, err := engine.OnLearningActivity(user, LearningQuizAttempt, 1, 85)
	if err != nil {
		t.Fatalf("quiz attempt: %v", err)
	}
	if !containsSlug(awarded, models.StoneLearning) {
		t.Fatalf("flashcards + passing quiz should award %s, got %v", models.StoneLearning, awarded)
	}

	var snap models.DailySnapshot
	day := models.SnapshotDate(time.Now().UTC())
	if err := db.Where("external_user_id = ? AND date = ?", user, day).First(&snap).Error; err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.FlashcardsReviewed != 10 || snap.QuizAttempts != 1 || snap.QuizScoreTotal != 85 {
		t.Fatalf("snapshot counters wrong: %+v", snap)
	}
}

func TestOnLearningActivityRejectsUnknownKind(t *testing.T) {
	db := testDB(t)
	engine := testEngine(db)

	if _, err := engine.OnLearningActivity(newTestUser(), LearningActivityKind("osmosis"), 1, 0); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestOnEndOfDayStreakGrowsResetsAndReplaysSafely(t *testing.T) {
	db := testDB(t)
	engine := testEngine(db)
	user := newTestUser()

	// Five active days well in the past, then one empty day.
	start := models.SnapshotDate(time.Now().UTC()).AddDate(0, 0, -30)
	for i := 0; i < 5; i++ {
		snap := models.DailySnapshot{
			ExternalUserID: user,
			Date:           start.AddDate(0, 0, i),
			TasksCompleted: 1,
		}
		if err := db.Create(&snap).Error; err != nil {
			t.Fatalf("seed snapshot %d: %v", i, err)
		}
	}

	for i := 0; i < 5; i++ {
		if _, err := engine.OnEndOfDay(user, start.AddDate(0, 0, i)); err != nil {
			t.Fatalf("OnEndOfDay day %d: %v", i, err)
		}
	}

	var prof models.UserProfile
	if err := db.Where("external_user_id = ?", user).First(&prof).Error; err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if prof.CurrentDailyStreak != 5 || prof.LongestDailyStreak != 5 {
		t.Fatalf("after 5 active days: current=%d longest=%d, want 5/5", prof.CurrentDailyStreak, prof.LongestDailyStreak)
	}

	// A streak of five earns the consistency stone at rollover.
	owned, err := engine.Awards.HasAward(user, models.StoneConsistency)
	if err != nil {
		t.Fatalf("HasAward: %v", err)
	}
	if !owned {
		t.Fatalf("streak of 5 should have awarded %s", models.StoneConsistency)
	}

	// Replaying an already-applied day changes nothing.
	if _, err := engine.OnEndOfDay(user, start.AddDate(0, 0, 2)); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if err := db.Where("external_user_id = ?", user).First(&prof).Error; err != nil {
		t.Fatalf("reload profile: %v", err)
	}
	if prof.CurrentDailyStreak != 5 {
		t.Fatalf("replay changed current streak to %d", prof.CurrentDailyStreak)
	}

	// Day six has no snapshot: current resets, longest survives.
	if _, err := engine.OnEndOfDay(user, start.AddDate(0, 0, 5)); err != nil {
		t.Fatalf("empty day rollover: %v", err)
	}
	if err := db.Where("external_user_id = ?", user).First(&prof).Error; err != nil {
		t.Fatalf("reload profile: %v", err)
	}
	if prof.CurrentDailyStreak != 0 {
		t.Fatalf("current streak after empty day = %d, want 0", prof.CurrentDailyStreak)
	}
	if prof.LongestDailyStreak != 5 {
		t.Fatalf("longest streak after empty day = %d, want 5", prof.LongestDailyStreak)
	}
}

func TestOnEndOfDayCreatesProfileForUnknownUser(t *testing.T) {
	db := testDB(t)
	engine := testEngine(db)
	user := newTestUser()

	day := models.SnapshotDate(time.Now().UTC()).AddDate(0, 0, -10)
	awarded, err := engine.OnEndOfDay(user, day)
	if err != nil {
		t.Fatalf("OnEndOfDay: %v", err)
	}
	if len(awarded) != 0 {
		t.Fatalf("no-activity rollover should award nothing, got %v", awarded)
	}

	var prof models.UserProfile
	if err := db.Where("external_user_id = ?", user).First(&prof).Error; err != nil {
		t.Fatalf("profile row should exist after rollover: %v", err)
	}
	if prof.LastStreakRolloverDate == nil || !prof.LastStreakRolloverDate.Equal(day) {
		t.Fatalf("rollover date not recorded: %+v", prof.LastStreakRolloverDate)
	}
}

func containsSlug(slugs []string, want string) bool {
	for _, s := range slugs {
		if s == want {
			return true
		}
	}
	return false
}
