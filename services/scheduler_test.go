package services

import (
	"testing"
	"time"

	"stone-progression-system/models"
)

func TestRolloverAllProfilesWalksMissedDays(t *testing.T) {
	db := testDB(t)
	engine := testEngine(db)
	user := newTestUser()

	// Active day, then a silent day, then another active day.
	base := models.SnapshotDate(time.Now().UTC()).AddDate(0, 0, -40)
	for _, offset := range []int{0, 2} {
		snap := models.DailySnapshot{
			ExternalUserID: user,
			Date:           base.AddDate(0, 0, offset),
			TasksCompleted: 1,
		}
		if err := db.Create(&snap).Error; err != nil {
			t.Fatalf("seed snapshot +%d: %v", offset, err)
		}
	}

	// First day rolls normally, then two midnights pass with the scheduler
	// down; catch-up runs knowing only the latest date.
	if _, err := engine.OnEndOfDay(user, base); err != nil {
		t.Fatalf("OnEndOfDay: %v", err)
	}
	engine.RolloverAllProfiles(base.AddDate(0, 0, 2))

	var prof models.UserProfile
	if err := db.Where("external_user_id = ?", user).First(&prof).Error; err != nil {
		t.Fatalf("load profile: %v", err)
	}
	// The silent middle day must reset before the later active day counts:
	// 1, then 0, then 1 — NOT 1 then 2.
	if prof.CurrentDailyStreak != 1 {
		t.Fatalf("streak after catch-up = %d, want 1 (silent day skipped?)", prof.CurrentDailyStreak)
	}
	if prof.LongestDailyStreak != 1 {
		t.Fatalf("longest after catch-up = %d, want 1", prof.LongestDailyStreak)
	}
	want := base.AddDate(0, 0, 2)
	if prof.LastStreakRolloverDate == nil || !prof.LastStreakRolloverDate.Equal(want) {
		t.Fatalf("rollover date = %v, want %v", prof.LastStreakRolloverDate, want)
	}
}

func TestRolloverAllProfilesStartsNewProfilesAtEarliestSnapshot(t *testing.T) {
	db := testDB(t)
	engine := testEngine(db)
	user := newTestUser()

	// Profile exists but has never rolled; snapshots go back three days.
	if err := db.Create(&models.UserProfile{ExternalUserID: user}).Error; err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	base := models.SnapshotDate(time.Now().UTC()).AddDate(0, 0, -50)
	for offset := 0; offset < 3; offset++ {
		snap := models.DailySnapshot{
			ExternalUserID: user,
			Date:           base.AddDate(0, 0, offset),
			PomodoroCount:  1,
		}
		if err := db.Create(&snap).Error; err != nil {
			t.Fatalf("seed snapshot +%d: %v", offset, err)
		}
	}

	engine.RolloverAllProfiles(base.AddDate(0, 0, 2))

	var prof models.UserProfile
	if err := db.Where("external_user_id = ?", user).First(&prof).Error; err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if prof.CurrentDailyStreak != 3 {
		t.Fatalf("streak = %d, want 3 (all three active days rolled)", prof.CurrentDailyStreak)
	}
}
