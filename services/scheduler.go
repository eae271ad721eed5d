// services/scheduler.go
package services

import (
	"database/sql"
	"log"
	"time"

	"stone-progression-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartRolloverScheduler runs the end-of-day streak rollup shortly after
// UTC midnight for every known profile. Delivery is at-least-once (a crash
// mid-run means the next tick replays the same date); the rollup itself is
// keyed by date, so replays are no-ops, and the catch-up walks every missed
// day so an outage spanning several midnights still processes each day.
func (e *ProgressionEngine) StartRolloverScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
		gocron.NewTask(func() {
			e.RolloverAllProfiles(models.SnapshotDate(time.Now().UTC().AddDate(0, 0, -1)))
		}),
	)

	// Catch-up pass on boot covers restarts around midnight.
	go e.RolloverAllProfiles(models.SnapshotDate(time.Now().UTC().AddDate(0, 0, -1)))
}

// RolloverAllProfiles applies OnEndOfDay through the given date for every
// profile that has not yet rolled past it. Each profile's missed days are
// walked in order, oldest first, so a silent day inside a missed span still
// resets the streak before a later active day counts.
func (e *ProgressionEngine) RolloverAllProfiles(date time.Time) {
	date = models.SnapshotDate(date)

	type pendingProfile struct {
		ExternalUserID         string
		LastStreakRolloverDate *time.Time
	}
	var profiles []pendingProfile
	err := e.DB.Model(&models.UserProfile{}).
		Select("external_user_id", "last_streak_rollover_date").
		Where("last_streak_rollover_date IS NULL OR last_streak_rollover_date < ?", date).
		Find(&profiles).Error
	if err != nil {
		log.Printf("[Rollover] DB error listing profiles: %v", err)
		return
	}
	if len(profiles) == 0 {
		return
	}

	log.Printf("[Rollover] Applying end-of-day through %s for %d profile(s)", date.Format("2006-01-02"), len(profiles))
	for _, p := range profiles {
		start := e.rolloverStart(p.ExternalUserID, p.LastStreakRolloverDate, date)
		for d := start; !d.After(date); d = d.AddDate(0, 0, 1) {
			if _, err := e.OnEndOfDay(p.ExternalUserID, d); err != nil {
				log.Printf("❌ [Rollover] Failed for user %s on %s: %v", p.ExternalUserID, d.Format("2006-01-02"), err)
				break
			}
		}
	}
	log.Printf("✅ [Rollover] Completed through %s", date.Format("2006-01-02"))
}

// rolloverStart picks the first date a profile still needs: the day after
// the last applied rollup, or for never-rolled profiles the day of their
// earliest snapshot (falling back to the target date itself).
func (e *ProgressionEngine) rolloverStart(externalUserID string, last *time.Time, date time.Time) time.Time {
	if last != nil {
		return models.SnapshotDate(*last).AddDate(0, 0, 1)
	}

	var earliest sql.NullTime
	err := e.DB.Model(&models.DailySnapshot{}).
		Where("external_user_id = ?", externalUserID).
		Select("MIN(date)").
		Scan(&earliest).Error
	if err != nil || !earliest.Valid {
		return date
	}
	first := models.SnapshotDate(earliest.Time)
	if first.After(date) {
		return date
	}
	return first
}
