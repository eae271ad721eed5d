package models

import (
	"time"

	"gorm.io/gorm"
)

// UserProfile tracks per-user running totals (denormalized for performance)
type UserProfile struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to profile service

	XP int64 `json:"xp" gorm:"not null;default:0"`

	// Lifetime counters
	TotalTasksCompleted int64 `json:"total_tasks_completed" gorm:"not null;default:0"`
	TotalPomodoros      int64 `json:"total_pomodoros" gorm:"not null;default:0"`
	TotalDeepWorkBlocks int64 `json:"total_deep_work_blocks" gorm:"not null;default:0"`

	// Streaks. Invariant: CurrentDailyStreak <= LongestDailyStreak after
	// every rollup; the engine clamps and logs if it ever observes otherwise.
	CurrentDailyStreak int64 `json:"current_daily_streak" gorm:"not null;default:0"`
	LongestDailyStreak int64 `json:"longest_daily_streak" gorm:"not null;default:0"`

	// LastStreakRolloverDate keys the end-of-day rollup: a day's rollover is
	// applied only when its date is later than this, which makes the job
	// idempotent under at-least-once redelivery.
	LastStreakRolloverDate *time.Time `gorm:"type:date" json:"last_streak_rollover_date,omitempty"`
	LastActivityAt         *time.Time `json:"last_activity_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
