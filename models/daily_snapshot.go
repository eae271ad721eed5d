package models

import "time"

// DailySnapshot stores per-user, per-UTC-day activity counters.
// One row per (user, day); every field is mutated only by additive
// increments from the event handlers, and prior days' rows are read-only
// inputs to the streak rollup and the trailing-window rules.
type DailySnapshot struct {
	ID             string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string    `gorm:"not null;uniqueIndex:idx_daily_snapshot_user_date" json:"external_user_id"`
	Date           time.Time `gorm:"type:date;not null;uniqueIndex:idx_daily_snapshot_user_date" json:"date"` // UTC midnight

	TasksCompleted        int64 `gorm:"not null;default:0" json:"tasks_completed"`
	HighPriorityCompleted int64 `gorm:"not null;default:0" json:"high_priority_completed"`
	DeepWorkTasks         int64 `gorm:"not null;default:0" json:"deep_work_tasks"`
	DeepWorkPomodoros     int64 `gorm:"not null;default:0" json:"deep_work_pomodoros"`
	LearningTasks         int64 `gorm:"not null;default:0" json:"learning_tasks"`
	PomodoroCount         int64 `gorm:"not null;default:0" json:"pomodoro_count"`
	FocusMinutes          int64 `gorm:"not null;default:0" json:"focus_minutes"`
	ReflectionsWritten    int64 `gorm:"not null;default:0" json:"reflections_written"`
	QuizAttempts          int64 `gorm:"not null;default:0" json:"quiz_attempts"`
	QuizScoreTotal        int64 `gorm:"not null;default:0" json:"quiz_score_total"` // sum of scores; avg derived, so updates stay additive
	FlashcardsReviewed    int64 `gorm:"not null;default:0" json:"flashcards_reviewed"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// AvgQuizScore derives the day's average quiz score (0 when no attempts).
func (s *DailySnapshot) AvgQuizScore() float64 {
	if s.QuizAttempts == 0 {
		return 0
	}
	return float64(s.QuizScoreTotal) / float64(s.QuizAttempts)
}

// HadActivity reports whether any counter moved that day — the input to
// the streak rollup.
func (s *DailySnapshot) HadActivity() bool {
	return s.TasksCompleted > 0 ||
		s.PomodoroCount > 0 ||
		s.FocusMinutes > 0 ||
		s.ReflectionsWritten > 0 ||
		s.QuizAttempts > 0 ||
		s.FlashcardsReviewed > 0
}

// SnapshotDate truncates t to its UTC calendar day (the natural key).
func SnapshotDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
