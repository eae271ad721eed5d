package models

import "time"

// FocusSession is one completed pomodoro logged by the timer.
type FocusSession struct {
	ID             string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string  `gorm:"index;not null" json:"external_user_id"`
	TaskID         *string `gorm:"index" json:"task_id,omitempty"` // nil = untethered session

	DurationMinutes int    `gorm:"not null;default:25" json:"duration_minutes"`
	IsDeepWork      bool   `gorm:"default:false" json:"is_deep_work"`
	Reflection      string `gorm:"type:text" json:"reflection,omitempty"` // optional post-session note

	CompletedAt time.Time `gorm:"autoCreateTime" json:"completed_at"`
}
