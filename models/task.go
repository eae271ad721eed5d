package models

import (
	"strings"
	"time"
)

// TaskPriority mirrors the board's three lanes
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

type TaskStatus string

const (
	TaskStatusOpen TaskStatus = "open"
	TaskStatusDone TaskStatus = "done"
)

// Task is the board item whose completion feeds the progression engine.
// The board UI owns its lifecycle; the engine only reads priority, tags,
// estimate and age at completion time.
type Task struct {
	ID                 string       `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID     string       `gorm:"index;not null" json:"external_user_id"`
	Title              string       `gorm:"not null" json:"title"`
	Priority           TaskPriority `gorm:"type:varchar(16);default:'medium'" json:"priority"`
	Tags               []string     `gorm:"type:jsonb;serializer:json" json:"tags"` // "deep" / "learning" tags drive shard contributions
	EstimatedPomodoros int          `gorm:"default:1" json:"estimated_pomodoros"`
	Status             TaskStatus   `gorm:"type:varchar(16);default:'open';index" json:"status"`
	CompletedAt        *time.Time   `json:"completed_at,omitempty"`

	Timestamps
}

// HasTag reports whether any tag contains needle, case-insensitively
// ("Deep Work" counts as deep, "learn-go" as learning).
func (t *Task) HasTag(needle string) bool {
	needle = strings.ToLower(needle)
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}
